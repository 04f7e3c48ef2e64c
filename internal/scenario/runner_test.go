package scenario_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelagornis/go-rex/internal/config"
	intLogger "github.com/pelagornis/go-rex/internal/logger"
	"github.com/pelagornis/go-rex/internal/scenario"
)

func loadScenario(t *testing.T, yaml string) *config.Scenario {
	t.Helper()
	sc, err := config.LoadScenario([]byte(yaml), "test.yaml")
	require.NoError(t, err)
	return sc
}

func newRunner(t *testing.T) *scenario.Runner {
	t.Helper()
	return scenario.NewRunner(intLogger.NewDefaultLogger("error"), nil, nil)
}

func TestRunnerBasicScript(t *testing.T) {
	sc := loadScenario(t, `
name: basic
schemaVersion: "1.0.0"
initialState:
  count: 0
steps:
  - action:
      type: increment
      params: {path: count}
  - action:
      type: increment
      params: {path: count, by: 9}
  - action:
      type: set
      params: {path: meta.owner, value: rex}
  - action:
      type: delete
      params: {path: meta}
`)

	report, err := newRunner(t).Run(context.Background(), sc)
	require.NoError(t, err)

	assert.Equal(t, "basic", report.ScenarioName)
	assert.Equal(t, 4, report.StepsExecuted)
	assert.Equal(t, 4, report.Commits)
	assert.Equal(t, scenario.State{"count": 10}, report.FinalState)
}

func TestRunnerTimeTravelScript(t *testing.T) {
	sc := loadScenario(t, `
name: travel
schemaVersion: "1.0.0"
timeTravel: true
initialState:
  count: 0
steps:
  - action:
      type: increment
      params: {path: count}
  - action:
      type: increment
      params: {path: count}
  - navigate: undo
  - action:
      type: set
      params: {path: count, value: 100}
  - navigate: redo
`)

	report, err := newRunner(t).Run(context.Background(), sc)
	require.NoError(t, err)

	// The final redo fails: recording count=100 pruned the redo branch.
	assert.Equal(t, 1, report.NavigationsRejected)
	assert.Equal(t, scenario.State{"count": 100}, report.FinalState)
}

func TestRunnerDelayedAndRetriedDispatch(t *testing.T) {
	sc := loadScenario(t, `
name: effects
schemaVersion: "1.0.0"
effectStrategy: sequential
initialState:
  count: 0
steps:
  - action:
      type: increment
      params: {path: count}
      delay: 5ms
  - action:
      type: increment
      params: {path: count}
      retry: {attempts: 2, delay: 1ms}
`)

	report, err := newRunner(t).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, scenario.State{"count": 2}, report.FinalState,
		"delayed and retried dispatches land before the run report is built")
}

func TestRunnerWithMiddlewares(t *testing.T) {
	sc := loadScenario(t, `
name: with-mw
schemaVersion: "1.0.0"
middlewares: [logging]
steps:
  - action:
      type: merge
      params:
        value: {ready: true}
`)

	report, err := newRunner(t).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, scenario.State{"ready": true}, report.FinalState)
}

func TestRunnerRejectsUnknownMiddleware(t *testing.T) {
	sc := loadScenario(t, `
name: bad-mw
schemaVersion: "1.0.0"
middlewares: [nonexistent]
steps:
  - action:
      type: merge
      params:
        value: {ready: true}
`)

	_, err := newRunner(t).Run(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegistry(t *testing.T) {
	r := scenario.NewStaticRegistry()
	require.Error(t, r.Register("", nil))
	require.Error(t, r.Register("x", nil))

	defaults := scenario.DefaultRegistry()
	assert.ElementsMatch(t, []string{"logging", "audit"}, defaults.List())

	_, err := defaults.Get("logging")
	require.NoError(t, err)
	_, err = defaults.Get("missing")
	require.Error(t, err)
}
