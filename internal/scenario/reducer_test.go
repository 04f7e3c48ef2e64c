package scenario_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelagornis/go-rex/internal/config"
	"github.com/pelagornis/go-rex/internal/scenario"
)

func reduce(t *testing.T, state scenario.State, action interface{}) scenario.State {
	t.Helper()
	next, fx := scenario.Reducer().Reduce(state, action)
	require.Empty(t, fx)
	return next
}

func TestSetCreatesNestedPath(t *testing.T) {
	next := reduce(t, scenario.State{}, scenario.SetAction{Path: "a.b.c", Value: 7})
	assert.Equal(t, scenario.State{"a": map[string]interface{}{"b": map[string]interface{}{"c": 7}}}, next)
}

func TestSetDoesNotMutateInput(t *testing.T) {
	original := scenario.State{"keep": map[string]interface{}{"x": 1}}
	next := reduce(t, original, scenario.SetAction{Path: "keep.x", Value: 2})

	assert.Equal(t, 1, original["keep"].(map[string]interface{})["x"], "committed snapshots must not alias")
	assert.Equal(t, 2, next["keep"].(map[string]interface{})["x"])
}

func TestIncrement(t *testing.T) {
	next := reduce(t, scenario.State{"count": 1}, scenario.IncrementAction{Path: "count", By: 2})
	assert.Equal(t, 3, next["count"])

	// Missing and non-numeric values count as zero.
	next = reduce(t, scenario.State{}, scenario.IncrementAction{Path: "fresh", By: 5})
	assert.Equal(t, 5, next["fresh"])
	next = reduce(t, scenario.State{"s": "text"}, scenario.IncrementAction{Path: "s", By: 1})
	assert.Equal(t, 1, next["s"])
}

func TestMergeIsShallow(t *testing.T) {
	state := scenario.State{"a": 1, "nested": map[string]interface{}{"x": 1}}
	next := reduce(t, state, scenario.MergeAction{Value: map[string]interface{}{
		"b":      2,
		"nested": map[string]interface{}{"y": 2},
	}})

	assert.Equal(t, 1, next["a"])
	assert.Equal(t, 2, next["b"])
	assert.Equal(t, map[string]interface{}{"y": 2}, next["nested"], "merge replaces top-level keys")
}

func TestDelete(t *testing.T) {
	state := scenario.State{"a": map[string]interface{}{"b": 1, "c": 2}}
	next := reduce(t, state, scenario.DeleteAction{Path: "a.b"})
	assert.Equal(t, scenario.State{"a": map[string]interface{}{"c": 2}}, next)

	// Deleting a missing path is a no-op.
	next = reduce(t, next, scenario.DeleteAction{Path: "nope.x"})
	assert.Equal(t, scenario.State{"a": map[string]interface{}{"c": 2}}, next)
}

func TestUnknownActionLeavesStateUntouched(t *testing.T) {
	state := scenario.State{"a": 1}
	next := reduce(t, state, "not-a-scenario-action")
	assert.Equal(t, state, next)
}

func TestActionFromConfig(t *testing.T) {
	action, err := scenario.ActionFromConfig(&config.ActionConfig{
		Type:   config.ActionIncrement,
		Params: map[string]interface{}{"path": "count"},
	})
	require.NoError(t, err)
	assert.Equal(t, scenario.IncrementAction{Path: "count", By: 1}, action, "by defaults to 1")

	_, err = scenario.ActionFromConfig(&config.ActionConfig{
		Type:   config.ActionSet,
		Params: map[string]interface{}{"path": "x"},
	})
	require.Error(t, err, "set requires a value")

	_, err = scenario.ActionFromConfig(&config.ActionConfig{
		Type:   config.ActionIncrement,
		Params: map[string]interface{}{"path": "count", "by": "lots"},
	})
	require.Error(t, err, "by must be an integer")
}
