package scenario

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/pelagornis/go-rex/internal/config"
	"github.com/pelagornis/go-rex/internal/util"
	rex "github.com/pelagornis/go-rex/pkg/rex/v1"
	"github.com/pelagornis/go-rex/pkg/rex/v1/effect"
	"github.com/pelagornis/go-rex/pkg/rex/v1/events"
	rexlog "github.com/pelagornis/go-rex/pkg/rex/v1/log"
	rexmetrics "github.com/pelagornis/go-rex/pkg/rex/v1/metrics"
	"github.com/pelagornis/go-rex/pkg/rex/v1/store"
	rextracing "github.com/pelagornis/go-rex/pkg/rex/v1/tracing"
)

// Report summarizes one scenario run.
type Report struct {
	ScenarioName string
	// StepsExecuted counts every step the runner attempted.
	StepsExecuted int
	// NavigationsRejected counts navigate and jump_to steps the store
	// refused (out-of-bounds cursor moves).
	NavigationsRejected int
	// Commits counts committed states observed after the initial one.
	Commits int
	// FinalState is the committed state after all steps and effects
	// drained.
	FinalState State
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMetricsRegistryProvider passes the provider through to the store.
func WithMetricsRegistryProvider(p rexmetrics.RegistryProvider) RunnerOption {
	return func(r *Runner) { r.metrics = p }
}

// WithTracerProvider passes the provider through to the store.
func WithTracerProvider(p rextracing.TracerProvider) RunnerOption {
	return func(r *Runner) { r.tracing = p }
}

// WithClock injects the clock used by the store, its effects, and the
// runner's wait steps.
func WithClock(clock clockwork.Clock) RunnerOption {
	return func(r *Runner) { r.clock = clock }
}

// Runner drives a store from a loaded scenario.
type Runner struct {
	log      rexlog.Logger
	bus      events.Bus
	registry *StaticRegistry
	clock    clockwork.Clock

	metrics rexmetrics.RegistryProvider
	tracing rextracing.TracerProvider
}

// NewRunner builds a Runner. The logger is required; a nil registry
// selects DefaultRegistry and a nil clock the real clock.
func NewRunner(log rexlog.Logger, bus events.Bus, registry *StaticRegistry, opts ...RunnerOption) *Runner {
	if log == nil {
		panic("scenario.NewRunner requires a non-nil logger")
	}
	r := &Runner{
		log:      log.With("component", "ScenarioRunner"),
		bus:      bus,
		registry: registry,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = DefaultRegistry()
	}
	if r.clock == nil {
		r.clock = clockwork.NewRealClock()
	}
	return r
}

// Run executes the scenario's steps against a fresh store and returns a
// report of what happened. The store is always closed before Run returns,
// so the report's final state includes everything queued effects
// committed.
func (r *Runner) Run(ctx context.Context, sc *config.Scenario) (*Report, error) {
	strategy, err := rex.ParseEffectStrategy(sc.EffectStrategy)
	if err != nil {
		return nil, err
	}

	deps := MiddlewareDeps{Log: r.log, Bus: r.bus, Clock: r.clock}
	var middlewares []rex.Middleware[State]
	for _, name := range sc.Middlewares {
		factory, err := r.registry.Get(name)
		if err != nil {
			return nil, err
		}
		middlewares = append(middlewares, factory(deps))
	}

	initial := State{}
	if sc.InitialState != nil {
		initial = util.DeepCopyStringMap(sc.InitialState)
	}

	options := []store.Option[State]{
		store.WithLogger[State](r.log),
		store.WithClock[State](r.clock),
		store.WithEffectStrategy[State](strategy),
		store.WithMiddleware[State](middlewares...),
	}
	if r.bus != nil {
		options = append(options, store.WithEventBus[State](r.bus))
	}
	if sc.TimeTravel {
		options = append(options, store.WithTimeTravel[State]())
	}
	if r.metrics != nil {
		options = append(options, store.WithMetricsRegistryProvider[State](r.metrics))
	}
	if r.tracing != nil {
		options = append(options, store.WithTracerProvider[State](r.tracing))
	}

	st, err := store.New(initial, Reducer(), options...)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	report := &Report{ScenarioName: sc.Name}
	first := true
	unsubscribe := st.Subscribe(func(State) {
		if first {
			first = false
			return
		}
		report.Commits++
	})
	defer unsubscribe()

	r.log.Infof("Running scenario '%s' (%d steps)", sc.Name, len(sc.Steps))
	for i := range sc.Steps {
		step := &sc.Steps[i]
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}
		report.StepsExecuted++

		if err := r.runStep(ctx, st, step, report); err != nil {
			return report, fmt.Errorf("step '%s': %w", step.InternalID, err)
		}
	}

	// Settle: process all script dispatches (submitting their effects),
	// wait for the effects, then process the actions they sent.
	st.Flush()
	st.EffectsIdle()
	st.Flush()
	if err := st.Close(); err != nil {
		return report, err
	}
	report.FinalState = st.State()

	r.log.Infof("Scenario '%s' finished: %d steps, %d commits, %d navigations rejected",
		sc.Name, report.StepsExecuted, report.Commits, report.NavigationsRejected)
	return report, nil
}

func (r *Runner) runStep(ctx context.Context, st *store.Store[State], step *config.Step, report *Report) error {
	switch step.Kind() {
	case config.StepKindAction:
		action, err := ActionFromConfig(step.Action)
		if err != nil {
			return err
		}
		r.dispatch(st, step, action)
		return nil

	case config.StepKindNavigate:
		// Navigation is synchronous; let queued dispatches commit first
		// so scripts read deterministically top to bottom.
		st.Flush()
		var ok bool
		if step.Navigate == config.NavigateUndo {
			ok = st.Undo()
		} else {
			ok = st.Redo()
		}
		if !ok {
			report.NavigationsRejected++
			r.log.Warnf("Navigation '%s' rejected at step '%s'", step.Navigate, step.InternalID)
		}
		return nil

	case config.StepKindJump:
		st.Flush()
		if !st.JumpTo(*step.JumpTo) {
			report.NavigationsRejected++
			r.log.Warnf("Jump to %d rejected at step '%s'", *step.JumpTo, step.InternalID)
		}
		return nil

	case config.StepKindWait:
		timer := r.clock.NewTimer(step.GetWait())
		defer timer.Stop()
		select {
		case <-timer.Chan():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// dispatch routes the action directly, or through the effect queue when
// the step asks for a delay, retry, or latest-only key.
func (r *Runner) dispatch(st *store.Store[State], step *config.Step, action rex.Action) {
	ac := step.Action
	delay := ac.GetDelay()
	if delay == 0 && ac.Retry == nil && ac.Key == "" {
		st.Dispatch(action)
		return
	}

	var eff effect.Effect
	if delay > 0 {
		eff = effect.Delayed(action, delay)
	} else {
		eff = effect.Just(action)
	}
	if ac.Retry != nil {
		eff = effect.Retry(eff, ac.EffectRetryConfig())
	}
	eff = effect.WithName(step.InternalID, eff)
	if ac.Key != "" {
		eff = effect.Keyed(ac.Key, eff)
	}
	st.Dispatch(RunEffectAction{Effect: eff})
}
