// Package store implements the dispatch pipeline: a single-owner mailbox
// serializes action processing, the reducer commits new state, collected
// effects go to the effect queue, and subscribers observe every commit.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	rex "github.com/pelagornis/go-rex/pkg/rex/v1"
	"github.com/pelagornis/go-rex/pkg/rex/v1/effect"
	rexerrors "github.com/pelagornis/go-rex/pkg/rex/v1/errors"
	"github.com/pelagornis/go-rex/pkg/rex/v1/events"
	rexlog "github.com/pelagornis/go-rex/pkg/rex/v1/log"
	rexmetrics "github.com/pelagornis/go-rex/pkg/rex/v1/metrics"
	rextracing "github.com/pelagornis/go-rex/pkg/rex/v1/tracing"

	"github.com/pelagornis/go-rex/internal/effectqueue"
	intEvents "github.com/pelagornis/go-rex/internal/events"
	intLogger "github.com/pelagornis/go-rex/internal/logger"
)

const instrumentationName = "github.com/pelagornis/go-rex"

// Option configures a Store during construction.
type Option[S any] func(*Store[S])

// WithMiddleware appends middlewares to the chain, in argument order. The
// chain order is fixed for the store's lifetime.
func WithMiddleware[S any](mw ...rex.Middleware[S]) Option[S] {
	return func(s *Store[S]) {
		s.middlewares = append(s.middlewares, mw...)
	}
}

// WithEffectStrategy selects the effect queue's scheduling strategy. The
// default is rex.EffectConcurrent.
func WithEffectStrategy[S any](strategy rex.EffectStrategy) Option[S] {
	return func(s *Store[S]) {
		s.strategy = strategy
	}
}

// WithTimeTravel enables the history buffer and the Undo, Redo, and
// JumpTo controls.
func WithTimeTravel[S any]() Option[S] {
	return func(s *Store[S]) {
		s.timeTravel = true
	}
}

// WithEventBus routes runtime events through the given bus instead of the
// no-op default.
func WithEventBus[S any](bus events.Bus) Option[S] {
	return func(s *Store[S]) {
		s.bus = bus
	}
}

// WithLogger sets the store's logger.
func WithLogger[S any](log rexlog.Logger) Option[S] {
	return func(s *Store[S]) {
		s.log = log
	}
}

// WithClock injects the clock used for event timestamps, delay-based
// effects, and retry backoff. Tests inject a fake clock here.
func WithClock[S any](clock clockwork.Clock) Option[S] {
	return func(s *Store[S]) {
		s.clock = clock
	}
}

// WithMetricsRegistryProvider registers the store's and the effect
// queue's collectors on the provider's registry.
func WithMetricsRegistryProvider[S any](provider rexmetrics.RegistryProvider) Option[S] {
	return func(s *Store[S]) {
		s.metricsProvider = provider
	}
}

// WithTracerProvider enables per-dispatch and per-effect spans.
func WithTracerProvider[S any](provider rextracing.TracerProvider) Option[S] {
	return func(s *Store[S]) {
		s.tracerProvider = provider
	}
}

// Store is the orchestrator of the unidirectional data flow. It owns the
// current state, the reducer, the middleware chain, the effect queue, and
// optionally a time-travel history.
//
// Dispatched actions are appended to a mailbox and drained by a single
// processing goroutine, so two dispatch cycles never interleave their
// read-modify-write of state.
type Store[S any] struct {
	log   rexlog.Logger
	bus   events.Bus
	clock clockwork.Clock

	reducer     rex.Reducer[S]
	middlewares []rex.Middleware[S]
	strategy    rex.EffectStrategy
	queue       *effectqueue.Queue

	timeTravel bool
	history    *History[S]

	metricsProvider rexmetrics.RegistryProvider
	tracerProvider  rextracing.TracerProvider
	tracer          oteltrace.Tracer

	// procMu guards state, history, and the subscriber list. Commits and
	// subscriber notifications happen under it, which is what makes
	// notification N observable before commit N+1.
	procMu sync.Mutex
	state  S
	subs   subscriberList[S]

	mailMu  sync.Mutex
	mail    []rex.Action
	closing bool
	wake    chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	loopDone  chan struct{}
	closeOnce sync.Once

	actionsCounter   prometheus.Counter
	dispatchDuration prometheus.Histogram
	subscribersGauge prometheus.Gauge
}

var _ rex.StoreV1[int] = (*Store[int])(nil)

// New creates a Store holding initialState and starts its processing
// goroutine. The reducer is required. Callers must Close the store when
// done with it.
func New[S any](initialState S, reducer rex.Reducer[S], opts ...Option[S]) (*Store[S], error) {
	if reducer == nil {
		return nil, rexerrors.NewConfigError("store requires a reducer", nil)
	}

	s := &Store[S]{
		state:    initialState,
		reducer:  reducer,
		strategy: rex.EffectConcurrent,
		wake:     make(chan struct{}, 1),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = intLogger.NewDefaultLogger("info")
	}
	s.log = s.log.With("component", "Store")
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.bus == nil {
		s.bus = intEvents.NewNoOpEventBus()
	}

	switch s.strategy {
	case rex.EffectConcurrent, rex.EffectSequential, rex.EffectLatestOnly:
	default:
		return nil, rexerrors.NewConfigError(fmt.Sprintf("unknown effect strategy '%s'", s.strategy), nil)
	}
	s.queue = effectqueue.New(s.strategy, s.log, s.bus, s.clock)

	if s.timeTravel {
		s.history = NewHistory(initialState)
	}
	if s.metricsProvider != nil {
		if reg := s.metricsProvider.Registry(); reg != nil {
			s.initMetrics(reg)
			s.queue.RegisterMetrics(reg)
		}
	}
	if s.tracerProvider != nil {
		s.tracer = s.tracerProvider.GetTracer(instrumentationName)
		s.queue.SetTracer(s.tracer)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	go s.loop()

	s.log.Debugf("Store started with strategy '%s', %d middleware(s), time travel %t",
		s.strategy, len(s.middlewares), s.timeTravel)
	return s, nil
}

func (s *Store[S]) initMetrics(reg *prometheus.Registry) {
	s.actionsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rex_store_actions_processed_total", Help: "Total number of actions run through the dispatch pipeline."},
	)
	reg.MustRegister(s.actionsCounter)

	s.dispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rex_store_dispatch_duration_seconds",
			Help:    "Duration of one dispatch cycle: middleware, reduce, commit, schedule, notify.",
			Buckets: prometheus.DefBuckets,
		},
	)
	reg.MustRegister(s.dispatchDuration)

	s.subscribersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "rex_store_subscribers", Help: "Number of registered state subscribers."},
	)
	reg.MustRegister(s.subscribersGauge)
}

// Dispatch submits an action for processing and returns immediately.
// Actions queue FIFO; reentrant dispatch from an effect, a middleware's
// emit, or a subscriber enters at the tail of the queue. Dispatching to a
// closed store drops the action.
func (s *Store[S]) Dispatch(action rex.Action) {
	s.mailMu.Lock()
	if s.closing {
		s.mailMu.Unlock()
		s.log.Debugf("Dropping action dispatched after close: %T", action)
		return
	}
	s.mail = append(s.mail, action)
	s.mailMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	s.bus.Emit(events.Event{
		Type:       events.ActionDispatched,
		Timestamp:  s.clock.Now(),
		ActionName: fmt.Sprintf("%T", action),
	})
}

// loop is the single owner of the dispatch pipeline. It drains the
// mailbox in FIFO order until the store is closed, then drains whatever
// was queued before close and exits.
func (s *Store[S]) loop() {
	defer close(s.loopDone)
	for {
		for {
			action, ok := s.take()
			if !ok {
				break
			}
			s.process(action)
		}

		select {
		case <-s.wake:
		case <-s.ctx.Done():
			for {
				action, ok := s.take()
				if !ok {
					return
				}
				s.process(action)
			}
		}
	}
}

func (s *Store[S]) take() (rex.Action, bool) {
	s.mailMu.Lock()
	defer s.mailMu.Unlock()
	if len(s.mail) == 0 {
		return nil, false
	}
	action := s.mail[0]
	s.mail = s.mail[1:]
	return action, true
}

// flushRequest is an internal mailbox entry marking a Flush call's place
// in the FIFO order.
type flushRequest struct{ done chan struct{} }

// Flush blocks until every action dispatched before the call has been
// processed. Returns immediately on a closed store.
func (s *Store[S]) Flush() {
	fr := flushRequest{done: make(chan struct{})}
	s.mailMu.Lock()
	if s.closing {
		s.mailMu.Unlock()
		return
	}
	s.mail = append(s.mail, fr)
	s.mailMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	<-fr.done
}

// process runs one full dispatch cycle: snapshot, middleware chain,
// reduce, record, commit, schedule effects, notify subscribers.
func (s *Store[S]) process(action rex.Action) {
	if fr, ok := action.(flushRequest); ok {
		close(fr.done)
		return
	}
	actionName := fmt.Sprintf("%T", action)
	start := s.clock.Now()

	ctx := s.ctx
	var span oteltrace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, "rex.store.process", oteltrace.WithAttributes(
			attribute.String("rex.action.type", actionName),
		))
		defer span.End()
	}

	s.procMu.Lock()
	defer s.procMu.Unlock()

	// Every middleware observes the same pre-reduction snapshot; state
	// changes they cause via emit queue behind this cycle.
	snapshot := s.state
	var fx []effect.Effect
	for _, mw := range s.middlewares {
		fx = append(fx, mw.Process(ctx, snapshot, action, s.Dispatch)...)
	}

	next, reducerFx := s.reducer.Reduce(snapshot, action)
	fx = append(fx, reducerFx...)

	if s.history != nil {
		s.history.Record(next)
	}
	s.state = next

	// Middleware effects were collected first, so they are submitted
	// before reducer effects.
	for _, e := range fx {
		s.queue.Submit(e, s.Dispatch)
	}

	if s.actionsCounter != nil {
		s.actionsCounter.Inc()
	}
	if s.dispatchDuration != nil {
		s.dispatchDuration.Observe(s.clock.Since(start).Seconds())
	}
	if span != nil {
		span.SetAttributes(attribute.Int("rex.effects.submitted", len(fx)))
	}

	s.bus.Emit(events.Event{
		Type:       events.StateCommitted,
		Timestamp:  s.clock.Now(),
		ActionName: actionName,
	})
	s.subs.notify(next)
}

// Subscribe registers fn for every future committed state and immediately
// invokes it once with the current state, so late subscribers are not
// blind to it. The returned function removes the subscription; calling it
// more than once is safe.
//
// Handlers run on the store's processing goroutine. They may Dispatch,
// but must not call Subscribe or a navigation method from inside a
// notification.
func (s *Store[S]) Subscribe(fn rex.Subscriber[S]) func() {
	if fn == nil {
		return func() {}
	}

	s.procMu.Lock()
	id := s.subs.add(fn)
	if s.subscribersGauge != nil {
		s.subscribersGauge.Inc()
	}
	fn(s.state)
	s.procMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.procMu.Lock()
			if s.subs.remove(id) && s.subscribersGauge != nil {
				s.subscribersGauge.Dec()
			}
			s.procMu.Unlock()
		})
	}
}

// State returns the current committed state.
func (s *Store[S]) State() S {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	return s.state
}

// Undo steps the history cursor back and commits that snapshot. It
// returns false, changing nothing, when time travel is disabled or the
// cursor is at the beginning.
func (s *Store[S]) Undo() bool {
	return s.navigate("undo", func(h *History[S]) (S, error) { return h.Undo() })
}

// Redo steps the history cursor forward and commits that snapshot. It
// returns false, changing nothing, when time travel is disabled or there
// is nothing to redo.
func (s *Store[S]) Redo() bool {
	return s.navigate("redo", func(h *History[S]) (S, error) { return h.Redo() })
}

// JumpTo moves the history cursor to index and commits that snapshot. It
// returns false, changing nothing, when time travel is disabled or index
// is out of bounds.
func (s *Store[S]) JumpTo(index int) bool {
	return s.navigate("jump", func(h *History[S]) (S, error) { return h.JumpTo(index) })
}

// navigate commits a historical snapshot under the processing lock, so
// navigation never interleaves with an in-flight dispatch cycle. The
// reducer does not run; subscribers are notified as for a normal commit.
func (s *Store[S]) navigate(op string, move func(*History[S]) (S, error)) bool {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	if s.history == nil {
		s.log.Debugf("Time travel is not enabled; %s ignored", op)
		return false
	}
	state, err := move(s.history)
	if err != nil {
		s.log.Debugf("History navigation rejected: %v", err)
		return false
	}

	s.state = state
	s.bus.Emit(events.Event{
		Type:      events.HistoryNavigated,
		Timestamp: s.clock.Now(),
		Payload: map[string]interface{}{
			"op":     op,
			"cursor": s.history.Cursor(),
			"length": s.history.Len(),
		},
	})
	s.subs.notify(state)
	return true
}

// CancelEffects requests cancellation of every in-flight effect and
// clears the queue's tracking state.
func (s *Store[S]) CancelEffects() {
	s.queue.CancelAll()
}

// EffectsIdle blocks until every submitted effect task has finished.
// Intended for tests and orderly shutdown of callers that need effect
// completion guarantees.
func (s *Store[S]) EffectsIdle() {
	s.queue.Wait()
}

// Close stops accepting dispatches, drains actions queued before the
// call, cancels in-flight effects, and removes all subscribers. Close is
// idempotent.
func (s *Store[S]) Close() error {
	s.closeOnce.Do(func() {
		s.mailMu.Lock()
		s.closing = true
		s.mailMu.Unlock()

		s.cancel()
		<-s.loopDone
		s.queue.Close()

		s.procMu.Lock()
		if s.subscribersGauge != nil {
			for i := 0; i < s.subs.len(); i++ {
				s.subscribersGauge.Dec()
			}
		}
		s.subs.clear()
		s.procMu.Unlock()

		s.bus.Emit(events.Event{Type: events.StoreClosed, Timestamp: s.clock.Now()})
		s.log.Debugf("Store closed")
	})
	return nil
}
