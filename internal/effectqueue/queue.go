// Package effectqueue schedules and tracks in-flight effects on behalf of
// the store, under one of three strategies: concurrent, sequential, or
// latest-only-per-key.
package effectqueue

import (
	"context"
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	codes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	rex "github.com/pelagornis/go-rex/pkg/rex/v1"
	"github.com/pelagornis/go-rex/pkg/rex/v1/effect"
	rexerrors "github.com/pelagornis/go-rex/pkg/rex/v1/errors"
	"github.com/pelagornis/go-rex/pkg/rex/v1/events"
	rexlog "github.com/pelagornis/go-rex/pkg/rex/v1/log"

	intTracing "github.com/pelagornis/go-rex/internal/tracing"
)

// task is one submitted effect's lifecycle handle. done closes when the
// task's goroutine returns, whether the effect completed, failed, or was
// cancelled; the sequential strategy chains on it.
type task struct {
	eff    effect.Effect
	cancel context.CancelFunc
	done   chan struct{}
}

// Queue runs submitted effects under a fixed strategy. Effect failures are
// contained here: they are logged and published on the event bus, never
// propagated to dispatch callers.
type Queue struct {
	strategy rex.EffectStrategy
	log      rexlog.Logger
	bus      events.Bus
	clock    clockwork.Clock
	tracer   oteltrace.Tracer

	mu     sync.Mutex
	prev   chan struct{}          // done channel of the previously submitted task (sequential)
	keyed  map[string]*task       // latestOnly registry: at most one live task per key
	tasks  map[*task]struct{}     // every in-flight task
	closed bool
	wg     sync.WaitGroup

	activeGauge     prometheus.Gauge
	outcomesCounter *prometheus.CounterVec
}

// New creates a Queue. The logger is required; a nil bus falls back to a
// no-op publisher and a nil clock to the real clock.
func New(strategy rex.EffectStrategy, log rexlog.Logger, bus events.Bus, clock clockwork.Clock) *Queue {
	if log == nil {
		panic("effectqueue.New requires a non-nil logger")
	}
	if bus == nil {
		bus = noopBus{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if strategy == "" {
		strategy = rex.EffectConcurrent
	}
	return &Queue{
		strategy: strategy,
		log:      log.With("component", "EffectQueue"),
		bus:      bus,
		clock:    clock,
		keyed:    make(map[string]*task),
		tasks:    make(map[*task]struct{}),
	}
}

// SetTracer enables per-effect spans. A nil tracer disables them.
func (q *Queue) SetTracer(tracer oteltrace.Tracer) {
	q.tracer = tracer
}

// RegisterMetrics creates and registers the queue's collectors.
func (q *Queue) RegisterMetrics(reg *prometheus.Registry) {
	if reg == nil {
		return
	}
	q.activeGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "rex_effect_queue_active_tasks", Help: "Number of effect tasks currently running."},
	)
	reg.MustRegister(q.activeGauge)

	q.outcomesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rex_effect_queue_tasks_total", Help: "Total number of effect tasks by final outcome."},
		[]string{"outcome"},
	)
	reg.MustRegister(q.outcomesCounter)
}

// Strategy returns the queue's fixed scheduling strategy.
func (q *Queue) Strategy() rex.EffectStrategy {
	return q.strategy
}

// Submit schedules the effect. Submission order is preserved; the strategy
// determines execution order. send is the dispatch callback follow-up
// actions flow through; the queue drops sends issued after the task was
// cancelled, so a replaced latestOnly effect cannot emit stale actions.
//
// Submitting to a closed queue, or submitting effect.None, is a no-op.
func (q *Queue) Submit(eff effect.Effect, send func(action interface{})) {
	if eff.IsNone() {
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(context.Background())
	t := &task{eff: eff, cancel: cancel, done: make(chan struct{})}

	var waitFor chan struct{}
	switch q.strategy {
	case rex.EffectSequential:
		waitFor = q.prev
		q.prev = t.done
	case rex.EffectLatestOnly:
		if key := eff.Key(); key != "" {
			if old, ok := q.keyed[key]; ok {
				old.cancel()
			}
			q.keyed[key] = t
		}
	}
	q.tasks[t] = struct{}{}
	q.wg.Add(1)
	q.mu.Unlock()

	q.emit(events.EffectScheduled, eff, nil)
	go q.run(runCtx, t, waitFor, send)
}

func (q *Queue) run(ctx context.Context, t *task, waitFor chan struct{}, send func(action interface{})) {
	defer q.wg.Done()
	defer close(t.done)
	defer q.forget(t)

	if waitFor != nil {
		select {
		case <-waitFor:
		case <-ctx.Done():
			q.finish(t.eff, ctx.Err())
			return
		}
	}
	if ctx.Err() != nil {
		// Replaced or cancelled before it ever started.
		q.finish(t.eff, ctx.Err())
		return
	}

	if q.activeGauge != nil {
		q.activeGauge.Inc()
		defer q.activeGauge.Dec()
	}

	var span oteltrace.Span
	if q.tracer != nil {
		_, span = q.tracer.Start(ctx, "rex.effect.run", oteltrace.WithAttributes(
			attribute.String("rex.effect.name", t.eff.Name()),
			attribute.String("rex.effect.key", t.eff.Key()),
		))
		defer span.End()
	}

	q.emit(events.EffectStarted, t.eff, nil)

	guardedSend := func(action interface{}) {
		if ctx.Err() == nil && send != nil {
			send(action)
		}
	}
	em := effect.NewEmitter(guardedSend, q.clock)
	err := t.eff.Run(ctx, em)

	if span != nil {
		if err != nil && !errors.Is(err, context.Canceled) {
			intTracing.RecordError(span, err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
	q.finish(t.eff, err)
}

// finish classifies the task outcome and reports it.
func (q *Queue) finish(eff effect.Effect, err error) {
	switch {
	case err == nil:
		q.count("completed")
		q.emit(events.EffectCompleted, eff, nil)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Cancellation is not an error; the effect simply stops emitting.
		q.count("cancelled")
		q.emit(events.EffectCancelled, eff, nil)
	default:
		wrapped := rexerrors.NewEffectError(eff.Name(), err)
		q.log.Errorf("Effect task failed: %v", wrapped)
		q.count("failed")
		q.emit(events.EffectFailed, eff, wrapped)
	}
}

func (q *Queue) forget(t *task) {
	q.mu.Lock()
	delete(q.tasks, t)
	if key := t.eff.Key(); key != "" && q.keyed[key] == t {
		delete(q.keyed, key)
	}
	q.mu.Unlock()
}

func (q *Queue) count(outcome string) {
	if q.outcomesCounter != nil {
		q.outcomesCounter.WithLabelValues(outcome).Inc()
	}
}

func (q *Queue) emit(eventType events.EventType, eff effect.Effect, err error) {
	payload := map[string]interface{}{}
	if key := eff.Key(); key != "" {
		payload["key"] = key
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	if len(payload) == 0 {
		payload = nil
	}
	q.bus.Emit(events.Event{
		Type:       eventType,
		Timestamp:  q.clock.Now(),
		EffectName: eff.Name(),
		Payload:    payload,
	})
}

// CancelAll requests cancellation of every tracked task and clears all
// tracking state. Cancellation is cooperative: running effect bodies
// observe it at their next suspension point.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	for t := range q.tasks {
		t.cancel()
	}
	q.tasks = make(map[*task]struct{})
	q.keyed = make(map[string]*task)
	q.prev = nil
	q.mu.Unlock()
}

// Wait blocks until every submitted task's goroutine has returned.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Close cancels all in-flight tasks, rejects further submissions, and
// waits for task goroutines to drain.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.CancelAll()
	q.wg.Wait()
}

// noopBus is the fallback publisher when no event bus is configured.
type noopBus struct{}

func (noopBus) Emit(events.Event) {}
func (noopBus) Subscribe(events.Handler) func() {
	return func() {}
}

var _ events.Bus = noopBus{}
