// Package effect defines the deferred unit of asynchronous work scheduled by
// the store's effect queue. An Effect, when run, may call back into the
// runtime with zero or more follow-up actions through its Emitter; it never
// sees the store directly.
package effect

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pelagornis/go-rex/internal/retry"
)

// Operation is the body of an Effect. It may perform I/O, timers, delays, or
// pure computation, and communicates results solely by calling em.Send zero
// or more times. Operations must honor ctx at their suspension points;
// cancellation is cooperative.
type Operation func(ctx context.Context, em *Emitter) error

// Effect is a deferred operation plus an optional label and latest-only key.
// Effects are values: copying is cheap and safe, and a completed or
// cancelled effect is simply discarded.
type Effect struct {
	name string
	key  string
	op   Operation
}

// None is the identity effect: running it emits nothing and returns nil.
var None = Effect{}

// New builds an Effect from an operation.
func New(op Operation) Effect {
	return Effect{op: op}
}

// Named builds an Effect carrying a label used in logs, events, and traces.
func Named(name string, op Operation) Effect {
	return Effect{name: name, op: op}
}

// Keyed returns a copy of e tagged with a latest-only key. Under the
// latestOnly queue strategy, submitting a keyed effect cancels any running
// effect previously registered under the same key.
func Keyed(key string, e Effect) Effect {
	e.key = key
	return e
}

// WithName returns a copy of e carrying the given label.
func WithName(name string, e Effect) Effect {
	e.name = name
	return e
}

// Name returns the effect's label, or "" if it has none.
func (e Effect) Name() string { return e.name }

// Key returns the effect's latest-only key, or "" if it is unkeyed.
func (e Effect) Key() string { return e.key }

// IsNone reports whether the effect carries no operation.
func (e Effect) IsNone() bool { return e.op == nil }

// Run invokes the effect's operation with the given emitter. Running None
// is a no-op. The error return is informational for the scheduler; effect
// failures are contained there and never reach dispatch callers.
func (e Effect) Run(ctx context.Context, em *Emitter) error {
	if e.op == nil {
		return nil
	}
	return e.op(ctx, em)
}

// Emitter is the callback handle passed to a running effect. It wraps the
// "dispatch an action" capability and the clock effects wait on, so that
// time-based combinators are testable with a fake clock.
type Emitter struct {
	send  func(action interface{})
	clock clockwork.Clock
}

// NewEmitter binds an emitter to a dispatch callback. A nil clock selects
// the real clock.
func NewEmitter(send func(action interface{}), clock clockwork.Clock) *Emitter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Emitter{send: send, clock: clock}
}

// Send dispatches a follow-up action. Safe to call any number of times,
// including zero.
func (em *Emitter) Send(action interface{}) {
	if em.send != nil {
		em.send(action)
	}
}

// Clock returns the clock the emitter was bound with.
func (em *Emitter) Clock() clockwork.Clock { return em.clock }

// sleep waits d on the emitter's clock, returning early with ctx.Err when
// the context is cancelled.
func (em *Emitter) sleep(ctx context.Context, d time.Duration) error {
	timer := em.clock.NewTimer(d)
	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}
}

// Just sends exactly one action immediately.
func Just(action interface{}) Effect {
	return Effect{op: func(ctx context.Context, em *Emitter) error {
		em.Send(action)
		return nil
	}}
}

// Many sends the given actions in order.
func Many(actions ...interface{}) Effect {
	if len(actions) == 0 {
		return None
	}
	return Effect{op: func(ctx context.Context, em *Emitter) error {
		for _, a := range actions {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			em.Send(a)
		}
		return nil
	}}
}

// Combine runs the given sub-effects concurrently and waits for all of them.
// There is no ordering guarantee between their sends. Errors from the
// sub-effects are joined.
func Combine(effects ...Effect) Effect {
	if len(effects) == 0 {
		return None
	}
	return Effect{op: func(ctx context.Context, em *Emitter) error {
		var wg sync.WaitGroup
		errs := make([]error, len(effects))
		for i, sub := range effects {
			if sub.IsNone() {
				continue
			}
			wg.Add(1)
			go func(i int, sub Effect) {
				defer wg.Done()
				errs[i] = sub.Run(ctx, em)
			}(i, sub)
		}
		wg.Wait()
		return errors.Join(errs...)
	}}
}

// Delayed sends the action after d has elapsed on the emitter's clock. The
// wait is a suspension point: it blocks only the effect's own goroutine and
// ends early if the effect is cancelled.
func Delayed(action interface{}, d time.Duration) Effect {
	return Effect{op: func(ctx context.Context, em *Emitter) error {
		if err := em.sleep(ctx, d); err != nil {
			return err
		}
		em.Send(action)
		return nil
	}}
}

// RetryConfig controls the Retry combinators.
type RetryConfig struct {
	// Attempts is the maximum number of invocations, including the first.
	Attempts int
	// Delay is the base wait between attempts.
	Delay time.Duration
	// MaxDelay caps the grown delay; zero means uncapped.
	MaxDelay time.Duration
	// BackoffFactor multiplies the delay after each failed attempt.
	// Values below 1.0 mean constant delay.
	BackoffFactor float64
	// Jitter randomizes each delay by up to the given fraction in [0, 1].
	Jitter float64
}

func (c RetryConfig) internal() retry.Config {
	return retry.Config{
		Attempts:      c.Attempts,
		Delay:         c.Delay,
		MaxDelay:      c.MaxDelay,
		BackoffFactor: c.BackoffFactor,
		Jitter:        c.Jitter,
	}
}

// Retry re-invokes the wrapped effect until it succeeds or cfg.Attempts is
// exhausted, waiting cfg.Delay (with backoff and jitter) between attempts.
// After exhaustion the last error is returned to the scheduler.
func Retry(e Effect, cfg RetryConfig) Effect {
	return Effect{name: e.name, key: e.key, op: func(ctx context.Context, em *Emitter) error {
		return retry.Do(ctx, em.clock, cfg.internal(), func(opCtx context.Context) error {
			return e.Run(opCtx, em)
		})
	}}
}

// RetryWithErrorAction behaves like Retry but translates final failure into
// an ordinary action: after exhausting attempts it sends onError(err) and
// reports success to the scheduler. This is the supported path for
// applications that want error visibility through their reducer.
func RetryWithErrorAction(e Effect, cfg RetryConfig, onError func(error) interface{}) Effect {
	return Effect{name: e.name, key: e.key, op: func(ctx context.Context, em *Emitter) error {
		err := retry.Do(ctx, em.clock, cfg.internal(), func(opCtx context.Context) error {
			return e.Run(opCtx, em)
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			// Cancelled effects stop emitting; cancellation is not an error.
			return ctx.Err()
		}
		if onError != nil {
			em.Send(onError(err))
		}
		return nil
	}}
}

// Repeating re-invokes the wrapped effect at a fixed interval. A times
// value of zero or below repeats until the effect is cancelled. The first
// invocation happens immediately; each subsequent one after interval
// elapses on the emitter's clock.
func Repeating(e Effect, interval time.Duration, times int) Effect {
	return Effect{name: e.name, key: e.key, op: func(ctx context.Context, em *Emitter) error {
		for i := 0; times <= 0 || i < times; i++ {
			if i > 0 {
				if err := em.sleep(ctx, interval); err != nil {
					return err
				}
			}
			if err := e.Run(ctx, em); err != nil {
				return err
			}
		}
		return nil
	}}
}
