// Package v1 defines the public contracts of the go-rex runtime: the store
// interface, the reducer and middleware contracts consumed by it, and the
// effect scheduling strategy recognized at store construction.
package v1

import (
	"context"
	"reflect"

	"github.com/pelagornis/go-rex/pkg/rex/v1/effect"
	rexerrors "github.com/pelagornis/go-rex/pkg/rex/v1/errors"
)

// Action is an opaque, application-defined, immutable value describing an
// intent or event. Actions are consumed exactly once by the reducer (and by
// every middleware in the chain) per dispatch and are not retained after
// processing.
type Action = interface{}

// Reducer is the single authority for state transitions. Reduce must be
// deterministic and side-effect-free aside from producing the new state; it
// must not block. It may return effects to be scheduled after commit.
type Reducer[S any] interface {
	Reduce(state S, action Action) (S, []effect.Effect)
}

// ReducerFunc adapts a plain function to the Reducer interface.
type ReducerFunc[S any] func(state S, action Action) (S, []effect.Effect)

func (f ReducerFunc[S]) Reduce(state S, action Action) (S, []effect.Effect) {
	return f(state, action)
}

// Middleware observes (state, action) pairs before reduction and may
// produce additional effects or trigger further dispatch cycles via emit.
// It never mutates state directly. Process is called with the same
// pre-reduction snapshot for every middleware in a chain.
type Middleware[S any] interface {
	Process(ctx context.Context, state S, action Action, emit func(Action)) []effect.Effect
}

// MiddlewareFunc adapts a plain function to the Middleware interface.
type MiddlewareFunc[S any] func(ctx context.Context, state S, action Action, emit func(Action)) []effect.Effect

func (f MiddlewareFunc[S]) Process(ctx context.Context, state S, action Action, emit func(Action)) []effect.Effect {
	return f(ctx, state, action, emit)
}

// Subscriber receives every committed state. Handlers are invoked in
// subscription order on the store's processing goroutine, so they must be
// fast and must not mutate the state they receive.
type Subscriber[S any] func(state S)

// EffectStrategy selects how the effect queue schedules submitted effects.
// It is fixed per store instance.
type EffectStrategy string

const (
	// EffectConcurrent starts every submitted effect immediately,
	// independent of others. This is the default.
	EffectConcurrent EffectStrategy = "concurrent"
	// EffectSequential runs effects one at a time in submission order.
	EffectSequential EffectStrategy = "sequential"
	// EffectLatestOnly keeps at most one live effect per key, cancelling
	// the previous holder before starting a newly submitted one. Unkeyed
	// submissions behave like EffectConcurrent.
	EffectLatestOnly EffectStrategy = "latestOnly"
)

// ParseEffectStrategy converts a configuration string into an
// EffectStrategy. The empty string selects EffectConcurrent.
func ParseEffectStrategy(s string) (EffectStrategy, error) {
	switch EffectStrategy(s) {
	case "":
		return EffectConcurrent, nil
	case EffectConcurrent, EffectSequential, EffectLatestOnly:
		return EffectStrategy(s), nil
	default:
		return "", rexerrors.NewConfigError("unknown effect strategy '"+s+"'", nil)
	}
}

// StoreV1 is the public interface of the dispatch pipeline.
type StoreV1[S any] interface {
	// Dispatch submits an action for processing and returns immediately.
	// Actions are processed FIFO relative to other Dispatch calls issued
	// from the same calling context; reentrant dispatch (from an effect,
	// a middleware's emit, or a subscriber) queues behind in-flight work.
	Dispatch(action Action)

	// Subscribe registers a handler for every future committed state and
	// immediately invokes it once with the current state. The returned
	// function removes the subscription.
	Subscribe(fn Subscriber[S]) (cancel func())

	// State returns the current committed state.
	State() S

	// Undo, Redo, and JumpTo navigate the time-travel history when it is
	// enabled. A successful navigation commits the historical snapshot and
	// notifies subscribers like a normal dispatch-driven commit; a failed
	// one is a no-op returning false.
	Undo() bool
	Redo() bool
	JumpTo(index int) bool

	// CancelEffects requests cancellation of every in-flight effect and
	// clears the queue's tracking state.
	CancelEffects()

	// Close drains queued actions, stops the processing loop, cancels
	// in-flight effects, and removes all subscribers.
	Close() error
}

// ComposeReducers folds state through the given reducers in order,
// concatenating their effects.
func ComposeReducers[S any](reducers ...Reducer[S]) Reducer[S] {
	return ReducerFunc[S](func(state S, action Action) (S, []effect.Effect) {
		var effects []effect.Effect
		for _, r := range reducers {
			var fx []effect.Effect
			state, fx = r.Reduce(state, action)
			effects = append(effects, fx...)
		}
		return state, effects
	})
}

// FirstMatch runs the given reducers in order and short-circuits at the
// first one whose output is non-empty: a changed state or a non-empty
// effect list. If no reducer matches, the state is returned unchanged.
func FirstMatch[S any](reducers ...Reducer[S]) Reducer[S] {
	return ReducerFunc[S](func(state S, action Action) (S, []effect.Effect) {
		for _, r := range reducers {
			next, fx := r.Reduce(state, action)
			if len(fx) > 0 || !reflect.DeepEqual(state, next) {
				return next, fx
			}
		}
		return state, nil
	})
}
