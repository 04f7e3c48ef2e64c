package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rex "github.com/pelagornis/go-rex/pkg/rex/v1"
	"github.com/pelagornis/go-rex/pkg/rex/v1/effect"
	"github.com/pelagornis/go-rex/pkg/rex/v1/store"
)

type counterAction struct{ delta int }

func counterReducer() rex.Reducer[int] {
	return rex.ReducerFunc[int](func(state int, action rex.Action) (int, []effect.Effect) {
		if a, ok := action.(counterAction); ok {
			return state + a.delta, nil
		}
		return state, nil
	})
}

// recorder collects subscriber notifications across goroutines.
type recorder[S any] struct {
	mu     sync.Mutex
	values []S
}

func (r *recorder[S]) record(state S) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, state)
}

func (r *recorder[S]) snapshot() []S {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]S, len(r.values))
	copy(out, r.values)
	return out
}

func TestDispatchSerialization(t *testing.T) {
	s, err := store.New(0, counterReducer())
	require.NoError(t, err)
	defer s.Close()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Dispatch(counterAction{delta: 1})
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return s.State() == n },
		5*time.Second, time.Millisecond, "every concurrent dispatch must be applied exactly once")
}

func TestRoundTripCounter(t *testing.T) {
	s, err := store.New(0, counterReducer())
	require.NoError(t, err)
	defer s.Close()

	rec := &recorder[int]{}
	s.Subscribe(rec.record)

	for i := 0; i < 3; i++ {
		s.Dispatch(counterAction{delta: 1})
	}
	require.Eventually(t, func() bool { return s.State() == 3 }, 5*time.Second, time.Millisecond)

	assert.Equal(t, []int{0, 1, 2, 3}, rec.snapshot(),
		"subscriber sees the current state on registration, then every commit in order")
}

func TestSubscribeImmediate(t *testing.T) {
	s, err := store.New(42, counterReducer())
	require.NoError(t, err)
	defer s.Close()

	rec := &recorder[int]{}
	s.Subscribe(rec.record)

	values := rec.snapshot()
	require.Len(t, values, 1)
	assert.Equal(t, 42, values[0])
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s, err := store.New(0, counterReducer())
	require.NoError(t, err)
	defer s.Close()

	rec := &recorder[int]{}
	cancel := s.Subscribe(rec.record)

	s.Dispatch(counterAction{delta: 1})
	require.Eventually(t, func() bool { return s.State() == 1 }, 5*time.Second, time.Millisecond)

	cancel()
	cancel() // safe to call twice

	s.Dispatch(counterAction{delta: 1})
	require.Eventually(t, func() bool { return s.State() == 2 }, 5*time.Second, time.Millisecond)

	assert.Equal(t, []int{0, 1}, rec.snapshot())
}

func TestMiddlewareObservesPreReductionSnapshot(t *testing.T) {
	seen := &recorder[int]{}
	mw := rex.MiddlewareFunc[int](func(_ context.Context, state int, _ rex.Action, _ func(rex.Action)) []effect.Effect {
		seen.record(state)
		return nil
	})

	s, err := store.New(0, counterReducer(), store.WithMiddleware[int](mw))
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 3; i++ {
		s.Dispatch(counterAction{delta: 1})
	}
	require.Eventually(t, func() bool { return s.State() == 3 }, 5*time.Second, time.Millisecond)

	assert.Equal(t, []int{0, 1, 2}, seen.snapshot(),
		"each middleware invocation sees the state as of dispatch start")
}

type markAction struct{ label string }

func appendReducer(onReduce []effect.Effect) rex.Reducer[[]string] {
	return rex.ReducerFunc[[]string](func(state []string, action rex.Action) ([]string, []effect.Effect) {
		if a, ok := action.(markAction); ok {
			next := append(append([]string(nil), state...), a.label)
			return next, nil
		}
		if _, ok := action.(counterAction); ok {
			return state, onReduce
		}
		return state, nil
	})
}

func TestMiddlewareEffectsSubmittedBeforeReducerEffects(t *testing.T) {
	markEffect := func(label string) effect.Effect {
		return effect.New(func(_ context.Context, em *effect.Emitter) error {
			em.Send(markAction{label: label})
			return nil
		})
	}

	mw := func(label string) rex.Middleware[[]string] {
		return rex.MiddlewareFunc[[]string](func(_ context.Context, _ []string, action rex.Action, _ func(rex.Action)) []effect.Effect {
			if _, ok := action.(counterAction); ok {
				return []effect.Effect{markEffect(label)}
			}
			return nil
		})
	}

	// The sequential strategy runs effects in submission order, making
	// the submission order observable through the marker actions.
	s, err := store.New(nil, appendReducer([]effect.Effect{markEffect("reducer")}),
		store.WithMiddleware[[]string](mw("m1"), mw("m2")),
		store.WithEffectStrategy[[]string](rex.EffectSequential),
	)
	require.NoError(t, err)
	defer s.Close()

	s.Dispatch(counterAction{delta: 1})

	require.Eventually(t, func() bool { return len(s.State()) == 3 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, []string{"m1", "m2", "reducer"}, s.State())
}

type chainAction struct{ n int }

func TestReentrantDispatchFromEffect(t *testing.T) {
	// Each reduction schedules an effect that dispatches the next action
	// until n reaches 3.
	reducer := rex.ReducerFunc[int](func(state int, action rex.Action) (int, []effect.Effect) {
		a, ok := action.(chainAction)
		if !ok {
			return state, nil
		}
		next := a.n
		if next >= 3 {
			return next, nil
		}
		return next, []effect.Effect{effect.Just(chainAction{n: next + 1})}
	})

	s, err := store.New(0, reducer)
	require.NoError(t, err)
	defer s.Close()

	s.Dispatch(chainAction{n: 1})
	require.Eventually(t, func() bool { return s.State() == 3 }, 5*time.Second, time.Millisecond)
}

func TestMiddlewareEmitQueuesBehindCurrentCycle(t *testing.T) {
	var emitted sync.Once
	mw := rex.MiddlewareFunc[int](func(_ context.Context, _ int, action rex.Action, emit func(rex.Action)) []effect.Effect {
		if a, ok := action.(counterAction); ok && a.delta == 1 {
			emitted.Do(func() { emit(counterAction{delta: 10}) })
		}
		return nil
	})

	s, err := store.New(0, counterReducer(), store.WithMiddleware[int](mw))
	require.NoError(t, err)
	defer s.Close()

	rec := &recorder[int]{}
	s.Subscribe(rec.record)

	s.Dispatch(counterAction{delta: 1})
	require.Eventually(t, func() bool { return s.State() == 11 }, 5*time.Second, time.Millisecond)

	assert.Equal(t, []int{0, 1, 11}, rec.snapshot(),
		"the emitted action commits after the cycle that emitted it")
}

func TestNavigationDisabledByDefault(t *testing.T) {
	s, err := store.New(0, counterReducer())
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, s.Undo())
	assert.False(t, s.Redo())
	assert.False(t, s.JumpTo(0))
	assert.Equal(t, 0, s.State())
}

func TestTimeTravelNavigation(t *testing.T) {
	s, err := store.New(0, counterReducer(), store.WithTimeTravel[int]())
	require.NoError(t, err)
	defer s.Close()

	rec := &recorder[int]{}
	s.Subscribe(rec.record)

	for i := 0; i < 3; i++ {
		s.Dispatch(counterAction{delta: 1})
	}
	require.Eventually(t, func() bool { return s.State() == 3 }, 5*time.Second, time.Millisecond)

	require.True(t, s.Undo())
	assert.Equal(t, 2, s.State())

	require.True(t, s.Redo())
	assert.Equal(t, 3, s.State())

	require.True(t, s.JumpTo(0))
	assert.Equal(t, 0, s.State())

	assert.False(t, s.JumpTo(99), "out-of-bounds jump is a no-op")
	assert.Equal(t, 0, s.State())

	assert.Equal(t, []int{0, 1, 2, 3, 2, 3, 0}, rec.snapshot(),
		"each successful navigation notifies subscribers like a commit")
}

func TestTimeTravelPruneOnWriteThroughStore(t *testing.T) {
	s, err := store.New(0, counterReducer(), store.WithTimeTravel[int]())
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 3; i++ {
		s.Dispatch(counterAction{delta: 1})
	}
	require.Eventually(t, func() bool { return s.State() == 3 }, 5*time.Second, time.Millisecond)

	require.True(t, s.Undo())
	require.True(t, s.Undo())
	require.Equal(t, 1, s.State())

	// Recording a new state from here discards the redoable branch.
	s.Dispatch(counterAction{delta: 100})
	require.Eventually(t, func() bool { return s.State() == 101 }, 5*time.Second, time.Millisecond)

	assert.False(t, s.Redo())
	require.True(t, s.Undo())
	assert.Equal(t, 1, s.State())
}

func TestCloseDropsLateDispatch(t *testing.T) {
	s, err := store.New(0, counterReducer())
	require.NoError(t, err)

	s.Dispatch(counterAction{delta: 1})
	require.Eventually(t, func() bool { return s.State() == 1 }, 5*time.Second, time.Millisecond)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	s.Dispatch(counterAction{delta: 1})
	assert.Equal(t, 1, s.State())
}

func TestFlushWaitsForQueuedActions(t *testing.T) {
	s, err := store.New(0, counterReducer())
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 10; i++ {
		s.Dispatch(counterAction{delta: 1})
	}
	s.Flush()
	assert.Equal(t, 10, s.State())

	s.Close()
	s.Flush() // returns immediately on a closed store
}

func TestNewRejectsMissingReducer(t *testing.T) {
	_, err := store.New[int](0, nil)
	require.Error(t, err)
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	_, err := store.New(0, counterReducer(), store.WithEffectStrategy[int]("bogus"))
	require.Error(t, err)
}
