package effect_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelagornis/go-rex/pkg/rex/v1/effect"
	rexerrors "github.com/pelagornis/go-rex/pkg/rex/v1/errors"
)

// sink collects actions sent through an emitter.
type sink struct {
	mu      sync.Mutex
	actions []interface{}
}

func (s *sink) send(action interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
}

func (s *sink) snapshot() []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interface{}, len(s.actions))
	copy(out, s.actions)
	return out
}

func run(t *testing.T, e effect.Effect, clock clockwork.Clock) ([]interface{}, error) {
	t.Helper()
	s := &sink{}
	err := e.Run(context.Background(), effect.NewEmitter(s.send, clock))
	return s.snapshot(), err
}

func TestNoneEmitsNothing(t *testing.T) {
	for i := 0; i < 3; i++ {
		actions, err := run(t, effect.None, nil)
		require.NoError(t, err)
		assert.Empty(t, actions)
	}
	assert.True(t, effect.None.IsNone())
}

func TestJustSendsExactlyOne(t *testing.T) {
	actions, err := run(t, effect.Just("hello"), nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"hello"}, actions)
}

func TestManySendsInOrder(t *testing.T) {
	actions, err := run(t, effect.Many("a", "b", "c"), nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b", "c"}, actions)

	assert.True(t, effect.Many().IsNone())
}

func TestCombineRunsAllSubEffects(t *testing.T) {
	e := effect.Combine(
		effect.Just("x"),
		effect.Just("y"),
		effect.None,
		effect.Just("z"),
	)
	actions, err := run(t, e, nil)
	require.NoError(t, err)

	got := make([]string, 0, len(actions))
	for _, a := range actions {
		got = append(got, a.(string))
	}
	sort.Strings(got)
	assert.Equal(t, []string{"x", "y", "z"}, got, "no ordering guarantee, but all sends arrive")
}

func TestCombineJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	e := effect.Combine(
		effect.Just("ok"),
		effect.New(func(context.Context, *effect.Emitter) error { return boom }),
	)
	_, err := run(t, e, nil)
	require.ErrorIs(t, err, boom)
}

func TestDelayedSendsAfterClockAdvance(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := &sink{}

	done := make(chan error, 1)
	go func() {
		done <- effect.Delayed("tick", time.Minute).Run(context.Background(), effect.NewEmitter(s.send, clock))
	}()

	clock.BlockUntil(1)
	assert.Empty(t, s.snapshot(), "nothing is sent before the delay elapses")

	clock.Advance(time.Minute)
	require.NoError(t, <-done)
	assert.Equal(t, []interface{}{"tick"}, s.snapshot())
}

func TestDelayedCancelledBeforeExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := &sink{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- effect.Delayed("tick", time.Minute).Run(ctx, effect.NewEmitter(s.send, clock))
	}()

	clock.BlockUntil(1)
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
	assert.Empty(t, s.snapshot(), "a cancelled delay emits nothing")
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := &sink{}

	var mu sync.Mutex
	calls := 0
	inner := effect.New(func(_ context.Context, em *effect.Emitter) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			return errors.New("transient")
		}
		em.Send("succeeded")
		return nil
	})

	done := make(chan error, 1)
	go func() {
		e := effect.Retry(inner, effect.RetryConfig{Attempts: 5, Delay: time.Second})
		done <- e.Run(context.Background(), effect.NewEmitter(s.send, clock))
	}()

	// Two failed attempts, each followed by a one second wait.
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	clock.BlockUntil(1)
	clock.Advance(time.Second)

	require.NoError(t, <-done)
	assert.Equal(t, []interface{}{"succeeded"}, s.snapshot())
	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()
}

func TestRetryExhaustion(t *testing.T) {
	boom := errors.New("boom")
	inner := effect.New(func(context.Context, *effect.Emitter) error { return boom })

	_, err := run(t, effect.Retry(inner, effect.RetryConfig{Attempts: 3}), nil)
	require.Error(t, err)

	var exhausted *rexerrors.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, boom)
}

func TestRetryWithErrorActionTranslatesFailure(t *testing.T) {
	boom := errors.New("boom")
	inner := effect.New(func(context.Context, *effect.Emitter) error { return boom })

	e := effect.RetryWithErrorAction(inner, effect.RetryConfig{Attempts: 2}, func(err error) interface{} {
		return map[string]string{"failed": err.Error()}
	})
	actions, err := run(t, e, nil)

	require.NoError(t, err, "the failure is translated, not propagated")
	require.Len(t, actions, 1)
	assert.Contains(t, actions[0].(map[string]string)["failed"], "boom")
}

func TestRepeatingBoundedCount(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := &sink{}

	done := make(chan error, 1)
	go func() {
		e := effect.Repeating(effect.Just("beat"), time.Second, 3)
		done <- e.Run(context.Background(), effect.NewEmitter(s.send, clock))
	}()

	// First invocation is immediate; the remaining two each wait a second.
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	clock.BlockUntil(1)
	clock.Advance(time.Second)

	require.NoError(t, <-done)
	assert.Equal(t, []interface{}{"beat", "beat", "beat"}, s.snapshot())
}

func TestRepeatingUnboundedStopsOnCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := &sink{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		e := effect.Repeating(effect.Just("beat"), time.Second, 0)
		done <- e.Run(ctx, effect.NewEmitter(s.send, clock))
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	clock.BlockUntil(1)
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []interface{}{"beat", "beat"}, s.snapshot())
}

func TestLabels(t *testing.T) {
	e := effect.Named("query", func(context.Context, *effect.Emitter) error { return nil })
	assert.Equal(t, "query", e.Name())
	assert.Empty(t, e.Key())

	e = effect.Keyed("search", e)
	assert.Equal(t, "search", e.Key())
	assert.Equal(t, "query", e.Name())

	e = effect.WithName("renamed", e)
	assert.Equal(t, "renamed", e.Name())
	assert.Equal(t, "search", e.Key())
}
