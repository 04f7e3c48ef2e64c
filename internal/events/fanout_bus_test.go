package events_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intEvents "github.com/pelagornis/go-rex/internal/events"
	intLogger "github.com/pelagornis/go-rex/internal/logger"
	"github.com/pelagornis/go-rex/pkg/rex/v1/events"
)

func newBus(t *testing.T, bufferSize int) *intEvents.FanoutEventBus {
	t.Helper()
	return intEvents.NewFanoutEventBus(bufferSize, intLogger.NewDefaultLogger("error"))
}

type recorder struct {
	mu    sync.Mutex
	types []events.EventType
}

func (r *recorder) handle(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, ev.Type)
}

func (r *recorder) snapshot() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.types))
	copy(out, r.types)
	return out
}

func TestFanoutDeliversToAllSubscribers(t *testing.T) {
	bus := newBus(t, 16)
	defer bus.Close()

	var first, second recorder
	cancelFirst := bus.Subscribe(first.handle)
	defer cancelFirst()
	cancelSecond := bus.Subscribe(second.handle)
	defer cancelSecond()

	bus.Emit(events.Event{Type: events.ActionDispatched, Timestamp: time.Now()})
	bus.Emit(events.Event{Type: events.StateCommitted, Timestamp: time.Now()})

	want := []events.EventType{events.ActionDispatched, events.StateCommitted}
	require.Eventually(t, func() bool {
		return len(first.snapshot()) == 2 && len(second.snapshot()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, first.snapshot())
	assert.Equal(t, want, second.snapshot())
}

func TestFanoutDropsWhenSubscriberBufferFull(t *testing.T) {
	bus := newBus(t, 1)
	defer bus.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	var rec recorder
	cancel := bus.Subscribe(func(ev events.Event) {
		if ev.Type == events.ActionDispatched {
			close(started)
			<-release
		}
		rec.handle(ev)
	})
	defer cancel()

	// Park the delivery goroutine inside the handler so the buffer state is
	// fully under test control.
	bus.Emit(events.Event{Type: events.ActionDispatched})
	<-started

	// One event fits the buffer, the next must be dropped without blocking.
	bus.Emit(events.Event{Type: events.StateCommitted})
	done := make(chan struct{})
	go func() {
		bus.Emit(events.Event{Type: events.StoreClosed})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full subscriber buffer")
	}

	close(release)
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []events.EventType{events.ActionDispatched, events.StateCommitted}, rec.snapshot())
}

func TestFanoutCancelStopsDelivery(t *testing.T) {
	bus := newBus(t, 8)
	defer bus.Close()

	var rec recorder
	cancel := bus.Subscribe(rec.handle)

	bus.Emit(events.Event{Type: events.ActionDispatched})
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	cancel() // second call is a no-op

	bus.Emit(events.Event{Type: events.StateCommitted})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []events.EventType{events.ActionDispatched}, rec.snapshot())
}

func TestFanoutCloseSilencesBus(t *testing.T) {
	bus := newBus(t, 8)

	var rec recorder
	cancel := bus.Subscribe(rec.handle)
	defer cancel()

	bus.Close()
	bus.Close() // idempotent
	bus.Emit(events.Event{Type: events.ActionDispatched})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	// Subscribing after close yields a subscription that never fires but
	// whose cancel is still safe to call.
	var late recorder
	cancelLate := bus.Subscribe(late.handle)
	cancelLate()
	assert.Empty(t, late.snapshot())
}
