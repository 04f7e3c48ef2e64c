package events

import (
	"sync"

	"github.com/pelagornis/go-rex/pkg/rex/v1/events"
	rexlog "github.com/pelagornis/go-rex/pkg/rex/v1/log"
)

// FanoutEventBus implements the public events.Bus interface with one
// buffered Go channel per subscriber. Emission is non-blocking: when a
// subscriber's buffer is full the event is dropped for that subscriber and
// a warning is logged, so a slow listener can never stall the store core.
type FanoutEventBus struct {
	mu         sync.Mutex
	subs       []*subscription
	nextID     int
	bufferSize int
	closed     bool
	log        rexlog.Logger
}

type subscription struct {
	id int
	ch chan events.Event
	// wg is done once the delivery goroutine has drained ch after close.
	wg sync.WaitGroup
}

// NewFanoutEventBus creates a bus whose subscribers each get a buffer of
// bufferSize pending events. If bufferSize is non-positive, a default of
// 100 is used. Panics if the provided logger is nil.
func NewFanoutEventBus(bufferSize int, log rexlog.Logger) *FanoutEventBus {
	const defaultBufferSize = 100
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if log == nil {
		panic("FanoutEventBus requires a non-nil logger")
	}
	bus := &FanoutEventBus{
		bufferSize: bufferSize,
		log:        log.With("component", "FanoutEventBus"),
	}
	bus.log.Debugf("FanoutEventBus initialized with per-subscriber buffer size %d", bufferSize)
	return bus
}

// Emit publishes the event to every current subscriber in subscription
// order. Each delivery is a non-blocking buffered send; a full buffer
// drops the event for that subscriber only.
func (b *FanoutEventBus) Emit(event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			b.log.Warnf("Subscriber %d buffer full, dropping event type '%s'", sub.id, event.Type)
		}
	}
}

// Subscribe registers a handler for all future events. The handler runs on
// a dedicated delivery goroutine, one event at a time, in emission order.
// The returned cancel removes the subscription and waits for in-flight
// deliveries to finish; it is safe to call more than once.
func (b *FanoutEventBus) Subscribe(handler events.Handler) (cancel func()) {
	b.mu.Lock()
	sub := &subscription{
		id: b.nextID,
		ch: make(chan events.Event, b.bufferSize),
	}
	b.nextID++
	if b.closed {
		close(sub.ch)
	} else {
		b.subs = append(b.subs, sub)
	}
	b.mu.Unlock()

	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		for ev := range sub.ch {
			handler(ev)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.remove(sub)
			sub.wg.Wait()
		})
	}
}

// remove unregisters the subscription and closes its channel. Closing under
// the bus lock keeps Emit from sending on a closed channel.
func (b *FanoutEventBus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.subs {
		if cur == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Close shuts the bus down: subsequent Emit calls are ignored and every
// subscriber's channel is closed once drained.
func (b *FanoutEventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	for _, sub := range subs {
		close(sub.ch)
	}
	b.mu.Unlock()

	b.log.Debugf("FanoutEventBus closed.")
	for _, sub := range subs {
		sub.wg.Wait()
	}
}

var _ events.Bus = (*FanoutEventBus)(nil)
