package events

import "github.com/pelagornis/go-rex/pkg/rex/v1/events"

// NoOpEventBus is the default implementation of the public events.Bus
// interface when no bus is configured for a store. Emit discards every
// event and Subscribe never delivers, so components publishing events do
// not have to nil-check the bus.
type NoOpEventBus struct{}

// NewNoOpEventBus creates a new instance of the NoOpEventBus.
func NewNoOpEventBus() events.Bus {
	return &NoOpEventBus{}
}

// Emit implements events.Bus and does nothing.
func (n *NoOpEventBus) Emit(event events.Event) {}

// Subscribe implements events.Bus. The handler is never invoked; the
// returned cancel is a no-op.
func (n *NoOpEventBus) Subscribe(handler events.Handler) (cancel func()) {
	return func() {}
}

var _ events.Bus = (*NoOpEventBus)(nil)
