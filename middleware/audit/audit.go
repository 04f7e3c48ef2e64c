// Package audit provides a middleware that mirrors every dispatched action
// onto the event bus, giving external listeners a complete audit trail of
// the pipeline without touching state.
package audit

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	rex "github.com/pelagornis/go-rex/pkg/rex/v1"
	"github.com/pelagornis/go-rex/pkg/rex/v1/effect"
	"github.com/pelagornis/go-rex/pkg/rex/v1/events"
)

// EventTypeActionAudited is published once per action observed by the
// middleware, before the reducer runs.
const EventTypeActionAudited events.EventType = "ActionAudited"

// Middleware publishes one audit event per observed action. It produces no
// effects and never mutates state.
type Middleware[S any] struct {
	bus   events.Bus
	clock clockwork.Clock
}

// New creates an audit middleware publishing on bus. A nil clock selects
// the real clock.
func New[S any](bus events.Bus, clock clockwork.Clock) *Middleware[S] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Middleware[S]{bus: bus, clock: clock}
}

func (m *Middleware[S]) Process(_ context.Context, _ S, action rex.Action, _ func(rex.Action)) []effect.Effect {
	m.bus.Emit(events.Event{
		Type:       EventTypeActionAudited,
		Timestamp:  m.clock.Now(),
		ActionName: fmt.Sprintf("%T", action),
	})
	return nil
}

var _ rex.Middleware[struct{}] = (*Middleware[struct{}])(nil)
