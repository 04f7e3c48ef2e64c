// Package events defines the auxiliary publish/subscribe bus used for
// cross-component notifications that are not part of the state-update path.
package events

import "time"

// EventType categorizes a store or effect-queue notification.
type EventType string

// Standard go-rex event types.
const (
	ActionDispatched EventType = "ActionDispatched" // an action entered the dispatch queue
	StateCommitted   EventType = "StateCommitted"   // a reduction committed a new state
	EffectScheduled  EventType = "EffectScheduled"  // an effect was submitted to the queue
	EffectStarted    EventType = "EffectStarted"    // an effect's operation began running
	EffectCompleted  EventType = "EffectCompleted"  // an effect's operation returned nil
	EffectFailed     EventType = "EffectFailed"     // an effect's operation returned an error
	EffectCancelled  EventType = "EffectCancelled"  // an effect was cancelled before or while running
	HistoryNavigated EventType = "HistoryNavigated" // undo/redo/jump committed a historical state
	StoreClosed      EventType = "StoreClosed"      // the store's processing loop shut down
)

// Event records a significant occurrence inside the runtime.
type Event struct {
	// Type categorizes the event.
	Type EventType `json:"type"`
	// Timestamp marks when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// ActionName identifies the action involved (its Go type or scenario
	// type string), if applicable.
	ActionName string `json:"action_name,omitempty"`
	// EffectName identifies the effect involved, if it carries a label.
	EffectName string `json:"effect_name,omitempty"`
	// Payload carries event-specific data. Payloads must be treated as
	// read-only by subscribers; they may be shared across deliveries.
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Handler consumes bus events. Handlers run on the bus's delivery
// goroutine and must not block.
type Handler func(Event)

// Bus is the fan-out contract. Emit must be non-blocking or handle
// blocking carefully so the store core is never slowed down by a listener.
type Bus interface {
	// Emit publishes an event to every current subscriber.
	Emit(event Event)
	// Subscribe registers a handler for all future events and returns a
	// function removing the subscription. Delivery order across
	// subscribers follows subscription order.
	Subscribe(handler Handler) (cancel func())
}
