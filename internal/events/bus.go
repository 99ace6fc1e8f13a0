package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers. A nil bus drops the event.
// Usage: bus.Publish(TimingChangedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	// Use type switch to call the generic Publish with the correct type
	switch e := ev.(type) {
	case StreamStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case TimingChangedEvent:
		event.Publish(b.dispatcher, e)
	case DetectionFailedEvent:
		event.Publish(b.dispatcher, e)
	case DebugToggledEvent:
		event.Publish(b.dispatcher, e)
	case SubdeviceRegisteredEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e TimingChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(StreamStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TimingChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DetectionFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DebugToggledEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SubdeviceRegisteredEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
