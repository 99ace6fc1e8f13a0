package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to channels
// This is needed for SSE integration where Huma expects a channel-based select loop.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full (non-blocking)
		}
	})
}

// SubscribeAllToChannel forwards every event type to ch and returns a single
// function that removes all the subscriptions.
func SubscribeAllToChannel(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[StreamStateChangedEvent](bus, ch),
		SubscribeToChannel[TimingChangedEvent](bus, ch),
		SubscribeToChannel[DetectionFailedEvent](bus, ch),
		SubscribeToChannel[DebugToggledEvent](bus, ch),
		SubscribeToChannel[SubdeviceRegisteredEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
