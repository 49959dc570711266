// Package events broadcasts sensor events in-process.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. A nil *Bus discards events.
type Bus struct {
	dispatcher *event.Dispatcher
}

func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish delivers ev to the subscribers of its type.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case FrameEvent:
		event.Publish(b.dispatcher, e)
	case StreamStateEvent:
		event.Publish(b.dispatcher, e)
	case StreamErrorEvent:
		event.Publish(b.dispatcher, e)
	case DeviceEvent:
		event.Publish(b.dispatcher, e)
	case MotorEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type it takes and returns a
// function that unsubscribes it. Handlers of unknown types are ignored.
func (b *Bus) Subscribe(handler any) func() {
	if b == nil {
		return func() {}
	}
	switch h := handler.(type) {
	case func(FrameEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MotorEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
