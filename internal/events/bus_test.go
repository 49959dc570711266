package events

import (
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan FrameEvent, 1)

	unsub := bus.Subscribe(func(e FrameEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(FrameEvent{Stream: "rgb", Sequence: 7})

	select {
	case got := <-received:
		if got.Stream != "rgb" || got.Sequence != 7 {
			t.Errorf("event = %+v, want stream rgb sequence 7", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusTypesAreSeparate(t *testing.T) {
	bus := New()
	frames := make(chan FrameEvent, 1)
	states := make(chan StreamStateEvent, 1)
	defer bus.Subscribe(func(e FrameEvent) { frames <- e })()
	defer bus.Subscribe(func(e StreamStateEvent) { states <- e })()

	bus.Publish(StreamStateEvent{Stream: "depth", State: StateStreaming})

	select {
	case got := <-states:
		if got.State != StateStreaming {
			t.Errorf("State = %q, want %q", got.State, StateStreaming)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for state event")
	}
	select {
	case e := <-frames:
		t.Errorf("frame subscriber received %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := New()
	received := make(chan MotorEvent, 2)
	unsub := bus.Subscribe(func(e MotorEvent) { received <- e })
	unsub()

	bus.Publish(MotorEvent{LED: "green"})
	select {
	case e := <-received:
		t.Errorf("unsubscribed handler received %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNilBus(t *testing.T) {
	var bus *Bus
	bus.Publish(FrameEvent{})
	bus.Subscribe(func(FrameEvent) {})()
}

func TestUnknownHandler(t *testing.T) {
	bus := New()
	bus.Subscribe(func(string) {})()
}
