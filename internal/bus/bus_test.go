package bus

import (
	"testing"
	"time"
)

func TestEventBus_PublishReachesAllSubscribers(t *testing.T) {
	b := NewEventBus()
	received := make(chan Event, 2)

	b.Subscribe(EventTypeTranscript, func(e Event) { received <- e })
	b.Subscribe(EventTypeTranscript, func(e Event) { received <- e })

	b.Publish(Event{Type: EventTypeTranscript, Data: map[string]any{"text": "hello"}})

	for i := 0; i < 2; i++ {
		select {
		case e := <-received:
			if e.Data["text"] != "hello" {
				t.Errorf("unexpected event data: %v", e.Data)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber never received the event")
		}
	}
}

func TestEventBus_OtherTypesNotDelivered(t *testing.T) {
	b := NewEventBus()
	received := make(chan Event, 1)

	b.Subscribe(EventTypeTranscript, func(e Event) { received <- e })
	b.Publish(Event{Type: EventTypeSessionRotated})

	select {
	case <-received:
		t.Error("handler ran for an event type it never subscribed to")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_ClearRemovesHandlers(t *testing.T) {
	b := NewEventBus()
	received := make(chan Event, 1)

	b.Subscribe(EventTypeTurnStarted, func(e Event) { received <- e })
	b.Clear()
	b.Publish(Event{Type: EventTypeTurnStarted})

	select {
	case <-received:
		t.Error("handler survived Clear")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_PublishWithoutSubscribersIsSafe(t *testing.T) {
	b := NewEventBus()
	b.Publish(Event{Type: EventTypeInterrupted})
}
