// Package bus provides an internal event bus for component communication
package bus

import (
	"sync"
)

// EventType identifies different event types
type EventType string

// Event types for Vocalis
const (
	// Audio events
	EventTypeSpeechStart   EventType = "audio.speech_start"
	EventTypeSpeechEnd     EventType = "audio.speech_end"
	EventTypePlaybackState EventType = "audio.playback_state"
	EventTypeInterrupted   EventType = "audio.interrupted"

	// Dialogue events
	EventTypeTurnStarted   EventType = "dialogue.turn_started"
	EventTypeTurnCompleted EventType = "dialogue.turn_completed"
	EventTypeTurnFailed    EventType = "dialogue.turn_failed"
	EventTypeTurnDropped   EventType = "dialogue.turn_dropped"
	EventTypeTranscript    EventType = "dialogue.transcript"

	// Session events
	EventTypeSessionRotated EventType = "session.rotated"
)

// Event represents a bus event
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler is a function that handles events
type Handler func(Event)

// EventBus is a simple pub/sub event bus
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for an event type
func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish sends an event to all subscribed handlers
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type]))
	copy(handlers, b.handlers[event.Type])
	b.mu.RUnlock()

	for _, handler := range handlers {
		// Call handlers in goroutines to avoid blocking
		go handler(event)
	}
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
}
