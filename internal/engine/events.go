package engine

import (
	"sync"
	"time"
)

// EventType represents the type of interview event.
type EventType string

const (
	EventSessionStarted     EventType = "session_started"
	EventTurnCommitted      EventType = "turn_committed"
	EventStageChanged       EventType = "stage_changed"
	EventProfileUpdated     EventType = "profile_updated"
	EventFieldDropped       EventType = "field_dropped"
	EventFollowUp           EventType = "follow_up"
	EventTopicsExhausted    EventType = "topics_exhausted"
	EventMemoirWritten      EventType = "memoir_written"
	EventCollaboratorFailed EventType = "collaborator_failed"
	EventPersistenceFailed  EventType = "persistence_failed"
	EventSessionClosed      EventType = "session_closed"
)

// Event represents an interview event with associated data.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	Data      map[string]interface{}
}

// EventHandler is a function that handles events.
type EventHandler func(Event)

// EventBus lets presentation code follow an interview without reaching into
// the engine. Handlers run synchronously on the publishing goroutine.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]EventHandler
	allHandlers []EventHandler
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types.
func (eb *EventBus) SubscribeAll(handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allHandlers = append(eb.allHandlers, handler)
}

// Publish sends an event to all registered handlers. A nil bus drops it.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	handlers := append([]EventHandler(nil), eb.handlers[event.Type]...)
	handlers = append(handlers, eb.allHandlers...)
	eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for _, handler := range handlers {
		handler(event)
	}
}

// PublishWithData publishes an event with associated data.
func (eb *EventBus) PublishWithData(eventType EventType, sessionID string, data map[string]interface{}) {
	eb.Publish(Event{
		Type:      eventType,
		SessionID: sessionID,
		Data:      data,
	})
}
