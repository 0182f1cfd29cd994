package interfaces

import "context"

// EventType identifies a class of system event
type EventType string

const (
	EventTicketSubmitted EventType = "ticket_submitted"
	EventTicketCreated   EventType = "ticket_created"
	EventTicketFailed    EventType = "ticket_failed"
	EventAuthUpdated     EventType = "auth_updated"
	EventHealthChanged   EventType = "health_changed"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes and waits for all handlers
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event bus
	Close() error
}
