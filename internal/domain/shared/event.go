package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
}

// EventHeader implements DomainEvent for embedding in concrete events.
type EventHeader struct {
	ID         uuid.UUID `json:"event_id"`
	Type       string    `json:"event_type"`
	At         time.Time `json:"occurred_at"`
	SourceID   uuid.UUID `json:"aggregate_id"`
	SourceType string    `json:"aggregate_type"`
}

// NewEventHeader stamps a new event raised by the given aggregate.
func NewEventHeader(eventType, aggregateType string, aggregateID uuid.UUID) EventHeader {
	return EventHeader{
		ID:         uuid.New(),
		Type:       eventType,
		At:         time.Now().UTC(),
		SourceID:   aggregateID,
		SourceType: aggregateType,
	}
}

func (h EventHeader) EventID() uuid.UUID { return h.ID }
func (h EventHeader) EventType() string { return h.Type }
func (h EventHeader) OccurredAt() time.Time { return h.At }
func (h EventHeader) AggregateID() uuid.UUID { return h.SourceID }
func (h EventHeader) AggregateType() string { return h.SourceType }

// EventHandler reacts to published events.
// An empty EventTypes result subscribes the handler to every event.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher publishes events after the aggregate that raised them is saved.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is an EventPublisher that handlers can subscribe to.
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
}
