package shared

import (
	"time"

	"github.com/google/uuid"
)

// Identity holds the id and audit timestamps of a persisted record.
type Identity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewIdentity returns a fresh id stamped with the current UTC time.
func NewIdentity() Identity {
	now := time.Now().UTC()
	return Identity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Aggregate is embedded by aggregate roots.
// Version starts at 1 and increments on every state change. Events raised
// by a change stay pending until the application layer takes them after saving.
type Aggregate struct {
	Identity
	Version int
	pending []DomainEvent
}

// NewAggregate returns a version 1 aggregate with a fresh identity.
func NewAggregate() Aggregate {
	return Aggregate{Identity: NewIdentity(), Version: 1}
}

// Changed marks a state change.
func (a *Aggregate) Changed() {
	a.Version++
	a.UpdatedAt = time.Now().UTC()
}

// Raise queues events for publication.
func (a *Aggregate) Raise(events ...DomainEvent) {
	a.pending = append(a.pending, events...)
}

// PendingEvents returns the queued events without clearing them.
func (a *Aggregate) PendingEvents() []DomainEvent {
	return a.pending
}

// TakeEvents returns the queued events and clears the queue.
func (a *Aggregate) TakeEvents() []DomainEvent {
	events := a.pending
	a.pending = nil
	return events
}
