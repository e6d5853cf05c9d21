package billing

import (
	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/google/uuid"
)

const (
	EventTypeSubscriberCreated     = "SubscriberCreated"
	EventTypeSubscriberPlanChanged = "SubscriberPlanChanged"
	EventTypeSubscriberCanceled    = "SubscriberCanceled"
)

// SubscriberCreatedEvent is raised when a subscriber is created after checkout
type SubscriberCreatedEvent struct {
	shared.EventHeader
	SubscriberID uuid.UUID `json:"subscriber_id"`
	Name         string    `json:"name"`
	Tier         TierName  `json:"tier"`
	Seats        int       `json:"seats"`
	Cadence      Cadence   `json:"cadence"`
}

// NewSubscriberCreatedEvent creates a SubscriberCreatedEvent
func NewSubscriberCreatedEvent(s *Subscriber) *SubscriberCreatedEvent {
	return &SubscriberCreatedEvent{
		EventHeader:  shared.NewEventHeader(EventTypeSubscriberCreated, AggregateTypeSubscriber, s.ID),
		SubscriberID: s.ID,
		Name:         s.Name,
		Tier:         s.Tier,
		Seats:        s.Seats,
		Cadence:      s.Cadence,
	}
}

// SubscriberPlanChangedEvent is raised on a tier, seat or cadence change
type SubscriberPlanChangedEvent struct {
	shared.EventHeader
	SubscriberID uuid.UUID `json:"subscriber_id"`
	OldTier      TierName  `json:"old_tier"`
	NewTier      TierName  `json:"new_tier"`
	OldSeats     int       `json:"old_seats"`
	NewSeats     int       `json:"new_seats"`
	OldCadence   Cadence   `json:"old_cadence"`
	NewCadence   Cadence   `json:"new_cadence"`
}

// NewSubscriberPlanChangedEvent creates a SubscriberPlanChangedEvent from the current state and the new plan
func NewSubscriberPlanChangedEvent(s *Subscriber, tier TierName, seats int, cadence Cadence) *SubscriberPlanChangedEvent {
	return &SubscriberPlanChangedEvent{
		EventHeader:  shared.NewEventHeader(EventTypeSubscriberPlanChanged, AggregateTypeSubscriber, s.ID),
		SubscriberID: s.ID,
		OldTier:      s.Tier,
		NewTier:      tier,
		OldSeats:     s.Seats,
		NewSeats:     seats,
		OldCadence:   s.Cadence,
		NewCadence:   cadence,
	}
}

// SubscriberCanceledEvent is raised when a subscriber cancels
type SubscriberCanceledEvent struct {
	shared.EventHeader
	SubscriberID uuid.UUID `json:"subscriber_id"`
	Tier         TierName  `json:"tier"`
	Reason       string    `json:"reason,omitempty"`
}

// NewSubscriberCanceledEvent creates a SubscriberCanceledEvent
func NewSubscriberCanceledEvent(s *Subscriber, reason string) *SubscriberCanceledEvent {
	return &SubscriberCanceledEvent{
		EventHeader:  shared.NewEventHeader(EventTypeSubscriberCanceled, AggregateTypeSubscriber, s.ID),
		SubscriberID: s.ID,
		Tier:         s.Tier,
		Reason:       reason,
	}
}
