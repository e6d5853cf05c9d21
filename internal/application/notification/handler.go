package notification

import (
	"context"
	"fmt"

	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/domain/shared"
)

// SubscriberEventHandler turns subscriber lifecycle events into notifications
type SubscriberEventHandler struct {
	store *Store
}

// NewSubscriberEventHandler creates a handler pushing into store
func NewSubscriberEventHandler(store *Store) *SubscriberEventHandler {
	return &SubscriberEventHandler{store: store}
}

// EventTypes returns the subscriber events the handler listens to
func (h *SubscriberEventHandler) EventTypes() []string {
	return []string{
		billing.EventTypeSubscriberCreated,
		billing.EventTypeSubscriberPlanChanged,
		billing.EventTypeSubscriberCanceled,
	}
}

// Handle pushes one notification per event
func (h *SubscriberEventHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *billing.SubscriberCreatedEvent:
		h.store.Notify(LevelInfo, "subscribers", "New subscriber",
			fmt.Sprintf("%s joined %s with %d seats (%s)", displayName(e.Name, e.SubscriberID.String()), e.Tier, e.Seats, e.Cadence))
	case *billing.SubscriberPlanChangedEvent:
		h.store.Notify(LevelInfo, "subscribers", "Plan changed",
			fmt.Sprintf("Subscriber %s moved from %s/%d seats to %s/%d seats", e.SubscriberID, e.OldTier, e.OldSeats, e.NewTier, e.NewSeats))
	case *billing.SubscriberCanceledEvent:
		msg := fmt.Sprintf("Subscriber %s on %s canceled", e.SubscriberID, e.Tier)
		if e.Reason != "" {
			msg += ": " + e.Reason
		}
		h.store.Notify(LevelWarning, "subscribers", "Subscription canceled", msg)
	default:
		return fmt.Errorf("unexpected event type %s", event.EventType())
	}
	return nil
}

func displayName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

var _ shared.EventHandler = (*SubscriberEventHandler)(nil)
