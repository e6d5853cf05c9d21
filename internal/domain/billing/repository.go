package billing

import (
	"context"

	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SubscriberRepository persists subscribers. Subscribers are never deleted.
type SubscriberRepository interface {
	shared.Repository[Subscriber]

	// FindByStatus returns all subscribers in one of the given statuses
	FindByStatus(ctx context.Context, statuses ...SubscriptionStatus) ([]Subscriber, error)

	// FindAllForRollup returns every subscriber regardless of status
	FindAllForRollup(ctx context.Context) ([]Subscriber, error)
}

// UsageEventRepository stores immutable usage events
type UsageEventRepository interface {
	// SaveBatch records events atomically
	SaveBatch(ctx context.Context, events []UsageEvent) error

	// FindBySubscriberAndPeriod returns one subscriber's events in [period.Start, period.End)
	FindBySubscriberAndPeriod(ctx context.Context, subscriberID uuid.UUID, period BillingPeriod) ([]UsageEvent, error)

	// FindByPeriod returns all events in [period.Start, period.End)
	FindByPeriod(ctx context.Context, period BillingPeriod) ([]UsageEvent, error)

	// CountBySubscriber returns how many events a subscriber has recorded
	CountBySubscriber(ctx context.Context, subscriberID uuid.UUID) (int64, error)
}
