package billing

import (
	"context"
	"strings"
	"time"

	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/bizdash/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubscriberService manages the subscriber lifecycle. Subscribers are never
// deleted; cancellation is a status change.
type SubscriberService struct {
	repo        billing.SubscriberRepository
	catalog     *billing.TierCatalog
	publisher   shared.EventPublisher
	invalidator PortfolioInvalidator
	logger      *zap.Logger
}

// NewSubscriberService creates a new SubscriberService. publisher and invalidator may be nil.
func NewSubscriberService(
	repo billing.SubscriberRepository,
	catalog *billing.TierCatalog,
	publisher shared.EventPublisher,
	invalidator PortfolioInvalidator,
	logger *zap.Logger,
) *SubscriberService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriberService{
		repo:        repo,
		catalog:     catalog,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Create registers a subscriber on a catalog tier
func (s *SubscriberService) Create(ctx context.Context, req CreateSubscriberRequest) (*SubscriberResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "subscriber", "create",
		telemetry.SpanTier.String(req.Tier),
		telemetry.SpanSeatCount.Int(req.Seats),
	)
	defer span.End()

	cadence, err := billing.ParseCadence(req.Cadence)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if _, err := s.catalog.Lookup(billing.TierName(req.Tier)); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		err := billing.NewInvalidInputError("name", "cannot be empty")
		telemetry.RecordError(span, err)
		return nil, err
	}

	billingRef, err := billing.NormalizeBillingRef(req.BillingRef)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	start := time.Now().UTC()
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}
	subscriber, err := billing.NewSubscriber(req.Name, billing.TierName(req.Tier), req.Seats, cadence, start)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	subscriber.BillingRef = billingRef

	if err := s.persist(ctx, subscriber); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Subscriber created",
		zap.String("subscriber_id", subscriber.ID.String()),
		zap.String("tier", req.Tier),
		zap.Int("seats", req.Seats),
		zap.String("cadence", string(cadence)))

	resp := ToSubscriberResponse(subscriber)
	return &resp, nil
}

// Get returns one subscriber
func (s *SubscriberService) Get(ctx context.Context, id uuid.UUID) (*SubscriberResponse, error) {
	subscriber, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToSubscriberResponse(subscriber)
	return &resp, nil
}

// List returns one page of subscribers
func (s *SubscriberService) List(ctx context.Context, query ListSubscribersQuery) (*shared.Paginated[SubscriberResponse], error) {
	filter := shared.DefaultFilter()
	if query.Page > 0 {
		filter.Page = query.Page
	}
	if query.PageSize > 0 {
		filter.PageSize = query.PageSize
	}
	if query.OrderBy != "" {
		filter.OrderBy = query.OrderBy
	}
	if query.OrderDir != "" {
		filter.OrderDir = strings.ToLower(query.OrderDir)
	}
	for key, value := range map[string]string{
		"tier":    query.Tier,
		"status":  query.Status,
		"cadence": query.Cadence,
		"search":  query.Search,
	} {
		if value != "" {
			filter.Filters[key] = value
		}
	}

	subscribers, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]SubscriberResponse, len(subscribers))
	for i := range subscribers {
		items[i] = ToSubscriberResponse(&subscribers[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// ChangePlan moves a subscriber to another tier, seat count or cadence
func (s *SubscriberService) ChangePlan(ctx context.Context, id uuid.UUID, req ChangePlanRequest) (*SubscriberResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "subscriber", "change_plan",
		telemetry.SpanSubscriberID.String(id.String()),
		telemetry.SpanTier.String(req.Tier),
	)
	defer span.End()

	cadence, err := billing.ParseCadence(req.Cadence)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if _, err := s.catalog.Lookup(billing.TierName(req.Tier)); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	subscriber, err := s.repo.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := subscriber.ChangePlan(billing.TierName(req.Tier), req.Seats, cadence); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.persist(ctx, subscriber); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Subscriber plan changed",
		zap.String("subscriber_id", id.String()),
		zap.String("tier", req.Tier),
		zap.Int("seats", req.Seats))

	resp := ToSubscriberResponse(subscriber)
	return &resp, nil
}

// Cancel marks a subscriber canceled
func (s *SubscriberService) Cancel(ctx context.Context, id uuid.UUID, req CancelSubscriberRequest) (*SubscriberResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "subscriber", "cancel",
		telemetry.SpanSubscriberID.String(id.String()),
	)
	defer span.End()

	subscriber, err := s.repo.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := subscriber.Cancel(req.Reason); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.persist(ctx, subscriber); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Subscriber canceled",
		zap.String("subscriber_id", id.String()),
		zap.String("reason", req.Reason))

	resp := ToSubscriberResponse(subscriber)
	return &resp, nil
}

// LinkBillingAccount sets or clears the external billing subscription used for usage export
func (s *SubscriberService) LinkBillingAccount(ctx context.Context, id uuid.UUID, req LinkBillingAccountRequest) (*SubscriberResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "subscriber", "link_billing_account",
		telemetry.SpanSubscriberID.String(id.String()),
	)
	defer span.End()

	subscriber, err := s.repo.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	version := subscriber.Version
	if err := subscriber.LinkBillingAccount(req.BillingRef); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if subscriber.Version != version {
		if err := s.repo.Save(ctx, subscriber); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		s.logger.Info("Subscriber billing account linked",
			zap.String("subscriber_id", id.String()),
			zap.Bool("linked", subscriber.BillingRef != ""))
	}

	resp := ToSubscriberResponse(subscriber)
	return &resp, nil
}

// persist saves the subscriber, then publishes its pending events and drops cached portfolios
func (s *SubscriberService) persist(ctx context.Context, subscriber *billing.Subscriber) error {
	if err := s.repo.Save(ctx, subscriber); err != nil {
		return err
	}

	events := subscriber.TakeEvents()
	if s.publisher != nil && len(events) > 0 {
		if err := s.publisher.Publish(ctx, events...); err != nil {
			s.logger.Warn("Failed to publish subscriber events",
				zap.String("subscriber_id", subscriber.ID.String()),
				zap.Error(err))
		}
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateAll(ctx)
	}
	return nil
}
