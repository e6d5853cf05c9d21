package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bizdash/backend/internal/application/notification"
	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/bizdash/backend/internal/domain/shared/valueobject"
	"github.com/bizdash/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UsageServiceConfig wires a UsageService
type UsageServiceConfig struct {
	Subscribers    billing.SubscriberRepository
	Events         billing.UsageEventRepository
	Catalog        *billing.TierCatalog
	Aggregator     *billing.UsageAggregator
	Idempotency    shared.IdempotencyStore
	IdempotencyTTL time.Duration
	Invalidator    PortfolioInvalidator
	Location       *time.Location
	Metrics        *telemetry.BillingMetrics
	Notifier       Notifier
	Logger         *zap.Logger

	// Exporter pushes usage to the external billing provider; nil disables export
	Exporter billing.UsageExporter
}

// UsageService records usage events and aggregates them against tier quotas
type UsageService struct {
	subscribers    billing.SubscriberRepository
	events         billing.UsageEventRepository
	catalog        *billing.TierCatalog
	aggregator     *billing.UsageAggregator
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	invalidator    PortfolioInvalidator
	location       *time.Location
	metrics        *telemetry.BillingMetrics
	notifier       Notifier
	exporter       billing.UsageExporter
	logger         *zap.Logger
	now            func() time.Time
}

// NewUsageService creates a new UsageService
func NewUsageService(cfg UsageServiceConfig) *UsageService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = shared.DefaultIdempotencyTTL
	}
	if cfg.Aggregator == nil {
		cfg.Aggregator = billing.NewUsageAggregator(cfg.Catalog.Currency())
	}
	return &UsageService{
		subscribers:    cfg.Subscribers,
		events:         cfg.Events,
		catalog:        cfg.Catalog,
		aggregator:     cfg.Aggregator,
		idempotency:    cfg.Idempotency,
		idempotencyTTL: cfg.IdempotencyTTL,
		invalidator:    cfg.Invalidator,
		location:       cfg.Location,
		metrics:        cfg.Metrics,
		notifier:       cfg.Notifier,
		exporter:       cfg.Exporter,
		logger:         cfg.Logger,
		now:            time.Now,
	}
}

// Aggregate totals caller-supplied events against a tier. All events must
// belong to one subscriber. Nothing is stored.
func (s *UsageService) Aggregate(ctx context.Context, req AggregateUsageRequest) (*UsageReportResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "usage", "aggregate",
		telemetry.SpanTier.String(req.Tier),
		telemetry.SpanEventCount.Int(len(req.Events)),
	)
	defer span.End()

	tier, err := s.catalog.Lookup(billing.TierName(req.Tier))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	period, err := s.requestPeriod(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events := make([]billing.UsageEvent, 0, len(req.Events))
	for i, in := range req.Events {
		e, err := in.toDomain(s.catalog.Currency())
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		events = append(events, e)
	}

	subscriberID := uuid.Nil
	if len(events) > 0 {
		subscriberID = events[0].SubscriberID
	}
	return s.report(ctx, subscriberID, tier, period, events)
}

// SubscriberUsage aggregates a stored subscriber's events for a calendar month.
// A blank month means the current one.
func (s *UsageService) SubscriberUsage(ctx context.Context, subscriberID uuid.UUID, month string) (*UsageReportResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "usage", "subscriber_usage",
		telemetry.SpanSubscriberID.String(subscriberID.String()),
	)
	defer span.End()

	period, err := resolveMonth(month, s.location, s.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	subscriber, err := s.subscribers.FindByID(ctx, subscriberID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	tier, err := s.catalog.Lookup(subscriber.Tier)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events, err := s.events.FindBySubscriberAndPeriod(ctx, subscriberID, period)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load usage events: %w", err)
	}
	return s.report(ctx, subscriberID, tier, period, events)
}

// RecordEvents stores a batch of usage events. A non-empty idempotency key is
// reserved before anything is written: a key that is already reserved or used
// returns Duplicate without storing anything, and a key whose batch fails is
// released so the client can retry. Events for subscribers that do not exist
// fail with NOT_FOUND.
func (s *UsageService) RecordEvents(ctx context.Context, idempotencyKey string, req RecordUsageEventsRequest) (_ *RecordUsageEventsResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "usage", "record_events",
		telemetry.SpanEventCount.Int(len(req.Events)),
	)
	defer span.End()

	if len(req.Events) == 0 {
		err := billing.NewInvalidInputError("events", "at least one event is required")
		telemetry.RecordError(span, err)
		return nil, err
	}

	if idempotencyKey != "" && s.idempotency != nil {
		fresh, markErr := s.idempotency.MarkProcessed(ctx, idempotencyKey, s.idempotencyTTL)
		switch {
		case markErr != nil:
			s.logger.Warn("Idempotency reservation failed", zap.String("key", idempotencyKey), zap.Error(markErr))
		case !fresh:
			s.logger.Info("Duplicate usage ingestion ignored", zap.String("key", idempotencyKey))
			return &RecordUsageEventsResult{Recorded: 0, EventIDs: []uuid.UUID{}, Duplicate: true}, nil
		default:
			defer func() {
				if err != nil {
					s.releaseKey(context.WithoutCancel(ctx), idempotencyKey)
				}
			}()
		}
	}

	events := make([]billing.UsageEvent, 0, len(req.Events))
	subscriberIDs := make(map[uuid.UUID]bool)
	for i, in := range req.Events {
		e, err := in.toDomain(s.catalog.Currency())
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		events = append(events, e)
		subscriberIDs[e.SubscriberID] = true
	}

	for id := range subscriberIDs {
		if _, err := s.subscribers.FindByID(ctx, id); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	if err := s.events.SaveBatch(ctx, events); err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to record usage events", zap.Int("count", len(events)), zap.Error(err))
		return nil, fmt.Errorf("failed to record usage events: %w", err)
	}

	byService := make(map[string]int)
	periods := make([]billing.BillingPeriod, 0, len(events))
	ids := make([]uuid.UUID, len(events))
	for i, e := range events {
		byService[string(e.ServiceType)]++
		periods = append(periods, billing.BillingPeriod{Start: e.OccurredAt, End: e.OccurredAt})
		ids[i] = e.ID
	}
	s.metrics.RecordUsageEvents(ctx, byService)
	if s.invalidator != nil {
		s.invalidator.InvalidateMonths(ctx, periods...)
	}

	s.logger.Info("Usage events recorded",
		zap.Int("count", len(events)),
		zap.Int("subscribers", len(subscriberIDs)))

	return &RecordUsageEventsResult{Recorded: len(events), EventIDs: ids}, nil
}

func (s *UsageService) releaseKey(ctx context.Context, key string) {
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

// ExportUsage aggregates a stored subscriber's month and reports the totals to
// the external billing provider linked through the subscriber's billing reference
func (s *UsageService) ExportUsage(ctx context.Context, subscriberID uuid.UUID, month string) (*UsageExportResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "usage", "export",
		telemetry.SpanSubscriberID.String(subscriberID.String()),
	)
	defer span.End()

	if s.exporter == nil {
		err := shared.NewDomainError(shared.CodeInvalidState, "usage export is not configured")
		telemetry.RecordError(span, err)
		return nil, err
	}

	period, err := resolveMonth(month, s.location, s.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	subscriber, err := s.subscribers.FindByID(ctx, subscriberID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if subscriber.BillingRef == "" {
		err := shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("subscriber %s has no billing account", subscriberID))
		telemetry.RecordError(span, err)
		return nil, err
	}
	tier, err := s.catalog.Lookup(subscriber.Tier)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events, err := s.events.FindBySubscriberAndPeriod(ctx, subscriberID, period)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load usage events: %w", err)
	}
	aggregates, err := s.aggregator.AggregatePeriod(events, tier, period)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	export := billing.UsageExport{
		SubscriberID: subscriberID,
		BillingRef:   subscriber.BillingRef,
		Period:       period,
		Aggregates:   aggregates,
	}
	result, err := s.exporter.Export(ctx, export)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Usage export failed",
			zap.String("subscriber_id", subscriberID.String()),
			zap.String("month", monthKey(period)),
			zap.Error(err))
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to export usage: %w", err)
	}

	resp := ToUsageExportResponse(export, result)
	if resp.Failed > 0 {
		notify(s.notifier, notification.LevelError, "usage", "Usage export incomplete",
			fmt.Sprintf("%d of %d usage totals for subscriber %s were rejected by %s",
				resp.Failed, len(resp.Lines), subscriberID, result.Provider))
	}
	s.logger.Info("Usage exported",
		zap.String("subscriber_id", subscriberID.String()),
		zap.String("month", monthKey(period)),
		zap.String("provider", result.Provider),
		zap.Int("reported", resp.Reported),
		zap.Int("skipped", resp.Skipped),
		zap.Int("failed", resp.Failed))

	return &resp, nil
}

// ExportAllUsage exports one month for every active or past-due subscriber with
// a billing account. A failure for one subscriber does not stop the run.
func (s *UsageService) ExportAllUsage(ctx context.Context, month string) (*UsageExportRunResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "usage", "export_all")
	defer span.End()

	if s.exporter == nil {
		err := shared.NewDomainError(shared.CodeInvalidState, "usage export is not configured")
		telemetry.RecordError(span, err)
		return nil, err
	}
	period, err := resolveMonth(month, s.location, s.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	key := monthKey(period)
	span.SetAttributes(telemetry.SpanPeriod.String(key))

	subscribers, err := s.subscribers.FindByStatus(ctx, billing.StatusActive, billing.StatusPastDue)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load subscribers: %w", err)
	}

	run := &UsageExportRunResponse{Month: key}
	for _, sub := range subscribers {
		if sub.BillingRef == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return run, err
		}
		run.Attempted++
		resp, err := s.ExportUsage(ctx, sub.ID, key)
		switch {
		case err != nil:
			run.Failed++
			run.FailedSubscribers = append(run.FailedSubscribers, sub.ID)
		case resp.Failed > 0:
			run.Incomplete++
		default:
			run.Exported++
		}
	}

	s.logger.Info("Usage export run finished",
		zap.String("month", key),
		zap.Int("attempted", run.Attempted),
		zap.Int("exported", run.Exported),
		zap.Int("incomplete", run.Incomplete),
		zap.Int("failed", run.Failed))
	if run.Failed > 0 {
		notify(s.notifier, notification.LevelWarning, "usage", "Usage export run had failures",
			fmt.Sprintf("%d of %d subscribers could not be exported for %s", run.Failed, run.Attempted, key))
	}
	return run, nil
}

func (s *UsageService) report(ctx context.Context, subscriberID uuid.UUID, tier billing.Tier, period billing.BillingPeriod, events []billing.UsageEvent) (*UsageReportResponse, error) {
	aggregates, err := s.aggregator.AggregatePeriod(events, tier, period)
	if err != nil {
		return nil, err
	}

	totalCost, err := billing.TotalCostOf(s.aggregator.Currency(), aggregates)
	if err != nil {
		return nil, err
	}
	overage := valueobject.Zero(s.aggregator.Currency())
	statuses := make(map[string]int, len(aggregates))
	for _, a := range aggregates {
		overage, err = overage.Add(a.OverageCost)
		if err != nil {
			return nil, err
		}
		statuses[string(a.QuotaStatus)]++
	}

	unknownCount := 0
	if unknown, ok := billing.FindUnknown(aggregates); ok {
		unknownCount = unknown.EventCount
		s.logger.Warn("Usage bucketed as unknown service type",
			zap.String("subscriber_id", subscriberID.String()),
			zap.Strings("service_types", unknown.UnknownServiceTypes),
			zap.Int("events", unknown.EventCount))
		notify(s.notifier, notification.LevelWarning, "usage", "Unknown usage",
			fmt.Sprintf("%d usage events bucketed as unknown for subscriber %s", unknown.EventCount, subscriberID))
	}
	s.metrics.RecordAggregation(ctx, string(tier.Name), int64(unknownCount), statuses)

	return &UsageReportResponse{
		SubscriberID: subscriberID,
		Tier:         string(tier.Name),
		Period:       PeriodResponse{Start: period.Start, End: period.End},
		Aggregates:   ToUsageAggregateResponses(aggregates),
		TotalCost:    totalCost,
		OverageCost:  overage,
		UnknownCount: unknownCount,
	}, nil
}

func (s *UsageService) requestPeriod(req AggregateUsageRequest) (billing.BillingPeriod, error) {
	switch {
	case req.Month != "":
		return billing.ParseMonth(req.Month, s.location)
	case req.PeriodStart != nil && req.PeriodEnd != nil:
		return billing.NewBillingPeriod(req.PeriodStart.UTC(), req.PeriodEnd.UTC())
	case req.PeriodStart != nil || req.PeriodEnd != nil:
		return billing.BillingPeriod{}, billing.NewInvalidInputError("period", "period_start and period_end must be given together")
	default:
		return billing.MonthPeriodOf(s.now().In(s.location)), nil
	}
}
