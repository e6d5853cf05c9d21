package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/bizdash/backend/internal/application/notification"
	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPortfolioCacheTTL is used when no TTL is configured
const DefaultPortfolioCacheTTL = 5 * time.Minute

// RevenueServiceConfig wires a RevenueService
type RevenueServiceConfig struct {
	Subscribers billing.SubscriberRepository
	Events      billing.UsageEventRepository
	Catalog     *billing.TierCatalog
	Aggregator  *billing.UsageAggregator
	Policy      billing.RecognitionPolicy
	Cache       MetricsCache
	CacheTTL    time.Duration
	Location    *time.Location
	Metrics     *telemetry.BillingMetrics
	Notifier    Notifier
	Logger      *zap.Logger
}

// RevenueService computes portfolio revenue metrics
type RevenueService struct {
	subscribers billing.SubscriberRepository
	events      billing.UsageEventRepository
	catalog     *billing.TierCatalog
	aggregator  *billing.UsageAggregator
	policy      billing.RecognitionPolicy
	cache       MetricsCache
	cacheTTL    time.Duration
	location    *time.Location
	metrics     *telemetry.BillingMetrics
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time
}

// NewRevenueService creates a new RevenueService
func NewRevenueService(cfg RevenueServiceConfig) *RevenueService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultPortfolioCacheTTL
	}
	if !cfg.Policy.IsValid() {
		cfg.Policy = billing.RecognitionRatable
	}
	if cfg.Aggregator == nil {
		cfg.Aggregator = billing.NewUsageAggregator(cfg.Catalog.Currency())
	}
	return &RevenueService{
		subscribers: cfg.Subscribers,
		events:      cfg.Events,
		catalog:     cfg.Catalog,
		aggregator:  cfg.Aggregator,
		policy:      cfg.Policy,
		cache:       cfg.Cache,
		cacheTTL:    cfg.CacheTTL,
		location:    cfg.Location,
		metrics:     cfg.Metrics,
		notifier:    cfg.Notifier,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// Rollup computes metrics over caller-supplied subscribers and usage events.
// With a month, events outside it are ignored; without one, every supplied event counts.
func (s *RevenueService) Rollup(ctx context.Context, req RevenueRollupRequest) (*PortfolioResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "revenue", "rollup",
		telemetry.SpanEventCount.Int(len(req.Events)),
	)
	defer span.End()

	policy := s.policy
	if req.RecognitionPolicy != "" {
		parsed, err := billing.ParseRecognitionPolicy(req.RecognitionPolicy)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		policy = parsed
	}

	subscribers := make([]billing.Subscriber, 0, len(req.Subscribers))
	for i, in := range req.Subscribers {
		sub, err := in.toDomain()
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("subscribers[%d]: %w", i, err)
		}
		subscribers = append(subscribers, sub)
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

	var period *billing.BillingPeriod
	if req.Month != "" {
		p, err := billing.ParseMonth(req.Month, s.location)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		period = &p
	}

	resp, err := s.compute(ctx, subscribers, events, period, coveringPeriod(events, period), policy)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return resp, nil
}

// Portfolio computes metrics for a calendar month from the repositories.
// Results are cached per month and policy until usage or subscribers change.
func (s *RevenueService) Portfolio(ctx context.Context, month string) (*PortfolioResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "revenue", "portfolio",
		telemetry.SpanPolicy.String(string(s.policy)),
	)
	defer span.End()

	period, err := resolveMonth(month, s.location, s.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	key := s.cacheKey(period)
	span.SetAttributes(telemetry.SpanPeriod.String(monthKey(period)))

	if s.cache != nil {
		var cached PortfolioResponse
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("Portfolio cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordCacheLookup(ctx, hit)
		span.SetAttributes(telemetry.SpanCacheHit.Bool(hit))
		if hit {
			cached.Cached = true
			return &cached, nil
		}
	}

	subscribers, err := s.subscribers.FindAllForRollup(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load subscribers: %w", err)
	}
	events, err := s.events.FindByPeriod(ctx, period)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load usage events: %w", err)
	}

	resp, err := s.compute(ctx, subscribers, events, &period, &period, s.policy)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp, s.cacheTTL); err != nil {
			s.logger.Warn("Portfolio cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return resp, nil
}

// InvalidateMonths drops cached portfolio metrics for the given months
func (s *RevenueService) InvalidateMonths(ctx context.Context, periods ...billing.BillingPeriod) {
	if s.cache == nil {
		return
	}
	seen := make(map[string]bool, len(periods))
	for _, p := range periods {
		month := monthKey(billing.MonthPeriodOf(p.Start.In(s.location)))
		if seen[month] {
			continue
		}
		seen[month] = true
		if err := s.cache.Invalidate(ctx, month+":"); err != nil {
			s.logger.Warn("Portfolio cache invalidation failed", zap.String("month", month), zap.Error(err))
		}
	}
}

// InvalidateAll drops every cached portfolio
func (s *RevenueService) InvalidateAll(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ""); err != nil {
		s.logger.Warn("Portfolio cache invalidation failed", zap.Error(err))
	}
}

func (s *RevenueService) compute(
	ctx context.Context,
	subscribers []billing.Subscriber,
	events []billing.UsageEvent,
	reportPeriod *billing.BillingPeriod,
	usagePeriod *billing.BillingPeriod,
	policy billing.RecognitionPolicy,
) (*PortfolioResponse, error) {
	start := time.Now()

	aggregates := map[uuid.UUID][]billing.UsageAggregate{}
	if usagePeriod != nil && len(events) > 0 {
		var err error
		aggregates, err = s.aggregator.AggregateBySubscriber(events, subscribers, s.catalog, *usagePeriod)
		if err != nil {
			return nil, err
		}
	}

	rollup := billing.NewRevenueRollup(s.catalog, s.catalog.Currency()).WithRecognitionPolicy(policy)
	if reportPeriod != nil {
		rollup = rollup.WithPeriod(*reportPeriod)
	}
	metrics, err := rollup.Rollup(subscribers, aggregates)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRollup(ctx, string(policy), metrics.ExcludedSubscribers, time.Since(start))
	s.reportAnomalies(metrics)

	resp := ToPortfolioResponse(metrics, s.now())
	return &resp, nil
}

func (s *RevenueService) reportAnomalies(m *billing.PortfolioMetrics) {
	if m.ExcludedSubscribers > 0 {
		s.logger.Warn("Subscribers excluded from revenue: unknown tier",
			zap.Int("count", m.ExcludedSubscribers),
			zap.Any("subscriber_ids", m.ExcludedSubscriberIDs))
		notify(s.notifier, notification.LevelWarning, "revenue", "Subscribers excluded",
			fmt.Sprintf("%d subscribers excluded: unknown tier", m.ExcludedSubscribers))
	}
	if len(m.UnmatchedUsageSubscriberIDs) > 0 {
		s.logger.Warn("Usage recorded for unknown subscribers",
			zap.Int("count", len(m.UnmatchedUsageSubscriberIDs)))
	}
}

func (s *RevenueService) cacheKey(period billing.BillingPeriod) string {
	return monthKey(period) + ":" + string(s.policy)
}

// coveringPeriod returns period, or the smallest window holding every event
func coveringPeriod(events []billing.UsageEvent, period *billing.BillingPeriod) *billing.BillingPeriod {
	if period != nil {
		return period
	}
	if len(events) == 0 {
		return nil
	}
	first, last := events[0].OccurredAt, events[0].OccurredAt
	for _, e := range events[1:] {
		if e.OccurredAt.Before(first) {
			first = e.OccurredAt
		}
		if e.OccurredAt.After(last) {
			last = e.OccurredAt
		}
	}
	return &billing.BillingPeriod{Start: first, End: last.Add(time.Nanosecond)}
}

var _ PortfolioInvalidator = (*RevenueService)(nil)
