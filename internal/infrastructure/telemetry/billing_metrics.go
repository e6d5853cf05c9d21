package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BillingMetricsConfig configures BillingMetrics.
type BillingMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// BillingMetrics records billing engine activity as OpenTelemetry instruments.
// All methods are safe on a nil receiver.
type BillingMetrics struct {
	quotesComputed      metric.Int64Counter
	quoteDuration       metric.Float64Histogram
	aggregations        metric.Int64Counter
	unknownUsageEvents  metric.Int64Counter
	quotaStatus         metric.Int64Counter
	usageEventsRecorded metric.Int64Counter
	rollups             metric.Int64Counter
	rollupDuration      metric.Float64Histogram
	excludedSubscribers metric.Int64Counter
	metricsCache        metric.Int64Counter
	logger              *zap.Logger
}

// NewBillingMetrics creates the billing instruments on cfg.Meter.
func NewBillingMetrics(cfg BillingMetricsConfig) (*BillingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	in := &instruments{meter: cfg.Meter}
	bm := &BillingMetrics{
		quotesComputed: in.counter("billing_quotes_computed_total",
			"Number of quotes computed", "{quote}"),
		quoteDuration: in.seconds("billing_quote_duration_seconds",
			"Time spent computing a quote", calculationBuckets),
		aggregations: in.counter("billing_usage_aggregations_total",
			"Number of usage aggregations performed", "{aggregation}"),
		unknownUsageEvents: in.counter("billing_usage_unknown_events_total",
			"Usage events bucketed under an unknown service type", "{event}"),
		quotaStatus: in.counter("billing_usage_quota_status_total",
			"Aggregates by quota status", "{aggregate}"),
		usageEventsRecorded: in.counter("billing_usage_events_recorded_total",
			"Usage events persisted", "{event}"),
		rollups: in.counter("billing_revenue_rollups_total",
			"Number of revenue rollups computed", "{rollup}"),
		rollupDuration: in.seconds("billing_revenue_rollup_duration_seconds",
			"Time spent computing a revenue rollup", calculationBuckets),
		excludedSubscribers: in.counter("billing_rollup_excluded_subscribers_total",
			"Subscribers excluded from a rollup because their tier is unknown", "{subscriber}"),
		metricsCache: in.counter("billing_portfolio_cache_requests_total",
			"Portfolio metrics cache lookups", "{request}"),
		logger: logger,
	}
	if in.err != nil {
		return nil, in.err
	}
	return bm, nil
}

// RecordQuote records one computed quote.
func (m *BillingMetrics) RecordQuote(ctx context.Context, tier, cadence string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(AttrTier.String(tierLabel(tier)), AttrCadence.String(cadence))
	m.quotesComputed.Add(ctx, 1, attrs)
	m.quoteDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordAggregation records one aggregation call and its anomalies.
func (m *BillingMetrics) RecordAggregation(ctx context.Context, tier string, unknownEvents int64, statuses map[string]int) {
	if m == nil {
		return
	}
	m.aggregations.Add(ctx, 1, metric.WithAttributes(AttrTier.String(tierLabel(tier))))
	if unknownEvents > 0 {
		m.unknownUsageEvents.Add(ctx, unknownEvents)
		m.logger.Debug("Usage events bucketed as unknown", zap.Int64("count", unknownEvents))
	}
	for status, n := range statuses {
		m.quotaStatus.Add(ctx, int64(n), metric.WithAttributes(AttrQuotaStatus.String(status)))
	}
}

// RecordUsageEvents records persisted usage events per service type.
func (m *BillingMetrics) RecordUsageEvents(ctx context.Context, byService map[string]int) {
	if m == nil {
		return
	}
	for service, n := range byService {
		m.usageEventsRecorded.Add(ctx, int64(n), metric.WithAttributes(AttrServiceType.String(service)))
	}
}

// RecordRollup records one rollup and the number of excluded subscribers.
func (m *BillingMetrics) RecordRollup(ctx context.Context, policy string, excluded int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(AttrPolicy.String(policy))
	m.rollups.Add(ctx, 1, attrs)
	m.rollupDuration.Record(ctx, d.Seconds(), attrs)
	if excluded > 0 {
		m.excludedSubscribers.Add(ctx, int64(excluded))
	}
}

// RecordCacheLookup records a portfolio cache hit or miss.
func (m *BillingMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.metricsCache.Add(ctx, 1, metric.WithAttributes(AttrCache.String(result)))
}

func tierLabel(tier string) string {
	if tier == "" {
		return "custom"
	}
	return tier
}
