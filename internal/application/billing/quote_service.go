package billing

import (
	"context"
	"time"

	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/domain/shared/valueobject"
	"github.com/bizdash/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// QuoteService prices enterprise quotes and exposes the tier catalog
type QuoteService struct {
	calculator *billing.TierPricingCalculator
	catalog    *billing.TierCatalog
	metrics    *telemetry.BillingMetrics
	logger     *zap.Logger
}

// NewQuoteService creates a new QuoteService. metrics may be nil.
func NewQuoteService(
	calculator *billing.TierPricingCalculator,
	catalog *billing.TierCatalog,
	metrics *telemetry.BillingMetrics,
	logger *zap.Logger,
) *QuoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteService{
		calculator: calculator,
		catalog:    catalog,
		metrics:    metrics,
		logger:     logger,
	}
}

// Compute prices a quote. A tier name takes precedence over an explicit base price.
func (s *QuoteService) Compute(ctx context.Context, req ComputeQuoteRequest) (*QuoteResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quote", "compute",
		telemetry.SpanSeatCount.Int(req.SeatCount),
		telemetry.SpanTier.String(req.Tier),
	)
	defer span.End()
	start := time.Now()

	input, err := s.toInput(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	tierLabel := "custom"
	if input.Tier != nil {
		tierLabel = string(input.Tier.Name)
	}
	var quote *billing.Quote
	telemetry.WithProfilingLabels(ctx, map[string]string{telemetry.ProfilingLabelTier: tierLabel}, func(context.Context) {
		quote, err = s.calculator.Compute(input)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordQuote(ctx, string(quote.TierName), string(quote.Cadence), time.Since(start))
	if !quote.ROI.IsDefined() {
		span.AddEvent("roi_undefined", trace.WithAttributes(
			attribute.StringSlice("conditions", conditionStrings(quote.ROI.Conditions))))
	}

	s.logger.Debug("Quote computed",
		zap.Int("seat_count", quote.SeatCount),
		zap.String("tier", string(quote.TierName)),
		zap.String("cadence", string(quote.Cadence)),
		zap.String("discount_rate", quote.DiscountRate.String()),
		zap.String("grand_total", quote.GrandTotal.String()))

	resp := ToQuoteResponse(quote)
	return &resp, nil
}

// ListTiers returns the catalog sorted by monthly price
func (s *QuoteService) ListTiers(_ context.Context) []TierResponse {
	tiers := s.catalog.List()
	result := make([]TierResponse, len(tiers))
	for i, t := range tiers {
		result[i] = ToTierResponse(t)
	}
	return result
}

// GetTier returns one tier or UNKNOWN_TIER
func (s *QuoteService) GetTier(_ context.Context, name string) (*TierResponse, error) {
	t, err := s.catalog.Lookup(billing.TierName(name))
	if err != nil {
		return nil, err
	}
	resp := ToTierResponse(t)
	return &resp, nil
}

func (s *QuoteService) toInput(req ComputeQuoteRequest) (billing.QuoteInput, error) {
	cadence := billing.CadenceMonthly
	if req.Cadence != "" {
		parsed, err := billing.ParseCadence(req.Cadence)
		if err != nil {
			return billing.QuoteInput{}, err
		}
		cadence = parsed
	}

	input := billing.QuoteInput{
		SeatCount: req.SeatCount,
		Cadence:   cadence,
		UseCase:   req.UseCase,
		Timeline:  req.Timeline,
	}

	switch {
	case req.Tier != "":
		tier, err := s.catalog.Lookup(billing.TierName(req.Tier))
		if err != nil {
			return billing.QuoteInput{}, err
		}
		input.Tier = &tier
	case req.BasePricePerSeat != nil:
		price, err := valueobject.NewNonNegativeMoney(*req.BasePricePerSeat, s.calculator.Currency())
		if err != nil {
			return billing.QuoteInput{}, billing.NewInvalidInputError("base price per seat", err.Error())
		}
		input.BasePricePerSeat = price
	default:
		return billing.QuoteInput{}, billing.NewInvalidInputError("quote", "either tier or base_price_per_seat is required")
	}
	return input, nil
}
