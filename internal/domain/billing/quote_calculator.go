package billing

import (
	"fmt"

	"github.com/bizdash/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DefaultMonthlySavingsPerSeat is the assumed monthly saving per seat used for ROI
// projections when none is configured.
const DefaultMonthlySavingsPerSeat = 2400

// PricingConfig holds the tables and assumptions the quote calculator uses
type PricingConfig struct {
	Currency                  valueobject.Currency
	MonthlySavingsPerSeat     decimal.Decimal
	DiscountSchedule          BracketSchedule
	ImplementationFeeSchedule BracketSchedule
}

// DefaultPricingConfig returns the standard discount and fee tables in USD
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Currency:                  valueobject.DefaultCurrency,
		MonthlySavingsPerSeat:     decimal.NewFromInt(DefaultMonthlySavingsPerSeat),
		DiscountSchedule:          DefaultDiscountSchedule(),
		ImplementationFeeSchedule: DefaultImplementationFeeSchedule(),
	}
}

// TierPricingCalculator computes quotes: volume-discounted seat pricing, a
// one-time implementation fee and an ROI projection. It is a pure function
// of its inputs and the configured tables.
type TierPricingCalculator struct {
	currency       valueobject.Currency
	monthlySavings valueobject.Money
	discounts      BracketSchedule
	fees           BracketSchedule
}

// NewTierPricingCalculator creates a calculator, filling empty tables with defaults
func NewTierPricingCalculator(cfg PricingConfig) (*TierPricingCalculator, error) {
	if cfg.Currency == "" {
		cfg.Currency = valueobject.DefaultCurrency
	}
	if cfg.DiscountSchedule.IsEmpty() {
		cfg.DiscountSchedule = DefaultDiscountSchedule()
	}
	if cfg.ImplementationFeeSchedule.IsEmpty() {
		cfg.ImplementationFeeSchedule = DefaultImplementationFeeSchedule()
	}
	for _, b := range cfg.DiscountSchedule.Brackets() {
		if !valueobject.IsValidPercent(b.Value) {
			return nil, NewInvalidInputError("discount schedule", fmt.Sprintf("%s%% is outside 0-100", b.Value))
		}
	}

	savings, err := valueobject.NewNonNegativeMoney(cfg.MonthlySavingsPerSeat, cfg.Currency)
	if err != nil {
		return nil, NewInvalidInputError("monthly savings per seat", err.Error())
	}

	return &TierPricingCalculator{
		currency:       cfg.Currency,
		monthlySavings: savings,
		discounts:      cfg.DiscountSchedule,
		fees:           cfg.ImplementationFeeSchedule,
	}, nil
}

// Currency returns the currency quotes are priced in
func (c *TierPricingCalculator) Currency() valueobject.Currency {
	return c.currency
}

// DiscountRate returns the volume discount percent for seats.
// A seat count on a bracket boundary gets the upper bracket's discount.
func (c *TierPricingCalculator) DiscountRate(seats int) decimal.Decimal {
	return c.discounts.Lookup(seats)
}

// ImplementationFee returns the one-time fee for seats
func (c *TierPricingCalculator) ImplementationFee(seats int) valueobject.Money {
	return c.feeFrom(c.fees, seats)
}

// QuoteInput is a full quote request. When Tier is set its list price for the
// cadence is used and BasePricePerSeat is ignored.
type QuoteInput struct {
	SeatCount        int
	BasePricePerSeat valueobject.Money
	Cadence          Cadence
	Tier             *Tier
	UseCase          string
	Timeline         string
}

// ComputeQuote prices seatCount seats at basePricePerSeat
func (c *TierPricingCalculator) ComputeQuote(seatCount int, basePricePerSeat valueobject.Money, cadence Cadence) (*Quote, error) {
	return c.compute(seatCount, basePricePerSeat, cadence, c.fees)
}

// ComputeQuoteForTier prices seatCount seats at the tier's list price for cadence.
// A tier with its own implementation fee schedule overrides the default one.
func (c *TierPricingCalculator) ComputeQuoteForTier(tier Tier, seatCount int, cadence Cadence) (*Quote, error) {
	fees := c.fees
	if !tier.ImplementationFees.IsEmpty() {
		fees = tier.ImplementationFees
	}
	q, err := c.compute(seatCount, tier.ListPrice(cadence), cadence, fees)
	if err != nil {
		return nil, err
	}
	q.TierName = tier.Name
	return q, nil
}

// Compute runs a full quote request
func (c *TierPricingCalculator) Compute(input QuoteInput) (*Quote, error) {
	var (
		q   *Quote
		err error
	)
	if input.Tier != nil {
		q, err = c.ComputeQuoteForTier(*input.Tier, input.SeatCount, input.Cadence)
	} else {
		q, err = c.ComputeQuote(input.SeatCount, input.BasePricePerSeat, input.Cadence)
	}
	if err != nil {
		return nil, err
	}
	q.UseCase = input.UseCase
	q.Timeline = input.Timeline
	return q, nil
}

func (c *TierPricingCalculator) compute(seatCount int, basePricePerSeat valueobject.Money, cadence Cadence, fees BracketSchedule) (*Quote, error) {
	if seatCount < 1 {
		return nil, NewInvalidInputError("seat count", fmt.Sprintf("must be at least 1, got %d", seatCount))
	}
	if !cadence.IsValid() {
		return nil, NewInvalidInputError("cadence", fmt.Sprintf("%q is not monthly or annual", cadence))
	}
	if basePricePerSeat.IsNegative() {
		return nil, NewInvalidInputError("base price per seat", fmt.Sprintf("cannot be negative, got %s", basePricePerSeat))
	}
	if basePricePerSeat.Currency() != c.currency {
		return nil, NewInvalidInputError("base price per seat",
			fmt.Sprintf("priced in %q, calculator uses %s", basePricePerSeat.Currency(), c.currency))
	}

	rate := c.discounts.Lookup(seatCount)
	subtotal := basePricePerSeat.MultiplyByInt(int64(seatCount))
	discountAmount := subtotal.Percent(rate)
	recurring := subtotal.MustSubtract(discountAmount)
	fee := c.feeFrom(fees, seatCount)
	grand := recurring.MustAdd(fee)

	return &Quote{
		SeatCount:         seatCount,
		BasePricePerSeat:  basePricePerSeat,
		Cadence:           cadence,
		Subtotal:          subtotal,
		DiscountRate:      rate,
		DiscountAmount:    discountAmount,
		RecurringTotal:    recurring,
		ImplementationFee: fee,
		GrandTotal:        grand,
		ROI:               c.projectROI(seatCount, grand),
		Status:            QuoteStatusDraft,
	}, nil
}

// projectROI derives payback and three-year ROI:
//
//	annualSavings = monthlySavingsPerSeat * seats * 12
//	paybackMonths = grandTotal / (annualSavings / 12)
//	threeYearROI  = (annualSavings*3 - grandTotal) / grandTotal * 100
func (c *TierPricingCalculator) projectROI(seats int, grand valueobject.Money) ROIProjection {
	monthly := c.monthlySavings.MultiplyByInt(int64(seats))
	annual := monthly.MultiplyByInt(12)

	roi := ROIProjection{
		MonthlySavingsPerSeat: c.monthlySavings,
		MonthlySavings:        monthly,
		AnnualSavings:         annual,
		Conditions:            []Condition{},
	}

	if grand.IsZero() || monthly.IsZero() {
		roi.Conditions = append(roi.Conditions, ConditionPaybackUndefined)
	} else {
		payback, _ := grand.Ratio(monthly)
		roi.PaybackMonths = &payback
	}

	if grand.IsZero() {
		roi.Conditions = append(roi.Conditions, ConditionROIUndefined)
	} else {
		gain := annual.MultiplyByInt(3).MustSubtract(grand)
		ratio, _ := gain.Ratio(grand)
		pct := ratio.Mul(valueobject.Hundred())
		roi.ThreeYearROIPercent = &pct
	}

	return roi
}

func (c *TierPricingCalculator) feeFrom(fees BracketSchedule, seats int) valueobject.Money {
	fee, _ := valueobject.NewMoney(fees.Lookup(seats), c.currency)
	return fee
}
