package billing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/bizdash/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalculator(t *testing.T) *TierPricingCalculator {
	t.Helper()
	calc, err := NewTierPricingCalculator(DefaultPricingConfig())
	require.NoError(t, err)
	return calc
}

func usd(v string) valueobject.Money {
	return valueobject.MustMoney(v, valueobject.USD)
}

func assertMoney(t *testing.T, want string, got valueobject.Money) {
	t.Helper()
	assert.True(t, got.Amount().Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got.Amount())
}

func TestTierPricingCalculator_BracketBoundaries(t *testing.T) {
	calc := newTestCalculator(t)

	tests := []struct {
		seats        int
		wantDiscount int64
		wantFee      string
	}{
		{1, 0, "25000"},
		{99, 0, "25000"},
		{100, 10, "25000"},
		{249, 10, "25000"},
		{250, 15, "50000"},
		{499, 15, "50000"},
		{500, 20, "75000"},
		{999, 20, "75000"},
		{1000, 25, "100000"},
		{1001, 25, "100000"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d seats", tt.seats), func(t *testing.T) {
			q, err := calc.ComputeQuote(tt.seats, usd("10"), CadenceMonthly)
			require.NoError(t, err)
			assert.True(t, q.DiscountRate.Equal(decimal.NewFromInt(tt.wantDiscount)),
				"discount for %d seats: %s", tt.seats, q.DiscountRate)
			assertMoney(t, tt.wantFee, q.ImplementationFee)
			assert.True(t, calc.DiscountRate(tt.seats).Equal(q.DiscountRate))
		})
	}
}

func TestTierPricingCalculator_ComputeQuote(t *testing.T) {
	calc := newTestCalculator(t)

	t.Run("250 seats at 799", func(t *testing.T) {
		q, err := calc.ComputeQuote(250, usd("799"), CadenceMonthly)
		require.NoError(t, err)

		assert.True(t, q.DiscountRate.Equal(decimal.NewFromInt(15)))
		assertMoney(t, "199750", q.Subtotal)
		assertMoney(t, "29962.5", q.DiscountAmount)
		assertMoney(t, "169787.5", q.RecurringTotal)
		assertMoney(t, "50000", q.ImplementationFee)
		assertMoney(t, "219787.5", q.GrandTotal)
		assert.Equal(t, QuoteStatusDraft, q.Status)
		assert.Equal(t, valueobject.USD, q.GrandTotal.Currency())
	})

	t.Run("1000 seats at 799", func(t *testing.T) {
		q, err := calc.ComputeQuote(1000, usd("799"), CadenceMonthly)
		require.NoError(t, err)

		assert.True(t, q.DiscountRate.Equal(decimal.NewFromInt(25)))
		assertMoney(t, "100000", q.ImplementationFee)
		assertMoney(t, "799000", q.Subtotal)
		assertMoney(t, "599250", q.RecurringTotal)
		assertMoney(t, "699250", q.GrandTotal)
	})

	t.Run("implementation fee is never discounted", func(t *testing.T) {
		q, err := calc.ComputeQuote(500, usd("100"), CadenceAnnual)
		require.NoError(t, err)
		assertMoney(t, "75000", q.ImplementationFee)
		assertMoney(t, q.RecurringTotal.MustAdd(usd("75000")).Amount().String(), q.GrandTotal)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		tests := []struct {
			name    string
			seats   int
			price   valueobject.Money
			cadence Cadence
		}{
			{"zero seats", 0, usd("10"), CadenceMonthly},
			{"negative seats", -5, usd("10"), CadenceMonthly},
			{"negative price", 10, usd("-1"), CadenceMonthly},
			{"bad cadence", 10, usd("10"), Cadence("weekly")},
			{"other currency", 10, valueobject.MustMoney("10", valueobject.EUR), CadenceMonthly},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := calc.ComputeQuote(tt.seats, tt.price, tt.cadence)
				require.Error(t, err)
				assert.True(t, errors.Is(err, shared.ErrInvalidInput))
			})
		}
	})
}

func TestTierPricingCalculator_Monotonic(t *testing.T) {
	calc := newTestCalculator(t)
	price := usd("799")

	var prev *Quote
	for seats := 1; seats <= 1200; seats++ {
		q, err := calc.ComputeQuote(seats, price, CadenceMonthly)
		require.NoError(t, err)
		assert.False(t, q.GrandTotal.IsNegative(), "negative grand total at %d seats", seats)
		assert.False(t, q.RecurringTotal.IsNegative())
		if prev != nil {
			assert.True(t, q.Subtotal.Amount().GreaterThan(prev.Subtotal.Amount()),
				"subtotal decreased at %d seats", seats)
		}
		prev = q
	}
}

func TestTierPricingCalculator_ROI(t *testing.T) {
	t.Run("payback and three year ROI", func(t *testing.T) {
		cfg := DefaultPricingConfig()
		cfg.MonthlySavingsPerSeat = decimal.NewFromInt(100)
		calc, err := NewTierPricingCalculator(cfg)
		require.NoError(t, err)

		// 10 seats * 1000 = 10000, no discount, fee 25000, grand 35000
		q, err := calc.ComputeQuote(10, usd("1000"), CadenceAnnual)
		require.NoError(t, err)
		assertMoney(t, "35000", q.GrandTotal)

		roi := q.ROI
		assertMoney(t, "12000", roi.AnnualSavings)
		assertMoney(t, "1000", roi.MonthlySavings)
		require.NotNil(t, roi.PaybackMonths)
		assert.True(t, roi.PaybackMonths.Equal(decimal.NewFromInt(35)))
		require.NotNil(t, roi.ThreeYearROIPercent)
		// (36000 - 35000) / 35000 * 100
		want := decimal.NewFromInt(1000).Div(decimal.NewFromInt(35000)).Mul(decimal.NewFromInt(100))
		assert.True(t, roi.ThreeYearROIPercent.Equal(want))
		assert.True(t, roi.IsDefined())
		assert.Empty(t, roi.Conditions)
	})

	t.Run("zero savings leaves payback undefined", func(t *testing.T) {
		cfg := DefaultPricingConfig()
		cfg.MonthlySavingsPerSeat = decimal.Zero
		calc, err := NewTierPricingCalculator(cfg)
		require.NoError(t, err)

		q, err := calc.ComputeQuote(10, usd("50"), CadenceMonthly)
		require.NoError(t, err)
		assert.Nil(t, q.ROI.PaybackMonths)
		assert.True(t, q.ROI.HasCondition(ConditionPaybackUndefined))
		require.NotNil(t, q.ROI.ThreeYearROIPercent)
		assert.True(t, q.ROI.ThreeYearROIPercent.Equal(decimal.NewFromInt(-100)))
	})

	t.Run("zero grand total is a named condition", func(t *testing.T) {
		zeroFees := MustBracketSchedule(Bracket{MinSeats: 0, Value: decimal.Zero})
		calc, err := NewTierPricingCalculator(PricingConfig{
			Currency:                  valueobject.USD,
			MonthlySavingsPerSeat:     decimal.NewFromInt(10),
			ImplementationFeeSchedule: zeroFees,
		})
		require.NoError(t, err)

		q, err := calc.ComputeQuote(5, usd("0"), CadenceMonthly)
		require.NoError(t, err)
		assert.True(t, q.GrandTotal.IsZero())
		assert.Nil(t, q.ROI.PaybackMonths)
		assert.Nil(t, q.ROI.ThreeYearROIPercent)
		assert.True(t, q.ROI.HasCondition(ConditionPaybackUndefined))
		assert.True(t, q.ROI.HasCondition(ConditionROIUndefined))
		assert.False(t, q.ROI.IsDefined())
	})

	t.Run("negative savings rejected", func(t *testing.T) {
		cfg := DefaultPricingConfig()
		cfg.MonthlySavingsPerSeat = decimal.NewFromInt(-1)
		_, err := NewTierPricingCalculator(cfg)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})
}

func TestTierPricingCalculator_ForTier(t *testing.T) {
	calc := newTestCalculator(t)
	catalog := DefaultTierCatalog()
	enterprise, err := catalog.Lookup(TierEnterprise)
	require.NoError(t, err)

	t.Run("uses the annual list price", func(t *testing.T) {
		q, err := calc.ComputeQuoteForTier(enterprise, 10, CadenceAnnual)
		require.NoError(t, err)
		assert.Equal(t, TierEnterprise, q.TierName)
		assertMoney(t, "7990", q.BasePricePerSeat)
		assertMoney(t, "79900", q.Subtotal)
	})

	t.Run("tier fee schedule overrides default", func(t *testing.T) {
		custom := enterprise
		custom.ImplementationFees = MustBracketSchedule(Bracket{MinSeats: 1, Value: decimal.NewFromInt(500)})
		q, err := calc.ComputeQuoteForTier(custom, 10, CadenceMonthly)
		require.NoError(t, err)
		assertMoney(t, "500", q.ImplementationFee)
	})

	t.Run("compute carries use case and timeline", func(t *testing.T) {
		q, err := calc.Compute(QuoteInput{
			SeatCount: 250,
			Cadence:   CadenceMonthly,
			Tier:      &enterprise,
			UseCase:   "patent analytics",
			Timeline:  "Q3",
		})
		require.NoError(t, err)
		assert.Equal(t, "patent analytics", q.UseCase)
		assert.Equal(t, "Q3", q.Timeline)
		assertMoney(t, "219787.5", q.GrandTotal)
	})
}

func TestQuote_MarkSent(t *testing.T) {
	calc := newTestCalculator(t)
	q, err := calc.ComputeQuote(5, usd("49"), CadenceMonthly)
	require.NoError(t, err)

	require.NoError(t, q.MarkSent())
	assert.Equal(t, QuoteStatusSent, q.Status)

	err = q.MarkSent()
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}
