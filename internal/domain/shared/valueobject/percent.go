package valueobject

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
)

// Hundred returns 100 as a decimal
func Hundred() decimal.Decimal {
	return hundred
}

// PercentOf returns part / whole * 100.
// ok is false when whole is zero; the result is then zero and must not be displayed as a number.
func PercentOf(part, whole decimal.Decimal) (pct decimal.Decimal, ok bool) {
	if whole.IsZero() {
		return decimal.Zero, false
	}
	return part.Div(whole).Mul(hundred), true
}

// ClampPercent limits a percentage to [0, 100]
func ClampPercent(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// IsValidPercent reports whether pct is within [0, 100]
func IsValidPercent(pct decimal.Decimal) bool {
	return !pct.IsNegative() && !pct.GreaterThan(hundred)
}
