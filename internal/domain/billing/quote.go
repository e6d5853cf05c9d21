package billing

import (
	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/bizdash/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// QuoteStatus is the archival state of a quote
type QuoteStatus string

const (
	QuoteStatusDraft QuoteStatus = "draft"
	QuoteStatusSent  QuoteStatus = "sent"
)

// Quote is an enterprise sales quote. Amounts are exact decimals; formatting
// and rounding for display are left to the caller.
type Quote struct {
	SeatCount        int
	BasePricePerSeat valueobject.Money
	Cadence          Cadence
	TierName         TierName // empty when priced from an explicit base price
	UseCase          string
	Timeline         string

	Subtotal          valueobject.Money
	DiscountRate      decimal.Decimal // percent, 0-100
	DiscountAmount    valueobject.Money
	RecurringTotal    valueobject.Money
	ImplementationFee valueobject.Money // one-time, never discounted
	GrandTotal        valueobject.Money // first-year cost projection

	ROI    ROIProjection
	Status QuoteStatus
}

// MarkSent archives a draft quote as sent
func (q *Quote) MarkSent() error {
	if q.Status != QuoteStatusDraft {
		return shared.NewDomainError(shared.CodeInvalidState, "only draft quotes can be sent")
	}
	q.Status = QuoteStatusSent
	return nil
}

// ROIProjection is the payback and three-year ROI derived from an assumed
// per-seat monthly saving. Undefined values are nil and named in Conditions.
type ROIProjection struct {
	MonthlySavingsPerSeat valueobject.Money
	MonthlySavings        valueobject.Money
	AnnualSavings         valueobject.Money
	PaybackMonths         *decimal.Decimal
	ThreeYearROIPercent   *decimal.Decimal
	Conditions            []Condition
}

// IsDefined returns true if both payback and ROI were computed
func (r ROIProjection) IsDefined() bool {
	return r.PaybackMonths != nil && r.ThreeYearROIPercent != nil
}

// HasCondition reports whether c was raised for this projection
func (r ROIProjection) HasCondition(c Condition) bool {
	for _, existing := range r.Conditions {
		if existing == c {
			return true
		}
	}
	return false
}
