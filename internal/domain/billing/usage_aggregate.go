package billing

import (
	"time"

	"github.com/bizdash/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultWarningThresholdPercent is the usage percentage at which a quota is reported as warning
const DefaultWarningThresholdPercent = 80

// QuotaStatus describes consumption against a tier limit
type QuotaStatus string

const (
	QuotaStatusOK        QuotaStatus = "ok"
	QuotaStatusWarning   QuotaStatus = "warning"
	QuotaStatusExceeded  QuotaStatus = "exceeded"
	QuotaStatusUnlimited QuotaStatus = "unlimited"
	QuotaStatusUntracked QuotaStatus = "untracked" // tier defines no quota for the service
)

// String returns the string representation of QuotaStatus
func (s QuotaStatus) String() string {
	return string(s)
}

// UsageAggregate is the derived total of one subscriber's usage of one service
// type in one period. It is recomputed from events and never mutated.
type UsageAggregate struct {
	SubscriberID  uuid.UUID
	ServiceType   ServiceType
	PeriodStart   time.Time
	PeriodEnd     time.Time
	EventCount    int
	TotalQuantity int64
	TotalCost     valueobject.Money

	// Limit is nil when the quota is unlimited or untracked
	Limit       *int64
	IsUnlimited bool

	// UsagePercentage is the progress-bar value, capped to [0, 100].
	// Nil when there is no bounded limit.
	UsagePercentage *decimal.Decimal

	// OverageQuantity and OverageCost are computed from the uncapped quantity
	OverageQuantity int64
	OverageCost     valueobject.Money
	QuotaStatus     QuotaStatus

	// IsUnknown marks the bucket collecting unrecognised service types;
	// UnknownServiceTypes lists the raw names seen, sorted.
	IsUnknown           bool
	UnknownServiceTypes []string
}

// IsOverQuota returns true if quantity exceeds a bounded limit
func (a UsageAggregate) IsOverQuota() bool {
	return a.OverageQuantity > 0
}

// Remaining returns the units left under a bounded limit, or -1 if there is none
func (a UsageAggregate) Remaining() int64 {
	if a.Limit == nil {
		return UnlimitedQuota
	}
	if remaining := *a.Limit - a.TotalQuantity; remaining > 0 {
		return remaining
	}
	return 0
}

// FindUnknown returns the unknown bucket from a set of aggregates, if present
func FindUnknown(aggregates []UsageAggregate) (UsageAggregate, bool) {
	for _, a := range aggregates {
		if a.IsUnknown {
			return a, true
		}
	}
	return UsageAggregate{}, false
}

// TotalCostOf sums the cost of aggregates in currency
func TotalCostOf(currency valueobject.Currency, aggregates []UsageAggregate) (valueobject.Money, error) {
	total := valueobject.Zero(currency)
	for _, a := range aggregates {
		var err error
		total, err = total.Add(a.TotalCost)
		if err != nil {
			return valueobject.Money{}, NewInvalidInputError("usage cost", err.Error())
		}
	}
	return total, nil
}
