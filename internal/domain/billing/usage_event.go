package billing

import (
	"fmt"
	"time"

	"github.com/bizdash/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// UsageEvent is one atomic billable action. It is immutable once recorded.
type UsageEvent struct {
	ID           uuid.UUID
	SubscriberID uuid.UUID
	ServiceType  ServiceType
	Quantity     int64
	UnitCost     valueobject.Money
	OccurredAt   time.Time
}

// NewUsageEvent creates a validated usage event with a generated ID
func NewUsageEvent(subscriberID uuid.UUID, service ServiceType, quantity int64, unitCost valueobject.Money, occurredAt time.Time) (*UsageEvent, error) {
	e := &UsageEvent{
		ID:           uuid.New(),
		SubscriberID: subscriberID,
		ServiceType:  service,
		Quantity:     quantity,
		UnitCost:     unitCost,
		OccurredAt:   occurredAt.UTC(),
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks the event's fields. Unknown service types are allowed;
// aggregation reports them in the unknown bucket.
func (e UsageEvent) Validate() error {
	if e.SubscriberID == uuid.Nil {
		return NewInvalidInputError("subscriber id", "cannot be empty")
	}
	if e.ServiceType == "" {
		return NewInvalidInputError("service type", "cannot be empty")
	}
	if e.Quantity < 0 {
		return NewInvalidInputError("quantity", fmt.Sprintf("cannot be negative, got %d", e.Quantity))
	}
	if e.UnitCost.IsNegative() {
		return NewInvalidInputError("unit cost", fmt.Sprintf("cannot be negative, got %s", e.UnitCost))
	}
	if !e.UnitCost.Currency().IsValid() {
		return NewInvalidInputError("unit cost", "currency is missing")
	}
	if e.OccurredAt.IsZero() {
		return NewInvalidInputError("occurred at", "timestamp is required")
	}
	return nil
}

// Cost returns quantity * unit cost without rounding
func (e UsageEvent) Cost() valueobject.Money {
	return e.UnitCost.MultiplyByInt(e.Quantity)
}

// BillingPeriod is the half-open aggregation window [Start, End).
// An instant equal to End belongs to the next period.
type BillingPeriod struct {
	Start time.Time
	End   time.Time
}

// NewBillingPeriod creates a period, rejecting start >= end
func NewBillingPeriod(start, end time.Time) (BillingPeriod, error) {
	if start.IsZero() || end.IsZero() {
		return BillingPeriod{}, NewInvalidInputError("period", "start and end are required")
	}
	if !start.Before(end) {
		return BillingPeriod{}, NewInvalidInputError("period",
			fmt.Sprintf("start %s must be before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339)))
	}
	return BillingPeriod{Start: start, End: end}, nil
}

// MonthPeriod returns the calendar month [first day 00:00, first day of next month 00:00) in loc
func MonthPeriod(year int, month time.Month, loc *time.Location) BillingPeriod {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return BillingPeriod{Start: start, End: start.AddDate(0, 1, 0)}
}

// MonthPeriodOf returns the calendar month containing t
func MonthPeriodOf(t time.Time) BillingPeriod {
	return MonthPeriod(t.Year(), t.Month(), t.Location())
}

// ParseMonth parses a "YYYY-MM" string into a calendar month period
func ParseMonth(s string, loc *time.Location) (BillingPeriod, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01", s, loc)
	if err != nil {
		return BillingPeriod{}, NewInvalidInputError("month", fmt.Sprintf("%q is not in YYYY-MM format", s))
	}
	return MonthPeriod(t.Year(), t.Month(), loc), nil
}

// Contains reports whether t is in [Start, End)
func (p BillingPeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Next returns the adjacent period of the same length starting at End.
// Calendar months advance by one month rather than by duration.
func (p BillingPeriod) Next() BillingPeriod {
	if p.isCalendarMonth() {
		return BillingPeriod{Start: p.End, End: p.End.AddDate(0, 1, 0)}
	}
	return BillingPeriod{Start: p.End, End: p.End.Add(p.End.Sub(p.Start))}
}

// IsZero returns true if the period is unset
func (p BillingPeriod) IsZero() bool {
	return p.Start.IsZero() && p.End.IsZero()
}

// String returns the period as "start/end" in RFC3339
func (p BillingPeriod) String() string {
	return p.Start.Format(time.RFC3339) + "/" + p.End.Format(time.RFC3339)
}

func (p BillingPeriod) isCalendarMonth() bool {
	return p.Start.Day() == 1 && p.Start.Hour() == 0 && p.Start.Minute() == 0 &&
		p.Start.Second() == 0 && p.Start.Nanosecond() == 0 &&
		p.Start.AddDate(0, 1, 0).Equal(p.End)
}
