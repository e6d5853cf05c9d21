package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeSubscriber is the aggregate type for Subscriber events
const AggregateTypeSubscriber = "Subscriber"

// Cadence is the billing cycle of a subscription
type Cadence string

const (
	CadenceMonthly Cadence = "monthly"
	CadenceAnnual  Cadence = "annual"
)

// IsValid returns true if the cadence is a supported value
func (c Cadence) IsValid() bool {
	return c == CadenceMonthly || c == CadenceAnnual
}

// String returns the string representation of Cadence
func (c Cadence) String() string {
	return string(c)
}

// ParseCadence parses a cadence case-insensitively
func ParseCadence(s string) (Cadence, error) {
	c := Cadence(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", NewInvalidInputError("cadence", fmt.Sprintf("%q is not monthly or annual", s))
	}
	return c, nil
}

// SubscriptionStatus is the lifecycle state of a subscriber
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

// IsValid returns true if the status is a supported value
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusPastDue, StatusCanceled:
		return true
	}
	return false
}

// String returns the string representation of SubscriptionStatus
func (s SubscriptionStatus) String() string {
	return string(s)
}

// Subscriber is one paying account.
// It always has exactly one tier and one cadence and is never deleted;
// cancellation is a soft status change.
type Subscriber struct {
	shared.Aggregate
	Name        string
	Tier        TierName
	Seats       int
	Cadence     Cadence
	Status      SubscriptionStatus
	RenewalDate time.Time

	// BillingRef is the subscription id at the external billing provider
	// that invoices metered usage. Empty when usage is not exported.
	BillingRef string
}

// MaxBillingRefLength bounds external billing references
const MaxBillingRefLength = 100

// NormalizeBillingRef trims and validates an external billing reference.
// Blank input yields an empty reference.
func NormalizeBillingRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if len(ref) > MaxBillingRefLength {
		return "", NewInvalidInputError("billing_ref", fmt.Sprintf("must be at most %d characters", MaxBillingRefLength))
	}
	if strings.ContainsAny(ref, " /\t\n") {
		return "", NewInvalidInputError("billing_ref", "must not contain whitespace or slashes")
	}
	return ref, nil
}

// NewSubscriber creates an active subscriber whose first renewal is one cycle after start
func NewSubscriber(name string, tier TierName, seats int, cadence Cadence, start time.Time) (*Subscriber, error) {
	if tier == "" {
		return nil, NewInvalidInputError("tier", "cannot be empty")
	}
	if seats < 1 {
		return nil, NewInvalidInputError("seats", fmt.Sprintf("must be at least 1, got %d", seats))
	}
	if !cadence.IsValid() {
		return nil, NewInvalidInputError("cadence", fmt.Sprintf("%q is not monthly or annual", cadence))
	}
	if start.IsZero() {
		start = time.Now()
	}

	s := &Subscriber{
		Aggregate:   shared.NewAggregate(),
		Name:        strings.TrimSpace(name),
		Tier:        tier,
		Seats:       seats,
		Cadence:     cadence,
		Status:      StatusActive,
		RenewalDate: nextRenewal(start.UTC(), cadence),
	}
	s.Raise(NewSubscriberCreatedEvent(s))
	return s, nil
}

// ChangePlan moves the subscriber to another tier, seat count or cadence.
// Changing cadence restarts the renewal cycle from now.
func (s *Subscriber) ChangePlan(tier TierName, seats int, cadence Cadence) error {
	if s.Status == StatusCanceled {
		return shared.NewDomainError(shared.CodeInvalidState, "cannot change the plan of a canceled subscriber")
	}
	if tier == "" {
		return NewInvalidInputError("tier", "cannot be empty")
	}
	if seats < 1 {
		return NewInvalidInputError("seats", fmt.Sprintf("must be at least 1, got %d", seats))
	}
	if !cadence.IsValid() {
		return NewInvalidInputError("cadence", fmt.Sprintf("%q is not monthly or annual", cadence))
	}

	event := NewSubscriberPlanChangedEvent(s, tier, seats, cadence)
	if cadence != s.Cadence {
		s.RenewalDate = nextRenewal(time.Now().UTC(), cadence)
	}
	s.Tier = tier
	s.Seats = seats
	s.Cadence = cadence
	s.Changed()
	s.Raise(event)
	return nil
}

// Cancel marks the subscriber canceled
func (s *Subscriber) Cancel(reason string) error {
	if s.Status == StatusCanceled {
		return shared.NewDomainError(shared.CodeInvalidState, "subscriber is already canceled")
	}
	s.Status = StatusCanceled
	s.Changed()
	s.Raise(NewSubscriberCanceledEvent(s, reason))
	return nil
}

// LinkBillingAccount sets or clears the external billing reference
func (s *Subscriber) LinkBillingAccount(ref string) error {
	if s.Status == StatusCanceled {
		return shared.NewDomainError(shared.CodeInvalidState, "cannot link a canceled subscriber")
	}
	normalized, err := NormalizeBillingRef(ref)
	if err != nil {
		return err
	}
	if normalized == s.BillingRef {
		return nil
	}
	s.BillingRef = normalized
	s.Changed()
	return nil
}

// MarkPastDue flags an active subscriber whose payment failed
func (s *Subscriber) MarkPastDue() error {
	if s.Status != StatusActive {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("cannot mark a %s subscriber past due", s.Status))
	}
	s.Status = StatusPastDue
	s.Changed()
	return nil
}

// Reactivate returns a past-due subscriber to active
func (s *Subscriber) Reactivate() error {
	if s.Status != StatusPastDue {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("cannot reactivate a %s subscriber", s.Status))
	}
	s.Status = StatusActive
	s.Changed()
	return nil
}

// Renew advances the renewal date by one cycle
func (s *Subscriber) Renew() error {
	if s.Status == StatusCanceled {
		return shared.NewDomainError(shared.CodeInvalidState, "cannot renew a canceled subscriber")
	}
	s.RenewalDate = nextRenewal(s.RenewalDate, s.Cadence)
	s.Changed()
	return nil
}

// IsActive returns true if the subscriber counts toward revenue
func (s *Subscriber) IsActive() bool {
	return s.Status == StatusActive
}

// Validate checks invariants for subscribers built outside NewSubscriber,
// e.g. records handed to the rollup by an external system.
func (s *Subscriber) Validate() error {
	if s.ID == uuid.Nil {
		return NewInvalidInputError("subscriber id", "cannot be empty")
	}
	if s.Tier == "" {
		return NewInvalidInputError("tier", fmt.Sprintf("subscriber %s has no tier", s.ID))
	}
	if s.Seats < 1 {
		return NewInvalidInputError("seats", fmt.Sprintf("subscriber %s has %d seats", s.ID, s.Seats))
	}
	if !s.Cadence.IsValid() {
		return NewInvalidInputError("cadence", fmt.Sprintf("subscriber %s has cadence %q", s.ID, s.Cadence))
	}
	if !s.Status.IsValid() {
		return NewInvalidInputError("status", fmt.Sprintf("subscriber %s has status %q", s.ID, s.Status))
	}
	return nil
}

func nextRenewal(from time.Time, cadence Cadence) time.Time {
	if cadence == CadenceAnnual {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}
