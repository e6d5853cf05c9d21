package models

import (
	"time"

	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriberModel is the subscribers table
type SubscriberModel struct {
	AggregateModel
	Name        string    `gorm:"type:varchar(200);not null"`
	Tier        string    `gorm:"type:varchar(50);not null;index"`
	Seats       int       `gorm:"not null"`
	Cadence     string    `gorm:"type:varchar(20);not null"`
	Status      string    `gorm:"type:varchar(20);not null;index"`
	RenewalDate time.Time `gorm:"not null"`
	BillingRef  string    `gorm:"type:varchar(100);not null;default:''"`
}

// TableName returns the table name for the model
func (SubscriberModel) TableName() string {
	return "subscribers"
}

// ToDomain converts the model to a domain Subscriber
func (m *SubscriberModel) ToDomain() *billing.Subscriber {
	return &billing.Subscriber{
		Aggregate:   m.aggregate(),
		Name:        m.Name,
		Tier:        billing.TierName(m.Tier),
		Seats:       m.Seats,
		Cadence:     billing.Cadence(m.Cadence),
		Status:      billing.SubscriptionStatus(m.Status),
		RenewalDate: m.RenewalDate.UTC(),
		BillingRef:  m.BillingRef,
	}
}

// SubscriberModelFromDomain creates a model from a domain Subscriber
func SubscriberModelFromDomain(s *billing.Subscriber) *SubscriberModel {
	return &SubscriberModel{
		AggregateModel: aggregateModel(s.Aggregate),
		Name:           s.Name,
		Tier:           string(s.Tier),
		Seats:          s.Seats,
		Cadence:        string(s.Cadence),
		Status:         string(s.Status),
		RenewalDate:    s.RenewalDate.UTC(),
		BillingRef:     s.BillingRef,
	}
}

// UsageEventModel is the usage_events table. Rows are insert-only.
type UsageEventModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SubscriberID uuid.UUID       `gorm:"type:uuid;not null;index:idx_usage_events_subscriber_time,priority:1"`
	ServiceType  string          `gorm:"type:varchar(50);not null"`
	Quantity     int64           `gorm:"not null"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	Currency     string          `gorm:"type:varchar(3);not null"`
	OccurredAt   time.Time       `gorm:"not null;index:idx_usage_events_subscriber_time,priority:2;index"`
	CreatedAt    time.Time       `gorm:"autoCreateTime"`
}

// TableName returns the table name for the model
func (UsageEventModel) TableName() string {
	return "usage_events"
}

// ToDomain converts the model to a domain UsageEvent
func (m *UsageEventModel) ToDomain() (billing.UsageEvent, error) {
	cost, err := valueobject.NewMoney(m.UnitCost, valueobject.Currency(m.Currency))
	if err != nil {
		return billing.UsageEvent{}, err
	}
	return billing.UsageEvent{
		ID:           m.ID,
		SubscriberID: m.SubscriberID,
		ServiceType:  billing.ServiceType(m.ServiceType),
		Quantity:     m.Quantity,
		UnitCost:     cost,
		OccurredAt:   m.OccurredAt.UTC(),
	}, nil
}

// UsageEventModelFromDomain creates a model from a domain UsageEvent
func UsageEventModelFromDomain(e billing.UsageEvent) *UsageEventModel {
	return &UsageEventModel{
		ID:           e.ID,
		SubscriberID: e.SubscriberID,
		ServiceType:  string(e.ServiceType),
		Quantity:     e.Quantity,
		UnitCost:     e.UnitCost.Amount(),
		Currency:     string(e.UnitCost.Currency()),
		OccurredAt:   e.OccurredAt.UTC(),
	}
}

// All returns every model managed by AutoMigrate
func All() []any {
	return []any{&SubscriberModel{}, &UsageEventModel{}}
}
