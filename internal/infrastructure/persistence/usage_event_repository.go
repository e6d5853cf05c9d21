package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/bizdash/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// usageEventBatchSize bounds rows per INSERT statement
const usageEventBatchSize = 500

// GormUsageEventRepository implements billing.UsageEventRepository using GORM
type GormUsageEventRepository struct {
	db *gorm.DB
}

// NewGormUsageEventRepository creates a new GormUsageEventRepository
func NewGormUsageEventRepository(db *gorm.DB) *GormUsageEventRepository {
	return &GormUsageEventRepository{db: db}
}

// SaveBatch records events in one transaction. An event id that is already
// stored fails the whole batch with ALREADY_EXISTS.
func (r *GormUsageEventRepository) SaveBatch(ctx context.Context, events []billing.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]*models.UsageEventModel, len(events))
	for i, e := range events {
		rows[i] = models.UsageEventModelFromDomain(e)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, usageEventBatchSize).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewDomainError(shared.CodeAlreadyExists, "usage event id already recorded")
	}
	return err
}

// FindBySubscriberAndPeriod returns one subscriber's events in [period.Start, period.End)
func (r *GormUsageEventRepository) FindBySubscriberAndPeriod(ctx context.Context, subscriberID uuid.UUID, period billing.BillingPeriod) ([]billing.UsageEvent, error) {
	var rows []models.UsageEventModel
	err := r.db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Where("occurred_at >= ? AND occurred_at < ?", period.Start.UTC(), period.End.UTC()).
		Order("occurred_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toUsageEvents(rows)
}

// FindByPeriod returns all events in [period.Start, period.End)
func (r *GormUsageEventRepository) FindByPeriod(ctx context.Context, period billing.BillingPeriod) ([]billing.UsageEvent, error) {
	var rows []models.UsageEventModel
	err := r.db.WithContext(ctx).
		Where("occurred_at >= ? AND occurred_at < ?", period.Start.UTC(), period.End.UTC()).
		Order("occurred_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toUsageEvents(rows)
}

// CountBySubscriber returns how many events a subscriber has recorded
func (r *GormUsageEventRepository) CountBySubscriber(ctx context.Context, subscriberID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UsageEventModel{}).
		Where("subscriber_id = ?", subscriberID).
		Count(&count).Error
	return count, err
}

func toUsageEvents(rows []models.UsageEventModel) ([]billing.UsageEvent, error) {
	result := make([]billing.UsageEvent, 0, len(rows))
	for i := range rows {
		e, err := rows[i].ToDomain()
		if err != nil {
			return nil, fmt.Errorf("usage event %s: %w", rows[i].ID, err)
		}
		result = append(result, e)
	}
	return result, nil
}

// Ensure GormUsageEventRepository implements UsageEventRepository
var _ billing.UsageEventRepository = (*GormUsageEventRepository)(nil)
