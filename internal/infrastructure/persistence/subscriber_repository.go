package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/bizdash/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSubscriberRepository implements billing.SubscriberRepository using GORM
type GormSubscriberRepository struct {
	db *gorm.DB
}

// NewGormSubscriberRepository creates a new GormSubscriberRepository
func NewGormSubscriberRepository(db *gorm.DB) *GormSubscriberRepository {
	return &GormSubscriberRepository{db: db}
}

// FindByID finds a subscriber by its ID
func (r *GormSubscriberRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Subscriber, error) {
	var model models.SubscriberModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("subscriber %s not found", id))
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns one page of subscribers
func (r *GormSubscriberRepository) FindAll(ctx context.Context, filter shared.Filter) ([]billing.Subscriber, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.SubscriberModel{}), filter)

	query = query.Order(subscriberOrdering.Clause(filter.OrderBy, filter.OrderDir)).
		Order(subscriberOrdering.Tiebreak)

	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.SubscriberModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSubscribers(rows), nil
}

// Count returns the number of subscribers matching the filter
func (r *GormSubscriberRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.SubscriberModel{}), filter).Count(&count).Error
	return count, err
}

// Save inserts a new subscriber or updates an existing one.
// Updates only apply when the stored version is older than the subscriber's,
// so a write based on a stale read fails with INVALID_STATE.
func (r *GormSubscriberRepository) Save(ctx context.Context, subscriber *billing.Subscriber) error {
	model := models.SubscriberModelFromDomain(subscriber)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.SubscriberModel{}).
			Where("id = ? AND version < ?", model.ID, model.Version).
			Updates(map[string]any{
				"name":         model.Name,
				"tier":         model.Tier,
				"seats":        model.Seats,
				"cadence":      model.Cadence,
				"status":       model.Status,
				"renewal_date": model.RenewalDate,
				"billing_ref":  model.BillingRef,
				"version":      model.Version,
				"updated_at":   model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		var existing int64
		if err := tx.Model(&models.SubscriberModel{}).Where("id = ?", model.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return shared.NewDomainError(shared.CodeInvalidState,
				fmt.Sprintf("subscriber %s was modified concurrently", model.ID))
		}
		return tx.Create(model).Error
	})
}

// FindByStatus returns all subscribers in one of the given statuses
func (r *GormSubscriberRepository) FindByStatus(ctx context.Context, statuses ...billing.SubscriptionStatus) ([]billing.Subscriber, error) {
	if len(statuses) == 0 {
		return []billing.Subscriber{}, nil
	}
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	var rows []models.SubscriberModel
	if err := r.db.WithContext(ctx).
		Where("status IN ?", values).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSubscribers(rows), nil
}

// FindAllForRollup returns every subscriber regardless of status
func (r *GormSubscriberRepository) FindAllForRollup(ctx context.Context) ([]billing.Subscriber, error) {
	var rows []models.SubscriberModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSubscribers(rows), nil
}

func (r *GormSubscriberRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		column, ok := subscriberFilterColumns[key]
		if !ok {
			continue
		}
		if s, isString := value.(string); isString && s == "" {
			continue
		}
		query = query.Where(column+" = ?", value)
	}
	if search, ok := filter.Filters["search"].(string); ok && search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	return query
}

func toSubscribers(rows []models.SubscriberModel) []billing.Subscriber {
	result := make([]billing.Subscriber, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result
}

// Ensure GormSubscriberRepository implements SubscriberRepository
var _ billing.SubscriberRepository = (*GormSubscriberRepository)(nil)
