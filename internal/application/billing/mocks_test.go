package billing

import (
	"context"
	"sync"

	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// mockSubscriberRepo is a mock implementation of billing.SubscriberRepository
type mockSubscriberRepo struct {
	mock.Mock
}

func (m *mockSubscriberRepo) FindByID(ctx context.Context, id uuid.UUID) (*billing.Subscriber, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscriber), args.Error(1)
}

func (m *mockSubscriberRepo) FindAll(ctx context.Context, filter shared.Filter) ([]billing.Subscriber, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Subscriber), args.Error(1)
}

func (m *mockSubscriberRepo) Save(ctx context.Context, subscriber *billing.Subscriber) error {
	args := m.Called(ctx, subscriber)
	return args.Error(0)
}

func (m *mockSubscriberRepo) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSubscriberRepo) FindByStatus(ctx context.Context, statuses ...billing.SubscriptionStatus) ([]billing.Subscriber, error) {
	args := m.Called(ctx, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Subscriber), args.Error(1)
}

func (m *mockSubscriberRepo) FindAllForRollup(ctx context.Context) ([]billing.Subscriber, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Subscriber), args.Error(1)
}

// mockUsageEventRepo is a mock implementation of billing.UsageEventRepository
type mockUsageEventRepo struct {
	mock.Mock
}

func (m *mockUsageEventRepo) SaveBatch(ctx context.Context, events []billing.UsageEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *mockUsageEventRepo) FindBySubscriberAndPeriod(ctx context.Context, subscriberID uuid.UUID, period billing.BillingPeriod) ([]billing.UsageEvent, error) {
	args := m.Called(ctx, subscriberID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.UsageEvent), args.Error(1)
}

func (m *mockUsageEventRepo) FindByPeriod(ctx context.Context, period billing.BillingPeriod) ([]billing.UsageEvent, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.UsageEvent), args.Error(1)
}

func (m *mockUsageEventRepo) CountBySubscriber(ctx context.Context, subscriberID uuid.UUID) (int64, error) {
	args := m.Called(ctx, subscriberID)
	return args.Get(0).(int64), args.Error(1)
}

// recordingInvalidator records invalidation calls
type recordingInvalidator struct {
	mu     sync.Mutex
	months []string
	all    int
}

func (r *recordingInvalidator) InvalidateMonths(_ context.Context, periods ...billing.BillingPeriod) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range periods {
		r.months = append(r.months, monthKey(billing.MonthPeriodOf(p.Start)))
	}
}

func (r *recordingInvalidator) InvalidateAll(_ context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all++
}

// recordingPublisher records published events
type recordingPublisher struct {
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

// mockUsageExporter is a mock implementation of billing.UsageExporter
type mockUsageExporter struct {
	mock.Mock
}

func (m *mockUsageExporter) Export(ctx context.Context, export billing.UsageExport) (*billing.UsageExportResult, error) {
	args := m.Called(ctx, export)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.UsageExportResult), args.Error(1)
}
