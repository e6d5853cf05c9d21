package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bizdash/backend/internal/application/notification"
	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/bizdash/backend/internal/domain/shared/valueobject"
	"github.com/bizdash/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type usageFixture struct {
	svc         *UsageService
	subscribers *mockSubscriberRepo
	events      *mockUsageEventRepo
	invalidator *recordingInvalidator
	notes       *notification.Store
	idempotency *cache.InMemoryIdempotencyStore
}

func newUsageFixture(t *testing.T) *usageFixture {
	t.Helper()
	f := &usageFixture{
		subscribers: new(mockSubscriberRepo),
		events:      new(mockUsageEventRepo),
		invalidator: &recordingInvalidator{},
		notes:       notification.NewStore(10, nil),
		idempotency: cache.NewInMemoryIdempotencyStore(0),
	}
	t.Cleanup(func() { _ = f.idempotency.Close() })
	f.svc = NewUsageService(UsageServiceConfig{
		Subscribers: f.subscribers,
		Events:      f.events,
		Catalog:     billing.DefaultTierCatalog(),
		Idempotency: f.idempotency,
		Invalidator: f.invalidator,
		Notifier:    f.notes,
		Logger:      zap.NewNop(),
	})
	f.svc.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return f
}

func eventInput(subscriber uuid.UUID, service string, qty int64, cost string, at time.Time) UsageEventInput {
	return UsageEventInput{
		SubscriberID: subscriber,
		ServiceType:  service,
		Quantity:     qty,
		UnitCost:     dec(cost),
		OccurredAt:   at,
	}
}

func TestUsageService_Aggregate(t *testing.T) {
	f := newUsageFixture(t)
	subscriber := uuid.New()
	march := func(day int) time.Time { return time.Date(2026, 3, day, 10, 0, 0, 0, time.UTC) }

	resp, err := f.svc.Aggregate(context.Background(), AggregateUsageRequest{
		Tier:  "starter",
		Month: "2026-03",
		Events: []UsageEventInput{
			eventInput(subscriber, "api_call", 5, "0.01", march(2)),
			eventInput(subscriber, "api_call", 7, "0.01", march(3)),
			eventInput(subscriber, "telepathy", 1, "2", march(4)),
			eventInput(subscriber, "export", 1, "1", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)),
		},
	})
	require.NoError(t, err)

	require.Len(t, resp.Aggregates, 2)
	apiCalls := resp.Aggregates[0]
	assert.Equal(t, "api_call", apiCalls.ServiceType)
	assert.Equal(t, int64(12), apiCalls.TotalQuantity)
	assert.True(t, apiCalls.TotalCost.Amount().Equal(dec("0.12")))
	assert.Equal(t, "ok", apiCalls.QuotaStatus)
	assert.Equal(t, int64(10_000-12), apiCalls.Remaining)

	unknown := resp.Aggregates[1]
	assert.True(t, unknown.IsUnknown)
	assert.Equal(t, []string{"telepathy"}, unknown.UnknownServiceTypes)

	assert.Equal(t, subscriber, resp.SubscriberID)
	assert.Equal(t, 1, resp.UnknownCount)
	assert.True(t, resp.TotalCost.Amount().Equal(dec("2.12")))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), resp.Period.Start)

	state := f.notes.State()
	require.Equal(t, 1, state.Len())
	assert.Equal(t, notification.LevelWarning, state.Items[0].Level)
}

func TestUsageService_Aggregate_Empty(t *testing.T) {
	f := newUsageFixture(t)

	resp, err := f.svc.Aggregate(context.Background(), AggregateUsageRequest{Tier: "professional"})
	require.NoError(t, err)
	assert.NotNil(t, resp.Aggregates)
	assert.Empty(t, resp.Aggregates)
	assert.True(t, resp.TotalCost.IsZero())
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), resp.Period.Start)
}

func TestUsageService_Aggregate_Errors(t *testing.T) {
	f := newUsageFixture(t)
	at := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		req     AggregateUsageRequest
		wantErr error
	}{
		{"unknown tier", AggregateUsageRequest{Tier: "gold"}, shared.ErrUnknownTier},
		{"malformed month", AggregateUsageRequest{Tier: "starter", Month: "03/2026"}, shared.ErrInvalidInput},
		{"inverted period", AggregateUsageRequest{Tier: "starter", PeriodStart: &start, PeriodEnd: &end}, shared.ErrInvalidInput},
		{"half a period", AggregateUsageRequest{Tier: "starter", PeriodStart: &start}, shared.ErrInvalidInput},
		{"negative quantity", AggregateUsageRequest{Tier: "starter", Events: []UsageEventInput{
			eventInput(uuid.New(), "api_call", -1, "1", at),
		}}, shared.ErrInvalidInput},
		{"mixed subscribers", AggregateUsageRequest{Tier: "starter", Events: []UsageEventInput{
			eventInput(uuid.New(), "api_call", 1, "1", at),
			eventInput(uuid.New(), "api_call", 1, "1", at),
		}}, shared.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Aggregate(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUsageService_RecordEvents(t *testing.T) {
	f := newUsageFixture(t)
	ctx := context.Background()

	subscriber, err := billing.NewSubscriber("Acme", billing.TierStarter, 5, billing.CadenceMonthly, time.Time{})
	require.NoError(t, err)

	f.subscribers.On("FindByID", mock.Anything, subscriber.ID).Return(subscriber, nil)
	f.events.On("SaveBatch", mock.Anything, mock.MatchedBy(func(events []billing.UsageEvent) bool {
		return len(events) == 2
	})).Return(nil).Once()

	req := RecordUsageEventsRequest{Events: []UsageEventInput{
		eventInput(subscriber.ID, "api_call", 10, "0.01", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)),
		eventInput(subscriber.ID, "export", 1, "1", time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)),
	}}

	result, err := f.svc.RecordEvents(ctx, "batch-1", req)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Recorded)
	assert.Len(t, result.EventIDs, 2)
	assert.False(t, result.Duplicate)
	assert.ElementsMatch(t, []string{"2026-03", "2026-02"}, f.invalidator.months)

	t.Run("repeated key is a no-op", func(t *testing.T) {
		again, err := f.svc.RecordEvents(ctx, "batch-1", req)
		require.NoError(t, err)
		assert.True(t, again.Duplicate)
		assert.Equal(t, 0, again.Recorded)
	})

	f.events.AssertNumberOfCalls(t, "SaveBatch", 1)
}

func TestUsageService_RecordEvents_ConcurrentRetry(t *testing.T) {
	f := newUsageFixture(t)
	ctx := context.Background()

	subscriber, err := billing.NewSubscriber("Acme", billing.TierStarter, 5, billing.CadenceMonthly, time.Time{})
	require.NoError(t, err)

	saving := make(chan struct{})
	unblock := make(chan struct{})
	f.subscribers.On("FindByID", mock.Anything, subscriber.ID).Return(subscriber, nil)
	f.events.On("SaveBatch", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(saving)
			<-unblock
		}).
		Return(nil).Once()

	req := RecordUsageEventsRequest{Events: []UsageEventInput{
		eventInput(subscriber.ID, "api_call", 10, "0.01", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)),
	}}

	var (
		wg    sync.WaitGroup
		first *RecordUsageEventsResult
		ferr  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, ferr = f.svc.RecordEvents(ctx, "retry-key", req)
	}()

	<-saving
	second, err := f.svc.RecordEvents(ctx, "retry-key", req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, 0, second.Recorded)

	close(unblock)
	wg.Wait()
	require.NoError(t, ferr)
	assert.False(t, first.Duplicate)
	assert.Equal(t, 1, first.Recorded)

	f.events.AssertNumberOfCalls(t, "SaveBatch", 1)
}

func TestUsageService_RecordEvents_ReleasesKeyOnFailure(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("save failure", func(t *testing.T) {
		f := newUsageFixture(t)
		subscriber, err := billing.NewSubscriber("Acme", billing.TierStarter, 5, billing.CadenceMonthly, time.Time{})
		require.NoError(t, err)
		f.subscribers.On("FindByID", mock.Anything, subscriber.ID).Return(subscriber, nil)
		f.events.On("SaveBatch", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()
		f.events.On("SaveBatch", mock.Anything, mock.Anything).Return(nil).Once()

		req := RecordUsageEventsRequest{Events: []UsageEventInput{eventInput(subscriber.ID, "api_call", 1, "0.01", at)}}

		_, err = f.svc.RecordEvents(ctx, "batch-2", req)
		require.Error(t, err)
		assert.Equal(t, 0, f.idempotency.Len())

		result, err := f.svc.RecordEvents(ctx, "batch-2", req)
		require.NoError(t, err)
		assert.False(t, result.Duplicate)
		assert.Equal(t, 1, result.Recorded)
		f.events.AssertNumberOfCalls(t, "SaveBatch", 2)
	})

	t.Run("unknown subscriber", func(t *testing.T) {
		f := newUsageFixture(t)
		missing := uuid.New()
		f.subscribers.On("FindByID", mock.Anything, missing).
			Return(nil, shared.NewDomainError(shared.CodeNotFound, "subscriber not found"))

		_, err := f.svc.RecordEvents(ctx, "batch-3", RecordUsageEventsRequest{Events: []UsageEventInput{
			eventInput(missing, "api_call", 1, "0.01", at),
		}})
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Equal(t, 0, f.idempotency.Len())
	})
}

func TestUsageService_RecordEvents_UnknownSubscriber(t *testing.T) {
	f := newUsageFixture(t)
	missing := uuid.New()
	f.subscribers.On("FindByID", mock.Anything, missing).
		Return(nil, shared.NewDomainError(shared.CodeNotFound, "subscriber not found"))

	_, err := f.svc.RecordEvents(context.Background(), "", RecordUsageEventsRequest{Events: []UsageEventInput{
		eventInput(missing, "api_call", 1, "0.01", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)),
	}})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	f.events.AssertNotCalled(t, "SaveBatch", mock.Anything, mock.Anything)
}

func TestUsageService_RecordEvents_Empty(t *testing.T) {
	f := newUsageFixture(t)
	_, err := f.svc.RecordEvents(context.Background(), "", RecordUsageEventsRequest{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestUsageService_SubscriberUsage(t *testing.T) {
	f := newUsageFixture(t)
	ctx := context.Background()

	subscriber, err := billing.NewSubscriber("Acme", billing.TierStarter, 5, billing.CadenceMonthly, time.Time{})
	require.NoError(t, err)
	march := billing.MonthPeriod(2026, time.March, time.UTC)

	exports := make([]billing.UsageEvent, 0)
	e, err := billing.NewUsageEvent(subscriber.ID, billing.ServiceExport, 60, valueobject.MustMoney("0.1", valueobject.USD), time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	exports = append(exports, *e)

	f.subscribers.On("FindByID", mock.Anything, subscriber.ID).Return(subscriber, nil)
	f.events.On("FindBySubscriberAndPeriod", mock.Anything, subscriber.ID, march).Return(exports, nil)

	resp, err := f.svc.SubscriberUsage(ctx, subscriber.ID, "2026-03")
	require.NoError(t, err)
	require.Len(t, resp.Aggregates, 1)
	assert.Equal(t, "exceeded", resp.Aggregates[0].QuotaStatus)
	assert.Equal(t, int64(10), resp.Aggregates[0].OverageQuantity)
	assert.True(t, resp.OverageCost.Amount().Equal(dec("10")))
	assert.Equal(t, "starter", resp.Tier)

	t.Run("bad month", func(t *testing.T) {
		_, err := f.svc.SubscriberUsage(ctx, subscriber.ID, "March")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("subscriber on a retired tier", func(t *testing.T) {
		retired := *subscriber
		retired.ID = uuid.New()
		retired.Tier = "legacy"
		f.subscribers.On("FindByID", mock.Anything, retired.ID).Return(&retired, nil)

		_, err := f.svc.SubscriberUsage(ctx, retired.ID, "2026-03")
		assert.ErrorIs(t, err, shared.ErrUnknownTier)
	})
}

func TestUsageService_ExportUsage(t *testing.T) {
	ctx := context.Background()
	march := billing.MonthPeriod(2026, time.March, time.UTC)

	subscriber, err := billing.NewSubscriber("Acme", billing.TierStarter, 5, billing.CadenceMonthly, time.Time{})
	require.NoError(t, err)
	subscriber.BillingRef = "sub_123"
	unlinked, err := billing.NewSubscriber("Globex", billing.TierStarter, 5, billing.CadenceMonthly, time.Time{})
	require.NoError(t, err)

	e, err := billing.NewUsageEvent(subscriber.ID, billing.ServiceAPICall, 40, valueobject.MustMoney("0", valueobject.USD), time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	events := []billing.UsageEvent{*e}

	newFixture := func(t *testing.T) (*usageFixture, *mockUsageExporter) {
		f := newUsageFixture(t)
		exporter := new(mockUsageExporter)
		f.svc.exporter = exporter
		f.subscribers.On("FindByID", mock.Anything, subscriber.ID).Return(subscriber, nil)
		f.subscribers.On("FindByID", mock.Anything, unlinked.ID).Return(unlinked, nil)
		f.events.On("FindBySubscriberAndPeriod", mock.Anything, subscriber.ID, march).Return(events, nil)
		return f, exporter
	}

	t.Run("reports aggregated totals", func(t *testing.T) {
		f, exporter := newFixture(t)
		exporter.On("Export", mock.Anything, mock.MatchedBy(func(x billing.UsageExport) bool {
			return x.BillingRef == "sub_123" && x.Period == march &&
				len(x.Aggregates) == 1 && x.Aggregates[0].TotalQuantity == 40
		})).Return(&billing.UsageExportResult{
			Provider:       "stripe",
			ExternalStatus: "active",
			Lines: []billing.UsageExportLine{
				{ServiceType: billing.ServiceAPICall, Quantity: 40, ExternalItemID: "si_1", RecordID: "mbur_1", Status: billing.ExportLineReported},
			},
		}, nil)

		resp, err := f.svc.ExportUsage(ctx, subscriber.ID, "2026-03")
		require.NoError(t, err)
		assert.Equal(t, "stripe", resp.Provider)
		assert.Equal(t, 1, resp.Reported)
		assert.Equal(t, 0, resp.Failed)
		require.Len(t, resp.Lines, 1)
		assert.Equal(t, "mbur_1", resp.Lines[0].RecordID)
		assert.Equal(t, march.Start, resp.Period.Start)
		assert.Equal(t, 0, f.notes.State().Len())
		exporter.AssertExpectations(t)
	})

	t.Run("rejected lines raise a notification", func(t *testing.T) {
		f, exporter := newFixture(t)
		exporter.On("Export", mock.Anything, mock.Anything).Return(&billing.UsageExportResult{
			Provider: "stripe",
			Lines: []billing.UsageExportLine{
				{ServiceType: billing.ServiceAPICall, Quantity: 40, Status: billing.ExportLineFailed, Reason: "rate limited by stripe"},
			},
		}, nil)

		resp, err := f.svc.ExportUsage(ctx, subscriber.ID, "2026-03")
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Failed)
		state := f.notes.State()
		require.Equal(t, 1, state.Len())
		assert.Equal(t, "Usage export incomplete", state.Items[0].Title)
	})

	t.Run("provider errors", func(t *testing.T) {
		f, exporter := newFixture(t)
		exporter.On("Export", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()
		exporter.On("Export", mock.Anything, mock.Anything).Return(nil, shared.NewDomainError(shared.CodeNotFound, "stripe subscription sub_123 not found")).Once()

		_, err := f.svc.ExportUsage(ctx, subscriber.ID, "2026-03")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to export usage")

		_, err = f.svc.ExportUsage(ctx, subscriber.ID, "2026-03")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("subscriber without billing account", func(t *testing.T) {
		f, exporter := newFixture(t)
		_, err := f.svc.ExportUsage(ctx, unlinked.ID, "2026-03")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		exporter.AssertNotCalled(t, "Export", mock.Anything, mock.Anything)
	})

	t.Run("export not configured", func(t *testing.T) {
		f := newUsageFixture(t)
		_, err := f.svc.ExportUsage(ctx, subscriber.ID, "2026-03")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("bad month", func(t *testing.T) {
		f, _ := newFixture(t)
		_, err := f.svc.ExportUsage(ctx, subscriber.ID, "2026-13")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestUsageService_ExportAllUsage(t *testing.T) {
	ctx := context.Background()
	march := billing.MonthPeriod(2026, time.March, time.UTC)

	newLinked := func(t *testing.T, name, ref string) *billing.Subscriber {
		s, err := billing.NewSubscriber(name, billing.TierStarter, 5, billing.CadenceMonthly, time.Time{})
		require.NoError(t, err)
		s.BillingRef = ref
		return s
	}
	acme := newLinked(t, "Acme", "sub_acme")
	globex := newLinked(t, "Globex", "sub_globex")
	initech := newLinked(t, "Initech", "sub_initech")
	unlinked := newLinked(t, "Hooli", "")

	t.Run("exports every linked subscriber", func(t *testing.T) {
		f := newUsageFixture(t)
		exporter := new(mockUsageExporter)
		f.svc.exporter = exporter

		f.subscribers.On("FindByStatus", mock.Anything, mock.Anything).
			Return([]billing.Subscriber{*acme, *globex, *initech, *unlinked}, nil)
		for _, s := range []*billing.Subscriber{acme, globex, initech} {
			f.subscribers.On("FindByID", mock.Anything, s.ID).Return(s, nil)
			f.events.On("FindBySubscriberAndPeriod", mock.Anything, s.ID, march).Return([]billing.UsageEvent{}, nil)
		}
		byRef := func(ref string) interface{} {
			return mock.MatchedBy(func(x billing.UsageExport) bool { return x.BillingRef == ref })
		}
		exporter.On("Export", mock.Anything, byRef("sub_acme")).
			Return(&billing.UsageExportResult{Provider: "stripe"}, nil)
		exporter.On("Export", mock.Anything, byRef("sub_globex")).
			Return(nil, errors.New("connection reset"))
		exporter.On("Export", mock.Anything, byRef("sub_initech")).
			Return(&billing.UsageExportResult{Provider: "stripe", Lines: []billing.UsageExportLine{
				{ServiceType: billing.ServiceAPICall, Status: billing.ExportLineFailed},
			}}, nil)

		run, err := f.svc.ExportAllUsage(ctx, "2026-03")
		require.NoError(t, err)
		assert.Equal(t, "2026-03", run.Month)
		assert.Equal(t, 3, run.Attempted)
		assert.Equal(t, 1, run.Exported)
		assert.Equal(t, 1, run.Incomplete)
		assert.Equal(t, 1, run.Failed)
		assert.Equal(t, []uuid.UUID{globex.ID}, run.FailedSubscribers)
		f.subscribers.AssertNotCalled(t, "FindByID", mock.Anything, unlinked.ID)

		titles := make([]string, 0)
		for _, n := range f.notes.State().Items {
			titles = append(titles, n.Title)
		}
		assert.Contains(t, titles, "Usage export run had failures")
	})

	t.Run("export not configured", func(t *testing.T) {
		f := newUsageFixture(t)
		_, err := f.svc.ExportAllUsage(ctx, "2026-03")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("repository failure", func(t *testing.T) {
		f := newUsageFixture(t)
		f.svc.exporter = new(mockUsageExporter)
		f.subscribers.On("FindByStatus", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

		_, err := f.svc.ExportAllUsage(ctx, "2026-03")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load subscribers")
	})
}
