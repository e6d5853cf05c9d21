package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSubscriber(t *testing.T, name string, tier billing.TierName, seats int, cadence billing.Cadence) *billing.Subscriber {
	t.Helper()
	s, err := billing.NewSubscriber(name, tier, seats, cadence, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return s
}

func TestGormSubscriberRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSubscriberRepository(newTestDatabase(t).DB)

	s := newSubscriber(t, "Acme", billing.TierProfessional, 25, billing.CadenceMonthly)
	require.NoError(t, repo.Save(ctx, s))

	found, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, found.ID)
	assert.Equal(t, "Acme", found.Name)
	assert.Equal(t, billing.TierProfessional, found.Tier)
	assert.Equal(t, 25, found.Seats)
	assert.Equal(t, billing.CadenceMonthly, found.Cadence)
	assert.Equal(t, billing.StatusActive, found.Status)
	assert.Equal(t, 1, found.Version)
	assert.True(t, s.RenewalDate.Equal(found.RenewalDate))
	assert.Empty(t, found.PendingEvents())
}

func TestGormSubscriberRepository_FindByID_NotFound(t *testing.T) {
	repo := NewGormSubscriberRepository(newTestDatabase(t).DB)

	_, err := repo.FindByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormSubscriberRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSubscriberRepository(newTestDatabase(t).DB)

	s := newSubscriber(t, "Acme", billing.TierStarter, 10, billing.CadenceMonthly)
	require.NoError(t, repo.Save(ctx, s))

	t.Run("newer version is written", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, s.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.ChangePlan(billing.TierEnterprise, 40, billing.CadenceMonthly))
		require.NoError(t, repo.Save(ctx, loaded))

		found, err := repo.FindByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.TierEnterprise, found.Tier)
		assert.Equal(t, 40, found.Seats)
		assert.Equal(t, 2, found.Version)
	})

	t.Run("billing reference is persisted", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, s.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.LinkBillingAccount("sub_42"))
		require.NoError(t, repo.Save(ctx, loaded))

		found, err := repo.FindByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "sub_42", found.BillingRef)
		assert.Equal(t, 3, found.Version)
	})

	t.Run("stale write is rejected", func(t *testing.T) {
		stale := *s
		require.NoError(t, stale.Cancel("stale copy"))
		err := repo.Save(ctx, &stale)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInvalidState)

		found, err := repo.FindByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, found.Status)
	})
}

func TestGormSubscriberRepository_FindAll(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSubscriberRepository(newTestDatabase(t).DB)

	for i, name := range []string{"Alpha", "Bravo", "Charlie"} {
		tier := billing.TierStarter
		if i == 2 {
			tier = billing.TierEnterprise
		}
		require.NoError(t, repo.Save(ctx, newSubscriber(t, name, tier, 10+i, billing.CadenceMonthly)))
	}

	tests := []struct {
		name      string
		filter    shared.Filter
		wantNames []string
		wantCount int64
	}{
		{
			name:      "sorted by name ascending",
			filter:    shared.Filter{OrderBy: "name", OrderDir: "asc"},
			wantNames: []string{"Alpha", "Bravo", "Charlie"},
			wantCount: 3,
		},
		{
			name:      "second page",
			filter:    shared.Filter{Page: 2, PageSize: 2, OrderBy: "name", OrderDir: "asc"},
			wantNames: []string{"Charlie"},
			wantCount: 3,
		},
		{
			name:      "filtered by tier",
			filter:    shared.Filter{OrderBy: "name", Filters: map[string]interface{}{"tier": "starter"}},
			wantNames: []string{"Bravo", "Alpha"},
			wantCount: 2,
		},
		{
			name:      "search by name",
			filter:    shared.Filter{Filters: map[string]interface{}{"search": "char"}},
			wantNames: []string{"Charlie"},
			wantCount: 1,
		},
		{
			name:      "unknown sort field falls back",
			filter:    shared.Filter{OrderBy: "seats; DROP TABLE subscribers", Filters: map[string]interface{}{"unknown": "x"}},
			wantCount: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := repo.FindAll(ctx, tt.filter)
			require.NoError(t, err)
			if tt.wantNames != nil {
				names := make([]string, len(items))
				for i, s := range items {
					names[i] = s.Name
				}
				assert.Equal(t, tt.wantNames, names)
			}

			count, err := repo.Count(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, count)
		})
	}
}

func TestGormSubscriberRepository_FindByStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSubscriberRepository(newTestDatabase(t).DB)

	active := newSubscriber(t, "Active", billing.TierStarter, 5, billing.CadenceMonthly)
	canceled := newSubscriber(t, "Canceled", billing.TierStarter, 5, billing.CadenceAnnual)
	require.NoError(t, canceled.Cancel("churned"))
	require.NoError(t, repo.Save(ctx, active))
	require.NoError(t, repo.Save(ctx, canceled))

	got, err := repo.FindByStatus(ctx, billing.StatusActive)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, active.ID, got[0].ID)

	none, err := repo.FindByStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := repo.FindAllForRollup(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
