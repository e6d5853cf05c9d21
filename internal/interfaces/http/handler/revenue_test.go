package handler

import (
	"net/http"
	"testing"
	"time"

	billingapp "github.com/bizdash/backend/internal/application/billing"
	"github.com/bizdash/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertAmount(t *testing.T, want string, got valueobject.Money) {
	t.Helper()
	assert.True(t, got.Amount().Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got.Amount())
}

func TestRevenueHandler_Rollup(t *testing.T) {
	s := newTestServer(t)
	starter := uuid.New()
	professional := uuid.New()

	w, env := s.do(t, http.MethodPost, "/api/v1/revenue/rollup", billingapp.RevenueRollupRequest{
		Month: "2026-03",
		Subscribers: []billingapp.SubscriberInput{
			{ID: starter, Tier: "starter", Seats: 10, Cadence: "monthly"},
			{ID: professional, Tier: "professional", Seats: 12, Cadence: "annual"},
		},
		Events: []billingapp.UsageEventInput{
			usageInput(starter, "api_call", 20, "0.5", time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)),
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp billingapp.PortfolioResponse
	decodeData(t, env, &resp)
	assert.Equal(t, "USD", resp.Currency)
	assert.Equal(t, "ratable", resp.RecognitionPolicy)
	assert.Equal(t, 2, resp.ActiveSubscribers)
	assertAmount(t, "490", resp.MRR)
	assertAmount(t, "2480", resp.SubscriptionRevenue)
	assertAmount(t, "10", resp.UsageRevenue)
	assertAmount(t, "2490", resp.TotalRevenue)
	assertAmount(t, "1245", resp.AvgRevenuePerUser)
	assert.False(t, resp.Cached)
	require.Len(t, resp.TierBreakdown, 2)
}

func TestRevenueHandler_Rollup_Errors(t *testing.T) {
	s := newTestServer(t)
	id := uuid.New()

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"no subscribers", billingapp.RevenueRollupRequest{}, http.StatusUnprocessableEntity, "ERR_DIVISION_BY_ZERO"},
		{"lump sum without month", billingapp.RevenueRollupRequest{
			RecognitionPolicy: "lump_sum",
			Subscribers:       []billingapp.SubscriberInput{{ID: id, Tier: "starter", Seats: 1, Cadence: "monthly"}},
		}, http.StatusBadRequest, "ERR_INVALID_INPUT"},
		{"unsupported policy", billingapp.RevenueRollupRequest{RecognitionPolicy: "deferred"}, http.StatusBadRequest, "ERR_VALIDATION"},
		{"subscriber without seats", billingapp.RevenueRollupRequest{
			Subscribers: []billingapp.SubscriberInput{{ID: id, Tier: "starter", Cadence: "monthly"}},
		}, http.StatusBadRequest, "ERR_VALIDATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, http.MethodPost, "/api/v1/revenue/rollup", tt.body)
			requireError(t, w, env, tt.status, tt.code)
		})
	}
}

func TestRevenueHandler_Portfolio(t *testing.T) {
	s := newTestServer(t)

	t.Run("empty portfolio cannot be averaged", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, "/api/v1/revenue/portfolio?month=2026-03", nil)
		requireError(t, w, env, http.StatusUnprocessableEntity, "ERR_DIVISION_BY_ZERO")
	})

	sub := s.createSubscriber(t, "Acme", "starter", 2, "monthly")

	portfolio := func(t *testing.T) billingapp.PortfolioResponse {
		t.Helper()
		w, env := s.do(t, http.MethodGet, "/api/v1/revenue/portfolio?month=2026-03", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp billingapp.PortfolioResponse
		decodeData(t, env, &resp)
		return resp
	}

	first := portfolio(t)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, first.ActiveSubscribers)
	assertAmount(t, "98", first.TotalRevenue)
	require.NotNil(t, first.Period)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), first.Period.Start.UTC())

	second := portfolio(t)
	assert.True(t, second.Cached)
	assertAmount(t, "98", second.TotalRevenue)

	w, _ := s.do(t, http.MethodPost, "/api/v1/usage/events", billingapp.RecordUsageEventsRequest{
		Events: []billingapp.UsageEventInput{
			usageInput(sub.ID, "api_call", 4, "0.25", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)),
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	third := portfolio(t)
	assert.False(t, third.Cached)
	assertAmount(t, "1", third.UsageRevenue)
	assertAmount(t, "99", third.TotalRevenue)

	t.Run("bad month", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, "/api/v1/revenue/portfolio?month=2026-00", nil)
		requireError(t, w, env, http.StatusBadRequest, "ERR_INVALID_INPUT")
	})
}
