package handler

import (
	"net/http"
	"testing"
	"time"

	billingapp "github.com/bizdash/backend/internal/application/billing"
	"github.com/bizdash/backend/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriberHandler_Create(t *testing.T) {
	s := newTestServer(t)
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	w, env := s.do(t, http.MethodPost, "/api/v1/subscribers", billingapp.CreateSubscriberRequest{
		Name:      "  Acme Patents  ",
		Tier:      "professional",
		Seats:     25,
		Cadence:   "annual",
		StartDate: &start,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created billingapp.SubscriberResponse
	decodeData(t, env, &created)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "Acme Patents", created.Name)
	assert.Equal(t, "active", created.Status)
	assert.True(t, created.RenewalDate.Equal(time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)))

	state := s.notes.State()
	require.Equal(t, 1, state.Len())
	assert.Equal(t, "New subscriber", state.Items[0].Title)

	w, env = s.do(t, http.MethodGet, "/api/v1/subscribers/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched billingapp.SubscriberResponse
	decodeData(t, env, &fetched)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, 25, fetched.Seats)
}

func TestSubscriberHandler_Create_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   billingapp.CreateSubscriberRequest
		status int
		code   string
	}{
		{"unknown tier", billingapp.CreateSubscriberRequest{Name: "Acme", Tier: "legacy", Seats: 5, Cadence: "monthly"}, http.StatusUnprocessableEntity, dto.ErrCodeUnknownTier},
		{"blank name", billingapp.CreateSubscriberRequest{Name: "   ", Tier: "starter", Seats: 5, Cadence: "monthly"}, http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"missing seats", billingapp.CreateSubscriberRequest{Name: "Acme", Tier: "starter", Cadence: "monthly"}, http.StatusBadRequest, dto.ErrCodeValidation},
		{"bad cadence", billingapp.CreateSubscriberRequest{Name: "Acme", Tier: "starter", Seats: 5, Cadence: "weekly"}, http.StatusBadRequest, dto.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			w, env := s.do(t, http.MethodPost, "/api/v1/subscribers", tt.body)
			requireError(t, w, env, tt.status, tt.code)
			assert.Equal(t, 0, s.notes.State().Len())
		})
	}
}

func TestSubscriberHandler_Get_Errors(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodGet, "/api/v1/subscribers/"+uuid.NewString(), nil)
	requireError(t, w, env, http.StatusNotFound, dto.ErrCodeNotFound)

	w, env = s.do(t, http.MethodGet, "/api/v1/subscribers/not-a-uuid", nil)
	requireError(t, w, env, http.StatusBadRequest, dto.ErrCodeValidation)
}

func TestSubscriberHandler_List(t *testing.T) {
	s := newTestServer(t)
	for _, name := range []string{"A", "B", "C"} {
		s.createSubscriber(t, name, "starter", 5, "monthly")
	}
	s.createSubscriber(t, "D", "enterprise", 300, "annual")

	w, env := s.do(t, http.MethodGet, "/api/v1/subscribers?tier=starter&page=1&page_size=2&order_by=name&order_dir=asc", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var items []billingapp.SubscriberResponse
	decodeData(t, env, &items)
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].Name)
	assert.Equal(t, "B", items[1].Name)

	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(3), env.Meta.Total)
	assert.Equal(t, 2, env.Meta.TotalPages)

	w, env = s.do(t, http.MethodGet, "/api/v1/subscribers?page_size=500", nil)
	requireError(t, w, env, http.StatusBadRequest, dto.ErrCodeValidation)
}

func TestSubscriberHandler_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	sub := s.createSubscriber(t, "Acme", "starter", 10, "monthly")
	base := "/api/v1/subscribers/" + sub.ID.String()

	w, env := s.do(t, http.MethodPost, base+"/plan", billingapp.ChangePlanRequest{Tier: "professional", Seats: 40, Cadence: "annual"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var changed billingapp.SubscriberResponse
	decodeData(t, env, &changed)
	assert.Equal(t, "professional", changed.Tier)
	assert.Equal(t, 40, changed.Seats)
	assert.Equal(t, 2, changed.Version)

	w, env = s.do(t, http.MethodPost, base+"/plan", billingapp.ChangePlanRequest{Tier: "gold", Seats: 40, Cadence: "annual"})
	requireError(t, w, env, http.StatusUnprocessableEntity, dto.ErrCodeUnknownTier)

	w, env = s.do(t, http.MethodPost, base+"/cancel", billingapp.CancelSubscriberRequest{Reason: "budget"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var canceled billingapp.SubscriberResponse
	decodeData(t, env, &canceled)
	assert.Equal(t, "canceled", canceled.Status)

	w, env = s.do(t, http.MethodPost, base+"/cancel", nil)
	requireError(t, w, env, http.StatusConflict, dto.ErrCodeInvalidState)

	w, env = s.do(t, http.MethodPost, base+"/plan", billingapp.ChangePlanRequest{Tier: "starter", Seats: 5, Cadence: "monthly"})
	requireError(t, w, env, http.StatusConflict, dto.ErrCodeInvalidState)

	titles := make([]string, 0)
	for _, n := range s.notes.State().Items {
		titles = append(titles, n.Title)
	}
	assert.Equal(t, []string{"Subscription canceled", "Plan changed", "New subscriber"}, titles)

	w, env = s.do(t, http.MethodPost, "/api/v1/subscribers/"+uuid.NewString()+"/cancel", nil)
	requireError(t, w, env, http.StatusNotFound, dto.ErrCodeNotFound)
}
