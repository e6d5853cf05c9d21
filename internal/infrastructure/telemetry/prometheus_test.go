package telemetry_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bizdash/backend/internal/infrastructure/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetrics_ObserveRequest(t *testing.T) {
	m := telemetry.NewHTTPMetrics("bizdash")

	m.ObserveRequest("POST", "/api/v1/quotes", 200, 512, 20*time.Millisecond)
	m.ObserveRequest("POST", "/api/v1/quotes", 200, 0, time.Millisecond)
	m.ObserveRequest("POST", "/api/v1/quotes", 400, 90, time.Millisecond)
	m.ObserveRequest("GET", "", 404, 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/api/v1/quotes", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/api/v1/quotes", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unknown", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ResponseSize), "empty bodies are not sized")
}

func TestHTTPMetrics_InFlight(t *testing.T) {
	m := telemetry.NewHTTPMetrics("bizdash")

	done := m.InFlight()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsInFlight))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RequestsInFlight))
}

func TestHTTPMetrics_RecordError(t *testing.T) {
	m := telemetry.NewHTTPMetrics("bizdash")
	m.RecordError("ERR_UNKNOWN_TIER")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BillingErrors.WithLabelValues("ERR_UNKNOWN_TIER")))

	var nilMetrics *telemetry.HTTPMetrics
	assert.NotPanics(t, func() { nilMetrics.RecordError("ERR_INVALID_INPUT") })
}

func TestHTTPMetrics_Handler(t *testing.T) {
	m := telemetry.NewHTTPMetrics("bizdash")
	m.RequestsTotal.WithLabelValues("GET", "/health", "200").Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "bizdash_http_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestHTTPMetrics_SeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	assert.NotPanics(t, func() {
		telemetry.NewHTTPMetrics("bizdash")
		telemetry.NewHTTPMetrics("bizdash")
	})
}
