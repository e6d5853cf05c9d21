package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	billingapp "github.com/bizdash/backend/internal/application/billing"
	"github.com/bizdash/backend/internal/application/notification"
	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/infrastructure/cache"
	"github.com/bizdash/backend/internal/infrastructure/config"
	"github.com/bizdash/backend/internal/infrastructure/event"
	"github.com/bizdash/backend/internal/infrastructure/persistence"
	"github.com/bizdash/backend/internal/infrastructure/telemetry"
	"github.com/bizdash/backend/internal/interfaces/http/dto"
	"github.com/bizdash/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testServer wires the real services over an in-memory SQLite database
type testServer struct {
	engine   *gin.Engine
	db       *persistence.Database
	notes    *notification.Store
	metrics  *telemetry.HTTPMetrics
	exporter *stubExporter
}

// stubExporter reports every known aggregate and remembers the exports it saw
type stubExporter struct {
	exports []billing.UsageExport
}

func (e *stubExporter) Export(_ context.Context, export billing.UsageExport) (*billing.UsageExportResult, error) {
	e.exports = append(e.exports, export)
	result := &billing.UsageExportResult{Provider: "stub", ExternalStatus: "active"}
	for _, a := range export.Aggregates {
		line := billing.UsageExportLine{ServiceType: a.ServiceType, Quantity: a.TotalQuantity, Status: billing.ExportLineReported}
		if a.IsUnknown {
			line.Status = billing.ExportLineSkipped
		}
		result.Lines = append(result.Lines, line)
	}
	return result, nil
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()

	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	idempotency := cache.NewInMemoryIdempotencyStore(0)
	t.Cleanup(func() { _ = idempotency.Close() })

	logger := zap.NewNop()
	catalog := billing.DefaultTierCatalog()
	calculator, err := billing.NewTierPricingCalculator(billing.DefaultPricingConfig())
	require.NoError(t, err)

	subscribers := persistence.NewGormSubscriberRepository(db.DB)
	usageEvents := persistence.NewGormUsageEventRepository(db.DB)
	notes := notification.NewStore(notification.DefaultCapacity, logger)

	bus := event.NewBus(logger)
	bus.Subscribe(notification.NewSubscriberEventHandler(notes))

	revenueService := billingapp.NewRevenueService(billingapp.RevenueServiceConfig{
		Subscribers: subscribers,
		Events:      usageEvents,
		Catalog:     catalog,
		Cache:       cache.NewInMemoryMetricsCache(),
		Notifier:    notes,
		Logger:      logger,
	})
	exporter := &stubExporter{}
	usageService := billingapp.NewUsageService(billingapp.UsageServiceConfig{
		Subscribers: subscribers,
		Events:      usageEvents,
		Catalog:     catalog,
		Idempotency: idempotency,
		Invalidator: revenueService,
		Notifier:    notes,
		Logger:      logger,
		Exporter:    exporter,
	})
	subscriberService := billingapp.NewSubscriberService(subscribers, catalog, bus, revenueService, logger)
	quoteService := billingapp.NewQuoteService(calculator, catalog, nil, logger)

	metrics := telemetry.NewHTTPMetrics("test")
	base := NewBaseHandler(metrics, logger)
	handlers := &Handlers{
		Quote:        NewQuoteHandler(base, quoteService),
		Usage:        NewUsageHandler(base, usageService),
		Subscriber:   NewSubscriberHandler(base, subscriberService),
		Revenue:      NewRevenueHandler(base, revenueService),
		Notification: NewNotificationHandler(base, notes),
		System: NewSystemHandler(base, "bizdash-test", "test").
			AddCheck("database", db.Ping),
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	handlers.Mount(engine, "v1")

	return &testServer{engine: engine, db: db, notes: notes, metrics: metrics, exporter: exporter}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decodeData(t *testing.T, env envelope, dest any) {
	t.Helper()
	require.True(t, env.Success, "expected success, got error %+v", env.Error)
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, env envelope, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	require.Equal(t, code, env.Error.Code)
}

func (s *testServer) createSubscriber(t *testing.T, name, tier string, seats int, cadence string) billingapp.SubscriberResponse {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/v1/subscribers", billingapp.CreateSubscriberRequest{
		Name:    name,
		Tier:    tier,
		Seats:   seats,
		Cadence: cadence,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp billingapp.SubscriberResponse
	decodeData(t, env, &resp)
	return resp
}
