package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/bizdash/backend/internal/infrastructure/telemetry"
	"github.com/bizdash/backend/internal/interfaces/http/dto"
	"github.com/bizdash/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseHandler_HandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"domain error", shared.NewDomainError(shared.CodeNotFound, "subscriber x not found"), http.StatusNotFound, dto.ErrCodeNotFound, "subscriber x not found"},
		{"wrapped domain error", fmt.Errorf("events[0]: %w", shared.NewDomainError(shared.CodeInvalidInput, "quantity cannot be negative")), http.StatusBadRequest, dto.ErrCodeInvalidInput, "quantity cannot be negative"},
		{"plain error is hidden", errors.New("connection reset by peer"), http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := telemetry.NewHTTPMetrics("test")
			h := NewBaseHandler(metrics, nil)
			var recorded any
			r := gin.New()
			r.Use(middleware.RequestID())
			r.GET("/fail", func(c *gin.Context) {
				h.HandleError(c, tt.err)
				recorded, _ = c.Get(middleware.ErrorCodeKey)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/fail", nil)
			req.Header.Set(middleware.RequestIDHeader, "req-7")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantMsg, resp.Error.Message)
			assert.Equal(t, "req-7", resp.Error.RequestID)
			assert.Equal(t, tt.wantCode, recorded)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BillingErrors.WithLabelValues(tt.wantCode)))
		})
	}
}

func TestBaseHandler_HandleError_Nil(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewBaseHandler(nil, nil)
	r := gin.New()
	r.GET("/ok", func(c *gin.Context) {
		h.HandleError(c, nil)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
