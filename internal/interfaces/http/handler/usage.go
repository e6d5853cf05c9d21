package handler

import (
	"net/http"

	billingapp "github.com/bizdash/backend/internal/application/billing"
	"github.com/bizdash/backend/internal/interfaces/http/dto"
	"github.com/bizdash/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// MaxIdempotencyKeyLength bounds the Idempotency-Key header
const MaxIdempotencyKeyLength = 200

// UsageHandler handles usage ingestion and aggregation endpoints
type UsageHandler struct {
	BaseHandler
	usageService *billingapp.UsageService
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(base BaseHandler, usageService *billingapp.UsageService) *UsageHandler {
	return &UsageHandler{
		BaseHandler:  base,
		usageService: usageService,
	}
}

// Aggregate godoc
// @Summary      Aggregate usage events
// @Description  Totals supplied events per service type against a tier without storing them
// @Tags         usage
// @Accept       json
// @Produce      json
// @Param        request body billingapp.AggregateUsageRequest true "Tier, period and events"
// @Success      200 {object} dto.Response{data=billingapp.UsageReportResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /usage/aggregate [post]
func (h *UsageHandler) Aggregate(c *gin.Context) {
	var req billingapp.AggregateUsageRequest
	if !h.bindJSON(c, &req) {
		return
	}

	report, err := h.usageService.Aggregate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// RecordEvents godoc
// @Summary      Record usage events
// @Description  Stores a batch of usage events. A repeated Idempotency-Key returns 200 with duplicate=true instead of recording the batch again
// @Tags         usage
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Client retry key"
// @Param        request body billingapp.RecordUsageEventsRequest true "Usage events"
// @Success      201 {object} dto.Response{data=billingapp.RecordUsageEventsResult}
// @Success      200 {object} dto.Response{data=billingapp.RecordUsageEventsResult} "Duplicate Idempotency-Key"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /usage/events [post]
func (h *UsageHandler) RecordEvents(c *gin.Context) {
	key := c.GetHeader(middleware.IdempotencyKeyHeader)
	if len(key) > MaxIdempotencyKeyLength {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Idempotency-Key is too long")
		return
	}

	var req billingapp.RecordUsageEventsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.usageService.RecordEvents(c.Request.Context(), key, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if result.Duplicate {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// SubscriberUsage godoc
// @Summary      Get subscriber usage
// @Description  Aggregates a stored subscriber's usage for one month
// @Tags         usage
// @Produce      json
// @Param        id path string true "Subscriber ID" format(uuid)
// @Param        month query string false "Month (YYYY-MM), defaults to the current month"
// @Success      200 {object} dto.Response{data=billingapp.UsageReportResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /subscribers/{id}/usage [get]
func (h *UsageHandler) SubscriberUsage(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var query dto.MonthQuery
	if !h.bindQuery(c, &query) {
		return
	}

	report, err := h.usageService.SubscriberUsage(c.Request.Context(), id, query.Month)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// ExportUsage godoc
// @Summary      Export subscriber usage
// @Description  Reports a subscriber's monthly totals to the linked billing provider
// @Tags         usage
// @Produce      json
// @Param        id path string true "Subscriber ID" format(uuid)
// @Param        month query string false "Month (YYYY-MM), defaults to the current month"
// @Success      200 {object} dto.Response{data=billingapp.UsageExportResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /subscribers/{id}/usage/export [post]
func (h *UsageHandler) ExportUsage(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var query dto.MonthQuery
	if !h.bindQuery(c, &query) {
		return
	}

	result, err := h.usageService.ExportUsage(c.Request.Context(), id, query.Month)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// ExportAllUsage godoc
// @Summary      Export usage for all subscribers
// @Description  Reports one month for every subscriber linked to the billing provider
// @Tags         usage
// @Produce      json
// @Param        month query string false "Month (YYYY-MM), defaults to the current month"
// @Success      200 {object} dto.Response{data=billingapp.UsageExportRunResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /usage/export [post]
func (h *UsageHandler) ExportAllUsage(c *gin.Context) {
	var query dto.MonthQuery
	if !h.bindQuery(c, &query) {
		return
	}

	run, err := h.usageService.ExportAllUsage(c.Request.Context(), query.Month)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, run)
}
