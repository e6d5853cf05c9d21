package handler

import (
	billingapp "github.com/bizdash/backend/internal/application/billing"
	"github.com/bizdash/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// RevenueHandler handles portfolio revenue endpoints
type RevenueHandler struct {
	BaseHandler
	revenueService *billingapp.RevenueService
}

// NewRevenueHandler creates a new RevenueHandler
func NewRevenueHandler(base BaseHandler, revenueService *billingapp.RevenueService) *RevenueHandler {
	return &RevenueHandler{
		BaseHandler:    base,
		revenueService: revenueService,
	}
}

// Rollup godoc
// @Summary      Roll up revenue
// @Description  Computes portfolio metrics over supplied subscribers and usage events
// @Tags         revenue
// @Accept       json
// @Produce      json
// @Param        request body billingapp.RevenueRollupRequest true "Subscribers and events"
// @Success      200 {object} dto.Response{data=billingapp.PortfolioResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /revenue/rollup [post]
func (h *RevenueHandler) Rollup(c *gin.Context) {
	var req billingapp.RevenueRollupRequest
	if !h.bindJSON(c, &req) {
		return
	}

	metrics, err := h.revenueService.Rollup(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, metrics)
}

// Portfolio godoc
// @Summary      Get portfolio revenue
// @Description  Computes portfolio metrics over stored subscribers and usage for one month
// @Tags         revenue
// @Produce      json
// @Param        month query string false "Month (YYYY-MM), defaults to the current month"
// @Success      200 {object} dto.Response{data=billingapp.PortfolioResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /revenue/portfolio [get]
func (h *RevenueHandler) Portfolio(c *gin.Context) {
	var query dto.MonthQuery
	if !h.bindQuery(c, &query) {
		return
	}

	metrics, err := h.revenueService.Portfolio(c.Request.Context(), query.Month)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, metrics)
}
