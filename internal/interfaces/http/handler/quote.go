package handler

import (
	billingapp "github.com/bizdash/backend/internal/application/billing"
	"github.com/gin-gonic/gin"
)

// QuoteHandler handles quote and tier catalog endpoints
type QuoteHandler struct {
	BaseHandler
	quoteService *billingapp.QuoteService
}

// NewQuoteHandler creates a new QuoteHandler
func NewQuoteHandler(base BaseHandler, quoteService *billingapp.QuoteService) *QuoteHandler {
	return &QuoteHandler{
		BaseHandler:  base,
		quoteService: quoteService,
	}
}

// Compute godoc
// @Summary      Compute a pricing quote
// @Description  Prices a tier for a seat count and billing cadence, including volume discount, annual savings, processing fee and ROI
// @Tags         pricing
// @Accept       json
// @Produce      json
// @Param        request body billingapp.ComputeQuoteRequest true "Quote parameters"
// @Success      200 {object} dto.Response{data=billingapp.QuoteResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /quotes [post]
func (h *QuoteHandler) Compute(c *gin.Context) {
	var req billingapp.ComputeQuoteRequest
	if !h.bindJSON(c, &req) {
		return
	}

	quote, err := h.quoteService.Compute(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, quote)
}

// ListTiers godoc
// @Summary      List pricing tiers
// @Description  Returns the tier catalog sorted by monthly price
// @Tags         pricing
// @Produce      json
// @Success      200 {object} dto.Response{data=[]billingapp.TierResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tiers [get]
func (h *QuoteHandler) ListTiers(c *gin.Context) {
	h.Success(c, h.quoteService.ListTiers(c.Request.Context()))
}

// GetTier godoc
// @Summary      Get a pricing tier
// @Description  Returns one tier with its quotas and overage rates
// @Tags         pricing
// @Produce      json
// @Param        name path string true "Tier name"
// @Success      200 {object} dto.Response{data=billingapp.TierResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /tiers/{name} [get]
func (h *QuoteHandler) GetTier(c *gin.Context) {
	tier, err := h.quoteService.GetTier(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, tier)
}
