package handler

import (
	billingapp "github.com/bizdash/backend/internal/application/billing"
	"github.com/gin-gonic/gin"
)

// SubscriberHandler handles the subscriber lifecycle endpoints.
// Subscribers are never deleted; cancel is a status change.
type SubscriberHandler struct {
	BaseHandler
	subscriberService *billingapp.SubscriberService
}

// NewSubscriberHandler creates a new SubscriberHandler
func NewSubscriberHandler(base BaseHandler, subscriberService *billingapp.SubscriberService) *SubscriberHandler {
	return &SubscriberHandler{
		BaseHandler:       base,
		subscriberService: subscriberService,
	}
}

// Create godoc
// @Summary      Create a subscriber
// @Description  Registers an active subscriber on a tier
// @Tags         subscribers
// @Accept       json
// @Produce      json
// @Param        request body billingapp.CreateSubscriberRequest true "Subscriber"
// @Success      201 {object} dto.Response{data=billingapp.SubscriberResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /subscribers [post]
func (h *SubscriberHandler) Create(c *gin.Context) {
	var req billingapp.CreateSubscriberRequest
	if !h.bindJSON(c, &req) {
		return
	}

	subscriber, err := h.subscriberService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, subscriber)
}

// List godoc
// @Summary      List subscribers
// @Description  Returns a filtered page of subscribers
// @Tags         subscribers
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        order_by query string false "Sort field"
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Param        tier query string false "Tier filter"
// @Param        status query string false "Status filter" Enums(active, past_due, canceled)
// @Param        cadence query string false "Cadence filter" Enums(monthly, annual)
// @Param        search query string false "Name search"
// @Success      200 {object} dto.Response{data=[]billingapp.SubscriberResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /subscribers [get]
func (h *SubscriberHandler) List(c *gin.Context) {
	var query billingapp.ListSubscribersQuery
	if !h.bindQuery(c, &query) {
		return
	}

	page, err := h.subscriberService.List(c.Request.Context(), query)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	writePage(c, *page)
}

// Get godoc
// @Summary      Get a subscriber
// @Description  Returns one subscriber
// @Tags         subscribers
// @Produce      json
// @Param        id path string true "Subscriber ID" format(uuid)
// @Success      200 {object} dto.Response{data=billingapp.SubscriberResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /subscribers/{id} [get]
func (h *SubscriberHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	subscriber, err := h.subscriberService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, subscriber)
}

// ChangePlan godoc
// @Summary      Change a subscriber plan
// @Description  Moves a subscriber to another tier, seat count or cadence
// @Tags         subscribers
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscriber ID" format(uuid)
// @Param        request body billingapp.ChangePlanRequest true "New plan"
// @Success      200 {object} dto.Response{data=billingapp.SubscriberResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /subscribers/{id}/plan [post]
func (h *SubscriberHandler) ChangePlan(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req billingapp.ChangePlanRequest
	if !h.bindJSON(c, &req) {
		return
	}

	subscriber, err := h.subscriberService.ChangePlan(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, subscriber)
}

// Cancel godoc
// @Summary      Cancel a subscriber
// @Description  Cancels a subscriber. The body is optional
// @Tags         subscribers
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscriber ID" format(uuid)
// @Param        request body billingapp.CancelSubscriberRequest false "Cancellation reason"
// @Success      200 {object} dto.Response{data=billingapp.SubscriberResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /subscribers/{id}/cancel [post]
func (h *SubscriberHandler) Cancel(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req billingapp.CancelSubscriberRequest
	if c.Request.ContentLength != 0 {
		if !h.bindJSON(c, &req) {
			return
		}
	}

	subscriber, err := h.subscriberService.Cancel(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, subscriber)
}

// LinkBillingAccount godoc
// @Summary      Link a billing account
// @Description  Sets or clears the external billing subscription. An empty billing_ref unlinks the subscriber
// @Tags         subscribers
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscriber ID" format(uuid)
// @Param        request body billingapp.LinkBillingAccountRequest true "Billing reference"
// @Success      200 {object} dto.Response{data=billingapp.SubscriberResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /subscribers/{id}/billing-account [post]
func (h *SubscriberHandler) LinkBillingAccount(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req billingapp.LinkBillingAccountRequest
	if !h.bindJSON(c, &req) {
		return
	}

	subscriber, err := h.subscriberService.LinkBillingAccount(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, subscriber)
}
