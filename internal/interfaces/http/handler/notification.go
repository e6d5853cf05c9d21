package handler

import (
	"github.com/bizdash/backend/internal/application/notification"
	"github.com/gin-gonic/gin"
)

// NotificationHandler exposes the dashboard notification store
type NotificationHandler struct {
	BaseHandler
	store *notification.Store
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(base BaseHandler, store *notification.Store) *NotificationHandler {
	return &NotificationHandler{
		BaseHandler: base,
		store:       store,
	}
}

// List godoc
// @Summary      List notifications
// @Description  Returns the current notifications, newest first
// @Tags         notifications
// @Produce      json
// @Success      200 {object} dto.Response{data=notification.State}
// @Router       /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	h.Success(c, h.store.State())
}

// Dismiss godoc
// @Summary      Dismiss a notification
// @Description  Removes one notification and returns the remaining ones
// @Tags         notifications
// @Produce      json
// @Param        id path string true "Notification ID"
// @Success      200 {object} dto.Response{data=notification.State}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /notifications/{id}/dismiss [post]
func (h *NotificationHandler) Dismiss(c *gin.Context) {
	state, err := h.store.Dismiss(c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, state)
}

// Clear godoc
// @Summary      Clear notifications
// @Description  Removes every notification
// @Tags         notifications
// @Produce      json
// @Success      200 {object} dto.Response{data=notification.State}
// @Router       /notifications/clear [post]
func (h *NotificationHandler) Clear(c *gin.Context) {
	h.Success(c, h.store.Clear())
}
