package handler

import (
	"github.com/bizdash/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// Handlers bundles the HTTP handlers of the billing API
type Handlers struct {
	Quote        *QuoteHandler
	Usage        *UsageHandler
	Subscriber   *SubscriberHandler
	Revenue      *RevenueHandler
	Notification *NotificationHandler
	System       *SystemHandler
}

// RouteGroups returns the versioned API route groups
func (h *Handlers) RouteGroups() []*router.DomainGroup {
	pricing := router.NewDomainGroup("pricing", "")
	pricing.POST("/quotes", h.Quote.Compute).
		GET("/tiers", h.Quote.ListTiers).
		GET("/tiers/:name", h.Quote.GetTier)

	usage := router.NewDomainGroup("usage", "/usage")
	usage.POST("/aggregate", h.Usage.Aggregate).
		POST("/events", h.Usage.RecordEvents).
		POST("/export", h.Usage.ExportAllUsage)

	subscribers := router.NewDomainGroup("subscribers", "/subscribers")
	subscribers.POST("", h.Subscriber.Create).
		GET("", h.Subscriber.List).
		GET("/:id", h.Subscriber.Get).
		POST("/:id/plan", h.Subscriber.ChangePlan).
		POST("/:id/cancel", h.Subscriber.Cancel).
		POST("/:id/billing-account", h.Subscriber.LinkBillingAccount).
		GET("/:id/usage", h.Usage.SubscriberUsage).
		POST("/:id/usage/export", h.Usage.ExportUsage)

	revenue := router.NewDomainGroup("revenue", "/revenue")
	revenue.POST("/rollup", h.Revenue.Rollup).
		GET("/portfolio", h.Revenue.Portfolio)

	notifications := router.NewDomainGroup("notifications", "/notifications")
	notifications.GET("", h.Notification.List).
		POST("/clear", h.Notification.Clear).
		POST("/:id/dismiss", h.Notification.Dismiss)

	system := router.NewDomainGroup("system", "/system")
	system.GET("/info", h.System.GetSystemInfo)

	return []*router.DomainGroup{pricing, usage, subscribers, revenue, notifications, system}
}

// Mount registers /health and the versioned API on engine and returns the router
func (h *Handlers) Mount(engine *gin.Engine, apiVersion string) *router.Router {
	engine.GET("/health", h.System.Health)

	r := router.NewRouter(engine, router.WithAPIVersion(apiVersion))
	for _, group := range h.RouteGroups() {
		r.Register(group)
	}
	r.Setup()
	return r
}
