package billing

import (
	"context"
	"time"

	"github.com/bizdash/backend/internal/application/notification"
	"github.com/bizdash/backend/internal/domain/billing"
)

// MetricsCache is the cache-aside store for computed portfolio metrics
type MetricsCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, prefix string) error
}

// PortfolioInvalidator drops cached portfolio metrics after writes
type PortfolioInvalidator interface {
	InvalidateMonths(ctx context.Context, periods ...billing.BillingPeriod)
	InvalidateAll(ctx context.Context)
}

// Notifier pushes dashboard notifications
type Notifier interface {
	Notify(level notification.Level, source, title, message string) notification.Notification
}

func notify(n Notifier, level notification.Level, source, title, message string) {
	if n == nil {
		return
	}
	n.Notify(level, source, title, message)
}

// monthKey formats a period start as YYYY-MM
func monthKey(p billing.BillingPeriod) string {
	return p.Start.Format("2006-01")
}

// resolveMonth parses YYYY-MM in loc, or returns the current month when blank
func resolveMonth(month string, loc *time.Location, now time.Time) (billing.BillingPeriod, error) {
	if month == "" {
		return billing.MonthPeriodOf(now.In(loc)), nil
	}
	return billing.ParseMonth(month, loc)
}
