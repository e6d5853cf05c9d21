package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/subscription"
	"github.com/stripe/stripe-go/v81/usagerecord"
	"go.uber.org/zap"
)

// ProviderStripe names Stripe in export results
const ProviderStripe = "stripe"

// MetadataServiceType is the price metadata key that can map a price to a
// service type when its lookup key is used for something else
const MetadataServiceType = "service_type"

// StripeUsageExporter reports monthly usage totals to the metered items of a
// subscriber's Stripe subscription. Items are matched to service types by
// price lookup key or by the service_type price metadata.
type StripeUsageExporter struct {
	config *StripeConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewStripeUsageExporter validates the config and initializes the Stripe client
func NewStripeUsageExporter(config *StripeConfig, logger *zap.Logger) (*StripeUsageExporter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.InitStripeClient()

	return &StripeUsageExporter{
		config: config,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Export sets each aggregate's total quantity on the matching subscription item.
// Totals are reported with the "set" action under an idempotency key derived
// from the item, month and quantity, so repeating an export is harmless.
func (e *StripeUsageExporter) Export(ctx context.Context, export billing.UsageExport) (*billing.UsageExportResult, error) {
	e.logger.Debug("Exporting usage to Stripe",
		zap.String("subscriber_id", export.SubscriberID.String()),
		zap.String("subscription_id", export.BillingRef),
		zap.Int("aggregates", len(export.Aggregates)))

	sub, err := e.getSubscription(ctx, export.BillingRef)
	if err != nil {
		return nil, err
	}

	status := mapSubscriptionStatus(sub.Status)
	if status == billing.StatusCanceled {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("stripe subscription %s is %s", sub.ID, sub.Status))
	}

	items := meteredItems(sub)
	timestamp := e.reportTimestamp(export.Period)
	result := &billing.UsageExportResult{
		Provider:       ProviderStripe,
		ExternalStatus: string(sub.Status),
		Lines:          make([]billing.UsageExportLine, 0, len(export.Aggregates)),
	}

	for _, agg := range export.Aggregates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		line := billing.UsageExportLine{
			ServiceType: agg.ServiceType,
			Quantity:    agg.TotalQuantity,
		}
		if agg.IsUnknown {
			line.Status = billing.ExportLineSkipped
			line.Reason = "unknown service type"
			result.Lines = append(result.Lines, line)
			continue
		}
		itemID, ok := items[string(agg.ServiceType)]
		if !ok {
			line.Status = billing.ExportLineSkipped
			line.Reason = "no metered subscription item"
			result.Lines = append(result.Lines, line)
			continue
		}
		line.ExternalItemID = itemID

		record, err := e.reportUsage(ctx, itemID, agg.TotalQuantity, timestamp,
			IdempotencyKey(export, itemID, agg.TotalQuantity))
		if err != nil {
			line.Status = billing.ExportLineFailed
			line.Reason = failureReason(err)
		} else {
			line.Status = billing.ExportLineReported
			line.RecordID = record.ID
		}
		result.Lines = append(result.Lines, line)
	}

	e.logger.Info("Exported usage to Stripe",
		zap.String("subscriber_id", export.SubscriberID.String()),
		zap.String("subscription_id", sub.ID),
		zap.Int("reported", result.Count(billing.ExportLineReported)),
		zap.Int("skipped", result.Count(billing.ExportLineSkipped)),
		zap.Int("failed", result.Count(billing.ExportLineFailed)))

	return result, nil
}

func (e *StripeUsageExporter) getSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price")

	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, shared.NewDomainError(shared.CodeNotFound,
				fmt.Sprintf("stripe subscription %s not found", subscriptionID))
		}
		e.logger.Error("Failed to get Stripe subscription",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to get subscription: %w", err)
	}
	return sub, nil
}

func (e *StripeUsageExporter) reportUsage(ctx context.Context, itemID string, quantity int64, timestamp time.Time, idempotencyKey string) (*stripe.UsageRecord, error) {
	params := &stripe.UsageRecordParams{
		SubscriptionItem: stripe.String(itemID),
		Quantity:         stripe.Int64(quantity),
		Timestamp:        stripe.Int64(timestamp.Unix()),
		Action:           stripe.String("set"),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	record, err := usagerecord.New(params)
	if err != nil {
		e.logger.Error("Failed to report usage to Stripe",
			zap.String("subscription_item_id", itemID),
			zap.Int64("quantity", quantity),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to report usage: %w", err)
	}
	return record, nil
}

// reportTimestamp places the record inside the period without pointing into the future
func (e *StripeUsageExporter) reportTimestamp(period billing.BillingPeriod) time.Time {
	last := period.End.Add(-time.Second)
	if now := e.now(); now.Before(last) {
		return now
	}
	return last
}

// meteredItems maps service types to subscription item ids
func meteredItems(sub *stripe.Subscription) map[string]string {
	items := make(map[string]string)
	if sub.Items == nil {
		return items
	}
	for _, item := range sub.Items.Data {
		if item == nil || item.Price == nil {
			continue
		}
		if key := item.Price.Metadata[MetadataServiceType]; key != "" {
			items[key] = item.ID
			continue
		}
		if item.Price.LookupKey != "" {
			if _, taken := items[item.Price.LookupKey]; !taken {
				items[item.Price.LookupKey] = item.ID
			}
		}
	}
	return items
}

// IdempotencyKey identifies one reported total
func IdempotencyKey(export billing.UsageExport, itemID string, quantity int64) string {
	return fmt.Sprintf("usage-export:%s:%s:%s:%d",
		export.SubscriberID, itemID, export.Period.Start.UTC().Format("2006-01"), quantity)
}

func failureReason(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "rate limited by stripe"
		}
		if stripeErr.Msg != "" {
			return stripeErr.Msg
		}
	}
	return err.Error()
}

// mapSubscriptionStatus maps a Stripe subscription status onto subscriber states
func mapSubscriptionStatus(status stripe.SubscriptionStatus) billing.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return billing.StatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid,
		stripe.SubscriptionStatusIncomplete, stripe.SubscriptionStatusPaused:
		return billing.StatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return billing.StatusCanceled
	default:
		return billing.SubscriptionStatus(status)
	}
}
