package billing

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bizdash/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UsageAggregator totals raw usage events per service type and compares them
// against a tier's limits. It holds no mutable state.
type UsageAggregator struct {
	currency         valueobject.Currency
	warningThreshold decimal.Decimal
}

// NewUsageAggregator creates an aggregator that sums costs in currency
func NewUsageAggregator(currency valueobject.Currency) *UsageAggregator {
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &UsageAggregator{
		currency:         currency,
		warningThreshold: decimal.NewFromInt(DefaultWarningThresholdPercent),
	}
}

// WithWarningThreshold returns a copy using pct (0-100) as the warning threshold
func (a *UsageAggregator) WithWarningThreshold(pct decimal.Decimal) *UsageAggregator {
	c := *a
	c.warningThreshold = valueobject.ClampPercent(pct)
	return &c
}

// Currency returns the currency costs are summed in
func (a *UsageAggregator) Currency() valueobject.Currency {
	return a.currency
}

type usageGroup struct {
	count    int
	quantity int64
	cost     valueobject.Money
	raw      map[string]struct{}
}

// Aggregate totals one subscriber's events in [periodStart, periodEnd) and returns
// one aggregate per observed service type, sorted by service type name.
// An empty event list yields an empty, non-nil slice.
func (a *UsageAggregator) Aggregate(events []UsageEvent, tier Tier, periodStart, periodEnd time.Time) ([]UsageAggregate, error) {
	period, err := NewBillingPeriod(periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	var subscriberID uuid.UUID
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if e.UnitCost.Currency() != a.currency {
			return nil, NewInvalidInputError("unit cost",
				fmt.Sprintf("event %d is priced in %s, aggregation uses %s", i, e.UnitCost.Currency(), a.currency))
		}
		if i == 0 {
			subscriberID = e.SubscriberID
		} else if e.SubscriberID != subscriberID {
			return nil, NewInvalidInputError("events",
				fmt.Sprintf("event %d belongs to subscriber %s, expected %s", i, e.SubscriberID, subscriberID))
		}
	}

	groups := make(map[ServiceType]*usageGroup)
	for _, e := range events {
		if !period.Contains(e.OccurredAt) {
			continue
		}
		key := e.ServiceType
		if !key.IsKnown() {
			key = ServiceUnknown
		}
		g, ok := groups[key]
		if !ok {
			g = &usageGroup{cost: valueobject.Zero(a.currency)}
			groups[key] = g
		}
		if e.Quantity > math.MaxInt64-g.quantity {
			return nil, NewInvalidInputError("quantity",
				fmt.Sprintf("total for %s overflows", key))
		}
		g.count++
		g.quantity += e.Quantity
		g.cost = g.cost.MustAdd(e.Cost())
		if key == ServiceUnknown {
			if g.raw == nil {
				g.raw = make(map[string]struct{})
			}
			g.raw[string(e.ServiceType)] = struct{}{}
		}
	}

	result := make([]UsageAggregate, 0, len(groups))
	for service, g := range groups {
		result = append(result, a.buildAggregate(subscriberID, service, g, tier, period))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ServiceType < result[j].ServiceType
	})
	return result, nil
}

// AggregatePeriod is Aggregate over a BillingPeriod
func (a *UsageAggregator) AggregatePeriod(events []UsageEvent, tier Tier, period BillingPeriod) ([]UsageAggregate, error) {
	return a.Aggregate(events, tier, period.Start, period.End)
}

// AggregateBySubscriber splits a mixed event stream by subscriber and aggregates
// each subscriber against its own tier. Events of subscribers that are missing from
// subscribers, or whose tier is not in tiers, are still aggregated, with every
// quota reported as untracked; the rollup decides what to do with them.
func (a *UsageAggregator) AggregateBySubscriber(events []UsageEvent, subscribers []Subscriber, tiers TierLookup, period BillingPeriod) (map[uuid.UUID][]UsageAggregate, error) {
	if _, err := NewBillingPeriod(period.Start, period.End); err != nil {
		return nil, err
	}

	tierBySubscriber := make(map[uuid.UUID]TierName, len(subscribers))
	for _, s := range subscribers {
		tierBySubscriber[s.ID] = s.Tier
	}

	bySubscriber := make(map[uuid.UUID][]UsageEvent)
	order := make([]uuid.UUID, 0)
	for _, e := range events {
		if _, seen := bySubscriber[e.SubscriberID]; !seen {
			order = append(order, e.SubscriberID)
		}
		bySubscriber[e.SubscriberID] = append(bySubscriber[e.SubscriberID], e)
	}

	result := make(map[uuid.UUID][]UsageAggregate, len(bySubscriber))
	for _, id := range order {
		tier := Tier{}
		if name, ok := tierBySubscriber[id]; ok && tiers != nil {
			if t, err := tiers.Lookup(name); err == nil {
				tier = t
			}
		}
		aggs, err := a.Aggregate(bySubscriber[id], tier, period.Start, period.End)
		if err != nil {
			return nil, fmt.Errorf("subscriber %s: %w", id, err)
		}
		result[id] = aggs
	}
	return result, nil
}

func (a *UsageAggregator) buildAggregate(subscriberID uuid.UUID, service ServiceType, g *usageGroup, tier Tier, period BillingPeriod) UsageAggregate {
	agg := UsageAggregate{
		SubscriberID:  subscriberID,
		ServiceType:   service,
		PeriodStart:   period.Start,
		PeriodEnd:     period.End,
		EventCount:    g.count,
		TotalQuantity: g.quantity,
		TotalCost:     g.cost,
		OverageCost:   valueobject.Zero(a.currency),
		QuotaStatus:   QuotaStatusUntracked,
	}

	if service == ServiceUnknown {
		agg.IsUnknown = true
		agg.UnknownServiceTypes = make([]string, 0, len(g.raw))
		for name := range g.raw {
			agg.UnknownServiceTypes = append(agg.UnknownServiceTypes, name)
		}
		sort.Strings(agg.UnknownServiceTypes)
		return agg
	}

	limit, ok := tier.Limit(service)
	if !ok {
		return agg
	}
	if limit == UnlimitedQuota {
		agg.IsUnlimited = true
		agg.QuotaStatus = QuotaStatusUnlimited
		return agg
	}

	bounded := limit
	agg.Limit = &bounded
	pct := usagePercentage(g.quantity, limit)
	agg.UsagePercentage = &pct

	if g.quantity > limit {
		agg.OverageQuantity = g.quantity - limit
		rate := tier.OverageRate(service)
		if rate.Currency() == a.currency {
			agg.OverageCost = rate.MultiplyByInt(agg.OverageQuantity)
		}
		agg.QuotaStatus = QuotaStatusExceeded
	} else if pct.GreaterThanOrEqual(a.warningThreshold) && g.quantity > 0 {
		agg.QuotaStatus = QuotaStatusWarning
	} else {
		agg.QuotaStatus = QuotaStatusOK
	}
	return agg
}

// usagePercentage returns min(100, quantity / limit * 100).
// A zero limit is full as soon as anything is used.
func usagePercentage(quantity, limit int64) decimal.Decimal {
	if limit == 0 {
		if quantity > 0 {
			return valueobject.Hundred()
		}
		return decimal.Zero
	}
	pct, _ := valueobject.PercentOf(decimal.NewFromInt(quantity), decimal.NewFromInt(limit))
	return valueobject.ClampPercent(pct)
}
