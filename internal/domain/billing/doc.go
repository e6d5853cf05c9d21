// Package billing provides the domain model and calculation engines for
// tiered, usage-based subscription billing.
//
// This package implements the billing bounded context, which is responsible for:
//   - Quoting enterprise deals with volume discounts, implementation fees and ROI projections
//   - Aggregating raw usage events per service type against tier quotas
//   - Rolling subscribers and usage up into portfolio revenue metrics (MRR, ARR, ARPU)
//
// Engines:
//   - TierPricingCalculator: seat count + price -> Quote
//   - UsageAggregator: usage events + tier + period -> []UsageAggregate
//   - RevenueRollup: subscribers + aggregates -> PortfolioMetrics
//
// Value Objects:
//   - Tier, TierCatalog: immutable pricing tiers looked up by name
//   - BracketSchedule: step functions keyed by seat count
//   - BillingPeriod: half-open [start, end) aggregation window
//
// All engines are pure: they hold no mutable state, perform no I/O and are
// safe to share across goroutines.
package billing
