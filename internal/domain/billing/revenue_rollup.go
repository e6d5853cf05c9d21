package billing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/bizdash/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecognitionPolicy decides how annual contracts enter monthly subscription revenue
type RecognitionPolicy string

const (
	// RecognitionRatable spreads each annual contract evenly, ACV/12 per month
	RecognitionRatable RecognitionPolicy = "ratable"
	// RecognitionLumpSum books the whole ACV in the period containing the renewal date
	RecognitionLumpSum RecognitionPolicy = "lump_sum"
)

// IsValid returns true if the policy is supported
func (p RecognitionPolicy) IsValid() bool {
	return p == RecognitionRatable || p == RecognitionLumpSum
}

// ParseRecognitionPolicy parses a policy name, defaulting blank to ratable
func ParseRecognitionPolicy(s string) (RecognitionPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RecognitionRatable, nil
	}
	p := RecognitionPolicy(s)
	if !p.IsValid() {
		return "", NewInvalidInputError("recognition policy", fmt.Sprintf("%q is not ratable or lump_sum", s))
	}
	return p, nil
}

// RevenueMix is the share of total revenue from subscriptions and usage, in percent
type RevenueMix struct {
	SubscriptionPercent decimal.Decimal
	UsagePercent        decimal.Decimal
}

// TierRevenue is one tier's contribution to the portfolio
type TierRevenue struct {
	Tier                TierName
	ActiveSubscribers   int
	Seats               int
	SubscriptionRevenue valueobject.Money
	UsageRevenue        valueobject.Money
}

// PortfolioMetrics is the flat set of portfolio-level revenue metrics.
// All subscription figures are on a monthly basis unless named annual.
type PortfolioMetrics struct {
	Currency          valueobject.Currency
	RecognitionPolicy RecognitionPolicy
	Period            *BillingPeriod

	ActiveSubscribers  int
	MonthlySubscribers int
	AnnualSubscribers  int
	StatusCounts       map[SubscriptionStatus]int

	// MRR is the monthly recurring revenue of monthly-cadence subscribers only
	MRR valueobject.Money
	// MonthlyARPA is MRR divided by the number of monthly-cadence subscribers
	MonthlyARPA *valueobject.Money
	// AnnualContractValue is the yearly list value of annual-cadence subscribers
	AnnualContractValue valueobject.Money
	// ARR is MRR * 12 + AnnualContractValue
	ARR valueobject.Money

	SubscriptionRevenue valueobject.Money
	UsageRevenue        valueobject.Money
	OverageRevenue      valueobject.Money // informational, already priced into usage cost upstream
	TotalRevenue        valueobject.Money

	AvgRevenuePerUser      valueobject.Money
	AvgUsageRevenuePerUser valueobject.Money
	RevenueMix             *RevenueMix

	TierBreakdown []TierRevenue

	// Subscribers left out of monetary sums because their tier is not in the catalog
	ExcludedSubscribers   int
	ExcludedSubscriberIDs []uuid.UUID
	// Aggregates whose subscriber was not supplied
	UnmatchedUsageSubscriberIDs []uuid.UUID

	Conditions []Condition
}

// HasCondition reports whether c was raised for these metrics
func (m *PortfolioMetrics) HasCondition(c Condition) bool {
	for _, existing := range m.Conditions {
		if existing == c {
			return true
		}
	}
	return false
}

// RevenueRollup combines subscriber tier assignments and aggregated usage into
// portfolio metrics. Instances are immutable; With* methods return copies.
type RevenueRollup struct {
	tiers    TierLookup
	currency valueobject.Currency
	policy   RecognitionPolicy
	period   *BillingPeriod
}

// NewRevenueRollup creates a ratable rollup pricing subscribers from tiers
func NewRevenueRollup(tiers TierLookup, currency valueobject.Currency) *RevenueRollup {
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &RevenueRollup{tiers: tiers, currency: currency, policy: RecognitionRatable}
}

// WithRecognitionPolicy returns a copy using policy
func (r *RevenueRollup) WithRecognitionPolicy(policy RecognitionPolicy) *RevenueRollup {
	c := *r
	c.policy = policy
	return &c
}

// WithPeriod returns a copy reporting on period. Lump-sum recognition requires one.
func (r *RevenueRollup) WithPeriod(period BillingPeriod) *RevenueRollup {
	c := *r
	c.period = &period
	return &c
}

type tierAccumulator struct {
	active       int
	seats        int
	subscription valueobject.Money
	usage        valueobject.Money
}

// Rollup computes portfolio metrics. Active subscribers whose tier is unknown are
// excluded from every monetary sum and reported. Zero included active subscribers
// fails with DIVISION_BY_ZERO.
func (r *RevenueRollup) Rollup(subscribers []Subscriber, aggregatesBySubscriber map[uuid.UUID][]UsageAggregate) (*PortfolioMetrics, error) {
	if r.tiers == nil {
		return nil, NewInvalidInputError("tier lookup", "is required")
	}
	if !r.policy.IsValid() {
		return nil, NewInvalidInputError("recognition policy", string(r.policy))
	}
	if r.policy == RecognitionLumpSum && r.period == nil {
		return nil, NewInvalidInputError("period", "lump-sum recognition needs a reporting period")
	}

	zero := valueobject.Zero(r.currency)
	m := &PortfolioMetrics{
		Currency:                    r.currency,
		RecognitionPolicy:           r.policy,
		Period:                      r.period,
		StatusCounts:                make(map[SubscriptionStatus]int),
		MRR:                         zero,
		AnnualContractValue:         zero,
		SubscriptionRevenue:         zero,
		UsageRevenue:                zero,
		OverageRevenue:              zero,
		ExcludedSubscriberIDs:       []uuid.UUID{},
		UnmatchedUsageSubscriberIDs: []uuid.UUID{},
		Conditions:                  []Condition{},
	}

	seen := make(map[uuid.UUID]bool, len(subscribers))
	excluded := make(map[uuid.UUID]bool)
	byTier := make(map[TierName]*tierAccumulator)
	recognisedAnnual := zero

	for i := range subscribers {
		s := &subscribers[i]
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.ID] {
			return nil, NewInvalidInputError("subscribers", fmt.Sprintf("duplicate subscriber %s", s.ID))
		}
		seen[s.ID] = true
		m.StatusCounts[s.Status]++

		tier, err := r.tiers.Lookup(s.Tier)
		if err != nil {
			if errors.Is(err, shared.ErrUnknownTier) {
				excluded[s.ID] = true
				continue
			}
			return nil, err
		}

		acc := byTier[tier.Name]
		if acc == nil {
			acc = &tierAccumulator{subscription: zero, usage: zero}
			byTier[tier.Name] = acc
		}

		if !s.IsActive() {
			continue
		}

		price := tier.ListPrice(s.Cadence)
		if price.Currency() != r.currency {
			return nil, NewInvalidInputError("tier "+string(tier.Name),
				fmt.Sprintf("priced in %s, rollup uses %s", price.Currency(), r.currency))
		}
		contract := price.MultiplyByInt(int64(s.Seats))

		m.ActiveSubscribers++
		acc.active++
		acc.seats += s.Seats

		switch s.Cadence {
		case CadenceMonthly:
			m.MonthlySubscribers++
			m.MRR = m.MRR.MustAdd(contract)
			acc.subscription = acc.subscription.MustAdd(contract)
		case CadenceAnnual:
			m.AnnualSubscribers++
			m.AnnualContractValue = m.AnnualContractValue.MustAdd(contract)
			recognised := r.recogniseAnnual(s, contract)
			recognisedAnnual = recognisedAnnual.MustAdd(recognised)
			acc.subscription = acc.subscription.MustAdd(recognised)
		}
	}

	for id := range excluded {
		m.ExcludedSubscriberIDs = append(m.ExcludedSubscriberIDs, id)
	}
	sortIDs(m.ExcludedSubscriberIDs)
	m.ExcludedSubscribers = len(m.ExcludedSubscriberIDs)

	tierOf := make(map[uuid.UUID]TierName, len(subscribers))
	for _, s := range subscribers {
		tierOf[s.ID] = s.Tier
	}
	for id, aggs := range aggregatesBySubscriber {
		if excluded[id] {
			continue
		}
		if !seen[id] {
			if len(aggs) > 0 {
				m.UnmatchedUsageSubscriberIDs = append(m.UnmatchedUsageSubscriberIDs, id)
			}
			continue
		}
		for _, a := range aggs {
			if a.TotalCost.Currency() != r.currency {
				return nil, NewInvalidInputError("usage aggregate",
					fmt.Sprintf("subscriber %s usage priced in %s, rollup uses %s", id, a.TotalCost.Currency(), r.currency))
			}
			m.UsageRevenue = m.UsageRevenue.MustAdd(a.TotalCost)
			if a.OverageCost.Currency() == r.currency {
				m.OverageRevenue = m.OverageRevenue.MustAdd(a.OverageCost)
			}
			if acc := byTier[tierOf[id]]; acc != nil {
				acc.usage = acc.usage.MustAdd(a.TotalCost)
			}
		}
	}
	if len(m.UnmatchedUsageSubscriberIDs) > 0 {
		sortIDs(m.UnmatchedUsageSubscriberIDs)
		m.Conditions = append(m.Conditions, ConditionUnmatchedUsage)
	}

	m.ARR = m.MRR.MultiplyByInt(12).MustAdd(m.AnnualContractValue)
	m.SubscriptionRevenue = m.MRR.MustAdd(recognisedAnnual)
	m.TotalRevenue = m.SubscriptionRevenue.MustAdd(m.UsageRevenue)

	if m.MonthlySubscribers > 0 {
		arpa, _ := m.MRR.Divide(decimal.NewFromInt(int64(m.MonthlySubscribers)))
		m.MonthlyARPA = &arpa
	} else {
		m.Conditions = append(m.Conditions, ConditionMonthlyARPAUndefined)
	}

	if m.TotalRevenue.IsZero() {
		m.Conditions = append(m.Conditions, ConditionRevenueMixUndefined)
	} else {
		subPct, _ := valueobject.PercentOf(m.SubscriptionRevenue.Amount(), m.TotalRevenue.Amount())
		usagePct, _ := valueobject.PercentOf(m.UsageRevenue.Amount(), m.TotalRevenue.Amount())
		m.RevenueMix = &RevenueMix{SubscriptionPercent: subPct, UsagePercent: usagePct}
	}

	names := make([]TierName, 0, len(byTier))
	for name := range byTier {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	m.TierBreakdown = make([]TierRevenue, 0, len(names))
	for _, name := range names {
		acc := byTier[name]
		m.TierBreakdown = append(m.TierBreakdown, TierRevenue{
			Tier:                name,
			ActiveSubscribers:   acc.active,
			Seats:               acc.seats,
			SubscriptionRevenue: acc.subscription,
			UsageRevenue:        acc.usage,
		})
	}

	if m.ActiveSubscribers == 0 {
		return nil, NewDivisionByZeroError("average revenue per user")
	}
	divisor := decimal.NewFromInt(int64(m.ActiveSubscribers))
	m.AvgRevenuePerUser, _ = m.TotalRevenue.Divide(divisor)
	m.AvgUsageRevenuePerUser, _ = m.UsageRevenue.Divide(divisor)

	return m, nil
}

// recogniseAnnual returns the part of an annual contract recognised in the reporting month
func (r *RevenueRollup) recogniseAnnual(s *Subscriber, contract valueobject.Money) valueobject.Money {
	if r.policy == RecognitionLumpSum {
		if r.period.Contains(s.RenewalDate) {
			return contract
		}
		return valueobject.Zero(contract.Currency())
	}
	monthly, _ := contract.Divide(decimal.NewFromInt(12))
	return monthly
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
