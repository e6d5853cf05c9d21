package billing

import (
	"fmt"
	"sort"

	"github.com/bizdash/backend/internal/domain/shared/valueobject"
)

// UnlimitedQuota is the limit sentinel meaning no quota applies
const UnlimitedQuota int64 = -1

// TierName identifies a pricing tier
type TierName string

const (
	TierStarter      TierName = "starter"
	TierProfessional TierName = "professional"
	TierEnterprise   TierName = "enterprise"
)

// String returns the string representation of TierName
func (n TierName) String() string {
	return string(n)
}

// ServiceType is a billable service that usage events are recorded against
type ServiceType string

const (
	ServiceAPICall          ServiceType = "api_call"
	ServiceAIInference      ServiceType = "ai_inference"
	ServiceExport           ServiceType = "export"
	ServicePatentSearch     ServiceType = "patent_search"
	ServiceReportGeneration ServiceType = "report_generation"

	// ServiceUnknown is the bucket for events whose service type is not recognised
	ServiceUnknown ServiceType = "unknown"
)

// String returns the string representation of ServiceType
func (s ServiceType) String() string {
	return string(s)
}

// IsKnown returns true if the service type is one the engine bills for
func (s ServiceType) IsKnown() bool {
	switch s {
	case ServiceAPICall, ServiceAIInference, ServiceExport,
		ServicePatentSearch, ServiceReportGeneration:
		return true
	}
	return false
}

// AllServiceTypes returns all known service types sorted by name
func AllServiceTypes() []ServiceType {
	return []ServiceType{
		ServiceAIInference,
		ServiceAPICall,
		ServiceExport,
		ServicePatentSearch,
		ServiceReportGeneration,
	}
}

// Tier is an immutable pricing tier.
// Prices are per seat per billing cycle; the annual price is a list price
// in its own right, not the monthly price times twelve.
type Tier struct {
	Name                TierName
	DisplayName         string
	MonthlyPricePerSeat valueobject.Money
	AnnualPricePerSeat  valueobject.Money
	Limits              map[ServiceType]int64             // quota per month, UnlimitedQuota = no limit
	OverageRates        map[ServiceType]valueobject.Money // price per unit above the quota
	ImplementationFees  BracketSchedule                   // empty = calculator default
}

// ListPrice returns the per-seat list price for the given cadence
func (t Tier) ListPrice(cadence Cadence) valueobject.Money {
	if cadence == CadenceAnnual {
		return t.AnnualPricePerSeat
	}
	return t.MonthlyPricePerSeat
}

// Limit returns the quota for a service type and whether one is configured
func (t Tier) Limit(service ServiceType) (int64, bool) {
	limit, ok := t.Limits[service]
	return limit, ok
}

// OverageRate returns the per-unit overage price, or zero if none is configured
func (t Tier) OverageRate(service ServiceType) valueobject.Money {
	if rate, ok := t.OverageRates[service]; ok {
		return rate
	}
	return valueobject.Zero(t.MonthlyPricePerSeat.Currency())
}

// Validate checks the tier definition for consistency
func (t Tier) Validate() error {
	if t.Name == "" {
		return NewInvalidInputError("tier name", "cannot be empty")
	}
	currency := t.MonthlyPricePerSeat.Currency()
	if !currency.IsValid() {
		return NewInvalidInputError("tier "+string(t.Name), "monthly price has no valid currency")
	}
	if t.AnnualPricePerSeat.Currency() != currency {
		return NewInvalidInputError("tier "+string(t.Name), "monthly and annual prices use different currencies")
	}
	if t.MonthlyPricePerSeat.IsNegative() || t.AnnualPricePerSeat.IsNegative() {
		return NewInvalidInputError("tier "+string(t.Name), "prices cannot be negative")
	}
	for service, limit := range t.Limits {
		if limit < UnlimitedQuota {
			return NewInvalidInputError("tier "+string(t.Name),
				fmt.Sprintf("limit for %s must be -1 (unlimited) or non-negative", service))
		}
	}
	for service, rate := range t.OverageRates {
		if rate.IsNegative() {
			return NewInvalidInputError("tier "+string(t.Name),
				fmt.Sprintf("overage rate for %s cannot be negative", service))
		}
		if rate.Currency() != currency {
			return NewInvalidInputError("tier "+string(t.Name),
				fmt.Sprintf("overage rate for %s uses a different currency", service))
		}
	}
	return nil
}

// clone returns a deep copy so catalog entries cannot be mutated through lookups
func (t Tier) clone() Tier {
	c := t
	c.Limits = make(map[ServiceType]int64, len(t.Limits))
	for k, v := range t.Limits {
		c.Limits[k] = v
	}
	c.OverageRates = make(map[ServiceType]valueobject.Money, len(t.OverageRates))
	for k, v := range t.OverageRates {
		c.OverageRates[k] = v
	}
	return c
}

// TierLookup resolves a tier by name
type TierLookup interface {
	Lookup(name TierName) (Tier, error)
}

// TierCatalog is the read-only table of tiers, built once at process start
type TierCatalog struct {
	currency valueobject.Currency
	tiers    map[TierName]Tier
}

// NewTierCatalog creates a catalog; every tier must be priced in currency
func NewTierCatalog(currency valueobject.Currency, tiers ...Tier) (*TierCatalog, error) {
	if !currency.IsValid() {
		return nil, NewInvalidInputError("catalog currency", string(currency))
	}
	if len(tiers) == 0 {
		return nil, NewInvalidInputError("tier catalog", "at least one tier is required")
	}

	byName := make(map[TierName]Tier, len(tiers))
	for _, t := range tiers {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if t.MonthlyPricePerSeat.Currency() != currency {
			return nil, NewInvalidInputError("tier "+string(t.Name),
				fmt.Sprintf("priced in %s, catalog uses %s", t.MonthlyPricePerSeat.Currency(), currency))
		}
		if _, exists := byName[t.Name]; exists {
			return nil, NewInvalidInputError("tier catalog", fmt.Sprintf("duplicate tier %q", t.Name))
		}
		byName[t.Name] = t.clone()
	}

	return &TierCatalog{currency: currency, tiers: byName}, nil
}

// Currency returns the currency all tiers are priced in
func (c *TierCatalog) Currency() valueobject.Currency {
	return c.currency
}

// Lookup returns the tier with the given name or an UNKNOWN_TIER error
func (c *TierCatalog) Lookup(name TierName) (Tier, error) {
	t, ok := c.tiers[name]
	if !ok {
		return Tier{}, NewUnknownTierError(name)
	}
	return t.clone(), nil
}

// List returns all tiers sorted by monthly price, then name
func (c *TierCatalog) List() []Tier {
	result := make([]Tier, 0, len(c.tiers))
	for _, t := range c.tiers {
		result = append(result, t.clone())
	}
	sort.Slice(result, func(i, j int) bool {
		pi := result[i].MonthlyPricePerSeat.Amount()
		pj := result[j].MonthlyPricePerSeat.Amount()
		if !pi.Equal(pj) {
			return pi.LessThan(pj)
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// DefaultTiers returns the built-in starter/professional/enterprise tiers in USD
func DefaultTiers() []Tier {
	usd := func(v string) valueobject.Money { return valueobject.MustMoney(v, valueobject.USD) }
	return []Tier{
		{
			Name:                TierStarter,
			DisplayName:         "Starter",
			MonthlyPricePerSeat: usd("49"),
			AnnualPricePerSeat:  usd("490"),
			Limits: map[ServiceType]int64{
				ServiceAPICall:          10_000,
				ServiceAIInference:      1_000,
				ServiceExport:           50,
				ServicePatentSearch:     100,
				ServiceReportGeneration: 20,
			},
			OverageRates: map[ServiceType]valueobject.Money{
				ServiceAPICall:     usd("0.002"),
				ServiceAIInference: usd("0.05"),
				ServiceExport:      usd("1"),
			},
		},
		{
			Name:                TierProfessional,
			DisplayName:         "Professional",
			MonthlyPricePerSeat: usd("199"),
			AnnualPricePerSeat:  usd("1990"),
			Limits: map[ServiceType]int64{
				ServiceAPICall:          100_000,
				ServiceAIInference:      10_000,
				ServiceExport:           500,
				ServicePatentSearch:     1_000,
				ServiceReportGeneration: 200,
			},
			OverageRates: map[ServiceType]valueobject.Money{
				ServiceAPICall:     usd("0.001"),
				ServiceAIInference: usd("0.03"),
				ServiceExport:      usd("0.5"),
			},
		},
		{
			Name:                TierEnterprise,
			DisplayName:         "Enterprise",
			MonthlyPricePerSeat: usd("799"),
			AnnualPricePerSeat:  usd("7990"),
			Limits: map[ServiceType]int64{
				ServiceAPICall:          UnlimitedQuota,
				ServiceAIInference:      UnlimitedQuota,
				ServiceExport:           UnlimitedQuota,
				ServicePatentSearch:     UnlimitedQuota,
				ServiceReportGeneration: UnlimitedQuota,
			},
		},
	}
}

// DefaultTierCatalog returns a catalog of DefaultTiers
func DefaultTierCatalog() *TierCatalog {
	catalog, err := NewTierCatalog(valueobject.USD, DefaultTiers()...)
	if err != nil {
		panic(err)
	}
	return catalog
}
