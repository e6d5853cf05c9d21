package billing

import (
	"sort"
	"time"

	"github.com/bizdash/backend/internal/domain/billing"
	"github.com/bizdash/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ComputeQuoteRequest prices a prospect. Either Tier or BasePricePerSeat is required.
type ComputeQuoteRequest struct {
	SeatCount        int              `json:"seat_count" binding:"required"`
	Tier             string           `json:"tier" binding:"omitempty,max=50"`
	BasePricePerSeat *decimal.Decimal `json:"base_price_per_seat"`
	Cadence          string           `json:"cadence" binding:"omitempty,oneof=monthly annual"`
	UseCase          string           `json:"use_case" binding:"max=2000"`
	Timeline         string           `json:"timeline" binding:"max=200"`
}

// ROIResponse is the payback projection of a quote
type ROIResponse struct {
	MonthlySavingsPerSeat valueobject.Money `json:"monthly_savings_per_seat"`
	MonthlySavings        valueobject.Money `json:"monthly_savings"`
	AnnualSavings         valueobject.Money `json:"annual_savings"`
	PaybackMonths         *decimal.Decimal  `json:"payback_months"`
	ThreeYearROIPercent   *decimal.Decimal  `json:"three_year_roi_percent"`
	Conditions            []string          `json:"conditions"`
}

// QuoteResponse is a computed quote
type QuoteResponse struct {
	SeatCount         int               `json:"seat_count"`
	Tier              string            `json:"tier,omitempty"`
	Cadence           string            `json:"cadence"`
	UseCase           string            `json:"use_case,omitempty"`
	Timeline          string            `json:"timeline,omitempty"`
	BasePricePerSeat  valueobject.Money `json:"base_price_per_seat"`
	Subtotal          valueobject.Money `json:"subtotal"`
	DiscountRate      decimal.Decimal   `json:"discount_rate"`
	DiscountAmount    valueobject.Money `json:"discount_amount"`
	RecurringTotal    valueobject.Money `json:"recurring_total"`
	ImplementationFee valueobject.Money `json:"implementation_fee"`
	GrandTotal        valueobject.Money `json:"grand_total"`
	ROI               ROIResponse       `json:"roi"`
	Status            string            `json:"status"`
}

// ToQuoteResponse converts a domain quote
func ToQuoteResponse(q *billing.Quote) QuoteResponse {
	return QuoteResponse{
		SeatCount:         q.SeatCount,
		Tier:              string(q.TierName),
		Cadence:           string(q.Cadence),
		UseCase:           q.UseCase,
		Timeline:          q.Timeline,
		BasePricePerSeat:  q.BasePricePerSeat,
		Subtotal:          q.Subtotal,
		DiscountRate:      q.DiscountRate,
		DiscountAmount:    q.DiscountAmount,
		RecurringTotal:    q.RecurringTotal,
		ImplementationFee: q.ImplementationFee,
		GrandTotal:        q.GrandTotal,
		ROI: ROIResponse{
			MonthlySavingsPerSeat: q.ROI.MonthlySavingsPerSeat,
			MonthlySavings:        q.ROI.MonthlySavings,
			AnnualSavings:         q.ROI.AnnualSavings,
			PaybackMonths:         q.ROI.PaybackMonths,
			ThreeYearROIPercent:   q.ROI.ThreeYearROIPercent,
			Conditions:            conditionStrings(q.ROI.Conditions),
		},
		Status: string(q.Status),
	}
}

// BracketResponse is one implementation fee bracket
type BracketResponse struct {
	MinSeats int             `json:"min_seats"`
	Value    decimal.Decimal `json:"value"`
}

// TierResponse describes a pricing tier
type TierResponse struct {
	Name                string                       `json:"name"`
	DisplayName         string                       `json:"display_name"`
	MonthlyPricePerSeat valueobject.Money            `json:"monthly_price_per_seat"`
	AnnualPricePerSeat  valueobject.Money            `json:"annual_price_per_seat"`
	Limits              map[string]int64             `json:"limits"`
	OverageRates        map[string]valueobject.Money `json:"overage_rates"`
	ImplementationFees  []BracketResponse            `json:"implementation_fees,omitempty"`
}

// ToTierResponse converts a domain tier
func ToTierResponse(t billing.Tier) TierResponse {
	resp := TierResponse{
		Name:                string(t.Name),
		DisplayName:         t.DisplayName,
		MonthlyPricePerSeat: t.MonthlyPricePerSeat,
		AnnualPricePerSeat:  t.AnnualPricePerSeat,
		Limits:              make(map[string]int64, len(t.Limits)),
		OverageRates:        make(map[string]valueobject.Money, len(t.OverageRates)),
	}
	for service, limit := range t.Limits {
		resp.Limits[string(service)] = limit
	}
	for service, rate := range t.OverageRates {
		resp.OverageRates[string(service)] = rate
	}
	for _, b := range t.ImplementationFees.Brackets() {
		resp.ImplementationFees = append(resp.ImplementationFees, BracketResponse{MinSeats: b.MinSeats, Value: b.Value})
	}
	return resp
}

// UsageEventInput is one usage event supplied by a caller
type UsageEventInput struct {
	ID           *uuid.UUID      `json:"id"`
	SubscriberID uuid.UUID       `json:"subscriber_id" binding:"required"`
	ServiceType  string          `json:"service_type" binding:"required,max=50"`
	Quantity     int64           `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	OccurredAt   time.Time       `json:"occurred_at" binding:"required"`
}

// toDomain validates the input and builds a usage event priced in currency
func (in UsageEventInput) toDomain(currency valueobject.Currency) (billing.UsageEvent, error) {
	cost, err := valueobject.NewMoney(in.UnitCost, currency)
	if err != nil {
		return billing.UsageEvent{}, err
	}
	e, err := billing.NewUsageEvent(in.SubscriberID, billing.ServiceType(in.ServiceType), in.Quantity, cost, in.OccurredAt)
	if err != nil {
		return billing.UsageEvent{}, err
	}
	if in.ID != nil && *in.ID != uuid.Nil {
		e.ID = *in.ID
	}
	return *e, nil
}

// AggregateUsageRequest aggregates supplied events against a tier.
// The period is Month (YYYY-MM) or PeriodStart/PeriodEnd.
type AggregateUsageRequest struct {
	Tier        string            `json:"tier" binding:"required,max=50"`
	Month       string            `json:"month"`
	PeriodStart *time.Time        `json:"period_start"`
	PeriodEnd   *time.Time        `json:"period_end"`
	Events      []UsageEventInput `json:"events" binding:"dive"`
}

// UsageAggregateResponse is one service type's usage in a period
type UsageAggregateResponse struct {
	SubscriberID        uuid.UUID         `json:"subscriber_id"`
	ServiceType         string            `json:"service_type"`
	PeriodStart         time.Time         `json:"period_start"`
	PeriodEnd           time.Time         `json:"period_end"`
	EventCount          int               `json:"event_count"`
	TotalQuantity       int64             `json:"total_quantity"`
	TotalCost           valueobject.Money `json:"total_cost"`
	Limit               *int64            `json:"limit"`
	IsUnlimited         bool              `json:"is_unlimited"`
	UsagePercentage     *decimal.Decimal  `json:"usage_percentage"`
	Remaining           int64             `json:"remaining"`
	OverageQuantity     int64             `json:"overage_quantity"`
	OverageCost         valueobject.Money `json:"overage_cost"`
	QuotaStatus         string            `json:"quota_status"`
	IsUnknown           bool              `json:"is_unknown"`
	UnknownServiceTypes []string          `json:"unknown_service_types,omitempty"`
}

// ToUsageAggregateResponses converts domain aggregates, keeping their order
func ToUsageAggregateResponses(aggs []billing.UsageAggregate) []UsageAggregateResponse {
	result := make([]UsageAggregateResponse, len(aggs))
	for i, a := range aggs {
		result[i] = UsageAggregateResponse{
			SubscriberID:        a.SubscriberID,
			ServiceType:         string(a.ServiceType),
			PeriodStart:         a.PeriodStart,
			PeriodEnd:           a.PeriodEnd,
			EventCount:          a.EventCount,
			TotalQuantity:       a.TotalQuantity,
			TotalCost:           a.TotalCost,
			Limit:               a.Limit,
			IsUnlimited:         a.IsUnlimited,
			UsagePercentage:     a.UsagePercentage,
			Remaining:           a.Remaining(),
			OverageQuantity:     a.OverageQuantity,
			OverageCost:         a.OverageCost,
			QuotaStatus:         string(a.QuotaStatus),
			IsUnknown:           a.IsUnknown,
			UnknownServiceTypes: a.UnknownServiceTypes,
		}
	}
	return result
}

// PeriodResponse is a half-open reporting window
type PeriodResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// UsageReportResponse is a subscriber's or a tier's usage in one period
type UsageReportResponse struct {
	SubscriberID uuid.UUID                `json:"subscriber_id"`
	Tier         string                   `json:"tier"`
	Period       PeriodResponse           `json:"period"`
	Aggregates   []UsageAggregateResponse `json:"aggregates"`
	TotalCost    valueobject.Money        `json:"total_cost"`
	OverageCost  valueobject.Money        `json:"overage_cost"`
	UnknownCount int                      `json:"unknown_event_count"`
}

// RecordUsageEventsRequest records a batch of immutable usage events
type RecordUsageEventsRequest struct {
	Events []UsageEventInput `json:"events" binding:"required,min=1,max=1000,dive"`
}

// RecordUsageEventsResult reports an ingestion
type RecordUsageEventsResult struct {
	Recorded  int         `json:"recorded"`
	EventIDs  []uuid.UUID `json:"event_ids"`
	Duplicate bool        `json:"duplicate"`
}

// UsageExportLineResponse is one exported aggregate
type UsageExportLineResponse struct {
	ServiceType    string `json:"service_type"`
	Quantity       int64  `json:"quantity"`
	ExternalItemID string `json:"external_item_id,omitempty"`
	RecordID       string `json:"record_id,omitempty"`
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
}

// UsageExportResponse reports a usage export to the billing provider
type UsageExportResponse struct {
	SubscriberID   uuid.UUID                 `json:"subscriber_id"`
	BillingRef     string                    `json:"billing_ref"`
	Provider       string                    `json:"provider"`
	ExternalStatus string                    `json:"external_status"`
	Period         PeriodResponse            `json:"period"`
	Reported       int                       `json:"reported"`
	Skipped        int                       `json:"skipped"`
	Failed         int                       `json:"failed"`
	Lines          []UsageExportLineResponse `json:"lines"`
}

// ToUsageExportResponse converts an export result
func ToUsageExportResponse(export billing.UsageExport, result *billing.UsageExportResult) UsageExportResponse {
	lines := make([]UsageExportLineResponse, len(result.Lines))
	for i, l := range result.Lines {
		lines[i] = UsageExportLineResponse{
			ServiceType:    string(l.ServiceType),
			Quantity:       l.Quantity,
			ExternalItemID: l.ExternalItemID,
			RecordID:       l.RecordID,
			Status:         string(l.Status),
			Reason:         l.Reason,
		}
	}
	return UsageExportResponse{
		SubscriberID:   export.SubscriberID,
		BillingRef:     export.BillingRef,
		Provider:       result.Provider,
		ExternalStatus: result.ExternalStatus,
		Period:         PeriodResponse{Start: export.Period.Start, End: export.Period.End},
		Reported:       result.Count(billing.ExportLineReported),
		Skipped:        result.Count(billing.ExportLineSkipped),
		Failed:         result.Count(billing.ExportLineFailed),
		Lines:          lines,
	}
}

// UsageExportRunResponse summarizes exporting one month for all linked subscribers
type UsageExportRunResponse struct {
	Month             string      `json:"month"`
	Attempted         int         `json:"attempted"`
	Exported          int         `json:"exported"`
	Incomplete        int         `json:"incomplete"`
	Failed            int         `json:"failed"`
	FailedSubscribers []uuid.UUID `json:"failed_subscribers,omitempty"`
}

// CreateSubscriberRequest creates a subscriber after checkout
type CreateSubscriberRequest struct {
	Name      string     `json:"name" binding:"required,min=1,max=200"`
	Tier      string     `json:"tier" binding:"required,max=50"`
	Seats     int        `json:"seats" binding:"required,min=1"`
	Cadence   string     `json:"cadence" binding:"required,oneof=monthly annual"`
	StartDate *time.Time `json:"start_date"`

	// BillingRef links the external billing subscription, e.g. a Stripe sub_ id
	BillingRef string `json:"billing_ref" binding:"max=100"`
}

// LinkBillingAccountRequest sets or clears a subscriber's external billing reference
type LinkBillingAccountRequest struct {
	BillingRef string `json:"billing_ref" binding:"max=100"`
}

// ChangePlanRequest moves a subscriber to another plan
type ChangePlanRequest struct {
	Tier    string `json:"tier" binding:"required,max=50"`
	Seats   int    `json:"seats" binding:"required,min=1"`
	Cadence string `json:"cadence" binding:"required,oneof=monthly annual"`
}

// CancelSubscriberRequest cancels a subscriber
type CancelSubscriberRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ListSubscribersQuery filters and pages the subscriber list
type ListSubscribersQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
	Tier     string `form:"tier"`
	Status   string `form:"status" binding:"omitempty,oneof=active past_due canceled"`
	Cadence  string `form:"cadence" binding:"omitempty,oneof=monthly annual"`
	Search   string `form:"search" binding:"max=100"`
}

// SubscriberResponse is a subscriber in API responses
type SubscriberResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Tier        string    `json:"tier"`
	Seats       int       `json:"seats"`
	Cadence     string    `json:"cadence"`
	Status      string    `json:"status"`
	RenewalDate time.Time `json:"renewal_date"`
	BillingRef  string    `json:"billing_ref,omitempty"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToSubscriberResponse converts a domain subscriber
func ToSubscriberResponse(s *billing.Subscriber) SubscriberResponse {
	return SubscriberResponse{
		ID:          s.ID,
		Name:        s.Name,
		Tier:        string(s.Tier),
		Seats:       s.Seats,
		Cadence:     string(s.Cadence),
		Status:      string(s.Status),
		RenewalDate: s.RenewalDate,
		BillingRef:  s.BillingRef,
		Version:     s.Version,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// SubscriberInput is a subscriber record supplied to a stateless rollup
type SubscriberInput struct {
	ID          uuid.UUID  `json:"id" binding:"required"`
	Tier        string     `json:"tier" binding:"required,max=50"`
	Seats       int        `json:"seats" binding:"required,min=1"`
	Cadence     string     `json:"cadence" binding:"required"`
	Status      string     `json:"status"`
	RenewalDate *time.Time `json:"renewal_date"`
}

func (in SubscriberInput) toDomain() (billing.Subscriber, error) {
	cadence, err := billing.ParseCadence(in.Cadence)
	if err != nil {
		return billing.Subscriber{}, err
	}
	status := billing.SubscriptionStatus(in.Status)
	if status == "" {
		status = billing.StatusActive
	}
	s := billing.Subscriber{
		Tier:    billing.TierName(in.Tier),
		Seats:   in.Seats,
		Cadence: cadence,
		Status:  status,
	}
	s.ID = in.ID
	if in.RenewalDate != nil {
		s.RenewalDate = in.RenewalDate.UTC()
	}
	if err := s.Validate(); err != nil {
		return billing.Subscriber{}, err
	}
	return s, nil
}

// RevenueRollupRequest rolls up supplied subscribers and usage events.
// Month is required for lump-sum recognition and scopes the usage events.
type RevenueRollupRequest struct {
	Subscribers       []SubscriberInput `json:"subscribers" binding:"dive"`
	Events            []UsageEventInput `json:"events" binding:"dive"`
	Month             string            `json:"month"`
	RecognitionPolicy string            `json:"recognition_policy" binding:"omitempty,oneof=ratable lump_sum"`
}

// RevenueMixResponse is the subscription and usage share of total revenue
type RevenueMixResponse struct {
	SubscriptionPercent decimal.Decimal `json:"subscription_percent"`
	UsagePercent        decimal.Decimal `json:"usage_percent"`
}

// TierRevenueResponse is one tier's contribution to the portfolio
type TierRevenueResponse struct {
	Tier                string            `json:"tier"`
	ActiveSubscribers   int               `json:"active_subscribers"`
	Seats               int               `json:"seats"`
	SubscriptionRevenue valueobject.Money `json:"subscription_revenue"`
	UsageRevenue        valueobject.Money `json:"usage_revenue"`
}

// PortfolioResponse is the portfolio metrics payload. It is also the cached form.
type PortfolioResponse struct {
	Currency                    string                `json:"currency"`
	RecognitionPolicy           string                `json:"recognition_policy"`
	Period                      *PeriodResponse       `json:"period,omitempty"`
	ActiveSubscribers           int                   `json:"active_subscribers"`
	MonthlySubscribers          int                   `json:"monthly_subscribers"`
	AnnualSubscribers           int                   `json:"annual_subscribers"`
	StatusCounts                map[string]int        `json:"status_counts"`
	MRR                         valueobject.Money     `json:"mrr"`
	MonthlyARPA                 *valueobject.Money    `json:"monthly_arpa"`
	AnnualContractValue         valueobject.Money     `json:"annual_contract_value"`
	ARR                         valueobject.Money     `json:"arr"`
	SubscriptionRevenue         valueobject.Money     `json:"subscription_revenue"`
	UsageRevenue                valueobject.Money     `json:"usage_revenue"`
	OverageRevenue              valueobject.Money     `json:"overage_revenue"`
	TotalRevenue                valueobject.Money     `json:"total_revenue"`
	AvgRevenuePerUser           valueobject.Money     `json:"avg_revenue_per_user"`
	AvgUsageRevenuePerUser      valueobject.Money     `json:"avg_usage_revenue_per_user"`
	RevenueMix                  *RevenueMixResponse   `json:"revenue_mix"`
	TierBreakdown               []TierRevenueResponse `json:"tier_breakdown"`
	ExcludedSubscribers         int                   `json:"excluded_subscribers"`
	ExcludedSubscriberIDs       []uuid.UUID           `json:"excluded_subscriber_ids"`
	UnmatchedUsageSubscriberIDs []uuid.UUID           `json:"unmatched_usage_subscriber_ids"`
	Conditions                  []string              `json:"conditions"`
	ComputedAt                  time.Time             `json:"computed_at"`
	Cached                      bool                  `json:"cached"`
}

// ToPortfolioResponse converts domain metrics
func ToPortfolioResponse(m *billing.PortfolioMetrics, computedAt time.Time) PortfolioResponse {
	resp := PortfolioResponse{
		Currency:                    string(m.Currency),
		RecognitionPolicy:           string(m.RecognitionPolicy),
		ActiveSubscribers:           m.ActiveSubscribers,
		MonthlySubscribers:          m.MonthlySubscribers,
		AnnualSubscribers:           m.AnnualSubscribers,
		StatusCounts:                make(map[string]int, len(m.StatusCounts)),
		MRR:                         m.MRR,
		MonthlyARPA:                 m.MonthlyARPA,
		AnnualContractValue:         m.AnnualContractValue,
		ARR:                         m.ARR,
		SubscriptionRevenue:         m.SubscriptionRevenue,
		UsageRevenue:                m.UsageRevenue,
		OverageRevenue:              m.OverageRevenue,
		TotalRevenue:                m.TotalRevenue,
		AvgRevenuePerUser:           m.AvgRevenuePerUser,
		AvgUsageRevenuePerUser:      m.AvgUsageRevenuePerUser,
		TierBreakdown:               make([]TierRevenueResponse, 0, len(m.TierBreakdown)),
		ExcludedSubscribers:         m.ExcludedSubscribers,
		ExcludedSubscriberIDs:       m.ExcludedSubscriberIDs,
		UnmatchedUsageSubscriberIDs: m.UnmatchedUsageSubscriberIDs,
		Conditions:                  conditionStrings(m.Conditions),
		ComputedAt:                  computedAt.UTC(),
	}
	if m.Period != nil {
		resp.Period = &PeriodResponse{Start: m.Period.Start, End: m.Period.End}
	}
	for status, count := range m.StatusCounts {
		resp.StatusCounts[string(status)] = count
	}
	if m.RevenueMix != nil {
		resp.RevenueMix = &RevenueMixResponse{
			SubscriptionPercent: m.RevenueMix.SubscriptionPercent,
			UsagePercent:        m.RevenueMix.UsagePercent,
		}
	}
	for _, t := range m.TierBreakdown {
		resp.TierBreakdown = append(resp.TierBreakdown, TierRevenueResponse{
			Tier:                string(t.Tier),
			ActiveSubscribers:   t.ActiveSubscribers,
			Seats:               t.Seats,
			SubscriptionRevenue: t.SubscriptionRevenue,
			UsageRevenue:        t.UsageRevenue,
		})
	}
	return resp
}

func conditionStrings(conditions []billing.Condition) []string {
	result := make([]string, len(conditions))
	for i, c := range conditions {
		result[i] = string(c)
	}
	sort.Strings(result)
	return result
}
