package billing

import (
	"fmt"

	"github.com/bizdash/backend/internal/domain/shared"
)

// NewInvalidInputError reports a rejected input field.
// The billing engines never clamp or default bad input.
func NewInvalidInputError(field, reason string) *shared.DomainError {
	return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason))
}

// NewUnknownTierError reports a tier name missing from the catalog
func NewUnknownTierError(name TierName) *shared.DomainError {
	return shared.NewDomainError(shared.CodeUnknownTier, fmt.Sprintf("unknown tier: %q", string(name)))
}

// NewDivisionByZeroError reports a metric whose denominator is zero
func NewDivisionByZeroError(what string) *shared.DomainError {
	return shared.NewDomainError(shared.CodeDivisionByZero, fmt.Sprintf("cannot compute %s: denominator is zero", what))
}

// Condition names a result state that could not be computed numerically.
// Conditions are attached to outputs instead of NaN or Inf values.
type Condition string

const (
	// ConditionPaybackUndefined means grand total or monthly savings is zero
	ConditionPaybackUndefined Condition = "payback_undefined"

	// ConditionROIUndefined means the grand total is zero
	ConditionROIUndefined Condition = "roi_undefined"

	// ConditionMonthlyARPAUndefined means there are no active monthly subscribers
	ConditionMonthlyARPAUndefined Condition = "monthly_arpa_undefined"

	// ConditionRevenueMixUndefined means total revenue is zero
	ConditionRevenueMixUndefined Condition = "revenue_mix_undefined"

	// ConditionUnmatchedUsage means aggregates referenced subscribers absent from the input
	ConditionUnmatchedUsage Condition = "unmatched_usage"
)

// String returns the string representation of Condition
func (c Condition) String() string {
	return string(c)
}
