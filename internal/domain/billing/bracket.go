package billing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Bracket is one step of a seat-count step function.
// It applies to every seat count >= MinSeats up to the next bracket's MinSeats.
type Bracket struct {
	MinSeats int             `json:"min_seats" mapstructure:"min_seats"`
	Value    decimal.Decimal `json:"value" mapstructure:"value"`
}

// BracketSchedule is a step function over seat count built from closed-open
// intervals [MinSeats_i, MinSeats_i+1). The boundary value belongs to the upper
// bracket and the lowest bracket starts at or below one seat, so there are no gaps.
type BracketSchedule struct {
	brackets []Bracket
}

// NewBracketSchedule creates a schedule from brackets given in any order
func NewBracketSchedule(brackets ...Bracket) (BracketSchedule, error) {
	if len(brackets) == 0 {
		return BracketSchedule{}, NewInvalidInputError("bracket schedule", "at least one bracket is required")
	}

	sorted := make([]Bracket, len(brackets))
	copy(sorted, brackets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinSeats < sorted[j].MinSeats
	})

	if sorted[0].MinSeats > 1 {
		return BracketSchedule{}, NewInvalidInputError("bracket schedule",
			fmt.Sprintf("lowest bracket starts at %d seats, leaving a gap below it", sorted[0].MinSeats))
	}
	for i, b := range sorted {
		if b.MinSeats < 0 {
			return BracketSchedule{}, NewInvalidInputError("bracket schedule", "min seats cannot be negative")
		}
		if b.Value.IsNegative() {
			return BracketSchedule{}, NewInvalidInputError("bracket schedule", "bracket value cannot be negative")
		}
		if i > 0 && sorted[i-1].MinSeats == b.MinSeats {
			return BracketSchedule{}, NewInvalidInputError("bracket schedule",
				fmt.Sprintf("duplicate bracket at %d seats", b.MinSeats))
		}
	}

	return BracketSchedule{brackets: sorted}, nil
}

// NewDiscountSchedule creates a schedule whose values are percentages in [0, 100]
func NewDiscountSchedule(brackets ...Bracket) (BracketSchedule, error) {
	hundred := decimal.NewFromInt(100)
	for _, b := range brackets {
		if b.Value.GreaterThan(hundred) {
			return BracketSchedule{}, NewInvalidInputError("discount schedule", "discount cannot exceed 100%")
		}
	}
	return NewBracketSchedule(brackets...)
}

// MustBracketSchedule creates a schedule and panics on invalid brackets
func MustBracketSchedule(brackets ...Bracket) BracketSchedule {
	s, err := NewBracketSchedule(brackets...)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the value of the highest bracket whose MinSeats <= seats.
// Returns zero for an empty schedule.
func (s BracketSchedule) Lookup(seats int) decimal.Decimal {
	for i := len(s.brackets) - 1; i >= 0; i-- {
		if seats >= s.brackets[i].MinSeats {
			return s.brackets[i].Value
		}
	}
	return decimal.Zero
}

// Brackets returns a copy of the brackets sorted by MinSeats ascending
func (s BracketSchedule) Brackets() []Bracket {
	result := make([]Bracket, len(s.brackets))
	copy(result, s.brackets)
	return result
}

// IsEmpty returns true if the schedule has no brackets
func (s BracketSchedule) IsEmpty() bool {
	return len(s.brackets) == 0
}

// DefaultDiscountSchedule returns the volume discount table, in percent:
// 1000+ seats 25, 500+ 20, 250+ 15, 100+ 10, otherwise 0.
func DefaultDiscountSchedule() BracketSchedule {
	return MustBracketSchedule(
		Bracket{MinSeats: 0, Value: decimal.Zero},
		Bracket{MinSeats: 100, Value: decimal.NewFromInt(10)},
		Bracket{MinSeats: 250, Value: decimal.NewFromInt(15)},
		Bracket{MinSeats: 500, Value: decimal.NewFromInt(20)},
		Bracket{MinSeats: 1000, Value: decimal.NewFromInt(25)},
	)
}

// DefaultImplementationFeeSchedule returns the one-time implementation fee table:
// 1000+ seats 100000, 500+ 75000, 250+ 50000, otherwise 25000.
func DefaultImplementationFeeSchedule() BracketSchedule {
	return MustBracketSchedule(
		Bracket{MinSeats: 0, Value: decimal.NewFromInt(25000)},
		Bracket{MinSeats: 250, Value: decimal.NewFromInt(50000)},
		Bracket{MinSeats: 500, Value: decimal.NewFromInt(75000)},
		Bracket{MinSeats: 1000, Value: decimal.NewFromInt(100000)},
	)
}
