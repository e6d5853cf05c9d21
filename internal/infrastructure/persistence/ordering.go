package persistence

import (
	"strings"
)

// Ordering whitelists the columns a list query may sort by. Anything else
// falls back to the default column, so filter input never reaches SQL verbatim.
type Ordering struct {
	Columns       map[string]bool
	DefaultColumn string
	// Tiebreak keeps pages stable when the sort column has duplicates
	Tiebreak string
}

// Clause returns "column DIR". The direction defaults to DESC.
func (o Ordering) Clause(field, dir string) string {
	column := strings.TrimSpace(field)
	if !o.Columns[column] {
		column = o.DefaultColumn
	}
	direction := "DESC"
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		direction = "ASC"
	}
	return column + " " + direction
}

var subscriberOrdering = Ordering{
	Columns: map[string]bool{
		"created_at":   true,
		"updated_at":   true,
		"name":         true,
		"tier":         true,
		"seats":        true,
		"cadence":      true,
		"status":       true,
		"renewal_date": true,
	},
	DefaultColumn: "created_at",
	Tiebreak:      "id ASC",
}

// subscriberFilterColumns maps list filter keys to their columns
var subscriberFilterColumns = map[string]string{
	"tier":    "tier",
	"status":  "status",
	"cadence": "cadence",
}
