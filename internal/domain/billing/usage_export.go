package billing

import (
	"context"

	"github.com/google/uuid"
)

// ExportLineStatus is the outcome of exporting one aggregate
type ExportLineStatus string

const (
	ExportLineReported ExportLineStatus = "reported"
	ExportLineSkipped  ExportLineStatus = "skipped"
	ExportLineFailed   ExportLineStatus = "failed"
)

// UsageExport is one subscriber's aggregated usage for a period, ready to be
// pushed to the external billing provider that invoices metered usage
type UsageExport struct {
	SubscriberID uuid.UUID
	BillingRef   string
	Period       BillingPeriod
	Aggregates   []UsageAggregate
}

// UsageExportLine reports what happened to one aggregate
type UsageExportLine struct {
	ServiceType    ServiceType
	Quantity       int64
	ExternalItemID string
	RecordID       string
	Status         ExportLineStatus
	Reason         string
}

// UsageExportResult is the outcome of one export
type UsageExportResult struct {
	Provider       string
	ExternalStatus string
	Lines          []UsageExportLine
}

// Count returns the number of lines with the given status
func (r *UsageExportResult) Count(status ExportLineStatus) int {
	n := 0
	for _, l := range r.Lines {
		if l.Status == status {
			n++
		}
	}
	return n
}

// UsageExporter pushes aggregated usage to an external billing provider.
// Reporting the same export twice must not double-bill.
type UsageExporter interface {
	Export(ctx context.Context, export UsageExport) (*UsageExportResult, error)
}
