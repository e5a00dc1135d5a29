// Package sheets defines the outbound port used to mirror month summaries
// into a spreadsheet.
package sheets

import (
	"context"
	"errors"
	"time"

	"budgetflow/internal/core"
)

var ErrSummaryNotFound = errors.New("month summary not found")

// Summary is the exported view of one month record.
type Summary struct {
	Month             string
	Version           int64
	TotalGrossIncome  float64
	TotalTax          float64
	TotalUsableIncome float64
	TotalExpenses     float64
	RemainingBalance  float64
	CategoryTotals    []core.CategoryTotal
	UpdatedAt         time.Time
}

// Ports for outbound adapters.
type (
	SummaryWriter interface {
		// WriteMonthSummary inserts or replaces the month's rows and returns
		// a reference to the summary row.
		WriteMonthSummary(ctx context.Context, s Summary) (ref string, err error)
	}

	SummaryReader interface {
		ReadMonthSummary(ctx context.Context, month string) (Summary, error)
	}
)
