package sheets

import (
	"context"

	"trackmystacks/internal/core"
)

// Ports for outbound adapters.
type (
	// ComparisonWriter publishes a user's monthly comparison, replacing
	// whatever was published for that user before.
	ComparisonWriter interface {
		WriteComparison(ctx context.Context, username string, points []core.MonthlyComparison) error
	}
)

// Header is the first row of every published comparison.
var Header = []string{"Month", "Income", "Expenses", "Balance"}

// Rows renders points as table rows below Header, amounts with two decimals.
func Rows(points []core.MonthlyComparison) [][]string {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{
			p.Label,
			core.FormatAmount(p.Income),
			core.FormatAmount(p.Expenses),
			core.FormatAmount(p.Balance),
		})
	}
	return rows
}
