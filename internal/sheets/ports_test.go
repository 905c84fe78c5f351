package sheets

import (
	"testing"

	"github.com/shopspring/decimal"

	"trackmystacks/internal/core"
)

func TestRows(t *testing.T) {
	points := []core.MonthlyComparison{
		core.NewMonthlyComparison(core.NewDate(2026, 2, 1), decimal.Zero, decimal.RequireFromString("20.5")),
		core.NewMonthlyComparison(core.NewDate(2026, 3, 1), decimal.NewFromInt(1000), decimal.NewFromInt(400)),
	}
	want := [][]string{
		{"Feb 2026", "0.00", "20.50", "-20.50"},
		{"Mar 2026", "1000.00", "400.00", "600.00"},
	}

	got := Rows(points)
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("row %d col %d = %q, want %q", i, j, got[i][j], want[i][j])
			}
		}
	}
}
