package google

import (
	"strings"

	"trackmystacks/internal/core"
	ports "trackmystacks/internal/sheets"
)

func sheetTitle(prefix, username string) string {
	return strings.TrimSpace(prefix + " " + username)
}

// a1 builds an A1 range on sheet, quoting the title as Sheets requires for
// names with spaces or punctuation.
func a1(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}

func toValues(points []core.MonthlyComparison) [][]interface{} {
	rows := ports.Rows(points)
	values := make([][]interface{}, 0, len(rows)+1)
	values = append(values, toRow(ports.Header))
	for _, r := range rows {
		values = append(values, toRow(r))
	}
	return values
}

func toRow(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
