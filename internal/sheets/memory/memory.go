package memory

import (
	"context"
	"sync"

	"trackmystacks/internal/core"
	ports "trackmystacks/internal/sheets"
)

// Writer keeps the last comparison written per user. Used by tests and when
// no spreadsheet is configured.
type Writer struct {
	mu     sync.RWMutex
	tables map[string][]core.MonthlyComparison
	writes int
}

// Ensure interface conformance
var _ ports.ComparisonWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{tables: map[string][]core.MonthlyComparison{}}
}

func (w *Writer) WriteComparison(_ context.Context, username string, points []core.MonthlyComparison) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tables[username] = append([]core.MonthlyComparison(nil), points...)
	w.writes++
	return nil
}

// Comparison returns the last points written for username.
func (w *Writer) Comparison(username string) ([]core.MonthlyComparison, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	points, ok := w.tables[username]
	return append([]core.MonthlyComparison(nil), points...), ok
}

// Writes counts WriteComparison calls.
func (w *Writer) Writes() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.writes
}
