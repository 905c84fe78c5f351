package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"trackmystacks/internal/core"
	"trackmystacks/internal/log"
	"trackmystacks/internal/snapshot"
	"trackmystacks/internal/store"
)

var (
	ErrInvalidWindow = errors.New("comparison window must be positive")
	// ErrUnknownUser is shared with the snapshot engine.
	ErrUnknownUser = snapshot.ErrUnknownUser
)

// ComparisonService computes the income vs expenses series shown on the
// dashboard. Nothing it computes is stored.
type ComparisonService struct {
	store  store.RangeReader
	now    func() time.Time
	logger *log.Logger
}

type ComparisonOption func(*ComparisonService)

// WithClock fixes "now" so the window is deterministic.
func WithClock(now func() time.Time) ComparisonOption {
	return func(s *ComparisonService) { s.now = now }
}

func WithComparisonLogger(l *log.Logger) ComparisonOption {
	return func(s *ComparisonService) { s.logger = l.WithComponent(log.ComponentAggregation) }
}

func NewComparisonService(r store.RangeReader, opts ...ComparisonOption) *ComparisonService {
	s := &ComparisonService{
		store:  r,
		now:    time.Now,
		logger: log.FromContext(context.Background()).WithComponent(log.ComponentAggregation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ComputeMonthlyComparison returns exactly window points, oldest first,
// ending with the current month. Months without records are zero.
//
// Incomes are read for [from, first of this month]; expenses for
// [from, last of this month] so that expenses booked later this month
// are included.
func (s *ComparisonService) ComputeMonthlyComparison(ctx context.Context, userID int64, window int) ([]core.MonthlyComparison, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, window)
	}

	today := core.DateOf(s.now())
	to := today.MonthStart()
	from := to.AddMonths(-(window - 1))

	var (
		incomes  []core.Income
		expenses []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if incomes, err = s.store.ListIncomeByOwnerAndMonthRange(gctx, userID, from, to); err != nil {
			return fmt.Errorf("list incomes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if expenses, err = s.store.ListExpensesByOwnerAndDateRange(gctx, userID, from, today.EndOfMonth()); err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Monthly comparison failed", log.FieldUserID, userID, log.FieldError, err)
		return nil, err
	}

	incomeByMonth := make(map[string]decimal.Decimal)
	for _, in := range incomes {
		k := monthKey(in.Month)
		incomeByMonth[k] = incomeByMonth[k].Add(in.Amount)
	}
	expenseByMonth := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		k := monthKey(e.Date)
		expenseByMonth[k] = expenseByMonth[k].Add(e.Amount)
	}

	points := make([]core.MonthlyComparison, 0, window)
	for m := from; !m.After(to.Time); m = m.AddMonths(1) {
		k := monthKey(m)
		points = append(points, core.NewMonthlyComparison(m, incomeByMonth[k], expenseByMonth[k]))
	}

	s.logger.DebugContext(ctx, "Computed monthly comparison",
		log.FieldUserID, userID,
		log.FieldWindow, window,
		log.FieldFrom, from.String(),
		log.FieldTo, to.String())
	return points, nil
}

// ComputeForUsername resolves username and computes its comparison.
func (s *ComparisonService) ComputeForUsername(ctx context.Context, username string, window int) ([]core.MonthlyComparison, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, window)
	}
	u, err := s.store.FindUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUser, username)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return s.ComputeMonthlyComparison(ctx, u.ID, window)
}

// monthKey buckets a date by calendar month.
func monthKey(d core.Date) string {
	return d.Format("2006-01")
}
