package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"trackmystacks/internal/core"
	"trackmystacks/internal/store"

	_ "modernc.org/sqlite"
)

// Repository is the SQLite implementation of store.Store and store.RangeReader.
type Repository struct {
	db      *sql.DB
	queries *Queries
}

var (
	_ store.Store       = (*Repository)(nil)
	_ store.RangeReader = (*Repository)(nil)
	_ store.Seeder      = (*Repository)(nil)
)

// DSN returns the connection string used for dbPath. Foreign keys are
// enforced and writers wait on a locked database instead of failing.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReadTx runs fn inside a deferred SQLite transaction. Only reads are issued,
// so it never takes the write lock, and every read sees the same snapshot.
func (r *Repository) ReadTx(ctx context.Context, fn func(store.Reader) error) error {
	return r.inTx(ctx, func(q *Queries) error { return fn(q) })
}

// WriteTx runs fn inside a transaction and commits only if fn succeeds.
func (r *Repository) WriteTx(ctx context.Context, fn func(store.Writer) error) error {
	return r.inTx(ctx, func(q *Queries) error { return fn(q) })
}

func (r *Repository) inTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// FindUserByUsername implements store.RangeReader
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.queries.FindUserByUsername(ctx, username)
}

// ListExpensesByOwnerAndDateRange implements store.RangeReader
func (r *Repository) ListExpensesByOwnerAndDateRange(ctx context.Context, userID int64, from, to core.Date) ([]core.Expense, error) {
	expenses, err := r.queries.ListExpensesByOwnerAndDateRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list expenses for user %d: %w", userID, err)
	}
	return expenses, nil
}

// ListIncomeByOwnerAndMonthRange implements store.RangeReader
func (r *Repository) ListIncomeByOwnerAndMonthRange(ctx context.Context, userID int64, from, to core.Date) ([]core.Income, error) {
	incomes, err := r.queries.ListIncomeByOwnerAndMonthRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list incomes for user %d: %w", userID, err)
	}
	return incomes, nil
}

// CreateUser inserts a user outside of any snapshot transaction.
func (r *Repository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	created, err := r.queries.InsertUser(ctx, u)
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User saved to SQLite", "id", created.ID, "username", created.Username)
	return created, nil
}

// AddExpense records an expense for an existing user.
func (r *Repository) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	created, err := r.queries.InsertExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", created.ID,
		"user_id", created.UserID,
		"amount", created.Amount.String(),
		"date", created.Date.String())
	return created, nil
}

// AddIncome records an income; the month is normalized to its first day.
func (r *Repository) AddIncome(ctx context.Context, in core.Income) (core.Income, error) {
	in.Month = in.Month.MonthStart()
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	created, err := r.queries.InsertIncome(ctx, in)
	if err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}

	slog.InfoContext(ctx, "Income saved to SQLite",
		"id", created.ID,
		"user_id", created.UserID,
		"amount", created.Amount.String(),
		"month", created.Month.String())
	return created, nil
}
