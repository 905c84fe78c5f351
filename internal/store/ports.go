package store

import (
	"context"
	"errors"

	"trackmystacks/internal/core"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Ports for the persistence layer. Snapshot export and import run entirely
// inside one transaction; the comparison reads do not need one.
type (
	// Reader is the read side available inside a transaction.
	Reader interface {
		ListUsers(ctx context.Context) ([]core.User, error)
		ListCategories(ctx context.Context) ([]core.Category, error)
		// ListOwnedExpenses returns every expense joined with its owner's username.
		ListOwnedExpenses(ctx context.Context) ([]core.OwnedExpense, error)
		ListExpensesByOwner(ctx context.Context, userID int64) ([]core.Expense, error)
		FindUserByUsername(ctx context.Context, username string) (core.User, error)
	}

	// Writer is the mutating side available inside a write transaction.
	Writer interface {
		Reader
		DeleteAllExpenses(ctx context.Context) (int64, error)
		DeleteAllCategories(ctx context.Context) (int64, error)
		InsertCategory(ctx context.Context, c core.Category) (core.Category, error)
		InsertUser(ctx context.Context, u core.User) (core.User, error)
		// UpdateUser rewrites email, password hash and admin flag of the user with u.ID.
		UpdateUser(ctx context.Context, u core.User) error
		InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		DeleteExpensesByOwner(ctx context.Context, userID int64) (int64, error)
	}

	// Store runs callbacks inside transactions. A callback error rolls back
	// every write made through the Writer.
	Store interface {
		ReadTx(ctx context.Context, fn func(Reader) error) error
		WriteTx(ctx context.Context, fn func(Writer) error) error
	}

	// RangeReader serves the monthly comparison.
	RangeReader interface {
		FindUserByUsername(ctx context.Context, username string) (core.User, error)
		// ListExpensesByOwnerAndDateRange returns expenses dated within [from, to].
		ListExpensesByOwnerAndDateRange(ctx context.Context, userID int64, from, to core.Date) ([]core.Expense, error)
		// ListIncomeByOwnerAndMonthRange returns incomes whose month lies within [from, to].
		ListIncomeByOwnerAndMonthRange(ctx context.Context, userID int64, from, to core.Date) ([]core.Income, error)
	}

	// Seeder records individual rows outside of snapshot transactions.
	Seeder interface {
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		AddExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		AddIncome(ctx context.Context, in core.Income) (core.Income, error)
	}
)
