package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"trackmystacks/internal/core"
	"trackmystacks/internal/store"
)

// timestampLayout is used for created_at columns, stored as TEXT so the
// driver never reinterprets them.
const timestampLayout = time.RFC3339Nano

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds every statement the repository runs. Bound to a *sql.Tx it
// implements store.Writer.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

var (
	_ store.Writer      = (*Queries)(nil)
	_ store.RangeReader = (*Queries)(nil)
)

const listUsers = `SELECT id, username, email, password_hash, is_admin, created_at FROM users ORDER BY id`

func (q *Queries) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

const findUserByUsername = `SELECT id, username, email, password_hash, is_admin, created_at FROM users WHERE username = ?`

func (q *Queries) FindUserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx, findUserByUsername, username))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
	}
	return u, err
}

const insertUser = `INSERT INTO users (username, email, password_hash, is_admin, created_at) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertUser(ctx context.Context, u core.User) (core.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := q.db.ExecContext(ctx, insertUser, u.Username, u.Email, u.PasswordHash, u.Admin, formatTimestamp(u.CreatedAt))
	if err != nil {
		return core.User{}, err
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return core.User{}, err
	}
	return u, nil
}

const updateUser = `UPDATE users SET email = ?, password_hash = ?, is_admin = ? WHERE id = ?`

func (q *Queries) UpdateUser(ctx context.Context, u core.User) error {
	res, err := q.db.ExecContext(ctx, updateUser, u.Email, u.PasswordHash, u.Admin, u.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user id %d: %w", u.ID, store.ErrNotFound)
	}
	return nil
}

const listCategories = `SELECT id, name, created_at FROM categories ORDER BY id`

func (q *Queries) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Category
	for rows.Next() {
		var (
			c       core.Category
			created string
		)
		if err := rows.Scan(&c.ID, &c.Name, &created); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTimestamp(created); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const insertCategory = `INSERT INTO categories (name, created_at) VALUES (?, ?)`

func (q *Queries) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := q.db.ExecContext(ctx, insertCategory, c.Name, formatTimestamp(c.CreatedAt))
	if err != nil {
		return core.Category{}, err
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

const deleteAllCategories = `DELETE FROM categories`

func (q *Queries) DeleteAllCategories(ctx context.Context) (int64, error) {
	return q.execRows(ctx, deleteAllCategories)
}

const expenseColumns = `e.id, e.user_id, e.amount, e.category, e.description, e.date, e.recurring, e.created_at`

const listOwnedExpenses = `SELECT ` + expenseColumns + `, u.username
FROM expenses e JOIN users u ON u.id = e.user_id
ORDER BY e.id`

func (q *Queries) ListOwnedExpenses(ctx context.Context) ([]core.OwnedExpense, error) {
	rows, err := q.db.QueryContext(ctx, listOwnedExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.OwnedExpense
	for rows.Next() {
		var (
			oe  core.OwnedExpense
			raw expenseRow
		)
		if err := rows.Scan(raw.dest(&oe.Expense, &oe.Username)...); err != nil {
			return nil, err
		}
		if err := raw.decode(&oe.Expense); err != nil {
			return nil, err
		}
		items = append(items, oe)
	}
	return items, rows.Err()
}

const listExpensesByOwner = `SELECT ` + expenseColumns + ` FROM expenses e WHERE e.user_id = ? ORDER BY e.date, e.id`

func (q *Queries) ListExpensesByOwner(ctx context.Context, userID int64) ([]core.Expense, error) {
	return q.queryExpenses(ctx, listExpensesByOwner, userID)
}

const listExpensesByOwnerAndDateRange = `SELECT ` + expenseColumns + ` FROM expenses e
WHERE e.user_id = ? AND e.date >= ? AND e.date <= ?
ORDER BY e.date, e.id`

func (q *Queries) ListExpensesByOwnerAndDateRange(ctx context.Context, userID int64, from, to core.Date) ([]core.Expense, error) {
	return q.queryExpenses(ctx, listExpensesByOwnerAndDateRange, userID, from.String(), to.String())
}

const insertExpense = `INSERT INTO expenses (user_id, amount, category, description, date, recurring, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := q.db.ExecContext(ctx, insertExpense,
		e.UserID, e.Amount.String(), e.Category, e.Description, e.Date.String(), e.Recurring, formatTimestamp(e.CreatedAt))
	if err != nil {
		return core.Expense{}, err
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

const deleteAllExpenses = `DELETE FROM expenses`

func (q *Queries) DeleteAllExpenses(ctx context.Context) (int64, error) {
	return q.execRows(ctx, deleteAllExpenses)
}

const deleteExpensesByOwner = `DELETE FROM expenses WHERE user_id = ?`

func (q *Queries) DeleteExpensesByOwner(ctx context.Context, userID int64) (int64, error) {
	return q.execRows(ctx, deleteExpensesByOwner, userID)
}

const listIncomeByOwnerAndMonthRange = `SELECT id, user_id, amount, month, description, created_at FROM incomes
WHERE user_id = ? AND month >= ? AND month <= ?
ORDER BY month, id`

func (q *Queries) ListIncomeByOwnerAndMonthRange(ctx context.Context, userID int64, from, to core.Date) ([]core.Income, error) {
	rows, err := q.db.QueryContext(ctx, listIncomeByOwnerAndMonthRange, userID, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Income
	for rows.Next() {
		var (
			in                     core.Income
			amount, month, created string
		)
		if err := rows.Scan(&in.ID, &in.UserID, &amount, &month, &in.Description, &created); err != nil {
			return nil, err
		}
		if in.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("income %d amount: %w", in.ID, err)
		}
		if in.Month, err = core.ParseDate(month); err != nil {
			return nil, err
		}
		if in.CreatedAt, err = parseTimestamp(created); err != nil {
			return nil, err
		}
		items = append(items, in)
	}
	return items, rows.Err()
}

const insertIncome = `INSERT INTO incomes (user_id, amount, month, description, created_at) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertIncome(ctx context.Context, in core.Income) (core.Income, error) {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	res, err := q.db.ExecContext(ctx, insertIncome,
		in.UserID, in.Amount.String(), in.Month.String(), in.Description, formatTimestamp(in.CreatedAt))
	if err != nil {
		return core.Income{}, err
	}
	if in.ID, err = res.LastInsertId(); err != nil {
		return core.Income{}, err
	}
	return in, nil
}

func (q *Queries) queryExpenses(ctx context.Context, query string, args ...interface{}) ([]core.Expense, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Expense
	for rows.Next() {
		var (
			e   core.Expense
			raw expenseRow
		)
		if err := rows.Scan(raw.dest(&e)...); err != nil {
			return nil, err
		}
		if err := raw.decode(&e); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (q *Queries) execRows(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// expenseRow holds the TEXT columns of an expense until they are decoded.
type expenseRow struct {
	amount, date, created string
}

func (r *expenseRow) dest(e *core.Expense, extra ...interface{}) []interface{} {
	return append([]interface{}{
		&e.ID, &e.UserID, &r.amount, &e.Category, &e.Description, &r.date, &e.Recurring, &r.created,
	}, extra...)
}

func (r *expenseRow) decode(e *core.Expense) error {
	var err error
	if e.Amount, err = decimal.NewFromString(r.amount); err != nil {
		return fmt.Errorf("expense %d amount: %w", e.ID, err)
	}
	if e.Date, err = core.ParseDate(r.date); err != nil {
		return fmt.Errorf("expense %d: %w", e.ID, err)
	}
	if e.CreatedAt, err = parseTimestamp(r.created); err != nil {
		return fmt.Errorf("expense %d: %w", e.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (core.User, error) {
	var (
		u       core.User
		created string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Admin, &created); err != nil {
		return core.User{}, err
	}
	var err error
	if u.CreatedAt, err = parseTimestamp(created); err != nil {
		return core.User{}, err
	}
	return u, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
