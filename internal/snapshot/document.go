// Package snapshot exports the store to a portable, versioned document and
// restores it again. Users are matched by username on import, and expenses
// follow their owner by username, so surrogate ids never cross the boundary.
package snapshot

import (
	"time"

	"github.com/shopspring/decimal"

	"trackmystacks/internal/core"
)

// Version is written into every exported document.
const Version = "1.0"

// Document is the full-database snapshot.
type Document struct {
	Version    string          `json:"version" yaml:"version"`
	ExportedAt time.Time       `json:"exportedAt" yaml:"exportedAt"`
	Users      []UserEntry     `json:"users" yaml:"users"`
	Categories []CategoryEntry `json:"categories" yaml:"categories"`
	Expenses   []ExpenseEntry  `json:"expenses" yaml:"expenses"`
}

type UserEntry struct {
	OriginalID   int64  `json:"originalId,omitempty" yaml:"originalId,omitempty"`
	Username     string `json:"username" yaml:"username"`
	Email        string `json:"email" yaml:"email"`
	PasswordHash string `json:"passwordHash" yaml:"passwordHash"`
	Admin        bool   `json:"admin" yaml:"admin"`
	// CreatedAt is only applied when the user does not exist yet.
	CreatedAt *time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

type CategoryEntry struct {
	OriginalID int64      `json:"originalId,omitempty" yaml:"originalId,omitempty"`
	Name       string     `json:"name" yaml:"name"`
	CreatedAt  *time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// ExpenseEntry references its owner by username. An entry whose username
// is not among the document's users is skipped on import.
type ExpenseEntry struct {
	OriginalID  int64            `json:"originalId,omitempty" yaml:"originalId,omitempty"`
	Username    string           `json:"username" yaml:"username"`
	Amount      *decimal.Decimal `json:"amount" yaml:"amount"`
	Category    string           `json:"category" yaml:"category"`
	Description string           `json:"description" yaml:"description"`
	Date        core.Date        `json:"date" yaml:"date"`
	Recurring   bool             `json:"recurring" yaml:"recurring"`
	CreatedAt   *time.Time       `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// UserDocument is the per-user snapshot. It never carries credentials or
// other users' rows. Username is informational: imports always target the
// calling user.
type UserDocument struct {
	Version    string             `json:"version" yaml:"version"`
	Username   string             `json:"username" yaml:"username"`
	ExportedAt time.Time          `json:"exportedAt" yaml:"exportedAt"`
	Expenses   []UserExpenseEntry `json:"expenses" yaml:"expenses"`
}

type UserExpenseEntry struct {
	Amount      *decimal.Decimal `json:"amount" yaml:"amount"`
	Category    string           `json:"category" yaml:"category"`
	Description string           `json:"description" yaml:"description"`
	Date        core.Date        `json:"date" yaml:"date"`
	Recurring   bool             `json:"recurring" yaml:"recurring"`
	CreatedAt   *time.Time       `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

func (e ExpenseEntry) expense(ownerID int64) core.Expense {
	return core.Expense{
		UserID:      ownerID,
		Amount:      *e.Amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
		Recurring:   e.Recurring,
		CreatedAt:   timeOrZero(e.CreatedAt),
	}
}

func (e UserExpenseEntry) expense(ownerID int64) core.Expense {
	return core.Expense{
		UserID:      ownerID,
		Amount:      *e.Amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
		Recurring:   e.Recurring,
		CreatedAt:   timeOrZero(e.CreatedAt),
	}
}

func newUserEntry(u core.User) UserEntry {
	return UserEntry{
		OriginalID:   u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Admin:        u.Admin,
		CreatedAt:    timeOrNil(u.CreatedAt),
	}
}

func newCategoryEntry(c core.Category) CategoryEntry {
	return CategoryEntry{
		OriginalID: c.ID,
		Name:       c.Name,
		CreatedAt:  timeOrNil(c.CreatedAt),
	}
}

func newExpenseEntry(e core.OwnedExpense) ExpenseEntry {
	amount := e.Amount
	return ExpenseEntry{
		OriginalID:  e.ID,
		Username:    e.Username,
		Amount:      &amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
		Recurring:   e.Recurring,
		CreatedAt:   timeOrNil(e.CreatedAt),
	}
}

func newUserExpenseEntry(e core.Expense) UserExpenseEntry {
	amount := e.Amount
	return UserExpenseEntry{
		Amount:      &amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
		Recurring:   e.Recurring,
		CreatedAt:   timeOrNil(e.CreatedAt),
	}
}

// A zero time means "not present": the store assigns now on insert.
func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

// Usernames returns the distinct usernames of d's users in document order,
// spelled as in the document. Names equal under NFC count once.
func (d *Document) Usernames() []string {
	seen := make(map[string]bool, len(d.Users))
	var out []string
	for _, u := range d.Users {
		key := normalizeUsername(u.Username)
		if !seen[key] {
			seen[key] = true
			out = append(out, u.Username)
		}
	}
	return out
}
