package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string // opaque, carried verbatim
		Admin        bool
		CreatedAt    time.Time
	}

	Category struct {
		ID        int64
		Name      string
		CreatedAt time.Time
	}

	// Expense is a dated transaction owned by a user. Category is a free-text
	// label and does not reference Category.ID.
	Expense struct {
		ID          int64
		UserID      int64
		Amount      decimal.Decimal
		Category    string
		Description string
		Date        Date
		Recurring   bool
		CreatedAt   time.Time
	}

	// OwnedExpense is an expense joined with the username of its owner.
	OwnedExpense struct {
		Expense
		Username string
	}

	// Income is a paycheck booked against a month. Month is always the
	// first day of that month.
	Income struct {
		ID          int64
		UserID      int64
		Amount      decimal.Decimal
		Month       Date
		Description string
		CreatedAt   time.Time
	}
)

var (
	ErrEmptyUsername      = errors.New("empty username")
	ErrEmptyEmail         = errors.New("empty email")
	ErrEmptyPasswordHash  = errors.New("empty password hash")
	ErrEmptyCategory      = errors.New("empty category")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMonthNotNormalized = errors.New("month must be the first day of the month")
)

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return ErrEmptyUsername
	}
	if strings.TrimSpace(u.Email) == "" {
		return ErrEmptyEmail
	}
	if u.PasswordHash == "" {
		return ErrEmptyPasswordHash
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(e.Description) > 255 {
		return errors.New("description too long (max 255 characters)")
	}
	return nil
}

func (i Income) Validate() error {
	if err := i.Month.Validate(); err != nil {
		return err
	}
	if i.Month.Day() != 1 {
		return ErrMonthNotNormalized
	}
	if !i.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
