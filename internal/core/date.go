package core

import (
	"errors"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("date cannot be zero")

// Date is a calendar date stored as UTC midnight.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// MonthStart returns the first day of d's month.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

// EndOfMonth returns the last day of d's month.
func (d Date) EndOfMonth() Date {
	return NewDate(d.Year(), int(d.Month())+1, 0)
}

// AddMonths returns the first day of the month n months after d's month.
// Negative n moves backwards.
func (d Date) AddMonths(n int) Date {
	return NewDate(d.Year(), int(d.Month())+n, 1)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON is needed because the embedded time.Time would otherwise
// promote its own RFC 3339 encoding.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("date must be a string, got %s", s)
	}
	return d.UnmarshalText([]byte(s[1 : len(s)-1]))
}
