// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals (shopspring/decimal); floats are never used
// for sums so monthly totals stay stable across runs.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user supplied decimal string to an exact amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. Values are rounded half-up to two decimal places.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
//	ParseAmount("-4")     -> -4
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	digits := strings.TrimLeft(s, "+-")
	if len(s)-len(digits) > 1 || digits == "" || strings.Count(digits, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range digits {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// FormatAmount renders an amount with exactly two decimals for display.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
