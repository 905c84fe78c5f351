package core

import "github.com/shopspring/decimal"

// MonthLabelLayout renders month buckets as "Mar 2026".
const MonthLabelLayout = "Jan 2006"

// MonthlyComparison is one bucket of the income vs expenses series.
// It is computed per request and never persisted.
type MonthlyComparison struct {
	Month    Date // first day of the bucket
	Label    string
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Balance  decimal.Decimal // Income - Expenses
}

// NewMonthlyComparison builds the bucket for month, deriving label and balance.
func NewMonthlyComparison(month Date, income, expenses decimal.Decimal) MonthlyComparison {
	month = month.MonthStart()
	return MonthlyComparison{
		Month:    month,
		Label:    month.Format(MonthLabelLayout),
		Income:   income,
		Expenses: expenses,
		Balance:  income.Sub(expenses),
	}
}
