package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Totals is the inflow and outflow of a period. Both sides are always
// present; a side with no records is zero.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Of returns the side for t.
func (t Totals) Of(tt TxType) decimal.Decimal {
	if tt == Income {
		return t.Income
	}
	return t.Expense
}

// CategoryTotals maps category to summed amount. Only categories with at
// least one record appear.
type CategoryTotals map[string]decimal.Decimal

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Sorted returns the entries by descending amount, ties broken by name.
func (c CategoryTotals) Sorted() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(c))
	for name, amt := range c {
		out = append(out, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Sum adds every category together.
func (c CategoryTotals) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, amt := range c {
		total = total.Add(amt)
	}
	return total
}

func (c CategoryTotals) add(name string, amt decimal.Decimal) {
	if cur, ok := c[name]; ok {
		c[name] = cur.Add(amt)
		return
	}
	c[name] = amt
}

// YearlySeries holds one slot per month, index 0 is January.
type YearlySeries struct {
	Income  [12]decimal.Decimal `json:"income"`
	Expense [12]decimal.Decimal `json:"expense"`
}

// Of returns the series for t.
func (y YearlySeries) Of(t TxType) [12]decimal.Decimal {
	if t == Income {
		return y.Income
	}
	return y.Expense
}

// DayBin is the per-category activity of one calendar day.
type DayBin struct {
	Income  CategoryTotals `json:"income"`
	Expense CategoryTotals `json:"expense"`
}

// DayBins is keyed by day of month. Days without records are absent.
type DayBins map[int]DayBin

// MonthlySummary sums amounts by type for the given month.
func MonthlySummary(txs []Transaction, year, month int) Totals {
	totals := Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, t := range txs {
		if !t.Date.In(year, month) {
			continue
		}
		switch t.Type {
		case Income:
			totals.Income = totals.Income.Add(t.Amount)
		case Expense:
			totals.Expense = totals.Expense.Add(t.Amount)
		}
	}
	return totals
}

// CategorySummary sums amounts by category for one type in the given month.
func CategorySummary(txs []Transaction, year, month int, tt TxType) CategoryTotals {
	out := CategoryTotals{}
	for _, t := range txs {
		if t.Type != tt || !t.Date.In(year, month) {
			continue
		}
		out.add(t.Category, t.Amount)
	}
	return out
}

// YearlySummary builds zero-filled monthly series for both types.
func YearlySummary(txs []Transaction, year int) YearlySeries {
	var series YearlySeries
	for i := range series.Income {
		series.Income[i] = decimal.Zero
		series.Expense[i] = decimal.Zero
	}
	for _, t := range txs {
		if t.Date.IsZero() || t.Date.Year() != year {
			continue
		}
		idx := t.Date.Month() - 1
		switch t.Type {
		case Income:
			series.Income[idx] = series.Income[idx].Add(t.Amount)
		case Expense:
			series.Expense[idx] = series.Expense[idx].Add(t.Amount)
		}
	}
	return series
}

// DailyBins groups the month's records by day, then by type and category.
func DailyBins(txs []Transaction, year, month int) DayBins {
	bins := DayBins{}
	for _, t := range txs {
		if !t.Type.Valid() || !t.Date.In(year, month) {
			continue
		}
		day := t.Date.Day()
		bin, ok := bins[day]
		if !ok {
			bin = DayBin{Income: CategoryTotals{}, Expense: CategoryTotals{}}
			bins[day] = bin
		}
		side := bin.Expense
		if t.Type == Income {
			side = bin.Income
		}
		side.add(t.Category, t.Amount)
	}
	return bins
}
