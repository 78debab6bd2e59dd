package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name    string  `json:"name"`
	Amount  Money   `json:"amount"`
	Percent float64 `json:"percent"`
}

// Summary is the total spend and the per-category breakdown, largest first.
type Summary struct {
	Total      Money            `json:"total"`
	ByCategory []CategoryAmount `json:"categories"`
}

var hundred = decimal.NewFromInt(100)

// Summarize totals the records and groups them by category. Only categories
// with at least one record are reported. Equal subtotals keep the order in
// which their category first appears in records.
func Summarize(records []Expense) Summary {
	var total Money
	index := make(map[string]int)
	var groups []CategoryAmount
	for _, e := range records {
		total = total.Add(e.Amount)
		i, ok := index[e.Category]
		if !ok {
			i = len(groups)
			index[e.Category] = i
			groups = append(groups, CategoryAmount{Name: e.Category})
		}
		groups[i].Amount = groups[i].Amount.Add(e.Amount)
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Amount.Cents > groups[b].Amount.Cents
	})
	for i := range groups {
		groups[i].Percent = Share(groups[i].Amount, total)
	}
	if groups == nil {
		groups = []CategoryAmount{}
	}
	return Summary{Total: total, ByCategory: groups}
}

// Share returns part/total*100, or 0 when total is zero.
func Share(part, total Money) float64 {
	if total.Cents == 0 {
		return 0
	}
	return decimal.NewFromInt(part.Cents).
		Div(decimal.NewFromInt(total.Cents)).
		Mul(hundred).
		InexactFloat64()
}

// Percent returns the share of the named category, or 0 when it has no records.
func (s Summary) Percent(name string) float64 {
	for _, c := range s.ByCategory {
		if c.Name == name {
			return c.Percent
		}
	}
	return 0
}

// Subtotal returns the amount spent in the named category.
func (s Summary) Subtotal(name string) (Money, bool) {
	for _, c := range s.ByCategory {
		if c.Name == name {
			return c.Amount, true
		}
	}
	return Money{}, false
}
