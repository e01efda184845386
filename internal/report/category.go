package report

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"khata/internal/core"
)

var hundred = decimal.NewFromInt(100)

// CategoryShare is one row of a spend breakdown.
type CategoryShare struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	Count      int             `json:"count"`
}

// Breakdown sums spends per category and derives each category's share of
// the total, sorted by amount descending (ties by category name). A zero
// total yields an empty list. Category labels outside the known set are kept.
func Breakdown(spends []core.Spend) []CategoryShare {
	out := []CategoryShare{}
	index := make(map[string]int)
	total := decimal.Zero

	for _, s := range spends {
		if _, ok := s.Signed(); !ok {
			continue
		}
		c := core.NormalizeCategory(s.Category)
		i, seen := index[c]
		if !seen {
			out = append(out, CategoryShare{Category: c, Amount: decimal.Zero})
			i = len(out) - 1
			index[c] = i
		}
		out[i].Amount = out[i].Amount.Add(s.Amount)
		out[i].Count++
		total = total.Add(s.Amount)
	}

	if total.IsZero() {
		return []CategoryShare{}
	}
	for i := range out {
		out[i].Percentage = out[i].Amount.Div(total).Mul(hundred)
	}

	slices.SortStableFunc(out, func(a, b CategoryShare) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})
	return out
}

// TopCategories returns the first n rows of a breakdown. n <= 0 returns all.
func TopCategories(shares []CategoryShare, n int) []CategoryShare {
	if n <= 0 || n >= len(shares) {
		return shares
	}
	return shares[:n]
}

// PercentPlaces is the precision percentages are rounded to for display.
const PercentPlaces = 2

// Rounded returns a copy of shares with percentages rounded to
// PercentPlaces. The rounded values may not sum to exactly 100.
func Rounded(shares []CategoryShare) []CategoryShare {
	out := make([]CategoryShare, len(shares))
	for i, s := range shares {
		s.Percentage = s.Percentage.Round(PercentPlaces)
		out[i] = s
	}
	return out
}
