package report

import (
	"slices"

	"github.com/shopspring/decimal"
)

// SignFilter selects which balances an outstanding list shows.
type SignFilter string

const (
	SignAny      SignFilter = "any"
	SignPositive SignFilter = "positive"
	SignNegative SignFilter = "negative"
)

// Tier is a stable magnitude category for a balance.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Thresholds split absolute balances into tiers: up to Low is low, up to
// High is medium, anything above High is high.
type Thresholds struct {
	Low  decimal.Decimal
	High decimal.Decimal
}

// DefaultThresholds returns the 1,000 / 10,000 split.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Low:  decimal.NewFromInt(1000),
		High: decimal.NewFromInt(10000),
	}
}

// Tier classifies amount by its absolute value.
func (t Thresholds) Tier(amount decimal.Decimal) Tier {
	abs := amount.Abs()
	switch {
	case abs.LessThanOrEqual(t.Low):
		return TierLow
	case abs.LessThanOrEqual(t.High):
		return TierMedium
	default:
		return TierHigh
	}
}

// Policy controls filtering, tiering and truncation of an outstanding list.
// The zero value hides settled entities, keeps both signs and uses the
// default thresholds. A non-nil Thresholds is used as given, zeros included.
type Policy struct {
	IncludeZero bool
	Sign        SignFilter
	Thresholds  *Thresholds
	// Limit truncates the ranked list; zero or negative keeps everything.
	Limit int
}

// DefaultPolicy hides settled entities and shows both signs.
func DefaultPolicy() Policy {
	th := DefaultThresholds()
	return Policy{Sign: SignAny, Thresholds: &th}
}

// Outstanding is a ranked balance with its tier.
type Outstanding struct {
	EntityBalance
	Tier Tier `json:"tier"`
}

// Rank filters balances by policy and orders them by due date (earliest
// first, missing due dates last), then by absolute balance descending.
// Ties keep their input order. The input slice is not modified.
func Rank(balances []EntityBalance, p Policy) []Outstanding {
	thresholds := DefaultThresholds()
	if p.Thresholds != nil {
		thresholds = *p.Thresholds
	}

	out := make([]Outstanding, 0, len(balances))
	for _, b := range balances {
		if !p.IncludeZero && b.Balance.IsZero() {
			continue
		}
		switch p.Sign {
		case SignPositive:
			if !b.Balance.IsPositive() {
				continue
			}
		case SignNegative:
			if !b.Balance.IsNegative() {
				continue
			}
		}
		out = append(out, Outstanding{EntityBalance: b, Tier: thresholds.Tier(b.Balance)})
	}

	slices.SortStableFunc(out, compareOutstanding)

	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out
}

func compareOutstanding(a, b Outstanding) int {
	switch {
	case a.DueDate != nil && b.DueDate == nil:
		return -1
	case a.DueDate == nil && b.DueDate != nil:
		return 1
	case a.DueDate != nil && b.DueDate != nil:
		if c := a.DueDate.Compare(b.DueDate.Time); c != 0 {
			return c
		}
	}
	return b.Balance.Abs().Cmp(a.Balance.Abs())
}
