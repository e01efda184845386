package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry is a ledger event reduced to what aggregation needs.
//
// Signed applies the record kind's sign rule. It reports false for records
// that must be skipped: unknown kinds written by newer versions, and
// negative amounts.
type Entry interface {
	EntityID() string
	OccurredAt() time.Time
	Signed() (decimal.Decimal, bool)
}

// Dated is implemented by entries that carry a calendar date instead of an
// instant. Bucketing places them by date in the report location.
type Dated interface {
	CivilDate() Date
}

var (
	_ Entry = SupplierTransaction{}
	_ Entry = LoanTransaction{}
	_ Entry = Spend{}
	_ Dated = Spend{}
)

func (t SupplierTransaction) EntityID() string      { return t.CounterpartyID }
func (t SupplierTransaction) OccurredAt() time.Time { return t.CreatedAt }

// Signed returns +amount for purchases and -amount for payments, so the sum
// is what the owner still owes the supplier.
func (t SupplierTransaction) Signed() (decimal.Decimal, bool) {
	if t.Amount.IsNegative() {
		return decimal.Zero, false
	}
	switch t.Kind {
	case NewPurchase:
		return t.Amount, true
	case PayDue, SettleBill:
		return t.Amount.Neg(), true
	}
	return decimal.Zero, false
}

func (t LoanTransaction) EntityID() string      { return t.PersonID }
func (t LoanTransaction) OccurredAt() time.Time { return t.CreatedAt }

// Signed returns +amount when the owner gives money and -amount when the
// owner takes it back, so a positive sum means the person owes the owner.
func (t LoanTransaction) Signed() (decimal.Decimal, bool) {
	if t.Amount.IsNegative() {
		return decimal.Zero, false
	}
	switch t.Kind {
	case Gives:
		return t.Amount, true
	case Takes:
		return t.Amount.Neg(), true
	}
	return decimal.Zero, false
}

func (s Spend) EntityID() string      { return NormalizeCategory(s.Category) }
func (s Spend) OccurredAt() time.Time { return s.Date.Time }
func (s Spend) CivilDate() Date       { return s.Date }

// Signed returns the spend as an outflow.
func (s Spend) Signed() (decimal.Decimal, bool) {
	if s.Amount.IsNegative() {
		return decimal.Zero, false
	}
	return s.Amount.Neg(), true
}
