// Package report derives balances, rankings, period totals, category
// breakdowns and trends from ledger records.
//
// Every function here is pure: it reads the slices it is given, never
// mutates them, and keeps no state between calls. Records the sign rule
// rejects are skipped, never reported as errors.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/core"
)

// Balance sums the signed amounts of entries.
func Balance[E core.Entry](entries []E) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if v, ok := e.Signed(); ok {
			total = total.Add(v)
		}
	}
	return total
}

// SupplierBalance is what the owner still owes one supplier.
func SupplierBalance(txs []core.SupplierTransaction) decimal.Decimal {
	return Balance(txs)
}

// LoanBalance is what one person still owes the owner. Negative means the
// owner owes the person.
func LoanBalance(txs []core.LoanTransaction) decimal.Decimal {
	return Balance(txs)
}

// EntityBalance is a derived, never persisted, balance for one counterparty.
type EntityBalance struct {
	EntityID      string                `json:"entity_id"`
	Name          string                `json:"name"`
	Kind          core.CounterpartyKind `json:"kind"`
	Balance       decimal.Decimal       `json:"balance"`
	DueDate       *core.Date            `json:"due_date,omitempty"`
	FirstActivity time.Time             `json:"first_activity"`
	Records       int                   `json:"records"`
}

// SupplierBalances groups supplier transactions per counterparty, in order of
// first appearance. The due date of a supplier is the earliest due date among
// its unsettled purchases.
func SupplierBalances(txs []core.SupplierTransaction, names map[string]string) []EntityBalance {
	out := groupBalances(txs, names, core.Supplier)
	index := make(map[string]int, len(out))
	for i, b := range out {
		index[b.EntityID] = i
	}
	for _, t := range txs {
		if t.Kind != core.NewPurchase || t.DueDate == nil || t.Settled {
			continue
		}
		if _, ok := t.Signed(); !ok {
			continue
		}
		b := &out[index[t.CounterpartyID]]
		if b.DueDate == nil || t.DueDate.Before(b.DueDate.Time) {
			due := *t.DueDate
			b.DueDate = &due
		}
	}
	return out
}

// PersonBalances groups loan transactions per person, in order of first
// appearance.
func PersonBalances(txs []core.LoanTransaction, names map[string]string) []EntityBalance {
	return groupBalances(txs, names, core.Person)
}

func groupBalances[E core.Entry](entries []E, names map[string]string, kind core.CounterpartyKind) []EntityBalance {
	var out []EntityBalance
	index := make(map[string]int)
	for _, e := range entries {
		v, ok := e.Signed()
		if !ok {
			continue
		}
		id := e.EntityID()
		i, seen := index[id]
		if !seen {
			name := names[id]
			if name == "" {
				name = id
			}
			out = append(out, EntityBalance{
				EntityID:      id,
				Name:          name,
				Kind:          kind,
				Balance:       decimal.Zero,
				FirstActivity: e.OccurredAt(),
			})
			i = len(out) - 1
			index[id] = i
		}
		b := &out[i]
		b.Balance = b.Balance.Add(v)
		b.Records++
		if e.OccurredAt().Before(b.FirstActivity) {
			b.FirstActivity = e.OccurredAt()
		}
	}
	return out
}

// EntityEntries returns the entries that belong to one entity.
func EntityEntries[E core.Entry](entries []E, entityID string) []E {
	var out []E
	for _, e := range entries {
		if e.EntityID() == entityID {
			out = append(out, e)
		}
	}
	return out
}
