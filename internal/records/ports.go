// Package records defines the ports between services and record storage.
// Aggregation only ever reads through Reader; writes go through Writer.
package records

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/core"
)

// ErrNotFound is returned when an update or delete names a record the owner
// does not have.
var ErrNotFound = errors.New("record not found")

// Kind names a record table.
type Kind string

const (
	KindCounterparty Kind = "counterparty"
	KindSupplier     Kind = "supplier_transaction"
	KindLoan         Kind = "loan_transaction"
	KindSpend        Kind = "spend"
)

// Valid reports whether k is a known record kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCounterparty, KindSupplier, KindLoan, KindSpend:
		return true
	}
	return false
}

// Filter narrows a listing. Zero fields are unbounded. From and To are
// inclusive and compare against CreatedAt, or against the spend date as a
// calendar day in the bound's own location.
type Filter struct {
	EntityID string
	From     time.Time
	To       time.Time
}

// Match reports whether a record with the given entity and time passes f.
func (f Filter) Match(entityID string, at time.Time) bool {
	if f.EntityID != "" && f.EntityID != entityID {
		return false
	}
	if !f.From.IsZero() && at.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && at.After(f.To) {
		return false
	}
	return true
}

// MatchDate is Match for records that carry a calendar date. The bounds are
// reduced to their calendar day first.
func (f Filter) MatchDate(entityID string, d core.Date) bool {
	if f.EntityID != "" && f.EntityID != entityID {
		return false
	}
	if !f.From.IsZero() && d.Before(core.DateOf(f.From).Time) {
		return false
	}
	if !f.To.IsZero() && d.After(core.DateOf(f.To).Time) {
		return false
	}
	return true
}

// Edit is a partial update. Nil fields are left unchanged. Name applies to
// counterparties, Description to transactions and spend titles, Settled to
// supplier transactions only.
type Edit struct {
	Name        *string          `json:"name,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Settled     *bool            `json:"settled,omitempty"`
}

// Ports for outbound adapters.
type (
	Reader interface {
		// Snapshot returns every record of the owner as of one instant.
		Snapshot(ctx context.Context, ownerID string) (core.Snapshot, error)
		ListCounterparties(ctx context.Context, ownerID string) ([]core.Counterparty, error)
		ListSupplierTransactions(ctx context.Context, ownerID string, f Filter) ([]core.SupplierTransaction, error)
		ListLoanTransactions(ctx context.Context, ownerID string, f Filter) ([]core.LoanTransaction, error)
		ListSpends(ctx context.Context, ownerID string, f Filter) ([]core.Spend, error)
		// Categories returns the known categories followed by any other
		// label the owner has used.
		Categories(ctx context.Context, ownerID string) ([]string, error)
	}

	Writer interface {
		SaveCounterparty(ctx context.Context, c core.Counterparty) error
		InsertSupplierTransaction(ctx context.Context, t core.SupplierTransaction) error
		InsertLoanTransaction(ctx context.Context, t core.LoanTransaction) error
		InsertSpend(ctx context.Context, s core.Spend) error
		Update(ctx context.Context, kind Kind, ownerID, id string, e Edit) error
		Delete(ctx context.Context, kind Kind, ownerID, id string) error
	}

	// Preferences remembers small per-owner choices such as the last used
	// spend category. Missing keys read as "".
	Preferences interface {
		GetPreference(ctx context.Context, ownerID, key string) (string, error)
		SetPreference(ctx context.Context, ownerID, key, value string) error
	}

	Store interface {
		Reader
		Writer
		Preferences
		Close() error
	}
)

// PrefLastCategory stores the last category an owner picked for a spend.
const PrefLastCategory = "last_category"

// MergeCategories appends the labels in used that are not already in known,
// preserving order and skipping blanks.
func MergeCategories(known, used []string) []string {
	out := make([]string, 0, len(known)+len(used))
	seen := make(map[string]struct{}, len(known)+len(used))
	for _, list := range [][]string{known, used} {
		for _, c := range list {
			if c == "" {
				continue
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
