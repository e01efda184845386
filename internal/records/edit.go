package records

import (
	"strings"

	"khata/internal/core"
)

// ApplySupplier copies the set fields of e onto t.
func ApplySupplier(t *core.SupplierTransaction, e Edit) {
	if e.Amount != nil {
		t.Amount = *e.Amount
	}
	if e.Description != nil {
		t.Description = strings.TrimSpace(*e.Description)
	}
	if e.Settled != nil {
		t.Settled = *e.Settled
	}
}

// ApplyLoan copies the set fields of e onto t.
func ApplyLoan(t *core.LoanTransaction, e Edit) {
	if e.Amount != nil {
		t.Amount = *e.Amount
	}
	if e.Description != nil {
		t.Description = strings.TrimSpace(*e.Description)
	}
}

// ApplySpend copies the set fields of e onto s. Description edits the title.
func ApplySpend(s *core.Spend, e Edit) {
	if e.Amount != nil {
		s.Amount = *e.Amount
	}
	if e.Description != nil {
		s.Title = strings.TrimSpace(*e.Description)
	}
	if e.Category != nil {
		s.Category = core.NormalizeCategory(*e.Category)
	}
}

// Empty reports whether e changes nothing.
func (e Edit) Empty() bool {
	return e.Name == nil && e.Amount == nil && e.Description == nil && e.Category == nil && e.Settled == nil
}
