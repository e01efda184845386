package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"khata/internal/core"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func supplierTx(cp string, kind core.SupplierKind, amount string, at time.Time) core.SupplierTransaction {
	return core.SupplierTransaction{
		ID:             cp + "-" + string(kind) + "-" + at.Format(time.RFC3339Nano) + "-" + amount,
		OwnerID:        "owner",
		CounterpartyID: cp,
		Kind:           kind,
		Amount:         dec(amount),
		CreatedAt:      at,
	}
}

func loanTx(person string, kind core.LoanKind, amount string, at time.Time) core.LoanTransaction {
	return core.LoanTransaction{
		ID:        person + "-" + string(kind) + "-" + amount,
		OwnerID:   "owner",
		PersonID:  person,
		Kind:      kind,
		Amount:    dec(amount),
		CreatedAt: at,
	}
}

func spend(category, amount string, d core.Date) core.Spend {
	return core.Spend{
		ID:        category + "-" + amount + "-" + d.String(),
		OwnerID:   "owner",
		Title:     category,
		Category:  category,
		Amount:    dec(amount),
		Date:      d,
		CreatedAt: d.Time,
	}
}

func datePtr(y, m, d int) *core.Date {
	v := core.NewDate(y, m, d)
	return &v
}
