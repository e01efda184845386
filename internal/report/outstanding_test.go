package report

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khata/internal/core"
)

func entity(id, balance string, due *core.Date) EntityBalance {
	return EntityBalance{EntityID: id, Name: id, Kind: core.Supplier, Balance: dec(balance), DueDate: due}
}

func TestThresholdsTier(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		amount string
		want   Tier
	}{
		{"0", TierLow},
		{"1000", TierLow},
		{"1000.01", TierMedium},
		{"-5000", TierMedium},
		{"10000", TierMedium},
		{"10000.01", TierHigh},
		{"-25000", TierHigh},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, th.Tier(dec(tt.amount)))
		})
	}
}

func TestRankFiltersBySign(t *testing.T) {
	balances := []EntityBalance{
		entity("a", "500", nil),
		entity("b", "-200", nil),
		entity("c", "0", nil),
	}

	tests := []struct {
		name   string
		policy Policy
		want   []string
	}{
		{"default hides zero", DefaultPolicy(), []string{"a", "b"}},
		{"zero value policy", Policy{}, []string{"a", "b"}},
		{"include zero", Policy{IncludeZero: true}, []string{"a", "b", "c"}},
		{"positive only", Policy{Sign: SignPositive}, []string{"a"}},
		{"negative only", Policy{Sign: SignNegative}, []string{"b"}},
		{"positive ignores include zero", Policy{Sign: SignPositive, IncludeZero: true}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, o := range Rank(balances, tt.policy) {
				got = append(got, o.EntityID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRankOrdersByDueDateThenMagnitude(t *testing.T) {
	balances := []EntityBalance{
		entity("no-due-small", "100", nil),
		entity("late", "50", datePtr(2025, 6, 1)),
		entity("no-due-big", "-9000", nil),
		entity("early", "10", datePtr(2025, 4, 1)),
		entity("early-big", "700", datePtr(2025, 4, 1)),
	}

	got := Rank(balances, DefaultPolicy())

	var ids []string
	for _, o := range got {
		ids = append(ids, o.EntityID)
	}
	assert.Equal(t, []string{"early-big", "early", "late", "no-due-big", "no-due-small"}, ids)
	assert.Equal(t, TierMedium, got[3].Tier)
}

func TestRankIsStableForTies(t *testing.T) {
	balances := []EntityBalance{
		entity("first", "300", nil),
		entity("second", "-300", nil),
		entity("third", "300", nil),
	}
	got := Rank(balances, DefaultPolicy())
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].EntityID)
	assert.Equal(t, "second", got[1].EntityID)
	assert.Equal(t, "third", got[2].EntityID)
}

func TestRankLimitAndNoMutation(t *testing.T) {
	balances := []EntityBalance{
		entity("a", "1", nil),
		entity("b", "3", nil),
		entity("c", "2", nil),
	}
	before := append([]EntityBalance(nil), balances...)

	got := Rank(balances, Policy{Limit: 2})

	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].EntityID)
	assert.Equal(t, "c", got[1].EntityID)
	assert.Equal(t, before, balances)
}

func TestRankEmptyInput(t *testing.T) {
	got := Rank(nil, DefaultPolicy())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestOutstandingSingleSupplierScenario(t *testing.T) {
	txs := []core.SupplierTransaction{
		supplierTx("s1", core.NewPurchase, "1000", t0),
		supplierTx("s1", core.NewPurchase, "2000", t0.AddDate(0, 0, 1)),
		supplierTx("s1", core.NewPurchase, "500", t0.AddDate(0, 0, 2)),
		supplierTx("s1", core.PayDue, "800", t0.AddDate(0, 0, 3)),
	}

	got := Rank(SupplierBalances(txs, nil), Policy{Sign: SignPositive})

	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].EntityID)
	assertDecimal(t, "2700", got[0].Balance)
	assert.Equal(t, TierMedium, got[0].Tier)
	assert.Equal(t, 4, got[0].Records)
}

func TestRankUsesConfiguredZeroThresholds(t *testing.T) {
	balances := []EntityBalance{{EntityID: "a", Balance: dec("50")}}

	assert.Equal(t, TierLow, Rank(balances, Policy{})[0].Tier)

	zero := Thresholds{Low: decimal.Zero, High: decimal.Zero}
	got := Rank(balances, Policy{Thresholds: &zero})
	require.Len(t, got, 1)
	assert.Equal(t, TierHigh, got[0].Tier)
}
