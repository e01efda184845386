package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khata/internal/core"
)

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func labels(buckets []PeriodBucket) []string {
	out := make([]string, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b.Label)
	}
	return out
}

func TestBucketByDayEmitsEmptyDays(t *testing.T) {
	txs := []core.LoanTransaction{
		loanTx("p1", core.Gives, "100", at(2025, 3, 1, 10, 0)),
		loanTx("p1", core.Takes, "40", at(2025, 3, 3, 0, 0)),
		loanTx("p1", core.Gives, "999", at(2025, 3, 6, 0, 0)),
		loanTx("p1", core.Gives, "555", at(2025, 2, 28, 23, 59)),
	}

	got := Bucket(txs, BucketOptions{
		From:        at(2025, 3, 1, 0, 0),
		To:          at(2025, 3, 5, 23, 59),
		Granularity: Day,
	})

	assert.Equal(t, []string{"2025-03-01", "2025-03-02", "2025-03-03", "2025-03-04", "2025-03-05"}, labels(got))
	assertDecimal(t, "100", got[0].Inflow)
	assertDecimal(t, "100", got[0].Net)
	assert.Equal(t, 0, got[1].Count)
	assertDecimal(t, "0", got[1].Net)
	assertDecimal(t, "40", got[2].Outflow)
	assertDecimal(t, "-40", got[2].Net)
	assert.Equal(t, at(2025, 3, 3, 0, 0), got[2].Start)
	assert.Equal(t, at(2025, 3, 4, 0, 0), got[2].End)

	total := 0
	for _, b := range got {
		total += b.Count
	}
	assert.Equal(t, 2, total, "records outside the range are excluded")
}

func TestBucketBoundaryBelongsToLaterBucket(t *testing.T) {
	txs := []core.SupplierTransaction{
		supplierTx("s1", core.NewPurchase, "10", at(2025, 3, 2, 0, 0)),
	}
	got := Bucket(txs, BucketOptions{From: at(2025, 3, 1, 0, 0), To: at(2025, 3, 2, 12, 0), Granularity: Day})
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Count)
	assert.Equal(t, 1, got[1].Count)
}

func TestBucketToIsInclusive(t *testing.T) {
	end := at(2025, 3, 31, 23, 59)
	txs := []core.SupplierTransaction{supplierTx("s1", core.NewPurchase, "10", end)}
	got := Bucket(txs, BucketOptions{From: at(2025, 3, 1, 0, 0), To: end, Granularity: Month})
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Count)
}

func TestBucketByMonthAcrossYears(t *testing.T) {
	txs := []core.SupplierTransaction{
		supplierTx("s1", core.NewPurchase, "300", at(2024, 12, 31, 23, 0)),
		supplierTx("s1", core.PayDue, "100", at(2025, 1, 1, 0, 0)),
	}
	got := Bucket(txs, BucketOptions{
		From:        at(2024, 11, 15, 0, 0),
		To:          at(2025, 2, 3, 0, 0),
		Granularity: Month,
	})

	assert.Equal(t, []string{"2024-11", "2024-12", "2025-01", "2025-02"}, labels(got))
	assertDecimal(t, "300", got[1].Inflow)
	assertDecimal(t, "100", got[2].Outflow)
	assert.Equal(t, time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), got[0].Start)
}

func TestBucketRange(t *testing.T) {
	txs := []core.SupplierTransaction{
		supplierTx("s1", core.NewPurchase, "300", at(2025, 3, 4, 0, 0)),
		supplierTx("s1", core.PayDue, "120", at(2025, 3, 20, 0, 0)),
	}
	got := Bucket(txs, BucketOptions{From: at(2025, 3, 1, 0, 0), To: at(2025, 3, 31, 0, 0), Granularity: Range})
	require.Len(t, got, 1)
	assert.Equal(t, "2025-03-01..2025-03-31", got[0].Label)
	assertDecimal(t, "180", got[0].Net)
	assert.Equal(t, 2, got[0].Count)
}

func TestBucketInvalidWindow(t *testing.T) {
	reversed := Bucket([]core.Spend{}, BucketOptions{From: at(2025, 3, 2, 0, 0), To: at(2025, 3, 1, 0, 0), Granularity: Day})
	assert.NotNil(t, reversed)
	assert.Empty(t, reversed)

	bad := Bucket([]core.Spend{}, BucketOptions{From: at(2025, 3, 1, 0, 0), To: at(2025, 3, 2, 0, 0), Granularity: "week"})
	assert.Empty(t, bad)
}

func TestBucketUsesLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	txs := []core.LoanTransaction{
		loanTx("p1", core.Gives, "100", at(2025, 3, 1, 20, 0)),
	}
	got := Bucket(txs, BucketOptions{
		From:        time.Date(2025, 3, 1, 0, 0, 0, 0, ist),
		To:          time.Date(2025, 3, 2, 23, 0, 0, 0, ist),
		Granularity: Day,
		Location:    ist,
	})
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Count)
	assert.Equal(t, 1, got[1].Count)
}

func TestBucketSpendsByCalendarDate(t *testing.T) {
	spends := []core.Spend{
		spend("Food", "80", core.NewDate(2025, 3, 1)),
		spend("Rent", "500", core.NewDate(2025, 3, 2)),
	}
	got := Bucket(spends, BucketOptions{
		From:        at(2025, 3, 1, 12, 0),
		To:          at(2025, 3, 2, 8, 0),
		Granularity: Day,
		Location:    time.FixedZone("PST", -8*3600),
	})
	require.Len(t, got, 2)
	assertDecimal(t, "80", got[0].Outflow)
	assertDecimal(t, "500", got[1].Outflow)
	assertDecimal(t, "0", got[1].Inflow)
}

func TestBucketNetMatchesSignedSum(t *testing.T) {
	txs := []core.SupplierTransaction{
		supplierTx("s1", core.NewPurchase, "12.34", at(2025, 1, 3, 0, 0)),
		supplierTx("s1", core.NewPurchase, "100", at(2025, 2, 14, 0, 0)),
		supplierTx("s1", core.SettleBill, "50.05", at(2025, 2, 20, 0, 0)),
		supplierTx("s1", "UNKNOWN", "70", at(2025, 2, 20, 0, 0)),
	}
	got := Bucket(txs, BucketOptions{From: at(2025, 1, 1, 0, 0), To: at(2025, 3, 31, 0, 0), Granularity: Month})

	net := decimal.Zero
	for _, b := range got {
		net = net.Add(b.Net)
	}
	assert.True(t, net.Equal(SupplierBalance(txs)))
}
