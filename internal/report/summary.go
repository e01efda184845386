package report

import (
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/core"
)

// MonthlyAverageWindow is the fixed number of months the all-time spend
// total is divided by. It does not adapt to how many months had activity.
const MonthlyAverageWindow = 6

// SummaryOptions tunes Recompute. The zero value uses UTC, the default
// trend band and MonthlyAverageWindow. A non-nil TrendBand is used as
// given, so a zero band compares totals exactly.
type SummaryOptions struct {
	Location      *time.Location
	AverageWindow int
	TrendBand     *decimal.Decimal
	TopCategories int
}

// DefaultSummaryOptions returns the documented defaults.
func DefaultSummaryOptions() SummaryOptions {
	band := DefaultTrendBand()
	return SummaryOptions{
		Location:      time.UTC,
		AverageWindow: MonthlyAverageWindow,
		TrendBand:     &band,
		TopCategories: 5,
	}
}

// Summary is the dashboard view of an owner's records at a point in time.
type Summary struct {
	OwnerID            string          `json:"owner_id"`
	AsOf               time.Time       `json:"as_of"`
	TodayTotal         decimal.Decimal `json:"today_total"`
	MonthTotal         decimal.Decimal `json:"month_total"`
	PreviousMonthTotal decimal.Decimal `json:"previous_month_total"`
	MonthTrend         Trend           `json:"month_trend"`
	AllTimeTotal       decimal.Decimal `json:"all_time_total"`
	MonthlyAverage     decimal.Decimal `json:"monthly_average"`
	// PartiesOwed counts counterparties the owner owes money to.
	PartiesOwed int `json:"parties_owed"`
	// PartiesOwing counts counterparties that owe the owner money.
	PartiesOwing   int             `json:"parties_owing"`
	TotalOwed      decimal.Decimal `json:"total_owed"`
	TotalOwing     decimal.Decimal `json:"total_owing"`
	TopCategories  []CategoryShare `json:"top_categories"`
	SkippedRecords int             `json:"skipped_records"`
}

// Recompute derives the dashboard summary from a snapshot. It performs no
// I/O and must be called again whenever the caller has fresh records.
func Recompute(s core.Snapshot, now time.Time, opts SummaryOptions) Summary {
	def := DefaultSummaryOptions()
	if opts.Location == nil {
		opts.Location = def.Location
	}
	if opts.AverageWindow == 0 {
		opts.AverageWindow = def.AverageWindow
	}
	if opts.TrendBand == nil {
		opts.TrendBand = def.TrendBand
	}

	local := now.In(opts.Location)
	today := core.DateOf(local)
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, opts.Location)
	prevStart := monthStart.AddDate(0, -1, 0)

	sum := Summary{
		OwnerID:            s.OwnerID,
		AsOf:               now,
		TodayTotal:         decimal.Zero,
		MonthTotal:         decimal.Zero,
		PreviousMonthTotal: decimal.Zero,
		AllTimeTotal:       decimal.Zero,
		MonthlyAverage:     decimal.Zero,
		TotalOwed:          decimal.Zero,
		TotalOwing:         decimal.Zero,
	}

	var monthSpends []core.Spend
	for _, sp := range s.Spends {
		if _, ok := sp.Signed(); !ok {
			sum.SkippedRecords++
			continue
		}
		sum.AllTimeTotal = sum.AllTimeTotal.Add(sp.Amount)
		switch {
		case sameMonth(sp.Date, monthStart):
			sum.MonthTotal = sum.MonthTotal.Add(sp.Amount)
			monthSpends = append(monthSpends, sp)
			if sp.Date.Day() == today.Day() {
				sum.TodayTotal = sum.TodayTotal.Add(sp.Amount)
			}
		case sameMonth(sp.Date, prevStart):
			sum.PreviousMonthTotal = sum.PreviousMonthTotal.Add(sp.Amount)
		}
	}
	sum.MonthTrend = ClassifyWithBand(sum.MonthTotal, sum.PreviousMonthTotal, *opts.TrendBand)
	if opts.AverageWindow > 0 {
		sum.MonthlyAverage = sum.AllTimeTotal.Div(decimal.NewFromInt(int64(opts.AverageWindow)))
	}
	sum.TopCategories = TopCategories(Breakdown(monthSpends), opts.TopCategories)

	names := s.Names()
	for _, b := range SupplierBalances(s.Supplier, names) {
		switch {
		case b.Balance.IsPositive():
			sum.PartiesOwed++
			sum.TotalOwed = sum.TotalOwed.Add(b.Balance)
		case b.Balance.IsNegative():
			sum.PartiesOwing++
			sum.TotalOwing = sum.TotalOwing.Add(b.Balance.Neg())
		}
	}
	for _, b := range PersonBalances(s.Loans, names) {
		switch {
		case b.Balance.IsPositive():
			sum.PartiesOwing++
			sum.TotalOwing = sum.TotalOwing.Add(b.Balance)
		case b.Balance.IsNegative():
			sum.PartiesOwed++
			sum.TotalOwed = sum.TotalOwed.Add(b.Balance.Neg())
		}
	}
	sum.SkippedRecords += countSkipped(s.Supplier) + countSkipped(s.Loans)
	return sum
}

func sameMonth(d core.Date, monthStart time.Time) bool {
	return d.Year() == monthStart.Year() && d.Month() == int(monthStart.Month())
}

func countSkipped[E core.Entry](entries []E) int {
	n := 0
	for _, e := range entries {
		if _, ok := e.Signed(); !ok {
			n++
		}
	}
	return n
}
