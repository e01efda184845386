package report

import "github.com/shopspring/decimal"

// Trend is the direction of change between two adjacent periods.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// TrendBandPercent is the dead band around the previous total inside which
// a change counts as stable.
const TrendBandPercent = 10

// DefaultTrendBand is TrendBandPercent as a fraction.
func DefaultTrendBand() decimal.Decimal {
	return decimal.New(TrendBandPercent, -2)
}

// Classify compares current with previous using DefaultTrendBand.
func Classify(current, previous decimal.Decimal) Trend {
	return ClassifyWithBand(current, previous, DefaultTrendBand())
}

// ClassifyWithBand reports increasing when current > previous*(1+band),
// decreasing when current < previous*(1-band) and stable otherwise. The
// comparison is multiplicative, so a zero previous never divides.
func ClassifyWithBand(current, previous, band decimal.Decimal) Trend {
	one := decimal.NewFromInt(1)
	switch {
	case current.GreaterThan(previous.Mul(one.Add(band))):
		return TrendIncreasing
	case current.LessThan(previous.Mul(one.Sub(band))):
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// TrendPoint is a labelled total in a trend series.
type TrendPoint struct {
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
	Trend Trend           `json:"trend"`
}

// OutflowSeries turns period buckets into a series of outflow totals, each
// classified against the bucket before it. The first point is stable.
func OutflowSeries(buckets []PeriodBucket, band decimal.Decimal) []TrendPoint {
	out := make([]TrendPoint, 0, len(buckets))
	for i, b := range buckets {
		p := TrendPoint{Label: b.Label, Total: b.Outflow, Trend: TrendStable}
		if i > 0 {
			p.Trend = ClassifyWithBand(b.Outflow, buckets[i-1].Outflow, band)
		}
		out = append(out, p)
	}
	return out
}
