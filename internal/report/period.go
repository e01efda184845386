package report

import (
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/core"
)

// Granularity is the width of a period bucket.
type Granularity string

const (
	Day   Granularity = "day"
	Month Granularity = "month"
	// Range puts the whole [From, To] window in a single bucket.
	Range Granularity = "range"
)

// Valid reports whether g is a supported granularity.
func (g Granularity) Valid() bool {
	return g == Day || g == Month || g == Range
}

const (
	dayLabel   = "2006-01-02"
	monthLabel = "2006-01"
)

// BucketOptions selects the reporting window. From and To are both
// inclusive; each bucket is half-open [Start, End).
type BucketOptions struct {
	From        time.Time
	To          time.Time
	Granularity Granularity
	// Location defines calendar boundaries. Nil means UTC.
	Location *time.Location
}

// PeriodBucket holds the totals of one calendar window. Inflow sums the
// positive signed amounts, Outflow the magnitudes of the negative ones.
type PeriodBucket struct {
	Label   string          `json:"label"`
	Start   time.Time       `json:"start"`
	End     time.Time       `json:"end"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
	Net     decimal.Decimal `json:"net"`
	Count   int             `json:"count"`
}

// Bucket sums entries into consecutive calendar windows covering
// [From, To]. Windows without activity are still emitted with zero totals.
// Entries outside the window, and entries the sign rule rejects, are skipped.
func Bucket[E core.Entry](entries []E, opts BucketOptions) []PeriodBucket {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	from, to := opts.From.In(loc), opts.To.In(loc)
	if to.Before(from) || !opts.Granularity.Valid() {
		return []PeriodBucket{}
	}

	buckets := layoutBuckets(from, to, opts.Granularity)
	index := make(map[string]int, len(buckets))
	for i, b := range buckets {
		index[b.Label] = i
	}

	fromDay := truncate(from, Day)
	for _, e := range entries {
		t, dated := localTime(e, loc)
		lower := from
		if dated {
			lower = fromDay
		}
		if t.Before(lower) || t.After(to) {
			continue
		}
		v, ok := e.Signed()
		if !ok {
			continue
		}
		i, found := index[bucketLabel(t, from, to, opts.Granularity)]
		if !found {
			continue
		}
		b := &buckets[i]
		if v.IsNegative() {
			b.Outflow = b.Outflow.Add(v.Neg())
		} else {
			b.Inflow = b.Inflow.Add(v)
		}
		b.Count++
	}

	for i := range buckets {
		buckets[i].Net = buckets[i].Inflow.Sub(buckets[i].Outflow)
	}
	return buckets
}

func layoutBuckets(from, to time.Time, g Granularity) []PeriodBucket {
	if g == Range {
		return []PeriodBucket{newBucket(bucketLabel(from, from, to, g), from, to)}
	}
	var out []PeriodBucket
	for start := truncate(from, g); !start.After(to); start = next(start, g) {
		out = append(out, newBucket(bucketLabel(start, from, to, g), start, next(start, g)))
	}
	return out
}

func newBucket(label string, start, end time.Time) PeriodBucket {
	return PeriodBucket{
		Label:   label,
		Start:   start,
		End:     end,
		Inflow:  decimal.Zero,
		Outflow: decimal.Zero,
		Net:     decimal.Zero,
	}
}

func bucketLabel(t, from, to time.Time, g Granularity) string {
	switch g {
	case Month:
		return t.Format(monthLabel)
	case Range:
		return from.Format(dayLabel) + ".." + to.Format(dayLabel)
	default:
		return t.Format(dayLabel)
	}
}

func truncate(t time.Time, g Granularity) time.Time {
	if g == Month {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func next(t time.Time, g Granularity) time.Time {
	if g == Month {
		return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
	}
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}

// localTime places an entry on the report's calendar. Dated entries keep
// their calendar date regardless of the location's offset, and count for
// the whole of that day.
func localTime[E core.Entry](e E, loc *time.Location) (time.Time, bool) {
	if d, ok := any(e).(core.Dated); ok {
		return d.CivilDate().At(loc), true
	}
	return e.OccurredAt().In(loc), false
}
