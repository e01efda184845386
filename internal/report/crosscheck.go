package report

import (
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/core"
)

// CrossCheckResult compares an entity's balance with the net of its period
// buckets over [first activity, now].
type CrossCheckResult struct {
	EntityID   string          `json:"entity_id"`
	Balance    decimal.Decimal `json:"balance"`
	PeriodNet  decimal.Decimal `json:"period_net"`
	Consistent bool            `json:"consistent"`
}

// CrossCheck verifies that sum(inflow) - sum(outflow) over monthly buckets
// from the entity's first record up to now equals its balance. entries must
// all belong to entityID. Records dated after now make the check fail.
func CrossCheck[E core.Entry](entityID string, entries []E, now time.Time, loc *time.Location) CrossCheckResult {
	if loc == nil {
		loc = time.UTC
	}
	res := CrossCheckResult{
		EntityID:  entityID,
		Balance:   Balance(entries),
		PeriodNet: decimal.Zero,
	}

	var first time.Time
	for _, e := range entries {
		if _, ok := e.Signed(); !ok {
			continue
		}
		t, _ := localTime(e, loc)
		if first.IsZero() || t.Before(first) {
			first = t
		}
	}
	if !first.IsZero() {
		buckets := Bucket(entries, BucketOptions{From: first, To: now, Granularity: Month, Location: loc})
		for _, b := range buckets {
			res.PeriodNet = res.PeriodNet.Add(b.Inflow).Sub(b.Outflow)
		}
	}
	res.Consistent = res.Balance.Equal(res.PeriodNet)
	return res
}

// CrossCheckSnapshot runs CrossCheck for every supplier and person in s and
// returns only the inconsistent results.
func CrossCheckSnapshot(s core.Snapshot, now time.Time, loc *time.Location) []CrossCheckResult {
	var bad []CrossCheckResult
	for _, id := range entityIDs(s.Supplier) {
		if r := CrossCheck(id, EntityEntries(s.Supplier, id), now, loc); !r.Consistent {
			bad = append(bad, r)
		}
	}
	for _, id := range entityIDs(s.Loans) {
		if r := CrossCheck(id, EntityEntries(s.Loans, id), now, loc); !r.Consistent {
			bad = append(bad, r)
		}
	}
	return bad
}

func entityIDs[E core.Entry](entries []E) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, e := range entries {
		id := e.EntityID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
