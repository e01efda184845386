package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"khata/internal/config"
	"khata/internal/core"
	"khata/internal/log"
	"khata/internal/metrics"
	"khata/internal/records"
	"khata/internal/report"
)

var ErrInvalidPeriod = errors.New("invalid period")

// Source selects which ledger a period report reads.
type Source string

const (
	SourceSpends   Source = "spends"
	SourceSupplier Source = "supplier"
	SourceLoans    Source = "loans"
)

// PeriodQuery describes a bucketed report. Zero From/To default to the
// current month in the policy location.
type PeriodQuery struct {
	Source      Source
	EntityID    string
	From        time.Time
	To          time.Time
	Granularity report.Granularity
}

// ReportService loads one consistent snapshot per call and runs the report
// engine over it. Records the engine cannot use are logged and counted, then
// dropped before aggregation.
type ReportService struct {
	store  records.Reader
	policy config.ReportPolicy
	loc    *time.Location
	now    func() time.Time
}

func NewReportService(store records.Reader, policy config.ReportPolicy) *ReportService {
	return &ReportService{
		store:  store,
		policy: policy,
		loc:    policy.Loc(),
		now:    time.Now,
	}
}

func (s *ReportService) Policy() config.ReportPolicy { return s.policy }

// Location is where day and month boundaries fall.
func (s *ReportService) Location() *time.Location { return s.loc }

// Snapshot reads the owner's records and drops invalid ones.
func (s *ReportService) Snapshot(ctx context.Context, ownerID string) (core.Snapshot, error) {
	clean, _, err := s.load(ctx, ownerID)
	return clean, err
}

func (s *ReportService) load(ctx context.Context, ownerID string) (core.Snapshot, int, error) {
	raw, err := s.store.Snapshot(ctx, ownerID)
	if err != nil {
		return core.Snapshot{}, 0, fmt.Errorf("load snapshot: %w", err)
	}
	clean, rejected := raw.Partition()
	for _, r := range rejected {
		metrics.RecordsSkipped.WithLabelValues(r.Type, "validation").Inc()
		slog.WarnContext(ctx, "Skipping malformed record",
			log.FieldComponent, log.ComponentReport,
			log.FieldOwnerID, ownerID,
			log.FieldRecordKind, r.Type,
			log.FieldRecordID, r.ID,
			log.FieldError, r.Err)
	}
	return clean, len(rejected), nil
}

func (s *ReportService) Summary(ctx context.Context, ownerID string) (report.Summary, error) {
	defer s.observe("summary", time.Now())
	snap, skipped, err := s.load(ctx, ownerID)
	if err != nil {
		return report.Summary{}, err
	}
	sum := report.Recompute(snap, s.now(), s.policy.SummaryOptions())
	sum.SkippedRecords += skipped
	return sum, nil
}

// Balances lists the balance of every supplier or person with activity.
func (s *ReportService) Balances(ctx context.Context, ownerID string, kind core.CounterpartyKind) ([]report.EntityBalance, error) {
	defer s.observe("balances", time.Now())
	snap, err := s.Snapshot(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return balancesOf(snap, kind)
}

// EntityBalance returns the balance of one counterparty. A counterparty
// without transactions has a zero balance.
func (s *ReportService) EntityBalance(ctx context.Context, ownerID, entityID string) (report.EntityBalance, error) {
	defer s.observe("entity_balance", time.Now())
	snap, err := s.Snapshot(ctx, ownerID)
	if err != nil {
		return report.EntityBalance{}, err
	}
	for _, c := range snap.Counterparties {
		if c.ID != entityID {
			continue
		}
		all, err := balancesOf(snap, c.Kind)
		if err != nil {
			return report.EntityBalance{}, err
		}
		for _, b := range all {
			if b.EntityID == entityID {
				return b, nil
			}
		}
		return report.EntityBalance{EntityID: c.ID, Name: c.Name, Kind: c.Kind}, nil
	}
	return report.EntityBalance{}, fmt.Errorf("counterparty %s: %w", entityID, records.ErrNotFound)
}

// Outstanding ranks balances of one counterparty kind under p.
func (s *ReportService) Outstanding(ctx context.Context, ownerID string, kind core.CounterpartyKind, p report.Policy) ([]report.Outstanding, error) {
	defer s.observe("outstanding", time.Now())
	balances, err := s.Balances(ctx, ownerID, kind)
	if err != nil {
		return nil, err
	}
	return report.Rank(balances, p), nil
}

// Periods buckets one ledger, optionally narrowed to one counterparty or
// spend category.
func (s *ReportService) Periods(ctx context.Context, ownerID string, q PeriodQuery) ([]report.PeriodBucket, error) {
	defer s.observe("periods", time.Now())
	opts, err := s.bucketOptions(q)
	if err != nil {
		return nil, err
	}
	snap, err := s.Snapshot(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	switch q.Source {
	case SourceSupplier:
		return report.Bucket(narrow(snap.Supplier, q.EntityID), opts), nil
	case SourceLoans:
		return report.Bucket(narrow(snap.Loans, q.EntityID), opts), nil
	case SourceSpends, "":
		return report.Bucket(narrow(snap.Spends, q.EntityID), opts), nil
	default:
		return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidPeriod, q.Source)
	}
}

// Categories breaks down spends dated within [from, to]. Zero bounds are
// open.
func (s *ReportService) Categories(ctx context.Context, ownerID string, from, to time.Time) ([]report.CategoryShare, error) {
	defer s.observe("categories", time.Now())
	snap, err := s.Snapshot(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	var spends []core.Spend
	for _, sp := range snap.Spends {
		day := sp.Date.At(s.loc)
		if !from.IsZero() && day.Before(dayStart(from, s.loc)) {
			continue
		}
		if !to.IsZero() && day.After(to) {
			continue
		}
		spends = append(spends, sp)
	}
	return report.Breakdown(spends), nil
}

// Trend classifies monthly spend totals over the last months months,
// including the current one.
func (s *ReportService) Trend(ctx context.Context, ownerID string, months int) ([]report.TrendPoint, error) {
	defer s.observe("trend", time.Now())
	if months < 2 {
		return nil, fmt.Errorf("%w: trend needs at least 2 months, got %d", ErrInvalidPeriod, months)
	}
	snap, err := s.Snapshot(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := s.now().In(s.loc)
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc).AddDate(0, -(months - 1), 0)
	buckets := report.Bucket(snap.Spends, report.BucketOptions{
		From:        start,
		To:          now,
		Granularity: report.Month,
		Location:    s.loc,
	})
	return report.OutflowSeries(buckets, s.policy.TrendBand), nil
}

// CrossCheck returns the entities whose balance disagrees with the net of
// their monthly buckets.
func (s *ReportService) CrossCheck(ctx context.Context, ownerID string) ([]report.CrossCheckResult, error) {
	defer s.observe("crosscheck", time.Now())
	snap, err := s.Snapshot(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return report.CrossCheckSnapshot(snap, s.now(), s.loc), nil
}

func (s *ReportService) bucketOptions(q PeriodQuery) (report.BucketOptions, error) {
	g := q.Granularity
	if g == "" {
		g = report.Day
	}
	if !g.Valid() {
		return report.BucketOptions{}, fmt.Errorf("%w: unknown granularity %q", ErrInvalidPeriod, g)
	}
	from, to := q.From, q.To
	if from.IsZero() || to.IsZero() {
		now := s.now().In(s.loc)
		if from.IsZero() {
			from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
		}
		if to.IsZero() {
			to = now
		}
	}
	if to.Before(from) {
		return report.BucketOptions{}, fmt.Errorf("%w: to %s is before from %s", ErrInvalidPeriod, to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	if g == report.Day {
		if days := int(to.Sub(from).Hours()/24) + 1; days > s.policy.MaxDayBuckets {
			return report.BucketOptions{}, fmt.Errorf("%w: %d days exceeds the limit of %d", ErrInvalidPeriod, days, s.policy.MaxDayBuckets)
		}
	}
	return report.BucketOptions{From: from, To: to, Granularity: g, Location: s.loc}, nil
}

func (s *ReportService) observe(name string, start time.Time) {
	metrics.ReportDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func balancesOf(snap core.Snapshot, kind core.CounterpartyKind) ([]report.EntityBalance, error) {
	names := snap.Names()
	switch kind {
	case core.Supplier:
		return report.SupplierBalances(snap.Supplier, names), nil
	case core.Person:
		return report.PersonBalances(snap.Loans, names), nil
	default:
		return nil, fmt.Errorf("balances for %q: %w", kind, core.ErrCounterpartyKindBad)
	}
}

func narrow[E core.Entry](entries []E, entityID string) []E {
	if entityID == "" {
		return entries
	}
	return report.EntityEntries(entries, entityID)
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
