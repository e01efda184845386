package services

import (
	"context"
	"time"

	"khata/internal/core"
	"khata/internal/report"
)

// DueStatus places a supplier due date relative to today.
type DueStatus string

const (
	DueOverdue DueStatus = "overdue"
	DueToday   DueStatus = "due_today"
	DueSoon    DueStatus = "due_soon"
	DueLater   DueStatus = "later"
)

// DuenessChecker decides how urgent a due date is.
type DuenessChecker interface {
	Status(due, today core.Date) DueStatus
}

// WindowChecker reports due_soon for dates at most SoonDays after today.
type WindowChecker struct {
	SoonDays int
}

func (w WindowChecker) Status(due, today core.Date) DueStatus {
	days := daysBetween(today, due)
	switch {
	case days < 0:
		return DueOverdue
	case days == 0:
		return DueToday
	case days <= w.SoonDays:
		return DueSoon
	default:
		return DueLater
	}
}

// DefaultDuenessChecker flags dues within a week.
var DefaultDuenessChecker DuenessChecker = WindowChecker{SoonDays: 7}

// Due is an outstanding supplier balance with an approaching due date.
type Due struct {
	report.Outstanding
	Status   DueStatus `json:"status"`
	DaysLeft int       `json:"days_left"`
}

// Dues lists suppliers the owner still owes whose earliest unsettled due
// date is overdue, today or soon, earliest first.
func (s *ReportService) Dues(ctx context.Context, ownerID string, checker DuenessChecker) ([]Due, error) {
	defer s.observe("dues", time.Now())
	if checker == nil {
		checker = DefaultDuenessChecker
	}
	ranked, err := s.Outstanding(ctx, ownerID, core.Supplier, report.Policy{
		Sign:       report.SignPositive,
		Thresholds: s.policy.RankPolicy().Thresholds,
	})
	if err != nil {
		return nil, err
	}

	today := core.DateOf(s.now().In(s.loc))
	out := []Due{}
	for _, o := range ranked {
		if o.DueDate == nil {
			continue
		}
		st := checker.Status(*o.DueDate, today)
		if st == DueLater {
			continue
		}
		out = append(out, Due{Outstanding: o, Status: st, DaysLeft: daysBetween(today, *o.DueDate)})
	}
	return out, nil
}

func daysBetween(from, to core.Date) int {
	return int(to.At(time.UTC).Sub(from.At(time.UTC)).Hours() / 24)
}
