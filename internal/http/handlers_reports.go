package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"khata/internal/core"
	"khata/internal/log"
	"khata/internal/metrics"
	"khata/internal/report"
	"khata/internal/services"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ownerID := owner(r)
	v, err, shared := s.summaries.Do(ownerID, func() (any, error) {
		// Waiters share this call, so one client leaving must not cancel it.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.timeout)
		defer cancel()
		return s.deps.Reports.Summary(ctx, ownerID)
	})
	if shared {
		metrics.SummaryCoalesced.Inc()
	}
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	sum := v.(report.Summary)
	sum.TopCategories = report.Rounded(sum.TopCategories)
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleBalances(kind core.CounterpartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		balances, err := s.deps.Reports.Balances(r.Context(), owner(r), kind)
		if err != nil {
			fail(w, r, log.OpRead, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"balances": balances})
	}
}

// handleOutstanding ranks balances under the configured policy. The sign,
// include_zero and limit query parameters override it per request.
func (s *Server) handleOutstanding(kind core.CounterpartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := s.deps.Reports.Policy().RankPolicy()
		if v := strings.TrimSpace(r.URL.Query().Get("sign")); v != "" {
			switch sign := report.SignFilter(v); sign {
			case report.SignAny, report.SignPositive, report.SignNegative:
				p.Sign = sign
			default:
				writeError(w, http.StatusBadRequest, "sign must be any, positive or negative")
				return
			}
		}
		var err error
		if p.IncludeZero, err = parseBoolParam(r, "include_zero", p.IncludeZero); err != nil {
			fail(w, r, log.OpRead, err)
			return
		}
		if p.Limit, err = parseIntParam(r, "limit", p.Limit); err != nil {
			fail(w, r, log.OpRead, err)
			return
		}

		ranked, err := s.deps.Reports.Outstanding(r.Context(), owner(r), kind, p)
		if err != nil {
			fail(w, r, log.OpRead, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"outstanding": ranked})
	}
}

func (s *Server) handleDues(w http.ResponseWriter, r *http.Request) {
	var checker services.DuenessChecker = services.DefaultDuenessChecker
	if r.URL.Query().Has("within_days") {
		days, err := parseIntParam(r, "within_days", 0)
		if err != nil {
			fail(w, r, log.OpRead, err)
			return
		}
		checker = services.WindowChecker{SoonDays: days}
	}
	dues, err := s.deps.Reports.Dues(r.Context(), owner(r), checker)
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dues": dues})
}

func (s *Server) handleEntityBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Reports.EntityBalance(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	loc := s.deps.Reports.Location()
	from, err := parseTimeParam(r, "from", loc, false)
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	to, err := parseTimeParam(r, "to", loc, true)
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	q := r.URL.Query()
	buckets, err := s.deps.Reports.Periods(r.Context(), owner(r), services.PeriodQuery{
		Source:      services.Source(strings.TrimSpace(q.Get("source"))),
		EntityID:    strings.TrimSpace(q.Get("entity")),
		From:        from,
		To:          to,
		Granularity: report.Granularity(strings.TrimSpace(q.Get("granularity"))),
	})
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"buckets": buckets})
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	loc := s.deps.Reports.Location()
	from, err := parseTimeParam(r, "from", loc, false)
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	to, err := parseTimeParam(r, "to", loc, true)
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	shares, err := s.deps.Reports.Categories(r.Context(), owner(r), from, to)
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": report.Rounded(shares)})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	months, err := parseIntParam(r, "months", 6)
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	points, err := s.deps.Reports.Trend(r.Context(), owner(r), months)
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trend": points})
}

func (s *Server) handleCrossCheck(w http.ResponseWriter, r *http.Request) {
	bad, err := s.deps.Reports.CrossCheck(r.Context(), owner(r))
	if err != nil {
		fail(w, r, log.OpReconcile, err)
		return
	}
	if bad == nil {
		bad = []report.CrossCheckResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"consistent": len(bad) == 0, "mismatches": bad})
}
