package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"khata/internal/core"
	"khata/internal/log"
	"khata/internal/parser"
	"khata/internal/records"
	"khata/internal/services"
)

const maxBodyBytes = 64 << 10

// errBadRequest marks malformed query parameters and bodies.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors onto HTTP statuses. Anything unrecognised is
// treated as a failure of the backing store.
func statusFor(err error) int {
	switch {
	case errors.Is(err, records.ErrNotFound),
		errors.Is(err, services.ErrCounterpartyNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, services.ErrInvalidPeriod),
		errors.Is(err, services.ErrZeroAmount),
		errors.Is(err, services.ErrCounterpartyKind),
		errors.Is(err, parser.ErrEmptyInput),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrNegativeAmount),
		errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrUnknownKind),
		errors.Is(err, core.ErrEmptyOwner),
		errors.Is(err, core.ErrEmptyCounterparty),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrCounterpartyKindBad):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// fail writes err as a JSON error. Store failures are logged and their
// detail withheld from the client.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithRecord(chi.URLParam(r, "owner"), "", ""))
		writeError(w, status, http.StatusText(status))
		return
	}
	writeError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func owner(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "owner"))
}

// parseAmountField parses a request amount given as a decimal string.
func parseAmountField(name, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, badRequest("%s is required", name)
	}
	d, err := core.ParseAmount(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// parseTimeParam accepts a civil date or an RFC 3339 instant. A bare date
// used as an upper bound means the end of that day.
func parseTimeParam(r *http.Request, name string, loc *time.Location, endOfDay bool) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return time.Time{}, nil
	}
	if d, err := core.ParseDate(v); err == nil {
		t := d.At(loc)
		if endOfDay {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, badRequest("%s must be YYYY-MM-DD or RFC 3339, got %q", name, v)
	}
	return t, nil
}

func parseIntParam(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("%s must be a non-negative integer, got %q", name, v)
	}
	return n, nil
}

func parseBoolParam(r *http.Request, name string, def bool) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest("%s must be true or false, got %q", name, v)
	}
	return b, nil
}

// listFilter reads entity, from and to for record listings.
func listFilter(r *http.Request, loc *time.Location) (records.Filter, error) {
	from, err := parseTimeParam(r, "from", loc, false)
	if err != nil {
		return records.Filter{}, err
	}
	to, err := parseTimeParam(r, "to", loc, true)
	if err != nil {
		return records.Filter{}, err
	}
	return records.Filter{
		EntityID: strings.TrimSpace(r.URL.Query().Get("entity")),
		From:     from,
		To:       to,
	}, nil
}
