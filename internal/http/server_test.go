package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khata/internal/config"
	"khata/internal/core"
	"khata/internal/log"
	"khata/internal/parser"
	"khata/internal/records/memory"
	"khata/internal/services"
)

func newTestServer(t *testing.T, opts Options) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New(nil)
	deps := Deps{
		Ledger:  services.NewLedgerService(store, nil),
		Reports: services.NewReportService(store, config.DefaultReportPolicy()),
		Records: store,
		Prefs:   store,
		Parser:  parser.NewFallbackParser("rules", nil, parser.NewRuleParser(nil, nil), 0),
	}
	opts.Logger = log.New(log.Config{Output: io.Discard})
	s := NewServer(deps, opts)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, store
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createCounterparty(t *testing.T, s *Server, name, kind string) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/owners/o1/counterparties",
		`{"name":"`+name+`","kind":"`+kind+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]any](t, rec)["id"].(string)
}

func TestHealthAndReadiness(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/readyz", "").Code)

	s.deps.Ready = func(context.Context) error { return errors.New("broker down") }
	rec := do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"not ready"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	do(t, s, http.MethodGet, "/healthz", "")
	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "khata_http_requests_total")
}

func TestSupplierFlowAndBalances(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	sup := createCounterparty(t, s, "Ramesh Traders", "supplier")

	rec := do(t, s, http.MethodPost, "/api/v1/owners/o1/supplier-transactions",
		`{"counterparty_id":"`+sup+`","kind":"NEW_PURCHASE","amount":"2500.50","due_date":"2099-01-31"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, s, http.MethodPost, "/api/v1/owners/o1/supplier-transactions",
		`{"counterparty_id":"`+sup+`","kind":"PAY_DUE","amount":"500.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/v1/owners/o1/entities/"+sup+"/balance", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decode[struct {
		Name    string          `json:"name"`
		Balance decimal.Decimal `json:"balance"`
	}](t, rec)
	assert.Equal(t, "Ramesh Traders", b.Name)
	assert.True(t, decimal.NewFromInt(2000).Equal(b.Balance), b.Balance.String())

	rec = do(t, s, http.MethodGet, "/api/v1/owners/o1/suppliers/outstanding", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[struct {
		Outstanding []struct {
			EntityID string `json:"entity_id"`
			Tier     string `json:"tier"`
		} `json:"outstanding"`
	}](t, rec)
	require.Len(t, out.Outstanding, 1)
	assert.Equal(t, sup, out.Outstanding[0].EntityID)
	assert.Equal(t, "medium", out.Outstanding[0].Tier)

	rec = do(t, s, http.MethodGet, "/api/v1/owners/o1/suppliers/outstanding?sign=negative", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"outstanding":[]}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/v1/owners/o1/crosscheck", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"consistent":true`)
}

func TestLoanToSupplierIsRejected(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	sup := createCounterparty(t, s, "Ramesh Traders", "supplier")

	rec := do(t, s, http.MethodPost, "/api/v1/owners/o1/loan-transactions",
		`{"person_id":"`+sup+`","kind":"GIVES","amount":"100"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/v1/owners/o1/loan-transactions",
		`{"person_id":"nobody","kind":"GIVES","amount":"100"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestCreateValidation(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed json", "/api/v1/owners/o1/spends", `{"title":`},
		{"unknown field", "/api/v1/owners/o1/spends", `{"title":"x","amount":"5","colour":"red"}`},
		{"missing amount", "/api/v1/owners/o1/spends", `{"title":"x"}`},
		{"negative amount", "/api/v1/owners/o1/spends", `{"title":"x","amount":"-5"}`},
		{"bad date", "/api/v1/owners/o1/spends", `{"title":"x","amount":"5","date":"31/01/2025"}`},
		{"bad counterparty kind", "/api/v1/owners/o1/counterparties", `{"name":"x","kind":"bank"}`},
		{"empty parse text", "/api/v1/owners/o1/spends/parse", `{"text":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestSpendsSummaryAndLastCategory(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/api/v1/owners/o1/spends",
		`{"title":"Groceries","category":"Food","amount":"300","date":"2024-01-10"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Blank category reuses the last one.
	rec = do(t, s, http.MethodPost, "/api/v1/owners/o1/spends",
		`{"title":"Chai","amount":"20.50","date":"2024-01-11"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Food", decode[map[string]any](t, rec)["category"])

	rec = do(t, s, http.MethodGet, "/api/v1/owners/o1/preferences/last_category", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"last_category","value":"Food"}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/v1/owners/o1/summary", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decode[struct {
		AllTime decimal.Decimal `json:"all_time_total"`
		Average decimal.Decimal `json:"monthly_average"`
	}](t, rec)
	assert.True(t, decimal.RequireFromString("320.50").Equal(sum.AllTime), sum.AllTime.String())
	assert.True(t, decimal.RequireFromString("320.50").Div(decimal.NewFromInt(6)).Equal(sum.Average))

	rec = do(t, s, http.MethodGet, "/api/v1/owners/o1/spends?from=2024-01-11&to=2024-01-11", "")
	require.Equal(t, http.StatusOK, rec.Code)
	spends := decode[map[string][]map[string]any](t, rec)["spends"]
	require.Len(t, spends, 1)
	assert.Equal(t, "Chai", spends[0]["title"])
}

func TestPeriodsAndBreakdown(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	for _, body := range []string{
		`{"title":"Rent","category":"Rent","amount":"200","date":"2024-02-01"}`,
		`{"title":"Bus","category":"Transport","amount":"100","date":"2024-02-15"}`,
		`{"title":"Rent","category":"Rent","amount":"200","date":"2024-03-01"}`,
	} {
		require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/v1/owners/o1/spends", body).Code)
	}

	rec := do(t, s, http.MethodGet, "/api/v1/owners/o1/periods?source=spends&from=2024-02-01&to=2024-03-31&granularity=month", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	periods := decode[struct {
		Buckets []struct {
			Outflow decimal.Decimal `json:"outflow"`
			Count   int             `json:"count"`
		} `json:"buckets"`
	}](t, rec)
	require.Len(t, periods.Buckets, 2)
	assert.True(t, decimal.NewFromInt(300).Equal(periods.Buckets[0].Outflow))
	assert.Equal(t, 1, periods.Buckets[1].Count)

	rec = do(t, s, http.MethodGet, "/api/v1/owners/o1/categories/breakdown?from=2024-02-01&to=2024-02-29", "")
	require.Equal(t, http.StatusOK, rec.Code)
	shares := decode[struct {
		Categories []struct {
			Category   string          `json:"category"`
			Percentage decimal.Decimal `json:"percentage"`
		} `json:"categories"`
	}](t, rec)
	require.Len(t, shares.Categories, 2)
	assert.Equal(t, "Rent", shares.Categories[0].Category)
	assert.Equal(t, "66.67", shares.Categories[0].Percentage.StringFixed(2))

	for _, q := range []string{
		"source=cash",
		"granularity=week",
		"from=2024-03-01&to=2024-02-01",
		"from=yesterday",
	} {
		rec := do(t, s, http.MethodGet, "/api/v1/owners/o1/periods?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/v1/owners/o1/trend?months=1", "").Code)
}

func TestUpdateAndDeleteRecord(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := do(t, s, http.MethodPost, "/api/v1/owners/o1/spends",
		`{"title":"Lunch","category":"Food","amount":"120","date":"2024-01-10"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[map[string]any](t, rec)["id"].(string)

	path := "/api/v1/owners/o1/records/spend/" + id
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPatch, path, `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPatch, path, `{"amount":"0"}`).Code)
	require.Equal(t, http.StatusNoContent, do(t, s, http.MethodPatch, path, `{"amount":"150"}`).Code)

	rec = do(t, s, http.MethodGet, "/api/v1/owners/o1/spends", "")
	assert.Equal(t, "150", decode[map[string][]map[string]any](t, rec)["spends"][0]["amount"])

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodDelete, "/api/v1/owners/o1/records/invoice/"+id, "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, path, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodDelete, path, "").Code)
}

func TestParseSpend(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := do(t, s, http.MethodPost, "/api/v1/owners/o1/spends/parse", `{"text":"chai 40"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[parser.Result](t, rec)
	assert.Equal(t, "Food", res.Category)
	require.NotNil(t, res.Amount)
	assert.True(t, decimal.NewFromInt(40).Equal(*res.Amount))
}

func TestWriteRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Options{RateLimit: 2})
	for i := 0; i < 2; i++ {
		rec := do(t, s, http.MethodPost, "/api/v1/owners/o1/counterparties", `{"name":"A","kind":"person"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := do(t, s, http.MethodPost, "/api/v1/owners/o1/counterparties", `{"name":"A","kind":"person"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Reads are never limited.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/v1/owners/o1/counterparties", "").Code)
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/api/v1/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(services.ErrInvalidPeriod))
	assert.Equal(t, http.StatusNotFound, statusFor(services.ErrCounterpartyNotFound))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusBadGateway, statusFor(errors.New("disk on fire")))
}

// ctxReader fails snapshots once the caller's context is done.
type ctxReader struct {
	*memory.Store
}

func (c ctxReader) Snapshot(ctx context.Context, ownerID string) (core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.Snapshot{}, err
	}
	return c.Store.Snapshot(ctx, ownerID)
}

func TestSummarySurvivesCallerCancellation(t *testing.T) {
	s, store := newTestServer(t, Options{})
	s.deps.Reports = services.NewReportService(ctxReader{store}, config.DefaultReportPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/owners/o1/summary", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "o1", decode[map[string]any](t, rec)["owner_id"])
}
