// Package http exposes the ledger and its reports as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"khata/internal/core"
	"khata/internal/log"
	"khata/internal/middleware/ratelimit"
	"khata/internal/middleware/security"
	"khata/internal/middleware/trace"
	"khata/internal/parser"
	"khata/internal/records"
	"khata/internal/services"
)

// Deps are the collaborators the handlers call.
type Deps struct {
	Ledger  *services.LedgerService
	Reports *services.ReportService
	Records records.Reader
	Prefs   records.Preferences
	Parser  parser.Parser
	// Ready reports whether backing services are reachable. Nil means
	// always ready.
	Ready func(ctx context.Context) error
}

type Options struct {
	Addr           string
	RequestTimeout time.Duration
	// RateLimit caps write requests per client per minute; 0 disables it.
	RateLimit int
	Logger    *log.Logger
}

type Server struct {
	http.Server
	deps    Deps
	limiter *ratelimit.Limiter
	timeout time.Duration

	// summaries coalesces concurrent summary requests per owner.
	summaries singleflight.Group

	shutdownOnce sync.Once
}

func NewServer(deps Deps, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}

	s := &Server{deps: deps, timeout: opts.RequestTimeout}
	if opts.RateLimit > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimit})
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(trace.Middleware(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/owners/{owner}", func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))
		if s.limiter != nil {
			r.Use(s.limiter.Middleware(nil))
		}

		r.Get("/summary", s.handleSummary)
		r.Get("/periods", s.handlePeriods)
		r.Get("/trend", s.handleTrend)
		r.Get("/crosscheck", s.handleCrossCheck)
		r.Get("/categories", s.handleListCategories)
		r.Get("/categories/breakdown", s.handleCategoryBreakdown)

		r.Get("/suppliers/balances", s.handleBalances(core.Supplier))
		r.Get("/suppliers/outstanding", s.handleOutstanding(core.Supplier))
		r.Get("/suppliers/dues", s.handleDues)
		r.Get("/persons/balances", s.handleBalances(core.Person))
		r.Get("/persons/outstanding", s.handleOutstanding(core.Person))
		r.Get("/entities/{id}/balance", s.handleEntityBalance)

		r.Get("/counterparties", s.handleListCounterparties)
		r.Post("/counterparties", s.handleCreateCounterparty)
		r.Get("/supplier-transactions", s.handleListSupplierTransactions)
		r.Post("/supplier-transactions", s.handleCreateSupplierTransaction)
		r.Get("/loan-transactions", s.handleListLoanTransactions)
		r.Post("/loan-transactions", s.handleCreateLoanTransaction)
		r.Get("/spends", s.handleListSpends)
		r.Post("/spends", s.handleCreateSpend)
		r.Post("/spends/parse", s.handleParseSpend)
		r.Patch("/records/{kind}/{id}", s.handleUpdateRecord)
		r.Delete("/records/{kind}/{id}", s.handleDeleteRecord)

		r.Get("/preferences/{key}", s.handleGetPreference)
		r.Put("/preferences/{key}", s.handleSetPreference)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Shutdown stops the rate limiter sweep and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			log.LogError(r.Context(), "Readiness check failed", err, log.ComponentHTTP, log.OpRead, nil)
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
