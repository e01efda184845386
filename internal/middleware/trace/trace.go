// Package trace records every HTTP request as an access log line and as
// Prometheus samples keyed by chi route pattern.
package trace

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"khata/internal/log"
	"khata/internal/metrics"
)

// unmatched labels requests no route claimed, keeping metric cardinality
// bounded.
const unmatched = "unmatched"

// Middleware puts a request-scoped logger in the context and logs the
// outcome. It must run after chi's RequestID middleware.
func Middleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := log.NewContext(r.Context(), logger.With(log.NewFields().WithRequestID(RequestID(r)).ToSlice()...))
			r = r.WithContext(ctx)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := RoutePattern(r)
			elapsed := time.Since(start)

			metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			metrics.HTTPDuration.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())
			log.LogHTTPEnd(ctx, r, route, status, elapsed.Milliseconds())
		})
	}
}

// RequestID returns the id chi assigned to r, if any.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// RoutePattern returns the matched chi pattern, or "unmatched".
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatched
}
