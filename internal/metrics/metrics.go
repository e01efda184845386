// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "khata"

// RecordsSkipped counts records left out of aggregation, by record type and
// reason (validation, decode).
var RecordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "records_skipped_total",
	Help:      "Records skipped during aggregation because they were malformed.",
}, []string{"type", "reason"})

var RecordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "writes_total",
	Help:      "Record writes by kind and operation.",
}, []string{"kind", "op"})

var ReportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "report",
	Name:      "duration_seconds",
	Help:      "Time spent loading a snapshot and computing a report.",
	Buckets:   prometheus.DefBuckets,
}, []string{"report"})

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by route pattern, method and status code.",
}, []string{"route", "method", "status"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route pattern.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route", "method"})

var ChangeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "events",
	Name:      "record_changes_total",
	Help:      "record.changed messages by direction (published, consumed) and result.",
}, []string{"direction", "result"})

var CrossCheckMismatches = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reconciler",
	Name:      "crosscheck_mismatches_total",
	Help:      "Entities whose balance disagreed with the net of their period buckets.",
})

var ParserRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "parser",
	Name:      "requests_total",
	Help:      "Expense parse requests by parser and result (ok, error, fallback, cache_hit).",
}, []string{"parser", "result"})

// SummaryCoalesced counts summary requests served by an in-flight call.
var SummaryCoalesced = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "summary_coalesced_total",
	Help:      "Summary requests that shared the result of a concurrent identical request.",
})

var RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Requests rejected by the per-client rate limiter.",
}, []string{"route"})

// RateLimitClients is the number of clients the rate limiter tracked after
// its last sweep.
var RateLimitClients = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "rate_limit_clients",
	Help:      "Clients tracked by the rate limiter after the last idle sweep.",
})
