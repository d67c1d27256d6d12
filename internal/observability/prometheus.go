package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registry is a dedicated Prometheus registry, separate from the default
// global one, so tests can spin up multiple services in one process without
// duplicate-registration panics.
var registry = prometheus.NewRegistry()

// RateLimitDenialsTotal counts rate-limit denials by rule name, scraped
// directly by ops tooling that doesn't speak OTLP (the teacher exports OTEL
// metrics only; this repo additionally exposes the subset ops cares about
// most — denials and dispatch latency — as plain Prometheus).
var RateLimitDenialsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "verify_ratelimit_denials_total",
		Help: "Total rate limit denials, by rule name.",
	},
	[]string{"rule"},
)

// SenderDispatchDuration observes adapter Send/Check latency by adapter name,
// operation, and outcome.
var SenderDispatchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "verify_sender_dispatch_duration_seconds",
		Help:    "Sender adapter dispatch latency, by adapter, operation and outcome.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"adapter", "operation", "outcome"},
)

func init() {
	registry.MustRegister(RateLimitDenialsTotal, SenderDispatchDuration)
}

// PrometheusHandler serves the registered metrics in the Prometheus exposition
// format. Mounted at /metrics alongside the OTLP metrics pipeline.
func PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
