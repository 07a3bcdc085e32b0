package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. Each instance owns its registry so
// tests can build one without touching the global default.
type Metrics struct {
	registry     *prometheus.Registry
	authEvents   *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "Session operations by outcome.",
		}, []string{"op", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		m.authEvents,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) AuthEvent(op, outcome string) {
	m.authEvents.WithLabelValues(op, outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by the matched chi
// route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(recorder.statusCode)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// AuthEventRecorder counts session events and logs the ones that did not
// succeed.
type AuthEventRecorder struct {
	logger  *Logger
	metrics *Metrics
}

func NewAuthEventRecorder(logger *Logger, metrics *Metrics) *AuthEventRecorder {
	return &AuthEventRecorder{logger: logger, metrics: metrics}
}

func (r *AuthEventRecorder) AuthEvent(op, outcome string) {
	if r.metrics != nil {
		r.metrics.AuthEvent(op, outcome)
	}
	if r.logger == nil || outcome == "ok" {
		return
	}

	fields := map[string]any{"op": op, "outcome": outcome}
	if outcome == "error" {
		r.logger.Error("auth_"+op+"_failed", fields)
		return
	}
	r.logger.Warn("auth_"+op+"_rejected", fields)
}
