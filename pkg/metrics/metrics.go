package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vaultkit"

// Metrics holds all Prometheus collectors of the service.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Billing metrics
	WebhookEventsTotal *prometheus.CounterVec
	CancellationsTotal *prometheus.CounterVec

	// Quota metrics
	QuotaDecisionsTotal *prometheus.CounterVec

	// Tag metrics
	TagAdjustmentsTotal *prometheus.CounterVec
	TagMergesTotal      *prometheus.CounterVec
	TagRecordsRewritten prometheus.Counter
}

// New creates all collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "billing_webhook_events_total",
				Help:      "Billing webhook deliveries by provider, event kind and outcome",
			},
			[]string{"provider", "kind", "outcome"},
		),
		CancellationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "billing_cancellations_total",
				Help:      "Subscription cancellation requests by result",
			},
			[]string{"result"},
		),

		QuotaDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_decisions_total",
				Help:      "Quota consumption attempts by result",
			},
			[]string{"result"},
		),

		TagAdjustmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tag_usage_adjustments_total",
				Help:      "Tag usage counter adjustments by direction and source",
			},
			[]string{"direction", "source"},
		),
		TagMergesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tag_merges_total",
				Help:      "Tag merge requests by result",
			},
			[]string{"result"},
		),
		TagRecordsRewritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tag_merge_records_rewritten_total",
				Help:      "Password records rewritten by tag merges",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WebhookEventsTotal,
		m.CancellationsTotal,
		m.QuotaDecisionsTotal,
		m.TagAdjustmentsTotal,
		m.TagMergesTotal,
		m.TagRecordsRewritten,
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveWebhook counts one processed webhook delivery.
func (m *Metrics) ObserveWebhook(provider, kind, outcome string) {
	m.WebhookEventsTotal.WithLabelValues(provider, kind, outcome).Inc()
}

// ObserveQuota counts one quota decision: "allowed", "rejected" or "error".
func (m *Metrics) ObserveQuota(result string) {
	m.QuotaDecisionsTotal.WithLabelValues(result).Inc()
}

// ObserveTagChange counts the increments and decrements of one tag-set change.
func (m *Metrics) ObserveTagChange(source string, added, removed int) {
	if added > 0 {
		m.TagAdjustmentsTotal.WithLabelValues("increment", source).Add(float64(added))
	}
	if removed > 0 {
		m.TagAdjustmentsTotal.WithLabelValues("decrement", source).Add(float64(removed))
	}
}

// ObserveMerge counts a merge request and the records it rewrote.
func (m *Metrics) ObserveMerge(result string, rewritten int) {
	m.TagMergesTotal.WithLabelValues(result).Inc()
	if rewritten > 0 {
		m.TagRecordsRewritten.Add(float64(rewritten))
	}
}

// ObserveCancellation counts a cancellation request.
func (m *Metrics) ObserveCancellation(result string) {
	m.CancellationsTotal.WithLabelValues(result).Inc()
}

// responseWriter captures the status code written by the wrapped handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
