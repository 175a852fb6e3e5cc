package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Duration buckets sized for the wizard. Step submissions answer in
// milliseconds from the in-memory store, while order completion carries the
// checkout backend's simulated latency of roughly 600ms per call, so the
// buckets need resolution both well below and just above that mark.
var wizardDurationBuckets = []float64{0.005, 0.025, 0.1, 0.3, 0.6, 0.9, 1.5, 3, 5}

var (
	wizardRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkout_wizard",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route, and status",
		},
		[]string{"method", "route", "status"},
	)

	wizardRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "checkout_wizard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   wizardDurationBuckets,
		},
		[]string{"method", "route", "status"},
	)

	wizardRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "checkout_wizard",
			Name:      "http_requests_in_flight",
			Help:      "Requests currently being served",
		},
	)
)

// statusRecorder captures the response status for the metric labels.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// PrometheusMetrics records request counts, durations, and in-flight load.
// Requests are labelled by the chi route pattern rather than the raw path,
// so per-session URLs do not blow up label cardinality.
func PrometheusMetrics() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wizardRequestsInFlight.Inc()
			defer wizardRequestsInFlight.Dec()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unknown"
			}
			status := strconv.Itoa(rec.status)

			wizardRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			wizardRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		})
	}
}
