package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	accessChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "region_access_checks_total",
			Help: "Total number of region access checks",
		},
		[]string{"decision"},
	)

	grantsIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "temporary_grants_issued_total",
			Help: "Total number of temporary grants issued",
		},
	)

	grantsRevokedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "temporary_grants_revoked_total",
			Help: "Total number of temporary grants revoked",
		},
	)

	grantsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "temporary_grants_expired_total",
			Help: "Total number of temporary grants marked expired by the sweep",
		},
	)

	requestsReviewedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_requests_reviewed_total",
			Help: "Total number of access request dispositions",
		},
		[]string{"disposition"},
	)

	auditEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_entries_total",
			Help: "Total number of audit entries recorded",
		},
	)

	auditEntriesEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_entries_evicted_total",
			Help: "Total number of audit entries evicted by the size cap",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordAccessCheck records an access check outcome ("granted" or "denied").
func RecordAccessCheck(decision string) {
	accessChecksTotal.WithLabelValues(decision).Inc()
}

// RecordGrantIssued records a temporary grant creation
func RecordGrantIssued() {
	grantsIssuedTotal.Inc()
}

// RecordGrantRevoked records a temporary grant revocation
func RecordGrantRevoked() {
	grantsRevokedTotal.Inc()
}

// RecordGrantsExpired records grants flipped inactive by the sweep
func RecordGrantsExpired(n int) {
	grantsExpiredTotal.Add(float64(n))
}

// RecordRequestReviewed records an access request disposition
func RecordRequestReviewed(disposition string) {
	requestsReviewedTotal.WithLabelValues(disposition).Inc()
}

// RecordAuditEntry records an audit entry creation
func RecordAuditEntry() {
	auditEntriesTotal.Inc()
}

// RecordAuditEviction records audit entries dropped by the size cap
func RecordAuditEviction(n int) {
	auditEntriesEvicted.Add(float64(n))
}
