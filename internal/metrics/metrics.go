// Package metrics holds the Prometheus collectors of the election service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "election_http_requests_total",
			Help: "HTTP requests handled, by route pattern and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "election_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Logins counts login attempts by result (success, not_found, bad_credentials, invalid).
	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "election_logins_total",
			Help: "Login attempts by result.",
		},
		[]string{"result"},
	)

	VotesCast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "election_votes_cast_total",
		Help: "Votes durably recorded.",
	})

	// VoteRejections counts refused vote submissions by rejection reason.
	VoteRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "election_vote_rejections_total",
			Help: "Vote submissions rejected by a business rule.",
		},
		[]string{"reason"},
	)

	AuditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "election_audit_failures_total",
		Help: "Audit log writes that failed and were dropped.",
	})
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Middleware records request count and latency. The route label is the
// matched ServeMux pattern, so path parameters do not blow up cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
