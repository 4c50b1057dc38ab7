package router

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-election/internal/audit"
	"github.com/ovaphlow/pitchfork/service-election/internal/election"
	"github.com/ovaphlow/pitchfork/service-election/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-election/internal/region"
	"github.com/ovaphlow/pitchfork/service-election/internal/session"
	"github.com/ovaphlow/pitchfork/service-election/internal/user"
	"github.com/ovaphlow/pitchfork/service-election/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-election/internal/web"
	"github.com/ovaphlow/pitchfork/service-election/pkg/utilities"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// RequestIDHeader carries the per-request id back to the client.
const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
// Each request gets a ksuid request id, echoed in the response headers.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := utilities.NewKSUID()
			w.Header().Set(RequestIDHeader, reqID)
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Clickjacking protection
			w.Header().Set("X-Frame-Options", "DENY")

			w.Header().Set("Referrer-Policy", "same-origin")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// Pages, stylesheet and form posts are all same-origin.
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self'; form-action 'self'; frame-ancestors 'none';")
			}

			// Authenticated pages must not be cached by shared proxies.
			w.Header().Set("Cache-Control", "no-store")

			// HSTS only over TLS, 30 days.
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Sessions *session.Manager
	Users    *user.Handler
	Voter    *election.VoterHandler
	Admin    *election.AdminHandler
	Audit    *audit.Handler
	Regions  *region.Handler
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, h Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /static/", web.Static())

	voter := func(fn http.HandlerFunc) http.HandlerFunc { return session.Require(entity.CapabilityVoter, fn) }
	admin := func(fn http.HandlerFunc) http.HandlerFunc { return session.Require(entity.CapabilityAdmin, fn) }

	// auth
	mux.HandleFunc("GET /{$}", h.Users.Index)
	mux.HandleFunc("GET /login", h.Users.LoginForm)
	mux.HandleFunc("POST /login", h.Users.Login)
	mux.HandleFunc("POST /logout", session.RequireSession(h.Users.Logout))
	mux.HandleFunc("GET /profile", session.RequireSession(h.Users.Profile))

	// voter
	mux.HandleFunc("GET /voter/dashboard", voter(h.Voter.Dashboard))
	mux.HandleFunc("GET /voter/election/{id}/candidates", voter(h.Voter.Candidates))
	mux.HandleFunc("POST /voter/vote", voter(h.Voter.Vote))
	mux.HandleFunc("GET /voter/vote/success", voter(h.Voter.Success))
	mux.HandleFunc("GET /voter/history", voter(h.Voter.History))

	// admin
	mux.HandleFunc("GET /admin/dashboard", admin(h.Admin.Dashboard))
	mux.HandleFunc("GET /admin/elections", admin(h.Admin.Elections))
	mux.HandleFunc("GET /admin/elections/create", admin(h.Admin.NewElection))
	mux.HandleFunc("POST /admin/elections/create", admin(h.Admin.CreateElection))
	mux.HandleFunc("GET /admin/elections/{id}/edit", admin(h.Admin.EditElection))
	mux.HandleFunc("POST /admin/elections/{id}/edit", admin(h.Admin.UpdateElection))
	mux.HandleFunc("GET /admin/candidates", admin(h.Admin.Candidates))
	mux.HandleFunc("GET /admin/candidates/create", admin(h.Admin.NewCandidate))
	mux.HandleFunc("POST /admin/candidates/create", admin(h.Admin.CreateCandidate))
	mux.HandleFunc("POST /admin/candidates/{id}/approve", admin(h.Admin.Approve))
	mux.HandleFunc("POST /admin/candidates/{id}/reject", admin(h.Admin.Reject))
	mux.HandleFunc("GET /admin/results", admin(h.Admin.ResultsIndex))
	mux.HandleFunc("GET /admin/results/{id}", admin(h.Admin.ElectionResults))
	mux.HandleFunc("GET /admin/users", admin(h.Users.ListUsers))
	mux.HandleFunc("GET /admin/users/create", admin(h.Users.NewUserForm))
	mux.HandleFunc("POST /admin/users/create", admin(h.Users.CreateUser))
	mux.HandleFunc("POST /admin/voters/{id}/region", admin(h.Users.AssignRegion))
	mux.HandleFunc("POST /admin/voters/{id}/eligibility", admin(h.Users.SetEligibility))
	mux.HandleFunc("GET /admin/audit", admin(h.Audit.List))
	mux.HandleFunc("GET /admin/regions", admin(h.Regions.List))

	// metrics sits inside Authenticate so it sees the request the mux annotates with its pattern
	handler := LoggingMiddleware(logger)(SecurityHeadersMiddleware()(h.Sessions.Authenticate(metrics.Middleware(mux))))
	return handler
}
