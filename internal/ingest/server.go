// Package ingest implements the loopback HTTP surface that lets an upstream
// RIS/PACS deliver AI pre-reports and lets the embedded view retrieve,
// locate, and navigate to them.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/airadcr/airadcr-desktop/internal/auth"
	"github.com/airadcr/airadcr-desktop/internal/config"
	"github.com/airadcr/airadcr-desktop/internal/events"
	"github.com/airadcr/airadcr-desktop/internal/hub"
	"github.com/airadcr/airadcr-desktop/internal/metrics"
	"github.com/airadcr/airadcr-desktop/internal/store"
)

func recordMetrics(route, outcome string, d time.Duration) {
	metrics.IngestRequestsTotal.WithLabelValues(route, outcome).Inc()
	metrics.IngestRequestDuration.Observe(d.Seconds())
}

// View is the subset of the embedded-view window the ingestion server needs
// to drive navigation. The Coordinator supplies the concrete implementation
// once the window exists.
type View interface {
	Ready() bool
	Foreground()
}

// Dependencies defines what the ingestion server needs from the rest of the
// application, mirroring the teacher's own Dependencies-struct wiring.
type Dependencies struct {
	Store        *store.Store
	Hub          *hub.Client
	Config       *config.Config
	Nav          *events.NavigationBus
	View         View
	AllowOrigins []string
	Log          *slog.Logger
}

// allowedLocalhostPorts are accepted as CORS origins in addition to
// Dependencies.AllowOrigins.
var allowedLocalhostPorts = []string{"3000", "5173", "8741", "8742", "8743"}

// Server is the loopback HTTP ingestion/retrieval surface.
type Server struct {
	deps    Dependencies
	mux     *http.ServeMux
	server  *http.Server
	limiter *auth.RateLimiter
	admin   *adminKey
	addr    string
}

// NewServer constructs a Server with all routes registered.
func NewServer(deps Dependencies) *Server {
	s := &Server{
		deps:    deps,
		mux:     http.NewServeMux(),
		limiter: auth.Default(),
		admin:   resolveAdminKey(deps.Log),
	}
	s.registerRoutes()
	return s
}

// ListenAndServe tries the configured port, then port+1, then port+2,
// binding the first one available. The bound address is recorded on s.Addr.
func (s *Server) ListenAndServe(basePort int) error {
	var lastErr error
	for offset := 0; offset < 3; offset++ {
		addr := fmt.Sprintf("127.0.0.1:%d", basePort+offset)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		s.addr = addr
		s.server = &http.Server{
			Handler:      s.withMiddleware(s.mux),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  75 * time.Second,
		}
		s.deps.Log.Info("ingestion server listening", "addr", addr)
		return s.server.Serve(ln)
	}
	return fmt.Errorf("ingest: no port available starting at %d: %w", basePort, lastErr)
}

// Addr returns the bound address, empty until ListenAndServe has bound one.
func (s *Server) Addr() string { return s.addr }

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return s.corsMiddleware(s.loggingMiddleware(s.rateLimitMiddleware(next)))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "content-type, authorization, x-api-key, x-admin-key")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.deps.AllowOrigins {
		if origin == allowed {
			return true
		}
	}
	for _, port := range allowedLocalhostPorts {
		if origin == "http://127.0.0.1:"+port || origin == "http://localhost:"+port {
			return true
		}
	}
	return false
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limiter.Allow(ip) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		duration := time.Since(start)

		outcome := outcomeForStatus(rec.status)
		recordMetrics(r.URL.Path, outcome, duration)

		entry := store.AccessLog{
			PeerAddr:   clientIP(r),
			Method:     r.Method,
			Path:       r.URL.Path,
			StatusCode: rec.status,
			Outcome:    outcome,
			KeyPrefix:  auth.Prefix(r.Header.Get("x-api-key")),
			UserAgent:  r.UserAgent(),
			RequestID:  r.Header.Get("x-request-id"),
			DurationMs: duration.Milliseconds(),
		}
		if err := s.deps.Store.AppendAccessLog(entry); err != nil {
			s.deps.Log.Warn("access log append failed", "error", err)
		}
		s.deps.Log.Info("request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration_ms", duration.Milliseconds())
	})
}

func outcomeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return store.OutcomeUnauthorized
	case status == http.StatusNotFound:
		return store.OutcomeNotFound
	case status >= 400 && status < 500:
		return store.OutcomeBadRequest
	case status >= 500:
		return store.OutcomeError
	default:
		return store.OutcomeSuccess
	}
}

// errorBody matches the fixed error response shape documented across every
// route.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message, field string) {
	writeJSON(w, status, errorBody{Error: message, Field: field})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// retryAfterHeader is used when the embedded view is not yet ready to
// receive a navigation event.
func retryAfterHeader(w http.ResponseWriter, seconds int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
}
