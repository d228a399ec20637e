package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/waveguard-alert-service/internal/domain"
	"github.com/couchcryptid/waveguard-alert-service/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sessions opens and releases viewer sessions.
type Sessions interface {
	OpenLocal(ctx context.Context) *session.LocalSession
	OpenAuthority(ctx context.Context) *session.AuthoritySession
	Release(id string)
}

// TelemetryFeed returns the most recent device reading, if any.
type TelemetryFeed interface {
	Latest() (domain.TelemetryReading, bool)
}

// Deps are the collaborators the HTTP surface is wired to.
type Deps struct {
	Ready     sharedobs.ReadinessChecker
	Sessions  Sessions
	Auth      *domain.Authenticator
	Telemetry TelemetryFeed // nil when the device feed is disabled
}

// Server exposes health, metrics, login, telemetry and the viewer websockets.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	deps       Deps
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
		deps:   deps,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/telemetry", s.handleTelemetry)
	mux.HandleFunc("GET /ws/local", s.handleLocalWS)
	mux.HandleFunc("GET /ws/authority", s.requireAuthority(s.handleAuthorityWS))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
