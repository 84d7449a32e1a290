// Package dashboard serves the read-only reconciliation dashboard:
// settlement totals, flagged anomalies, the audit chain, and Prometheus
// metrics over the same numbers.
package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the clearsettle dashboard UI.
type Server struct {
	auth   *Auth
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewServer creates a dashboard server with access-code authentication.
func NewServer(cfg *config.Config, st *store.Store, logger *slog.Logger) *Server {
	s := &Server{
		auth:   NewAuth(),
		store:  st,
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

// AccessCode returns the one-time access code displayed in the terminal.
func (s *Server) AccessCode() string {
	return s.auth.AccessCode()
}

// Handler returns the dashboard HTTP handler with auth middleware applied.
func (s *Server) Handler() http.Handler {
	return s.auth.Middleware(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /dashboard/login", s.handleLoginPage)
	s.mux.HandleFunc("POST /dashboard/login", s.handleLoginSubmit)
	s.mux.HandleFunc("GET /dashboard", s.handleOverview)
	s.mux.HandleFunc("GET /dashboard/anomalies", s.handleAnomalies)
	s.mux.HandleFunc("GET /dashboard/audit", s.handleAuditLog)
	s.mux.HandleFunc("GET /api/stats", s.handleAPIStats)
	s.mux.HandleFunc("GET /api/anomalies", s.handleAPIAnomalies)
	s.mux.HandleFunc("GET /api/audit", s.handleAPIAudit)
	s.mux.HandleFunc("GET /api/verify", s.handleAPIVerify)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry(), promhttp.HandlerOpts{}))
}
