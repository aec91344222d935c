// Package server assembles the HTTP surface: infra probes, the public API
// under /api and the admin endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/luzparatodos-am/localidades-backend/internal/auth"
	"github.com/luzparatodos-am/localidades-backend/internal/config"
	"github.com/luzparatodos-am/localidades-backend/internal/ingest"
	"github.com/luzparatodos-am/localidades-backend/internal/localidades"
	"github.com/luzparatodos-am/localidades-backend/internal/middleware"
	"github.com/luzparatodos-am/localidades-backend/internal/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Deps are the collaborators the router wires together.
type Deps struct {
	Config     *config.Config
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Ready      ReadinessChecker
	Localities *localidades.API
	Auth       *auth.Handlers
	Sessions   *auth.Store
	Runner     *ingest.Runner
	Clock      clockwork.Clock
	// MetricsHandler serves /metrics; nil uses the default registry.
	MetricsHandler http.Handler
}

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

// NewRouter builds the complete handler tree.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Instrument(d.Metrics))
	r.Use(middleware.CORSMiddleware(d.Config.CORSOrigins))

	metrics := d.MetricsHandler
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Get("/", RootHandler)
	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleReady(d.Ready))
	r.Handle("/metrics", metrics)

	session := middleware.SessionMiddleware(d.Sessions, d.Clock)
	gate := middleware.Passthrough
	if d.Config.AuthRequired {
		gate = session
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.CSRFMiddleware)

		auth.Routes(api, d.Auth)
		localidades.Routes(api, d.Localities, gate)

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(session, middleware.AdminMiddleware(d.Sessions))
			admin.Post("/import", ingest.ImportHandler(d.Runner, d.Logger, d.Localities.Invalidate))
			localidades.AdminRoutes(admin, d.Localities)
		})
	})
	return r
}

// Server runs the router with timeouts sized for workbook uploads.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func New(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       2 * time.Minute,
			WriteTimeout:      5 * time.Minute,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
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

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
