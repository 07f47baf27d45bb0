package api

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/cuemby/omni-orchestrator/pkg/auth"
	"github.com/cuemby/omni-orchestrator/pkg/autoscaler"
	"github.com/cuemby/omni-orchestrator/pkg/backup"
	"github.com/cuemby/omni-orchestrator/pkg/bootstrap"
	"github.com/cuemby/omni-orchestrator/pkg/config"
	"github.com/cuemby/omni-orchestrator/pkg/database"
	"github.com/cuemby/omni-orchestrator/pkg/log"
	"github.com/cuemby/omni-orchestrator/pkg/metrics"
	"github.com/cuemby/omni-orchestrator/pkg/nodeagent"
	"github.com/cuemby/omni-orchestrator/pkg/store"
)

const shutdownTimeout = 15 * time.Second

// Server is the HTTP control plane. It owns the router and wires every
// subsystem behind the handlers; no handler reaches for globals.
type Server struct {
	cfg    *config.Config
	db     *database.Manager
	gate   *auth.Gate
	users  *store.Users
	audit  *store.Audit
	logger zerolog.Logger

	backups   *backup.Coordinator
	validator *backup.Validator
	bootstrap *bootstrap.Coordinator
	scaler    *autoscaler.Engine
	agent     nodeagent.NetworkClient

	uploadDir string
	httpSrv   *http.Server
}

// NewServer assembles the control plane around an initialized database
// manager. The node-agent client and autoscaler are optional; nil
// disables the corresponding endpoints' work.
func NewServer(cfg *config.Config, db *database.Manager, agent nodeagent.NetworkClient, scaler *autoscaler.Engine) *Server {
	users := store.NewUsers(db.MainPool())
	s := &Server{
		cfg:       cfg,
		db:        db,
		gate:      auth.NewGate(users, cfg.JWTSecret),
		users:     users,
		audit:     store.NewAudit(db.MainPool()),
		logger:    log.WithComponent("api"),
		backups:   backup.NewCoordinator(agent, cfg.BackupDir),
		validator: backup.NewValidator(),
		bootstrap: bootstrap.NewCoordinator(),
		scaler:    scaler,
		agent:     agent,
		uploadDir: filepath.Join(cfg.BackupDir, "uploads"),
	}
	s.httpSrv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: s.routes(),
	}
	return s
}

// routes builds the full routing table
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Public surface.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Post("/users/login", s.handleLogin)
	r.Post("/users/create", s.handleCreateUser)

	// Everything else requires an authenticated, active user.
	r.Group(func(r chi.Router) {
		r.Use(s.gate.Middleware(renderError))

		r.Get("/me", s.handleMe)
		r.Post("/users/logout", s.handleLogout)
		r.Post("/autoscaler/metrics", s.handlePushMetric)

		r.Route("/platforms", func(r chi.Router) {
			r.Post("/", s.handleCreatePlatform)
			r.Get("/", s.handleListPlatforms)
			r.Post("/init", s.handleBootstrapInit)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.handleDeletePlatform)
				r.Get("/status", s.handleBootstrapStatus)
				r.Post("/hosts/{name}/bootstrap", s.handleBootstrapHost)
				r.Post("/network/configure", s.handleConfigureNetwork)
				r.Post("/monitoring/setup", s.handleSetupMonitoring)
				r.Post("/backups/setup", s.handleSetupBackups)
			})
		})

		r.Route("/platform/{pid}", func(r chi.Router) {
			r.Use(s.tenantResolver)

			r.Route("/apps", func(r chi.Router) {
				r.Get("/", s.handleListApps)
				r.Post("/", s.handleCreateApp)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetApp)
					r.Delete("/", s.handleDeleteApp)
					r.Get("/instances", s.handleListInstances)
					r.Post("/releases/{version}/upload", s.handleUploadRelease)
				})
			})

			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", s.handleListAlerts)
				r.Post("/", s.handleCreateAlert)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetAlert)
					r.Put("/status", s.handleAlertStatus)
					r.Post("/acknowledge", s.handleAlertAcknowledge)
					r.Post("/resolve", s.handleAlertResolve)
					r.Get("/history", s.handleAlertHistory)
				})
			})

			r.Route("/backups", func(r chi.Router) {
				r.Get("/", s.handleListBackups)
				r.Post("/", s.handleCreateBackup)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetBackup)
					r.Post("/validate", s.handleValidateBackup)
				})
			})
		})
	})

	return r
}

// Start serves until the context is cancelled, then drains connections
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("http server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info().Msg("shutting down http server")
	return s.httpSrv.Shutdown(shutdownCtx)
}

// Handler exposes the routing table for tests
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Bootstrap exposes the bootstrap coordinator (step delay tuning in
// tests, status access from the CLI).
func (s *Server) Bootstrap() *bootstrap.Coordinator {
	return s.bootstrap
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.MainPool().PingContext(r.Context()); err != nil {
		renderJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
