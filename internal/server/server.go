// Package server exposes the pipeline over HTTP: job submission and
// inspection, result retrieval and the admin wipe.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"paperguild/internal/auth"
	"paperguild/internal/config"
	"paperguild/internal/core"
	"paperguild/internal/logger"
)

// Jobs is the job-submission surface the API fronts.
type Jobs interface {
	Submit(topic string, days, maxResults int) (string, error)
}

// Store is the subset of the storage layer the API reads.
type Store interface {
	GetJob(id string) (*core.Job, error)
	ListJobs(status core.JobStatus) ([]core.Job, error)
	JobLog(jobID string) ([]string, error)
	GetResult(jobID string) (*core.Result, error)
	Wipe() error
	Ping() error
}

// Server is the HTTP API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	store      Store
	jobs       Jobs
	authn      *auth.Authenticator
	defaults   config.Pipeline
	log        *slog.Logger
}

// New creates the server and mounts all routes.
func New(store Store, jobs Jobs, authn *auth.Authenticator, cfg config.Server, defaults config.Pipeline) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		store:    store,
		jobs:     jobs,
		authn:    authn,
		defaults: defaults,
		log:      logger.Get(),
	}

	s.setupMiddleware(cfg)
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) setupMiddleware(cfg config.Server) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if cfg.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.handleSubmitJob)
		r.Get("/", s.handleListJobs)
		r.Get("/{id}", s.handleGetJob)
		r.Get("/{id}/result", s.handleGetResult)
	})

	s.router.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/wipe", s.handleWipe)
	})
}

// Start runs the server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Router returns the chi router, useful for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// requireAdmin enforces HTTP basic auth against the stored admin credential.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || !s.authn.Verify(username, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			s.respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
