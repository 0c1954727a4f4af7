package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/extfixture/internal/installed"
	"github.com/mattjoyce/extfixture/internal/log"
	"github.com/mattjoyce/extfixture/internal/repository"
)

// RepositoryRegistry is the read side of the repository manager.
type RepositoryRegistry interface {
	Get(id string) (repository.Repository, bool)
	All() []repository.Repository
}

// InstalledIndex lists the records of an installed index.
type InstalledIndex interface {
	List(ctx context.Context) ([]installed.Record, error)
}

// Config holds API server configuration
type Config struct {
	Listen string
	// Workspace is the root name reported by /healthz.
	Workspace string
}

// Server is a read-only HTTP view over the repositories of one workspace.
type Server struct {
	config    Config
	registry  RepositoryRegistry
	index     InstalledIndex
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a server. index may be nil when the workspace was never
// initialized.
func New(config Config, registry RepositoryRegistry, index InstalledIndex, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		registry:  registry,
		index:     index,
		logger:    log.OrDefault(logger, "api"),
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen, "workspace", s.config.Workspace)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/openapi.json", s.handleOpenAPI)
	r.Get("/installed", s.handleInstalled)

	r.Route("/repositories", func(r chi.Router) {
		r.Get("/", s.handleListRepositories)
		r.Get("/{id}/extensions", s.handleSearchExtensions)
		r.Get("/{id}/extensions/{ext}/{version}", s.handleResolveExtension)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
