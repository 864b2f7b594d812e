// Package server is the local HTTP facade over the compiler, the
// execution client, and the asset registry.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/noderig/noderig/internal/config"
	"github.com/noderig/noderig/internal/server/handlers"
	"github.com/noderig/noderig/internal/server/middleware"
	"github.com/noderig/noderig/pkg/assets"
	"github.com/noderig/noderig/pkg/preview"
)

// Deps carries the server's collaborators.
type Deps struct {
	Engine   handlers.JobEngine
	Registry *assets.Registry
	Version  string
	Logger   *zap.Logger

	// OutputRoot is the execution server's output directory when
	// locally visible; empty falls back to HTTP fetches.
	OutputRoot string
}

// Server owns the router and the listener lifecycle.
type Server struct {
	host   string
	port   int
	router chi.Router
	http   *http.Server
	log    *zap.Logger
}

// New assembles the router. Engine and Registry are required.
func New(cfg config.ServerConfig, previewCfg config.PreviewConfig, engineURL string, deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("server requires an engine client")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("server requires an asset registry")
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	health := handlers.NewHealthManager(deps.Version)
	health.RegisterChecker("engine", engineChecker{engine: deps.Engine})

	jobs := &handlers.Jobs{
		Engine:    deps.Engine,
		Registrar: deps.Registry,
		Log:       log,
	}
	assetHandlers := &handlers.Assets{
		Store:   deps.Registry,
		Fetcher: newAssetFetcher(engineURL, deps.OutputRoot),
		Cache:   preview.NewCache(),
		Opts: preview.Options{
			MaxDim:   previewCfg.MaxDim,
			MaxChars: previewCfg.MaxChars,
			Quality:  previewCfg.Quality,
		},
		Log: log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Throttle(cfg.RateRPS, cfg.RateBurst))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		middleware.WriteError(w, req, http.StatusNotFound, "NOT_FOUND", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		middleware.WriteError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.Get("/health", health.HealthHandler)
	r.Get("/version", health.VersionHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", jobs.Submit)
		r.Get("/jobs/{id}", jobs.Status)
		r.Delete("/jobs/{id}", jobs.Cancel)
		r.Get("/queue", jobs.QueueInfo)

		r.Get("/assets", assetHandlers.List)
		r.Get("/assets/{id}", assetHandlers.Get)
		r.Get("/assets/{id}/preview", assetHandlers.Preview)
	})

	srv := &Server{
		host:   cfg.Host,
		port:   cfg.Port,
		router: r,
		log:    log,
	}
	srv.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return srv, nil
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Port returns the configured listen port.
func (s *Server) Port() int { return s.port }

// Start blocks serving until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.log.Info("server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the timeout.
func (s *Server) Shutdown(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// engineChecker probes the execution server through the client's
// queue endpoint.
type engineChecker struct {
	engine handlers.JobEngine
}

func (c engineChecker) CheckHealth(ctx context.Context) error {
	_, err := c.engine.Queue(ctx)
	return err
}
