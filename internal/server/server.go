// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

// Package server exposes the analysis core over local HTTP for the desktop
// shell: buffered analysis, SSE streaming analysis, and filter generation.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/packetpilot/sidecar/internal/agent"
	"github.com/packetpilot/sidecar/internal/bridge"
	pperr "github.com/packetpilot/sidecar/pkg/errors"
)

// Analyzer is the analysis core the server fronts. *agent.Agent satisfies
// it; tests substitute fakes.
type Analyzer interface {
	Analyze(ctx context.Context, req agent.Request) (*agent.Result, error)
	AnalyzeStream(ctx context.Context, req agent.Request) <-chan agent.Event
	GenerateFilter(ctx context.Context, query string, capture agent.CaptureContext) (*agent.FilterResult, error)
}

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps a chi router with a huma API and the HTTP server lifecycle.
type Server struct {
	router   chi.Router
	api      huma.API
	cfg      Config
	analyzer Analyzer
	backend  bridge.Backend
	log      *slog.Logger
}

// New creates a Server with router, CORS, health endpoint, and all
// analysis routes registered.
func New(cfg Config, analyzer Analyzer, backend bridge.Backend, log *slog.Logger) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, pperr.New(pperr.CodeServerStartFailure, "listen address is required")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Streaming responses can be long-lived.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	humaConfig := huma.DefaultConfig("PacketPilot AI Sidecar", "0.1.0")
	humaConfig.Info.Description = "AI-assisted packet analysis sidecar API"
	api := humachi.New(r, humaConfig)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthBody{Status: "ok", Version: humaConfig.Info.Version}}, nil
	})

	srv := &Server{
		router:   r,
		api:      api,
		cfg:      cfg,
		analyzer: analyzer,
		backend:  backend,
		log:      log,
	}
	srv.registerRoutes()

	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return pperr.Wrapf(err, pperr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info("server listening", "addr", s.cfg.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return pperr.Wrap(err, pperr.CodeServerStartFailure, "shutting down")
	}

	return <-errCh
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Version string `json:"version,omitempty" doc:"Sidecar version"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"tauri://localhost", "http://localhost:1420"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
