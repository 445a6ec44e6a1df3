// Copyright (c) 2025 Cue Protocol
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@cueprotocol.io for commercial licensing options.

package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cueprotocol/go-passkey/pkg/passkey"
	passkeyhttp "github.com/cueprotocol/go-passkey/pkg/passkey/http"
	"github.com/cueprotocol/go-passkey/pkg/ratelimit"
)

// Server represents the REST API server.
type Server struct {
	server  *http.Server
	handler *passkeyhttp.Handler
	limiter *ratelimit.Limiter
	port    int
	logger  *slog.Logger
}

// Config holds the REST server configuration.
type Config struct {
	// Host is the interface to bind. Empty binds all interfaces.
	Host string

	// Port is the HTTP port to listen on (default: 8080)
	Port int

	// Service is the authentication service (required)
	Service *passkey.Service

	// Keys exposes the token issuer's public key set for the JWKS endpoint
	// (optional)
	Keys passkeyhttp.JWKSProvider

	// Limiter enforces per-client rate limits on the auth routes (optional)
	Limiter *ratelimit.Limiter

	// Logger is the structured logger (optional, defaults to slog.Default)
	Logger *slog.Logger

	// MetricsEnabled mounts the Prometheus endpoint at MetricsPath
	MetricsEnabled bool
	MetricsPath    string

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration
}

// NewServer creates a new REST API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("service is required")
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := &Server{
		handler: passkeyhttp.NewHandler(cfg.Service, cfg.Keys).WithLogger(logger),
		limiter: cfg.Limiter,
		port:    cfg.Port,
		logger:  logger,
	}

	router := server.setupRouter(cfg)

	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter(cfg *Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(MetricsMiddleware)
	r.Use(CORSMiddleware)

	r.Get("/healthz", s.healthzHandler)
	r.Head("/healthz", s.healthzHandler)

	if cfg.MetricsEnabled {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	r.Get("/.well-known/jwks.json", s.handler.JWKS)

	r.Route("/api/v1/auth", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(ratelimit.Middleware(s.limiter))
		}
		passkeyhttp.MountChi(r, s.handler)
	})

	return r
}

// healthzHandler reports process liveness.
func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		fmt.Fprintln(w, `{"status":"ok"}`)
	}
}

// Start starts the REST API server.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "port", s.port)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the REST API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", slog.Any("error", err))
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Router exposes the configured router for tests.
func (s *Server) Router() http.Handler {
	return s.server.Handler
}
