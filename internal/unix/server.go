// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-secgateway.
//
// go-secgateway is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package unix serves the gateway channel on a Unix domain socket.
//
// Every request carries a correlation ID and is counted by the HTTP
// metrics. The execute endpoint is throttled per caller, where the caller
// is identified by the peer credentials of the connection.
package unix

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/backend/channel"
	"github.com/jeremyhahn/go-secgateway/pkg/correlation"
	"github.com/jeremyhahn/go-secgateway/pkg/gateway"
	"github.com/jeremyhahn/go-secgateway/pkg/metrics"
	"github.com/jeremyhahn/go-secgateway/pkg/ratelimit"
)

// DefaultSocketPath is the default path for the Unix socket.
const DefaultSocketPath = "/var/run/secgateway/gateway.sock"

// DefaultMaxRequestBytes bounds the size of an execute request body.
const DefaultMaxRequestBytes = 16 << 20

// PathMetrics serves the Prometheus registry.
const PathMetrics = "/metrics"

// ErrNoGateway is returned by NewServer without a gateway.
var ErrNoGateway = errors.New("unix: gateway is required")

// Config holds the Unix socket server configuration.
type Config struct {
	// SocketPath is the path to the Unix socket file.
	SocketPath string

	// SocketMode is the file mode for the socket (default: 0660).
	SocketMode os.FileMode

	// Gateway executes the requests received on the channel.
	Gateway *gateway.Gateway

	// Limiter throttles the execute endpoint. Optional.
	Limiter *ratelimit.Limiter

	// MaxRequestBytes bounds an execute request body.
	MaxRequestBytes int64

	// EnableMetrics exposes PathMetrics.
	EnableMetrics bool

	// ReadTimeout is the maximum duration for reading requests.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration for writing responses.
	WriteTimeout time.Duration

	Logger logger.Logger
}

// Server is the Unix domain socket server.
type Server struct {
	config   *Config
	gw       *gateway.Gateway
	router   chi.Router
	logger   logger.Logger
	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a Unix socket server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Gateway == nil {
		return nil, ErrNoGateway
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = DefaultSocketPath
	}
	if cfg.SocketMode == 0 {
		cfg.SocketMode = 0660
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NoOp()
	}

	s := &Server{
		config: cfg,
		gw:     cfg.Gateway,
		logger: cfg.Logger,
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(correlation.Middleware)
	s.router.Use(metrics.HTTPMiddleware)

	s.router.Get(channel.PathHealth, s.handleReady)
	s.router.Get("/health/live", s.handleLive)
	s.router.Get("/health/ready", s.handleReady)
	s.router.Get("/health/startup", s.handleStartup)

	s.router.Get(channel.PathStatus, s.handleStatus)
	s.router.With(ratelimit.Middleware(s.config.Limiter, http.HandlerFunc(s.handleRateLimited))).
		Post(channel.PathExecute, s.handleExecute)

	if s.config.EnableMetrics {
		s.router.Handle(PathMetrics, promhttp.Handler())
	}
}

// Handler returns the router, for serving on another listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the socket and serves until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Listen creates the socket. A stale socket file left by a previous
// process is removed first.
func (s *Server) Listen() error {
	path := s.config.SocketPath
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("failed to create Unix socket listener: %w", err)
	}
	if err := os.Chmod(path, s.config.SocketMode); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		ConnContext:       connContext,
	}
	s.mu.Unlock()

	s.logger.Info("unix socket created",
		logger.String("path", path),
		logger.String("mode", s.config.SocketMode.String()))
	return nil
}

// Serve serves on the socket created by Listen. It returns nil after a
// graceful Stop.
func (s *Server) Serve() error {
	s.mu.RLock()
	srv, l := s.server, s.listener
	s.mu.RUnlock()
	if srv == nil {
		return fmt.Errorf("unix socket server is not listening")
	}

	s.logger.Info("serving gateway channel", logger.String("socket", s.config.SocketPath))
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("unix socket server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server and removes the socket file.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("error shutting down unix socket server", logger.Error(err))
			return err
		}
	}
	if err := os.Remove(s.config.SocketPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove socket file", logger.Error(err))
	}
	s.logger.Info("unix socket server stopped")
	return nil
}

// SocketPath returns the path to the Unix socket.
func (s *Server) SocketPath() string {
	return s.config.SocketPath
}
