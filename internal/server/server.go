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

// Package server assembles the gateway daemon from its configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-secgateway/internal/config"
	"github.com/jeremyhahn/go-secgateway/internal/unix"
	"github.com/jeremyhahn/go-secgateway/pkg/adapters/audit"
	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/backend/channel"
	"github.com/jeremyhahn/go-secgateway/pkg/gateway"
	"github.com/jeremyhahn/go-secgateway/pkg/keystore"
	"github.com/jeremyhahn/go-secgateway/pkg/metrics"
	"github.com/jeremyhahn/go-secgateway/pkg/ratelimit"
	"github.com/jeremyhahn/go-secgateway/pkg/storage"
)

// Server is the gateway daemon: one gateway served on one unix socket.
type Server struct {
	config *config.Config
	mu     sync.RWMutex
	level  *slog.LevelVar
	logger logger.Logger

	storage   storage.Backend
	localKeys *keystore.KeyStore
	keys      keystore.Manager
	client    *channel.Client
	gateway   *gateway.Gateway
	limiter   *ratelimit.Limiter

	unixServer       *unix.Server
	metricsCollector *metrics.ResourceCollector

	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	errCh        chan error
	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds every component described by cfg. Nothing listens until
// Start is called.
func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, log := setupLogger(cfg.Logging)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config: cfg,
		level:  level,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
		errCh:  make(chan error, 1),
	}

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	if err := s.initialize(); err != nil {
		cancel()
		s.closeComponents()
		return nil, err
	}
	return s, nil
}

func (s *Server) initialize() error {
	cfg := s.config

	store, err := openStorage(cfg.KeyStore)
	if err != nil {
		return fmt.Errorf("failed to open key storage: %w", err)
	}
	s.storage = store

	s.localKeys, err = keystore.New(&keystore.Config{
		Storage: store,
		Logger:  s.logger.With(logger.String("component", "keystore")),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize keystore: %w", err)
	}
	s.keys = s.localKeys

	if cfg.Backends.Channel.Enabled {
		s.client, err = channel.NewClient(&channel.ClientConfig{
			SocketPath: cfg.Backends.Channel.SocketPath,
			Timeout:    cfg.Backends.Channel.Timeout,
			Logger:     s.logger.With(logger.String("component", "channel")),
		})
		if err != nil {
			return fmt.Errorf("failed to create channel client: %w", err)
		}
		if cfg.Backends.Channel.RemoteKeys {
			s.keys, err = channel.NewRemoteKeyStore(s.client, s.logger)
			if err != nil {
				return fmt.Errorf("failed to create remote key store: %w", err)
			}
		}
	}

	backends, err := s.buildBackends()
	if err != nil {
		return fmt.Errorf("failed to initialize backends: %w", err)
	}

	s.gateway, err = gateway.New(&gateway.Config{
		Name:           cfg.Gateway.Name,
		Version:        getBuildVersion(),
		Keys:           s.keys,
		Backends:       backends,
		DefaultBackend: cfg.Gateway.DefaultBackend,
		Auditor:        audit.NewLogAuditor(s.logger.With(logger.String("component", "audit"))),
		HealthTimeout:  cfg.Gateway.HealthTimeout,
		Logger:         s.logger.With(logger.String("component", "gateway")),
	})
	if err != nil {
		for _, b := range backends {
			_ = b.Close()
		}
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}

	if cfg.Server.RateLimit.Enabled {
		s.limiter = ratelimit.New(&ratelimit.Config{
			Enabled:           true,
			RequestsPerMinute: cfg.Server.RateLimit.RequestsPerMin,
			Burst:             cfg.Server.RateLimit.Burst,
		})
	}

	mode, _ := cfg.Server.FileMode()
	s.unixServer, err = unix.NewServer(&unix.Config{
		SocketPath:      cfg.Server.SocketPath,
		SocketMode:      mode,
		Gateway:         s.gateway,
		Limiter:         s.limiter,
		MaxRequestBytes: cfg.Server.MaxRequestBytes,
		EnableMetrics:   cfg.Metrics.Enabled,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		Logger:          s.logger.With(logger.String("component", "unix")),
	})
	if err != nil {
		return fmt.Errorf("failed to create unix socket server: %w", err)
	}

	s.logger.Info("gateway initialized",
		logger.String("name", cfg.Gateway.Name),
		logger.Strings("backends", s.gateway.BackendNames()),
		logger.String("default_backend", s.gateway.DefaultBackend()),
		logger.String("keystore", cfg.KeyStore.Storage),
		logger.Bool("remote_keys", cfg.Backends.Channel.RemoteKeys))
	return nil
}

// setupLogger builds the daemon logger. The level is held in a LevelVar
// so that Reload reaches every component logger.
func setupLogger(cfg config.LoggingConfig) (*slog.LevelVar, logger.Logger) {
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Level))

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return level, logger.NewSlogAdapter(&logger.SlogConfig{Logger: slog.New(handler)})
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getBuildVersion retrieves the version from build information
func getBuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.version" && setting.Value != "" && setting.Value != "devel" {
			return setting.Value
		}
		if setting.Key == "vcs.revision" {
			if len(setting.Value) >= 7 {
				return setting.Value[:7]
			}
			return setting.Value
		}
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// Version reports the build version served in the status snapshot.
func Version() string {
	return getBuildVersion()
}

// Start creates the socket and serves it in the background. Serving
// errors are reported by Run.
func (s *Server) Start() error {
	if err := s.unixServer.Listen(); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.unixServer.Serve(); err != nil {
			s.logger.Error("unix socket server failed", logger.Error(err))
			select {
			case s.errCh <- err:
			default:
			}
		}
	}()

	if s.config.Metrics.Enabled {
		s.metricsCollector = metrics.StartResourceCollector(s.ctx, s.config.Metrics.CollectInterval, s.countKeys)
	}

	s.logger.Info("gateway daemon started", logger.String("socket", s.unixServer.SocketPath()))
	return nil
}

// Run starts the server and blocks until ctx is done or serving fails,
// then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		_ = s.Shutdown()
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
	case runErr = <-s.errCh:
	}
	return errors.Join(runErr, s.Shutdown())
}

func (s *Server) countKeys(ctx context.Context) (int, error) {
	ids, err := s.keys.List(ctx)
	return len(ids), err
}

// Shutdown stops serving and releases every component. It is safe to call
// more than once.
func (s *Server) Shutdown() error {
	s.shutdownOnce.Do(func() {
		s.logger.Info("shutting down gateway daemon")

		if s.metricsCollector != nil {
			s.metricsCollector.Stop()
		}
		s.cancel()

		timeout := s.config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var errs []error
		if s.unixServer != nil {
			if err := s.unixServer.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("stop unix socket server: %w", err))
			}
		}
		s.wg.Wait()

		errs = append(errs, s.closeComponents())
		s.shutdownErr = errors.Join(errs...)
		s.logger.Info("gateway daemon stopped")
	})
	return s.shutdownErr
}

func (s *Server) closeComponents() error {
	var errs []error
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.gateway != nil {
		if err := s.gateway.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel client: %w", err))
		}
	}
	if s.localKeys != nil {
		if err := s.localKeys.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close keystore: %w", err))
		}
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close key storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
func SetupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		slog.Info("Received shutdown signal")
		cancel()
	}()
	return ctx
}

// Gateway returns the assembled gateway.
func (s *Server) Gateway() *gateway.Gateway {
	return s.gateway
}

// Keys returns the key manager the gateway uses.
func (s *Server) Keys() keystore.Manager {
	return s.keys
}

// UnixServer returns the Unix socket server instance
func (s *Server) UnixServer() *unix.Server {
	return s.unixServer
}

// Logger returns the daemon logger.
func (s *Server) Logger() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}
