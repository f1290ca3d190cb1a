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

package server

import (
	"fmt"

	"github.com/jeremyhahn/go-secgateway/internal/config"
	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/backend"
	"github.com/jeremyhahn/go-secgateway/pkg/backend/channel"
	"github.com/jeremyhahn/go-secgateway/pkg/backend/legacy"
	"github.com/jeremyhahn/go-secgateway/pkg/backend/mock"
	"github.com/jeremyhahn/go-secgateway/pkg/backend/modern"
)

// buildBackends creates every enabled backend, keyed by configured name.
// On error the backends created so far are closed.
func (s *Server) buildBackends() (map[string]backend.CryptoBackend, error) {
	cfg := s.config.Backends
	registry := make(map[string]backend.CryptoBackend)

	for _, name := range s.config.EnabledBackends() {
		b, err := s.createBackend(name, cfg)
		if err != nil {
			for _, created := range registry {
				_ = created.Close()
			}
			return nil, fmt.Errorf("backend %s: %w", name, err)
		}
		registry[name] = b
		s.logger.Debug("backend registered", logger.String("backend", name))
	}
	return registry, nil
}

func (s *Server) createBackend(name string, cfg config.BackendsConfig) (backend.CryptoBackend, error) {
	log := s.logger.With(logger.String("backend", name))

	switch name {
	case config.BackendModern:
		return modern.New(&modern.Config{
			Keys:    s.keys,
			Tracker: backend.NewMemoryAEADTracker(nil),
			Logger:  log,
		}), nil
	case config.BackendLegacy:
		return legacy.New(&legacy.Config{Keys: s.keys, Logger: log}), nil
	case config.BackendMock:
		log.Warn("mock backend enabled; do not use in production")
		return mock.New(s.keys), nil
	case config.BackendChannel:
		if s.client == nil {
			return nil, fmt.Errorf("channel client not initialized")
		}
		return channel.New(&channel.Config{
			Client:        s.client,
			RemoteBackend: cfg.Channel.RemoteBackend,
			Logger:        log,
		})
	default:
		return nil, fmt.Errorf("unknown backend type")
	}
}
