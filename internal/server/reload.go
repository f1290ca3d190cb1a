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
)

// Reload applies the parts of cfg that can change without a restart.
// Only the log level is reloadable; every other change is reported and
// takes effect on the next start.
func (s *Server) Reload(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("reloading configuration")
	s.reloadLogging(cfg.Logging)
	return nil
}

func (s *Server) reloadLogging(cfg config.LoggingConfig) {
	current := s.config.Logging
	if cfg.Level != current.Level {
		s.level.Set(slogLevel(cfg.Level))
		s.logger.Info("log level updated",
			logger.String("old_level", current.Level),
			logger.String("new_level", cfg.Level))
		s.config.Logging.Level = cfg.Level
	}
	if cfg.Format != current.Format {
		s.logger.Warn("log format change requires a restart",
			logger.String("format", current.Format),
			logger.String("requested", cfg.Format))
	}
}

// LogLevel returns the active log level name.
func (s *Server) LogLevel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Logging.Level
}
