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

// Package config loads the gateway daemon configuration.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage kinds for the key store.
const (
	StorageMemory  = "memory"
	StorageFile    = "file"
	StorageKeyring = "keyring"
)

// Backend names, also used as the gateway registry names.
const (
	BackendModern  = "modern"
	BackendLegacy  = "legacy"
	BackendMock    = "mock"
	BackendChannel = "channel"
)

// DefaultSocketPath is where the daemon listens unless configured.
const DefaultSocketPath = "/var/run/secgateway/gateway.sock"

// Config represents the complete daemon configuration
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Logging  LoggingConfig  `yaml:"logging"`
	KeyStore KeyStoreConfig `yaml:"keystore"`
	Backends BackendsConfig `yaml:"backends"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// GatewayConfig names the gateway and picks the default backend
type GatewayConfig struct {
	Name           string        `yaml:"name"`
	DefaultBackend string        `yaml:"default_backend"`
	HealthTimeout  time.Duration `yaml:"health_timeout"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// KeyStoreConfig selects where key records are persisted
type KeyStoreConfig struct {
	Storage string        `yaml:"storage"` // memory, file, keyring
	Path    string        `yaml:"path"`
	Keyring KeyringConfig `yaml:"keyring"`
}

// KeyringConfig configures the OS credential store
type KeyringConfig struct {
	Service      string   `yaml:"service"`
	Backends     []string `yaml:"backends,omitempty"`
	FileDir      string   `yaml:"file_dir"`
	FilePassword string   `yaml:"file_password"`
}

// BackendsConfig contains configuration for every backend type
type BackendsConfig struct {
	Modern  ModernConfig  `yaml:"modern"`
	Legacy  LegacyConfig  `yaml:"legacy"`
	Mock    MockConfig    `yaml:"mock"`
	Channel ChannelConfig `yaml:"channel"`
}

// ModernConfig contains modern backend settings
type ModernConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LegacyConfig contains legacy backend settings
type LegacyConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MockConfig enables the in-memory mock backend, for development only
type MockConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ChannelConfig forwards requests to another gateway daemon
type ChannelConfig struct {
	Enabled       bool          `yaml:"enabled"`
	SocketPath    string        `yaml:"socket_path"`
	Timeout       time.Duration `yaml:"timeout"`
	RemoteBackend string        `yaml:"remote_backend"`

	// RemoteKeys delegates key lifecycle operations to the remote gateway
	// instead of the local key store.
	RemoteKeys bool `yaml:"remote_keys"`
}

// ServerConfig controls the unix socket channel server
type ServerConfig struct {
	SocketPath      string          `yaml:"socket_path"`
	SocketMode      string          `yaml:"socket_mode"` // octal, e.g. "0660"
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	MaxRequestBytes int64           `yaml:"max_request_bytes"`
	RateLimit       RateLimitConfig `yaml:"ratelimit"`
}

// RateLimitConfig controls per-client rate limiting
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	Burst          int  `yaml:"burst"`
}

// MetricsConfig controls the metrics endpoint and resource collector
type MetricsConfig struct {
	Enabled         bool          `yaml:"enabled"`
	CollectInterval time.Duration `yaml:"collect_interval"`
}

// Default returns a configuration that validates as-is: in-memory keys,
// the modern and legacy backends, and the default socket.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Name:           "secgateway",
			DefaultBackend: BackendModern,
			HealthTimeout:  5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		KeyStore: KeyStoreConfig{
			Storage: StorageMemory,
		},
		Backends: BackendsConfig{
			Modern: ModernConfig{Enabled: true},
			Legacy: LegacyConfig{Enabled: true},
			Channel: ChannelConfig{
				Timeout: 30 * time.Second,
			},
		},
		Server: ServerConfig{
			SocketPath:      DefaultSocketPath,
			SocketMode:      "0660",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxRequestBytes: 16 << 20,
			RateLimit: RateLimitConfig{
				RequestsPerMin: 600,
			},
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			CollectInterval: 15 * time.Second,
		},
	}
}

// Load reads configuration from a YAML file over Default and applies
// environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies SECGW_* environment variables
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SECGW_NAME"); v != "" {
		cfg.Gateway.Name = v
	}
	if v := os.Getenv("SECGW_DEFAULT_BACKEND"); v != "" {
		cfg.Gateway.DefaultBackend = v
	}

	if v := os.Getenv("SECGW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SECGW_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("SECGW_KEYSTORE_STORAGE"); v != "" {
		cfg.KeyStore.Storage = v
	}
	if v := os.Getenv("SECGW_KEYSTORE_PATH"); v != "" {
		cfg.KeyStore.Path = v
	}
	if v := os.Getenv("SECGW_KEYRING_PASSWORD"); v != "" {
		cfg.KeyStore.Keyring.FilePassword = v
	}

	if v := os.Getenv("SECGW_SOCKET"); v != "" {
		cfg.Server.SocketPath = v
	}
	if v := os.Getenv("SECGW_CHANNEL_SOCKET"); v != "" {
		cfg.Backends.Channel.SocketPath = v
	}

	if v := os.Getenv("SECGW_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			log.Printf("Warning: invalid SECGW_RATE_LIMIT value %q, keeping %d requests/min",
				v, cfg.Server.RateLimit.RequestsPerMin)
		} else {
			cfg.Server.RateLimit.Enabled = n > 0
			if n > 0 {
				cfg.Server.RateLimit.RequestsPerMin = n
			}
		}
	}
	if v := os.Getenv("SECGW_METRICS"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("Warning: invalid SECGW_METRICS value %q, keeping %t", v, cfg.Metrics.Enabled)
		} else {
			cfg.Metrics.Enabled = enabled
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Gateway.Name == "" {
		return fmt.Errorf("gateway name must be specified")
	}
	if c.Gateway.HealthTimeout < 0 {
		return fmt.Errorf("gateway health_timeout must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	switch c.KeyStore.Storage {
	case StorageMemory, StorageKeyring:
	case StorageFile:
		if c.KeyStore.Path == "" {
			return fmt.Errorf("keystore path is required for file storage")
		}
	default:
		return fmt.Errorf("invalid keystore storage: %q (must be memory, file, or keyring)", c.KeyStore.Storage)
	}

	enabled := c.EnabledBackends()
	if len(enabled) == 0 {
		return fmt.Errorf("at least one backend must be enabled")
	}
	if d := c.Gateway.DefaultBackend; d != "" && !contains(enabled, d) {
		return fmt.Errorf("default_backend %q is not an enabled backend", d)
	}

	ch := c.Backends.Channel
	if ch.Enabled {
		if ch.SocketPath == "" {
			return fmt.Errorf("channel backend socket_path is required when enabled")
		}
		if ch.SocketPath == c.Server.SocketPath {
			return fmt.Errorf("channel backend socket_path must differ from the server socket")
		}
		if ch.Timeout < 0 {
			return fmt.Errorf("channel backend timeout must not be negative")
		}
	} else if ch.RemoteKeys {
		return fmt.Errorf("channel remote_keys requires the channel backend")
	}

	if c.Server.SocketPath == "" {
		return fmt.Errorf("server socket_path must be specified")
	}
	if _, err := c.Server.FileMode(); err != nil {
		return err
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	if c.Server.MaxRequestBytes < 0 {
		return fmt.Errorf("server max_request_bytes must not be negative")
	}
	if rl := c.Server.RateLimit; rl.Enabled && rl.RequestsPerMin <= 0 {
		return fmt.Errorf("ratelimit requests_per_min must be positive when enabled")
	}

	if c.Metrics.CollectInterval < 0 {
		return fmt.Errorf("metrics collect_interval must not be negative")
	}
	return nil
}

// FileMode parses SocketMode as an octal permission, defaulting to 0660.
func (s ServerConfig) FileMode() (os.FileMode, error) {
	if s.SocketMode == "" {
		return 0660, nil
	}
	mode, err := strconv.ParseUint(s.SocketMode, 8, 32)
	if err != nil || mode > 0777 {
		return 0, fmt.Errorf("invalid socket_mode %q (must be an octal permission such as 0660)", s.SocketMode)
	}
	return os.FileMode(mode), nil
}

// EnabledBackends returns the enabled backend names in a fixed order
func (c *Config) EnabledBackends() []string {
	var backends []string
	if c.Backends.Modern.Enabled {
		backends = append(backends, BackendModern)
	}
	if c.Backends.Legacy.Enabled {
		backends = append(backends, BackendLegacy)
	}
	if c.Backends.Mock.Enabled {
		backends = append(backends, BackendMock)
	}
	if c.Backends.Channel.Enabled {
		backends = append(backends, BackendChannel)
	}
	return backends
}

// Marshal renders c as YAML with secrets masked.
func (c *Config) Marshal() ([]byte, error) {
	out := *c
	if out.KeyStore.Keyring.FilePassword != "" {
		out.KeyStore.Keyring.FilePassword = "********"
	}
	return yaml.Marshal(&out)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
