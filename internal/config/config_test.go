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

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	return path
}

// TestDefault_Validates tests that the defaults form a usable configuration
func TestDefault_Validates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if got := cfg.EnabledBackends(); !reflect.DeepEqual(got, []string{BackendModern, BackendLegacy}) {
		t.Errorf("EnabledBackends() = %v", got)
	}
}

// TestLoad_Success tests successful loading of a valid config file
func TestLoad_Success(t *testing.T) {
	path := writeConfig(t, `
gateway:
  name: "edge-gw"
  default_backend: "legacy"
  health_timeout: 2s

logging:
  level: "debug"
  format: "json"

keystore:
  storage: "file"
  path: "/data/secgateway/keys"

backends:
  modern:
    enabled: false
  legacy:
    enabled: true
  channel:
    enabled: true
    socket_path: "/run/upstream/gateway.sock"
    timeout: 5s
    remote_backend: "modern"

server:
  socket_path: "/run/secgateway/gw.sock"
  socket_mode: "0600"
  read_timeout: 10s
  ratelimit:
    enabled: true
    requests_per_min: 120
    burst: 20

metrics:
  enabled: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Gateway.Name != "edge-gw" {
		t.Errorf("Gateway.Name = %v, want edge-gw", cfg.Gateway.Name)
	}
	if cfg.Gateway.DefaultBackend != BackendLegacy {
		t.Errorf("Gateway.DefaultBackend = %v, want legacy", cfg.Gateway.DefaultBackend)
	}
	if cfg.Gateway.HealthTimeout != 2*time.Second {
		t.Errorf("Gateway.HealthTimeout = %v, want 2s", cfg.Gateway.HealthTimeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.KeyStore.Storage != StorageFile || cfg.KeyStore.Path != "/data/secgateway/keys" {
		t.Errorf("KeyStore = %+v", cfg.KeyStore)
	}
	if got := cfg.EnabledBackends(); !reflect.DeepEqual(got, []string{BackendLegacy, BackendChannel}) {
		t.Errorf("EnabledBackends() = %v", got)
	}
	if cfg.Backends.Channel.Timeout != 5*time.Second {
		t.Errorf("Channel.Timeout = %v, want 5s", cfg.Backends.Channel.Timeout)
	}
	if cfg.Backends.Channel.RemoteBackend != "modern" {
		t.Errorf("Channel.RemoteBackend = %v, want modern", cfg.Backends.Channel.RemoteBackend)
	}

	mode, err := cfg.Server.FileMode()
	if err != nil || mode != 0600 {
		t.Errorf("Server.FileMode() = %v, %v, want 0600", mode, err)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 10s", cfg.Server.ReadTimeout)
	}
	// unset fields keep their defaults
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want default 30s", cfg.Server.WriteTimeout)
	}
	if !cfg.Server.RateLimit.Enabled || cfg.Server.RateLimit.RequestsPerMin != 120 || cfg.Server.RateLimit.Burst != 20 {
		t.Errorf("Server.RateLimit = %+v", cfg.Server.RateLimit)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
}

// TestLoad_FileNotFound tests loading a non-existent config file
func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Load() error = %v, want read failure", err)
	}
}

// TestLoad_InvalidYAML tests loading a malformed file
func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "gateway: [unterminated")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("Load() error = %v, want parse failure", err)
	}
}

// TestLoad_InvalidConfig tests that Load validates
func TestLoad_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `
keystore:
  storage: "file"
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Load() error = %v, want validation failure", err)
	}
}

// TestApplyEnvOverrides tests SECGW_* overrides
func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SECGW_NAME", "env-gw")
	t.Setenv("SECGW_DEFAULT_BACKEND", "legacy")
	t.Setenv("SECGW_LOG_LEVEL", "warn")
	t.Setenv("SECGW_LOG_FORMAT", "json")
	t.Setenv("SECGW_KEYSTORE_STORAGE", "keyring")
	t.Setenv("SECGW_KEYSTORE_PATH", "/var/lib/secgateway")
	t.Setenv("SECGW_KEYRING_PASSWORD", "hunter2")
	t.Setenv("SECGW_SOCKET", "/tmp/env.sock")
	t.Setenv("SECGW_CHANNEL_SOCKET", "/tmp/upstream.sock")
	t.Setenv("SECGW_RATE_LIMIT", "300")
	t.Setenv("SECGW_METRICS", "false")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.Gateway.Name != "env-gw" {
		t.Errorf("Gateway.Name = %v", cfg.Gateway.Name)
	}
	if cfg.Gateway.DefaultBackend != "legacy" {
		t.Errorf("Gateway.DefaultBackend = %v", cfg.Gateway.DefaultBackend)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.KeyStore.Storage != StorageKeyring || cfg.KeyStore.Path != "/var/lib/secgateway" {
		t.Errorf("KeyStore = %+v", cfg.KeyStore)
	}
	if cfg.KeyStore.Keyring.FilePassword != "hunter2" {
		t.Error("Keyring.FilePassword was not overridden")
	}
	if cfg.Server.SocketPath != "/tmp/env.sock" {
		t.Errorf("Server.SocketPath = %v", cfg.Server.SocketPath)
	}
	if cfg.Backends.Channel.SocketPath != "/tmp/upstream.sock" {
		t.Errorf("Channel.SocketPath = %v", cfg.Backends.Channel.SocketPath)
	}
	if !cfg.Server.RateLimit.Enabled || cfg.Server.RateLimit.RequestsPerMin != 300 {
		t.Errorf("Server.RateLimit = %+v", cfg.Server.RateLimit)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
}

// TestApplyEnvOverrides_InvalidValues tests that bad values are ignored
func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	t.Setenv("SECGW_RATE_LIMIT", "lots")
	t.Setenv("SECGW_METRICS", "sometimes")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.Server.RateLimit.Enabled || cfg.Server.RateLimit.RequestsPerMin != 600 {
		t.Errorf("Server.RateLimit = %+v, want defaults", cfg.Server.RateLimit)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want default true")
	}
}

// TestApplyEnvOverrides_RateLimitZeroDisables tests SECGW_RATE_LIMIT=0
func TestApplyEnvOverrides_RateLimitZeroDisables(t *testing.T) {
	t.Setenv("SECGW_RATE_LIMIT", "0")

	cfg := Default()
	cfg.Server.RateLimit.Enabled = true
	applyEnvOverrides(cfg)

	if cfg.Server.RateLimit.Enabled {
		t.Error("SECGW_RATE_LIMIT=0 should disable rate limiting")
	}
}

// TestValidate tests configuration validation
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty name", func(c *Config) { c.Gateway.Name = "" }, "gateway name"},
		{"negative health timeout", func(c *Config) { c.Gateway.HealthTimeout = -time.Second }, "health_timeout"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"bad storage", func(c *Config) { c.KeyStore.Storage = "s3" }, "invalid keystore storage"},
		{"file storage without path", func(c *Config) { c.KeyStore.Storage = StorageFile }, "keystore path"},
		{"no backends", func(c *Config) {
			c.Backends.Modern.Enabled = false
			c.Backends.Legacy.Enabled = false
		}, "at least one backend"},
		{"default backend disabled", func(c *Config) { c.Gateway.DefaultBackend = BackendMock }, "default_backend"},
		{"channel without socket", func(c *Config) { c.Backends.Channel.Enabled = true }, "socket_path is required"},
		{"channel loops to itself", func(c *Config) {
			c.Backends.Channel.Enabled = true
			c.Backends.Channel.SocketPath = c.Server.SocketPath
		}, "must differ"},
		{"remote keys without channel", func(c *Config) { c.Backends.Channel.RemoteKeys = true }, "remote_keys"},
		{"no server socket", func(c *Config) { c.Server.SocketPath = "" }, "server socket_path"},
		{"bad socket mode", func(c *Config) { c.Server.SocketMode = "rw-rw----" }, "invalid socket_mode"},
		{"socket mode out of range", func(c *Config) { c.Server.SocketMode = "7777" }, "invalid socket_mode"},
		{"negative timeout", func(c *Config) { c.Server.WriteTimeout = -1 }, "timeouts"},
		{"negative body limit", func(c *Config) { c.Server.MaxRequestBytes = -1 }, "max_request_bytes"},
		{"rate limit without rate", func(c *Config) {
			c.Server.RateLimit.Enabled = true
			c.Server.RateLimit.RequestsPerMin = 0
		}, "requests_per_min"},
		{"negative collect interval", func(c *Config) { c.Metrics.CollectInterval = -time.Second }, "collect_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestValidate_NoDefaultBackend tests that the default backend is optional
func TestValidate_NoDefaultBackend(t *testing.T) {
	cfg := Default()
	cfg.Gateway.DefaultBackend = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

// TestServerConfig_FileMode tests socket mode parsing
func TestServerConfig_FileMode(t *testing.T) {
	tests := []struct {
		mode string
		want os.FileMode
	}{
		{"", 0660},
		{"0600", 0600},
		{"660", 0660},
		{"0777", 0777},
	}
	for _, tt := range tests {
		got, err := ServerConfig{SocketMode: tt.mode}.FileMode()
		if err != nil {
			t.Errorf("FileMode(%q) error = %v", tt.mode, err)
			continue
		}
		if got != tt.want {
			t.Errorf("FileMode(%q) = %o, want %o", tt.mode, got, tt.want)
		}
	}
}

// TestMarshal_MasksSecrets tests that rendering hides the keyring password
func TestMarshal_MasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.KeyStore.Keyring.FilePassword = "hunter2"

	out, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(out), "hunter2") {
		t.Error("Marshal() leaked the keyring password")
	}
	if cfg.KeyStore.Keyring.FilePassword != "hunter2" {
		t.Error("Marshal() modified the receiver")
	}
	if !strings.Contains(string(out), "socket_path: /var/run/secgateway/gateway.sock") {
		t.Errorf("Marshal() output missing socket path:\n%s", out)
	}
}
