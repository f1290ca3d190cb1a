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

package cli

import (
	"os"
	"testing"
	"time"

	"github.com/jeremyhahn/go-secgateway/internal/config"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.SocketPath != config.DefaultSocketPath {
		t.Errorf("SocketPath = %v, want %v", cfg.SocketPath, config.DefaultSocketPath)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.OutputFormat != "text" {
		t.Errorf("OutputFormat = %v, want text", cfg.OutputFormat)
	}
	if cfg.Verbose {
		t.Error("Verbose should be false by default")
	}
	if cfg.Backend != "" {
		t.Errorf("Backend should be empty by default, got %v", cfg.Backend)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv(EnvSocket, "/tmp/from-env.sock")

	tests := []struct {
		name          string
		socketFlagSet bool
		want          string
	}{
		{"env applies", false, "/tmp/from-env.sock"},
		{"flag wins", true, config.DefaultSocketPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.applyEnv(tt.socketFlagSet)
			if cfg.SocketPath != tt.want {
				t.Errorf("SocketPath = %v, want %v", cfg.SocketPath, tt.want)
			}
		})
	}
}

func TestConfig_ApplyEnv_Unset(t *testing.T) {
	if err := os.Unsetenv(EnvSocket); err != nil {
		t.Fatal(err)
	}
	cfg := NewConfig()
	cfg.applyEnv(false)
	if cfg.SocketPath != config.DefaultSocketPath {
		t.Errorf("SocketPath = %v, want %v", cfg.SocketPath, config.DefaultSocketPath)
	}
}

func TestConfig_CreateClient(t *testing.T) {
	cfg := NewConfig()
	cl, err := cfg.CreateClient()
	if err != nil {
		t.Fatalf("CreateClient() returned error: %v", err)
	}
	if cl == nil {
		t.Fatal("CreateClient() returned nil")
	}

	b, err := cfg.CreateBackend(cl)
	if err != nil {
		t.Fatalf("CreateBackend() returned error: %v", err)
	}
	if b == nil {
		t.Fatal("CreateBackend() returned nil")
	}

	ks, err := cfg.CreateKeyStore(cl)
	if err != nil {
		t.Fatalf("CreateKeyStore() returned error: %v", err)
	}
	if ks == nil {
		t.Fatal("CreateKeyStore() returned nil")
	}
}

func TestConfig_CreateClient_NoSocket(t *testing.T) {
	cfg := NewConfig()
	cfg.SocketPath = ""
	if _, err := cfg.CreateClient(); err == nil {
		t.Error("CreateClient() with empty socket should fail")
	}
}
