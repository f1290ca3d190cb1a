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
	"fmt"
	"os"
	"time"

	"github.com/jeremyhahn/go-secgateway/internal/config"
	"github.com/jeremyhahn/go-secgateway/pkg/backend/channel"
)

// EnvSocket overrides the default socket path when --socket is not given.
const EnvSocket = "SECGW_SOCKET"

// Config holds global CLI configuration
type Config struct {
	// SocketPath is the gateway daemon's unix socket
	SocketPath string

	// Timeout bounds each request to the daemon
	Timeout time.Duration

	// Backend asks the daemon for a named backend instead of its default
	Backend string

	// OutputFormat controls output formatting (text, json, yaml)
	OutputFormat string

	// Verbose enables verbose logging
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		SocketPath:   config.DefaultSocketPath,
		Timeout:      30 * time.Second,
		OutputFormat: "text",
	}
}

// applyEnv fills unset values from the environment.
func (c *Config) applyEnv(socketFlagSet bool) {
	if socketFlagSet {
		return
	}
	if v := os.Getenv(EnvSocket); v != "" {
		c.SocketPath = v
	}
}

// CreateClient creates a channel client for the daemon socket.
func (c *Config) CreateClient() (*channel.Client, error) {
	if c.SocketPath == "" {
		return nil, fmt.Errorf("socket path is required")
	}
	return channel.NewClient(&channel.ClientConfig{
		SocketPath: c.SocketPath,
		Timeout:    c.Timeout,
	})
}

// CreateBackend wraps client as a backend that forwards to the daemon.
func (c *Config) CreateBackend(client *channel.Client) (*channel.Backend, error) {
	return channel.New(&channel.Config{
		Client:        client,
		RemoteBackend: c.Backend,
	})
}

// CreateKeyStore wraps client as a key manager backed by the daemon.
func (c *Config) CreateKeyStore(client *channel.Client) (*channel.RemoteKeyStore, error) {
	return channel.NewRemoteKeyStore(client, nil)
}
