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

// Package channel implements the channel-backed gateway backend: requests
// are serialised to JSON and executed by a remote gateway daemon listening
// on a unix socket.
//
// Two failure classes reach the caller. Operation failures reported by the
// remote gateway arrive as protocol-domain errors and keep their kind.
// Transport failures (unreachable socket, dropped connection, timeout) are
// channel-domain errors, mapped to channelUnavailable or timeout.
package channel

import (
	"context"

	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/backend"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// Config configures the channel backend.
type Config struct {
	// Client is the channel client. Required.
	Client *Client

	// RemoteBackend names the backend the remote gateway should use when
	// the request does not select one through types.OptionBackend.
	RemoteBackend string

	// Capabilities overrides the advertised kinds. Defaults to every
	// non-lifecycle kind; lifecycle kinds go through RemoteKeyStore.
	Capabilities backend.Capabilities

	Logger logger.Logger
}

// Backend is the channel-backed CryptoBackend.
type Backend struct {
	client        *Client
	remoteBackend string
	caps          backend.Capabilities
	logger        logger.Logger
}

var (
	_ backend.CryptoBackend = (*Backend)(nil)
	_ backend.HealthChecker = (*Backend)(nil)
)

// New creates a channel backend.
func New(cfg *Config) (*Backend, error) {
	if cfg == nil || cfg.Client == nil {
		return nil, ErrNoClient
	}
	b := &Backend{
		client:        cfg.Client,
		remoteBackend: cfg.RemoteBackend,
		caps:          cfg.Capabilities,
		logger:        cfg.Logger,
	}
	if b.caps == nil {
		b.caps = backend.AllCapabilities().Without(
			types.OpGenerateKey,
			types.OpStoreKey,
			types.OpRetrieveKey,
			types.OpRotateKey,
			types.OpDeleteKey,
			types.OpListKeys,
		)
	}
	if b.logger == nil {
		b.logger = logger.NoOp()
	}
	return b, nil
}

// Type implements backend.CryptoBackend.
func (b *Backend) Type() backend.Type {
	return backend.TypeChannel
}

// Capabilities implements backend.CryptoBackend.
func (b *Backend) Capabilities() backend.Capabilities {
	return b.caps
}

// Close implements backend.CryptoBackend.
func (b *Backend) Close() error {
	return b.client.Close()
}

// Health implements backend.HealthChecker.
func (b *Backend) Health(ctx context.Context) error {
	return b.client.Ping(ctx)
}

// Perform implements backend.CryptoBackend.
func (b *Backend) Perform(ctx context.Context, req *types.Request) types.Result {
	return exchange(ctx, b.client, b.logger, b.encode(req))
}

func (b *Backend) encode(req *types.Request) *WireRequest {
	w := EncodeRequest(req)
	if b.remoteBackend != "" && w.Options[types.OptionBackend] == "" {
		if w.Options == nil {
			w.Options = make(map[string]string, 1)
		}
		w.Options[types.OptionBackend] = b.remoteBackend
	}
	return w
}

// exchange sends w, wipes it, and converts the outcome into a canonical
// result.
func exchange(ctx context.Context, c *Client, log logger.Logger, w *WireRequest) types.Result {
	defer w.Wipe()

	res, err := c.Execute(ctx, w)
	if err != nil {
		f := failure.ToCanonical(err).WithContext("operation", w.Kind.String())
		log.WarnContext(ctx, "channel exchange failed",
			logger.String("operation", w.Kind.String()),
			logger.String("failure", f.Kind.String()))
		return types.Fail(f)
	}
	return res.Decode()
}
