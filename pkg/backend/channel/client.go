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

package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/awnumar/memguard"

	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/correlation"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// DefaultTimeout bounds an exchange when the caller's context has no
// deadline.
const DefaultTimeout = 30 * time.Second

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 16 << 20

// ClientConfig configures a channel client.
type ClientConfig struct {
	// SocketPath is the unix socket the gateway daemon listens on.
	SocketPath string

	// Timeout applies when the caller's context has no deadline. Zero
	// selects DefaultTimeout.
	Timeout time.Duration

	Logger logger.Logger

	// Transport overrides the unix socket transport. Tests use it to reach
	// an httptest server.
	Transport http.RoundTripper
}

// Client speaks the gateway channel protocol. Transport failures are
// returned as *failure.ChannelError; operation failures arrive inside the
// WireResult.
type Client struct {
	http    *http.Client
	timeout time.Duration
	logger  logger.Logger
}

// NewClient creates a channel client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("channel: nil client config")
	}
	transport := cfg.Transport
	if transport == nil {
		if cfg.SocketPath == "" {
			return nil, errors.New("channel: socket path is required")
		}
		socket := cfg.SocketPath
		transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NoOp()
	}
	return &Client{
		http:    &http.Client{Transport: transport},
		timeout: timeout,
		logger:  log,
	}, nil
}

// Close drops idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Execute sends one request. listKeys, the only idempotent read, is
// retried once when the connection drops mid-exchange.
func (c *Client) Execute(ctx context.Context, wreq *WireRequest) (*WireResult, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	body, err := json.Marshal(wreq)
	if err != nil {
		return nil, failure.WrapChannelError(failure.ChannelEncodingFailed, err, "encode request")
	}
	defer memguard.WipeBytes(body)

	var res WireResult
	err = c.do(ctx, http.MethodPost, PathExecute, body, &res)
	var ce *failure.ChannelError
	if err != nil && wreq.Kind == types.OpListKeys && errors.As(err, &ce) && ce.Interrupted() {
		c.logger.WarnContext(ctx, "channel interrupted, retrying listKeys once")
		res = WireResult{}
		err = c.do(ctx, http.MethodPost, PathExecute, body, &res)
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Status fetches the remote status snapshot.
func (c *Client) Status(ctx context.Context) (*WireStatus, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	var st WireStatus
	if err := c.do(ctx, http.MethodGet, PathStatus, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Ping checks that the daemon answers on PathHealth.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	var out map[string]any
	return c.do(ctx, http.MethodGet, PathHealth, nil, &out)
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// do performs one HTTP exchange and decodes the JSON body into out.
// Responses carrying a WireResult are decoded whatever their status.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	// the host is ignored by the unix dialer
	req, err := http.NewRequestWithContext(ctx, method, "http://gateway"+path, reader)
	if err != nil {
		return failure.WrapChannelError(failure.ChannelEncodingFailed, err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	ctx, _ = correlation.Ensure(ctx)
	correlation.Inject(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close response body", logger.Error(closeErr))
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return transportError(ctx, err)
	}
	defer memguard.WipeBytes(raw)

	if err := statusError(resp.StatusCode); err != nil {
		// the server still describes execute failures in a WireResult
		if _, isResult := out.(*WireResult); !isResult || json.Unmarshal(raw, out) != nil {
			return err
		}
		if r := out.(*WireResult); r.Error == nil {
			return err
		}
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return failure.WrapChannelError(failure.ChannelDecodingFailed, err, "decode response")
	}
	return nil
}

// statusError maps transport-level HTTP statuses. Statuses that carry an
// operation failure return nil from the caller's perspective once the body
// decodes.
func statusError(code int) *failure.ChannelError {
	switch {
	case code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return failure.NewChannelError(failure.ChannelRateLimited, "server is rate limiting")
	case code == http.StatusUnauthorized:
		return failure.NewChannelError(failure.ChannelUnauthorized, "")
	case code == http.StatusForbidden:
		return failure.NewChannelError(failure.ChannelAccessDenied, "")
	case code == http.StatusServiceUnavailable || code == http.StatusBadGateway:
		return failure.NewChannelError(failure.ChannelServiceUnavailable, "status %d", code)
	case code == http.StatusGatewayTimeout:
		return failure.NewChannelError(failure.ChannelTimeout, "status %d", code)
	}
	return failure.NewChannelError(failure.ChannelUnknown, "unexpected status %d", code)
}

// transportError classifies a failed exchange.
func transportError(ctx context.Context, err error) *failure.ChannelError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return failure.WrapChannelError(failure.ChannelTimeout, err, "deadline exceeded")
		}
		return failure.WrapChannelError(failure.ChannelTimeout, err, "operation cancelled")
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return failure.WrapChannelError(failure.ChannelServiceUnavailable, err, fmt.Sprintf("cannot reach gateway: %v", opErr.Err))
	}
	return failure.WrapChannelError(failure.ChannelConnectionInterrupted, err, "connection lost")
}
