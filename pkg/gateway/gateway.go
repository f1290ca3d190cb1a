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

// Package gateway implements the operation gateway: the single entry point
// that validates canonical requests, routes key lifecycle kinds to the key
// store and everything else to a crypto backend, and returns a canonical
// result.
//
// The gateway holds no mutable state after construction and is safe for
// concurrent use. Per-identifier ordering of key mutations is provided by
// the key store.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jeremyhahn/go-secgateway/pkg/adapters/audit"
	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/backend"
	"github.com/jeremyhahn/go-secgateway/pkg/correlation"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/health"
	"github.com/jeremyhahn/go-secgateway/pkg/keystore"
	"github.com/jeremyhahn/go-secgateway/pkg/metrics"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
	"github.com/jeremyhahn/go-secgateway/pkg/validation"
)

// Config configures a Gateway.
type Config struct {
	// Name and Version are reported by Status.
	Name    string
	Version string

	// Keys serves the key lifecycle kinds and resolves key identifiers.
	Keys keystore.Manager

	// Backends maps a backend name to its implementation.
	Backends map[string]backend.CryptoBackend

	// DefaultBackend is used by ExecuteDefault when the request does not
	// name one. Optional when exactly one backend is configured.
	DefaultBackend string

	// Auditor receives one event per executed request. Optional.
	Auditor audit.Auditor

	// HealthTimeout bounds each backend health check run by Status.
	HealthTimeout time.Duration

	Logger logger.Logger
}

// Gateway dispatches canonical security requests.
type Gateway struct {
	name           string
	version        string
	keys           keystore.Manager
	backends       map[string]backend.CryptoBackend
	names          []string
	defaultBackend string
	auditor        audit.Auditor
	health         *health.Checker
	logger         logger.Logger
}

// New creates a gateway. The backend registry is copied and fixed for the
// lifetime of the gateway.
func New(cfg *Config) (*Gateway, error) {
	if cfg == nil || (len(cfg.Backends) == 0 && cfg.Keys == nil) {
		return nil, ErrNoBackends
	}

	g := &Gateway{
		name:           cfg.Name,
		version:        cfg.Version,
		keys:           cfg.Keys,
		backends:       make(map[string]backend.CryptoBackend, len(cfg.Backends)),
		defaultBackend: cfg.DefaultBackend,
		auditor:        cfg.Auditor,
		health:         health.NewChecker(cfg.HealthTimeout),
		logger:         cfg.Logger,
	}
	if g.name == "" {
		g.name = "secgateway"
	}
	if g.logger == nil {
		g.logger = logger.NoOp()
	}

	for name, b := range cfg.Backends {
		if err := validation.ValidateBackendName(name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBackendName, err)
		}
		if b == nil {
			return nil, fmt.Errorf("%w: %q is nil", ErrInvalidBackendName, name)
		}
		g.backends[name] = b
		g.names = append(g.names, name)
		if hc, ok := b.(backend.HealthChecker); ok {
			g.health.RegisterCheck(name, health.ErrorCheck(name, hc.Health))
		}
	}
	sort.Strings(g.names)

	if g.defaultBackend == "" && len(g.names) == 1 {
		g.defaultBackend = g.names[0]
	}
	if g.defaultBackend != "" {
		if _, ok := g.backends[g.defaultBackend]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDefault, g.defaultBackend)
		}
	}

	if g.keys != nil {
		g.health.RegisterCheck(metrics.BackendKeyStore, health.ErrorCheck(metrics.BackendKeyStore, func(ctx context.Context) error {
			_, err := g.keys.List(ctx)
			return err
		}))
	}
	g.health.MarkStarted()
	return g, nil
}

// Execute validates req and dispatches it: key lifecycle kinds go to the
// key store, everything else to b. b is also used to re-encrypt a rotation
// payload. A request that fails validation never reaches b or the key
// store.
func (g *Gateway) Execute(ctx context.Context, req *types.Request, b backend.CryptoBackend) types.Result {
	label := ""
	if b != nil {
		label = b.Type().String()
	}
	return g.execute(ctx, req, b, label)
}

// ExecuteOn executes req on the backend registered as name.
func (g *Gateway) ExecuteOn(ctx context.Context, req *types.Request, name string) types.Result {
	b, ok := g.backends[name]
	if !ok {
		f := failure.Core(failure.CoreInvalidInput, "backend %q is not configured", validation.SanitizeForLog(name)).
			WithContext("backend", validation.SanitizeForLog(name))
		return g.finish(ctx, req, name, time.Now(), types.Fail(f))
	}
	return g.execute(ctx, req, b, name)
}

// ExecuteDefault executes req on the backend named by its "backend" option,
// or on the default backend.
func (g *Gateway) ExecuteDefault(ctx context.Context, req *types.Request) types.Result {
	name := req.Option(types.OptionBackend)
	if name == "" {
		name = g.defaultBackend
	}
	if name == "" {
		// lifecycle kinds need no backend unless a rotation payload is
		// re-encrypted
		return g.execute(ctx, req, nil, metrics.BackendKeyStore)
	}
	return g.ExecuteOn(ctx, req, name)
}

// Backend returns the backend registered as name.
func (g *Gateway) Backend(name string) (backend.CryptoBackend, bool) {
	b, ok := g.backends[name]
	return b, ok
}

// BackendNames returns the registered backend names in lexical order.
func (g *Gateway) BackendNames() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// DefaultBackend returns the name of the default backend, or "".
func (g *Gateway) DefaultBackend() string {
	return g.defaultBackend
}

// Keys returns the key manager, or nil.
func (g *Gateway) Keys() keystore.Manager {
	return g.keys
}

// Health returns the checker behind Status.
func (g *Gateway) Health() *health.Checker {
	return g.health
}

// Close closes every backend. The key store is owned by the caller.
func (g *Gateway) Close() error {
	g.health.MarkNotStarted()
	var errs []error
	for _, name := range g.names {
		if err := g.backends[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close backend %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (g *Gateway) execute(ctx context.Context, req *types.Request, b backend.CryptoBackend, label string) types.Result {
	start := time.Now()
	ctx, _ = correlation.Ensure(ctx)

	if f := types.Validate(req); f != nil {
		return g.finish(ctx, req, label, start, types.Fail(f))
	}

	if req.Kind.IsKeyLifecycle() {
		return g.finish(ctx, req, metrics.BackendKeyStore, start, g.lifecycle(ctx, req, b))
	}
	return g.finish(ctx, req, label, start, backend.Invoke(ctx, b, req, g.logger))
}

// finish records metrics, the audit event and a log line for res.
func (g *Gateway) finish(ctx context.Context, req *types.Request, label string, start time.Time, res types.Result) types.Result {
	elapsed := time.Since(start)
	op := "invalid"
	keyID := ""
	if req != nil {
		op = req.Kind.String()
		keyID = req.KeyIdentifier
	}

	metrics.RecordOperation(op, label, metrics.StatusOf(res.IsSuccess()), elapsed.Seconds())

	event := &audit.Event{
		Backend:       label,
		KeyIdentifier: keyID,
		Outcome:       audit.OutcomeSuccess,
		CorrelationID: correlation.ID(ctx),
		Duration:      elapsed,
	}
	if req != nil {
		event.Operation = req.Kind
	}
	if s, ok := res.Success(); ok && s.KeyIdentifier != "" {
		event.KeyIdentifier = s.KeyIdentifier
	}

	if f, failed := res.Failure(); failed {
		metrics.RecordFailure(op, label, f.Kind.String())
		event.Outcome = audit.OutcomeFailure
		event.FailureKind = f.Kind
		g.logger.WarnContext(ctx, "operation failed",
			logger.String("operation", op),
			logger.String("backend", label),
			logger.String("failure", f.Kind.String()),
			logger.Int("code", f.Code),
			logger.Duration("duration", elapsed))
	} else {
		g.logger.DebugContext(ctx, "operation completed",
			logger.String("operation", op),
			logger.String("backend", label),
			logger.Duration("duration", elapsed))
	}

	if g.auditor != nil {
		if err := g.auditor.Record(ctx, event); err != nil {
			g.logger.WarnContext(ctx, "audit record failed", logger.Error(err))
		}
	}
	return res
}
