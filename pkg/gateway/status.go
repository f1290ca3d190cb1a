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

package gateway

import (
	"context"
	"time"

	"github.com/jeremyhahn/go-secgateway/pkg/health"
	"github.com/jeremyhahn/go-secgateway/pkg/metrics"
)

// State is the overall gateway state.
type State string

const (
	StateOperational State = "operational"
	StateDegraded    State = "degraded"
)

// Status is a read-only diagnostics snapshot. It carries component names
// and health states only, never failure messages or key material.
type Status struct {
	Name       string
	Version    string
	State      State
	StartedAt  time.Time
	Uptime     time.Duration
	Components map[string]health.Status
}

// Status runs the readiness checks and reports the gateway state:
// operational when every check passes, degraded otherwise. Backends
// without a health check are reported healthy.
func (g *Gateway) Status(ctx context.Context) Status {
	results := g.health.Ready(ctx)

	st := Status{
		Name:       g.name,
		Version:    g.version,
		State:      StateOperational,
		StartedAt:  g.health.StartTime(),
		Uptime:     g.health.Uptime(),
		Components: make(map[string]health.Status, len(g.names)+1),
	}
	for _, name := range g.names {
		st.Components[name] = health.StatusHealthy
	}
	for _, r := range results {
		if r.Name == "default" && len(g.health.Names()) == 0 {
			continue
		}
		st.Components[r.Name] = r.Status
	}
	for name, s := range st.Components {
		metrics.SetBackendHealth(name, s == health.StatusHealthy)
		if s != health.StatusHealthy {
			st.State = StateDegraded
		}
	}
	return st
}
