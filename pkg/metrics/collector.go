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

package metrics

import (
	"context"
	"runtime"
	"time"
)

// KeyCounter reports the number of keys held by the key store.
type KeyCounter func(ctx context.Context) (int, error)

// ResourceCollector periodically updates runtime gauges, the uptime gauge
// and, when a KeyCounter is set, the key store size.
type ResourceCollector struct {
	ctx      context.Context
	cancel   context.CancelFunc
	interval time.Duration
	started  time.Time
	keys     KeyCounter
}

// NewResourceCollector creates a collector that samples every interval.
// keys may be nil.
func NewResourceCollector(ctx context.Context, interval time.Duration, keys KeyCounter) *ResourceCollector {
	collectorCtx, cancel := context.WithCancel(ctx)
	return &ResourceCollector{
		ctx:      collectorCtx,
		cancel:   cancel,
		interval: interval,
		started:  time.Now(),
		keys:     keys,
	}
}

// Start collects until Stop is called or the parent context is cancelled.
// It blocks.
func (rc *ResourceCollector) Start() {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	rc.collect()

	for {
		select {
		case <-rc.ctx.Done():
			return
		case <-ticker.C:
			rc.collect()
		}
	}
}

// Stop halts the collector.
func (rc *ResourceCollector) Stop() {
	rc.cancel()
}

func (rc *ResourceCollector) collect() {
	if !IsEnabled() {
		return
	}

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	MemoryAllocBytes.Set(float64(memStats.Alloc))

	ServerUptime.Set(time.Since(rc.started).Seconds())

	if rc.keys != nil {
		if n, err := rc.keys(rc.ctx); err == nil {
			SetKeysTotal(n)
		}
	}
}

// StartResourceCollector creates a collector and runs it in a goroutine.
func StartResourceCollector(ctx context.Context, interval time.Duration, keys KeyCounter) *ResourceCollector {
	collector := NewResourceCollector(ctx, interval, keys)
	go collector.Start()
	return collector
}
