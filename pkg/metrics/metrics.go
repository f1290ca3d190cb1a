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

// Package metrics provides Prometheus instrumentation for the gateway.
// It exposes per-operation counters and latency histograms, failure
// counters by canonical failure kind, backend health gauges and channel
// server request metrics.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all gateway metrics
	Namespace = "secgateway"

	// Label names
	LabelOperation   = "operation"
	LabelBackend     = "backend"
	LabelStatus      = "status"
	LabelFailureKind = "failure_kind"
	LabelMethod      = "method"
	LabelRoute       = "route"
	LabelStatusCode  = "status_code"

	// Status values
	StatusSuccess = "success"
	StatusFailure = "failure"

	// BackendKeyStore labels operations served by the key store rather
	// than a crypto backend.
	BackendKeyStore = "keystore"
)

var (
	// OperationsTotal counts gateway operations by kind, backend and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of gateway operations by kind, backend, and status",
		},
		[]string{LabelOperation, LabelBackend, LabelStatus},
	)

	// OperationDuration tracks operation latency in seconds. Buckets are
	// tuned for in-process crypto with a tail for channel round trips.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of gateway operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 30},
		},
		[]string{LabelOperation, LabelBackend},
	)

	// FailuresTotal counts failed operations by canonical failure kind.
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "failures_total",
			Help:      "Total number of failed operations by kind, backend, and failure kind",
		},
		[]string{LabelOperation, LabelBackend, LabelFailureKind},
	)

	// KeysTotal is the number of keys held by the key store.
	KeysTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "keys_total",
			Help:      "Number of keys held by the key store",
		},
	)

	// BackendHealthy is 1 for a healthy backend and 0 otherwise.
	BackendHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "backend_healthy",
			Help:      "Indicates whether a backend is healthy (1) or unhealthy (0)",
		},
		[]string{LabelBackend},
	)

	// ChannelRequestsTotal counts channel server requests.
	ChannelRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "channel",
			Name:      "requests_total",
			Help:      "Total number of channel requests by method, route, and status code",
		},
		[]string{LabelMethod, LabelRoute, LabelStatusCode},
	)

	// ChannelRequestDuration tracks channel request latency in seconds.
	ChannelRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "channel",
			Name:      "request_duration_seconds",
			Help:      "Duration of channel requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelRoute},
	)

	// ChannelActiveRequests is the number of in-flight channel requests.
	ChannelActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "channel",
			Name:      "active_requests",
			Help:      "Number of in-flight channel requests",
		},
	)

	// ChannelRateLimitedTotal counts requests rejected by the rate limiter.
	ChannelRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "channel",
			Name:      "rate_limited_total",
			Help:      "Total number of channel requests rejected by rate limiting",
		},
	)

	// Goroutines is updated by the resource collector.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes is updated by the resource collector.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// ServerUptime is the daemon uptime in seconds.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds since startup",
		},
	)

	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordOperation records one operation with its duration in seconds.
//
// Example:
//
//	start := time.Now()
//	res := gw.Execute(ctx, req, "modern")
//	metrics.RecordOperation(req.Kind.String(), "modern", metrics.StatusOf(res.IsSuccess()), time.Since(start).Seconds())
func RecordOperation(operation, backend, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, backend, status).Inc()
	OperationDuration.WithLabelValues(operation, backend).Observe(duration)
}

// RecordFailure records a failed operation by its canonical failure kind.
func RecordFailure(operation, backend, failureKind string) {
	if !enabled.Load() {
		return
	}
	FailuresTotal.WithLabelValues(operation, backend, failureKind).Inc()
}

// StatusOf returns StatusSuccess or StatusFailure.
func StatusOf(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusFailure
}

// SetKeysTotal sets the key store size.
func SetKeysTotal(count int) {
	if !enabled.Load() {
		return
	}
	KeysTotal.Set(float64(count))
}

// SetBackendHealth sets the health gauge of a backend.
func SetBackendHealth(backend string, healthy bool) {
	if !enabled.Load() {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	BackendHealthy.WithLabelValues(backend).Set(value)
}

// RecordChannelRequest records one channel server request.
func RecordChannelRequest(method, route, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	ChannelRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	ChannelRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// RecordRateLimited counts one rate-limited channel request.
func RecordRateLimited() {
	if !enabled.Load() {
		return
	}
	ChannelRateLimitedTotal.Inc()
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
