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

package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_ReadyNoChecks(t *testing.T) {
	c := NewChecker(0)
	results := c.Ready(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, "default", results[0].Name)
	assert.True(t, c.IsHealthy(context.Background()))
}

func TestChecker_ReadyOrderedAndNamed(t *testing.T) {
	c := NewChecker(time.Second)
	c.RegisterCheck("modern", ErrorCheck("ignored", func(context.Context) error { return nil }))
	c.RegisterCheck("channel", ErrorCheck("channel", func(context.Context) error { return errors.New("dial unix: no such file") }))
	c.RegisterCheck("legacy", func(context.Context) CheckResult { return CheckResult{Status: StatusDegraded} })
	c.RegisterCheck("nil", nil)

	results := c.Ready(context.Background())
	require.Len(t, results, 3)
	assert.Equal(t, []string{"channel", "legacy", "modern"}, []string{results[0].Name, results[1].Name, results[2].Name})
	assert.Equal(t, StatusUnhealthy, results[0].Status)
	assert.Contains(t, results[0].Error, "no such file")
	assert.Equal(t, StatusDegraded, results[1].Status)
	assert.Equal(t, StatusHealthy, results[2].Status)
	assert.False(t, c.IsHealthy(context.Background()))

	assert.Equal(t, []string{"channel", "legacy", "modern"}, c.Names())
	c.UnregisterCheck("channel")
	assert.Equal(t, []string{"legacy", "modern"}, c.Names())
}

func TestChecker_SlowCheckTimesOut(t *testing.T) {
	c := NewChecker(20 * time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	c.RegisterCheck("stuck", func(context.Context) CheckResult {
		<-release
		return CheckResult{Status: StatusHealthy}
	})

	start := time.Now()
	results := c.Ready(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, StatusUnhealthy, results[0].Status)
	assert.Equal(t, "stuck", results[0].Name)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestChecker_Startup(t *testing.T) {
	c := NewChecker(0)
	assert.Equal(t, StatusUnhealthy, c.Startup(context.Background()).Status)
	assert.False(t, c.IsStarted())

	c.MarkStarted()
	assert.Equal(t, StatusHealthy, c.Startup(context.Background()).Status)
	assert.True(t, c.IsStarted())

	c.MarkNotStarted()
	assert.False(t, c.IsStarted())
}

func TestChecker_Live(t *testing.T) {
	c := NewChecker(0)
	assert.Equal(t, StatusHealthy, c.Live(context.Background()).Status)
	assert.GreaterOrEqual(t, c.Uptime(), time.Duration(0))
	assert.False(t, c.StartTime().IsZero())
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make([]CheckResult, len(tt.statuses))
			for i, s := range tt.statuses {
				results[i] = CheckResult{Status: s}
			}
			assert.Equal(t, tt.want, AggregateStatus(results))
		})
	}
}
