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

package audit

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

func TestMemoryAuditor_RecordFillsDefaults(t *testing.T) {
	a := NewMemoryAuditor(0)
	md := map[string]string{"version": "2"}
	ev := &Event{Operation: types.OpRotateKey, KeyIdentifier: "k1", Outcome: OutcomeSuccess, Metadata: md}
	require.NoError(t, a.Record(context.Background(), ev))
	md["version"] = "changed"

	events := a.Events(context.Background(), nil)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, "2", events[0].Metadata["version"])
	assert.Empty(t, ev.ID)

	assert.ErrorIs(t, a.Record(context.Background(), nil), ErrNilEvent)
}

func TestMemoryAuditor_RingDropsOldest(t *testing.T) {
	a := NewMemoryAuditor(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Record(context.Background(), &Event{
			Operation:     types.OpHash,
			Outcome:       OutcomeSuccess,
			CorrelationID: fmt.Sprint(i),
		}))
	}

	assert.Equal(t, 3, a.Len())
	events := a.Events(context.Background(), nil)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"2", "3", "4"}, []string{events[0].CorrelationID, events[1].CorrelationID, events[2].CorrelationID})
	assert.Equal(t, int64(5), a.Count(types.OpHash, OutcomeSuccess))
}

func TestMemoryAuditor_Query(t *testing.T) {
	a := NewMemoryAuditor(16)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	record := func(op types.OperationKind, backend, id string, outcome Outcome, at time.Time) {
		require.NoError(t, a.Record(ctx, &Event{Operation: op, Backend: backend, KeyIdentifier: id, Outcome: outcome, Timestamp: at}))
	}
	record(types.OpGenerateKey, "keystore", "k1", OutcomeSuccess, base)
	record(types.OpEncryptSymmetric, "modern", "k1", OutcomeSuccess, base.Add(time.Minute))
	record(types.OpDecryptSymmetric, "modern", "k1", OutcomeFailure, base.Add(2*time.Minute))
	record(types.OpDeleteKey, "keystore", "k2", OutcomeFailure, base.Add(3*time.Minute))

	tests := []struct {
		name  string
		query *Query
		want  int
	}{
		{"all", &Query{}, 4},
		{"by key", &Query{KeyIdentifier: "k1"}, 3},
		{"failures", &Query{Outcome: OutcomeFailure}, 2},
		{"by backend", &Query{Backend: "modern"}, 2},
		{"by operations", &Query{Operations: []types.OperationKind{types.OpGenerateKey, types.OpDeleteKey}}, 2},
		{"since", &Query{Since: base.Add(2 * time.Minute)}, 2},
		{"limit keeps newest", &Query{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, a.Events(ctx, tt.query), tt.want)
		})
	}

	newest := a.Events(ctx, &Query{Limit: 1})
	assert.Equal(t, types.OpDeleteKey, newest[0].Operation)
}

func TestMemoryAuditor_Concurrent(t *testing.T) {
	a := NewMemoryAuditor(64)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = a.Record(context.Background(), &Event{Operation: types.OpSign, Outcome: OutcomeSuccess})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 64, a.Len())
	assert.Equal(t, int64(200), a.Count(types.OpSign, OutcomeSuccess))
}

func TestLogAuditor_Record(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogAdapter(&logger.SlogConfig{Level: logger.LevelDebug, Format: "json", Output: &buf})
	a := NewLogAuditor(log)

	require.NoError(t, a.Record(context.Background(), &Event{
		Operation:     types.OpDecryptSymmetric,
		Backend:       "modern",
		KeyIdentifier: "k1",
		Outcome:       OutcomeFailure,
		FailureKind:   failure.KindDecryptionFailed,
	}))

	out := buf.String()
	assert.Contains(t, out, `"operation":"decryptSymmetric"`)
	assert.Contains(t, out, `"failure":"decryptionFailed"`)
	assert.Contains(t, out, `"key_id":"k1"`)
	assert.Contains(t, out, `"level":"WARN"`)
}
