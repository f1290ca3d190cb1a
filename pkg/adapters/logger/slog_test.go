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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-secgateway/pkg/correlation"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(buf *bytes.Buffer, level Level) *SlogAdapter {
	return NewSlogAdapter(&SlogConfig{Level: level, Format: "json", Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Level {
	t.Helper()
	l, err := ParseLevel(s)
	require.NoError(t, err)
	return l
}

func TestSlogAdapter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := newJSONLogger(&buf, LevelWarn)

	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["msg"])
	assert.Equal(t, "ERROR", lines[1]["level"])
}

func TestSlogAdapter_FieldTypes(t *testing.T) {
	var buf bytes.Buffer
	log := newJSONLogger(&buf, LevelDebug)

	log.Info("fields",
		String("backend", "modern"),
		Int("count", 3),
		Int64("bytes", 1024),
		Bool("ok", true),
		Duration("elapsed", 2*time.Second),
		Error(errors.New("boom")),
		Strings("ids", []string{"a", "b"}),
		Stringer("threshold", LevelWarn),
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "modern", line["backend"])
	assert.EqualValues(t, 3, line["count"])
	assert.EqualValues(t, 1024, line["bytes"])
	assert.Equal(t, true, line["ok"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, []any{"a", "b"}, line["ids"])
	assert.Equal(t, "warn", line["threshold"])
	assert.EqualValues(t, float64(2*time.Second), line["elapsed"])
}

func TestSlogAdapter_WithDoesNotDuplicate(t *testing.T) {
	var buf bytes.Buffer
	log := newJSONLogger(&buf, LevelInfo).With(String("component", "gateway")).WithError(errors.New("x"))

	log.Info("hello", Int("n", 1))

	assert.Equal(t, 1, strings.Count(buf.String(), `"component"`))
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "gateway", lines[0]["component"])
	assert.Equal(t, "x", lines[0]["error"])
}

func TestSlogAdapter_ContextCorrelation(t *testing.T) {
	var buf bytes.Buffer
	log := newJSONLogger(&buf, LevelDebug)

	ctx := correlation.WithID(context.Background(), "corr-7")
	log.InfoContext(ctx, "with id")
	log.InfoContext(context.Background(), "without id")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "corr-7", lines[0]["correlation_id"])
	assert.NotContains(t, lines[1], "correlation_id")
}

func TestSlogAdapter_RedactsSecureBytes(t *testing.T) {
	var buf bytes.Buffer
	log := newJSONLogger(&buf, LevelInfo)

	log.Info("material", Any("key", securebytes.FromString("hunter2")))
	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "REDACTED")
}

func TestSlogAdapter_WrapsExistingLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	log := NewSlogAdapter(&SlogConfig{Logger: base})

	log.Info("text")
	assert.Contains(t, buf.String(), "msg=text")
}

func TestNoOp(t *testing.T) {
	log := NoOp()
	log.Info("discarded")
	log.ErrorContext(context.Background(), "discarded")
	assert.Equal(t, log, log.With(String("a", "b")))
	assert.Equal(t, log, log.WithError(errors.New("x")))
}
