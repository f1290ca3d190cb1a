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

package server

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-secgateway/internal/config"
	"github.com/jeremyhahn/go-secgateway/pkg/backend/channel"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// socketPath keeps the socket path under the sun_path limit.
func socketPath(t *testing.T, name string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "sgwd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, name)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.Server.SocketPath = socketPath(t, "gw.sock")
	cfg.Metrics.Enabled = false
	return cfg
}

func newServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func startServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s := newServer(t, cfg)
	require.NoError(t, s.Start())
	return s
}

func newClient(t *testing.T, path string) *channel.Client {
	t.Helper()
	client, err := channel.NewClient(&channel.ClientConfig{SocketPath: path, Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gateway.Name = ""

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestNew_DefaultBackends(t *testing.T) {
	s := newServer(t, testConfig(t))

	assert.ElementsMatch(t, []string{"modern", "legacy"}, s.Gateway().BackendNames())
	assert.Equal(t, "modern", s.Gateway().DefaultBackend())
	assert.NotNil(t, s.UnixServer())
	assert.NotNil(t, s.Logger())
}

func TestNew_MockBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backends.Mock.Enabled = true
	s := newServer(t, cfg)

	_, ok := s.Gateway().Backend("mock")
	assert.True(t, ok)
}

func TestServer_Run(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = true
	cfg.Metrics.CollectInterval = 50 * time.Millisecond
	s := newServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	client := newClient(t, cfg.Server.SocketPath)
	require.Eventually(t, func() bool {
		return client.Ping(context.Background()) == nil
	}, 5*time.Second, 20*time.Millisecond)

	st, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secgateway", st.Name)
	assert.Equal(t, "operational", st.State)
	assert.Contains(t, st.Backends, "modern")
	assert.Contains(t, st.Backends, "legacy")

	remote, err := channel.New(&channel.Config{Client: client})
	require.NoError(t, err)
	res := remote.Perform(context.Background(), &types.Request{
		Kind:      types.OpHash,
		InputData: securebytes.FromString("abc"),
	})
	sb, ok := res.Success()
	require.True(t, ok, res.Err())
	sum := sha256.Sum256([]byte("abc"))
	assert.True(t, sb.Data.Equal(securebytes.New(sum[:])))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	_, err = os.Stat(cfg.Server.SocketPath)
	assert.True(t, os.IsNotExist(err))
}

func TestServer_ShutdownIsIdempotent(t *testing.T) {
	s := startServer(t, testConfig(t))

	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Shutdown())
}

func TestServer_StartFailsOnBadSocketDir(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(filepath.Dir(cfg.Server.SocketPath), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
	cfg.Server.SocketPath = filepath.Join(blocker, "gw.sock")

	s := newServer(t, cfg)
	assert.Error(t, s.Run(context.Background()))
}

func TestServer_FileStoragePersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := testConfig(t)
	cfg.KeyStore.Storage = config.StorageFile
	cfg.KeyStore.Path = dir

	first, err := New(cfg)
	require.NoError(t, err)
	_, err = first.Keys().Generate(ctx, "AES", 256, "persisted")
	require.NoError(t, err)
	require.NoError(t, first.Shutdown())

	second := newServer(t, cfg)
	ids, err := second.Keys().List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"persisted"}, ids)

	info, err := second.Keys().Inspect(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, 256, info.SizeBits)
}

func TestServer_ChannelToUpstream(t *testing.T) {
	ctx := context.Background()
	upstreamCfg := testConfig(t)
	upstream := startServer(t, upstreamCfg)

	cfg := testConfig(t)
	cfg.Backends.Channel.Enabled = true
	cfg.Backends.Channel.SocketPath = upstreamCfg.Server.SocketPath
	cfg.Backends.Channel.RemoteBackend = "legacy"
	cfg.Backends.Channel.RemoteKeys = true
	downstream := newServer(t, cfg)

	assert.Contains(t, downstream.Gateway().BackendNames(), "channel")

	id, err := downstream.Keys().Generate(ctx, "AES", 256, "shared-key")
	require.NoError(t, err)
	assert.Equal(t, "shared-key", id)

	ids, err := upstream.Keys().List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared-key"}, ids)

	res := downstream.Gateway().ExecuteOn(ctx, &types.Request{
		Kind:          types.OpEncryptSymmetric,
		KeyIdentifier: "shared-key",
		InputData:     securebytes.FromString("forwarded"),
	}, "channel")
	enc, ok := res.Success()
	require.True(t, ok, res.Err())

	// the local modern backend resolves the key through the upstream store
	res = downstream.Gateway().ExecuteOn(ctx, &types.Request{
		Kind:          types.OpEncryptSymmetric,
		KeyIdentifier: "shared-key",
		InputData:     securebytes.FromString("local"),
	}, "modern")
	local, ok := res.Success()
	require.True(t, ok, res.Err())

	res = downstream.Gateway().ExecuteOn(ctx, &types.Request{
		Kind:          types.OpDecryptSymmetric,
		KeyIdentifier: "shared-key",
		InputData:     local.Data,
	}, "modern")
	plain, ok := res.Success()
	require.True(t, ok, res.Err())
	assert.True(t, plain.Data.Equal(securebytes.FromString("local")))

	res = upstream.Gateway().ExecuteOn(ctx, &types.Request{
		Kind:          types.OpDecryptSymmetric,
		KeyIdentifier: "shared-key",
		InputData:     enc.Data,
	}, "legacy")
	dec, ok := res.Success()
	require.True(t, ok, res.Err())
	assert.True(t, dec.Data.Equal(securebytes.FromString("forwarded")))
}

func TestReload(t *testing.T) {
	s := newServer(t, testConfig(t))
	assert.Equal(t, "error", s.LogLevel())

	next := testConfig(t)
	next.Logging.Level = "debug"
	next.Logging.Format = "json"
	require.NoError(t, s.Reload(next))

	assert.Equal(t, "debug", s.LogLevel())
	assert.Equal(t, slog.LevelDebug, s.level.Level())

	assert.Error(t, s.Reload(nil))

	bad := testConfig(t)
	bad.Logging.Level = "verbose"
	assert.Error(t, s.Reload(bad))
	assert.Equal(t, "debug", s.LogLevel())
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slogLevel(tt.in), tt.in)
	}
}

func TestOpenStorage(t *testing.T) {
	store, err := openStorage(config.KeyStoreConfig{Storage: config.StorageMemory})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = openStorage(config.KeyStoreConfig{Storage: config.StorageFile, Path: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = openStorage(config.KeyStoreConfig{Storage: "etcd"})
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, Version())
}
