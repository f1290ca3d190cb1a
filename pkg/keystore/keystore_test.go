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

package keystore

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/storage"
	"github.com/jeremyhahn/go-secgateway/pkg/storage/memory"
)

// failingStorage wraps a backend and fails writes on demand.
type failingStorage struct {
	storage.Backend
	failPut atomic.Bool
}

func (f *failingStorage) Put(key string, value []byte, opts *storage.Options) error {
	if f.failPut.Load() {
		return errors.New("disk full")
	}
	return f.Backend.Put(key, value, opts)
}

func newTestStore(t *testing.T, backend storage.Backend) *KeyStore {
	t.Helper()
	ks, err := New(&Config{Storage: backend})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ks.Close() })
	return ks
}

func TestKeyStore_GenerateAndRetrieve(t *testing.T) {
	ctx := context.Background()
	ks := newTestStore(t, memory.New())

	tests := []struct {
		algorithm string
		sizeBits  int
		wantLen   int
	}{
		{"AES", 0, 32},
		{"aes", 128, 16},
		{"AES-GCM", 192, 24},
		{"AES-128-GCM", 0, 16},
		{"AES-192-GCM", 0, 24},
		{"aes-256-gcm", 0, 32},
		{"AES-128-GCM", 128, 16},
		{"CHACHA20", 0, 32},
		{"HMAC", 512, 64},
		{"ED25519", 0, 32},
		{"X25519", 256, 32},
		{"RAW", 80, 10},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s-%d", tt.algorithm, tt.sizeBits), func(t *testing.T) {
			id, err := ks.Generate(ctx, tt.algorithm, tt.sizeBits, "")
			require.NoError(t, err)
			assert.NotEmpty(t, id)

			material, err := ks.Retrieve(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, material.Len())

			info, err := ks.Inspect(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, 1, info.Version)
			assert.Equal(t, tt.wantLen*8, info.SizeBits)
		})
	}
}

func TestKeyStore_GenerateECDSA(t *testing.T) {
	ctx := context.Background()
	ks := newTestStore(t, nil)

	id, err := ks.Generate(ctx, "ECDSA-P256", 0, "signing-key")
	require.NoError(t, err)
	assert.Equal(t, "signing-key", id)

	material, err := ks.Retrieve(ctx, id)
	require.NoError(t, err)
	_, err = x509.ParsePKCS8PrivateKey(material.Bytes())
	assert.NoError(t, err)
}

func TestKeyStore_GenerateRejects(t *testing.T) {
	ctx := context.Background()
	ks := newTestStore(t, nil)

	tests := []struct {
		name      string
		algorithm string
		sizeBits  int
		id        string
		wantKind  failure.Kind
	}{
		{"unknown algorithm", "DES", 0, "", failure.KindUnsupportedOperation},
		{"bad AES size", "AES", 100, "", failure.KindInvalidInput},
		{"bad HMAC size", "HMAC", 64, "", failure.KindInvalidInput},
		{"bad RSA size", "RSA", 1024, "", failure.KindInvalidInput},
		{"bad identifier", "AES", 0, "../escape", failure.KindInvalidInput},
		{"size contradicts alias", "AES-128-GCM", 256, "", failure.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ks.Generate(ctx, tt.algorithm, tt.sizeBits, tt.id)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, failure.KindOf(err))
		})
	}
}

func TestKeyStore_GenerateDuplicate(t *testing.T) {
	ctx := context.Background()
	ks := newTestStore(t, nil)

	_, err := ks.Generate(ctx, "AES", 0, "dup")
	require.NoError(t, err)

	_, err = ks.Generate(ctx, "AES", 0, "dup")
	assert.ErrorIs(t, err, failure.ErrDuplicateIdentifier)
}

func TestKeyStore_StoreRetrieveRoundTrip(t *testing.T) {
	ctx := context.Background()
	ks := newTestStore(t, memory.New())
	material := securebytes.FromString("0123456789abcdef")

	require.NoError(t, ks.Store(ctx, material, "imported", StoreOptions{Algorithm: "aes-gcm"}))

	got, err := ks.Retrieve(ctx, "imported")
	require.NoError(t, err)
	assert.True(t, got.Equal(material))

	info, err := ks.Inspect(ctx, "imported")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmAES, info.Algorithm)
	assert.Equal(t, 128, info.SizeBits)
}

func TestKeyStore_StoreOverwrite(t *testing.T) {
	ctx := context.Background()
	ks := newTestStore(t, nil)

	require.NoError(t, ks.Store(ctx, securebytes.FromString("first"), "k", StoreOptions{}))

	err := ks.Store(ctx, securebytes.FromString("second"), "k", StoreOptions{})
	assert.ErrorIs(t, err, failure.ErrDuplicateIdentifier)

	got, err := ks.Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.True(t, got.Equal(securebytes.FromString("first")))

	require.NoError(t, ks.Store(ctx, securebytes.FromString("second"), "k", StoreOptions{Overwrite: true}))
	got, err = ks.Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.True(t, got.Equal(securebytes.FromString("second")))

	info, err := ks.Inspect(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Version)
}

func TestKeyStore_StoreEmptyMaterial(t *testing.T) {
	ks := newTestStore(t, nil)
	err := ks.Store(context.Background(), securebytes.New(nil), "k", StoreOptions{})
	assert.ErrorIs(t, err, failure.ErrInvalidInput)
}

func TestKeyStore_RetrieveMissing(t *testing.T) {
	ks := newTestStore(t, nil)
	_, err := ks.Retrieve(context.Background(), "missing")
	assert.ErrorIs(t, err, failure.ErrKeyNotFound)
}

func TestKeyStore_DeleteThenRetrieve(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	ks := newTestStore(t, backend)

	_, err := ks.Generate(ctx, "AES", 0, "gone")
	require.NoError(t, err)
	require.NoError(t, ks.Delete(ctx, "gone"))

	_, err = ks.Retrieve(ctx, "gone")
	assert.ErrorIs(t, err, failure.ErrKeyNotFound)

	exists, err := backend.Exists(storage.KeyPath("gone"))
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, ks.Delete(ctx, "gone"), failure.ErrKeyNotFound)
}

func TestKeyStore_ListSorted(t *testing.T) {
	ctx := context.Background()
	ks := newTestStore(t, nil)

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		_, err := ks.Generate(ctx, "HMAC", 0, id)
		require.NoError(t, err)
	}

	ids, err := ks.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, ids)

	infos, err := ks.ListInfo(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "alpha", infos[0].Identifier)
}

func TestKeyStore_Rotate(t *testing.T) {
	ctx := context.Background()
	ks := newTestStore(t, memory.New())

	_, err := ks.Generate(ctx, "AES", 256, "rotating")
	require.NoError(t, err)
	before, err := ks.Retrieve(ctx, "rotating")
	require.NoError(t, err)

	var seenOld, seenNew *securebytes.SecureBytes
	reencrypt := func(_ context.Context, payload, oldKey, newKey *securebytes.SecureBytes, algorithm string) (*securebytes.SecureBytes, error) {
		assert.Equal(t, AlgorithmAES, algorithm)
		seenOld = oldKey.Clone()
		seenNew = newKey.Clone()
		return securebytes.FromString("re:" + string(payload.Bytes())), nil
	}

	rot, err := ks.Rotate(ctx, "rotating", securebytes.FromString("payload"), reencrypt)
	require.NoError(t, err)
	assert.Equal(t, 2, rot.Info.Version)
	assert.False(t, rot.Info.RotatedAt.IsZero())
	assert.Equal(t, "re:payload", string(rot.Reencrypted.Bytes()))

	assert.True(t, seenOld.Equal(before))
	assert.True(t, seenNew.Equal(rot.NewKey))
	assert.False(t, rot.NewKey.Equal(before))

	after, err := ks.Retrieve(ctx, "rotating")
	require.NoError(t, err)
	assert.True(t, after.Equal(rot.NewKey))
}

func TestKeyStore_RotateWithoutPayload(t *testing.T) {
	ctx := context.Background()
	ks := newTestStore(t, nil)

	_, err := ks.Generate(ctx, "HMAC", 384, "mac")
	require.NoError(t, err)

	rot, err := ks.Rotate(ctx, "mac", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, rot.Reencrypted)
	assert.Equal(t, 48, rot.NewKey.Len())
}

func TestKeyStore_RotateFailedReencryptLeavesKey(t *testing.T) {
	ctx := context.Background()
	ks := newTestStore(t, nil)

	_, err := ks.Generate(ctx, "AES", 0, "stable")
	require.NoError(t, err)
	before, err := ks.Retrieve(ctx, "stable")
	require.NoError(t, err)

	reencrypt := func(context.Context, *securebytes.SecureBytes, *securebytes.SecureBytes, *securebytes.SecureBytes, string) (*securebytes.SecureBytes, error) {
		return nil, failure.Core(failure.CoreDecryptionFailed, "bad tag")
	}
	_, err = ks.Rotate(ctx, "stable", securebytes.FromString("payload"), reencrypt)
	assert.ErrorIs(t, err, failure.ErrDecryptionFailed)

	after, err := ks.Retrieve(ctx, "stable")
	require.NoError(t, err)
	assert.True(t, after.Equal(before))

	info, err := ks.Inspect(ctx, "stable")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Version)
}

func TestKeyStore_RotateImportedECDSAFallsBackToDefaultSize(t *testing.T) {
	ctx := context.Background()
	ks := newTestStore(t, nil)

	require.NoError(t, ks.Store(ctx, securebytes.FromString("not really der"), "imported-ec", StoreOptions{Algorithm: "ECDSA"}))

	rot, err := ks.Rotate(ctx, "imported-ec", nil, nil)
	require.NoError(t, err)
	_, err = x509.ParsePKCS8PrivateKey(rot.NewKey.Bytes())
	assert.NoError(t, err)
	assert.Equal(t, 256, rot.Info.SizeBits)
}

func TestKeyStore_RotateMissing(t *testing.T) {
	ks := newTestStore(t, nil)
	_, err := ks.Rotate(context.Background(), "missing", nil, nil)
	assert.ErrorIs(t, err, failure.ErrKeyNotFound)
}

func TestKeyStore_ConcurrentRotationsSerialise(t *testing.T) {
	ctx := context.Background()
	ks := newTestStore(t, memory.New())

	_, err := ks.Generate(ctx, "AES", 0, "hot")
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	versions := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rot, err := ks.Rotate(ctx, "hot", nil, nil)
			if assert.NoError(t, err) {
				versions <- rot.Info.Version
			}
		}()
	}
	wg.Wait()
	close(versions)

	seen := make(map[int]bool)
	for v := range versions {
		assert.False(t, seen[v], "version %d observed twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, workers)

	info, err := ks.Inspect(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, workers+1, info.Version)
}

func TestKeyStore_ReadersDuringRotation(t *testing.T) {
	ctx := context.Background()
	ks := newTestStore(t, nil)

	_, err := ks.Generate(ctx, "AES", 0, "busy")
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			material, err := ks.Retrieve(ctx, "busy")
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, 32, material.Len())
		}
	}()

	for i := 0; i < 20; i++ {
		_, err := ks.Rotate(ctx, "busy", nil, nil)
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()
}

func TestKeyStore_CancelledBeforeAcquire(t *testing.T) {
	ks := newTestStore(t, nil)
	_, err := ks.Generate(context.Background(), "AES", 0, "k")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = ks.Rotate(ctx, "k", nil, nil)
	assert.ErrorIs(t, err, failure.ErrTimeout)

	_, err = ks.Generate(ctx, "AES", 0, "other")
	assert.ErrorIs(t, err, failure.ErrTimeout)

	info, err := ks.Inspect(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Version)

	_, err = ks.Inspect(context.Background(), "other")
	assert.ErrorIs(t, err, failure.ErrKeyNotFound)
}

func TestKeyStore_DeadlineWhileWaiting(t *testing.T) {
	ks := newTestStore(t, nil)
	_, err := ks.Generate(context.Background(), "AES", 0, "held")
	require.NoError(t, err)

	unlock, err := ks.acquire(context.Background(), "held")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = ks.Rotate(ctx, "held", nil, nil)
	assert.ErrorIs(t, err, failure.ErrTimeout)
}

func TestKeyStore_StorageFailureAborts(t *testing.T) {
	ctx := context.Background()
	backend := &failingStorage{Backend: memory.New()}
	ks := newTestStore(t, backend)

	_, err := ks.Generate(ctx, "AES", 0, "persisted")
	require.NoError(t, err)
	before, err := ks.Retrieve(ctx, "persisted")
	require.NoError(t, err)

	backend.failPut.Store(true)

	_, err = ks.Rotate(ctx, "persisted", nil, nil)
	assert.ErrorIs(t, err, failure.ErrStorageFailed)

	_, err = ks.Generate(ctx, "AES", 0, "never")
	assert.ErrorIs(t, err, failure.ErrStorageFailed)

	after, err := ks.Retrieve(ctx, "persisted")
	require.NoError(t, err)
	assert.True(t, after.Equal(before))

	_, err = ks.Retrieve(ctx, "never")
	assert.ErrorIs(t, err, failure.ErrKeyNotFound)
}

func TestKeyStore_ReloadsPersistedRecords(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()

	first, err := New(&Config{Storage: backend})
	require.NoError(t, err)
	_, err = first.Generate(ctx, "HMAC", 0, "survivor")
	require.NoError(t, err)
	_, err = first.Rotate(ctx, "survivor", nil, nil)
	require.NoError(t, err)
	want, err := first.Retrieve(ctx, "survivor")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newTestStore(t, backend)
	got, err := second.Retrieve(ctx, "survivor")
	require.NoError(t, err)
	assert.True(t, got.Equal(want))

	info, err := second.Inspect(ctx, "survivor")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Version)
	assert.Equal(t, AlgorithmHMAC, info.Algorithm)
}

func TestKeyStore_LoadRejectsCorruptRecord(t *testing.T) {
	backend := memory.New()
	require.NoError(t, backend.Put(storage.KeyPath("broken"), []byte("{not json"), nil))

	_, err := New(&Config{Storage: backend})
	assert.ErrorIs(t, err, failure.ErrStorageFailed)
}

func TestKeyStore_Closed(t *testing.T) {
	ks, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, ks.Close())

	_, err = ks.List(context.Background())
	assert.ErrorIs(t, err, failure.ErrStorageFailed)
	_, err = ks.Generate(context.Background(), "AES", 0, "")
	assert.ErrorIs(t, err, failure.ErrStorageFailed)
}

func TestKeyStore_LocksAreReleased(t *testing.T) {
	ctx := context.Background()
	ks := newTestStore(t, nil)

	for i := 0; i < 10; i++ {
		_, err := ks.Generate(ctx, "AES", 0, fmt.Sprintf("k%d", i))
		require.NoError(t, err)
	}
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	assert.Empty(t, ks.locks)
}
