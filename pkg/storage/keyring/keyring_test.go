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

package keyring

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/jeremyhahn/go-secgateway/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArrayStorage(t *testing.T) *Storage {
	t.Helper()
	return Wrap(keyring.NewArrayKeyring(nil), "test")
}

func TestStorage_PutGet(t *testing.T) {
	s := newArrayStorage(t)

	require.NoError(t, s.Put(storage.KeyPath("k1"), []byte("record"), nil))
	got, err := s.Get(storage.KeyPath("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("record"), got)

	ok, err := s.Exists(storage.KeyPath("k1"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStorage_NotFound(t *testing.T) {
	s := newArrayStorage(t)

	_, err := s.Get("keys/missing.key")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Delete("keys/missing.key"), storage.ErrNotFound)

	ok, err := s.Exists("keys/missing.key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorage_ListAndDelete(t *testing.T) {
	s := newArrayStorage(t)
	require.NoError(t, s.Put(storage.KeyPath("b"), []byte("1"), nil))
	require.NoError(t, s.Put(storage.KeyPath("a"), []byte("2"), &storage.Options{Label: "custom"}))

	ids, err := storage.ListKeyIDs(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, s.Delete(storage.KeyPath("a")))
	ids, err = storage.ListKeyIDs(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

func TestStorage_Closed(t *testing.T) {
	s := newArrayStorage(t)
	require.NoError(t, s.Close())

	_, err := s.Get("x")
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, s.Put("x", nil, nil), storage.ErrClosed)
}

func TestOpen_FileBackend(t *testing.T) {
	s, err := Open(Config{
		ServiceName:  "secgateway-test",
		Backends:     []string{string(keyring.FileBackend)},
		FileDir:      t.TempDir(),
		FilePassword: "test-password",
	})
	require.NoError(t, err)

	require.NoError(t, s.Put(storage.KeyPath("k1"), []byte("sealed"), nil))
	got, err := s.Get(storage.KeyPath("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed"), got)
}
