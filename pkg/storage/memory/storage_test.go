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

package memory

import (
	"testing"

	"github.com/jeremyhahn/go-secgateway/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_PutAndGet(t *testing.T) {
	s := New()
	value := []byte("record")
	require.NoError(t, s.Put("keys/a.key", value, nil))

	value[0] = 'X'
	got, err := s.Get("keys/a.key")
	require.NoError(t, err)
	assert.Equal(t, []byte("record"), got)

	got[0] = 'Y'
	again, err := s.Get("keys/a.key")
	require.NoError(t, err)
	assert.Equal(t, []byte("record"), again)
}

func TestStorage_NotFound(t *testing.T) {
	s := New()
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Delete("missing"), storage.ErrNotFound)

	ok, err := s.Exists("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorage_ListSorted(t *testing.T) {
	s := New()
	for _, k := range []string{"keys/c.key", "keys/a.key", "other", "keys/b.key"} {
		require.NoError(t, s.Put(k, []byte("v"), nil))
	}
	keys, err := s.List("keys/")
	require.NoError(t, err)
	assert.Equal(t, []string{"keys/a.key", "keys/b.key", "keys/c.key"}, keys)
}

func TestStorage_Close(t *testing.T) {
	s := New()
	require.NoError(t, s.Put("k", []byte("v"), nil))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Get("k")
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, s.Put("k", nil, nil), storage.ErrClosed)
	_, err = s.List("")
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestStorage_EmptyKey(t *testing.T) {
	assert.ErrorIs(t, New().Put("", []byte("v"), nil), storage.ErrInvalidKey)
}
