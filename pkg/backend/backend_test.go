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

package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

type stubBackend struct {
	caps    Capabilities
	perform func(ctx context.Context, req *types.Request) types.Result
	calls   int
}

func (s *stubBackend) Type() Type                 { return TypeMock }
func (s *stubBackend) Capabilities() Capabilities { return s.caps }
func (s *stubBackend) Close() error               { return nil }
func (s *stubBackend) Perform(ctx context.Context, req *types.Request) types.Result {
	s.calls++
	return s.perform(ctx, req)
}

type mapResolver map[string]string

func (m mapResolver) Retrieve(_ context.Context, id string) (*securebytes.SecureBytes, error) {
	v, ok := m[id]
	if !ok {
		return nil, failure.Core(failure.CoreKeyNotFound, "%s", id)
	}
	return securebytes.FromString(v), nil
}

func TestCapabilities(t *testing.T) {
	caps := NewCapabilities(types.OpHash, types.OpSign)
	assert.True(t, caps.Supports(types.OpHash))
	assert.False(t, caps.Supports(types.OpVerify))
	assert.Equal(t, "hash,sign", caps.String())

	all := AllCapabilities()
	assert.Len(t, all.Kinds(), len(types.OperationKinds()))

	trimmed := all.Without(types.OpConfigUpdate)
	assert.False(t, trimmed.Supports(types.OpConfigUpdate))
	assert.True(t, all.Supports(types.OpConfigUpdate))
}

func TestInvoke_Success(t *testing.T) {
	b := &stubBackend{
		caps: NewCapabilities(types.OpHash),
		perform: func(context.Context, *types.Request) types.Result {
			return types.Succeed(types.Success{Data: securebytes.FromString("digest")})
		},
	}
	res := Invoke(context.Background(), b, &types.Request{Kind: types.OpHash}, nil)
	require.True(t, res.IsSuccess())
	assert.Equal(t, 1, b.calls)
}

func TestInvoke_UnsupportedKind(t *testing.T) {
	b := &stubBackend{caps: NewCapabilities(types.OpHash)}
	res := Invoke(context.Background(), b, &types.Request{Kind: types.OpSign}, nil)

	assert.Equal(t, failure.KindUnsupportedOperation, res.FailureKind())
	assert.Equal(t, 0, b.calls)
}

func TestInvoke_RecoversPanic(t *testing.T) {
	b := &stubBackend{
		caps: AllCapabilities(),
		perform: func(context.Context, *types.Request) types.Result {
			panic("boom")
		},
	}
	res := Invoke(context.Background(), b, &types.Request{Kind: types.OpHash}, nil)
	assert.Equal(t, failure.KindInternalError, res.FailureKind())
}

func TestInvoke_MalformedResult(t *testing.T) {
	b := &stubBackend{
		caps: AllCapabilities(),
		perform: func(context.Context, *types.Request) types.Result {
			return types.Result{}
		},
	}
	res := Invoke(context.Background(), b, &types.Request{Kind: types.OpHash}, nil)
	assert.Equal(t, failure.KindInternalError, res.FailureKind())
}

func TestInvoke_CancelledContext(t *testing.T) {
	b := &stubBackend{caps: AllCapabilities()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Invoke(ctx, b, &types.Request{Kind: types.OpHash}, nil)
	assert.Equal(t, failure.KindTimeout, res.FailureKind())
	assert.Equal(t, 0, b.calls)
}

func TestInvoke_NilBackend(t *testing.T) {
	res := Invoke(context.Background(), nil, &types.Request{Kind: types.OpHash}, nil)
	assert.False(t, res.IsSuccess())
	assert.True(t, res.Valid())
}

func TestResolveKey(t *testing.T) {
	ctx := context.Background()
	keys := mapResolver{"k1": "stored"}

	t.Run("inline key wins", func(t *testing.T) {
		req := &types.Request{Key: securebytes.FromString("inline"), KeyIdentifier: "k1"}
		key, err := ResolveKey(ctx, keys, req)
		require.NoError(t, err)
		assert.Equal(t, "inline", string(key.Bytes()))

		key.Destroy()
		assert.False(t, req.Key.IsDestroyed())
	})

	t.Run("identifier", func(t *testing.T) {
		key, err := ResolveKey(ctx, keys, &types.Request{KeyIdentifier: "k1"})
		require.NoError(t, err)
		assert.Equal(t, "stored", string(key.Bytes()))
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := ResolveKey(ctx, keys, &types.Request{KeyIdentifier: "nope"})
		assert.ErrorIs(t, err, failure.ErrKeyNotFound)
	})

	t.Run("no key", func(t *testing.T) {
		_, err := ResolveKey(ctx, keys, &types.Request{})
		assert.ErrorIs(t, err, ErrNoKey)
	})

	t.Run("no resolver", func(t *testing.T) {
		_, err := ResolveKey(ctx, nil, &types.Request{KeyIdentifier: "k1"})
		assert.ErrorIs(t, err, ErrNoKeyResolver)
	})
}

func TestMemoryAEADTracker_NonceReuse(t *testing.T) {
	tr := NewMemoryAEADTracker(nil)

	require.NoError(t, tr.Track("k", []byte{1, 2, 3}, 10))
	assert.ErrorIs(t, tr.Track("k", []byte{1, 2, 3}, 10), ErrNonceReused)
	assert.NoError(t, tr.Track("other", []byte{1, 2, 3}, 10))
	assert.Equal(t, int64(10), tr.BytesEncrypted("k"))

	tr.Reset("k")
	assert.NoError(t, tr.Track("k", []byte{1, 2, 3}, 10))
}

func TestMemoryAEADTracker_BytesLimit(t *testing.T) {
	tr := NewMemoryAEADTracker(nil)
	require.NoError(t, tr.SetOptions("small", &AEADOptions{BytesTracking: true, BytesTrackingLimit: 100}))

	require.NoError(t, tr.Track("small", []byte{1}, 60))
	assert.ErrorIs(t, tr.Track("small", []byte{2}, 60), ErrBytesLimitExceeded)
	assert.Equal(t, int64(60), tr.BytesEncrypted("small"))

	// nonce tracking is off for this key
	assert.NoError(t, tr.Track("small", []byte{1}, 10))
}

func TestMemoryAEADTracker_InvalidOptions(t *testing.T) {
	tr := NewMemoryAEADTracker(nil)
	assert.ErrorIs(t, tr.SetOptions("k", nil), ErrInvalidOptions)
	assert.ErrorIs(t, tr.SetOptions("k", &AEADOptions{BytesTracking: true}), ErrInvalidOptions)
}
