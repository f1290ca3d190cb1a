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

// Package mock provides in-memory doubles for the gateway's backend and
// key manager contracts, with per-operation overrides and call tracking.
//
// The default mock transforms are deterministic and reversible but offer
// no confidentiality. They exist to exercise routing and error handling.
package mock

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"sync"

	"github.com/jeremyhahn/go-secgateway/pkg/backend"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// PerformFunc overrides Perform for one operation kind.
type PerformFunc func(ctx context.Context, req *types.Request) types.Result

// Call records one Perform invocation. Secret fields are reduced to their
// lengths.
type Call struct {
	Kind          types.OperationKind
	KeyIdentifier string
	Algorithm     string
	InputLen      int
	HadKey        bool
}

// Backend is a mock backend.CryptoBackend.
type Backend struct {
	mu sync.Mutex

	caps backend.Capabilities
	keys backend.KeyResolver

	// PerformFunc, when set, handles every kind without an On override.
	PerformFunc PerformFunc
	HealthFunc  func(ctx context.Context) error
	CloseFunc   func() error

	overrides map[types.OperationKind]PerformFunc
	calls     []Call
	closed    bool
	counter   byte
}

var _ backend.CryptoBackend = (*Backend)(nil)

// New creates a mock supporting kinds, or every non-lifecycle kind when
// none are given.
func New(keys backend.KeyResolver, kinds ...types.OperationKind) *Backend {
	caps := backend.NewCapabilities(kinds...)
	if len(kinds) == 0 {
		caps = backend.AllCapabilities().Without(
			types.OpGenerateKey, types.OpStoreKey, types.OpRetrieveKey,
			types.OpRotateKey, types.OpDeleteKey, types.OpListKeys)
	}
	return &Backend{
		caps:      caps,
		keys:      keys,
		overrides: make(map[types.OperationKind]PerformFunc),
	}
}

// On installs an override for kind.
func (m *Backend) On(kind types.OperationKind, fn PerformFunc) *Backend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[kind] = fn
	return m
}

// FailOn makes kind fail with f.
func (m *Backend) FailOn(kind types.OperationKind, f *failure.SecurityFailure) *Backend {
	return m.On(kind, func(context.Context, *types.Request) types.Result {
		return types.Fail(f)
	})
}

// Type implements backend.CryptoBackend.
func (m *Backend) Type() backend.Type {
	return backend.TypeMock
}

// Capabilities implements backend.CryptoBackend.
func (m *Backend) Capabilities() backend.Capabilities {
	return m.caps
}

// Health implements backend.HealthChecker.
func (m *Backend) Health(ctx context.Context) error {
	m.mu.Lock()
	fn, closed := m.HealthFunc, m.closed
	m.mu.Unlock()
	if closed {
		return errors.New("mock backend closed")
	}
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

// Close implements backend.CryptoBackend.
func (m *Backend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns a copy of the recorded calls.
func (m *Backend) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns the number of calls for kind.
func (m *Backend) CallCount(kind types.OperationKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Reset clears recorded calls.
func (m *Backend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Perform implements backend.CryptoBackend.
func (m *Backend) Perform(ctx context.Context, req *types.Request) types.Result {
	m.mu.Lock()
	m.calls = append(m.calls, Call{
		Kind:          req.Kind,
		KeyIdentifier: req.KeyIdentifier,
		Algorithm:     req.Algorithm,
		InputLen:      req.InputData.Len(),
		HadKey:        !securebytes.IsEmpty(req.Key),
	})
	closed := m.closed
	fn, ok := m.overrides[req.Kind]
	if !ok {
		fn = m.PerformFunc
	}
	m.mu.Unlock()

	if closed {
		return types.Fail(failure.Core(failure.CoreServiceUnavailable, "mock backend closed"))
	}
	if fn != nil {
		return fn(ctx, req)
	}
	return m.perform(ctx, req)
}

func (m *Backend) perform(ctx context.Context, req *types.Request) types.Result {
	switch req.Kind {
	case types.OpHash:
		sum := sha256.Sum256(req.InputData.Bytes())
		return succeed(sum[:])
	case types.OpGenerateRandom:
		return succeed(m.pattern(req.KeySizeBits / 8))
	case types.OpConfigUpdate:
		return types.Succeed(types.Success{Metadata: map[string]string{"applied": "false"}})
	}

	key, err := backend.ResolveKey(ctx, m.keys, req)
	if err != nil {
		return types.FailWith(err)
	}
	defer key.Destroy()
	k := key.Bytes()

	switch req.Kind {
	case types.OpEncryptSymmetric, types.OpDecryptSymmetric,
		types.OpEncryptAsymmetric, types.OpDecryptAsymmetric:
		return succeed(xor(req.InputData.Bytes(), k))
	case types.OpMAC, types.OpSign:
		return succeed(tag(k, req.InputData.Bytes()))
	case types.OpVerify:
		if !hmac.Equal(tag(k, req.InputData.Bytes()), req.Signature.Bytes()) {
			return types.Fail(failure.Core(failure.CoreVerificationFailed, "mock signature mismatch"))
		}
		return types.Succeed(types.Success{Metadata: map[string]string{"verified": "true"}})
	}
	return types.Fail(failure.Core(failure.CoreUnsupportedOperation, "mock backend does not implement %s", req.Kind))
}

// pattern returns n deterministic bytes that differ between calls.
func (m *Backend) pattern(n int) []byte {
	m.mu.Lock()
	m.counter++
	seed := m.counter
	m.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = seed + byte(i)
	}
	return out
}

func succeed(b []byte) types.Result {
	return types.Succeed(types.Success{Data: securebytes.Take(b)})
}

func xor(data, key []byte) []byte {
	out := make([]byte, len(data))
	for i := range data {
		if len(key) == 0 {
			out[i] = data[i]
			continue
		}
		out[i] = data[i] ^ key[i%len(key)]
	}
	return out
}

func tag(key, data []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(data)
	return m.Sum(nil)
}
