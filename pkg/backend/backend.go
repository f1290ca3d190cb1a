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

// Package backend defines the CryptoBackend contract every gateway backend
// implements, and the boundary adapter through which the gateway calls it.
//
// Variants live in subpackages: modern, legacy, mock and channel. Each
// reports the operation kinds it supports through Capabilities; requests
// for anything else fail with unsupportedOperation before the backend runs.
package backend

import (
	"context"

	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// Type identifies a backend variant.
type Type string

const (
	TypeModern  Type = "modern"
	TypeLegacy  Type = "legacy"
	TypeMock    Type = "mock"
	TypeChannel Type = "channel"
)

// String implements fmt.Stringer.
func (t Type) String() string {
	return string(t)
}

// CryptoBackend performs canonical security operations.
//
// Perform must always return a valid types.Result: a success, or a failure
// produced through the failure translator. Implementations must be safe
// for concurrent use and must not retain secret fields of the request.
type CryptoBackend interface {
	// Type returns the backend variant.
	Type() Type

	// Capabilities returns the operation kinds Perform accepts.
	Capabilities() Capabilities

	// Perform executes req.
	Perform(ctx context.Context, req *types.Request) types.Result

	// Close releases resources held by the backend.
	Close() error
}

// HealthChecker is implemented by backends that can report readiness.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// KeyObserver is implemented by backends that keep per-key state, such as
// AEAD usage tracking. The gateway calls KeyChanged after the material
// under identifier was replaced or removed.
type KeyObserver interface {
	KeyChanged(identifier string)
}

// KeyResolver resolves a key identifier to material. keystore.Manager
// satisfies it.
type KeyResolver interface {
	Retrieve(ctx context.Context, identifier string) (*securebytes.SecureBytes, error)
}

// ResolveKey returns the key for req: a clone of the inline key when
// present, otherwise the material resolved by identifier. The caller owns
// and must destroy the returned value.
func ResolveKey(ctx context.Context, keys KeyResolver, req *types.Request) (*securebytes.SecureBytes, error) {
	if !securebytes.IsEmpty(req.Key) {
		return req.Key.Clone(), nil
	}
	if req.KeyIdentifier == "" {
		return nil, ErrNoKey
	}
	if keys == nil {
		return nil, ErrNoKeyResolver
	}
	return keys.Retrieve(ctx, req.KeyIdentifier)
}
