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

import "errors"

var (
	// ErrNoKey is returned when a request carries neither key material nor
	// a key identifier.
	ErrNoKey = errors.New("backend: request has no key or key identifier")

	// ErrNoKeyResolver is returned when a request names a key identifier
	// but the backend has no key resolver.
	ErrNoKeyResolver = errors.New("backend: no key resolver configured")

	// ErrNonceReused is returned when an AEAD nonce repeats under one key.
	// The key should be rotated.
	ErrNonceReused = errors.New("backend: nonce reused - key rotation required")

	// ErrBytesLimitExceeded is returned when a key has encrypted more data
	// than its configured limit. The key should be rotated.
	ErrBytesLimitExceeded = errors.New("backend: bytes encrypted limit exceeded - key rotation required")

	// ErrInvalidOptions is returned for malformed AEAD tracking options.
	ErrInvalidOptions = errors.New("backend: invalid AEAD options")
)
