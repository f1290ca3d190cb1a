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
	"encoding/hex"
	"sync"
)

// DefaultBytesTrackingLimit is 2^32 AES blocks, the NIST ceiling for
// AES-GCM with random 96-bit nonces.
const DefaultBytesTrackingLimit int64 = 1 << 36

// AEADOptions controls per-key AEAD safety tracking.
type AEADOptions struct {
	// NonceTracking rejects a nonce that was already used under the key.
	NonceTracking bool

	// BytesTracking caps the plaintext volume encrypted under the key.
	BytesTracking bool

	// BytesTrackingLimit is the cap in bytes when BytesTracking is set.
	BytesTrackingLimit int64
}

// DefaultAEADOptions enables both checks with the NIST limit.
func DefaultAEADOptions() *AEADOptions {
	return &AEADOptions{
		NonceTracking:      true,
		BytesTracking:      true,
		BytesTrackingLimit: DefaultBytesTrackingLimit,
	}
}

// Validate checks the options for consistency.
func (o *AEADOptions) Validate() error {
	if o.BytesTracking && o.BytesTrackingLimit <= 0 {
		return ErrInvalidOptions
	}
	return nil
}

// AEADTracker records nonce use and encrypted volume per key.
//
// Keys are addressed by an opaque reference, normally the key identifier
// or a fingerprint of inline material.
type AEADTracker interface {
	// Track checks nonce for reuse under keyRef and the volume limit for
	// numBytes more plaintext, then records both. Nothing is recorded when
	// a check fails.
	Track(keyRef string, nonce []byte, numBytes int64) error

	// BytesEncrypted returns the volume recorded for keyRef.
	BytesEncrypted(keyRef string) int64

	// SetOptions overrides the defaults for keyRef.
	SetOptions(keyRef string, opts *AEADOptions) error

	// Reset forgets everything recorded for keyRef, typically after a
	// rotation.
	Reset(keyRef string)
}

// memoryAEADTracker is an in-memory AEADTracker. State does not survive a
// restart.
type memoryAEADTracker struct {
	defaults AEADOptions
	options  map[string]AEADOptions
	nonces   map[string]map[string]struct{}
	bytes    map[string]int64
	mu       sync.Mutex
}

// NewMemoryAEADTracker creates an in-memory tracker. A nil defaults uses
// DefaultAEADOptions.
func NewMemoryAEADTracker(defaults *AEADOptions) AEADTracker {
	if defaults == nil {
		defaults = DefaultAEADOptions()
	}
	return &memoryAEADTracker{
		defaults: *defaults,
		options:  make(map[string]AEADOptions),
		nonces:   make(map[string]map[string]struct{}),
		bytes:    make(map[string]int64),
	}
}

func (t *memoryAEADTracker) optionsFor(keyRef string) AEADOptions {
	if opts, ok := t.options[keyRef]; ok {
		return opts
	}
	return t.defaults
}

// Track implements AEADTracker.
func (t *memoryAEADTracker) Track(keyRef string, nonce []byte, numBytes int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	opts := t.optionsFor(keyRef)
	nonceHex := hex.EncodeToString(nonce)

	if opts.NonceTracking {
		if _, used := t.nonces[keyRef][nonceHex]; used {
			return ErrNonceReused
		}
	}
	if opts.BytesTracking && t.bytes[keyRef]+numBytes > opts.BytesTrackingLimit {
		return ErrBytesLimitExceeded
	}

	if opts.NonceTracking {
		if t.nonces[keyRef] == nil {
			t.nonces[keyRef] = make(map[string]struct{})
		}
		t.nonces[keyRef][nonceHex] = struct{}{}
	}
	if opts.BytesTracking {
		t.bytes[keyRef] += numBytes
	}
	return nil
}

// BytesEncrypted implements AEADTracker.
func (t *memoryAEADTracker) BytesEncrypted(keyRef string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bytes[keyRef]
}

// SetOptions implements AEADTracker.
func (t *memoryAEADTracker) SetOptions(keyRef string, opts *AEADOptions) error {
	if opts == nil {
		return ErrInvalidOptions
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.options[keyRef] = *opts
	return nil
}

// Reset implements AEADTracker.
func (t *memoryAEADTracker) Reset(keyRef string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.nonces, keyRef)
	delete(t.bytes, keyRef)
}

var _ AEADTracker = (*memoryAEADTracker)(nil)
