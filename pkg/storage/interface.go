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

// Package storage defines the narrow persistence contract the key store
// uses for durable key records. Implementations live in the memory, file
// and keyring subpackages.
package storage

import (
	"io/fs"
)

// Backend is a flat key/value credential store. Keys are slash-separated
// paths such as "keys/<identifier>.key".
type Backend interface {
	// Get retrieves the value for the given key.
	// Returns ErrNotFound if the key does not exist.
	Get(key string) ([]byte, error)

	// Put stores the value for the given key, replacing any existing value.
	Put(key string, value []byte, opts *Options) error

	// Delete removes the key. Returns ErrNotFound if it does not exist.
	Delete(key string) error

	// List returns all keys with the given prefix in sorted order.
	List(prefix string) ([]string, error)

	// Exists checks if a key exists in storage.
	Exists(key string) (bool, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Options carries per-write hints. Backends ignore what they cannot honour.
type Options struct {
	// Permissions sets the file mode for file-based storage.
	Permissions fs.FileMode

	// Label is a human-readable description for OS credential stores.
	Label string
}

// DefaultOptions returns owner-only permissions.
func DefaultOptions() *Options {
	return &Options{Permissions: 0600}
}
