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

package mock

import (
	"context"
	"sync"

	"github.com/jeremyhahn/go-secgateway/pkg/keystore"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// KeyManager is a keystore.Manager double. Calls without an override fall
// through to an in-memory KeyStore.
type KeyManager struct {
	store *keystore.KeyStore

	GenerateFunc func(ctx context.Context, algorithm string, sizeBits int, identifier string) (string, error)
	StoreFunc    func(ctx context.Context, material *securebytes.SecureBytes, identifier string, opts keystore.StoreOptions) error
	RetrieveFunc func(ctx context.Context, identifier string) (*securebytes.SecureBytes, error)
	RotateFunc   func(ctx context.Context, identifier string, payload *securebytes.SecureBytes, reencrypt keystore.ReencryptFunc) (*keystore.Rotation, error)
	DeleteFunc   func(ctx context.Context, identifier string) error
	ListFunc     func(ctx context.Context) ([]string, error)

	mu    sync.Mutex
	calls map[string]int
}

var _ keystore.Manager = (*KeyManager)(nil)

// NewKeyManager creates a KeyManager over an empty in-memory KeyStore.
func NewKeyManager() *KeyManager {
	ks, err := keystore.New(nil)
	if err != nil {
		// an in-memory store has nothing to load
		panic(err)
	}
	return &KeyManager{store: ks, calls: make(map[string]int)}
}

// Calls returns how many times method was invoked.
func (k *KeyManager) Calls(method string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (k *KeyManager) TotalCalls() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, c := range k.calls {
		n += c
	}
	return n
}

func (k *KeyManager) record(method string) {
	k.mu.Lock()
	k.calls[method]++
	k.mu.Unlock()
}

// Generate implements keystore.Manager.
func (k *KeyManager) Generate(ctx context.Context, algorithm string, sizeBits int, identifier string) (string, error) {
	k.record("Generate")
	if k.GenerateFunc != nil {
		return k.GenerateFunc(ctx, algorithm, sizeBits, identifier)
	}
	return k.store.Generate(ctx, algorithm, sizeBits, identifier)
}

// Store implements keystore.Manager.
func (k *KeyManager) Store(ctx context.Context, material *securebytes.SecureBytes, identifier string, opts keystore.StoreOptions) error {
	k.record("Store")
	if k.StoreFunc != nil {
		return k.StoreFunc(ctx, material, identifier, opts)
	}
	return k.store.Store(ctx, material, identifier, opts)
}

// Retrieve implements keystore.Manager.
func (k *KeyManager) Retrieve(ctx context.Context, identifier string) (*securebytes.SecureBytes, error) {
	k.record("Retrieve")
	if k.RetrieveFunc != nil {
		return k.RetrieveFunc(ctx, identifier)
	}
	return k.store.Retrieve(ctx, identifier)
}

// Rotate implements keystore.Manager.
func (k *KeyManager) Rotate(ctx context.Context, identifier string, payload *securebytes.SecureBytes, reencrypt keystore.ReencryptFunc) (*keystore.Rotation, error) {
	k.record("Rotate")
	if k.RotateFunc != nil {
		return k.RotateFunc(ctx, identifier, payload, reencrypt)
	}
	return k.store.Rotate(ctx, identifier, payload, reencrypt)
}

// Delete implements keystore.Manager.
func (k *KeyManager) Delete(ctx context.Context, identifier string) error {
	k.record("Delete")
	if k.DeleteFunc != nil {
		return k.DeleteFunc(ctx, identifier)
	}
	return k.store.Delete(ctx, identifier)
}

// List implements keystore.Manager.
func (k *KeyManager) List(ctx context.Context) ([]string, error) {
	k.record("List")
	if k.ListFunc != nil {
		return k.ListFunc(ctx)
	}
	return k.store.List(ctx)
}

// Inspect implements keystore.Manager.
func (k *KeyManager) Inspect(ctx context.Context, identifier string) (types.KeyInfo, error) {
	k.record("Inspect")
	return k.store.Inspect(ctx, identifier)
}
