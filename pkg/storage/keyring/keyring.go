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

// Package keyring adapts an OS credential store (macOS Keychain, Secret
// Service, KWallet, Windows Credential Manager, pass, keyctl or an
// encrypted file) to storage.Backend using github.com/99designs/keyring.
package keyring

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/99designs/keyring"
	"github.com/jeremyhahn/go-secgateway/pkg/storage"
)

// DefaultServiceName is the service the records are filed under.
const DefaultServiceName = "go-secgateway"

// Config selects and configures the OS credential store.
type Config struct {
	// ServiceName groups the gateway's items. Defaults to DefaultServiceName.
	ServiceName string

	// Backends restricts the stores tried, e.g. "keychain", "secret-service",
	// "file". Empty means every store available on this platform.
	Backends []string

	// FileDir and FilePassword configure the encrypted file fallback.
	FileDir      string
	FilePassword string
}

// Storage is a storage.Backend over a keyring.Keyring.
type Storage struct {
	mu     sync.RWMutex
	ring   keyring.Keyring
	label  string
	closed bool
}

var _ storage.Backend = (*Storage)(nil)

// Open opens the credential store described by cfg.
func Open(cfg Config) (*Storage, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}

	kc := keyring.Config{
		ServiceName:              cfg.ServiceName,
		KeychainName:             "login",
		KeychainTrustApplication: true,
		FileDir:                  cfg.FileDir,
	}
	if cfg.FilePassword != "" {
		kc.FilePasswordFunc = keyring.FixedStringPrompt(cfg.FilePassword)
	}
	for _, b := range cfg.Backends {
		kc.AllowedBackends = append(kc.AllowedBackends, keyring.BackendType(b))
	}

	ring, err := keyring.Open(kc)
	if err != nil {
		return nil, fmt.Errorf("keyring storage: open %q: %w", cfg.ServiceName, err)
	}
	return Wrap(ring, cfg.ServiceName), nil
}

// Wrap adapts an already opened keyring.
func Wrap(ring keyring.Keyring, serviceName string) *Storage {
	return &Storage{ring: ring, label: serviceName}
}

func (s *Storage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}
	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("keyring storage: get %q: %w", key, err)
	}
	out := make([]byte, len(item.Data))
	copy(out, item.Data)
	return out, nil
}

func (s *Storage) Put(key string, value []byte, opts *storage.Options) error {
	if key == "" {
		return storage.ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	label := s.label + ": " + key
	if opts != nil && opts.Label != "" {
		label = opts.Label
	}
	data := make([]byte, len(value))
	copy(data, value)
	err := s.ring.Set(keyring.Item{
		Key:                         key,
		Data:                        data,
		Label:                       label,
		KeychainNotSynchronizable: true,
	})
	if err != nil {
		return fmt.Errorf("keyring storage: set %q: %w", key, err)
	}
	return nil
}

func (s *Storage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	// Some stores treat removing a missing item as success.
	if _, err := s.ring.Get(key); errors.Is(err, keyring.ErrKeyNotFound) {
		return storage.ErrNotFound
	}
	if err := s.ring.Remove(key); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("keyring storage: remove %q: %w", key, err)
	}
	return nil
}

func (s *Storage) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}
	all, err := s.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("keyring storage: list: %w", err)
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Storage) Exists(key string) (bool, error) {
	_, err := s.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Close detaches from the keyring. Items remain in the OS store.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
