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

package server

import (
	"fmt"

	"github.com/jeremyhahn/go-secgateway/internal/config"
	"github.com/jeremyhahn/go-secgateway/pkg/storage"
	"github.com/jeremyhahn/go-secgateway/pkg/storage/file"
	"github.com/jeremyhahn/go-secgateway/pkg/storage/keyring"
	"github.com/jeremyhahn/go-secgateway/pkg/storage/memory"
)

// openStorage opens the record store backing the key store.
func openStorage(cfg config.KeyStoreConfig) (storage.Backend, error) {
	switch cfg.Storage {
	case config.StorageMemory, "":
		return memory.New(), nil
	case config.StorageFile:
		return file.New(cfg.Path)
	case config.StorageKeyring:
		return keyring.Open(keyring.Config{
			ServiceName:  cfg.Keyring.Service,
			Backends:     cfg.Keyring.Backends,
			FileDir:      cfg.Keyring.FileDir,
			FilePassword: cfg.Keyring.FilePassword,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage)
	}
}
