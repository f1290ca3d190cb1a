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

package storage

import (
	"sort"
	"strings"
)

const (
	keyPrefix = "keys/"
	keySuffix = ".key"
)

// KeyPath returns the storage path of the record for key identifier id.
func KeyPath(id string) string {
	return keyPrefix + id + keySuffix
}

// KeyIDFromPath reverses KeyPath. ok is false for paths outside keys/.
func KeyIDFromPath(path string) (id string, ok bool) {
	if !strings.HasPrefix(path, keyPrefix) || !strings.HasSuffix(path, keySuffix) {
		return "", false
	}
	id = strings.TrimSuffix(strings.TrimPrefix(path, keyPrefix), keySuffix)
	return id, id != ""
}

// ListKeyIDs returns the identifiers of every key record in backend,
// sorted.
func ListKeyIDs(backend Backend) ([]string, error) {
	paths, err := backend.List(keyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		if id, ok := KeyIDFromPath(p); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
