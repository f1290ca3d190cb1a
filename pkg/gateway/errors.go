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

package gateway

import "errors"

var (
	// ErrNoBackends is returned by New when no backend and no key store
	// is configured.
	ErrNoBackends = errors.New("gateway: at least one backend or a key store is required")

	// ErrUnknownDefault is returned by New when DefaultBackend does not
	// name a configured backend.
	ErrUnknownDefault = errors.New("gateway: default backend is not configured")

	// ErrInvalidBackendName is returned by New for a backend name that
	// fails validation.
	ErrInvalidBackendName = errors.New("gateway: invalid backend name")
)
