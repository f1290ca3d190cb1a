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
	"sort"
	"strings"

	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// Capabilities is the set of operation kinds a backend accepts.
type Capabilities map[types.OperationKind]struct{}

// NewCapabilities builds a capability set from kinds.
func NewCapabilities(kinds ...types.OperationKind) Capabilities {
	c := make(Capabilities, len(kinds))
	for _, k := range kinds {
		c[k] = struct{}{}
	}
	return c
}

// AllCapabilities covers every operation kind.
func AllCapabilities() Capabilities {
	return NewCapabilities(types.OperationKinds()...)
}

// Supports reports whether kind is in the set.
func (c Capabilities) Supports(kind types.OperationKind) bool {
	_, ok := c[kind]
	return ok
}

// Without returns a copy of c minus kinds.
func (c Capabilities) Without(kinds ...types.OperationKind) Capabilities {
	out := make(Capabilities, len(c))
	for k := range c {
		out[k] = struct{}{}
	}
	for _, k := range kinds {
		delete(out, k)
	}
	return out
}

// Kinds returns the supported kinds in declaration order.
func (c Capabilities) Kinds() []types.OperationKind {
	kinds := make([]types.OperationKind, 0, len(c))
	for k := range c {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// String renders the set as a comma separated list of kind names.
func (c Capabilities) String() string {
	kinds := c.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ",")
}
