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

package failure

import (
	"strings"

	"github.com/jeremyhahn/go-secgateway/pkg/validation"
)

// Context keys containing any of these markers are never carried.
var secretMarkers = []string{
	"secret", "password", "passphrase", "material", "plaintext", "private", "token", "seed",
}

func sanitizeEntry(key, value string) (string, string, bool) {
	lower := strings.ToLower(key)
	for _, m := range secretMarkers {
		if strings.Contains(lower, m) {
			return "", "", false
		}
	}
	return validation.SanitizeForLog(key), validation.SanitizeForLog(value), true
}

func sanitizeContext(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if sk, sv, ok := sanitizeEntry(k, v); ok {
			out[sk] = sv
		}
	}
	return out
}
