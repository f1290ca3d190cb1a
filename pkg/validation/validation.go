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

// Package validation checks the untrusted strings that enter the gateway:
// key identifiers, backend names and algorithm names. Every entry point
// (in-process callers, the channel server and the CLI) passes through the
// gateway, which applies these checks before a backend is touched.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	maxKeyIDLen     = 255
	maxBackendLen   = 64
	maxAlgorithmLen = 64
	maxLogLen       = 1000
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("validation: invalid value")

var (
	keyIDPattern     = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)
	backendPattern   = regexp.MustCompile(`^[a-z0-9\-]+$`)
	algorithmPattern = regexp.MustCompile(`^[A-Za-z0-9\-_/]+$`)
)

// checkCommon rejects empty values, null bytes, control characters and
// overlong input. Length is checked before any pattern to bound regexp cost.
func checkCommon(what, s string, max int) error {
	if s == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalid, what)
	}
	if len(s) > max {
		return fmt.Errorf("%w: %s too long (max %d characters)", ErrInvalid, what, max)
	}
	if strings.ContainsRune(s, 0) {
		return fmt.Errorf("%w: %s contains null byte", ErrInvalid, what)
	}
	for _, r := range s {
		if r < 32 || r == 127 {
			return fmt.Errorf("%w: %s contains control characters", ErrInvalid, what)
		}
	}
	return nil
}

// ValidateKeyID validates a key identifier. Identifiers double as storage
// paths, so traversal and absolute paths are rejected along with anything
// outside [a-zA-Z0-9_.-].
func ValidateKeyID(keyID string) error {
	if err := checkCommon("key ID", keyID, maxKeyIDLen); err != nil {
		return err
	}
	if filepath.IsAbs(keyID) {
		return fmt.Errorf("%w: key ID cannot be an absolute path", ErrInvalid)
	}
	cleaned := filepath.Clean(keyID)
	if strings.HasPrefix(cleaned, "..") || strings.Contains(cleaned, string(filepath.Separator)+"..") {
		return fmt.Errorf("%w: key ID contains path traversal attempt", ErrInvalid)
	}
	if !keyIDPattern.MatchString(keyID) {
		return fmt.Errorf("%w: key ID contains invalid characters (allowed: a-z, A-Z, 0-9, -, _, .)", ErrInvalid)
	}
	return nil
}

// ValidateBackendName validates a configured backend name.
func ValidateBackendName(backend string) error {
	if err := checkCommon("backend name", backend, maxBackendLen); err != nil {
		return err
	}
	if !backendPattern.MatchString(backend) {
		return fmt.Errorf("%w: backend name contains invalid characters (allowed: a-z, 0-9, -)", ErrInvalid)
	}
	return nil
}

// ValidateAlgorithm validates an algorithm name such as AES-GCM or
// RSA-OAEP-SHA256. It does not check that a backend supports it.
func ValidateAlgorithm(algorithm string) error {
	if err := checkCommon("algorithm", algorithm, maxAlgorithmLen); err != nil {
		return err
	}
	if !algorithmPattern.MatchString(algorithm) {
		return fmt.Errorf("%w: algorithm contains invalid characters", ErrInvalid)
	}
	return nil
}

// SanitizeForLog strips control characters and truncates s so that it is
// safe to place in a log line or failure context.
func SanitizeForLog(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	if len(s) > maxLogLen {
		s = s[:maxLogLen] + "...[truncated]"
	}
	return s
}
