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

import "fmt"

// CoreCode identifies a core security error. Core codes live in 1000-1999.
type CoreCode int

const (
	CoreUnknown                CoreCode = 1000
	CoreInvalidInput           CoreCode = 1001
	CoreInvalidKey             CoreCode = 1002
	CoreInvalidKeySize         CoreCode = 1003
	CoreKeyNotFound            CoreCode = 1004
	CoreKeyAlreadyExists       CoreCode = 1005
	CoreUnsupportedAlgorithm   CoreCode = 1006
	CoreUnsupportedOperation   CoreCode = 1007
	CoreNotImplemented         CoreCode = 1008
	CoreEncryptionFailed       CoreCode = 1009
	CoreDecryptionFailed       CoreCode = 1010
	CoreSigningFailed          CoreCode = 1011
	CoreVerificationFailed     CoreCode = 1012
	CoreKeyGenerationFailed    CoreCode = 1013
	CoreRandomGenerationFailed CoreCode = 1014
	CoreStorageFailed          CoreCode = 1015
	CoreAccessDenied           CoreCode = 1016
	CoreTimeout                CoreCode = 1017
	CoreHashFailed             CoreCode = 1018
	CoreMemoryAllocationFailed CoreCode = 1019
	CoreServiceUnavailable     CoreCode = 1020
	CoreInternal               CoreCode = 1099
)

// CoreError is raised by crypto engines and the key store.
type CoreError struct {
	Code   CoreCode
	Reason string
	Err    error
}

// NewCoreError creates a core error with a formatted reason.
func NewCoreError(code CoreCode, format string, args ...any) *CoreError {
	return &CoreError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// WrapCoreError creates a core error around err.
func WrapCoreError(code CoreCode, err error, reason string) *CoreError {
	return &CoreError{Code: code, Reason: reason, Err: err}
}

func (e *CoreError) Error() string {
	msg := fmt.Sprintf("core error %d", e.Code)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CoreError) Unwrap() error {
	return e.Err
}
