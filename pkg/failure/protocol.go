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

// ProtocolCode identifies a protocol-level error: the error shape carried
// in channel responses. Protocol codes live in 3000-3999.
type ProtocolCode int

const (
	ProtocolUnknown                ProtocolCode = 3000
	ProtocolInvalidFormat          ProtocolCode = 3001
	ProtocolMissingField           ProtocolCode = 3002
	ProtocolInvalidState           ProtocolCode = 3003
	ProtocolUnsupportedOperation   ProtocolCode = 3004
	ProtocolNotImplemented         ProtocolCode = 3005
	ProtocolKeyNotFound            ProtocolCode = 3006
	ProtocolDuplicateKey           ProtocolCode = 3007
	ProtocolEncryptionFailed       ProtocolCode = 3008
	ProtocolDecryptionFailed       ProtocolCode = 3009
	ProtocolSigningFailed          ProtocolCode = 3010
	ProtocolSignatureInvalid       ProtocolCode = 3011
	ProtocolKeyGenerationFailed    ProtocolCode = 3012
	ProtocolRandomGenerationFailed ProtocolCode = 3013
	ProtocolStorageFailed          ProtocolCode = 3014
	ProtocolServiceUnavailable     ProtocolCode = 3015
	ProtocolTimeout                ProtocolCode = 3016
	ProtocolUnauthorized           ProtocolCode = 3017
	ProtocolInternalError          ProtocolCode = 3018
	ProtocolRateLimited            ProtocolCode = 3019
)

// ProtocolError is the error carried in a protocol message.
type ProtocolError struct {
	Code    ProtocolCode
	Reason  string
	Context map[string]string
	Err     error
}

// NewProtocolError creates a protocol error with a formatted reason.
func NewProtocolError(code ProtocolCode, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("protocol error %d", e.Code)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
