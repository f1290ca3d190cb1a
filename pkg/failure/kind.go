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

// Package failure defines the canonical error taxonomy shared by every
// component of the gateway and the translator that maps the core,
// channel and protocol error domains into it and back.
package failure

import "strings"

// Kind is the closed set of canonical failure categories. The numeric
// values are stable and used on the wire.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindKeyNotFound
	KindDuplicateIdentifier
	KindUnsupportedOperation
	KindEncryptionFailed
	KindDecryptionFailed
	KindSignatureFailed
	KindVerificationFailed
	KindKeyGenerationFailed
	KindRandomGenerationFailed
	KindStorageFailed
	KindChannelUnavailable
	KindTimeout
	KindAuthorizationDenied
	KindInternalError
)

var kindNames = [...]string{
	KindUnknown:                "unknown",
	KindInvalidInput:           "invalidInput",
	KindKeyNotFound:            "keyNotFound",
	KindDuplicateIdentifier:    "duplicateIdentifier",
	KindUnsupportedOperation:   "unsupportedOperation",
	KindEncryptionFailed:       "encryptionFailed",
	KindDecryptionFailed:       "decryptionFailed",
	KindSignatureFailed:        "signatureFailed",
	KindVerificationFailed:     "verificationFailed",
	KindKeyGenerationFailed:    "keyGenerationFailed",
	KindRandomGenerationFailed: "randomGenerationFailed",
	KindStorageFailed:          "storageFailed",
	KindChannelUnavailable:     "channelUnavailable",
	KindTimeout:                "timeout",
	KindAuthorizationDenied:    "authorizationDenied",
	KindInternalError:          "internalError",
}

// Kinds returns every defined kind in numeric order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}
	return out
}

// Valid reports whether k is a defined kind.
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < len(kindNames)
}

// String returns the canonical camel-case name of the kind.
func (k Kind) String() string {
	if !k.Valid() {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// ParseKind returns the kind with the given name. Names are matched
// case-insensitively; anything unrecognised is KindUnknown.
func ParseKind(name string) Kind {
	for i, n := range kindNames {
		if strings.EqualFold(n, name) {
			return Kind(i)
		}
	}
	return KindUnknown
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode
// to KindUnknown so that peers running a newer taxonomy stay readable.
func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}
