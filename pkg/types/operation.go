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

// Package types defines the canonical operation model: operation kinds,
// requests, results and the non-secret view of stored keys.
package types

// OperationKind is the closed set of operations the gateway accepts.
// The zero value is not a valid kind.
type OperationKind int

const (
	OpEncryptSymmetric OperationKind = iota + 1
	OpDecryptSymmetric
	OpEncryptAsymmetric
	OpDecryptAsymmetric
	OpHash
	OpMAC
	OpSign
	OpVerify
	OpGenerateKey
	OpStoreKey
	OpRetrieveKey
	OpRotateKey
	OpDeleteKey
	OpListKeys
	OpGenerateRandom
	OpConfigUpdate
)

var operationNames = map[OperationKind]string{
	OpEncryptSymmetric:  "encryptSymmetric",
	OpDecryptSymmetric:  "decryptSymmetric",
	OpEncryptAsymmetric: "encryptAsymmetric",
	OpDecryptAsymmetric: "decryptAsymmetric",
	OpHash:              "hash",
	OpMAC:               "mac",
	OpSign:              "sign",
	OpVerify:            "verify",
	OpGenerateKey:       "generateKey",
	OpStoreKey:          "storeKey",
	OpRetrieveKey:       "retrieveKey",
	OpRotateKey:         "rotateKey",
	OpDeleteKey:         "deleteKey",
	OpListKeys:          "listKeys",
	OpGenerateRandom:    "generateRandom",
	OpConfigUpdate:      "configUpdate",
}

// OperationKinds returns every valid kind in declaration order.
func OperationKinds() []OperationKind {
	out := make([]OperationKind, 0, len(operationNames))
	for k := OpEncryptSymmetric; k <= OpConfigUpdate; k++ {
		out = append(out, k)
	}
	return out
}

// Valid reports whether k is one of the declared kinds.
func (k OperationKind) Valid() bool {
	_, ok := operationNames[k]
	return ok
}

func (k OperationKind) String() string {
	if name, ok := operationNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsKeyLifecycle reports whether k is served by the key store rather than
// a crypto backend.
func (k OperationKind) IsKeyLifecycle() bool {
	switch k {
	case OpGenerateKey, OpStoreKey, OpRetrieveKey, OpRotateKey, OpDeleteKey, OpListKeys:
		return true
	}
	return false
}

// ParseOperationKind returns the kind with the given name, or 0 and false.
func ParseOperationKind(name string) (OperationKind, bool) {
	for k, n := range operationNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (k OperationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unrecognised names
// decode to the invalid zero kind, which the gateway reports as an
// unsupported operation.
func (k *OperationKind) UnmarshalText(text []byte) error {
	*k, _ = ParseOperationKind(string(text))
	return nil
}
