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

package keystore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"strings"

	"github.com/jeremyhahn/go-secgateway/pkg/crypto/rand"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
)

// Canonical algorithm names recorded with each key.
const (
	AlgorithmAES       = "AES"
	AlgorithmChaCha20  = "CHACHA20"
	AlgorithmHMAC      = "HMAC"
	AlgorithmEd25519   = "ED25519"
	AlgorithmX25519    = "X25519"
	AlgorithmECDSAP256 = "ECDSA-P256"
	AlgorithmRSA       = "RSA"
	AlgorithmRaw       = "RAW"
)

var algorithmAliases = map[string]string{
	"AES":               AlgorithmAES,
	"AES-GCM":           AlgorithmAES,
	"AES-128-GCM":       AlgorithmAES,
	"AES-192-GCM":       AlgorithmAES,
	"AES-256-GCM":       AlgorithmAES,
	"CHACHA20":          AlgorithmChaCha20,
	"CHACHA20-POLY1305": AlgorithmChaCha20,
	"HMAC":              AlgorithmHMAC,
	"HMAC-SHA256":       AlgorithmHMAC,
	"ED25519":           AlgorithmEd25519,
	"X25519":            AlgorithmX25519,
	"ECDSA":             AlgorithmECDSAP256,
	"ECDSA-P256":        AlgorithmECDSAP256,
	"P256":              AlgorithmECDSAP256,
	"RSA":               AlgorithmRSA,
	"RSA-OAEP":          AlgorithmRSA,
	"RAW":               AlgorithmRaw,
	"GENERIC":           AlgorithmRaw,
}

// aliasSizes pins the key size named by a size-qualified alias.
var aliasSizes = map[string]int{
	"AES-128-GCM": 128,
	"AES-192-GCM": 192,
	"AES-256-GCM": 256,
}

// resolveSize applies the size implied by name when sizeBits is 0, and
// rejects a sizeBits that contradicts it.
func resolveSize(name string, sizeBits int) (int, error) {
	implied, ok := aliasSizes[strings.ToUpper(strings.TrimSpace(name))]
	if !ok || sizeBits == implied {
		return sizeBits, nil
	}
	if sizeBits == 0 {
		return implied, nil
	}
	return 0, failure.Core(failure.CoreInvalidKeySize, "%s keys are %d bits, got %d", name, implied, sizeBits)
}

// CanonicalAlgorithm resolves an algorithm name or alias. ok is false for
// algorithms the key store cannot generate.
func CanonicalAlgorithm(name string) (string, bool) {
	alg, ok := algorithmAliases[strings.ToUpper(strings.TrimSpace(name))]
	return alg, ok
}

// generateMaterial creates key material for algorithm. sizeBits of 0
// selects the algorithm default. The returned size is the effective one.
func generateMaterial(rng rand.Resolver, algorithm string, sizeBits int) ([]byte, int, error) {
	switch algorithm {
	case AlgorithmAES:
		if sizeBits == 0 {
			sizeBits = 256
		}
		if sizeBits != 128 && sizeBits != 192 && sizeBits != 256 {
			return nil, 0, failure.Core(failure.CoreInvalidKeySize, "AES keys are 128, 192 or 256 bits, got %d", sizeBits)
		}
		return randomMaterial(rng, sizeBits)

	case AlgorithmChaCha20, AlgorithmEd25519, AlgorithmX25519:
		if sizeBits != 0 && sizeBits != 256 {
			return nil, 0, failure.Core(failure.CoreInvalidKeySize, "%s keys are 256 bits, got %d", algorithm, sizeBits)
		}
		return randomMaterial(rng, 256)

	case AlgorithmHMAC:
		if sizeBits == 0 {
			sizeBits = 256
		}
		if sizeBits < 128 || sizeBits > 1024 || sizeBits%8 != 0 {
			return nil, 0, failure.Core(failure.CoreInvalidKeySize, "HMAC keys are 128-1024 bits in whole bytes, got %d", sizeBits)
		}
		return randomMaterial(rng, sizeBits)

	case AlgorithmRaw:
		if sizeBits <= 0 || sizeBits%8 != 0 {
			return nil, 0, failure.Core(failure.CoreInvalidKeySize, "raw keys need a positive whole-byte size, got %d", sizeBits)
		}
		return randomMaterial(rng, sizeBits)

	case AlgorithmECDSAP256:
		if sizeBits != 0 && sizeBits != 256 {
			return nil, 0, failure.Core(failure.CoreInvalidKeySize, "ECDSA-P256 keys are 256 bits, got %d", sizeBits)
		}
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rng)
		if err != nil {
			return nil, 0, failure.Default().FromCore(failure.WrapCoreError(failure.CoreKeyGenerationFailed, err, "ECDSA-P256"))
		}
		der, err := x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return nil, 0, failure.Default().FromCore(failure.WrapCoreError(failure.CoreKeyGenerationFailed, err, "encode ECDSA key"))
		}
		return der, 256, nil

	case AlgorithmRSA:
		if sizeBits == 0 {
			sizeBits = 2048
		}
		if sizeBits != 2048 && sizeBits != 3072 && sizeBits != 4096 {
			return nil, 0, failure.Core(failure.CoreInvalidKeySize, "RSA keys are 2048, 3072 or 4096 bits, got %d", sizeBits)
		}
		priv, err := rsa.GenerateKey(rng, sizeBits)
		if err != nil {
			return nil, 0, failure.Default().FromCore(failure.WrapCoreError(failure.CoreKeyGenerationFailed, err, "RSA"))
		}
		der, err := x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return nil, 0, failure.Default().FromCore(failure.WrapCoreError(failure.CoreKeyGenerationFailed, err, "encode RSA key"))
		}
		return der, sizeBits, nil
	}

	return nil, 0, failure.Core(failure.CoreUnsupportedAlgorithm, "cannot generate %q keys", algorithm)
}

func randomMaterial(rng rand.Resolver, sizeBits int) ([]byte, int, error) {
	b, err := rng.Rand(sizeBits / 8)
	if err != nil {
		return nil, 0, failure.Default().FromCore(failure.WrapCoreError(failure.CoreRandomGenerationFailed, err, ""))
	}
	return b, sizeBits, nil
}
