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

package modern

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// Signature algorithms.
const (
	AlgorithmEd25519   = "ED25519"
	AlgorithmECDSAP256 = "ECDSA-P256"
)

func signatureAlgorithm(name string) (string, bool) {
	switch normalize(name, AlgorithmEd25519) {
	case "ED25519", "EDDSA":
		return AlgorithmEd25519, true
	case "ECDSA", "ECDSA-P256", "ES256", "P256":
		return AlgorithmECDSAP256, true
	}
	return "", false
}

// ed25519Private accepts a 32-byte seed or a 64-byte private key.
func ed25519Private(key []byte) (ed25519.PrivateKey, *failure.SecurityFailure) {
	switch len(key) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(key), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(key), nil
	}
	return nil, failure.Core(failure.CoreInvalidKeySize, "Ed25519 keys are 32 or 64 bytes, got %d", len(key))
}

func (b *Backend) sign(req *types.Request, key []byte) types.Result {
	alg, ok := signatureAlgorithm(req.Algorithm)
	if !ok {
		return failf(failure.CoreUnsupportedAlgorithm, "signature algorithm %q", req.Algorithm)
	}

	var sig []byte
	var err error
	switch alg {
	case AlgorithmEd25519:
		priv, f := ed25519Private(key)
		if f != nil {
			return types.Fail(f)
		}
		if f := useInput(req, func(msg []byte) { sig = ed25519.Sign(priv, msg) }); f != nil {
			return types.Fail(f)
		}
	case AlgorithmECDSAP256:
		priv, perr := ecdsaPrivateKey(key)
		if perr != nil {
			return fail(failure.CoreInvalidKey, perr)
		}
		digest, f := digestOf(req)
		if f != nil {
			return types.Fail(f)
		}
		sig, err = ecdsa.SignASN1(b.rng, priv, digest[:])
	}
	if err != nil {
		return fail(failure.CoreSigningFailed, err)
	}
	return types.Succeed(types.Success{
		Data:     securebytes.Take(sig),
		Metadata: map[string]string{"algorithm": alg},
	})
}

func (b *Backend) verify(req *types.Request, key []byte) types.Result {
	alg, ok := signatureAlgorithm(req.Algorithm)
	if !ok {
		return failf(failure.CoreUnsupportedAlgorithm, "signature algorithm %q", req.Algorithm)
	}
	sig := req.Signature.Bytes()

	var valid bool
	switch alg {
	case AlgorithmEd25519:
		var pub ed25519.PublicKey
		if req.Option(OptionKeyForm) == "public" {
			if len(key) != ed25519.PublicKeySize {
				return failf(failure.CoreInvalidKeySize, "Ed25519 public keys are 32 bytes, got %d", len(key))
			}
			pub = ed25519.PublicKey(key)
		} else {
			priv, f := ed25519Private(key)
			if f != nil {
				return types.Fail(f)
			}
			pub = priv.Public().(ed25519.PublicKey)
		}
		if f := useInput(req, func(msg []byte) { valid = ed25519.Verify(pub, msg, sig) }); f != nil {
			return types.Fail(f)
		}
	case AlgorithmECDSAP256:
		pub, err := ecdsaPublicKey(key)
		if err != nil {
			return fail(failure.CoreInvalidKey, err)
		}
		digest, f := digestOf(req)
		if f != nil {
			return types.Fail(f)
		}
		valid = ecdsa.VerifyASN1(pub, digest[:], sig)
	}

	if !valid {
		return types.Fail(failure.Core(failure.CoreVerificationFailed, "signature does not match").
			WithContext("algorithm", alg))
	}
	return types.Succeed(types.Success{
		Metadata: map[string]string{"algorithm": alg, "verified": "true"},
	})
}

func digestOf(req *types.Request) ([sha256.Size]byte, *failure.SecurityFailure) {
	var sum [sha256.Size]byte
	f := useInput(req, func(b []byte) { sum = sha256.Sum256(b) })
	return sum, f
}
