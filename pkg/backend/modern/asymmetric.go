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
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"strings"

	"github.com/awnumar/memguard"

	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// AlgorithmRSAOAEP is the only asymmetric encryption scheme.
const AlgorithmRSAOAEP = "RSA-OAEP-SHA256"

var errNotRSA = errors.New("key is not an RSA key")

func asymmetricAlgorithm(name string) bool {
	switch strings.ToUpper(name) {
	case "", "RSA", "RSA-OAEP", AlgorithmRSAOAEP:
		return true
	}
	return false
}

// rsaPublicKey accepts a PKIX public key or a PKCS#8 private key.
func rsaPublicKey(der []byte) (*rsa.PublicKey, error) {
	if pub, err := x509.ParsePKIXPublicKey(der); err == nil {
		if k, ok := pub.(*rsa.PublicKey); ok {
			return k, nil
		}
		return nil, errNotRSA
	}
	priv, err := rsaPrivateKey(der)
	if err != nil {
		return nil, err
	}
	return &priv.PublicKey, nil
}

func rsaPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	k, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errNotRSA
	}
	return k, nil
}

func ecdsaPrivateKey(der []byte) (*ecdsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	k, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("key is not an ECDSA key")
	}
	return k, nil
}

func ecdsaPublicKey(der []byte) (*ecdsa.PublicKey, error) {
	if pub, err := x509.ParsePKIXPublicKey(der); err == nil {
		if k, ok := pub.(*ecdsa.PublicKey); ok {
			return k, nil
		}
		return nil, errors.New("key is not an ECDSA key")
	}
	priv, err := ecdsaPrivateKey(der)
	if err != nil {
		return nil, err
	}
	return &priv.PublicKey, nil
}

func (b *Backend) encryptAsymmetric(req *types.Request, key []byte) types.Result {
	if !asymmetricAlgorithm(req.Algorithm) {
		return failf(failure.CoreUnsupportedAlgorithm, "asymmetric algorithm %q", req.Algorithm)
	}
	pub, err := rsaPublicKey(key)
	if err != nil {
		return fail(failure.CoreInvalidKey, err)
	}

	var ct []byte
	if f := useInput(req, func(plaintext []byte) {
		ct, err = rsa.EncryptOAEP(sha256.New(), b.rng, pub, plaintext, nil)
	}); f != nil {
		return types.Fail(f)
	}
	if err != nil {
		return fail(failure.CoreEncryptionFailed, err)
	}
	return types.Succeed(types.Success{
		Data:     securebytes.Take(ct),
		Metadata: map[string]string{"algorithm": AlgorithmRSAOAEP},
	})
}

func (b *Backend) decryptAsymmetric(req *types.Request, key []byte) types.Result {
	if !asymmetricAlgorithm(req.Algorithm) {
		return failf(failure.CoreUnsupportedAlgorithm, "asymmetric algorithm %q", req.Algorithm)
	}
	priv, err := rsaPrivateKey(key)
	if err != nil {
		return fail(failure.CoreInvalidKey, err)
	}

	var pt []byte
	if f := useInput(req, func(ciphertext []byte) {
		pt, err = rsa.DecryptOAEP(sha256.New(), nil, priv, ciphertext, nil)
	}); f != nil {
		return types.Fail(f)
	}
	if err != nil {
		return failf(failure.CoreDecryptionFailed, "RSA-OAEP decryption failed")
	}
	out := securebytes.New(pt)
	memguard.WipeBytes(pt)
	return types.Succeed(types.Success{
		Data:     out,
		Metadata: map[string]string{"algorithm": AlgorithmRSAOAEP},
	})
}
