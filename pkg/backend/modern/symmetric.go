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
	"crypto/aes"
	"crypto/cipher"
	"strings"

	"github.com/awnumar/memguard"

	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// AlgorithmAESGCM is recorded in every symmetric envelope.
const AlgorithmAESGCM = "AES-GCM"

func symmetricAlgorithm(name string) (string, bool) {
	switch strings.ToUpper(name) {
	case "", "AES", "AES-GCM", "AES-128-GCM", "AES-192-GCM", "AES-256-GCM":
		return AlgorithmAESGCM, true
	}
	return "", false
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func checkAESKey(key []byte) *failure.SecurityFailure {
	switch len(key) {
	case 16, 24, 32:
		return nil
	}
	return failure.Core(failure.CoreInvalidKeySize, "AES keys are 16, 24 or 32 bytes, got %d", len(key))
}

func (b *Backend) encryptSymmetric(req *types.Request, key []byte) types.Result {
	alg, ok := symmetricAlgorithm(req.Algorithm)
	if !ok {
		return failf(failure.CoreUnsupportedAlgorithm, "symmetric algorithm %q", req.Algorithm)
	}
	if f := checkAESKey(key); f != nil {
		return types.Fail(f)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return fail(failure.CoreEncryptionFailed, err)
	}
	nonce, err := b.rng.Rand(gcm.NonceSize())
	if err != nil {
		return fail(failure.CoreRandomGenerationFailed, err)
	}
	if err := b.tracker.Track(keyRef(req, key), nonce, int64(req.InputData.Len())); err != nil {
		b.logger.Warn("AEAD safety limit reached",
			logger.String("key_ref", keyRef(req, key)),
			logger.Error(err))
		return fail(failure.CoreEncryptionFailed, err)
	}

	var sealed []byte
	if f := useInput(req, func(plaintext []byte) {
		sealed = gcm.Seal(nil, nonce, plaintext, []byte(req.Option(OptionAAD)))
	}); f != nil {
		return types.Fail(f)
	}
	tagStart := len(sealed) - gcm.Overhead()
	env := &envelope{
		Algorithm:  alg,
		Nonce:      nonce,
		Tag:        sealed[tagStart:],
		Ciphertext: sealed[:tagStart],
	}
	out, err := env.marshal()
	if err != nil {
		return fail(failure.CoreEncryptionFailed, err)
	}
	return types.Succeed(types.Success{
		Data:     securebytes.Take(out),
		Metadata: map[string]string{"algorithm": alg},
	})
}

func (b *Backend) decryptSymmetric(req *types.Request, key []byte) types.Result {
	if _, ok := symmetricAlgorithm(req.Algorithm); !ok {
		return failf(failure.CoreUnsupportedAlgorithm, "symmetric algorithm %q", req.Algorithm)
	}
	if f := checkAESKey(key); f != nil {
		return types.Fail(f)
	}
	env, err := unmarshalEnvelope(req.InputData.Bytes())
	if err != nil {
		return fail(failure.CoreDecryptionFailed, err)
	}
	if env.Algorithm != AlgorithmAESGCM {
		return failf(failure.CoreDecryptionFailed, "ciphertext was produced with %q", env.Algorithm)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return fail(failure.CoreDecryptionFailed, err)
	}
	if len(env.Nonce) != gcm.NonceSize() || len(env.Tag) != gcm.Overhead() {
		return failf(failure.CoreDecryptionFailed, "envelope nonce or tag has the wrong size")
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)
	plaintext, err := gcm.Open(nil, env.Nonce, sealed, []byte(req.Option(OptionAAD)))
	if err != nil {
		return failf(failure.CoreDecryptionFailed, "authentication failed")
	}
	out := securebytes.New(plaintext)
	memguard.WipeBytes(plaintext)
	return types.Succeed(types.Success{
		Data:     out,
		Metadata: map[string]string{"algorithm": AlgorithmAESGCM},
	})
}
