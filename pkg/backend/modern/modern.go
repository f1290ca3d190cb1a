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

// Package modern implements the primary gateway backend on the Go standard
// crypto library and golang.org/x/crypto.
//
// Supported operations:
//   - encryptSymmetric / decryptSymmetric: AES-GCM with a versioned envelope
//   - encryptAsymmetric / decryptAsymmetric: RSA-OAEP with SHA-256
//   - hash: SHA-256, SHA-384, SHA-512, SHA3-256, SHA3-512, BLAKE2B-256
//   - mac: HMAC-SHA256, HMAC-SHA384, HMAC-SHA512
//   - sign / verify: Ed25519 and ECDSA P-256
//   - generateRandom
//
// Key lifecycle kinds are served by the key store, and configUpdate by the
// legacy backend.
package modern

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/backend"
	"github.com/jeremyhahn/go-secgateway/pkg/crypto/rand"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// Request options understood by this backend.
const (
	// OptionAAD is additional authenticated data for AES-GCM.
	OptionAAD = "aad"

	// OptionKeyForm selects how a 32-byte Ed25519 verify key is read:
	// "private" (seed, the default) or "public".
	OptionKeyForm = "key_form"
)

// Config configures the modern backend.
type Config struct {
	// Keys resolves key identifiers. Usually the gateway key store.
	Keys backend.KeyResolver

	// Rand supplies nonces, signatures and generateRandom output.
	Rand rand.Resolver

	// Tracker enforces AEAD nonce uniqueness and volume limits. Defaults
	// to an in-memory tracker.
	Tracker backend.AEADTracker

	Logger logger.Logger
}

// Backend is the modern CryptoBackend.
type Backend struct {
	keys    backend.KeyResolver
	rng     rand.Resolver
	tracker backend.AEADTracker
	logger  logger.Logger
	caps    backend.Capabilities
}

var (
	_ backend.CryptoBackend = (*Backend)(nil)
	_ backend.KeyObserver   = (*Backend)(nil)
)

// New creates a modern backend.
func New(cfg *Config) *Backend {
	if cfg == nil {
		cfg = &Config{}
	}
	b := &Backend{
		keys:    cfg.Keys,
		rng:     cfg.Rand,
		tracker: cfg.Tracker,
		logger:  cfg.Logger,
		caps: backend.NewCapabilities(
			types.OpEncryptSymmetric,
			types.OpDecryptSymmetric,
			types.OpEncryptAsymmetric,
			types.OpDecryptAsymmetric,
			types.OpHash,
			types.OpMAC,
			types.OpSign,
			types.OpVerify,
			types.OpGenerateRandom,
		),
	}
	if b.rng == nil {
		b.rng = rand.Default()
	}
	if b.tracker == nil {
		b.tracker = backend.NewMemoryAEADTracker(nil)
	}
	if b.logger == nil {
		b.logger = logger.NoOp()
	}
	return b
}

// Type implements backend.CryptoBackend.
func (b *Backend) Type() backend.Type {
	return backend.TypeModern
}

// Capabilities implements backend.CryptoBackend.
func (b *Backend) Capabilities() backend.Capabilities {
	return b.caps
}

// Close implements backend.CryptoBackend.
func (b *Backend) Close() error {
	return nil
}

// KeyChanged implements backend.KeyObserver. The replacement key starts
// with fresh AEAD tracking state.
func (b *Backend) KeyChanged(identifier string) {
	b.tracker.Reset(identifierRef(identifier))
}

// Health implements backend.HealthChecker by drawing one random byte.
func (b *Backend) Health(context.Context) error {
	_, err := b.rng.Rand(1)
	return err
}

// Perform implements backend.CryptoBackend.
func (b *Backend) Perform(ctx context.Context, req *types.Request) types.Result {
	if f := checkLive(req); f != nil {
		return types.Fail(f)
	}
	switch req.Kind {
	case types.OpEncryptSymmetric:
		return b.withKey(ctx, req, b.encryptSymmetric)
	case types.OpDecryptSymmetric:
		return b.withKey(ctx, req, b.decryptSymmetric)
	case types.OpEncryptAsymmetric:
		return b.withKey(ctx, req, b.encryptAsymmetric)
	case types.OpDecryptAsymmetric:
		return b.withKey(ctx, req, b.decryptAsymmetric)
	case types.OpHash:
		return b.hash(req)
	case types.OpMAC:
		return b.withKey(ctx, req, b.mac)
	case types.OpSign:
		return b.withKey(ctx, req, b.sign)
	case types.OpVerify:
		return b.withKey(ctx, req, b.verify)
	case types.OpGenerateRandom:
		return b.random(req)
	}
	return types.Fail(failure.Core(failure.CoreUnsupportedOperation, "modern backend does not support %s", req.Kind))
}

// checkLive rejects a request whose secret fields were destroyed before
// dispatch.
func checkLive(req *types.Request) *failure.SecurityFailure {
	fields := []struct {
		name string
		data *securebytes.SecureBytes
	}{
		{"inputData", req.InputData},
		{"key", req.Key},
		{"signature", req.Signature},
	}
	for _, field := range fields {
		if field.data.IsDestroyed() {
			return failure.Core(failure.CoreInvalidInput, "%s has been destroyed", field.name)
		}
	}
	return nil
}

// useInput lends the request input to fn.
func useInput(req *types.Request, fn func(data []byte)) *failure.SecurityFailure {
	err := req.InputData.Use(func(data []byte) error {
		fn(data)
		return nil
	})
	if err != nil {
		return failure.Core(failure.CoreInvalidInput, "inputData is unavailable: %v", err)
	}
	return nil
}

type keyedOp func(req *types.Request, key []byte) types.Result

// withKey resolves the request key and lends it to op for the duration of
// the call.
func (b *Backend) withKey(ctx context.Context, req *types.Request, op keyedOp) types.Result {
	key, err := backend.ResolveKey(ctx, b.keys, req)
	if err != nil {
		return fail(failure.CoreInvalidKey, err)
	}
	defer key.Destroy()

	var res types.Result
	if err := key.Use(func(k []byte) error {
		res = op(req, k)
		return nil
	}); err != nil {
		return fail(failure.CoreInvalidKey, err)
	}
	return res
}

func (b *Backend) random(req *types.Request) types.Result {
	out, err := b.rng.Rand(req.KeySizeBits / 8)
	if err != nil {
		return fail(failure.CoreRandomGenerationFailed, err)
	}
	return types.Succeed(types.Success{
		Data:     securebytes.Take(out),
		Metadata: map[string]string{"size_bits": strconv.Itoa(req.KeySizeBits)},
	})
}

// keyRef names the key for AEAD tracking without exposing material.
func keyRef(req *types.Request, key []byte) string {
	if req.KeyIdentifier != "" && securebytes.IsEmpty(req.Key) {
		return identifierRef(req.KeyIdentifier)
	}
	sum := sha256.Sum256(key)
	return "fp:" + hex.EncodeToString(sum[:8])
}

func identifierRef(identifier string) string {
	return "id:" + identifier
}

// fail converts err into a canonical failure result. Errors that are
// already canonical keep their kind; anything else is wrapped as code.
func fail(code failure.CoreCode, err error) types.Result {
	if f, ok := failure.As(err); ok {
		return types.Fail(f)
	}
	return types.Fail(failure.Default().FromCore(failure.WrapCoreError(code, err, err.Error())))
}

func failf(code failure.CoreCode, format string, args ...any) types.Result {
	return types.Fail(failure.Core(code, format, args...))
}
