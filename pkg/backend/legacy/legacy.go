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

// Package legacy adapts the deprecated in-process crypto engine to the
// gateway's canonical model.
//
// The engine covers ChaCha20-Poly1305 sealing, NaCl anonymous boxes,
// SHA-256/SHA-1 digests, HMAC-SHA256, Ed25519 and random generation. It is
// also the backend that accepts configUpdate, which it acknowledges as a
// no-op.
package legacy

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/awnumar/memguard"

	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/backend"
	"github.com/jeremyhahn/go-secgateway/pkg/crypto/rand"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// OptionKeyForm marks a request key as "public" for encryptAsymmetric and
// verify. Private keys are the default.
const OptionKeyForm = "key_form"

// Config configures the legacy backend.
type Config struct {
	Keys   backend.KeyResolver
	Rand   rand.Resolver
	Logger logger.Logger
}

// Backend adapts Engine to backend.CryptoBackend.
type Backend struct {
	engine *Engine
	keys   backend.KeyResolver
	logger logger.Logger
	caps   backend.Capabilities
}

var _ backend.CryptoBackend = (*Backend)(nil)

// New creates a legacy backend around a fresh Engine.
func New(cfg *Config) *Backend {
	if cfg == nil {
		cfg = &Config{}
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.Default()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NoOp()
	}
	return &Backend{
		engine: NewEngine(rng),
		keys:   cfg.Keys,
		logger: log,
		caps: backend.AllCapabilities().Without(
			types.OpGenerateKey,
			types.OpStoreKey,
			types.OpRetrieveKey,
			types.OpRotateKey,
			types.OpDeleteKey,
			types.OpListKeys,
		),
	}
}

// Type implements backend.CryptoBackend.
func (b *Backend) Type() backend.Type {
	return backend.TypeLegacy
}

// Capabilities implements backend.CryptoBackend.
func (b *Backend) Capabilities() backend.Capabilities {
	return b.caps
}

// Close implements backend.CryptoBackend.
func (b *Backend) Close() error {
	return nil
}

var engineOps = map[types.OperationKind]string{
	types.OpEncryptSymmetric:  OpSeal,
	types.OpDecryptSymmetric:  OpOpen,
	types.OpEncryptAsymmetric: OpBoxSeal,
	types.OpDecryptAsymmetric: OpBoxOpen,
	types.OpHash:              OpDigest,
	types.OpMAC:               OpMAC,
	types.OpSign:              OpSign,
	types.OpVerify:            OpVerify,
	types.OpGenerateRandom:    OpRandom,
	types.OpConfigUpdate:      OpConfigure,
}

var keyedOps = map[string]bool{
	OpSeal: true, OpOpen: true, OpBoxSeal: true, OpBoxOpen: true,
	OpMAC: true, OpSign: true, OpVerify: true,
}

// Perform implements backend.CryptoBackend.
func (b *Backend) Perform(ctx context.Context, req *types.Request) types.Result {
	op, found := engineOps[req.Kind]
	if !found {
		return types.Fail(failure.Core(failure.CoreUnsupportedOperation, "legacy backend does not support %s", req.Kind))
	}

	cmd := &Command{
		Op:        op,
		Algorithm: req.Algorithm,
		Payload:   req.InputData.Bytes(),
		Aux:       req.Signature.Bytes(),
		PublicKey: strings.EqualFold(req.Option(OptionKeyForm), "public"),
		Length:    req.KeySizeBits / 8,
		Settings:  req.Options,
	}
	defer memguard.WipeBytes(cmd.Payload)

	if keyedOps[op] {
		key, err := backend.ResolveKey(ctx, b.keys, req)
		if err != nil {
			if f, ok := failure.As(err); ok {
				return types.Fail(f)
			}
			return types.Fail(failure.Default().FromCore(failure.WrapCoreError(failure.CoreInvalidKey, err, err.Error())))
		}
		cmd.Key = key.Bytes()
		key.Destroy()
		defer memguard.WipeBytes(cmd.Key)
	}

	if op == OpConfigure {
		b.logger.WarnContext(ctx, "configuration update acknowledged without effect",
			logger.Strings("settings", settingNames(req.Options)))
	}

	return b.translate(b.engine.Process(cmd), req)
}

// translate maps an engine response onto the canonical result.
func (b *Backend) translate(resp *Response, req *types.Request) types.Result {
	switch {
	case resp == nil:
		return types.Fail(failure.Core(failure.CoreInternal, "legacy engine returned no response"))
	case resp.Err != nil:
		return types.Fail(failure.Default().FromCore(resp.Err))
	case !resp.Success:
		return types.Fail(failure.Core(failure.CoreInternal, "legacy engine declined %s without an error", req.Kind))
	}

	meta := map[string]string{}
	switch req.Kind {
	case types.OpConfigUpdate:
		meta["applied"] = "false"
		meta["settings"] = strconv.Itoa(len(req.Options))
	case types.OpVerify:
		meta["verified"] = "true"
	}

	var out *securebytes.SecureBytes
	if resp.Output != nil {
		out = securebytes.Take(resp.Output)
	}
	return types.Succeed(types.Success{Data: out, Metadata: meta})
}

func settingNames(options map[string]string) []string {
	names := make([]string, 0, len(options))
	for k := range options {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
