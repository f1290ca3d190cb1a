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

package gateway

import (
	"context"
	"strconv"

	"github.com/jeremyhahn/go-secgateway/pkg/backend"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/keystore"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// lifecycle serves the key lifecycle kinds from the key store. b is only
// used to re-encrypt a rotation payload.
func (g *Gateway) lifecycle(ctx context.Context, req *types.Request, b backend.CryptoBackend) types.Result {
	if g.keys == nil {
		return types.Fail(failure.Core(failure.CoreServiceUnavailable, "no key store configured").
			WithContext("operation", req.Kind.String()))
	}

	switch req.Kind {
	case types.OpGenerateKey:
		id, err := g.keys.Generate(ctx, req.Algorithm, req.KeySizeBits, req.KeyIdentifier)
		if err != nil {
			return types.FailWith(err)
		}
		g.keyChanged(id, b)
		return g.describe(ctx, id, nil)

	case types.OpStoreKey:
		opts := keystore.StoreOptions{Algorithm: req.Algorithm}
		if v := req.Option(types.OptionOverwrite); v != "" {
			overwrite, err := strconv.ParseBool(v)
			if err != nil {
				return types.Fail(failure.Core(failure.CoreInvalidInput, "option %s must be a boolean", types.OptionOverwrite))
			}
			opts.Overwrite = overwrite
		}
		if err := g.keys.Store(ctx, req.Key, req.KeyIdentifier, opts); err != nil {
			return types.FailWith(err)
		}
		g.keyChanged(req.KeyIdentifier, b)
		return g.describe(ctx, req.KeyIdentifier, nil)

	case types.OpRetrieveKey:
		material, err := g.keys.Retrieve(ctx, req.KeyIdentifier)
		if err != nil {
			return types.FailWith(err)
		}
		return g.describe(ctx, req.KeyIdentifier, material)

	case types.OpRotateKey:
		rot, err := g.keys.Rotate(ctx, req.KeyIdentifier, req.InputData, g.reencrypter(b, req))
		if err != nil {
			return types.FailWith(err)
		}
		g.keyChanged(req.KeyIdentifier, b)
		// the new material stays in the key store
		rot.NewKey.Destroy()
		return types.Succeed(types.Success{
			Data:          rot.Reencrypted,
			KeyIdentifier: req.KeyIdentifier,
			Metadata:      rot.Info.Metadata(),
		})

	case types.OpDeleteKey:
		if err := g.keys.Delete(ctx, req.KeyIdentifier); err != nil {
			return types.FailWith(err)
		}
		g.keyChanged(req.KeyIdentifier, b)
		return types.Succeed(types.Success{KeyIdentifier: req.KeyIdentifier})

	case types.OpListKeys:
		ids, err := g.keys.List(ctx)
		if err != nil {
			return types.FailWith(err)
		}
		return types.Succeed(types.Success{Identifiers: ids})
	}

	return types.Fail(failure.Core(failure.CoreUnsupportedOperation, "%s is not a key lifecycle operation", req.Kind))
}

// keyChanged tells every registered backend, and selected when it is not
// registered, that the material under id was replaced or removed.
func (g *Gateway) keyChanged(id string, selected backend.CryptoBackend) {
	registered := false
	for _, name := range g.names {
		b := g.backends[name]
		if b == selected {
			registered = true
		}
		if o, ok := b.(backend.KeyObserver); ok {
			o.KeyChanged(id)
		}
	}
	if selected == nil || registered {
		return
	}
	if o, ok := selected.(backend.KeyObserver); ok {
		o.KeyChanged(id)
	}
}

// describe builds a lifecycle success carrying the key's metadata. A
// metadata lookup failure does not fail an operation that already
// committed.
func (g *Gateway) describe(ctx context.Context, id string, data *securebytes.SecureBytes) types.Result {
	s := types.Success{Data: data, KeyIdentifier: id}
	if info, err := g.keys.Inspect(ctx, id); err == nil {
		s.Metadata = info.Metadata()
	}
	return types.Succeed(s)
}

// reencrypter returns the function that moves a rotation payload from the
// old key to the new one by decrypting and re-encrypting through b. The
// request's algorithm and options (for example AAD) apply to both steps.
func (g *Gateway) reencrypter(b backend.CryptoBackend, req *types.Request) keystore.ReencryptFunc {
	return func(ctx context.Context, payload, oldKey, newKey *securebytes.SecureBytes, _ string) (*securebytes.SecureBytes, error) {
		if b == nil {
			return nil, failure.Core(failure.CoreServiceUnavailable, "no backend selected to re-encrypt the rotation payload")
		}

		plain := backend.Invoke(ctx, b, &types.Request{
			Kind:      types.OpDecryptSymmetric,
			InputData: payload,
			Key:       oldKey,
			Algorithm: req.Algorithm,
			Options:   req.Options,
		}, g.logger)
		opened, ok := plain.Success()
		if !ok {
			return nil, plain.Err()
		}
		defer opened.Data.Destroy()

		sealed := backend.Invoke(ctx, b, &types.Request{
			Kind:      types.OpEncryptSymmetric,
			InputData: opened.Data,
			Key:       newKey,
			Algorithm: req.Algorithm,
			Options:   req.Options,
		}, g.logger)
		out, ok := sealed.Success()
		if !ok {
			return nil, sealed.Err()
		}
		return out.Data, nil
	}
}
