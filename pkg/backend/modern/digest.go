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
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

var hashes = map[string]func() hash.Hash{
	"SHA-256":  sha256.New,
	"SHA-384":  sha512.New384,
	"SHA-512":  sha512.New,
	"SHA3-256": func() hash.Hash { return sha3.New256() },
	"SHA3-512": func() hash.Hash { return sha3.New512() },
	"BLAKE2B-256": func() hash.Hash {
		h, _ := blake2b.New256(nil)
		return h
	},
}

var macs = map[string]func() hash.Hash{
	"HMAC-SHA256": sha256.New,
	"HMAC-SHA384": sha512.New384,
	"HMAC-SHA512": sha512.New,
}

func normalize(name, fallback string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return fallback
	}
	return strings.ReplaceAll(name, "_", "-")
}

func (b *Backend) hash(req *types.Request) types.Result {
	alg := normalize(req.Algorithm, "SHA-256")
	newHash, ok := hashes[alg]
	if !ok {
		return failf(failure.CoreUnsupportedAlgorithm, "hash algorithm %q", req.Algorithm)
	}
	h := newHash()
	if f := useInput(req, func(data []byte) { h.Write(data) }); f != nil {
		return types.Fail(f)
	}
	return types.Succeed(types.Success{
		Data:     securebytes.Take(h.Sum(nil)),
		Metadata: map[string]string{"algorithm": alg},
	})
}

func (b *Backend) mac(req *types.Request, key []byte) types.Result {
	alg := normalize(req.Algorithm, "HMAC-SHA256")
	newHash, ok := macs[alg]
	if !ok {
		return failf(failure.CoreUnsupportedAlgorithm, "MAC algorithm %q", req.Algorithm)
	}
	if len(key) == 0 {
		return failf(failure.CoreInvalidKey, "MAC key is empty")
	}
	m := hmac.New(newHash, key)
	if f := useInput(req, func(data []byte) { m.Write(data) }); f != nil {
		return types.Fail(f)
	}
	return types.Succeed(types.Success{
		Data:     securebytes.Take(m.Sum(nil)),
		Metadata: map[string]string{"algorithm": alg},
	})
}
