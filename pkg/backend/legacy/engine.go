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

package legacy

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha1" // #nosec G505 - retained for legacy digests
	"crypto/sha256"
	"errors"
	"hash"
	"io"
	"strings"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/box"

	"github.com/jeremyhahn/go-secgateway/pkg/failure"
)

// Engine operations.
const (
	OpSeal      = "seal"
	OpOpen      = "open"
	OpBoxSeal   = "box-seal"
	OpBoxOpen   = "box-open"
	OpDigest    = "digest"
	OpMAC       = "mac"
	OpSign      = "sign"
	OpVerify    = "verify"
	OpRandom    = "random"
	OpConfigure = "configure"
)

const chachaKeyInfo = "secgateway legacy chacha20-poly1305"

// Command is the engine's native request shape.
type Command struct {
	Op        string
	Algorithm string
	Payload   []byte
	Key       []byte
	// Aux carries the signature for OpVerify.
	Aux []byte
	// PublicKey marks Key as a public key for OpBoxSeal and OpVerify.
	PublicKey bool
	Length    int
	Settings  map[string]string
}

// Response is the engine's native result. Older callers relied on
// Success=false with no Err meaning "declined"; the adapter treats that
// state as an internal error.
type Response struct {
	Success bool
	Output  []byte
	Err     *failure.CoreError
}

// Engine is the deprecated in-process crypto engine. It speaks core-domain
// errors only.
type Engine struct {
	rng io.Reader
}

// NewEngine creates an engine drawing entropy from rng.
func NewEngine(rng io.Reader) *Engine {
	return &Engine{rng: rng}
}

// Process executes cmd.
func (e *Engine) Process(cmd *Command) *Response {
	if cmd == nil {
		return errResponse(failure.NewCoreError(failure.CoreInvalidInput, "nil command"))
	}
	switch cmd.Op {
	case OpSeal:
		return e.seal(cmd)
	case OpOpen:
		return e.open(cmd)
	case OpBoxSeal:
		return e.boxSeal(cmd)
	case OpBoxOpen:
		return e.boxOpen(cmd)
	case OpDigest:
		return e.digest(cmd)
	case OpMAC:
		return e.mac(cmd)
	case OpSign:
		return e.sign(cmd)
	case OpVerify:
		return e.verify(cmd)
	case OpRandom:
		return e.random(cmd)
	case OpConfigure:
		return &Response{Success: true}
	}
	return errResponse(failure.NewCoreError(failure.CoreUnsupportedOperation, "engine op %q", cmd.Op))
}

func errResponse(err *failure.CoreError) *Response {
	return &Response{Err: err}
}

func ok(out []byte) *Response {
	return &Response{Success: true, Output: out}
}

// deriveKey stretches a 32-byte key into the ChaCha20-Poly1305 subkey.
func deriveKey(key []byte) ([]byte, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.New("ChaCha20-Poly1305 keys are 32 bytes")
	}
	sub := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(chachaKeyInfo)), sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (e *Engine) seal(cmd *Command) *Response {
	sub, err := deriveKey(cmd.Key)
	if err != nil {
		return errResponse(failure.WrapCoreError(failure.CoreInvalidKeySize, err, err.Error()))
	}
	defer memguard.WipeBytes(sub)
	aead, err := chacha20poly1305.New(sub)
	if err != nil {
		return errResponse(failure.WrapCoreError(failure.CoreEncryptionFailed, err, ""))
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(cmd.Payload)+aead.Overhead())
	if _, err := io.ReadFull(e.rng, nonce); err != nil {
		return errResponse(failure.WrapCoreError(failure.CoreRandomGenerationFailed, err, ""))
	}
	return ok(aead.Seal(nonce, nonce, cmd.Payload, nil))
}

func (e *Engine) open(cmd *Command) *Response {
	sub, err := deriveKey(cmd.Key)
	if err != nil {
		return errResponse(failure.WrapCoreError(failure.CoreInvalidKeySize, err, err.Error()))
	}
	defer memguard.WipeBytes(sub)
	aead, err := chacha20poly1305.New(sub)
	if err != nil {
		return errResponse(failure.WrapCoreError(failure.CoreDecryptionFailed, err, ""))
	}
	if len(cmd.Payload) < aead.NonceSize()+aead.Overhead() {
		return errResponse(failure.NewCoreError(failure.CoreDecryptionFailed, "ciphertext too short"))
	}
	nonce, ct := cmd.Payload[:aead.NonceSize()], cmd.Payload[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return errResponse(failure.NewCoreError(failure.CoreDecryptionFailed, "authentication failed"))
	}
	return ok(pt)
}

func x25519Keys(key []byte, public bool) (pub, priv *[32]byte, err error) {
	if len(key) != 32 {
		return nil, nil, errors.New("X25519 keys are 32 bytes")
	}
	pub = new([32]byte)
	if public {
		copy(pub[:], key)
		return pub, nil, nil
	}
	priv = new([32]byte)
	copy(priv[:], key)
	derived, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	copy(pub[:], derived)
	return pub, priv, nil
}

func (e *Engine) boxSeal(cmd *Command) *Response {
	pub, priv, err := x25519Keys(cmd.Key, cmd.PublicKey)
	if err != nil {
		return errResponse(failure.WrapCoreError(failure.CoreInvalidKey, err, err.Error()))
	}
	if priv != nil {
		defer memguard.WipeBytes(priv[:])
	}
	out, err := box.SealAnonymous(nil, cmd.Payload, pub, e.rng)
	if err != nil {
		return errResponse(failure.WrapCoreError(failure.CoreEncryptionFailed, err, ""))
	}
	return ok(out)
}

func (e *Engine) boxOpen(cmd *Command) *Response {
	if cmd.PublicKey {
		return errResponse(failure.NewCoreError(failure.CoreInvalidKey, "opening a sealed box needs the private key"))
	}
	pub, priv, err := x25519Keys(cmd.Key, false)
	if err != nil {
		return errResponse(failure.WrapCoreError(failure.CoreInvalidKey, err, err.Error()))
	}
	defer memguard.WipeBytes(priv[:])
	out, opened := box.OpenAnonymous(nil, cmd.Payload, pub, priv)
	if !opened {
		return errResponse(failure.NewCoreError(failure.CoreDecryptionFailed, "sealed box did not open"))
	}
	return ok(out)
}

func digestFunc(alg string) (func() hash.Hash, bool) {
	switch strings.ToUpper(alg) {
	case "", "SHA-256", "SHA256":
		return sha256.New, true
	case "SHA-1", "SHA1":
		return sha1.New, true
	}
	return nil, false
}

func (e *Engine) digest(cmd *Command) *Response {
	newHash, found := digestFunc(cmd.Algorithm)
	if !found {
		return errResponse(failure.NewCoreError(failure.CoreUnsupportedAlgorithm, "digest %q", cmd.Algorithm))
	}
	h := newHash()
	h.Write(cmd.Payload)
	return ok(h.Sum(nil))
}

func (e *Engine) mac(cmd *Command) *Response {
	switch strings.ToUpper(cmd.Algorithm) {
	case "", "HMAC-SHA256":
	default:
		return errResponse(failure.NewCoreError(failure.CoreUnsupportedAlgorithm, "MAC %q", cmd.Algorithm))
	}
	if len(cmd.Key) == 0 {
		return errResponse(failure.NewCoreError(failure.CoreInvalidKey, "MAC key is empty"))
	}
	m := hmac.New(sha256.New, cmd.Key)
	m.Write(cmd.Payload)
	return ok(m.Sum(nil))
}

func signingKey(key []byte) (ed25519.PrivateKey, *failure.CoreError) {
	switch len(key) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(key), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(key), nil
	}
	return nil, failure.NewCoreError(failure.CoreInvalidKeySize, "Ed25519 keys are 32 or 64 bytes, got %d", len(key))
}

func checkSignatureAlgorithm(alg string) *failure.CoreError {
	switch strings.ToUpper(alg) {
	case "", "ED25519", "EDDSA":
		return nil
	}
	return failure.NewCoreError(failure.CoreUnsupportedAlgorithm, "signature %q", alg)
}

func (e *Engine) sign(cmd *Command) *Response {
	if err := checkSignatureAlgorithm(cmd.Algorithm); err != nil {
		return errResponse(err)
	}
	priv, cerr := signingKey(cmd.Key)
	if cerr != nil {
		return errResponse(cerr)
	}
	return ok(ed25519.Sign(priv, cmd.Payload))
}

func (e *Engine) verify(cmd *Command) *Response {
	if err := checkSignatureAlgorithm(cmd.Algorithm); err != nil {
		return errResponse(err)
	}
	var pub ed25519.PublicKey
	if cmd.PublicKey {
		if len(cmd.Key) != ed25519.PublicKeySize {
			return errResponse(failure.NewCoreError(failure.CoreInvalidKeySize, "Ed25519 public keys are 32 bytes"))
		}
		pub = ed25519.PublicKey(cmd.Key)
	} else {
		priv, cerr := signingKey(cmd.Key)
		if cerr != nil {
			return errResponse(cerr)
		}
		pub = priv.Public().(ed25519.PublicKey)
	}
	if !ed25519.Verify(pub, cmd.Payload, cmd.Aux) {
		return errResponse(failure.NewCoreError(failure.CoreVerificationFailed, "signature does not match"))
	}
	return ok(nil)
}

func (e *Engine) random(cmd *Command) *Response {
	if cmd.Length <= 0 {
		return errResponse(failure.NewCoreError(failure.CoreInvalidInput, "random length must be positive"))
	}
	out := make([]byte, cmd.Length)
	if _, err := io.ReadFull(e.rng, out); err != nil {
		return errResponse(failure.WrapCoreError(failure.CoreRandomGenerationFailed, err, ""))
	}
	return ok(out)
}
