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

package types

import (
	"strconv"
	"time"

	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
)

// Option names understood by the gateway and the built-in backends.
const (
	// OptionBackend selects a named backend for ExecuteDefault.
	OptionBackend = "backend"

	// OptionOverwrite ("true") lets storeKey replace an existing key.
	OptionOverwrite = "overwrite"
)

// Request is a canonical security operation request. Secret fields are
// owned by the caller; the gateway and backends never retain them.
type Request struct {
	Kind          OperationKind
	InputData     *securebytes.SecureBytes
	Key           *securebytes.SecureBytes
	KeyIdentifier string
	Algorithm     string
	KeySizeBits   int
	Signature     *securebytes.SecureBytes
	Options       map[string]string
}

// Option returns the named option or "".
func (r *Request) Option(name string) string {
	if r == nil || r.Options == nil {
		return ""
	}
	return r.Options[name]
}

// Destroy wipes every secret field of the request.
func (r *Request) Destroy() {
	if r == nil {
		return
	}
	r.InputData.Destroy()
	r.Key.Destroy()
	r.Signature.Destroy()
}

// KeyInfo is the non-secret view of a stored key.
type KeyInfo struct {
	Identifier string    `json:"identifier" yaml:"identifier"`
	Algorithm  string    `json:"algorithm" yaml:"algorithm"`
	SizeBits   int       `json:"size_bits" yaml:"size_bits"`
	Version    int       `json:"version" yaml:"version"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	RotatedAt  time.Time `json:"rotated_at,omitempty" yaml:"rotated_at,omitempty"`
}

// Metadata keys carrying KeyInfo fields in lifecycle results.
const (
	MetaAlgorithm = "algorithm"
	MetaSizeBits  = "size_bits"
	MetaVersion   = "version"
	MetaCreatedAt = "created_at"
	MetaRotatedAt = "rotated_at"
)

// Metadata renders k as result metadata. Timestamps use RFC 3339 with
// nanoseconds; a zero RotatedAt is omitted.
func (k KeyInfo) Metadata() map[string]string {
	md := map[string]string{
		MetaAlgorithm: k.Algorithm,
		MetaSizeBits:  strconv.Itoa(k.SizeBits),
		MetaVersion:   strconv.Itoa(k.Version),
	}
	if !k.CreatedAt.IsZero() {
		md[MetaCreatedAt] = k.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !k.RotatedAt.IsZero() {
		md[MetaRotatedAt] = k.RotatedAt.UTC().Format(time.RFC3339Nano)
	}
	return md
}

// KeyInfoFromMetadata is the inverse of KeyInfo.Metadata. Missing fields
// stay zero; malformed numbers or timestamps are errors.
func KeyInfoFromMetadata(identifier string, md map[string]string) (KeyInfo, error) {
	info := KeyInfo{Identifier: identifier, Algorithm: md[MetaAlgorithm]}
	var err error
	if v := md[MetaSizeBits]; v != "" {
		if info.SizeBits, err = strconv.Atoi(v); err != nil {
			return KeyInfo{}, err
		}
	}
	if v := md[MetaVersion]; v != "" {
		if info.Version, err = strconv.Atoi(v); err != nil {
			return KeyInfo{}, err
		}
	}
	if v := md[MetaCreatedAt]; v != "" {
		if info.CreatedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return KeyInfo{}, err
		}
	}
	if v := md[MetaRotatedAt]; v != "" {
		if info.RotatedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return KeyInfo{}, err
		}
	}
	return info, nil
}
