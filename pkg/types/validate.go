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
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/validation"
)

type requirement uint

const (
	needInput requirement = 1 << iota
	needInputPresent
	needKeyOrID
	needKey
	needKeyID
	needAlgorithm
	needSignature
	needRandomLength
)

// requiredFields is the per-kind table checked before dispatch.
var requiredFields = map[OperationKind]requirement{
	OpEncryptSymmetric:  needInput | needKeyOrID,
	OpDecryptSymmetric:  needInput | needKeyOrID,
	OpEncryptAsymmetric: needInput | needKeyOrID,
	OpDecryptAsymmetric: needInput | needKeyOrID,
	OpHash:              needInput,
	OpMAC:               needInput | needKeyOrID,
	OpSign:              needInput | needKeyOrID,
	OpVerify:            needInputPresent | needKeyOrID | needSignature,
	OpGenerateKey:       needAlgorithm,
	OpStoreKey:          needKey | needKeyID,
	OpRetrieveKey:       needKeyID,
	OpRotateKey:         needKeyID,
	OpDeleteKey:         needKeyID,
	OpListKeys:          0,
	OpGenerateRandom:    needRandomLength,
	OpConfigUpdate:      0,
}

var checks = []struct {
	req   requirement
	field string
	ok    func(*Request) bool
}{
	{needInput, "inputData", func(r *Request) bool { return !securebytes.IsEmpty(r.InputData) }},
	{needInputPresent, "inputData", func(r *Request) bool { return r.InputData != nil }},
	{needKeyOrID, "key or keyIdentifier", func(r *Request) bool {
		return !securebytes.IsEmpty(r.Key) || r.KeyIdentifier != ""
	}},
	{needKey, "key", func(r *Request) bool { return !securebytes.IsEmpty(r.Key) }},
	{needKeyID, "keyIdentifier", func(r *Request) bool { return r.KeyIdentifier != "" }},
	{needAlgorithm, "algorithm", func(r *Request) bool { return r.Algorithm != "" }},
	{needSignature, "signature", func(r *Request) bool { return !securebytes.IsEmpty(r.Signature) }},
	{needRandomLength, "keySizeBits", func(r *Request) bool { return r.KeySizeBits > 0 && r.KeySizeBits%8 == 0 }},
}

// RequiredFields lists the field names kind requires, in check order.
func RequiredFields(kind OperationKind) []string {
	var out []string
	for _, c := range checks {
		if requiredFields[kind]&c.req != 0 {
			out = append(out, c.field)
		}
	}
	return out
}

// Validate checks req against the required-field table for its kind.
// It returns nil when the request may be dispatched.
func Validate(req *Request) *failure.SecurityFailure {
	if req == nil {
		return failure.Protocol(failure.ProtocolInvalidFormat, "request is nil")
	}

	need, ok := requiredFields[req.Kind]
	if !ok {
		return failure.Protocol(failure.ProtocolUnsupportedOperation, "operation kind %d is not recognised", int(req.Kind)).
			WithContext("operation", req.Kind.String())
	}

	for _, c := range checks {
		if need&c.req != 0 && !c.ok(req) {
			return failure.Protocol(failure.ProtocolMissingField, "%s", c.field).
				WithContext("operation", req.Kind.String()).
				WithContext("field", c.field)
		}
	}

	if req.KeySizeBits < 0 {
		return failure.Protocol(failure.ProtocolInvalidFormat, "keySizeBits must not be negative").
			WithContext("operation", req.Kind.String())
	}
	if req.KeyIdentifier != "" {
		if err := validation.ValidateKeyID(req.KeyIdentifier); err != nil {
			return failure.Protocol(failure.ProtocolInvalidFormat, "%v", err).
				WithContext("operation", req.Kind.String())
		}
	}
	if req.Algorithm != "" {
		if err := validation.ValidateAlgorithm(req.Algorithm); err != nil {
			return failure.Protocol(failure.ProtocolInvalidFormat, "%v", err).
				WithContext("operation", req.Kind.String())
		}
	}
	return nil
}
