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

package channel

import (
	"time"

	"github.com/awnumar/memguard"

	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// Channel endpoints.
const (
	PathExecute = "/api/v1/execute"
	PathStatus  = "/api/v1/status"
	PathHealth  = "/health"
)

// WireRequest is the JSON form of a types.Request. Byte fields travel as
// base64 and exist only for the duration of one exchange. InputData is
// always emitted so an empty message ("") stays distinct from an absent
// one (null).
type WireRequest struct {
	Kind          types.OperationKind `json:"kind"`
	InputData     []byte              `json:"input_data"`
	Key           []byte              `json:"key,omitempty"`
	KeyIdentifier string              `json:"key_identifier,omitempty"`
	Algorithm     string              `json:"algorithm,omitempty"`
	KeySizeBits   int                 `json:"key_size_bits,omitempty"`
	Signature     []byte              `json:"signature,omitempty"`
	Options       map[string]string   `json:"options,omitempty"`
}

// WireError is a failure in the protocol domain.
type WireError struct {
	Code    failure.ProtocolCode `json:"code"`
	Kind    failure.Kind         `json:"kind"`
	Message string               `json:"message"`
	Context map[string]string    `json:"context,omitempty"`
}

// WireResult is the JSON form of a types.Result. Exactly one of the
// success fields or Error is meaningful, selected by Success.
type WireResult struct {
	Success       bool              `json:"success"`
	Data          []byte            `json:"data,omitempty"`
	KeyIdentifier string            `json:"key_identifier,omitempty"`
	Identifiers   []string          `json:"identifiers,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Error         *WireError        `json:"error,omitempty"`
}

// WireStatus is the status snapshot served on PathStatus.
type WireStatus struct {
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	State         string            `json:"state"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	StartedAt     time.Time         `json:"started_at"`
	Backends      map[string]string `json:"backends,omitempty"`
}

// EncodeRequest copies req into its wire form. The caller must Wipe the
// result once it has been sent.
func EncodeRequest(req *types.Request) *WireRequest {
	w := &WireRequest{
		Kind:          req.Kind,
		InputData:     req.InputData.Bytes(),
		Key:           req.Key.Bytes(),
		KeyIdentifier: req.KeyIdentifier,
		Algorithm:     req.Algorithm,
		KeySizeBits:   req.KeySizeBits,
		Signature:     req.Signature.Bytes(),
	}
	if len(req.Options) > 0 {
		w.Options = make(map[string]string, len(req.Options))
		for k, v := range req.Options {
			w.Options[k] = v
		}
	}
	return w
}

// Decode converts w into a canonical request. Secret fields are moved,
// not copied; w's byte slices must not be reused.
func (w *WireRequest) Decode() *types.Request {
	return &types.Request{
		Kind:          w.Kind,
		InputData:     take(w.InputData),
		Key:           take(w.Key),
		KeyIdentifier: w.KeyIdentifier,
		Algorithm:     w.Algorithm,
		KeySizeBits:   w.KeySizeBits,
		Signature:     take(w.Signature),
		Options:       w.Options,
	}
}

// Wipe zeroes the secret fields of w.
func (w *WireRequest) Wipe() {
	memguard.WipeBytes(w.InputData)
	memguard.WipeBytes(w.Key)
	memguard.WipeBytes(w.Signature)
}

// EncodeResult converts res into its wire form. Failures are mapped into
// the protocol domain.
func EncodeResult(res types.Result) *WireResult {
	if s, ok := res.Success(); ok {
		return &WireResult{
			Success:       true,
			Data:          s.Data.Bytes(),
			KeyIdentifier: s.KeyIdentifier,
			Identifiers:   s.Identifiers,
			Metadata:      s.Metadata,
		}
	}
	f, ok := res.Failure()
	if !ok {
		f = failure.Core(failure.CoreInternal, "malformed result")
	}
	pe := failure.Default().ToProtocol(f)
	return &WireResult{
		Error: &WireError{
			Code:    pe.Code,
			Kind:    f.Kind,
			Message: f.Message,
			Context: pe.Context,
		},
	}
}

// Decode converts w into a canonical result. A result that claims neither
// success nor an error is reported as an internal failure.
func (w *WireResult) Decode() types.Result {
	switch {
	case w.Success && w.Error == nil:
		return types.Succeed(types.Success{
			Data:          take(w.Data),
			KeyIdentifier: w.KeyIdentifier,
			Identifiers:   w.Identifiers,
			Metadata:      w.Metadata,
		})
	case !w.Success && w.Error != nil:
		return types.Fail(w.Error.Failure())
	}
	return types.Fail(failure.Default().FromChannel(
		failure.NewChannelError(failure.ChannelDecodingFailed, "result has success=%t and error=%t", w.Success, w.Error != nil)))
}

// Failure converts the wire error into its canonical failure. The code
// decides the kind; unrecognised codes classify as unknown.
func (e *WireError) Failure() *failure.SecurityFailure {
	f := failure.Default().FromProtocol(&failure.ProtocolError{
		Code:    e.Code,
		Reason:  e.Message,
		Context: e.Context,
	})
	if e.Message != "" {
		f.Message = e.Message
	}
	return f
}

func take(b []byte) *securebytes.SecureBytes {
	if b == nil {
		return nil
	}
	return securebytes.Take(b)
}
