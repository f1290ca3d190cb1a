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
)

// Success is the payload of a successful Result.
type Success struct {
	Data          *securebytes.SecureBytes
	KeyIdentifier string
	Identifiers   []string
	Metadata      map[string]string
}

// Result is a tagged union: exactly one of success or failure is set.
// Construct it with Succeed or Fail; the zero Result is not valid.
type Result struct {
	success *Success
	failure *failure.SecurityFailure
}

// Succeed returns a successful result.
func Succeed(s Success) Result {
	if s.Metadata == nil {
		s.Metadata = make(map[string]string)
	}
	return Result{success: &s}
}

// Fail returns a failed result. A nil failure is a programming error.
func Fail(f *failure.SecurityFailure) Result {
	if f == nil {
		panic("types: Fail called with a nil failure")
	}
	return Result{failure: f}
}

// FailWith translates err into a canonical failure result. err must be
// non-nil.
func FailWith(err error) Result {
	return Fail(failure.ToCanonical(err))
}

// Valid reports whether exactly one variant is populated.
func (r Result) Valid() bool {
	return (r.success != nil) != (r.failure != nil)
}

// IsSuccess reports whether r is a well-formed success.
func (r Result) IsSuccess() bool {
	return r.success != nil && r.failure == nil
}

// Success returns the success payload.
func (r Result) Success() (*Success, bool) {
	if !r.IsSuccess() {
		return nil, false
	}
	return r.success, true
}

// Failure returns the failure.
func (r Result) Failure() (*failure.SecurityFailure, bool) {
	if r.failure == nil {
		return nil, false
	}
	return r.failure, true
}

// Err returns the failure as an error, or nil for a success.
func (r Result) Err() error {
	if r.failure == nil {
		return nil
	}
	return r.failure
}

// FailureKind returns the failure kind, or KindUnknown for a success.
func (r Result) FailureKind() failure.Kind {
	if r.failure == nil {
		return failure.KindUnknown
	}
	return r.failure.Kind
}
