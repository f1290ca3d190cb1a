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

package failure

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain names the error domain a failure originated in.
type Domain string

const (
	DomainCore     Domain = "core"
	DomainChannel  Domain = "channel"
	DomainProtocol Domain = "protocol"
)

// SecurityFailure is the canonical error returned across every component
// boundary. Values are produced by a Translator; backends and the key
// store report domain errors and let the translator build the failure.
type SecurityFailure struct {
	Kind    Kind              `json:"kind"`
	Domain  Domain            `json:"domain"`
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`

	cause error
}

// Error implements the error interface.
func (f *SecurityFailure) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s %d)", f.Kind, f.Domain, f.Code)
	if f.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(f.Message)
	}
	if len(f.Context) > 0 {
		keys := make([]string, 0, len(f.Context))
		for k := range f.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "%s=%s", k, f.Context[k])
		}
		sb.WriteString("]")
	}
	return sb.String()
}

// Unwrap returns the domain error the failure was translated from.
func (f *SecurityFailure) Unwrap() error {
	return f.cause
}

// Is matches another SecurityFailure of the same kind, so kind sentinels
// work with errors.Is.
func (f *SecurityFailure) Is(target error) bool {
	t, ok := target.(*SecurityFailure)
	if !ok {
		return false
	}
	return t.Kind == f.Kind
}

// WithContext returns a copy of f carrying an additional context entry.
// Keys that look like they name secret material are dropped.
func (f *SecurityFailure) WithContext(key, value string) *SecurityFailure {
	out := *f
	out.Context = sanitizeContext(f.Context)
	if out.Context == nil {
		out.Context = make(map[string]string, 1)
	}
	if k, v, ok := sanitizeEntry(key, value); ok {
		out.Context[k] = v
	}
	return &out
}

// Kind sentinels for errors.Is.
var (
	ErrUnknown                = &SecurityFailure{Kind: KindUnknown}
	ErrInvalidInput           = &SecurityFailure{Kind: KindInvalidInput}
	ErrKeyNotFound            = &SecurityFailure{Kind: KindKeyNotFound}
	ErrDuplicateIdentifier    = &SecurityFailure{Kind: KindDuplicateIdentifier}
	ErrUnsupportedOperation   = &SecurityFailure{Kind: KindUnsupportedOperation}
	ErrEncryptionFailed       = &SecurityFailure{Kind: KindEncryptionFailed}
	ErrDecryptionFailed       = &SecurityFailure{Kind: KindDecryptionFailed}
	ErrSignatureFailed        = &SecurityFailure{Kind: KindSignatureFailed}
	ErrVerificationFailed     = &SecurityFailure{Kind: KindVerificationFailed}
	ErrKeyGenerationFailed    = &SecurityFailure{Kind: KindKeyGenerationFailed}
	ErrRandomGenerationFailed = &SecurityFailure{Kind: KindRandomGenerationFailed}
	ErrStorageFailed          = &SecurityFailure{Kind: KindStorageFailed}
	ErrChannelUnavailable     = &SecurityFailure{Kind: KindChannelUnavailable}
	ErrTimeout                = &SecurityFailure{Kind: KindTimeout}
	ErrAuthorizationDenied    = &SecurityFailure{Kind: KindAuthorizationDenied}
	ErrInternalError          = &SecurityFailure{Kind: KindInternalError}
)

// As extracts the SecurityFailure from err's chain.
func As(err error) (*SecurityFailure, bool) {
	var f *SecurityFailure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// KindOf classifies any error. Errors that are not yet canonical are run
// through the default translator.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if f, ok := As(err); ok {
		return f.Kind
	}
	return ToCanonical(err).Kind
}

// IsKind reports whether err classifies as k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
