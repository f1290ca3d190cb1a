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

import "fmt"

// ChannelCode identifies a transport error on the process channel.
// Channel codes live in 2000-2999.
type ChannelCode int

const (
	ChannelUnknown               ChannelCode = 2000
	ChannelConnectionInterrupted ChannelCode = 2001
	ChannelConnectionInvalidated ChannelCode = 2002
	ChannelServiceUnavailable    ChannelCode = 2003
	ChannelTimeout               ChannelCode = 2004
	ChannelEncodingFailed        ChannelCode = 2005
	ChannelDecodingFailed        ChannelCode = 2006
	ChannelUnauthorized          ChannelCode = 2007
	ChannelInvalidCredentials    ChannelCode = 2008
	ChannelAccessDenied          ChannelCode = 2009
	ChannelSessionExpired        ChannelCode = 2010
	ChannelNotImplemented        ChannelCode = 2011
	ChannelRateLimited           ChannelCode = 2012

	// ChannelRemoteFailure carries an operation failure reported by the
	// remote peer. Its canonical kind is RemoteKind.
	ChannelRemoteFailure ChannelCode = 2100
)

// ChannelError is raised by the channel client for transport failures,
// kept distinct from the operation failures the remote side reports.
type ChannelError struct {
	Code       ChannelCode
	Reason     string
	RemoteKind Kind
	Err        error
}

// NewChannelError creates a channel error with a formatted reason.
func NewChannelError(code ChannelCode, format string, args ...any) *ChannelError {
	return &ChannelError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// WrapChannelError creates a channel error around err.
func WrapChannelError(code ChannelCode, err error, reason string) *ChannelError {
	return &ChannelError{Code: code, Reason: reason, Err: err}
}

func (e *ChannelError) Error() string {
	msg := fmt.Sprintf("channel error %d", e.Code)
	if e.Code == ChannelRemoteFailure {
		msg += " (" + e.RemoteKind.String() + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Interrupted reports whether the connection dropped mid-exchange. Only
// interrupted idempotent reads are eligible for a retry.
func (e *ChannelError) Interrupted() bool {
	return e.Code == ChannelConnectionInterrupted
}
