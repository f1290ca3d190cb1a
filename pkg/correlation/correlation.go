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

// Package correlation carries a request correlation ID through a context
// and across the channel between a client and the gateway daemon.
package correlation

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey struct{}

const (
	// Header is the HTTP header that carries the correlation ID on the channel.
	Header = "X-Correlation-ID"

	// RequestIDHeader is accepted as a fallback when Header is absent.
	RequestIDHeader = "X-Request-ID"

	maxIDLen = 128
)

// WithID returns a context carrying id.
func WithID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, id)
}

// ID returns the correlation ID in ctx, or "".
func ID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// NewID generates a UUID v4 correlation ID.
func NewID() string {
	return uuid.New().String()
}

// Ensure returns ctx unchanged if it already carries an ID, otherwise a
// child context with a fresh one. The ID in effect is returned as well.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := ID(ctx); id != "" {
		return ctx, id
	}
	id := NewID()
	return WithID(ctx, id), id
}

// Inject copies the correlation ID from ctx onto an outgoing request.
func Inject(ctx context.Context, req *http.Request) {
	if id := ID(ctx); id != "" {
		req.Header.Set(Header, id)
	}
}

// FromRequest reads the correlation ID from an incoming request. Overlong
// or malformed values are replaced with a fresh ID.
func FromRequest(r *http.Request) string {
	id := r.Header.Get(Header)
	if id == "" {
		id = r.Header.Get(RequestIDHeader)
	}
	if id == "" || len(id) > maxIDLen || !printable(id) {
		return NewID()
	}
	return id
}

// Middleware attaches a correlation ID to every request context and echoes
// it in the response header.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := FromRequest(r)
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}

func printable(s string) bool {
	for _, r := range s {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}
