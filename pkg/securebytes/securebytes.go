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

// Package securebytes provides an opaque container for secret byte
// sequences such as keys, plaintext, ciphertext and signatures.
//
// A SecureBytes value never renders its contents through fmt, log/slog or
// encoding/json. The backing array is wiped with memguard when Destroy is
// called, or by a finalizer once the value becomes unreachable.
package securebytes

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/awnumar/memguard"
)

var (
	// ErrIndexOutOfRange is returned by ByteAt for an index outside [0, Len).
	ErrIndexOutOfRange = errors.New("securebytes: index out of range")

	// ErrDestroyed is returned when a destroyed buffer is lent out via Use.
	ErrDestroyed = errors.New("securebytes: buffer destroyed")
)

// SecureBytes is an explicitly sized, wipeable byte buffer.
type SecureBytes struct {
	mu        sync.RWMutex
	data      []byte
	destroyed bool
}

// New copies b into a new SecureBytes. The caller keeps ownership of b.
func New(b []byte) *SecureBytes {
	buf := make([]byte, len(b))
	copy(buf, b)
	return wrap(buf)
}

// Take wraps b without copying. The caller must not retain or modify b.
func Take(b []byte) *SecureBytes {
	return wrap(b)
}

// FromString copies the bytes of s into a new SecureBytes.
func FromString(s string) *SecureBytes {
	return wrap([]byte(s))
}

func wrap(b []byte) *SecureBytes {
	s := &SecureBytes{data: b}
	runtime.SetFinalizer(s, (*SecureBytes).Destroy)
	return s
}

// IsEmpty reports whether s is nil, destroyed or zero length.
func IsEmpty(s *SecureBytes) bool {
	return s == nil || s.Len() == 0
}

// Len returns the number of bytes held. A destroyed buffer has length 0.
func (s *SecureBytes) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// ByteAt returns the byte at index i.
func (s *SecureBytes) ByteAt(i int) (byte, error) {
	if s == nil {
		return 0, fmt.Errorf("%w: index %d, length 0", ErrIndexOutOfRange, i)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.data) {
		return 0, fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, i, len(s.data))
	}
	return s.data[i], nil
}

// Equal compares s and other in constant time with respect to their
// contents. Buffers of different length are never equal.
func (s *SecureBytes) Equal(other *SecureBytes) bool {
	if s == nil || other == nil {
		return s.Len() == other.Len() && s.Len() == 0
	}
	if s == other {
		return true
	}
	theirs := other.Bytes()
	defer memguard.WipeBytes(theirs)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return subtle.ConstantTimeCompare(s.data, theirs) == 1
}

// Bytes returns a copy of the contents. This is the explicit boundary
// conversion; the caller owns the copy and should wipe it when done.
func (s *SecureBytes) Bytes() []byte {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return nil
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

// Use lends the backing bytes to fn without copying. fn must not retain
// or modify the slice.
func (s *SecureBytes) Use(fn func(b []byte) error) error {
	if s == nil {
		return fn(nil)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return ErrDestroyed
	}
	return fn(s.data)
}

// Clone returns an independent copy.
func (s *SecureBytes) Clone() *SecureBytes {
	return Take(s.Bytes())
}

// Destroy wipes the backing array. It is safe to call more than once.
func (s *SecureBytes) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	memguard.WipeBytes(s.data)
	s.data = nil
	s.destroyed = true
	runtime.SetFinalizer(s, nil)
}

// IsDestroyed reports whether Destroy has been called.
func (s *SecureBytes) IsDestroyed() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed
}

// String implements fmt.Stringer with a redacted rendering.
func (s *SecureBytes) String() string {
	return fmt.Sprintf("[REDACTED %d bytes]", s.Len())
}

// GoString implements fmt.GoStringer so %#v is redacted as well.
func (s *SecureBytes) GoString() string {
	return s.String()
}

// Format redacts every verb, including %x and %q.
func (s *SecureBytes) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(s.String()))
}

// LogValue implements slog.LogValuer.
func (s *SecureBytes) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// MarshalJSON always emits the redacted placeholder. Wire codecs convert
// explicitly through Bytes.
func (s *SecureBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
