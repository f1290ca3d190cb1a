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
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-secgateway/pkg/securebytes"
)

type mapping struct {
	kind    Kind
	message string
	alias   bool
}

// table maps one domain's codes to kinds and back. Aliases translate
// forward but are never chosen when mapping a kind back to a code.
type table[C ~int] struct {
	forward map[C]mapping
	inverse map[Kind]C
}

func newTable[C ~int]() *table[C] {
	return &table[C]{
		forward: make(map[C]mapping),
		inverse: make(map[Kind]C),
	}
}

func (tb *table[C]) register(code C, kind Kind, message string, alias bool) {
	old, existed := tb.forward[code]
	tb.forward[code] = mapping{kind: kind, message: message, alias: alias}
	if existed && tb.inverse[old.kind] == code && (old.kind != kind || alias) {
		delete(tb.inverse, old.kind)
		tb.reindex(old.kind)
	}
	if _, ok := tb.inverse[kind]; !ok && !alias {
		tb.inverse[kind] = code
	}
}

// reindex picks the lowest non-alias code for k after its preferred code
// was remapped.
func (tb *table[C]) reindex(k Kind) {
	var best C
	found := false
	for c, m := range tb.forward {
		if m.kind != k || m.alias {
			continue
		}
		if !found || c < best {
			best, found = c, true
		}
	}
	if found {
		tb.inverse[k] = best
	}
}

// Translator is the single registry of error cases for the core, channel
// and protocol domains. It is safe for concurrent use.
type Translator struct {
	mu       sync.RWMutex
	core     *table[CoreCode]
	channel  *table[ChannelCode]
	protocol *table[ProtocolCode]
}

// NewTranslator returns a translator loaded with the built-in cases.
func NewTranslator() *Translator {
	t := &Translator{
		core:     newTable[CoreCode](),
		channel:  newTable[ChannelCode](),
		protocol: newTable[ProtocolCode](),
	}
	t.registerDefaults()
	return t
}

var defaultTranslator = NewTranslator()

// Default returns the process-wide translator.
func Default() *Translator {
	return defaultTranslator
}

// RegisterCore adds or replaces a core error case.
func (t *Translator) RegisterCore(code CoreCode, kind Kind, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.core.register(code, kind, message, false)
}

// RegisterChannel adds or replaces a channel error case.
func (t *Translator) RegisterChannel(code ChannelCode, kind Kind, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channel.register(code, kind, message, false)
}

// RegisterProtocol adds or replaces a protocol error case.
func (t *Translator) RegisterProtocol(code ProtocolCode, kind Kind, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.protocol.register(code, kind, message, false)
}

// FromCore translates a core error into its canonical failure.
func (t *Translator) FromCore(e *CoreError) *SecurityFailure {
	if e == nil {
		return nil
	}
	t.mu.RLock()
	m, ok := t.core.forward[e.Code]
	t.mu.RUnlock()
	if !ok {
		m = mapping{kind: KindUnknown, message: fmt.Sprintf("unrecognised core error %d", e.Code)}
	}
	return &SecurityFailure{
		Kind:    m.kind,
		Domain:  DomainCore,
		Code:    int(e.Code),
		Message: joinMessage(m.message, e.Reason),
		cause:   e,
	}
}

// FromChannel translates a channel error into its canonical failure.
func (t *Translator) FromChannel(e *ChannelError) *SecurityFailure {
	if e == nil {
		return nil
	}
	var m mapping
	if e.Code == ChannelRemoteFailure {
		m = mapping{kind: e.RemoteKind, message: "remote operation failed"}
		if !e.RemoteKind.Valid() {
			m.kind = KindUnknown
		}
	} else {
		var ok bool
		t.mu.RLock()
		m, ok = t.channel.forward[e.Code]
		t.mu.RUnlock()
		if !ok {
			m = mapping{kind: KindUnknown, message: fmt.Sprintf("unrecognised channel error %d", e.Code)}
		}
	}
	return &SecurityFailure{
		Kind:    m.kind,
		Domain:  DomainChannel,
		Code:    int(e.Code),
		Message: joinMessage(m.message, e.Reason),
		cause:   e,
	}
}

// FromProtocol translates a protocol error into its canonical failure.
func (t *Translator) FromProtocol(e *ProtocolError) *SecurityFailure {
	if e == nil {
		return nil
	}
	t.mu.RLock()
	m, ok := t.protocol.forward[e.Code]
	t.mu.RUnlock()
	if !ok {
		m = mapping{kind: KindUnknown, message: fmt.Sprintf("unrecognised protocol error %d", e.Code)}
	}
	return &SecurityFailure{
		Kind:    m.kind,
		Domain:  DomainProtocol,
		Code:    int(e.Code),
		Message: joinMessage(m.message, e.Reason),
		Context: sanitizeContext(e.Context),
		cause:   e,
	}
}

// ToCanonical translates any error into a SecurityFailure. Errors that are
// already canonical pass through; context errors become timeouts; anything
// untyped becomes an internal error.
func (t *Translator) ToCanonical(err error) *SecurityFailure {
	if err == nil {
		return nil
	}

	var (
		sf *SecurityFailure
		ce *ChannelError
		pe *ProtocolError
		co *CoreError
	)
	switch {
	case errors.As(err, &sf):
		return sf
	case errors.As(err, &ce):
		return t.FromChannel(ce)
	case errors.As(err, &pe):
		return t.FromProtocol(pe)
	case errors.As(err, &co):
		return t.FromCore(co)
	case errors.Is(err, context.DeadlineExceeded):
		return t.FromCore(WrapCoreError(CoreTimeout, err, "deadline exceeded"))
	case errors.Is(err, context.Canceled):
		return t.FromCore(WrapCoreError(CoreTimeout, err, "operation cancelled"))
	case errors.Is(err, securebytes.ErrIndexOutOfRange):
		return t.FromCore(WrapCoreError(CoreInvalidInput, err, ""))
	default:
		return t.FromCore(WrapCoreError(CoreInternal, err, ""))
	}
}

// ToCore maps a failure back into the core domain.
func (t *Translator) ToCore(f *SecurityFailure) *CoreError {
	if f == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	code := CoreUnknown
	if m, ok := t.core.forward[CoreCode(f.Code)]; f.Domain == DomainCore && ok && m.kind == f.Kind {
		code = CoreCode(f.Code)
	} else if c, ok := t.core.inverse[f.Kind]; ok {
		code = c
	}
	return &CoreError{Code: code, Reason: f.Message}
}

// ToChannel maps a failure back into the channel domain. Kinds with no
// transport-level equivalent travel as ChannelRemoteFailure.
func (t *Translator) ToChannel(f *SecurityFailure) *ChannelError {
	if f == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	if f.Domain == DomainChannel {
		if m, ok := t.channel.forward[ChannelCode(f.Code)]; ok && m.kind == f.Kind {
			return &ChannelError{Code: ChannelCode(f.Code), Reason: f.Message}
		}
	}
	if c, ok := t.channel.inverse[f.Kind]; ok {
		return &ChannelError{Code: c, Reason: f.Message}
	}
	return &ChannelError{Code: ChannelRemoteFailure, Reason: f.Message, RemoteKind: f.Kind}
}

// ToProtocol maps a failure back into the protocol domain.
func (t *Translator) ToProtocol(f *SecurityFailure) *ProtocolError {
	if f == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	code := ProtocolUnknown
	if m, ok := t.protocol.forward[ProtocolCode(f.Code)]; f.Domain == DomainProtocol && ok && m.kind == f.Kind {
		code = ProtocolCode(f.Code)
	} else if c, ok := t.protocol.inverse[f.Kind]; ok {
		code = c
	}
	return &ProtocolError{Code: code, Reason: f.Message, Context: sanitizeContext(f.Context)}
}

// FromCanonical maps a failure into the requested domain.
func (t *Translator) FromCanonical(f *SecurityFailure, domain Domain) error {
	if f == nil {
		return nil
	}
	switch domain {
	case DomainCore:
		return t.ToCore(f)
	case DomainChannel:
		return t.ToChannel(f)
	case DomainProtocol:
		return t.ToProtocol(f)
	default:
		return f
	}
}

// ToCanonical translates err with the default translator.
func ToCanonical(err error) *SecurityFailure {
	return defaultTranslator.ToCanonical(err)
}

// FromCanonical maps f into domain with the default translator.
func FromCanonical(f *SecurityFailure, domain Domain) error {
	return defaultTranslator.FromCanonical(f, domain)
}

// Core builds a canonical failure from a core error case.
func Core(code CoreCode, format string, args ...any) *SecurityFailure {
	return defaultTranslator.FromCore(NewCoreError(code, format, args...))
}

// Protocol builds a canonical failure from a protocol error case.
func Protocol(code ProtocolCode, format string, args ...any) *SecurityFailure {
	return defaultTranslator.FromProtocol(NewProtocolError(code, format, args...))
}

func joinMessage(base, reason string) string {
	switch {
	case reason == "":
		return base
	case base == "":
		return reason
	default:
		return base + ": " + reason
	}
}
