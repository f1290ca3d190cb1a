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

package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// DefaultCapacity is the number of events a MemoryAuditor keeps when no
// capacity is given.
const DefaultCapacity = 4096

// ErrNilEvent is returned when Record is called with a nil event.
var ErrNilEvent = errors.New("audit: event cannot be nil")

// MemoryAuditor keeps the most recent events in a ring buffer. It is safe
// for concurrent use. Events are lost on restart.
type MemoryAuditor struct {
	mu       sync.RWMutex
	events   []*Event
	next     int
	full     bool
	clock    func() time.Time
	counters map[types.OperationKind]map[Outcome]int64
}

// NewMemoryAuditor creates an auditor holding up to capacity events.
func NewMemoryAuditor(capacity int) *MemoryAuditor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryAuditor{
		events:   make([]*Event, capacity),
		clock:    time.Now,
		counters: make(map[types.OperationKind]map[Outcome]int64),
	}
}

// Record implements Auditor. The event is copied; missing ID and
// timestamp are filled in.
func (m *MemoryAuditor) Record(_ context.Context, event *Event) error {
	if event == nil {
		return ErrNilEvent
	}
	e := *event
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = m.clock()
	}
	if event.Metadata != nil {
		e.Metadata = make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			e.Metadata[k] = v
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[m.next] = &e
	m.next = (m.next + 1) % len(m.events)
	if m.next == 0 {
		m.full = true
	}
	byOutcome, ok := m.counters[e.Operation]
	if !ok {
		byOutcome = make(map[Outcome]int64, 2)
		m.counters[e.Operation] = byOutcome
	}
	byOutcome[e.Outcome]++
	return nil
}

// Events returns matching events, oldest first.
func (m *MemoryAuditor) Events(_ context.Context, q *Query) []*Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Event
	for _, e := range m.ordered() {
		if q.Matches(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	if q != nil && q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out
}

// Len returns the number of retained events.
func (m *MemoryAuditor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.full {
		return len(m.events)
	}
	return m.next
}

// Count returns how many events with the given operation and outcome have
// been recorded, including ones the ring has since dropped.
func (m *MemoryAuditor) Count(op types.OperationKind, outcome Outcome) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[op][outcome]
}

func (m *MemoryAuditor) ordered() []*Event {
	if !m.full {
		return m.events[:m.next]
	}
	out := make([]*Event, 0, len(m.events))
	out = append(out, m.events[m.next:]...)
	return append(out, m.events[:m.next]...)
}
