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

// Package audit records an audit trail of gateway operations.
//
// The gateway emits one Event per executed request. Events carry the
// operation kind, backend, key identifier, outcome and canonical failure
// kind, never request data or key material. Applications can implement
// Auditor to forward events to a SIEM or durable log; MemoryAuditor keeps a
// bounded in-memory trail and LogAuditor writes events to the logger.
package audit

import (
	"context"
	"time"

	"github.com/jeremyhahn/go-secgateway/pkg/adapters/logger"
	"github.com/jeremyhahn/go-secgateway/pkg/failure"
	"github.com/jeremyhahn/go-secgateway/pkg/types"
)

// Outcome indicates the result of an operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is a single audit entry.
type Event struct {
	// ID is assigned by the auditor when empty.
	ID        string
	Timestamp time.Time

	Operation     types.OperationKind
	Backend       string
	KeyIdentifier string
	Outcome       Outcome

	// FailureKind is set when Outcome is OutcomeFailure.
	FailureKind failure.Kind

	// CorrelationID ties the event to a channel request.
	CorrelationID string

	Duration time.Duration
	Metadata map[string]string
}

// Query filters events. Zero fields match everything.
type Query struct {
	Operations    []types.OperationKind
	Outcome       Outcome
	KeyIdentifier string
	Backend       string
	Since         time.Time

	// Limit caps the result; the newest events are kept.
	Limit int
}

// Auditor records audit events.
type Auditor interface {
	Record(ctx context.Context, event *Event) error
}

// Matches reports whether e satisfies q.
func (q *Query) Matches(e *Event) bool {
	if q == nil {
		return true
	}
	if len(q.Operations) > 0 {
		found := false
		for _, op := range q.Operations {
			if op == e.Operation {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Outcome != "" && q.Outcome != e.Outcome {
		return false
	}
	if q.KeyIdentifier != "" && q.KeyIdentifier != e.KeyIdentifier {
		return false
	}
	if q.Backend != "" && q.Backend != e.Backend {
		return false
	}
	if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
		return false
	}
	return true
}

// LogAuditor writes each event to a logger at info level, or warn for
// failures.
type LogAuditor struct {
	logger logger.Logger
}

// NewLogAuditor creates an auditor over log.
func NewLogAuditor(log logger.Logger) *LogAuditor {
	if log == nil {
		log = logger.NoOp()
	}
	return &LogAuditor{logger: log.With(logger.String("component", "audit"))}
}

// Record implements Auditor.
func (a *LogAuditor) Record(ctx context.Context, e *Event) error {
	fields := []logger.Field{
		logger.String("operation", e.Operation.String()),
		logger.String("backend", e.Backend),
		logger.String("outcome", string(e.Outcome)),
		logger.Duration("duration", e.Duration),
	}
	if e.KeyIdentifier != "" {
		fields = append(fields, logger.String("key_id", e.KeyIdentifier))
	}
	if e.Outcome == OutcomeFailure {
		fields = append(fields, logger.String("failure", e.FailureKind.String()))
		a.logger.WarnContext(ctx, "audit", fields...)
		return nil
	}
	a.logger.InfoContext(ctx, "audit", fields...)
	return nil
}
