// Package audit appends structured event records for every authorization and
// execution outcome. Emission is observational: a failing or slow sink must
// never change, fail, or delay the primary request path.
package audit

import (
	"context"
	"strings"
	"time"

	"claimiq.io/internal/obs"
)

// Status of an audited action.
const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

// Well-known audit actions.
const (
	ActionTokenMissing  = "TOKEN_MISSING"
	ActionTokenInvalid  = "TOKEN_INVALID"
	ActionAuthzGranted  = "AUTHORIZATION_GRANTED"
	ActionExecCompleted = "EXECUTION_COMPLETED"
	ActionExecFailed    = "EXECUTION_FAILED"
	ActionStatusUpdated = "CLAIM_STATUS_UPDATED"
	ActionManualReview  = "MANUAL_REVIEW_FLAGGED"
)

// Event is an append-only record of an authorization or execution outcome.
// Events are never mutated or deleted by this subsystem; retention is the
// sink's concern.
type Event struct {
	ClaimID      string
	Timestamp    time.Time
	AgentType    string
	TenantID     string
	Action       string
	Status       string
	ErrorMessage string
	Details      map[string]any
}

// Sink is the durable append-only store boundary.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Emit appends the event best-effort. Sink failures are logged locally and
// swallowed so auditing can never become a cause of request failure.
func Emit(ctx context.Context, sink Sink, event Event) {
	if sink == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Status == StatusError && strings.TrimSpace(event.ErrorMessage) == "" {
		event.ErrorMessage = "unspecified error"
	}
	if err := sink.Append(ctx, event); err != nil {
		obs.LogEntry(map[string]any{
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
			"level":  "error",
			"msg":    "audit_append_failed",
			"action": event.Action,
			"error":  err.Error(),
		})
	}
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
