// Package invoke wraps request handlers with the cross-cutting execution
// concerns every entry point needs: tenant-context propagation, lifecycle
// logging and best-effort audit emission. The wrapper never changes what the
// handler returns; its only hard gate is the optional tenant requirement.
package invoke

import (
	"context"
	"errors"
	"time"

	"claimiq.io/internal/audit"
	"claimiq.io/internal/auth"
	"claimiq.io/internal/ids"
	"claimiq.io/internal/obs"
)

// ErrTenantRequired is returned before the handler runs when the wrapper is
// configured with RequireTenant and the invocation carries no tenant context.
var ErrTenantRequired = errors.New("invoke: tenant context required")

// Handler is the unit of work the wrapper executes.
type Handler func(ctx context.Context, event Event) (any, error)

// Wrapper decorates handlers with execution bookkeeping.
type Wrapper struct {
	agentType     string
	requireTenant bool
	sink          audit.Sink
	now           func() time.Time
}

// Option configures a Wrapper.
type Option func(*Wrapper)

// WithAgentType labels log and audit records emitted by the wrapper.
func WithAgentType(agentType string) Option {
	return func(w *Wrapper) { w.agentType = agentType }
}

// WithRequireTenant makes the wrapper reject invocations that resolve no
// tenant context, before the handler body runs.
func WithRequireTenant() Option {
	return func(w *Wrapper) { w.requireTenant = true }
}

// WithAuditSink enables best-effort audit emission for handler outcomes.
func WithAuditSink(sink audit.Sink) Option {
	return func(w *Wrapper) { w.sink = sink }
}

func withClock(now func() time.Time) Option {
	return func(w *Wrapper) { w.now = now }
}

// NewWrapper builds a Wrapper with the given options.
func NewWrapper(opts ...Option) *Wrapper {
	w := &Wrapper{
		agentType: "HANDLER",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wrap returns a handler that runs h inside the wrapper's bookkeeping.
//
// Tenant context already present on the inbound context wins; otherwise it is
// derived from the event (authorizer context first, then headers) and attached
// before h runs. The handler's result and error pass through unchanged.
func (w *Wrapper) Wrap(h Handler) Handler {
	return func(ctx context.Context, event Event) (any, error) {
		start := w.now()
		requestID := audit.RequestIDFromContext(ctx)
		if requestID == "" {
			requestID = ids.New()
			ctx = audit.WithRequestID(ctx, requestID)
		}

		id, resolved := auth.IdentityFromContext(ctx)
		if !resolved {
			if id, resolved = event.identity(); resolved {
				ctx = auth.ContextWithIdentity(ctx, id)
			}
		}
		if w.requireTenant && !resolved {
			w.log("warn", "invocation_rejected", requestID, "", map[string]any{
				"error": ErrTenantRequired.Error(),
			})
			return nil, ErrTenantRequired
		}

		w.log("info", "invocation_start", requestID, id.TenantID, map[string]any{
			"path": eventPath(event),
		})

		result, err := h(ctx, event)
		duration := w.now().Sub(start)

		if err != nil {
			w.log("error", "invocation_failed", requestID, id.TenantID, map[string]any{
				"duration_ms": duration.Milliseconds(),
				"error":       err.Error(),
			})
			audit.Emit(ctx, w.sink, audit.Event{
				AgentType:    w.agentType,
				TenantID:     id.TenantID,
				Action:       audit.ActionExecFailed,
				Status:       audit.StatusError,
				ErrorMessage: err.Error(),
				Details:      map[string]any{"request_id": requestID, "duration_ms": duration.Milliseconds()},
			})
			return result, err
		}

		w.log("info", "invocation_complete", requestID, id.TenantID, map[string]any{
			"duration_ms": duration.Milliseconds(),
		})
		audit.Emit(ctx, w.sink, audit.Event{
			AgentType: w.agentType,
			TenantID:  id.TenantID,
			Action:    audit.ActionExecCompleted,
			Status:    audit.StatusSuccess,
			Details:   map[string]any{"request_id": requestID, "duration_ms": duration.Milliseconds()},
		})
		return result, nil
	}
}

func (w *Wrapper) log(level, msg, requestID, tenantID string, extra map[string]any) {
	entry := map[string]any{
		"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		"level":      level,
		"msg":        msg,
		"agent_type": w.agentType,
		"request_id": requestID,
	}
	if tenantID != "" {
		entry["tenant_id"] = tenantID
	}
	for k, v := range extra {
		entry[k] = v
	}
	obs.LogEntry(entry)
}

func eventPath(e Event) string {
	if e.Kind == KindHTTP && e.HTTP != nil {
		return e.HTTP.Method + " " + e.HTTP.Path
	}
	return "direct"
}
