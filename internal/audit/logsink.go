package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"claimiq.io/internal/obs"
)

// LogSink renders audit events as structured JSON log lines through the shared
// logger. It is the default sink when no durable store is configured.
type LogSink struct{}

// Append writes the event as one JSON line enriched with the request id.
func (LogSink) Append(ctx context.Context, event Event) error {
	if strings.TrimSpace(event.Action) == "" {
		return errors.New("audit: action is required")
	}
	entry := map[string]any{
		"ts":         event.Timestamp.UTC().Format(time.RFC3339Nano),
		"type":       "audit",
		"action":     event.Action,
		"status":     event.Status,
		"agent_type": event.AgentType,
		"tenant_id":  event.TenantID,
	}
	if event.ClaimID != "" {
		entry["claim_id"] = event.ClaimID
	}
	if event.ErrorMessage != "" {
		entry["error_message"] = event.ErrorMessage
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if len(event.Details) > 0 {
		details := make(map[string]any, len(event.Details))
		for k, v := range event.Details {
			details[k] = v
		}
		entry["details"] = details
	} else {
		entry["details"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
