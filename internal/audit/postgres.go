package audit

import (
	"context"
	"database/sql"
	"encoding/json"

	"claimiq.io/internal/ids"
)

var _ Sink = (*PGSink)(nil)

// PGSink appends audit events to a Postgres table. Rows are insert-only;
// nothing in this subsystem updates or deletes them.
type PGSink struct {
	db *sql.DB
}

// NewPGSink wraps an open database handle.
func NewPGSink(db *sql.DB) *PGSink {
	return &PGSink{db: db}
}

// Append inserts one audit row. The event id is generated here so the caller
// never needs to care about sink-side identity.
func (s *PGSink) Append(ctx context.Context, event Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into audit_events(id, occurred_at, claim_id, agent_type, tenant_id, action, status, error_message, details)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		ids.New(), event.Timestamp.UTC(), nullable(event.ClaimID), event.AgentType,
		event.TenantID, event.Action, event.Status, nullable(event.ErrorMessage), details,
	)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
