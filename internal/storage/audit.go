package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonpress/gatehouse/internal/model"
)

// AuditEntry is an append-only record of one pipeline transition. It carries
// the issues from whichever gate triggered the transition so an operator can
// act without reading logs.
type AuditEntry struct {
	DraftID       uuid.UUID           `json:"draft_id"`
	CorrelationID string              `json:"correlation_id"`
	Stage         string              `json:"stage"`
	FromState     model.PipelineState `json:"from_state"`
	ToState       model.PipelineState `json:"to_state"`
	Issues        []string            `json:"issues,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// AppendAudit appends a transition record. The audit log is immutable.
func (db *DB) AppendAudit(ctx context.Context, e AuditEntry) error {
	issues, err := json.Marshal(e.Issues)
	if err != nil {
		return fmt.Errorf("storage: marshal audit issues: %w", err)
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = db.sql.ExecContext(ctx, `
		INSERT INTO audit_log (draft_id, correlation_id, stage, from_state, to_state, issues, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.DraftID.String(), e.CorrelationID, e.Stage,
		string(e.FromState), string(e.ToState), string(issues),
		createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storage: append audit for draft %s: %w", e.DraftID, err)
	}
	return nil
}

// ListAudit returns a draft's transitions oldest first.
func (db *DB) ListAudit(ctx context.Context, draftID uuid.UUID) ([]AuditEntry, error) {
	rows, err := db.sql.QueryContext(ctx, `
		SELECT correlation_id, stage, from_state, to_state, issues, created_at
		FROM audit_log WHERE draft_id = ? ORDER BY id`, draftID.String())
	if err != nil {
		return nil, fmt.Errorf("storage: list audit for draft %s: %w", draftID, err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		e := AuditEntry{DraftID: draftID}
		var issues, createdAt string
		if err := rows.Scan(&e.CorrelationID, &e.Stage, &e.FromState, &e.ToState, &issues, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: list audit for draft %s: %w", draftID, err)
		}
		if issues != "" && issues != "null" {
			if err := json.Unmarshal([]byte(issues), &e.Issues); err != nil {
				return nil, fmt.Errorf("storage: audit issues for draft %s: %w", draftID, err)
			}
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("storage: audit created_at for draft %s: %w", draftID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
