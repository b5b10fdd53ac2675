package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StageResult is one gate's structured outcome for a draft, stored as a JSON
// blob keyed by stage name.
type StageResult struct {
	DraftID       uuid.UUID
	Stage         string
	CorrelationID string
	Payload       json.RawMessage
	CreatedAt     time.Time
}

// SaveStageResult records a gate outcome. payload is marshalled to JSON.
func (db *DB) SaveStageResult(ctx context.Context, draftID uuid.UUID, stage, correlationID string, payload any) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("storage: marshal %s result: %w", stage, err)
	}
	_, err = db.sql.ExecContext(ctx, `
		INSERT INTO stage_results (draft_id, stage, correlation_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		draftID.String(), stage, correlationID, string(blob),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storage: save %s result for draft %s: %w", stage, draftID, err)
	}
	return nil
}

// ListStageResults returns a draft's stage results in insertion order.
func (db *DB) ListStageResults(ctx context.Context, draftID uuid.UUID) ([]StageResult, error) {
	rows, err := db.sql.QueryContext(ctx, `
		SELECT stage, correlation_id, payload, created_at
		FROM stage_results WHERE draft_id = ? ORDER BY id`, draftID.String())
	if err != nil {
		return nil, fmt.Errorf("storage: list results for draft %s: %w", draftID, err)
	}
	defer rows.Close()

	var out []StageResult
	for rows.Next() {
		r := StageResult{DraftID: draftID}
		var payload, createdAt string
		if err := rows.Scan(&r.Stage, &r.CorrelationID, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: list results for draft %s: %w", draftID, err)
		}
		r.Payload = json.RawMessage(payload)
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("storage: result created_at for draft %s: %w", draftID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
