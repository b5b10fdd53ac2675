package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonpress/gatehouse/internal/model"
)

// SaveDraft inserts or replaces the draft record. Sources and annotations are
// stored as JSON blobs alongside the scalar columns.
func (db *DB) SaveDraft(ctx context.Context, d model.Draft) error {
	sources, err := json.Marshal(d.Sources)
	if err != nil {
		return fmt.Errorf("storage: marshal draft sources: %w", err)
	}
	annotations, err := json.Marshal(d.Annotations)
	if err != nil {
		return fmt.Errorf("storage: marshal draft annotations: %w", err)
	}

	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = db.sql.ExecContext(ctx, `
		INSERT INTO drafts (
			id, title, body, category, content_type, urgency,
			sources, annotations, quality_score, status, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			category = excluded.category,
			content_type = excluded.content_type,
			urgency = excluded.urgency,
			sources = excluded.sources,
			annotations = excluded.annotations,
			quality_score = excluded.quality_score,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		d.ID.String(), d.Title, d.Body, d.Category, string(d.ContentType), string(d.Urgency),
		string(sources), string(annotations), d.QualityScore, string(d.Status),
		createdAt.Format(time.RFC3339Nano), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: save draft %s: %w", d.ID, err)
	}
	return nil
}

// GetDraft loads one draft by id. Returns ErrNotFound when absent.
func (db *DB) GetDraft(ctx context.Context, id uuid.UUID) (model.Draft, error) {
	row := db.sql.QueryRowContext(ctx, `
		SELECT id, title, body, category, content_type, urgency,
		       sources, annotations, quality_score, status, created_at
		FROM drafts WHERE id = ?`, id.String())

	var (
		d           model.Draft
		rawID       string
		sources     string
		annotations string
		createdAt   string
	)
	err := row.Scan(&rawID, &d.Title, &d.Body, &d.Category, &d.ContentType, &d.Urgency,
		&sources, &annotations, &d.QualityScore, &d.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Draft{}, ErrNotFound
	}
	if err != nil {
		return model.Draft{}, fmt.Errorf("storage: get draft %s: %w", id, err)
	}

	d.ID, err = uuid.Parse(rawID)
	if err != nil {
		return model.Draft{}, fmt.Errorf("storage: draft %s has bad id: %w", rawID, err)
	}
	if err := json.Unmarshal([]byte(sources), &d.Sources); err != nil {
		return model.Draft{}, fmt.Errorf("storage: draft %s sources: %w", id, err)
	}
	if annotations != "" && annotations != "null" {
		if err := json.Unmarshal([]byte(annotations), &d.Annotations); err != nil {
			return model.Draft{}, fmt.Errorf("storage: draft %s annotations: %w", id, err)
		}
	}
	if d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return model.Draft{}, fmt.Errorf("storage: draft %s created_at: %w", id, err)
	}
	return d, nil
}

// UpdateDraftStatus moves the draft to a new lifecycle state.
// Returns ErrNotFound when the draft does not exist.
func (db *DB) UpdateDraftStatus(ctx context.Context, id uuid.UUID, status model.PipelineState) error {
	res, err := db.sql.ExecContext(ctx,
		`UPDATE drafts SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339Nano), id.String())
	if err != nil {
		return fmt.Errorf("storage: update draft %s status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: update draft %s status: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDraftsByStatus returns drafts currently in the given state, oldest first.
func (db *DB) ListDraftsByStatus(ctx context.Context, status model.PipelineState) ([]model.Draft, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT id FROM drafts WHERE status = ? ORDER BY created_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("storage: list drafts by status %s: %w", status, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("storage: list drafts by status %s: %w", status, err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("storage: draft %s has bad id: %w", raw, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list drafts by status %s: %w", status, err)
	}

	drafts := make([]model.Draft, 0, len(ids))
	for _, id := range ids {
		d, err := db.GetDraft(ctx, id)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}
