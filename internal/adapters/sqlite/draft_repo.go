// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/surveyforge/internal/ports/secondary"
)

// DraftRepository implements secondary.DraftStore with SQLite. Optimistic
// concurrency is enforced in the write path: updates are conditional on
// the expected version and a zero-row result is classified as conflict
// or not-found by re-reading the row.
type DraftRepository struct {
	db *sql.DB
}

// NewDraftRepository creates a new SQLite draft repository.
func NewDraftRepository(db *sql.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

const draftColumns = "id, user_id, company_id, current_step, step_data, version, auto_save_count, status, created_at, updated_at"

// FetchByOwner retrieves the most recently updated active draft for an
// owner scope. Discarded and recovered drafts are filtered out here, not
// physically deleted.
func (r *DraftRepository) FetchByOwner(ctx context.Context, scope secondary.OwnerScope) (*secondary.DraftRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+draftColumns+" FROM drafts WHERE user_id = ? AND company_id = ? AND status = 'active' ORDER BY updated_at DESC, created_at DESC LIMIT 1",
		scope.UserID, scope.CompanyID,
	)
	record, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, secondary.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch draft: %w", err)
	}
	return record, nil
}

// GetByID retrieves a draft regardless of status.
func (r *DraftRepository) GetByID(ctx context.Context, id string) (*secondary.DraftRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+draftColumns+" FROM drafts WHERE id = ?", id,
	)
	record, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, secondary.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return record, nil
}

// Save creates or updates a draft. Creation assigns a fresh ID at version
// 1. Updates are accepted only when the expected version matches; a stale
// version fails with *secondary.ConflictError carrying the current row.
func (r *DraftRepository) Save(ctx context.Context, req secondary.SaveDraftRequest) (*secondary.DraftRecord, error) {
	stepData, err := marshalStepData(req.StepData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode step data: %w", err)
	}

	if req.DraftID == "" {
		id := "draft-" + uuid.New().String()
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO drafts (id, user_id, company_id, current_step, step_data) VALUES (?, ?, ?, ?, ?)",
			id, req.Scope.UserID, req.Scope.CompanyID, req.CurrentStep, stepData,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create draft: %w", err)
		}
		return r.GetByID(ctx, id)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE drafts SET current_step = ?, step_data = ?, version = version + 1, auto_save_count = auto_save_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND version = ? AND status = 'active'",
		req.CurrentStep, stepData, req.DraftID, req.ExpectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update draft: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		current, getErr := r.GetByID(ctx, req.DraftID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Version != req.ExpectedVersion {
			return nil, &secondary.ConflictError{Current: current}
		}
		return nil, fmt.Errorf("draft %s is %s and no longer writable", req.DraftID, current.Status)
	}

	return r.GetByID(ctx, req.DraftID)
}

// Discard marks a draft discarded so recovery queries never surface it
// again.
func (r *DraftRepository) Discard(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE drafts SET status = 'discarded', updated_at = CURRENT_TIMESTAMP WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("failed to discard draft: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check discard result: %w", err)
	}
	if affected == 0 {
		return secondary.ErrNotFound
	}
	return nil
}

// MarkRecovered records that an active draft was loaded back into a
// session. Idempotent for drafts that already left the active status.
func (r *DraftRepository) MarkRecovered(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE drafts SET status = 'recovered', updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = 'active'", id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark draft recovered: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check recover result: %w", err)
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// DraftFilters contains filter options for listing drafts.
type DraftFilters struct {
	Status string
	Limit  int
}

// List retrieves drafts matching the given filters, newest first.
func (r *DraftRepository) List(ctx context.Context, filters DraftFilters) ([]*secondary.DraftRecord, error) {
	query := "SELECT " + draftColumns + " FROM drafts WHERE 1=1"
	args := []any{}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	query += " ORDER BY updated_at DESC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var records []*secondary.DraftRecord
	for rows.Next() {
		record, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// PurgeExpired physically deletes drafts created before the cutoff.
// Expiry is otherwise enforced by filtering; this is local housekeeping.
func (r *DraftRepository) PurgeExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format("2006-01-02 15:04:05")
	result, err := r.db.ExecContext(ctx, "DELETE FROM drafts WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge drafts: %w", err)
	}
	return result.RowsAffected()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDraft(s scanner) (*secondary.DraftRecord, error) {
	var (
		record    secondary.DraftRecord
		stepData  string
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.Scan(
		&record.ID, &record.Scope.UserID, &record.Scope.CompanyID,
		&record.CurrentStep, &stepData, &record.Version,
		&record.AutoSaveCount, &record.Status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stepData), &record.StepData); err != nil {
		return nil, fmt.Errorf("failed to decode step data: %w", err)
	}
	record.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	record.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
	return &record, nil
}

func marshalStepData(data map[int]json.RawMessage) (string, error) {
	if len(data) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
