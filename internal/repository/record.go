package repository

import (
	"context"
	"errors"
	"fmt"

	"hygiene-log-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordRepository handles database operations for hygiene records.
type RecordRepository struct {
	db *pgxpool.Pool
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(db *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{db: db}
}

// Insert stores a new hygiene record.
func (r *RecordRepository) Insert(ctx context.Context, rec *models.HygieneRecord) error {
	query := `
		INSERT INTO records (id, scope_id, user_id, timing, action, notes, event_ts, recorder_name, facility_name, created_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.ScopeID, rec.UserID, int(rec.Timing), string(rec.Action),
		rec.Notes, rec.Timestamp, rec.RecorderName, rec.FacilityName, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert record: %v", ErrPersistence, err)
	}
	return nil
}

// GetByID retrieves a record by ID.
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*models.HygieneRecord, error) {
	query := `
		SELECT id, scope_id, user_id, timing, action, notes, event_ts, recorder_name, facility_name, created_ts
		FROM records
		WHERE id = $1
	`
	var rec models.HygieneRecord
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.ScopeID, &rec.UserID, &rec.Timing, &rec.Action,
		&rec.Notes, &rec.Timestamp, &rec.RecorderName, &rec.FacilityName, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("%w: get record: %v", ErrPersistence, err)
	}
	return &rec, nil
}

// ListByScope retrieves all records for a scope, newest event first.
func (r *RecordRepository) ListByScope(ctx context.Context, scopeID string) ([]*models.HygieneRecord, error) {
	query := `
		SELECT id, scope_id, user_id, timing, action, notes, event_ts, recorder_name, facility_name, created_ts
		FROM records
		WHERE scope_id = $1
		ORDER BY event_ts DESC
	`
	rows, err := r.db.Query(ctx, query, scopeID)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var recs []*models.HygieneRecord
	for rows.Next() {
		var rec models.HygieneRecord
		err := rows.Scan(
			&rec.ID, &rec.ScopeID, &rec.UserID, &rec.Timing, &rec.Action,
			&rec.Notes, &rec.Timestamp, &rec.RecorderName, &rec.FacilityName, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scan record: %v", ErrPersistence, err)
		}
		recs = append(recs, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %v", ErrPersistence, err)
	}

	return recs, nil
}

// RecordPatch carries the fields an update may correct. Nil fields are
// left untouched.
type RecordPatch struct {
	Timing *models.Timing `json:"timing,omitempty"`
	Action *models.Action `json:"action,omitempty"`
	Notes  *string        `json:"notes,omitempty"`
}

// Update merges the patch onto the stored record. Returns ErrNotFound if no
// record with that id exists.
func (r *RecordRepository) Update(ctx context.Context, id string, patch RecordPatch) error {
	query := `
		UPDATE records
		SET timing = COALESCE($2, timing),
		    action = COALESCE($3, action),
		    notes  = COALESCE($4, notes)
		WHERE id = $1
	`
	var timing *int
	if patch.Timing != nil {
		v := int(*patch.Timing)
		timing = &v
	}
	var action *string
	if patch.Action != nil {
		v := string(*patch.Action)
		action = &v
	}
	result, err := r.db.Exec(ctx, query, id, timing, action, patch.Notes)
	if err != nil {
		return fmt.Errorf("%w: update record: %v", ErrPersistence, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a record by ID. Deleting a missing id is a no-op, not an
// error, so a second delete of the same id succeeds.
func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM records WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("%w: delete record: %v", ErrPersistence, err)
	}
	return nil
}
