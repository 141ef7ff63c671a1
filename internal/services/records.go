package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"hygiene-log-backend/internal/models"
	"hygiene-log-backend/internal/repository"

	"github.com/google/uuid"
)

// ErrInvalidInput is returned when a record's timing or action is outside
// the fixed taxonomy.
var ErrInvalidInput = errors.New("invalid input")

// BackendFactory selects the storage strategy for a resolved scope.
type BackendFactory func(identity Identity, res Resolution) Backend

// RecordService performs record operations for one-shot callers. Each call
// resolves the caller's scope synchronously before touching storage, since
// the write's partition key depends on it.
type RecordService struct {
	resolver *ScopeResolver
	backends BackendFactory
}

// NewRecordService creates a record service.
func NewRecordService(resolver *ScopeResolver, backends BackendFactory) *RecordService {
	return &RecordService{resolver: resolver, backends: backends}
}

// AddRecordInput carries the caller-supplied fields of a new record.
// EventTime, when non-zero, backdates the event.
type AddRecordInput struct {
	Timing    models.Timing `json:"timing"`
	Action    models.Action `json:"action"`
	Notes     string        `json:"notes"`
	EventTime int64         `json:"event_time"`
}

// AddRecord constructs and persists a new hygiene record under the caller's
// scope. On a failed write no state changes anywhere.
func (s *RecordService) AddRecord(ctx context.Context, identity Identity, in AddRecordInput) (*models.HygieneRecord, error) {
	if !in.Timing.Valid() {
		return nil, fmt.Errorf("%w: timing must be 1..5, got %d", ErrInvalidInput, in.Timing)
	}
	if !in.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, in.Action)
	}

	res, err := s.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	rec := buildRecord(identity, res, in)
	if err := s.backends(identity, res).Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecords returns the caller's visible records, newest event first.
func (s *RecordService) ListRecords(ctx context.Context, identity Identity) ([]*models.HygieneRecord, error) {
	res, err := s.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	recs, err := s.backends(identity, res).List(ctx)
	if err != nil {
		return nil, err
	}
	sortByTimestampDesc(recs)
	return recs, nil
}

// UpdateRecord merges the patch onto a stored record. Returns ErrNotFound
// for a missing id.
func (s *RecordService) UpdateRecord(ctx context.Context, identity Identity, id string, patch repository.RecordPatch) error {
	if patch.Timing != nil && !patch.Timing.Valid() {
		return fmt.Errorf("%w: timing must be 1..5, got %d", ErrInvalidInput, *patch.Timing)
	}
	if patch.Action != nil && !patch.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidInput, *patch.Action)
	}

	res, err := s.resolver.Resolve(ctx, identity)
	if err != nil {
		return err
	}
	return s.backends(identity, res).Update(ctx, id, patch)
}

// DeleteRecord removes a record by id. Missing ids are a no-op, so the
// operation is idempotent.
func (s *RecordService) DeleteRecord(ctx context.Context, identity Identity, id string) error {
	res, err := s.resolver.Resolve(ctx, identity)
	if err != nil {
		return err
	}
	return s.backends(identity, res).Delete(ctx, id)
}

// Statistics aggregates the caller's records over the inclusive window
// [start, end] and derives the completion rate.
func (s *RecordService) Statistics(ctx context.Context, identity Identity, start, end int64) (models.Stats, float64, error) {
	recs, err := s.ListRecords(ctx, identity)
	if err != nil {
		return models.Stats{}, 0, err
	}
	stats := ComputeStatistics(recs, start, end)
	return stats, CompletionRate(stats), nil
}

func buildRecord(identity Identity, res Resolution, in AddRecordInput) *models.HygieneRecord {
	now := time.Now().UnixMilli()
	ts := in.EventTime
	if ts == 0 {
		ts = now
	}

	rec := &models.HygieneRecord{
		ID:        uuid.New().String(),
		ScopeID:   res.ScopeID,
		UserID:    identity.UserID,
		Timing:    in.Timing,
		Action:    in.Action,
		Notes:     in.Notes,
		Timestamp: ts,
		CreatedAt: now,
	}
	if res.Profile != nil {
		rec.RecorderName = res.Profile.DisplayName
		rec.FacilityName = res.Profile.FacilityName
	}
	return rec
}

func sortByTimestampDesc(recs []*models.HygieneRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp > recs[j].Timestamp
	})
}
