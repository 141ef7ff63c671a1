package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"hygiene-log-backend/internal/models"
	"hygiene-log-backend/internal/repository"
)

// Backend is the storage strategy behind a bound scope. The implementation
// is selected once per scope resolution: LocalBackend for device scopes,
// RemoteBackend for personal and team scopes.
type Backend interface {
	List(ctx context.Context) ([]*models.HygieneRecord, error)
	Insert(ctx context.Context, rec *models.HygieneRecord) error
	Update(ctx context.Context, id string, patch repository.RecordPatch) error
	Delete(ctx context.Context, id string) error
	// Optimistic reports whether the caller should apply successful writes
	// to its in-memory view directly instead of waiting for the change feed.
	Optimistic() bool
}

// KVStore is the local persistent key-value boundary LocalBackend writes
// JSON blobs through.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	RemoveAll(ctx context.Context, keys ...string) error
}

// LocalBackend keeps a device's records as one JSON array in the local
// key-value store. The device is the only writer, so read-modify-write
// without locking matches the store's own guarantees.
type LocalBackend struct {
	kv  KVStore
	key string
}

// NewLocalBackend creates a backend over the device's records key.
func NewLocalBackend(kv KVStore, deviceID string) *LocalBackend {
	return &LocalBackend{kv: kv, key: repository.RecordsKey(deviceID)}
}

// Optimistic is true: local writes are applied to memory as soon as they
// are durably stored.
func (b *LocalBackend) Optimistic() bool { return true }

func (b *LocalBackend) load(ctx context.Context) ([]*models.HygieneRecord, error) {
	raw, err := b.kv.Get(ctx, b.key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var recs []*models.HygieneRecord
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return nil, fmt.Errorf("%w: decode local records: %v", repository.ErrPersistence, err)
	}
	return recs, nil
}

func (b *LocalBackend) save(ctx context.Context, recs []*models.HygieneRecord) error {
	raw, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("%w: encode local records: %v", repository.ErrPersistence, err)
	}
	return b.kv.Set(ctx, b.key, string(raw))
}

// List returns the device's records, newest event first.
func (b *LocalBackend) List(ctx context.Context) ([]*models.HygieneRecord, error) {
	recs, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	sortByTimestampDesc(recs)
	return recs, nil
}

// Insert appends the record. Memory is only touched by the caller after
// this returns nil, so a failed save leaves no partial state.
func (b *LocalBackend) Insert(ctx context.Context, rec *models.HygieneRecord) error {
	recs, err := b.load(ctx)
	if err != nil {
		return err
	}
	return b.save(ctx, append(recs, rec))
}

// Update merges the patch onto the stored record, or returns ErrNotFound.
func (b *LocalBackend) Update(ctx context.Context, id string, patch repository.RecordPatch) error {
	recs, err := b.load(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if rec.ID == id {
			applyPatch(rec, patch)
			return b.save(ctx, recs)
		}
	}
	return fmt.Errorf("record %s: %w", id, repository.ErrNotFound)
}

// Delete removes the record if present; deleting a missing id is a no-op.
func (b *LocalBackend) Delete(ctx context.Context, id string) error {
	recs, err := b.load(ctx)
	if err != nil {
		return err
	}
	kept := recs[:0]
	for _, rec := range recs {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(recs) {
		return nil
	}
	return b.save(ctx, kept)
}

// RecordRepo is the remote document collection boundary RemoteBackend
// writes through.
type RecordRepo interface {
	Insert(ctx context.Context, rec *models.HygieneRecord) error
	Update(ctx context.Context, id string, patch repository.RecordPatch) error
	Delete(ctx context.Context, id string) error
	ListByScope(ctx context.Context, scopeID string) ([]*models.HygieneRecord, error)
	GetByID(ctx context.Context, id string) (*models.HygieneRecord, error)
}

// RemoteBackend stores records in the shared document collection, filtered
// by scope, and publishes every successful write to the scope's live feed.
type RemoteBackend struct {
	records RecordRepo
	hub     *Hub
	scopeID string
}

// NewRemoteBackend creates a backend over the remote collection for one scope.
func NewRemoteBackend(records RecordRepo, hub *Hub, scopeID string) *RemoteBackend {
	return &RemoteBackend{records: records, hub: hub, scopeID: scopeID}
}

// Optimistic is false: callers see remote writes through the change feed.
func (b *RemoteBackend) Optimistic() bool { return false }

// List returns the scope's records, newest event first.
func (b *RemoteBackend) List(ctx context.Context) ([]*models.HygieneRecord, error) {
	return b.records.ListByScope(ctx, b.scopeID)
}

// Insert stores the record and announces it on the live feed.
func (b *RemoteBackend) Insert(ctx context.Context, rec *models.HygieneRecord) error {
	if err := b.records.Insert(ctx, rec); err != nil {
		return err
	}
	b.hub.Publish(RecordEvent{
		Type:     EventRecordAdded,
		ScopeID:  b.scopeID,
		RecordID: rec.ID,
		Record:   rec,
	})
	return nil
}

// Update merges the patch onto the stored record and announces the new
// version on the live feed.
func (b *RemoteBackend) Update(ctx context.Context, id string, patch repository.RecordPatch) error {
	if err := b.records.Update(ctx, id, patch); err != nil {
		return err
	}
	rec, err := b.records.GetByID(ctx, id)
	if err != nil {
		// The update landed; a failed read-back only costs the feed event.
		return nil
	}
	b.hub.Publish(RecordEvent{
		Type:     EventRecordUpdated,
		ScopeID:  b.scopeID,
		RecordID: id,
		Record:   rec,
	})
	return nil
}

// Delete removes the record and announces the removal on the live feed.
// Deleting a missing id is a no-op.
func (b *RemoteBackend) Delete(ctx context.Context, id string) error {
	if err := b.records.Delete(ctx, id); err != nil {
		return err
	}
	b.hub.Publish(RecordEvent{
		Type:     EventRecordDeleted,
		ScopeID:  b.scopeID,
		RecordID: id,
	})
	return nil
}

func applyPatch(rec *models.HygieneRecord, patch repository.RecordPatch) {
	if patch.Timing != nil {
		rec.Timing = *patch.Timing
	}
	if patch.Action != nil {
		rec.Action = *patch.Action
	}
	if patch.Notes != nil {
		rec.Notes = *patch.Notes
	}
}
