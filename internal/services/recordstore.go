package services

import (
	"context"
	"fmt"
	"sync"

	"hygiene-log-backend/internal/models"
	"hygiene-log-backend/internal/repository"
)

// BindState is the lifecycle position of a RecordStore's scope binding.
type BindState int

const (
	StateUnbound BindState = iota
	StateLoading
	StateBound
)

// RecordStore maintains the live, in-memory record set for one session's
// current scope, kept consistent with the backing store behind it. It is
// rebound on every authentication or team change; a scope change while a
// previous binding is still resolving discards the stale result.
//
// Records exposed to callers are always sorted newest event first,
// regardless of storage or feed arrival order.
type RecordStore struct {
	resolver *ScopeResolver
	backends BackendFactory
	hub      *Hub

	mu       sync.Mutex
	state    BindState
	version  uint64
	identity Identity
	res      Resolution
	backend  Backend
	sub      *Subscription
	records  []*models.HygieneRecord
}

// NewRecordStore creates an unbound record store.
func NewRecordStore(resolver *ScopeResolver, backends BackendFactory, hub *Hub) *RecordStore {
	return &RecordStore{resolver: resolver, backends: backends, hub: hub}
}

// Bind resolves the identity's scope, loads its record set, and establishes
// the live feed, tearing down any previous feed first. If another Bind
// starts while this one is still resolving or loading, this one's result is
// discarded and Bind returns nil without touching the store.
func (s *RecordStore) Bind(ctx context.Context, identity Identity) error {
	s.mu.Lock()
	s.version++
	v := s.version
	s.teardownLocked()
	s.state = StateLoading
	s.identity = identity
	s.records = nil
	s.mu.Unlock()

	res, err := s.resolver.Resolve(ctx, identity)

	s.mu.Lock()
	if v != s.version {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.state = StateUnbound
		s.mu.Unlock()
		return err
	}
	backend := s.backends(identity, res)
	// Subscribe before taking the snapshot so events published while the
	// load is in flight queue up instead of being lost; apply dedupes the
	// overlap between snapshot and feed by record id.
	sub := s.hub.Subscribe(res.ScopeID)
	s.mu.Unlock()

	recs, listErr := backend.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if v != s.version {
		sub.Cancel()
		return nil
	}
	if listErr != nil {
		sub.Cancel()
		s.state = StateUnbound
		return listErr
	}

	sortByTimestampDesc(recs)
	s.res = res
	s.backend = backend
	s.records = recs
	s.sub = sub
	s.state = StateBound
	go s.drain(sub, v)
	return nil
}

// teardownLocked cancels the current live feed so a stale subscription can
// never resurrect a previous scope's data. Callers hold s.mu.
func (s *RecordStore) teardownLocked() {
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
}

// Close unbinds the store and tears down its live feed.
func (s *RecordStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	s.teardownLocked()
	s.state = StateUnbound
	s.records = nil
}

// drain applies feed events until the subscription is cancelled. Events
// from a superseded binding are dropped by the version check.
func (s *RecordStore) drain(sub *Subscription, v uint64) {
	for ev := range sub.C {
		s.apply(ev, v)
	}
}

func (s *RecordStore) apply(ev RecordEvent, v uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v != s.version || s.state != StateBound {
		return
	}

	switch ev.Type {
	case EventRecordAdded:
		if ev.Record == nil || s.indexOf(ev.RecordID) >= 0 {
			return
		}
		s.records = append(s.records, ev.Record)
		sortByTimestampDesc(s.records)
	case EventRecordUpdated:
		if ev.Record == nil {
			return
		}
		if i := s.indexOf(ev.RecordID); i >= 0 {
			s.records[i] = ev.Record
			sortByTimestampDesc(s.records)
		}
	case EventRecordDeleted:
		if i := s.indexOf(ev.RecordID); i >= 0 {
			s.records = append(s.records[:i], s.records[i+1:]...)
		}
	}
}

// indexOf returns the position of a record id, or -1. Callers hold s.mu.
func (s *RecordStore) indexOf(id string) int {
	for i, rec := range s.records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

// bound returns the binding needed for a mutation, or ErrScopeUnresolved if
// the store is not bound.
func (s *RecordStore) bound() (Backend, Identity, Resolution, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateBound {
		return nil, Identity{}, Resolution{}, 0, fmt.Errorf("%w: store not bound", repository.ErrScopeUnresolved)
	}
	return s.backend, s.identity, s.res, s.version, nil
}

// AddRecord constructs and persists a new record under the bound scope. In
// local mode the in-memory set is updated as soon as the write is durable;
// in remote mode it arrives through the live feed. A failed write leaves
// the in-memory set untouched.
func (s *RecordStore) AddRecord(ctx context.Context, in AddRecordInput) (*models.HygieneRecord, error) {
	if !in.Timing.Valid() {
		return nil, fmt.Errorf("%w: timing must be 1..5, got %d", ErrInvalidInput, in.Timing)
	}
	if !in.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, in.Action)
	}

	backend, identity, res, v, err := s.bound()
	if err != nil {
		return nil, err
	}

	rec := buildRecord(identity, res, in)
	if err := backend.Insert(ctx, rec); err != nil {
		return nil, err
	}

	if backend.Optimistic() {
		s.apply(RecordEvent{Type: EventRecordAdded, ScopeID: res.ScopeID, RecordID: rec.ID, Record: rec}, v)
	}
	return rec, nil
}

// UpdateRecord merges the patch onto a stored record.
func (s *RecordStore) UpdateRecord(ctx context.Context, id string, patch repository.RecordPatch) error {
	backend, _, _, v, err := s.bound()
	if err != nil {
		return err
	}
	if err := backend.Update(ctx, id, patch); err != nil {
		return err
	}

	if backend.Optimistic() {
		s.mu.Lock()
		if v == s.version {
			if i := s.indexOf(id); i >= 0 {
				applyPatch(s.records[i], patch)
			}
		}
		s.mu.Unlock()
	}
	return nil
}

// DeleteRecord removes a record by id; missing ids are a no-op.
func (s *RecordStore) DeleteRecord(ctx context.Context, id string) error {
	backend, _, res, v, err := s.bound()
	if err != nil {
		return err
	}
	if err := backend.Delete(ctx, id); err != nil {
		return err
	}

	if backend.Optimistic() {
		s.apply(RecordEvent{Type: EventRecordDeleted, ScopeID: res.ScopeID, RecordID: id}, v)
	}
	return nil
}

// Records returns a snapshot copy of the visible record set, newest event
// first. The copy stays valid while the underlying set keeps changing.
func (s *RecordStore) Records() []*models.HygieneRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.HygieneRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Stats aggregates the visible record set over the inclusive window.
func (s *RecordStore) Stats(start, end int64) models.Stats {
	return ComputeStatistics(s.Records(), start, end)
}

// State reports the binding lifecycle position.
func (s *RecordStore) State() BindState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ScopeID reports the bound scope, or empty when unbound.
func (s *RecordStore) ScopeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateBound {
		return ""
	}
	return s.res.ScopeID
}
