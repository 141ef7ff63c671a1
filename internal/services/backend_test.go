package services

import (
	"context"
	"errors"
	"testing"

	"hygiene-log-backend/internal/models"
	"hygiene-log-backend/internal/repository"
)

func TestLocalBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := NewLocalBackend(newFakeKV(), "dev-1")

	recs, err := backend.List(ctx)
	if err != nil {
		t.Fatalf("List on empty store: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("List on empty store returned %d records", len(recs))
	}

	a := rec(models.TimingBeforePatientContact, models.ActionWash, 100)
	a.ID = "a"
	b := rec(models.TimingAfterBodyFluid, models.ActionSanitizer, 300)
	b.ID = "b"
	c := rec(models.TimingBeforeAseptic, models.ActionNone, 200)
	c.ID = "c"
	for _, r := range []*models.HygieneRecord{a, b, c} {
		if err := backend.Insert(ctx, r); err != nil {
			t.Fatalf("Insert %s: %v", r.ID, err)
		}
	}

	recs, err = backend.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	wantOrder := []string{"b", "c", "a"}
	if len(recs) != len(wantOrder) {
		t.Fatalf("List returned %d records, want %d", len(recs), len(wantOrder))
	}
	for i, id := range wantOrder {
		if recs[i].ID != id {
			t.Errorf("List[%d].ID = %s, want %s (newest event first)", i, recs[i].ID, id)
		}
	}
}

func TestLocalBackendUpdate(t *testing.T) {
	ctx := context.Background()
	backend := NewLocalBackend(newFakeKV(), "dev-1")

	r := rec(models.TimingBeforePatientContact, models.ActionNone, 100)
	r.ID = "a"
	if err := backend.Insert(ctx, r); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	action := models.ActionWash
	notes := "caught up after the fact"
	if err := backend.Update(ctx, "a", repository.RecordPatch{Action: &action, Notes: &notes}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	recs, err := backend.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if recs[0].Action != models.ActionWash || recs[0].Notes != notes {
		t.Errorf("patched record = action %s notes %q", recs[0].Action, recs[0].Notes)
	}
	if recs[0].Timing != models.TimingBeforePatientContact {
		t.Errorf("Timing changed to %d, patch must leave unset fields alone", recs[0].Timing)
	}

	if err := backend.Update(ctx, "missing", repository.RecordPatch{Action: &action}); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Update missing id error = %v, want ErrNotFound", err)
	}
}

func TestLocalBackendDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := NewLocalBackend(newFakeKV(), "dev-1")

	r := rec(models.TimingBeforePatientContact, models.ActionWash, 100)
	r.ID = "a"
	if err := backend.Insert(ctx, r); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := backend.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := backend.Delete(ctx, "a"); err != nil {
		t.Fatalf("second Delete of same id: %v, want nil", err)
	}
	if err := backend.Delete(ctx, "never-existed"); err != nil {
		t.Fatalf("Delete of unknown id: %v, want nil", err)
	}

	recs, err := backend.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("List returned %d records after delete, want 0", len(recs))
	}
}

func TestLocalBackendScopeIsolation(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	first := NewLocalBackend(kv, "dev-1")
	second := NewLocalBackend(kv, "dev-2")

	r := rec(models.TimingBeforePatientContact, models.ActionWash, 100)
	if err := first.Insert(ctx, r); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	recs, err := second.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("dev-2 sees %d of dev-1's records, want 0", len(recs))
	}
}

func TestRemoteBackendPublishesEvents(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRecordRepo()
	hub := NewHub()
	backend := NewRemoteBackend(repo, hub, "team-1")

	if backend.Optimistic() {
		t.Fatal("remote backend must not be optimistic, changes arrive through the feed")
	}

	sub := hub.Subscribe("team-1")
	defer sub.Cancel()

	r := rec(models.TimingBeforePatientContact, models.ActionWash, 100)
	r.ID = "a"
	r.ScopeID = "team-1"
	if err := backend.Insert(ctx, r); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	ev := <-sub.C
	if ev.Type != EventRecordAdded || ev.RecordID != "a" || ev.Record == nil {
		t.Fatalf("after Insert got event %+v", ev)
	}

	action := models.ActionNone
	if err := backend.Update(ctx, "a", repository.RecordPatch{Action: &action}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	ev = <-sub.C
	if ev.Type != EventRecordUpdated || ev.RecordID != "a" {
		t.Fatalf("after Update got event %+v", ev)
	}
	if ev.Record == nil || ev.Record.Action != models.ActionNone {
		t.Fatalf("update event record = %+v, want patched action", ev.Record)
	}

	if err := backend.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ev = <-sub.C
	if ev.Type != EventRecordDeleted || ev.RecordID != "a" {
		t.Fatalf("after Delete got event %+v", ev)
	}
}

func TestRemoteBackendInsertFailurePublishesNothing(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRecordRepo()
	repo.fail = true
	hub := NewHub()
	backend := NewRemoteBackend(repo, hub, "team-1")

	sub := hub.Subscribe("team-1")
	defer sub.Cancel()

	r := rec(models.TimingBeforePatientContact, models.ActionWash, 100)
	if err := backend.Insert(ctx, r); err == nil {
		t.Fatal("Insert succeeded against a failing store")
	}

	select {
	case ev := <-sub.C:
		t.Fatalf("failed write still published %+v", ev)
	default:
	}
}
