package services

import (
	"context"
	"fmt"
	"sync"

	"hygiene-log-backend/internal/models"
	"hygiene-log-backend/internal/repository"
)

// fakeKV is an in-memory stand-in for the local key-value store.
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
	fail bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (kv *fakeKV) Get(_ context.Context, key string) (string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.fail {
		return "", fmt.Errorf("%w: forced failure", repository.ErrPersistence)
	}
	val, ok := kv.data[key]
	if !ok {
		return "", fmt.Errorf("key %s: %w", key, repository.ErrNotFound)
	}
	return val, nil
}

func (kv *fakeKV) Set(_ context.Context, key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.fail {
		return fmt.Errorf("%w: forced failure", repository.ErrPersistence)
	}
	kv.data[key] = value
	return nil
}

func (kv *fakeKV) RemoveAll(_ context.Context, keys ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for _, k := range keys {
		delete(kv.data, k)
	}
	return nil
}

// fakeProfiles is an in-memory profile store.
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.UserProfile
	fail     bool
	lookups  int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: make(map[string]*models.UserProfile)}
}

func (f *fakeProfiles) GetByUserID(_ context.Context, userID string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.fail {
		return nil, fmt.Errorf("%w: forced failure", repository.ErrPersistence)
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, repository.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) SetTeamID(_ context.Context, userID, teamID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("%w: forced failure", repository.ErrPersistence)
	}
	p, ok := f.profiles[userID]
	if !ok {
		return fmt.Errorf("profile %s: %w", userID, repository.ErrNotFound)
	}
	p.TeamID = teamID
	return nil
}

func (f *fakeProfiles) Upsert(_ context.Context, p *models.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("%w: forced failure", repository.ErrPersistence)
	}
	cp := *p
	f.profiles[p.UserID] = &cp
	return nil
}

// fakeRecordRepo is an in-memory remote record collection.
type fakeRecordRepo struct {
	mu      sync.Mutex
	records map[string]*models.HygieneRecord
	fail    bool
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[string]*models.HygieneRecord)}
}

func (f *fakeRecordRepo) Insert(_ context.Context, rec *models.HygieneRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("%w: forced failure", repository.ErrPersistence)
	}
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeRecordRepo) Update(_ context.Context, id string, patch repository.RecordPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return fmt.Errorf("record %s: %w", id, repository.ErrNotFound)
	}
	applyPatch(rec, patch)
	return nil
}

func (f *fakeRecordRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	return nil
}

func (f *fakeRecordRepo) ListByScope(_ context.Context, scopeID string) ([]*models.HygieneRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, fmt.Errorf("%w: forced failure", repository.ErrPersistence)
	}
	var out []*models.HygieneRecord
	for _, rec := range f.records {
		if rec.ScopeID == scopeID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRecordRepo) GetByID(_ context.Context, id string) (*models.HygieneRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, repository.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

// fakeUsers is an in-memory account collection.
type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*models.User)}
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, repository.ErrNotFound)
}

func (f *fakeUsers) EmailExists(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// fakeTeams is an in-memory team collection.
type fakeTeams struct {
	mu      sync.Mutex
	teams   map[string]*models.Team
	members map[string]map[string]struct{}
	fail    bool
}

func newFakeTeams() *fakeTeams {
	return &fakeTeams{
		teams:   make(map[string]*models.Team),
		members: make(map[string]map[string]struct{}),
	}
}

func (f *fakeTeams) Create(_ context.Context, team *models.Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("%w: forced failure", repository.ErrPersistence)
	}
	cp := *team
	f.teams[team.ID] = &cp
	f.members[team.ID] = map[string]struct{}{team.OwnerID: {}}
	return nil
}

func (f *fakeTeams) GetByID(_ context.Context, id string) (*models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	team, ok := f.teams[id]
	if !ok {
		return nil, fmt.Errorf("team %s: %w", id, repository.ErrNotFound)
	}
	cp := *team
	cp.MemberIDs = nil
	for uid := range f.members[id] {
		cp.MemberIDs = append(cp.MemberIDs, uid)
	}
	return &cp, nil
}

func (f *fakeTeams) Exists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.teams[id]
	return ok, nil
}

func (f *fakeTeams) AddMember(_ context.Context, teamID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[teamID] == nil {
		f.members[teamID] = make(map[string]struct{})
	}
	f.members[teamID][userID] = struct{}{}
	return nil
}

func (f *fakeTeams) RemoveMember(_ context.Context, teamID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[teamID], userID)
	return nil
}

func (f *fakeTeams) memberCount(teamID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.members[teamID])
}
