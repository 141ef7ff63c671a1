package services

import (
	"context"
	"errors"
	"fmt"

	"hygiene-log-backend/internal/models"
	"hygiene-log-backend/internal/repository"
)

// Identity describes the caller of a store operation. UserID is empty for
// unauthenticated callers, who are identified by their device instead.
type Identity struct {
	UserID   string
	DeviceID string
}

// Authenticated reports whether the identity carries a signed-in user.
func (id Identity) Authenticated() bool {
	return id.UserID != ""
}

// Resolution is the outcome of a scope lookup: the partition key records are
// stored under, plus the profile snapshot used to denormalize recorder and
// facility names onto new records (nil for device scopes and for users who
// have not saved a profile yet).
type Resolution struct {
	ScopeID string
	Profile *models.UserProfile
}

// ProfileStore is the profile lookup the resolver depends on.
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.UserProfile, error)
}

// ScopeResolver computes the effective scope for an identity:
// unauthenticated callers get a device scope, authenticated users get their
// team's scope if their profile references one, and their own id otherwise.
type ScopeResolver struct {
	profiles ProfileStore
}

// NewScopeResolver creates a scope resolver over a profile store.
func NewScopeResolver(profiles ProfileStore) *ScopeResolver {
	return &ScopeResolver{profiles: profiles}
}

// Resolve evaluates the scope rule for the identity. It is read-only and
// must be re-run on every authentication or team change.
//
// A failing profile lookup does not fall back to a device scope: it returns
// ErrScopeUnresolved so the caller withholds writes and renders an empty,
// non-authoritative read set instead of another scope's data.
func (r *ScopeResolver) Resolve(ctx context.Context, identity Identity) (Resolution, error) {
	if !identity.Authenticated() {
		if identity.DeviceID == "" {
			return Resolution{}, fmt.Errorf("%w: no user and no device id", repository.ErrScopeUnresolved)
		}
		return Resolution{ScopeID: DeviceScopeID(identity.DeviceID)}, nil
	}

	profile, err := r.profiles.GetByUserID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// No profile saved yet: the user records under their own id.
			return Resolution{ScopeID: identity.UserID}, nil
		}
		return Resolution{}, fmt.Errorf("%w: profile lookup: %v", repository.ErrScopeUnresolved, err)
	}

	if profile.TeamID != "" {
		return Resolution{ScopeID: profile.TeamID, Profile: profile}, nil
	}
	return Resolution{ScopeID: identity.UserID, Profile: profile}, nil
}

// DeviceScopeID returns the scope key for an unauthenticated device.
func DeviceScopeID(deviceID string) string {
	return "device:" + deviceID
}
