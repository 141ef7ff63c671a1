package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hygiene-log-backend/internal/models"
	"hygiene-log-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TeamRepo is the team collection boundary.
type TeamRepo interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id string) (*models.Team, error)
	Exists(ctx context.Context, id string) (bool, error)
	AddMember(ctx context.Context, teamID, userID string) error
	RemoveMember(ctx context.Context, teamID, userID string) error
}

// ProfileRepo is the profile collection boundary the team service writes
// team references through.
type ProfileRepo interface {
	GetByUserID(ctx context.Context, userID string) (*models.UserProfile, error)
	SetTeamID(ctx context.Context, userID, teamID string) error
	Upsert(ctx context.Context, p *models.UserProfile) error
}

// TeamService handles create/join/leave of shared record scopes.
type TeamService struct {
	teams    TeamRepo
	profiles ProfileRepo
}

// NewTeamService creates a new team service.
func NewTeamService(teams TeamRepo, profiles ProfileRepo) *TeamService {
	return &TeamService{teams: teams, profiles: profiles}
}

// CreateTeam creates a team owned by the caller, with the caller as sole
// member, then points the caller's profile at it.
//
// The two writes are not atomic: if the profile update fails after the team
// write succeeded, the team is left orphaned and the caller keeps their old
// scope. The orphan is tolerated; retrying CreateTeam makes a fresh team.
func (s *TeamService) CreateTeam(ctx context.Context, userID, name string) (*models.Team, error) {
	if userID == "" {
		return nil, fmt.Errorf("create team: %w", repository.ErrAuthRequired)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: team name is required", ErrInvalidInput)
	}

	team := &models.Team{
		ID:        uuid.New().String(),
		Name:      name,
		OwnerID:   userID,
		MemberIDs: []string{userID},
		CreatedAt: time.Now(),
	}
	if err := s.teams.Create(ctx, team); err != nil {
		return nil, err
	}

	if err := s.setProfileTeam(ctx, userID, team.ID); err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("team_id", team.ID).
			Msg("Team created but profile update failed, team is orphaned")
		return nil, err
	}
	return team, nil
}

// JoinTeam adds the caller to an existing team's member set (idempotently)
// and points their profile at it. Returns ErrNotFound if the team does not
// exist.
func (s *TeamService) JoinTeam(ctx context.Context, userID, teamID string) error {
	if userID == "" {
		return fmt.Errorf("join team: %w", repository.ErrAuthRequired)
	}

	exists, err := s.teams.Exists(ctx, teamID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("team %s: %w", teamID, repository.ErrNotFound)
	}

	if err := s.teams.AddMember(ctx, teamID, userID); err != nil {
		return err
	}
	return s.setProfileTeam(ctx, userID, teamID)
}

// LeaveTeam clears the caller's team reference and removes them from the
// team's member set. A caller without a team is a no-op. An owner may
// leave; the team then persists without them (there is no team deletion).
func (s *TeamService) LeaveTeam(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("leave team: %w", repository.ErrAuthRequired)
	}

	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if profile.TeamID == "" {
		return nil
	}

	teamID := profile.TeamID
	if err := s.profiles.SetTeamID(ctx, userID, ""); err != nil {
		return err
	}
	if err := s.teams.RemoveMember(ctx, teamID, userID); err != nil {
		// The scope switch already happened; membership cleanup failing
		// only leaves a dangling member row.
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("team_id", teamID).
			Msg("Failed to remove member after leaving team")
	}
	return nil
}

// GetTeam returns a team with its member set.
func (s *TeamService) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	return s.teams.GetByID(ctx, teamID)
}

// setProfileTeam writes the team reference, creating a bare profile for
// users who joined a team before saving one.
func (s *TeamService) setProfileTeam(ctx context.Context, userID, teamID string) error {
	err := s.profiles.SetTeamID(ctx, userID, teamID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return s.profiles.Upsert(ctx, &models.UserProfile{
		UserID:    userID,
		TeamID:    teamID,
		UpdatedAt: time.Now(),
	})
}
