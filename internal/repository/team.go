package repository

import (
	"context"
	"errors"
	"fmt"

	"hygiene-log-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TeamRepository handles database operations for teams and their members.
type TeamRepository struct {
	db *pgxpool.Pool
}

// NewTeamRepository creates a new team repository.
func NewTeamRepository(db *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{db: db}
}

// Create creates a new team and registers its owner as the first member.
func (r *TeamRepository) Create(ctx context.Context, team *models.Team) error {
	query := `
		INSERT INTO teams (id, name, owner_id, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query, team.ID, team.Name, team.OwnerID, team.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: create team: %v", ErrPersistence, err)
	}
	if err := r.AddMember(ctx, team.ID, team.OwnerID); err != nil {
		return err
	}
	return nil
}

// GetByID retrieves a team with its member set.
func (r *TeamRepository) GetByID(ctx context.Context, id string) (*models.Team, error) {
	query := `
		SELECT id, name, owner_id, created_at
		FROM teams
		WHERE id = $1
	`
	var team models.Team
	err := r.db.QueryRow(ctx, query, id).Scan(
		&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("team %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("%w: get team: %v", ErrPersistence, err)
	}

	members, err := r.MemberIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	team.MemberIDs = members
	return &team, nil
}

// Exists checks whether a team with the id exists.
func (r *TeamRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM teams WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: check team existence: %v", ErrPersistence, err)
	}
	return exists, nil
}

// AddMember adds a user to the team's member set. Adding an existing member
// is a no-op, so join is idempotent.
func (r *TeamRepository) AddMember(ctx context.Context, teamID, userID string) error {
	query := `
		INSERT INTO team_members (team_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (team_id, user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, teamID, userID); err != nil {
		return fmt.Errorf("%w: add team member: %v", ErrPersistence, err)
	}
	return nil
}

// RemoveMember removes a user from the team's member set.
func (r *TeamRepository) RemoveMember(ctx context.Context, teamID, userID string) error {
	query := `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`
	if _, err := r.db.Exec(ctx, query, teamID, userID); err != nil {
		return fmt.Errorf("%w: remove team member: %v", ErrPersistence, err)
	}
	return nil
}

// MemberIDs lists the user ids in a team's member set.
func (r *TeamRepository) MemberIDs(ctx context.Context, teamID string) ([]string, error) {
	query := `SELECT user_id FROM team_members WHERE team_id = $1`
	rows, err := r.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("%w: list team members: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan team member: %v", ErrPersistence, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate team members: %v", ErrPersistence, err)
	}
	return ids, nil
}
