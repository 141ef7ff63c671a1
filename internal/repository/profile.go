package repository

import (
	"context"
	"errors"
	"fmt"

	"hygiene-log-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileRepository handles database operations for user profiles.
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Upsert saves a profile, replacing any existing one for the user.
func (r *ProfileRepository) Upsert(ctx context.Context, p *models.UserProfile) error {
	query := `
		INSERT INTO profiles (user_id, display_name, facility_name, department, ward, section, observer, address, team_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			facility_name = EXCLUDED.facility_name,
			department = EXCLUDED.department,
			ward = EXCLUDED.ward,
			section = EXCLUDED.section,
			observer = EXCLUDED.observer,
			address = EXCLUDED.address,
			team_id = EXCLUDED.team_id,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		p.UserID, p.DisplayName, p.FacilityName, p.Department, p.Ward,
		p.Section, p.Observer, p.Address, p.TeamID, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert profile: %v", ErrPersistence, err)
	}
	return nil
}

// GetByUserID retrieves the profile for a user.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.UserProfile, error) {
	query := `
		SELECT user_id, display_name, facility_name, department, ward, section, observer, address, team_id, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	var p models.UserProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.DisplayName, &p.FacilityName, &p.Department, &p.Ward,
		&p.Section, &p.Observer, &p.Address, &p.TeamID, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("%w: get profile: %v", ErrPersistence, err)
	}
	return &p, nil
}

// SetTeamID updates only the team reference on a user's profile. An empty
// teamID clears the reference.
func (r *ProfileRepository) SetTeamID(ctx context.Context, userID, teamID string) error {
	query := `UPDATE profiles SET team_id = $1 WHERE user_id = $2`
	result, err := r.db.Exec(ctx, query, teamID, userID)
	if err != nil {
		return fmt.Errorf("%w: set profile team: %v", ErrPersistence, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	return nil
}
