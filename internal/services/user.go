package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hygiene-log-backend/internal/models"
	"hygiene-log-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const jwtExpDays = 365

// ErrInvalidCredentials is returned when login email/password verification
// fails. Deliberately indistinguishable between unknown email and wrong
// password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepo is the identity account boundary.
type UserRepo interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// UserService handles identity: password signup/login, token issue and
// verification, profile save/load, and local device reset.
type UserService struct {
	users     UserRepo
	profiles  ProfileRepo
	local     KVStore
	jwtSecret string
}

// NewUserService creates a new user service.
func NewUserService(users UserRepo, profiles ProfileRepo, local KVStore, jwtSecret string) *UserService {
	return &UserService{
		users:     users,
		profiles:  profiles,
		local:     local,
		jwtSecret: jwtSecret,
	}
}

// Register creates a new account and returns it with a signed token.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, "", fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if exists {
		return nil, "", fmt.Errorf("%w: email already registered", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies credentials and returns the account with a signed token.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GenerateJWT generates a signed token for a user.
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a token and returns the user ID it carries.
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

// SaveProfile stores the caller's profile, preserving an existing team
// reference when the incoming profile carries none.
func (s *UserService) SaveProfile(ctx context.Context, userID string, p *models.UserProfile) error {
	if userID == "" {
		return fmt.Errorf("save profile: %w", repository.ErrAuthRequired)
	}
	p.UserID = userID
	p.UpdatedAt = time.Now()

	if p.TeamID == "" {
		existing, err := s.profiles.GetByUserID(ctx, userID)
		if err == nil {
			p.TeamID = existing.TeamID
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return s.profiles.Upsert(ctx, p)
}

// GetProfile loads the caller's profile.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("get profile: %w", repository.ErrAuthRequired)
	}
	return s.profiles.GetByUserID(ctx, userID)
}

// ResetDevice wipes everything the local store holds for a device: its
// record list and its locally saved profile.
func (s *UserService) ResetDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidInput)
	}
	return s.local.RemoveAll(ctx, repository.RecordsKey(deviceID), repository.ProfileKey(deviceID))
}
