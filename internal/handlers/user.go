package handlers

import (
	"encoding/json"
	"net/http"

	"hygiene-log-backend/internal/middleware"
	"hygiene-log-backend/internal/models"
	"hygiene-log-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles identity and profile HTTP requests.
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// CredentialsRequest is the body for signup and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse returns the account and its bearer token.
type AuthResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Register handles POST /api/v1/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, token, err := h.userService.Register(ctx, req.Email, req.Password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to register user")
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	log.Info().
		Str("user_id", user.ID).
		Msg("User registered")

	respondJSON(w, http.StatusCreated, AuthResponse{User: user, Token: token})
}

// Login handles POST /api/v1/sessions
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, token, err := h.userService.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	log.Info().
		Str("user_id", user.ID).
		Msg("User logged in")

	respondJSON(w, http.StatusOK, AuthResponse{User: user, Token: token})
}

// GetProfile handles GET /api/v1/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)

	profile, err := h.userService.GetProfile(ctx, identity.UserID)
	if err != nil {
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// SaveProfile handles PUT /api/v1/profile
func (h *UserHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)

	var profile models.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.SaveProfile(ctx, identity.UserID, &profile); err != nil {
		log.Error().
			Err(err).
			Str("user_id", identity.UserID).
			Msg("Failed to save profile")
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// ResetDevice handles POST /api/v1/device/reset
func (h *UserHandler) ResetDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)

	if err := h.userService.ResetDevice(ctx, identity.DeviceID); err != nil {
		log.Error().
			Err(err).
			Str("device_id", identity.DeviceID).
			Msg("Failed to reset device data")
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	log.Info().
		Str("device_id", identity.DeviceID).
		Msg("Device data reset")

	w.WriteHeader(http.StatusNoContent)
}
