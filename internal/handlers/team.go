package handlers

import (
	"encoding/json"
	"net/http"

	"hygiene-log-backend/internal/middleware"
	"hygiene-log-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// TeamHandler handles team membership HTTP requests.
type TeamHandler struct {
	teamService *services.TeamService
}

// NewTeamHandler creates a new team handler.
func NewTeamHandler(teamService *services.TeamService) *TeamHandler {
	return &TeamHandler{teamService: teamService}
}

// CreateTeamRequest represents the request body for creating a team.
type CreateTeamRequest struct {
	Name string `json:"name"`
}

// CreateTeam handles POST /api/v1/teams
func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)

	var req CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	team, err := h.teamService.CreateTeam(ctx, identity.UserID, req.Name)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", identity.UserID).
			Msg("Failed to create team")
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	log.Info().
		Str("user_id", identity.UserID).
		Str("team_id", team.ID).
		Str("name", team.Name).
		Msg("Team created")

	respondJSON(w, http.StatusCreated, team)
}

// JoinTeam handles POST /api/v1/teams/{team_id}/join
func (h *TeamHandler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)
	teamID := chi.URLParam(r, "team_id")

	if teamID == "" {
		respondError(w, "team_id is required", http.StatusBadRequest)
		return
	}

	if err := h.teamService.JoinTeam(ctx, identity.UserID, teamID); err != nil {
		log.Error().
			Err(err).
			Str("user_id", identity.UserID).
			Str("team_id", teamID).
			Msg("Failed to join team")
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	log.Info().
		Str("user_id", identity.UserID).
		Str("team_id", teamID).
		Msg("Joined team")

	w.WriteHeader(http.StatusNoContent)
}

// LeaveTeam handles POST /api/v1/teams/leave
func (h *TeamHandler) LeaveTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)

	if err := h.teamService.LeaveTeam(ctx, identity.UserID); err != nil {
		log.Error().
			Err(err).
			Str("user_id", identity.UserID).
			Msg("Failed to leave team")
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	log.Info().
		Str("user_id", identity.UserID).
		Msg("Left team")

	w.WriteHeader(http.StatusNoContent)
}

// GetTeam handles GET /api/v1/teams/{team_id}
func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teamID := chi.URLParam(r, "team_id")

	if teamID == "" {
		respondError(w, "team_id is required", http.StatusBadRequest)
		return
	}

	team, err := h.teamService.GetTeam(ctx, teamID)
	if err != nil {
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	respondJSON(w, http.StatusOK, team)
}
