package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"hygiene-log-backend/internal/middleware"
	"hygiene-log-backend/internal/repository"
	"hygiene-log-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ExportHandler handles CSV/PDF export HTTP requests.
type ExportHandler struct {
	exportService *services.ExportService
	recordService *services.RecordService
	userService   *services.UserService
	resolver      *services.ScopeResolver
}

// NewExportHandler creates a new export handler.
func NewExportHandler(
	exportService *services.ExportService,
	recordService *services.RecordService,
	userService *services.UserService,
	resolver *services.ScopeResolver,
) *ExportHandler {
	return &ExportHandler{
		exportService: exportService,
		recordService: recordService,
		userService:   userService,
		resolver:      resolver,
	}
}

// ExportRequest optionally overrides the observation-form header fields
// prefilled from the caller's profile.
type ExportRequest struct {
	FacilityInfo *services.FacilityInfo `json:"facility_info"`
}

// Export handles POST /api/v1/exports/{format}
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)
	format := services.ExportFormat(chi.URLParam(r, "format"))

	var req ExportRequest
	if r.Body != nil {
		// An empty body means "use the profile defaults".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	res, err := h.resolver.Resolve(ctx, identity)
	if err != nil {
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	records, err := h.recordService.ListRecords(ctx, identity)
	if err != nil {
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	info := services.FacilityInfoFromProfile(res.Profile)
	if identity.Authenticated() && res.Profile == nil {
		profile, perr := h.userService.GetProfile(ctx, identity.UserID)
		if perr == nil {
			info = services.FacilityInfoFromProfile(profile)
		} else if !errors.Is(perr, repository.ErrNotFound) {
			respondError(w, perr.Error(), statusFromError(perr))
			return
		}
	}
	if req.FacilityInfo != nil {
		info = *req.FacilityInfo
	}

	result, err := h.exportService.Export(ctx, format, res.ScopeID, info, records)
	if err != nil {
		log.Error().
			Err(err).
			Str("scope_id", res.ScopeID).
			Str("format", string(format)).
			Msg("Failed to export records")
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	log.Info().
		Str("scope_id", res.ScopeID).
		Str("format", string(format)).
		Str("key", result.Key).
		Int("records", len(records)).
		Msg("Export generated")

	respondJSON(w, http.StatusOK, result)
}
