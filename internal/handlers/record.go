package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"hygiene-log-backend/internal/middleware"
	"hygiene-log-backend/internal/repository"
	"hygiene-log-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// RecordHandler handles hygiene record HTTP requests.
type RecordHandler struct {
	recordService *services.RecordService
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(recordService *services.RecordService) *RecordHandler {
	return &RecordHandler{recordService: recordService}
}

// CreateRecord handles POST /api/v1/records
func (h *RecordHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)

	var req services.AddRecordInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.recordService.AddRecord(ctx, identity, req)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", identity.UserID).
			Str("device_id", identity.DeviceID).
			Msg("Failed to add record")
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	log.Info().
		Str("record_id", rec.ID).
		Str("scope_id", rec.ScopeID).
		Int("timing", int(rec.Timing)).
		Str("action", string(rec.Action)).
		Msg("Record added")

	respondJSON(w, http.StatusCreated, rec)
}

// ListRecords handles GET /api/v1/records
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)

	recs, err := h.recordService.ListRecords(ctx, identity)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", identity.UserID).
			Msg("Failed to list records")
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": recs,
		"total":   len(recs),
	})
}

// UpdateRecord handles PATCH /api/v1/records/{record_id}
func (h *RecordHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)
	recordID := chi.URLParam(r, "record_id")

	if recordID == "" {
		respondError(w, "record_id is required", http.StatusBadRequest)
		return
	}

	var patch repository.RecordPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.recordService.UpdateRecord(ctx, identity, recordID, patch); err != nil {
		log.Error().
			Err(err).
			Str("record_id", recordID).
			Msg("Failed to update record")
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteRecord handles DELETE /api/v1/records/{record_id}
func (h *RecordHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)
	recordID := chi.URLParam(r, "record_id")

	if recordID == "" {
		respondError(w, "record_id is required", http.StatusBadRequest)
		return
	}

	if err := h.recordService.DeleteRecord(ctx, identity, recordID); err != nil {
		log.Error().
			Err(err).
			Str("record_id", recordID).
			Msg("Failed to delete record")
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetStatistics handles GET /api/v1/statistics?start=&end=
func (h *RecordHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)

	start, err := parseMillis(r.URL.Query().Get("start"), 0)
	if err != nil {
		respondError(w, "start must be a millisecond timestamp", http.StatusBadRequest)
		return
	}
	end, err := parseMillis(r.URL.Query().Get("end"), int64(1)<<62)
	if err != nil {
		respondError(w, "end must be a millisecond timestamp", http.StatusBadRequest)
		return
	}

	stats, rate, err := h.recordService.Statistics(ctx, identity, start, end)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", identity.UserID).
			Msg("Failed to compute statistics")
		respondError(w, err.Error(), statusFromError(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats":           stats,
		"completion_rate": rate,
	})
}

func parseMillis(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
