package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"hygiene-log-backend/internal/repository"
	"hygiene-log-backend/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// statusFromError maps the service error taxonomy onto HTTP status codes.
// ScopeUnresolved maps to 503: it is a transient state the client should
// retry, not a permanent failure.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, repository.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrScopeUnresolved):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
