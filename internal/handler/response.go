// Package handler exposes the quota core over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"slotmachine-api/internal/repository"
	"slotmachine-api/internal/service"
)

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps service-layer errors onto HTTP statuses.
// Quota exhaustion is a rejected play, not a fault; storage failures
// surface as an opaque 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrPlayerNotFound):
		writeError(w, http.StatusNotFound, "player not found")
	case errors.Is(err, repository.ErrPlayerExists):
		writeError(w, http.StatusConflict, "student number already registered")
	case errors.Is(err, service.ErrInvalidStudentNumber):
		writeError(w, http.StatusBadRequest, "invalid student number format")
	case errors.Is(err, service.ErrQuotaExhausted):
		writeError(w, http.StatusBadRequest, "no retries left")
	default:
		log.Error().Err(err).Msg("Internal error")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
