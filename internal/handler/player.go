package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"slotmachine-api/internal/model"
)

// PlayerRegistry is the registration/lookup surface consumed by the
// player handlers.
type PlayerRegistry interface {
	Register(ctx context.Context, studentNumber, firstName, lastName string) (*model.PlayerProfile, error)
	GetProfile(ctx context.Context, id int64) (*model.PlayerProfile, error)
	Validate(ctx context.Context, studentNumber string) (bool, error)
}

// createPlayerRequest is the registration payload.
type createPlayerRequest struct {
	StudentNumber string `json:"studentNumber"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
}

// validationResponse is the body of the validation probe.
type validationResponse struct {
	IsValid bool `json:"isValid"`
}

// CreatePlayer handles POST /api/players.
func (h *Handler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req createPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.Players.Register(r.Context(), req.StudentNumber, req.FirstName, req.LastName)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

// GetPlayer handles GET /api/players/{id}.
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}

	profile, err := h.Players.GetProfile(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// ValidatePlayer handles GET /api/players/validate?studentNumber=…
func (h *Handler) ValidatePlayer(w http.ResponseWriter, r *http.Request) {
	studentNumber := r.URL.Query().Get("studentNumber")

	valid, err := h.Players.Validate(r.Context(), studentNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, validationResponse{IsValid: valid})
}
