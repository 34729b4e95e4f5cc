package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"slotmachine-api/internal/model"
)

// QuotaReader reports spin eligibility.
type QuotaReader interface {
	Availability(ctx context.Context, studentNumber string) (*model.Availability, error)
}

// PlayRecorder records one spin outcome and spends a retry.
type PlayRecorder interface {
	TryRecordPlay(ctx context.Context, studentNumber string, isWin bool) (*model.RecordResult, error)
}

// HistoryReader aggregates a player's outcome history.
type HistoryReader interface {
	Summary(ctx context.Context, studentNumber string) (*model.HistorySummary, error)
}

// recordGameRequest is the play payload. RetriesUsed is accepted for
// wire compatibility but every spin costs exactly one retry.
type recordGameRequest struct {
	StudentNumber string `json:"studentNumber"`
	IsWin         bool   `json:"isWin"`
	RetriesUsed   int    `json:"retriesUsed"`
}

// SpinAvailability handles GET /api/players/{studentNumber}/spin-availability.
func (h *Handler) SpinAvailability(w http.ResponseWriter, r *http.Request) {
	studentNumber := mux.Vars(r)["studentNumber"]

	av, err := h.Quota.Availability(r.Context(), studentNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, av)
}

// RecordGame handles POST /api/players/record-game.
func (h *Handler) RecordGame(w http.ResponseWriter, r *http.Request) {
	var req recordGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StudentNumber == "" {
		writeError(w, http.StatusBadRequest, "student number is required")
		return
	}

	result, err := h.Spins.TryRecordPlay(r.Context(), req.StudentNumber, req.IsWin)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GameHistorySummary handles GET /api/players/{studentNumber}/game-history/summary.
func (h *Handler) GameHistorySummary(w http.ResponseWriter, r *http.Request) {
	studentNumber := mux.Vars(r)["studentNumber"]

	summary, err := h.History.Summary(r.Context(), studentNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
