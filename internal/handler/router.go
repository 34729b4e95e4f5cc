package handler

import (
	"context"
	"net/http"
	"time"

	gorilla "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Handler bundles the service dependencies behind the HTTP surface.
type Handler struct {
	Players PlayerRegistry
	Quota   QuotaReader
	Spins   PlayRecorder
	History HistoryReader
	Health  func(ctx context.Context) error
}

// NewRouter builds the API router with CORS and request logging.
func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.healthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/players", h.CreatePlayer).Methods(http.MethodPost)
	// Registered before the {studentNumber} routes so "validate" is not
	// captured as a student number.
	api.HandleFunc("/players/validate", h.ValidatePlayer).Methods(http.MethodGet)
	api.HandleFunc("/players/record-game", h.RecordGame).Methods(http.MethodPost)
	api.HandleFunc("/players/{id:[0-9]+}", h.GetPlayer).Methods(http.MethodGet)
	api.HandleFunc("/players/{studentNumber}/spin-availability", h.SpinAvailability).Methods(http.MethodGet)
	api.HandleFunc("/players/{studentNumber}/game-history/summary", h.GameHistorySummary).Methods(http.MethodGet)

	r.Use(requestLogger)

	cors := gorilla.CORS(
		gorilla.AllowedOrigins(allowedOrigins),
		gorilla.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		gorilla.AllowedHeaders([]string{"Content-Type"}),
	)

	return cors(r)
}

// healthCheck reports liveness, including the storage round-trip when a
// health probe was wired in.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// requestLogger logs one line per request with zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
