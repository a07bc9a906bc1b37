// Package handlers provides HTTP handlers for regional mix endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/regions"
	"github.com/truckboard/truckboard/internal/modules/timeline"
)

// LoadSource supplies the load records from the most recent refresh.
type LoadSource interface {
	Loads() []domain.LoadRecord
}

// Handler provides HTTP handlers for regional mix endpoints.
type Handler struct {
	calculator *regions.Calculator
	loads      LoadSource
	log        zerolog.Logger
}

// NewHandler creates a regions handler.
func NewHandler(calculator *regions.Calculator, loads LoadSource, log zerolog.Logger) *Handler {
	return &Handler{
		calculator: calculator,
		loads:      loads,
		log:        log.With().Str("handler", "regions").Logger(),
	}
}

// RegisterRoutes registers regional mix routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/regions/{entity}", h.HandleMix)
}

// HandleMix handles GET /api/regions/{entity}?date=
// The date defaults to now; windows end at its work-week end.
func (h *Handler) HandleMix(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	reference := time.Now()
	if q := r.URL.Query().Get("date"); q != "" {
		parsed, err := timeline.ParseDate(q)
		if err != nil {
			http.Error(w, "unparseable date", http.StatusBadRequest)
			return
		}
		reference = parsed
	}

	mix := h.calculator.Mix(h.loads.Loads(), entity, reference)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"entity": entity,
		"mix":    mix,
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode regional mix response")
	}
}
