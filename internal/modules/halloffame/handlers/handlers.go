// Package handlers provides HTTP handlers for the hall of fame.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/modules/halloffame"
)

// Handler provides HTTP handlers for hall-of-fame endpoints.
type Handler struct {
	service *halloffame.Service
	log     zerolog.Logger
}

// NewHandler creates a hall-of-fame handler.
func NewHandler(service *halloffame.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "halloffame").Logger(),
	}
}

// RegisterRoutes registers hall-of-fame routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/halloffame", h.HandleAll)
}

// HandleAll handles GET /api/halloffame
func (h *Handler) HandleAll(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.All()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load hall of fame")
		http.Error(w, "Failed to load hall of fame", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode hall of fame response")
	}
}
