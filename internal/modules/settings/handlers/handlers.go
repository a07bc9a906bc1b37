// Package handlers provides HTTP handlers for settings management.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/delegation"
	"github.com/truckboard/truckboard/internal/modules/settings"
)

// Handler provides HTTP handlers for settings endpoints.
type Handler struct {
	service *settings.Service
	log     zerolog.Logger
}

// NewHandler creates a settings handler.
func NewHandler(service *settings.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "settings").Logger(),
	}
}

// RegisterRoutes registers settings routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/settings", h.HandleGetAll)
	r.Put("/api/settings/{key}", h.HandleSet)
	r.Get("/api/settings/weights", h.HandleGetWeights)
	r.Put("/api/settings/weights", h.HandleSetWeights)
	r.Put("/api/settings/defaults", h.HandleSetDefaults)
}

// HandleGetAll handles GET /api/settings
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.Repo().GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get all settings")
		http.Error(w, "Failed to get settings", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, all)
}

// HandleSet handles PUT /api/settings/{key}
//
// Generic raw setter for simple keys. Weights and defaults have dedicated
// endpoints that validate their invariants.
func (h *Handler) HandleSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value       string  `json:"value"`
		Description *string `json:"description,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	key := chi.URLParam(r, "key")
	if err := h.service.Repo().Set(key, req.Value, req.Description); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("Failed to set setting")
		http.Error(w, "Failed to set setting", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetWeights handles GET /api/settings/weights
func (h *Handler) HandleGetWeights(w http.ResponseWriter, r *http.Request) {
	weights, err := h.service.Weights()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get weights")
		http.Error(w, "Failed to get weights", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, weights)
}

// HandleSetWeights handles PUT /api/settings/weights
func (h *Handler) HandleSetWeights(w http.ResponseWriter, r *http.Request) {
	var weights delegation.Weights
	if err := json.NewDecoder(r.Body).Decode(&weights); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.SetWeights(weights); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, weights)
}

// HandleSetDefaults handles PUT /api/settings/defaults
func (h *Handler) HandleSetDefaults(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode   *domain.Mode             `json:"mode,omitempty"`
		Filter *domain.DriverTypeFilter `json:"filter,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Mode != nil {
		if err := h.service.SetDefaultMode(*req.Mode); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.Filter != nil {
		if err := h.service.SetDefaultFilter(*req.Filter); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
