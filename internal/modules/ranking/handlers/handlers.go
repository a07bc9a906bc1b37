// Package handlers provides HTTP handlers for ranking endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/ranking"
	"github.com/truckboard/truckboard/internal/modules/settings"
)

// Handler provides HTTP handlers for ranking endpoints.
type Handler struct {
	cache    *ranking.Cache
	settings *settings.Service
	log      zerolog.Logger
}

// NewHandler creates a ranking handler.
func NewHandler(cache *ranking.Cache, settingsSvc *settings.Service, log zerolog.Logger) *Handler {
	return &Handler{
		cache:    cache,
		settings: settingsSvc,
		log:      log.With().Str("handler", "rankings").Logger(),
	}
}

// RegisterRoutes registers ranking routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/rankings", h.HandleRankings)
	r.Get("/api/rankings/history/{entity}", h.HandleHistory)
	r.Get("/api/rollups", h.HandleRollups)
}

// resolve parses mode/filter query params, falling back to the stored
// defaults. Invalid values are a client error, not a silent fallback.
func (h *Handler) resolve(r *http.Request) (domain.Mode, domain.DriverTypeFilter, error) {
	mode, err := h.settings.DefaultMode()
	if err != nil {
		return "", "", err
	}
	filter, err := h.settings.DefaultFilter()
	if err != nil {
		return "", "", err
	}

	if q := r.URL.Query().Get("mode"); q != "" {
		mode = domain.Mode(q)
	}
	if q := r.URL.Query().Get("filter"); q != "" {
		filter = domain.DriverTypeFilter(q)
	}
	if !mode.Valid() || !filter.Valid() {
		return "", "", errBadCombination
	}
	return mode, filter, nil
}

var errBadCombination = errors.New("unknown mode or filter")

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (*ranking.Snapshot, bool) {
	mode, filter, err := h.resolve(r)
	if err == errBadCombination {
		http.Error(w, "unknown mode or filter", http.StatusBadRequest)
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to resolve mode and filter")
		http.Error(w, "Failed to resolve defaults", http.StatusInternalServerError)
		return nil, false
	}

	snapshot, ok := h.cache.Get(mode, filter)
	if !ok {
		http.Error(w, "rankings not computed yet", http.StatusServiceUnavailable)
		return nil, false
	}
	return snapshot, true
}

// HandleRankings handles GET /api/rankings?mode=&filter=
func (h *Handler) HandleRankings(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	writeJSON(w, h.log, map[string]interface{}{
		"mode":    snapshot.Mode,
		"filter":  snapshot.Filter,
		"week":    firstWeek(snapshot),
		"entries": snapshot.Latest(),
	})
}

// HandleHistory handles GET /api/rankings/history/{entity}
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	entity := chi.URLParam(r, "entity")
	history, ok := snapshot.History[entity]
	if !ok {
		http.Error(w, "unknown entity", http.StatusNotFound)
		return
	}

	writeJSON(w, h.log, map[string]interface{}{
		"entity":  entity,
		"weeks":   snapshot.Weeks,
		"history": history,
	})
}

// HandleRollups handles GET /api/rollups?mode=&filter=
func (h *Handler) HandleRollups(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, h.log, snapshot.Rollups)
}

func firstWeek(s *ranking.Snapshot) string {
	if len(s.Weeks) == 0 {
		return ""
	}
	return s.Weeks[0]
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
