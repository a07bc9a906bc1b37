// Package handlers provides HTTP handlers for trend detection endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/ranking"
	"github.com/truckboard/truckboard/internal/modules/settings"
	"github.com/truckboard/truckboard/internal/modules/trends"
)

// Handler provides HTTP handlers for trend endpoints.
type Handler struct {
	detector *trends.Detector
	cache    *ranking.Cache
	settings *settings.Service
	log      zerolog.Logger
}

// NewHandler creates a trends handler.
func NewHandler(detector *trends.Detector, cache *ranking.Cache, settingsSvc *settings.Service, log zerolog.Logger) *Handler {
	return &Handler{
		detector: detector,
		cache:    cache,
		settings: settingsSvc,
		log:      log.With().Str("handler", "trends").Logger(),
	}
}

// RegisterRoutes registers trend routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/trends", h.HandleTrends)
}

// HandleTrends handles GET /api/trends?mode=&filter=&entity=&metric=
//
// With an entity, every significant trend for that entity is returned.
// Without one, each entity reports only its most significant trend, which
// is what the dashboard overview shows.
func (h *Handler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	mode := domain.Mode(r.URL.Query().Get("mode"))
	if mode == "" {
		var err error
		if mode, err = h.settings.DefaultMode(); err != nil {
			http.Error(w, "Failed to resolve defaults", http.StatusInternalServerError)
			return
		}
	}
	filter := domain.DriverTypeFilter(r.URL.Query().Get("filter"))
	if filter == "" {
		var err error
		if filter, err = h.settings.DefaultFilter(); err != nil {
			http.Error(w, "Failed to resolve defaults", http.StatusInternalServerError)
			return
		}
	}
	if !mode.Valid() || !filter.Valid() {
		http.Error(w, "unknown mode or filter", http.StatusBadRequest)
		return
	}

	snapshot, ok := h.cache.Get(mode, filter)
	if !ok {
		http.Error(w, "rankings not computed yet", http.StatusServiceUnavailable)
		return
	}

	cfg, err := h.settings.TrendConfig()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load trend config")
		http.Error(w, "Failed to load trend config", http.StatusInternalServerError)
		return
	}

	var metricIDs []string
	if metric := r.URL.Query().Get("metric"); metric != "" {
		metricIDs = []string{metric}
	}

	entity := r.URL.Query().Get("entity")
	var results []trends.Result
	if entity != "" {
		results = h.detector.Detect(snapshot.Rollups, entity, metricIDs, snapshot.Weeks, cfg)
	} else {
		for _, e := range snapshot.Entities() {
			results = append(results, h.detector.Detect(snapshot.Rollups, e, metricIDs, snapshot.Weeks, cfg)...)
		}
	}
	if results == nil {
		results = []trends.Result{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(results); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode trends response")
	}
}
