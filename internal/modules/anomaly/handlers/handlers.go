// Package handlers provides HTTP handlers for anomaly detection endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/anomaly"
	"github.com/truckboard/truckboard/internal/modules/metrics"
	"github.com/truckboard/truckboard/internal/modules/ranking"
	"github.com/truckboard/truckboard/internal/modules/settings"
)

// Handler provides HTTP handlers for anomaly endpoints.
type Handler struct {
	detector *anomaly.Detector
	catalog  *metrics.Catalog
	cache    *ranking.Cache
	settings *settings.Service
	log      zerolog.Logger
}

// NewHandler creates an anomaly handler.
func NewHandler(detector *anomaly.Detector, catalog *metrics.Catalog, cache *ranking.Cache,
	settingsSvc *settings.Service, log zerolog.Logger) *Handler {
	return &Handler{
		detector: detector,
		catalog:  catalog,
		cache:    cache,
		settings: settingsSvc,
		log:      log.With().Str("handler", "anomalies").Logger(),
	}
}

// RegisterRoutes registers anomaly routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/anomalies/low-performers", h.HandleLowPerformers)
	r.Get("/api/anomalies/drops", h.HandleDrops)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (*ranking.Snapshot, bool) {
	mode := domain.Mode(r.URL.Query().Get("mode"))
	if mode == "" {
		var err error
		if mode, err = h.settings.DefaultMode(); err != nil {
			http.Error(w, "Failed to resolve defaults", http.StatusInternalServerError)
			return nil, false
		}
	}
	filter := domain.DriverTypeFilter(r.URL.Query().Get("filter"))
	if filter == "" {
		var err error
		if filter, err = h.settings.DefaultFilter(); err != nil {
			http.Error(w, "Failed to resolve defaults", http.StatusInternalServerError)
			return nil, false
		}
	}
	if !mode.Valid() || !filter.Valid() {
		http.Error(w, "unknown mode or filter", http.StatusBadRequest)
		return nil, false
	}

	snapshot, ok := h.cache.Get(mode, filter)
	if !ok {
		http.Error(w, "rankings not computed yet", http.StatusServiceUnavailable)
		return nil, false
	}
	return snapshot, true
}

func (h *Handler) metricParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		http.Error(w, "metric query parameter required", http.StatusBadRequest)
		return "", false
	}
	if !h.catalog.Has(metric) {
		http.Error(w, "unknown metric", http.StatusBadRequest)
		return "", false
	}
	return metric, true
}

// HandleLowPerformers handles GET /api/anomalies/low-performers?metric=&mode=&filter=
func (h *Handler) HandleLowPerformers(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	metric, ok := h.metricParam(w, r)
	if !ok {
		return
	}

	cfg, err := h.settings.ChronicConfig(metric)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load chronic-low config")
		http.Error(w, "Failed to load anomaly config", http.StatusInternalServerError)
		return
	}

	results := h.detector.ChronicLows(snapshot.Rollups, snapshot.Weeks, cfg)
	if results == nil {
		results = []anomaly.ChronicLow{}
	}
	h.writeJSON(w, results)
}

// HandleDrops handles GET /api/anomalies/drops?metric=&mode=&filter=
func (h *Handler) HandleDrops(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	metric, ok := h.metricParam(w, r)
	if !ok {
		return
	}

	threshold, err := h.settings.DropThresholdPercent()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load drop threshold")
		http.Error(w, "Failed to load anomaly config", http.StatusInternalServerError)
		return
	}

	cfg := anomaly.DefaultDropConfig(metric)
	cfg.ThresholdPercent = threshold

	results := h.detector.Drops(snapshot.Rollups, snapshot.Weeks, cfg)
	if results == nil {
		results = []anomaly.Drop{}
	}
	h.writeJSON(w, results)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
