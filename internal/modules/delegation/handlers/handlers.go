// Package handlers provides HTTP handlers for delegation scoring, capacity
// configuration, and pending assignments.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/delegation"
	"github.com/truckboard/truckboard/internal/modules/ranking"
	"github.com/truckboard/truckboard/internal/modules/settings"
)

// TruckCounter supplies live truck counts per dispatcher, from the most
// recent refresh.
type TruckCounter interface {
	TruckCounts() map[string]int
}

// Handler provides HTTP handlers for delegation endpoints.
type Handler struct {
	service  *delegation.Service
	cache    *ranking.Cache
	settings *settings.Service
	trucks   TruckCounter
	log      zerolog.Logger
}

// NewHandler creates a delegation handler.
func NewHandler(service *delegation.Service, cache *ranking.Cache, settingsSvc *settings.Service,
	trucks TruckCounter, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		cache:    cache,
		settings: settingsSvc,
		trucks:   trucks,
		log:      log.With().Str("handler", "delegation").Logger(),
	}
}

// RegisterRoutes registers delegation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/delegation/scores", h.HandleScores)
	r.Post("/api/delegation/scores", h.HandleScoresWithCompliance)

	r.Get("/api/delegation/assignments", h.HandleListAssignments)
	r.Post("/api/delegation/assignments", h.HandleCreateAssignment)
	r.Put("/api/delegation/assignments/{id}", h.HandleUpdateAssignment)
	r.Delete("/api/delegation/assignments/{id}", h.HandleDeleteAssignment)
	r.Post("/api/delegation/assignments/reconcile", h.HandleReconcile)

	r.Get("/api/capacity/profiles", h.HandleListProfiles)
	r.Put("/api/capacity/profiles/{dispatcher}", h.HandleUpsertProfile)
	r.Post("/api/capacity/profiles/{dispatcher}/rules", h.HandleEditProfileRules)
	r.Delete("/api/capacity/profiles/{dispatcher}", h.HandleDeleteProfile)

	r.Get("/api/capacity/groups", h.HandleListGroups)
	r.Post("/api/capacity/groups", h.HandleCreateGroup)
	r.Put("/api/capacity/groups/{id}", h.HandleUpdateGroupRules)
	r.Post("/api/capacity/groups/{id}/rules", h.HandleEditGroupRules)
	r.Delete("/api/capacity/groups/{id}", h.HandleDeleteGroup)
}

// HandleScores handles GET /api/delegation/scores?filter=
//
// Delegation always scores individual dispatchers; team mode has no
// meaning here. Without compliance input every compliance contribution
// is zero; POST the scores endpoint to supply one.
func (h *Handler) HandleScores(w http.ResponseWriter, r *http.Request) {
	filter := domain.DriverTypeFilter(r.URL.Query().Get("filter"))
	h.serveScores(w, filter, nil)
}

// HandleScoresWithCompliance handles POST /api/delegation/scores with a body
// of {"filter": ..., "compliance": {dispatcher: score}}. Compliance scores
// come from an external safety system and are supplied per request rather
// than stored.
func (h *Handler) HandleScoresWithCompliance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filter     domain.DriverTypeFilter `json:"filter"`
		Compliance map[string]*float64     `json:"compliance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.serveScores(w, req.Filter, req.Compliance)
}

func (h *Handler) serveScores(w http.ResponseWriter, filter domain.DriverTypeFilter, compliance map[string]*float64) {
	if filter == "" {
		var err error
		if filter, err = h.settings.DefaultFilter(); err != nil {
			http.Error(w, "Failed to resolve defaults", http.StatusInternalServerError)
			return
		}
	}
	if !filter.Valid() {
		http.Error(w, "unknown filter", http.StatusBadRequest)
		return
	}

	snapshot, ok := h.cache.Get(domain.ModeDispatcher, filter)
	if !ok {
		http.Error(w, "rankings not computed yet", http.StatusServiceUnavailable)
		return
	}

	weights, err := h.settings.Weights()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load scoring weights")
		http.Error(w, "Failed to load weights", http.StatusInternalServerError)
		return
	}

	scores, err := h.service.ComputeScores(snapshot, h.trucks.TruckCounts(), compliance, weights)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute delegation scores")
		http.Error(w, "Failed to compute scores", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, scores)
}

// HandleListAssignments handles GET /api/delegation/assignments
func (h *Handler) HandleListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.service.Assignments().GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list assignments")
		http.Error(w, "Failed to list assignments", http.StatusInternalServerError)
		return
	}
	if assignments == nil {
		assignments = []delegation.Assignment{}
	}
	h.writeJSON(w, assignments)
}

// HandleCreateAssignment handles POST /api/delegation/assignments
func (h *Handler) HandleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var a delegation.Assignment
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if a.CountAtAssignment == 0 {
		a.CountAtAssignment = h.trucks.TruckCounts()[a.Dispatcher]
	}

	created, err := h.service.Assignments().Create(a)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, created)
}

// HandleUpdateAssignment handles PUT /api/delegation/assignments/{id}
func (h *Handler) HandleUpdateAssignment(w http.ResponseWriter, r *http.Request) {
	var a delegation.Assignment
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	a.ID = chi.URLParam(r, "id")

	if err := h.service.Assignments().Update(a); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.writeJSON(w, a)
}

// HandleDeleteAssignment handles DELETE /api/delegation/assignments/{id}
func (h *Handler) HandleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Assignments().Delete(chi.URLParam(r, "id")); err != nil {
		h.log.Error().Err(err).Msg("Failed to delete assignment")
		http.Error(w, "Failed to delete assignment", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReconcile handles POST /api/delegation/assignments/reconcile
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	closed, err := h.service.ReconcileAll(h.trucks.TruckCounts())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to reconcile assignments")
		http.Error(w, "Failed to reconcile assignments", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]int{"closed": closed})
}

// HandleListProfiles handles GET /api/capacity/profiles
func (h *Handler) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.Profiles().GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list capacity profiles")
		http.Error(w, "Failed to list profiles", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, profiles)
}

// HandleUpsertProfile handles PUT /api/capacity/profiles/{dispatcher}
func (h *Handler) HandleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var profile delegation.CapacityProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	profile.Dispatcher = chi.URLParam(r, "dispatcher")

	// Rule lists are validated on the way in; the scorer trusts storage.
	if len(profile.Rules) > 0 {
		profile.Rules = profile.Rules.Normalized()
		if err := profile.Rules.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := h.service.Profiles().Upsert(&profile); err != nil {
		h.log.Error().Err(err).Msg("Failed to save capacity profile")
		http.Error(w, "Failed to save profile", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, profile)
}

// HandleEditProfileRules handles POST /api/capacity/profiles/{dispatcher}/rules
//
// The body is an ordered list of structured edits (boundary, cap, split,
// remove) applied to the profile's own rule list. A profile without rules
// starts from its group's rules when it has a group, the stock defaults
// otherwise; the edited list is stored as the profile's own.
func (h *Handler) HandleEditProfileRules(w http.ResponseWriter, r *http.Request) {
	dispatcher := chi.URLParam(r, "dispatcher")

	var edits []delegation.RuleEdit
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := h.service.Profiles().Get(dispatcher)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load capacity profile")
		http.Error(w, "Failed to load profile", http.StatusInternalServerError)
		return
	}
	if profile == nil {
		profile = &delegation.CapacityProfile{
			Dispatcher: dispatcher,
			Allowed:    delegation.AllowedContracts{OO: true, LOO: true},
		}
	}

	base := profile.Rules
	if len(base) == 0 && profile.GroupID != nil {
		group, err := h.service.Groups().Get(*profile.GroupID)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to load settings group")
			http.Error(w, "Failed to load group", http.StatusInternalServerError)
			return
		}
		if group != nil {
			base = group.Rules
		}
	}
	if len(base) == 0 {
		base = delegation.DefaultRules()
	}

	edited, err := base.Apply(edits)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := edited.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile.Rules = edited
	if err := h.service.Profiles().Upsert(profile); err != nil {
		h.log.Error().Err(err).Msg("Failed to save capacity profile")
		http.Error(w, "Failed to save profile", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, profile)
}

// HandleDeleteProfile handles DELETE /api/capacity/profiles/{dispatcher}
func (h *Handler) HandleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Profiles().Delete(chi.URLParam(r, "dispatcher")); err != nil {
		h.log.Error().Err(err).Msg("Failed to delete capacity profile")
		http.Error(w, "Failed to delete profile", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListGroups handles GET /api/capacity/groups
func (h *Handler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.Groups().GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list settings groups")
		http.Error(w, "Failed to list groups", http.StatusInternalServerError)
		return
	}
	if groups == nil {
		groups = []delegation.SettingsGroup{}
	}
	h.writeJSON(w, groups)
}

// HandleCreateGroup handles POST /api/capacity/groups
func (h *Handler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string              `json:"name"`
		Rules delegation.RuleList `json:"rules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "group name required", http.StatusBadRequest)
		return
	}

	group, err := h.service.Groups().Create(req.Name, req.Rules.Normalized())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, group)
}

// HandleUpdateGroupRules handles PUT /api/capacity/groups/{id}
func (h *Handler) HandleUpdateGroupRules(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid group id", http.StatusBadRequest)
		return
	}

	var req struct {
		Rules delegation.RuleList `json:"rules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Groups().UpdateRules(id, req.Rules.Normalized()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEditGroupRules handles POST /api/capacity/groups/{id}/rules with an
// ordered list of structured edits against the group's current rules.
// Member profiles pick the change up on their next read.
func (h *Handler) HandleEditGroupRules(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid group id", http.StatusBadRequest)
		return
	}

	var edits []delegation.RuleEdit
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	group, err := h.service.Groups().Get(id)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load settings group")
		http.Error(w, "Failed to load group", http.StatusInternalServerError)
		return
	}
	if group == nil {
		http.Error(w, "group not found", http.StatusNotFound)
		return
	}

	edited, err := group.Rules.Apply(edits)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.Groups().UpdateRules(id, edited); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	group.Rules = edited
	h.writeJSON(w, group)
}

// HandleDeleteGroup handles DELETE /api/capacity/groups/{id}
func (h *Handler) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid group id", http.StatusBadRequest)
		return
	}

	if err := h.service.Groups().Delete(id); err != nil {
		h.log.Error().Err(err).Msg("Failed to delete settings group")
		http.Error(w, "Failed to delete group", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
