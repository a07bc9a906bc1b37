package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/aggregation"
	"github.com/truckboard/truckboard/internal/modules/delegation"
	"github.com/truckboard/truckboard/internal/modules/metrics"
	"github.com/truckboard/truckboard/internal/modules/ranking"
	"github.com/truckboard/truckboard/internal/modules/rolling"
	"github.com/truckboard/truckboard/internal/modules/settings"
	apptesting "github.com/truckboard/truckboard/internal/testing"
)

type staticTrucks map[string]int

func (s staticTrucks) TruckCounts() map[string]int { return s }

type fixture struct {
	router  chi.Router
	service *delegation.Service
}

func newFixture(t *testing.T, records []domain.WeeklyRecord, trucks map[string]int) (*fixture, func()) {
	t.Helper()
	db, cleanup := apptesting.NewTestDB(t, "config")
	log := zerolog.Nop()

	svc := delegation.NewService(
		delegation.NewProfileRepository(db.Conn(), log),
		delegation.NewGroupRepository(db.Conn(), log),
		delegation.NewAssignmentRepository(db.Conn(), log),
		log,
	)
	settingsSvc := settings.NewService(settings.NewRepository(db.Conn(), log), log)

	cache := ranking.NewCache()
	if len(records) > 0 {
		catalog := metrics.NewCatalog()
		agg := aggregation.NewAggregator(catalog, log)
		eng := ranking.NewEngine(agg, rolling.NewEngine(catalog, log), log)
		cache.ReplaceAll(map[ranking.CacheKey]*ranking.Snapshot{
			{Mode: domain.ModeDispatcher, Filter: domain.FilterAll}: eng.ComputeRanks(
				records, domain.ModeDispatcher, domain.FilterAll),
		})
	}

	router := chi.NewRouter()
	NewHandler(svc, cache, settingsSvc, staticTrucks(trucks), log).RegisterRoutes(router)

	return &fixture{router: router, service: svc}, cleanup
}

func evenRecord(dispatcher, date string, drivers int, score float64) domain.WeeklyRecord {
	m := make(map[string]*float64)
	for _, id := range []string{
		metrics.MetricDriverRetention, metrics.MetricPayConsistency, metrics.MetricHomeTime,
		metrics.MetricMargin, metrics.MetricOnTimeDelivery, metrics.MetricTruckUtilization,
	} {
		m[id] = domain.Float(score)
	}
	return domain.WeeklyRecord{
		Dispatcher:   dispatcher,
		Date:         date,
		ContractType: domain.ContractOwnerOperator,
		DriverCount:  drivers,
		Metrics:      m,
	}
}

func TestHandleScoresWithCompliance(t *testing.T) {
	fx, cleanup := newFixture(t, []domain.WeeklyRecord{
		evenRecord("Alice", "2026-08-24", 3, 70),
		evenRecord("Bob", "2026-08-24", 3, 70),
	}, map[string]int{"Alice": 3, "Bob": 3})
	defer cleanup()

	body := map[string]interface{}{
		"filter":     "all",
		"compliance": map[string]float64{"Alice": 0, "Bob": 100},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/delegation/scores", bytes.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code)

	var scores []delegation.DispatcherScore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scores))
	require.Len(t, scores, 2)

	// Identical performance and vacancy leave only a hairline rank gap in
	// Alice's favor; Bob's perfect compliance input outweighs it.
	assert.Equal(t, "Bob", scores[0].Dispatcher)
	assert.Equal(t, "Alice", scores[1].Dispatcher)
	assert.Greater(t, scores[0].Score, scores[1].Score)
	require.NotNil(t, scores[0].Compliance)
	assert.Equal(t, 100.0, *scores[0].Compliance)
}

func TestHandleScoresWithCompliance_BadBody(t *testing.T) {
	fx, cleanup := newFixture(t, nil, nil)
	defer cleanup()

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/delegation/scores", bytes.NewReader([]byte("{not json"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEditGroupRules(t *testing.T) {
	fx, cleanup := newFixture(t, nil, nil)
	defer cleanup()

	group, err := fx.service.Groups().Create("west coast", delegation.DefaultRules())
	require.NoError(t, err)

	edits := `[{"op":"cap","index":0,"value":7},{"op":"boundary","index":0,"value":0.4}]`
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/capacity/groups/%d/rules", group.ID), bytes.NewReader([]byte(edits))))
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := fx.service.Groups().Get(group.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Rules, 2)
	assert.Equal(t, 7.0, stored.Rules[0].Cap)
	assert.Equal(t, 0.4, stored.Rules[0].Max)
	assert.Equal(t, 0.4, stored.Rules[1].Min)
}

func TestHandleEditGroupRules_MissingGroup(t *testing.T) {
	fx, cleanup := newFixture(t, nil, nil)
	defer cleanup()

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/capacity/groups/42/rules", bytes.NewReader([]byte(`[]`))))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleEditProfileRules_StartsFromDefaults(t *testing.T) {
	fx, cleanup := newFixture(t, nil, nil)
	defer cleanup()

	// No stored profile for Carol: edits apply on top of the default bands
	// and the result persists as her own rule set.
	edits := `[{"op":"split","index":1,"value":0.75}]`
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/capacity/profiles/Carol/rules", bytes.NewReader([]byte(edits))))
	require.Equal(t, http.StatusOK, rec.Code)

	profile, err := fx.service.Profiles().Get("Carol")
	require.NoError(t, err)
	require.NotNil(t, profile)
	require.Len(t, profile.Rules, 3)
	assert.Equal(t, 0.75, profile.Rules[1].Max)
	assert.True(t, profile.Allowed.OO)
	assert.True(t, profile.Allowed.LOO)
}

func TestHandleEditProfileRules_UnknownOp(t *testing.T) {
	fx, cleanup := newFixture(t, nil, nil)
	defer cleanup()

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/capacity/profiles/Carol/rules", bytes.NewReader([]byte(`[{"op":"widen","index":0}]`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
