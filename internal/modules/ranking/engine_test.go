package ranking

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/aggregation"
	"github.com/truckboard/truckboard/internal/modules/metrics"
	"github.com/truckboard/truckboard/internal/modules/rolling"
)

func newTestEngine() *Engine {
	catalog := metrics.NewCatalog()
	agg := aggregation.NewAggregator(catalog, zerolog.Nop())
	roll := rolling.NewEngine(catalog, zerolog.Nop())
	return NewEngine(agg, roll, zerolog.Nop())
}

// criteriaRecord builds a record whose composite criteria resolves to
// score/100 by setting every sub-score component to the same percentage.
func criteriaRecord(dispatcher, date string, score float64) domain.WeeklyRecord {
	return domain.WeeklyRecord{
		Dispatcher:   dispatcher,
		Date:         date,
		ContractType: domain.ContractOwnerOperator,
		DriverCount:  2,
		Metrics: map[string]*float64{
			metrics.MetricDriverRetention:  domain.Float(score),
			metrics.MetricPayConsistency:   domain.Float(score),
			metrics.MetricHomeTime:         domain.Float(score),
			metrics.MetricMargin:           domain.Float(score),
			metrics.MetricOnTimeDelivery:   domain.Float(score),
			metrics.MetricTruckUtilization: domain.Float(score),
		},
	}
}

func TestComputeRanks_EndToEndScenario(t *testing.T) {
	engine := newTestEngine()

	// A: 1-week criteria 0.80, 4-week average 0.75.
	// B: 1-week criteria 0.60, 4-week average 0.65.
	records := []domain.WeeklyRecord{
		criteriaRecord("A", "2026-08-24", 80),
		criteriaRecord("A", "2026-08-17", 70),
		criteriaRecord("B", "2026-08-24", 60),
		criteriaRecord("B", "2026-08-17", 70),
	}

	snapshot := engine.ComputeRanks(records, domain.ModeDispatcher, domain.FilterAll)
	require.Len(t, snapshot.History, 2)

	a := snapshot.History["A"][0]
	b := snapshot.History["B"][0]

	require.NotNil(t, a.OneWeekRank)
	require.NotNil(t, a.FourWeekRank)
	assert.Equal(t, 1, *a.OneWeekRank)
	assert.Equal(t, 1, *a.FourWeekRank)
	assert.InDelta(t, 0.80, *a.OneWeekCriteria, 1e-9)
	assert.InDelta(t, 0.75, *a.FourWeekCriteria, 1e-9)

	require.NotNil(t, b.OneWeekRank)
	require.NotNil(t, b.FourWeekRank)
	assert.Equal(t, 2, *b.OneWeekRank)
	assert.Equal(t, 2, *b.FourWeekRank)
	assert.InDelta(t, 0.60, *b.OneWeekCriteria, 1e-9)
	assert.InDelta(t, 0.65, *b.FourWeekCriteria, 1e-9)
}

func TestComputeRanks_PermutationWithoutGaps(t *testing.T) {
	engine := newTestEngine()

	records := []domain.WeeklyRecord{
		criteriaRecord("A", "2026-08-24", 90),
		criteriaRecord("B", "2026-08-24", 50),
		criteriaRecord("C", "2026-08-24", 70),
		criteriaRecord("D", "2026-08-24", 85),
	}

	snapshot := engine.ComputeRanks(records, domain.ModeDispatcher, domain.FilterAll)

	seen := make(map[int]string)
	for entity, history := range snapshot.History {
		require.Len(t, history, 1)
		require.NotNil(t, history[0].OneWeekRank, "entity %s must be ranked", entity)
		rank := *history[0].OneWeekRank
		assert.NotContains(t, seen, rank, "duplicate rank %d", rank)
		seen[rank] = entity
	}

	// Ranks are a permutation of 1..N
	for rank := 1; rank <= 4; rank++ {
		assert.Contains(t, seen, rank)
	}
	assert.Equal(t, "A", seen[1])
	assert.Equal(t, "B", seen[4])
}

func TestComputeRanks_AbsentWeekGetsNilRank(t *testing.T) {
	engine := newTestEngine()

	records := []domain.WeeklyRecord{
		criteriaRecord("A", "2026-08-24", 80),
		criteriaRecord("A", "2026-08-17", 75),
		criteriaRecord("B", "2026-08-17", 70),
	}

	snapshot := engine.ComputeRanks(records, domain.ModeDispatcher, domain.FilterAll)

	// B has one entry per known week; the week it missed carries nil rank.
	history := snapshot.History["B"]
	require.Len(t, history, 2)
	assert.Equal(t, "2026-08-24", history[0].Date)
	assert.Nil(t, history[0].OneWeekRank)
	assert.Nil(t, history[0].OneWeekCriteria)
	require.NotNil(t, history[1].OneWeekRank)
	assert.Equal(t, 2, *history[1].OneWeekRank)
}

func TestComputeRanks_TiesKeepInputOrder(t *testing.T) {
	engine := newTestEngine()

	records := []domain.WeeklyRecord{
		criteriaRecord("First", "2026-08-24", 75),
		criteriaRecord("Second", "2026-08-24", 75),
	}

	snapshot := engine.ComputeRanks(records, domain.ModeDispatcher, domain.FilterAll)

	assert.Equal(t, 1, *snapshot.History["First"][0].OneWeekRank)
	assert.Equal(t, 2, *snapshot.History["Second"][0].OneWeekRank)
}

func TestComputeRanks_EmptyInput(t *testing.T) {
	engine := newTestEngine()

	snapshot := engine.ComputeRanks(nil, domain.ModeDispatcher, domain.FilterAll)
	require.NotNil(t, snapshot)
	assert.Empty(t, snapshot.History)
	assert.Empty(t, snapshot.Weeks)
}

func TestComputeRanks_Idempotent(t *testing.T) {
	engine := newTestEngine()

	records := []domain.WeeklyRecord{
		criteriaRecord("A", "2026-08-24", 80),
		criteriaRecord("B", "2026-08-24", 60),
		criteriaRecord("A", "2026-08-17", 70),
	}

	first := engine.ComputeRanks(records, domain.ModeDispatcher, domain.FilterAll)
	second := engine.ComputeRanks(records, domain.ModeDispatcher, domain.FilterAll)

	assert.Equal(t, first.Weeks, second.Weeks)
	assert.Equal(t, first.History, second.History)
}

func TestSnapshot_Latest(t *testing.T) {
	engine := newTestEngine()

	records := []domain.WeeklyRecord{
		criteriaRecord("B", "2026-08-24", 60),
		criteriaRecord("A", "2026-08-24", 80),
	}

	snapshot := engine.ComputeRanks(records, domain.ModeDispatcher, domain.FilterAll)
	latest := snapshot.Latest()
	require.Len(t, latest, 2)
	assert.Equal(t, "A", latest[0].Entity)
	assert.Equal(t, "B", latest[1].Entity)
}

func TestSnapshot_CriteriaPercentile(t *testing.T) {
	engine := newTestEngine()

	records := []domain.WeeklyRecord{
		criteriaRecord("A", "2026-08-24", 90),
		criteriaRecord("B", "2026-08-24", 70),
		criteriaRecord("C", "2026-08-24", 50),
	}

	snapshot := engine.ComputeRanks(records, domain.ModeDispatcher, domain.FilterAll)

	top := snapshot.CriteriaPercentile("A")
	require.NotNil(t, top)
	assert.InDelta(t, 1.0, *top, 1e-9)

	mid := snapshot.CriteriaPercentile("B")
	require.NotNil(t, mid)
	assert.InDelta(t, 0.5, *mid, 1e-9)

	bottom := snapshot.CriteriaPercentile("C")
	require.NotNil(t, bottom)
	assert.InDelta(t, 0.0, *bottom, 1e-9)

	assert.Nil(t, snapshot.CriteriaPercentile("Unknown"))
}

func TestCache_ReplaceAllIsAtomicSwap(t *testing.T) {
	cache := NewCache()
	engine := newTestEngine()

	snapA := engine.ComputeRanks([]domain.WeeklyRecord{criteriaRecord("A", "2026-08-24", 80)},
		domain.ModeDispatcher, domain.FilterAll)
	cache.ReplaceAll(map[CacheKey]*Snapshot{
		{Mode: domain.ModeDispatcher, Filter: domain.FilterAll}: snapA,
	})

	got, ok := cache.Get(domain.ModeDispatcher, domain.FilterAll)
	require.True(t, ok)
	assert.Equal(t, snapA, got)

	// A new generation replaces everything; combinations missing from the
	// new generation are gone.
	snapB := engine.ComputeRanks([]domain.WeeklyRecord{criteriaRecord("B", "2026-08-24", 60)},
		domain.ModeTeam, domain.FilterAll)
	cache.ReplaceAll(map[CacheKey]*Snapshot{
		{Mode: domain.ModeTeam, Filter: domain.FilterAll}: snapB,
	})

	_, ok = cache.Get(domain.ModeDispatcher, domain.FilterAll)
	assert.False(t, ok)
	got, ok = cache.Get(domain.ModeTeam, domain.FilterAll)
	require.True(t, ok)
	assert.Equal(t, snapB, got)
}

func TestCache_ReplaceAllWithEmptyGenerationClears(t *testing.T) {
	cache := NewCache()
	cache.ReplaceAll(map[CacheKey]*Snapshot{
		{Mode: domain.ModeDispatcher, Filter: domain.FilterAll}: {},
	})
	cache.ReplaceAll(nil)
	_, ok := cache.Get(domain.ModeDispatcher, domain.FilterAll)
	assert.False(t, ok)
	assert.Empty(t, cache.Keys())
}
