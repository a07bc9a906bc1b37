package aggregation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/metrics"
)

func newTestAggregator() *Aggregator {
	return NewAggregator(metrics.NewCatalog(), zerolog.Nop())
}

func record(dispatcher, date string, drivers int, vals map[string]float64) domain.WeeklyRecord {
	m := make(map[string]*float64, len(vals))
	for k, v := range vals {
		m[k] = domain.Float(v)
	}
	return domain.WeeklyRecord{
		Dispatcher:   dispatcher,
		Date:         date,
		ContractType: domain.ContractOwnerOperator,
		DriverCount:  drivers,
		Metrics:      m,
	}
}

func TestAggregate_WeightedAverage(t *testing.T) {
	agg := newTestAggregator()

	// Two sub-group records for the same dispatcher-week: (90, w=3), (70, w=1)
	records := []domain.WeeklyRecord{
		record("Alice", "2026-08-24", 3, map[string]float64{metrics.MetricMargin: 90}),
		record("Alice", "2026-08-24", 1, map[string]float64{metrics.MetricMargin: 70}),
	}
	records[1].ContractType = domain.ContractLeasedOwnerOperator

	rollups := agg.Aggregate(records, domain.ModeDispatcher, domain.FilterAll)
	require.Len(t, rollups, 1)

	r := rollups[0]
	assert.Equal(t, "Alice", r.Entity)
	assert.Equal(t, 4, r.DriverCount)
	require.NotNil(t, r.Metric(metrics.MetricMargin))
	assert.InDelta(t, (90.0*3+70.0*1)/4.0, *r.Metric(metrics.MetricMargin), 1e-9)
}

func TestAggregate_RatioMetricUsesTotals(t *testing.T) {
	agg := newTestAggregator()

	// Per-record ratios are 2.0 and 0.1; averaging those would give 1.05.
	// The correct total-based ratio is 110/150 = 0.7333.
	records := []domain.WeeklyRecord{
		record("Alice", "2026-08-24", 2, map[string]float64{
			metrics.MetricGrossRevenue: 100,
			metrics.MetricLoadedMiles:  50,
		}),
		record("Alice", "2026-08-24", 2, map[string]float64{
			metrics.MetricGrossRevenue: 10,
			metrics.MetricLoadedMiles:  100,
		}),
	}

	rollups := agg.Aggregate(records, domain.ModeDispatcher, domain.FilterAll)
	require.Len(t, rollups, 1)

	rpm := rollups[0].Metric(metrics.MetricRatePerMile)
	require.NotNil(t, rpm)
	assert.InDelta(t, 110.0/150.0, *rpm, 1e-9)

	// Raw part sums are carried on the rollup so downstream windows can
	// recompute the ratio without re-reading the records.
	require.NotNil(t, rollups[0].PartTotals)
	assert.InDelta(t, 110.0, rollups[0].PartTotals[metrics.MetricGrossRevenue], 1e-9)
	assert.InDelta(t, 150.0, rollups[0].PartTotals[metrics.MetricLoadedMiles], 1e-9)
}

func TestAggregate_ZeroDriverCount(t *testing.T) {
	agg := newTestAggregator()

	// Weight 0 is treated as weight 1 for plain metrics so the record is
	// not silently dropped, but the record is excluded from ratio totals.
	records := []domain.WeeklyRecord{
		record("Alice", "2026-08-24", 0, map[string]float64{
			metrics.MetricMargin:       50,
			metrics.MetricGrossRevenue: 999,
			metrics.MetricLoadedMiles:  1,
		}),
		record("Alice", "2026-08-24", 1, map[string]float64{
			metrics.MetricMargin:       80,
			metrics.MetricGrossRevenue: 300,
			metrics.MetricLoadedMiles:  100,
		}),
	}
	records[1].ContractType = domain.ContractLeasedOwnerOperator

	rollups := agg.Aggregate(records, domain.ModeDispatcher, domain.FilterAll)
	require.Len(t, rollups, 1)

	margin := rollups[0].Metric(metrics.MetricMargin)
	require.NotNil(t, margin)
	assert.InDelta(t, (50.0+80.0)/2.0, *margin, 1e-9)

	rpm := rollups[0].Metric(metrics.MetricRatePerMile)
	require.NotNil(t, rpm)
	assert.InDelta(t, 3.0, *rpm, 1e-9, "zero-driver record must not pollute ratio totals")
}

func TestAggregate_NullMetricPropagation(t *testing.T) {
	agg := newTestAggregator()

	// No record carries margin: the rollup reports nil, not zero.
	records := []domain.WeeklyRecord{
		record("Alice", "2026-08-24", 2, map[string]float64{metrics.MetricHomeTime: 60}),
	}

	rollups := agg.Aggregate(records, domain.ModeDispatcher, domain.FilterAll)
	require.Len(t, rollups, 1)
	assert.Nil(t, rollups[0].Metric(metrics.MetricMargin))
}

func TestAggregate_MalformedDateExcluded(t *testing.T) {
	agg := newTestAggregator()

	records := []domain.WeeklyRecord{
		record("Alice", "garbage", 2, map[string]float64{metrics.MetricMargin: 50}),
		record("Bob", "2026-08-24", 2, map[string]float64{metrics.MetricMargin: 80}),
	}

	rollups := agg.Aggregate(records, domain.ModeDispatcher, domain.FilterAll)
	require.Len(t, rollups, 1)
	assert.Equal(t, "Bob", rollups[0].Entity)
}

func TestAggregate_TeamMode(t *testing.T) {
	agg := newTestAggregator()

	north := "North"
	records := []domain.WeeklyRecord{
		record("Alice", "2026-08-24", 2, map[string]float64{metrics.MetricMargin: 90}),
		record("Bob", "2026-08-24", 2, map[string]float64{metrics.MetricMargin: 70}),
		record("Carol", "2026-08-24", 1, map[string]float64{metrics.MetricMargin: 50}),
	}
	records[0].Team = &north
	records[1].Team = &north
	// Carol has no team and is excluded from team mode.

	rollups := agg.Aggregate(records, domain.ModeTeam, domain.FilterAll)
	require.Len(t, rollups, 1)

	r := rollups[0]
	assert.Equal(t, "North", r.Entity)
	assert.Equal(t, 4, r.DriverCount)
	assert.Equal(t, 2, r.DispatcherCount)
	require.NotNil(t, r.Metric(metrics.MetricMargin))
	assert.InDelta(t, 80.0, *r.Metric(metrics.MetricMargin), 1e-9)
}

func TestAggregate_DriverTypeFilter(t *testing.T) {
	agg := newTestAggregator()

	oo := record("Alice", "2026-08-24", 2, map[string]float64{metrics.MetricMargin: 90})
	loo := record("Alice", "2026-08-24", 2, map[string]float64{metrics.MetricMargin: 50})
	loo.ContractType = domain.ContractLeasedOwnerOperator

	rollups := agg.Aggregate([]domain.WeeklyRecord{oo, loo}, domain.ModeDispatcher, domain.FilterOwnerOperator)
	require.Len(t, rollups, 1)
	assert.InDelta(t, 90.0, *rollups[0].Metric(metrics.MetricMargin), 1e-9)
}

func TestCriteria_TwoLevelAveraging(t *testing.T) {
	catalog := metrics.NewCatalog()

	// Driver happiness components all 80, company happiness components all 60.
	// Criteria must average the two sub-scores: (80+60)/2/100 = 0.70.
	consolidated := map[string]*float64{
		metrics.MetricDriverRetention:  domain.Float(80),
		metrics.MetricPayConsistency:   domain.Float(80),
		metrics.MetricHomeTime:         domain.Float(80),
		metrics.MetricMargin:           domain.Float(60),
		metrics.MetricOnTimeDelivery:   domain.Float(60),
		metrics.MetricTruckUtilization: domain.Float(60),
	}

	criteria := Criteria(consolidated, catalog)
	require.NotNil(t, criteria)
	assert.InDelta(t, 0.70, *criteria, 1e-9)
}

func TestCriteria_PartialComponents(t *testing.T) {
	catalog := metrics.NewCatalog()

	// Only one driver-happiness component present: sub-score renormalizes
	// over present weights instead of treating missing components as zero.
	consolidated := map[string]*float64{
		metrics.MetricDriverRetention: domain.Float(90),
	}

	criteria := Criteria(consolidated, catalog)
	require.NotNil(t, criteria)
	assert.InDelta(t, 0.90, *criteria, 1e-9)
}

func TestCriteria_NoData(t *testing.T) {
	catalog := metrics.NewCatalog()
	assert.Nil(t, Criteria(map[string]*float64{}, catalog))
}

func TestConsolidate_Idempotent(t *testing.T) {
	catalog := metrics.NewCatalog()
	contribs := []Contribution{
		{Weight: 3, Metrics: map[string]*float64{metrics.MetricMargin: domain.Float(75)}},
		{Weight: 2, Metrics: map[string]*float64{metrics.MetricMargin: domain.Float(55)}},
	}

	first := Consolidate(contribs, catalog)
	second := Consolidate(contribs, catalog)

	require.NotNil(t, first[metrics.MetricMargin])
	require.NotNil(t, second[metrics.MetricMargin])
	assert.Equal(t, *first[metrics.MetricMargin], *second[metrics.MetricMargin])
}
