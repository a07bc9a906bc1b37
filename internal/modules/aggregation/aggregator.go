package aggregation

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/metrics"
	"github.com/truckboard/truckboard/internal/modules/timeline"
)

// Aggregator collapses raw weekly records into per-entity, per-week rollups.
// Aggregation is a pure transformation over its inputs; the only side effect
// is logging excluded records.
type Aggregator struct {
	catalog *metrics.Catalog
	log     zerolog.Logger
}

// NewAggregator creates a new aggregator.
func NewAggregator(catalog *metrics.Catalog, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		catalog: catalog,
		log:     log.With().Str("component", "aggregator").Logger(),
	}
}

// Catalog returns the metric catalog the aggregator consolidates with.
func (a *Aggregator) Catalog() *metrics.Catalog {
	return a.catalog
}

// Aggregate groups records by entity and week and consolidates each group.
//
// In dispatcher mode the entity is the dispatcher name; in team mode it is
// the team name, and records without a team are excluded. Records whose date
// cannot resolve to a week key are excluded and logged, never fatal. Records
// not passing the driver-type filter are excluded. Output order is stable:
// weeks descending, entities in first-seen input order within each week.
func (a *Aggregator) Aggregate(records []domain.WeeklyRecord, mode domain.Mode, filter domain.DriverTypeFilter) []domain.EntityRollup {
	type groupKey struct {
		entity string
		week   string
	}

	groups := make(map[groupKey][]domain.WeeklyRecord)
	order := make([]groupKey, 0, len(records))
	weekSet := make(map[string]struct{})

	for _, rec := range records {
		if !filter.Matches(rec.ContractType) {
			continue
		}

		week, err := timeline.NormalizeWeekKey(rec.Date)
		if err != nil {
			a.log.Warn().
				Str("dispatcher", rec.Dispatcher).
				Str("date", rec.Date).
				Msg("Excluding record with unresolvable week key")
			continue
		}

		entity := rec.Dispatcher
		if mode == domain.ModeTeam {
			if rec.Team == nil || *rec.Team == "" {
				continue
			}
			entity = *rec.Team
		}

		key := groupKey{entity: entity, week: week}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
		weekSet[week] = struct{}{}
	}

	// Weeks descending, first-seen entity order within each week. The
	// within-week order is what ranking uses for stable tie-breaks.
	weeksDesc := timeline.SortedWeeksDescending(weekSet)
	weekPos := make(map[string]int, len(weeksDesc))
	for i, w := range weeksDesc {
		weekPos[w] = i
	}

	ordered := make([]groupKey, len(order))
	copy(ordered, order)
	sort.SliceStable(ordered, func(i, j int) bool {
		return weekPos[ordered[i].week] < weekPos[ordered[j].week]
	})

	rollups := make([]domain.EntityRollup, 0, len(ordered))
	for _, key := range ordered {
		rollups = append(rollups, a.consolidateGroup(key.entity, key.week, groups[key]))
	}

	return rollups
}

// consolidateGroup collapses the sub-group records for one entity-week.
func (a *Aggregator) consolidateGroup(entity, week string, recs []domain.WeeklyRecord) domain.EntityRollup {
	contribs := make([]Contribution, 0, len(recs))
	driverCount := 0
	dispatchers := make(map[string]struct{})

	for _, rec := range recs {
		contribs = append(contribs, Contribution{
			Weight:  float64(rec.DriverCount),
			Metrics: rec.Metrics,
		})
		driverCount += rec.DriverCount
		dispatchers[rec.Dispatcher] = struct{}{}
	}

	consolidated := Consolidate(contribs, a.catalog)

	return domain.EntityRollup{
		Entity:          entity,
		Date:            week,
		DriverCount:     driverCount,
		DispatcherCount: len(dispatchers),
		Metrics:         consolidated,
		Criteria:        Criteria(consolidated, a.catalog),
		PartTotals:      RatioTotals(contribs, a.catalog),
	}
}
