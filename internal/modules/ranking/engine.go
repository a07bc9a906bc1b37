// Package ranking computes per-week and rolling-window entity rankings.
package ranking

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/aggregation"
	"github.com/truckboard/truckboard/internal/modules/rolling"
	"github.com/truckboard/truckboard/internal/modules/timeline"
)

// Snapshot is the full ranking output for one (mode, filter) combination.
// It is computed from scratch on every refresh and replaced wholesale in
// the cache; nothing mutates a snapshot after construction.
type Snapshot struct {
	Mode    domain.Mode             `msgpack:"mode"`
	Filter  domain.DriverTypeFilter `msgpack:"filter"`
	Weeks   []string                `msgpack:"weeks"` // known weeks, most recent first
	Rollups []domain.EntityRollup   `msgpack:"rollups"`
	// History holds one RankedEntry per entity per known week, weeks in
	// descending order. Absent weeks carry nil criteria and nil ranks.
	History map[string][]domain.RankedEntry `msgpack:"history"`
}

// Entities returns every ranked entity in first-seen input order.
func (s *Snapshot) Entities() []string {
	seen := make(map[string]struct{}, len(s.History))
	var out []string
	for i := range s.Rollups {
		e := s.Rollups[i].Entity
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Latest returns the most recent week's entries, ranked order first.
func (s *Snapshot) Latest() []domain.RankedEntry {
	if len(s.Weeks) == 0 {
		return nil
	}
	week := s.Weeks[0]

	var entries []domain.RankedEntry
	for _, history := range s.History {
		for i := range history {
			if history[i].Date == week {
				entries = append(entries, history[i])
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := entries[i].OneWeekRank, entries[j].OneWeekRank
		switch {
		case ri == nil && rj == nil:
			return entries[i].Entity < entries[j].Entity
		case ri == nil:
			return false
		case rj == nil:
			return true
		default:
			return *ri < *rj
		}
	})
	return entries
}

// Engine ranks entities by composite criteria score.
type Engine struct {
	aggregator *aggregation.Aggregator
	rolling    *rolling.Engine
	log        zerolog.Logger
}

// NewEngine creates a ranking engine.
func NewEngine(aggregator *aggregation.Aggregator, rollingEngine *rolling.Engine, log zerolog.Logger) *Engine {
	return &Engine{
		aggregator: aggregator,
		rolling:    rollingEngine,
		log:        log.With().Str("component", "ranking").Logger(),
	}
}

// ComputeRanks builds the full ranking snapshot for a mode and filter.
//
// For every known week, entities with a non-nil criteria that week are
// ranked 1-based by descending criteria; ties keep stable input order with
// no secondary sort key. Entities absent a week get nil ranks for it.
// Four-week ranks are computed the same way against rolling-average
// criteria referenced at that week. Empty input yields an empty (non-nil)
// history map: no data is not a fault.
func (e *Engine) ComputeRanks(records []domain.WeeklyRecord, mode domain.Mode, filter domain.DriverTypeFilter) *Snapshot {
	rollups := e.aggregator.Aggregate(records, mode, filter)

	weekSet := make(map[string]struct{})
	for i := range rollups {
		weekSet[rollups[i].Date] = struct{}{}
	}
	weeksDesc := timeline.SortedWeeksDescending(weekSet)

	snapshot := &Snapshot{
		Mode:    mode,
		Filter:  filter,
		Weeks:   weeksDesc,
		Rollups: rollups,
		History: make(map[string][]domain.RankedEntry),
	}

	if len(rollups) == 0 {
		return snapshot
	}

	// entries[entity][week] built in place, then flattened to history.
	type weekEntry struct {
		oneWeekCriteria  *float64
		oneWeekRank      *int
		fourWeekCriteria *float64
		fourWeekRank     *int
	}
	entries := make(map[string]map[string]*weekEntry)

	entityOrder := snapshot.Entities()
	for _, entity := range entityOrder {
		entries[entity] = make(map[string]*weekEntry, len(weeksDesc))
		for _, week := range weeksDesc {
			entries[entity][week] = &weekEntry{}
		}
	}

	// One-week ranks: rollups are already ordered weeks-descending with
	// stable within-week input order, which is the tie-break order.
	for _, week := range weeksDesc {
		type candidate struct {
			entity   string
			criteria float64
		}
		var candidates []candidate

		for i := range rollups {
			r := &rollups[i]
			if r.Date != week || r.Criteria == nil {
				continue
			}
			candidates = append(candidates, candidate{entity: r.Entity, criteria: *r.Criteria})
			entries[r.Entity][week].oneWeekCriteria = r.Criteria
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].criteria > candidates[j].criteria
		})
		for i, c := range candidates {
			entries[c.entity][week].oneWeekRank = domain.Int(i + 1)
		}

		// Four-week ranks against rolling criteria referenced at this week.
		var rollingCandidates []candidate
		for _, entity := range entityOrder {
			result := e.rolling.Average(rollups, entity, week, rolling.DefaultWindowWeeks, weeksDesc)
			if result == nil || result.Criteria == nil {
				continue
			}
			rollingCandidates = append(rollingCandidates, candidate{entity: entity, criteria: *result.Criteria})
			entries[entity][week].fourWeekCriteria = result.Criteria
		}

		sort.SliceStable(rollingCandidates, func(i, j int) bool {
			return rollingCandidates[i].criteria > rollingCandidates[j].criteria
		})
		for i, c := range rollingCandidates {
			entries[c.entity][week].fourWeekRank = domain.Int(i + 1)
		}
	}

	for _, entity := range entityOrder {
		history := make([]domain.RankedEntry, 0, len(weeksDesc))
		for _, week := range weeksDesc {
			we := entries[entity][week]
			history = append(history, domain.RankedEntry{
				Entity:           entity,
				Date:             week,
				OneWeekCriteria:  we.oneWeekCriteria,
				OneWeekRank:      we.oneWeekRank,
				FourWeekCriteria: we.fourWeekCriteria,
				FourWeekRank:     we.fourWeekRank,
			})
		}
		snapshot.History[entity] = history
	}

	return snapshot
}

// CriteriaPercentile returns the entity's criteria position within the most
// recent week as a 0-1 percentile (1 = best), or nil when the entity has no
// criteria that week. Capacity rule resolution consumes this.
func (s *Snapshot) CriteriaPercentile(entity string) *float64 {
	latest := s.Latest()

	ranked := 0
	for i := range latest {
		if latest[i].OneWeekRank != nil {
			ranked++
		}
	}
	if ranked == 0 {
		return nil
	}

	for i := range latest {
		if latest[i].Entity != entity || latest[i].OneWeekRank == nil {
			continue
		}
		if ranked == 1 {
			return domain.Float(1)
		}
		p := 1.0 - float64(*latest[i].OneWeekRank-1)/float64(ranked-1)
		return &p
	}
	return nil
}
