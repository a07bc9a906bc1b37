// Package rolling computes N-week weighted rolling averages per entity
// from the aggregator's weekly rollups.
package rolling

import (
	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/aggregation"
	"github.com/truckboard/truckboard/internal/modules/metrics"
	"github.com/truckboard/truckboard/internal/modules/timeline"
)

// DefaultWindowWeeks is the standard rolling window size.
const DefaultWindowWeeks = 4

// Engine computes rolling averages over weekly rollups. The same
// consolidation rules as the weekly aggregator apply: each included week is
// weighted by its driver count, and ratio metrics are recomputed from the
// window's summed part totals.
type Engine struct {
	catalog *metrics.Catalog
	log     zerolog.Logger
}

// NewEngine creates a rolling average engine.
func NewEngine(catalog *metrics.Catalog, log zerolog.Logger) *Engine {
	return &Engine{
		catalog: catalog,
		log:     log.With().Str("component", "rolling").Logger(),
	}
}

// Average computes the rolling aggregate for one entity ending at the
// reference week. rollups is the full weekly rollup set (any entity, any
// week); knownDesc is every known week key sorted most recent first.
//
// The window is truncated when insufficient history exists; the result
// reports WeeksIncluded so callers can judge confidence. Returns nil when
// zero weeks in the window have data for the entity.
func (e *Engine) Average(rollups []domain.EntityRollup, entity, referenceWeek string, windowWeeks int, knownDesc []string) *domain.RollingResult {
	if windowWeeks <= 0 {
		windowWeeks = DefaultWindowWeeks
	}

	window := timeline.Window(referenceWeek, windowWeeks, knownDesc)
	if len(window) == 0 {
		return nil
	}

	inWindow := make(map[string]struct{}, len(window))
	for _, w := range window {
		inWindow[w] = struct{}{}
	}

	var contribs []aggregation.Contribution
	var included []*domain.EntityRollup
	weeksIncluded := 0
	driverCount := 0

	for i := range rollups {
		r := &rollups[i]
		if r.Entity != entity {
			continue
		}
		if _, ok := inWindow[r.Date]; !ok {
			continue
		}

		contribs = append(contribs, aggregation.Contribution{
			Weight:  float64(r.DriverCount),
			Metrics: r.Metrics,
		})
		included = append(included, r)
		weeksIncluded++
		driverCount += r.DriverCount
	}

	if weeksIncluded == 0 {
		return nil
	}

	consolidated := aggregation.Consolidate(contribs, e.catalog)

	// Ratio metrics must come from the raw part totals summed across the
	// window. The weekly rollups' part metric values are averaged, and a
	// ratio of averages diverges from the summed ratio whenever a week's
	// sub-groups have uneven driver counts.
	for _, id := range e.catalog.All() {
		if !e.catalog.IsRatio(id) {
			continue
		}
		consolidated[id] = ratioFromTotals(included, e.catalog.Parts(id))
	}

	return &domain.RollingResult{
		Entity:        entity,
		ReferenceWeek: referenceWeek,
		WeeksIncluded: weeksIncluded,
		DriverCount:   driverCount,
		Metrics:       consolidated,
		Criteria:      aggregation.Criteria(consolidated, e.catalog),
	}
}

// ratioFromTotals recomputes one ratio metric from the raw part totals the
// included weeks carry. A week without totals for either part contributes
// nothing; zero total denominator reports zero, matching the weekly rule.
func ratioFromTotals(rollups []*domain.EntityRollup, parts *metrics.RatioParts) *float64 {
	var numSum, denSum float64
	seen := false

	for _, r := range rollups {
		num, numOK := r.PartTotals[parts.Numerator]
		den, denOK := r.PartTotals[parts.Denominator]
		if !numOK && !denOK {
			continue
		}
		numSum += num
		denSum += den
		seen = true
	}

	if !seen {
		return nil
	}
	if denSum == 0 {
		zero := 0.0
		return &zero
	}

	result := numSum / denSum
	return &result
}
