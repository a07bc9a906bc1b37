// Package aggregation collapses raw weekly records into per-entity rollups.
//
// Every aggregation call site in the engine (weekly rollups, rolling
// averages, drop detection baselines) funnels through Consolidate so that
// weighting and ratio-metric rules cannot drift between them.
package aggregation

import (
	"github.com/truckboard/truckboard/internal/modules/metrics"
)

// Contribution is one weighted row entering a consolidation: a raw weekly
// record, or an already-consolidated week inside a rolling window.
type Contribution struct {
	Weight  float64 // driver count; <= 0 is treated as 1 for plain metrics
	Metrics map[string]*float64
}

// Consolidate collapses contributions into a single metric map.
//
// Plain metrics are driver-count-weighted means over non-nil observations;
// a contribution with weight <= 0 is weighted as 1 so it is not silently
// dropped. Ratio metrics are recomputed as summed-numerator over
// summed-denominator using the raw part totals, never an average of
// per-contribution ratios; zero-weight contributions are excluded from the
// part sums. A metric with zero non-nil observations reports nil, not zero.
func Consolidate(contribs []Contribution, catalog *metrics.Catalog) map[string]*float64 {
	out := make(map[string]*float64, len(catalog.All()))

	for _, id := range catalog.All() {
		if parts := catalog.Parts(id); parts != nil {
			out[id] = consolidateRatio(contribs, parts)
			continue
		}
		out[id] = consolidatePlain(contribs, id)
	}

	return out
}

// consolidatePlain computes the weighted mean of non-nil observations.
func consolidatePlain(contribs []Contribution, id string) *float64 {
	var sum, weightSum float64
	seen := false

	for _, c := range contribs {
		v := c.Metrics[id]
		if v == nil {
			continue
		}

		w := c.Weight
		if w <= 0 {
			w = 1
		}

		sum += *v * w
		weightSum += w
		seen = true
	}

	if !seen {
		return nil
	}
	if weightSum == 0 {
		zero := 0.0
		return &zero
	}

	result := sum / weightSum
	return &result
}

// consolidateRatio recomputes a ratio metric from summed part totals.
func consolidateRatio(contribs []Contribution, parts *metrics.RatioParts) *float64 {
	var numSum, denSum float64
	seen := false

	for _, c := range contribs {
		// Zero-weight contributions carry no trucks and are excluded from
		// the totals entirely.
		if c.Weight <= 0 {
			continue
		}

		num := c.Metrics[parts.Numerator]
		den := c.Metrics[parts.Denominator]
		if num == nil && den == nil {
			continue
		}

		if num != nil {
			numSum += *num
		}
		if den != nil {
			denSum += *den
		}
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

// RatioTotals sums the raw part values entering each ratio metric, keyed by
// part metric id. The exclusion rules match consolidateRatio exactly:
// zero-weight contributions are skipped, and a part key appears only when at
// least one contribution observed either side of the ratio. A nil part on an
// observed contribution adds zero.
func RatioTotals(contribs []Contribution, catalog *metrics.Catalog) map[string]float64 {
	totals := make(map[string]float64)

	for _, id := range catalog.All() {
		parts := catalog.Parts(id)
		if parts == nil {
			continue
		}

		for _, c := range contribs {
			if c.Weight <= 0 {
				continue
			}

			num := c.Metrics[parts.Numerator]
			den := c.Metrics[parts.Denominator]
			if num == nil && den == nil {
				continue
			}

			var n, d float64
			if num != nil {
				n = *num
			}
			if den != nil {
				d = *den
			}
			totals[parts.Numerator] += n
			totals[parts.Denominator] += d
		}
	}

	if len(totals) == 0 {
		return nil
	}
	return totals
}

// Criteria computes the composite 0-1 performance score from consolidated
// metric values. Each sub-score is the weighted mean of its non-nil
// components on the percent scale; the composite averages the sub-score
// percentages and scales to 0-1. Returns nil when no sub-score has data.
// Averaging the two final percentages (rather than all components at once)
// is intentional and must match across every call site.
func Criteria(consolidated map[string]*float64, catalog *metrics.Catalog) *float64 {
	var subScoreSum float64
	subScoresPresent := 0

	for _, ss := range catalog.SubScores() {
		var sum, weightSum float64
		for id, weight := range ss.Components {
			v := consolidated[id]
			if v == nil {
				continue
			}
			sum += *v * weight
			weightSum += weight
		}

		if weightSum == 0 {
			continue
		}

		subScoreSum += sum / weightSum
		subScoresPresent++
	}

	if subScoresPresent == 0 {
		return nil
	}

	result := subScoreSum / float64(subScoresPresent) / 100.0
	return &result
}
