// Package metrics defines the static registry of performance metrics.
// The catalog is loaded once at startup and consumed by every aggregator:
// it decides which metrics are ratio-type (recomputed from summed totals)
// and which direction counts as "worse" for percentile comparisons.
package metrics

import "fmt"

// Unit describes how a metric value is displayed.
type Unit string

const (
	UnitPercent  Unit = "percent"
	UnitCurrency Unit = "currency"
	UnitCount    Unit = "count"
	UnitNone     Unit = "none"
)

// RatioParts names the two plain metrics a ratio metric is derived from.
// Ratio metrics are always computed as sum(numerator)/sum(denominator)
// across contributing records, never as an average of per-record ratios.
type RatioParts struct {
	Numerator   string
	Denominator string
}

// Definition describes one registered metric.
type Definition struct {
	ID           string
	Unit         Unit
	LowerIsWorse bool        // polarity for ranking and percentile classification
	Ratio        *RatioParts // non-nil for ratio-type metrics
}

// SubScore is one of the two criteria components. Each is a weighted mean
// of its component metrics; the composite criteria is the arithmetic mean
// of the two sub-score results, not a flat mean of all components.
type SubScore struct {
	ID         string
	Components map[string]float64 // metric id -> weight, weights sum to 1
}

// Well-known metric ids consumed across the engine.
const (
	MetricDriverRetention  = "driver_retention_pct"
	MetricHomeTime         = "home_time_pct"
	MetricPayConsistency   = "pay_consistency_pct"
	MetricMargin           = "margin_pct"
	MetricOnTimeDelivery   = "on_time_delivery_pct"
	MetricTruckUtilization = "truck_utilization_pct"
	MetricDeadhead         = "deadhead_pct"
	MetricGrossRevenue     = "gross_revenue"
	MetricLoadedMiles      = "loaded_miles"
	MetricRatePerMile      = "rate_per_mile"
	MetricSafetyEvents     = "safety_events"
)

// Sub-score ids.
const (
	SubScoreDriverHappiness  = "driver_happiness"
	SubScoreCompanyHappiness = "company_happiness"
)

// Catalog is the immutable metric registry.
type Catalog struct {
	defs      map[string]Definition
	order     []string
	subScores []SubScore
}

// NewCatalog builds the standard fleet metric catalog.
func NewCatalog() *Catalog {
	c := &Catalog{defs: make(map[string]Definition)}

	for _, def := range []Definition{
		{ID: MetricDriverRetention, Unit: UnitPercent, LowerIsWorse: true},
		{ID: MetricHomeTime, Unit: UnitPercent, LowerIsWorse: true},
		{ID: MetricPayConsistency, Unit: UnitPercent, LowerIsWorse: true},
		{ID: MetricMargin, Unit: UnitPercent, LowerIsWorse: true},
		{ID: MetricOnTimeDelivery, Unit: UnitPercent, LowerIsWorse: true},
		{ID: MetricTruckUtilization, Unit: UnitPercent, LowerIsWorse: true},
		{ID: MetricDeadhead, Unit: UnitPercent, LowerIsWorse: false},
		{ID: MetricGrossRevenue, Unit: UnitCurrency, LowerIsWorse: true},
		{ID: MetricLoadedMiles, Unit: UnitCount, LowerIsWorse: true},
		{
			ID:           MetricRatePerMile,
			Unit:         UnitCurrency,
			LowerIsWorse: true,
			Ratio:        &RatioParts{Numerator: MetricGrossRevenue, Denominator: MetricLoadedMiles},
		},
		{ID: MetricSafetyEvents, Unit: UnitCount, LowerIsWorse: false},
	} {
		c.defs[def.ID] = def
		c.order = append(c.order, def.ID)
	}

	// The two-level criteria structure is intentional: each sub-score is a
	// weighted mean of its components, and the final criteria averages the
	// two sub-score percentages.
	c.subScores = []SubScore{
		{
			ID: SubScoreDriverHappiness,
			Components: map[string]float64{
				MetricDriverRetention: 0.40,
				MetricPayConsistency:  0.35,
				MetricHomeTime:        0.25,
			},
		},
		{
			ID: SubScoreCompanyHappiness,
			Components: map[string]float64{
				MetricMargin:           0.35,
				MetricOnTimeDelivery:   0.35,
				MetricTruckUtilization: 0.30,
			},
		},
	}

	return c
}

// Get returns the definition for a metric id.
func (c *Catalog) Get(id string) (Definition, error) {
	def, ok := c.defs[id]
	if !ok {
		return Definition{}, fmt.Errorf("unknown metric: %s", id)
	}
	return def, nil
}

// Has reports whether the metric id is registered.
func (c *Catalog) Has(id string) bool {
	_, ok := c.defs[id]
	return ok
}

// All returns every metric id in registration order.
func (c *Catalog) All() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// IsRatio reports whether the metric is ratio-type.
func (c *Catalog) IsRatio(id string) bool {
	def, ok := c.defs[id]
	return ok && def.Ratio != nil
}

// Parts returns the numerator/denominator metric ids for a ratio metric,
// or nil for plain metrics.
func (c *Catalog) Parts(id string) *RatioParts {
	def, ok := c.defs[id]
	if !ok || def.Ratio == nil {
		return nil
	}
	parts := *def.Ratio
	return &parts
}

// LowerIsWorse returns the polarity for a metric. Unknown metrics default
// to true (lower values are worse), matching the majority of the catalog.
func (c *Catalog) LowerIsWorse(id string) bool {
	def, ok := c.defs[id]
	if !ok {
		return true
	}
	return def.LowerIsWorse
}

// SubScores returns the criteria sub-score definitions.
func (c *Catalog) SubScores() []SubScore {
	return c.subScores
}
