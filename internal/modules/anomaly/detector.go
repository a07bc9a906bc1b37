// Package anomaly classifies entities as chronic low performers or as having
// dropped against their own historical baseline.
package anomaly

import (
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/metrics"
	"github.com/truckboard/truckboard/internal/modules/timeline"
)

// ChronicConfig controls chronic-low-performer classification.
type ChronicConfig struct {
	MetricID       string
	LookbackWeeks  int     // 0 = all known weeks
	WorstPercent   float64 // e.g. 25 flags the worst quartile each week
	MinBadFraction float64 // minimum fraction of data weeks spent in the worst bucket
	MinDataWeeks   int     // entities with fewer observed weeks are not classified
}

// DefaultChronicConfig returns the standard dashboard thresholds.
func DefaultChronicConfig(metricID string) ChronicConfig {
	return ChronicConfig{
		MetricID:       metricID,
		LookbackWeeks:  12,
		WorstPercent:   25,
		MinBadFraction: 0.5,
		MinDataWeeks:   3,
	}
}

// ChronicLow is one flagged chronic low performer.
type ChronicLow struct {
	Entity        string  `json:"entity"`
	MetricID      string  `json:"metric_id"`
	WeeksWithData int     `json:"weeks_with_data"`
	BadWeeks      int     `json:"bad_weeks"`
	BadFraction   float64 `json:"bad_fraction"`
}

// DropConfig controls performance-drop detection.
type DropConfig struct {
	MetricID         string
	LookbackWeeks    int     // historical weeks to baseline against; 0 = all-time
	ThresholdPercent float64 // minimum worse-direction deviation to flag
}

// DefaultDropThresholdPercent is the stock worse-direction deviation that
// flags a drop.
const DefaultDropThresholdPercent = 20

// DefaultDropConfig returns the standard dashboard thresholds.
func DefaultDropConfig(metricID string) DropConfig {
	return DropConfig{
		MetricID:         metricID,
		LookbackWeeks:    0,
		ThresholdPercent: DefaultDropThresholdPercent,
	}
}

// Drop is one flagged performance drop.
type Drop struct {
	Entity        string  `json:"entity"`
	MetricID      string  `json:"metric_id"`
	Current       float64 `json:"current"`
	BaselineMean  float64 `json:"baseline_mean"`
	ChangePercent float64 `json:"change_percent"` // worse-direction deviation, positive
}

// Detector runs both anomaly sub-algorithms over consolidated rollups.
// Inputs must come from the aggregator so that every historical week is the
// weight-combined per-week value, never a raw sub-group row.
type Detector struct {
	catalog *metrics.Catalog
	log     zerolog.Logger
}

// NewDetector creates an anomaly detector.
func NewDetector(catalog *metrics.Catalog, log zerolog.Logger) *Detector {
	return &Detector{
		catalog: catalog,
		log:     log.With().Str("component", "anomaly").Logger(),
	}
}

// ChronicLows flags entities whose weekly value falls in the worst
// WorstPercent of all entities for at least MinBadFraction of their data
// weeks. The percentile threshold is computed fresh per week across the
// entities that have data that week, respecting the metric's polarity.
func (d *Detector) ChronicLows(rollups []domain.EntityRollup, knownDesc []string, cfg ChronicConfig) []ChronicLow {
	if cfg.WorstPercent <= 0 || cfg.WorstPercent >= 100 {
		return nil
	}

	weeks := knownDesc
	if cfg.LookbackWeeks > 0 && len(knownDesc) > 0 {
		weeks = timeline.Window(knownDesc[0], cfg.LookbackWeeks, knownDesc)
	}

	lowerIsWorse := d.catalog.LowerIsWorse(cfg.MetricID)

	type tally struct {
		dataWeeks int
		badWeeks  int
	}
	tallies := make(map[string]*tally)
	var order []string

	for _, week := range weeks {
		type obs struct {
			entity string
			value  float64
		}
		var observations []obs

		for i := range rollups {
			r := &rollups[i]
			if r.Date != week {
				continue
			}
			v := r.Metric(cfg.MetricID)
			if v == nil {
				continue
			}
			observations = append(observations, obs{entity: r.Entity, value: *v})
		}

		if len(observations) == 0 {
			continue
		}

		values := make([]float64, len(observations))
		for i, o := range observations {
			values[i] = o.value
		}
		sort.Float64s(values)

		// The weekly cutoff for the "worst X%" bucket. With lower-is-worse
		// polarity that is the low quantile; inverted metrics use the high
		// one.
		var cutoff float64
		if lowerIsWorse {
			cutoff = stat.Quantile(cfg.WorstPercent/100, stat.Empirical, values, nil)
		} else {
			cutoff = stat.Quantile(1-cfg.WorstPercent/100, stat.Empirical, values, nil)
		}

		for _, o := range observations {
			t, ok := tallies[o.entity]
			if !ok {
				t = &tally{}
				tallies[o.entity] = t
				order = append(order, o.entity)
			}
			t.dataWeeks++

			// Inclusive below the low cutoff, strict above the high one:
			// the empirical quantile itself sits inside the lower mass.
			bad := (lowerIsWorse && o.value <= cutoff) || (!lowerIsWorse && o.value > cutoff)
			if bad {
				t.badWeeks++
			}
		}
	}

	var results []ChronicLow
	for _, entity := range order {
		t := tallies[entity]
		if t.dataWeeks < cfg.MinDataWeeks || t.dataWeeks == 0 {
			continue
		}

		fraction := float64(t.badWeeks) / float64(t.dataWeeks)
		if fraction < cfg.MinBadFraction {
			continue
		}

		results = append(results, ChronicLow{
			Entity:        entity,
			MetricID:      cfg.MetricID,
			WeeksWithData: t.dataWeeks,
			BadWeeks:      t.badWeeks,
			BadFraction:   fraction,
		})
	}

	return results
}

// Drops flags entities whose current-week value deviates in the worse
// direction from the mean of their own historical weekly values by at least
// ThresholdPercent. The current week is knownDesc[0]; the baseline excludes
// it. A zero baseline is skipped (undefined percentage).
func (d *Detector) Drops(rollups []domain.EntityRollup, knownDesc []string, cfg DropConfig) []Drop {
	if len(knownDesc) == 0 {
		return nil
	}
	currentWeek := knownDesc[0]

	historyWeeks := knownDesc[1:]
	if cfg.LookbackWeeks > 0 && len(historyWeeks) > cfg.LookbackWeeks {
		historyWeeks = historyWeeks[:cfg.LookbackWeeks]
	}
	inHistory := make(map[string]struct{}, len(historyWeeks))
	for _, w := range historyWeeks {
		inHistory[w] = struct{}{}
	}

	lowerIsWorse := d.catalog.LowerIsWorse(cfg.MetricID)

	type series struct {
		current    *float64
		historySum float64
		historyN   int
	}
	perEntity := make(map[string]*series)
	var order []string

	for i := range rollups {
		r := &rollups[i]
		v := r.Metric(cfg.MetricID)
		if v == nil {
			continue
		}

		s, ok := perEntity[r.Entity]
		if !ok {
			s = &series{}
			perEntity[r.Entity] = s
			order = append(order, r.Entity)
		}

		if r.Date == currentWeek {
			s.current = v
			continue
		}
		if _, ok := inHistory[r.Date]; ok {
			s.historySum += *v
			s.historyN++
		}
	}

	var results []Drop
	for _, entity := range order {
		s := perEntity[entity]
		if s.current == nil || s.historyN == 0 {
			continue
		}

		baseline := s.historySum / float64(s.historyN)
		if baseline == 0 {
			continue
		}

		// Deviation in the worse direction, reported positive.
		var change float64
		if lowerIsWorse {
			change = (baseline - *s.current) / baseline * 100
		} else {
			change = (*s.current - baseline) / baseline * 100
		}

		if change < cfg.ThresholdPercent {
			continue
		}

		results = append(results, Drop{
			Entity:        entity,
			MetricID:      cfg.MetricID,
			Current:       *s.current,
			BaselineMean:  baseline,
			ChangePercent: change,
		})
	}

	return results
}
