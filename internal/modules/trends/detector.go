// Package trends flags significant percentage change in an entity's metric
// time series by comparing a recent sub-window against an older one.
package trends

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/metrics"
	"github.com/truckboard/truckboard/internal/modules/timeline"
)

// Direction describes which way a metric moved.
type Direction string

const (
	Improving Direction = "improving"
	Degrading Direction = "degrading"
)

// Config controls trend detection.
type Config struct {
	RecentWeeks         int     // size of the recent sub-window
	OlderWeeks          int     // size of the older sub-window
	MinSamplesRecent    int     // required non-null weeks in the recent sub-window
	MinSamplesOlder     int     // required non-null weeks in the older sub-window
	SignificancePercent float64 // minimum abs(change) to report
}

// DefaultConfig returns the standard dashboard thresholds.
func DefaultConfig() Config {
	return Config{
		RecentWeeks:         2,
		OlderWeeks:          4,
		MinSamplesRecent:    2,
		MinSamplesOlder:     2,
		SignificancePercent: 10,
	}
}

// Result is one detected trend for one entity and metric.
type Result struct {
	Entity        string    `json:"entity"`
	MetricID      string    `json:"metric_id"`
	RecentAvg     float64   `json:"recent_avg"`
	OlderAvg      float64   `json:"older_avg"`
	ChangePercent float64   `json:"change_percent"`
	Direction     Direction `json:"direction"`
}

// Detector compares recent vs. older sub-windows of consolidated rollups.
type Detector struct {
	catalog *metrics.Catalog
	log     zerolog.Logger
}

// NewDetector creates a trend detector.
func NewDetector(catalog *metrics.Catalog, log zerolog.Logger) *Detector {
	return &Detector{
		catalog: catalog,
		log:     log.With().Str("component", "trends").Logger(),
	}
}

// Detect analyzes the given metric ids for one entity. rollups is the full
// weekly rollup set; knownDesc is every known week, most recent first.
//
// The most recent RecentWeeks+OlderWeeks window splits into two contiguous
// sub-windows. A metric is skipped (not reported as zero change) when
// either sub-window has fewer than its minimum non-null observations or
// the older average is zero. When metricIDs is empty, all catalog metrics
// are analyzed and only the single largest absolute change is surfaced.
func (d *Detector) Detect(rollups []domain.EntityRollup, entity string, metricIDs []string, knownDesc []string, cfg Config) []Result {
	allMetrics := len(metricIDs) == 0
	if allMetrics {
		metricIDs = d.catalog.All()
	}

	if len(knownDesc) == 0 || cfg.RecentWeeks <= 0 || cfg.OlderWeeks <= 0 {
		return nil
	}

	window := timeline.Window(knownDesc[0], cfg.RecentWeeks+cfg.OlderWeeks, knownDesc)
	if len(window) <= cfg.RecentWeeks {
		return nil
	}
	recentWindow := window[:cfg.RecentWeeks]
	olderWindow := window[cfg.RecentWeeks:]

	byWeek := make(map[string]*domain.EntityRollup)
	for i := range rollups {
		if rollups[i].Entity == entity {
			byWeek[rollups[i].Date] = &rollups[i]
		}
	}

	var results []Result
	for _, metricID := range metricIDs {
		recentAvg, recentSamples := weightedAvg(byWeek, recentWindow, metricID)
		olderAvg, olderSamples := weightedAvg(byWeek, olderWindow, metricID)

		if recentSamples < cfg.MinSamplesRecent || olderSamples < cfg.MinSamplesOlder {
			continue
		}
		if olderAvg == 0 {
			// Percentage change from zero is undefined.
			continue
		}

		change := (recentAvg - olderAvg) / olderAvg * 100
		if math.Abs(change) < cfg.SignificancePercent {
			continue
		}

		results = append(results, Result{
			Entity:        entity,
			MetricID:      metricID,
			RecentAvg:     recentAvg,
			OlderAvg:      olderAvg,
			ChangePercent: change,
			Direction:     d.direction(metricID, change),
		})
	}

	// All-metrics mode surfaces only the single largest mover; callers who
	// want every qualifying metric name their metrics explicitly.
	if allMetrics && len(results) > 1 {
		best := results[0]
		for _, r := range results[1:] {
			if math.Abs(r.ChangePercent) > math.Abs(best.ChangePercent) {
				best = r
			}
		}
		return []Result{best}
	}

	return results
}

// direction maps the sign of a change onto the metric's polarity.
func (d *Detector) direction(metricID string, change float64) Direction {
	up := change > 0
	if d.catalog.LowerIsWorse(metricID) {
		if up {
			return Improving
		}
		return Degrading
	}
	// Higher-is-worse metrics invert
	if up {
		return Degrading
	}
	return Improving
}

// weightedAvg computes the driver-count-weighted average of a metric over a
// set of weeks, returning the count of non-null weekly observations.
func weightedAvg(byWeek map[string]*domain.EntityRollup, weeks []string, metricID string) (float64, int) {
	var sum, weightSum float64
	samples := 0

	for _, week := range weeks {
		r, ok := byWeek[week]
		if !ok {
			continue
		}
		v := r.Metric(metricID)
		if v == nil {
			continue
		}

		w := float64(r.DriverCount)
		if w <= 0 {
			w = 1
		}
		sum += *v * w
		weightSum += w
		samples++
	}

	if samples == 0 || weightSum == 0 {
		return 0, samples
	}
	return sum / weightSum, samples
}
