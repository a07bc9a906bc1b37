// Package regions computes the geographic distribution of load pickups.
package regions

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/domain"
	"github.com/truckboard/truckboard/internal/modules/timeline"
)

// Region is one of the six fixed US region buckets.
type Region string

const (
	RegionNortheast    Region = "northeast"
	RegionSoutheast    Region = "southeast"
	RegionMidwest      Region = "midwest"
	RegionSouthCentral Region = "south_central"
	RegionMountain     Region = "mountain"
	RegionPacific      Region = "pacific"
)

// AllRegions lists the buckets in display order.
func AllRegions() []Region {
	return []Region{
		RegionNortheast, RegionSoutheast, RegionMidwest,
		RegionSouthCentral, RegionMountain, RegionPacific,
	}
}

// stateRegions maps USPS state codes to region buckets. States outside the
// map (and non-state codes) are excluded from the mix entirely.
var stateRegions = map[string]Region{
	"CT": RegionNortheast, "DE": RegionNortheast, "MA": RegionNortheast,
	"MD": RegionNortheast, "ME": RegionNortheast, "NH": RegionNortheast,
	"NJ": RegionNortheast, "NY": RegionNortheast, "PA": RegionNortheast,
	"RI": RegionNortheast, "VT": RegionNortheast,

	"AL": RegionSoutheast, "FL": RegionSoutheast, "GA": RegionSoutheast,
	"KY": RegionSoutheast, "MS": RegionSoutheast, "NC": RegionSoutheast,
	"SC": RegionSoutheast, "TN": RegionSoutheast, "VA": RegionSoutheast,
	"WV": RegionSoutheast,

	"IA": RegionMidwest, "IL": RegionMidwest, "IN": RegionMidwest,
	"KS": RegionMidwest, "MI": RegionMidwest, "MN": RegionMidwest,
	"MO": RegionMidwest, "ND": RegionMidwest, "NE": RegionMidwest,
	"OH": RegionMidwest, "SD": RegionMidwest, "WI": RegionMidwest,

	"AR": RegionSouthCentral, "LA": RegionSouthCentral,
	"OK": RegionSouthCentral, "TX": RegionSouthCentral,

	"AZ": RegionMountain, "CO": RegionMountain, "ID": RegionMountain,
	"MT": RegionMountain, "NM": RegionMountain, "NV": RegionMountain,
	"UT": RegionMountain, "WY": RegionMountain,

	"AK": RegionPacific, "CA": RegionPacific, "HI": RegionPacific,
	"OR": RegionPacific, "WA": RegionPacific,
}

// StateOf extracts the trailing two-letter state code from an origin string
// like "Joliet, IL" or "DALLAS TX". Returns "" when no code is present.
func StateOf(origin string) string {
	trimmed := strings.TrimSpace(origin)
	if len(trimmed) < 2 {
		return ""
	}

	code := strings.ToUpper(trimmed[len(trimmed)-2:])
	if code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return ""
	}
	// A code is only a suffix when it stands alone: "Joliet, IL" yes,
	// "Phoenix" no (trailing "IX" is part of the city name).
	if len(trimmed) > 2 {
		sep := trimmed[len(trimmed)-3]
		if sep != ' ' && sep != ',' {
			return ""
		}
	}
	return code
}

// RegionOf maps an origin string to its region bucket. ok is false for
// unmapped or unparseable origins.
func RegionOf(origin string) (Region, bool) {
	state := StateOf(origin)
	if state == "" {
		return "", false
	}
	region, ok := stateRegions[state]
	return region, ok
}

// MixEntry is one region's share of an entity's pickups.
type MixEntry struct {
	Pct1wk float64 `json:"pct_1wk"`
	Pct4wk float64 `json:"pct_4wk"`
}

const (
	oneWeekDays  = 7
	fourWeekDays = 28
)

// Calculator computes regional pickup mixes from load records.
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates a regional mix calculator.
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{log: log.With().Str("component", "regions").Logger()}
}

// Mix returns the pickup distribution for a dispatcher over the 7- and
// 28-day windows ending at the reference date's work-week end. Every bucket
// is present in the result; empty windows report 0, never null. Loads whose
// origin does not resolve to a mapped state count toward neither numerator
// nor denominator.
func (c *Calculator) Mix(loads []domain.LoadRecord, dispatcher string, referenceDate time.Time) map[Region]MixEntry {
	end := timeline.WorkWeekEnd(referenceDate)
	start1wk := end.AddDate(0, 0, -oneWeekDays)
	start4wk := end.AddDate(0, 0, -fourWeekDays)

	counts1wk := make(map[Region]int)
	counts4wk := make(map[Region]int)
	total1wk, total4wk := 0, 0

	for i := range loads {
		load := &loads[i]
		if load.Dispatcher != dispatcher {
			continue
		}

		payDate, err := timeline.ParseDate(load.PayDate)
		if err != nil {
			c.log.Debug().Str("pay_date", load.PayDate).Msg("Load excluded: unparseable pay date")
			continue
		}
		day := timeline.WorkWeekEnd(payDate)
		if day.After(end) || !day.After(start4wk) {
			continue
		}

		region, ok := RegionOf(load.Origin)
		if !ok {
			continue
		}

		counts4wk[region]++
		total4wk++
		if day.After(start1wk) {
			counts1wk[region]++
			total1wk++
		}
	}

	mix := make(map[Region]MixEntry, 6)
	for _, region := range AllRegions() {
		entry := MixEntry{}
		if total1wk > 0 {
			entry.Pct1wk = float64(counts1wk[region]) / float64(total1wk)
		}
		if total4wk > 0 {
			entry.Pct4wk = float64(counts4wk[region]) / float64(total4wk)
		}
		mix[region] = entry
	}
	return mix
}
