package regions

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckboard/truckboard/internal/domain"
)

func TestStateOf(t *testing.T) {
	tests := []struct {
		origin string
		want   string
	}{
		{"Joliet, IL", "IL"},
		{"DALLAS TX", "TX"},
		{"reno, nv", "NV"},
		{"  Chicago, IL  ", "IL"},
		{"IL", "IL"},
		{"Phoenix", ""},  // trailing letters are part of the name
		{"Route 66", ""}, // digits are not a state code
		{"", ""},
		{"X", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StateOf(tt.origin), "origin %q", tt.origin)
	}
}

func TestRegionOf(t *testing.T) {
	region, ok := RegionOf("Joliet, IL")
	require.True(t, ok)
	assert.Equal(t, RegionMidwest, region)

	_, ok = RegionOf("San Juan, PR")
	assert.False(t, ok, "unmapped codes are excluded")
}

func load(dispatcher, payDate, origin string) domain.LoadRecord {
	return domain.LoadRecord{
		Dispatcher:   dispatcher,
		Driver:       "Dale",
		ContractType: domain.ContractOwnerOperator,
		PayDate:      payDate,
		Origin:       origin,
	}
}

func refDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestMix_WindowsAndShares(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())

	// Reference pay date 2026-08-28 → work week ends 2026-08-25. Load days
	// are each load's own pay date minus 3.
	loads := []domain.LoadRecord{
		load("Alice", "2026-08-27", "Joliet, IL"),   // day 08-24, in both windows
		load("Alice", "2026-08-26", "Dallas, TX"),   // day 08-23, in both windows
		load("Alice", "2026-08-14", "Atlanta, GA"),  // day 08-11, 4wk only
		load("Alice", "2026-07-20", "Chicago, IL"),  // day 07-17, outside 4wk
		load("Alice", "2026-08-27", "Somewhereton"), // no state suffix: excluded
		load("Bob", "2026-08-27", "Joliet, IL"),     // different dispatcher
	}

	mix := calc.Mix(loads, "Alice", refDate(t, "2026-08-28"))
	require.Len(t, mix, 6, "every bucket present")

	assert.InDelta(t, 0.5, mix[RegionMidwest].Pct1wk, 1e-9)
	assert.InDelta(t, 0.5, mix[RegionSouthCentral].Pct1wk, 1e-9)
	assert.InDelta(t, 0.0, mix[RegionSoutheast].Pct1wk, 1e-9)

	assert.InDelta(t, 1.0/3, mix[RegionMidwest].Pct4wk, 1e-9)
	assert.InDelta(t, 1.0/3, mix[RegionSouthCentral].Pct4wk, 1e-9)
	assert.InDelta(t, 1.0/3, mix[RegionSoutheast].Pct4wk, 1e-9)
	assert.InDelta(t, 0.0, mix[RegionPacific].Pct4wk, 1e-9)
}

func TestMix_UnmappedExcludedFromDenominator(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())

	loads := []domain.LoadRecord{
		load("Alice", "2026-08-27", "Joliet, IL"),
		load("Alice", "2026-08-27", "San Juan, PR"), // unmapped state
	}

	mix := calc.Mix(loads, "Alice", refDate(t, "2026-08-28"))
	assert.InDelta(t, 1.0, mix[RegionMidwest].Pct1wk, 1e-9, "unmapped load does not dilute the share")
}

func TestMix_EmptyWindowIsZeroNotNull(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())

	mix := calc.Mix(nil, "Alice", refDate(t, "2026-08-28"))
	require.Len(t, mix, 6)
	for _, region := range AllRegions() {
		assert.Zero(t, mix[region].Pct1wk)
		assert.Zero(t, mix[region].Pct4wk)
	}
}

func TestMix_MalformedPayDateExcluded(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())

	loads := []domain.LoadRecord{
		load("Alice", "not-a-date", "Joliet, IL"),
		load("Alice", "2026-08-27", "Dallas, TX"),
	}

	mix := calc.Mix(loads, "Alice", refDate(t, "2026-08-28"))
	assert.InDelta(t, 1.0, mix[RegionSouthCentral].Pct1wk, 1e-9)
	assert.InDelta(t, 0.0, mix[RegionMidwest].Pct1wk, 1e-9)
}
