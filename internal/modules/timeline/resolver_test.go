package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWeekKey(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"monday stays", "2026-08-24", "2026-08-24"},
		{"wednesday resolves to monday", "2026-08-26", "2026-08-24"},
		{"sunday resolves to preceding monday", "2026-08-30", "2026-08-24"},
		{"us layout", "08/26/2026", "2026-08-24"},
		{"short us layout", "8/26/2026", "2026-08-24"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := NormalizeWeekKey(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, key)
		})
	}
}

func TestNormalizeWeekKey_Malformed(t *testing.T) {
	for _, input := range []string{"", "not-a-date", "2026-13-40", "99/99/9999"} {
		_, err := NormalizeWeekKey(input)
		assert.Error(t, err, "input %q should fail", input)
	}
}

func TestWorkWeekEnd(t *testing.T) {
	payDate := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC) // Friday
	end := WorkWeekEnd(payDate)
	assert.Equal(t, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), end)
}

func TestWindow(t *testing.T) {
	known := []string{"2026-08-24", "2026-08-17", "2026-08-10", "2026-08-03"}

	t.Run("full window", func(t *testing.T) {
		assert.Equal(t, []string{"2026-08-24", "2026-08-17", "2026-08-10", "2026-08-03"},
			Window("2026-08-24", 4, known))
	})

	t.Run("truncated when history runs out", func(t *testing.T) {
		assert.Equal(t, []string{"2026-08-10", "2026-08-03"},
			Window("2026-08-10", 4, known))
	})

	t.Run("window from mid history", func(t *testing.T) {
		assert.Equal(t, []string{"2026-08-17", "2026-08-10"},
			Window("2026-08-17", 2, known))
	})

	t.Run("unknown reference", func(t *testing.T) {
		assert.Empty(t, Window("2026-09-01", 4, known))
	})

	t.Run("non-positive size", func(t *testing.T) {
		assert.Empty(t, Window("2026-08-24", 0, known))
	})
}

func TestWeeksAgo(t *testing.T) {
	known := []string{"2026-08-24", "2026-08-17", "2026-08-10"}

	assert.Equal(t, "2026-08-24", WeeksAgo("2026-08-24", 0, known))
	assert.Equal(t, "2026-08-10", WeeksAgo("2026-08-24", 2, known))
	assert.Equal(t, "", WeeksAgo("2026-08-24", 3, known), "out of range")
	assert.Equal(t, "", WeeksAgo("2026-01-01", 1, known), "unknown reference")
	assert.Equal(t, "", WeeksAgo("2026-08-24", -1, known), "negative offset")
}

func TestSortedWeeksDescending(t *testing.T) {
	weeks := map[string]struct{}{
		"2026-08-10": {},
		"2026-08-24": {},
		"2026-08-17": {},
	}
	assert.Equal(t, []string{"2026-08-24", "2026-08-17", "2026-08-10"},
		SortedWeeksDescending(weeks))
}
