// Package timeline resolves calendar-week keys and time windows.
//
// A week key is the ISO date of the Monday that starts the pay week,
// formatted YYYY-MM-DD. All engine components key weekly data on these
// strings, which sort lexicographically in chronological order.
package timeline

import (
	"fmt"
	"sort"
	"time"
)

// WeekKeyLayout is the canonical week key format.
const WeekKeyLayout = "2006-01-02"

// acceptedLayouts are the date formats the upstream feeds are known to emit.
var acceptedLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
}

// ParseDate parses a feed date string in any accepted layout.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date: %q", s)
}

// NormalizeWeekKey resolves an arbitrary feed date to its stable week key
// (the Monday of that calendar week). Records whose date cannot be resolved
// are excluded from aggregation entirely.
func NormalizeWeekKey(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return WeekKeyOf(t), nil
}

// WeekKeyOf returns the week key for a point in time.
func WeekKeyOf(t time.Time) string {
	// time.Weekday is Sunday=0; shift so Monday anchors the week.
	offset := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -offset)
	return monday.Format(WeekKeyLayout)
}

// WorkWeekEnd returns the end of the work week a pay date settles:
// pay date minus 3 days. Regional mix windows are anchored here.
func WorkWeekEnd(payDate time.Time) time.Time {
	return payDate.AddDate(0, 0, -3)
}

// SortedWeeksDescending returns the unique week keys in a set, most recent
// first.
func SortedWeeksDescending(weeks map[string]struct{}) []string {
	out := make([]string, 0, len(weeks))
	for w := range weeks {
		out = append(out, w)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// Window returns the contiguous slice of known weeks starting at the
// reference key, length size, truncated when insufficient history exists.
// knownDesc must be sorted most recent first. An unknown reference returns
// an empty window: there is no forward-fill and no synthetic weeks.
func Window(reference string, size int, knownDesc []string) []string {
	if size <= 0 {
		return nil
	}

	start := indexOf(reference, knownDesc)
	if start < 0 {
		return nil
	}

	end := start + size
	if end > len(knownDesc) {
		end = len(knownDesc)
	}

	window := make([]string, end-start)
	copy(window, knownDesc[start:end])
	return window
}

// WeeksAgo resolves the week key n positions before the reference in the
// known-week history. Returns "" when the position is out of range.
func WeeksAgo(reference string, n int, knownDesc []string) string {
	idx := indexOf(reference, knownDesc)
	if idx < 0 || idx+n >= len(knownDesc) || n < 0 {
		return ""
	}
	return knownDesc[idx+n]
}

func indexOf(week string, knownDesc []string) int {
	for i, w := range knownDesc {
		if w == week {
			return i
		}
	}
	return -1
}
