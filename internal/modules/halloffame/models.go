// Package halloffame stores all-time best records. Records only ever
// improve: an observation replaces the stored value only when it strictly
// exceeds it.
package halloffame

import (
	"fmt"
	"strings"

	"github.com/truckboard/truckboard/internal/domain"
)

// Category identifies what a record measures.
type Category string

const (
	// CategoryWeeklyGross - highest single-week gross revenue by one driver
	CategoryWeeklyGross Category = "weekly_gross"
	// CategoryRatePerMile - best single-load rate per mile
	CategoryRatePerMile Category = "rate_per_mile"
	// CategoryWeeklyLoads - most loads hauled by one driver in a week
	CategoryWeeklyLoads Category = "weekly_loads"
)

// Record is one all-time best observation.
type Record struct {
	Key        string  `json:"key"`
	Value      float64 `json:"value"`
	Driver     string  `json:"driver"`
	Dispatcher string  `json:"dispatcher"`
	Date       string  `json:"date"`
	Details    string  `json:"details,omitempty"`
}

// RecordKey composes the storage key: contract type and category, with an
// optional region qualifier for geographically scoped records.
func RecordKey(ct domain.ContractType, category Category, region string) string {
	parts := []string{string(ct), string(category)}
	if region != "" {
		parts = append(parts, region)
	}
	return strings.Join(parts, ":")
}

// Validate rejects records that could never be stored.
func (r Record) Validate() error {
	if r.Key == "" {
		return fmt.Errorf("record requires a key")
	}
	if r.Value <= 0 {
		return fmt.Errorf("record value must be positive, got %g", r.Value)
	}
	return nil
}
