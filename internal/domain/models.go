// Package domain contains the core data model shared by the analytics engine.
// Domain types are pure: no database, transport, or logging dependencies.
package domain

// Mode selects the entity grouping used by ranking and aggregation.
type Mode string

const (
	// ModeDispatcher ranks individual dispatchers
	ModeDispatcher Mode = "dispatcher"
	// ModeTeam ranks dispatch teams
	ModeTeam Mode = "team"
)

// Valid reports whether the mode is a recognized grouping.
func (m Mode) Valid() bool {
	return m == ModeDispatcher || m == ModeTeam
}

// ContractType identifies the driver contract a record belongs to.
type ContractType string

const (
	// ContractOwnerOperator - owner-operator drivers
	ContractOwnerOperator ContractType = "oo"
	// ContractLeasedOwnerOperator - leased owner-operator drivers
	ContractLeasedOwnerOperator ContractType = "loo"
)

// DriverTypeFilter restricts which records participate in a computation.
type DriverTypeFilter string

const (
	// FilterAll includes every contract type
	FilterAll DriverTypeFilter = "all"
	// FilterOwnerOperator includes only owner-operator records
	FilterOwnerOperator DriverTypeFilter = "oo"
	// FilterLeasedOwnerOperator includes only leased owner-operator records
	FilterLeasedOwnerOperator DriverTypeFilter = "loo"
)

// Valid reports whether the filter is a recognized value.
func (f DriverTypeFilter) Valid() bool {
	return f == FilterAll || f == FilterOwnerOperator || f == FilterLeasedOwnerOperator
}

// Matches reports whether a record with the given contract type passes the filter.
func (f DriverTypeFilter) Matches(ct ContractType) bool {
	switch f {
	case FilterAll:
		return true
	case FilterOwnerOperator:
		return ct == ContractOwnerOperator
	case FilterLeasedOwnerOperator:
		return ct == ContractLeasedOwnerOperator
	default:
		return false
	}
}

// WeeklyRecord is one raw row of performance data for a dispatcher on a
// calendar week. Two records with the same dispatcher and week are sub-groups
// (one per contract type) and are weight-combined during aggregation, never
// overwritten.
type WeeklyRecord struct {
	Dispatcher   string              `json:"dispatcher"`
	Team         *string             `json:"team,omitempty"`
	Date         string              `json:"date"` // normalized to a week key before aggregation
	ContractType ContractType        `json:"contract_type"`
	DriverCount  int                 `json:"driver_count"`
	Metrics      map[string]*float64 `json:"metrics"`
}

// Metric returns the value for a metric id, nil when absent or null.
func (r *WeeklyRecord) Metric(id string) *float64 {
	if r.Metrics == nil {
		return nil
	}
	return r.Metrics[id]
}

// LoadRecord is one hauled load, used by the regional mix calculator and
// hall-of-fame extraction. Origin carries a trailing two-letter state code
// (e.g. "Joliet, IL").
type LoadRecord struct {
	Dispatcher   string       `json:"dispatcher"`
	Driver       string       `json:"driver"`
	ContractType ContractType `json:"contract_type"`
	PayDate      string       `json:"pay_date"`
	Origin       string       `json:"origin"`
	Gross        float64      `json:"gross"`
	Miles        float64      `json:"miles"`
}

// EntityRollup is the consolidated per-entity, per-week aggregate. Metric
// values are nil when no contributing record carried a non-null observation.
type EntityRollup struct {
	Entity          string              `json:"entity"`
	Date            string              `json:"date"`
	DriverCount     int                 `json:"driver_count"`
	DispatcherCount int                 `json:"dispatcher_count"` // >1 only in team mode
	Metrics         map[string]*float64 `json:"metrics"`
	Criteria        *float64            `json:"criteria,omitempty"` // composite 0-1 score

	// PartTotals holds the raw summed numerator/denominator totals behind
	// each ratio metric, keyed by part metric id. Rolling windows recompute
	// ratios from these sums; the averaged part values in Metrics would
	// understate weeks with uneven sub-group driver counts.
	PartTotals map[string]float64 `json:"part_totals,omitempty"`
}

// Metric returns the rollup value for a metric id, nil when absent.
func (r *EntityRollup) Metric(id string) *float64 {
	if r.Metrics == nil {
		return nil
	}
	return r.Metrics[id]
}

// RollingResult is an N-week weighted rolling aggregate for one entity.
// WeeksIncluded counts the weeks that actually contributed; callers treat
// results built on fewer weeks than requested as lower-confidence.
type RollingResult struct {
	Entity        string              `json:"entity"`
	ReferenceWeek string              `json:"reference_week"`
	WeeksIncluded int                 `json:"weeks_included"`
	DriverCount   int                 `json:"driver_count"`
	Metrics       map[string]*float64 `json:"metrics"`
	Criteria      *float64            `json:"criteria,omitempty"`
}

// RankedEntry is one entity's ranking for one known week. Rank pointers are
// nil when the entity had no data that week; absence is never rank 0.
type RankedEntry struct {
	Entity           string   `json:"entity"`
	Date             string   `json:"date"`
	OneWeekCriteria  *float64 `json:"one_week_criteria,omitempty"`
	OneWeekRank      *int     `json:"one_week_rank,omitempty"`
	FourWeekCriteria *float64 `json:"four_week_criteria,omitempty"`
	FourWeekRank     *int     `json:"four_week_rank,omitempty"`
}

// Float returns a pointer to v. Convenience for literal metric maps.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
