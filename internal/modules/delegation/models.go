// Package delegation computes vacancy-driven suitability scores for driver
// assignment and owns the capacity/assignment configuration around them.
package delegation

import (
	"fmt"
	"time"

	"github.com/truckboard/truckboard/internal/domain"
)

// Weights are the caller-supplied percentages applied to the four
// sub-scores. The UI requires them to sum to 100; Validate enforces that at
// the settings boundary, but the scorer itself trusts its input.
type Weights struct {
	Need       float64 `json:"need"`
	Rank4w     float64 `json:"rank_4w"`
	Rank1w     float64 `json:"rank_1w"`
	Compliance float64 `json:"compliance"`
}

// DefaultWeights returns the standard weighting.
func DefaultWeights() Weights {
	return Weights{Need: 40, Rank4w: 30, Rank1w: 20, Compliance: 10}
}

// Validate rejects negative weights and sums away from 100.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"need": w.Need, "rank_4w": w.Rank4w, "rank_1w": w.Rank1w, "compliance": w.Compliance,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative", name)
		}
	}

	sum := w.Need + w.Rank4w + w.Rank1w + w.Compliance
	if sum < 99.999 || sum > 100.001 {
		return fmt.Errorf("weights must sum to 100, got %.2f", sum)
	}
	return nil
}

// CapacityRule maps a criteria-percentile band onto a truck cap.
type CapacityRule struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Cap float64 `json:"cap"`
}

// RuleList is an ordered, contiguous set of capacity rules covering [0,1].
// The first rule's lower bound is treated as negative infinity and the last
// rule's upper bound as positive infinity when matching.
type RuleList []CapacityRule

// AllowedContracts flags which driver contract types a dispatcher accepts.
type AllowedContracts struct {
	OO  bool `json:"oo"`
	LOO bool `json:"loo"`
}

// Allows reports whether the contract type is accepted.
func (a AllowedContracts) Allows(ct domain.ContractType) bool {
	switch ct {
	case domain.ContractOwnerOperator:
		return a.OO
	case domain.ContractLeasedOwnerOperator:
		return a.LOO
	default:
		return false
	}
}

// CapacityProfile holds one dispatcher's capacity configuration. Exactly one
// of MaxCapacity and Rules is normally set; MaxCapacity wins when both are.
// A profile referencing a settings group inherits the group's rules unless
// it carries its own override.
type CapacityProfile struct {
	Dispatcher  string           `json:"dispatcher"`
	MaxCapacity *float64         `json:"max_capacity,omitempty"`
	Rules       RuleList         `json:"rules,omitempty"`
	Allowed     AllowedContracts `json:"allowed_contracts"`
	GroupID     *int64           `json:"group_id,omitempty"`
}

// SettingsGroup is a named rule set applied to every member dispatcher via
// reference, not copy: editing the group's rules changes every member that
// has not explicitly overridden them.
type SettingsGroup struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Rules RuleList `json:"rules"`
}

// Assignment is one pending driver delegation for a dispatcher. It is
// reconciled against live truck counts and deleted once fully absorbed.
type Assignment struct {
	ID                string              `json:"id"`
	Dispatcher        string              `json:"dispatcher"`
	PendingCount      int                 `json:"pending_count"`
	Note              string              `json:"note,omitempty"`
	Driver            string              `json:"driver,omitempty"`
	ContractType      domain.ContractType `json:"contract_type,omitempty"`
	CountAtAssignment int                 `json:"count_at_assignment"`
	UpdatedBy         string              `json:"updated_by,omitempty"`
	LastUpdated       time.Time           `json:"last_updated"`
}
