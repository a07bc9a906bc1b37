package delegation

import (
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultCap is the truck cap used when a dispatcher has no override
	// and no matching rule.
	DefaultCap = 5
	// MinRules and MaxRules bound a rule list's size.
	MinRules = 2
	MaxRules = 10
)

// Validate checks the rule list invariant: 2..10 rules sorted ascending,
// contiguous (each rule's max equals the next rule's min), and covering the
// whole [0,1] criteria-percentile space.
func (rules RuleList) Validate() error {
	if len(rules) < MinRules {
		return fmt.Errorf("rule list needs at least %d rules, got %d", MinRules, len(rules))
	}
	if len(rules) > MaxRules {
		return fmt.Errorf("rule list allows at most %d rules, got %d", MaxRules, len(rules))
	}

	for i, r := range rules {
		if r.Min >= r.Max {
			return fmt.Errorf("rule %d has empty band [%g,%g]", i, r.Min, r.Max)
		}
		if i > 0 && rules[i-1].Max != r.Min {
			return fmt.Errorf("gap or overlap between rule %d and %d (%g != %g)", i-1, i, rules[i-1].Max, r.Min)
		}
	}

	if rules[0].Min > 0 {
		return fmt.Errorf("first rule must start at or below 0, got %g", rules[0].Min)
	}
	if rules[len(rules)-1].Max < 1 {
		return fmt.Errorf("last rule must end at or above 1, got %g", rules[len(rules)-1].Max)
	}

	return nil
}

// clone returns an independent copy. All rule edits operate on copies and
// return new lists; nothing mutates a stored list in place.
func (rules RuleList) clone() RuleList {
	out := make(RuleList, len(rules))
	copy(out, rules)
	return out
}

// WithBoundary returns a new list where the boundary between rule i and
// rule i+1 moves to value. The neighbor's matching bound adjusts with it so
// contiguity is preserved by construction.
func (rules RuleList) WithBoundary(i int, value float64) (RuleList, error) {
	if i < 0 || i >= len(rules)-1 {
		return nil, fmt.Errorf("no boundary after rule %d", i)
	}
	if value <= rules[i].Min || value >= rules[i+1].Max {
		return nil, fmt.Errorf("boundary %g leaves an empty band", value)
	}

	out := rules.clone()
	out[i].Max = value
	out[i+1].Min = value
	return out, nil
}

// WithCap returns a new list where rule i's cap is replaced.
func (rules RuleList) WithCap(i int, cap float64) (RuleList, error) {
	if i < 0 || i >= len(rules) {
		return nil, fmt.Errorf("no rule %d", i)
	}
	if cap < 0 {
		return nil, fmt.Errorf("cap must not be negative")
	}

	out := rules.clone()
	out[i].Cap = cap
	return out, nil
}

// WithSplit returns a new list where rule i splits into two bands at the
// given point, both keeping the original cap.
func (rules RuleList) WithSplit(i int, at float64) (RuleList, error) {
	if i < 0 || i >= len(rules) {
		return nil, fmt.Errorf("no rule %d", i)
	}
	if len(rules) >= MaxRules {
		return nil, fmt.Errorf("rule list already at maximum size %d", MaxRules)
	}
	if at <= rules[i].Min || at >= rules[i].Max {
		return nil, fmt.Errorf("split point %g outside rule %d", at, i)
	}

	out := make(RuleList, 0, len(rules)+1)
	out = append(out, rules[:i]...)
	out = append(out,
		CapacityRule{Min: rules[i].Min, Max: at, Cap: rules[i].Cap},
		CapacityRule{Min: at, Max: rules[i].Max, Cap: rules[i].Cap},
	)
	out = append(out, rules[i+1:]...)
	return out, nil
}

// WithoutRule returns a new list where rule i is removed and its band is
// absorbed by the previous rule (or the next one, for the first rule).
func (rules RuleList) WithoutRule(i int) (RuleList, error) {
	if i < 0 || i >= len(rules) {
		return nil, fmt.Errorf("no rule %d", i)
	}
	if len(rules) <= MinRules {
		return nil, fmt.Errorf("rule list needs at least %d rules", MinRules)
	}

	out := rules.clone()
	if i == 0 {
		out[1].Min = out[0].Min
	} else {
		out[i-1].Max = out[i].Max
	}
	return append(out[:i], out[i+1:]...), nil
}

// Rule edit operation names, as accepted by Apply.
const (
	EditBoundary = "boundary"
	EditCap      = "cap"
	EditSplit    = "split"
	EditRemove   = "remove"
)

// RuleEdit is one structured edit against a rule list. Index addresses the
// rule (for boundary: the rule before the moved boundary); Value carries
// the new boundary, cap, or split point and is ignored for remove.
type RuleEdit struct {
	Op    string  `json:"op"`
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// Apply runs the edits in order, each against the result of the previous
// one, and returns the edited list. The input list is never mutated. The
// result still needs Validate before it is stored; individual edits keep
// contiguity but a caller can request caps or bands a stored list may not
// carry.
func (rules RuleList) Apply(edits []RuleEdit) (RuleList, error) {
	out := rules
	for _, e := range edits {
		var err error
		switch e.Op {
		case EditBoundary:
			out, err = out.WithBoundary(e.Index, e.Value)
		case EditCap:
			out, err = out.WithCap(e.Index, e.Value)
		case EditSplit:
			out, err = out.WithSplit(e.Index, e.Value)
		case EditRemove:
			out, err = out.WithoutRule(e.Index)
		default:
			return nil, fmt.Errorf("unknown rule edit op: %q", e.Op)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Normalized returns the rules sorted ascending by band. Stored rules are
// kept sorted, but feed input may not be.
func (rules RuleList) Normalized() RuleList {
	out := rules.clone()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Min < out[j].Min })
	return out
}

// DefaultRules is the stock two-band rule set: bottom half of the field
// caps at 4 trucks, top half at 6.
func DefaultRules() RuleList {
	return RuleList{
		{Min: 0, Max: 0.5, Cap: 4},
		{Min: 0.5, Max: 1, Cap: 6},
	}
}

// EffectiveMaxCapacity resolves a dispatcher's truck cap.
//
// A flat MaxCapacity override wins outright. Otherwise the dispatcher's own
// rules (or, failing that, the inherited group rules) are matched against
// the criteria percentile; the first rule is open below and the last rule
// open above. No profile, nil criteria, or no matching rule resolves to
// DefaultCap.
func EffectiveMaxCapacity(profile *CapacityProfile, criteriaPct *float64, groupRules RuleList) float64 {
	if profile == nil {
		return DefaultCap
	}
	if profile.MaxCapacity != nil {
		return *profile.MaxCapacity
	}

	rules := profile.Rules
	if len(rules) == 0 {
		rules = groupRules
	}
	if len(rules) == 0 || criteriaPct == nil {
		return DefaultCap
	}

	c := *criteriaPct
	for i, r := range rules {
		min, max := r.Min, r.Max
		if i == 0 {
			min = math.Inf(-1)
		}
		if i == len(rules)-1 {
			max = math.Inf(1)
		}
		if c >= min && c < max {
			return r.Cap
		}
	}
	return DefaultCap
}
