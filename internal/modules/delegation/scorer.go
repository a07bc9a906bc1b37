package delegation

import "math"

// ScoreInput carries the per-dispatcher facts the scorer combines.
type ScoreInput struct {
	MaxCapacity        float64  `json:"max_capacity"`
	CurrentTrucks      int      `json:"current_trucks"`
	PendingAssignments int      `json:"pending_assignments"`
	Rank1w             *int     `json:"rank_1w,omitempty"`
	Rank4w             *int     `json:"rank_4w,omitempty"`
	ComplianceScore    *float64 `json:"compliance_score,omitempty"` // 0-100, external input
}

// Vacancy is the remaining truck capacity: max minus current plus pending.
func (in ScoreInput) Vacancy() float64 {
	return in.MaxCapacity - float64(in.CurrentTrucks+in.PendingAssignments)
}

// NeedScore converts vacancy into the dominant sub-score. Positive vacancy
// scales at 25 points per open slot capped at 100; a full or over-capacity
// dispatcher is driven strongly negative so no other factor can rescue it.
func NeedScore(vacancy float64) float64 {
	if vacancy > 0 {
		return math.Min(100, vacancy*25)
	}
	return -1000
}

// RankScore converts a 1-based rank into 0..100: rank 1 scores 100, ranks
// of 101 and beyond score 0. A nil rank scores 0 without further penalty.
func RankScore(rank *int) float64 {
	if rank == nil {
		return 0
	}
	return math.Max(0, 100-float64(*rank))
}

// Score computes the weighted suitability score. Weights are percentages;
// the scorer does not enforce or normalize their sum, it trusts the caller
// (validation happens at the settings boundary).
func Score(in ScoreInput, w Weights) float64 {
	need := NeedScore(in.Vacancy())
	rank1 := RankScore(in.Rank1w)
	rank4 := RankScore(in.Rank4w)

	compliance := 0.0
	if in.ComplianceScore != nil {
		compliance = *in.ComplianceScore
	}

	return (need*w.Need + rank4*w.Rank4w + rank1*w.Rank1w + compliance*w.Compliance) / 100
}
