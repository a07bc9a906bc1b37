package delegation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckboard/truckboard/internal/domain"
)

func TestNeedScore(t *testing.T) {
	// Strictly increasing with vacancy until the cap at 100.
	prev := NeedScore(0.5)
	for _, v := range []float64{1, 2, 3, 3.9} {
		score := NeedScore(v)
		assert.Greater(t, score, prev, "vacancy %g", v)
		prev = score
	}
	assert.Equal(t, 100.0, NeedScore(4))
	assert.Equal(t, 100.0, NeedScore(10), "capped above four vacancies")

	assert.Equal(t, -1000.0, NeedScore(0), "at capacity")
	assert.Equal(t, -1000.0, NeedScore(-2), "over capacity")
}

func TestRankScore(t *testing.T) {
	assert.Equal(t, 0.0, RankScore(nil))
	assert.Equal(t, 99.0, RankScore(domain.Int(1)))
	assert.Equal(t, 50.0, RankScore(domain.Int(50)))
	assert.Equal(t, 0.0, RankScore(domain.Int(100)))
	assert.Equal(t, 0.0, RankScore(domain.Int(250)), "floored at zero, never negative")
}

func TestScore_FullDispatcherOutranksNobody(t *testing.T) {
	// A dispatcher at or over capacity must score below any dispatcher with
	// room, regardless of rank.
	full := ScoreInput{MaxCapacity: 5, CurrentTrucks: 5, Rank1w: domain.Int(1), Rank4w: domain.Int(1)}
	open := ScoreInput{MaxCapacity: 5, CurrentTrucks: 4, Rank1w: domain.Int(40), Rank4w: domain.Int(40)}

	w := DefaultWeights()
	assert.Less(t, Score(full, w), Score(open, w))
}

func TestScore_PendingAssignmentsConsumeVacancy(t *testing.T) {
	base := ScoreInput{MaxCapacity: 6, CurrentTrucks: 3}
	withPending := base
	withPending.PendingAssignments = 2

	assert.Equal(t, 3.0, base.Vacancy())
	assert.Equal(t, 1.0, withPending.Vacancy())

	w := DefaultWeights()
	assert.Greater(t, Score(base, w), Score(withPending, w))
}

func TestScore_WeightedCombination(t *testing.T) {
	in := ScoreInput{
		MaxCapacity:     6,
		CurrentTrucks:   4, // vacancy 2, need 50
		Rank1w:          domain.Int(10),
		Rank4w:          domain.Int(20),
		ComplianceScore: domain.Float(80),
	}
	w := Weights{Need: 40, Rank4w: 30, Rank1w: 20, Compliance: 10}
	require.NoError(t, w.Validate())

	// (50*40 + 80*30 + 90*20 + 80*10) / 100
	assert.InDelta(t, 70.0, Score(in, w), 1e-9)
}

func TestWeights_Validate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.NoError(t, Weights{Need: 100}.Validate())

	assert.Error(t, Weights{Need: 50, Rank4w: 30}.Validate(), "sum below 100")
	assert.Error(t, Weights{Need: 60, Rank4w: 30, Rank1w: 20, Compliance: 10}.Validate(), "sum above 100")
	assert.Error(t, Weights{Need: 120, Rank4w: -20}.Validate(), "negative weight")
}
