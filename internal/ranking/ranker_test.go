package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/internal/rankcfg"
)

func TestRanker_TieBreak(t *testing.T) {
	r := NewRanker(rankcfg.MustDefault().Composite)
	scores := contracts.ComponentScores{Value: 70, SmoothedMomentum: 60, Greeks: 50}

	rows := []contracts.CompositeRank{
		{ContractID: "D", OpenInterest: 100, Volume: 10, Scores: scores},
		{ContractID: "C", OpenInterest: 100, Volume: 10, Scores: scores},
		{ContractID: "B", OpenInterest: 100, Volume: 20, Scores: scores},
		{ContractID: "A", OpenInterest: 50, Volume: 90, Scores: scores},
		{ContractID: "E", OpenInterest: 1, Volume: 1, Scores: contracts.ComponentScores{Value: 90, SmoothedMomentum: 90, Greeks: 90}},
	}

	ranked := r.Rank(rows)

	var order []string
	for _, row := range ranked {
		order = append(order, row.ContractID)
	}
	assert.Equal(t, []string{"E", "B", "C", "D", "A"}, order)
	assert.Equal(t, 1, ranked[0].RankPosition)
	assert.Equal(t, 5, ranked[4].RankPosition)
}

func TestRanker_Composite(t *testing.T) {
	r := NewRanker(rankcfg.MustDefault().Composite)

	got := r.Composite(contracts.ComponentScores{SmoothedMomentum: 100, Value: 0, Greeks: 0})
	assert.InDelta(t, 40, got, 1e-9)

	got = r.Composite(contracts.ComponentScores{Momentum: 100, SmoothedMomentum: 0, Value: 100, Greeks: 100})
	assert.InDelta(t, 60, got, 1e-9) // dampened but unsmoothed momentum is not used
}

func TestSmoother(t *testing.T) {
	s := NewSmoother(rankcfg.Smoothing{Window: 3})
	prev := contracts.PreviousSnapshot{"A": 40, "B": 55}

	assert.Equal(t, 0.5, s.Alpha())
	assert.InDelta(t, 60, s.Smooth("A", 80, prev), 1e-9)
	assert.InDelta(t, 55, s.Smooth("B", 55, prev), 1e-9)
	assert.Equal(t, 77.0, s.Smooth("NEW", 77, prev))
	assert.Equal(t, 77.0, s.Smooth("A", 77, nil))
}
