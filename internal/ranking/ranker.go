package ranking

import (
	"sort"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/internal/rankcfg"
)

// Ranker combines component scores and orders contracts deterministically
// ⭐ SSOT: 종합 점수 및 정렬 규칙은 여기서만
type Ranker struct {
	weights rankcfg.Composite
}

// NewRanker creates a new ranker
func NewRanker(weights rankcfg.Composite) *Ranker {
	return &Ranker{weights: weights}
}

// Composite calculates the weighted composite score
func (r *Ranker) Composite(s contracts.ComponentScores) float64 {
	return s.SmoothedMomentum*r.weights.MomentumWeight +
		s.Value*r.weights.ValueWeight +
		s.Greeks*r.weights.GreeksWeight
}

// Rank fills Composite, sorts, keeps the top N and assigns 1-based positions.
// The input slice is reordered in place.
func (r *Ranker) Rank(rows []contracts.CompositeRank) []contracts.CompositeRank {
	for i := range rows {
		rows[i].Composite = r.Composite(rows[i].Scores)
	}

	sort.Slice(rows, func(i, j int) bool {
		return Less(&rows[i], &rows[j])
	})

	if r.weights.TopN > 0 && len(rows) > r.weights.TopN {
		rows = rows[:r.weights.TopN]
	}

	for i := range rows {
		rows[i].RankPosition = i + 1
	}

	return rows
}

// Less orders by composite desc, then OI desc, volume desc, contract_id asc
func Less(a, b *contracts.CompositeRank) bool {
	if a.Composite != b.Composite {
		return a.Composite > b.Composite
	}
	if a.OpenInterest != b.OpenInterest {
		return a.OpenInterest > b.OpenInterest
	}
	if a.Volume != b.Volume {
		return a.Volume > b.Volume
	}
	return a.ContractID < b.ContractID
}
