package scoring

import (
	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/internal/rankcfg"
)

// ValueScorer scores cheapness from IV rank and bid/ask spread
// ⭐ SSOT: 가치(Value) 점수 계산은 여기서만
type ValueScorer struct {
	cfg rankcfg.Value
}

// NewValueScorer creates a value scorer
func NewValueScorer(cfg rankcfg.Value) *ValueScorer {
	return &ValueScorer{cfg: cfg}
}

// Score returns the value score in [0,100]
func (s *ValueScorer) Score(c *contracts.ContractSnapshot) float64 {
	ivRankScore := maxScore - s.IVRank(c.IV, c.IVLow52W, c.IVHigh52W)
	spreadScore := maxScore - s.SpreadPenalty(SpreadPct(c.Bid, c.Ask, c.Mark))

	return clampScore(ivRankScore*s.cfg.IVRankWeight + spreadScore*s.cfg.SpreadWeight)
}

// IVRank positions iv within its 52-week range, neutral when the range is empty
func (s *ValueScorer) IVRank(iv, low, high float64) float64 {
	if high == low {
		return s.cfg.NeutralIVRank
	}
	return clampScore((iv - low) / (high - low) * 100)
}

// SpreadPenalty escalates with spread:
// ≤2% ×2, ≤5% ×4, ≤10% ×5, then ×2 capped at MaxSpreadPenalty
func (s *ValueScorer) SpreadPenalty(spreadPct float64) float64 {
	var penalty float64
	switch {
	case spreadPct <= 2:
		penalty = spreadPct * 2
	case spreadPct <= 5:
		penalty = 4 + (spreadPct-2)*4
	case spreadPct <= 10:
		penalty = 16 + (spreadPct-5)*5
	default:
		penalty = 41 + (spreadPct-10)*2
	}
	return clamp(penalty, 0, s.cfg.MaxSpreadPenalty)
}

// SpreadPct is (ask-bid)/mark in percent
func SpreadPct(bid, ask, mark float64) float64 {
	if mark <= 0 {
		return 0
	}
	return (ask - bid) / mark * 100
}
