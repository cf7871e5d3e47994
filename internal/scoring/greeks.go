package scoring

import (
	"math"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/internal/rankcfg"
)

// GreeksScorer scores risk/sensitivity with DTE-aware targets and trend alignment
// ⭐ SSOT: Greeks 점수 계산은 여기서만
type GreeksScorer struct {
	cfg rankcfg.Greeks
}

// NewGreeksScorer creates a greeks scorer
func NewGreeksScorer(cfg rankcfg.Greeks) *GreeksScorer {
	return &GreeksScorer{cfg: cfg}
}

// Score returns the greeks score in [0,100]
func (s *GreeksScorer) Score(c *contracts.ContractSnapshot, trend contracts.Trend) float64 {
	tier := s.cfg.TierFor(c.DTE)

	deltaScore := DeltaScore(c.Side.DeltaMagnitude(c.Delta), tier.DeltaTarget)
	multiplier := s.AlignmentMultiplier(c.Side.Alignment(trend))
	gammaScore := saturate(c.Gamma, s.cfg.GammaSaturation)
	vegaScore := saturate(c.Vega, s.cfg.VegaSaturation)

	return clampScore(
		deltaScore*multiplier*s.cfg.DeltaWeight +
			gammaScore*s.cfg.GammaWeight +
			vegaScore*s.cfg.VegaWeight -
			s.ThetaPenalty(c.Theta, c.Mark, tier.ThetaCap),
	)
}

// DeltaScore = 100 - 100·|magnitude - target|
func DeltaScore(magnitude, target float64) float64 {
	return clampScore(100 - 100*math.Abs(magnitude-target))
}

// AlignmentMultiplier discounts neutral and counter-trend positioning
func (s *GreeksScorer) AlignmentMultiplier(a contracts.Alignment) float64 {
	switch a {
	case contracts.AlignmentWith:
		return s.cfg.Alignment.WithTrend
	case contracts.AlignmentAgainst:
		return s.cfg.Alignment.CounterTrend
	default:
		return s.cfg.Alignment.Neutral
	}
}

// ThetaPenalty = min(|theta|/mark·100·scale, cap)
func (s *GreeksScorer) ThetaPenalty(theta, mark, capPenalty float64) float64 {
	if mark <= 0 {
		return capPenalty
	}
	thetaPct := math.Abs(theta) / mark * 100
	return math.Min(thetaPct*s.cfg.ThetaPenaltyScale, capPenalty)
}

func saturate(v, full float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Min(v/full*100, 100)
}
