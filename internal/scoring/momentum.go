package scoring

import (
	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/internal/rankcfg"
)

// MomentumScorer scores short-term activity, dampened by liquidity confidence
// ⭐ SSOT: 모멘텀 점수 계산은 여기서만
type MomentumScorer struct {
	cfg rankcfg.Momentum
}

// NewMomentumScorer creates a momentum scorer
func NewMomentumScorer(cfg rankcfg.Momentum) *MomentumScorer {
	return &MomentumScorer{cfg: cfg}
}

// Score returns (raw, dampened) momentum.
// Confidence shrinks the deviation from neutral, so illiquid contracts regress to 50.
func (s *MomentumScorer) Score(c *contracts.ContractSnapshot, return5P, confidence float64) (float64, float64) {
	raw := clampScore(
		PriceMomentum(return5P)*s.cfg.PriceWeight +
			s.VolumeOIScore(c.Volume, c.OpenInterest)*s.cfg.VolOIWeight +
			OIGrowthScore(c.OpenInterest, c.OpenInterestPrior)*s.cfg.OIGrowthWeight,
	)

	return raw, clampScore(neutralScore + (raw-neutralScore)*confidence)
}

// PriceMomentum maps the underlying return (%) through the piecewise curve
func PriceMomentum(r float64) float64 {
	switch {
	case r >= 10:
		return 100
	case r >= 5:
		return 75 + 5*(r-5)
	case r >= 0:
		return 50 + 5*r
	default:
		return clamp(50+5*r, 0, 100)
	}
}

// VolumeOIScore saturates at the configured volume/OI ratio; no OI means no signal
func (s *MomentumScorer) VolumeOIScore(volume, openInterest int64) float64 {
	if openInterest <= 0 {
		return neutralScore
	}
	ratio := float64(volume) / float64(openInterest)
	return clampScore(ratio / s.cfg.VolOISaturation * 100)
}

// OIGrowthScore centers OI growth (%) on 50; unknown prior OI means no signal
func OIGrowthScore(oiNow, oiPrior int64) float64 {
	if oiPrior <= 0 {
		return neutralScore
	}
	growth := float64(oiNow-oiPrior) / float64(oiPrior) * 100
	return clampScore(growth + 50)
}
