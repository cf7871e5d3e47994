package scoring

import (
	"math"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/internal/rankcfg"
)

// LiquidityModel derives how much to trust a contract's activity signals
// ⭐ SSOT: 유동성 신뢰도 계산은 여기서만
type LiquidityModel struct {
	cfg rankcfg.Liquidity
}

// NewLiquidityModel creates a liquidity model
func NewLiquidityModel(cfg rankcfg.Liquidity) *LiquidityModel {
	return &LiquidityModel{cfg: cfg}
}

// Confidence returns the sub-confidences and their geometric mean.
// A single illiquid dimension drags the combined value down multiplicatively.
func (m *LiquidityModel) Confidence(c *contracts.ContractSnapshot) contracts.LiquidityConfidence {
	v := m.sub(float64(c.Volume), m.cfg.VolumeThreshold)
	o := m.sub(float64(c.OpenInterest), m.cfg.OIThreshold)
	p := m.sub(c.Mark, m.cfg.PriceThreshold)

	return contracts.LiquidityConfidence{
		Volume:   v,
		OI:       o,
		Price:    p,
		Combined: math.Cbrt(v * o * p),
	}
}

// sub = clamp(floor + (1-floor)·value/threshold, floor, 1)
func (m *LiquidityModel) sub(value, threshold float64) float64 {
	if value <= 0 {
		return m.cfg.Floor
	}
	return clamp(m.cfg.Floor+(1-m.cfg.Floor)*value/threshold, m.cfg.Floor, 1.0)
}
