package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/internal/rankcfg"
)

// strongBuy is the liquid, well-priced, on-trend contract
func strongBuy() *contracts.ContractSnapshot {
	return &contracts.ContractSnapshot{
		ContractID:        "AAPL240315C00180000",
		Side:              contracts.SideCall,
		DTE:               30,
		Bid:               1.985,
		Ask:               2.015,
		Mark:              2.00,
		Volume:            150,
		OpenInterest:      500,
		OpenInterestPrior: 435,
		IV:                0.30,
		IVLow52W:          0.20,
		IVHigh52W:         0.70,
		Delta:             0.55,
		Gamma:             0.04,
		Theta:             -0.02,
		Vega:              0.30,
	}
}

// illiquidDiscount is cheap on IV but thin and wide
func illiquidDiscount() *contracts.ContractSnapshot {
	return &contracts.ContractSnapshot{
		ContractID:        "AAPL240315C00200000",
		Side:              contracts.SideCall,
		DTE:               30,
		Bid:               0.48,
		Ask:               0.52,
		Mark:              0.50,
		Volume:            5,
		OpenInterest:      50,
		OpenInterestPrior: 50,
		IV:                0.35,
		IVLow52W:          0.20,
		IVHigh52W:         1.20,
		Delta:             0.50,
		Gamma:             0.02,
		Theta:             -0.05,
		Vega:              0.20,
	}
}

func TestLiquidityModel_Confidence(t *testing.T) {
	m := NewLiquidityModel(rankcfg.MustDefault().Liquidity)

	t.Run("all at threshold", func(t *testing.T) {
		c := &contracts.ContractSnapshot{Volume: 100, OpenInterest: 500, Mark: 1.0}
		assert.InDelta(t, 1.0, m.Confidence(c).Combined, 1e-9)
	})

	t.Run("one below threshold", func(t *testing.T) {
		c := &contracts.ContractSnapshot{Volume: 99, OpenInterest: 5000, Mark: 10}
		assert.Less(t, m.Confidence(c).Combined, 1.0)
	})

	t.Run("zero volume dominates", func(t *testing.T) {
		c := &contracts.ContractSnapshot{Volume: 0, OpenInterest: 100000, Mark: 50}
		conf := m.Confidence(c)
		assert.Equal(t, 0.1, conf.Volume)
		assert.InDelta(t, math.Cbrt(0.1), conf.Combined, 1e-9)
	})

	t.Run("everything empty", func(t *testing.T) {
		conf := m.Confidence(&contracts.ContractSnapshot{Mark: 1e-9})
		assert.InDelta(t, 0.1, conf.Combined, 1e-6)
	})

	t.Run("sub approaches floor", func(t *testing.T) {
		prev := 1.0
		for _, vol := range []int64{100, 50, 10, 1, 0} {
			conf := m.Confidence(&contracts.ContractSnapshot{Volume: vol, OpenInterest: 500, Mark: 1})
			assert.LessOrEqual(t, conf.Volume, prev)
			assert.GreaterOrEqual(t, conf.Volume, 0.1)
			prev = conf.Volume
		}
		assert.Equal(t, 0.1, prev)
	})

	t.Run("illiquid discount", func(t *testing.T) {
		assert.InDelta(t, 0.2474, m.Confidence(illiquidDiscount()).Combined, 1e-3)
	})
}

func TestValueScorer(t *testing.T) {
	s := NewValueScorer(rankcfg.MustDefault().Value)

	assert.InDelta(t, 86.8, s.Score(strongBuy()), 0.01)
	assert.InDelta(t, 78.6, s.Score(illiquidDiscount()), 0.01)

	// high == low → neutral rank
	assert.Equal(t, 50.0, s.IVRank(0.3, 0.25, 0.25))
	assert.Equal(t, 0.0, s.IVRank(0.1, 0.2, 0.5))
	assert.Equal(t, 100.0, s.IVRank(0.9, 0.2, 0.5))
}

func TestValueScorer_SpreadPenalty(t *testing.T) {
	s := NewValueScorer(rankcfg.MustDefault().Value)

	tests := []struct {
		spread float64
		want   float64
	}{
		{0, 0},
		{1.5, 3},
		{2, 4},
		{5, 16},
		{8, 31},
		{10, 41},
		{12, 45},
		{50, 50},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, s.SpreadPenalty(tt.spread), 1e-9, "spread=%v", tt.spread)
	}
}

func TestValueScorer_MonotoneInSpread(t *testing.T) {
	s := NewValueScorer(rankcfg.MustDefault().Value)
	c := strongBuy()

	// 스프레드가 줄어들면 점수는 줄지 않음
	prev := -1.0
	for half := 0.5; half >= 0; half -= 0.005 {
		c.Bid = c.Mark - half
		c.Ask = c.Mark + half
		score := s.Score(c)
		assert.GreaterOrEqual(t, score, prev-1e-9, "half spread=%v", half)
		prev = score
	}
}

func TestPriceMomentum(t *testing.T) {
	tests := []struct {
		r    float64
		want float64
	}{
		{15, 100},
		{10, 100},
		{8, 90},
		{5, 75},
		{3, 65},
		{0, 50},
		{-4, 30},
		{-20, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, PriceMomentum(tt.r), 1e-9, "r=%v", tt.r)
	}
}

func TestMomentumScorer(t *testing.T) {
	cfg := rankcfg.MustDefault()
	s := NewMomentumScorer(cfg.Momentum)
	liq := NewLiquidityModel(cfg.Liquidity)

	t.Run("strong buy", func(t *testing.T) {
		c := strongBuy()
		raw, damp := s.Score(c, 8, liq.Confidence(c).Combined)
		assert.InDelta(t, 88, raw, 0.1)
		assert.InDelta(t, raw, damp, 1e-9) // fully liquid
	})

	t.Run("illiquid discount", func(t *testing.T) {
		c := illiquidDiscount()
		raw, damp := s.Score(c, 3, liq.Confidence(c).Combined)
		assert.InDelta(t, 57.5, raw, 1e-9)
		assert.InDelta(t, 51.86, damp, 0.05)
	})

	t.Run("guards", func(t *testing.T) {
		assert.Equal(t, 50.0, s.VolumeOIScore(100, 0))
		assert.Equal(t, 50.0, OIGrowthScore(100, 0))
		assert.Equal(t, 100.0, s.VolumeOIScore(1000, 10))
		assert.Equal(t, 0.0, OIGrowthScore(0, 100))
	})

	t.Run("zero confidence is neutral", func(t *testing.T) {
		_, damp := s.Score(strongBuy(), 15, 0)
		assert.Equal(t, 50.0, damp)
	})
}

func TestGreeksScorer(t *testing.T) {
	s := NewGreeksScorer(rankcfg.MustDefault().Greeks)

	assert.InDelta(t, 85, s.Score(strongBuy(), contracts.TrendBullish), 1e-9)
	assert.InDelta(t, 31.667, s.Score(illiquidDiscount(), contracts.TrendBullish), 1e-3)
}

func TestGreeksScorer_Alignment(t *testing.T) {
	s := NewGreeksScorer(rankcfg.MustDefault().Greeks)

	call := strongBuy()
	put := strongBuy()
	put.Side = contracts.SidePut
	put.Delta = -0.55

	with := s.Score(call, contracts.TrendBullish)
	neutral := s.Score(call, contracts.TrendNeutral)
	counter := s.Score(call, contracts.TrendBearish)

	assert.Greater(t, with, neutral)
	assert.Greater(t, neutral, counter)
	// 풋은 음수 델타로 호가되지만 같은 크기면 같은 점수
	assert.InDelta(t, with, s.Score(put, contracts.TrendBearish), 1e-9)
	assert.InDelta(t, counter, s.Score(put, contracts.TrendBullish), 1e-9)
}

func TestGreeksScorer_ThetaCapByDTE(t *testing.T) {
	s := NewGreeksScorer(rankcfg.MustDefault().Greeks)

	// theta 50% of mark → uncapped penalty 500
	assert.Equal(t, 25.0, s.ThetaPenalty(-1, 2, s.cfg.TierFor(60).ThetaCap))
	assert.Equal(t, 40.0, s.ThetaPenalty(-1, 2, s.cfg.TierFor(30).ThetaCap))
	assert.Equal(t, 50.0, s.ThetaPenalty(-1, 2, s.cfg.TierFor(10).ThetaCap))
	assert.InDelta(t, 10.0, s.ThetaPenalty(-0.02, 2, 40), 1e-9)
}

func TestScores_Bounded(t *testing.T) {
	cfg := rankcfg.MustDefault()
	liq := NewLiquidityModel(cfg.Liquidity)
	val := NewValueScorer(cfg.Value)
	mom := NewMomentumScorer(cfg.Momentum)
	grk := NewGreeksScorer(cfg.Greeks)

	for _, dte := range []int{0, 5, 14, 30, 90} {
		for _, delta := range []float64{-1, -0.3, 0, 0.4, 1} {
			for _, spread := range []float64{0, 0.1, 1, 5} {
				for _, ret := range []float64{-50, -2, 0, 7, 40} {
					c := &contracts.ContractSnapshot{
						Side: contracts.SideCall, DTE: dte, Delta: delta,
						Bid: 1, Ask: 1 + spread, Mark: 1 + spread/2,
						Volume: int64(dte * 3), OpenInterest: int64(dte * 7), OpenInterestPrior: int64(dte),
						IV: 0.4, IVLow52W: 0.1, IVHigh52W: 0.3,
						Gamma: 0.5, Vega: 2, Theta: -0.9,
					}
					conf := liq.Confidence(c).Combined
					raw, damp := mom.Score(c, ret, conf)
					for _, v := range []float64{val.Score(c), raw, damp, grk.Score(c, contracts.TrendBearish)} {
						assert.GreaterOrEqual(t, v, 0.0)
						assert.LessOrEqual(t, v, 100.0)
					}
					assert.GreaterOrEqual(t, conf, 0.1)
					assert.LessOrEqual(t, conf, 1.0)
				}
			}
		}
	}
}
