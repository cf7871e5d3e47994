package rankcfg

// Config is the single named weight set for option ranking.
// ⭐ SSOT: 모든 가중치/임계값은 여기서만 정의 (계산, 저장, 설명 API 공용)
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta" validate:"required"`
	Liquidity Liquidity `yaml:"liquidity" json:"liquidity" validate:"required"`
	Value     Value     `yaml:"value" json:"value" validate:"required"`
	Momentum  Momentum  `yaml:"momentum" json:"momentum" validate:"required"`
	Greeks    Greeks    `yaml:"greeks" json:"greeks" validate:"required"`
	Smoothing Smoothing `yaml:"smoothing" json:"smoothing" validate:"required"`
	Composite Composite `yaml:"composite" json:"composite" validate:"required"`
}

// Meta 메타 정보
type Meta struct {
	ConfigID string `yaml:"config_id" json:"config_id" validate:"required"`
	Version  string `yaml:"version" json:"version" validate:"required"`
}

// Liquidity thresholds for the confidence model
type Liquidity struct {
	VolumeThreshold float64 `yaml:"volume_threshold" json:"volume_threshold" validate:"gt=0"`
	OIThreshold     float64 `yaml:"oi_threshold" json:"oi_threshold" validate:"gt=0"`
	PriceThreshold  float64 `yaml:"price_threshold" json:"price_threshold" validate:"gt=0"`
	Floor           float64 `yaml:"floor" json:"floor" validate:"gt=0,lt=1"` // 최소 신뢰도
}

// Value scorer weights
type Value struct {
	IVRankWeight     float64 `yaml:"iv_rank_weight" json:"iv_rank_weight" validate:"gte=0,lte=1"`
	SpreadWeight     float64 `yaml:"spread_weight" json:"spread_weight" validate:"gte=0,lte=1"`
	NeutralIVRank    float64 `yaml:"neutral_iv_rank" json:"neutral_iv_rank" validate:"gte=0,lte=100"` // high == low
	MaxSpreadPenalty float64 `yaml:"max_spread_penalty" json:"max_spread_penalty" validate:"gt=0,lte=100"`
}

// Momentum scorer weights
type Momentum struct {
	PriceWeight     float64 `yaml:"price_weight" json:"price_weight" validate:"gte=0,lte=1"`
	VolOIWeight     float64 `yaml:"vol_oi_weight" json:"vol_oi_weight" validate:"gte=0,lte=1"`
	OIGrowthWeight  float64 `yaml:"oi_growth_weight" json:"oi_growth_weight" validate:"gte=0,lte=1"`
	VolOISaturation float64 `yaml:"vol_oi_saturation" json:"vol_oi_saturation" validate:"gt=0"` // volume/OI ratio scoring 100
}

// Greeks scorer weights and DTE tiers
type Greeks struct {
	DeltaWeight       float64   `yaml:"delta_weight" json:"delta_weight" validate:"gte=0,lte=1"`
	GammaWeight       float64   `yaml:"gamma_weight" json:"gamma_weight" validate:"gte=0,lte=1"`
	VegaWeight        float64   `yaml:"vega_weight" json:"vega_weight" validate:"gte=0,lte=1"`
	GammaSaturation   float64   `yaml:"gamma_saturation" json:"gamma_saturation" validate:"gt=0"`
	VegaSaturation    float64   `yaml:"vega_saturation" json:"vega_saturation" validate:"gt=0"`
	ThetaPenaltyScale float64   `yaml:"theta_penalty_scale" json:"theta_penalty_scale" validate:"gte=0"`
	Alignment         Alignment `yaml:"alignment" json:"alignment" validate:"required"`
	DTETiers          []DTETier `yaml:"dte_tiers" json:"dte_tiers" validate:"required,min=1,dive"`
	LongDated         DTETier   `yaml:"long_dated" json:"long_dated"` // DTE above every tier
}

// Alignment multipliers by side/trend agreement
type Alignment struct {
	WithTrend    float64 `yaml:"with_trend" json:"with_trend" validate:"gt=0,lte=1"`
	Neutral      float64 `yaml:"neutral" json:"neutral" validate:"gt=0,lte=1"`
	CounterTrend float64 `yaml:"counter_trend" json:"counter_trend" validate:"gt=0,lte=1"`
}

// DTETier applies to contracts with DTE <= MaxDTE
type DTETier struct {
	MaxDTE      int     `yaml:"max_dte" json:"max_dte" validate:"gte=0"`
	DeltaTarget float64 `yaml:"delta_target" json:"delta_target" validate:"gt=0,lte=1"`
	ThetaCap    float64 `yaml:"theta_cap" json:"theta_cap" validate:"gte=0,lte=100"`
}

// TierFor returns the first tier covering dte, or LongDated
func (g Greeks) TierFor(dte int) DTETier {
	for _, t := range g.DTETiers {
		if dte <= t.MaxDTE {
			return t
		}
	}
	return g.LongDated
}

// Smoothing settings for the momentum EMA
type Smoothing struct {
	Window int `yaml:"window" json:"window" validate:"gte=1"`
}

// Alpha returns 2/(window+1)
func (s Smoothing) Alpha() float64 {
	return 2 / float64(s.Window+1)
}

// Composite weights and output size
type Composite struct {
	MomentumWeight float64 `yaml:"momentum_weight" json:"momentum_weight" validate:"gte=0,lte=1"`
	ValueWeight    float64 `yaml:"value_weight" json:"value_weight" validate:"gte=0,lte=1"`
	GreeksWeight   float64 `yaml:"greeks_weight" json:"greeks_weight" validate:"gte=0,lte=1"`
	TopN           int     `yaml:"top_n" json:"top_n" validate:"gte=1"`
}

// Sum returns the sum of the three composite weights
func (c Composite) Sum() float64 {
	return c.MomentumWeight + c.ValueWeight + c.GreeksWeight
}
