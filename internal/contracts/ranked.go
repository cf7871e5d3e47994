package contracts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LiquidityConfidence is the per-contract trust factor, derived and never persisted
type LiquidityConfidence struct {
	Volume   float64 `json:"volume"`
	OI       float64 `json:"oi"`
	Price    float64 `json:"price"`
	Combined float64 `json:"combined"` // geometric mean of the three
}

// ComponentScores holds every per-contract score, each in [0,100]
type ComponentScores struct {
	Value            float64 `json:"value"`
	RawMomentum      float64 `json:"raw_momentum"`      // before liquidity dampening
	Momentum         float64 `json:"momentum"`          // dampened
	SmoothedMomentum float64 `json:"smoothed_momentum"` // blended with the previous completed run
	Greeks           float64 `json:"greeks"`
}

// CompositeRank is one persisted output row
// ⭐ SSOT: 랭킹 결과 row 정의
type CompositeRank struct {
	ContractID   string          `json:"contract_id"`
	Symbol       string          `json:"symbol"`
	Side         Side            `json:"side"`
	Strike       decimal.Decimal `json:"strike"`
	Expiration   time.Time       `json:"expiration"`
	DTE          int             `json:"dte"`
	Mark         float64         `json:"mark"`
	Volume       int64           `json:"volume"`
	OpenInterest int64           `json:"open_interest"`

	Liquidity    float64         `json:"liquidity"`
	Scores       ComponentScores `json:"scores"`
	Composite    float64         `json:"composite_rank"`
	RankPosition int             `json:"rank_position"` // 1-based
	RunAt        time.Time       `json:"run_at"`
	JobID        uuid.UUID       `json:"job_id"`
}

// RankSet is a symbol's full ranking from one completed run
type RankSet struct {
	Symbol      string          `json:"symbol"`
	JobID       uuid.UUID       `json:"job_id"`
	AsOf        time.Time       `json:"as_of"`
	GeneratedAt time.Time       `json:"generated_at"`
	ConfigHash  string          `json:"config_hash"`
	Evaluated   int             `json:"evaluated"`
	Excluded    map[string]int  `json:"excluded,omitempty"` // InvalidReason -> count
	Ranks       []CompositeRank `json:"ranks"`
}

// Find returns the rank row for contractID
func (s *RankSet) Find(contractID string) (*CompositeRank, bool) {
	for i := range s.Ranks {
		if s.Ranks[i].ContractID == contractID {
			return &s.Ranks[i], true
		}
	}
	return nil, false
}

// Filter applies f and returns a copy; positions keep their original values
func (s *RankSet) Filter(f RankFilter) *RankSet {
	out := *s
	out.Ranks = make([]CompositeRank, 0, len(s.Ranks))
	for _, r := range s.Ranks {
		if f.Side != "" && r.Side != f.Side {
			continue
		}
		if f.Expiration != nil && !sameDay(r.Expiration, *f.Expiration) {
			continue
		}
		out.Ranks = append(out.Ranks, r)
		if f.Limit > 0 && len(out.Ranks) >= f.Limit {
			break
		}
	}
	return &out
}

// Previous builds the smoothing lookup from this (completed) set
func (s *RankSet) Previous() PreviousSnapshot {
	prev := make(PreviousSnapshot, len(s.Ranks))
	for _, r := range s.Ranks {
		prev[r.ContractID] = r.Scores.SmoothedMomentum
	}
	return prev
}

// RankFilter narrows a ranked-contracts query
type RankFilter struct {
	Expiration *time.Time
	Side       Side
	Limit      int
}

// PreviousSnapshot maps contract_id to the smoothed momentum of the last completed run.
// Read-only; nil means no completed run exists.
type PreviousSnapshot map[string]float64

// Lookup returns the previous smoothed momentum for contractID
func (p PreviousSnapshot) Lookup(contractID string) (float64, bool) {
	v, ok := p[contractID]
	return v, ok
}

// Contribution is one weighted component of a composite score
type Contribution struct {
	Component    string  `json:"component"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Explanation breaks a composite rank into its weighted parts
type Explanation struct {
	Symbol        string         `json:"symbol"`
	ContractID    string         `json:"contract_id"`
	RankPosition  int            `json:"rank_position"`
	Composite     float64        `json:"composite_rank"`
	Liquidity     float64        `json:"liquidity"`
	RawMomentum   float64        `json:"raw_momentum"`
	Contributions []Contribution `json:"contributions"`
	ConfigHash    string         `json:"config_hash"`
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
