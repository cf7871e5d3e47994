package snapshot

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/optionrank/internal/contracts"
)

// chainPayload is the JSON chain format served by the quote service and read from files.
// Nullable fields are pointers so a missing value is distinguishable from zero.
type chainPayload struct {
	Symbol          string            `json:"symbol"`
	AsOf            time.Time         `json:"as_of"`
	UnderlyingPrice float64           `json:"underlying_price"`
	Return5P        float64           `json:"return_5p"`
	Trend           string            `json:"trend"`
	Contracts       []contractPayload `json:"contracts"`
}

type contractPayload struct {
	ContractID        string          `json:"contract_id"`
	Strike            decimal.Decimal `json:"strike"`
	Side              string          `json:"side"`
	Expiration        string          `json:"expiration"` // YYYY-MM-DD or RFC3339
	Bid               float64         `json:"bid"`
	Ask               float64         `json:"ask"`
	Mark              float64         `json:"mark"`
	Last              *float64        `json:"last"`
	Volume            *int64          `json:"volume"`
	OpenInterest      *int64          `json:"open_interest"`
	OpenInterestPrior *int64          `json:"open_interest_prior"`
	IV                *float64        `json:"iv"`
	IVLow52W          *float64        `json:"iv_low_52w"`
	IVHigh52W         *float64        `json:"iv_high_52w"`
	Delta             *float64        `json:"delta"`
	Gamma             *float64        `json:"gamma"`
	Theta             *float64        `json:"theta"`
	Vega              *float64        `json:"vega"`
}

// toChain converts a payload into the engine's snapshot.
// Missing volume/OI become 0; a missing Greek or IV marks only that contract.
func (p *chainPayload) toChain(symbol string) (*contracts.ChainSnapshot, error) {
	if p.Symbol != "" && !strings.EqualFold(p.Symbol, symbol) {
		return nil, fmt.Errorf("%w: payload is for %s, requested %s", contracts.ErrDataUnavailable, p.Symbol, symbol)
	}

	chain := &contracts.ChainSnapshot{
		Symbol:          symbol,
		AsOf:            p.AsOf,
		UnderlyingPrice: p.UnderlyingPrice,
		Return5P:        p.Return5P,
		Trend:           contracts.ParseTrend(p.Trend),
		Contracts:       make([]contracts.ContractSnapshot, 0, len(p.Contracts)),
	}

	for _, cp := range p.Contracts {
		chain.Contracts = append(chain.Contracts, cp.toContract(symbol, p.AsOf))
	}
	return chain, nil
}

func (cp *contractPayload) toContract(symbol string, asOf time.Time) contracts.ContractSnapshot {
	c := contracts.ContractSnapshot{
		ContractID:        cp.ContractID,
		Symbol:            symbol,
		Strike:            cp.Strike,
		Bid:               cp.Bid,
		Ask:               cp.Ask,
		Mark:              cp.Mark,
		Last:              floatOr(cp.Last, 0),
		Volume:            intOr(cp.Volume, 0),
		OpenInterest:      intOr(cp.OpenInterest, 0),
		OpenInterestPrior: intOr(cp.OpenInterestPrior, 0),
	}

	// unparseable side stays as-is so Validate rejects it
	if side, err := contracts.ParseSide(cp.Side); err == nil {
		c.Side = side
	} else {
		c.Side = contracts.Side(cp.Side)
	}

	if exp, ok := parseExpiration(cp.Expiration); ok {
		c.Expiration = exp
		if !asOf.IsZero() {
			c.DTE = contracts.DaysToExpiration(asOf, exp)
		}
	} else {
		c.Missing = append(c.Missing, "expiration")
	}

	c.IV = required(&c, "iv", cp.IV)
	c.Delta = required(&c, "delta", cp.Delta)
	c.Gamma = required(&c, "gamma", cp.Gamma)
	c.Theta = required(&c, "theta", cp.Theta)
	c.Vega = required(&c, "vega", cp.Vega)

	// 52주 IV 범위가 없으면 현재 IV로 채움 (iv rank = 50)
	c.IVLow52W = floatOr(cp.IVLow52W, c.IV)
	c.IVHigh52W = floatOr(cp.IVHigh52W, c.IV)

	return c
}

func parseExpiration(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func required(c *contracts.ContractSnapshot, name string, v *float64) float64 {
	if v == nil {
		c.Missing = append(c.Missing, name)
		return 0
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int64, def int64) int64 {
	if v == nil {
		return def
	}
	return *v
}
