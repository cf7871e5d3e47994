package contracts

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// NormalizeSymbol upper-cases and validates an underlying ticker
func NormalizeSymbol(s string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	if !symbolPattern.MatchString(sym) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
	}
	return sym, nil
}

// Side is the call/put variant of a contract.
// ⭐ SSOT: side 별 부호/목표 처리는 Side 메서드에서만
type Side string

const (
	SideCall Side = "call"
	SidePut  Side = "put"
)

// ParseSide accepts call/put in any case, plus the C/P shorthand
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return SideCall, nil
	case "put", "p":
		return SidePut, nil
	default:
		return "", fmt.Errorf("unknown option side %q", s)
	}
}

// Valid reports whether s is call or put
func (s Side) Valid() bool {
	return s == SideCall || s == SidePut
}

// DeltaMagnitude returns the unsigned delta compared against the DTE target.
// Puts are quoted with negative delta; calls with positive.
func (s Side) DeltaMagnitude(delta float64) float64 {
	return math.Abs(delta)
}

// Alignment classifies the side against the underlying trend
func (s Side) Alignment(t Trend) Alignment {
	switch {
	case t == TrendNeutral || t == "":
		return AlignmentNeutral
	case s == SideCall && t == TrendBullish, s == SidePut && t == TrendBearish:
		return AlignmentWith
	default:
		return AlignmentAgainst
	}
}

// Trend is the directional context of the underlying, supplied with the chain
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// ParseTrend maps unknown or empty labels to neutral
func ParseTrend(s string) Trend {
	switch Trend(strings.ToLower(strings.TrimSpace(s))) {
	case TrendBullish:
		return TrendBullish
	case TrendBearish:
		return TrendBearish
	default:
		return TrendNeutral
	}
}

// Alignment of a contract side with the trend
type Alignment int

const (
	AlignmentNeutral Alignment = iota
	AlignmentWith
	AlignmentAgainst
)

func (a Alignment) String() string {
	switch a {
	case AlignmentWith:
		return "with_trend"
	case AlignmentAgainst:
		return "counter_trend"
	default:
		return "neutral"
	}
}

// greekFields are the Missing names reported as missing_greek
var greekFields = map[string]bool{
	"iv":    true,
	"delta": true,
	"gamma": true,
	"theta": true,
	"vega":  true,
}

// ContractSnapshot is one option contract at one point in time
type ContractSnapshot struct {
	ContractID string          `json:"contract_id"`
	Symbol     string          `json:"symbol"`
	Strike     decimal.Decimal `json:"strike"`
	Side       Side            `json:"side"`
	Expiration time.Time       `json:"expiration"`
	DTE        int             `json:"dte"`

	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Mark float64 `json:"mark"`
	Last float64 `json:"last"`

	Volume            int64 `json:"volume"`
	OpenInterest      int64 `json:"open_interest"`
	OpenInterestPrior int64 `json:"open_interest_prior"` // 5 runs ago, 0 = unknown

	IV        float64 `json:"iv"`
	IVLow52W  float64 `json:"iv_low_52w"`
	IVHigh52W float64 `json:"iv_high_52w"`

	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`

	// Missing lists required fields the source could not supply
	Missing []string `json:"missing,omitempty"`
}

// Validate returns an *InvalidContractError when the contract must not be ranked
func (c *ContractSnapshot) Validate() error {
	switch {
	case c.ContractID == "":
		return &InvalidContractError{ContractID: c.ContractID, Reason: ReasonMissingField, Detail: "contract_id"}
	case !c.Side.Valid():
		return &InvalidContractError{ContractID: c.ContractID, Reason: ReasonMissingField, Detail: "side"}
	case len(c.Missing) > 0:
		reason := ReasonMissingField
		for _, f := range c.Missing {
			if greekFields[f] {
				reason = ReasonMissingGreek
				break
			}
		}
		return &InvalidContractError{ContractID: c.ContractID, Reason: reason, Detail: strings.Join(c.Missing, ",")}
	case c.Mark <= 0 || math.IsNaN(c.Mark):
		return &InvalidContractError{ContractID: c.ContractID, Reason: ReasonNonPositiveMark, Detail: fmt.Sprintf("mark=%v", c.Mark)}
	case c.Ask < c.Bid:
		return &InvalidContractError{ContractID: c.ContractID, Reason: ReasonCrossedQuote, Detail: fmt.Sprintf("bid=%v ask=%v", c.Bid, c.Ask)}
	}
	return nil
}

// ChainSnapshot is the single consistent view of a symbol's chain used by one run
type ChainSnapshot struct {
	Symbol          string             `json:"symbol"`
	AsOf            time.Time          `json:"as_of"`
	UnderlyingPrice float64            `json:"underlying_price"`
	Return5P        float64            `json:"return_5p"` // percent, e.g. 8 = +8%
	Trend           Trend              `json:"trend"`
	Contracts       []ContractSnapshot `json:"contracts"`
}

// DaysToExpiration counts calendar days between the snapshot date and expiration
func DaysToExpiration(asOf, expiration time.Time) int {
	a := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(expiration.Year(), expiration.Month(), expiration.Day(), 0, 0, 0, 0, time.UTC)
	days := int(e.Sub(a).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
