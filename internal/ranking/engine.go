package ranking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/internal/rankcfg"
	"github.com/wonny/optionrank/internal/scoring"
	"github.com/wonny/optionrank/pkg/logger"
)

// Engine runs one symbol's chain through liquidity, scorers, smoother and ranker.
// It holds no per-run state, so one Engine serves every worker.
// ⭐ SSOT: 랭킹 파이프라인 (liquidity → value/momentum/greeks → smoother → ranker)
type Engine struct {
	cfg        *rankcfg.Config
	configHash string

	liquidity *scoring.LiquidityModel
	value     *scoring.ValueScorer
	momentum  *scoring.MomentumScorer
	greeks    *scoring.GreeksScorer
	smoother  *Smoother
	ranker    *Ranker

	logger *logger.Logger
}

// NewEngine creates a ranking engine from one weight set
func NewEngine(cfg *rankcfg.Config, log *logger.Logger) (*Engine, error) {
	hash, err := rankcfg.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash rank config: %w", err)
	}

	return &Engine{
		cfg:        cfg,
		configHash: hash,
		liquidity:  scoring.NewLiquidityModel(cfg.Liquidity),
		value:      scoring.NewValueScorer(cfg.Value),
		momentum:   scoring.NewMomentumScorer(cfg.Momentum),
		greeks:     scoring.NewGreeksScorer(cfg.Greeks),
		smoother:   NewSmoother(cfg.Smoothing),
		ranker:     NewRanker(cfg.Composite),
		logger:     log,
	}, nil
}

// ConfigHash returns the audit hash stored with every run
func (e *Engine) ConfigHash() string {
	return e.configHash
}

// Run scores and ranks chain. prev must come from the last completed run.
// Invalid contracts are filtered and counted; a non-finite score fails the run.
func (e *Engine) Run(chain *contracts.ChainSnapshot, prev contracts.PreviousSnapshot, jobID uuid.UUID, now time.Time) (*contracts.RankSet, error) {
	if chain == nil {
		return nil, fmt.Errorf("nil chain snapshot: %w", contracts.ErrComputation)
	}

	set := &contracts.RankSet{
		Symbol:      chain.Symbol,
		JobID:       jobID,
		AsOf:        chain.AsOf,
		GeneratedAt: now,
		ConfigHash:  e.configHash,
		Evaluated:   len(chain.Contracts),
		Excluded:    map[string]int{},
	}

	rows := make([]contracts.CompositeRank, 0, len(chain.Contracts))
	seen := make(map[string]struct{}, len(chain.Contracts))
	for i := range chain.Contracts {
		c := chain.Contracts[i]

		// 같은 contract_id는 처음 등장한 것만 평가
		err := c.Validate()
		if _, dup := seen[c.ContractID]; dup && c.ContractID != "" {
			err = &contracts.InvalidContractError{ContractID: c.ContractID, Reason: contracts.ReasonDuplicate, Detail: "repeated in chain"}
		}
		seen[c.ContractID] = struct{}{}

		if err != nil {
			reason := contracts.ReasonMissingField
			var ice *contracts.InvalidContractError
			if errors.As(err, &ice) {
				reason = ice.Reason
			}
			set.Excluded[string(reason)]++
			e.logger.WithFields(map[string]interface{}{
				"symbol":   chain.Symbol,
				"contract": c.ContractID,
				"reason":   reason,
			}).Debug("Excluded invalid contract")
			continue
		}

		if c.DTE == 0 && !c.Expiration.IsZero() && !chain.AsOf.IsZero() {
			c.DTE = contracts.DaysToExpiration(chain.AsOf, c.Expiration)
		}

		row, err := e.score(&c, chain, prev, jobID, now)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	set.Ranks = e.ranker.Rank(rows)

	for i := range set.Ranks {
		if !scoring.IsFinite(set.Ranks[i].Composite) {
			return nil, fmt.Errorf("composite for %s is not finite: %w", set.Ranks[i].ContractID, contracts.ErrComputation)
		}
	}

	fields := map[string]interface{}{
		"symbol":    chain.Symbol,
		"evaluated": set.Evaluated,
		"ranked":    len(set.Ranks),
		"excluded":  set.Evaluated - len(rows),
	}
	if len(set.Ranks) > 0 {
		fields["top_contract"] = set.Ranks[0].ContractID
		fields["top_score"] = set.Ranks[0].Composite
	}
	e.logger.WithFields(fields).Info("Ranking computed")

	return set, nil
}

func (e *Engine) score(c *contracts.ContractSnapshot, chain *contracts.ChainSnapshot, prev contracts.PreviousSnapshot, jobID uuid.UUID, now time.Time) (contracts.CompositeRank, error) {
	conf := e.liquidity.Confidence(c)
	raw, dampened := e.momentum.Score(c, chain.Return5P, conf.Combined)

	scores := contracts.ComponentScores{
		Value:            e.value.Score(c),
		RawMomentum:      raw,
		Momentum:         dampened,
		SmoothedMomentum: e.smoother.Smooth(c.ContractID, dampened, prev),
		Greeks:           e.greeks.Score(c, chain.Trend),
	}

	for name, v := range map[string]float64{
		"liquidity":         conf.Combined,
		"value":             scores.Value,
		"momentum":          scores.Momentum,
		"smoothed_momentum": scores.SmoothedMomentum,
		"greeks":            scores.Greeks,
	} {
		if !scoring.IsFinite(v) {
			return contracts.CompositeRank{}, fmt.Errorf("%s score for %s is not finite: %w", name, c.ContractID, contracts.ErrComputation)
		}
	}

	return contracts.CompositeRank{
		ContractID:   c.ContractID,
		Symbol:       chain.Symbol,
		Side:         c.Side,
		Strike:       c.Strike,
		Expiration:   c.Expiration,
		DTE:          c.DTE,
		Mark:         c.Mark,
		Volume:       c.Volume,
		OpenInterest: c.OpenInterest,
		Liquidity:    conf.Combined,
		Scores:       scores,
		RunAt:        now,
		JobID:        jobID,
	}, nil
}
