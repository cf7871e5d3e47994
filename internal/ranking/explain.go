package ranking

import (
	"fmt"

	"github.com/wonny/optionrank/internal/contracts"
)

// Explain breaks one ranked contract into weighted contributions.
// Weights come from the same config the engine ranks with.
func (e *Engine) Explain(set *contracts.RankSet, contractID string) (*contracts.Explanation, error) {
	row, ok := set.Find(contractID)
	if !ok {
		return nil, fmt.Errorf("contract %s not in %s ranking: %w", contractID, set.Symbol, contracts.ErrRankingNotFound)
	}

	if set.ConfigHash != "" && set.ConfigHash != e.configHash {
		e.logger.WithFields(map[string]interface{}{
			"symbol":      set.Symbol,
			"stored_hash": set.ConfigHash,
			"engine_hash": e.configHash,
		}).Warn("Explaining ranking produced under a different config")
	}

	w := e.cfg.Composite
	parts := []contracts.Contribution{
		contribution("momentum", row.Scores.SmoothedMomentum, w.MomentumWeight),
		contribution("value", row.Scores.Value, w.ValueWeight),
		contribution("greeks", row.Scores.Greeks, w.GreeksWeight),
	}

	return &contracts.Explanation{
		Symbol:        set.Symbol,
		ContractID:    row.ContractID,
		RankPosition:  row.RankPosition,
		Composite:     row.Composite,
		Liquidity:     row.Liquidity,
		RawMomentum:   row.Scores.RawMomentum,
		Contributions: parts,
		ConfigHash:    set.ConfigHash,
	}, nil
}

func contribution(name string, score, weight float64) contracts.Contribution {
	return contracts.Contribution{
		Component:    name,
		Score:        score,
		Weight:       weight,
		Contribution: score * weight,
	}
}
