// Package scoring holds the per-contract scorers.
// Every scorer is pure and reads its weights from rankcfg.
package scoring

import "math"

const (
	minScore     = 0.0
	maxScore     = 100.0
	neutralScore = 50.0
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampScore(v float64) float64 {
	return clamp(v, minScore, maxScore)
}

// IsFinite reports whether v is neither NaN nor ±Inf
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
