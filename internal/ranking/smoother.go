package ranking

import (
	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/internal/rankcfg"
)

// Smoother blends this run's momentum with the last completed run's
// ⭐ SSOT: 시계열 평활은 엔진 자체 모멘텀에만 적용 (Greeks/호가는 그대로)
type Smoother struct {
	alpha float64
}

// NewSmoother creates an EMA smoother with alpha = 2/(window+1)
func NewSmoother(cfg rankcfg.Smoothing) *Smoother {
	return &Smoother{alpha: cfg.Alpha()}
}

// Alpha returns the weight of the current value
func (s *Smoother) Alpha() float64 {
	return s.alpha
}

// Smooth returns alpha·current + (1-alpha)·previous.
// New contracts pass through unchanged.
func (s *Smoother) Smooth(contractID string, current float64, prev contracts.PreviousSnapshot) float64 {
	previous, ok := prev.Lookup(contractID)
	if !ok {
		return current
	}
	return s.alpha*current + (1-s.alpha)*previous
}
