package rankcfg

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

const weightTolerance = 1e-6

// Validate checks struct tags first, then cross-field rules
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return ValidationError{fe.Namespace(), fmt.Sprintf("failed %s=%s (value %v)", fe.Tag(), fe.Param(), fe.Value())}
		}
		return ValidationError{"config", err.Error()}
	}

	// === Weight sums ===
	if err := validateWeightsSum(cfg.Value.IVRankWeight + cfg.Value.SpreadWeight); err != nil {
		return ValidationError{"value", err.Error()}
	}
	m := cfg.Momentum
	if err := validateWeightsSum(m.PriceWeight + m.VolOIWeight + m.OIGrowthWeight); err != nil {
		return ValidationError{"momentum", err.Error()}
	}
	if err := validateWeightsSum(cfg.Composite.Sum()); err != nil {
		return ValidationError{"composite", err.Error()}
	}

	// === DTE tiers ===
	// 오름차순, 중복 금지
	prev := -1
	for i, t := range cfg.Greeks.DTETiers {
		if t.MaxDTE <= prev {
			return ValidationError{fmt.Sprintf("greeks.dte_tiers[%d]", i), "max_dte must be strictly increasing"}
		}
		prev = t.MaxDTE
	}
	if cfg.Greeks.LongDated.DeltaTarget <= 0 || cfg.Greeks.LongDated.DeltaTarget > 1 {
		return ValidationError{"greeks.long_dated.delta_target", "must be in (0, 1]"}
	}

	a := cfg.Greeks.Alignment
	if !(a.CounterTrend <= a.Neutral && a.Neutral <= a.WithTrend) {
		return ValidationError{"greeks.alignment", "must satisfy counter_trend <= neutral <= with_trend"}
	}

	return nil
}

func validateWeightsSum(sum float64) error {
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}
