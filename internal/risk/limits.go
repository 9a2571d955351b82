package risk

import (
	"errors"
	"fmt"
)

// RiskLimits configures the pre-trade gate. Percentages are 0..100 of
// portfolio value; MaxDailyLoss and MinAccountBalance are USDT amounts.
type RiskLimits struct {
	MaxPortfolioRisk       float64 `yaml:"maxPortfolioRisk"`
	MaxSinglePositionRisk  float64 `yaml:"maxSinglePositionRisk"`
	MaxDailyLoss           float64 `yaml:"maxDailyLoss"`
	MaxDrawdown            float64 `yaml:"maxDrawdown"`
	MaxConcurrentPositions int     `yaml:"maxConcurrentPositions"`
	MaxCorrelatedExposure  float64 `yaml:"maxCorrelatedExposure"`
	MinAccountBalance      float64 `yaml:"minAccountBalance"`
}

// DefaultRiskLimits returns the limits used when nothing is configured.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPortfolioRisk:       10,
		MaxSinglePositionRisk:  10,
		MaxDailyLoss:           500,
		MaxDrawdown:            15,
		MaxConcurrentPositions: 5,
		MaxCorrelatedExposure:  30,
		MinAccountBalance:      50,
	}
}

// Validate reports every out-of-range limit.
func (l RiskLimits) Validate() error {
	var errs []error
	pct := func(name string, v float64) {
		if v <= 0 || v > 100 {
			errs = append(errs, fmt.Errorf("%s must be in (0, 100], got %v", name, v))
		}
	}
	pct("maxPortfolioRisk", l.MaxPortfolioRisk)
	pct("maxSinglePositionRisk", l.MaxSinglePositionRisk)
	pct("maxDrawdown", l.MaxDrawdown)
	pct("maxCorrelatedExposure", l.MaxCorrelatedExposure)
	if l.MaxDailyLoss <= 0 {
		errs = append(errs, fmt.Errorf("maxDailyLoss must be positive, got %v", l.MaxDailyLoss))
	}
	if l.MaxConcurrentPositions <= 0 {
		errs = append(errs, fmt.Errorf("maxConcurrentPositions must be positive, got %d", l.MaxConcurrentPositions))
	}
	if l.MinAccountBalance < 0 {
		errs = append(errs, fmt.Errorf("minAccountBalance must not be negative, got %v", l.MinAccountBalance))
	}
	return errors.Join(errs...)
}
