package strategy

import (
	"errors"
	"fmt"
)

// Validate checks every field range of s and returns all violations joined.
func Validate(s TradingStrategy) error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if s.Name == "" {
		add("name is required")
	}
	if !s.PositionSizing.IsValid() {
		add("positionSizing %q must be fixed, kelly or percentage", s.PositionSizing)
	}
	if s.MaxPositionSize <= 0 || s.MaxPositionSize > 1 {
		add("maxPositionSize must be in (0, 1], got %v", s.MaxPositionSize)
	}
	if s.StopLossPercent <= 0 || s.StopLossPercent > 50 {
		add("stopLossPercent must be in (0, 50], got %v", s.StopLossPercent)
	}
	if s.TakeProfitPercent <= 0 || s.TakeProfitPercent > 1000 {
		add("takeProfitPercent must be in (0, 1000], got %v", s.TakeProfitPercent)
	}
	if s.StopLossPercent >= s.TakeProfitPercent {
		add("stopLossPercent (%v) must be lower than takeProfitPercent (%v)", s.StopLossPercent, s.TakeProfitPercent)
	}
	if s.MaxDrawdownPercent <= 0 || s.MaxDrawdownPercent > 100 {
		add("maxDrawdownPercent must be in (0, 100], got %v", s.MaxDrawdownPercent)
	}
	if !s.OrderType.IsValid() {
		add("orderType %q is not supported", s.OrderType)
	}
	if !s.TimeInForce.IsValid() {
		add("timeInForce %q is not supported", s.TimeInForce)
	}
	if s.SlippageTolerance < 0 || s.SlippageTolerance > 10 {
		add("slippageTolerance must be in [0, 10], got %v", s.SlippageTolerance)
	}
	if s.MinConfidence < 0 || s.MinConfidence > 100 {
		add("minConfidence must be in [0, 100], got %v", s.MinConfidence)
	}
	if s.MultiPhaseEnabled {
		if s.PhaseCount < 2 || s.PhaseCount > 10 {
			add("phaseCount must be in [2, 10] when multi-phase is enabled, got %d", s.PhaseCount)
		}
		if s.PhaseDelayMs < 0 || s.PhaseDelayMs > 60000 {
			add("phaseDelayMs must be in [0, 60000], got %d", s.PhaseDelayMs)
		}
	}
	if s.TrailingStopEnabled && (s.TrailingStopPercent <= 0 || s.TrailingStopPercent > 50) {
		add("trailingStopPercent must be in (0, 50] when trailing stop is enabled, got %v", s.TrailingStopPercent)
	}
	if s.PartialTakeProfitEnabled && (s.PartialTakeProfitPercent <= 0 || s.PartialTakeProfitPercent >= 100) {
		add("partialTakeProfitPercent must be in (0, 100) when partial take-profit is enabled, got %v", s.PartialTakeProfitPercent)
	}
	return errors.Join(errs...)
}
