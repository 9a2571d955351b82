package market

import (
	"fmt"

	"sniperBot/internal/domain"
)

// ATR computes the Average True Range with Wilder smoothing. The first value
// is the simple mean of the first period true ranges.
func ATR(klines []*domain.Kline, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("ATR period must be positive, got %d", period)
	}
	if len(klines) < period+1 {
		return 0, fmt.Errorf("not enough data points for ATR calculation: need %d, got %d", period+1, len(klines))
	}

	trueRanges := make([]float64, len(klines))
	trueRanges[0] = klines[0].High - klines[0].Low
	for i := 1; i < len(klines); i++ {
		trueRanges[i] = klines[i].TrueRange(klines[i-1].Close)
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)
	for i := period; i < len(klines); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
	}
	return atr, nil
}

// SMA is the simple moving average of the last period closes.
func SMA(klines []*domain.Kline, period int) (float64, error) {
	if period <= 0 || len(klines) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate SMA for period %d", len(klines), period)
	}
	total := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		total += klines[i].Close
	}
	return total / float64(period), nil
}

// EMA is the exponential moving average seeded with the SMA of the first period closes.
func EMA(klines []*domain.Kline, period int) (float64, error) {
	if period <= 0 || len(klines) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate EMA for period %d", len(klines), period)
	}
	multiplier := 2.0 / float64(period+1)
	ema, err := SMA(klines[:period], period)
	if err != nil {
		return 0, err
	}
	for i := period; i < len(klines); i++ {
		ema = (klines[i].Close-ema)*multiplier + ema
	}
	return ema, nil
}
