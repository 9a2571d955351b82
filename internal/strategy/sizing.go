package strategy

import "math"

const (
	// KellyCeiling is the quarter-Kelly cap applied before the strategy maximum.
	KellyCeiling = 0.25
	// MinDynamicFraction is the floor of volatility/confidence scaled sizing.
	MinDynamicFraction = 0.01
)

// SizingInput carries what position sizing may depend on.
type SizingInput struct {
	WinRate         float64 // 0..1
	AverageWin      float64
	AverageLoss     float64 // positive magnitude
	Volatility      float64 // 0..1, e.g. ATR as a fraction of price
	ConfidenceScore float64 // 0..100
}

// KellyFraction is the raw Kelly criterion f* = (b*p - q) / b with
// b = averageWin / averageLoss. ok is false when the inputs carry no edge
// information.
func KellyFraction(winRate, averageWin, averageLoss float64) (f float64, ok bool) {
	if averageWin <= 0 || averageLoss <= 0 || winRate <= 0 || winRate > 1 {
		return 0, false
	}
	b := averageWin / averageLoss
	p := winRate
	q := 1 - p
	return (b*p - q) / b, true
}

// PositionFraction returns the share of capital s allows for in.
func PositionFraction(s TradingStrategy, in SizingInput) float64 {
	switch s.PositionSizing {
	case SizingKelly:
		f, ok := KellyFraction(in.WinRate, in.AverageWin, in.AverageLoss)
		if !ok {
			return s.MaxPositionSize
		}
		f = math.Min(f, KellyCeiling)
		f = math.Max(f, 0)
		return math.Min(f, s.MaxPositionSize)
	case SizingPercentage:
		vol := math.Max(0.5, 1-in.Volatility)
		conf := 0.5 + in.ConfidenceScore/100
		f := s.MaxPositionSize * vol * conf
		return math.Min(math.Max(MinDynamicFraction, f), s.MaxPositionSize)
	default:
		return s.MaxPositionSize
	}
}
