package domain

// Position is an open holding as seen by the risk engine. It is derived from
// exchange account state and never persisted.
type Position struct {
	Symbol          string
	Side            OrderSide
	EntryPrice      float64
	Quantity        float64
	CurrentPrice    float64
	UnrealizedPnL   float64
	StopLossPrice   float64 // 0 when unset
	TakeProfitPrice float64 // 0 when unset
}

// MarketValue is quantity valued at the current price.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// RiskAmount is the loss taken if the stop is hit. Without a stop the loss
// is estimated as defaultStopFraction of the market value.
func (p Position) RiskAmount(defaultStopFraction float64) float64 {
	if p.StopLossPrice <= 0 || p.CurrentPrice <= 0 {
		return p.MarketValue() * defaultStopFraction
	}
	diff := p.CurrentPrice - p.StopLossPrice
	if p.Side == Sell {
		diff = p.StopLossPrice - p.CurrentPrice
	}
	if diff < 0 {
		return 0
	}
	return diff * p.Quantity
}
