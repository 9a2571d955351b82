package market

import (
	"context"
	"math"

	"sniperBot/internal/ports"
	"sniperBot/internal/risk"
)

// Config tunes the analyzer.
type Config struct {
	Interval    string // kline interval, e.g. "15m"
	Lookback    int    // klines fetched
	ATRPeriod   int
	FastPeriod  int
	SlowPeriod  int
	DepthLimit  int
	TrendMargin float64 // fast/slow ratio band treated as neutral
}

// DefaultConfig returns 50 x 15m klines, ATR(14), SMA 10/30 and 20 book levels.
func DefaultConfig() Config {
	return Config{
		Interval:    "15m",
		Lookback:    50,
		ATRPeriod:   14,
		FastPeriod:  10,
		SlowPeriod:  30,
		DepthLimit:  20,
		TrendMargin: 0.01,
	}
}

// Analyzer derives risk.MarketConditions from exchange data: volatility from
// ATR as a percentage of price, sentiment from a fast/slow SMA trend and
// liquidity from order book depth.
type Analyzer struct {
	exchange ports.ExchangeClient
	cfg      Config
	logger   ports.Logger
}

var _ risk.MarketConditionsProvider = (*Analyzer)(nil)

// NewAnalyzer creates an analyzer.
func NewAnalyzer(exchange ports.ExchangeClient, cfg Config, logger ports.Logger) *Analyzer {
	return &Analyzer{exchange: exchange, cfg: cfg, logger: logger}
}

// GetMarketConditions never fails on missing data: a symbol without history
// (a fresh listing) is rated HIGH volatility, a missing book as illiquid.
func (a *Analyzer) GetMarketConditions(ctx context.Context, symbol string) (risk.MarketConditions, error) {
	if symbol == "" {
		return risk.NeutralMarketConditions(), nil
	}
	conditions := risk.MarketConditions{Volatility: risk.VolatilityHigh, Sentiment: risk.SentimentNeutral}

	klines, err := a.exchange.GetKlines(ctx, symbol, a.cfg.Interval, a.cfg.Lookback)
	if err != nil {
		a.logger.Warn(ctx, "Klines unavailable for market analysis", map[string]interface{}{"symbol": symbol, "error": err.Error()})
	} else if len(klines) > 0 {
		last := klines[len(klines)-1].Close
		if atr, err := ATR(klines, a.cfg.ATRPeriod); err == nil && last > 0 {
			conditions.Volatility = ClassifyVolatility(atr / last * 100)
		}
		fast, errFast := SMA(klines, a.cfg.FastPeriod)
		slow, errSlow := SMA(klines, a.cfg.SlowPeriod)
		if errFast == nil && errSlow == nil && slow > 0 {
			conditions.Sentiment = ClassifySentiment(fast/slow, a.cfg.TrendMargin)
		}
	}

	book, err := a.exchange.GetOrderBook(ctx, symbol, a.cfg.DepthLimit)
	if err != nil {
		a.logger.Warn(ctx, "Order book unavailable for market analysis", map[string]interface{}{"symbol": symbol, "error": err.Error()})
	} else {
		conditions.LiquidityScore = LiquidityScore(book)
	}
	return conditions, nil
}

// ClassifyVolatility buckets ATR% into LOW (<1), MEDIUM (<3), HIGH (<6) or EXTREME.
func ClassifyVolatility(atrPct float64) risk.Volatility {
	switch {
	case atrPct < 1:
		return risk.VolatilityLow
	case atrPct < 3:
		return risk.VolatilityMedium
	case atrPct < 6:
		return risk.VolatilityHigh
	default:
		return risk.VolatilityExtreme
	}
}

// ClassifySentiment maps a fast/slow ratio to RISK_ON, RISK_OFF or NEUTRAL.
func ClassifySentiment(ratio, margin float64) risk.Sentiment {
	switch {
	case ratio > 1+margin:
		return risk.SentimentRiskOn
	case ratio < 1-margin:
		return risk.SentimentRiskOff
	default:
		return risk.SentimentNeutral
	}
}

// LiquidityScore maps the quote notional resting in the book onto 0..10:
// 100 USDT or less is 0, 1,000,000 USDT or more is 10, log-linear between.
func LiquidityScore(book *ports.OrderBook) float64 {
	depth := 0.0
	for _, l := range book.Bids {
		depth += l.Price * l.Quantity
	}
	for _, l := range book.Asks {
		depth += l.Price * l.Quantity
	}
	if depth <= 0 {
		return 0
	}
	score := (math.Log10(depth) - 2) * 2.5
	return math.Max(0, math.Min(10, score))
}
