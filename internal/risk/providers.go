package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// Volatility buckets.
type Volatility string

const (
	VolatilityLow     Volatility = "LOW"
	VolatilityMedium  Volatility = "MEDIUM"
	VolatilityHigh    Volatility = "HIGH"
	VolatilityExtreme Volatility = "EXTREME"
)

// Sentiment is the broad risk appetite of the market.
type Sentiment string

const (
	SentimentRiskOn  Sentiment = "RISK_ON"
	SentimentNeutral Sentiment = "NEUTRAL"
	SentimentRiskOff Sentiment = "RISK_OFF"
)

// MarketConditions describes the market a trade is entering.
type MarketConditions struct {
	Volatility     Volatility
	LiquidityScore float64 // 0 (illiquid) .. 10 (deep)
	Sentiment      Sentiment
}

// NeutralMarketConditions is used when no market data is available.
func NeutralMarketConditions() MarketConditions {
	return MarketConditions{Volatility: VolatilityMedium, LiquidityScore: 10, Sentiment: SentimentNeutral}
}

// MarketConditionsProvider supplies market conditions for a symbol. An empty
// symbol asks for the general market.
type MarketConditionsProvider interface {
	GetMarketConditions(ctx context.Context, symbol string) (MarketConditions, error)
}

// StaticMarketConditions always returns the same conditions.
type StaticMarketConditions MarketConditions

func (s StaticMarketConditions) GetMarketConditions(ctx context.Context, symbol string) (MarketConditions, error) {
	return MarketConditions(s), nil
}

// PortfolioSnapshot is the account state the checks run against.
type PortfolioSnapshot struct {
	TotalValue       float64 // USDT
	AvailableBalance float64 // free USDT
	Positions        []domain.Position
}

// PortfolioProvider supplies the current portfolio.
type PortfolioProvider interface {
	GetPortfolio(ctx context.Context) (*PortfolioSnapshot, error)
}

// PriceProvider supplies the latest price for a symbol. ports.TradingService satisfies it.
type PriceProvider interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// CorrelationEstimator estimates the correlation of two symbols in [0, 1].
type CorrelationEstimator interface {
	EstimateCorrelation(a, b string) float64
}

// CorrelationFunc adapts a function to CorrelationEstimator.
type CorrelationFunc func(a, b string) float64

func (f CorrelationFunc) EstimateCorrelation(a, b string) float64 { return f(a, b) }

var quoteSuffixes = []string{"USDT", "USDC", "BUSD", "BTC", "ETH"}

var majors = map[string]bool{"BTC": true, "ETH": true}

// BaseAsset strips a known quote asset suffix from symbol.
func BaseAsset(symbol string) string {
	s := strings.ToUpper(symbol)
	for _, q := range quoteSuffixes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return strings.TrimSuffix(s, q)
		}
	}
	return s
}

// DefaultCorrelation is a heuristic, not a statistical model: identical
// symbols 1.0, same base asset 0.9, two majors 0.7, anything else 0.3.
func DefaultCorrelation(a, b string) float64 {
	if strings.EqualFold(a, b) {
		return 1.0
	}
	ba, bb := BaseAsset(a), BaseAsset(b)
	if ba == bb {
		return 0.9
	}
	if majors[ba] && majors[bb] {
		return 0.7
	}
	return 0.3
}

// ExchangePortfolioProvider builds a portfolio from exchange balances, valuing
// every non-quote asset at its USDT ticker price.
type ExchangePortfolioProvider struct {
	exchange ports.ExchangeClient
	logger   ports.Logger
}

// NewExchangePortfolioProvider creates a provider over exchange.
func NewExchangePortfolioProvider(exchange ports.ExchangeClient, logger ports.Logger) *ExchangePortfolioProvider {
	return &ExchangePortfolioProvider{exchange: exchange, logger: logger}
}

func (p *ExchangePortfolioProvider) GetPortfolio(ctx context.Context) (*PortfolioSnapshot, error) {
	balances, err := p.exchange.GetAccountBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("get account balances: %w", err)
	}

	snap := &PortfolioSnapshot{}
	for _, b := range balances {
		total := b.Free + b.Locked
		if total <= 0 {
			continue
		}
		if b.Asset == domain.QuoteAsset {
			snap.AvailableBalance = b.Free
			snap.TotalValue += total
			continue
		}
		symbol := b.Asset + domain.QuoteAsset
		price, err := p.exchange.GetTickerPrice(ctx, symbol)
		if err != nil {
			if errors.Is(err, ports.ErrSymbolNotFound) {
				continue
			}
			p.logger.Warn(ctx, "Could not price balance", map[string]interface{}{"asset": b.Asset, "error": err.Error()})
			continue
		}
		pos := domain.Position{Symbol: symbol, Side: domain.Buy, Quantity: total, CurrentPrice: price, EntryPrice: price}
		snap.Positions = append(snap.Positions, pos)
		snap.TotalValue += pos.MarketValue()
	}
	return snap, nil
}
