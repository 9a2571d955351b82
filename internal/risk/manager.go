package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

const (
	// DefaultStopLossFraction is assumed when a trade carries no stop-loss.
	DefaultStopLossFraction = 0.20
	// CorrelationThreshold marks two symbols as correlated.
	CorrelationThreshold = 0.7

	maxAlerts         = 50
	maxMetricsHistory = 100
	maxPnLHistory     = 365
)

// Alert severities.
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

// TradeRiskParams describes a candidate trade.
type TradeRiskParams struct {
	Symbol          string
	Side            domain.OrderSide
	Quantity        float64
	Price           float64 // optional, fetched when zero
	QuoteOrderQty   float64
	StopLossPercent float64 // 0 means DefaultStopLossFraction
}

// RiskValidationResult is the outcome of ValidateTradeRisk.
type RiskValidationResult struct {
	Approved        bool
	RiskScore       float64
	Reasons         []string
	Warnings        []string
	RecommendedSize float64 // base quantity, 0 when no reduction is suggested
}

// RiskAlert is an entry in the bounded alert buffer.
type RiskAlert struct {
	ID        string
	Severity  string
	Type      string
	Message   string
	Timestamp time.Time
	Data      map[string]interface{}
}

// Config wires an EnhancedRiskManager.
type Config struct {
	Limits      RiskLimits
	Portfolio   PortfolioProvider
	Market      MarketConditionsProvider // optional
	Prices      PriceProvider
	Correlation CorrelationEstimator // optional
	Logger      ports.Logger
	Metrics     ports.MetricsRecorder // optional
}

// EnhancedRiskManager is the multi-check pre-trade gate and portfolio monitor.
type EnhancedRiskManager struct {
	mu          sync.RWMutex
	limits      RiskLimits
	portfolio   PortfolioProvider
	market      MarketConditionsProvider
	prices      PriceProvider
	correlation CorrelationEstimator
	logger      ports.Logger
	metrics     ports.MetricsRecorder
	now         func() time.Time

	alerts     []RiskAlert
	history    []RiskMetrics
	dailyPnL   float64
	pnlDay     string
	pnlHistory []float64
	peakValue  float64
}

// NewEnhancedRiskManager validates cfg and creates the engine.
func NewEnhancedRiskManager(cfg Config) (*EnhancedRiskManager, error) {
	if cfg.Portfolio == nil {
		return nil, fmt.Errorf("portfolio provider is required")
	}
	if cfg.Prices == nil {
		return nil, fmt.Errorf("price provider is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid risk limits: %w", err)
	}
	if cfg.Market == nil {
		cfg.Market = StaticMarketConditions(NeutralMarketConditions())
	}
	if cfg.Correlation == nil {
		cfg.Correlation = CorrelationFunc(DefaultCorrelation)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = ports.NopMetrics{}
	}
	return &EnhancedRiskManager{
		limits:      cfg.Limits,
		portfolio:   cfg.Portfolio,
		market:      cfg.Market,
		prices:      cfg.Prices,
		correlation: cfg.Correlation,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		now:         time.Now,
	}, nil
}

// Limits returns the current limits.
func (m *EnhancedRiskManager) Limits() RiskLimits {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limits
}

// UpdateLimits replaces the limits and records an INFO alert.
func (m *EnhancedRiskManager) UpdateLimits(ctx context.Context, limits RiskLimits) error {
	if err := limits.Validate(); err != nil {
		return fmt.Errorf("invalid risk limits: %w", err)
	}
	m.mu.Lock()
	old := m.limits
	m.limits = limits
	m.mu.Unlock()

	m.emitAlert(ctx, SeverityInfo, "limits_updated", "Risk limits updated", map[string]interface{}{
		"old": old,
		"new": limits,
	})
	return nil
}

// RecordDailyPnL adds realised P&L to the current UTC day. On day rollover
// the previous day's total moves into the history used for the Sharpe ratio.
func (m *EnhancedRiskManager) RecordDailyPnL(pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked()
	m.dailyPnL += pnl
}

// DailyPnL returns today's realised P&L.
func (m *EnhancedRiskManager) DailyPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked()
	return m.dailyPnL
}

func (m *EnhancedRiskManager) rolloverLocked() {
	day := m.now().UTC().Format("2006-01-02")
	if m.pnlDay == day {
		return
	}
	if m.pnlDay != "" {
		m.pnlHistory = append(m.pnlHistory, m.dailyPnL)
		if len(m.pnlHistory) > maxPnLHistory {
			m.pnlHistory = m.pnlHistory[len(m.pnlHistory)-maxPnLHistory:]
		}
	}
	m.pnlDay = day
	m.dailyPnL = 0
}

// Alerts returns a copy of the alert buffer, oldest first.
func (m *EnhancedRiskManager) Alerts() []RiskAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RiskAlert(nil), m.alerts...)
}

// MetricsHistory returns a copy of the stored metric snapshots, oldest first.
func (m *EnhancedRiskManager) MetricsHistory() []RiskMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RiskMetrics(nil), m.history...)
}

func (m *EnhancedRiskManager) emitAlert(ctx context.Context, severity, alertType, msg string, data map[string]interface{}) {
	alert := RiskAlert{
		ID:        uuid.NewString(),
		Severity:  severity,
		Type:      alertType,
		Message:   msg,
		Timestamp: m.now().UTC(),
		Data:      data,
	}
	m.mu.Lock()
	m.alerts = append(m.alerts, alert)
	if len(m.alerts) > maxAlerts {
		m.alerts = m.alerts[len(m.alerts)-maxAlerts:]
	}
	m.mu.Unlock()

	m.metrics.IncRiskAlert(severity)
	fields := map[string]interface{}{"severity": severity, "type": alertType}
	for k, v := range data {
		fields[k] = v
	}
	if severity == SeverityCritical {
		m.logger.Warn(ctx, "Risk alert: "+msg, fields)
		return
	}
	m.logger.Info(ctx, "Risk alert: "+msg, fields)
}

// ValidateTradeRisk runs the six pre-trade checks. Failing to gather
// portfolio, price or market data denies the trade with a score of 100.
func (m *EnhancedRiskManager) ValidateTradeRisk(ctx context.Context, params TradeRiskParams) (*RiskValidationResult, error) {
	if params.Symbol == "" {
		return nil, domain.NewValidationError("symbol", params.Symbol, "symbol is required")
	}
	if params.Quantity <= 0 && params.QuoteOrderQty <= 0 {
		return nil, domain.NewValidationError("quantity", params.Quantity, "quantity or quoteOrderQty is required")
	}

	var (
		portfolio  *PortfolioSnapshot
		conditions MarketConditions
		price      = params.Price
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := m.portfolio.GetPortfolio(gctx)
		if err != nil {
			return fmt.Errorf("portfolio: %w", err)
		}
		portfolio = p
		return nil
	})
	g.Go(func() error {
		c, err := m.market.GetMarketConditions(gctx, params.Symbol)
		if err != nil {
			return fmt.Errorf("market conditions: %w", err)
		}
		conditions = c
		return nil
	})
	if price <= 0 {
		g.Go(func() error {
			p, err := m.prices.GetCurrentPrice(gctx, params.Symbol)
			if err != nil {
				return fmt.Errorf("price: %w", err)
			}
			price = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.logger.Error(ctx, err, "Risk data unavailable, denying trade", map[string]interface{}{"symbol": params.Symbol})
		res := &RiskValidationResult{Approved: false, RiskScore: 100, Reasons: []string{"risk assessment unavailable: " + err.Error()}}
		m.metrics.ObserveRiskScore(res.RiskScore, false)
		return res, nil
	}

	limits := m.Limits()
	dailyPnL := m.DailyPnL()

	positionValue := params.QuoteOrderQty
	if positionValue <= 0 {
		positionValue = params.Quantity * price
	}
	stopFraction := DefaultStopLossFraction
	if params.StopLossPercent > 0 {
		stopFraction = params.StopLossPercent / 100
	}
	tradeRisk := positionValue * stopFraction

	res := &RiskValidationResult{Approved: true}
	deny := func(score float64, reason string) {
		res.Approved = false
		res.RiskScore += score
		res.Reasons = append(res.Reasons, reason)
	}
	warn := func(score float64, warning string) {
		res.RiskScore += score
		res.Warnings = append(res.Warnings, warning)
	}

	portfolioValue := portfolio.TotalValue

	// 1. Portfolio risk
	if portfolioValue > 0 {
		currentRisk := 0.0
		for _, p := range portfolio.Positions {
			currentRisk += p.RiskAmount(DefaultStopLossFraction)
		}
		totalRiskPct := (currentRisk + tradeRisk) / portfolioValue * 100
		if totalRiskPct > limits.MaxPortfolioRisk {
			deny(30, fmt.Sprintf("portfolio risk %.2f%% would exceed limit %.2f%%", totalRiskPct, limits.MaxPortfolioRisk))
		}
	} else {
		deny(30, "portfolio value is zero")
	}

	// 2. Concentration
	if portfolioValue > 0 {
		concentration := positionValue / portfolioValue * 100
		switch {
		case concentration > 1.5*limits.MaxSinglePositionRisk:
			deny(25, fmt.Sprintf("position concentration %.2f%% critically exceeds limit %.2f%%", concentration, limits.MaxSinglePositionRisk))
		case concentration > limits.MaxSinglePositionRisk:
			deny(10, fmt.Sprintf("position concentration %.2f%% exceeds limit %.2f%%", concentration, limits.MaxSinglePositionRisk))
		}
	}

	// 3. Correlation
	if portfolioValue > 0 {
		correlated := 0.0
		hasCorrelated := false
		for _, p := range portfolio.Positions {
			if m.correlation.EstimateCorrelation(params.Symbol, p.Symbol) > CorrelationThreshold {
				correlated += p.MarketValue()
				hasCorrelated = true
			}
		}
		if hasCorrelated {
			exposure := (correlated + positionValue) / portfolioValue * 100
			switch {
			case exposure > 1.5*limits.MaxCorrelatedExposure:
				deny(20, fmt.Sprintf("correlated exposure %.2f%% critically exceeds limit %.2f%%", exposure, limits.MaxCorrelatedExposure))
			case exposure > limits.MaxCorrelatedExposure:
				warn(5, fmt.Sprintf("correlated exposure %.2f%% exceeds limit %.2f%%", exposure, limits.MaxCorrelatedExposure))
			}
		}
	}

	// 4. Daily loss
	if projected := math.Abs(dailyPnL) + tradeRisk; projected > limits.MaxDailyLoss {
		deny(35, fmt.Sprintf("projected daily loss %.2f would exceed limit %.2f", projected, limits.MaxDailyLoss))
	}

	// 5. Market conditions
	switch conditions.Volatility {
	case VolatilityHigh:
		warn(15, "high market volatility")
	case VolatilityExtreme:
		warn(30, "extreme market volatility")
	}
	if conditions.LiquidityScore < 3 {
		warn(20, fmt.Sprintf("low liquidity (score %.1f/10)", conditions.LiquidityScore))
	}
	if conditions.Sentiment == SentimentRiskOff {
		warn(10, "risk-off market sentiment")
	}

	// 6. Minimum balance
	if portfolio.AvailableBalance < limits.MinAccountBalance {
		deny(40, fmt.Sprintf("available balance %.2f is below minimum %.2f", portfolio.AvailableBalance, limits.MinAccountBalance))
	}

	if res.RiskScore > 50 && params.QuoteOrderQty > 0 && price > 0 && portfolioValue > 0 {
		maxRiskAmount := portfolioValue * limits.MaxSinglePositionRisk / 100
		res.RecommendedSize = maxRiskAmount / price
	}

	fields := map[string]interface{}{
		"symbol":    params.Symbol,
		"riskScore": res.RiskScore,
		"approved":  res.Approved,
		"reasons":   res.Reasons,
	}
	switch {
	case res.RiskScore > 70:
		m.emitAlert(ctx, SeverityCritical, "trade_risk", "High risk trade attempt", fields)
	case res.RiskScore > 40:
		m.emitAlert(ctx, SeverityWarning, "trade_risk", "Elevated risk trade attempt", fields)
	}
	m.metrics.ObserveRiskScore(res.RiskScore, res.Approved)
	m.logger.Debug(ctx, "Trade risk validated", fields)
	return res, nil
}
