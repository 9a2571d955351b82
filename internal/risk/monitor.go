package risk

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RiskMetrics is a portfolio risk snapshot.
type RiskMetrics struct {
	Timestamp         time.Time
	PortfolioValue    float64
	TotalExposure     float64
	PortfolioRisk     float64 // % of portfolio at risk
	ConcentrationRisk float64 // Herfindahl-Hirschman index x100
	DailyPnL          float64
	CurrentDrawdown   float64 // % below peak portfolio value
	MaxDrawdownPeriod int     // consecutive snapshots in drawdown
	SharpeRatio       float64
	LiquidityRisk     float64 // 0..10
	PositionCount     int
}

// CalculateRiskMetrics computes a snapshot without storing it.
func (m *EnhancedRiskManager) CalculateRiskMetrics(ctx context.Context) (RiskMetrics, error) {
	portfolio, err := m.portfolio.GetPortfolio(ctx)
	if err != nil {
		return RiskMetrics{}, fmt.Errorf("portfolio: %w", err)
	}

	rm := RiskMetrics{
		Timestamp:      m.now().UTC(),
		PortfolioValue: portfolio.TotalValue,
		PositionCount:  len(portfolio.Positions),
		DailyPnL:       m.DailyPnL(),
	}

	risk := 0.0
	for _, p := range portfolio.Positions {
		v := p.MarketValue()
		rm.TotalExposure += v
		risk += p.RiskAmount(DefaultStopLossFraction)
		if portfolio.TotalValue > 0 {
			w := v / portfolio.TotalValue
			rm.ConcentrationRisk += w * w
		}

		c, err := m.market.GetMarketConditions(ctx, p.Symbol)
		if err != nil {
			return RiskMetrics{}, fmt.Errorf("market conditions for %s: %w", p.Symbol, err)
		}
		rm.LiquidityRisk = math.Max(rm.LiquidityRisk, 10-c.LiquidityScore)
	}
	rm.ConcentrationRisk *= 100
	if portfolio.TotalValue > 0 {
		rm.PortfolioRisk = risk / portfolio.TotalValue * 100
	}

	m.mu.Lock()
	if portfolio.TotalValue > m.peakValue {
		m.peakValue = portfolio.TotalValue
	}
	if m.peakValue > 0 {
		rm.CurrentDrawdown = (m.peakValue - portfolio.TotalValue) / m.peakValue * 100
	}
	rm.SharpeRatio = sharpe(m.pnlHistory)
	rm.MaxDrawdownPeriod = drawdownPeriod(m.history, rm.CurrentDrawdown)
	m.mu.Unlock()

	return rm, nil
}

// MonitorPortfolioRisk computes a snapshot, appends it to the bounded
// history and raises alerts for limits above 80% utilisation.
func (m *EnhancedRiskManager) MonitorPortfolioRisk(ctx context.Context) (RiskMetrics, error) {
	rm, err := m.CalculateRiskMetrics(ctx)
	if err != nil {
		m.logger.Error(ctx, err, "Portfolio risk monitoring failed")
		return RiskMetrics{}, err
	}

	m.mu.Lock()
	m.history = append(m.history, rm)
	if len(m.history) > maxMetricsHistory {
		m.history = m.history[len(m.history)-maxMetricsHistory:]
	}
	limits := m.limits
	m.mu.Unlock()

	check := func(name string, value, limit float64) {
		if limit <= 0 || value <= 0.8*limit {
			return
		}
		severity := SeverityWarning
		if value > limit {
			severity = SeverityCritical
		}
		m.emitAlert(ctx, severity, "threshold_breach", fmt.Sprintf("%s at %.0f%% of limit", name, value/limit*100), map[string]interface{}{
			"metric": name,
			"value":  value,
			"limit":  limit,
		})
	}
	check("portfolio risk", rm.PortfolioRisk, limits.MaxPortfolioRisk)
	check("drawdown", rm.CurrentDrawdown, limits.MaxDrawdown)
	check("daily loss", -rm.DailyPnL, limits.MaxDailyLoss)
	check("open positions", float64(rm.PositionCount), float64(limits.MaxConcurrentPositions))

	m.logger.Debug(ctx, "Portfolio risk snapshot", map[string]interface{}{
		"portfolioValue": rm.PortfolioValue,
		"portfolioRisk":  rm.PortfolioRisk,
		"concentration":  rm.ConcentrationRisk,
		"drawdown":       rm.CurrentDrawdown,
		"liquidityRisk":  rm.LiquidityRisk,
	})
	return rm, nil
}

// CheckEmergencyStop reports whether trading must halt. It fails safe: when
// metrics cannot be computed the answer is stop.
func (m *EnhancedRiskManager) CheckEmergencyStop(ctx context.Context) (bool, []string) {
	rm, err := m.CalculateRiskMetrics(ctx)
	if err != nil {
		m.emitAlert(ctx, SeverityCritical, "emergency_stop", "Risk metrics unavailable, stopping", map[string]interface{}{"error": err.Error()})
		return true, []string{"risk metrics unavailable: " + err.Error()}
	}
	limits := m.Limits()

	var reasons []string
	if rm.CurrentDrawdown > limits.MaxDrawdown {
		reasons = append(reasons, fmt.Sprintf("drawdown %.2f%% exceeds %.2f%%", rm.CurrentDrawdown, limits.MaxDrawdown))
	}
	if -rm.DailyPnL > limits.MaxDailyLoss {
		reasons = append(reasons, fmt.Sprintf("daily loss %.2f exceeds %.2f", -rm.DailyPnL, limits.MaxDailyLoss))
	}
	if rm.PortfolioRisk > 1.5*limits.MaxPortfolioRisk {
		reasons = append(reasons, fmt.Sprintf("portfolio risk %.2f%% exceeds 1.5x limit", rm.PortfolioRisk))
	}
	if rm.LiquidityRisk > 8 {
		reasons = append(reasons, fmt.Sprintf("liquidity risk %.1f is above 8", rm.LiquidityRisk))
	}
	if len(reasons) > 0 {
		m.emitAlert(ctx, SeverityCritical, "emergency_stop", "Emergency stop triggered", map[string]interface{}{"reasons": reasons})
		return true, reasons
	}
	return false, nil
}

// StartMonitoring runs MonitorPortfolioRisk and CheckEmergencyStop every
// interval until ctx is done. onStop is called when an emergency stop fires.
func (m *EnhancedRiskManager) StartMonitoring(ctx context.Context, interval time.Duration, onStop func(reasons []string)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m.logger.Info(ctx, "Risk monitoring started", map[string]interface{}{"interval": interval.String()})
	for {
		select {
		case <-ctx.Done():
			m.logger.Info(ctx, "Risk monitoring stopped")
			return
		case <-ticker.C:
			_, _ = m.MonitorPortfolioRisk(ctx)
			if stop, reasons := m.CheckEmergencyStop(ctx); stop && onStop != nil {
				onStop(reasons)
			}
		}
	}
}

func sharpe(pnl []float64) float64 {
	if len(pnl) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range pnl {
		mean += v
	}
	mean /= float64(len(pnl))
	variance := 0.0
	for _, v := range pnl {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(len(pnl)))
	if std == 0 {
		return 0
	}
	return mean / std
}

// drawdownPeriod counts the trailing run of snapshots in drawdown, including
// the current one.
func drawdownPeriod(history []RiskMetrics, current float64) int {
	if current <= 0 {
		return 0
	}
	n := 1
	for i := len(history) - 1; i >= 0 && history[i].CurrentDrawdown > 0; i-- {
		n++
	}
	return n
}
