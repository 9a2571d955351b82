package analytics

import (
	"math"
	"time"

	"sniperBot/internal/domain"
)

// ReturnMetrics describes a series of per-trade fractional returns.
type ReturnMetrics struct {
	Trades               int
	WinningTrades        int
	LosingTrades         int
	WinRate              float64
	TotalReturn          float64 // compounded
	MeanReturn           float64
	StdDev               float64
	SharpeProxy          float64 // MeanReturn / StdDev
	MaxDrawdown          float64 // fraction of peak equity
	MaxConsecutiveLosses int
}

// AnalyzeReturns computes ReturnMetrics over returns, in order.
func AnalyzeReturns(returns []float64) ReturnMetrics {
	m := ReturnMetrics{Trades: len(returns)}
	if len(returns) == 0 {
		return m
	}

	equity, peak := 1.0, 1.0
	losses := 0
	sum := 0.0
	for _, r := range returns {
		sum += r
		if r > 0 {
			m.WinningTrades++
			losses = 0
		} else {
			m.LosingTrades++
			losses++
			if losses > m.MaxConsecutiveLosses {
				m.MaxConsecutiveLosses = losses
			}
		}

		equity *= 1 + r
		if equity > peak {
			peak = equity
		} else if dd := (peak - equity) / peak; dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.Trades)
	m.TotalReturn = equity - 1
	m.MeanReturn = sum / float64(m.Trades)
	m.StdDev = StdDev(returns, m.MeanReturn)
	if m.StdDev > 0 {
		m.SharpeProxy = m.MeanReturn / m.StdDev
	}
	return m
}

// StdDev is the population standard deviation of values around mean.
func StdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)))
}

// Summarize aggregates trades into TradingMetrics. Win/loss statistics only
// consider trades with a realised P&L.
func Summarize(userID string, trades []*domain.Trade, from, to time.Time) *domain.TradingMetrics {
	m := &domain.TradingMetrics{UserID: userID, From: from, To: to}

	var (
		totalWin, totalLoss float64
		execTotal           time.Duration
		execCount           int
	)
	for _, t := range trades {
		m.TotalTrades++
		switch t.Status {
		case domain.TradeStatusCompleted:
			m.CompletedTrades++
		case domain.TradeStatusFailed:
			m.FailedTrades++
		case domain.TradeStatusCancelled:
			m.CancelledTrades++
		}
		if t.TotalCost != nil {
			m.TotalVolume += t.TotalCost.Float()
		}
		if t.TotalRevenue != nil {
			m.TotalVolume += t.TotalRevenue.Float()
		}
		if d := t.Duration(); d > 0 {
			execTotal += d
			execCount++
		}
		if t.RealizedPnL == nil {
			continue
		}
		pnl := t.RealizedPnL.Float()
		m.TotalPnL += pnl
		if pnl > 0 {
			m.WinningTrades++
			totalWin += pnl
		} else {
			m.LosingTrades++
			totalLoss += -pnl
		}
	}

	if closed := m.WinningTrades + m.LosingTrades; closed > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(closed)
	}
	if m.WinningTrades > 0 {
		m.AverageWin = totalWin / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = totalLoss / float64(m.LosingTrades)
	}
	if execCount > 0 {
		m.AverageExecTime = execTotal / time.Duration(execCount)
	}
	if finished := m.CompletedTrades + m.FailedTrades; finished > 0 {
		m.SuccessRate = float64(m.CompletedTrades) / float64(finished)
	}
	return m
}
