package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sniperBot/internal/domain"
)

func TestAnalyzeReturns(t *testing.T) {
	m := AnalyzeReturns([]float64{0.1, -0.05, 0.1, -0.05})
	assert.Equal(t, 4, m.Trades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.Equal(t, 0.5, m.WinRate)
	assert.InDelta(t, 0.025, m.MeanReturn, 1e-12)
	assert.InDelta(t, 0.075, m.StdDev, 1e-12)
	assert.InDelta(t, 1.0/3.0, m.SharpeProxy, 1e-9)
	assert.InDelta(t, 0.05, m.MaxDrawdown, 1e-12)
	assert.Equal(t, 1, m.MaxConsecutiveLosses)

	empty := AnalyzeReturns(nil)
	assert.Zero(t, empty.SharpeProxy)
}

func TestSummarize(t *testing.T) {
	money := func(v float64) *domain.Money { m := domain.USDT(v); return &m }
	start := time.Now().Add(-time.Minute)
	end := start.Add(2 * time.Second)

	trades := []*domain.Trade{
		{Status: domain.TradeStatusCompleted, TotalCost: money(100), TotalRevenue: money(130), RealizedPnL: money(30), ExecutionStartedAt: &start, ExecutionCompletedAt: &end},
		{Status: domain.TradeStatusCompleted, TotalCost: money(100), TotalRevenue: money(90), RealizedPnL: money(-10)},
		{Status: domain.TradeStatusCompleted, TotalCost: money(50)},
		{Status: domain.TradeStatusFailed},
		{Status: domain.TradeStatusCancelled},
	}
	m := Summarize("u1", trades, time.Time{}, time.Time{})

	assert.Equal(t, 5, m.TotalTrades)
	assert.Equal(t, 3, m.CompletedTrades)
	assert.Equal(t, 1, m.FailedTrades)
	assert.Equal(t, 1, m.CancelledTrades)
	assert.Equal(t, 0.5, m.WinRate)
	assert.InDelta(t, 30, m.AverageWin, 1e-9)
	assert.InDelta(t, 10, m.AverageLoss, 1e-9)
	assert.InDelta(t, 20, m.TotalPnL, 1e-9)
	assert.InDelta(t, 470, m.TotalVolume, 1e-9)
	assert.Equal(t, 2*time.Second, m.AverageExecTime)
	assert.InDelta(t, 0.75, m.SuccessRate, 1e-12)
}
