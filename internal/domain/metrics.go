package domain

import "time"

// TradingMetrics aggregates a user's trade history over a period.
type TradingMetrics struct {
	UserID          string
	From            time.Time
	To              time.Time
	TotalTrades     int
	CompletedTrades int
	FailedTrades    int
	CancelledTrades int
	WinningTrades   int
	LosingTrades    int
	WinRate         float64 // 0..1 over trades with realised P&L
	AverageWin      float64
	AverageLoss     float64 // positive magnitude
	TotalPnL        float64
	TotalVolume     float64
	AverageExecTime time.Duration
	SuccessRate     float64 // completed / (completed + failed)
}
