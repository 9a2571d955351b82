package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperBot/internal/adapters/logger"
	"sniperBot/internal/domain"
)

type fakePortfolio struct {
	snap *PortfolioSnapshot
	err  error
}

func (f *fakePortfolio) GetPortfolio(ctx context.Context) (*PortfolioSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

type fakePrices struct{ price float64 }

func (f fakePrices) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return f.price, nil
}

func newTestManager(t *testing.T, snap *PortfolioSnapshot, market MarketConditionsProvider) (*EnhancedRiskManager, *fakePortfolio) {
	t.Helper()
	fp := &fakePortfolio{snap: snap}
	m, err := NewEnhancedRiskManager(Config{
		Limits:    DefaultRiskLimits(),
		Portfolio: fp,
		Market:    market,
		Prices:    fakePrices{price: 100},
		Logger:    logger.NewNopLogger(),
	})
	require.NoError(t, err)
	return m, fp
}

func healthyPortfolio() *PortfolioSnapshot {
	return &PortfolioSnapshot{TotalValue: 10000, AvailableBalance: 5000}
}

func TestValidateTradeRisk_ApprovesWithinLimits(t *testing.T) {
	m, _ := newTestManager(t, healthyPortfolio(), nil)
	res, err := m.ValidateTradeRisk(context.Background(), TradeRiskParams{Symbol: "BTCUSDT", Side: domain.Buy, QuoteOrderQty: 100})
	require.NoError(t, err)
	assert.True(t, res.Approved, res.Reasons)
	assert.Zero(t, res.RiskScore)
	assert.Zero(t, res.RecommendedSize)
}

func TestValidateTradeRisk_ConcentrationCritical(t *testing.T) {
	m, _ := newTestManager(t, healthyPortfolio(), nil)
	// 2000 / 10000 = 20% > 1.5 x 10%
	res, err := m.ValidateTradeRisk(context.Background(), TradeRiskParams{Symbol: "BTCUSDT", Side: domain.Buy, QuoteOrderQty: 2000, StopLossPercent: 1})
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.GreaterOrEqual(t, res.RiskScore, 25.0)
}

func TestValidateTradeRisk_ConcentrationAboveLimit(t *testing.T) {
	m, _ := newTestManager(t, healthyPortfolio(), nil)
	// 1200 / 10000 = 12%, above 10% but below 15%
	res, err := m.ValidateTradeRisk(context.Background(), TradeRiskParams{Symbol: "BTCUSDT", Side: domain.Buy, Quantity: 12, StopLossPercent: 1})
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, 10.0, res.RiskScore)
}

func TestValidateTradeRisk_DailyLossAndBalance(t *testing.T) {
	snap := healthyPortfolio()
	snap.AvailableBalance = 10
	m, _ := newTestManager(t, snap, nil)
	m.RecordDailyPnL(-480)

	res, err := m.ValidateTradeRisk(context.Background(), TradeRiskParams{Symbol: "BTCUSDT", Side: domain.Buy, QuoteOrderQty: 500})
	require.NoError(t, err)
	assert.False(t, res.Approved)
	// daily loss (+35) and minimum balance (+40)
	assert.Equal(t, 75.0, res.RiskScore)
	assert.Len(t, res.Reasons, 2)
	// score > 50 with a quote quantity: 10000 * 10% / 100
	assert.InDelta(t, 10, res.RecommendedSize, 1e-9)

	alerts := m.Alerts()
	require.NotEmpty(t, alerts)
	assert.Equal(t, SeverityCritical, alerts[len(alerts)-1].Severity)
}

func TestValidateTradeRisk_CorrelatedExposure(t *testing.T) {
	snap := healthyPortfolio()
	snap.Positions = []domain.Position{{Symbol: "BTCUSDC", Side: domain.Buy, Quantity: 45, CurrentPrice: 100, StopLossPrice: 99}}
	m, _ := newTestManager(t, snap, nil)

	// 4500 + 500 = 50% > 1.5 x 30%
	res, err := m.ValidateTradeRisk(context.Background(), TradeRiskParams{Symbol: "BTCUSDT", Side: domain.Buy, QuoteOrderQty: 500, StopLossPercent: 1})
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, 20.0, res.RiskScore)
}

func TestValidateTradeRisk_MarketConditionsOnlyRaiseScore(t *testing.T) {
	market := StaticMarketConditions{Volatility: VolatilityExtreme, LiquidityScore: 2, Sentiment: SentimentRiskOff}
	m, _ := newTestManager(t, healthyPortfolio(), market)
	res, err := m.ValidateTradeRisk(context.Background(), TradeRiskParams{Symbol: "NEWUSDT", Side: domain.Buy, QuoteOrderQty: 100})
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, 60.0, res.RiskScore)
	assert.Len(t, res.Warnings, 3)
	assert.Greater(t, res.RecommendedSize, 0.0)
}

func TestValidateTradeRisk_ProviderFailureDenies(t *testing.T) {
	m, fp := newTestManager(t, nil, nil)
	fp.err = errors.New("exchange down")
	res, err := m.ValidateTradeRisk(context.Background(), TradeRiskParams{Symbol: "BTCUSDT", Side: domain.Buy, QuoteOrderQty: 100})
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, 100.0, res.RiskScore)
}

func TestCheckEmergencyStop_FailsSafe(t *testing.T) {
	m, fp := newTestManager(t, nil, nil)
	fp.err = errors.New("exchange down")
	stop, reasons := m.CheckEmergencyStop(context.Background())
	assert.True(t, stop)
	assert.NotEmpty(t, reasons)
}

func TestCheckEmergencyStop_DrawdownAndHealthy(t *testing.T) {
	snap := healthyPortfolio()
	m, _ := newTestManager(t, snap, nil)

	stop, _ := m.CheckEmergencyStop(context.Background())
	assert.False(t, stop)

	snap.TotalValue = 8000 // 20% below the 10000 peak
	stop, reasons := m.CheckEmergencyStop(context.Background())
	assert.True(t, stop)
	assert.Contains(t, reasons[0], "drawdown")
}

func TestMonitorPortfolioRisk_HistoryAndConcentration(t *testing.T) {
	snap := &PortfolioSnapshot{
		TotalValue:       1000,
		AvailableBalance: 500,
		Positions: []domain.Position{
			{Symbol: "AUSDT", Quantity: 3, CurrentPrice: 100},
			{Symbol: "BUSDT", Quantity: 2, CurrentPrice: 100},
		},
	}
	m, _ := newTestManager(t, snap, nil)

	for i := 0; i < maxMetricsHistory+5; i++ {
		_, err := m.MonitorPortfolioRisk(context.Background())
		require.NoError(t, err)
	}
	history := m.MetricsHistory()
	assert.Len(t, history, maxMetricsHistory)
	last := history[len(history)-1]
	// 0.3^2 + 0.2^2 = 0.13
	assert.InDelta(t, 13, last.ConcentrationRisk, 1e-9)
	// 20% of 500 exposure is 100 = 10% of portfolio, above 80% of the limit
	assert.InDelta(t, 10, last.PortfolioRisk, 1e-9)

	var breach bool
	for _, a := range m.Alerts() {
		if a.Type == "threshold_breach" {
			breach = true
		}
	}
	assert.True(t, breach)
	assert.LessOrEqual(t, len(m.Alerts()), maxAlerts)
}

func TestRecordDailyPnL_RollsOverAtUTCMidnight(t *testing.T) {
	m, _ := newTestManager(t, healthyPortfolio(), nil)
	day := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return day }
	m.RecordDailyPnL(-100)
	m.RecordDailyPnL(40)
	assert.Equal(t, -60.0, m.DailyPnL())

	day = day.Add(2 * time.Hour)
	assert.Zero(t, m.DailyPnL())
	m.mu.RLock()
	assert.Equal(t, []float64{-60}, m.pnlHistory)
	m.mu.RUnlock()
}

func TestUpdateLimits(t *testing.T) {
	m, _ := newTestManager(t, healthyPortfolio(), nil)
	bad := DefaultRiskLimits()
	bad.MaxPortfolioRisk = 0
	assert.Error(t, m.UpdateLimits(context.Background(), bad))

	good := DefaultRiskLimits()
	good.MaxDailyLoss = 1000
	require.NoError(t, m.UpdateLimits(context.Background(), good))
	assert.Equal(t, 1000.0, m.Limits().MaxDailyLoss)
	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityInfo, alerts[0].Severity)
}

func TestDefaultCorrelation(t *testing.T) {
	assert.Equal(t, 1.0, DefaultCorrelation("BTCUSDT", "btcusdt"))
	assert.Equal(t, 0.9, DefaultCorrelation("BTCUSDT", "BTCUSDC"))
	assert.Equal(t, 0.7, DefaultCorrelation("BTCUSDT", "ETHUSDT"))
	assert.Equal(t, 0.3, DefaultCorrelation("BTCUSDT", "PEPEUSDT"))
}
