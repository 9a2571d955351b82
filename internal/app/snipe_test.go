package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperBot/internal/domain"
	"sniperBot/internal/execution"
	"sniperBot/internal/ports"
	"sniperBot/internal/risk"
	"sniperBot/internal/strategy"
)

type stubPortfolio struct{ snap risk.PortfolioSnapshot }

func (p stubPortfolio) GetPortfolio(ctx context.Context) (*risk.PortfolioSnapshot, error) {
	s := p.snap
	return &s, nil
}

type sniperFixture struct {
	repo        *memoryRepo
	trading     *fakeTrading
	notifier    *recordingNotifier
	riskManager *risk.EnhancedRiskManager
	sniper      *Sniper
}

func newSniperFixture(t *testing.T, portfolio risk.PortfolioSnapshot, racer *execution.OrderRacer) *sniperFixture {
	t.Helper()
	f := &sniperFixture{repo: newMemoryRepo(), trading: newFakeTrading(), notifier: &recordingNotifier{}}

	start := newStartSniping(t, f.repo, f.trading, f.notifier)
	execute := newExecuteTrade(t, f.repo, f.trading, f.notifier)
	riskManager, err := risk.NewEnhancedRiskManager(risk.Config{
		Limits:    risk.DefaultRiskLimits(),
		Portfolio: stubPortfolio{snap: portfolio},
		Prices:    f.trading,
		Logger:    testLogger,
	})
	require.NoError(t, err)
	f.riskManager = riskManager

	f.sniper, err = NewSniper(SniperDeps{
		Start:      start,
		Execute:    execute,
		Strategies: strategy.NewManager(testLogger),
		Risk:       riskManager,
		Portfolio:  stubPortfolio{snap: portfolio},
		Trading:    f.trading,
		Repository: f.repo,
		Window: execution.NewWindowTimer(execution.WindowConfig{
			PreLaunchOffset:  0,
			PostLaunchWindow: 200 * time.Millisecond,
			PollInterval:     time.Millisecond,
		}, testLogger),
		Racer:  racer,
		Logger: testLogger,
	})
	require.NoError(t, err)
	return f
}

func healthySnapshot() risk.PortfolioSnapshot {
	return risk.PortfolioSnapshot{TotalValue: 10000, AvailableBalance: 5000}
}

func TestSnipe_PaperTradeCompletes(t *testing.T) {
	f := newSniperFixture(t, healthySnapshot(), nil)

	res := f.sniper.Snipe(context.Background(), SnipeRequest{
		UserID:           "u1",
		Symbol:           "BTCUSDT",
		ConfidenceScore:  85,
		PositionSizeUSDT: 100,
		PaperTrade:       true,
	})

	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Risk)
	assert.True(t, res.Risk.Approved)
	// Balanced sizing without history uses 10% of 5000, capped by the 100 budget.
	assert.InDelta(t, 100, res.QuoteSize, 1e-9)
	assert.Equal(t, domain.TradeStatusCompleted, f.repo.stored(res.TradeID).Status)
	assert.Equal(t, strategy.Balanced, f.repo.stored(res.TradeID).Strategy)

	require.Len(t, f.trading.executed, 1)
	assert.Equal(t, domain.OrderTypeMarket, f.trading.executed[0].Type)
	assert.InDelta(t, 100, f.trading.executed[0].QuoteOrderQty, 1e-9)
}

func TestSnipe_RiskDenialFailsTrade(t *testing.T) {
	f := newSniperFixture(t, risk.PortfolioSnapshot{TotalValue: 10000, AvailableBalance: 10}, nil)

	res := f.sniper.Snipe(context.Background(), SnipeRequest{
		UserID:           "u1",
		Symbol:           "BTCUSDT",
		ConfidenceScore:  85,
		PositionSizeUSDT: 100,
		PaperTrade:       true,
	})

	assert.False(t, res.Success)
	assert.Equal(t, KindBusinessRule, res.ErrorKind)
	assert.Contains(t, res.Error, "risk check denied")
	require.NotNil(t, res.Risk)
	assert.False(t, res.Risk.Approved)
	assert.Equal(t, domain.TradeStatusFailed, f.repo.stored(res.TradeID).Status)
	f.sniper.WaitNotifications()
	assert.Len(t, f.notifier.failures, 1)
	assert.Zero(t, f.trading.executions())
}

func TestSnipe_StartFailureCreatesNothing(t *testing.T) {
	f := newSniperFixture(t, healthySnapshot(), nil)

	res := f.sniper.Snipe(context.Background(), SnipeRequest{UserID: "u1", Symbol: "BTCUSDT", ConfidenceScore: 10, PositionSizeUSDT: 100})

	assert.False(t, res.Success)
	assert.Empty(t, res.TradeID)
	assert.Zero(t, f.repo.count())
}

func TestSnipe_RacesLiveLaunch(t *testing.T) {
	ex := newStubExchange()
	ex.placeFn = func(req ports.OrderRequest) (*ports.OrderResponse, error) {
		return &ports.OrderResponse{
			OrderID:      "race-1",
			Symbol:       req.Symbol,
			Status:       ports.ExchangeStatusFilled,
			OrigQuantity: 0.002,
			ExecutedQty:  0.002,
			AvgPrice:     50000,
		}, nil
	}
	racer := execution.NewOrderRacer(execution.RacingConfig{
		Enabled:             true,
		MaxConcurrentOrders: 1,
		BurstInterval:       time.Millisecond,
		AutoCancel:          true,
	}, ex, testLogger)
	f := newSniperFixture(t, healthySnapshot(), racer)

	res := f.sniper.Snipe(context.Background(), SnipeRequest{
		UserID:           "u1",
		Symbol:           "BTCUSDT",
		ConfidenceScore:  85,
		PositionSizeUSDT: 100,
		LaunchTime:       time.Now().Add(5 * time.Millisecond),
	})

	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Racing)
	assert.Equal(t, "race-1", res.Racing.FilledOrder.OrderID)
	stored := f.repo.stored(res.TradeID)
	assert.Equal(t, domain.TradeStatusCompleted, stored.Status)
	assert.InDelta(t, 100, stored.TotalCost.Float(), 1e-9)
	require.Len(t, stored.Orders, 1)
	assert.Equal(t, "race-1", stored.Orders[0].ExchangeOrderID)
	assert.Zero(t, f.trading.executions())
}

// seedClosedTrade stores a COMPLETED live trade with the given realised P&L.
func seedClosedTrade(t *testing.T, repo *memoryRepo, pnl float64) {
	t.Helper()
	trade := seedTrade(repo, false)
	cost := domain.USDT(1000)
	revenue := domain.USDT(1000 + pnl)
	realized := domain.USDT(pnl)
	trade.TotalCost = &cost
	trade.TotalRevenue = &revenue
	trade.RealizedPnL = &realized
	trade.Status = domain.TradeStatusCompleted
	require.NoError(t, repo.UpdateTrade(context.Background(), trade))
}

func TestSnipe_RealisedLossTodayDeniesOnDailyLoss(t *testing.T) {
	f := newSniperFixture(t, healthySnapshot(), nil)
	seedClosedTrade(t, f.repo, -600)

	req := SnipeRequest{UserID: "u1", Symbol: "BTCUSDT", ConfidenceScore: 85, PositionSizeUSDT: 100}
	res := f.sniper.Snipe(context.Background(), req)

	assert.False(t, res.Success)
	assert.Equal(t, KindBusinessRule, res.ErrorKind)
	assert.Contains(t, res.Error, "projected daily loss")
	assert.Zero(t, f.trading.executions())
	assert.InDelta(t, -600, f.riskManager.DailyPnL(), 1e-9)

	// The same loss is not recorded twice.
	_ = f.sniper.Snipe(context.Background(), req)
	assert.InDelta(t, -600, f.riskManager.DailyPnL(), 1e-9)
}

func TestSnipe_NoRealisedPnLKeepsDailyLossClear(t *testing.T) {
	f := newSniperFixture(t, healthySnapshot(), nil)

	res := f.sniper.Snipe(context.Background(), SnipeRequest{UserID: "u1", Symbol: "BTCUSDT", ConfidenceScore: 85, PositionSizeUSDT: 100})

	require.True(t, res.Success, res.Error)
	assert.Zero(t, f.riskManager.DailyPnL())
}
