package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

func newExecuteTrade(t *testing.T, repo *memoryRepo, trading *fakeTrading, notifier *recordingNotifier) *ExecuteTradeUseCase {
	t.Helper()
	uc, err := NewExecuteTradeUseCase(repo, trading, notifier, testLogger, nil)
	require.NoError(t, err)
	return uc
}

func marketBuy(tradeID string) ExecuteTradeInput {
	return ExecuteTradeInput{
		TradeID:       tradeID,
		Symbol:        "BTCUSDT",
		Side:          domain.Buy,
		Type:          domain.OrderTypeMarket,
		QuoteOrderQty: 100,
		PaperTrade:    true,
	}
}

func TestExecuteTrade_MarketBuyFills(t *testing.T) {
	repo, trading, notifier := newMemoryRepo(), newFakeTrading(), &recordingNotifier{}
	trade := seedTrade(repo, true)
	uc := newExecuteTrade(t, repo, trading, notifier)

	res := uc.Execute(context.Background(), marketBuy(trade.ID))

	require.True(t, res.Success, res.Error)
	assert.Equal(t, domain.TradeStatusCompleted, res.Trade.Status)
	require.NotNil(t, res.Trade.TotalCost)
	assert.InDelta(t, 100, res.Trade.TotalCost.Float(), 1e-9)
	assert.InDelta(t, 50000, res.Trade.EntryPrice.Float(), 1e-9)
	assert.InDelta(t, 0.002, res.Trade.Quantity, 1e-12)
	assert.Equal(t, domain.OrderStatusFilled, res.Order.Status)
	assert.Equal(t, "ex-1", res.Order.ExchangeOrderID)

	stored := repo.stored(trade.ID)
	assert.Equal(t, domain.TradeStatusCompleted, stored.Status)
	require.Len(t, stored.Orders, 1)
	assert.Equal(t, domain.OrderStatusFilled, stored.Orders[0].Status)
	uc.WaitNotifications()
	assert.Equal(t, []string{trade.ID}, notifier.completion)

	require.Len(t, trading.executed, 1)
	sent := trading.executed[0]
	assert.Equal(t, 100.0, sent.QuoteOrderQty)
	assert.True(t, sent.PaperTrade)
	assert.NotEmpty(t, sent.ClientOrderID)
}

func TestExecuteTrade_FinalizedTradeIsUntouched(t *testing.T) {
	repo, trading := newMemoryRepo(), newFakeTrading()
	trade := seedTrade(repo, true)
	uc := newExecuteTrade(t, repo, trading, &recordingNotifier{})

	require.True(t, uc.Execute(context.Background(), marketBuy(trade.ID)).Success)
	before := repo.stored(trade.ID).Clone()
	updates := repo.updates

	for _, status := range []domain.TradeStatus{domain.TradeStatusCompleted, domain.TradeStatusFailed, domain.TradeStatusCancelled} {
		stored := repo.stored(trade.ID)
		stored.Status = status
		before.Status = status

		res := uc.Execute(context.Background(), marketBuy(trade.ID))
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "already finalized")
		assert.Equal(t, KindInvalidState, res.ErrorKind)
		assert.Equal(t, before, repo.stored(trade.ID))
	}
	assert.Equal(t, updates, repo.updates)
	assert.Equal(t, 1, trading.executions())
}

func TestExecuteTrade_ValidatesInput(t *testing.T) {
	repo := newMemoryRepo()
	trade := seedTrade(repo, true)
	uc := newExecuteTrade(t, repo, newFakeTrading(), &recordingNotifier{})

	tests := []struct {
		name   string
		mutate func(*ExecuteTradeInput)
		want   string
	}{
		{"unknown side", func(in *ExecuteTradeInput) { in.Side = "HOLD" }, "side"},
		{"unknown type", func(in *ExecuteTradeInput) { in.Type = "ICEBERG" }, "type"},
		{"no quantity", func(in *ExecuteTradeInput) { in.QuoteOrderQty = 0 }, "quantity or quoteOrderQty is required"},
		{"both quantities", func(in *ExecuteTradeInput) { in.Quantity = 1 }, "mutually exclusive"},
		{"limit without price", func(in *ExecuteTradeInput) { in.Type = domain.OrderTypeLimit }, "price"},
		{"stop limit without stop price", func(in *ExecuteTradeInput) {
			in.Type = domain.OrderTypeStopLimit
			in.Price = 1
		}, "stopPrice"},
		{"bad time in force", func(in *ExecuteTradeInput) { in.TimeInForce = "DAY" }, "timeInForce"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := marketBuy(trade.ID)
			tt.mutate(&in)
			res := uc.Execute(context.Background(), in)
			assert.False(t, res.Success)
			assert.Equal(t, KindValidation, res.ErrorKind)
			assert.Contains(t, res.Error, tt.want)
		})
	}
	assert.Equal(t, domain.TradeStatusExecuting, repo.stored(trade.ID).Status)
}

func TestExecuteTrade_RejectsMismatches(t *testing.T) {
	repo, trading := newMemoryRepo(), newFakeTrading()
	trade := seedTrade(repo, true)
	uc := newExecuteTrade(t, repo, trading, &recordingNotifier{})

	in := marketBuy(trade.ID)
	in.Symbol = "ETHUSDT"
	res := uc.Execute(context.Background(), in)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "does not match trade symbol")

	in = marketBuy(trade.ID)
	in.PaperTrade = false
	res = uc.Execute(context.Background(), in)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "paperTrade")

	trading.tradeable = false
	res = uc.Execute(context.Background(), marketBuy(trade.ID))
	assert.False(t, res.Success)
	assert.Equal(t, KindBusinessRule, res.ErrorKind)

	res = uc.Execute(context.Background(), marketBuy("missing"))
	assert.False(t, res.Success)
	assert.Equal(t, KindNotFound, res.ErrorKind)

	assert.Zero(t, trading.executions())
}

func TestExecuteTrade_ExchangeRejectionFailsTrade(t *testing.T) {
	repo, trading, notifier := newMemoryRepo(), newFakeTrading(), &recordingNotifier{}
	trading.executeFn = func(ctx context.Context, p ports.TradeExecutionParams) (*ports.TradeExecutionResult, error) {
		return &ports.TradeExecutionResult{Error: "retries exhausted", ErrorCode: ports.CodeSymbolNotTradeable}, nil
	}
	trade := seedTrade(repo, true)
	uc := newExecuteTrade(t, repo, trading, notifier)

	res := uc.Execute(context.Background(), marketBuy(trade.ID))
	uc.WaitNotifications()

	assert.False(t, res.Success)
	assert.Equal(t, KindExchange, res.ErrorKind)
	assert.Equal(t, ports.CodeSymbolNotTradeable, res.ErrorCode)
	stored := repo.stored(trade.ID)
	assert.Equal(t, domain.TradeStatusFailed, stored.Status)
	assert.Equal(t, "retries exhausted", stored.ErrorMessage)
	assert.Equal(t, domain.OrderStatusRejected, stored.Orders[0].Status)
	assert.Equal(t, []string{"retries exhausted"}, notifier.failures)
}

func TestExecuteTrade_ServiceErrorFailsTrade(t *testing.T) {
	repo, trading := newMemoryRepo(), newFakeTrading()
	trading.executeFn = func(ctx context.Context, p ports.TradeExecutionParams) (*ports.TradeExecutionResult, error) {
		return nil, &ports.ExchangeError{Code: ports.CodeRateLimited, Message: "too many requests"}
	}
	trade := seedTrade(repo, true)

	res := newExecuteTrade(t, repo, trading, &recordingNotifier{}).Execute(context.Background(), marketBuy(trade.ID))

	assert.False(t, res.Success)
	assert.Equal(t, ports.CodeRateLimited, res.ErrorCode)
	assert.Equal(t, domain.TradeStatusFailed, repo.stored(trade.ID).Status)
}

func TestExecuteTrade_PartialFillKeepsTradeExecuting(t *testing.T) {
	repo, trading, notifier := newMemoryRepo(), newFakeTrading(), &recordingNotifier{}
	trading.executeFn = func(ctx context.Context, p ports.TradeExecutionParams) (*ports.TradeExecutionResult, error) {
		r := filledResult("0.001", "50000")
		r.Data.Status = ports.ExchangeStatusPartiallyFilled
		return r, nil
	}
	trade := seedTrade(repo, true)
	uc := newExecuteTrade(t, repo, trading, notifier)

	res := uc.Execute(context.Background(), marketBuy(trade.ID))
	uc.WaitNotifications()

	require.True(t, res.Success)
	assert.Equal(t, domain.OrderStatusPartiallyFilled, res.Order.Status)
	assert.Equal(t, domain.TradeStatusExecuting, repo.stored(trade.ID).Status)
	assert.Len(t, notifier.executions, 1)
	assert.Empty(t, notifier.completion)
}

func TestExecuteTrade_AcceptedOrderIsSubmitted(t *testing.T) {
	repo, trading := newMemoryRepo(), newFakeTrading()
	trading.executeFn = func(ctx context.Context, p ports.TradeExecutionParams) (*ports.TradeExecutionResult, error) {
		r := filledResult("0", "0")
		r.Data.Status = ports.ExchangeStatusNew
		return r, nil
	}
	trade := seedTrade(repo, true)

	res := newExecuteTrade(t, repo, trading, &recordingNotifier{}).Execute(context.Background(), marketBuy(trade.ID))

	require.True(t, res.Success)
	assert.Equal(t, domain.OrderStatusSubmitted, res.Order.Status)
	assert.Equal(t, domain.TradeStatusExecuting, res.Trade.Status)
}

func TestExecuteTrade_PanicBecomesSafeFailure(t *testing.T) {
	repo, trading := newMemoryRepo(), newFakeTrading()
	trading.executeFn = func(ctx context.Context, p ports.TradeExecutionParams) (*ports.TradeExecutionResult, error) {
		panic("nil map write")
	}
	trade := seedTrade(repo, true)

	res := newExecuteTrade(t, repo, trading, &recordingNotifier{}).Execute(context.Background(), marketBuy(trade.ID))

	assert.False(t, res.Success)
	assert.Equal(t, KindUnexpected, res.ErrorKind)
	assert.Equal(t, unexpectedErrorMessage, res.Error)
	assert.Equal(t, domain.TradeStatusExecuting, repo.stored(trade.ID).Status)
}

func TestExecuteTrade_PersistenceFailureIsReported(t *testing.T) {
	repo := newMemoryRepo()
	trade := seedTrade(repo, true)
	repo.updateErr = ports.ErrUpdateFailed

	res := newExecuteTrade(t, repo, newFakeTrading(), &recordingNotifier{}).Execute(context.Background(), marketBuy(trade.ID))

	assert.False(t, res.Success)
	assert.Equal(t, KindUnexpected, res.ErrorKind)
}

func TestCanExecuteTrade(t *testing.T) {
	repo, trading := newMemoryRepo(), newFakeTrading()
	trade := seedTrade(repo, true)
	uc := newExecuteTrade(t, repo, trading, &recordingNotifier{})
	ctx := context.Background()

	got, err := uc.CanExecuteTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.True(t, got.CanExecute)

	got, err = uc.CanExecuteTrade(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, got.CanExecute)
	assert.Contains(t, got.Reason, "not found")

	trading.tradeable = false
	got, err = uc.CanExecuteTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.False(t, got.CanExecute)

	repo.stored(trade.ID).Status = domain.TradeStatusCancelled
	got, err = uc.CanExecuteTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.False(t, got.CanExecute)
	assert.Contains(t, got.Reason, "already finalized")
	assert.Zero(t, trading.executions())
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, KindValidation, ClassifyError(domain.NewValidationError("x", 1, "bad")))
	assert.Equal(t, KindBusinessRule, ClassifyError(&domain.BusinessRuleViolationError{Rule: "r"}))
	assert.Equal(t, KindInvalidState, ClassifyError(&domain.InvalidOrderStateError{}))
	assert.Equal(t, KindNotFound, ClassifyError(ports.ErrNotFound))
	assert.Equal(t, KindExchange, ClassifyError(&ports.ExchangeError{Code: 1}))
	assert.Equal(t, KindUnexpected, ClassifyError(errBoom))
}
