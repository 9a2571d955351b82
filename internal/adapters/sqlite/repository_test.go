package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"sniperBot/internal/adapters/logger"
	"sniperBot/internal/domain"
	"sniperBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a repository backed by a temporary database file.
func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: logger.NewNopLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTrade(t *testing.T, userID, symbol string) *domain.Trade {
	t.Helper()
	trade, err := domain.NewTrade(domain.TradeParams{
		UserID:           userID,
		Symbol:           symbol,
		IsAutoSnipe:      true,
		ConfidenceScore:  80,
		PaperTrade:       true,
		Strategy:         "balanced",
		StopLossPercent:  10,
		PositionSizeUSDT: 100,
	})
	require.NoError(t, err)
	return trade
}

// completedTrade builds a trade that bought qty at price.
func completedTrade(t *testing.T, userID string, qty, price float64) *domain.Trade {
	t.Helper()
	trade := newTrade(t, userID, "BTCUSDT")
	order, err := domain.NewOrder(domain.OrderParams{Symbol: "BTCUSDT", Side: domain.Buy, Type: domain.OrderTypeMarket, QuoteOrderQty: qty * price})
	require.NoError(t, err)
	require.NoError(t, trade.AddOrder(order))
	require.NoError(t, trade.StartExecution())
	require.NoError(t, order.MarkAsFilled("ex-1", qty, price))
	require.NoError(t, trade.CompleteExecution(domain.ExecutionFill{Side: domain.Buy, AvgPrice: price, Quantity: qty, Value: qty * price}))
	return trade
}

func TestRepository_SaveAndFindTrade(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	trade := completedTrade(t, "u1", 0.002, 50000)
	require.NoError(t, repo.SaveTrade(ctx, trade))

	found, err := repo.FindTradeByID(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, trade.UserID, found.UserID)
	assert.Equal(t, domain.TradeStatusCompleted, found.Status)
	assert.True(t, found.IsAutoSnipe)
	assert.True(t, found.PaperTrade)
	assert.Equal(t, "balanced", found.Strategy)
	assert.Equal(t, 10.0, found.StopLossPercent)
	require.NotNil(t, found.TotalCost)
	assert.True(t, trade.TotalCost.Amount.Equal(found.TotalCost.Amount))
	require.NotNil(t, found.EntryPrice)
	assert.InDelta(t, 50000, found.EntryPrice.Float(), 1e-9)
	assert.Nil(t, found.ExitPrice)
	require.NotNil(t, found.ExecutionStartedAt)
	require.NotNil(t, found.ExecutionCompletedAt)
	assert.WithinDuration(t, trade.CreatedAt, found.CreatedAt, time.Millisecond)

	require.Len(t, found.Orders, 1)
	assert.Equal(t, trade.Orders[0].ID, found.Orders[0].ID)
	assert.Equal(t, domain.OrderStatusFilled, found.Orders[0].Status)
	assert.Equal(t, "ex-1", found.Orders[0].ExchangeOrderID)
	assert.InDelta(t, 0.002, found.Orders[0].ExecutedQty, 1e-12)
}

func TestRepository_FindMissingTradeReturnsNil(t *testing.T) {
	repo := setupTestDB(t)
	found, err := repo.FindTradeByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepository_SaveDuplicate(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	trade := newTrade(t, "u1", "BTCUSDT")

	require.NoError(t, repo.SaveTrade(ctx, trade))
	err := repo.SaveTrade(ctx, trade)
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)
}

func TestRepository_UpdateTrade(t *testing.T) {
	tests := []struct {
		name    string
		save    bool
		wantErr error
	}{
		{name: "existing trade", save: true},
		{name: "unknown trade", save: false, wantErr: ports.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupTestDB(t)
			ctx := context.Background()
			trade := newTrade(t, "u1", "BTCUSDT")
			if tt.save {
				require.NoError(t, repo.SaveTrade(ctx, trade))
			}

			order, err := domain.NewOrder(domain.OrderParams{Symbol: "BTCUSDT", Side: domain.Buy, Type: domain.OrderTypeLimit, Quantity: 1, Price: 10})
			require.NoError(t, err)
			require.NoError(t, trade.AddOrder(order))
			require.NoError(t, order.MarkAsRejected("insufficient balance"))
			require.NoError(t, trade.MarkAsFailed("insufficient balance"))

			err = repo.UpdateTrade(ctx, trade)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			found, err := repo.FindTradeByID(ctx, trade.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.TradeStatusFailed, found.Status)
			assert.Equal(t, "insufficient balance", found.ErrorMessage)
			require.Len(t, found.Orders, 1)
			assert.Equal(t, domain.OrderStatusRejected, found.Orders[0].Status)
			assert.Equal(t, "insufficient balance", found.Orders[0].RejectReason)

			// A second update replaces rather than duplicates orders.
			require.NoError(t, repo.UpdateTrade(ctx, trade))
			found, err = repo.FindTradeByID(ctx, trade.ID)
			require.NoError(t, err)
			assert.Len(t, found.Orders, 1)
		})
	}
}

func TestRepository_FindQueries(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	var ids []string
	for i, symbol := range []string{"BTCUSDT", "ETHUSDT", "BTCUSDT"} {
		trade := newTrade(t, "u1", symbol)
		trade.CreatedAt = trade.CreatedAt.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.SaveTrade(ctx, trade))
		ids = append(ids, trade.ID)
	}
	other := newTrade(t, "u2", "BTCUSDT")
	require.NoError(t, repo.SaveTrade(ctx, other))

	byUser, err := repo.FindTradesByUserID(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, byUser, 3)
	assert.Equal(t, ids[2], byUser[0].ID, "newest first")

	limited, err := repo.FindTradesByUserID(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	bySymbol, err := repo.FindTradesBySymbol(ctx, "BTCUSDT", 0)
	require.NoError(t, err)
	assert.Len(t, bySymbol, 3)

	// Finalize one trade; it drops out of the active set.
	done := byUser[0]
	require.NoError(t, done.Cancel("user request"))
	require.NoError(t, repo.UpdateTrade(ctx, done))

	active, err := repo.FindActiveTradesByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, active, 2)
	for _, tr := range active {
		assert.True(t, tr.Status.IsActive())
	}
}

func TestRepository_DeleteTrade(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	trade := completedTrade(t, "u1", 0.001, 40000)
	require.NoError(t, repo.SaveTrade(ctx, trade))

	require.NoError(t, repo.DeleteTrade(ctx, trade.ID))

	found, err := repo.FindTradeByID(ctx, trade.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepository_GetTradingMetrics(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveTrade(ctx, completedTrade(t, "u1", 0.002, 50000)))
	require.NoError(t, repo.SaveTrade(ctx, completedTrade(t, "u1", 0.001, 40000)))
	failed := newTrade(t, "u1", "BTCUSDT")
	require.NoError(t, failed.MarkAsFailed("rejected"))
	require.NoError(t, repo.SaveTrade(ctx, failed))

	metrics, err := repo.GetTradingMetrics(ctx, "u1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, metrics.TotalTrades)
	assert.Equal(t, 2, metrics.CompletedTrades)
	assert.Equal(t, 1, metrics.FailedTrades)
	assert.InDelta(t, 140, metrics.TotalVolume, 1e-9)

	future, err := repo.GetTradingMetrics(ctx, "u1", time.Now().Add(time.Hour), time.Time{})
	require.NoError(t, err)
	assert.Zero(t, future.TotalTrades)
}
