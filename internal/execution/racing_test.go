package execution

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

func openWindow(d time.Duration) ExecutionWindow {
	now := time.Now()
	return ExecutionWindow{Start: now, End: now.Add(d)}
}

var raceReq = ports.OrderRequest{Symbol: "NEWUSDT", Side: domain.Buy, Type: domain.OrderTypeMarket, QuoteOrderQty: "50", ClientOrderID: "snipe"}

func TestRacing_DisabledRefuses(t *testing.T) {
	racer := NewOrderRacer(DefaultRacingConfig(), &fakeExchange{}, testLogger)
	_, err := racer.ExecuteOrderSpamStrategy(context.Background(), raceReq, openWindow(time.Second))
	assert.ErrorIs(t, err, ErrRacingDisabled)
}

func TestRacing_FirstFillWinsAndOthersAreCancelled(t *testing.T) {
	var n atomic.Int64
	ex := &fakeExchange{placeFn: func(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
		id := n.Add(1)
		status := ports.ExchangeStatusNew
		if id == 3 {
			status = ports.ExchangeStatusFilled
		}
		return &ports.OrderResponse{OrderID: strconv.FormatInt(id, 10), Status: status}, nil
	}}
	cfg := RacingConfig{Enabled: true, MaxConcurrentOrders: 3, BurstInterval: 20 * time.Millisecond, AutoCancel: true}
	racer := NewOrderRacer(cfg, ex, testLogger)

	res, err := racer.ExecuteOrderSpamStrategy(context.Background(), raceReq, openWindow(2*time.Second))
	require.NoError(t, err)
	require.NotNil(t, res.FilledOrder)
	assert.Equal(t, "3", res.FilledOrder.OrderID)
	assert.Equal(t, 3, res.TotalAttempts)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, res.AttemptedOrderIDs)
	assert.ElementsMatch(t, []string{"1", "2"}, res.CancelledOrderIDs)
	assert.Empty(t, res.FailedCancellations)
	assert.Equal(t, 3, ex.placedCount())

	// Each attempt carries its own client order id.
	assert.Equal(t, "snipe-1", ex.placed[0].ClientOrderID)
}

func TestRacing_RecordsFailedCancellations(t *testing.T) {
	var n atomic.Int64
	ex := &fakeExchange{
		placeFn: func(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
			id := n.Add(1)
			status := ports.ExchangeStatusNew
			if id == 2 {
				status = ports.ExchangeStatusFilled
			}
			return &ports.OrderResponse{OrderID: strconv.FormatInt(id, 10), Status: status}, nil
		},
		cancelFn: func(ctx context.Context, symbol, orderID string) (*ports.OrderResponse, error) {
			return nil, ports.ErrOrderNotFound
		},
	}
	cfg := RacingConfig{Enabled: true, MaxConcurrentOrders: 3, BurstInterval: 20 * time.Millisecond, AutoCancel: true}
	res, err := NewOrderRacer(cfg, ex, testLogger).ExecuteOrderSpamStrategy(context.Background(), raceReq, openWindow(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, res.FailedCancellations)
	assert.Empty(t, res.CancelledOrderIDs)
}

func TestRacing_RespectsConcurrencyCapAndWindow(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64
	ex := &fakeExchange{placeFn: func(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		return nil, errors.New("order would immediately match and take")
	}}
	cfg := RacingConfig{Enabled: true, MaxConcurrentOrders: 2, BurstInterval: time.Millisecond, AutoCancel: true}
	res, err := NewOrderRacer(cfg, ex, testLogger).ExecuteOrderSpamStrategy(context.Background(), raceReq, openWindow(150*time.Millisecond))

	require.NoError(t, err)
	assert.Nil(t, res.FilledOrder)
	assert.LessOrEqual(t, maxInFlight.Load(), int64(2))
	assert.Greater(t, res.TotalAttempts, 2)
	assert.Len(t, res.Errors, res.TotalAttempts)
	assert.Empty(t, res.CancelledOrderIDs)
}

func TestRacing_ErrorPayloadsAreNotCancelled(t *testing.T) {
	var n atomic.Int64
	ex := &fakeExchange{placeFn: func(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
		switch n.Add(1) {
		case 1:
			return &ports.OrderResponse{Code: ports.CodeSymbolNotTradeable, Msg: "symbol not support api"}, nil
		case 2:
			return &ports.OrderResponse{Status: ports.ExchangeStatusNew}, nil
		case 3:
			return &ports.OrderResponse{OrderID: "3", Status: ports.ExchangeStatusNew}, nil
		default:
			return &ports.OrderResponse{OrderID: "4", Status: ports.ExchangeStatusFilled}, nil
		}
	}}
	cfg := RacingConfig{Enabled: true, MaxConcurrentOrders: 3, BurstInterval: 10 * time.Millisecond, AutoCancel: true}
	res, err := NewOrderRacer(cfg, ex, testLogger).ExecuteOrderSpamStrategy(context.Background(), raceReq, openWindow(2*time.Second))

	require.NoError(t, err)
	require.NotNil(t, res.FilledOrder)
	assert.Equal(t, "4", res.FilledOrder.OrderID)
	assert.ElementsMatch(t, []string{"3", "4"}, res.AttemptedOrderIDs)
	assert.Len(t, res.Errors, 2)
	assert.Equal(t, []string{"3"}, res.CancelledOrderIDs)

	ex.mu.Lock()
	defer ex.mu.Unlock()
	assert.Equal(t, []string{"3"}, ex.cancelled)
}
