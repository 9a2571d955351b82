package execution

import (
	"context"
	"errors"
	"sync"

	"sniperBot/internal/adapters/logger"
	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

var testLogger = logger.NewNopLogger()

// fakeExchange is a hand-written ExchangeClient whose behaviour is set per test.
type fakeExchange struct {
	mu        sync.Mutex
	placeFn   func(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error)
	cancelFn  func(ctx context.Context, symbol, orderID string) (*ports.OrderResponse, error)
	priceFn   func(ctx context.Context, symbol string) (float64, error)
	placed    []ports.OrderRequest
	cancelled []string
	pingCalls int
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
	f.mu.Lock()
	f.placed = append(f.placed, req)
	f.mu.Unlock()
	if f.placeFn == nil {
		return &ports.OrderResponse{OrderID: "1", Status: ports.ExchangeStatusNew}, nil
	}
	return f.placeFn(ctx, req)
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol, orderID string) (*ports.OrderResponse, error) {
	f.mu.Lock()
	f.cancelled = append(f.cancelled, orderID)
	f.mu.Unlock()
	if f.cancelFn == nil {
		return &ports.OrderResponse{OrderID: orderID, Status: ports.ExchangeStatusCanceled}, nil
	}
	return f.cancelFn(ctx, symbol, orderID)
}

func (f *fakeExchange) GetOrder(ctx context.Context, symbol, orderID string) (*ports.OrderResponse, error) {
	return nil, ports.ErrOrderNotFound
}

func (f *fakeExchange) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	if f.priceFn == nil {
		return 100, nil
	}
	return f.priceFn(ctx, symbol)
}

func (f *fakeExchange) GetOrderBook(ctx context.Context, symbol string, limit int) (*ports.OrderBook, error) {
	return &ports.OrderBook{Symbol: symbol}, nil
}

func (f *fakeExchange) GetSymbolInfo(ctx context.Context, symbol string) (*ports.SymbolInfo, error) {
	return nil, ports.ErrSymbolNotFound
}

func (f *fakeExchange) GetAccountBalances(ctx context.Context) ([]ports.Balance, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeExchange) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	return nil, nil
}

func (f *fakeExchange) Ping(ctx context.Context) error {
	f.mu.Lock()
	f.pingCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeExchange) placedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.placed)
}
