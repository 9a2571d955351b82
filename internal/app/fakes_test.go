package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"sniperBot/internal/adapters/logger"
	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
	"sniperBot/internal/strategy/analytics"
)

var testLogger = logger.NewNopLogger()

// memoryRepo is an in-memory TradingRepository that stores snapshots.
type memoryRepo struct {
	mu        sync.Mutex
	trades    map[string]*domain.Trade
	saves     int
	updates   int
	updateErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{trades: make(map[string]*domain.Trade)}
}

func (r *memoryRepo) SaveTrade(ctx context.Context, t *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trades[t.ID]; ok {
		return ports.ErrDuplicateEntry
	}
	r.trades[t.ID] = t.Clone()
	r.saves++
	return nil
}

func (r *memoryRepo) FindTradeByID(ctx context.Context, id string) (*domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trades[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

func (r *memoryRepo) find(match func(*domain.Trade) bool, limit int) []*domain.Trade {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Trade
	for _, t := range r.trades {
		if match(t) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *memoryRepo) FindTradesByUserID(ctx context.Context, userID string, limit int) ([]*domain.Trade, error) {
	return r.find(func(t *domain.Trade) bool { return t.UserID == userID }, limit), nil
}

func (r *memoryRepo) FindTradesBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	return r.find(func(t *domain.Trade) bool { return t.Symbol == symbol }, limit), nil
}

func (r *memoryRepo) FindActiveTradesByUserID(ctx context.Context, userID string) ([]*domain.Trade, error) {
	return r.find(func(t *domain.Trade) bool { return t.UserID == userID && t.Status.IsActive() }, 0), nil
}

func (r *memoryRepo) UpdateTrade(ctx context.Context, t *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.trades[t.ID]; !ok {
		return ports.ErrNotFound
	}
	r.trades[t.ID] = t.Clone()
	r.updates++
	return nil
}

func (r *memoryRepo) DeleteTrade(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trades, id)
	return nil
}

func (r *memoryRepo) GetTradingMetrics(ctx context.Context, userID string, from, to time.Time) (*domain.TradingMetrics, error) {
	trades, _ := r.FindTradesByUserID(ctx, userID, 0)
	return analytics.Summarize(userID, trades, from, to), nil
}

func (r *memoryRepo) stored(id string) *domain.Trade {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trades[id]
}

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trades)
}

// fakeTrading is a TradingService whose answers are set per test.
type fakeTrading struct {
	mu        sync.Mutex
	tradeable bool
	canErr    error
	price     float64
	executeFn func(ctx context.Context, p ports.TradeExecutionParams) (*ports.TradeExecutionResult, error)
	executed  []ports.TradeExecutionParams
}

func newFakeTrading() *fakeTrading {
	return &fakeTrading{tradeable: true, price: 50000}
}

func (f *fakeTrading) ExecuteTrade(ctx context.Context, p ports.TradeExecutionParams) (*ports.TradeExecutionResult, error) {
	f.mu.Lock()
	f.executed = append(f.executed, p)
	f.mu.Unlock()
	if f.executeFn != nil {
		return f.executeFn(ctx, p)
	}
	return filledResult("0.002", "50000"), nil
}

func (f *fakeTrading) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return f.price, nil
}

func (f *fakeTrading) CanTrade(ctx context.Context, symbol string) (bool, error) {
	return f.tradeable, f.canErr
}

func (f *fakeTrading) executions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executed)
}

func filledResult(qty, price string) *ports.TradeExecutionResult {
	return &ports.TradeExecutionResult{
		Success: true,
		Data: &ports.ExecutedOrder{
			OrderID:     "ex-1",
			Symbol:      "BTCUSDT",
			Side:        "BUY",
			Type:        "MARKET",
			Quantity:    qty,
			Price:       price,
			Status:      ports.ExchangeStatusFilled,
			ExecutedQty: qty,
			Timestamp:   time.Now(),
		},
	}
}

// recordingNotifier records every notification and can be told to fail.
type recordingNotifier struct {
	mu         sync.Mutex
	executions []string
	completion []string
	failures   []string
	err        error
}

func (n *recordingNotifier) NotifyTradeExecution(ctx context.Context, t *domain.Trade) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.executions = append(n.executions, t.ID)
	return n.err
}

func (n *recordingNotifier) NotifyTradeCompletion(ctx context.Context, t *domain.Trade) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completion = append(n.completion, t.ID)
	return n.err
}

func (n *recordingNotifier) NotifyTradeFailure(ctx context.Context, t *domain.Trade, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, reason)
	return n.err
}

var errBoom = errors.New("boom")

// seedTrade stores an EXECUTING trade for BTCUSDT.
func seedTrade(repo *memoryRepo, paper bool) *domain.Trade {
	t, err := domain.NewTrade(domain.TradeParams{
		UserID:           "u1",
		Symbol:           "BTCUSDT",
		IsAutoSnipe:      true,
		ConfidenceScore:  85,
		PaperTrade:       paper,
		PositionSizeUSDT: 100,
	})
	if err != nil {
		panic(err)
	}
	if err := t.StartExecution(); err != nil {
		panic(err)
	}
	if err := repo.SaveTrade(context.Background(), t); err != nil {
		panic(err)
	}
	return t
}
