package execution

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// DispatcherConfig bounds in-flight exchange requests.
type DispatcherConfig struct {
	MaxConcurrentRequests int
	RequestTimeout        time.Duration
}

// DefaultDispatcherConfig allows 5 concurrent requests with a 10s timeout.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{MaxConcurrentRequests: 5, RequestTimeout: 10 * time.Second}
}

// DispatcherMetrics is a snapshot of dispatcher load.
type DispatcherMetrics struct {
	Active        int
	Queued        int
	MaxConcurrent int
}

// AsyncClient wraps an ExchangeClient so that at most MaxConcurrentRequests
// calls are in flight. Excess callers wait in arrival order and every call
// is bounded by RequestTimeout.
type AsyncClient struct {
	inner   ports.ExchangeClient
	cfg     DispatcherConfig
	sem     *semaphore.Weighted
	active  atomic.Int64
	queued  atomic.Int64
	logger  ports.Logger
	metrics ports.MetricsRecorder
}

var _ ports.ExchangeClient = (*AsyncClient)(nil)

// NewAsyncClient creates a dispatcher around inner. metrics may be nil.
func NewAsyncClient(inner ports.ExchangeClient, cfg DispatcherConfig, logger ports.Logger, metrics ports.MetricsRecorder) *AsyncClient {
	def := DefaultDispatcherConfig()
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = def.MaxConcurrentRequests
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &AsyncClient{
		inner:   inner,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrentRequests)),
		logger:  logger,
		metrics: metrics,
	}
}

// GetMetrics returns the current load.
func (c *AsyncClient) GetMetrics() DispatcherMetrics {
	return DispatcherMetrics{
		Active:        int(c.active.Load()),
		Queued:        int(c.queued.Load()),
		MaxConcurrent: c.cfg.MaxConcurrentRequests,
	}
}

func (c *AsyncClient) report() {
	c.metrics.SetDispatcherLoad(int(c.active.Load()), int(c.queued.Load()))
}

type outcome[T any] struct {
	val T
	err error
}

// do admits fn through the semaphore and races it against the request timeout.
// The slot is released as soon as the race settles.
func do[T any](ctx context.Context, c *AsyncClient, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if q := c.queued.Add(1); q > 0 && c.active.Load() >= int64(c.cfg.MaxConcurrentRequests) {
		c.logger.Debug(ctx, "Exchange request queued", map[string]interface{}{"op": op, "queued": q})
	}
	c.report()
	if err := c.sem.Acquire(ctx, 1); err != nil {
		c.queued.Add(-1)
		c.report()
		return zero, fmt.Errorf("%s: %w: %w", op, ports.ErrContextCanceled, err)
	}
	c.queued.Add(-1)
	c.active.Add(1)
	c.report()
	defer func() {
		c.active.Add(-1)
		c.sem.Release(1)
		c.report()
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	ch := make(chan outcome[T], 1)
	go func() {
		v, err := fn(callCtx)
		ch <- outcome[T]{val: v, err: err}
	}()

	select {
	case out := <-ch:
		return out.val, out.err
	case <-callCtx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return zero, fmt.Errorf("%s: %w: %w", op, ports.ErrContextCanceled, ctx.Err())
		}
		c.logger.Warn(ctx, "Exchange request timed out", map[string]interface{}{"op": op, "timeout": c.cfg.RequestTimeout.String()})
		return zero, fmt.Errorf("%s: %w after %s", op, ports.ErrTimeout, c.cfg.RequestTimeout)
	}
}

func (c *AsyncClient) PlaceOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
	return do(ctx, c, "PlaceOrder", func(ctx context.Context) (*ports.OrderResponse, error) {
		return c.inner.PlaceOrder(ctx, req)
	})
}

func (c *AsyncClient) CancelOrder(ctx context.Context, symbol, orderID string) (*ports.OrderResponse, error) {
	return do(ctx, c, "CancelOrder", func(ctx context.Context) (*ports.OrderResponse, error) {
		return c.inner.CancelOrder(ctx, symbol, orderID)
	})
}

func (c *AsyncClient) GetOrder(ctx context.Context, symbol, orderID string) (*ports.OrderResponse, error) {
	return do(ctx, c, "GetOrder", func(ctx context.Context) (*ports.OrderResponse, error) {
		return c.inner.GetOrder(ctx, symbol, orderID)
	})
}

func (c *AsyncClient) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	return do(ctx, c, "GetTickerPrice", func(ctx context.Context) (float64, error) {
		return c.inner.GetTickerPrice(ctx, symbol)
	})
}

func (c *AsyncClient) GetOrderBook(ctx context.Context, symbol string, limit int) (*ports.OrderBook, error) {
	return do(ctx, c, "GetOrderBook", func(ctx context.Context) (*ports.OrderBook, error) {
		return c.inner.GetOrderBook(ctx, symbol, limit)
	})
}

func (c *AsyncClient) GetSymbolInfo(ctx context.Context, symbol string) (*ports.SymbolInfo, error) {
	return do(ctx, c, "GetSymbolInfo", func(ctx context.Context) (*ports.SymbolInfo, error) {
		return c.inner.GetSymbolInfo(ctx, symbol)
	})
}

func (c *AsyncClient) GetAccountBalances(ctx context.Context) ([]ports.Balance, error) {
	return do(ctx, c, "GetAccountBalances", func(ctx context.Context) ([]ports.Balance, error) {
		return c.inner.GetAccountBalances(ctx)
	})
}

func (c *AsyncClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	return do(ctx, c, "GetKlines", func(ctx context.Context) ([]*domain.Kline, error) {
		return c.inner.GetKlines(ctx, symbol, interval, limit)
	})
}

func (c *AsyncClient) Ping(ctx context.Context) error {
	_, err := do(ctx, c, "Ping", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.inner.Ping(ctx)
	})
	return err
}
