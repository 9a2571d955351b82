package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"

	"sniperBot/internal/ports"
)

// RetryConfig controls RetryableOrderExecutor.
type RetryConfig struct {
	MaxRetries        int // total attempts
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns 10 attempts, 1s initial delay, x1.5, capped at 5s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        10,
		InitialDelay:      time.Second,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 1.5,
	}
}

// RetryExhaustedError is returned once every attempt hit a transient code.
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("order failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error { return e.LastErr }

// OrderFunc performs one order placement attempt.
type OrderFunc func(ctx context.Context) (*ports.OrderResponse, error)

// RetryableOrderExecutor retries order placement while the exchange answers
// with "symbol not tradeable" or "rate limited". Any other error ends the
// attempt loop immediately.
type RetryableOrderExecutor struct {
	cfg     RetryConfig
	logger  ports.Logger
	metrics ports.MetricsRecorder
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetryableOrderExecutor creates an executor. metrics may be nil.
func NewRetryableOrderExecutor(cfg RetryConfig, logger ports.Logger, metrics ports.MetricsRecorder) *RetryableOrderExecutor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &RetryableOrderExecutor{cfg: cfg, logger: logger, metrics: metrics, sleep: sleepCtx}
}

// Delay returns min(InitialDelay * BackoffMultiplier^attempt, MaxDelay).
func (e *RetryableOrderExecutor) Delay(attempt int) time.Duration {
	b := &backoff.Backoff{
		Min:    e.cfg.InitialDelay,
		Max:    e.cfg.MaxDelay,
		Factor: e.cfg.BackoffMultiplier,
	}
	return b.ForAttempt(float64(attempt))
}

// Execute runs fn until it succeeds, fails with a non-transient error, or
// the attempt budget is spent. Cancelling ctx aborts the backoff sleep.
func (e *RetryableOrderExecutor) Execute(ctx context.Context, symbol string, fn OrderFunc) (*ports.OrderResponse, error) {
	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		resp, err := fn(ctx)

		code, transient := transientCode(resp, err)
		if !transient {
			if err != nil {
				return nil, err
			}
			if resp != nil && resp.Code != 0 {
				return nil, &ports.ExchangeError{Code: resp.Code, Message: resp.Msg}
			}
			if attempt > 0 {
				e.logger.Info(ctx, "Order succeeded after retry", map[string]interface{}{"symbol": symbol, "attempts": attempt + 1})
			}
			return resp, nil
		}

		lastErr = err
		if lastErr == nil {
			lastErr = &ports.ExchangeError{Code: resp.Code, Message: resp.Msg}
		}
		if attempt == e.cfg.MaxRetries-1 {
			break
		}

		delay := e.Delay(attempt)
		e.metrics.IncOrderRetry(symbol)
		e.logger.Warn(ctx, "Transient exchange error, retrying order", map[string]interface{}{
			"symbol":  symbol,
			"code":    code,
			"attempt": attempt + 1,
			"delay":   delay.String(),
		})
		if err := e.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("order retry aborted: %w: %w", ports.ErrContextCanceled, err)
		}
	}
	return nil, &RetryExhaustedError{Attempts: e.cfg.MaxRetries, LastErr: lastErr}
}

// IsTransientCode reports whether code is one of the retried exchange codes.
func IsTransientCode(code int) bool {
	return code == ports.CodeSymbolNotTradeable || code == ports.CodeRateLimited
}

func transientCode(resp *ports.OrderResponse, err error) (int, bool) {
	if err != nil {
		if code, ok := ports.ExchangeErrorCode(err); ok && IsTransientCode(code) {
			return code, true
		}
		if errors.Is(err, ports.ErrSymbolNotTradeable) {
			return ports.CodeSymbolNotTradeable, true
		}
		if errors.Is(err, ports.ErrRateLimited) {
			return ports.CodeRateLimited, true
		}
		return 0, false
	}
	if resp != nil && IsTransientCode(resp.Code) {
		return resp.Code, true
	}
	return 0, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
