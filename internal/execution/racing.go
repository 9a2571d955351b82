package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"sniperBot/internal/ports"
)

// ErrRacingDisabled is returned when the racing strategy is invoked without being enabled.
var ErrRacingDisabled = errors.New("order racing strategy is disabled")

// HardMaxConcurrentOrders bounds MaxConcurrentOrders regardless of configuration.
const HardMaxConcurrentOrders = 10

// RacingConfig controls OrderRacer. Racing is opt-in.
type RacingConfig struct {
	Enabled             bool
	MaxConcurrentOrders int
	BurstInterval       time.Duration
	AutoCancel          bool
}

// DefaultRacingConfig is disabled, 3 outstanding orders, 50ms bursts, auto-cancel on.
func DefaultRacingConfig() RacingConfig {
	return RacingConfig{
		Enabled:             false,
		MaxConcurrentOrders: 3,
		BurstInterval:       50 * time.Millisecond,
		AutoCancel:          true,
	}
}

// RacingResult summarises a race.
type RacingResult struct {
	FilledOrder         *ports.OrderResponse
	AttemptedOrderIDs   []string
	CancelledOrderIDs   []string
	FailedCancellations []string
	Errors              []string
	TotalAttempts       int
}

// OrderRacer places overlapping orders inside an execution window and keeps
// the first one that fills immediately.
type OrderRacer struct {
	cfg    RacingConfig
	client ports.ExchangeClient
	logger ports.Logger
	now    func() time.Time
}

// NewOrderRacer creates a racer over client.
func NewOrderRacer(cfg RacingConfig, client ports.ExchangeClient, logger ports.Logger) *OrderRacer {
	if cfg.MaxConcurrentOrders <= 0 {
		cfg.MaxConcurrentOrders = 1
	}
	if cfg.MaxConcurrentOrders > HardMaxConcurrentOrders {
		cfg.MaxConcurrentOrders = HardMaxConcurrentOrders
	}
	return &OrderRacer{cfg: cfg, client: client, logger: logger, now: time.Now}
}

// Enabled reports whether racing may be used.
func (r *OrderRacer) Enabled() bool { return r.cfg.Enabled }

// ExecuteOrderSpamStrategy issues copies of req, at most MaxConcurrentOrders
// outstanding and BurstInterval apart, until one fills or the window closes.
// Once a fill is recorded no new attempt starts; with AutoCancel the other
// attempted orders are cancelled.
func (r *OrderRacer) ExecuteOrderSpamStrategy(ctx context.Context, req ports.OrderRequest, window ExecutionWindow) (*RacingResult, error) {
	if !r.cfg.Enabled {
		return nil, ErrRacingDisabled
	}

	if wait := window.Start.Sub(r.now()); wait > 0 {
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}

	raceCtx, stopRace := context.WithCancel(ctx)
	defer stopRace()

	var (
		winner atomic.Pointer[ports.OrderResponse]
		mu     sync.Mutex
		wg     sync.WaitGroup
		result = &RacingResult{}
		slots  = semaphore.NewWeighted(int64(r.cfg.MaxConcurrentOrders))
	)

	r.logger.Info(ctx, "Starting order race", map[string]interface{}{
		"symbol":        req.Symbol,
		"maxConcurrent": r.cfg.MaxConcurrentOrders,
		"windowEnd":     window.End.UTC().Format(time.RFC3339Nano),
	})

	for attempt := 1; ; attempt++ {
		if winner.Load() != nil || raceCtx.Err() != nil || r.now().After(window.End) {
			break
		}
		if err := slots.Acquire(raceCtx, 1); err != nil {
			break
		}
		// A fill may have landed, or the window closed, while we waited for a slot.
		if winner.Load() != nil || r.now().After(window.End) {
			slots.Release(1)
			break
		}

		attemptReq := req
		if req.ClientOrderID != "" {
			attemptReq.ClientOrderID = fmt.Sprintf("%s-%d", req.ClientOrderID, attempt)
		}
		mu.Lock()
		result.TotalAttempts++
		mu.Unlock()

		wg.Add(1)
		go func(n int, or ports.OrderRequest) {
			defer wg.Done()
			defer slots.Release(1)

			// In-flight orders complete on the parent context so that their
			// ids are known and can be cancelled.
			resp, err := r.client.PlaceOrder(ctx, or)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Errors = append(result.Errors, fmt.Sprintf("attempt %d: %v", n, err))
				return
			case resp == nil:
				result.Errors = append(result.Errors, fmt.Sprintf("attempt %d: empty response", n))
				return
			case resp.Code != 0:
				result.Errors = append(result.Errors, fmt.Sprintf("attempt %d: exchange error %d: %s", n, resp.Code, resp.Msg))
				return
			case resp.OrderID == "":
				result.Errors = append(result.Errors, fmt.Sprintf("attempt %d: response without order id", n))
				return
			}
			result.AttemptedOrderIDs = append(result.AttemptedOrderIDs, resp.OrderID)
			if resp.IsFilled() && winner.CompareAndSwap(nil, resp) {
				stopRace()
			}
		}(attempt, attemptReq)

		if err := sleepCtx(raceCtx, r.cfg.BurstInterval); err != nil {
			break
		}
	}
	wg.Wait()

	filled := winner.Load()
	result.FilledOrder = filled
	if filled != nil && r.cfg.AutoCancel {
		r.cancelOthers(ctx, req.Symbol, filled.OrderID, result)
	}

	fields := map[string]interface{}{
		"symbol":        req.Symbol,
		"totalAttempts": result.TotalAttempts,
		"errors":        len(result.Errors),
		"cancelled":     len(result.CancelledOrderIDs),
	}
	if filled == nil {
		r.logger.Warn(ctx, "Order race ended without a fill", fields)
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, nil
	}
	fields["filledOrderId"] = filled.OrderID
	r.logger.Info(ctx, "Order race won", fields)
	return result, nil
}

func (r *OrderRacer) cancelOthers(ctx context.Context, symbol, keepID string, result *RacingResult) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, id := range result.AttemptedOrderIDs {
		if id == keepID {
			continue
		}
		id := id
		g.Go(func() error {
			_, err := r.client.CancelOrder(ctx, symbol, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.FailedCancellations = append(result.FailedCancellations, id)
				r.logger.Warn(ctx, "Failed to cancel raced order", map[string]interface{}{"symbol": symbol, "orderId": id, "error": err.Error()})
				return nil
			}
			result.CancelledOrderIDs = append(result.CancelledOrderIDs, id)
			return nil
		})
	}
	_ = g.Wait()
}
