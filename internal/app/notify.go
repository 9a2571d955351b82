package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// notificationTimeout bounds one background notification.
const notificationTimeout = 10 * time.Second

// backgroundNotifier sends trade notifications off the trading path. Each
// send works on a snapshot of the trade, with a context that outlives the
// caller's cancellation but is bounded by notificationTimeout.
type backgroundNotifier struct {
	next   ports.NotificationService
	logger ports.Logger
	wg     sync.WaitGroup
}

func newBackgroundNotifier(next ports.NotificationService, logger ports.Logger) *backgroundNotifier {
	return &backgroundNotifier{next: next, logger: logger}
}

func (n *backgroundNotifier) execution(ctx context.Context, trade *domain.Trade) {
	n.send(ctx, "execution", trade, n.next.NotifyTradeExecution)
}

func (n *backgroundNotifier) completion(ctx context.Context, trade *domain.Trade) {
	n.send(ctx, "completion", trade, n.next.NotifyTradeCompletion)
}

func (n *backgroundNotifier) failure(ctx context.Context, trade *domain.Trade, reason string) {
	n.send(ctx, "failure", trade, func(ctx context.Context, t *domain.Trade) error {
		return n.next.NotifyTradeFailure(ctx, t, reason)
	})
}

func (n *backgroundNotifier) send(ctx context.Context, kind string, trade *domain.Trade, fn func(context.Context, *domain.Trade) error) {
	snapshot := trade.Clone()
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				n.logger.Error(sendCtx, fmt.Errorf("panic: %v", r), "Trade "+kind+" notification panicked", map[string]interface{}{"tradeId": snapshot.ID})
			}
		}()

		if err := fn(sendCtx, snapshot); err != nil {
			n.logger.Warn(sendCtx, "Trade "+kind+" notification failed", map[string]interface{}{"tradeId": snapshot.ID, "error": err.Error()})
		}
	}()
}

// wait blocks until every notification sent so far has finished.
func (n *backgroundNotifier) wait() {
	n.wg.Wait()
}
