package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// Event names carried in webhook payloads.
const (
	EventTradeExecution  = "trade.execution"
	EventTradeCompletion = "trade.completion"
	EventTradeFailure    = "trade.failure"
)

// LogNotifier writes trade lifecycle events to the logger.
type LogNotifier struct {
	logger ports.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger ports.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyTradeExecution(ctx context.Context, trade *domain.Trade) error {
	n.logger.Info(ctx, "Trade executing", tradeFields(trade))
	return nil
}

func (n *LogNotifier) NotifyTradeCompletion(ctx context.Context, trade *domain.Trade) error {
	n.logger.Info(ctx, "Trade completed", tradeFields(trade))
	return nil
}

func (n *LogNotifier) NotifyTradeFailure(ctx context.Context, trade *domain.Trade, reason string) error {
	fields := tradeFields(trade)
	fields["reason"] = reason
	n.logger.Warn(ctx, "Trade failed", fields)
	return nil
}

func tradeFields(t *domain.Trade) map[string]interface{} {
	fields := map[string]interface{}{
		"tradeID":    t.ID,
		"userID":     t.UserID,
		"symbol":     t.Symbol,
		"status":     t.Status,
		"paperTrade": t.PaperTrade,
		"autoSnipe":  t.IsAutoSnipe,
	}
	if t.TotalCost != nil {
		fields["totalCost"] = t.TotalCost.Float()
	}
	if t.EntryPrice != nil {
		fields["entryPrice"] = t.EntryPrice.Float()
	}
	return fields
}

// Payload is the JSON body posted by WebhookNotifier.
type Payload struct {
	Event      string    `json:"event"`
	TradeID    string    `json:"tradeId"`
	UserID     string    `json:"userId"`
	Symbol     string    `json:"symbol"`
	Status     string    `json:"status"`
	PaperTrade bool      `json:"paperTrade"`
	Quantity   float64   `json:"quantity,omitempty"`
	EntryPrice float64   `json:"entryPrice,omitempty"`
	TotalCost  float64   `json:"totalCost,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func newPayload(event string, t *domain.Trade, reason string) Payload {
	p := Payload{
		Event:      event,
		TradeID:    t.ID,
		UserID:     t.UserID,
		Symbol:     t.Symbol,
		Status:     string(t.Status),
		PaperTrade: t.PaperTrade,
		Quantity:   t.Quantity,
		Reason:     reason,
		Timestamp:  time.Now().UTC(),
	}
	if t.EntryPrice != nil {
		p.EntryPrice = t.EntryPrice.Float()
	}
	if t.TotalCost != nil {
		p.TotalCost = t.TotalCost.Float()
	}
	return p
}

// WebhookNotifier POSTs a JSON Payload per event.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier; timeout defaults to 3s.
func NewWebhookNotifier(url string, timeout time.Duration) (*WebhookNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook URL is not configured: %w", ports.ErrConfigurationError)
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: timeout}}, nil
}

func (w *WebhookNotifier) NotifyTradeExecution(ctx context.Context, trade *domain.Trade) error {
	return w.send(ctx, newPayload(EventTradeExecution, trade, ""))
}

func (w *WebhookNotifier) NotifyTradeCompletion(ctx context.Context, trade *domain.Trade) error {
	return w.send(ctx, newPayload(EventTradeCompletion, trade, ""))
}

func (w *WebhookNotifier) NotifyTradeFailure(ctx context.Context, trade *domain.Trade, reason string) error {
	return w.send(ctx, newPayload(EventTradeFailure, trade, reason))
}

func (w *WebhookNotifier) send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", p.Event, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s notification request: %w", p.Event, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s notification: %w", p.Event, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d for %s", resp.StatusCode, p.Event)
	}
	return nil
}

// Multi fans every event out to all notifiers and joins their errors.
type Multi []ports.NotificationService

func (m Multi) NotifyTradeExecution(ctx context.Context, trade *domain.Trade) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.NotifyTradeExecution(ctx, trade))
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyTradeCompletion(ctx context.Context, trade *domain.Trade) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.NotifyTradeCompletion(ctx, trade))
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyTradeFailure(ctx context.Context, trade *domain.Trade, reason string) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.NotifyTradeFailure(ctx, trade, reason))
	}
	return errors.Join(errs...)
}
