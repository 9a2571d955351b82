package ports

import (
	"context"
	"time"

	"sniperBot/internal/domain"
)

// TradeExecutionParams is the exchange-facing order request of a use case.
type TradeExecutionParams struct {
	Symbol        string
	Side          domain.OrderSide
	Type          domain.OrderType
	Quantity      float64
	QuoteOrderQty float64
	Price         float64
	StopPrice     float64
	TimeInForce   domain.TimeInForce
	ClientOrderID string
	PaperTrade    bool
}

// ExecutedOrder mirrors the exchange payload, keeping numbers as strings.
type ExecutedOrder struct {
	OrderID     string
	Symbol      string
	Side        string
	Type        string
	Quantity    string
	Price       string // average fill price when filled
	Status      string
	ExecutedQty string
	Timestamp   time.Time
}

// TradeExecutionResult is the outcome of TradingService.ExecuteTrade.
type TradeExecutionResult struct {
	Success       bool
	Data          *ExecutedOrder
	Error         string
	ErrorCode     int // exchange code when the failure came from the venue
	ExecutionTime time.Duration
}

// TradingService executes orders and answers market questions.
type TradingService interface {
	// ExecuteTrade reports expected exchange failures in the result rather
	// than as an error.
	ExecuteTrade(ctx context.Context, params TradeExecutionParams) (*TradeExecutionResult, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	CanTrade(ctx context.Context, symbol string) (bool, error)
}

// NotificationService is informed about trade lifecycle events. Callers log
// returned errors and carry on.
type NotificationService interface {
	NotifyTradeExecution(ctx context.Context, trade *domain.Trade) error
	NotifyTradeCompletion(ctx context.Context, trade *domain.Trade) error
	NotifyTradeFailure(ctx context.Context, trade *domain.Trade, reason string) error
}
