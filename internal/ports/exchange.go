package ports

import (
	"context"
	"time"

	"sniperBot/internal/domain"
)

// OrderRequest describes an order to submit to the exchange. Quantities and
// prices are pre-formatted strings so callers control precision.
type OrderRequest struct {
	Symbol        string
	Side          domain.OrderSide
	Type          domain.OrderType
	Quantity      string // base quantity, empty when QuoteOrderQty is set
	QuoteOrderQty string
	Price         string
	StopPrice     string
	TimeInForce   domain.TimeInForce
	ClientOrderID string
}

// OrderResponse represents the essential details returned for an order.
type OrderResponse struct {
	OrderID             string
	Symbol              string
	ClientOrderID       string
	Side                string
	Type                string
	Price               float64
	AvgPrice            float64 // cumulative quote / executed quantity when available
	OrigQuantity        float64
	ExecutedQty         float64
	CummulativeQuoteQty float64
	Status              string // NEW, PARTIALLY_FILLED, FILLED, CANCELED, REJECTED, EXPIRED
	Timestamp           time.Time

	// Code and Msg are set when the venue answered with an error payload
	// instead of failing the request.
	Code int
	Msg  string
}

// Exchange order status strings.
const (
	ExchangeStatusNew             = "NEW"
	ExchangeStatusPartiallyFilled = "PARTIALLY_FILLED"
	ExchangeStatusFilled          = "FILLED"
	ExchangeStatusCanceled        = "CANCELED"
	ExchangeStatusRejected        = "REJECTED"
)

// IsFilled reports whether the exchange fully executed the order.
func (r *OrderResponse) IsFilled() bool {
	return r != nil && r.Status == ExchangeStatusFilled
}

// SymbolFilter is a raw exchange filter keyed by its type.
type SymbolFilter struct {
	FilterType  string // LOT_SIZE, MIN_NOTIONAL, NOTIONAL, PRICE_FILTER
	MinQty      string
	MaxQty      string
	StepSize    string
	MinNotional string
	TickSize    string
}

// SymbolInfo holds trading rules for a symbol.
type SymbolInfo struct {
	Symbol     string
	Status     string
	BaseAsset  string
	QuoteAsset string
	Tradeable  bool
	Filters    []SymbolFilter
}

// Filter returns the first filter with the given type, or nil.
func (s *SymbolInfo) Filter(filterType string) *SymbolFilter {
	for i := range s.Filters {
		if s.Filters[i].FilterType == filterType {
			return &s.Filters[i]
		}
	}
	return nil
}

// PriceLevel is one side of an order book row.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// OrderBook is a depth snapshot.
type OrderBook struct {
	Symbol string
	Bids   []PriceLevel
	Asks   []PriceLevel
}

// Balance is a single asset balance.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// ExchangeClient is the exchange surface consumed by the dispatcher, retry
// and racing components.
type ExchangeClient interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (*OrderResponse, error)
	GetOrder(ctx context.Context, symbol, orderID string) (*OrderResponse, error)
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)
	GetOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error)
	// GetSymbolInfo returns ErrSymbolNotFound when the exchange does not list symbol.
	GetSymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)
	GetAccountBalances(ctx context.Context) ([]Balance, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error)
	Ping(ctx context.Context) error
}
