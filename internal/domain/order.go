package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order is a single execution attempt owned by a Trade.
type Order struct {
	ID              string
	Symbol          string
	Side            OrderSide
	Type            OrderType
	Status          OrderStatus
	Quantity        float64 // base asset quantity, 0 when QuoteOrderQty is used
	QuoteOrderQty   float64 // quote asset amount, 0 when Quantity is used
	Price           float64
	StopPrice       float64
	TimeInForce     TimeInForce
	ClientOrderID   string
	ExchangeOrderID string
	ExecutedQty     float64
	AvgPrice        float64
	Fees            float64
	Strategy        string
	ConfidenceScore float64
	RejectReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderParams carries the caller-supplied fields of a new Order.
type OrderParams struct {
	Symbol          string
	Side            OrderSide
	Type            OrderType
	Quantity        float64
	QuoteOrderQty   float64
	Price           float64
	StopPrice       float64
	TimeInForce     TimeInForce
	Strategy        string
	ConfidenceScore float64
}

// NewOrder validates p and returns a PENDING order.
func NewOrder(p OrderParams) (*Order, error) {
	if err := ValidateOrderParams(p); err != nil {
		return nil, err
	}
	tif := p.TimeInForce
	if tif == "" {
		tif = TimeInForceGTC
	}
	now := time.Now().UTC()
	return &Order{
		ID:              uuid.NewString(),
		Symbol:          p.Symbol,
		Side:            p.Side,
		Type:            p.Type,
		Status:          OrderStatusPending,
		Quantity:        p.Quantity,
		QuoteOrderQty:   p.QuoteOrderQty,
		Price:           p.Price,
		StopPrice:       p.StopPrice,
		TimeInForce:     tif,
		ClientOrderID:   "sb-" + uuid.NewString()[:18],
		Strategy:        p.Strategy,
		ConfidenceScore: p.ConfidenceScore,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ValidateOrderParams checks enum membership and the price/quantity rules.
func ValidateOrderParams(p OrderParams) error {
	if p.Symbol == "" {
		return NewValidationError("symbol", p.Symbol, "symbol is required")
	}
	if !p.Side.IsValid() {
		return NewValidationError("side", p.Side, "must be BUY or SELL")
	}
	if !p.Type.IsValid() {
		return NewValidationError("type", p.Type, "must be MARKET, LIMIT or STOP_LIMIT")
	}
	if p.TimeInForce != "" && !p.TimeInForce.IsValid() {
		return NewValidationError("timeInForce", p.TimeInForce, "must be GTC, IOC or FOK")
	}
	if p.Quantity < 0 || p.QuoteOrderQty < 0 {
		return NewValidationError("quantity", p.Quantity, "quantities must not be negative")
	}
	hasQty, hasQuote := p.Quantity > 0, p.QuoteOrderQty > 0
	if hasQty == hasQuote {
		return NewValidationError("quantity", p.Quantity, "exactly one of quantity or quoteOrderQty is required")
	}
	if p.Type == OrderTypeLimit && p.Price <= 0 {
		return NewValidationError("price", p.Price, "price is required for LIMIT orders")
	}
	if p.Type == OrderTypeStopLimit && p.StopPrice <= 0 {
		return NewValidationError("stopPrice", p.StopPrice, "stopPrice is required for STOP_LIMIT orders")
	}
	return nil
}

// ResolveQuantity returns the base quantity, deriving it from the quote
// amount at price when needed. Returns 0 if it cannot be resolved.
func (o *Order) ResolveQuantity(price float64) float64 {
	if o.Quantity > 0 {
		return o.Quantity
	}
	if o.QuoteOrderQty > 0 && price > 0 {
		return o.QuoteOrderQty / price
	}
	return 0
}

func (o *Order) transitionError(action string) error {
	return &InvalidOrderStateError{Entity: "order", ID: o.ID, Status: string(o.Status), Action: action}
}

// MarkAsSubmitted records acceptance by the exchange.
func (o *Order) MarkAsSubmitted(exchangeOrderID string) error {
	if o.Status != OrderStatusPending {
		return o.transitionError("submit")
	}
	o.Status = OrderStatusSubmitted
	o.ExchangeOrderID = exchangeOrderID
	o.touch()
	return nil
}

// MarkAsPartiallyFilled records a partial execution.
func (o *Order) MarkAsPartiallyFilled(exchangeOrderID string, executedQty, avgPrice float64) error {
	if o.Status.IsFinal() {
		return o.transitionError("partially fill")
	}
	o.Status = OrderStatusPartiallyFilled
	o.setFill(exchangeOrderID, executedQty, avgPrice)
	return nil
}

// MarkAsFilled records a complete execution.
func (o *Order) MarkAsFilled(exchangeOrderID string, executedQty, avgPrice float64) error {
	if o.Status.IsFinal() {
		return o.transitionError("fill")
	}
	o.Status = OrderStatusFilled
	o.setFill(exchangeOrderID, executedQty, avgPrice)
	return nil
}

// MarkAsRejected records a failed submission.
func (o *Order) MarkAsRejected(reason string) error {
	if o.Status != OrderStatusPending && o.Status != OrderStatusSubmitted {
		return o.transitionError("reject")
	}
	o.Status = OrderStatusRejected
	o.RejectReason = reason
	o.touch()
	return nil
}

// MarkAsCancelled records a cancellation.
func (o *Order) MarkAsCancelled() error {
	if o.Status.IsFinal() {
		return o.transitionError("cancel")
	}
	o.Status = OrderStatusCancelled
	o.touch()
	return nil
}

// FilledValue is executed quantity times average price.
func (o *Order) FilledValue() float64 {
	return o.ExecutedQty * o.AvgPrice
}

func (o *Order) setFill(exchangeOrderID string, executedQty, avgPrice float64) {
	if exchangeOrderID != "" {
		o.ExchangeOrderID = exchangeOrderID
	}
	o.ExecutedQty = executedQty
	o.AvgPrice = avgPrice
	o.touch()
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
