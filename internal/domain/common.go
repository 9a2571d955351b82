package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// IsValid reports whether the side is one of the known values.
func (s OrderSide) IsValid() bool {
	return s == Buy || s == Sell
}

// Opposite returns the closing side for a position opened with s.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType represents how an order is priced on the exchange.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// IsValid reports whether the type is one of the known values.
func (t OrderType) IsValid() bool {
	switch t {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStopLimit:
		return true
	}
	return false
}

// TimeInForce controls how long an order stays on the book.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

// IsValid reports whether the value is one of the known values.
func (t TimeInForce) IsValid() bool {
	switch t {
	case TimeInForceGTC, TimeInForceIOC, TimeInForceFOK:
		return true
	}
	return false
}

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusSubmitted       OrderStatus = "SUBMITTED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// IsFinal reports whether no further transition is allowed.
func (s OrderStatus) IsFinal() bool {
	return s == OrderStatusFilled || s == OrderStatusRejected || s == OrderStatusCancelled
}

// TradeStatus is the lifecycle state of a Trade.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "PENDING"
	TradeStatusExecuting TradeStatus = "EXECUTING"
	TradeStatusCompleted TradeStatus = "COMPLETED"
	TradeStatusFailed    TradeStatus = "FAILED"
	TradeStatusCancelled TradeStatus = "CANCELLED"
)

// IsTerminal reports whether the status is COMPLETED, FAILED or CANCELLED.
func (s TradeStatus) IsTerminal() bool {
	return s == TradeStatusCompleted || s == TradeStatusFailed || s == TradeStatusCancelled
}

// IsActive reports whether the trade still occupies a sniping slot.
func (s TradeStatus) IsActive() bool {
	return s == TradeStatusPending || s == TradeStatusExecuting
}

// QuoteAsset is the settlement currency used for monetary values.
const QuoteAsset = "USDT"
