package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trade is the aggregate root of a sniping attempt. It owns its Orders and
// moves PENDING -> EXECUTING -> one of COMPLETED, FAILED or CANCELLED.
type Trade struct {
	ID                string
	UserID            string
	Symbol            string
	Status            TradeStatus
	IsAutoSnipe       bool
	ConfidenceScore   float64
	PaperTrade        bool
	Strategy          string
	Orders            []*Order
	StopLossPercent   float64 // 0 when unset
	TakeProfitPercent float64 // 0 when unset
	PositionSizeUSDT  float64
	Quantity          float64 // executed base quantity

	EntryPrice   *Money
	ExitPrice    *Money
	TotalCost    *Money
	TotalRevenue *Money
	RealizedPnL  *Money

	CreatedAt            time.Time
	UpdatedAt            time.Time
	ExecutionStartedAt   *time.Time
	ExecutionCompletedAt *time.Time
	ErrorMessage         string
}

// TradeParams carries the fields needed to open a Trade.
type TradeParams struct {
	UserID            string
	Symbol            string
	IsAutoSnipe       bool
	ConfidenceScore   float64
	PaperTrade        bool
	Strategy          string
	StopLossPercent   float64
	TakeProfitPercent float64
	PositionSizeUSDT  float64
}

// NewTrade validates p and returns a PENDING trade.
func NewTrade(p TradeParams) (*Trade, error) {
	if p.UserID == "" {
		return nil, NewValidationError("userId", p.UserID, "userId is required")
	}
	if p.Symbol == "" {
		return nil, NewValidationError("symbol", p.Symbol, "symbol is required")
	}
	if p.ConfidenceScore < 0 || p.ConfidenceScore > 100 {
		return nil, NewValidationError("confidenceScore", p.ConfidenceScore, "must be between 0 and 100")
	}
	if p.StopLossPercent < 0 || p.StopLossPercent > 100 {
		return nil, NewValidationError("stopLossPercent", p.StopLossPercent, "must be between 0 and 100")
	}
	if p.TakeProfitPercent < 0 || p.TakeProfitPercent > 1000 {
		return nil, NewValidationError("takeProfitPercent", p.TakeProfitPercent, "must be between 0 and 1000")
	}
	now := time.Now().UTC()
	return &Trade{
		ID:                uuid.NewString(),
		UserID:            p.UserID,
		Symbol:            p.Symbol,
		Status:            TradeStatusPending,
		IsAutoSnipe:       p.IsAutoSnipe,
		ConfidenceScore:   p.ConfidenceScore,
		PaperTrade:        p.PaperTrade,
		Strategy:          p.Strategy,
		StopLossPercent:   p.StopLossPercent,
		TakeProfitPercent: p.TakeProfitPercent,
		PositionSizeUSDT:  p.PositionSizeUSDT,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// IsFinalized reports whether the trade reached a terminal status.
func (t *Trade) IsFinalized() bool {
	return t.Status.IsTerminal()
}

func (t *Trade) stateError(action string) error {
	err := &InvalidOrderStateError{Entity: "trade", ID: t.ID, Status: string(t.Status), Action: action}
	if t.IsFinalized() {
		return fmt.Errorf("%w: %w", ErrTradeFinalized, err)
	}
	return err
}

// EnsureExecutable returns an error wrapping ErrTradeFinalized when no more
// orders may be executed against the trade.
func (t *Trade) EnsureExecutable() error {
	if t.IsFinalized() {
		return t.stateError("execute order on")
	}
	return nil
}

// StartExecution moves a PENDING trade to EXECUTING.
func (t *Trade) StartExecution() error {
	if t.Status != TradeStatusPending {
		return t.stateError("start execution of")
	}
	now := time.Now().UTC()
	t.Status = TradeStatusExecuting
	t.ExecutionStartedAt = &now
	t.UpdatedAt = now
	return nil
}

// ExecutionFill summarises the filled side of an execution.
type ExecutionFill struct {
	Side     OrderSide
	AvgPrice float64
	Quantity float64
	Value    float64 // quote amount spent (BUY) or received (SELL)
}

// CompleteExecution folds a fill into the trade and marks it COMPLETED.
// A BUY sets entry price and total cost, a SELL sets exit price and revenue;
// realised P&L is computed once both sides are known.
func (t *Trade) CompleteExecution(fill ExecutionFill) error {
	if t.Status != TradeStatusExecuting {
		return t.stateError("complete")
	}
	if fill.Quantity <= 0 || fill.AvgPrice <= 0 {
		return NewValidationError("fill", fill, "filled quantity and price must be positive")
	}
	price := USDT(fill.AvgPrice)
	value := USDT(fill.Value)
	switch fill.Side {
	case Buy:
		t.EntryPrice = &price
		t.TotalCost = &value
		t.Quantity = fill.Quantity
	case Sell:
		t.ExitPrice = &price
		t.TotalRevenue = &value
	default:
		return NewValidationError("side", fill.Side, "must be BUY or SELL")
	}
	if t.TotalCost != nil && t.TotalRevenue != nil {
		pnl, err := t.TotalRevenue.Sub(*t.TotalCost)
		if err != nil {
			return err
		}
		t.RealizedPnL = &pnl
	}
	now := time.Now().UTC()
	t.Status = TradeStatusCompleted
	t.ExecutionCompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkAsFailed moves a non-terminal trade to FAILED.
func (t *Trade) MarkAsFailed(reason string) error {
	if t.IsFinalized() {
		return t.stateError("fail")
	}
	now := time.Now().UTC()
	t.Status = TradeStatusFailed
	t.ErrorMessage = reason
	t.ExecutionCompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// Cancel moves a non-terminal trade to CANCELLED.
func (t *Trade) Cancel(reason string) error {
	if t.IsFinalized() {
		return t.stateError("cancel")
	}
	now := time.Now().UTC()
	t.Status = TradeStatusCancelled
	t.ErrorMessage = reason
	t.UpdatedAt = now
	return nil
}

// AddOrder appends an order. Finalized trades accept no new orders.
func (t *Trade) AddOrder(o *Order) error {
	if t.IsFinalized() {
		return t.stateError("add order to")
	}
	if o.Symbol != t.Symbol {
		return &InvalidTradeParametersError{Parameter: "symbol", Reason: fmt.Sprintf("order symbol %s does not match trade symbol %s", o.Symbol, t.Symbol)}
	}
	t.Orders = append(t.Orders, o)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateOrder replaces the owned order carrying the same ID.
func (t *Trade) UpdateOrder(o *Order) error {
	for i, existing := range t.Orders {
		if existing.ID == o.ID {
			t.Orders[i] = o
			t.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return NewValidationError("orderId", o.ID, "order does not belong to trade")
}

// FindOrder returns the owned order with the given ID, or nil.
func (t *Trade) FindOrder(id string) *Order {
	for _, o := range t.Orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// FilledOrders returns the owned orders in FILLED status.
func (t *Trade) FilledOrders() []*Order {
	var filled []*Order
	for _, o := range t.Orders {
		if o.Status == OrderStatusFilled {
			filled = append(filled, o)
		}
	}
	return filled
}

// Duration is the wall-clock time between execution start and completion.
func (t *Trade) Duration() time.Duration {
	if t.ExecutionStartedAt == nil || t.ExecutionCompletedAt == nil {
		return 0
	}
	return t.ExecutionCompletedAt.Sub(*t.ExecutionStartedAt)
}

// Clone returns a deep copy, used by stores that hand out snapshots.
func (t *Trade) Clone() *Trade {
	c := *t
	c.Orders = make([]*Order, len(t.Orders))
	for i, o := range t.Orders {
		oc := *o
		c.Orders[i] = &oc
	}
	c.EntryPrice = cloneMoney(t.EntryPrice)
	c.ExitPrice = cloneMoney(t.ExitPrice)
	c.TotalCost = cloneMoney(t.TotalCost)
	c.TotalRevenue = cloneMoney(t.TotalRevenue)
	c.RealizedPnL = cloneMoney(t.RealizedPnL)
	c.ExecutionStartedAt = cloneTime(t.ExecutionStartedAt)
	c.ExecutionCompletedAt = cloneTime(t.ExecutionCompletedAt)
	return &c
}

func cloneMoney(m *Money) *Money {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

func cloneTime(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	c := *ts
	return &c
}
