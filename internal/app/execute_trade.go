package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// ExecuteTradeResult is the outcome of ExecuteTradeUseCase.Execute.
type ExecuteTradeResult struct {
	Success       bool
	TradeID       string
	Trade         *domain.Trade
	Order         *domain.Order
	Error         string
	ErrorKind     ErrorKind
	ErrorCode     int // exchange code, when the venue rejected the order
	ExecutionTime time.Duration
	Timestamp     time.Time
}

func (r ExecuteTradeResult) succeeded() bool { return r.Success }

// TradeEligibility reports whether a trade may still receive orders.
type TradeEligibility struct {
	CanExecute bool
	Reason     string
	Trade      *domain.Trade
}

// ExecuteTradeUseCase submits one order against an existing Trade and folds
// the exchange outcome back into the aggregate.
//
// Callers must not run two executions against the same trade concurrently.
type ExecuteTradeUseCase struct {
	repo     ports.TradingRepository
	trading  ports.TradingService
	notify   *backgroundNotifier
	logger   ports.Logger
	validate *validator.Validate
	boundary boundary
}

// NewExecuteTradeUseCase creates the use case. metrics may be nil.
func NewExecuteTradeUseCase(
	repo ports.TradingRepository,
	trading ports.TradingService,
	notifier ports.NotificationService,
	logger ports.Logger,
	metrics ports.MetricsRecorder,
) (*ExecuteTradeUseCase, error) {
	if repo == nil || trading == nil || notifier == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for ExecuteTradeUseCase")
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &ExecuteTradeUseCase{
		repo:     repo,
		trading:  trading,
		notify:   newBackgroundNotifier(notifier, logger),
		logger:   logger,
		validate: newValidator(),
		boundary: boundary{logger: logger, metrics: metrics},
	}, nil
}

// Execute runs one order for in.TradeID. Failures are reported in the
// result, never returned or panicked. A finalized trade is left untouched.
func (uc *ExecuteTradeUseCase) Execute(ctx context.Context, in ExecuteTradeInput) ExecuteTradeResult {
	start := time.Now()
	res := run(ctx, uc.boundary, "execute_trade", func(ctx context.Context) (ExecuteTradeResult, error) {
		return uc.execute(ctx, in)
	}, func(msg string, kind ErrorKind) ExecuteTradeResult {
		return ExecuteTradeResult{TradeID: in.TradeID, Error: msg, ErrorKind: kind}
	})
	res.ExecutionTime = time.Since(start)
	res.Timestamp = time.Now().UTC()
	return res
}

func (uc *ExecuteTradeUseCase) execute(ctx context.Context, in ExecuteTradeInput) (ExecuteTradeResult, error) {
	if err := validateInput(uc.validate, in); err != nil {
		return ExecuteTradeResult{}, err
	}

	trade, err := uc.loadExecutableTrade(ctx, in.TradeID)
	if err != nil {
		return ExecuteTradeResult{}, err
	}
	if trade.Symbol != in.Symbol {
		return ExecuteTradeResult{}, &domain.InvalidTradeParametersError{
			Parameter: "symbol",
			Reason:    fmt.Sprintf("request symbol %s does not match trade symbol %s", in.Symbol, trade.Symbol),
		}
	}
	if trade.PaperTrade != in.PaperTrade {
		return ExecuteTradeResult{}, &domain.InvalidTradeParametersError{
			Parameter: "paperTrade",
			Reason:    fmt.Sprintf("request paperTrade=%t does not match trade paperTrade=%t", in.PaperTrade, trade.PaperTrade),
		}
	}
	if err := uc.ensureTradeable(ctx, trade.Symbol); err != nil {
		return ExecuteTradeResult{}, err
	}

	order, err := domain.NewOrder(domain.OrderParams{
		Symbol:          in.Symbol,
		Side:            in.Side,
		Type:            in.Type,
		Quantity:        in.Quantity,
		QuoteOrderQty:   in.QuoteOrderQty,
		Price:           in.Price,
		StopPrice:       in.StopPrice,
		TimeInForce:     in.TimeInForce,
		Strategy:        trade.Strategy,
		ConfidenceScore: trade.ConfidenceScore,
	})
	if err != nil {
		return ExecuteTradeResult{}, err
	}
	if err := trade.AddOrder(order); err != nil {
		return ExecuteTradeResult{}, err
	}

	uc.logger.Info(ctx, "Executing order", map[string]interface{}{
		"tradeId":       trade.ID,
		"orderId":       order.ID,
		"symbol":        order.Symbol,
		"side":          string(order.Side),
		"type":          string(order.Type),
		"quantity":      order.Quantity,
		"quoteOrderQty": order.QuoteOrderQty,
		"paperTrade":    trade.PaperTrade,
	})

	execRes, err := uc.trading.ExecuteTrade(ctx, ports.TradeExecutionParams{
		Symbol:        order.Symbol,
		Side:          order.Side,
		Type:          order.Type,
		Quantity:      order.Quantity,
		QuoteOrderQty: order.QuoteOrderQty,
		Price:         order.Price,
		StopPrice:     order.StopPrice,
		TimeInForce:   order.TimeInForce,
		ClientOrderID: order.ClientOrderID,
		PaperTrade:    trade.PaperTrade,
	})
	if err != nil {
		uc.logger.Error(ctx, err, "Trading service failed", map[string]interface{}{"tradeId": trade.ID, "orderId": order.ID})
		execRes = &ports.TradeExecutionResult{Error: err.Error()}
		if code, ok := ports.ExchangeErrorCode(err); ok {
			execRes.ErrorCode = code
		}
	}

	if err := uc.applyExecution(ctx, trade, order, execRes); err != nil {
		return ExecuteTradeResult{}, err
	}

	res := ExecuteTradeResult{
		Success: execRes.Success,
		TradeID: trade.ID,
		Trade:   trade,
		Order:   order,
	}
	if !execRes.Success {
		res.Error = execRes.Error
		res.ErrorKind = KindExchange
		res.ErrorCode = execRes.ErrorCode
	}
	return res, nil
}

// applyExecution maps an exchange outcome onto order and trade, persists the
// trade and sends the matching notification.
func (uc *ExecuteTradeUseCase) applyExecution(ctx context.Context, trade *domain.Trade, order *domain.Order, res *ports.TradeExecutionResult) error {
	if !res.Success || res.Data == nil {
		reason := res.Error
		if reason == "" {
			reason = "order execution failed"
		}
		if err := order.MarkAsRejected(reason); err != nil {
			return err
		}
		if err := trade.MarkAsFailed(reason); err != nil {
			return err
		}
		if err := uc.persist(ctx, trade); err != nil {
			return err
		}
		uc.logger.Warn(ctx, "Order rejected", map[string]interface{}{
			"tradeId": trade.ID,
			"orderId": order.ID,
			"reason":  reason,
			"code":    res.ErrorCode,
		})
		uc.notifyFailure(ctx, trade, reason)
		return nil
	}

	data := res.Data
	executedQty := parseAmount(data.ExecutedQty)
	avgPrice := parseAmount(data.Price)

	switch data.Status {
	case ports.ExchangeStatusFilled:
		if err := order.MarkAsFilled(data.OrderID, executedQty, avgPrice); err != nil {
			return err
		}
	case ports.ExchangeStatusPartiallyFilled:
		if err := order.MarkAsPartiallyFilled(data.OrderID, executedQty, avgPrice); err != nil {
			return err
		}
	default:
		if err := order.MarkAsSubmitted(data.OrderID); err != nil {
			return err
		}
	}

	if trade.Status == domain.TradeStatusPending {
		if err := trade.StartExecution(); err != nil {
			return err
		}
	}
	if order.Status == domain.OrderStatusFilled {
		if err := trade.CompleteExecution(domain.ExecutionFill{
			Side:     order.Side,
			AvgPrice: order.AvgPrice,
			Quantity: order.ExecutedQty,
			Value:    order.FilledValue(),
		}); err != nil {
			return err
		}
	}
	if err := uc.persist(ctx, trade); err != nil {
		return err
	}

	uc.logger.Info(ctx, "Order executed", map[string]interface{}{
		"tradeId":         trade.ID,
		"orderId":         order.ID,
		"exchangeOrderId": order.ExchangeOrderID,
		"status":          string(order.Status),
		"executedQty":     order.ExecutedQty,
		"avgPrice":        order.AvgPrice,
		"tradeStatus":     string(trade.Status),
	})
	if trade.Status == domain.TradeStatusCompleted {
		uc.notify.completion(ctx, trade)
	} else {
		uc.notify.execution(ctx, trade)
	}
	return nil
}

// CanExecuteTrade reports whether tradeID may receive another order. It does
// not change any state.
func (uc *ExecuteTradeUseCase) CanExecuteTrade(ctx context.Context, tradeID string) (TradeEligibility, error) {
	trade, err := uc.repo.FindTradeByID(ctx, tradeID)
	if err != nil {
		return TradeEligibility{}, fmt.Errorf("load trade %s: %w", tradeID, err)
	}
	if trade == nil {
		return TradeEligibility{Reason: fmt.Sprintf("trade %s not found", tradeID)}, nil
	}
	if trade.IsFinalized() {
		return TradeEligibility{Reason: fmt.Sprintf("trade is already finalized with status %s", trade.Status), Trade: trade}, nil
	}
	tradeable, err := uc.trading.CanTrade(ctx, trade.Symbol)
	if err != nil {
		return TradeEligibility{}, fmt.Errorf("check tradeability of %s: %w", trade.Symbol, err)
	}
	if !tradeable {
		return TradeEligibility{Reason: fmt.Sprintf("trading is not enabled for %s", trade.Symbol), Trade: trade}, nil
	}
	return TradeEligibility{CanExecute: true, Trade: trade}, nil
}

func (uc *ExecuteTradeUseCase) loadExecutableTrade(ctx context.Context, tradeID string) (*domain.Trade, error) {
	trade, err := uc.repo.FindTradeByID(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("load trade %s: %w", tradeID, err)
	}
	if trade == nil {
		return nil, fmt.Errorf("trade %s: %w", tradeID, ports.ErrNotFound)
	}
	if err := trade.EnsureExecutable(); err != nil {
		return nil, err
	}
	return trade, nil
}

func (uc *ExecuteTradeUseCase) ensureTradeable(ctx context.Context, symbol string) error {
	tradeable, err := uc.trading.CanTrade(ctx, symbol)
	if err != nil {
		return fmt.Errorf("check tradeability of %s: %w", symbol, err)
	}
	if !tradeable {
		return &domain.BusinessRuleViolationError{
			Rule:   "symbol_tradeable",
			Reason: fmt.Sprintf("trading is not enabled for %s", symbol),
		}
	}
	return nil
}

func (uc *ExecuteTradeUseCase) persist(ctx context.Context, trade *domain.Trade) error {
	if err := uc.repo.UpdateTrade(ctx, trade); err != nil {
		return fmt.Errorf("update trade %s: %w", trade.ID, err)
	}
	return nil
}

func (uc *ExecuteTradeUseCase) notifyFailure(ctx context.Context, trade *domain.Trade, reason string) {
	uc.notify.failure(ctx, trade, reason)
}

// WaitNotifications blocks until in-flight notifications have been sent.
func (uc *ExecuteTradeUseCase) WaitNotifications() {
	uc.notify.wait()
}

// parseAmount reads an exchange decimal string; malformed values read as 0.
func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
