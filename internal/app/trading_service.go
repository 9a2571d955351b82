package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sniperBot/internal/domain"
	"sniperBot/internal/execution"
	"sniperBot/internal/ports"
)

// ExchangeTradingService implements ports.TradingService on an exchange
// client, normally the concurrency-limited dispatcher. Live orders go
// through the retrying executor; paper orders fill at the current price.
type ExchangeTradingService struct {
	exchange ports.ExchangeClient
	retry    *execution.RetryableOrderExecutor
	logger   ports.Logger
	now      func() time.Time
}

// NewExchangeTradingService creates the service.
func NewExchangeTradingService(exchange ports.ExchangeClient, retry *execution.RetryableOrderExecutor, logger ports.Logger) (*ExchangeTradingService, error) {
	if exchange == nil || retry == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for ExchangeTradingService")
	}
	return &ExchangeTradingService{exchange: exchange, retry: retry, logger: logger, now: time.Now}, nil
}

// CanTrade reports whether symbol is listed and open for trading.
func (s *ExchangeTradingService) CanTrade(ctx context.Context, symbol string) (bool, error) {
	info, err := s.exchange.GetSymbolInfo(ctx, symbol)
	if errors.Is(err, ports.ErrSymbolNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Tradeable, nil
}

// GetCurrentPrice returns the last traded price of symbol.
func (s *ExchangeTradingService) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return s.exchange.GetTickerPrice(ctx, symbol)
}

// ExecuteTrade normalises the order against the symbol's filters and places
// it. Exchange and validation failures are reported in the result.
func (s *ExchangeTradingService) ExecuteTrade(ctx context.Context, p ports.TradeExecutionParams) (*ports.TradeExecutionResult, error) {
	start := s.now()
	fail := func(err error) (*ports.TradeExecutionResult, error) {
		res := &ports.TradeExecutionResult{Error: err.Error(), ExecutionTime: s.now().Sub(start)}
		if code, ok := ports.ExchangeErrorCode(err); ok {
			res.ErrorCode = code
		}
		return res, nil
	}

	info, err := s.exchange.GetSymbolInfo(ctx, p.Symbol)
	if err != nil {
		return fail(fmt.Errorf("load symbol info: %w", err))
	}

	price := p.Price
	if p.Type == domain.OrderTypeMarket || price <= 0 {
		if price, err = s.exchange.GetTickerPrice(ctx, p.Symbol); err != nil {
			return fail(fmt.Errorf("load price: %w", err))
		}
	}

	req, qty, err := buildOrderRequest(p, price, info.Filters)
	if err != nil {
		return fail(err)
	}

	if p.PaperTrade {
		return s.simulate(ctx, p, req, qty, price, start), nil
	}

	resp, err := s.retry.Execute(ctx, p.Symbol, func(ctx context.Context) (*ports.OrderResponse, error) {
		return s.exchange.PlaceOrder(ctx, req)
	})
	if err != nil {
		s.logger.Error(ctx, err, "Order placement failed", map[string]interface{}{
			"symbol":        p.Symbol,
			"clientOrderId": p.ClientOrderID,
		})
		return fail(err)
	}

	fillPrice := resp.AvgPrice
	if fillPrice <= 0 {
		fillPrice = resp.Price
	}
	return &ports.TradeExecutionResult{
		Success: true,
		Data: &ports.ExecutedOrder{
			OrderID:     resp.OrderID,
			Symbol:      resp.Symbol,
			Side:        resp.Side,
			Type:        resp.Type,
			Quantity:    formatAmount(resp.OrigQuantity),
			Price:       formatAmount(fillPrice),
			Status:      resp.Status,
			ExecutedQty: formatAmount(resp.ExecutedQty),
			Timestamp:   resp.Timestamp,
		},
		ExecutionTime: s.now().Sub(start),
	}, nil
}

// buildOrderRequest validates quantities against filters. Base quantities
// are floored to the lot step; a quote amount is kept for MARKET orders and
// converted to a base quantity otherwise. qty is the resolved base quantity.
func buildOrderRequest(p ports.TradeExecutionParams, price float64, filters []ports.SymbolFilter) (ports.OrderRequest, float64, error) {
	req := ports.OrderRequest{
		Symbol:        p.Symbol,
		Side:          p.Side,
		Type:          p.Type,
		TimeInForce:   p.TimeInForce,
		ClientOrderID: p.ClientOrderID,
	}
	if p.Type != domain.OrderTypeMarket {
		req.Price = formatAmount(p.Price)
	}
	if p.Type == domain.OrderTypeStopLimit {
		req.StopPrice = formatAmount(p.StopPrice)
	}

	if p.Type == domain.OrderTypeMarket && p.QuoteOrderQty > 0 {
		if err := execution.CheckMinNotional(p.QuoteOrderQty, filters); err != nil {
			return req, 0, err
		}
		req.QuoteOrderQty = formatAmount(p.QuoteOrderQty)
		return req, p.QuoteOrderQty / price, nil
	}

	raw := p.Quantity
	if raw <= 0 && p.QuoteOrderQty > 0 && price > 0 {
		raw = p.QuoteOrderQty / price
	}
	v := execution.ValidateAndAdjustQuantity(raw, price, filters)
	if !v.IsValid {
		return req, 0, fmt.Errorf("%w: quantity validation failed: %s", ports.ErrInvalidRequest, strings.Join(v.Errors, "; "))
	}
	req.Quantity = v.AdjustedQuantityStr
	return req, v.AdjustedQuantity, nil
}

func (s *ExchangeTradingService) simulate(ctx context.Context, p ports.TradeExecutionParams, req ports.OrderRequest, qty, price float64, start time.Time) *ports.TradeExecutionResult {
	orderID := "paper-" + uuid.NewString()
	s.logger.Info(ctx, "Paper order filled", map[string]interface{}{
		"symbol":   p.Symbol,
		"side":     string(p.Side),
		"quantity": qty,
		"price":    price,
		"orderId":  orderID,
	})
	return &ports.TradeExecutionResult{
		Success: true,
		Data: &ports.ExecutedOrder{
			OrderID:     orderID,
			Symbol:      req.Symbol,
			Side:        string(req.Side),
			Type:        string(req.Type),
			Quantity:    formatAmount(qty),
			Price:       formatAmount(price),
			Status:      ports.ExchangeStatusFilled,
			ExecutedQty: formatAmount(qty),
			Timestamp:   s.now().UTC(),
		},
		ExecutionTime: s.now().Sub(start),
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
