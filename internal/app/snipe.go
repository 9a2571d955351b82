package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/execution"
	"sniperBot/internal/ports"
	"sniperBot/internal/risk"
	"sniperBot/internal/strategy"
)

// SnipeRequest asks for a buy of Symbol sized by the active strategy and
// capped at PositionSizeUSDT. A zero LaunchTime executes immediately.
type SnipeRequest struct {
	UserID           string
	Symbol           string
	ConfidenceScore  float64
	PositionSizeUSDT float64
	LaunchTime       time.Time
	PaperTrade       bool
}

// SnipeResult is the outcome of Sniper.Snipe.
type SnipeResult struct {
	Success   bool
	TradeID   string
	Trade     *domain.Trade
	Risk      *risk.RiskValidationResult
	Racing    *execution.RacingResult
	QuoteSize float64
	Error     string
	ErrorKind ErrorKind
}

// Sniper runs the whole flow: open the trade, size it, gate it on risk,
// wait for the launch window and execute.
type Sniper struct {
	start      *StartSnipingUseCase
	execute    *ExecuteTradeUseCase
	strategies *strategy.Manager
	risk       *risk.EnhancedRiskManager
	portfolio  risk.PortfolioProvider // optional
	trading    ports.TradingService
	repo       ports.TradingRepository
	window     *execution.WindowTimer
	racer      *execution.OrderRacer // optional
	logger     ports.Logger

	pnlMu  sync.Mutex
	pnlDay string
	pnlFed map[string]float64 // per user, already recorded today
}

// SniperDeps groups the collaborators of a Sniper.
type SniperDeps struct {
	Start      *StartSnipingUseCase
	Execute    *ExecuteTradeUseCase
	Strategies *strategy.Manager
	Risk       *risk.EnhancedRiskManager
	Portfolio  risk.PortfolioProvider
	Trading    ports.TradingService
	Repository ports.TradingRepository
	Window     *execution.WindowTimer
	Racer      *execution.OrderRacer
	Logger     ports.Logger
}

// NewSniper validates deps and creates the coordinator.
func NewSniper(d SniperDeps) (*Sniper, error) {
	if d.Start == nil || d.Execute == nil || d.Strategies == nil || d.Risk == nil ||
		d.Trading == nil || d.Repository == nil || d.Window == nil || d.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Sniper")
	}
	return &Sniper{
		start:      d.Start,
		execute:    d.Execute,
		strategies: d.Strategies,
		risk:       d.Risk,
		portfolio:  d.Portfolio,
		trading:    d.Trading,
		repo:       d.Repository,
		window:     d.Window,
		racer:      d.Racer,
		logger:     d.Logger,
	}, nil
}

// Snipe runs one snipe end to end. A trade denied by the risk engine is
// marked FAILED.
func (s *Sniper) Snipe(ctx context.Context, req SnipeRequest) SnipeResult {
	strat := s.strategies.GetActiveStrategy()

	started := s.start.Execute(ctx, StartSnipingInput{
		UserID:            req.UserID,
		Symbol:            req.Symbol,
		ConfidenceScore:   req.ConfidenceScore,
		PositionSizeUSDT:  req.PositionSizeUSDT,
		StopLossPercent:   strat.StopLossPercent,
		TakeProfitPercent: strat.TakeProfitPercent,
		PaperTrade:        req.PaperTrade,
		Strategy:          strat.Name,
	})
	if !started.Success {
		return SnipeResult{Error: started.Error, ErrorKind: started.ErrorKind}
	}
	trade := started.Trade
	out := SnipeResult{TradeID: trade.ID, Trade: trade}

	price, err := s.trading.GetCurrentPrice(ctx, req.Symbol)
	if err != nil || price <= 0 {
		reason := fmt.Sprintf("no price available for %s", req.Symbol)
		if err != nil {
			reason = fmt.Sprintf("%s: %v", reason, err)
		}
		return s.abort(ctx, out, trade, reason, KindExchange)
	}

	quote := s.quoteSize(ctx, req, price, strat)
	out.QuoteSize = quote

	s.syncDailyPnL(ctx, req.UserID)

	riskRes, err := s.risk.ValidateTradeRisk(ctx, risk.TradeRiskParams{
		Symbol:          req.Symbol,
		Side:            domain.Buy,
		Price:           price,
		QuoteOrderQty:   quote,
		StopLossPercent: strat.StopLossPercent,
	})
	if err != nil {
		return s.abort(ctx, out, trade, fmt.Sprintf("risk validation failed: %v", err), KindUnexpected)
	}
	out.Risk = riskRes
	if !riskRes.Approved {
		return s.abort(ctx, out, trade, "risk check denied: "+strings.Join(riskRes.Reasons, "; "), KindBusinessRule)
	}
	if riskRes.RecommendedSize > 0 && riskRes.RecommendedSize*price < quote {
		s.logger.Info(ctx, "Reducing position to recommended size", map[string]interface{}{
			"tradeId":     trade.ID,
			"from":        quote,
			"to":          riskRes.RecommendedSize * price,
			"riskScore":   riskRes.RiskScore,
			"recommended": riskRes.RecommendedSize,
		})
		quote = riskRes.RecommendedSize * price
		out.QuoteSize = quote
	}

	if !req.LaunchTime.IsZero() {
		window, err := s.window.WaitForExecutionWindow(ctx, req.LaunchTime)
		if err != nil {
			return s.abort(ctx, out, trade, fmt.Sprintf("waiting for launch window: %v", err), KindUnexpected)
		}
		if s.racer != nil && s.racer.Enabled() && !req.PaperTrade {
			return s.race(ctx, out, trade, quote, window)
		}
	}

	in := ExecuteTradeInput{
		TradeID:     trade.ID,
		Symbol:      req.Symbol,
		Side:        domain.Buy,
		Type:        strat.OrderType,
		TimeInForce: strat.TimeInForce,
		PaperTrade:  req.PaperTrade,
	}
	switch strat.OrderType {
	case domain.OrderTypeMarket:
		in.QuoteOrderQty = quote
	default:
		// Limit entries allow the strategy's slippage above the current price.
		in.Type = domain.OrderTypeLimit
		in.Price = price * (1 + strat.SlippageTolerance/100)
		in.Quantity = quote / in.Price
	}

	executed := s.execute.Execute(ctx, in)
	out.Success = executed.Success
	out.Error = executed.Error
	out.ErrorKind = executed.ErrorKind
	if executed.Trade != nil {
		out.Trade = executed.Trade
	}
	return out
}

// quoteSize applies the active strategy's sizing to the available balance,
// capped at the requested budget. Sizing statistics come from the user's
// trade history.
func (s *Sniper) quoteSize(ctx context.Context, req SnipeRequest, price float64, strat strategy.TradingStrategy) float64 {
	capital := req.PositionSizeUSDT
	if s.portfolio != nil {
		if p, err := s.portfolio.GetPortfolio(ctx); err == nil && p.AvailableBalance > 0 {
			capital = p.AvailableBalance
		} else if err != nil {
			s.logger.Warn(ctx, "Portfolio unavailable, sizing against the requested budget", map[string]interface{}{"error": err.Error()})
		}
	}

	in := strategy.SizingInput{ConfidenceScore: req.ConfidenceScore}
	if m, err := s.repo.GetTradingMetrics(ctx, req.UserID, time.Time{}, time.Time{}); err == nil && m != nil {
		in.WinRate = m.WinRate
		in.AverageWin = m.AverageWin
		in.AverageLoss = m.AverageLoss
	}

	size, err := s.strategies.CalculatePositionSize(capital, price, in)
	if err != nil || size.QuoteSize <= 0 {
		return req.PositionSizeUSDT
	}
	s.logger.Debug(ctx, "Position sized", map[string]interface{}{
		"strategy": size.Strategy,
		"fraction": size.Fraction,
		"quote":    size.QuoteSize,
		"capital":  capital,
		"method":   string(strat.PositionSizing),
	})
	return math.Min(size.QuoteSize, req.PositionSizeUSDT)
}

// WaitNotifications blocks until notifications sent by either use case have
// been delivered or timed out.
func (s *Sniper) WaitNotifications() {
	s.start.WaitNotifications()
	s.execute.WaitNotifications()
}

// syncDailyPnL records the user's realised P&L of trades created today
// (UTC) with the risk engine. Only the change since the last sync is
// recorded, so repeated snipes do not count a loss twice.
func (s *Sniper) syncDailyPnL(ctx context.Context, userID string) {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	m, err := s.repo.GetTradingMetrics(ctx, userID, dayStart, now)
	if err != nil {
		s.logger.Warn(ctx, "Daily P&L unavailable, risk check uses the last known value", map[string]interface{}{"userID": userID, "error": err.Error()})
		return
	}
	if m == nil {
		return
	}

	s.pnlMu.Lock()
	defer s.pnlMu.Unlock()
	if day := dayStart.Format("2006-01-02"); s.pnlDay != day {
		s.pnlDay = day
		s.pnlFed = make(map[string]float64)
	}
	if delta := m.TotalPnL - s.pnlFed[userID]; delta != 0 {
		s.risk.RecordDailyPnL(delta)
		s.pnlFed[userID] = m.TotalPnL
		s.logger.Debug(ctx, "Daily P&L recorded", map[string]interface{}{"userID": userID, "realizedToday": m.TotalPnL, "delta": delta})
	}
}

// race submits overlapping market orders inside window and folds the
// winning fill into the trade.
func (s *Sniper) race(ctx context.Context, out SnipeResult, trade *domain.Trade, quote float64, window execution.ExecutionWindow) SnipeResult {
	order, err := domain.NewOrder(domain.OrderParams{
		Symbol:          trade.Symbol,
		Side:            domain.Buy,
		Type:            domain.OrderTypeMarket,
		QuoteOrderQty:   quote,
		Strategy:        trade.Strategy,
		ConfidenceScore: trade.ConfidenceScore,
	})
	if err != nil {
		return s.abort(ctx, out, trade, err.Error(), KindValidation)
	}
	if err := trade.AddOrder(order); err != nil {
		return s.abort(ctx, out, trade, err.Error(), KindInvalidState)
	}

	raced, err := s.racer.ExecuteOrderSpamStrategy(ctx, ports.OrderRequest{
		Symbol:        trade.Symbol,
		Side:          domain.Buy,
		Type:          domain.OrderTypeMarket,
		QuoteOrderQty: formatAmount(quote),
		ClientOrderID: order.ClientOrderID,
	}, window)
	out.Racing = raced

	execRes := &ports.TradeExecutionResult{}
	switch {
	case err != nil:
		execRes.Error = fmt.Sprintf("order race failed: %v", err)
	case raced.FilledOrder == nil:
		execRes.Error = fmt.Sprintf("no order filled within the launch window after %d attempts", raced.TotalAttempts)
	default:
		f := raced.FilledOrder
		fillPrice := f.AvgPrice
		if fillPrice <= 0 {
			fillPrice = f.Price
		}
		execRes.Success = true
		execRes.Data = &ports.ExecutedOrder{
			OrderID:     f.OrderID,
			Symbol:      f.Symbol,
			Side:        f.Side,
			Type:        f.Type,
			Quantity:    formatAmount(f.OrigQuantity),
			Price:       formatAmount(fillPrice),
			Status:      f.Status,
			ExecutedQty: formatAmount(f.ExecutedQty),
			Timestamp:   f.Timestamp,
		}
	}

	if err := s.execute.applyExecution(ctx, trade, order, execRes); err != nil {
		out.Error = err.Error()
		out.ErrorKind = ClassifyError(err)
		return out
	}
	out.Trade = trade
	out.Success = execRes.Success
	if !execRes.Success {
		out.Error = execRes.Error
		out.ErrorKind = KindExchange
	}
	return out
}

// abort fails the trade, persists it and notifies.
func (s *Sniper) abort(ctx context.Context, out SnipeResult, trade *domain.Trade, reason string, kind ErrorKind) SnipeResult {
	s.logger.Warn(ctx, "Snipe aborted", map[string]interface{}{
		"tradeId": trade.ID,
		"symbol":  trade.Symbol,
		"reason":  reason,
	})
	if err := trade.MarkAsFailed(reason); err != nil {
		s.logger.Error(ctx, err, "Failed to mark trade as failed", map[string]interface{}{"tradeId": trade.ID})
	} else if err := s.execute.persist(ctx, trade); err != nil {
		s.logger.Error(ctx, err, "Failed to persist failed trade", map[string]interface{}{"tradeId": trade.ID})
	}
	s.execute.notifyFailure(ctx, trade, reason)

	out.Success = false
	out.Trade = trade
	out.Error = reason
	out.ErrorKind = kind
	return out
}
