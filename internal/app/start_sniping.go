package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// SnipingRules are the business rules applied when a snipe starts.
type SnipingRules struct {
	MinConfidence   float64
	MaxActiveTrades int
}

// DefaultSnipingRules requires confidence 50 and allows 10 active trades.
func DefaultSnipingRules() SnipingRules {
	return SnipingRules{MinConfidence: 50, MaxActiveTrades: 10}
}

// StartSnipingResult is the outcome of StartSnipingUseCase.Execute.
type StartSnipingResult struct {
	Success   bool
	TradeID   string
	Trade     *domain.Trade
	Error     string
	ErrorKind ErrorKind
	Timestamp time.Time
}

func (r StartSnipingResult) succeeded() bool { return r.Success }

// SnipingCapacity reports how many more snipes a user may start.
type SnipingCapacity struct {
	CanStart        bool
	ActiveTrades    int
	MaxActiveTrades int
	Remaining       int
}

// StartSnipingUseCase opens an auto-snipe Trade and moves it to EXECUTING.
type StartSnipingUseCase struct {
	repo     ports.TradingRepository
	trading  ports.TradingService
	notify   *backgroundNotifier
	logger   ports.Logger
	rules    SnipingRules
	validate *validator.Validate
	boundary boundary
}

// NewStartSnipingUseCase creates the use case. metrics may be nil.
func NewStartSnipingUseCase(
	repo ports.TradingRepository,
	trading ports.TradingService,
	notifier ports.NotificationService,
	logger ports.Logger,
	metrics ports.MetricsRecorder,
	rules SnipingRules,
) (*StartSnipingUseCase, error) {
	if repo == nil || trading == nil || notifier == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for StartSnipingUseCase")
	}
	if rules.MaxActiveTrades <= 0 {
		return nil, fmt.Errorf("max active trades must be positive")
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &StartSnipingUseCase{
		repo:     repo,
		trading:  trading,
		notify:   newBackgroundNotifier(notifier, logger),
		logger:   logger,
		rules:    rules,
		validate: newValidator(),
		boundary: boundary{logger: logger, metrics: metrics},
	}, nil
}

// Execute validates in, applies the sniping rules and creates the trade.
// Failures are reported in the result, never returned or panicked.
func (uc *StartSnipingUseCase) Execute(ctx context.Context, in StartSnipingInput) StartSnipingResult {
	res := run(ctx, uc.boundary, "start_sniping", func(ctx context.Context) (StartSnipingResult, error) {
		return uc.execute(ctx, in)
	}, func(msg string, kind ErrorKind) StartSnipingResult {
		return StartSnipingResult{Error: msg, ErrorKind: kind}
	})
	res.Timestamp = time.Now().UTC()
	return res
}

func (uc *StartSnipingUseCase) execute(ctx context.Context, in StartSnipingInput) (StartSnipingResult, error) {
	if err := validateInput(uc.validate, in); err != nil {
		return StartSnipingResult{}, err
	}
	if in.ConfidenceScore < uc.rules.MinConfidence {
		return StartSnipingResult{}, &domain.BusinessRuleViolationError{
			Rule:   "min_confidence",
			Reason: fmt.Sprintf("confidence score %.1f is below the minimum confidence threshold of %.1f", in.ConfidenceScore, uc.rules.MinConfidence),
		}
	}

	active, err := uc.repo.FindActiveTradesByUserID(ctx, in.UserID)
	if err != nil {
		return StartSnipingResult{}, fmt.Errorf("load active trades: %w", err)
	}
	if len(active) >= uc.rules.MaxActiveTrades {
		return StartSnipingResult{}, &domain.BusinessRuleViolationError{
			Rule:   "max_active_trades",
			Reason: fmt.Sprintf("user already has %d active trades (limit %d)", len(active), uc.rules.MaxActiveTrades),
		}
	}
	for _, t := range active {
		if t.IsAutoSnipe && t.Symbol == in.Symbol {
			return StartSnipingResult{}, &domain.BusinessRuleViolationError{
				Rule:   "duplicate_auto_snipe",
				Reason: fmt.Sprintf("an auto-snipe for %s is already active (trade %s)", in.Symbol, t.ID),
			}
		}
	}

	tradeable, err := uc.trading.CanTrade(ctx, in.Symbol)
	if err != nil {
		return StartSnipingResult{}, fmt.Errorf("check tradeability of %s: %w", in.Symbol, err)
	}
	if !tradeable {
		return StartSnipingResult{}, &domain.BusinessRuleViolationError{
			Rule:   "symbol_tradeable",
			Reason: fmt.Sprintf("trading is not enabled for %s", in.Symbol),
		}
	}

	trade, err := domain.NewTrade(domain.TradeParams{
		UserID:            in.UserID,
		Symbol:            in.Symbol,
		IsAutoSnipe:       true,
		ConfidenceScore:   in.ConfidenceScore,
		PaperTrade:        in.PaperTrade,
		Strategy:          in.Strategy,
		StopLossPercent:   in.StopLossPercent,
		TakeProfitPercent: in.TakeProfitPercent,
		PositionSizeUSDT:  in.PositionSizeUSDT,
	})
	if err != nil {
		return StartSnipingResult{}, err
	}
	if err := uc.repo.SaveTrade(ctx, trade); err != nil {
		return StartSnipingResult{}, fmt.Errorf("save trade: %w", err)
	}

	if err := trade.StartExecution(); err != nil {
		return StartSnipingResult{}, err
	}
	if err := uc.repo.UpdateTrade(ctx, trade); err != nil {
		return StartSnipingResult{}, fmt.Errorf("update trade: %w", err)
	}

	uc.logger.Info(ctx, "Sniping started", map[string]interface{}{
		"tradeId":    trade.ID,
		"userId":     trade.UserID,
		"symbol":     trade.Symbol,
		"confidence": trade.ConfidenceScore,
		"paperTrade": trade.PaperTrade,
	})
	uc.notify.execution(ctx, trade)

	return StartSnipingResult{Success: true, TradeID: trade.ID, Trade: trade}, nil
}

// WaitNotifications blocks until in-flight notifications have been sent.
func (uc *StartSnipingUseCase) WaitNotifications() {
	uc.notify.wait()
}

// CanUserStartSniping reports the user's remaining capacity without
// changing any state.
func (uc *StartSnipingUseCase) CanUserStartSniping(ctx context.Context, userID string) (SnipingCapacity, error) {
	active, err := uc.repo.FindActiveTradesByUserID(ctx, userID)
	if err != nil {
		return SnipingCapacity{}, fmt.Errorf("load active trades: %w", err)
	}
	remaining := uc.rules.MaxActiveTrades - len(active)
	if remaining < 0 {
		remaining = 0
	}
	return SnipingCapacity{
		CanStart:        remaining > 0,
		ActiveTrades:    len(active),
		MaxActiveTrades: uc.rules.MaxActiveTrades,
		Remaining:       remaining,
	}, nil
}
