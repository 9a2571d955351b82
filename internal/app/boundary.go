package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// ErrorKind classifies a failure surfaced at the use-case boundary.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindBusinessRule ErrorKind = "business_rule"
	KindInvalidState ErrorKind = "invalid_state"
	KindNotFound     ErrorKind = "not_found"
	KindExchange     ErrorKind = "exchange"
	KindUnexpected   ErrorKind = "unexpected"
)

const unexpectedErrorMessage = "an unexpected error occurred, please try again"

// ClassifyError maps err onto the boundary taxonomy.
func ClassifyError(err error) ErrorKind {
	var (
		validation *domain.DomainValidationError
		params     *domain.InvalidTradeParametersError
		state      *domain.InvalidOrderStateError
		rule       *domain.BusinessRuleViolationError
		exchange   *ports.ExchangeError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &params):
		return KindValidation
	case errors.As(err, &rule):
		return KindBusinessRule
	case errors.Is(err, domain.ErrTradeFinalized), errors.As(err, &state):
		return KindInvalidState
	case errors.Is(err, ports.ErrNotFound):
		return KindNotFound
	case errors.As(err, &exchange),
		errors.Is(err, ports.ErrExchangeUnavailable),
		errors.Is(err, ports.ErrRateLimited),
		errors.Is(err, ports.ErrSymbolNotTradeable),
		errors.Is(err, ports.ErrTradingDisabled),
		errors.Is(err, ports.ErrOrderPlacementFailed):
		return KindExchange
	default:
		return KindUnexpected
	}
}

// SafeMessage is the caller-facing text for err. Unexpected errors are not
// echoed back.
func SafeMessage(err error, kind ErrorKind) string {
	if kind == KindUnexpected {
		return unexpectedErrorMessage
	}
	return err.Error()
}

// outcome is implemented by the result types of the use cases.
type outcome interface {
	succeeded() bool
}

// boundary holds what every entry point needs to convert errors into results.
type boundary struct {
	logger  ports.Logger
	metrics ports.MetricsRecorder
}

// run executes fn, turning returned errors and panics into the failure
// result built by fail. Every call is timed.
func run[T outcome](ctx context.Context, b boundary, op string, fn func(context.Context) (T, error), fail func(msg string, kind ErrorKind) T) (res T) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in %s: %v", op, r)
			b.logger.Error(ctx, err, "Recovered from panic at use-case boundary", map[string]interface{}{
				"operation": op,
				"stack":     string(debug.Stack()),
			})
			res = fail(unexpectedErrorMessage, KindUnexpected)
		}
		b.metrics.ObserveTradeExecution(op, res.succeeded(), time.Since(start))
	}()

	res, err := fn(ctx)
	if err != nil {
		kind := ClassifyError(err)
		fields := map[string]interface{}{"operation": op, "kind": string(kind)}
		if kind == KindUnexpected {
			b.logger.Error(ctx, err, "Use case failed unexpectedly", fields)
		} else {
			fields["error"] = err.Error()
			b.logger.Warn(ctx, "Use case rejected request", fields)
		}
		return fail(SafeMessage(err, kind), kind)
	}
	return res
}
