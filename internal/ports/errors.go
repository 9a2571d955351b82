package ports

import (
	"errors"
	"fmt"
)

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these.
var (
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Exchange
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrSymbolNotTradeable   = errors.New("symbol is not tradeable yet")
	ErrTradingDisabled      = errors.New("trading is disabled for symbol")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrOrderNotFound        = errors.New("order not found on the exchange")
	ErrOrderPlacementFailed = errors.New("failed to place order")
	ErrOrderCancelFailed    = errors.New("failed to cancel order")
	ErrSymbolNotFound       = errors.New("symbol not found on the exchange")

	// Database
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
	ErrDeleteFailed   = errors.New("database delete failed")
)

// Exchange error codes that are treated as transient by order execution.
const (
	CodeSymbolNotTradeable = 10007
	CodeRateLimited        = 429
)

// ExchangeError carries the raw code and message returned by the exchange.
type ExchangeError struct {
	Code    int
	Message string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange error %d: %s", e.Code, e.Message)
}

// Is lets errors.Is match the transient sentinels against the raw code.
func (e *ExchangeError) Is(target error) bool {
	switch target {
	case ErrSymbolNotTradeable:
		return e.Code == CodeSymbolNotTradeable
	case ErrRateLimited:
		return e.Code == CodeRateLimited
	}
	return false
}

// ExchangeErrorCode extracts the exchange code from err, if any.
func ExchangeErrorCode(err error) (int, bool) {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return exErr.Code, true
	}
	return 0, false
}
