package domain

import (
	"errors"
	"fmt"
)

// DomainValidationError reports malformed or semantically invalid input.
type DomainValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *DomainValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a DomainValidationError.
func NewValidationError(field string, value interface{}, reason string) *DomainValidationError {
	return &DomainValidationError{Field: field, Value: value, Reason: reason}
}

// InvalidTradeParametersError reports a parameter combination that cannot be
// executed against a trade (symbol mismatch, paper/live mismatch, ...).
type InvalidTradeParametersError struct {
	Parameter string
	Reason    string
}

func (e *InvalidTradeParametersError) Error() string {
	return fmt.Sprintf("invalid trade parameter %s: %s", e.Parameter, e.Reason)
}

// InvalidOrderStateError reports an attempted transition that the current
// state of a trade or order does not allow.
type InvalidOrderStateError struct {
	Entity string // "trade" or "order"
	ID     string
	Status string
	Action string
}

func (e *InvalidOrderStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status %s", e.Action, e.Entity, e.ID, e.Status)
}

// BusinessRuleViolationError reports a rule of the sniping domain that blocks
// the request (duplicate auto-snipe, confidence too low, ...).
type BusinessRuleViolationError struct {
	Rule   string
	Reason string
}

func (e *BusinessRuleViolationError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Reason)
}

// ErrTradeFinalized is wrapped by errors returned for terminal trades.
var ErrTradeFinalized = errors.New("trade is already finalized")
