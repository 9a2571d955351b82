package execution

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"sniperBot/internal/ports"
)

// Filter type names used by the exchange.
const (
	FilterLotSize     = "LOT_SIZE"
	FilterMinNotional = "MIN_NOTIONAL"
	FilterNotional    = "NOTIONAL"
)

// QuantityDetails records the inputs and intermediate values of a validation.
type QuantityDetails struct {
	RawQuantity     float64
	RoundedQuantity float64
	Precision       int32
	MinQty          float64
	MaxQty          float64
	StepSize        float64
	NotionalValue   float64
	MinNotional     float64
}

// QuantityValidationResult is the outcome of ValidateAndAdjustQuantity.
type QuantityValidationResult struct {
	AdjustedQuantity    float64
	AdjustedQuantityStr string // formatted with Details.Precision decimals
	IsValid             bool
	Errors              []string
	Warnings            []string
	Details             QuantityDetails
}

func (r *QuantityValidationResult) fail(format string, args ...interface{}) {
	r.IsValid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// ValidateAndAdjustQuantity floors rawQuantity to the LOT_SIZE step and checks
// it against the min/max quantity and minimum notional at price.
// The adjusted quantity is never larger than rawQuantity.
func ValidateAndAdjustQuantity(rawQuantity, price float64, filters []ports.SymbolFilter) QuantityValidationResult {
	res := QuantityValidationResult{IsValid: true, Details: QuantityDetails{RawQuantity: rawQuantity}}

	lot := findFilter(filters, FilterLotSize)
	if lot == nil {
		res.fail("LOT_SIZE filter not found for symbol")
		return res
	}
	step, err := parseFilterValue(lot.StepSize)
	if err != nil {
		res.fail("invalid stepSize %q: %v", lot.StepSize, err)
		return res
	}
	minQty, err := parseFilterValue(lot.MinQty)
	if err != nil {
		res.fail("invalid minQty %q: %v", lot.MinQty, err)
		return res
	}
	maxQty, err := parseFilterValue(lot.MaxQty)
	if err != nil {
		res.fail("invalid maxQty %q: %v", lot.MaxQty, err)
		return res
	}

	precision := StepPrecision(lot.StepSize)
	res.Details.Precision = precision
	res.Details.StepSize = step.InexactFloat64()
	res.Details.MinQty = minQty.InexactFloat64()
	res.Details.MaxQty = maxQty.InexactFloat64()

	if rawQuantity <= 0 {
		res.fail("quantity must be positive, got %v", rawQuantity)
		return res
	}

	raw := decimal.NewFromFloat(rawQuantity)
	rounded := FloorToStep(raw, step, precision)
	res.AdjustedQuantity = rounded.InexactFloat64()
	res.AdjustedQuantityStr = rounded.StringFixed(precision)
	res.Details.RoundedQuantity = res.AdjustedQuantity

	if !rounded.Equal(raw) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("quantity adjusted from %s to %s to match step size %s", raw.String(), res.AdjustedQuantityStr, step.String()))
	}
	if !rounded.IsPositive() {
		res.fail("quantity %s rounds to zero with step size %s", raw.String(), step.String())
	}
	if minQty.IsPositive() && rounded.LessThan(minQty) {
		res.fail("quantity %s is below minimum %s", res.AdjustedQuantityStr, minQty.String())
	}
	if maxQty.IsPositive() && rounded.GreaterThan(maxQty) {
		res.fail("quantity %s exceeds maximum %s", res.AdjustedQuantityStr, maxQty.String())
	}

	minNotional := MinNotional(filters)
	res.Details.MinNotional = minNotional.InexactFloat64()
	if price > 0 {
		notional := rounded.Mul(decimal.NewFromFloat(price))
		res.Details.NotionalValue = notional.InexactFloat64()
		if minNotional.IsPositive() && notional.LessThan(minNotional) {
			res.fail("notional value %s is below minimum notional %s", notional.StringFixed(8), minNotional.String())
		}
	}
	return res
}

// CheckMinNotional validates a quote-denominated order amount.
func CheckMinNotional(quoteAmount float64, filters []ports.SymbolFilter) error {
	minNotional := MinNotional(filters)
	if minNotional.IsPositive() && decimal.NewFromFloat(quoteAmount).LessThan(minNotional) {
		return fmt.Errorf("order value %v is below minimum notional %s", quoteAmount, minNotional.String())
	}
	return nil
}

// MinNotional returns the MIN_NOTIONAL (or NOTIONAL) threshold, zero if absent.
func MinNotional(filters []ports.SymbolFilter) decimal.Decimal {
	f := findFilter(filters, FilterMinNotional)
	if f == nil {
		f = findFilter(filters, FilterNotional)
	}
	if f == nil {
		return decimal.Zero
	}
	v, err := parseFilterValue(f.MinNotional)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// FloorToStep rounds q down to a multiple of step, truncated to precision.
func FloorToStep(q, step decimal.Decimal, precision int32) decimal.Decimal {
	if !step.IsPositive() {
		return q.Truncate(precision)
	}
	quo, _ := q.QuoRem(step, 0)
	return quo.Mul(step).Truncate(precision)
}

// StepPrecision counts the significant fractional digits of a step size,
// e.g. "0.00100000" -> 3, "1.0" -> 0.
func StepPrecision(stepSize string) int32 {
	s := strings.TrimSpace(stepSize)
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return 0
	}
	frac := strings.TrimRight(s[dot+1:], "0")
	return int32(len(frac))
}

func parseFilterValue(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}

func findFilter(filters []ports.SymbolFilter, filterType string) *ports.SymbolFilter {
	for i := range filters {
		if filters[i].FilterType == filterType {
			return &filters[i]
		}
	}
	return nil
}
