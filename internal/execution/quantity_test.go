package execution

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperBot/internal/ports"
)

func lotFilters(step, minQty, maxQty, minNotional string) []ports.SymbolFilter {
	filters := []ports.SymbolFilter{{FilterType: FilterLotSize, StepSize: step, MinQty: minQty, MaxQty: maxQty}}
	if minNotional != "" {
		filters = append(filters, ports.SymbolFilter{FilterType: FilterMinNotional, MinNotional: minNotional})
	}
	return filters
}

func TestStepPrecision(t *testing.T) {
	assert.Equal(t, int32(3), StepPrecision("0.00100000"))
	assert.Equal(t, int32(0), StepPrecision("1.00000000"))
	assert.Equal(t, int32(0), StepPrecision("10"))
	assert.Equal(t, int32(6), StepPrecision("0.000001"))
}

func TestValidateAndAdjustQuantity_FloorsToStep(t *testing.T) {
	res := ValidateAndAdjustQuantity(0.0029, 50000, lotFilters("0.001", "0.001", "100", "5"))

	assert.True(t, res.IsValid, res.Errors)
	assert.InDelta(t, 0.002, res.AdjustedQuantity, 1e-12)
	assert.Equal(t, "0.002", res.AdjustedQuantityStr)
	assert.Len(t, res.Warnings, 1)
	assert.Equal(t, int32(3), res.Details.Precision)
	assert.InDelta(t, 100, res.Details.NotionalValue, 1e-9)
}

func TestValidateAndAdjustQuantity_Violations(t *testing.T) {
	t.Run("missing lot size", func(t *testing.T) {
		res := ValidateAndAdjustQuantity(1, 10, []ports.SymbolFilter{{FilterType: FilterMinNotional, MinNotional: "5"}})
		assert.False(t, res.IsValid)
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0], "LOT_SIZE")
	})
	t.Run("below min qty", func(t *testing.T) {
		res := ValidateAndAdjustQuantity(0.5, 10, lotFilters("0.1", "1", "100", ""))
		assert.False(t, res.IsValid)
		assert.Contains(t, res.Errors[0], "below minimum")
	})
	t.Run("above max qty", func(t *testing.T) {
		res := ValidateAndAdjustQuantity(150, 10, lotFilters("1", "1", "100", ""))
		assert.False(t, res.IsValid)
		assert.Contains(t, res.Errors[0], "exceeds maximum")
	})
	t.Run("below min notional", func(t *testing.T) {
		res := ValidateAndAdjustQuantity(0.001, 1000, lotFilters("0.001", "0.001", "100", "5"))
		assert.False(t, res.IsValid)
		require.NotEmpty(t, res.Errors)
		assert.Contains(t, res.Errors[len(res.Errors)-1], "minimum notional")
	})
	t.Run("notional filter alias", func(t *testing.T) {
		filters := []ports.SymbolFilter{
			{FilterType: FilterLotSize, StepSize: "0.01", MinQty: "0.01"},
			{FilterType: FilterNotional, MinNotional: "10"},
		}
		res := ValidateAndAdjustQuantity(0.5, 10, filters)
		assert.False(t, res.IsValid)
	})
}

func TestValidateAndAdjustQuantity_NeverRoundsUp(t *testing.T) {
	steps := []string{"0.001", "0.01", "0.1", "1", "0.00001", "0.5", "0.003"}
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		step := steps[r.Intn(len(steps))]
		q := r.Float64() * 1000
		res := ValidateAndAdjustQuantity(q, 1, lotFilters(step, "0", "0", ""))

		stepDec := decimal.RequireFromString(step)
		adj := decimal.RequireFromString(res.AdjustedQuantityStr)
		assert.True(t, adj.LessThanOrEqual(decimal.NewFromFloat(q)), "q=%v step=%s adj=%s", q, step, adj)
		assert.True(t, adj.Mod(stepDec).IsZero(), "q=%v step=%s adj=%s", q, step, adj)
	}
}

func TestCheckMinNotional(t *testing.T) {
	filters := lotFilters("0.001", "0.001", "100", "5")
	assert.NoError(t, CheckMinNotional(100, filters))
	assert.Error(t, CheckMinNotional(4.99, filters))
	assert.NoError(t, CheckMinNotional(1, lotFilters("0.001", "0.001", "100", "")))
}
