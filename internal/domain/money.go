package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an immutable monetary amount in a single currency.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// USDT builds a quote-asset amount from a float.
func USDT(amount float64) Money {
	return Money{Amount: decimal.NewFromFloat(amount), Currency: QuoteAsset}
}

// Float returns the amount as float64.
func (m Money) Float() float64 {
	f, _ := m.Amount.Float64()
	return f
}

// Add sums two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub subtracts other from m.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

func (m Money) String() string {
	return m.Amount.String() + " " + m.Currency
}
