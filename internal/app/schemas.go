package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"sniperBot/internal/domain"
)

// StartSnipingInput is the request of StartSnipingUseCase.
type StartSnipingInput struct {
	UserID            string  `json:"userId" validate:"required"`
	Symbol            string  `json:"symbol" validate:"required,alphanum,uppercase"`
	ConfidenceScore   float64 `json:"confidenceScore" validate:"gte=0,lte=100"`
	PositionSizeUSDT  float64 `json:"positionSizeUsdt" validate:"gt=0"`
	StopLossPercent   float64 `json:"stopLossPercent,omitempty" validate:"omitempty,gt=0,lte=100"`
	TakeProfitPercent float64 `json:"takeProfitPercent,omitempty" validate:"omitempty,gt=0,lte=1000"`
	PaperTrade        bool    `json:"paperTrade"`
	Strategy          string  `json:"strategy,omitempty"`
}

// ExecuteTradeInput is the request of ExecuteTradeUseCase.
type ExecuteTradeInput struct {
	TradeID       string             `json:"tradeId" validate:"required"`
	Symbol        string             `json:"symbol" validate:"required,alphanum,uppercase"`
	Side          domain.OrderSide   `json:"side" validate:"required,oneof=BUY SELL"`
	Type          domain.OrderType   `json:"type" validate:"required,oneof=MARKET LIMIT STOP_LIMIT"`
	Quantity      float64            `json:"quantity,omitempty" validate:"gte=0,required_without=QuoteOrderQty,excluded_with=QuoteOrderQty"`
	QuoteOrderQty float64            `json:"quoteOrderQty,omitempty" validate:"gte=0"`
	Price         float64            `json:"price,omitempty" validate:"gte=0,required_if=Type LIMIT"`
	StopPrice     float64            `json:"stopPrice,omitempty" validate:"gte=0,required_if=Type STOP_LIMIT"`
	TimeInForce   domain.TimeInForce `json:"timeInForce,omitempty" validate:"omitempty,oneof=GTC IOC FOK"`
	PaperTrade    bool               `json:"paperTrade"`
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateInput runs the struct tags of in and converts the first violation
// into a DomainValidationError.
func validateInput(v *validator.Validate, in interface{}) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewValidationError("", in, err.Error())
	}
	fe := fieldErrs[0]
	return domain.NewValidationError(fe.Field(), fe.Value(), describeViolation(fe))
}

func describeViolation(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "quantity or quoteOrderQty is required"
	case "excluded_with":
		return "quantity and quoteOrderQty are mutually exclusive"
	case "required_if":
		return fmt.Sprintf("is required when %s", strings.Replace(fe.Param(), " ", " is ", 1))
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("must be %s %s", comparisonWords[fe.Tag()], fe.Param())
	case "alphanum", "uppercase":
		return "must be an uppercase alphanumeric symbol such as BTCUSDT"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

var comparisonWords = map[string]string{
	"gt":  "greater than",
	"gte": "at least",
	"lt":  "less than",
	"lte": "at most",
}
