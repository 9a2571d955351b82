package strategy

import "sniperBot/internal/domain"

// SizingMethod selects how a position size is computed.
type SizingMethod string

const (
	SizingFixed SizingMethod = "fixed"
	SizingKelly SizingMethod = "kelly"
	// SizingPercentage scales the base fraction by volatility and confidence.
	SizingPercentage SizingMethod = "percentage"
)

// IsValid reports whether the method is known.
func (m SizingMethod) IsValid() bool {
	return m == SizingFixed || m == SizingKelly || m == SizingPercentage
}

// Built-in strategy names.
const (
	Conservative = "conservative"
	Balanced     = "balanced"
	Aggressive   = "aggressive"
)

// TradingStrategy is a named parameter set. Percentages are 0..100,
// MaxPositionSize is a fraction of available capital.
type TradingStrategy struct {
	Name               string             `yaml:"name"`
	Description        string             `yaml:"description"`
	PositionSizing     SizingMethod       `yaml:"positionSizing"`
	MaxPositionSize    float64            `yaml:"maxPositionSize"`
	StopLossPercent    float64            `yaml:"stopLossPercent"`
	TakeProfitPercent  float64            `yaml:"takeProfitPercent"`
	MaxDrawdownPercent float64            `yaml:"maxDrawdownPercent"`
	OrderType          domain.OrderType   `yaml:"orderType"`
	TimeInForce        domain.TimeInForce `yaml:"timeInForce"`
	SlippageTolerance  float64            `yaml:"slippageTolerance"`

	MultiPhaseEnabled bool `yaml:"multiPhaseEnabled"`
	PhaseCount        int  `yaml:"phaseCount"`
	PhaseDelayMs      int  `yaml:"phaseDelayMs"`

	AutoSnipeEnabled bool    `yaml:"autoSnipeEnabled"`
	MinConfidence    float64 `yaml:"minConfidence"`

	TrailingStopEnabled bool    `yaml:"trailingStopEnabled"`
	TrailingStopPercent float64 `yaml:"trailingStopPercent"`

	PartialTakeProfitEnabled bool    `yaml:"partialTakeProfitEnabled"`
	PartialTakeProfitPercent float64 `yaml:"partialTakeProfitPercent"`

	BuiltIn bool `yaml:"-"`
}

// BuiltInStrategies returns fresh copies of the three seeded strategies.
func BuiltInStrategies() []TradingStrategy {
	return []TradingStrategy{
		{
			Name:               Conservative,
			Description:        "Small fixed positions, limit orders, tight risk",
			PositionSizing:     SizingFixed,
			MaxPositionSize:    0.05,
			StopLossPercent:    5,
			TakeProfitPercent:  10,
			MaxDrawdownPercent: 10,
			OrderType:          domain.OrderTypeLimit,
			TimeInForce:        domain.TimeInForceGTC,
			SlippageTolerance:  0.5,
			AutoSnipeEnabled:   true,
			MinConfidence:      80,
			BuiltIn:            true,
		},
		{
			Name:                Balanced,
			Description:         "Kelly-sized market entries in two phases with a trailing stop",
			PositionSizing:      SizingKelly,
			MaxPositionSize:     0.10,
			StopLossPercent:     10,
			TakeProfitPercent:   20,
			MaxDrawdownPercent:  15,
			OrderType:           domain.OrderTypeMarket,
			TimeInForce:         domain.TimeInForceIOC,
			SlippageTolerance:   1,
			MultiPhaseEnabled:   true,
			PhaseCount:          2,
			PhaseDelayMs:        500,
			AutoSnipeEnabled:    true,
			MinConfidence:       70,
			TrailingStopEnabled: true,
			TrailingStopPercent: 5,
			BuiltIn:             true,
		},
		{
			Name:                     Aggressive,
			Description:              "Large volatility-scaled entries with partial profit taking",
			PositionSizing:           SizingPercentage,
			MaxPositionSize:          0.20,
			StopLossPercent:          15,
			TakeProfitPercent:        40,
			MaxDrawdownPercent:       25,
			OrderType:                domain.OrderTypeMarket,
			TimeInForce:              domain.TimeInForceIOC,
			SlippageTolerance:        2,
			MultiPhaseEnabled:        true,
			PhaseCount:               3,
			PhaseDelayMs:             250,
			AutoSnipeEnabled:         true,
			MinConfidence:            60,
			TrailingStopEnabled:      true,
			TrailingStopPercent:      8,
			PartialTakeProfitEnabled: true,
			PartialTakeProfitPercent: 50,
			BuiltIn:                  true,
		},
	}
}
