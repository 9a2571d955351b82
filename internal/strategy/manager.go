package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"sniperBot/internal/ports"
	"sniperBot/internal/strategy/optimization"
)

var (
	ErrStrategyNotFound  = errors.New("strategy not found")
	ErrStrategyExists    = errors.New("strategy already exists")
	ErrBuiltInStrategy   = errors.New("built-in strategies cannot be modified or removed")
	ErrActiveStrategy    = errors.New("the active strategy cannot be removed")
	ErrInvalidStrategy   = errors.New("invalid strategy")
	ErrInsufficientPrice = errors.New("price must be positive")
)

// Manager is an in-memory registry of named strategies with exactly one
// active at a time. It is safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	strategies map[string]TradingStrategy
	active     string
	logger     ports.Logger
}

// NewManager seeds the built-in strategies and activates Balanced.
func NewManager(logger ports.Logger) *Manager {
	m := &Manager{
		strategies: make(map[string]TradingStrategy),
		active:     Balanced,
		logger:     logger,
	}
	for _, s := range BuiltInStrategies() {
		m.strategies[s.Name] = s
	}
	return m
}

// GetActiveStrategy returns a copy of the active strategy.
func (m *Manager) GetActiveStrategy() TradingStrategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.strategies[m.active]
}

// SetActiveStrategy switches the active strategy. Unknown names are refused.
func (m *Manager) SetActiveStrategy(ctx context.Context, name string) error {
	m.mu.Lock()
	if _, ok := m.strategies[name]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("set active strategy %q: %w", name, ErrStrategyNotFound)
	}
	previous := m.active
	m.active = name
	m.mu.Unlock()

	m.logger.Info(ctx, "Active strategy changed", map[string]interface{}{
		"from": previous,
		"to":   name,
	})
	return nil
}

// GetStrategy returns the named strategy.
func (m *Manager) GetStrategy(name string) (TradingStrategy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.strategies[name]
	return s, ok
}

// ListStrategies returns every strategy sorted by name.
func (m *Manager) ListStrategies() []TradingStrategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TradingStrategy, 0, len(m.strategies))
	for _, s := range m.strategies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AddStrategy validates and registers a custom strategy.
func (m *Manager) AddStrategy(ctx context.Context, s TradingStrategy) error {
	if err := Validate(s); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidStrategy, s.Name, err)
	}
	s.BuiltIn = false

	m.mu.Lock()
	if _, exists := m.strategies[s.Name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("add strategy %q: %w", s.Name, ErrStrategyExists)
	}
	m.strategies[s.Name] = s
	m.mu.Unlock()

	m.logger.Info(ctx, "Strategy added", map[string]interface{}{"name": s.Name, "sizing": string(s.PositionSizing)})
	return nil
}

// UpdateStrategy replaces a custom strategy. Built-ins are read-only.
func (m *Manager) UpdateStrategy(ctx context.Context, s TradingStrategy) error {
	if err := Validate(s); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidStrategy, s.Name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.strategies[s.Name]
	if !ok {
		return fmt.Errorf("update strategy %q: %w", s.Name, ErrStrategyNotFound)
	}
	if existing.BuiltIn {
		return fmt.Errorf("update strategy %q: %w", s.Name, ErrBuiltInStrategy)
	}
	s.BuiltIn = false
	m.strategies[s.Name] = s
	m.logger.Info(ctx, "Strategy updated", map[string]interface{}{"name": s.Name})
	return nil
}

// RemoveStrategy deletes a custom strategy that is not active.
func (m *Manager) RemoveStrategy(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.strategies[name]
	if !ok {
		return fmt.Errorf("remove strategy %q: %w", name, ErrStrategyNotFound)
	}
	if s.BuiltIn {
		return fmt.Errorf("remove strategy %q: %w", name, ErrBuiltInStrategy)
	}
	if m.active == name {
		return fmt.Errorf("remove strategy %q: %w", name, ErrActiveStrategy)
	}
	delete(m.strategies, name)
	m.logger.Info(ctx, "Strategy removed", map[string]interface{}{"name": name})
	return nil
}

// PositionSize is the outcome of CalculatePositionSize.
type PositionSize struct {
	Strategy  string
	Fraction  float64 // of available capital
	QuoteSize float64 // USDT
	Quantity  float64 // base asset at price
}

// CalculatePositionSize sizes a position for the active strategy against
// availableCapital at price.
func (m *Manager) CalculatePositionSize(availableCapital, price float64, in SizingInput) (PositionSize, error) {
	if price <= 0 {
		return PositionSize{}, ErrInsufficientPrice
	}
	if availableCapital < 0 {
		return PositionSize{}, fmt.Errorf("available capital must not be negative, got %v", availableCapital)
	}

	s := m.GetActiveStrategy()
	f := PositionFraction(s, in)
	quote := availableCapital * f
	return PositionSize{
		Strategy:  s.Name,
		Fraction:  f,
		QuoteSize: quote,
		Quantity:  quote / price,
	}, nil
}

// Optimize grid-searches stop-loss, take-profit and confidence threshold
// over data and returns the ranked results with a copy of the named strategy
// carrying the best combination. The copy is named "<name>-tuned" and is not
// registered; an empty name tunes the active strategy.
func (m *Manager) Optimize(ctx context.Context, name string, cfg optimization.OptimizerConfig, data []optimization.DataPoint) (TradingStrategy, []optimization.OptimizationResult, error) {
	if name == "" {
		name = m.GetActiveStrategy().Name
	}
	base, ok := m.GetStrategy(name)
	if !ok {
		return TradingStrategy{}, nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}

	results, err := optimization.NewOptimizer(cfg).Optimize(ctx, data)
	if err != nil {
		return TradingStrategy{}, nil, fmt.Errorf("optimize strategy %s: %w", name, err)
	}
	best := results[0]

	tuned := base
	tuned.Name = base.Name + "-tuned"
	tuned.BuiltIn = false
	if v, ok := best.Parameters[optimization.ParamStopLoss]; ok {
		tuned.StopLossPercent = v
	}
	if v, ok := best.Parameters[optimization.ParamTakeProfit]; ok {
		tuned.TakeProfitPercent = v
	}
	if v, ok := best.Parameters[optimization.ParamConfidence]; ok {
		tuned.MinConfidence = v
	}
	if err := Validate(tuned); err != nil {
		return TradingStrategy{}, nil, fmt.Errorf("%w %q: %w", ErrInvalidStrategy, tuned.Name, err)
	}

	m.logger.Info(ctx, "Strategy optimization finished", map[string]interface{}{
		"strategy":            name,
		"combinations":        len(results),
		"stopLoss":            tuned.StopLossPercent,
		"takeProfit":          tuned.TakeProfitPercent,
		"confidenceThreshold": tuned.MinConfidence,
		"sharpe":              best.Score,
		"trades":              best.Metrics.Trades,
	})
	return tuned, results, nil
}
