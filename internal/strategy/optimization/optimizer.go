package optimization

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"sniperBot/internal/strategy/analytics"
)

// Parameter names understood by the backtester.
const (
	ParamStopLoss   = "stopLoss"
	ParamTakeProfit = "takeProfit"
	ParamConfidence = "confidenceThreshold"
)

// DataPoint is one historical observation.
type DataPoint struct {
	Timestamp  time.Time
	Price      float64
	Volume     float64
	Volatility float64 // optional, fraction; derived from price moves when 0
}

// ParameterRange defines the candidate values of one parameter, either an
// explicit Values list or Min..Max by Step.
type ParameterRange struct {
	Name   string
	Values []float64
	Min    float64
	Max    float64
	Step   float64
	IsInt  bool
}

// OptimizationResult holds one evaluated parameter combination.
type OptimizationResult struct {
	Parameters map[string]float64
	Metrics    analytics.ReturnMetrics
	Score      float64
}

// OptimizerConfig holds configuration for the optimizer.
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	// MaxVolatility gates entries; moves larger than this are skipped.
	MaxVolatility float64
	// Concurrency bounds parallel evaluations; 0 means GOMAXPROCS.
	Concurrency   int
	ScoreFunction func(analytics.ReturnMetrics) float64
}

// DefaultOptimizerConfig searches stop-loss {5,10,15,20} x take-profit
// {10,20,30,50} x confidence {60,70,80,90}, scored by the Sharpe proxy.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{Name: ParamStopLoss, Values: []float64{5, 10, 15, 20}},
			{Name: ParamTakeProfit, Values: []float64{10, 20, 30, 50}},
			{Name: ParamConfidence, Values: []float64{60, 70, 80, 90}},
		},
		MaxVolatility: 0.10,
		ScoreFunction: DefaultScoreFunction,
	}
}

// DefaultScoreFunction ranks by the Sharpe proxy.
func DefaultScoreFunction(m analytics.ReturnMetrics) float64 {
	return m.SharpeProxy
}

// Optimizer is a deliberately simple grid-search backtester.
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance.
func NewOptimizer(config OptimizerConfig) *Optimizer {
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	if config.MaxVolatility <= 0 {
		config.MaxVolatility = DefaultOptimizerConfig().MaxVolatility
	}
	return &Optimizer{config: config}
}

// Optimize evaluates every combination over data and returns the results
// ordered by descending score. Combinations with stopLoss >= takeProfit are
// skipped.
func (o *Optimizer) Optimize(ctx context.Context, data []DataPoint) ([]OptimizationResult, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("not enough data points for backtest: need 3, got %d", len(data))
	}

	var combinations []map[string]float64
	for _, c := range o.generateParameterCombinations() {
		if sl, tp := c[ParamStopLoss], c[ParamTakeProfit]; sl > 0 && tp > 0 && sl >= tp {
			continue
		}
		combinations = append(combinations, c)
	}
	if len(combinations) == 0 {
		return nil, fmt.Errorf("no valid parameter combinations")
	}

	results := make([]OptimizationResult, len(combinations))
	g, gctx := errgroup.WithContext(ctx)
	limit := o.config.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for i, params := range combinations {
		i, params := i, params
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			metrics := analytics.AnalyzeReturns(Backtest(data, params, o.config.MaxVolatility))
			results[i] = OptimizationResult{
				Parameters: params,
				Metrics:    metrics,
				Score:      o.config.ScoreFunction(metrics),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortResultsByScore(results)
	return results, nil
}

// Backtest replays data with a confidence-gated trend and volatility rule
// and returns the per-trade returns. A signal at point i enters at price i
// and exits at price i+1, the move clipped to [-stopLoss%, +takeProfit%].
func Backtest(data []DataPoint, params map[string]float64, maxVolatility float64) []float64 {
	stopLoss := params[ParamStopLoss] / 100
	takeProfit := params[ParamTakeProfit] / 100
	threshold := params[ParamConfidence]

	var returns []float64
	for i := 1; i < len(data)-1; i++ {
		prev, cur := data[i-1].Price, data[i].Price
		if prev <= 0 || cur <= 0 {
			continue
		}
		trend := (cur - prev) / prev
		volatility := data[i].Volatility
		if volatility <= 0 {
			volatility = math.Abs(trend)
		}
		if trend <= 0 || volatility > maxVolatility {
			continue
		}
		if SignalConfidence(trend, volatility) < threshold {
			continue
		}

		r := (data[i+1].Price - cur) / cur
		if stopLoss > 0 {
			r = math.Max(r, -stopLoss)
		}
		if takeProfit > 0 {
			r = math.Min(r, takeProfit)
		}
		returns = append(returns, r)
	}
	return returns
}

// SignalConfidence scores a move on 0..100: 50 plus 1000x the trend, less
// 200x the volatility above the trend.
func SignalConfidence(trend, volatility float64) float64 {
	c := 50 + trend*1000 - math.Max(0, volatility-math.Abs(trend))*200
	return math.Max(0, math.Min(100, c))
}

// generateParameterCombinations generates all possible parameter combinations.
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	current := make(map[string]float64)

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(map[string]float64, len(current))
			for k, v := range current {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		for _, value := range o.config.ParameterRanges[paramIndex].values() {
			current[o.config.ParameterRanges[paramIndex].Name] = value
			generate(paramIndex + 1)
		}
	}
	generate(0)
	return combinations
}

func (p ParameterRange) values() []float64 {
	if len(p.Values) > 0 {
		return p.Values
	}
	if p.Step <= 0 {
		return []float64{p.Min}
	}
	var out []float64
	for v := p.Min; v <= p.Max+p.Step/2; v += p.Step {
		if p.IsInt {
			out = append(out, math.Round(v))
			continue
		}
		out = append(out, v)
	}
	return out
}

// sortResultsByScore orders by descending score, keeping grid order for ties.
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
