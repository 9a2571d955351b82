package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"text/tabwriter"

	"sniperBot/internal/adapters/logger"
	"sniperBot/internal/strategy"
	"sniperBot/internal/strategy/optimization"
	"sniperBot/internal/utils"
)

var (
	input         = flag.String("in", "", "kline CSV written by fetch_klines")
	maxVolatility = flag.Float64("max-volatility", 0.10, "skip entries whose candle range exceeds this fraction")
	top           = flag.Int("top", 5, "number of ranked combinations to print")
	strategyName  = flag.String("strategy", "", "strategy to tune (default: the active one)")
	strategies    = flag.String("strategies", "", "optional strategies YAML to load before tuning")
	out           = flag.String("out", "", "write the tuned strategy to this strategies YAML")
	verbose       = flag.Bool("v", false, "debug logging")
)

func main() {
	flag.Parse()
	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	level := logger.LevelInfo
	if *verbose {
		level = logger.LevelDebug
	}
	appLogger := logger.New(logger.Options{Level: level})
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	klines, err := utils.ReadKlinesFromCSV(*input)
	if err != nil {
		log.Fatalf("Error loading klines: %v", err)
	}
	data := utils.KlinesToDataPoints(klines)
	appLogger.Info(ctx, "Loaded klines", map[string]interface{}{"file": *input, "count": len(klines)})

	manager := strategy.NewManager(appLogger)
	if *strategies != "" {
		if err := strategy.LoadStrategiesFile(ctx, manager, *strategies); err != nil {
			log.Fatalf("Error loading strategies: %v", err)
		}
	}

	cfg := optimization.DefaultOptimizerConfig()
	cfg.MaxVolatility = *maxVolatility
	tuned, results, err := manager.Optimize(ctx, *strategyName, cfg, data)
	if err != nil {
		appLogger.Error(ctx, err, "Optimization failed")
		log.Fatalf("Optimization failed: %v", err)
	}

	n := *top
	if n > len(results) {
		n = len(results)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSTOP LOSS %\tTAKE PROFIT %\tCONFIDENCE\tTRADES\tWIN RATE\tTOTAL RETURN\tSHARPE")
	for i, r := range results[:n] {
		fmt.Fprintf(w, "%d\t%.0f\t%.0f\t%.0f\t%d\t%.2f%%\t%.4f\t%.4f\n",
			i+1,
			r.Parameters[optimization.ParamStopLoss],
			r.Parameters[optimization.ParamTakeProfit],
			r.Parameters[optimization.ParamConfidence],
			r.Metrics.Trades,
			r.Metrics.WinRate*100,
			r.Metrics.TotalReturn,
			r.Score,
		)
	}
	w.Flush()

	fmt.Printf("\n%s: stop loss %.0f%%, take profit %.0f%%, min confidence %.0f\n",
		tuned.Name, tuned.StopLossPercent, tuned.TakeProfitPercent, tuned.MinConfidence)
	if *out != "" {
		if err := strategy.WriteStrategiesFile(*out, strategy.StrategiesFile{Strategies: []strategy.TradingStrategy{tuned}}); err != nil {
			log.Fatalf("Error writing tuned strategy: %v", err)
		}
		appLogger.Info(ctx, "Tuned strategy written", map[string]interface{}{"file": *out, "strategy": tuned.Name})
	}
}
