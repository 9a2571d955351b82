package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"sniperBot/config"
	"sniperBot/internal/adapters/logger"
	"sniperBot/internal/adapters/mexcclient"
	"sniperBot/internal/utils"
)

var (
	symbol   = flag.String("symbol", "BTCUSDT", "trading pair")
	interval = flag.String("interval", "60m", "kline interval (1m, 5m, 15m, 30m, 60m, 4h, 1d)")
	days     = flag.Int("days", 30, "how many days of history to fetch")
	outDir   = flag.String("out", "data", "output directory")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.New(logger.Options{Level: cfg.LogLevel})
	defer appLogger.Close()
	ctx := context.Background()

	client, err := mexcclient.New(mexcclient.Config{
		APIKey:            cfg.APIKey,
		SecretKey:         cfg.SecretKey,
		BaseURL:           cfg.BaseURL,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize MEXC client: %v", err)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -*days)

	fmt.Printf("Fetching klines for %s %s from %s to %s...\n", *symbol, *interval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	klines, err := client.GetKlinesRange(ctx, *symbol, *interval, start, end, 500)
	if err != nil {
		appLogger.Error(ctx, err, "Error fetching klines")
		log.Fatalf("Error fetching klines: %v", err)
	}
	appLogger.Info(ctx, "Fetched klines", map[string]interface{}{"count": len(klines)})

	filename := fmt.Sprintf("%s/%s_%s_%s_to_%s.csv", *outDir, *symbol, *interval, start.Format("20060102"), end.Format("20060102"))
	if err := utils.WriteKlinesToCSV(klines, filename); err != nil {
		appLogger.Error(ctx, err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(ctx, "Saved klines", map[string]interface{}{"filename": filename})
}
