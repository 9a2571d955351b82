package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sniperBot/config"
	"sniperBot/internal/adapters/logger"
	"sniperBot/internal/adapters/metrics"
	"sniperBot/internal/adapters/mexcclient"
	"sniperBot/internal/adapters/notify"
	"sniperBot/internal/adapters/sqlite"
	"sniperBot/internal/app"
	"sniperBot/internal/execution"
	"sniperBot/internal/ports"
	"sniperBot/internal/risk"
	"sniperBot/internal/risk/market"
	"sniperBot/internal/strategy"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.New(logger.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "paperTrading": cfg.PaperTrading})

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(ctx, cfg.MetricsAddr, registry, appLogger)
		defer shutdownServer(srv, appLogger)
	}

	// 4. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 5. Exchange client behind the concurrency-limited dispatcher
	mexc, err := mexcclient.New(mexcclient.Config{
		APIKey:            cfg.APIKey,
		SecretKey:         cfg.SecretKey,
		BaseURL:           cfg.BaseURL,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize MEXC client: %v", err)
	}
	exchange := execution.NewAsyncClient(mexc, cfg.Dispatcher, appLogger, recorder)
	if err := exchange.Ping(ctx); err != nil {
		appLogger.Warn(ctx, "MEXC ping failed; continuing", map[string]interface{}{"error": err.Error()})
	}

	// 6. Trading service with retrying order submission
	retry := execution.NewRetryableOrderExecutor(cfg.Retry, appLogger, recorder)
	trading, err := app.NewExchangeTradingService(exchange, retry, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}

	// 7. Notifications
	notifier := buildNotifier(cfg, appLogger)

	// 8. Risk engine
	portfolio := risk.NewExchangePortfolioProvider(exchange, appLogger)
	marketCfg := market.DefaultConfig()
	marketCfg.Interval = cfg.MarketDataInterval
	riskManager, err := risk.NewEnhancedRiskManager(risk.Config{
		Limits:      cfg.RiskLimits,
		Portfolio:   portfolio,
		Market:      market.NewAnalyzer(exchange, marketCfg, appLogger),
		Prices:      trading,
		Correlation: risk.CorrelationFunc(risk.DefaultCorrelation),
		Logger:      appLogger,
		Metrics:     recorder,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize risk manager: %v", err)
	}

	// 9. Strategies
	strategies := strategy.NewManager(appLogger)
	if cfg.StrategiesFile != "" {
		if err := strategy.LoadStrategiesFile(ctx, strategies, cfg.StrategiesFile); err != nil {
			log.Fatalf("FATAL: Failed to load strategies file: %v", err)
		}
	}
	if err := strategies.SetActiveStrategy(ctx, cfg.ActiveStrategy); err != nil {
		log.Fatalf("FATAL: Failed to activate strategy %q: %v", cfg.ActiveStrategy, err)
	}

	// 10. Use cases and the snipe coordinator
	rules := app.SnipingRules{MinConfidence: cfg.MinConfidenceScore, MaxActiveTrades: cfg.MaxActiveTrades}
	startUC, err := app.NewStartSnipingUseCase(repo, trading, notifier, appLogger, recorder, rules)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize start sniping use case: %v", err)
	}
	executeUC, err := app.NewExecuteTradeUseCase(repo, trading, notifier, appLogger, recorder)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize execute trade use case: %v", err)
	}
	sniper, err := app.NewSniper(app.SniperDeps{
		Start:      startUC,
		Execute:    executeUC,
		Strategies: strategies,
		Risk:       riskManager,
		Portfolio:  portfolio,
		Trading:    trading,
		Repository: repo,
		Window:     execution.NewWindowTimer(cfg.Window, appLogger),
		Racer:      execution.NewOrderRacer(cfg.Racing, exchange, appLogger),
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize sniper: %v", err)
	}

	// 11. Portfolio risk monitoring; an emergency stop shuts the service down.
	go riskManager.StartMonitoring(ctx, cfg.RiskCheckInterval, func(reasons []string) {
		appLogger.Error(ctx, errors.New("emergency stop"), "Emergency stop triggered, shutting down", map[string]interface{}{"reasons": reasons})
		stop()
	})

	// 12. Optional configured target
	if cfg.Snipe != nil {
		go runSnipe(ctx, sniper, cfg, appLogger)
	}

	appLogger.Info(ctx, "Sniper bot running", map[string]interface{}{
		"activeStrategy": strategies.GetActiveStrategy().Name,
		"racing":         cfg.Racing.Enabled,
	})
	<-ctx.Done()
	appLogger.Info(context.Background(), "Shutdown signal received, flushing notifications")
	sniper.WaitNotifications()
}

func buildNotifier(cfg *config.Config, appLogger ports.Logger) ports.NotificationService {
	notifiers := notify.Multi{notify.NewLogNotifier(appLogger)}
	if cfg.NotifyWebhookURL != "" {
		webhook, err := notify.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyTimeout)
		if err != nil {
			appLogger.Warn(context.Background(), "Webhook notifications disabled", map[string]interface{}{"error": err.Error()})
		} else {
			notifiers = append(notifiers, webhook)
		}
	}
	return notifiers
}

func runSnipe(ctx context.Context, sniper *app.Sniper, cfg *config.Config, appLogger ports.Logger) {
	target := cfg.Snipe
	fields := map[string]interface{}{"symbol": target.Symbol, "userID": target.UserID}
	if !target.LaunchTime.IsZero() {
		fields["launchTime"] = target.LaunchTime.Format(time.RFC3339)
	}
	appLogger.Info(ctx, "Starting configured snipe", fields)

	res := sniper.Snipe(ctx, app.SnipeRequest{
		UserID:           target.UserID,
		Symbol:           target.Symbol,
		ConfidenceScore:  target.ConfidenceScore,
		PositionSizeUSDT: target.PositionSizeUSD,
		LaunchTime:       target.LaunchTime,
		PaperTrade:       cfg.PaperTrading,
	})
	if !res.Success {
		appLogger.Warn(ctx, "Configured snipe failed", map[string]interface{}{
			"symbol":  target.Symbol,
			"tradeID": res.TradeID,
			"kind":    res.ErrorKind,
			"error":   res.Error,
		})
		return
	}
	done := map[string]interface{}{
		"symbol":    target.Symbol,
		"tradeID":   res.TradeID,
		"quoteSize": res.QuoteSize,
	}
	if res.Trade != nil {
		done["status"] = res.Trade.Status
	}
	appLogger.Info(ctx, "Configured snipe finished", done)
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, appLogger ports.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		appLogger.Info(ctx, "Metrics endpoint listening", map[string]interface{}{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(ctx, err, "Metrics server stopped")
		}
	}()
	return srv
}

func shutdownServer(srv *http.Server, appLogger ports.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error(ctx, err, "Metrics server shutdown failed")
	}
}
