package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"sniperBot/internal/adapters/logger"
	"sniperBot/internal/execution"
	"sniperBot/internal/risk"
)

// Config holds all application configuration.
type Config struct {
	// MEXC API
	APIKey            string
	SecretKey         string
	BaseURL           string
	RequestsPerSecond float64

	Dispatcher execution.DispatcherConfig
	Retry      execution.RetryConfig
	Racing     execution.RacingConfig
	Window     execution.WindowConfig

	RiskLimits         risk.RiskLimits
	RiskCheckInterval  time.Duration
	MarketDataInterval string // kline interval used by the market analyzer

	// Sniping rules
	MinConfidenceScore float64
	MaxActiveTrades    int
	PaperTrading       bool

	// Strategy
	ActiveStrategy string
	StrategiesFile string // optional YAML with custom strategies

	// Database
	DBPath string

	// Logging
	LogLevel      logger.LogLevel
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Notifications
	NotifyWebhookURL string
	NotifyTimeout    time.Duration

	// Metrics endpoint, disabled when empty (e.g. ":9090")
	MetricsAddr string

	// Optional snipe target executed at startup
	Snipe *SnipeTarget
}

// SnipeTarget describes a listing to snipe once the service is up.
type SnipeTarget struct {
	UserID          string
	Symbol          string
	LaunchTime      time.Time
	PositionSizeUSD float64
	ConfidenceScore float64
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	// MEXC API
	cfg.APIKey = getEnv("MEXC_API_KEY", "")
	cfg.SecretKey = getEnv("MEXC_SECRET_KEY", "")
	cfg.BaseURL = getEnv("MEXC_BASE_URL", "https://api.mexc.com")
	cfg.PaperTrading = getEnvAsBool("PAPER_TRADING", true) // default to paper for safety
	if !cfg.PaperTrading && (cfg.APIKey == "" || cfg.SecretKey == "") {
		errs = append(errs, "MEXC_API_KEY and MEXC_SECRET_KEY must be set when PAPER_TRADING=false")
	}

	cfg.RequestsPerSecond, err = getEnvAsFloatRequired("MEXC_REQUESTS_PER_SECOND", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MEXC_REQUESTS_PER_SECOND: %v", err))
	} else if cfg.RequestsPerSecond <= 0 {
		errs = append(errs, "MEXC_REQUESTS_PER_SECOND must be positive")
	}

	// Dispatcher
	cfg.Dispatcher.MaxConcurrentRequests, err = getEnvAsIntRequired("MAX_CONCURRENT_REQUESTS", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_CONCURRENT_REQUESTS: %v", err))
	} else if cfg.Dispatcher.MaxConcurrentRequests <= 0 {
		errs = append(errs, "MAX_CONCURRENT_REQUESTS must be positive")
	}
	cfg.Dispatcher.RequestTimeout = getEnvAsMillis("REQUEST_TIMEOUT_MS", 10000, &errs)
	if cfg.Dispatcher.RequestTimeout <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT_MS must be positive")
	}

	// Retry
	cfg.Retry.MaxRetries, err = getEnvAsIntRequired("ORDER_MAX_RETRIES", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ORDER_MAX_RETRIES: %v", err))
	} else if cfg.Retry.MaxRetries <= 0 {
		errs = append(errs, "ORDER_MAX_RETRIES must be positive")
	}
	cfg.Retry.InitialDelay = getEnvAsMillis("ORDER_RETRY_INITIAL_DELAY_MS", 1000, &errs)
	cfg.Retry.MaxDelay = getEnvAsMillis("ORDER_RETRY_MAX_DELAY_MS", 5000, &errs)
	if cfg.Retry.InitialDelay < 0 || cfg.Retry.MaxDelay < cfg.Retry.InitialDelay {
		errs = append(errs, "ORDER_RETRY_MAX_DELAY_MS must be >= ORDER_RETRY_INITIAL_DELAY_MS >= 0")
	}
	cfg.Retry.BackoffMultiplier, err = getEnvAsFloatRequired("ORDER_RETRY_BACKOFF_MULTIPLIER", 1.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ORDER_RETRY_BACKOFF_MULTIPLIER: %v", err))
	} else if cfg.Retry.BackoffMultiplier < 1 {
		errs = append(errs, "ORDER_RETRY_BACKOFF_MULTIPLIER must be at least 1")
	}

	// Execution window and racing
	cfg.Racing.Enabled = getEnvAsBool("ORDER_RACING_ENABLED", false)
	cfg.Racing.MaxConcurrentOrders, err = getEnvAsIntRequired("ORDER_RACING_MAX_CONCURRENT", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ORDER_RACING_MAX_CONCURRENT: %v", err))
	} else if cfg.Racing.MaxConcurrentOrders <= 0 {
		errs = append(errs, "ORDER_RACING_MAX_CONCURRENT must be positive")
	}
	cfg.Racing.BurstInterval = getEnvAsMillis("ORDER_RACING_BURST_INTERVAL_MS", 50, &errs)
	cfg.Racing.AutoCancel = getEnvAsBool("ORDER_RACING_AUTO_CANCEL", true)

	cfg.Window.PreLaunchOffset = getEnvAsMillis("EXECUTION_PRE_LAUNCH_OFFSET_MS", -500, &errs)
	cfg.Window.PostLaunchWindow = getEnvAsMillis("EXECUTION_POST_LAUNCH_WINDOW_MS", 700, &errs)
	cfg.Window.PollInterval = getEnvAsMillis("EXECUTION_POLL_INTERVAL_MS", 100, &errs)
	if cfg.Window.PostLaunchWindow <= 0 || cfg.Window.PollInterval <= 0 {
		errs = append(errs, "EXECUTION_POST_LAUNCH_WINDOW_MS and EXECUTION_POLL_INTERVAL_MS must be positive")
	}

	// Risk limits
	defaults := risk.DefaultRiskLimits()
	cfg.RiskLimits = risk.RiskLimits{
		MaxPortfolioRisk:       getEnvAsFloatCollect("RISK_MAX_PORTFOLIO_PERCENT", defaults.MaxPortfolioRisk, &errs),
		MaxSinglePositionRisk:  getEnvAsFloatCollect("RISK_MAX_SINGLE_POSITION_PERCENT", defaults.MaxSinglePositionRisk, &errs),
		MaxDailyLoss:           getEnvAsFloatCollect("RISK_MAX_DAILY_LOSS_USDT", defaults.MaxDailyLoss, &errs),
		MaxDrawdown:            getEnvAsFloatCollect("RISK_MAX_DRAWDOWN_PERCENT", defaults.MaxDrawdown, &errs),
		MaxConcurrentPositions: getEnvAsInt("RISK_MAX_CONCURRENT_POSITIONS", defaults.MaxConcurrentPositions),
		MaxCorrelatedExposure:  getEnvAsFloatCollect("RISK_MAX_CORRELATED_EXPOSURE_PERCENT", defaults.MaxCorrelatedExposure, &errs),
		MinAccountBalance:      getEnvAsFloatCollect("RISK_MIN_ACCOUNT_BALANCE_USDT", defaults.MinAccountBalance, &errs),
	}
	if err := cfg.RiskLimits.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("invalid risk limits: %v", err))
	}
	cfg.RiskCheckInterval = time.Duration(getEnvAsInt("RISK_CHECK_INTERVAL_SECONDS", 30)) * time.Second
	if cfg.RiskCheckInterval <= 0 {
		errs = append(errs, "RISK_CHECK_INTERVAL_SECONDS must be positive")
	}
	cfg.MarketDataInterval = getEnv("MARKET_DATA_INTERVAL", "60m")

	// Sniping rules
	cfg.MinConfidenceScore, err = getEnvAsFloatRequired("MIN_CONFIDENCE_SCORE", 50)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_CONFIDENCE_SCORE: %v", err))
	} else if cfg.MinConfidenceScore < 0 || cfg.MinConfidenceScore > 100 {
		errs = append(errs, "MIN_CONFIDENCE_SCORE must be between 0 and 100")
	}
	cfg.MaxActiveTrades, err = getEnvAsIntRequired("MAX_ACTIVE_TRADES", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_ACTIVE_TRADES: %v", err))
	} else if cfg.MaxActiveTrades <= 0 {
		errs = append(errs, "MAX_ACTIVE_TRADES must be positive")
	}

	// Strategy
	cfg.ActiveStrategy = strings.ToLower(getEnv("ACTIVE_STRATEGY", "balanced"))
	cfg.StrategiesFile = getEnv("STRATEGIES_FILE", "")

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/sniper_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFile = getEnv("LOG_FILE", "")
	cfg.LogMaxSizeMB = getEnvAsInt("LOG_MAX_SIZE_MB", 100)
	cfg.LogMaxBackups = getEnvAsInt("LOG_MAX_BACKUPS", 5)
	cfg.LogMaxAgeDays = getEnvAsInt("LOG_MAX_AGE_DAYS", 30)

	// Notifications
	cfg.NotifyWebhookURL = getEnv("NOTIFY_WEBHOOK_URL", "")
	cfg.NotifyTimeout = getEnvAsMillis("NOTIFY_TIMEOUT_MS", 3000, &errs)

	// Metrics
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")

	// Snipe target
	if symbol := getEnv("SNIPE_SYMBOL", ""); symbol != "" {
		target := &SnipeTarget{
			Symbol: strings.ToUpper(symbol),
			UserID: getEnv("SNIPE_USER_ID", "default"),
		}
		if launch := getEnv("SNIPE_LAUNCH_TIME", ""); launch != "" {
			target.LaunchTime, err = time.Parse(time.RFC3339, launch)
			if err != nil {
				errs = append(errs, fmt.Sprintf("invalid SNIPE_LAUNCH_TIME (want RFC3339): %v", err))
			}
		}
		target.PositionSizeUSD, err = getEnvAsFloatRequired("SNIPE_POSITION_USDT", 100)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid SNIPE_POSITION_USDT: %v", err))
		} else if target.PositionSizeUSD <= 0 {
			errs = append(errs, "SNIPE_POSITION_USDT must be positive")
		}
		target.ConfidenceScore, err = getEnvAsFloatRequired("SNIPE_CONFIDENCE", 80)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid SNIPE_CONFIDENCE: %v", err))
		}
		cfg.Snipe = target
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

// getEnvAsFloatCollect records a parse failure in errs and returns the default.
func getEnvAsFloatCollect(key string, defaultValue float64, errs *[]string) float64 {
	value, err := getEnvAsFloatRequired(key, defaultValue)
	if err != nil {
		*errs = append(*errs, err.Error())
		return defaultValue
	}
	return value
}

// getEnvAsMillis reads an integer number of milliseconds.
func getEnvAsMillis(key string, defaultMillis int, errs *[]string) time.Duration {
	ms, err := getEnvAsIntRequired(key, defaultMillis)
	if err != nil {
		*errs = append(*errs, err.Error())
		ms = defaultMillis
	}
	return time.Duration(ms) * time.Millisecond
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
