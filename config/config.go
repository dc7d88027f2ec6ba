package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Session Parameters
	QuoteAsset        string
	MinQuoteVolume24h float64
	MaxOpenTrades     int
	TradeQuoteBudget  float64 // quote asset spent per trade
	FeePercent        float64 // expected fee per side, in percent
	PaperTrading      bool

	// Timing
	RefreshInterval         time.Duration
	UniverseRefreshInterval time.Duration
	ClockSyncInterval       time.Duration
	MonitorInterval         time.Duration
	OrderRetryDelay         time.Duration
	ConfirmationDelay       time.Duration

	// Order Management
	MaxDriftPercent float64 // fraction, e.g. 0.01 for 1%

	// Market Data
	CandleInterval string
	CandleLimit    int
	DepthLimit     int

	// Indicator Periods
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int

	// Enter Criteria
	MinVolumeRatio        float64
	MinTradesRatio        float64
	RSICeiling            float64
	MaxBidAskGap          float64 // fraction
	ProbeVolume           float64 // base-asset volume for book depth probes
	MaxFallway            float64 // fraction
	MinRunwayFallwayRatio float64
	CooldownInterval      time.Duration

	// Exit Criteria
	TakeProfitPercent       float64
	StopLossPercent         float64
	TrailingArmPercent      float64
	TrailingGiveBackPercent float64
	TimeLimitProfitable     time.Duration
	TimeLimitUnprofitable   time.Duration

	// Database (candle archive tooling)
	DBPath string

	// TradeReportCSV, when set, receives a CSV of completed trades on
	// shutdown.
	TradeReportCSV string

	// Logging
	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars).
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // default to testnet for safety
	cfg.PaperTrading = getEnvAsBool("PAPER_TRADING", true)

	if !cfg.PaperTrading {
		if cfg.APIKey == "" {
			errs = append(errs, "BINANCE_API_KEY must be set for live trading")
		}
		if cfg.SecretKey == "" {
			errs = append(errs, "BINANCE_API_SECRET must be set for live trading")
		}
	}

	// Session Parameters
	cfg.QuoteAsset = getEnv("QUOTE_ASSET", "BTC")
	if cfg.QuoteAsset == "" {
		errs = append(errs, "QUOTE_ASSET must be set")
	}

	cfg.MinQuoteVolume24h, err = getEnvAsFloatRequired("MIN_QUOTE_VOLUME_24H", 100.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_QUOTE_VOLUME_24H: %v", err))
	} else if cfg.MinQuoteVolume24h < 0 {
		errs = append(errs, "MIN_QUOTE_VOLUME_24H cannot be negative")
	}

	cfg.MaxOpenTrades, err = getEnvAsIntRequired("MAX_OPEN_TRADES", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_OPEN_TRADES: %v", err))
	} else if cfg.MaxOpenTrades <= 0 {
		errs = append(errs, "MAX_OPEN_TRADES must be positive")
	}

	cfg.TradeQuoteBudget, err = getEnvAsFloatRequired("TRADE_QUOTE_BUDGET", 0.001)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRADE_QUOTE_BUDGET: %v", err))
	} else if cfg.TradeQuoteBudget <= 0 {
		errs = append(errs, "TRADE_QUOTE_BUDGET must be positive")
	}

	cfg.FeePercent, err = getEnvAsFloatRequired("FEE_PERCENT", 0.1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FEE_PERCENT: %v", err))
	} else if cfg.FeePercent < 0 {
		errs = append(errs, "FEE_PERCENT cannot be negative")
	}

	// Timing
	cfg.RefreshInterval = secondsEnv("REFRESH_INTERVAL_SECONDS", 5, &errs)
	cfg.UniverseRefreshInterval = minutesEnv("UNIVERSE_REFRESH_MINUTES", 15, &errs)
	cfg.ClockSyncInterval = minutesEnv("CLOCK_SYNC_MINUTES", 60, &errs)
	cfg.MonitorInterval = secondsEnv("MONITOR_INTERVAL_SECONDS", 2, &errs)
	cfg.OrderRetryDelay = secondsEnv("ORDER_RETRY_SECONDS", 5, &errs)

	confirmationSeconds := getEnvAsInt("CONFIRMATION_DELAY_SECONDS", 30)
	if confirmationSeconds < 0 {
		errs = append(errs, "CONFIRMATION_DELAY_SECONDS cannot be negative")
	}
	cfg.ConfirmationDelay = time.Duration(confirmationSeconds) * time.Second

	// Order Management
	cfg.MaxDriftPercent, err = getEnvAsFloatRequired("MAX_DRIFT_PERCENT", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DRIFT_PERCENT: %v", err))
	} else if cfg.MaxDriftPercent <= 0 || cfg.MaxDriftPercent >= 1.0 {
		errs = append(errs, "MAX_DRIFT_PERCENT must be between 0.0 and 1.0 (exclusive)")
	}

	// Market Data
	cfg.CandleInterval = getEnv("CANDLE_INTERVAL", "1m")
	cfg.CandleLimit = getEnvAsInt("CANDLE_LIMIT", 120)
	cfg.DepthLimit = getEnvAsInt("DEPTH_LIMIT", 100)
	if cfg.CandleLimit <= 0 || cfg.DepthLimit <= 0 {
		errs = append(errs, "CANDLE_LIMIT and DEPTH_LIMIT must be positive")
	}

	// Indicator Periods
	cfg.RSIPeriod = getEnvAsInt("RSI_PERIOD", 14)
	cfg.MACDFast = getEnvAsInt("MACD_FAST", 12)
	cfg.MACDSlow = getEnvAsInt("MACD_SLOW", 26)
	cfg.MACDSignal = getEnvAsInt("MACD_SIGNAL", 9)
	if cfg.RSIPeriod <= 0 || cfg.MACDFast <= 0 || cfg.MACDSlow <= 0 || cfg.MACDSignal <= 0 {
		errs = append(errs, "indicator periods (RSI, MACD) must be positive")
	}
	if cfg.MACDFast >= cfg.MACDSlow {
		errs = append(errs, "MACD_FAST must be less than MACD_SLOW")
	}

	// Enter Criteria
	cfg.MinVolumeRatio = getEnvAsFloat("MIN_VOLUME_RATIO", 3.0)
	cfg.MinTradesRatio = getEnvAsFloat("MIN_TRADES_RATIO", 2.0)
	cfg.RSICeiling = getEnvAsFloat("RSI_CEILING", 70.0)
	cfg.MaxBidAskGap = getEnvAsFloat("MAX_BID_ASK_GAP", 0.005)
	cfg.ProbeVolume = getEnvAsFloat("PROBE_VOLUME", 100.0)
	cfg.MaxFallway = getEnvAsFloat("MAX_FALLWAY", 0.01)
	cfg.MinRunwayFallwayRatio = getEnvAsFloat("MIN_RUNWAY_FALLWAY_RATIO", 2.0)
	cfg.CooldownInterval = minutesEnv("COOLDOWN_MINUTES", 30, &errs)
	if cfg.RSICeiling <= 0 || cfg.RSICeiling > 100 {
		errs = append(errs, "RSI_CEILING must be between 0 and 100")
	}

	// Exit Criteria
	cfg.TakeProfitPercent = getEnvAsFloat("TAKE_PROFIT_PERCENT", 1.0)
	cfg.StopLossPercent = getEnvAsFloat("STOP_LOSS_PERCENT", 1.0)
	cfg.TrailingArmPercent = getEnvAsFloat("TRAILING_ARM_PERCENT", 0.5)
	cfg.TrailingGiveBackPercent = getEnvAsFloat("TRAILING_GIVE_BACK_PERCENT", 0.25)
	cfg.TimeLimitProfitable = minutesEnv("TIME_LIMIT_PROFITABLE_MINUTES", 60, &errs)
	cfg.TimeLimitUnprofitable = minutesEnv("TIME_LIMIT_UNPROFITABLE_MINUTES", 180, &errs)
	if cfg.TakeProfitPercent <= 0 || cfg.StopLossPercent <= 0 {
		errs = append(errs, "TAKE_PROFIT_PERCENT and STOP_LOSS_PERCENT must be positive")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/candles.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}
	cfg.TradeReportCSV = getEnv("TRADE_REPORT_CSV", "")

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "INFO")
	cfg.LogFormat = getEnv("LOG_FORMAT", "text")
	cfg.LogFile = getEnv("LOG_FILE", "")
	cfg.LogMaxSizeMB = getEnvAsInt("LOG_MAX_SIZE_MB", 50)
	cfg.LogMaxBackups = getEnvAsInt("LOG_MAX_BACKUPS", 5)
	cfg.LogMaxAgeDays = getEnvAsInt("LOG_MAX_AGE_DAYS", 14)

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func secondsEnv(key string, defaultSeconds int, errs *[]string) time.Duration {
	value := getEnvAsInt(key, defaultSeconds)
	if value <= 0 {
		*errs = append(*errs, key+" must be positive")
	}
	return time.Duration(value) * time.Second
}

func minutesEnv(key string, defaultMinutes int, errs *[]string) time.Duration {
	value := getEnvAsInt(key, defaultMinutes)
	if value <= 0 {
		*errs = append(*errs, key+" must be positive")
	}
	return time.Duration(value) * time.Minute
}

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
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
