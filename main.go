package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"moonalarm/config"
	"moonalarm/internal/adapters/binanceclient"
	"moonalarm/internal/adapters/logger"
	"moonalarm/internal/strategy"
	"moonalarm/internal/strategy/analytics"
	"moonalarm/internal/strategy/indicators"
	"moonalarm/internal/trading"
	"moonalarm/internal/utils"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewLogrus(logger.LogrusConfig{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		Output:     cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{
		"level":  cfg.LogLevel,
		"format": cfg.LogFormat,
	})

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(context.Background(), "Binance client initialized", map[string]interface{}{
		"testnet": cfg.IsTestnet,
	})

	// 4. Build the Strategy Engine
	// The cooldown criterion reads trade history from the session, which
	// does not exist yet; the closure resolves it at evaluation time.
	var session *trading.Session
	lastTradeEnd := func(symbol string) (time.Time, bool) {
		if session == nil {
			return time.Time{}, false
		}
		return session.LastTradeEnd(symbol)
	}

	engine, err := buildEngine(cfg, appLogger, lastTradeEnd)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to build strategy engine")
		log.Fatalf("FATAL: Failed to build strategy engine: %v", err)
	}
	appLogger.Info(context.Background(), "Strategy engine initialized")

	// 5. Initialize the Trading Session
	indicatorCfg := indicators.DefaultConfig()
	indicatorCfg.RSIPeriod = cfg.RSIPeriod
	indicatorCfg.MACDFast = cfg.MACDFast
	indicatorCfg.MACDSlow = cfg.MACDSlow
	indicatorCfg.MACDSignal = cfg.MACDSignal

	session, err = trading.NewSession(trading.SessionConfig{
		QuoteAsset:              cfg.QuoteAsset,
		MinQuoteVolume24h:       cfg.MinQuoteVolume24h,
		MaxOpenTrades:           cfg.MaxOpenTrades,
		TradeQuoteBudget:        cfg.TradeQuoteBudget,
		FeePercent:              cfg.FeePercent,
		Paper:                   cfg.PaperTrading,
		RefreshInterval:         cfg.RefreshInterval,
		UniverseRefreshInterval: cfg.UniverseRefreshInterval,
		ClockSyncInterval:       cfg.ClockSyncInterval,
		MonitorInterval:         cfg.MonitorInterval,
		RetryDelay:              cfg.OrderRetryDelay,
		MaxDriftPercent:         cfg.MaxDriftPercent,
		CandleInterval:          cfg.CandleInterval,
		CandleLimit:             cfg.CandleLimit,
		DepthLimit:              cfg.DepthLimit,
		Indicators:              indicatorCfg,
		Exchange:                binanceClient,
		Logger:                  appLogger,
		Engine:                  engine,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading session")
		log.Fatalf("FATAL: Failed to initialize trading session: %v", err)
	}

	// 6. Start and wait for shutdown
	ctx := context.Background()
	if err := session.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to start trading session")
		log.Fatalf("FATAL: Failed to start trading session: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	appLogger.Info(ctx, "Shutdown signal received", map[string]interface{}{"signal": sig.String()})

	// Stop halts new entries; open trades finish their own lifecycle
	// before the process exits so no order is left unmanaged.
	session.Stop()
	appLogger.Info(ctx, "Session stopped, draining open trades", map[string]interface{}{
		"open_trades": len(session.Trades()),
	})
	session.Drain()

	reportResults(ctx, cfg, appLogger, session)
	appLogger.Info(ctx, "Application finished gracefully.", map[string]interface{}{
		"completed_trades": len(session.CompletedTrades()),
	})
}

// reportResults summarizes the session's completed trades and, when
// configured, writes the per-trade CSV report.
func reportResults(ctx context.Context, cfg *config.Config, appLogger *logger.LogrusLogger, session *trading.Session) {
	var records []analytics.TradeRecord
	for _, t := range session.CompletedTrades() {
		profit, ok := t.ProfitPercent()
		if !ok {
			continue
		}
		records = append(records, analytics.TradeRecord{
			Symbol:        t.Symbol(),
			EnterTime:     t.StartTime(),
			ExitTime:      t.EndTime(),
			EnterPrice:    t.EnterPrice(),
			ExitPrice:     t.ExitPrice(),
			Amount:        t.Amount(),
			ProfitPercent: profit,
		})
	}
	if len(records) == 0 {
		return
	}

	summary := analytics.Summarize(records)
	appLogger.Info(ctx, "Session results", map[string]interface{}{
		"trades":             summary.TotalTrades,
		"win_rate":           summary.WinRate,
		"avg_profit_percent": summary.AvgProfitPercent,
		"quote_profit":       summary.TotalQuoteProfit,
		"avg_duration":       summary.AverageTradeDuration.String(),
	})

	if cfg.TradeReportCSV == "" {
		return
	}
	if err := utils.WriteTradeReportCSV(records, cfg.TradeReportCSV); err != nil {
		appLogger.Error(ctx, err, "Failed to write trade report", map[string]interface{}{
			"filename": cfg.TradeReportCSV,
		})
		return
	}
	appLogger.Info(ctx, "Trade report written", map[string]interface{}{
		"filename": cfg.TradeReportCSV,
		"trades":   len(records),
	})
}

// buildEngine assembles the enter and exit criteria from configuration.
func buildEngine(cfg *config.Config, appLogger *logger.LogrusLogger, lastTradeEnd func(string) (time.Time, bool)) (*strategy.Engine, error) {
	volumeSpike, err := strategy.NewVolumeSpike(cfg.MinVolumeRatio, cfg.MinTradesRatio)
	if err != nil {
		return nil, err
	}
	rsiCeiling, err := strategy.NewRSICeiling(cfg.RSICeiling)
	if err != nil {
		return nil, err
	}
	gapCeiling, err := strategy.NewBidAskGapCeiling(cfg.MaxBidAskGap)
	if err != nil {
		return nil, err
	}
	fallwayFloor, err := strategy.NewFallwaySupportFloor(cfg.ProbeVolume, cfg.MaxFallway)
	if err != nil {
		return nil, err
	}
	runwayRatio, err := strategy.NewRunwayFallwayRatio(cfg.ProbeVolume, cfg.MinRunwayFallwayRatio)
	if err != nil {
		return nil, err
	}
	cooldown, err := strategy.NewCooldown(cfg.CooldownInterval, lastTradeEnd)
	if err != nil {
		return nil, err
	}
	enter := []strategy.EnterCriterion{
		volumeSpike,
		rsiCeiling,
		strategy.NewStochRSICross(),
		strategy.NewMACDTrend(),
		gapCeiling,
		fallwayFloor,
		runwayRatio,
		cooldown,
	}

	fixedProfit, err := strategy.NewFixedProfit(cfg.TakeProfitPercent)
	if err != nil {
		return nil, err
	}
	fixedLoss, err := strategy.NewFixedLoss(cfg.StopLossPercent)
	if err != nil {
		return nil, err
	}
	trailing, err := strategy.NewTrailingStop(cfg.TrailingArmPercent, cfg.TrailingGiveBackPercent)
	if err != nil {
		return nil, err
	}
	timeLimit, err := strategy.NewTimeLimit(cfg.TimeLimitProfitable, cfg.TimeLimitUnprofitable)
	if err != nil {
		return nil, err
	}
	exit := []strategy.ExitCriterion{fixedProfit, fixedLoss, trailing, timeLimit}

	return strategy.New(strategy.Config{ConfirmationDelay: cfg.ConfirmationDelay}, appLogger, enter, exit)
}
