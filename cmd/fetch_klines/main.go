// Command fetch_klines backfills the local candle archive from the
// exchange so indicator tuning can be replayed against real history.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"moonalarm/config"
	"moonalarm/internal/adapters/binanceclient"
	"moonalarm/internal/adapters/logger"
	"moonalarm/internal/adapters/sqlite"
)

func main() {
	symbols := flag.String("symbols", "ETHBTC", "comma-separated symbols to fetch")
	interval := flag.String("interval", "1m", "candle interval, e.g. 1m, 5m, 1h")
	days := flag.Int("days", 30, "how many days of history to fetch")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	appLogger := logger.NewStdLogger(logger.ParseLevel(cfg.LogLevel))
	ctx := context.Background()

	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to open candle archive")
		log.Fatalf("FATAL: Failed to open candle archive: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing candle archive")
		}
	}()

	end := time.Now()
	for _, symbol := range strings.Split(*symbols, ",") {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}

		start := end.AddDate(0, 0, -*days)
		// Resume from the newest archived candle when one exists.
		if latest, err := repo.LatestOpenTime(ctx, symbol, *interval); err == nil && latest.After(start) {
			start = latest
		}

		appLogger.Info(ctx, "Fetching candles", map[string]interface{}{
			"symbol":   symbol,
			"interval": *interval,
			"from":     start.Format(time.RFC3339),
			"to":       end.Format(time.RFC3339),
		})
		candles, err := binanceClient.GetCandlesRange(ctx, symbol, *interval, start, end)
		if err != nil {
			appLogger.Error(ctx, err, "Error fetching candles", map[string]interface{}{"symbol": symbol})
			continue
		}
		if err := repo.SaveCandles(ctx, candles); err != nil {
			appLogger.Error(ctx, err, "Error archiving candles", map[string]interface{}{"symbol": symbol})
			continue
		}

		count, err := repo.CountBySymbol(ctx, symbol, *interval)
		if err != nil {
			appLogger.Error(ctx, err, "Error counting archived candles", map[string]interface{}{"symbol": symbol})
			continue
		}
		appLogger.Info(ctx, "Archived candles", map[string]interface{}{
			"symbol":  symbol,
			"fetched": len(candles),
			"total":   count,
		})
	}
}
