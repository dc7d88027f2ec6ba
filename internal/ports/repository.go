package ports

import (
	"context"
	"time"

	"moonalarm/internal/domain"
)

// CandleRepository stores historical candles for offline study. The live
// session keeps everything in memory; this repository only backs the candle
// archiver tooling.
type CandleRepository interface {
	// SaveCandles upserts a batch of candles keyed by (symbol, interval,
	// open time).
	SaveCandles(ctx context.Context, candles domain.CandleSeries) error
	// FindBySymbol retrieves up to limit candles for a symbol/interval,
	// oldest first.
	FindBySymbol(ctx context.Context, symbol, interval string, limit int) (domain.CandleSeries, error)
	// CountBySymbol counts the stored candles for a symbol/interval.
	CountBySymbol(ctx context.Context, symbol, interval string) (int, error)
	// LatestOpenTime returns the open time of the newest stored candle,
	// or the zero time when none exist.
	LatestOpenTime(ctx context.Context, symbol, interval string) (time.Time, error)
}
