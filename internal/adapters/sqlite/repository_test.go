package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moonalarm/internal/domain"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "candles.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func archiveCandle(openTime time.Time, close float64, final bool) *domain.Candle {
	return &domain.Candle{
		Symbol:      "LTCBTC",
		Interval:    "1m",
		OpenTime:    openTime,
		CloseTime:   openTime.Add(time.Minute - time.Millisecond),
		Open:        close - 1,
		High:        close + 1,
		Low:         close - 2,
		Close:       close,
		Volume:      10,
		QuoteVolume: 1000,
		TradeCount:  42,
		IsFinal:     final,
	}
}

func TestRepository_SaveAndFind(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	series := domain.CandleSeries{
		archiveCandle(base, 100, true),
		archiveCandle(base.Add(time.Minute), 101, true),
		archiveCandle(base.Add(2*time.Minute), 102, false), // in progress, skipped
	}
	require.NoError(t, repo.SaveCandles(ctx, series))

	count, err := repo.CountBySymbol(ctx, "LTCBTC", "1m")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "unfinished candles are not archived")

	found, err := repo.FindBySymbol(ctx, "LTCBTC", "1m", 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, base.UnixMilli(), found[0].OpenTime.UnixMilli(), "oldest first")
	assert.Equal(t, 100.0, found[0].Close)
	assert.Equal(t, int64(42), found[0].TradeCount)
	assert.True(t, found[0].IsFinal)
}

func TestRepository_SaveIsUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveCandles(ctx, domain.CandleSeries{archiveCandle(base, 100, true)}))
	require.NoError(t, repo.SaveCandles(ctx, domain.CandleSeries{archiveCandle(base, 105, true)}))

	count, err := repo.CountBySymbol(ctx, "LTCBTC", "1m")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	found, err := repo.FindBySymbol(ctx, "LTCBTC", "1m", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 105.0, found[0].Close, "conflicting open time overwrites")
}

func TestRepository_LatestOpenTime(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	latest, err := repo.LatestOpenTime(ctx, "LTCBTC", "1m")
	require.NoError(t, err)
	assert.True(t, latest.IsZero(), "empty archive reports the zero time")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveCandles(ctx, domain.CandleSeries{
		archiveCandle(base, 100, true),
		archiveCandle(base.Add(time.Minute), 101, true),
	}))

	latest, err = repo.LatestOpenTime(ctx, "LTCBTC", "1m")
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Minute).UnixMilli(), latest.UnixMilli())
}
