package market

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moonalarm/internal/domain"
	"moonalarm/internal/strategy/indicators"
)

// mockExchange implements ports.ExchangeClient with overridable functions.
type mockExchange struct {
	getCandlesFunc   func(ctx context.Context, symbol, interval string, limit int) (domain.CandleSeries, error)
	getOrderBookFunc func(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error)
}

func (m *mockExchange) SetServerTime(ctx context.Context) error              { return nil }
func (m *mockExchange) GetServerTime(ctx context.Context) (time.Time, error) { return time.Now(), nil }
func (m *mockExchange) GetTradablePairs(ctx context.Context, quoteAsset string) ([]string, error) {
	return nil, nil
}
func (m *mockExchange) Get24hQuoteVolume(ctx context.Context, symbol string) (float64, error) {
	return 0, nil
}
func (m *mockExchange) GetCandles(ctx context.Context, symbol, interval string, limit int) (domain.CandleSeries, error) {
	return m.getCandlesFunc(ctx, symbol, interval, limit)
}
func (m *mockExchange) GetOrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
	return m.getOrderBookFunc(ctx, symbol, depth)
}
func (m *mockExchange) GetSymbolFilters(ctx context.Context) ([]*domain.SymbolFilters, error) {
	return nil, nil
}
func (m *mockExchange) PlaceOrder(ctx context.Context, order *domain.TradeOrder) error  { return nil }
func (m *mockExchange) CancelOrder(ctx context.Context, order *domain.TradeOrder) error { return nil }
func (m *mockExchange) GetOrderStatus(ctx context.Context, order *domain.TradeOrder) error {
	return nil
}
func (m *mockExchange) GetBalance(ctx context.Context, asset string) (float64, error) { return 0, nil }

func testCandles(n int) domain.CandleSeries {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	series := make(domain.CandleSeries, 0, n)
	for i := 0; i < n; i++ {
		open := start.Add(time.Duration(i) * time.Minute)
		c := &domain.Candle{
			Symbol:     "LTCBTC",
			Interval:   "1m",
			OpenTime:   open,
			CloseTime:  open.Add(time.Minute - time.Millisecond),
			Close:      100,
			Volume:     10,
			TradeCount: 4,
			IsFinal:    i < n-1,
		}
		series = append(series, c)
	}
	// In-progress bucket: half the volume and trades so far, a tick up.
	cur := series[n-1]
	cur.Volume = 5
	cur.TradeCount = 2
	cur.Close = 101
	return series
}

func testSnapshot(t *testing.T, exchange *mockExchange) *Snapshot {
	t.Helper()
	snap, err := New(Config{
		Symbol:     "LTCBTC",
		Interval:   "1m",
		Exchange:   exchange,
		Indicators: indicators.DefaultConfig(),
	})
	require.NoError(t, err)
	return snap
}

func TestSnapshot_RefreshSwapsState(t *testing.T) {
	candles := testCandles(120)
	book := &domain.OrderBook{
		Symbol: "LTCBTC",
		Bids:   []domain.BookLevel{{Price: 100.9, Quantity: 2}},
		Asks:   []domain.BookLevel{{Price: 101.1, Quantity: 3}},
	}
	exchange := &mockExchange{
		getCandlesFunc: func(ctx context.Context, symbol, interval string, limit int) (domain.CandleSeries, error) {
			return candles, nil
		},
		getOrderBookFunc: func(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
			return book, nil
		},
	}
	snap := testSnapshot(t, exchange)

	require.NoError(t, snap.Refresh(context.Background()))

	require.Len(t, snap.Series(), 120)
	assert.NotNil(t, snap.Series().Current().Indicators.RSI, "refresh must run indicator passes")
	require.NotNil(t, snap.Book())

	price, ok := snap.CurrentPrice()
	require.True(t, ok)
	assert.Equal(t, 101.0, price)
}

func TestSnapshot_RefreshFailureKeepsState(t *testing.T) {
	candles := testCandles(30)
	calls := 0
	exchange := &mockExchange{
		getCandlesFunc: func(ctx context.Context, symbol, interval string, limit int) (domain.CandleSeries, error) {
			calls++
			if calls > 1 {
				return nil, fmt.Errorf("gateway down")
			}
			return candles, nil
		},
		getOrderBookFunc: func(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
			return &domain.OrderBook{Symbol: "LTCBTC"}, nil
		},
	}
	snap := testSnapshot(t, exchange)

	require.NoError(t, snap.Refresh(context.Background()))
	require.Error(t, snap.Refresh(context.Background()))
	assert.Len(t, snap.Series(), 30, "failed refresh must keep previous series")
}

func TestSnapshot_Ratios(t *testing.T) {
	candles := testCandles(30)
	exchange := &mockExchange{
		getCandlesFunc: func(ctx context.Context, symbol, interval string, limit int) (domain.CandleSeries, error) {
			return candles, nil
		},
		getOrderBookFunc: func(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
			return &domain.OrderBook{Symbol: "LTCBTC"}, nil
		},
	}
	snap := testSnapshot(t, exchange)
	require.NoError(t, snap.Refresh(context.Background()))

	// Pin the clock halfway through the in-progress bucket.
	cur := snap.Series().Current()
	snap.now = func() time.Time { return cur.OpenTime.Add(30 * time.Second) }

	// prorated = 5 + 10*(1-0.5) = 10 against a trailing average of 10.
	ratio, ok := snap.VolumeRatio()
	require.True(t, ok)
	assert.InDelta(t, 1.0, ratio, 0.01)

	trades, ok := snap.TradesRatio()
	require.True(t, ok)
	assert.InDelta(t, 1.0, trades, 0.01)

	// 101 over a 100 trailing average close, rounded to 3 decimals.
	price, ok := snap.PriceRatio()
	require.True(t, ok)
	assert.InDelta(t, 1.01, price, 1e-9)
}

func TestSnapshot_RatiosUnavailableWhenShort(t *testing.T) {
	candles := testCandles(5)
	exchange := &mockExchange{
		getCandlesFunc: func(ctx context.Context, symbol, interval string, limit int) (domain.CandleSeries, error) {
			return candles, nil
		},
		getOrderBookFunc: func(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
			return &domain.OrderBook{Symbol: "LTCBTC"}, nil
		},
	}
	snap := testSnapshot(t, exchange)
	require.NoError(t, snap.Refresh(context.Background()))

	_, ok := snap.VolumeRatio()
	assert.False(t, ok)
	_, ok = snap.TradesRatio()
	assert.False(t, ok)

	// 3-period price average still has enough candles.
	_, ok = snap.PriceRatio()
	assert.True(t, ok)
}
