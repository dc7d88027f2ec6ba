package trading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moonalarm/internal/strategy"
	"moonalarm/internal/strategy/indicators"
)

type passEnter struct{}

func (passEnter) Name() string                                              { return "pass" }
func (passEnter) Passes(ctx context.Context, snap strategy.MarketView) bool { return true }

func sessionExchange(symbols ...string) *mockExchange {
	exchange := &mockExchange{
		book:    tradeBook(100, 100.1),
		candles: tradeCandles(),
		pairs:   symbols,
		volumes: make(map[string]float64),
		balance: 1000,
	}
	for _, symbol := range symbols {
		exchange.volumes[symbol] = 500
		f := tradeFilters()
		f.Symbol = symbol
		exchange.filters = append(exchange.filters, f)
	}
	return exchange
}

func newTestSession(t *testing.T, exchange *mockExchange, engine *strategy.Engine, maxOpen int) *Session {
	t.Helper()
	sess, err := NewSession(SessionConfig{
		QuoteAsset:        "BTC",
		MinQuoteVolume24h: 100,
		MaxOpenTrades:     maxOpen,
		TradeQuoteBudget:  100,
		FeePercent:        0.1,
		Paper:             true,
		RefreshInterval:   time.Hour, // cycles driven by hand in tests
		MonitorInterval:   5 * time.Millisecond,
		CandleInterval:    "1m",
		Indicators:        indicators.DefaultConfig(),
		Exchange:          exchange,
		Logger:            &mockLogger{},
		Engine:            engine,
	})
	require.NoError(t, err)
	return sess
}

func passEngine(t *testing.T) *strategy.Engine {
	t.Helper()
	engine, err := strategy.New(strategy.Config{}, &mockLogger{}, []strategy.EnterCriterion{passEnter{}}, nil)
	require.NoError(t, err)
	return engine
}

func TestSession_UniverseFiltersByVolume(t *testing.T) {
	exchange := sessionExchange("AAABTC", "BBBBTC", "CCCBTC")
	exchange.volumes["BBBBTC"] = 50 // below the floor

	sess := newTestSession(t, exchange, passEngine(t), 1)
	require.NoError(t, sess.Start(context.Background()))
	defer sess.Stop()

	snapshots := sess.snapshotList()
	symbols := make(map[string]bool)
	for _, snap := range snapshots {
		symbols[snap.Symbol()] = true
	}
	assert.Equal(t, map[string]bool{"AAABTC": true, "CCCBTC": true}, symbols)
	assert.Equal(t, 1000.0, sess.QuoteBalance())
}

func TestSession_CycleOpensTradesUpToCap(t *testing.T) {
	exchange := sessionExchange("AAABTC", "BBBBTC", "CCCBTC")
	sess := newTestSession(t, exchange, passEngine(t), 2)
	require.NoError(t, sess.Start(context.Background()))
	defer sess.Stop()

	sess.cycle(context.Background())

	trades := sess.Trades()
	assert.Len(t, trades, 2, "entries stop at the open-trade cap")
	for _, tr := range trades {
		assert.Equal(t, TradeEntered, tr.Status())
	}

	// Another cycle opens nothing while the cap is hit.
	sess.cycle(context.Background())
	assert.Len(t, sess.Trades(), 2)
}

func TestSession_SkipsSymbolsWithOpenTrade(t *testing.T) {
	exchange := sessionExchange("AAABTC")
	sess := newTestSession(t, exchange, passEngine(t), 5)
	require.NoError(t, sess.Start(context.Background()))
	defer sess.Stop()

	sess.cycle(context.Background())
	require.Len(t, sess.Trades(), 1)

	// The same symbol never gets a second concurrent trade.
	sess.cycle(context.Background())
	assert.Len(t, sess.Trades(), 1)
}

func TestSession_CompletedTradeFreesSlotAndRecordsEnd(t *testing.T) {
	exchange := sessionExchange("AAABTC")
	sess := newTestSession(t, exchange, passEngine(t), 1)
	require.NoError(t, sess.Start(context.Background()))
	defer sess.Stop()

	sess.cycle(context.Background())
	trades := sess.Trades()
	require.Len(t, trades, 1)

	trades[0].RequestExit()
	trades[0].Wait()

	assert.Empty(t, sess.Trades())
	require.Len(t, sess.CompletedTrades(), 1)
	end, ok := sess.LastTradeEnd("AAABTC")
	require.True(t, ok)
	assert.False(t, end.IsZero())
}

func TestSession_StopIsIdempotentAndHaltsLoops(t *testing.T) {
	exchange := sessionExchange("AAABTC")
	sess := newTestSession(t, exchange, passEngine(t), 1)
	require.NoError(t, sess.Start(context.Background()))

	assert.True(t, sess.IsRunning())
	sess.Stop()
	sess.Stop()
	assert.False(t, sess.IsRunning())
}

func TestSession_RankedSnapshotsOrderByVolumeRatio(t *testing.T) {
	// Snapshots without a computable ratio still rank, just at the
	// bottom; with identical mock data the order is simply stable.
	exchange := sessionExchange("AAABTC", "BBBBTC")
	sess := newTestSession(t, exchange, passEngine(t), 1)
	require.NoError(t, sess.Start(context.Background()))
	defer sess.Stop()

	sess.cycle(context.Background())
	assert.Len(t, sess.RankedSnapshots(), 2)
}
