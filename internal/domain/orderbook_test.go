package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBook() *OrderBook {
	return &OrderBook{
		Symbol: "LTCBTC",
		Asks: []BookLevel{
			{Price: 10, Quantity: 1},
			{Price: 11, Quantity: 2},
			{Price: 12, Quantity: 5},
		},
		Bids: []BookLevel{
			{Price: 9, Quantity: 1},
			{Price: 8, Quantity: 3},
			{Price: 7, Quantity: 4},
		},
	}
}

func TestOrderBook_TopOfBook(t *testing.T) {
	b := testBook()

	bid, ok := b.TopBid()
	require.True(t, ok)
	assert.Equal(t, 9.0, bid)

	ask, ok := b.FirstAsk()
	require.True(t, ok)
	assert.Equal(t, 10.0, ask)

	gap, ok := b.BidAskGapPercent()
	require.True(t, ok)
	assert.InDelta(t, (10.0-9.0)/10.0, gap, 1e-12)

	empty := &OrderBook{Symbol: "LTCBTC"}
	_, ok = empty.TopBid()
	assert.False(t, ok)
	_, ok = empty.BidAskGapPercent()
	assert.False(t, ok)
}

func TestOrderBook_EdgePrice(t *testing.T) {
	b := testBook()

	tests := []struct {
		name      string
		volume    float64
		side      OrderSide
		wantPrice float64
		wantOK    bool
	}{
		{name: "first level absorbs exactly", volume: 1, side: Buy, wantPrice: 10, wantOK: true},
		{name: "second level absorbs", volume: 2.5, side: Buy, wantPrice: 11, wantOK: true},
		{name: "full depth consumed", volume: 8, side: Buy, wantPrice: 12, wantOK: true},
		{name: "insufficient depth", volume: 100, side: Buy, wantOK: false},
		{name: "bid side walk", volume: 3, side: Sell, wantPrice: 8, wantOK: true},
		{name: "zero volume", volume: 0, side: Buy, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, ok := b.EdgePrice(tt.volume, tt.side)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantPrice, price)
			}
		})
	}
}

func TestOrderBook_RunwayFallwayPercent(t *testing.T) {
	b := testBook()

	runway, ok := b.RunwayPercent(2.5)
	require.True(t, ok)
	assert.InDelta(t, (11.0-10.0)/10.0, runway, 1e-12)

	fallway, ok := b.FallwayPercent(3)
	require.True(t, ok)
	assert.InDelta(t, (9.0-8.0)/9.0, fallway, 1e-12)

	_, ok = b.RunwayPercent(100)
	assert.False(t, ok)
}

func TestOrderBook_AmountAtOrBetter(t *testing.T) {
	b := testBook()

	assert.Equal(t, 1.0, b.AmountAtOrAboveBid(9))
	assert.Equal(t, 4.0, b.AmountAtOrAboveBid(8))
	assert.Equal(t, 8.0, b.AmountAtOrAboveBid(1))
	assert.Equal(t, 0.0, b.AmountAtOrAboveBid(9.5))

	assert.Equal(t, 1.0, b.AmountAtOrBelowAsk(10))
	assert.Equal(t, 3.0, b.AmountAtOrBelowAsk(11.5))
	assert.Equal(t, 0.0, b.AmountAtOrBelowAsk(9))
}

func TestOrderBook_MarketPriceAvg(t *testing.T) {
	b := testBook()

	// Spending 21 quote: 1 @ 10 (10 quote) + 1 @ 11 (11 quote) = 2 base.
	avg, ok := b.MarketPriceAvg(21, Buy)
	require.True(t, ok)
	assert.InDelta(t, 10.5, avg, 1e-12)

	// Partial final level: 10 quote buys exactly the first level.
	avg, ok = b.MarketPriceAvg(10, Buy)
	require.True(t, ok)
	assert.InDelta(t, 10.0, avg, 1e-12)

	// More quote volume than the whole book holds.
	_, ok = b.MarketPriceAvg(1e9, Buy)
	assert.False(t, ok)

	// Sell side walks the bids.
	avg, ok = b.MarketPriceAvg(9, Sell)
	require.True(t, ok)
	assert.InDelta(t, 9.0, avg, 1e-12)
}
