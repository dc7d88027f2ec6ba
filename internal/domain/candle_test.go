package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minuteSeries(closes []float64) CandleSeries {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := make(CandleSeries, 0, len(closes))
	for i, c := range closes {
		open := start.Add(time.Duration(i) * time.Minute)
		s = append(s, &Candle{
			Symbol:     "LTCBTC",
			Interval:   "1m",
			OpenTime:   open,
			CloseTime:  open.Add(time.Minute - time.Millisecond),
			Close:      c,
			Volume:     10,
			TradeCount: 4,
			IsFinal:    i < len(closes)-1,
		})
	}
	return s
}

func TestCandleSeries_Ordering(t *testing.T) {
	s := minuteSeries([]float64{1, 2, 3})
	assert.True(t, s.IsOrdered())

	s[2].OpenTime = s[1].OpenTime
	assert.False(t, s.IsOrdered())
}

func TestCandleSeries_TrailingAverages(t *testing.T) {
	s := minuteSeries([]float64{1, 2, 3, 4, 5})

	// Trailing window excludes the in-progress last candle.
	avg, ok := s.AverageClose(3)
	require.True(t, ok)
	assert.InDelta(t, 3.0, avg, 1e-12) // (2+3+4)/3

	vol, ok := s.AverageVolume(4)
	require.True(t, ok)
	assert.InDelta(t, 10.0, vol, 1e-12)

	trades, ok := s.AverageTradeCount(2)
	require.True(t, ok)
	assert.InDelta(t, 4.0, trades, 1e-12)

	// Not enough finished candles.
	_, ok = s.AverageClose(5)
	assert.False(t, ok)
	_, ok = CandleSeries{}.AverageVolume(15)
	assert.False(t, ok)
}

func TestCandle_ElapsedFraction(t *testing.T) {
	c := minuteSeries([]float64{1})[0]

	assert.InDelta(t, 0.5, c.ElapsedFraction(c.OpenTime.Add(30*time.Second)), 0.01)
	assert.Equal(t, 0.0, c.ElapsedFraction(c.OpenTime.Add(-time.Minute)))
	assert.Equal(t, 1.0, c.ElapsedFraction(c.OpenTime.Add(time.Hour)))
}

func TestIndicatorValues_MACDHistogram(t *testing.T) {
	macd, signal := 1.5, 1.2
	iv := IndicatorValues{MACD: &macd, MACDSignal: &signal}
	h := iv.MACDHistogram()
	require.NotNil(t, h)
	assert.InDelta(t, 0.3, *h, 1e-12)

	assert.Nil(t, IndicatorValues{MACD: &macd}.MACDHistogram())
}

func TestCandleSeries_Clone(t *testing.T) {
	s := minuteSeries([]float64{1, 2})
	c := s.Clone()
	rsi := 55.0
	c[0].Indicators.RSI = &rsi

	assert.Nil(t, s[0].Indicators.RSI, "clone must not share candles with the source series")
}

func TestTradeOrder_Fills(t *testing.T) {
	o := NewLimitOrder("LTCBTC", Buy, 100, 2)
	require.Equal(t, OrderStatusDraft, o.Status)
	require.NotEmpty(t, o.ClientOrderID)
	assert.False(t, o.IsFinalized())

	o.Fills = append(o.Fills,
		Fill{Price: 100, Quantity: 1, Fee: 0.1, FeeAsset: "BNB"},
		Fill{Price: 101, Quantity: 1, Fee: 0.1, FeeAsset: "BNB"},
	)
	avg, ok := o.AvgFillPrice()
	require.True(t, ok)
	assert.InDelta(t, 100.5, avg, 1e-12)
	assert.InDelta(t, 0.2, o.FeePaid("BNB"), 1e-12)

	o.Status = OrderStatusFilled
	assert.True(t, o.IsFinalized())

	// Status-poll path: filled amount known, no fill records.
	p := NewLimitOrder("LTCBTC", Sell, 99, 1)
	p.FilledAmount = 1
	avg, ok = p.AvgFillPrice()
	require.True(t, ok)
	assert.Equal(t, 99.0, avg)
}

func TestTradeOrder_Iceberg(t *testing.T) {
	o := NewLimitOrder("LTCBTC", Buy, 100, 2)
	assert.False(t, o.IsIceberg())
	o.VisibleAmount = 0.5
	assert.True(t, o.IsIceberg())
	o.VisibleAmount = 2
	assert.False(t, o.IsIceberg())
}
