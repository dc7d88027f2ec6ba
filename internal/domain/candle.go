package domain

import "time"

// Candle represents a single candlestick bucket as reported by the exchange.
// Buckets are half-open on the millisecond, so consecutive candles never
// overlap. Price/volume fields are set once by the gateway; the Indicators
// slots are attached later by the indicator passes.
type Candle struct {
	Symbol      string
	Interval    string
	OpenTime    time.Time // Start time of the bucket
	CloseTime   time.Time // End time of the bucket
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64 // Base-asset volume
	QuoteVolume float64 // Quote-asset volume
	TradeCount  int64
	IsFinal     bool // Whether the bucket has closed

	Indicators IndicatorValues
}

// IndicatorValues holds the derived indicator slots for one candle.
// A nil slot means the value is unavailable at that candle.
type IndicatorValues struct {
	RSI        *float64
	MACD       *float64
	MACDSignal *float64
	StochK     *float64
	StochD     *float64
	StochRSIK  *float64
	StochRSID  *float64
}

// MACDHistogram is derived on read rather than stored.
func (iv IndicatorValues) MACDHistogram() *float64 {
	if iv.MACD == nil || iv.MACDSignal == nil {
		return nil
	}
	h := *iv.MACD - *iv.MACDSignal
	return &h
}

// ElapsedFraction returns how much of the candle's bucket has elapsed at the
// given instant, clamped to [0, 1].
func (c *Candle) ElapsedFraction(now time.Time) float64 {
	total := c.CloseTime.Sub(c.OpenTime)
	if total <= 0 {
		return 1
	}
	f := float64(now.Sub(c.OpenTime)) / float64(total)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// CandleSeries is an ordered, oldest-to-newest candle sequence. The last
// element is the in-progress bucket. The series is append-only; candles are
// never mutated except to attach indicator values.
type CandleSeries []*Candle

// Current returns the newest (in-progress) candle, or nil for an empty series.
func (s CandleSeries) Current() *Candle {
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

// IsOrdered reports whether open times are strictly increasing.
func (s CandleSeries) IsOrdered() bool {
	for i := 1; i < len(s); i++ {
		if !s[i].OpenTime.After(s[i-1].OpenTime) {
			return false
		}
	}
	return true
}

// Closes returns the close prices, oldest first.
func (s CandleSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Clone deep-copies the series so an indicator pass can annotate it without
// touching candles shared with readers.
func (s CandleSeries) Clone() CandleSeries {
	out := make(CandleSeries, len(s))
	for i, c := range s {
		cc := *c
		out[i] = &cc
	}
	return out
}

// trailing returns the `periods` finished candles immediately before the
// current bucket, or nil if the series is too short.
func (s CandleSeries) trailing(periods int) CandleSeries {
	if periods <= 0 || len(s) < periods+1 {
		return nil
	}
	return s[len(s)-1-periods : len(s)-1]
}

// AverageVolume returns the average base-asset volume over the trailing
// `periods` finished candles, excluding the in-progress bucket.
func (s CandleSeries) AverageVolume(periods int) (float64, bool) {
	window := s.trailing(periods)
	if window == nil {
		return 0, false
	}
	var total float64
	for _, c := range window {
		total += c.Volume
	}
	return total / float64(periods), true
}

// AverageTradeCount returns the average trade count over the trailing
// `periods` finished candles, excluding the in-progress bucket.
func (s CandleSeries) AverageTradeCount(periods int) (float64, bool) {
	window := s.trailing(periods)
	if window == nil {
		return 0, false
	}
	var total float64
	for _, c := range window {
		total += float64(c.TradeCount)
	}
	return total / float64(periods), true
}

// AverageClose returns the average close price over the trailing `periods`
// finished candles, excluding the in-progress bucket.
func (s CandleSeries) AverageClose(periods int) (float64, bool) {
	window := s.trailing(periods)
	if window == nil {
		return 0, false
	}
	var total float64
	for _, c := range window {
		total += c.Close
	}
	return total / float64(periods), true
}
