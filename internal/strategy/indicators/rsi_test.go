package indicators

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moonalarm/internal/domain"
	"moonalarm/internal/ports"
)

// seriesFromValues builds a minute series where every candle's OHLC tracks
// the given close value.
func seriesFromValues(closes ...float64) domain.CandleSeries {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := make(domain.CandleSeries, 0, len(closes))
	for i, c := range closes {
		open := start.Add(time.Duration(i) * time.Minute)
		s = append(s, &domain.Candle{
			Symbol:    "LTCBTC",
			Interval:  "1m",
			OpenTime:  open,
			CloseTime: open.Add(time.Minute - time.Millisecond),
			Open:      c,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
			IsFinal:   i < len(closes)-1,
		})
	}
	return s
}

func risingSeries(n int) domain.CandleSeries {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return seriesFromValues(closes...)
}

func TestRSI_InsufficientData(t *testing.T) {
	series := risingSeries(27) // below 2*period for period 14
	err := applyRSI(series, 14)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrInsufficientData))
	for _, c := range series {
		assert.Nil(t, c.Indicators.RSI)
	}
}

func TestRSI_StrictlyIncreasingPinsAt100(t *testing.T) {
	series := risingSeries(29) // exactly 2*period+1
	require.NoError(t, applyRSI(series, 14))

	last := series.Current().Indicators.RSI
	require.NotNil(t, last)
	assert.Equal(t, 100.0, *last, "pure gains must pin RSI at 100 without dividing by zero")
}

func TestRSI_FlatSeriesUnavailable(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	series := seriesFromValues(closes...)
	require.NoError(t, applyRSI(series, 14))

	assert.Nil(t, series.Current().Indicators.RSI, "no movement at all must stay unavailable, not NaN")
}

func TestRSI_KnownValue(t *testing.T) {
	series := seriesFromValues(100, 102, 101, 103, 102)
	require.NoError(t, applyRSI(series, 2))

	// Deltas +2 -1 +2 -1: seed bull=1 bear=0.5, then two smoothed steps.
	last := series.Current().Indicators.RSI
	require.NotNil(t, last)
	assert.InDelta(t, 54.545455, *last, 0.0001)

	// Every candle from the seed onward carries a value.
	for i := 2; i < len(series); i++ {
		assert.NotNil(t, series[i].Indicators.RSI, "candle %d", i)
	}
}

func TestRSI_InvalidPeriod(t *testing.T) {
	err := applyRSI(risingSeries(30), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))
}
