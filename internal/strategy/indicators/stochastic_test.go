package indicators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moonalarm/internal/ports"
)

func TestStochastic_InsufficientData(t *testing.T) {
	series := risingSeries(27) // below 2*length for length 14
	err := applyStochastic(series, 14, 1, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrInsufficientData))
}

func TestStochastic_RisingSeriesTopsOut(t *testing.T) {
	series := risingSeries(30)
	require.NoError(t, applyStochastic(series, 14, 1, 3))

	// Close sits at the window high (high = close+0.5, low = close-0.5),
	// so raw %K is constant and smoothing converges on it.
	last := series.Current()
	require.NotNil(t, last.Indicators.StochK)
	require.NotNil(t, last.Indicators.StochD)

	// closes rise 1/min over a 14-candle window: span is 13+1 = 14, and
	// close sits 0.5 below the window high.
	expected := (13.0 + 0.5) / 14.0 * 100
	assert.InDelta(t, expected, *last.Indicators.StochK, 0.5)
}

func TestStochastic_FlatWindowUnavailable(t *testing.T) {
	closes := make([]float64, 12)
	for i := range closes {
		closes[i] = 50
	}
	series := seriesFromValues(closes...)
	// Flatten highs/lows too so the window truly has no range.
	for _, c := range series {
		c.High = 50
		c.Low = 50
	}
	require.NoError(t, applyStochastic(series, 3, 1, 1))
	assert.Nil(t, series.Current().Indicators.StochK)
}

func TestStochasticRSI_ConfigValidation(t *testing.T) {
	series := risingSeries(60)
	require.NoError(t, applyRSI(series, 14))

	tests := []struct {
		name                                     string
		lengthRSI, lengthStoch, smoothK, smoothD int
	}{
		{name: "stoch length above RSI length", lengthRSI: 14, lengthStoch: 15, smoothK: 2, smoothD: 2},
		{name: "smoothK at stoch length", lengthRSI: 14, lengthStoch: 9, smoothK: 9, smoothD: 2},
		{name: "smoothD above stoch length", lengthRSI: 14, lengthStoch: 9, smoothK: 2, smoothD: 10},
		{name: "zero length", lengthRSI: 14, lengthStoch: 0, smoothK: 2, smoothD: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := applyStochasticRSI(series, tt.lengthRSI, tt.lengthStoch, tt.smoothK, tt.smoothD)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ports.ErrConfigurationError))
		})
	}
}

func TestStochasticRSI_AttachesValues(t *testing.T) {
	// Alternate gains and losses so RSI actually varies.
	closes := make([]float64, 0, 60)
	price := 100.0
	for i := 0; i < 60; i++ {
		if i%3 == 2 {
			price -= 1.5
		} else {
			price += 1.0
		}
		closes = append(closes, price)
	}
	series := seriesFromValues(closes...)
	require.NoError(t, applyRSI(series, 14))
	require.NoError(t, applyStochasticRSI(series, 14, 9, 2, 2))

	last := series.Current()
	require.NotNil(t, last.Indicators.StochRSIK)
	require.NotNil(t, last.Indicators.StochRSID)
	assert.GreaterOrEqual(t, *last.Indicators.StochRSIK, 0.0)
	assert.LessOrEqual(t, *last.Indicators.StochRSIK, 100.0)
}

func TestStochasticRSI_RequiresRSIHistory(t *testing.T) {
	series := risingSeries(60) // RSI pass never ran
	err := applyStochasticRSI(series, 14, 9, 2, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrInsufficientData))
}
