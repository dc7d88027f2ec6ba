package indicators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moonalarm/internal/ports"
)

func TestMACD_InsufficientData(t *testing.T) {
	series := risingSeries(50) // floor is strictly more than 50
	err := applyMACD(series, 12, 26, 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrInsufficientData))
}

func TestMACD_RisingSeriesPositive(t *testing.T) {
	series := risingSeries(60)
	require.NoError(t, applyMACD(series, 12, 26, 9))

	last := series.Current()
	require.NotNil(t, last.Indicators.MACD)
	require.NotNil(t, last.Indicators.MACDSignal)
	assert.Greater(t, *last.Indicators.MACD, 0.0, "fast EMA leads slow EMA in an uptrend")

	h := last.Indicators.MACDHistogram()
	require.NotNil(t, h)
	assert.InDelta(t, *last.Indicators.MACD-*last.Indicators.MACDSignal, *h, 1e-12)
}

func TestMACD_EarlyCandlesUnavailable(t *testing.T) {
	series := risingSeries(60)
	require.NoError(t, applyMACD(series, 12, 26, 9))

	// Nothing stored before the slow EMA has seeded.
	for i := 0; i < 25; i++ {
		assert.Nil(t, series[i].Indicators.MACD, "candle %d", i)
	}
	assert.NotNil(t, series[26].Indicators.MACD)
}

func TestMACD_ConfigValidation(t *testing.T) {
	series := risingSeries(60)

	err := applyMACD(series, 26, 12, 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))

	err = applyMACD(series, 0, 26, 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))
}
