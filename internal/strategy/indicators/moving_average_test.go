package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovingAverage_Warmup(t *testing.T) {
	sma, err := NewSMA(3)
	require.NoError(t, err)

	_, ok := sma.Value()
	assert.False(t, ok, "no value before enough inputs")

	sma.Add(1)
	sma.Add(2)
	_, ok = sma.Value()
	assert.False(t, ok)

	sma.Add(3)
	v, ok := sma.Value()
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-12, "seeded with straight average of first period inputs")
}

func TestMovingAverage_SMARecurrence(t *testing.T) {
	sma, err := NewSMA(3)
	require.NoError(t, err)
	sma.Seed(2.0)

	// new = (prev*(period-1) + input) / period
	sma.Add(5)
	v, ok := sma.Value()
	require.True(t, ok)
	assert.InDelta(t, (2.0*2+5)/3, v, 1e-12)
}

func TestMovingAverage_EMARecurrence(t *testing.T) {
	ema, err := NewEMA(9)
	require.NoError(t, err)
	ema.Seed(10.0)

	// new = (input-prev)*(2/(period+1)) + prev
	ema.Add(12)
	v, ok := ema.Value()
	require.True(t, ok)
	assert.InDelta(t, (12.0-10.0)*(2.0/10.0)+10.0, v, 1e-12)
}

func TestMovingAverage_SeedBypassesWarmup(t *testing.T) {
	ema, err := NewEMA(5)
	require.NoError(t, err)
	ema.Seed(7)
	v, ok := ema.Value()
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
}

func TestMovingAverage_InvalidPeriod(t *testing.T) {
	_, err := NewSMA(0)
	assert.Error(t, err)
	_, err = NewEMA(-1)
	assert.Error(t, err)
}
