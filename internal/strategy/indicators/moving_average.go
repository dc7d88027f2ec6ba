package indicators

import "fmt"

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverage is an incremental moving-average accumulator. It seeds
// itself with the straight average of the first `period` inputs, or with a
// caller-supplied value via Seed (the RSI buildup seeds from partial sums),
// and thereafter updates by recurrence on each Add.
type MovingAverage struct {
	maType MovingAverageType
	period int

	value  float64
	primed bool

	warmupSum   float64
	warmupCount int
}

// NewSMA creates an incremental simple moving average.
func NewSMA(period int) (*MovingAverage, error) {
	return newMovingAverage(SimpleMovingAverage, period)
}

// NewEMA creates an incremental exponential moving average.
func NewEMA(period int) (*MovingAverage, error) {
	return newMovingAverage(ExponentialMovingAverage, period)
}

func newMovingAverage(maType MovingAverageType, period int) (*MovingAverage, error) {
	if period <= 0 {
		return nil, fmt.Errorf("moving average period must be positive, got %d", period)
	}
	return &MovingAverage{maType: maType, period: period}, nil
}

// Seed primes the accumulator with a caller-supplied starting value,
// bypassing the warmup average.
func (m *MovingAverage) Seed(v float64) {
	m.value = v
	m.primed = true
}

// Add feeds the next input into the accumulator.
func (m *MovingAverage) Add(v float64) {
	if !m.primed {
		m.warmupSum += v
		m.warmupCount++
		if m.warmupCount >= m.period {
			m.value = m.warmupSum / float64(m.period)
			m.primed = true
		}
		return
	}

	switch m.maType {
	case ExponentialMovingAverage:
		multiplier := 2.0 / float64(m.period+1)
		m.value = (v-m.value)*multiplier + m.value
	default:
		m.value = (m.value*float64(m.period-1) + v) / float64(m.period)
	}
}

// Value returns the current average. The second return is false until enough
// inputs have been seen to seed the accumulator.
func (m *MovingAverage) Value() (float64, bool) {
	return m.value, m.primed
}

// Period returns the configured period.
func (m *MovingAverage) Period() int {
	return m.period
}
