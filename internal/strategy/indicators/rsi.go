package indicators

import (
	"fmt"

	"moonalarm/internal/domain"
	"moonalarm/internal/ports"
)

// applyRSI computes the Relative Strength Index using Wilder's smoothing and
// stores a value on every candle once the minimum window is reached.
//
// The first `period` price deltas accumulate into seeded bull/bear averages;
// subsequent deltas feed running SMAs of gains (zero on down-ticks) and
// losses (zero on up-ticks).
func applyRSI(series domain.CandleSeries, period int) error {
	if period <= 0 {
		return fmt.Errorf("%w: RSI period must be positive, got %d", ports.ErrConfigurationError, period)
	}
	if len(series) < 2*period {
		return fmt.Errorf("%w: need %d candles for RSI(%d), have %d", ports.ErrInsufficientData, 2*period, period, len(series))
	}

	bull, err := NewSMA(period)
	if err != nil {
		return err
	}
	bear, err := NewSMA(period)
	if err != nil {
		return err
	}

	var gainSum, lossSum float64
	for i := 1; i < len(series); i++ {
		delta := series[i].Close - series[i-1].Close

		if i <= period {
			if delta > 0 {
				gainSum += delta
			} else {
				lossSum -= delta
			}
			if i == period {
				bull.Seed(gainSum / float64(period))
				bear.Seed(lossSum / float64(period))
			}
		} else {
			var gain, loss float64
			if delta > 0 {
				gain = delta
			} else {
				loss = -delta
			}
			bull.Add(gain)
			bear.Add(loss)
		}

		if i < period {
			continue
		}

		bullAvg, _ := bull.Value()
		bearAvg, _ := bear.Value()

		// A zero bear average must not divide; pure gains pin RSI at 100
		// and a completely flat window stays unavailable.
		if bearAvg == 0 {
			if bullAvg > 0 {
				v := 100.0
				series[i].Indicators.RSI = &v
			}
			continue
		}

		rsi := 100 - 100/(1+bullAvg/bearAvg)
		if rsi > 100 {
			rsi = 100
		} else if rsi < 0 {
			rsi = 0
		}
		series[i].Indicators.RSI = &rsi
	}

	return nil
}
