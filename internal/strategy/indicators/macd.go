package indicators

import (
	"fmt"

	"moonalarm/internal/domain"
	"moonalarm/internal/ports"
)

// macdMinCandles is the empirical floor before the slow EMA is meaningful.
const macdMinCandles = 50

// applyMACD feeds the close-price stream into fast and slow EMAs and stores
// MACD (fast minus slow) and its signal EMA on each candle once seeded. The
// histogram is derived on read, not stored.
func applyMACD(series domain.CandleSeries, fast, slow, signal int) error {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return fmt.Errorf("%w: MACD periods must be positive (fast=%d slow=%d signal=%d)",
			ports.ErrConfigurationError, fast, slow, signal)
	}
	if fast >= slow {
		return fmt.Errorf("%w: MACD fast period %d must be below slow period %d",
			ports.ErrConfigurationError, fast, slow)
	}
	if len(series) <= macdMinCandles {
		return fmt.Errorf("%w: need more than %d candles for MACD, have %d",
			ports.ErrInsufficientData, macdMinCandles, len(series))
	}

	fastEMA, err := NewEMA(fast)
	if err != nil {
		return err
	}
	slowEMA, err := NewEMA(slow)
	if err != nil {
		return err
	}
	signalEMA, err := NewEMA(signal)
	if err != nil {
		return err
	}

	for _, c := range series {
		fastEMA.Add(c.Close)
		slowEMA.Add(c.Close)

		fastVal, fastOK := fastEMA.Value()
		slowVal, slowOK := slowEMA.Value()
		if !fastOK || !slowOK {
			continue
		}

		macd := fastVal - slowVal
		c.Indicators.MACD = &macd

		signalEMA.Add(macd)
		if sigVal, ok := signalEMA.Value(); ok {
			c.Indicators.MACDSignal = &sigVal
		}
	}

	return nil
}
