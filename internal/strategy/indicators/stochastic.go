package indicators

import (
	"fmt"

	"moonalarm/internal/domain"
	"moonalarm/internal/ports"
)

// rollingStochastic applies the windowed min/max stochastic transform to a
// value stream: raw %K over the trailing `length` window, smoothed into %K
// and %D by moving-average accumulators. Output slices are parallel to the
// inputs; nil entries mean the value is unavailable at that index.
func rollingStochastic(highs, lows, closes []float64, length, smoothK, smoothD int) ([]*float64, []*float64, error) {
	kOut := make([]*float64, len(closes))
	dOut := make([]*float64, len(closes))

	kAcc, err := NewSMA(smoothK)
	if err != nil {
		return nil, nil, err
	}
	dAcc, err := NewSMA(smoothD)
	if err != nil {
		return nil, nil, err
	}

	for i := length - 1; i < len(closes); i++ {
		minLow := lows[i-length+1]
		maxHigh := highs[i-length+1]
		for j := i - length + 2; j <= i; j++ {
			if lows[j] < minLow {
				minLow = lows[j]
			}
			if highs[j] > maxHigh {
				maxHigh = highs[j]
			}
		}
		if maxHigh == minLow {
			continue // flat window, %K undefined
		}

		raw := (closes[i] - minLow) / (maxHigh - minLow) * 100
		kAcc.Add(raw)
		kVal, ok := kAcc.Value()
		if !ok {
			continue
		}
		kOut[i] = &kVal

		dAcc.Add(kVal)
		if dVal, ok := dAcc.Value(); ok {
			dOut[i] = &dVal
		}
	}

	return kOut, dOut, nil
}

// applyStochastic computes the stochastic price oscillator over high/low/
// close and stores %K/%D on each candle with enough history.
func applyStochastic(series domain.CandleSeries, length, smoothK, smoothD int) error {
	if length <= 0 || smoothK <= 0 || smoothD <= 0 {
		return fmt.Errorf("%w: stochastic lengths must be positive (length=%d smoothK=%d smoothD=%d)",
			ports.ErrConfigurationError, length, smoothK, smoothD)
	}
	if len(series) < 2*length {
		return fmt.Errorf("%w: need %d candles for stochastic(%d), have %d",
			ports.ErrInsufficientData, 2*length, length, len(series))
	}

	highs := make([]float64, len(series))
	lows := make([]float64, len(series))
	closes := make([]float64, len(series))
	for i, c := range series {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	k, d, err := rollingStochastic(highs, lows, closes, length, smoothK, smoothD)
	if err != nil {
		return err
	}
	for i := range series {
		series[i].Indicators.StochK = k[i]
		series[i].Indicators.StochD = d[i]
	}
	return nil
}

// applyStochasticRSI applies the stochastic transform to the RSI series
// instead of price. The RSI pass must run first.
func applyStochasticRSI(series domain.CandleSeries, lengthRSI, lengthStoch, smoothK, smoothD int) error {
	if lengthRSI <= 0 || lengthStoch <= 0 || smoothK <= 0 || smoothD <= 0 {
		return fmt.Errorf("%w: stochastic RSI lengths must be positive", ports.ErrConfigurationError)
	}
	if lengthStoch > lengthRSI {
		return fmt.Errorf("%w: stochastic length %d must not exceed RSI length %d",
			ports.ErrConfigurationError, lengthStoch, lengthRSI)
	}
	if smoothK >= lengthStoch || smoothD >= lengthStoch {
		return fmt.Errorf("%w: smoothing lengths (K=%d D=%d) must be below stochastic length %d",
			ports.ErrConfigurationError, smoothK, smoothD, lengthStoch)
	}

	// Collect the contiguous tail of candles carrying an RSI value.
	var idx []int
	var vals []float64
	for i, c := range series {
		if c.Indicators.RSI != nil {
			idx = append(idx, i)
			vals = append(vals, *c.Indicators.RSI)
		}
	}
	if len(vals) < 2*lengthStoch {
		return fmt.Errorf("%w: need %d RSI values for stochastic RSI(%d), have %d",
			ports.ErrInsufficientData, 2*lengthStoch, lengthStoch, len(vals))
	}

	k, d, err := rollingStochastic(vals, vals, vals, lengthStoch, smoothK, smoothD)
	if err != nil {
		return err
	}
	for i, seriesIdx := range idx {
		series[seriesIdx].Indicators.StochRSIK = k[i]
		series[seriesIdx].Indicators.StochRSID = d[i]
	}
	return nil
}
