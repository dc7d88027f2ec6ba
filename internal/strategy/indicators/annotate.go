package indicators

import (
	"context"
	"errors"
	"fmt"

	"moonalarm/internal/domain"
	"moonalarm/internal/ports"
)

// Config holds the periods for every indicator pass.
type Config struct {
	RSIPeriod int

	StochLength  int
	StochSmoothK int
	StochSmoothD int

	StochRSILength  int // window over the RSI series
	StochRSISmoothK int
	StochRSISmoothD int

	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

// DefaultConfig returns the standard indicator tuning.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:       14,
		StochLength:     14,
		StochSmoothK:    1,
		StochSmoothD:    3,
		StochRSILength:  9,
		StochRSISmoothK: 2,
		StochRSISmoothD: 2,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
	}
}

// Validate checks the period relationships that would make a pass refuse to
// compute. Run at construction so a live session never carries a config the
// passes will reject.
func (c Config) Validate() error {
	// A minimal dry run against empty data surfaces only config errors;
	// insufficiency against an empty series is expected and ignored.
	checks := []error{
		applyRSI(nil, c.RSIPeriod),
		applyStochastic(nil, c.StochLength, c.StochSmoothK, c.StochSmoothD),
		applyStochasticRSI(nil, c.RSIPeriod, c.StochRSILength, c.StochRSISmoothK, c.StochRSISmoothD),
		applyMACD(nil, c.MACDFast, c.MACDSlow, c.MACDSignal),
	}
	for _, err := range checks {
		if err != nil && !errors.Is(err, ports.ErrInsufficientData) {
			return err
		}
	}
	return nil
}

// Annotate runs every indicator pass over a deep copy of the series and
// returns the annotated copy; the input is never mutated, which keeps the
// concurrent fan-out refresh race-free. Passes short on data are skipped
// with a diagnostic; an invalid configuration aborts instead of producing
// misleading values.
func Annotate(ctx context.Context, logger ports.Logger, series domain.CandleSeries, cfg Config) (domain.CandleSeries, error) {
	out := series.Clone()

	passes := []struct {
		name string
		run  func() error
	}{
		{"rsi", func() error { return applyRSI(out, cfg.RSIPeriod) }},
		{"stochastic", func() error { return applyStochastic(out, cfg.StochLength, cfg.StochSmoothK, cfg.StochSmoothD) }},
		{"stochasticRSI", func() error {
			return applyStochasticRSI(out, cfg.RSIPeriod, cfg.StochRSILength, cfg.StochRSISmoothK, cfg.StochRSISmoothD)
		}},
		{"macd", func() error { return applyMACD(out, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal) }},
	}

	for _, pass := range passes {
		err := pass.run()
		if err == nil {
			continue
		}
		if errors.Is(err, ports.ErrInsufficientData) {
			if logger != nil {
				logger.Debug(ctx, "indicator pass skipped", map[string]interface{}{
					"pass":    pass.name,
					"candles": len(out),
					"reason":  err.Error(),
				})
			}
			continue
		}
		if logger != nil {
			logger.Error(ctx, err, "indicator pass refused to compute", map[string]interface{}{"pass": pass.name})
		}
		return nil, fmt.Errorf("indicator pass %s: %w", pass.name, err)
	}

	return out, nil
}
