package strategy

import (
	"context"
	"fmt"
	"time"
)

// Enter criteria are conservative: whenever the metric they look at is
// unavailable (thin book, short candle history, zero denominators) they
// fail rather than pass.

// VolumeSpike passes when the prorated current-bucket volume and trade
// count both run ahead of their trailing averages.
type VolumeSpike struct {
	minVolumeRatio float64
	minTradesRatio float64
}

func NewVolumeSpike(minVolumeRatio, minTradesRatio float64) (*VolumeSpike, error) {
	if minVolumeRatio <= 0 {
		return nil, fmt.Errorf("volume spike: volume ratio threshold must be positive, got %v", minVolumeRatio)
	}
	if minTradesRatio <= 0 {
		return nil, fmt.Errorf("volume spike: trades ratio threshold must be positive, got %v", minTradesRatio)
	}
	return &VolumeSpike{minVolumeRatio: minVolumeRatio, minTradesRatio: minTradesRatio}, nil
}

func (c *VolumeSpike) Name() string { return "volume_spike" }

func (c *VolumeSpike) Passes(ctx context.Context, snap MarketView) bool {
	volume, ok := snap.VolumeRatio()
	if !ok || volume < c.minVolumeRatio {
		return false
	}
	trades, ok := snap.TradesRatio()
	return ok && trades >= c.minTradesRatio
}

// RSICeiling rejects symbols already overbought on the latest candle.
type RSICeiling struct {
	max float64
}

func NewRSICeiling(max float64) (*RSICeiling, error) {
	if max <= 0 || max > 100 {
		return nil, fmt.Errorf("rsi ceiling: threshold must be in (0, 100], got %v", max)
	}
	return &RSICeiling{max: max}, nil
}

func (c *RSICeiling) Name() string { return "rsi_ceiling" }

func (c *RSICeiling) Passes(ctx context.Context, snap MarketView) bool {
	cur := snap.Series().Current()
	if cur == nil || cur.Indicators.RSI == nil {
		return false
	}
	return *cur.Indicators.RSI < c.max
}

// StochRSICross passes when the stochastic RSI %K line crossed above %D
// between the previous candle and the current one.
type StochRSICross struct{}

func NewStochRSICross() *StochRSICross { return &StochRSICross{} }

func (c *StochRSICross) Name() string { return "stoch_rsi_cross" }

func (c *StochRSICross) Passes(ctx context.Context, snap MarketView) bool {
	series := snap.Series()
	if len(series) < 2 {
		return false
	}
	cur, prev := series[len(series)-1].Indicators, series[len(series)-2].Indicators
	if cur.StochRSIK == nil || cur.StochRSID == nil || prev.StochRSIK == nil || prev.StochRSID == nil {
		return false
	}
	return *prev.StochRSIK <= *prev.StochRSID && *cur.StochRSIK > *cur.StochRSID
}

// MACDTrend passes when the MACD histogram is positive and grew since
// the previous candle.
type MACDTrend struct{}

func NewMACDTrend() *MACDTrend { return &MACDTrend{} }

func (c *MACDTrend) Name() string { return "macd_trend" }

func (c *MACDTrend) Passes(ctx context.Context, snap MarketView) bool {
	series := snap.Series()
	if len(series) < 2 {
		return false
	}
	cur := series[len(series)-1].Indicators.MACDHistogram()
	prev := series[len(series)-2].Indicators.MACDHistogram()
	if cur == nil || prev == nil {
		return false
	}
	return *cur > 0 && *cur > *prev
}

// BidAskGapCeiling rejects symbols whose spread is wide enough to eat
// the expected gain.
type BidAskGapCeiling struct {
	maxPercent float64
}

func NewBidAskGapCeiling(maxPercent float64) (*BidAskGapCeiling, error) {
	if maxPercent <= 0 {
		return nil, fmt.Errorf("bid ask gap ceiling: threshold must be positive, got %v", maxPercent)
	}
	return &BidAskGapCeiling{maxPercent: maxPercent}, nil
}

func (c *BidAskGapCeiling) Name() string { return "bid_ask_gap_ceiling" }

func (c *BidAskGapCeiling) Passes(ctx context.Context, snap MarketView) bool {
	book := snap.Book()
	if book == nil {
		return false
	}
	gap, ok := book.BidAskGapPercent()
	return ok && gap <= c.maxPercent
}

// FallwaySupportFloor passes when selling the probe volume into the book
// would move the price down by no more than the configured percent, i.e.
// the bid side is thick enough to hold.
type FallwaySupportFloor struct {
	probeVolume    float64
	maxDropPercent float64
}

func NewFallwaySupportFloor(probeVolume, maxDropPercent float64) (*FallwaySupportFloor, error) {
	if probeVolume <= 0 {
		return nil, fmt.Errorf("fallway support floor: probe volume must be positive, got %v", probeVolume)
	}
	if maxDropPercent <= 0 {
		return nil, fmt.Errorf("fallway support floor: max drop must be positive, got %v", maxDropPercent)
	}
	return &FallwaySupportFloor{probeVolume: probeVolume, maxDropPercent: maxDropPercent}, nil
}

func (c *FallwaySupportFloor) Name() string { return "fallway_support_floor" }

func (c *FallwaySupportFloor) Passes(ctx context.Context, snap MarketView) bool {
	book := snap.Book()
	if book == nil {
		return false
	}
	fallway, ok := book.FallwayPercent(c.probeVolume)
	return ok && fallway <= c.maxDropPercent
}

// RunwayFallwayRatio passes when the probe volume has proportionally
// more room to push the price up than down.
type RunwayFallwayRatio struct {
	probeVolume float64
	minRatio    float64
}

func NewRunwayFallwayRatio(probeVolume, minRatio float64) (*RunwayFallwayRatio, error) {
	if probeVolume <= 0 {
		return nil, fmt.Errorf("runway fallway ratio: probe volume must be positive, got %v", probeVolume)
	}
	if minRatio <= 0 {
		return nil, fmt.Errorf("runway fallway ratio: threshold must be positive, got %v", minRatio)
	}
	return &RunwayFallwayRatio{probeVolume: probeVolume, minRatio: minRatio}, nil
}

func (c *RunwayFallwayRatio) Name() string { return "runway_fallway_ratio" }

func (c *RunwayFallwayRatio) Passes(ctx context.Context, snap MarketView) bool {
	book := snap.Book()
	if book == nil {
		return false
	}
	runway, ok := book.RunwayPercent(c.probeVolume)
	if !ok {
		return false
	}
	fallway, ok := book.FallwayPercent(c.probeVolume)
	if !ok || fallway <= 0 {
		return false
	}
	return runway/fallway >= c.minRatio
}

// Cooldown blocks re-entry on a symbol until enough time has passed
// since its last trade closed. The lookup is injected because trade
// history lives with the session, not the strategy.
type Cooldown struct {
	minInterval time.Duration
	lastEnd     func(symbol string) (time.Time, bool)
	now         func() time.Time
}

func NewCooldown(minInterval time.Duration, lastEnd func(symbol string) (time.Time, bool)) (*Cooldown, error) {
	if minInterval <= 0 {
		return nil, fmt.Errorf("cooldown: interval must be positive, got %v", minInterval)
	}
	if lastEnd == nil {
		return nil, fmt.Errorf("cooldown: last trade lookup is required")
	}
	return &Cooldown{minInterval: minInterval, lastEnd: lastEnd, now: time.Now}, nil
}

func (c *Cooldown) Name() string { return "cooldown" }

func (c *Cooldown) Passes(ctx context.Context, snap MarketView) bool {
	end, ok := c.lastEnd(snap.Symbol())
	if !ok {
		return true
	}
	return c.now().Sub(end) >= c.minInterval
}
