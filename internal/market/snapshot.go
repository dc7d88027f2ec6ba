package market

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"moonalarm/internal/domain"
	"moonalarm/internal/ports"
	"moonalarm/internal/strategy/indicators"
)

const (
	// volumeAvgPeriods is the trailing window for volume and trade-count
	// averages; priceAvgPeriods for the average close price.
	volumeAvgPeriods = 15
	priceAvgPeriods  = 3
)

// Config holds everything a snapshot needs to refresh itself.
type Config struct {
	Symbol      string
	Interval    string
	CandleLimit int
	DepthLimit  int
	Exchange    ports.ExchangeClient
	Logger      ports.Logger
	Indicators  indicators.Config
}

// Snapshot composes one symbol's candle series and order book and exposes
// derived read-only metrics. It is created when the symbol enters the
// tracked universe, refreshed once per polling cycle by exactly one
// goroutine, and discarded when the symbol leaves the universe. Readers see
// the series and book as immutable values swapped wholesale on refresh.
type Snapshot struct {
	cfg Config

	mu          sync.RWMutex
	series      domain.CandleSeries
	book        *domain.OrderBook
	lastRefresh time.Time

	now func() time.Time
}

// New creates an empty snapshot for a symbol. The indicator configuration is
// validated here so a refresh can never hit a config refusal mid-session.
func New(cfg Config) (*Snapshot, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("snapshot requires a symbol")
	}
	if cfg.Exchange == nil {
		return nil, fmt.Errorf("snapshot requires an exchange client")
	}
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = 120
	}
	if cfg.DepthLimit <= 0 {
		cfg.DepthLimit = 100
	}
	if err := cfg.Indicators.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot indicator config: %w", err)
	}
	return &Snapshot{cfg: cfg, now: time.Now}, nil
}

// Symbol returns the market pair this snapshot tracks.
func (s *Snapshot) Symbol() string {
	return s.cfg.Symbol
}

// Refresh pulls fresh candles and a fresh order book through the gateway,
// runs the indicator passes, and swaps both in atomically. On any failure
// the previous state is kept untouched.
func (s *Snapshot) Refresh(ctx context.Context) error {
	candles, err := s.cfg.Exchange.GetCandles(ctx, s.cfg.Symbol, s.cfg.Interval, s.cfg.CandleLimit)
	if err != nil {
		return fmt.Errorf("refresh candles for %s: %w", s.cfg.Symbol, err)
	}
	if !candles.IsOrdered() {
		return fmt.Errorf("refresh candles for %s: series open times not strictly increasing", s.cfg.Symbol)
	}

	annotated, err := indicators.Annotate(ctx, s.cfg.Logger, candles, s.cfg.Indicators)
	if err != nil {
		return fmt.Errorf("refresh indicators for %s: %w", s.cfg.Symbol, err)
	}

	book, err := s.cfg.Exchange.GetOrderBook(ctx, s.cfg.Symbol, s.cfg.DepthLimit)
	if err != nil {
		return fmt.Errorf("refresh order book for %s: %w", s.cfg.Symbol, err)
	}

	s.mu.Lock()
	s.series = annotated
	s.book = book
	s.lastRefresh = s.now()
	s.mu.Unlock()
	return nil
}

// Series returns the current annotated candle series. The returned slice is
// replaced, never mutated, after publication.
func (s *Snapshot) Series() domain.CandleSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series
}

// Book returns the current order book snapshot.
func (s *Snapshot) Book() *domain.OrderBook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book
}

// LastRefresh returns when the snapshot last swapped in fresh data.
func (s *Snapshot) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

// CurrentPrice returns the close of the in-progress candle.
func (s *Snapshot) CurrentPrice() (float64, bool) {
	cur := s.Series().Current()
	if cur == nil {
		return 0, false
	}
	return cur.Close, true
}

// ProratedVolume compensates the in-progress bucket for the part of its
// interval that has not elapsed yet, using the trailing average as the
// stand-in for the remainder.
func (s *Snapshot) ProratedVolume() (float64, bool) {
	series := s.Series()
	cur := series.Current()
	if cur == nil {
		return 0, false
	}
	avg, ok := series.AverageVolume(volumeAvgPeriods)
	if !ok {
		return 0, false
	}
	elapsed := cur.ElapsedFraction(s.now())
	return cur.Volume + avg*(1-elapsed), true
}

// VolumeRatio is the prorated current-bucket volume against the trailing
// average, rounded to 2 decimals. Unavailable when the series is short or
// the trailing average is zero.
func (s *Snapshot) VolumeRatio() (float64, bool) {
	series := s.Series()
	avg, ok := series.AverageVolume(volumeAvgPeriods)
	if !ok || avg == 0 {
		return 0, false
	}
	prorated, ok := s.ProratedVolume()
	if !ok {
		return 0, false
	}
	return round(prorated/avg, 2), true
}

// TradesRatio is the trade-count analogue of VolumeRatio.
func (s *Snapshot) TradesRatio() (float64, bool) {
	series := s.Series()
	cur := series.Current()
	if cur == nil {
		return 0, false
	}
	avg, ok := series.AverageTradeCount(volumeAvgPeriods)
	if !ok || avg == 0 {
		return 0, false
	}
	elapsed := cur.ElapsedFraction(s.now())
	prorated := float64(cur.TradeCount) + avg*(1-elapsed)
	return round(prorated/avg, 2), true
}

// PriceRatio is the current close over the trailing average close, rounded
// to 3 decimals.
func (s *Snapshot) PriceRatio() (float64, bool) {
	series := s.Series()
	cur := series.Current()
	if cur == nil {
		return 0, false
	}
	avg, ok := series.AverageClose(priceAvgPeriods)
	if !ok || avg == 0 {
		return 0, false
	}
	return round(cur.Close/avg, 3), true
}

func round(x float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(x*pow) / pow
}
