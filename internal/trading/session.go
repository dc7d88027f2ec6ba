package trading

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"moonalarm/internal/domain"
	"moonalarm/internal/market"
	"moonalarm/internal/ports"
	"moonalarm/internal/strategy"
	"moonalarm/internal/strategy/indicators"
)

// SessionConfig configures the orchestrator.
type SessionConfig struct {
	// QuoteAsset selects the market universe, e.g. "BTC" or "USDT".
	QuoteAsset string
	// MinQuoteVolume24h drops symbols trading less quote volume over the
	// last 24 hours.
	MinQuoteVolume24h float64
	// MaxOpenTrades caps how many trades run concurrently.
	MaxOpenTrades int

	TradeQuoteBudget float64
	FeePercent       float64
	Paper            bool

	RefreshInterval         time.Duration
	UniverseRefreshInterval time.Duration
	ClockSyncInterval       time.Duration
	MonitorInterval         time.Duration
	RetryDelay              time.Duration
	MaxDriftPercent         float64

	CandleInterval string
	CandleLimit    int
	DepthLimit     int
	Indicators     indicators.Config

	Exchange ports.ExchangeClient
	Logger   ports.Logger
	Engine   *strategy.Engine
}

// Session tracks the symbol universe, keeps one market snapshot per
// symbol fresh, and opens trades where the strategy engine agrees. All
// maps below are mutated only by the session's own loop; accessors hand
// out copies.
type Session struct {
	cfg SessionConfig

	mu           sync.RWMutex
	running      bool
	snapshots    map[string]*market.Snapshot
	filters      map[string]*domain.SymbolFilters
	ranked       []*market.Snapshot
	trades       map[string]*Trade
	completed    []*Trade
	lastTradeEnd map[string]time.Time
	quoteBalance float64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Exchange == nil || cfg.Logger == nil || cfg.Engine == nil {
		return nil, fmt.Errorf("session: exchange, logger and engine are required")
	}
	if cfg.QuoteAsset == "" {
		return nil, fmt.Errorf("session: quote asset is required")
	}
	if cfg.MaxOpenTrades <= 0 {
		return nil, fmt.Errorf("session: max open trades must be positive, got %d", cfg.MaxOpenTrades)
	}
	if cfg.TradeQuoteBudget <= 0 {
		return nil, fmt.Errorf("session: trade quote budget must be positive, got %v", cfg.TradeQuoteBudget)
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Second
	}
	if cfg.UniverseRefreshInterval <= 0 {
		cfg.UniverseRefreshInterval = 15 * time.Minute
	}
	if cfg.ClockSyncInterval <= 0 {
		cfg.ClockSyncInterval = time.Hour
	}
	return &Session{
		cfg:          cfg,
		snapshots:    make(map[string]*market.Snapshot),
		filters:      make(map[string]*domain.SymbolFilters),
		trades:       make(map[string]*Trade),
		lastTradeEnd: make(map[string]time.Time),
		stopCh:       make(chan struct{}),
	}, nil
}

// Start syncs the clock, loads exchange filters and the symbol
// universe, then launches the polling and clock-sync loops.
func (s *Session) Start(ctx context.Context) error {
	if err := s.cfg.Exchange.SetServerTime(ctx); err != nil {
		return fmt.Errorf("session start: clock sync: %w", err)
	}
	if err := s.loadFilters(ctx); err != nil {
		return fmt.Errorf("session start: %w", err)
	}
	if err := s.refreshUniverse(ctx); err != nil {
		return fmt.Errorf("session start: %w", err)
	}
	s.refreshBalance(ctx)

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.wg.Add(2)
	go s.run(ctx)
	go s.clockSync(ctx)

	s.cfg.Logger.Info(ctx, "session started", map[string]interface{}{
		"quote_asset": s.cfg.QuoteAsset,
		"symbols":     len(s.snapshots),
		"paper":       s.cfg.Paper,
	})
	return nil
}

// Stop halts the polling loops. Open trades are not cancelled; each
// keeps its own monitor until its lifecycle completes, so no order is
// left unmanaged.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()
	close(s.stopCh)
	s.wg.Wait()
}

// Drain blocks until every open trade has completed. Call after Stop
// for a full shutdown.
func (s *Session) Drain() {
	for _, t := range s.Trades() {
		t.Wait()
	}
}

func (s *Session) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Session) run(ctx context.Context) {
	defer s.wg.Done()
	poll := time.NewTicker(s.cfg.RefreshInterval)
	defer poll.Stop()
	universe := time.NewTicker(s.cfg.UniverseRefreshInterval)
	defer universe.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-universe.C:
			if err := s.refreshUniverse(ctx); err != nil {
				s.cfg.Logger.Warn(ctx, "universe refresh failed", map[string]interface{}{"error": err.Error()})
			}
		case <-poll.C:
			s.cycle(ctx)
		}
	}
}

func (s *Session) clockSync(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.ClockSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.cfg.Exchange.SetServerTime(ctx); err != nil {
				s.cfg.Logger.Warn(ctx, "clock sync failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// cycle fans a refresh out across all tracked snapshots, joins, ranks
// them by volume ratio and evaluates entries against the ranked list.
func (s *Session) cycle(ctx context.Context) {
	snapshots := s.snapshotList()

	var wg sync.WaitGroup
	for _, snap := range snapshots {
		// Symbols with an open trade refresh from their own monitor.
		if s.hasOpenTrade(snap.Symbol()) {
			continue
		}
		wg.Add(1)
		go func(snap *market.Snapshot) {
			defer wg.Done()
			if err := snap.Refresh(ctx); err != nil {
				s.cfg.Logger.Debug(ctx, "snapshot refresh failed", map[string]interface{}{
					"symbol": snap.Symbol(),
					"error":  err.Error(),
				})
			}
		}(snap)
	}
	wg.Wait()

	ranked := rankByVolumeRatio(snapshots)
	s.mu.Lock()
	s.ranked = ranked
	s.mu.Unlock()

	s.evaluateEntries(ctx, ranked)
}

// rankByVolumeRatio orders snapshots by volume ratio descending;
// snapshots without a ratio sink to the bottom.
func rankByVolumeRatio(snapshots []*market.Snapshot) []*market.Snapshot {
	ranked := make([]*market.Snapshot, len(snapshots))
	copy(ranked, snapshots)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, oki := ranked[i].VolumeRatio()
		rj, okj := ranked[j].VolumeRatio()
		if oki != okj {
			return oki
		}
		return ri > rj
	})
	return ranked
}

// evaluateEntries walks the ranked list opening trades until the cap is
// reached, skipping symbols that already have one.
func (s *Session) evaluateEntries(ctx context.Context, ranked []*market.Snapshot) {
	for _, snap := range ranked {
		if s.openTradeCount() >= s.cfg.MaxOpenTrades {
			return
		}
		symbol := snap.Symbol()
		if s.hasOpenTrade(symbol) {
			continue
		}
		if !s.cfg.Engine.ShouldEnter(ctx, snap) {
			continue
		}
		if err := s.openTrade(ctx, snap); err != nil {
			s.cfg.Logger.Warn(ctx, "trade entry failed", map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			})
			s.cfg.Engine.ResetSymbol(symbol)
		}
	}
}

func (s *Session) openTrade(ctx context.Context, snap *market.Snapshot) error {
	symbol := snap.Symbol()
	s.mu.RLock()
	filters := s.filters[symbol]
	s.mu.RUnlock()
	if filters == nil {
		return fmt.Errorf("open trade %s: %w", symbol, ports.ErrSymbolNotFound)
	}

	trade, err := NewTrade(TradeConfig{
		QuoteBudget:     s.cfg.TradeQuoteBudget,
		FeePercent:      s.cfg.FeePercent,
		Paper:           s.cfg.Paper,
		MonitorInterval: s.cfg.MonitorInterval,
		MaxDriftPercent: s.cfg.MaxDriftPercent,
		RetryDelay:      s.cfg.RetryDelay,
		Exchange:        s.cfg.Exchange,
		Logger:          s.cfg.Logger,
		Snapshot:        snap,
		Filters:         filters,
		ExitCriteria:    s.cfg.Engine.ExitCriteria(),
		Running:         s.IsRunning,
		OnComplete:      s.onTradeComplete,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if existing, ok := s.trades[symbol]; ok && existing.IsOpen() {
		s.mu.Unlock()
		return fmt.Errorf("open trade %s: a trade is already open", symbol)
	}
	s.trades[symbol] = trade
	s.mu.Unlock()

	if err := trade.Enter(ctx); err != nil {
		s.mu.Lock()
		delete(s.trades, symbol)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Session) onTradeComplete(t *Trade) {
	ctx := context.Background()
	s.mu.Lock()
	delete(s.trades, t.Symbol())
	s.completed = append(s.completed, t)
	s.lastTradeEnd[t.Symbol()] = t.EndTime()
	s.mu.Unlock()
	s.cfg.Engine.ResetSymbol(t.Symbol())
	s.refreshBalance(ctx)
}

// loadFilters caches the exchange's per-symbol filters; they change
// rarely enough that once per session is sufficient.
func (s *Session) loadFilters(ctx context.Context) error {
	filters, err := s.cfg.Exchange.GetSymbolFilters(ctx)
	if err != nil {
		return fmt.Errorf("load symbol filters: %w", err)
	}
	s.mu.Lock()
	for _, f := range filters {
		s.filters[f.Symbol] = f
	}
	s.mu.Unlock()
	return nil
}

// refreshUniverse rebuilds the tracked symbol set from the tradable
// pairs listing, keeping only symbols above the 24h volume floor.
// Symbols with an open trade are never dropped mid-trade.
func (s *Session) refreshUniverse(ctx context.Context) error {
	pairs, err := s.cfg.Exchange.GetTradablePairs(ctx, s.cfg.QuoteAsset)
	if err != nil {
		return fmt.Errorf("refresh universe: %w", err)
	}

	keep := make(map[string]bool, len(pairs))
	for _, symbol := range pairs {
		volume, err := s.cfg.Exchange.Get24hQuoteVolume(ctx, symbol)
		if err != nil {
			s.cfg.Logger.Debug(ctx, "24h volume lookup failed", map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			})
			continue
		}
		if volume < s.cfg.MinQuoteVolume24h {
			continue
		}
		keep[symbol] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for symbol := range keep {
		if _, ok := s.snapshots[symbol]; ok {
			continue
		}
		if s.filters[symbol] == nil {
			continue
		}
		snap, err := market.New(market.Config{
			Symbol:      symbol,
			Interval:    s.cfg.CandleInterval,
			CandleLimit: s.cfg.CandleLimit,
			DepthLimit:  s.cfg.DepthLimit,
			Exchange:    s.cfg.Exchange,
			Logger:      s.cfg.Logger,
			Indicators:  s.cfg.Indicators,
		})
		if err != nil {
			return fmt.Errorf("refresh universe: snapshot for %s: %w", symbol, err)
		}
		s.snapshots[symbol] = snap
	}
	for symbol := range s.snapshots {
		if keep[symbol] {
			continue
		}
		if t, ok := s.trades[symbol]; ok && t.IsOpen() {
			continue
		}
		delete(s.snapshots, symbol)
	}
	return nil
}

func (s *Session) refreshBalance(ctx context.Context) {
	balance, err := s.cfg.Exchange.GetBalance(ctx, s.cfg.QuoteAsset)
	if err != nil {
		s.cfg.Logger.Warn(ctx, "balance refresh failed", map[string]interface{}{"error": err.Error()})
		return
	}
	s.mu.Lock()
	s.quoteBalance = balance
	s.mu.Unlock()
}

func (s *Session) snapshotList() []*market.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*market.Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	return out
}

func (s *Session) hasOpenTrade(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trades[symbol]
	return ok && t.IsOpen()
}

func (s *Session) openTradeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, t := range s.trades {
		if t.IsOpen() {
			count++
		}
	}
	return count
}

// RankedSnapshots returns the last cycle's ranking, best first.
func (s *Session) RankedSnapshots() []*market.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*market.Snapshot, len(s.ranked))
	copy(out, s.ranked)
	return out
}

// Trades returns the currently open trades.
func (s *Session) Trades() []*Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Trade, 0, len(s.trades))
	for _, t := range s.trades {
		out = append(out, t)
	}
	return out
}

// CompletedTrades returns every trade finished this session.
func (s *Session) CompletedTrades() []*Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Trade, len(s.completed))
	copy(out, s.completed)
	return out
}

// QuoteBalance is the free quote-asset balance from the last refresh.
func (s *Session) QuoteBalance() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quoteBalance
}

// LastTradeEnd reports when the last trade on a symbol closed; the
// cooldown criterion keys off it.
func (s *Session) LastTradeEnd(symbol string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	end, ok := s.lastTradeEnd[symbol]
	return end, ok
}
