package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"moonalarm/internal/domain"
	"moonalarm/internal/market"
	"moonalarm/internal/ports"
	"moonalarm/internal/strategy"
)

// TradeStatus is the trade lifecycle state.
type TradeStatus string

const (
	TradeDraft    TradeStatus = "DRAFT"
	TradeEntering TradeStatus = "ENTERING"
	TradeEntered  TradeStatus = "ENTERED"
	TradeExiting  TradeStatus = "EXITING"
	TradeComplete TradeStatus = "COMPLETE"
)

// TradeConfig configures one trade on one symbol.
type TradeConfig struct {
	// QuoteBudget is how much quote asset the trade may spend entering.
	QuoteBudget float64
	// FeePercent is the expected exchange fee per side, in percent.
	FeePercent float64
	// Paper simulates fills at top-of-book instead of placing orders.
	Paper bool

	MonitorInterval time.Duration
	MaxDriftPercent float64
	RetryDelay      time.Duration

	Exchange ports.ExchangeClient
	Logger   ports.Logger
	Snapshot *market.Snapshot
	Filters  *domain.SymbolFilters

	// ExitCriteria is this trade's private copy; stateful criteria track
	// this trade only.
	ExitCriteria []strategy.ExitCriterion

	// Running gates entry on the session still accepting trades.
	Running func() bool
	// OnComplete is called once when the trade reaches its terminal
	// state, after the end time is fixed.
	OnComplete func(t *Trade)
}

// Trade owns one buy order manager and, once exiting, one sell order
// manager. Its monitor goroutine is the only writer; everything readers
// need is mirrored under the mutex after each tick, so the managers
// themselves stay single-threaded.
type Trade struct {
	cfg    TradeConfig
	symbol string

	mu            sync.RWMutex
	status        TradeStatus
	enterPrice    float64 // target at entry; superseded by actual fills
	exitPrice     float64
	amount        float64
	startTime     time.Time
	endTime       time.Time
	exitRequested bool

	buy  *OrderManager
	sell *OrderManager

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

func NewTrade(cfg TradeConfig) (*Trade, error) {
	if cfg.Exchange == nil || cfg.Logger == nil || cfg.Snapshot == nil || cfg.Filters == nil {
		return nil, fmt.Errorf("trade: exchange, logger, snapshot and filters are required")
	}
	if cfg.QuoteBudget <= 0 {
		return nil, fmt.Errorf("trade: quote budget must be positive, got %v", cfg.QuoteBudget)
	}
	if cfg.FeePercent < 0 {
		return nil, fmt.Errorf("trade: fee percent must not be negative, got %v", cfg.FeePercent)
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 2 * time.Second
	}
	return &Trade{
		cfg:    cfg,
		symbol: cfg.Snapshot.Symbol(),
		status: TradeDraft,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

func (t *Trade) Symbol() string { return t.symbol }

func (t *Trade) Status() TradeStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// IsOpen reports whether the trade still needs managing.
func (t *Trade) IsOpen() bool {
	return t.Status() != TradeComplete
}

func (t *Trade) Book() *domain.OrderBook { return t.cfg.Snapshot.Book() }

func (t *Trade) StartTime() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.startTime
}

func (t *Trade) EndTime() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.endTime
}

// EnterPrice is the average buy fill price, or the entry target while
// no fills have landed yet.
func (t *Trade) EnterPrice() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enterPriceLocked()
}

func (t *Trade) enterPriceLocked() float64 {
	if t.buy != nil {
		if price, ok := t.buy.AvgFillPrice(); ok {
			return price
		}
	}
	return t.enterPrice
}

// ExitPrice is the average sell fill price, or the exit target until
// sells land. Zero before the trade starts exiting.
func (t *Trade) ExitPrice() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.exitPriceLocked()
}

func (t *Trade) exitPriceLocked() float64 {
	if t.sell != nil {
		if price, ok := t.sell.AvgFillPrice(); ok {
			return price
		}
	}
	return t.exitPrice
}

// Amount is the base-asset amount the trade targets.
func (t *Trade) Amount() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.amount
}

// ProfitPercent is the expected gain as a percent of the enter price.
// While the trade is open the reference price is the live best ask;
// once complete it is the realized exit price. The expected fee is
// charged against the reference price.
func (t *Trade) ProfitPercent() (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	enter := t.enterPriceLocked()
	if enter <= 0 {
		return 0, false
	}

	var ref float64
	if t.status == TradeComplete {
		ref = t.exitPriceLocked()
	} else {
		book := t.cfg.Snapshot.Book()
		if book == nil {
			return 0, false
		}
		ask, ok := book.FirstAsk()
		if !ok {
			return 0, false
		}
		ref = ask
	}
	if ref <= 0 {
		return 0, false
	}

	profit := ref - enter - t.cfg.FeePercent/100*ref
	return profit / enter * 100, true
}

// Enter opens the trade at the current best bid. In paper mode the
// position is assumed filled immediately; live, a buy order manager is
// created and started. Either way the monitor loop begins.
func (t *Trade) Enter(ctx context.Context) error {
	if t.cfg.Running != nil && !t.cfg.Running() {
		return fmt.Errorf("enter %s: session is not accepting trades", t.symbol)
	}
	if t.Status() != TradeDraft {
		return fmt.Errorf("enter %s: trade already %s", t.symbol, t.Status())
	}

	book := t.cfg.Snapshot.Book()
	if book == nil {
		return fmt.Errorf("enter %s: no order book", t.symbol)
	}
	bid, ok := book.TopBid()
	if !ok {
		return fmt.Errorf("enter %s: order book has no bids", t.symbol)
	}

	// Quantization clamps up to the minimum lot, which can size the
	// order past what the budget pays for; that is a refusal, not a
	// bigger position.
	amount := t.cfg.Filters.NearestValidQuantity(t.cfg.QuoteBudget / bid)
	if amount <= 0 || amount*bid > t.cfg.QuoteBudget || !t.cfg.Filters.MeetsNotional(bid, amount) {
		return fmt.Errorf("enter %s: budget %v cannot fund a valid order at %v: %w",
			t.symbol, t.cfg.QuoteBudget, bid, ports.ErrConstraintViolation)
	}

	t.mu.Lock()
	t.enterPrice = bid
	t.amount = amount
	t.startTime = time.Now()
	if t.cfg.Paper {
		t.status = TradeEntered
	} else {
		t.status = TradeEntering
	}
	t.mu.Unlock()

	if !t.cfg.Paper {
		buy, err := NewOrderManager(OrderManagerConfig{
			Side:            domain.Buy,
			TargetAmount:    amount,
			MaxDriftPercent: t.cfg.MaxDriftPercent,
			RetryDelay:      t.cfg.RetryDelay,
			Exchange:        t.cfg.Exchange,
			Logger:          t.cfg.Logger,
			Snapshot:        t.cfg.Snapshot,
			Filters:         t.cfg.Filters,
		})
		if err != nil {
			return fmt.Errorf("enter %s: %w", t.symbol, err)
		}
		t.mu.Lock()
		t.buy = buy
		t.mu.Unlock()
		if err := buy.Start(ctx); err != nil {
			return fmt.Errorf("enter %s: %w", t.symbol, err)
		}
	}

	t.cfg.Logger.Info(ctx, "trade entered", map[string]interface{}{
		"symbol": t.symbol,
		"price":  bid,
		"amount": amount,
		"paper":  t.cfg.Paper,
	})
	go t.monitor()
	return nil
}

// RequestExit asks the monitor to close the position on its next tick,
// bypassing the exit criteria. Safe to call from any goroutine; the
// request latches until the trade completes, so a failed cancel simply
// retries on the following tick.
func (t *Trade) RequestExit() {
	t.mu.Lock()
	t.exitRequested = true
	t.mu.Unlock()
}

// shouldExit folds the latched exit request ahead of the criteria.
func (t *Trade) shouldExit(ctx context.Context) (bool, string) {
	t.mu.RLock()
	requested := t.exitRequested
	t.mu.RUnlock()
	if requested {
		return true, "requested"
	}
	return strategy.EvaluateExit(ctx, t.cfg.ExitCriteria, t)
}

// monitor drives the trade through its lifecycle on the configured
// interval until it completes. It is the sole writer of trade state.
func (t *Trade) monitor() {
	defer close(t.doneCh)
	ticker := time.NewTicker(t.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.tick(context.Background())
		}
	}
}

func (t *Trade) tick(ctx context.Context) {
	if err := t.cfg.Snapshot.Refresh(ctx); err != nil {
		t.cfg.Logger.Warn(ctx, "trade snapshot refresh failed", map[string]interface{}{
			"symbol": t.symbol,
			"error":  err.Error(),
		})
		// Fall through; the managers work off the previous book.
	}

	switch t.Status() {
	case TradeEntering:
		if exit, name := t.shouldExit(ctx); exit {
			t.cfg.Logger.Info(ctx, "abandoning entry", map[string]interface{}{
				"symbol":    t.symbol,
				"criterion": name,
			})
			t.exit(ctx)
			return
		}
		if err := t.buy.Update(ctx); err != nil {
			t.cfg.Logger.Warn(ctx, "buy manager update failed", map[string]interface{}{
				"symbol": t.symbol,
				"error":  err.Error(),
			})
			return
		}
		if t.buy.IsComplete() {
			// The raw fill amount decides this, not the quantized one:
			// quantization clamps zero up to the minimum lot.
			if t.buy.FilledAmount() <= 0 {
				// Nothing bought, nothing to sell.
				t.complete(ctx)
				return
			}
			t.mu.Lock()
			t.status = TradeEntered
			t.mu.Unlock()
		}
	case TradeEntered:
		if exit, name := t.shouldExit(ctx); exit {
			t.cfg.Logger.Info(ctx, "exit criterion passed", map[string]interface{}{
				"symbol":    t.symbol,
				"criterion": name,
			})
			t.exit(ctx)
		}
	case TradeExiting:
		if err := t.sell.Update(ctx); err != nil {
			t.cfg.Logger.Warn(ctx, "sell manager update failed", map[string]interface{}{
				"symbol": t.symbol,
				"error":  err.Error(),
			})
			return
		}
		if t.sell.IsComplete() {
			t.complete(ctx)
		}
	}
}

// exit closes the position: cancels any still-open buy order, then
// sells whatever was bought. In paper mode the exit fills immediately
// at the target price.
func (t *Trade) exit(ctx context.Context) {
	book := t.cfg.Snapshot.Book()
	var target float64
	if book != nil {
		if ask, ok := book.FirstAsk(); ok {
			target = ask
		}
	}
	if target == 0 {
		if price, ok := t.cfg.Snapshot.CurrentPrice(); ok {
			target = price
		}
	}
	t.mu.Lock()
	t.exitPrice = target
	t.mu.Unlock()

	if t.cfg.Paper {
		t.complete(ctx)
		return
	}

	if t.buy != nil && !t.buy.IsComplete() {
		if err := t.buy.CancelOpen(ctx); err != nil {
			t.cfg.Logger.Warn(ctx, "buy cancel failed, retrying next cycle", map[string]interface{}{
				"symbol": t.symbol,
				"error":  err.Error(),
			})
			return
		}
	}

	filled := t.buy.FilledAmount()
	if filled <= 0 {
		t.complete(ctx)
		return
	}
	remaining := t.cfg.Filters.NearestValidQuantity(filled)
	if remaining <= 0 || remaining > filled {
		// A fill below one lot cannot be sold back; write the dust off
		// rather than place a sell for stock never bought.
		t.cfg.Logger.Warn(ctx, "fill below the minimum lot, writing it off", map[string]interface{}{
			"symbol": t.symbol,
			"filled": filled,
		})
		t.complete(ctx)
		return
	}

	sell, err := NewOrderManager(OrderManagerConfig{
		Side:            domain.Sell,
		TargetAmount:    remaining,
		MaxDriftPercent: t.cfg.MaxDriftPercent,
		RetryDelay:      t.cfg.RetryDelay,
		Exchange:        t.cfg.Exchange,
		Logger:          t.cfg.Logger,
		Snapshot:        t.cfg.Snapshot,
		Filters:         t.cfg.Filters,
	})
	if err != nil {
		t.cfg.Logger.Error(ctx, err, "sell manager creation failed", map[string]interface{}{"symbol": t.symbol})
		return
	}
	t.mu.Lock()
	t.sell = sell
	t.status = TradeExiting
	t.mu.Unlock()
	if err := sell.Start(ctx); err != nil {
		t.cfg.Logger.Warn(ctx, "sell placement failed, manager will retry", map[string]interface{}{
			"symbol": t.symbol,
			"error":  err.Error(),
		})
	}
}

func (t *Trade) complete(ctx context.Context) {
	t.mu.Lock()
	t.status = TradeComplete
	t.endTime = time.Now()
	t.mu.Unlock()
	t.stopOnce.Do(func() { close(t.stopCh) })

	profit, _ := t.ProfitPercent()
	t.cfg.Logger.Info(ctx, "trade complete", map[string]interface{}{
		"symbol":         t.symbol,
		"enter_price":    t.EnterPrice(),
		"exit_price":     t.ExitPrice(),
		"profit_percent": profit,
	})
	if t.cfg.OnComplete != nil {
		t.cfg.OnComplete(t)
	}
}

// Wait blocks until the monitor goroutine has stopped. Meant for
// graceful shutdown and tests.
func (t *Trade) Wait() {
	<-t.doneCh
}
