package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"moonalarm/internal/domain"
	"moonalarm/internal/ports"
)

// MarketView is the read surface enter criteria evaluate against,
// satisfied by *market.Snapshot.
type MarketView interface {
	Symbol() string
	Series() domain.CandleSeries
	Book() *domain.OrderBook
	CurrentPrice() (float64, bool)
	VolumeRatio() (float64, bool)
	TradesRatio() (float64, bool)
	PriceRatio() (float64, bool)
}

// EnterCriterion is one rule voting on whether a symbol is worth entering.
// All configured criteria must pass for an entry.
type EnterCriterion interface {
	Name() string
	Passes(ctx context.Context, snap MarketView) bool
}

// ExitCriterion is one rule voting on whether an open trade should close.
// A single passing criterion is enough for an exit. Criteria may carry
// per-trade state (a trailing stop's high-water mark), so every trade
// works on its own Clone of the configured list.
type ExitCriterion interface {
	Name() string
	ShouldExit(ctx context.Context, tr TradeView) bool
	Clone() ExitCriterion
}

// TradeView is the read surface exit criteria evaluate against.
type TradeView interface {
	Symbol() string
	Book() *domain.OrderBook
	EnterPrice() float64
	ProfitPercent() (float64, bool)
	StartTime() time.Time
}

// Config tunes the engine itself; criterion thresholds live on the
// individual criteria.
type Config struct {
	// ConfirmationDelay is how long all enter criteria must hold
	// continuously before an entry is allowed. Zero enters on the
	// first passing evaluation.
	ConfirmationDelay time.Duration
}

// Engine folds enter criteria conjunctively with a per-symbol
// confirmation delay. The first-passed timestamps are the only state
// shared across evaluation cycles and are guarded here.
type Engine struct {
	cfg    Config
	logger ports.Logger
	enter  []EnterCriterion
	exit   []ExitCriterion

	mu          sync.Mutex
	firstPassed map[string]time.Time

	now func() time.Time
}

func New(cfg Config, logger ports.Logger, enter []EnterCriterion, exit []ExitCriterion) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("strategy engine: logger is required")
	}
	if cfg.ConfirmationDelay < 0 {
		return nil, fmt.Errorf("strategy engine: confirmation delay must not be negative, got %v", cfg.ConfirmationDelay)
	}
	return &Engine{
		cfg:         cfg,
		logger:      logger,
		enter:       enter,
		exit:        exit,
		firstPassed: make(map[string]time.Time),
		now:         time.Now,
	}, nil
}

// ShouldEnter reports whether every enter criterion passes for the
// snapshot and has done so continuously for at least the confirmation
// delay. A single failing criterion clears the symbol's first-passed
// timestamp, so a flickering signal restarts the delay from zero.
func (e *Engine) ShouldEnter(ctx context.Context, snap MarketView) bool {
	symbol := snap.Symbol()
	for _, c := range e.enter {
		if !c.Passes(ctx, snap) {
			e.mu.Lock()
			delete(e.firstPassed, symbol)
			e.mu.Unlock()
			e.logger.Debug(ctx, "enter criterion failed", map[string]interface{}{
				"symbol":    symbol,
				"criterion": c.Name(),
			})
			return false
		}
	}

	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	first, ok := e.firstPassed[symbol]
	if !ok {
		first = now
		e.firstPassed[symbol] = now
	}
	if now.Sub(first) < e.cfg.ConfirmationDelay {
		e.logger.Debug(ctx, "entry awaiting confirmation", map[string]interface{}{
			"symbol":    symbol,
			"passed_at": first,
			"remaining": (e.cfg.ConfirmationDelay - now.Sub(first)).String(),
		})
		return false
	}
	delete(e.firstPassed, symbol)
	return true
}

// ResetSymbol clears the confirmation timer for a symbol, e.g. when a
// trade on it just closed.
func (e *Engine) ResetSymbol(symbol string) {
	e.mu.Lock()
	delete(e.firstPassed, symbol)
	e.mu.Unlock()
}

// ExitCriteria returns a fresh clone of the configured exit criteria
// for a new trade to own.
func (e *Engine) ExitCriteria() []ExitCriterion {
	out := make([]ExitCriterion, 0, len(e.exit))
	for _, c := range e.exit {
		out = append(out, c.Clone())
	}
	return out
}

// EvaluateExit folds a trade's exit criteria disjunctively and returns
// the name of the first criterion demanding an exit. An empty list
// never exits.
func EvaluateExit(ctx context.Context, criteria []ExitCriterion, tr TradeView) (bool, string) {
	for _, c := range criteria {
		if c.ShouldExit(ctx, tr) {
			return true, c.Name()
		}
	}
	return false, ""
}
