package strategy

import (
	"context"
	"fmt"
	"time"
)

// FixedProfit closes the trade once the realized gain reaches the
// target percent.
type FixedProfit struct {
	targetPercent float64
}

func NewFixedProfit(targetPercent float64) (*FixedProfit, error) {
	if targetPercent <= 0 {
		return nil, fmt.Errorf("fixed profit: target must be positive, got %v", targetPercent)
	}
	return &FixedProfit{targetPercent: targetPercent}, nil
}

func (c *FixedProfit) Name() string { return "fixed_profit" }

func (c *FixedProfit) ShouldExit(ctx context.Context, tr TradeView) bool {
	profit, ok := tr.ProfitPercent()
	return ok && profit >= c.targetPercent
}

func (c *FixedProfit) Clone() ExitCriterion {
	clone := *c
	return &clone
}

// FixedLoss cuts the trade once the loss exceeds the limit percent.
type FixedLoss struct {
	limitPercent float64
}

func NewFixedLoss(limitPercent float64) (*FixedLoss, error) {
	if limitPercent <= 0 {
		return nil, fmt.Errorf("fixed loss: limit must be positive, got %v", limitPercent)
	}
	return &FixedLoss{limitPercent: limitPercent}, nil
}

func (c *FixedLoss) Name() string { return "fixed_loss" }

func (c *FixedLoss) ShouldExit(ctx context.Context, tr TradeView) bool {
	profit, ok := tr.ProfitPercent()
	return ok && profit <= -c.limitPercent
}

func (c *FixedLoss) Clone() ExitCriterion {
	clone := *c
	return &clone
}

// TrailingStop arms once the gain reaches armPercent, then tracks the
// best gain seen and exits when the trade gives back more than
// giveBackPercent from that peak. The armed flag and peak are per-trade
// state, which is why trades work on clones.
type TrailingStop struct {
	armPercent      float64
	giveBackPercent float64

	armed bool
	peak  float64
}

func NewTrailingStop(armPercent, giveBackPercent float64) (*TrailingStop, error) {
	if armPercent <= 0 {
		return nil, fmt.Errorf("trailing stop: arm threshold must be positive, got %v", armPercent)
	}
	if giveBackPercent <= 0 {
		return nil, fmt.Errorf("trailing stop: give back must be positive, got %v", giveBackPercent)
	}
	return &TrailingStop{armPercent: armPercent, giveBackPercent: giveBackPercent}, nil
}

func (c *TrailingStop) Name() string { return "trailing_stop" }

func (c *TrailingStop) ShouldExit(ctx context.Context, tr TradeView) bool {
	profit, ok := tr.ProfitPercent()
	if !ok {
		return false
	}
	if !c.armed {
		if profit < c.armPercent {
			return false
		}
		c.armed = true
		c.peak = profit
		return false
	}
	if profit > c.peak {
		c.peak = profit
		return false
	}
	return c.peak-profit >= c.giveBackPercent
}

// Clone resets the armed state so a new trade starts from scratch.
func (c *TrailingStop) Clone() ExitCriterion {
	return &TrailingStop{armPercent: c.armPercent, giveBackPercent: c.giveBackPercent}
}

// TimeLimit bounds how long a trade may stay open, with a shorter leash
// for trades already in profit than for those underwater.
type TimeLimit struct {
	profitableAfter   time.Duration
	unprofitableAfter time.Duration

	now func() time.Time
}

func NewTimeLimit(profitableAfter, unprofitableAfter time.Duration) (*TimeLimit, error) {
	if profitableAfter <= 0 {
		return nil, fmt.Errorf("time limit: profitable limit must be positive, got %v", profitableAfter)
	}
	if unprofitableAfter <= 0 {
		return nil, fmt.Errorf("time limit: unprofitable limit must be positive, got %v", unprofitableAfter)
	}
	return &TimeLimit{profitableAfter: profitableAfter, unprofitableAfter: unprofitableAfter, now: time.Now}, nil
}

func (c *TimeLimit) Name() string { return "time_limit" }

func (c *TimeLimit) ShouldExit(ctx context.Context, tr TradeView) bool {
	age := c.now().Sub(tr.StartTime())
	profit, ok := tr.ProfitPercent()
	if ok && profit > 0 {
		return age >= c.profitableAfter
	}
	return age >= c.unprofitableAfter
}

func (c *TimeLimit) Clone() ExitCriterion {
	clone := *c
	return &clone
}
