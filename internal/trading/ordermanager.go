package trading

import (
	"context"
	"fmt"
	"time"

	"moonalarm/internal/domain"
	"moonalarm/internal/market"
	"moonalarm/internal/ports"
)

// ManagerStatus is the order manager lifecycle state.
type ManagerStatus string

const (
	ManagerDraft    ManagerStatus = "DRAFT"
	ManagerStarted  ManagerStatus = "STARTED"
	ManagerComplete ManagerStatus = "COMPLETE"
)

// OrderManagerConfig configures one side of a trade.
type OrderManagerConfig struct {
	Side         domain.OrderSide
	TargetAmount float64

	// MaxDriftPercent aborts the side when the best opposing price moves
	// this fraction away from the original target price.
	MaxDriftPercent float64
	// RetryDelay spaces out placement retries while the manager is still
	// in draft.
	RetryDelay time.Duration

	Exchange ports.ExchangeClient
	Logger   ports.Logger
	Snapshot *market.Snapshot
	Filters  *domain.SymbolFilters
}

// OrderManager works one side of a trade toward its target amount with
// limit orders: it places at top-of-book, aborts on adverse price drift,
// and cancel-and-replaces when deeper competition appears at its price.
// All methods are driven by the owning trade's monitor tick, never by a
// goroutine of the manager's own, so no locking happens here.
type OrderManager struct {
	cfg    OrderManagerConfig
	symbol string

	status      ManagerStatus
	targetPrice float64
	orders      []*domain.TradeOrder
	lastAttempt time.Time

	now func() time.Time
}

func NewOrderManager(cfg OrderManagerConfig) (*OrderManager, error) {
	if cfg.Exchange == nil || cfg.Logger == nil || cfg.Snapshot == nil || cfg.Filters == nil {
		return nil, fmt.Errorf("order manager: exchange, logger, snapshot and filters are required")
	}
	if cfg.Side != domain.Buy && cfg.Side != domain.Sell {
		return nil, fmt.Errorf("order manager: invalid side %q", cfg.Side)
	}
	if cfg.TargetAmount <= 0 {
		return nil, fmt.Errorf("order manager: target amount must be positive, got %v", cfg.TargetAmount)
	}
	if cfg.MaxDriftPercent <= 0 {
		return nil, fmt.Errorf("order manager: max drift must be positive, got %v", cfg.MaxDriftPercent)
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	return &OrderManager{
		cfg:    cfg,
		symbol: cfg.Snapshot.Symbol(),
		status: ManagerDraft,
		now:    time.Now,
	}, nil
}

func (m *OrderManager) Status() ManagerStatus { return m.status }

func (m *OrderManager) IsComplete() bool { return m.status == ManagerComplete }

// TargetPrice is the price the manager was started at; the drift guard
// measures against it.
func (m *OrderManager) TargetPrice() float64 { return m.targetPrice }

// FilledAmount sums fills across every order this manager placed,
// clamped so it never reports more than the target.
func (m *OrderManager) FilledAmount() float64 {
	var total float64
	for _, o := range m.orders {
		total += o.FilledAmount
	}
	if total > m.cfg.TargetAmount {
		total = m.cfg.TargetAmount
	}
	return total
}

// AvgFillPrice is the quantity-weighted fill price across all orders.
func (m *OrderManager) AvgFillPrice() (float64, bool) {
	var base, quote float64
	for _, o := range m.orders {
		price, ok := o.AvgFillPrice()
		if !ok {
			continue
		}
		base += o.FilledAmount
		quote += o.FilledAmount * price
	}
	if base == 0 {
		return 0, false
	}
	return quote / base, true
}

// FeePaid sums exchange fees across all orders in the given asset.
func (m *OrderManager) FeePaid(asset string) float64 {
	var total float64
	for _, o := range m.orders {
		total += o.FeePaid(asset)
	}
	return total
}

func (m *OrderManager) openOrder() *domain.TradeOrder {
	if len(m.orders) == 0 {
		return nil
	}
	last := m.orders[len(m.orders)-1]
	if last.IsFinalized() {
		return nil
	}
	return last
}

// Start fixes the target price at the current top-of-book and attempts
// the initial placement. A failed placement keeps the manager in draft;
// Update retries it on the configured delay.
func (m *OrderManager) Start(ctx context.Context) error {
	if m.status != ManagerDraft {
		return fmt.Errorf("order manager for %s: start from status %s", m.symbol, m.status)
	}
	book := m.cfg.Snapshot.Book()
	if book == nil {
		return fmt.Errorf("order manager for %s: no order book", m.symbol)
	}
	var price float64
	var ok bool
	if m.cfg.Side == domain.Buy {
		price, ok = book.TopBid()
	} else {
		price, ok = book.FirstAsk()
	}
	if !ok {
		return fmt.Errorf("order manager for %s: order book has no %s side", m.symbol, m.cfg.Side)
	}
	m.targetPrice = m.cfg.Filters.NearestValidPrice(price)

	if err := m.place(ctx, m.targetPrice); err != nil {
		m.cfg.Logger.Warn(ctx, "initial order placement failed, will retry", map[string]interface{}{
			"symbol": m.symbol,
			"side":   string(m.cfg.Side),
			"error":  err.Error(),
		})
		return nil
	}
	return nil
}

// place sends a limit order for whatever is still missing toward the
// target amount. Refuses placements the exchange filters would reject.
func (m *OrderManager) place(ctx context.Context, price float64) error {
	m.lastAttempt = m.now()

	remaining := m.cfg.TargetAmount - m.FilledAmount()
	qty := m.cfg.Filters.NearestValidQuantity(remaining)
	if qty <= 0 || qty > remaining {
		return fmt.Errorf("place %s %s: remaining %v below lot step: %w",
			m.cfg.Side, m.symbol, remaining, ports.ErrConstraintViolation)
	}
	if !m.cfg.Filters.MeetsNotional(price, qty) {
		return fmt.Errorf("place %s %s: notional %v below minimum %v: %w",
			m.cfg.Side, m.symbol, price*qty, m.cfg.Filters.MinNotional, ports.ErrConstraintViolation)
	}

	order := domain.NewLimitOrder(m.symbol, m.cfg.Side, price, qty)
	if visible := m.cfg.Filters.NearestValidQuantity(m.cfg.Filters.MinNotional / price); visible > 0 && visible < qty {
		order.VisibleAmount = visible
	}

	if err := m.cfg.Exchange.PlaceOrder(ctx, order); err != nil {
		return fmt.Errorf("place %s %s: %w", m.cfg.Side, m.symbol, err)
	}
	order.StartTime = m.now()
	m.orders = append(m.orders, order)
	m.status = ManagerStarted
	m.cfg.Logger.Info(ctx, "order placed", map[string]interface{}{
		"symbol":  m.symbol,
		"side":    string(m.cfg.Side),
		"price":   m.cfg.Filters.FormatPrice(price),
		"amount":  m.cfg.Filters.FormatQuantity(qty),
		"iceberg": order.IsIceberg(),
	})
	return nil
}

// Update runs one re-evaluation cycle. The owning trade calls it on its
// monitor tick until the manager completes.
func (m *OrderManager) Update(ctx context.Context) error {
	switch m.status {
	case ManagerComplete:
		return nil
	case ManagerDraft:
		if m.now().Sub(m.lastAttempt) < m.cfg.RetryDelay {
			return nil
		}
		return m.Start(ctx)
	}

	order := m.openOrder()
	if order == nil {
		m.complete(ctx)
		return nil
	}

	if err := m.cfg.Exchange.GetOrderStatus(ctx, order); err != nil {
		return fmt.Errorf("refresh %s order for %s: %w", m.cfg.Side, m.symbol, err)
	}
	if order.IsFinalized() {
		order.EndTime = m.now()
		m.complete(ctx)
		return nil
	}

	book := m.cfg.Snapshot.Book()
	if book == nil {
		return nil
	}

	if m.drifted(book) {
		m.cfg.Logger.Warn(ctx, "price drifted past limit, aborting side", map[string]interface{}{
			"symbol":       m.symbol,
			"side":         string(m.cfg.Side),
			"target_price": m.targetPrice,
		})
		if ok := m.cancel(ctx, order); ok {
			m.complete(ctx)
		}
		return nil
	}

	if m.outcompeted(book, order) {
		improved := m.improvedPrice(order.Price)
		m.cfg.Logger.Info(ctx, "competition at order price, replacing", map[string]interface{}{
			"symbol":    m.symbol,
			"side":      string(m.cfg.Side),
			"old_price": order.Price,
			"new_price": improved,
		})
		if ok := m.cancel(ctx, order); !ok {
			return nil
		}
		if err := m.place(ctx, improved); err != nil {
			// Remainder too small to re-order; whatever filled is all
			// this side will get.
			m.cfg.Logger.Warn(ctx, "replacement refused, completing side", map[string]interface{}{
				"symbol": m.symbol,
				"side":   string(m.cfg.Side),
				"error":  err.Error(),
			})
			m.complete(ctx)
		}
	}
	return nil
}

// drifted reports whether the best opposing price ran away from the
// original target beyond the configured fraction.
func (m *OrderManager) drifted(book *domain.OrderBook) bool {
	if m.cfg.Side == domain.Buy {
		ask, ok := book.FirstAsk()
		return ok && ask > m.targetPrice*(1+m.cfg.MaxDriftPercent)
	}
	bid, ok := book.TopBid()
	return ok && bid < m.targetPrice*(1-m.cfg.MaxDriftPercent)
}

// outcompeted reports whether the depth at-or-better than the order's
// own price exceeds the manager's target amount, meaning others would
// fill first.
func (m *OrderManager) outcompeted(book *domain.OrderBook, order *domain.TradeOrder) bool {
	var competing float64
	if m.cfg.Side == domain.Buy {
		competing = book.AmountAtOrAboveBid(order.Price)
	} else {
		competing = book.AmountAtOrBelowAsk(order.Price)
	}
	return competing > m.cfg.TargetAmount
}

// improvedPrice steps one tick more aggressive: up for buys, down for
// sells.
func (m *OrderManager) improvedPrice(price float64) float64 {
	tick := m.cfg.Filters.TickSize
	if m.cfg.Side == domain.Buy {
		return m.cfg.Filters.NearestValidPrice(price + tick)
	}
	return m.cfg.Filters.NearestValidPrice(price - tick)
}

// cancel requests cancellation; a failure is logged and retried on the
// next cycle rather than treated as fatal.
func (m *OrderManager) cancel(ctx context.Context, order *domain.TradeOrder) bool {
	if err := m.cfg.Exchange.CancelOrder(ctx, order); err != nil {
		m.cfg.Logger.Warn(ctx, "order cancel failed, will retry", map[string]interface{}{
			"symbol": m.symbol,
			"side":   string(m.cfg.Side),
			"error":  err.Error(),
		})
		return false
	}
	order.EndTime = m.now()
	return true
}

// CancelOpen cancels any order still working and completes the manager.
// The trade uses it when it abandons an entry.
func (m *OrderManager) CancelOpen(ctx context.Context) error {
	if m.status == ManagerComplete {
		return nil
	}
	order := m.openOrder()
	if order == nil {
		m.complete(ctx)
		return nil
	}
	if !m.cancel(ctx, order) {
		return fmt.Errorf("cancel open %s order for %s failed", m.cfg.Side, m.symbol)
	}
	m.complete(ctx)
	return nil
}

func (m *OrderManager) complete(ctx context.Context) {
	m.status = ManagerComplete
	m.cfg.Logger.Info(ctx, "order manager complete", map[string]interface{}{
		"symbol": m.symbol,
		"side":   string(m.cfg.Side),
		"filled": m.FilledAmount(),
		"target": m.cfg.TargetAmount,
	})
}
