package ports

import (
	"context"
	"time"

	"moonalarm/internal/domain"
)

// ExchangeClient is the gateway the core trades through. Implementations own
// request signing, rate-limit backoff, and response decoding; the core only
// sees domain types. Every call blocks on network I/O and honors the
// context.
//
// PlaceOrder, CancelOrder, and GetOrderStatus mutate the passed TradeOrder
// from the gateway response; nothing else in the system writes to a placed
// order.
type ExchangeClient interface {
	// SetServerTime synchronizes the client's clock offset with the
	// exchange. Called at startup and periodically by the session.
	SetServerTime(ctx context.Context) error

	// GetServerTime retrieves the exchange's current time.
	GetServerTime(ctx context.Context) (time.Time, error)

	// GetTradablePairs lists the symbols currently trading against the
	// given quote asset.
	GetTradablePairs(ctx context.Context, quoteAsset string) ([]string, error)

	// Get24hQuoteVolume returns the rolling 24-hour quote-asset volume for
	// a symbol.
	Get24hQuoteVolume(ctx context.Context, symbol string) (float64, error)

	// GetCandles retrieves the most recent candles for a symbol/interval,
	// oldest first. The last candle is the in-progress bucket.
	GetCandles(ctx context.Context, symbol, interval string, limit int) (domain.CandleSeries, error)

	// GetOrderBook retrieves a depth snapshot for a symbol.
	GetOrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error)

	// GetSymbolFilters loads the exchange's trading filters for every
	// symbol. Loaded once and cached by the session; re-synced only on an
	// explicit refresh.
	GetSymbolFilters(ctx context.Context) ([]*domain.SymbolFilters, error)

	// PlaceOrder submits the order and updates it with the exchange's
	// response (order ID, status, fills).
	PlaceOrder(ctx context.Context, order *domain.TradeOrder) error

	// CancelOrder cancels an open order and updates its status.
	CancelOrder(ctx context.Context, order *domain.TradeOrder) error

	// GetOrderStatus refreshes the order's status and filled amount.
	GetOrderStatus(ctx context.Context, order *domain.TradeOrder) error

	// GetBalance retrieves the free balance for an asset.
	GetBalance(ctx context.Context, asset string) (float64, error)
}
