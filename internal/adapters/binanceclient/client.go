package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"moonalarm/internal/domain"
	"moonalarm/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"
)

// Client implements ports.ExchangeClient against the Binance spot API.
type Client struct {
	spot   *binance.Client
	logger ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance spot client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty, only public endpoints will work")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{spot: client, logger: cfg.Logger}, nil
}

// handleError translates Binance API errors into the standardized ports
// errors so callers can branch with errors.Is.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Invalid signature
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1112, -1115, -1116, -1117, -1118, -1120, -1121, -1125, -1127, -1128, -1130: // Parameter/request format errors
			mappedErr = ports.ErrInvalidRequest
		case -1013: // Filter failure (lot size, price filter, min notional)
			mappedErr = ports.ErrConstraintViolation
		case -2010: // New order rejected (includes insufficient balance on spot)
			if strings.Contains(strings.ToLower(apiErr.Message), "insufficient balance") {
				mappedErr = ports.ErrInsufficientFunds
			} else {
				mappedErr = ports.ErrOrderPlacementFailed
			}
		case -2011: // Cancel order rejected
			mappedErr = ports.ErrOrderCancelFailed
		case -2013: // Order does not exist
			mappedErr = ports.ErrOrderNotFound
		case -2014, -2015: // API key format invalid / invalid key, IP or permissions
			mappedErr = ports.ErrInvalidAPIKeys
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// SetServerTime synchronizes the client's time offset with the exchange.
func (c *Client) SetServerTime(ctx context.Context) error {
	op := "SetServerTime"
	_, err := c.spot.NewSetServerTimeService().Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetServerTime retrieves the current server time from the exchange.
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	op := "GetServerTime"
	serverTimeMs, err := c.spot.NewServerTimeService().Do(ctx)
	if err != nil {
		return time.Time{}, c.handleError(ctx, err, op)
	}
	return time.UnixMilli(serverTimeMs), nil
}

// GetTradablePairs lists the symbols currently trading against the given
// quote asset with spot trading enabled.
func (c *Client) GetTradablePairs(ctx context.Context, quoteAsset string) ([]string, error) {
	op := "GetTradablePairs"
	info, err := c.spot.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	var pairs []string
	for _, s := range info.Symbols {
		if s.QuoteAsset != quoteAsset || s.Status != "TRADING" || !s.IsSpotTradingAllowed {
			continue
		}
		pairs = append(pairs, s.Symbol)
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"quoteAsset": quoteAsset, "pairs": len(pairs)})
	return pairs, nil
}

// Get24hQuoteVolume retrieves the rolling 24 hour quote-asset volume for
// a symbol.
func (c *Client) Get24hQuoteVolume(ctx context.Context, symbol string) (float64, error) {
	op := "Get24hQuoteVolume"
	stats, err := c.spot.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(stats) == 0 {
		return 0, c.handleError(ctx, fmt.Errorf("no ticker data returned for symbol %s", symbol), op)
	}

	volume, err := strconv.ParseFloat(stats[0].QuoteVolume, 64)
	if err != nil {
		parseErr := fmt.Errorf("could not parse quote volume '%s': %w", stats[0].QuoteVolume, err)
		return 0, c.handleError(ctx, parseErr, op)
	}
	return volume, nil
}

// GetCandles retrieves the most recent candles for the symbol.
func (c *Client) GetCandles(ctx context.Context, symbol, interval string, limit int) (domain.CandleSeries, error) {
	op := "GetCandles"
	klines, err := c.spot.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	return c.translateKlines(ctx, op, klines, symbol, interval)
}

// GetCandlesRange fetches all candles between start and end, paging
// through the API limit. Used by the archive fetcher, not the session.
func (c *Client) GetCandlesRange(ctx context.Context, symbol, interval string, start, end time.Time) (domain.CandleSeries, error) {
	op := "GetCandlesRange"
	const maxLimit = 1000
	var all domain.CandleSeries
	from := start

	for {
		klines, err := c.spot.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		page, err := c.translateKlines(ctx, op, klines, symbol, interval)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime)
		if from.After(end) || len(klines) < maxLimit {
			break
		}
	}
	return all, nil
}

func (c *Client) translateKlines(ctx context.Context, op string, klines []*binance.Kline, symbol, interval string) (domain.CandleSeries, error) {
	series := make(domain.CandleSeries, 0, len(klines))
	now := time.Now()
	for _, k := range klines {
		candle, err := translateKline(k, symbol, interval, now)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
		}
		series = append(series, candle)
	}
	return series, nil
}

// GetOrderBook retrieves the order book for a symbol up to the given
// depth per side.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
	op := "GetOrderBook"
	res, err := c.spot.NewDepthService().Symbol(symbol).Limit(depth).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	book := &domain.OrderBook{Symbol: symbol}
	book.Bids = make([]domain.BookLevel, 0, len(res.Bids))
	for _, b := range res.Bids {
		level, err := translateBookLevel(b.Price, b.Quantity)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate bid level: %w", err), op)
		}
		book.Bids = append(book.Bids, level)
	}
	book.Asks = make([]domain.BookLevel, 0, len(res.Asks))
	for _, a := range res.Asks {
		level, err := translateBookLevel(a.Price, a.Quantity)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate ask level: %w", err), op)
		}
		book.Asks = append(book.Asks, level)
	}
	return book, nil
}

// GetSymbolFilters loads every symbol's lot size, price filter and
// minimum notional from the exchange info endpoint.
func (c *Client) GetSymbolFilters(ctx context.Context) ([]*domain.SymbolFilters, error) {
	op := "GetSymbolFilters"
	info, err := c.spot.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	filters := make([]*domain.SymbolFilters, 0, len(info.Symbols))
	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Status != "TRADING" {
			continue
		}
		f, err := translateSymbolFilters(s)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate filters for %s: %w", s.Symbol, err), op)
		}
		filters = append(filters, f)
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbols": len(filters)})
	return filters, nil
}

// PlaceOrder submits the draft limit order and mutates it with the
// exchange's response: order ID, status, executed amount and fills.
func (c *Client) PlaceOrder(ctx context.Context, order *domain.TradeOrder) error {
	op := "PlaceOrder"
	if order.IsPlaced() {
		return c.handleError(ctx, fmt.Errorf("order %s already placed", order.ClientOrderID), op)
	}

	svc := c.spot.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(binance.SideType(order.Side)).
		Type(binance.OrderType(order.Type)).
		TimeInForce(binance.TimeInForceType(order.TimeInForce)).
		Quantity(strconv.FormatFloat(order.Amount, 'f', -1, 64)).
		Price(strconv.FormatFloat(order.Price, 'f', -1, 64)).
		NewClientOrderID(order.ClientOrderID).
		NewOrderRespType(binance.NewOrderRespTypeFULL)
	if order.IsIceberg() {
		svc = svc.IcebergQuantity(strconv.FormatFloat(order.VisibleAmount, 'f', -1, 64))
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}

	order.ExchangeOrderID = res.OrderID
	order.Status = domain.OrderStatus(res.Status)
	if executed, err := strconv.ParseFloat(res.ExecutedQuantity, 64); err == nil {
		order.FilledAmount = executed
	}
	order.Fills = translateFills(res.Fills)

	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":  order.Symbol,
		"side":    string(order.Side),
		"price":   order.Price,
		"amount":  order.Amount,
		"orderID": order.ExchangeOrderID,
		"status":  string(order.Status),
	})
	return nil
}

// GetOrderStatus polls the order and refreshes its status and filled
// amount in place. Finalized orders are left untouched.
func (c *Client) GetOrderStatus(ctx context.Context, order *domain.TradeOrder) error {
	op := "GetOrderStatus"
	if !order.IsPlaced() || order.IsFinalized() {
		return nil
	}

	res, err := c.spot.NewGetOrderService().
		Symbol(order.Symbol).
		OrigClientOrderID(order.ClientOrderID).
		Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}

	order.Status = domain.OrderStatus(res.Status)
	if executed, err := strconv.ParseFloat(res.ExecutedQuantity, 64); err == nil {
		order.FilledAmount = executed
	}
	return nil
}

// CancelOrder cancels an open order and records the terminal status.
func (c *Client) CancelOrder(ctx context.Context, order *domain.TradeOrder) error {
	op := "CancelOrder"
	res, err := c.spot.NewCancelOrderService().
		Symbol(order.Symbol).
		OrigClientOrderID(order.ClientOrderID).
		Do(ctx)
	if err != nil {
		// An order that filled or expired between the status poll and
		// the cancel is already terminal; refresh instead of failing.
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == -2013 {
			return c.GetOrderStatus(ctx, order)
		}
		return c.handleError(ctx, err, op)
	}

	order.Status = domain.OrderStatus(res.Status)
	if executed, err := strconv.ParseFloat(res.ExecutedQuantity, 64); err == nil {
		order.FilledAmount = executed
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":  order.Symbol,
		"orderID": order.ExchangeOrderID,
		"status":  string(order.Status),
	})
	return nil
}

// GetBalance retrieves the free balance for an asset.
func (c *Client) GetBalance(ctx context.Context, asset string) (float64, error) {
	op := "GetBalance"
	account, err := c.spot.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}

	for _, bal := range account.Balances {
		if bal.Asset != asset {
			continue
		}
		free, err := strconv.ParseFloat(bal.Free, 64)
		if err != nil {
			parseErr := fmt.Errorf("could not parse balance '%s' for asset %s: %w", bal.Free, asset, err)
			return 0, c.handleError(ctx, parseErr, op)
		}
		return free, nil
	}
	return 0, c.handleError(ctx, fmt.Errorf("asset %s not found in account", asset), op)
}

// --- Translation Helpers ---

func translateKline(k *binance.Kline, symbol, interval string, now time.Time) (*domain.Candle, error) {
	if k == nil {
		return nil, errors.New("received nil kline")
	}
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", k.Low, err)
	}
	cls, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", k.Close, err)
	}
	vol, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", k.Volume, err)
	}
	quoteVol, err := strconv.ParseFloat(k.QuoteAssetVolume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing quote volume '%s': %w", k.QuoteAssetVolume, err)
	}

	closeTime := time.UnixMilli(k.CloseTime)
	return &domain.Candle{
		Symbol:      symbol,
		Interval:    interval,
		OpenTime:    time.UnixMilli(k.OpenTime),
		CloseTime:   closeTime,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       cls,
		Volume:      vol,
		QuoteVolume: quoteVol,
		TradeCount:  k.TradeNum,
		IsFinal:     closeTime.Before(now),
	}, nil
}

func translateBookLevel(price, quantity string) (domain.BookLevel, error) {
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return domain.BookLevel{}, fmt.Errorf("parsing level price '%s': %w", price, err)
	}
	q, err := strconv.ParseFloat(quantity, 64)
	if err != nil {
		return domain.BookLevel{}, fmt.Errorf("parsing level quantity '%s': %w", quantity, err)
	}
	return domain.BookLevel{Price: p, Quantity: q}, nil
}

func translateSymbolFilters(s *binance.Symbol) (*domain.SymbolFilters, error) {
	f := &domain.SymbolFilters{
		Symbol:     s.Symbol,
		BaseAsset:  s.BaseAsset,
		QuoteAsset: s.QuoteAsset,
	}

	if lot := s.LotSizeFilter(); lot != nil {
		var err error
		if f.MinQuantity, err = strconv.ParseFloat(lot.MinQuantity, 64); err != nil {
			return nil, fmt.Errorf("parsing min quantity '%s': %w", lot.MinQuantity, err)
		}
		if f.MaxQuantity, err = strconv.ParseFloat(lot.MaxQuantity, 64); err != nil {
			return nil, fmt.Errorf("parsing max quantity '%s': %w", lot.MaxQuantity, err)
		}
		if f.StepSize, err = strconv.ParseFloat(lot.StepSize, 64); err != nil {
			return nil, fmt.Errorf("parsing step size '%s': %w", lot.StepSize, err)
		}
	}
	if price := s.PriceFilter(); price != nil {
		var err error
		if f.MinPrice, err = strconv.ParseFloat(price.MinPrice, 64); err != nil {
			return nil, fmt.Errorf("parsing min price '%s': %w", price.MinPrice, err)
		}
		if f.MaxPrice, err = strconv.ParseFloat(price.MaxPrice, 64); err != nil {
			return nil, fmt.Errorf("parsing max price '%s': %w", price.MaxPrice, err)
		}
		if f.TickSize, err = strconv.ParseFloat(price.TickSize, 64); err != nil {
			return nil, fmt.Errorf("parsing tick size '%s': %w", price.TickSize, err)
		}
	}
	if notional := s.MinNotionalFilter(); notional != nil {
		var err error
		if f.MinNotional, err = strconv.ParseFloat(notional.MinNotional, 64); err != nil {
			return nil, fmt.Errorf("parsing min notional '%s': %w", notional.MinNotional, err)
		}
	} else if notional := s.NotionalFilter(); notional != nil {
		var err error
		if f.MinNotional, err = strconv.ParseFloat(notional.MinNotional, 64); err != nil {
			return nil, fmt.Errorf("parsing min notional '%s': %w", notional.MinNotional, err)
		}
	}
	return f, nil
}

func translateFills(fills []*binance.Fill) []domain.Fill {
	out := make([]domain.Fill, 0, len(fills))
	for _, f := range fills {
		price, _ := strconv.ParseFloat(f.Price, 64)
		qty, _ := strconv.ParseFloat(f.Quantity, 64)
		fee, _ := strconv.ParseFloat(f.Commission, 64)
		out = append(out, domain.Fill{
			Price:    price,
			Quantity: qty,
			Fee:      fee,
			FeeAsset: f.CommissionAsset,
		})
	}
	return out
}
