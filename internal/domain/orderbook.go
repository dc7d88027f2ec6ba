package domain

// BookLevel is a single price+quantity entry in an order book.
type BookLevel struct {
	Price    float64
	Quantity float64
}

// OrderBook is a full snapshot of one market's book: asks ascending by price,
// bids descending. It is replaced wholesale on each refresh, never patched,
// so all analytics below are read-only.
type OrderBook struct {
	Symbol string
	Bids   []BookLevel // descending price
	Asks   []BookLevel // ascending price
}

// TopBid returns the highest bid price.
func (b *OrderBook) TopBid() (float64, bool) {
	if b == nil || len(b.Bids) == 0 {
		return 0, false
	}
	return b.Bids[0].Price, true
}

// FirstAsk returns the lowest ask price.
func (b *OrderBook) FirstAsk() (float64, bool) {
	if b == nil || len(b.Asks) == 0 {
		return 0, false
	}
	return b.Asks[0].Price, true
}

// BidAskGapPercent returns the spread as a fraction of the first ask.
func (b *OrderBook) BidAskGapPercent() (float64, bool) {
	bid, okB := b.TopBid()
	ask, okA := b.FirstAsk()
	if !okB || !okA || ask == 0 {
		return 0, false
	}
	return (ask - bid) / ask, true
}

// EdgePrice walks one side of the book from best to worst, consuming level
// quantity until the requested volume is absorbed, and returns the price of
// the last level consumed. Buy walks the asks ("runway"), Sell walks the bids
// ("fallway"). Returns false when book depth cannot absorb the volume.
func (b *OrderBook) EdgePrice(volume float64, side OrderSide) (float64, bool) {
	if b == nil || volume <= 0 {
		return 0, false
	}
	levels := b.Asks
	if side == Sell {
		levels = b.Bids
	}
	remaining := volume
	for _, lvl := range levels {
		remaining -= lvl.Quantity
		if remaining <= 0 {
			return lvl.Price, true
		}
	}
	return 0, false
}

// RunwayPercent is the ask-side edge price expressed as a fractional move up
// from the first ask.
func (b *OrderBook) RunwayPercent(volume float64) (float64, bool) {
	edge, ok := b.EdgePrice(volume, Buy)
	if !ok {
		return 0, false
	}
	ask, okA := b.FirstAsk()
	if !okA || ask == 0 {
		return 0, false
	}
	return (edge - ask) / ask, true
}

// FallwayPercent is the bid-side edge price expressed as a fractional move
// down from the top bid.
func (b *OrderBook) FallwayPercent(volume float64) (float64, bool) {
	edge, ok := b.EdgePrice(volume, Sell)
	if !ok {
		return 0, false
	}
	bid, okB := b.TopBid()
	if !okB || bid == 0 {
		return 0, false
	}
	return (bid - edge) / bid, true
}

// AmountAtOrAboveBid sums bid quantity at or above the given price. Used to
// measure competition ahead of a resting buy order.
func (b *OrderBook) AmountAtOrAboveBid(price float64) float64 {
	if b == nil {
		return 0
	}
	var total float64
	for _, lvl := range b.Bids {
		if lvl.Price < price {
			break // bids are descending
		}
		total += lvl.Quantity
	}
	return total
}

// AmountAtOrBelowAsk sums ask quantity at or below the given price.
func (b *OrderBook) AmountAtOrBelowAsk(price float64) float64 {
	if b == nil {
		return 0
	}
	var total float64
	for _, lvl := range b.Asks {
		if lvl.Price > price {
			break // asks are ascending
		}
		total += lvl.Quantity
	}
	return total
}

// MarketPriceAvg returns the quantity-weighted average fill price of a
// market order spending the given quote-asset volume, taking a partial fill
// of the final level. Returns false when the book cannot satisfy the full
// requested volume.
func (b *OrderBook) MarketPriceAvg(quoteVolume float64, side OrderSide) (float64, bool) {
	if b == nil || quoteVolume <= 0 {
		return 0, false
	}
	levels := b.Asks
	if side == Sell {
		levels = b.Bids
	}
	remainingQuote := quoteVolume
	var baseFilled float64
	for _, lvl := range levels {
		if lvl.Price <= 0 {
			continue
		}
		levelQuote := lvl.Price * lvl.Quantity
		if levelQuote >= remainingQuote {
			baseFilled += remainingQuote / lvl.Price
			return quoteVolume / baseFilled, true
		}
		remainingQuote -= levelQuote
		baseFilled += lvl.Quantity
	}
	return 0, false
}
