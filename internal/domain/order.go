package domain

import (
	"time"

	"github.com/google/uuid"
)

// Fill is one partial execution of an order.
type Fill struct {
	Price    float64
	Quantity float64
	Fee      float64
	FeeAsset string
}

// TradeOrder is one exchange order. It is created when placed and mutated
// only by gateway responses; once the status is terminal no further mutation
// happens.
type TradeOrder struct {
	Symbol          string
	ClientOrderID   string
	ExchangeOrderID int64
	Side            OrderSide
	Type            OrderType
	Price           float64 // zero for market orders
	Amount          float64 // amount ordered
	VisibleAmount   float64 // iceberg visible portion; zero means fully visible
	TimeInForce     TimeInForce
	Status          OrderStatus
	FilledAmount    float64
	Fills           []Fill
	StartTime       time.Time
	EndTime         time.Time
}

// NewLimitOrder builds an unplaced GTC limit order with a fresh client ID.
func NewLimitOrder(symbol string, side OrderSide, price, amount float64) *TradeOrder {
	return &TradeOrder{
		Symbol:        symbol,
		ClientOrderID: uuid.NewString(),
		Side:          side,
		Type:          OrderTypeLimit,
		Price:         price,
		Amount:        amount,
		TimeInForce:   GoodTilCanceled,
		Status:        OrderStatusDraft,
	}
}

// IsFinalized reports whether the order reached a terminal status.
func (o *TradeOrder) IsFinalized() bool {
	return o.Status.IsFinal()
}

// IsPlaced reports whether the order was accepted by the exchange.
func (o *TradeOrder) IsPlaced() bool {
	return o.Status != OrderStatusDraft
}

// IsIceberg reports whether only part of the order is visible on the book.
func (o *TradeOrder) IsIceberg() bool {
	return o.VisibleAmount > 0 && o.VisibleAmount < o.Amount
}

// AvgFillPrice is the quantity-weighted average price across fills. When the
// gateway reported a filled amount without individual fills (status polls),
// the limit price stands in.
func (o *TradeOrder) AvgFillPrice() (float64, bool) {
	var base, quote float64
	for _, f := range o.Fills {
		base += f.Quantity
		quote += f.Quantity * f.Price
	}
	if base > 0 {
		return quote / base, true
	}
	if o.FilledAmount > 0 && o.Price > 0 {
		return o.Price, true
	}
	return 0, false
}

// FeePaid sums the fees across fills in the given asset.
func (o *TradeOrder) FeePaid(asset string) float64 {
	var total float64
	for _, f := range o.Fills {
		if f.FeeAsset == asset {
			total += f.Fee
		}
	}
	return total
}
