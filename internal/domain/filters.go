package domain

import (
	"github.com/shopspring/decimal"
)

// SymbolFilters is the per-market filter set the exchange enforces on order
// placement: lot size for quantity, price filter for price, and the minimum
// notional value. Loaded once from the gateway and immutable afterwards.
type SymbolFilters struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string

	MinQuantity float64
	MaxQuantity float64
	StepSize    float64

	MinPrice float64
	MaxPrice float64
	TickSize float64

	MinNotional float64
}

// quantize truncates x toward zero onto a multiple of step, then clamps to
// [min, max]. Decimal arithmetic keeps the truncation exact; floating-point
// division would misplace values sitting right on a step boundary.
func quantize(x, step, min, max float64) float64 {
	if step > 0 {
		xd := decimal.NewFromFloat(x)
		sd := decimal.NewFromFloat(step)
		xd = xd.Sub(xd.Mod(sd))
		x, _ = xd.Float64()
	}
	if min > 0 && x < min {
		x = min
	}
	if max > 0 && x > max {
		x = max
	}
	return x
}

// NearestValidQuantity rounds a quantity down to the lot step and clamps it
// into the allowed range. Never rounds up past a step boundary.
func (f *SymbolFilters) NearestValidQuantity(q float64) float64 {
	return quantize(q, f.StepSize, f.MinQuantity, f.MaxQuantity)
}

// NearestValidPrice rounds a price down to the tick and clamps it into the
// allowed range.
func (f *SymbolFilters) NearestValidPrice(p float64) float64 {
	return quantize(p, f.TickSize, f.MinPrice, f.MaxPrice)
}

// MeetsNotional reports whether price*quantity clears the exchange's
// minimum notional value.
func (f *SymbolFilters) MeetsNotional(price, quantity float64) bool {
	return price*quantity >= f.MinNotional
}

// stepPlaces returns the number of decimal places in a step/tick size.
func stepPlaces(step float64) int32 {
	if step <= 0 {
		return 8
	}
	d := decimal.NewFromFloat(step)
	if d.Exponent() < 0 {
		return -d.Exponent()
	}
	return 0
}

// FormatQuantity renders a quantity with exactly the precision the lot step
// allows, as the exchange API expects.
func (f *SymbolFilters) FormatQuantity(q float64) string {
	return decimal.NewFromFloat(q).StringFixed(stepPlaces(f.StepSize))
}

// FormatPrice renders a price with exactly the precision the tick allows.
func (f *SymbolFilters) FormatPrice(p float64) string {
	return decimal.NewFromFloat(p).StringFixed(stepPlaces(f.TickSize))
}
