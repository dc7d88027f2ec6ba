package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testFilters() *SymbolFilters {
	return &SymbolFilters{
		Symbol:      "LTCBTC",
		BaseAsset:   "LTC",
		QuoteAsset:  "BTC",
		MinQuantity: 0.01,
		MaxQuantity: 1000,
		StepSize:    0.01,
		MinPrice:    0.0001,
		MaxPrice:    100,
		TickSize:    0.0001,
		MinNotional: 0.001,
	}
}

func TestSymbolFilters_NearestValidQuantity(t *testing.T) {
	f := testFilters()

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "truncates toward zero", in: 1.2345, want: 1.23},
		{name: "already valid", in: 2.5, want: 2.5},
		{name: "clamps to min", in: 0.001, want: 0.01},
		{name: "clamps to max", in: 5000, want: 1000},
		{name: "float artifact near boundary", in: 0.29999999999999993, want: 0.29},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.NearestValidQuantity(tt.in)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestSymbolFilters_Idempotent(t *testing.T) {
	f := testFilters()
	for _, in := range []float64{0.005, 0.3333, 1.2345, 99.999, 1234.5678} {
		once := f.NearestValidQuantity(in)
		twice := f.NearestValidQuantity(once)
		assert.InDelta(t, once, twice, 1e-12, "quantity quantization must be idempotent for %v", in)

		p1 := f.NearestValidPrice(in)
		p2 := f.NearestValidPrice(p1)
		assert.InDelta(t, p1, p2, 1e-12, "price quantization must be idempotent for %v", in)
	}
}

func TestSymbolFilters_ResultWithinBoundsAndOnStep(t *testing.T) {
	f := testFilters()
	for _, in := range []float64{0.001, 0.019, 0.5, 3.14159, 999.994, 2000} {
		q := f.NearestValidQuantity(in)
		assert.GreaterOrEqual(t, q, f.MinQuantity)
		assert.LessOrEqual(t, q, f.MaxQuantity)

		steps := q / f.StepSize
		assert.InDelta(t, math.Round(steps), steps, 1e-6, "quantity %v not on step", q)
	}
}

func TestSymbolFilters_MeetsNotional(t *testing.T) {
	f := testFilters()
	assert.True(t, f.MeetsNotional(0.01, 0.1))   // 0.001 exactly
	assert.True(t, f.MeetsNotional(0.02, 0.1))   // above
	assert.False(t, f.MeetsNotional(0.005, 0.1)) // below floor
}

func TestSymbolFilters_Format(t *testing.T) {
	f := testFilters()
	assert.Equal(t, "1.23", f.FormatQuantity(1.23))
	assert.Equal(t, "0.0105", f.FormatPrice(0.0105))
	assert.Equal(t, "2.00", f.FormatQuantity(2))
}
