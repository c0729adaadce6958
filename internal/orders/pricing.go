package orders

import (
	"github.com/shopspring/decimal"
)

const (
	// TaxRateBasisPoints is the flat tax applied to the merchandise subtotal.
	TaxRateBasisPoints = 300
	// FreeShippingThresholdMinor is the subtotal at which shipping becomes free.
	FreeShippingThresholdMinor int64 = 100000
	// FlatShippingFeeMinor is charged below the free shipping threshold.
	FlatShippingFeeMinor int64 = 4000
)

// Totals holds the priced components of an order, all in minor units.
type Totals struct {
	SubtotalMinor    int64
	TaxMinor         int64
	ShippingFeeMinor int64
	TotalMinor       int64
}

// ComputeTotals prices an order from its subtotal. Tax is computed with decimal
// arithmetic and rounded half-up to the minor unit so repeated pricing of the
// same subtotal is stable.
func ComputeTotals(subtotalMinor int64) Totals {
	subtotal := decimal.NewFromInt(subtotalMinor)
	rate := decimal.NewFromInt(TaxRateBasisPoints).Div(decimal.NewFromInt(10000))
	tax := subtotal.Mul(rate).Round(0)

	shipping := FlatShippingFeeMinor
	if subtotalMinor >= FreeShippingThresholdMinor {
		shipping = 0
	}

	taxMinor := tax.IntPart()
	return Totals{
		SubtotalMinor:    subtotalMinor,
		TaxMinor:         taxMinor,
		ShippingFeeMinor: shipping,
		TotalMinor:       subtotalMinor + taxMinor + shipping,
	}
}
