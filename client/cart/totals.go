package cart

import (
	"math"

	statex "github.com/partassist/client-go/client/state"
)

const (
	// FreeShippingThreshold is inclusive: a subtotal of exactly 50.00
	// ships free.
	FreeShippingThreshold = 50.00
	FlatShippingRate      = 15.99
	TaxRate               = 0.085
)

// Totals are derived from the cart on every read and never stored. Values
// are exact float sums; rounding happens only at presentation via Rounded
// so repeated additions don't compound rounding error.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Compute returns the derived totals for c.
func Compute(c statex.CartSnapshot) Totals {
	var subtotal float64
	for _, ln := range c.Lines {
		subtotal += ln.Product.Price * float64(ln.Quantity)
	}

	shipping := FlatShippingRate
	if subtotal >= FreeShippingThreshold {
		shipping = 0
	}
	tax := subtotal * TaxRate

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal + shipping + tax,
	}
}

// Rounded returns a copy with every amount rounded to cents for display.
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal: round2(t.Subtotal),
		Shipping: round2(t.Shipping),
		Tax:      round2(t.Tax),
		Total:    round2(t.Total),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
