package booking

import "math"

// DefaultDiscountPercent is the uniform discount applied to every quote.
const DefaultDiscountPercent = 20.0

// Quote is the price shown to the user for a (vendor, duration) pair.
type Quote struct {
	Base       float64
	Discounted float64
	Discount   float64 // percent applied
}

// PriceQuote computes base and discounted prices, both rounded to two
// decimals. The same inputs always produce the same quote.
func PriceQuote(pricePerHour, hours, discountPercent float64) Quote {
	base := round2(pricePerHour * hours)
	discounted := round2(pricePerHour * hours * (1 - discountPercent/100))
	return Quote{Base: base, Discounted: discounted, Discount: discountPercent}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
