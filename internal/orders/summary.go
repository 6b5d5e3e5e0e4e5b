// Package orders covers checkout, order reads, order history and the admin dashboard.
package orders

import "github.com/Ithachiuchiha/e-commers-site/internal/domain"

const (
	// FreeShippingAbove is the subtotal above which shipping is free (₹1000).
	FreeShippingAbove domain.Money = 100000
	// FlatShipping is charged at or below FreeShippingAbove (₹99).
	FlatShipping domain.Money = 9900
	// TaxPercent is the GST rate applied to the subtotal.
	TaxPercent = 18
)

// Summarize computes shipping, tax and total for a cart subtotal.
func Summarize(subtotal domain.Money) domain.OrderSummary {
	shipping := FlatShipping
	if subtotal > FreeShippingAbove {
		shipping = 0
	}
	if subtotal <= 0 {
		subtotal = 0
	}
	tax := (subtotal*TaxPercent + 50) / 100
	return domain.OrderSummary{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		Total:        subtotal + shipping + tax,
	}
}
