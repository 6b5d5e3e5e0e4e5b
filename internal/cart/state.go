// Package cart owns the shopper's cart: pure state transitions, the
// in-memory store mirrored to on-device storage, change notification and
// reconciliation with the remote snapshot kept per user.
package cart

import (
	"strings"

	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
)

// ItemFromProduct builds a cart line for product with the given quantity.
func ItemFromProduct(product domain.Product, quantity int) domain.CartItem {
	image := strings.TrimSpace(product.Image)
	if image == "" && len(product.Images) > 0 {
		image = product.Images[0]
	}
	return domain.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Image:     image,
		UnitPrice: product.Price,
		Quantity:  quantity,
	}
}

// Add places quantity units of product in the cart, merging with an existing line.
// Non-positive quantities count as one.
func Add(c domain.Cart, product domain.Product, quantity int) domain.Cart {
	if quantity <= 0 {
		quantity = 1
	}
	out := c.Clone()
	for i := range out.Items {
		if out.Items[i].ProductID == product.ID {
			out.Items[i].Quantity += quantity
			return withTotal(out)
		}
	}
	out.Items = append(out.Items, ItemFromProduct(product, quantity))
	return withTotal(out)
}

// Remove deletes the line for id. Unknown ids leave the cart unchanged.
func Remove(c domain.Cart, id domain.ProductID) domain.Cart {
	out := c.Clone()
	for i := range out.Items {
		if out.Items[i].ProductID == id {
			out.Items = append(out.Items[:i], out.Items[i+1:]...)
			return withTotal(out)
		}
	}
	return out
}

// UpdateQuantity sets the quantity for id, floored at one.
func UpdateQuantity(c domain.Cart, id domain.ProductID, quantity int) domain.Cart {
	if quantity < 1 {
		quantity = 1
	}
	out := c.Clone()
	for i := range out.Items {
		if out.Items[i].ProductID == id {
			out.Items[i].Quantity = quantity
			return withTotal(out)
		}
	}
	return out
}

// Decrease lowers the quantity for id by one without dropping below one.
func Decrease(c domain.Cart, id domain.ProductID) domain.Cart {
	for _, item := range c.Items {
		if item.ProductID == id {
			return UpdateQuantity(c, id, item.Quantity-1)
		}
	}
	return c.Clone()
}

// Clear returns an empty cart.
func Clear() domain.Cart {
	return domain.Cart{Items: []domain.CartItem{}}
}

// Normalize clamps quantities and recomputes the total, for carts read from storage.
func Normalize(c domain.Cart) domain.Cart {
	out := c.Clone()
	if out.Items == nil {
		out.Items = []domain.CartItem{}
	}
	for i := range out.Items {
		if out.Items[i].Quantity < 1 {
			out.Items[i].Quantity = 1
		}
	}
	return withTotal(out)
}

// Total sums the line totals of c.
func Total(c domain.Cart) domain.Money {
	var total domain.Money
	for _, item := range c.Items {
		total += item.LineTotal()
	}
	return total
}

func withTotal(c domain.Cart) domain.Cart {
	c.Total = Total(c)
	return c
}
