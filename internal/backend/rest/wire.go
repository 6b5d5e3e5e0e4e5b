package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
)

// amount is money on the wire: a decimal rupee value.
type amount domain.Money

func (a amount) MarshalJSON() ([]byte, error) {
	m := int64(a)
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	return []byte(fmt.Sprintf("%s%d.%02d", sign, m/100, m%100)), nil
}

func (a *amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("rest: invalid amount %s: %w", string(data), err)
	}
	*a = amount(math.Round(f * 100))
	return nil
}

type customerRow struct {
	ID                     string          `json:"id"`
	FirstName              string          `json:"first_name"`
	LastName               string          `json:"last_name"`
	Email                  string          `json:"email"`
	Phone                  string          `json:"phone,omitempty"`
	DefaultShippingAddress *domain.Address `json:"default_shipping_address,omitempty"`
	Role                   domain.Role     `json:"role,omitempty"`
	CreatedAt              *time.Time      `json:"created_at,omitempty"`
}

func newCustomerRow(p domain.Profile) customerRow {
	return customerRow{
		ID:                     p.ID,
		FirstName:              p.FirstName,
		LastName:               p.LastName,
		Email:                  p.Email,
		Phone:                  p.Phone,
		DefaultShippingAddress: p.DefaultShippingAddress,
		Role:                   p.Role,
	}
}

func (r customerRow) profile() domain.Profile {
	role := r.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	return domain.Profile{
		ID:                     r.ID,
		FirstName:              r.FirstName,
		LastName:               r.LastName,
		Email:                  r.Email,
		Phone:                  r.Phone,
		DefaultShippingAddress: r.DefaultShippingAddress,
		Role:                   role,
	}
}

func (r customerRow) summary() domain.CustomerSummary {
	out := domain.CustomerSummary{ID: r.ID, FirstName: r.FirstName, LastName: r.LastName, Email: r.Email}
	if r.CreatedAt != nil {
		out.CreatedAt = r.CreatedAt.UTC()
	}
	return out
}

type snapshotRow struct {
	UserID       string          `json:"user_id"`
	CartData     json.RawMessage `json:"cart_data"`
	LastActivity time.Time       `json:"last_activity"`
}

// cartData is the user_sessions.cart_data document. Prices are rupees like
// every other amount on the wire.
type cartData struct {
	Items []cartDataItem `json:"items"`
	Total amount         `json:"total"`
}

type cartDataItem struct {
	ID       domain.ProductID `json:"id"`
	Name     string           `json:"name,omitempty"`
	Image    string           `json:"image,omitempty"`
	Price    amount           `json:"price"`
	Quantity int              `json:"quantity"`
	Variant  *cartDataVariant `json:"variant,omitempty"`
}

type cartDataVariant struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PriceAdjustment amount `json:"price_adjustment"`
}

func newCartData(c domain.Cart) cartData {
	out := cartData{Items: make([]cartDataItem, 0, len(c.Items)), Total: amount(c.Total)}
	for _, item := range c.Items {
		row := cartDataItem{
			ID:       item.ProductID,
			Name:     item.Name,
			Image:    item.Image,
			Price:    amount(item.UnitPrice),
			Quantity: item.Quantity,
		}
		if v := item.Variant; v != nil {
			row.Variant = &cartDataVariant{ID: v.ID, Name: v.Name, PriceAdjustment: amount(v.PriceAdjustment)}
		}
		out.Items = append(out.Items, row)
	}
	return out
}

func (d cartData) cart() domain.Cart {
	out := domain.Cart{Total: domain.Money(d.Total)}
	if len(d.Items) > 0 {
		out.Items = make([]domain.CartItem, 0, len(d.Items))
	}
	for _, row := range d.Items {
		item := domain.CartItem{
			ProductID: row.ID,
			Name:      row.Name,
			Image:     row.Image,
			UnitPrice: domain.Money(row.Price),
			Quantity:  row.Quantity,
		}
		if v := row.Variant; v != nil {
			item.Variant = &domain.Variant{ID: v.ID, Name: v.Name, PriceAdjustment: domain.Money(v.PriceAdjustment)}
		}
		out.Items = append(out.Items, item)
	}
	return out
}

type categoryRow struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// productRow reads both the product_listings view and the products table.
type productRow struct {
	ID           domain.ProductID `json:"id"`
	Name         string           `json:"name"`
	Description  *string          `json:"description"`
	BasePrice    amount           `json:"base_price"`
	SalePrice    *amount          `json:"sale_price"`
	IsOnSale     bool             `json:"is_on_sale"`
	IsActive     bool             `json:"is_active"`
	Images       []string         `json:"images"`
	Features     []string         `json:"features"`
	Badge        *string          `json:"badge"`
	CategoryName *string          `json:"category_name"`
	Categories   *categoryRow     `json:"categories"`
}

// product applies the sale price when the row is on sale.
func (r productRow) product() domain.Product {
	price := domain.Money(r.BasePrice)
	if r.IsOnSale && r.SalePrice != nil {
		price = domain.Money(*r.SalePrice)
	}
	out := domain.Product{
		ID:       r.ID,
		Name:     r.Name,
		Price:    price,
		Images:   r.Images,
		Features: r.Features,
	}
	if r.Description != nil {
		out.Description = *r.Description
	}
	if r.Badge != nil {
		out.Badge = *r.Badge
	}
	switch {
	case r.CategoryName != nil:
		out.Category = *r.CategoryName
	case r.Categories != nil:
		out.Category = r.Categories.Name
	}
	if len(r.Images) > 0 {
		out.Image = r.Images[0]
	}
	return out
}

type orderItemRow struct {
	OrderID   string           `json:"order_id,omitempty"`
	ProductID domain.ProductID `json:"product_id"`
	VariantID *string          `json:"variant_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice amount           `json:"unit_price"`
	Subtotal  amount           `json:"subtotal"`
}

func newOrderItemRow(orderID string, item domain.OrderItem) orderItemRow {
	row := orderItemRow{
		OrderID:   orderID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitPrice: amount(item.UnitPrice),
		Subtotal:  amount(item.Subtotal),
	}
	if item.VariantID != "" {
		variant := item.VariantID
		row.VariantID = &variant
	}
	return row
}

func (r orderItemRow) item() domain.OrderItem {
	out := domain.OrderItem{
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		UnitPrice: domain.Money(r.UnitPrice),
		Subtotal:  domain.Money(r.Subtotal),
	}
	if r.VariantID != nil {
		out.VariantID = *r.VariantID
	}
	return out
}

type orderRow struct {
	ID              string                 `json:"id,omitempty"`
	ClientReference string                 `json:"client_reference,omitempty"`
	CustomerID      string                 `json:"customer_id"`
	Status          domain.OrderStatus     `json:"status"`
	PaymentMethod   domain.PaymentMethod   `json:"payment_method"`
	PaymentStatus   domain.PaymentStatus   `json:"payment_status"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	Subtotal        amount                 `json:"subtotal"`
	ShippingCost    amount                 `json:"shipping_cost"`
	Tax             amount                 `json:"tax"`
	Total           amount                 `json:"total"`
	CreatedAt       *time.Time             `json:"created_at,omitempty"`
	OrderItems      []orderItemRow         `json:"order_items,omitempty"`
	Customers       *customerRow           `json:"customers,omitempty"`
}

func (r orderRow) order() domain.Order {
	out := domain.Order{
		ID:              r.ID,
		ClientReference: r.ClientReference,
		CustomerID:      r.CustomerID,
		Status:          r.Status,
		PaymentMethod:   r.PaymentMethod,
		PaymentStatus:   r.PaymentStatus,
		ShippingAddress: r.ShippingAddress,
		Summary: domain.OrderSummary{
			Subtotal:     domain.Money(r.Subtotal),
			ShippingCost: domain.Money(r.ShippingCost),
			Tax:          domain.Money(r.Tax),
			Total:        domain.Money(r.Total),
		},
	}
	if r.CreatedAt != nil {
		out.CreatedAt = r.CreatedAt.UTC()
	}
	for _, item := range r.OrderItems {
		out.Items = append(out.Items, item.item())
	}
	if r.Customers != nil {
		out.Customer = &domain.OrderCustomer{
			FirstName: r.Customers.FirstName,
			LastName:  r.Customers.LastName,
			Email:     r.Customers.Email,
			Phone:     r.Customers.Phone,
		}
	}
	return out
}
