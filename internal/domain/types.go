package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Money is an amount in minor currency units (paise).
type Money int64

// User is the authenticated identity attached to a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session is the server-issued proof of authentication.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	User         *User     `json:"user,omitempty"`
}

// Valid reports whether the session carries both an access token and a user identity.
func (s *Session) Valid() bool {
	if s == nil {
		return false
	}
	return strings.TrimSpace(s.AccessToken) != "" && s.User != nil && strings.TrimSpace(s.User.ID) != ""
}

// UserID returns the session user identifier or an empty string.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// Expired reports whether the session expiry lies at or before now. Sessions without expiry never expire.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !s.ExpiresAt.After(now)
}

// Role distinguishes storefront customers from administrators.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Address is a postal address. Profiles store the street only; orders carry the full form.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Profile is the application-level customer record.
type Profile struct {
	ID                     string   `json:"id"`
	FirstName              string   `json:"first_name"`
	LastName               string   `json:"last_name"`
	Email                  string   `json:"email"`
	Phone                  string   `json:"phone"`
	DefaultShippingAddress *Address `json:"default_shipping_address"`
	Role                   Role     `json:"role"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// DisplayName joins first and last names.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ProductID identifies a product. Snapshots written by older clients encode it as a number.
type ProductID string

// UnmarshalJSON accepts both string and numeric identifiers.
func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("domain: invalid product id %s: %w", string(data), err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("domain: invalid product id %s: %w", string(data), err)
	}
	*id = ProductID(n.String())
	return nil
}

// Variant is an optional product variant selected in the cart.
type Variant struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PriceAdjustment Money  `json:"price_adjustment"`
}

// Product is a catalogue entry as presented to shoppers.
type Product struct {
	ID          ProductID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       Money     `json:"price"`
	Images      []string  `json:"images,omitempty"`
	Image       string    `json:"image,omitempty"`
	Features    []string  `json:"features,omitempty"`
	Badge       string    `json:"badge,omitempty"`
	Category    string    `json:"category,omitempty"`
}

// CartItem is a product line with its quantity.
type CartItem struct {
	ProductID ProductID `json:"id"`
	Name      string    `json:"name,omitempty"`
	Image     string    `json:"image,omitempty"`
	UnitPrice Money     `json:"price"`
	Quantity  int       `json:"quantity"`
	Variant   *Variant  `json:"variant,omitempty"`
}

// LineTotal returns unit price times quantity.
func (i CartItem) LineTotal() Money {
	return i.UnitPrice * Money(i.Quantity)
}

// Cart holds the shopper's selected items. Total always equals the sum of line totals.
type Cart struct {
	Items []CartItem `json:"items"`
	Total Money      `json:"total"`
}

// Empty reports whether the cart has no items.
func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

// ItemCount returns the summed quantity over all lines.
func (c Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	out := Cart{Total: c.Total}
	if c.Items != nil {
		out.Items = make([]CartItem, len(c.Items))
		for i, item := range c.Items {
			if item.Variant != nil {
				variant := *item.Variant
				item.Variant = &variant
			}
			out.Items[i] = item
		}
	}
	return out
}

// CartSnapshot is the remote copy of a user's cart.
type CartSnapshot struct {
	UserID       string
	Cart         Cart
	LastActivity time.Time
}

// OrderStatus enumerates backend-owned order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentMethod enumerates supported checkout payment options.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentOnline         PaymentMethod = "online"
)

// PaymentStatus enumerates payment progress states.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// ShippingAddress is the delivery address captured at checkout.
type ShippingAddress struct {
	FullName     string `json:"fullName"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Phone        string `json:"phone"`
}

// OrderSummary breaks down the amounts charged for an order.
type OrderSummary struct {
	Subtotal     Money
	ShippingCost Money
	Tax          Money
	Total        Money
}

// OrderItem mirrors a cart line at the time of checkout.
type OrderItem struct {
	ProductID ProductID
	VariantID string
	Quantity  int
	UnitPrice Money
	Subtotal  Money
}

// OrderCustomer is the contact snapshot joined onto an order read.
type OrderCustomer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Order is written once at checkout and only read afterwards.
type Order struct {
	ID              string
	ClientReference string
	CustomerID      string
	Status          OrderStatus
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	ShippingAddress ShippingAddress
	Items           []OrderItem
	Summary         OrderSummary
	Customer        *OrderCustomer
	CreatedAt       time.Time
}

// CustomerSummary is the admin dashboard projection of a customer.
type CustomerSummary struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	CreatedAt time.Time
}

// ProductSummary is the admin dashboard projection of a product.
type ProductSummary struct {
	ID       ProductID
	Name     string
	IsActive bool
}
