package cli

import (
	"fmt"
	"strings"

	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/format"
	"github.com/Ithachiuchiha/e-commers-site/internal/orders"
)

type productView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	PricePaise int64  `json:"price_paise"`
	Category   string `json:"category,omitempty"`
	Badge      string `json:"badge,omitempty"`
}

type cartLineView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type cartView struct {
	Items      []cartLineView `json:"items"`
	ItemCount  int            `json:"item_count"`
	Total      string         `json:"total"`
	TotalPaise int64          `json:"total_paise"`
}

type summaryView struct {
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

type orderItemView struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type orderView struct {
	ID            string          `json:"id"`
	Reference     string          `json:"reference,omitempty"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	PlacedAt      string          `json:"placed_at,omitempty"`
	Customer      string          `json:"customer,omitempty"`
	ShipTo        []string        `json:"ship_to,omitempty"`
	Items         []orderItemView `json:"items,omitempty"`
	Summary       summaryView     `json:"summary"`
}

type accountView struct {
	SignedIn bool   `json:"signed_in"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"`
}

type customerView struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Joined string `json:"joined"`
}

type dashboardView struct {
	TotalOrders    int            `json:"total_orders"`
	TotalCustomers int            `json:"total_customers"`
	TotalProducts  int            `json:"total_products"`
	Orders         []orderView    `json:"orders"`
	Customers      []customerView `json:"customers"`
	Products       []productView  `json:"products"`
}

type viewer struct {
	lang string
}

func (v viewer) money(m domain.Money) string {
	return format.Currency(m, v.lang)
}

func (v viewer) products(products []domain.Product) []productView {
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, productView{
			ID:         string(p.ID),
			Name:       p.Name,
			Price:      v.money(p.Price),
			PricePaise: int64(p.Price),
			Category:   p.Category,
			Badge:      p.Badge,
		})
	}
	return out
}

func (v viewer) cart(c domain.Cart) cartView {
	out := cartView{
		Items:      make([]cartLineView, 0, len(c.Items)),
		ItemCount:  c.ItemCount(),
		Total:      v.money(c.Total),
		TotalPaise: int64(c.Total),
	}
	for _, item := range c.Items {
		out.Items = append(out.Items, cartLineView{
			ID:        string(item.ProductID),
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: v.money(item.UnitPrice),
			LineTotal: v.money(item.LineTotal()),
		})
	}
	return out
}

func (v viewer) summary(s domain.OrderSummary) summaryView {
	return summaryView{
		Subtotal: v.money(s.Subtotal),
		Shipping: v.money(s.ShippingCost),
		Tax:      v.money(s.Tax),
		Total:    v.money(s.Total),
	}
}

func (v viewer) order(o domain.Order) orderView {
	out := orderView{
		ID:            o.ID,
		Reference:     o.ClientReference,
		Status:        string(o.Status),
		PaymentMethod: paymentLabel(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		PlacedAt:      format.Date(o.CreatedAt, v.lang),
		Summary:       v.summary(o.Summary),
	}
	if o.Customer != nil {
		out.Customer = strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName)
	}
	if a := o.ShippingAddress; a.FullName != "" {
		out.ShipTo = []string{a.FullName, a.AddressLine1}
		if a.AddressLine2 != "" {
			out.ShipTo = append(out.ShipTo, a.AddressLine2)
		}
		out.ShipTo = append(out.ShipTo, fmt.Sprintf("%s, %s %s", a.City, a.State, a.PostalCode), a.Phone)
	}
	for _, item := range o.Items {
		out.Items = append(out.Items, orderItemView{
			ProductID: string(item.ProductID),
			Quantity:  item.Quantity,
			UnitPrice: v.money(item.UnitPrice),
			Subtotal:  v.money(item.Subtotal),
		})
	}
	return out
}

func (v viewer) account(user *domain.User, profile *domain.Profile) accountView {
	if user == nil {
		return accountView{}
	}
	out := accountView{SignedIn: true, Email: user.Email}
	if profile != nil {
		out.Name = profile.DisplayName()
		out.Phone = profile.Phone
		out.Role = string(profile.Role)
		if out.Email == "" {
			out.Email = profile.Email
		}
	}
	return out
}

func (v viewer) dashboard(d orders.DashboardData) dashboardView {
	out := dashboardView{
		TotalOrders:    d.Stats.TotalOrders,
		TotalCustomers: d.Stats.TotalCustomers,
		TotalProducts:  d.Stats.TotalProducts,
		Orders:         make([]orderView, 0, len(d.Orders)),
		Customers:      make([]customerView, 0, len(d.Customers)),
		Products:       make([]productView, 0, len(d.Products)),
	}
	for _, o := range d.Orders {
		out.Orders = append(out.Orders, v.order(o))
	}
	for _, c := range d.Customers {
		out.Customers = append(out.Customers, customerView{
			Name:   strings.TrimSpace(c.FirstName + " " + c.LastName),
			Email:  c.Email,
			Joined: format.Date(c.CreatedAt, v.lang),
		})
	}
	for _, p := range d.Products {
		status := "inactive"
		if p.IsActive {
			status = "active"
		}
		out.Products = append(out.Products, productView{ID: string(p.ID), Name: p.Name, Badge: status})
	}
	return out
}

func paymentLabel(method domain.PaymentMethod) string {
	switch method {
	case domain.PaymentCashOnDelivery:
		return "Cash on delivery"
	case domain.PaymentOnline:
		return "Online"
	}
	return string(method)
}

// text renderings

type textBuilder struct {
	strings.Builder
}

// line writes one formatted line without trailing padding.
func (b *textBuilder) line(layout string, args ...interface{}) {
	b.WriteString(strings.TrimRight(fmt.Sprintf(layout, args...), " "))
	b.WriteString("\n")
}

func productsText(products []productView) string {
	if len(products) == 0 {
		return "No products available."
	}
	var b textBuilder
	b.line("%-4s %-30s %10s  %s", "ID", "NAME", "PRICE", "CATEGORY")
	for _, p := range products {
		b.line("%-4s %-30s %10s  %s", p.ID, p.Name, p.Price, p.Category)
	}
	return b.String()
}

func cartText(c cartView) string {
	if len(c.Items) == 0 {
		return "Your cart is empty."
	}
	var b textBuilder
	b.line("Cart (%d items)", c.ItemCount)
	for _, item := range c.Items {
		b.line("  %-4s %-30s %3d x %10s %12s", item.ID, item.Name, item.Quantity, item.UnitPrice, item.LineTotal)
	}
	b.line("Total: %s", c.Total)
	return b.String()
}

func summaryText(b *textBuilder, s summaryView) {
	b.line("  %-10s %12s", "Subtotal", s.Subtotal)
	b.line("  %-10s %12s", "Shipping", s.Shipping)
	b.line("  %-10s %12s", "Tax", s.Tax)
	b.line("  %-10s %12s", "Total", s.Total)
}

func orderText(o orderView) string {
	var b textBuilder
	b.line("Order %s", o.ID)
	if o.Reference != "" {
		b.line("Reference: %s", o.Reference)
	}
	if o.PlacedAt != "" {
		b.line("Placed: %s", o.PlacedAt)
	}
	b.line("Status: %s", o.Status)
	b.line("Payment: %s (%s)", o.PaymentMethod, o.PaymentStatus)
	if o.Customer != "" {
		b.line("Customer: %s", o.Customer)
	}
	if len(o.ShipTo) > 0 {
		b.line("Ship to:")
		for _, l := range o.ShipTo {
			b.line("  %s", l)
		}
	}
	if len(o.Items) > 0 {
		b.line("Items:")
		for _, item := range o.Items {
			b.line("  %-4s %3d x %10s %12s", item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal)
		}
	}
	b.line("Summary:")
	summaryText(&b, o.Summary)
	return b.String()
}

func ordersText(list []orderView) string {
	if len(list) == 0 {
		return "You have no orders yet."
	}
	var b textBuilder
	b.line("%-10s %-14s %-10s %12s", "ORDER", "PLACED", "STATUS", "TOTAL")
	for _, o := range list {
		b.line("%-10s %-14s %-10s %12s", o.ID, o.PlacedAt, o.Status, o.Summary.Total)
	}
	return b.String()
}

func accountText(a accountView) string {
	if !a.SignedIn {
		return "Not signed in."
	}
	var b textBuilder
	if a.Name != "" {
		b.line("Signed in as %s <%s>", a.Name, a.Email)
	} else {
		b.line("Signed in as %s", a.Email)
	}
	if a.Role != "" {
		b.line("Role: %s", a.Role)
	}
	if a.Phone != "" {
		b.line("Phone: %s", a.Phone)
	}
	return b.String()
}

func dashboardText(d dashboardView) string {
	var b textBuilder
	b.line("Orders: %d  Customers: %d  Products: %d", d.TotalOrders, d.TotalCustomers, d.TotalProducts)
	b.line("")
	b.line("Recent orders")
	for _, o := range d.Orders {
		b.line("  %-10s %-20s %-10s %12s", o.ID, o.Customer, o.Status, o.Summary.Total)
	}
	b.line("Recent customers")
	for _, c := range d.Customers {
		b.line("  %-20s %-26s %s", c.Name, c.Email, c.Joined)
	}
	b.line("Recent products")
	for _, p := range d.Products {
		b.line("  %-4s %-30s %s", p.ID, p.Name, p.Badge)
	}
	return b.String()
}
