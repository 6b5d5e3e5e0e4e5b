package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
)

const (
	opFindProfile      = "customers.find"
	opInsertProfile    = "customers.insert"
	opListCustomers    = "customers.list_recent"
	opUpsertSnapshot   = "user_sessions.upsert"
	opFindSnapshot     = "user_sessions.find"
	opListListings     = "product_listings.list"
	opListActive       = "products.list_active"
	opListProducts     = "products.list_recent"
	opInsertOrder      = "orders.insert"
	opInsertOrderItems = "order_items.insert"
	opFindOrder        = "orders.find"
	opListByCustomer   = "orders.list_by_customer"
	opListOrders       = "orders.list_recent"

	preferRepresentation = "return=representation"
	preferMinimal        = "return=minimal"
	preferMerge          = "resolution=merge-duplicates"

	orderItemColumns = "order_items(product_id,variant_id,quantity,unit_price,subtotal)"
	orderCustomer    = "customers(first_name,last_name,email,phone)"
)

func eq(value string) string {
	return "eq." + value
}

// Customers returns the customers table.
func (c *Client) Customers() backend.Customers { return customers{c} }

// CartSnapshots returns the user_sessions table.
func (c *Client) CartSnapshots() backend.CartSnapshots { return snapshots{c} }

// Catalog returns the product read surface.
func (c *Client) Catalog() backend.Catalog { return catalog{c} }

// Orders returns the orders and order_items tables.
func (c *Client) Orders() backend.Orders { return orders{c} }

type customers struct{ c *Client }

func (t customers) FindProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var rows []customerRow
	err := t.c.do(ctx, opFindProfile, request{
		method: http.MethodGet,
		path:   restPrefix + "customers",
		query:  url.Values{"select": {"*"}, "id": {eq(userID)}, "limit": {"1"}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	profile := rows[0].profile()
	return &profile, nil
}

func (t customers) InsertProfile(ctx context.Context, profile domain.Profile) error {
	return t.c.do(ctx, opInsertProfile, request{
		method: http.MethodPost,
		path:   restPrefix + "customers",
		body:   []customerRow{newCustomerRow(profile)},
		prefer: []string{preferMinimal},
	}, nil)
}

func (t customers) ListRecent(ctx context.Context, limit int) ([]domain.CustomerSummary, error) {
	query := url.Values{"select": {"id,first_name,last_name,email,created_at"}, "order": {"created_at.desc"}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var rows []customerRow
	if err := t.c.do(ctx, opListCustomers, request{method: http.MethodGet, path: restPrefix + "customers", query: query}, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.CustomerSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.summary())
	}
	return out, nil
}

type snapshots struct{ c *Client }

func (t snapshots) UpsertSnapshot(ctx context.Context, snapshot domain.CartSnapshot) error {
	data, err := json.Marshal(newCartData(snapshot.Cart))
	if err != nil {
		return backend.WrapError(opUpsertSnapshot, backend.KindInvalidInput, err)
	}
	return t.c.do(ctx, opUpsertSnapshot, request{
		method: http.MethodPost,
		path:   restPrefix + "user_sessions",
		query:  url.Values{"on_conflict": {"user_id"}},
		body: []snapshotRow{{
			UserID:       snapshot.UserID,
			CartData:     data,
			LastActivity: snapshot.LastActivity.UTC(),
		}},
		prefer: []string{preferMerge, preferMinimal},
	}, nil)
}

func (t snapshots) FindSnapshot(ctx context.Context, userID string) (*domain.CartSnapshot, error) {
	var rows []snapshotRow
	err := t.c.do(ctx, opFindSnapshot, request{
		method: http.MethodGet,
		path:   restPrefix + "user_sessions",
		query:  url.Values{"select": {"user_id,cart_data,last_activity"}, "user_id": {eq(userID)}, "limit": {"1"}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	data := strings.TrimSpace(string(row.CartData))
	if data == "" || data == "null" {
		return nil, nil
	}
	var doc cartData
	if err := json.Unmarshal(row.CartData, &doc); err != nil {
		return nil, backend.WrapError(opFindSnapshot, backend.KindInvalidInput, err)
	}
	return &domain.CartSnapshot{UserID: row.UserID, Cart: doc.cart(), LastActivity: row.LastActivity.UTC()}, nil
}

type catalog struct{ c *Client }

func (t catalog) ListListings(ctx context.Context) ([]domain.Product, error) {
	return t.listProducts(ctx, opListListings, "product_listings", url.Values{
		"select": {"*"},
		"order":  {"rating_avg.desc"},
	})
}

func (t catalog) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	return t.listProducts(ctx, opListActive, "products", url.Values{
		"select":    {"*,categories(name,slug)"},
		"is_active": {eq("true")},
		"order":     {"created_at.desc"},
	})
}

func (t catalog) listProducts(ctx context.Context, op, table string, query url.Values) ([]domain.Product, error) {
	var rows []productRow
	if err := t.c.do(ctx, op, request{method: http.MethodGet, path: restPrefix + table, query: query}, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.product())
	}
	return out, nil
}

func (t catalog) ListRecentProducts(ctx context.Context, limit int) ([]domain.ProductSummary, error) {
	query := url.Values{"select": {"id,name,is_active"}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var rows []productRow
	if err := t.c.do(ctx, opListProducts, request{method: http.MethodGet, path: restPrefix + "products", query: query}, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.ProductSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ProductSummary{ID: row.ID, Name: row.Name, IsActive: row.IsActive})
	}
	return out, nil
}

type orders struct{ c *Client }

func (t orders) InsertOrder(ctx context.Context, order backend.NewOrder) (string, error) {
	row := orderRow{
		ClientReference: order.ClientReference,
		CustomerID:      order.CustomerID,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		ShippingAddress: order.ShippingAddress,
		Subtotal:        amount(order.Summary.Subtotal),
		ShippingCost:    amount(order.Summary.ShippingCost),
		Tax:             amount(order.Summary.Tax),
		Total:           amount(order.Summary.Total),
	}
	if !order.CreatedAt.IsZero() {
		created := order.CreatedAt.UTC()
		row.CreatedAt = &created
	}
	var rows []orderRow
	err := t.c.do(ctx, opInsertOrder, request{
		method: http.MethodPost,
		path:   restPrefix + "orders",
		query:  url.Values{"select": {"id"}},
		body:   []orderRow{row},
		prefer: []string{preferRepresentation},
	}, &rows)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || strings.TrimSpace(rows[0].ID) == "" {
		return "", backend.NewError(opInsertOrder, backend.KindUnknown, "order insert returned no id")
	}
	return rows[0].ID, nil
}

func (t orders) InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]orderItemRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, newOrderItemRow(orderID, item))
	}
	return t.c.do(ctx, opInsertOrderItems, request{
		method: http.MethodPost,
		path:   restPrefix + "order_items",
		body:   rows,
		prefer: []string{preferMinimal},
	}, nil)
}

func (t orders) FindOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	rows, err := t.list(ctx, opFindOrder, url.Values{
		"select": {"*," + orderItemColumns + "," + orderCustomer},
		"id":     {eq(orderID)},
		"limit":  {"1"},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (t orders) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return t.list(ctx, opListByCustomer, url.Values{
		"select":      {"*," + orderItemColumns},
		"customer_id": {eq(customerID)},
		"order":       {"created_at.desc"},
	})
}

func (t orders) ListRecent(ctx context.Context, limit int) ([]domain.Order, error) {
	query := url.Values{"select": {"*," + orderCustomer}, "order": {"created_at.desc"}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return t.list(ctx, opListOrders, query)
}

func (t orders) list(ctx context.Context, op string, query url.Values) ([]domain.Order, error) {
	var rows []orderRow
	if err := t.c.do(ctx, op, request{method: http.MethodGet, path: restPrefix + "orders", query: query}, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.order())
	}
	return out, nil
}

var _ backend.Tables = (*Client)(nil)
