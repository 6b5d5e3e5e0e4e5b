package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
)

var errHistoryOrdersRequired = errors.New("order history: orders table is required")

// History lists a customer's orders.
type History struct {
	orders backend.Orders
}

// NewHistory validates the orders table.
func NewHistory(orders backend.Orders) (*History, error) {
	if orders == nil {
		return nil, errHistoryOrdersRequired
	}
	return &History{orders: orders}, nil
}

// UserOrders returns the customer's orders, newest first.
func (h *History) UserOrders(ctx context.Context, customerID string) ([]domain.Order, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, ErrCustomerRequired
	}
	orders, err := h.orders.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("order history: list orders: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}
