package orders

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/observability"
)

var (
	errCheckoutOrdersRequired = errors.New("checkout service: orders table is required")
	errCheckoutCartRequired   = errors.New("checkout service: cart is required")
)

var (
	// ErrCustomerRequired is returned when checkout runs without a signed-in customer.
	ErrCustomerRequired = errors.New("checkout service: customer is required")
	// ErrEmptyCart is returned when the cart has no items.
	ErrEmptyCart = errors.New("checkout service: cart is empty")
	// ErrInvalidAddress is returned when a required address field is blank.
	ErrInvalidAddress = errors.New("checkout service: shipping address is incomplete")
	// ErrInvalidPaymentMethod is returned for unknown payment methods.
	ErrInvalidPaymentMethod = errors.New("checkout service: unsupported payment method")
)

type cartClearer interface {
	Clear(ctx context.Context) error
}

// CheckoutDeps wires the checkout service.
type CheckoutDeps struct {
	Orders      backend.Orders
	Cart        cartClearer
	Clock       func() time.Time
	IDGenerator func() string
	Logger      *zap.Logger
}

// Checkout places orders and reads them back.
type Checkout struct {
	orders    backend.Orders
	cart      cartClearer
	now       func() time.Time
	newID     func() string
	logger    *zap.Logger
	sanitizer *bluemonday.Policy
}

// Result describes a placed order.
type Result struct {
	OrderID         string
	ClientReference string
	Summary         domain.OrderSummary
}

// NewCheckout validates deps.
func NewCheckout(deps CheckoutDeps) (*Checkout, error) {
	if deps.Orders == nil {
		return nil, errCheckoutOrdersRequired
	}
	if deps.Cart == nil {
		return nil, errCheckoutCartRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &Checkout{
		orders:    deps.Orders,
		cart:      deps.Cart,
		now:       func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    observability.OrNop(deps.Logger).Named("checkout"),
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

// PlaceOrder writes the order and its items, then clears the cart.
// Cash on delivery orders start with payment pending; online orders with payment processing.
func (c *Checkout) PlaceOrder(ctx context.Context, customerID string, cart domain.Cart, address domain.ShippingAddress, method domain.PaymentMethod) (result Result, err error) {
	ctx, span := observability.StartSpan(ctx, "orders", "orders.PlaceOrder", attribute.String("payment_method", string(method)))
	defer func() { observability.EndSpan(span, err) }()

	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return Result{}, ErrCustomerRequired
	}
	if cart.Empty() {
		return Result{}, ErrEmptyCart
	}
	paymentStatus, err := initialPaymentStatus(method)
	if err != nil {
		return Result{}, err
	}
	address = c.cleanAddress(address)
	if err := validateAddress(address); err != nil {
		return Result{}, err
	}

	subtotal := domain.Money(0)
	for _, item := range cart.Items {
		subtotal += item.LineTotal()
	}
	summary := Summarize(subtotal)
	ref := c.newID()

	orderID, err := c.orders.InsertOrder(ctx, backend.NewOrder{
		ClientReference: ref,
		CustomerID:      customerID,
		Status:          domain.OrderStatusPending,
		PaymentMethod:   method,
		PaymentStatus:   paymentStatus,
		ShippingAddress: address,
		Summary:         summary,
		CreatedAt:       c.now(),
	})
	if err != nil {
		c.logger.Error("creating order failed", zap.String("client_reference", ref), zap.Error(err))
		return Result{}, fmt.Errorf("checkout service: create order: %w", err)
	}

	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		line := domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.LineTotal(),
		}
		if item.Variant != nil {
			line.VariantID = item.Variant.ID
		}
		items = append(items, line)
	}
	if err := c.orders.InsertOrderItems(ctx, orderID, items); err != nil {
		c.logger.Error("creating order items failed", zap.String("order_id", orderID), zap.Error(err))
		return Result{}, fmt.Errorf("checkout service: create order items: %w", err)
	}

	if err := c.cart.Clear(ctx); err != nil {
		c.logger.Warn("clearing cart after checkout failed", zap.String("order_id", orderID), zap.Error(err))
	}
	c.logger.Info("order placed",
		zap.String("order_id", orderID),
		zap.String("client_reference", ref),
		zap.String("customer_id", observability.SanitizeUserID(customerID)),
		zap.Int64("total", int64(summary.Total)),
	)
	return Result{OrderID: orderID, ClientReference: ref, Summary: summary}, nil
}

// Order reads an order with its items and customer. Absent orders yield nil.
func (c *Checkout) Order(ctx context.Context, orderID string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, nil
	}
	order, err := c.orders.FindOrder(ctx, orderID)
	if err != nil {
		if backend.IsKind(err, backend.KindNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkout service: get order: %w", err)
	}
	return order, nil
}

func initialPaymentStatus(method domain.PaymentMethod) (domain.PaymentStatus, error) {
	switch method {
	case domain.PaymentCashOnDelivery:
		return domain.PaymentStatusPending, nil
	case domain.PaymentOnline:
		return domain.PaymentStatusProcessing, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

func (c *Checkout) cleanAddress(a domain.ShippingAddress) domain.ShippingAddress {
	clean := func(s string) string {
		return strings.TrimSpace(html.UnescapeString(c.sanitizer.Sanitize(s)))
	}
	return domain.ShippingAddress{
		FullName:     clean(a.FullName),
		AddressLine1: clean(a.AddressLine1),
		AddressLine2: clean(a.AddressLine2),
		City:         clean(a.City),
		State:        clean(a.State),
		PostalCode:   clean(a.PostalCode),
		Phone:        clean(a.Phone),
	}
}

func validateAddress(a domain.ShippingAddress) error {
	required := map[string]string{
		"fullName":     a.FullName,
		"addressLine1": a.AddressLine1,
		"city":         a.City,
		"state":        a.State,
		"postalCode":   a.PostalCode,
		"phone":        a.Phone,
	}
	var missing []string
	for _, field := range []string{"fullName", "addressLine1", "city", "state", "postalCode", "phone"} {
		if required[field] == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidAddress, strings.Join(missing, ", "))
	}
	return nil
}
