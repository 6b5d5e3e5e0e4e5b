package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ithachiuchiha/e-commers-site/internal/cart"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/localstore"
	"github.com/Ithachiuchiha/e-commers-site/internal/testutil"
)

func validAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName:     "Asha Rao",
		AddressLine1: "12 MG Road",
		City:         "Bengaluru",
		State:        "Karnataka",
		PostalCode:   "560001",
		Phone:        "+91 98450 00000",
	}
}

type checkoutFixture struct {
	backend  *testutil.Backend
	store    *cart.Store
	local    *localstore.Memory
	checkout *Checkout
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	b := testutil.NewBackend()
	local := localstore.NewMemory()
	store, err := cart.NewStore(cart.StoreDeps{Local: local})
	require.NoError(t, err)
	checkout, err := NewCheckout(CheckoutDeps{
		Orders:      b.Orders(),
		Cart:        store,
		Clock:       func() time.Time { return time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC) },
		IDGenerator: func() string { return "01HZX3J9K6Q4T8V2B7N5M1C0DE" },
	})
	require.NoError(t, err)
	return &checkoutFixture{backend: b, store: store, local: local, checkout: checkout}
}

func TestSummarize(t *testing.T) {
	cases := []struct {
		name     string
		subtotal domain.Money
		want     domain.OrderSummary
	}{
		{"flat shipping", 50000, domain.OrderSummary{Subtotal: 50000, ShippingCost: 9900, Tax: 9000, Total: 68900}},
		{"threshold is not free", 100000, domain.OrderSummary{Subtotal: 100000, ShippingCost: 9900, Tax: 18000, Total: 127900}},
		{"free shipping above threshold", 100001, domain.OrderSummary{Subtotal: 100001, ShippingCost: 0, Tax: 18000, Total: 118001}},
		{"tax rounds half up", 250, domain.OrderSummary{Subtotal: 250, ShippingCost: 9900, Tax: 45, Total: 10195}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Summarize(tc.subtotal))
		})
	}
}

func TestPlaceOrderCashOnDelivery(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	_, err := f.store.Add(ctx, domain.Product{ID: "1", Name: "Honey", Price: 45000}, 2)
	require.NoError(t, err)
	_, err = f.store.Dispatch(ctx, cart.Action{Kind: cart.ActionAdd, Product: domain.Product{ID: "2", Name: "Oil", Price: 32000}, Quantity: 1})
	require.NoError(t, err)

	result, err := f.checkout.PlaceOrder(ctx, "user-1", f.store.Cart(), validAddress(), domain.PaymentCashOnDelivery)
	require.NoError(t, err)
	require.NotEmpty(t, result.OrderID)
	require.Equal(t, "01HZX3J9K6Q4T8V2B7N5M1C0DE", result.ClientReference)
	require.Equal(t, domain.Money(122000), result.Summary.Subtotal)
	require.Zero(t, result.Summary.ShippingCost)

	order, err := f.checkout.Order(ctx, result.OrderID)
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	require.Equal(t, "user-1", order.CustomerID)
	require.Len(t, order.Items, 2)
	require.Equal(t, domain.Money(90000), order.Items[0].Subtotal)
	require.Equal(t, time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC), order.CreatedAt)

	require.True(t, f.store.Cart().Empty())
	_, ok, err := f.local.Get(ctx, cart.LocalKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPlaceOrderOnlineMarksPaymentProcessing(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	_, err := f.store.Add(ctx, domain.Product{ID: "1", Price: 45000}, 1)
	require.NoError(t, err)

	result, err := f.checkout.PlaceOrder(ctx, "user-1", f.store.Cart(), validAddress(), domain.PaymentOnline)
	require.NoError(t, err)

	order, err := f.checkout.Order(ctx, result.OrderID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusProcessing, order.PaymentStatus)
}

func TestPlaceOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	full := cart.Add(cart.Clear(), domain.Product{ID: "1", Price: 100}, 1)

	_, err := f.checkout.PlaceOrder(ctx, "", full, validAddress(), domain.PaymentOnline)
	require.ErrorIs(t, err, ErrCustomerRequired)

	_, err = f.checkout.PlaceOrder(ctx, "user-1", cart.Clear(), validAddress(), domain.PaymentOnline)
	require.ErrorIs(t, err, ErrEmptyCart)

	_, err = f.checkout.PlaceOrder(ctx, "user-1", full, validAddress(), "upi")
	require.ErrorIs(t, err, ErrInvalidPaymentMethod)

	addr := validAddress()
	addr.City = "<script>alert(1)</script>"
	addr.Phone = " "
	_, err = f.checkout.PlaceOrder(ctx, "user-1", full, addr, domain.PaymentOnline)
	require.ErrorIs(t, err, ErrInvalidAddress)
	require.Contains(t, err.Error(), "city, phone")

	require.Zero(t, f.backend.Calls(testutil.OpInsertOrder))
}

func TestPlaceOrderKeepsCartWhenInsertFails(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	_, err := f.store.Add(ctx, domain.Product{ID: "1", Price: 100}, 1)
	require.NoError(t, err)
	f.backend.Fail(testutil.OpInsertOrderItems, errors.New("foreign key violation"))

	_, err = f.checkout.PlaceOrder(ctx, "user-1", f.store.Cart(), validAddress(), domain.PaymentCashOnDelivery)
	require.Error(t, err)
	require.False(t, f.store.Cart().Empty())
}

func TestOrderAbsentIsNil(t *testing.T) {
	f := newCheckoutFixture(t)
	order, err := f.checkout.Order(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, order)
}

func TestUserOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	for _, price := range []domain.Money{100, 200} {
		_, err := f.store.Add(ctx, domain.Product{ID: "1", Price: price}, 1)
		require.NoError(t, err)
		_, err = f.checkout.PlaceOrder(ctx, "user-1", f.store.Cart(), validAddress(), domain.PaymentCashOnDelivery)
		require.NoError(t, err)
	}

	history, err := NewHistory(f.backend.Orders())
	require.NoError(t, err)

	orders, err := history.UserOrders(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, domain.Money(200), orders[0].Summary.Subtotal)

	none, err := history.UserOrders(ctx, "user-2")
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)

	_, err = history.UserOrders(ctx, "")
	require.ErrorIs(t, err, ErrCustomerRequired)
}

func TestDashboardLoad(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.backend.PutProfile(domain.Profile{ID: "user-1", FirstName: "Asha", Email: "asha@example.com"})
	_, err := f.store.Add(ctx, domain.Product{ID: "1", Price: 100}, 1)
	require.NoError(t, err)
	_, err = f.checkout.PlaceOrder(ctx, "user-1", f.store.Cart(), validAddress(), domain.PaymentCashOnDelivery)
	require.NoError(t, err)

	dashboard, err := NewDashboard(f.backend, nil)
	require.NoError(t, err)

	data, err := dashboard.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, DashboardStats{TotalOrders: 1, TotalCustomers: 1, TotalProducts: 3}, data.Stats)
	require.NotNil(t, data.Orders[0].Customer)
	require.Equal(t, "Asha", data.Orders[0].Customer.FirstName)
}

func TestDashboardSourcesFailIndependently(t *testing.T) {
	b := testutil.NewBackend()
	b.Fail(testutil.OpListOrders, errors.New("permission denied for table orders"))
	b.Fail(testutil.OpListCustomers, errors.New("timeout"))

	dashboard, err := NewDashboard(b, nil)
	require.NoError(t, err)

	data, err := dashboard.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, data.Orders)
	require.NotNil(t, data.Orders)
	require.Empty(t, data.Customers)
	require.Len(t, data.Products, 3)
	require.Equal(t, 3, data.Stats.TotalProducts)
}
