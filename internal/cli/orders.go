package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/guard"
	"github.com/Ithachiuchiha/e-commers-site/internal/orders"
)

var paymentMethods = map[string]domain.PaymentMethod{
	"cod":    domain.PaymentCashOnDelivery,
	"online": domain.PaymentOnline,
}

// CheckoutOptions holds flags for the checkout command.
type CheckoutOptions struct {
	*RootOptions
	Address domain.ShippingAddress
	Payment string
}

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckoutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the items in your cart",
		Long: `Place an order for the items in your cart.

Shipping is free above ₹1,000; GST at 18% applies to the subtotal.

Example:
  storefront checkout --name "Asha Rao" --line1 "12 MG Road" --city Bengaluru \
    --state Karnataka --postal-code 560001 --phone 9876543210 --payment cod`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				return runCheckout(ctx, opts, a, f)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Address.FullName, "name", "", "recipient name")
	cmd.Flags().StringVar(&opts.Address.AddressLine1, "line1", "", "address line 1")
	cmd.Flags().StringVar(&opts.Address.AddressLine2, "line2", "", "address line 2")
	cmd.Flags().StringVar(&opts.Address.City, "city", "", "city")
	cmd.Flags().StringVar(&opts.Address.State, "state", "", "state")
	cmd.Flags().StringVar(&opts.Address.PostalCode, "postal-code", "", "postal code")
	cmd.Flags().StringVar(&opts.Address.Phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&opts.Payment, "payment", "cod", "payment method (cod|online)")

	return cmd
}

func runCheckout(ctx context.Context, opts *CheckoutOptions, a *app, f *OutputFormatter) error {
	userID, err := a.userID()
	if err != nil {
		return err
	}
	method, ok := paymentMethods[strings.ToLower(strings.TrimSpace(opts.Payment))]
	if !ok {
		method = domain.PaymentMethod(opts.Payment)
	}

	result, err := a.checkout.PlaceOrder(ctx, userID, a.store.Cart(), opts.Address, method)
	if err != nil {
		return err
	}
	if err := a.syncCart(ctx); err != nil {
		f.VerboseLog("saving emptied cart failed: %v", err)
	}

	v := viewer{lang: opts.Lang}
	view := orderView{
		ID:            result.OrderID,
		Reference:     result.ClientReference,
		PaymentMethod: paymentLabel(method),
		Summary:       v.summary(result.Summary),
	}
	if placed, err := a.checkout.Order(ctx, result.OrderID); err != nil {
		f.VerboseLog("reading placed order failed: %v", err)
	} else if placed != nil {
		view = v.order(*placed)
	}
	return f.Render(view, "Order placed.\n"+orderText(view))
}

// NewOrderCommand creates the order command.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "order <order-id>",
		Short:         "Show an order",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				g, err := guard.New[*domain.Order](a.auth, func(ctx context.Context) (*domain.Order, error) {
					return a.checkout.Order(ctx, args[0])
				}, guardOptions(a)...)
				if err != nil {
					return err
				}
				order, err := g.Fetch(ctx)
				if err != nil {
					return err
				}
				if order == nil {
					return errOrderNotFound
				}
				view := viewer{lang: rootOpts.Lang}.order(*order)
				return f.Render(view, orderText(view))
			})
		},
	}
}

// NewOrdersCommand creates the orders command.
func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "orders",
		Short:         "List your orders, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				g, err := guard.New[[]domain.Order](a.auth, func(ctx context.Context) ([]domain.Order, error) {
					userID, err := a.userID()
					if err != nil {
						return nil, err
					}
					return a.history.UserOrders(ctx, userID)
				}, guardOptions(a)...)
				if err != nil {
					return err
				}
				list, err := g.Fetch(ctx)
				if err != nil {
					return err
				}
				v := viewer{lang: rootOpts.Lang}
				views := make([]orderView, 0, len(list))
				for _, o := range list {
					views = append(views, v.order(o))
				}
				return f.Render(views, ordersText(views))
			})
		},
	}
}

// NewDashboardCommand creates the admin dashboard command.
func NewDashboardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "dashboard",
		Short:         "Show recent orders, customers and products (admins only)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				opts := append(guardOptions(a), guard.WithRequireAdmin())
				g, err := guard.New[orders.DashboardData](a.auth, a.dashboard.Load, opts...)
				if err != nil {
					return err
				}
				data, err := g.Fetch(ctx)
				if err != nil {
					return err
				}
				view := viewer{lang: rootOpts.Lang}.dashboard(data)
				return f.Render(view, dashboardText(view))
			})
		},
	}
}

func guardOptions(a *app) []guard.Option {
	return []guard.Option{
		guard.WithRetry(a.cfg.Guard.RetryCount, a.cfg.Guard.RetryDelay),
		guard.WithLogger(a.logger),
	}
}
