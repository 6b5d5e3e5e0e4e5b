package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
)

// NewProductsCommand creates the products command.
func NewProductsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "products",
		Short:         "List the catalogue",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				products, err := a.catalog.Products(ctx)
				if err != nil {
					return err
				}
				views := viewer{lang: rootOpts.Lang}.products(products)
				return f.Render(views, productsText(views))
			})
		},
	}
}

// NewCartCommand creates the cart command group.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change your cart",
		Long: `Show and change your cart.

The cart is kept on this device. While signed in every change is also saved
to your account so it follows you to other devices.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(rootOpts, cmd, nil)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Show the cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(rootOpts, cmd, nil)
		},
	})

	var quantity int
	add := &cobra.Command{
		Use:           "add <product-id>",
		Short:         "Add a product to the cart",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(rootOpts, cmd, func(ctx context.Context, a *app) error {
				product, err := a.product(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = a.store.Add(ctx, product, quantity)
				return err
			})
		},
	}
	add.Flags().IntVarP(&quantity, "qty", "q", 1, "quantity to add")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:           "remove <product-id>",
		Short:         "Remove a product from the cart",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(rootOpts, cmd, func(ctx context.Context, a *app) error {
				_, err := a.store.Remove(ctx, domain.ProductID(args[0]))
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "set <product-id> <quantity>",
		Short:         "Set the quantity of a cart line (minimum 1)",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fail(rootOpts.formatter(cmd), fmt.Errorf("invalid quantity %q", args[1]))
			}
			return runCart(rootOpts, cmd, func(ctx context.Context, a *app) error {
				_, err := a.store.UpdateQuantity(ctx, domain.ProductID(args[0]), qty)
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "clear",
		Short:         "Empty the cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(rootOpts, cmd, func(ctx context.Context, a *app) error {
				return a.store.Clear(ctx)
			})
		},
	})

	return cmd
}

// runCart applies change, when given, syncs the cart and prints it.
func runCart(opts *RootOptions, cmd *cobra.Command, change func(ctx context.Context, a *app) error) error {
	return withApp(opts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
		if change != nil {
			if err := change(ctx, a); err != nil {
				return err
			}
			if err := a.syncCart(ctx); err != nil {
				return err
			}
		}
		view := viewer{lang: opts.Lang}.cart(a.store.Cart())
		return f.Render(view, cartText(view))
	})
}
