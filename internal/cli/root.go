// Package cli implements the storefront command line: every invocation is a
// fresh page lifetime over persistent on-device storage.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend/rest"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	EnvFile string
	Lang    string

	// Test seams. A non-nil env replaces the process environment.
	env        map[string]string
	now        func() time.Time
	newID      func() string
	logger     *zap.Logger
	httpClient rest.HTTPClient
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func (o *RootOptions) clock() func() time.Time {
	if o.now != nil {
		return o.now
	}
	return time.Now
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// NewRootCommand creates the root command for the storefront CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Jaya Farms storefront",
		Long:          "Browse the catalogue, manage your cart, check out and review orders from the terminal.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "file with STOREFRONT_* overrides")
	cmd.PersistentFlags().StringVar(&opts.Lang, "lang", "en", "language used for dates and amounts")

	cmd.AddCommand(NewSignUpCommand(opts))
	cmd.AddCommand(NewSignInCommand(opts))
	cmd.AddCommand(NewSignOutCommand(opts))
	cmd.AddCommand(NewWhoAmICommand(opts))
	cmd.AddCommand(NewProductsCommand(opts))
	cmd.AddCommand(NewCartCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))
	cmd.AddCommand(NewOrderCommand(opts))
	cmd.AddCommand(NewOrdersCommand(opts))
	cmd.AddCommand(NewDashboardCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withApp opens the storefront for one command and reports failures through the formatter.
func withApp(opts *RootOptions, cmd *cobra.Command, run func(ctx context.Context, a *app, f *OutputFormatter) error) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, opts)
	if err != nil {
		return fail(f, err)
	}
	defer a.close()
	if err := run(ctx, a, f); err != nil {
		return fail(f, err)
	}
	return nil
}
