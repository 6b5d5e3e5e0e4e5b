package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ithachiuchiha/e-commers-site/internal/auth"
)

// SignUpOptions holds flags for the signup command.
type SignUpOptions struct {
	*RootOptions
	Email    string
	Password string
	Name     string
	Phone    string
	Address  string
	Admin    bool
}

// NewSignUpCommand creates the signup command.
func NewSignUpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SignUpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a customer account",
		Long: `Create an account and its customer profile.

Example:
  storefront signup --email asha@example.com --password secret1 --name "Asha Rao" --phone 9876543210 --address "12 MG Road"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				return runSignUp(ctx, opts, a, f)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password (at least 6 characters)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "full name")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&opts.Address, "address", "", "street address")
	cmd.Flags().BoolVar(&opts.Admin, "admin", false, "create an administrator account")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runSignUp(ctx context.Context, opts *SignUpOptions, a *app, f *OutputFormatter) error {
	in := auth.ProfileInput{Name: opts.Name, Phone: opts.Phone, Address: opts.Address}
	signUp := a.auth.SignUp
	if opts.Admin {
		signUp = a.auth.SignUpAdmin
	}
	user, err := signUp(ctx, opts.Email, opts.Password, in)
	if err != nil {
		return err
	}
	f.VerboseLog("created user %s", user.ID)
	data := map[string]string{"email": user.Email}
	if current := a.auth.User(); current != nil && current.ID == user.ID {
		v := viewer{lang: opts.Lang}
		text := fmt.Sprintf("Account created for %s.\n", opts.Email) + accountText(v.account(current, a.auth.Profile()))
		return f.Render(data, text)
	}
	return f.Render(data, fmt.Sprintf("Account created for %s. Sign in with: storefront signin", opts.Email))
}

// SignInOptions holds flags for the signin command.
type SignInOptions struct {
	*RootOptions
	Email    string
	Password string
	Admin    bool
}

// NewSignInCommand creates the signin command.
func NewSignInCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SignInOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "signin",
		Short:         "Sign in and restore your saved cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				signIn := a.auth.SignIn
				if opts.Admin {
					signIn = a.auth.SignInAdmin
				}
				if err := signIn(ctx, opts.Email, opts.Password); err != nil {
					return err
				}
				v := viewer{lang: opts.Lang}
				account := v.account(a.auth.User(), a.auth.Profile())
				return f.Render(account, accountText(account))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password")
	cmd.Flags().BoolVar(&opts.Admin, "admin", false, "require administrator privileges")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// NewSignOutCommand creates the signout command.
func NewSignOutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "signout",
		Short:         "Save your cart and sign out",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				signedIn := a.auth.User() != nil
				a.auth.SignOut(ctx)
				text := "Signed out."
				if !signedIn {
					text = "Not signed in."
				}
				return f.Render(map[string]bool{"signed_out": signedIn}, text)
			})
		},
	}
}

// NewWhoAmICommand creates the whoami command.
func NewWhoAmICommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "whoami",
		Short:         "Show the signed-in account",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				v := viewer{lang: rootOpts.Lang}
				account := v.account(a.auth.User(), a.auth.Profile())
				return f.Render(account, accountText(account))
			})
		},
	}
}
