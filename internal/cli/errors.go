package cli

import (
	"errors"

	"github.com/Ithachiuchiha/e-commers-site/internal/auth"
	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/guard"
	"github.com/Ithachiuchiha/e-commers-site/internal/orders"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/config"
)

var (
	errNotSignedIn     = errors.New("not signed in")
	errProductNotFound = errors.New("product not found")
	errOrderNotFound   = errors.New("order not found")
)

// fail reports err through f and returns the ExitError the command should end with.
func fail(f *OutputFormatter, err error) error {
	code, exit, message, details := describe(err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		exit = exitErr.Code
	}
	if outErr := f.Error(code, message, details); outErr != nil {
		return WrapExitError(ExitCommandError, "writing output", outErr)
	}
	return WrapExitError(exit, code, err)
}

func describe(err error) (code string, exit int, message string, details interface{}) {
	var cfgErr *config.ValidationError
	switch {
	case errors.As(err, &cfgErr):
		return ErrCodeConfig, ExitCommandError, "Configuration is incomplete.", cfgErr.Fields()
	case errors.Is(err, errNotSignedIn), errors.Is(err, guard.ErrAuthRequired):
		return ErrCodeSignInNeeded, ExitFailure, "Please sign in first.", nil
	case errors.Is(err, guard.ErrAdminRequired), errors.Is(err, auth.ErrNotAdmin):
		return ErrCodeForbidden, ExitFailure, auth.Message(auth.ErrNotAdmin), nil
	case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrUserNotCreated), errors.Is(err, auth.ErrInvalidSession):
		return ErrCodeCredentials, ExitFailure, auth.Message(err), nil
	case errors.Is(err, errProductNotFound):
		return ErrCodeNotFound, ExitFailure, "Product not found.", nil
	case errors.Is(err, errOrderNotFound):
		return ErrCodeNotFound, ExitFailure, "Order not found.", nil
	case errors.Is(err, orders.ErrEmptyCart):
		return ErrCodeInvalidInput, ExitFailure, "Your cart is empty.", nil
	case errors.Is(err, orders.ErrInvalidAddress):
		return ErrCodeInvalidInput, ExitFailure, "Shipping address is incomplete.", err.Error()
	case errors.Is(err, orders.ErrInvalidPaymentMethod):
		return ErrCodeInvalidInput, ExitFailure, "Payment method must be cod or online.", nil
	}

	switch backend.KindOf(err) {
	case backend.KindInvalidCredentials, backend.KindEmailNotConfirmed, backend.KindUserExists:
		return ErrCodeCredentials, ExitFailure, auth.Message(err), nil
	case backend.KindSessionExpired, backend.KindSessionMissing:
		return ErrCodeSignInNeeded, ExitFailure, auth.Message(err), nil
	case backend.KindForbidden:
		return ErrCodeForbidden, ExitFailure, auth.Message(err), nil
	case backend.KindNotFound:
		return ErrCodeNotFound, ExitFailure, "Not found.", err.Error()
	case backend.KindInvalidInput:
		return ErrCodeInvalidInput, ExitFailure, auth.Message(err), err.Error()
	case backend.KindUnavailable:
		return ErrCodeUnavailable, ExitFailure, "The store is unavailable. Please try again later.", err.Error()
	}
	return ErrCodeGeneric, ExitFailure, err.Error(), nil
}
