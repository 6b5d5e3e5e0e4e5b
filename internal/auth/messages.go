package auth

import (
	"errors"
	"strings"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
)

const (
	msgInvalidCredentials = "Invalid email or password. Please check your credentials and try again."
	msgEmailNotConfirmed  = "Please check your email and click the confirmation link before signing in."
	msgAlreadyRegistered  = "This email is already registered. Please sign in instead."
	msgAdminDenied        = "Access denied. You do not have admin privileges."
	msgPasswordTooShort   = "Password must be at least 6 characters long"
	msgUserNotCreated     = "Failed to create user"
	msgSessionExpired     = "Your session has expired. Please sign in again."
	msgFallback           = "An error occurred during authentication"
)

// Message translates an auth error into text suitable for the shopper.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotAdmin):
		return msgAdminDenied
	case errors.Is(err, ErrPasswordTooShort):
		return msgPasswordTooShort
	case errors.Is(err, ErrUserNotCreated):
		return msgUserNotCreated
	}

	switch backend.KindOf(err) {
	case backend.KindInvalidCredentials:
		return msgInvalidCredentials
	case backend.KindEmailNotConfirmed:
		return msgEmailNotConfirmed
	case backend.KindUserExists:
		return msgAlreadyRegistered
	case backend.KindForbidden:
		return msgAdminDenied
	case backend.KindSessionExpired, backend.KindSessionMissing:
		return msgSessionExpired
	}

	var be *backend.Error
	if errors.As(err, &be) && strings.TrimSpace(be.Message) != "" {
		return be.Message
	}
	return msgFallback
}
