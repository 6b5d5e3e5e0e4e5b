package backend

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies backend failures so callers never match on message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindEmailNotConfirmed
	KindUserExists
	KindSessionExpired
	KindSessionMissing
	KindForbidden
	KindNotFound
	KindInvalidInput
	KindUnavailable
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindInvalidCredentials: "invalid_credentials",
	KindEmailNotConfirmed:  "email_not_confirmed",
	KindUserExists:         "user_exists",
	KindSessionExpired:     "session_expired",
	KindSessionMissing:     "session_missing",
	KindForbidden:          "forbidden",
	KindNotFound:           "not_found",
	KindInvalidInput:       "invalid_input",
	KindUnavailable:        "unavailable",
}

// String returns the snake_case kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified backend failure.
type Error struct {
	Op      string
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap exposes the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError constructs a classified error.
func NewError(op string, kind Kind, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// WrapError classifies err under kind. Context cancellations pass through untouched.
func WrapError(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var be *Error
	if errors.As(err, &be) {
		if be.Op == "" {
			be.Op = op
		}
		return be
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsSessionError reports whether err stems from a missing, expired or malformed session.
func IsSessionError(err error) bool {
	switch KindOf(err) {
	case KindSessionExpired, KindSessionMissing:
		return true
	}
	return false
}
