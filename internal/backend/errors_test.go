package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOfFollowsWrapChain(t *testing.T) {
	base := NewError("auth.sign_in", KindInvalidCredentials, "Invalid login credentials")
	wrapped := fmt.Errorf("sign in: %w", base)

	if got := KindOf(wrapped); got != KindInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %s", got)
	}
	if !IsKind(wrapped, KindInvalidCredentials) {
		t.Fatalf("expected IsKind to match")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatalf("expected unknown kind for plain errors")
	}
	if IsKind(nil, KindUnknown) {
		t.Fatalf("nil error must not match any kind")
	}
}

func TestIsSessionError(t *testing.T) {
	cases := map[Kind]bool{
		KindSessionExpired:     true,
		KindSessionMissing:     true,
		KindInvalidCredentials: false,
		KindUnavailable:        false,
	}
	for kind, want := range cases {
		if got := IsSessionError(NewError("op", kind, "")); got != want {
			t.Errorf("IsSessionError(%s) = %v, want %v", kind, got, want)
		}
	}
}

func TestWrapError(t *testing.T) {
	if WrapError("op", KindUnavailable, nil) != nil {
		t.Fatalf("expected nil passthrough")
	}
	if err := WrapError("op", KindUnavailable, context.Canceled); !errors.Is(err, context.Canceled) || KindOf(err) != KindUnknown {
		t.Fatalf("expected cancellation untouched, got %v", err)
	}

	cause := errors.New("connection refused")
	err := WrapError("customers.find", KindUnavailable, cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause preserved")
	}
	if err.Error() != "customers.find: connection refused" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	classified := &Error{Kind: KindNotFound, Message: "no rows"}
	if got := WrapError("orders.find", KindUnavailable, classified); KindOf(got) != KindNotFound {
		t.Fatalf("expected existing kind kept, got %s", KindOf(got))
	}
	if classified.Op != "orders.find" {
		t.Fatalf("expected op filled in, got %q", classified.Op)
	}
}

func TestKindString(t *testing.T) {
	if KindEmailNotConfirmed.String() != "email_not_confirmed" {
		t.Fatalf("unexpected name %q", KindEmailNotConfirmed.String())
	}
	if Kind(99).String() != "kind(99)" {
		t.Fatalf("unexpected fallback %q", Kind(99).String())
	}
}
