package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
)

type stubPrincipal struct {
	user      *domain.User
	profile   *domain.Profile
	onRefresh func(*stubPrincipal)
	refreshes int
}

func (s *stubPrincipal) User() *domain.User { return s.user }

func (s *stubPrincipal) Profile() *domain.Profile { return s.profile }

func (s *stubPrincipal) RefreshProfile(context.Context) {
	s.refreshes++
	if s.onRefresh != nil {
		s.onRefresh(s)
	}
}

func signedIn(role domain.Role) *stubPrincipal {
	return &stubPrincipal{
		user:    &domain.User{ID: "user-1"},
		profile: &domain.Profile{ID: "user-1", Role: role},
	}
}

func testClock() (*testclock.Clock, *testclock.AutoAdvancingClock) {
	clk := testclock.NewClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	return clk, &testclock.AutoAdvancingClock{Clock: clk, Advance: clk.Advance}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New[int](nil, func(context.Context) (int, error) { return 0, nil }); !errors.Is(err, errPrincipalRequired) {
		t.Fatalf("expected principal required, got %v", err)
	}
	if _, err := New[int](signedIn(domain.RoleCustomer), nil); !errors.Is(err, errFetchRequired) {
		t.Fatalf("expected fetch required, got %v", err)
	}
}

func TestFetchRequiresAuthentication(t *testing.T) {
	calls := 0
	g, err := New(&stubPrincipal{}, func(context.Context) (string, error) {
		calls++
		return "data", nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := g.Fetch(context.Background()); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("fetch must not run without auth")
	}
	if st := g.State(); !errors.Is(st.Err, ErrAuthRequired) || st.Loading {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestFetchAnonymousWhenAuthNotRequired(t *testing.T) {
	g, err := New(&stubPrincipal{}, func(context.Context) (string, error) { return "catalogue", nil }, WithRequireAuth(false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := g.Fetch(context.Background())
	if err != nil || got != "catalogue" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}

func TestAdminGuardRejectsCustomerWithoutFetching(t *testing.T) {
	calls := 0
	principal := signedIn(domain.RoleCustomer)
	g, err := New(principal, func(context.Context) (int, error) {
		calls++
		return 1, nil
	}, WithRequireAdmin())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := g.Fetch(context.Background()); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("fetch must not run for non-admins, ran %d times", calls)
	}
	if principal.refreshes != 0 {
		t.Fatalf("cached profile must be used, refreshed %d times", principal.refreshes)
	}
}

func TestAdminGuardImpliesAuth(t *testing.T) {
	g, err := New(&stubPrincipal{}, func(context.Context) (int, error) { return 1, nil }, WithRequireAuth(false), WithRequireAdmin())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := g.Fetch(context.Background()); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestAdminGuardRefreshesMissingProfileOnce(t *testing.T) {
	principal := &stubPrincipal{
		user: &domain.User{ID: "admin-1"},
		onRefresh: func(s *stubPrincipal) {
			s.profile = &domain.Profile{ID: "admin-1", Role: domain.RoleAdmin}
		},
	}
	g, err := New(principal, func(context.Context) (string, error) { return "dashboard", nil }, WithRequireAdmin())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := g.Fetch(context.Background())
	if err != nil || got != "dashboard" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
	if principal.refreshes != 1 {
		t.Fatalf("expected one refresh, got %d", principal.refreshes)
	}
}

func TestFetchRetriesSessionErrorsWithBackoff(t *testing.T) {
	base, clk := testClock()
	start := base.Now()
	principal := signedIn(domain.RoleCustomer)
	calls := 0
	g, err := New(principal, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, backend.NewError("orders.list", backend.KindSessionExpired, "JWT expired")
		}
		return 42, nil
	}, WithClock(clk))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := g.Fetch(context.Background())
	if err != nil || got != 42 {
		t.Fatalf("unexpected result %d, %v", got, err)
	}
	if principal.refreshes != 2 {
		t.Fatalf("expected refresh before each retry, got %d", principal.refreshes)
	}
	if elapsed := base.Now().Sub(start); elapsed != 3*time.Second {
		t.Fatalf("expected 1s+2s of backoff, got %s", elapsed)
	}
}

func TestFetchGivesUpAfterRetryCount(t *testing.T) {
	_, clk := testClock()
	calls := 0
	expired := backend.NewError("orders.list", backend.KindSessionMissing, "session missing")
	g, err := New(signedIn(domain.RoleCustomer), func(context.Context) (int, error) {
		calls++
		return 0, expired
	}, WithClock(clk), WithRetry(2, 10*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := g.Fetch(context.Background()); !errors.Is(err, expired) {
		t.Fatalf("expected session error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected initial call plus 2 retries, got %d", calls)
	}
}

func TestFetchDoesNotRetryOtherErrors(t *testing.T) {
	_, clk := testClock()
	principal := signedIn(domain.RoleCustomer)
	calls := 0
	boom := errors.New("boom")
	g, err := New(principal, func(context.Context) (int, error) {
		calls++
		return 0, boom
	}, WithClock(clk))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := g.Fetch(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 1 || principal.refreshes != 0 {
		t.Fatalf("expected single call without refresh, got %d/%d", calls, principal.refreshes)
	}
}

func TestStateKeepsLastSuccessfulData(t *testing.T) {
	fail := false
	g, err := New(signedIn(domain.RoleCustomer), func(context.Context) (string, error) {
		if fail {
			return "", errors.New("offline")
		}
		return "orders", nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := g.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	fail = true
	if _, err := g.Refetch(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	st := g.State()
	if !st.HasData || st.Data != "orders" || st.Err == nil || st.Loading {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestDisabledGuardSkipsFetch(t *testing.T) {
	calls := 0
	g, err := New(&stubPrincipal{}, func(context.Context) (int, error) {
		calls++
		return 1, nil
	}, WithEnabled(false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := g.Fetch(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("disabled guard must not fetch")
	}
}
