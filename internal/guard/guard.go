// Package guard wraps data fetches with authentication and authorization
// preconditions and retries fetches that fail on session errors.
package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/observability"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/retry"
)

const (
	DefaultRetryCount = 3
	DefaultRetryDelay = time.Second
)

var (
	// ErrAuthRequired is returned when the fetch needs a signed-in user.
	ErrAuthRequired = errors.New("guard: authentication required")
	// ErrAdminRequired is returned when the fetch needs an administrator.
	ErrAdminRequired = errors.New("guard: admin access required")

	errPrincipalRequired = errors.New("guard: principal is required")
	errFetchRequired     = errors.New("guard: fetch func is required")
)

// Principal exposes the signed-in identity the guard checks against.
type Principal interface {
	User() *domain.User
	Profile() *domain.Profile
	RefreshProfile(ctx context.Context)
}

// Fetcher loads the guarded data.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Option customises a Guard.
type Option func(*options)

type options struct {
	enabled      bool
	requireAuth  bool
	requireAdmin bool
	retryCount   int
	retryDelay   time.Duration
	clock        clock.Clock
	logger       *zap.Logger
}

// WithEnabled turns fetching on or off. A disabled guard never fetches.
func WithEnabled(enabled bool) Option {
	return func(o *options) { o.enabled = enabled }
}

// WithRequireAuth toggles the signed-in precondition.
func WithRequireAuth(required bool) Option {
	return func(o *options) { o.requireAuth = required }
}

// WithRequireAdmin requires the admin role, which implies authentication.
func WithRequireAdmin() Option {
	return func(o *options) { o.requireAdmin = true }
}

// WithRetry sets how many times a session failure is retried and the initial delay.
func WithRetry(count int, delay time.Duration) Option {
	return func(o *options) {
		if count >= 0 {
			o.retryCount = count
		}
		if delay > 0 {
			o.retryDelay = delay
		}
	}
}

// WithClock overrides the clock used for retry delays.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		if clk != nil {
			o.clock = clk
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// State is the observable result of the latest fetch.
type State[T any] struct {
	Data    T
	HasData bool
	Loading bool
	Err     error
}

// Guard runs a Fetcher behind the configured preconditions.
type Guard[T any] struct {
	principal Principal
	fetch     Fetcher[T]
	opts      options
	logger    *zap.Logger

	mu    sync.Mutex
	state State[T]
}

// New builds a guard. Defaults: enabled, auth required, 3 retries starting at one second.
func New[T any](principal Principal, fetch Fetcher[T], opts ...Option) (*Guard[T], error) {
	if principal == nil {
		return nil, errPrincipalRequired
	}
	if fetch == nil {
		return nil, errFetchRequired
	}
	cfg := options{
		enabled:     true,
		requireAuth: true,
		retryCount:  DefaultRetryCount,
		retryDelay:  DefaultRetryDelay,
		clock:       clock.WallClock,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.requireAdmin {
		cfg.requireAuth = true
	}
	return &Guard[T]{
		principal: principal,
		fetch:     fetch,
		opts:      cfg,
		logger:    observability.OrNop(cfg.logger).Named("guard"),
	}, nil
}

// State returns the latest state. Data holds the last successful result.
func (g *Guard[T]) State() State[T] {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Refetch runs Fetch again.
func (g *Guard[T]) Refetch(ctx context.Context) (T, error) {
	return g.Fetch(ctx)
}

// Fetch checks the preconditions and loads the data. Precondition failures
// never invoke the fetcher. Session errors refresh the profile and are retried
// with doubling delays; other errors are returned immediately.
func (g *Guard[T]) Fetch(ctx context.Context) (T, error) {
	var zero T
	if !g.opts.enabled {
		return zero, nil
	}

	if err := g.authorize(ctx); err != nil {
		g.finish(zero, false, err)
		return zero, err
	}

	g.mu.Lock()
	g.state.Loading = true
	g.state.Err = nil
	g.mu.Unlock()

	var result T
	err := retry.Do(ctx, retry.Policy{
		MaxAttempts: g.opts.retryCount + 1,
		BaseDelay:   g.opts.retryDelay,
		Clock:       g.opts.clock,
	}, func(int) error {
		data, err := g.fetch(ctx)
		if err != nil {
			return err
		}
		result = data
		return nil
	}, func(err error) bool {
		return !backend.IsSessionError(err)
	}, func(err error, attempt int) {
		g.logger.Info("session error during fetch, refreshing profile", zap.Int("attempt", attempt), zap.Error(err))
		g.principal.RefreshProfile(ctx)
	})
	if err != nil {
		g.logger.Warn("guarded fetch failed", zap.Error(err))
		g.finish(zero, false, err)
		return zero, err
	}
	g.finish(result, true, nil)
	return result, nil
}

func (g *Guard[T]) authorize(ctx context.Context) error {
	if !g.opts.requireAuth {
		return nil
	}
	user := g.principal.User()
	if user == nil || user.ID == "" {
		return ErrAuthRequired
	}
	if !g.opts.requireAdmin {
		return nil
	}
	profile := g.principal.Profile()
	if profile == nil {
		g.principal.RefreshProfile(ctx)
		profile = g.principal.Profile()
	}
	if !profile.IsAdmin() {
		return ErrAdminRequired
	}
	return nil
}

func (g *Guard[T]) finish(data T, ok bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.Loading = false
	g.state.Err = err
	if ok {
		g.state.Data = data
		g.state.HasData = true
	}
}
