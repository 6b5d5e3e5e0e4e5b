// Package session keeps the client-held backend session healthy: bounded
// retrieval with backoff, refresh, validation and wiping of auth artifacts.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/localstore"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/observability"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/retry"
)

const (
	// DefaultAttempts bounds CurrentSession when callers pass zero.
	DefaultAttempts = 3
	// DefaultBaseDelay is the wait before the second attempt; it doubles afterwards.
	DefaultBaseDelay = 100 * time.Millisecond
)

var (
	errAuthRequired  = errors.New("session manager: auth client is required")
	errLocalRequired = errors.New("session manager: local store is required")

	errCorruptSession = errors.New("session manager: session missing token or user")
)

var (
	localArtifactPrefixes   = []string{"sb-"}
	localArtifactSubstrings = []string{"supabase", "auth-token", "access-token", "refresh-token"}
	pageArtifactPrefixes    = []string{"sb-"}
	pageArtifactSubstrings  = []string{"supabase"}
)

// ManagerDeps wires the collaborators of the session manager.
type ManagerDeps struct {
	Auth   backend.AuthClient
	Local  localstore.Store
	Page   localstore.Store
	Retry  retry.Policy
	Logger *zap.Logger
}

// Manager owns session retrieval and cleanup.
type Manager struct {
	auth   backend.AuthClient
	local  localstore.Store
	page   localstore.Store
	policy retry.Policy
	logger *zap.Logger
}

// NewManager validates deps and applies retry defaults.
func NewManager(deps ManagerDeps) (*Manager, error) {
	if deps.Auth == nil {
		return nil, errAuthRequired
	}
	if deps.Local == nil {
		return nil, errLocalRequired
	}
	policy := deps.Retry
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultBaseDelay
	}
	return &Manager{
		auth:   deps.Auth,
		local:  deps.Local,
		page:   deps.Page,
		policy: policy,
		logger: observability.OrNop(deps.Logger).Named("session"),
	}, nil
}

// CurrentSession returns the valid session held by the client, or nil when there is none.
//
// Session-kind errors trigger one refresh per attempt. A session missing its
// token or user is treated as corrupt and refreshed. Any other failure is
// retried with doubling backoff; when the final attempt fails the auth
// artifacts are cleared and the error is returned.
func (m *Manager) CurrentSession(ctx context.Context, maxAttempts int) (*domain.Session, error) {
	policy := m.policy
	if maxAttempts > 0 {
		policy.MaxAttempts = maxAttempts
	}

	var result *domain.Session
	err := retry.Do(ctx, policy, func(attempt int) error {
		sess, err := m.auth.GetSession(ctx)
		if err != nil {
			m.logger.Warn("session fetch failed", zap.Int("attempt", attempt), zap.Error(err))
			if backend.IsSessionError(err) {
				if refreshed := m.RefreshSession(ctx); refreshed != nil {
					result = refreshed
					return nil
				}
			}
			return err
		}
		if sess == nil {
			return nil
		}
		if sess.Valid() {
			result = sess
			return nil
		}
		m.logger.Warn("session incomplete, refreshing", zap.Int("attempt", attempt))
		if refreshed := m.RefreshSession(ctx); refreshed != nil {
			result = refreshed
			return nil
		}
		return errCorruptSession
	}, nil, nil)

	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, errCorruptSession):
		return nil, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		m.logger.Warn("session fetch exhausted attempts", zap.Int("attempts", policy.MaxAttempts), zap.Error(err))
		m.ClearAuthData(ctx)
		return nil, err
	}
}

// RefreshSession asks the backend for a fresh session. Failures clear auth data and yield nil.
func (m *Manager) RefreshSession(ctx context.Context) *domain.Session {
	sess, err := m.auth.RefreshSession(ctx)
	if err != nil {
		m.logger.Warn("session refresh failed", zap.Error(err))
		m.ClearAuthData(ctx)
		return nil
	}
	if !sess.Valid() {
		m.logger.Warn("refreshed session is invalid, clearing auth data")
		m.ClearAuthData(ctx)
		return nil
	}
	return sess
}

// ClearAuthData signs out locally and removes auth artifacts from local and
// page storage. It never fails; it reports how many keys were removed.
func (m *Manager) ClearAuthData(ctx context.Context) int {
	if err := m.auth.SignOut(ctx, backend.ScopeLocal); err != nil {
		m.logger.Debug("local sign-out failed", zap.Error(err))
	}

	removed := m.purge(ctx, m.local, localArtifactPrefixes, localArtifactSubstrings)
	if m.page != nil {
		removed += m.purge(ctx, m.page, pageArtifactPrefixes, pageArtifactSubstrings)
	}
	if removed > 0 {
		m.logger.Info("auth data cleared", zap.Int("keys", removed))
	}
	return removed
}

// ValidateSession reports whether a session exists and the backend accepts it.
func (m *Manager) ValidateSession(ctx context.Context) bool {
	sess, err := m.CurrentSession(ctx, 0)
	if err != nil {
		m.ClearAuthData(ctx)
		return false
	}
	if sess == nil {
		return false
	}
	if _, err := m.auth.GetUser(ctx); err != nil {
		m.logger.Warn("session validation failed", zap.String("user_id", observability.SanitizeUserID(sess.UserID())), zap.Error(err))
		m.ClearAuthData(ctx)
		return false
	}
	return true
}

func (m *Manager) purge(ctx context.Context, store localstore.Store, prefixes, substrings []string) int {
	keys, err := store.Keys(ctx)
	if err != nil {
		m.logger.Debug("listing storage keys failed", zap.Error(err))
		return 0
	}
	removed := 0
	for _, key := range keys {
		if !matches(key, prefixes, substrings) {
			continue
		}
		if m.removeKey(ctx, store, key) {
			removed++
		}
	}
	return removed
}

func (m *Manager) removeKey(ctx context.Context, store localstore.Store, key string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("removing storage key panicked", zap.String("key", observability.SanitizeKey(key)), zap.Any("panic", r))
			ok = false
		}
	}()
	if err := store.Remove(ctx, key); err != nil {
		m.logger.Debug("removing storage key failed", zap.String("key", observability.SanitizeKey(key)), zap.Error(err))
		return false
	}
	return true
}

// IsAuthArtifact reports whether a local storage key holds auth state.
func IsAuthArtifact(key string) bool {
	return matches(key, localArtifactPrefixes, localArtifactSubstrings)
}

func matches(key string, prefixes, substrings []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	for _, sub := range substrings {
		if strings.Contains(key, sub) {
			return true
		}
	}
	return false
}
