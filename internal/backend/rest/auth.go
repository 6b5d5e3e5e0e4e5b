package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/observability"
)

const (
	opSignUp         = "auth.sign_up"
	opSignIn         = "auth.sign_in"
	opSignOut        = "auth.sign_out"
	opGetSession     = "auth.get_session"
	opRefreshSession = "auth.refresh"
	opGetUser        = "auth.get_user"
)

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (u *userPayload) user() *domain.User {
	if u == nil || strings.TrimSpace(u.ID) == "" {
		return nil
	}
	return &domain.User{ID: u.ID, Email: u.Email}
}

type sessionPayload struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         *userPayload `json:"user"`
}

// session converts the token response. Expiry comes from expires_at, then the
// token's exp claim, then expires_in.
func (p sessionPayload) session(now time.Time) *domain.Session {
	s := &domain.Session{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		User:         p.User.user(),
	}
	claims := tokenClaims(p.AccessToken)
	switch {
	case p.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(p.ExpiresAt, 0).UTC()
	case !claimTime(claims, "exp").IsZero():
		s.ExpiresAt = claimTime(claims, "exp")
	case p.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	if s.User == nil {
		if sub, _ := claims["sub"].(string); sub != "" {
			email, _ := claims["email"].(string)
			s.User = &domain.User{ID: sub, Email: email}
		}
	}
	return s
}

// signUpPayload is either a bare user (confirmation pending) or a full session.
type signUpPayload struct {
	sessionPayload
	ID    string `json:"id"`
	Email string `json:"email"`
}

// tokenClaims decodes the access token claims without verifying the signature.
func tokenClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	if strings.TrimSpace(token) == "" {
		return claims
	}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return jwt.MapClaims{}
	}
	return claims
}

func claimTime(claims jwt.MapClaims, name string) time.Time {
	switch v := claims[name].(type) {
	case float64:
		return time.Unix(int64(v), 0).UTC()
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return time.Unix(n, 0).UTC()
		}
	}
	return time.Time{}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp registers an account. A session is only held when the backend confirms immediately.
func (c *Client) SignUp(ctx context.Context, email, password string) (domain.User, error) {
	var payload signUpPayload
	err := c.do(ctx, opSignUp, request{
		method:  http.MethodPost,
		path:    authPrefix + "signup",
		body:    credentials{Email: strings.TrimSpace(email), Password: password},
		anonKey: true,
	}, &payload)
	if err != nil {
		return domain.User{}, err
	}

	if payload.AccessToken != "" {
		session := payload.session(c.now())
		if session.User != nil {
			c.setSession(ctx, session)
			c.emit(ctx, backend.EventSignedIn, session)
			return *session.User, nil
		}
	}
	if strings.TrimSpace(payload.ID) == "" {
		if u := payload.User.user(); u != nil {
			return *u, nil
		}
		return domain.User{}, backend.NewError(opSignUp, backend.KindUnknown, "sign up returned no user")
	}
	return domain.User{ID: payload.ID, Email: payload.Email}, nil
}

// SignInWithPassword exchanges credentials for a session and persists it.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	var payload sessionPayload
	err := c.do(ctx, opSignIn, request{
		method:  http.MethodPost,
		path:    authPrefix + "token",
		query:   url.Values{"grant_type": {"password"}},
		body:    credentials{Email: strings.TrimSpace(email), Password: password},
		anonKey: true,
	}, &payload)
	if err != nil {
		return nil, err
	}
	session := payload.session(c.now())
	if !session.Valid() {
		return nil, backend.NewError(opSignIn, backend.KindUnknown, "sign in returned an incomplete session")
	}
	c.setSession(ctx, session)
	c.logger.Debug("signed in", zap.String("user_id", observability.SanitizeUserID(session.UserID())))
	c.emit(ctx, backend.EventSignedIn, session)
	return session, nil
}

// SignOut revokes the session at the backend and always drops it locally.
func (c *Client) SignOut(ctx context.Context, scope backend.SignOutScope) error {
	if scope == "" {
		scope = backend.ScopeLocal
	}
	held := c.loadSession(ctx)

	var err error
	if held != nil && held.AccessToken != "" {
		err = c.do(ctx, opSignOut, request{
			method: http.MethodPost,
			path:   authPrefix + "logout",
			query:  url.Values{"scope": {string(scope)}},
		}, nil)
		// A session the backend no longer knows is already signed out.
		if backend.IsSessionError(err) || backend.IsKind(err, backend.KindNotFound) {
			err = nil
		}
	}

	c.setSession(ctx, nil)
	if held != nil {
		c.emit(ctx, backend.EventSignedOut, nil)
	}
	return err
}

// GetSession returns the persisted session. An expired session is reported as
// a session error so callers refresh it.
func (c *Client) GetSession(ctx context.Context) (*domain.Session, error) {
	session := c.loadSession(ctx)
	if session == nil {
		return nil, nil
	}
	if session.Expired(c.now()) {
		return nil, backend.NewError(opGetSession, backend.KindSessionExpired, "session expired")
	}
	return session, nil
}

// RefreshSession exchanges the held refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context) (*domain.Session, error) {
	held := c.loadSession(ctx)
	if held == nil || strings.TrimSpace(held.RefreshToken) == "" {
		return nil, backend.NewError(opRefreshSession, backend.KindSessionMissing, "Auth session missing!")
	}

	var payload sessionPayload
	err := c.do(ctx, opRefreshSession, request{
		method:  http.MethodPost,
		path:    authPrefix + "token",
		query:   url.Values{"grant_type": {"refresh_token"}},
		body:    map[string]string{"refresh_token": held.RefreshToken},
		anonKey: true,
	}, &payload)
	if err != nil {
		return nil, err
	}
	session := payload.session(c.now())
	if session.User == nil {
		session.User = held.User
	}
	c.setSession(ctx, session)
	c.emit(ctx, backend.EventTokenRefreshed, session)
	return session, nil
}

// GetUser checks the held access token against the backend.
func (c *Client) GetUser(ctx context.Context) (domain.User, error) {
	held := c.loadSession(ctx)
	if held == nil || held.AccessToken == "" {
		return domain.User{}, backend.NewError(opGetUser, backend.KindSessionMissing, "Auth session missing!")
	}
	var payload userPayload
	if err := c.do(ctx, opGetUser, request{method: http.MethodGet, path: authPrefix + "user"}, &payload); err != nil {
		return domain.User{}, err
	}
	u := payload.user()
	if u == nil {
		return domain.User{}, backend.NewError(opGetUser, backend.KindSessionMissing, "user not found")
	}
	return *u, nil
}

// OnAuthStateChange registers handler. Events are delivered synchronously after
// the operation that caused them returns its result to the client state.
func (c *Client) OnAuthStateChange(handler backend.AuthStateHandler) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[id] = handler
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

func (c *Client) emit(ctx context.Context, event backend.AuthEvent, session *domain.Session) {
	c.mu.Lock()
	ids := make([]int, 0, len(c.handlers))
	for id := range c.handlers {
		ids = append(ids, id)
	}
	handlers := make([]backend.AuthStateHandler, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		handlers = append(handlers, c.handlers[id])
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(ctx, event, session)
	}
}

// loadSession returns the held session, reading the persisted copy on first use.
func (c *Client) loadSession(ctx context.Context) *domain.Session {
	c.mu.Lock()
	if c.loaded {
		s := c.session
		c.mu.Unlock()
		return s
	}
	c.mu.Unlock()

	raw, ok, err := c.local.Get(ctx, c.storageKey)
	var session *domain.Session
	switch {
	case err != nil:
		c.logger.Warn("reading persisted session failed", zap.Error(err))
	case ok:
		var stored domain.Session
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			c.logger.Warn("discarding unreadable persisted session", zap.Error(err))
			_ = c.local.Remove(ctx, c.storageKey)
		} else {
			session = &stored
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.session = session
		c.loaded = true
	}
	return c.session
}

// setSession holds session and persists it; nil drops both copies.
func (c *Client) setSession(ctx context.Context, session *domain.Session) {
	c.mu.Lock()
	c.session = session
	c.loaded = true
	c.mu.Unlock()

	if session == nil {
		if err := c.local.Remove(ctx, c.storageKey); err != nil {
			c.logger.Warn("removing persisted session failed", zap.Error(err))
		}
		return
	}
	raw, err := json.Marshal(session)
	if err != nil {
		c.logger.Warn("encoding session failed", zap.Error(err))
		return
	}
	if err := c.local.Set(ctx, c.storageKey, string(raw)); err != nil {
		c.logger.Warn("persisting session failed", zap.Error(err))
	}
}

var _ backend.AuthClient = (*Client)(nil)
