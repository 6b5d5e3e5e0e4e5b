// Package auth orchestrates sign-up, sign-in, sign-out and app start-up on
// top of the session manager and cart reconciler, and exposes the resulting
// session, user and profile to callers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/localstore"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/observability"
)

// PageMarkerKey flags, in page-lifetime storage, that this page saw a signed-in user.
const PageMarkerKey = "was-logged-in"

const minPasswordLength = 6

// ReloadPolicy decides what happens to a session found when the page marker is present at start-up.
type ReloadPolicy string

const (
	// ReloadEndsSession treats a reload as a sign-out boundary.
	ReloadEndsSession ReloadPolicy = "end-session"
	// ReloadKeepsSession keeps the session across reloads.
	ReloadKeepsSession ReloadPolicy = "keep-session"
)

var (
	errAuthClientRequired = errors.New("auth orchestrator: auth client is required")
	errCustomersRequired  = errors.New("auth orchestrator: customers table is required")
	errSessionsRequired   = errors.New("auth orchestrator: session manager is required")
	errCartRequired       = errors.New("auth orchestrator: cart reconciler is required")
	errPageRequired       = errors.New("auth orchestrator: page storage is required")
)

var (
	// ErrPasswordTooShort rejects sign-ups with passwords under six characters.
	ErrPasswordTooShort = errors.New("auth: password must be at least 6 characters long")
	// ErrInvalidSession is returned when sign-in yields a session without token or user.
	ErrInvalidSession = errors.New("auth: invalid session received after sign in")
	// ErrUserNotCreated is returned when sign-up succeeds without a user.
	ErrUserNotCreated = errors.New("auth: failed to create user")
	// ErrNotAdmin is returned by SignInAdmin for non-admin accounts.
	ErrNotAdmin = errors.New("auth: admin privileges required")
)

type sessionManager interface {
	CurrentSession(ctx context.Context, maxAttempts int) (*domain.Session, error)
	ClearAuthData(ctx context.Context) int
	ValidateSession(ctx context.Context) bool
}

type cartReconciler interface {
	PushLocal(ctx context.Context, userID string) error
	RestoreRemote(ctx context.Context, userID string) error
	EndSession(ctx context.Context, userID string) error
}

// OrchestratorDeps wires the orchestrator.
type OrchestratorDeps struct {
	Auth         backend.AuthClient
	Customers    backend.Customers
	Sessions     sessionManager
	Cart         cartReconciler
	Page         localstore.Store
	ReloadPolicy ReloadPolicy
	Logger       *zap.Logger
}

// ProfileInput is the sign-up form.
type ProfileInput struct {
	Name    string
	Phone   string
	Address string
}

// Orchestrator holds the authenticated state. Backend calls are issued without holding the lock.
type Orchestrator struct {
	auth      backend.AuthClient
	customers backend.Customers
	sessions  sessionManager
	cart      cartReconciler
	page      localstore.Store
	policy    ReloadPolicy
	logger    *zap.Logger
	sanitizer *bluemonday.Policy
	unsub     func()

	mu      sync.Mutex
	session *domain.Session
	user    *domain.User
	profile *domain.Profile
	loading bool
	ready   bool
	busy    int
}

// NewOrchestrator validates deps and subscribes to backend auth events.
func NewOrchestrator(deps OrchestratorDeps) (*Orchestrator, error) {
	switch {
	case deps.Auth == nil:
		return nil, errAuthClientRequired
	case deps.Customers == nil:
		return nil, errCustomersRequired
	case deps.Sessions == nil:
		return nil, errSessionsRequired
	case deps.Cart == nil:
		return nil, errCartRequired
	case deps.Page == nil:
		return nil, errPageRequired
	}
	policy := deps.ReloadPolicy
	if policy != ReloadKeepsSession {
		policy = ReloadEndsSession
	}
	o := &Orchestrator{
		auth:      deps.Auth,
		customers: deps.Customers,
		sessions:  deps.Sessions,
		cart:      deps.Cart,
		page:      deps.Page,
		policy:    policy,
		logger:    observability.OrNop(deps.Logger).Named("auth"),
		sanitizer: bluemonday.StrictPolicy(),
		loading:   true,
	}
	o.unsub = deps.Auth.OnAuthStateChange(o.handleAuthEvent)
	return o, nil
}

// Close stops listening for auth events.
func (o *Orchestrator) Close() {
	if o.unsub != nil {
		o.unsub()
	}
}

// Session returns the current session or nil.
func (o *Orchestrator) Session() *domain.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// User returns the current user or nil.
func (o *Orchestrator) User() *domain.User {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.user
}

// Profile returns the cached profile or nil.
func (o *Orchestrator) Profile() *domain.Profile {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.profile
}

// IsAdmin reports whether the cached profile has the admin role.
func (o *Orchestrator) IsAdmin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.profile.IsAdmin()
}

// Loading reports whether an auth operation is in flight.
func (o *Orchestrator) Loading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loading
}

// Ready reports whether start-up or an auth transition has completed at least once.
func (o *Orchestrator) Ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ready
}

// SignUp registers a customer account and its profile row.
func (o *Orchestrator) SignUp(ctx context.Context, email, password string, in ProfileInput) (domain.User, error) {
	return o.signUp(ctx, email, password, in, domain.RoleCustomer)
}

// SignUpAdmin registers an administrator account and its profile row.
func (o *Orchestrator) SignUpAdmin(ctx context.Context, email, password string, in ProfileInput) (domain.User, error) {
	return o.signUp(ctx, email, password, in, domain.RoleAdmin)
}

func (o *Orchestrator) signUp(ctx context.Context, email, password string, in ProfileInput, role domain.Role) (user domain.User, err error) {
	ctx, span := observability.StartSpan(ctx, "auth", "auth.SignUp", attribute.String("role", string(role)))
	defer func() { observability.EndSpan(span, err) }()

	o.begin()
	defer o.end()

	email = strings.TrimSpace(email)
	if len(password) < minPasswordLength {
		return domain.User{}, ErrPasswordTooShort
	}

	user, err = o.auth.SignUp(ctx, email, password)
	if err != nil {
		o.logger.Info("sign up rejected", zap.String("email", observability.MaskEmail(email)), zap.Error(err))
		return domain.User{}, fmt.Errorf("auth: sign up: %w", err)
	}
	if strings.TrimSpace(user.ID) == "" {
		return domain.User{}, ErrUserNotCreated
	}

	first, last := splitName(o.clean(in.Name))
	profile := domain.Profile{
		ID:        user.ID,
		FirstName: first,
		LastName:  last,
		Email:     email,
		Phone:     o.clean(in.Phone),
		DefaultShippingAddress: &domain.Address{
			Street: o.clean(in.Address),
		},
		Role: role,
	}
	err = o.customers.InsertProfile(ctx, profile)
	if err != nil {
		o.logger.Warn("profile insert failed after sign up", zap.String("user_id", observability.SanitizeUserID(user.ID)), zap.Error(err))
		err = fmt.Errorf("auth: create profile: %w", err)
	} else {
		o.logger.Info("account created", zap.String("user_id", observability.SanitizeUserID(user.ID)), zap.String("role", string(role)))
	}

	// A backend that confirms immediately signs the new user in. Adopt that
	// session only now so the profile lookup sees the row just written.
	if sess, sessErr := o.auth.GetSession(ctx); sessErr == nil && sess.Valid() && sess.UserID() == user.ID {
		o.apply(ctx, sess)
	}
	return user, err
}

// SignIn authenticates, loads the profile and restores the remote cart.
// On failure every auth artifact is cleared and the backend error is returned.
func (o *Orchestrator) SignIn(ctx context.Context, email, password string) (err error) {
	ctx, span := observability.StartSpan(ctx, "auth", "auth.SignIn")
	defer func() { observability.EndSpan(span, err) }()

	o.begin()
	defer o.end()

	o.sessions.ClearAuthData(ctx)

	sess, err := o.auth.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		o.logger.Info("sign in failed", zap.String("email", observability.MaskEmail(email)), zap.Error(err))
		o.reset(ctx)
		return fmt.Errorf("auth: sign in: %w", err)
	}
	if !sess.Valid() {
		o.logger.Warn("sign in returned an invalid session")
		o.reset(ctx)
		return ErrInvalidSession
	}

	o.apply(ctx, sess)
	o.logger.Info("signed in", zap.String("user_id", observability.SanitizeUserID(sess.UserID())))
	return nil
}

// SignInAdmin signs in and requires the admin role, signing out again otherwise.
func (o *Orchestrator) SignInAdmin(ctx context.Context, email, password string) error {
	if err := o.SignIn(ctx, email, password); err != nil {
		return err
	}
	if !o.IsAdmin() {
		o.SignOut(ctx)
		return ErrNotAdmin
	}
	return nil
}

// SignOut pushes the cart for the current user, drops local cart and markers,
// clears auth data and resets the in-memory state. It never fails.
func (o *Orchestrator) SignOut(ctx context.Context) {
	ctx, span := observability.StartSpan(ctx, "auth", "auth.SignOut")
	defer observability.EndSpan(span, nil)

	o.begin()
	defer o.end()

	userID := ""
	if user := o.User(); user != nil {
		userID = user.ID
	}

	if err := o.page.Remove(ctx, PageMarkerKey); err != nil {
		o.logger.Debug("removing page marker failed", zap.Error(err))
	}
	if err := o.cart.EndSession(ctx, userID); err != nil {
		o.logger.Warn("saving cart before sign out failed", zap.String("user_id", observability.SanitizeUserID(userID)), zap.Error(err))
	}
	o.sessions.ClearAuthData(ctx)
	o.clearState()
	o.logger.Info("signed out", zap.String("user_id", observability.SanitizeUserID(userID)))
}

// RefreshProfile re-reads the profile of the current user.
func (o *Orchestrator) RefreshProfile(ctx context.Context) {
	user := o.User()
	if user == nil || user.ID == "" {
		return
	}
	profile := o.fetchProfile(ctx, user.ID)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.user != nil && o.user.ID == user.ID {
		o.profile = profile
	}
}

// Initialize runs the start-up sequence: apply the reload policy, validate
// any held session and, when valid, load the profile and restore the cart.
func (o *Orchestrator) Initialize(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, "auth", "auth.Initialize", attribute.String("reload_policy", string(o.policy)))
	defer func() { observability.EndSpan(span, err) }()

	o.begin()
	defer o.end()

	if o.policy == ReloadEndsSession {
		o.endSessionOnReload(ctx)
	}

	if !o.sessions.ValidateSession(ctx) {
		o.logger.Debug("no valid session at start-up")
		o.clearState()
		return nil
	}

	sess, err := o.sessions.CurrentSession(ctx, 0)
	if err != nil {
		o.logger.Warn("loading session at start-up failed", zap.Error(err))
		o.sessions.ClearAuthData(ctx)
		o.clearState()
		return fmt.Errorf("auth: initialize: %w", err)
	}
	if !sess.Valid() {
		o.clearState()
		return nil
	}
	o.apply(ctx, sess)
	return nil
}

func (o *Orchestrator) endSessionOnReload(ctx context.Context) {
	_, marked, err := o.page.Get(ctx, PageMarkerKey)
	if err != nil {
		o.logger.Debug("reading page marker failed", zap.Error(err))
		return
	}
	if !marked {
		return
	}
	sess, err := o.sessions.CurrentSession(ctx, 0)
	if err != nil || !sess.Valid() {
		return
	}

	userID := sess.UserID()
	o.logger.Info("reload detected, ending session", zap.String("user_id", observability.SanitizeUserID(userID)))
	if err := o.cart.EndSession(ctx, userID); err != nil {
		o.logger.Warn("saving cart on reload failed", zap.String("user_id", observability.SanitizeUserID(userID)), zap.Error(err))
	}
	o.sessions.ClearAuthData(ctx)
	if err := o.page.Remove(ctx, PageMarkerKey); err != nil {
		o.logger.Debug("removing page marker failed", zap.Error(err))
	}
	o.clearState()
}

// apply installs sess, loads the profile, marks the page and restores the cart.
func (o *Orchestrator) apply(ctx context.Context, sess *domain.Session) {
	user := *sess.User
	o.mu.Lock()
	o.session = sess
	o.user = &user
	o.mu.Unlock()

	profile := o.fetchProfile(ctx, user.ID)
	o.mu.Lock()
	if o.user != nil && o.user.ID == user.ID {
		o.profile = profile
	}
	o.mu.Unlock()

	if err := o.page.Set(ctx, PageMarkerKey, "true"); err != nil {
		o.logger.Debug("setting page marker failed", zap.Error(err))
	}
	if err := o.cart.RestoreRemote(ctx, user.ID); err != nil {
		o.logger.Warn("restoring cart failed", zap.String("user_id", observability.SanitizeUserID(user.ID)), zap.Error(err))
	}
}

func (o *Orchestrator) fetchProfile(ctx context.Context, userID string) *domain.Profile {
	profile, err := o.customers.FindProfile(ctx, userID)
	if err != nil {
		o.logger.Warn("fetching profile failed", zap.String("user_id", observability.SanitizeUserID(userID)), zap.Error(err))
		return nil
	}
	if profile == nil {
		o.logger.Info("no profile for user", zap.String("user_id", observability.SanitizeUserID(userID)))
	}
	return profile
}

func (o *Orchestrator) handleAuthEvent(ctx context.Context, event backend.AuthEvent, sess *domain.Session) {
	if ctx == nil {
		ctx = context.Background()
	}

	o.mu.Lock()
	busy := o.busy > 0
	duplicate := event == backend.EventSignedIn && o.session != nil && sess != nil && o.session.AccessToken == sess.AccessToken
	o.mu.Unlock()

	// Operations in flight drive their own transitions.
	if busy && event != backend.EventTokenRefreshed {
		return
	}
	defer o.settle()

	switch {
	case event == backend.EventSignedOut || sess == nil || sess.User == nil:
		if err := o.page.Remove(ctx, PageMarkerKey); err != nil {
			o.logger.Debug("removing page marker failed", zap.Error(err))
		}
		o.clearState()
	case event == backend.EventSignedIn:
		if duplicate {
			return
		}
		if !sess.Valid() {
			o.logger.Warn("invalid session in sign-in event, clearing auth state")
			o.sessions.ClearAuthData(ctx)
			o.clearState()
			return
		}
		o.apply(ctx, sess)
	case event == backend.EventTokenRefreshed:
		if sess.Valid() {
			user := *sess.User
			o.mu.Lock()
			o.session = sess
			o.user = &user
			o.mu.Unlock()
		}
	}
}

func (o *Orchestrator) reset(ctx context.Context) {
	o.sessions.ClearAuthData(ctx)
	o.clearState()
}

func (o *Orchestrator) clearState() {
	o.mu.Lock()
	o.session = nil
	o.user = nil
	o.profile = nil
	o.mu.Unlock()
}

func (o *Orchestrator) begin() {
	o.mu.Lock()
	o.busy++
	o.loading = true
	o.mu.Unlock()
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.busy--
	if o.busy == 0 {
		o.loading = false
	}
	o.ready = true
	o.mu.Unlock()
}

func (o *Orchestrator) settle() {
	o.mu.Lock()
	if o.busy == 0 {
		o.loading = false
	}
	o.ready = true
	o.mu.Unlock()
}


// clean strips markup from free text entered by the user.
func (o *Orchestrator) clean(value string) string {
	return strings.TrimSpace(html.UnescapeString(o.sanitizer.Sanitize(value)))
}

func splitName(name string) (string, string) {
	parts := strings.Split(strings.TrimSpace(name), " ")
	first := parts[0]
	last := strings.TrimSpace(strings.Join(parts[1:], " "))
	return first, last
}
