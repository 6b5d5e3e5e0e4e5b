// Package testutil provides fake backends and fixtures for tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
)

type fakeUser struct {
	user      domain.User
	password  string
	confirmed bool
}

// Backend is an in-memory backend implementing backend.AuthClient and backend.Tables.
// Operations can be forced to fail with Fail and are counted per name.
type Backend struct {
	mu sync.Mutex

	users     map[string]*fakeUser
	session   *domain.Session
	handlers  map[int]backend.AuthStateHandler
	nextID    int
	emit      bool
	autoLogin bool
	failures  map[string]error
	calls     map[string]int
	customers map[string]domain.Profile
	created   map[string]time.Time
	snapshots map[string]domain.CartSnapshot
	catalog   Catalog
	orders    map[string]*domain.Order
	orderSeq  []string
	now       func() time.Time
}

// NewBackend returns an empty fake seeded with the fixture catalogue.
func NewBackend() *Backend {
	return &Backend{
		users:     map[string]*fakeUser{},
		handlers:  map[int]backend.AuthStateHandler{},
		failures:  map[string]error{},
		calls:     map[string]int{},
		customers: map[string]domain.Profile{},
		created:   map[string]time.Time{},
		snapshots: map[string]domain.CartSnapshot{},
		catalog:   MustSeedCatalog(),
		orders:    map[string]*domain.Order{},
		now:       func() time.Time { return time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC) },
	}
}

// Operation names accepted by Fail and Calls.
const (
	OpSignUp           = "auth.sign_up"
	OpSignIn           = "auth.sign_in"
	OpSignOut          = "auth.sign_out"
	OpGetSession       = "auth.get_session"
	OpRefreshSession   = "auth.refresh"
	OpGetUser          = "auth.get_user"
	OpFindProfile      = "customers.find"
	OpInsertProfile    = "customers.insert"
	OpListCustomers    = "customers.list_recent"
	OpUpsertSnapshot   = "user_sessions.upsert"
	OpFindSnapshot     = "user_sessions.find"
	OpListListings     = "product_listings.list"
	OpListActive       = "products.list_active"
	OpListProducts     = "products.list_recent"
	OpInsertOrder      = "orders.insert"
	OpInsertOrderItems = "order_items.insert"
	OpFindOrder        = "orders.find"
	OpListByCustomer   = "orders.list_by_customer"
	OpListOrders       = "orders.list_recent"
)

// Fail makes op return err until cleared with a nil err.
func (b *Backend) Fail(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// Calls reports how many times op was invoked.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// EmitEvents toggles auth event delivery on sign-in, refresh and sign-out.
func (b *Backend) EmitEvents(on bool) {
	b.mu.Lock()
	b.emit = on
	b.mu.Unlock()
}

// AddUser registers an account.
func (b *Backend) AddUser(email, password string, confirmed bool) domain.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	user := domain.User{ID: uuid.NewString(), Email: strings.ToLower(email)}
	b.users[user.Email] = &fakeUser{user: user, password: password, confirmed: confirmed}
	return user
}

// PutProfile stores a customer row.
func (b *Backend) PutProfile(profile domain.Profile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.customers[profile.ID] = profile
	b.created[profile.ID] = b.now()
}

// PutSnapshot stores a remote cart snapshot.
func (b *Backend) PutSnapshot(snapshot domain.CartSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots[snapshot.UserID] = snapshot
}

// Snapshot returns the stored snapshot for userID.
func (b *Backend) Snapshot(userID string) (domain.CartSnapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot, ok := b.snapshots[userID]
	return snapshot, ok
}

// SetSession replaces the client-held session as-is.
func (b *Backend) SetSession(session *domain.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = session
}

// HeldSession returns the client-held session.
func (b *Backend) HeldSession() *domain.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// SetCatalog replaces the seeded catalogue.
func (b *Backend) SetCatalog(c Catalog) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalog = c
}

// Emit delivers event to every registered handler.
func (b *Backend) Emit(ctx context.Context, event backend.AuthEvent, session *domain.Session) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]backend.AuthStateHandler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(ctx, event, session)
	}
}

// begin records a call and returns the configured failure. Callers must hold b.mu.
func (b *Backend) begin(op string) error {
	b.calls[op]++
	return b.failures[op]
}

func (b *Backend) newSession(user domain.User) *domain.Session {
	u := user
	return &domain.Session{
		AccessToken:  "access-" + uuid.NewString(),
		RefreshToken: "refresh-" + uuid.NewString(),
		ExpiresAt:    b.now().Add(time.Hour),
		User:         &u,
	}
}

func (b *Backend) emitAfter(ctx context.Context, event backend.AuthEvent, session *domain.Session) {
	b.mu.Lock()
	emit := b.emit
	b.mu.Unlock()
	if emit {
		b.Emit(ctx, event, session)
	}
}

// SignInOnSignUp makes SignUp hold a session for the new account, like a
// backend with email confirmation turned off.
func (b *Backend) SignInOnSignUp(on bool) {
	b.mu.Lock()
	b.autoLogin = on
	b.mu.Unlock()
}

// SignUp creates a confirmed account.
func (b *Backend) SignUp(ctx context.Context, email, password string) (domain.User, error) {
	b.mu.Lock()
	if err := b.begin(OpSignUp); err != nil {
		b.mu.Unlock()
		return domain.User{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, exists := b.users[email]; exists {
		b.mu.Unlock()
		return domain.User{}, backend.NewError(OpSignUp, backend.KindUserExists, "User already registered")
	}
	user := domain.User{ID: uuid.NewString(), Email: email}
	b.users[email] = &fakeUser{user: user, password: password, confirmed: true}
	if !b.autoLogin {
		b.mu.Unlock()
		return user, nil
	}
	session := b.newSession(user)
	b.session = session
	b.mu.Unlock()

	b.emitAfter(ctx, backend.EventSignedIn, session)
	return user, nil
}

// SignInWithPassword authenticates and holds the new session.
func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	b.mu.Lock()
	if err := b.begin(OpSignIn); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	account, ok := b.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok || account.password != password {
		b.mu.Unlock()
		return nil, backend.NewError(OpSignIn, backend.KindInvalidCredentials, "Invalid login credentials")
	}
	if !account.confirmed {
		b.mu.Unlock()
		return nil, backend.NewError(OpSignIn, backend.KindEmailNotConfirmed, "Email not confirmed")
	}
	session := b.newSession(account.user)
	b.session = session
	b.mu.Unlock()

	b.emitAfter(ctx, backend.EventSignedIn, session)
	return session, nil
}

// SignOut drops the held session.
func (b *Backend) SignOut(ctx context.Context, _ backend.SignOutScope) error {
	b.mu.Lock()
	if err := b.begin(OpSignOut); err != nil {
		b.mu.Unlock()
		return err
	}
	had := b.session != nil
	b.session = nil
	b.mu.Unlock()

	if had {
		b.emitAfter(ctx, backend.EventSignedOut, nil)
	}
	return nil
}

// GetSession returns the held session.
func (b *Backend) GetSession(context.Context) (*domain.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpGetSession); err != nil {
		return nil, err
	}
	return b.session, nil
}

// RefreshSession rotates the held session tokens.
func (b *Backend) RefreshSession(ctx context.Context) (*domain.Session, error) {
	b.mu.Lock()
	if err := b.begin(OpRefreshSession); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	if b.session == nil || b.session.User == nil || b.session.RefreshToken == "" {
		b.mu.Unlock()
		return nil, backend.NewError(OpRefreshSession, backend.KindSessionMissing, "Auth session missing!")
	}
	session := b.newSession(*b.session.User)
	b.session = session
	b.mu.Unlock()

	b.emitAfter(ctx, backend.EventTokenRefreshed, session)
	return session, nil
}

// GetUser validates the held session.
func (b *Backend) GetUser(context.Context) (domain.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpGetUser); err != nil {
		return domain.User{}, err
	}
	if !b.session.Valid() {
		return domain.User{}, backend.NewError(OpGetUser, backend.KindSessionMissing, "Auth session missing!")
	}
	return *b.session.User, nil
}

// OnAuthStateChange registers handler.
func (b *Backend) OnAuthStateChange(handler backend.AuthStateHandler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[id] = handler
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Customers returns the customers table.
func (b *Backend) Customers() backend.Customers { return customersTable{b} }

// CartSnapshots returns the user_sessions table.
func (b *Backend) CartSnapshots() backend.CartSnapshots { return snapshotsTable{b} }

// Catalog returns the product tables.
func (b *Backend) Catalog() backend.Catalog { return catalogTable{b} }

// Orders returns the order tables.
func (b *Backend) Orders() backend.Orders { return ordersTable{b} }

type customersTable struct{ b *Backend }

func (t customersTable) FindProfile(_ context.Context, userID string) (*domain.Profile, error) {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if err := t.b.begin(OpFindProfile); err != nil {
		return nil, err
	}
	profile, ok := t.b.customers[userID]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

func (t customersTable) InsertProfile(_ context.Context, profile domain.Profile) error {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if err := t.b.begin(OpInsertProfile); err != nil {
		return err
	}
	if _, exists := t.b.customers[profile.ID]; exists {
		return backend.NewError(OpInsertProfile, backend.KindInvalidInput, "duplicate key value violates unique constraint \"customers_pkey\"")
	}
	t.b.customers[profile.ID] = profile
	t.b.created[profile.ID] = t.b.now()
	return nil
}

func (t customersTable) ListRecent(_ context.Context, limit int) ([]domain.CustomerSummary, error) {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if err := t.b.begin(OpListCustomers); err != nil {
		return nil, err
	}
	out := make([]domain.CustomerSummary, 0, len(t.b.customers))
	for id, p := range t.b.customers {
		out = append(out, domain.CustomerSummary{ID: id, FirstName: p.FirstName, LastName: p.LastName, Email: p.Email, CreatedAt: t.b.created[id]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type snapshotsTable struct{ b *Backend }

func (t snapshotsTable) UpsertSnapshot(_ context.Context, snapshot domain.CartSnapshot) error {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if err := t.b.begin(OpUpsertSnapshot); err != nil {
		return err
	}
	snapshot.Cart = snapshot.Cart.Clone()
	t.b.snapshots[snapshot.UserID] = snapshot
	return nil
}

func (t snapshotsTable) FindSnapshot(_ context.Context, userID string) (*domain.CartSnapshot, error) {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if err := t.b.begin(OpFindSnapshot); err != nil {
		return nil, err
	}
	snapshot, ok := t.b.snapshots[userID]
	if !ok {
		return nil, nil
	}
	snapshot.Cart = snapshot.Cart.Clone()
	return &snapshot, nil
}

type catalogTable struct{ b *Backend }

func (t catalogTable) ListListings(context.Context) ([]domain.Product, error) {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if err := t.b.begin(OpListListings); err != nil {
		return nil, err
	}
	return append([]domain.Product(nil), t.b.catalog.Listings...), nil
}

func (t catalogTable) ListActiveProducts(context.Context) ([]domain.Product, error) {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if err := t.b.begin(OpListActive); err != nil {
		return nil, err
	}
	var out []domain.Product
	for _, p := range t.b.catalog.Products {
		if p.Active {
			out = append(out, p.Product)
		}
	}
	return out, nil
}

func (t catalogTable) ListRecentProducts(_ context.Context, limit int) ([]domain.ProductSummary, error) {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if err := t.b.begin(OpListProducts); err != nil {
		return nil, err
	}
	var out []domain.ProductSummary
	for _, p := range t.b.catalog.Products {
		out = append(out, domain.ProductSummary{ID: p.Product.ID, Name: p.Product.Name, IsActive: p.Active})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type ordersTable struct{ b *Backend }

func (t ordersTable) InsertOrder(_ context.Context, order backend.NewOrder) (string, error) {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if err := t.b.begin(OpInsertOrder); err != nil {
		return "", err
	}
	id := uuid.NewString()
	created := order.CreatedAt
	if created.IsZero() {
		created = t.b.now()
	}
	t.b.orders[id] = &domain.Order{
		ID:              id,
		ClientReference: order.ClientReference,
		CustomerID:      order.CustomerID,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		ShippingAddress: order.ShippingAddress,
		Summary:         order.Summary,
		CreatedAt:       created,
	}
	t.b.orderSeq = append(t.b.orderSeq, id)
	return id, nil
}

func (t ordersTable) InsertOrderItems(_ context.Context, orderID string, items []domain.OrderItem) error {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if err := t.b.begin(OpInsertOrderItems); err != nil {
		return err
	}
	order, ok := t.b.orders[orderID]
	if !ok {
		return backend.NewError(OpInsertOrderItems, backend.KindInvalidInput, "insert or update on table \"order_items\" violates foreign key constraint")
	}
	order.Items = append(order.Items, items...)
	return nil
}

func (t ordersTable) FindOrder(_ context.Context, orderID string) (*domain.Order, error) {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if err := t.b.begin(OpFindOrder); err != nil {
		return nil, err
	}
	order, ok := t.b.orders[orderID]
	if !ok {
		return nil, nil
	}
	out := t.b.withCustomer(*order)
	return &out, nil
}

func (t ordersTable) ListByCustomer(_ context.Context, customerID string) ([]domain.Order, error) {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if err := t.b.begin(OpListByCustomer); err != nil {
		return nil, err
	}
	var out []domain.Order
	for i := len(t.b.orderSeq) - 1; i >= 0; i-- {
		order := t.b.orders[t.b.orderSeq[i]]
		if order.CustomerID == customerID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (t ordersTable) ListRecent(_ context.Context, limit int) ([]domain.Order, error) {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if err := t.b.begin(OpListOrders); err != nil {
		return nil, err
	}
	var out []domain.Order
	for i := len(t.b.orderSeq) - 1; i >= 0; i-- {
		out = append(out, t.b.withCustomer(*t.b.orders[t.b.orderSeq[i]]))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (b *Backend) withCustomer(order domain.Order) domain.Order {
	if profile, ok := b.customers[order.CustomerID]; ok {
		order.Customer = &domain.OrderCustomer{FirstName: profile.FirstName, LastName: profile.LastName, Email: profile.Email, Phone: profile.Phone}
	}
	return order
}

var (
	_ backend.AuthClient = (*Backend)(nil)
	_ backend.Tables     = (*Backend)(nil)
)
