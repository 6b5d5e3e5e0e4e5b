// Package backend declares the hosted backend collaborator consumed by the
// storefront core: authentication, customer profiles, remote cart snapshots,
// catalogue reads and order writes.
package backend

import (
	"context"
	"time"

	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
)

// SignOutScope selects which sessions a sign-out revokes.
type SignOutScope string

const (
	// ScopeLocal only drops the session held by this client.
	ScopeLocal SignOutScope = "local"
	// ScopeGlobal revokes every session of the user.
	ScopeGlobal SignOutScope = "global"
)

// AuthEvent is an authentication state change notification.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// AuthStateHandler receives auth state changes. The session is nil for sign-outs.
type AuthStateHandler func(ctx context.Context, event AuthEvent, session *domain.Session)

// AuthClient is the identity surface of the backend.
type AuthClient interface {
	SignUp(ctx context.Context, email, password string) (domain.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context, scope SignOutScope) error
	// GetSession returns the session held by the client, nil when signed out.
	GetSession(ctx context.Context) (*domain.Session, error)
	RefreshSession(ctx context.Context) (*domain.Session, error)
	// GetUser performs an authenticated identity check against the backend.
	GetUser(ctx context.Context) (domain.User, error)
	// OnAuthStateChange registers a handler and returns its unsubscribe func.
	OnAuthStateChange(handler AuthStateHandler) func()
}

// Customers is the customers table keyed by user id.
type Customers interface {
	// FindProfile returns nil when no row matches.
	FindProfile(ctx context.Context, userID string) (*domain.Profile, error)
	InsertProfile(ctx context.Context, profile domain.Profile) error
	ListRecent(ctx context.Context, limit int) ([]domain.CustomerSummary, error)
}

// CartSnapshots is the user_sessions bridge table holding remote carts.
type CartSnapshots interface {
	// UpsertSnapshot writes the snapshot using the user id as conflict target.
	UpsertSnapshot(ctx context.Context, snapshot domain.CartSnapshot) error
	// FindSnapshot returns nil when the user has no stored cart.
	FindSnapshot(ctx context.Context, userID string) (*domain.CartSnapshot, error)
}

// ListingOrder selects the ordering used for catalogue reads.
type ListingOrder string

const (
	OrderByRating    ListingOrder = "rating"
	OrderByCreatedAt ListingOrder = "created_at"
)

// Catalog is the product read surface.
type Catalog interface {
	// ListListings reads the product_listings materialised view.
	ListListings(ctx context.Context) ([]domain.Product, error)
	// ListActiveProducts reads active rows from the products table.
	ListActiveProducts(ctx context.Context) ([]domain.Product, error)
	ListRecentProducts(ctx context.Context, limit int) ([]domain.ProductSummary, error)
}

// NewOrder is the write model sent at checkout.
type NewOrder struct {
	ClientReference string
	CustomerID      string
	Status          domain.OrderStatus
	PaymentMethod   domain.PaymentMethod
	PaymentStatus   domain.PaymentStatus
	ShippingAddress domain.ShippingAddress
	Summary         domain.OrderSummary
	CreatedAt       time.Time
}

// Orders is the orders/order_items surface.
type Orders interface {
	// InsertOrder creates the order header and returns its backend id.
	InsertOrder(ctx context.Context, order NewOrder) (string, error)
	InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error
	// FindOrder returns nil when no order matches.
	FindOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Order, error)
}

// Tables groups the table accessors of a backend.
type Tables interface {
	Customers() Customers
	CartSnapshots() CartSnapshots
	Catalog() Catalog
	Orders() Orders
}
