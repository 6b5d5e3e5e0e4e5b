package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/localstore"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/observability"
)

// LocalKey is the on-device storage key of the cart.
const LocalKey = "cart-data"

var errStoreLocalRequired = errors.New("cart store: local store is required")

// ActionKind selects the transition applied by Dispatch.
type ActionKind string

const (
	ActionAdd            ActionKind = "add"
	ActionRemove         ActionKind = "remove"
	ActionUpdateQuantity ActionKind = "update_quantity"
	ActionDecrease       ActionKind = "decrease"
	ActionClear          ActionKind = "clear"
	ActionRestore        ActionKind = "restore"
)

// Action is a single cart mutation.
type Action struct {
	Kind      ActionKind
	Product   domain.Product
	ProductID domain.ProductID
	Quantity  int
	Cart      domain.Cart
}

// StoreDeps wires the cart store.
type StoreDeps struct {
	Local    localstore.Store
	Notifier *Notifier
	Logger   *zap.Logger
}

// Store owns the in-memory cart. Every mutation is mirrored to local storage
// before Dispatch returns; restores replace the state without writing.
type Store struct {
	mu     sync.Mutex
	cart   domain.Cart
	local  localstore.Store
	logger *zap.Logger
	unsub  func()
}

// NewStore builds an empty store and subscribes it to notifier when given.
func NewStore(deps StoreDeps) (*Store, error) {
	if deps.Local == nil {
		return nil, errStoreLocalRequired
	}
	s := &Store{
		cart:   Clear(),
		local:  deps.Local,
		logger: observability.OrNop(deps.Logger).Named("cart"),
		unsub:  func() {},
	}
	if deps.Notifier != nil {
		s.unsub = deps.Notifier.Subscribe(s.handleEvent)
	}
	return s, nil
}

// Close detaches the store from its notifier.
func (s *Store) Close() {
	s.unsub()
}

// Cart returns a copy of the current cart.
func (s *Store) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Load restores the cart persisted on the device. Missing data leaves the cart empty.
func (s *Store) Load(ctx context.Context) error {
	stored, ok, err := ReadLocal(ctx, s.local)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.cart = stored
	s.mu.Unlock()
	return nil
}

// Dispatch applies action and returns the resulting cart.
func (s *Store) Dispatch(ctx context.Context, action Action) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next domain.Cart
	switch action.Kind {
	case ActionAdd:
		next = Add(s.cart, action.Product, action.Quantity)
	case ActionRemove:
		next = Remove(s.cart, action.ProductID)
	case ActionUpdateQuantity:
		next = UpdateQuantity(s.cart, action.ProductID, action.Quantity)
	case ActionDecrease:
		next = Decrease(s.cart, action.ProductID)
	case ActionClear:
		s.cart = Clear()
		if err := s.local.Remove(ctx, LocalKey); err != nil {
			s.logger.Warn("removing local cart failed", zap.Error(err))
			return s.cart.Clone(), fmt.Errorf("cart store: clear: %w", err)
		}
		return s.cart.Clone(), nil
	case ActionRestore:
		s.cart = Normalize(action.Cart)
		return s.cart.Clone(), nil
	default:
		return s.cart.Clone(), fmt.Errorf("cart store: unknown action %q", action.Kind)
	}

	s.cart = next
	if err := WriteLocal(ctx, s.local, next); err != nil {
		s.logger.Warn("persisting cart failed", zap.Error(err))
		return next.Clone(), err
	}
	return next.Clone(), nil
}

// Add is shorthand for an ActionAdd dispatch.
func (s *Store) Add(ctx context.Context, product domain.Product, quantity int) (domain.Cart, error) {
	return s.Dispatch(ctx, Action{Kind: ActionAdd, Product: product, Quantity: quantity})
}

// Remove is shorthand for an ActionRemove dispatch.
func (s *Store) Remove(ctx context.Context, id domain.ProductID) (domain.Cart, error) {
	return s.Dispatch(ctx, Action{Kind: ActionRemove, ProductID: id})
}

// UpdateQuantity is shorthand for an ActionUpdateQuantity dispatch.
func (s *Store) UpdateQuantity(ctx context.Context, id domain.ProductID, quantity int) (domain.Cart, error) {
	return s.Dispatch(ctx, Action{Kind: ActionUpdateQuantity, ProductID: id, Quantity: quantity})
}

// Decrease is shorthand for an ActionDecrease dispatch.
func (s *Store) Decrease(ctx context.Context, id domain.ProductID) (domain.Cart, error) {
	return s.Dispatch(ctx, Action{Kind: ActionDecrease, ProductID: id})
}

// Clear empties the cart and removes the local copy.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.Dispatch(ctx, Action{Kind: ActionClear})
	return err
}

func (s *Store) handleEvent(event Event) {
	ctx := context.Background()
	switch event.Kind {
	case EventRestored:
		if _, err := s.Dispatch(ctx, Action{Kind: ActionRestore, Cart: event.Cart}); err != nil {
			s.logger.Warn("restoring cart failed", zap.Error(err))
		}
	case EventCleared:
		if err := s.Clear(ctx); err != nil {
			s.logger.Warn("clearing cart failed", zap.Error(err))
		}
	}
}

// ReadLocal decodes the cart stored on the device.
func ReadLocal(ctx context.Context, store localstore.Store) (domain.Cart, bool, error) {
	raw, ok, err := store.Get(ctx, LocalKey)
	if err != nil {
		return domain.Cart{}, false, fmt.Errorf("cart store: read local: %w", err)
	}
	if !ok || raw == "" {
		return domain.Cart{}, false, nil
	}
	var stored domain.Cart
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return domain.Cart{}, false, fmt.Errorf("cart store: decode local: %w", err)
	}
	return Normalize(stored), true, nil
}

// WriteLocal encodes c into on-device storage.
func WriteLocal(ctx context.Context, store localstore.Store, c domain.Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("cart store: encode: %w", err)
	}
	if err := store.Set(ctx, LocalKey, string(payload)); err != nil {
		return fmt.Errorf("cart store: write local: %w", err)
	}
	return nil
}
