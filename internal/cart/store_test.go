package cart

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/localstore"
)

func newTestStore(t *testing.T, local localstore.Store, notifier *Notifier) *Store {
	t.Helper()
	store, err := NewStore(StoreDeps{Local: local, Notifier: notifier})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func readPersisted(t *testing.T, local localstore.Store) (domain.Cart, bool) {
	t.Helper()
	raw, ok, err := local.Get(context.Background(), LocalKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		return domain.Cart{}, false
	}
	var c domain.Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("decode persisted cart: %v", err)
	}
	return c, true
}

func TestNewStoreRequiresLocal(t *testing.T) {
	if _, err := NewStore(StoreDeps{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStorePersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	local := localstore.NewMemory()
	store := newTestStore(t, local, nil)

	if _, err := store.Add(ctx, product("1", 500), 2); err != nil {
		t.Fatalf("Add: %v", err)
	}
	persisted, ok := readPersisted(t, local)
	if !ok || persisted.Total != 1000 || len(persisted.Items) != 1 {
		t.Fatalf("unexpected persisted cart %+v", persisted)
	}

	if _, err := store.UpdateQuantity(ctx, "1", 3); err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	persisted, _ = readPersisted(t, local)
	if persisted.Total != 1500 {
		t.Fatalf("expected persisted total 1500, got %d", persisted.Total)
	}

	if _, err := store.Decrease(ctx, "1"); err != nil {
		t.Fatalf("Decrease: %v", err)
	}
	if got := store.Cart(); got.Items[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", got.Items[0].Quantity)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := readPersisted(t, local); ok {
		t.Fatalf("expected local cart removed on clear")
	}
}

func TestStoreRestoreDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	local := localstore.NewMemory()
	store := newTestStore(t, local, nil)

	restored := domain.Cart{Items: []domain.CartItem{{ProductID: "7", UnitPrice: 10, Quantity: 2}}, Total: 20}
	got, err := store.Dispatch(ctx, Action{Kind: ActionRestore, Cart: restored})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got.Total != 20 {
		t.Fatalf("expected total 20, got %d", got.Total)
	}
	if _, ok := readPersisted(t, local); ok {
		t.Fatalf("restore must not write local storage")
	}
}

func TestStoreLoadReadsDevice(t *testing.T) {
	ctx := context.Background()
	local := localstore.NewMemory()
	if err := local.Set(ctx, LocalKey, `{"items":[{"id":3,"name":"Honey","price":250,"quantity":2}],"total":500}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	store := newTestStore(t, local, nil)
	if err := store.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := store.Cart()
	if len(got.Items) != 1 || got.Items[0].ProductID != "3" || got.Total != 500 {
		t.Fatalf("unexpected cart %+v", got)
	}
}

func TestStoreLoadRejectsCorruptData(t *testing.T) {
	ctx := context.Background()
	local := localstore.NewMemory()
	_ = local.Set(ctx, LocalKey, "{not json")
	store := newTestStore(t, local, nil)
	if err := store.Load(ctx); err == nil {
		t.Fatalf("expected decode error")
	}
	if !store.Cart().Empty() {
		t.Fatalf("expected empty cart")
	}
}

func TestStoreFollowsNotifier(t *testing.T) {
	ctx := context.Background()
	local := localstore.NewMemory()
	notifier := NewNotifier()
	store := newTestStore(t, local, notifier)

	notifier.Broadcast(Event{Kind: EventRestored, Cart: domain.Cart{Items: []domain.CartItem{{ProductID: "7", UnitPrice: 10, Quantity: 2}}, Total: 20}})
	if got := store.Cart(); got.Total != 20 {
		t.Fatalf("expected restored cart, got %+v", got)
	}

	if _, err := store.Add(ctx, product("8", 5), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	notifier.Broadcast(Event{Kind: EventCleared})
	if !store.Cart().Empty() {
		t.Fatalf("expected cleared cart")
	}
	if _, ok := readPersisted(t, local); ok {
		t.Fatalf("expected local cart removed")
	}
}

func TestStoreRejectsUnknownAction(t *testing.T) {
	store := newTestStore(t, localstore.NewMemory(), nil)
	if _, err := store.Dispatch(context.Background(), Action{Kind: "explode"}); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}
