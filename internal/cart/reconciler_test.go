package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/localstore"
)

type stubSnapshots struct {
	stored    map[string]domain.CartSnapshot
	upserts   []domain.CartSnapshot
	upsertErr error
	findErr   error
}

func newStubSnapshots() *stubSnapshots {
	return &stubSnapshots{stored: map[string]domain.CartSnapshot{}}
}

func (s *stubSnapshots) UpsertSnapshot(_ context.Context, snapshot domain.CartSnapshot) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts = append(s.upserts, snapshot)
	s.stored[snapshot.UserID] = snapshot
	return nil
}

func (s *stubSnapshots) FindSnapshot(_ context.Context, userID string) (*domain.CartSnapshot, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	snapshot, ok := s.stored[userID]
	if !ok {
		return nil, nil
	}
	return &snapshot, nil
}

type reconcilerFixture struct {
	local     *localstore.Memory
	notifier  *Notifier
	store     *Store
	snapshots *stubSnapshots
	rec       *Reconciler
	now       time.Time
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	f := &reconcilerFixture{
		local:     localstore.NewMemory(),
		notifier:  NewNotifier(),
		snapshots: newStubSnapshots(),
		now:       time.Date(2024, 6, 1, 10, 0, 0, 0, time.FixedZone("IST", 19800)),
	}
	f.store = newTestStore(t, f.local, f.notifier)
	rec, err := NewReconciler(ReconcilerDeps{
		Snapshots: f.snapshots,
		Local:     f.local,
		Notifier:  f.notifier,
		Clock:     func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("NewReconciler: %v", err)
	}
	f.rec = rec
	return f
}

func TestNewReconcilerValidatesDeps(t *testing.T) {
	if _, err := NewReconciler(ReconcilerDeps{Local: localstore.NewMemory(), Notifier: NewNotifier()}); !errors.Is(err, errReconcilerSnapshotsRequired) {
		t.Fatalf("expected snapshots required, got %v", err)
	}
	if _, err := NewReconciler(ReconcilerDeps{Snapshots: newStubSnapshots(), Notifier: NewNotifier()}); !errors.Is(err, errReconcilerLocalRequired) {
		t.Fatalf("expected local required, got %v", err)
	}
	if _, err := NewReconciler(ReconcilerDeps{Snapshots: newStubSnapshots(), Local: localstore.NewMemory()}); !errors.Is(err, errReconcilerNotifierRequired) {
		t.Fatalf("expected notifier required, got %v", err)
	}
}

func TestPushLocalUpsertsSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t)
	if _, err := f.store.Add(ctx, product("1", 300), 2); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := f.rec.PushLocal(ctx, "user-1"); err != nil {
		t.Fatalf("PushLocal: %v", err)
	}
	if len(f.snapshots.upserts) != 1 {
		t.Fatalf("expected one upsert, got %d", len(f.snapshots.upserts))
	}
	got := f.snapshots.upserts[0]
	if got.UserID != "user-1" || got.Cart.Total != 600 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if !got.LastActivity.Equal(f.now) || got.LastActivity.Location() != time.UTC {
		t.Fatalf("expected UTC activity time, got %v", got.LastActivity)
	}
	if f.rec.State() != StateMergedToRemote {
		t.Fatalf("expected merged state, got %s", f.rec.State())
	}
}

func TestPushLocalWithoutLocalCartIsNoop(t *testing.T) {
	f := newReconcilerFixture(t)
	if err := f.rec.PushLocal(context.Background(), "user-1"); err != nil {
		t.Fatalf("PushLocal: %v", err)
	}
	if len(f.snapshots.upserts) != 0 {
		t.Fatalf("expected no upsert")
	}
	if f.rec.State() != StateLocal {
		t.Fatalf("expected local state, got %s", f.rec.State())
	}
}

func TestPushLocalRequiresUser(t *testing.T) {
	f := newReconcilerFixture(t)
	if err := f.rec.PushLocal(context.Background(), " "); !errors.Is(err, ErrUserRequired) {
		t.Fatalf("expected ErrUserRequired, got %v", err)
	}
}

func TestRestoreRemoteReplacesCart(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t)
	f.snapshots.stored["user-1"] = domain.CartSnapshot{
		UserID: "user-1",
		Cart:   domain.Cart{Items: []domain.CartItem{{ProductID: "7", UnitPrice: 10, Quantity: 2}}, Total: 20},
	}

	if err := f.rec.RestoreRemote(ctx, "user-1"); err != nil {
		t.Fatalf("RestoreRemote: %v", err)
	}
	got := f.store.Cart()
	if len(got.Items) != 1 || got.Items[0].ProductID != "7" || got.Items[0].Quantity != 2 || got.Total != 20 {
		t.Fatalf("unexpected in-memory cart %+v", got)
	}
	persisted, ok := readPersisted(t, f.local)
	if !ok || persisted.Total != 20 {
		t.Fatalf("expected restored cart persisted, got %+v", persisted)
	}
	if f.rec.State() != StateRemote {
		t.Fatalf("expected remote state, got %s", f.rec.State())
	}
}

func TestRestoreRemoteWithoutSnapshotKeepsLocal(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t)
	if _, err := f.store.Add(ctx, product("1", 100), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := f.rec.RestoreRemote(ctx, "user-1"); err != nil {
		t.Fatalf("RestoreRemote: %v", err)
	}
	if got := f.store.Cart(); got.Total != 100 {
		t.Fatalf("expected local cart kept, got %+v", got)
	}
}

func TestRestoreRemoteSurfacesBackendError(t *testing.T) {
	f := newReconcilerFixture(t)
	f.snapshots.findErr = errors.New("boom")
	if err := f.rec.RestoreRemote(context.Background(), "user-1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEndSessionPushesThenClears(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t)
	if _, err := f.store.Add(ctx, product("1", 100), 3); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := f.rec.EndSession(ctx, "user-1"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if snap := f.snapshots.stored["user-1"]; snap.Cart.Total != 300 {
		t.Fatalf("expected pre-clear cart pushed, got %+v", snap)
	}
	if !f.store.Cart().Empty() {
		t.Fatalf("expected in-memory cart cleared")
	}
	if _, ok := readPersisted(t, f.local); ok {
		t.Fatalf("expected local cart removed")
	}
	if f.rec.State() != StateCleared {
		t.Fatalf("expected cleared state, got %s", f.rec.State())
	}
}

func TestEndSessionClearsEvenWhenPushFails(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture(t)
	f.snapshots.upsertErr = errors.New("offline")
	if _, err := f.store.Add(ctx, product("1", 100), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := f.rec.EndSession(ctx, "user-1"); err == nil {
		t.Fatalf("expected push error reported")
	}
	if !f.store.Cart().Empty() {
		t.Fatalf("expected cart cleared despite push failure")
	}
	if f.rec.State() != StateCleared {
		t.Fatalf("expected cleared state, got %s", f.rec.State())
	}
}
