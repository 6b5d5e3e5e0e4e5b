package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/localstore"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/observability"
)

// State is the authoritative source of the cart at a point in time.
type State string

const (
	// StateLocal means the on-device copy is authoritative.
	StateLocal State = "local"
	// StateRemote means the cart was just restored from the remote snapshot.
	StateRemote State = "remote"
	// StateMergedToRemote means the local cart was pushed to the remote snapshot.
	StateMergedToRemote State = "merged_to_remote"
	// StateCleared means the session ended and the local copy was dropped.
	StateCleared State = "cleared"
)

var (
	errReconcilerSnapshotsRequired = errors.New("cart reconciler: snapshot store is required")
	errReconcilerLocalRequired     = errors.New("cart reconciler: local store is required")
	errReconcilerNotifierRequired  = errors.New("cart reconciler: notifier is required")

	// ErrUserRequired is returned when a reconciliation step has no user to key the snapshot on.
	ErrUserRequired = errors.New("cart reconciler: user id is required")
)

// ReconcilerDeps wires the reconciler.
type ReconcilerDeps struct {
	Snapshots backend.CartSnapshots
	Local     localstore.Store
	Notifier  *Notifier
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Reconciler moves the cart between the device and the per-user remote snapshot.
type Reconciler struct {
	snapshots backend.CartSnapshots
	local     localstore.Store
	notifier  *Notifier
	now       func() time.Time
	logger    *zap.Logger

	mu    sync.Mutex
	state State
}

// NewReconciler validates deps. The initial state is StateLocal.
func NewReconciler(deps ReconcilerDeps) (*Reconciler, error) {
	if deps.Snapshots == nil {
		return nil, errReconcilerSnapshotsRequired
	}
	if deps.Local == nil {
		return nil, errReconcilerLocalRequired
	}
	if deps.Notifier == nil {
		return nil, errReconcilerNotifierRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Reconciler{
		snapshots: deps.Snapshots,
		local:     deps.Local,
		notifier:  deps.Notifier,
		now:       func() time.Time { return clock().UTC() },
		logger:    observability.OrNop(deps.Logger).Named("cart.reconciler"),
		state:     StateLocal,
	}, nil
}

// State returns the current reconciliation state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconciler) setState(state State) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
}

// PushLocal upserts the on-device cart as the user's remote snapshot.
// Without a local cart nothing is written.
func (r *Reconciler) PushLocal(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserRequired
	}
	local, ok, err := ReadLocal(ctx, r.local)
	if err != nil {
		r.logger.Warn("reading local cart failed", zap.Error(err))
		return err
	}
	if !ok {
		return nil
	}

	snapshot := domain.CartSnapshot{UserID: userID, Cart: local, LastActivity: r.now()}
	if err := r.snapshots.UpsertSnapshot(ctx, snapshot); err != nil {
		r.logger.Warn("saving cart snapshot failed", zap.String("user_id", observability.SanitizeUserID(userID)), zap.Error(err))
		return fmt.Errorf("cart reconciler: push: %w", err)
	}
	r.logger.Debug("cart snapshot saved", zap.String("user_id", observability.SanitizeUserID(userID)), zap.Int("items", len(local.Items)))
	r.setState(StateMergedToRemote)
	return nil
}

// RestoreRemote replaces the local cart with the user's remote snapshot and
// broadcasts it. An absent snapshot leaves local state untouched.
func (r *Reconciler) RestoreRemote(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserRequired
	}
	snapshot, err := r.snapshots.FindSnapshot(ctx, userID)
	if err != nil {
		r.logger.Warn("loading cart snapshot failed", zap.String("user_id", observability.SanitizeUserID(userID)), zap.Error(err))
		return fmt.Errorf("cart reconciler: restore: %w", err)
	}
	if snapshot == nil {
		return nil
	}

	restored := Normalize(snapshot.Cart)
	if err := WriteLocal(ctx, r.local, restored); err != nil {
		r.logger.Warn("writing restored cart failed", zap.Error(err))
		return err
	}
	r.notifier.Broadcast(Event{Kind: EventRestored, Cart: restored})
	r.setState(StateRemote)
	r.logger.Debug("cart restored from snapshot", zap.String("user_id", observability.SanitizeUserID(userID)))
	return nil
}

// EndSession pushes the cart for userID when set, then drops the local copy
// and broadcasts the clear. The push is best effort.
func (r *Reconciler) EndSession(ctx context.Context, userID string) error {
	var pushErr error
	if strings.TrimSpace(userID) != "" {
		pushErr = r.PushLocal(ctx, userID)
	}
	if err := r.local.Remove(ctx, LocalKey); err != nil {
		r.logger.Warn("removing local cart failed", zap.Error(err))
	}
	r.notifier.Broadcast(Event{Kind: EventCleared})
	r.setState(StateCleared)
	return pushErr
}
