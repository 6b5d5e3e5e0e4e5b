package firestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/config"
)

func TestDocConversionKeepsCart(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	snapshot := domain.CartSnapshot{
		UserID: "user-1",
		Cart: domain.Cart{
			Items: []domain.CartItem{
				{ProductID: "7", Name: "Honey", UnitPrice: 10, Quantity: 2},
				{ProductID: "9", UnitPrice: 5, Quantity: 1, Variant: &domain.Variant{ID: "v", Name: "1kg", PriceAdjustment: 3}},
			},
			Total: 25,
		},
		LastActivity: at,
	}

	got := fromDoc(toDoc(snapshot))
	if got.UserID != "user-1" || got.Cart.Total != 25 || !got.LastActivity.Equal(at) {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if len(got.Cart.Items) != 2 || got.Cart.Items[0].Quantity != 2 || got.Cart.Items[1].Variant == nil {
		t.Fatalf("unexpected items %+v", got.Cart.Items)
	}
	if got.Cart.Items[1].Variant.PriceAdjustment != 3 {
		t.Fatalf("expected variant adjustment to survive, got %+v", got.Cart.Items[1].Variant)
	}
}

func TestEmptyCartDocHasItems(t *testing.T) {
	doc := toDoc(domain.CartSnapshot{UserID: "user-1"})
	if doc.Items == nil {
		t.Fatalf("expected empty items slice so the document stores an array")
	}
	if got := fromDoc(doc); got.Cart.Items == nil || len(got.Cart.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", got.Cart.Items)
	}
}

func TestWrapErrorClassifiesStatus(t *testing.T) {
	cases := []struct {
		code codes.Code
		want backend.Kind
	}{
		{codes.NotFound, backend.KindNotFound},
		{codes.PermissionDenied, backend.KindForbidden},
		{codes.Unauthenticated, backend.KindSessionExpired},
		{codes.InvalidArgument, backend.KindInvalidInput},
		{codes.Unavailable, backend.KindUnavailable},
		{codes.Unknown, backend.KindUnknown},
	}
	for _, tc := range cases {
		err := wrapError("op", status.Error(tc.code, "boom"))
		if got := backend.KindOf(err); got != tc.want {
			t.Fatalf("code %s: expected %s, got %s", tc.code, tc.want, got)
		}
	}

	if err := wrapError("op", status.Error(codes.Canceled, "gone")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := wrapError("op", context.DeadlineExceeded); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline to pass through, got %v", err)
	}
	if err := wrapError("op", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestNewSnapshotsValidates(t *testing.T) {
	if _, err := NewSnapshots(nil, "", nil); !errors.Is(err, errProviderRequired) {
		t.Fatalf("expected provider error, got %v", err)
	}
	snapshots, err := NewSnapshots(NewProvider(config.FirestoreConfig{ProjectID: "p"}, nil), " ", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshots.collection != DefaultCollection {
		t.Fatalf("expected default collection, got %q", snapshots.collection)
	}
	if err := snapshots.UpsertSnapshot(context.Background(), domain.CartSnapshot{}); !errors.Is(err, errUserRequired) {
		t.Fatalf("expected user error, got %v", err)
	}
	if _, err := snapshots.FindSnapshot(context.Background(), ""); !errors.Is(err, errUserRequired) {
		t.Fatalf("expected user error, got %v", err)
	}
}

func TestProviderRequiresProjectID(t *testing.T) {
	t.Setenv(envGoogleProjectID, "")
	provider := NewProvider(config.FirestoreConfig{}, nil)
	if _, err := provider.Client(context.Background()); err == nil {
		t.Fatalf("expected project id error")
	}
}

func TestProviderClosed(t *testing.T) {
	provider := NewProvider(config.FirestoreConfig{ProjectID: "p"}, nil)
	if err := provider.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := provider.Client(context.Background()); !errors.Is(err, ErrProviderClosed) {
		t.Fatalf("expected ErrProviderClosed, got %v", err)
	}
	if err := provider.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
