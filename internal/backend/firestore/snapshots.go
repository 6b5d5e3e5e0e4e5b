package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/observability"
)

// DefaultCollection holds one document per user, keyed by user id.
const DefaultCollection = "user_sessions"

const (
	opUpsertSnapshot = "firestore.user_sessions.upsert"
	opFindSnapshot   = "firestore.user_sessions.find"
)

var (
	errProviderRequired = errors.New("firestore snapshots: provider is required")
	errUserRequired     = errors.New("firestore snapshots: user id is required")
)

type variantDoc struct {
	ID              string `firestore:"id"`
	Name            string `firestore:"name"`
	PriceAdjustment int64  `firestore:"price_adjustment"`
}

type itemDoc struct {
	ProductID string      `firestore:"id"`
	Name      string      `firestore:"name,omitempty"`
	Image     string      `firestore:"image,omitempty"`
	UnitPrice int64       `firestore:"price"`
	Quantity  int         `firestore:"quantity"`
	Variant   *variantDoc `firestore:"variant,omitempty"`
}

type snapshotDoc struct {
	UserID       string    `firestore:"user_id"`
	Items        []itemDoc `firestore:"items"`
	Total        int64     `firestore:"total"`
	LastActivity time.Time `firestore:"last_activity"`
}

func toDoc(s domain.CartSnapshot) snapshotDoc {
	doc := snapshotDoc{
		UserID:       s.UserID,
		Items:        make([]itemDoc, 0, len(s.Cart.Items)),
		Total:        int64(s.Cart.Total),
		LastActivity: s.LastActivity.UTC(),
	}
	for _, item := range s.Cart.Items {
		d := itemDoc{
			ProductID: string(item.ProductID),
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: int64(item.UnitPrice),
			Quantity:  item.Quantity,
		}
		if item.Variant != nil {
			d.Variant = &variantDoc{ID: item.Variant.ID, Name: item.Variant.Name, PriceAdjustment: int64(item.Variant.PriceAdjustment)}
		}
		doc.Items = append(doc.Items, d)
	}
	return doc
}

func fromDoc(doc snapshotDoc) domain.CartSnapshot {
	cart := domain.Cart{Items: make([]domain.CartItem, 0, len(doc.Items)), Total: domain.Money(doc.Total)}
	for _, d := range doc.Items {
		item := domain.CartItem{
			ProductID: domain.ProductID(d.ProductID),
			Name:      d.Name,
			Image:     d.Image,
			UnitPrice: domain.Money(d.UnitPrice),
			Quantity:  d.Quantity,
		}
		if d.Variant != nil {
			item.Variant = &domain.Variant{ID: d.Variant.ID, Name: d.Variant.Name, PriceAdjustment: domain.Money(d.Variant.PriceAdjustment)}
		}
		cart.Items = append(cart.Items, item)
	}
	return domain.CartSnapshot{UserID: doc.UserID, Cart: cart, LastActivity: doc.LastActivity.UTC()}
}

// Snapshots implements backend.CartSnapshots on a Firestore collection.
type Snapshots struct {
	provider   *Provider
	collection string
	logger     *zap.Logger
}

// NewSnapshots validates provider. An empty collection selects DefaultCollection.
func NewSnapshots(provider *Provider, collection string, logger *zap.Logger) (*Snapshots, error) {
	if provider == nil {
		return nil, errProviderRequired
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		collection = DefaultCollection
	}
	return &Snapshots{provider: provider, collection: collection, logger: observability.OrNop(logger).Named("firestore")}, nil
}

// UpsertSnapshot overwrites the user's document.
func (s *Snapshots) UpsertSnapshot(ctx context.Context, snapshot domain.CartSnapshot) (err error) {
	ctx, span := observability.StartSpan(ctx, "firestore", opUpsertSnapshot, attribute.String("collection", s.collection))
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(snapshot.UserID) == "" {
		return errUserRequired
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return backend.WrapError(opUpsertSnapshot, backend.KindUnavailable, err)
	}
	if _, err := client.Collection(s.collection).Doc(snapshot.UserID).Set(ctx, toDoc(snapshot)); err != nil {
		return wrapError(opUpsertSnapshot, err)
	}
	return nil
}

// FindSnapshot returns nil when the user has no document.
func (s *Snapshots) FindSnapshot(ctx context.Context, userID string) (snapshot *domain.CartSnapshot, err error) {
	ctx, span := observability.StartSpan(ctx, "firestore", opFindSnapshot, attribute.String("collection", s.collection))
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(userID) == "" {
		return nil, errUserRequired
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, backend.WrapError(opFindSnapshot, backend.KindUnavailable, err)
	}
	ref, err := client.Collection(s.collection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, wrapError(opFindSnapshot, err)
	}
	var doc snapshotDoc
	if err := ref.DataTo(&doc); err != nil {
		s.logger.Warn("decoding cart snapshot failed", zap.String("user_id", observability.SanitizeUserID(userID)), zap.Error(err))
		return nil, backend.WrapError(opFindSnapshot, backend.KindInvalidInput, err)
	}
	if doc.UserID == "" {
		doc.UserID = userID
	}
	out := fromDoc(doc)
	return &out, nil
}

var _ backend.CartSnapshots = (*Snapshots)(nil)
