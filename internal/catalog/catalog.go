// Package catalog reads the product catalogue shown to shoppers.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/observability"
)

// DefaultImage is shown for products without images.
const DefaultImage = "https://images.pexels.com/photos/2363347/pexels-photo-2363347.jpeg"

var errCatalogRequired = errors.New("catalog service: catalog table is required")

// ServiceDeps wires the catalogue reader.
type ServiceDeps struct {
	Catalog backend.Catalog
	Logger  *zap.Logger
}

// Service lists products, preferring the ranked listings view.
type Service struct {
	catalog backend.Catalog
	logger  *zap.Logger
}

// NewService validates deps.
func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Catalog == nil {
		return nil, errCatalogRequired
	}
	return &Service{catalog: deps.Catalog, logger: observability.OrNop(deps.Logger).Named("catalog")}, nil
}

// Products returns the catalogue ordered by rating, falling back to active
// products newest first when the listings view is empty or unavailable.
// An empty catalogue is not an error.
func (s *Service) Products(ctx context.Context) ([]domain.Product, error) {
	listings, err := s.catalog.ListListings(ctx)
	if err != nil {
		s.logger.Warn("product listings unavailable, falling back to products", zap.Error(err))
	}
	if err == nil && len(listings) > 0 {
		return normalize(listings), nil
	}

	products, err := s.catalog.ListActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog service: list products: %w", err)
	}
	if len(products) == 0 {
		s.logger.Info("catalogue is empty")
		return []domain.Product{}, nil
	}
	return normalize(products), nil
}

// Find returns the product with id, or nil when absent.
func (s *Service) Find(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ID == id {
			return &products[i], nil
		}
	}
	return nil, nil
}

func normalize(products []domain.Product) []domain.Product {
	out := make([]domain.Product, len(products))
	for i, p := range products {
		if p.Images == nil {
			p.Images = []string{}
		}
		if p.Features == nil {
			p.Features = []string{}
		}
		if strings.TrimSpace(p.Image) == "" {
			p.Image = DefaultImage
			if len(p.Images) > 0 {
				p.Image = p.Images[0]
			}
		}
		out[i] = p
	}
	return out
}
