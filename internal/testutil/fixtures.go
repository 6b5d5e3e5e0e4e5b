package testutil

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
)

//go:embed fixtures/catalog.yaml
var catalogYAML []byte

type catalogFixture struct {
	Listings []productFixture `yaml:"listings"`
	Products []productFixture `yaml:"products"`
}

type productFixture struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Price       int64    `yaml:"price"`
	Images      []string `yaml:"images"`
	Features    []string `yaml:"features"`
	Badge       string   `yaml:"badge"`
	Category    string   `yaml:"category"`
	Active      bool     `yaml:"active"`
}

func (p productFixture) product() domain.Product {
	out := domain.Product{
		ID:          domain.ProductID(p.ID),
		Name:        p.Name,
		Description: p.Description,
		Price:       domain.Money(p.Price),
		Images:      p.Images,
		Features:    p.Features,
		Badge:       p.Badge,
		Category:    p.Category,
	}
	if len(p.Images) > 0 {
		out.Image = p.Images[0]
	}
	return out
}

// Catalog holds the seed catalogue.
type Catalog struct {
	Listings []domain.Product
	Products []CatalogProduct
}

// CatalogProduct is a products table row.
type CatalogProduct struct {
	Product domain.Product
	Active  bool
}

// SeedCatalog decodes the embedded catalogue fixture.
func SeedCatalog() (Catalog, error) {
	var raw catalogFixture
	if err := yaml.Unmarshal(catalogYAML, &raw); err != nil {
		return Catalog{}, fmt.Errorf("testutil: decode catalog fixture: %w", err)
	}
	var out Catalog
	for _, p := range raw.Listings {
		out.Listings = append(out.Listings, p.product())
	}
	for _, p := range raw.Products {
		out.Products = append(out.Products, CatalogProduct{Product: p.product(), Active: p.Active})
	}
	return out, nil
}

// MustSeedCatalog is SeedCatalog for fixtures known to be valid.
func MustSeedCatalog() Catalog {
	c, err := SeedCatalog()
	if err != nil {
		panic(err)
	}
	return c
}
