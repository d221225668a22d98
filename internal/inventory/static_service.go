package inventory

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"finitefield.org/storefront/internal/domain"
)

//go:embed fixtures/products.yaml
var seedProducts []byte

type productFixture struct {
	Products []struct {
		ID       string  `yaml:"id"`
		Name     string  `yaml:"name"`
		Category string  `yaml:"category"`
		Price    float64 `yaml:"price"`
		Stock    int     `yaml:"stock"`
		WeightKg float64 `yaml:"weight_kg"`
	} `yaml:"products"`
}

// StaticService keeps products in memory. It backs demo deployments and tests when no
// inventory API is configured.
type StaticService struct {
	mu       sync.RWMutex
	products []domain.Product
}

// NewStaticService constructs a StaticService holding a copy of products.
func NewStaticService(products []domain.Product) *StaticService {
	out := make([]domain.Product, len(products))
	copy(out, products)
	return &StaticService{products: out}
}

// NewSeededStaticService constructs a StaticService populated with the embedded demo catalog.
func NewSeededStaticService() (*StaticService, error) {
	products, err := ParseFixture(seedProducts)
	if err != nil {
		return nil, err
	}
	return NewStaticService(products), nil
}

// ParseFixture decodes a YAML product fixture.
func ParseFixture(data []byte) ([]domain.Product, error) {
	var fixture productFixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("inventory: parse fixture: %w", err)
	}
	products := make([]domain.Product, 0, len(fixture.Products))
	for _, p := range fixture.Products {
		products = append(products, domain.Product{
			ID:       p.ID,
			Name:     p.Name,
			Category: p.Category,
			Price:    p.Price,
			Stock:    p.Stock,
			WeightKg: p.WeightKg,
		})
	}
	return products, nil
}

// ListProducts returns a snapshot of the stored products.
func (s *StaticService) ListProducts(context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

// CreateProduct appends the draft, rejecting duplicate identifiers with a 409.
func (s *StaticService) CreateProduct(_ context.Context, draft domain.ProductDraft) (domain.Product, error) {
	const op = "inventory: create product"
	product := draft.Product()
	if err := validateStored(op, product); err != nil {
		return domain.Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(product.ID) >= 0 {
		return domain.Product{}, &domain.RemoteError{Op: op, Status: http.StatusConflict, Body: "product already exists"}
	}
	s.products = append(s.products, product)
	return product, nil
}

// UpdateProduct replaces an existing product, answering 404 for unknown identifiers.
func (s *StaticService) UpdateProduct(_ context.Context, product domain.Product) (domain.Product, error) {
	const op = "inventory: update product"
	if strings.TrimSpace(product.ID) == "" {
		return domain.Product{}, domain.InvalidArgument("product id is required")
	}
	if err := validateStored(op, product); err != nil {
		return domain.Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(product.ID)
	if idx < 0 {
		return domain.Product{}, &domain.RemoteError{Op: op, Status: http.StatusNotFound, Body: "product not found"}
	}
	s.products[idx] = product
	return product, nil
}

func (s *StaticService) indexOf(id string) int {
	for i, p := range s.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func validateStored(op string, p domain.Product) error {
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" || p.Price <= 0 || p.Stock < 0 || p.WeightKg <= 0 {
		return &domain.RemoteError{Op: op, Status: http.StatusUnprocessableEntity, Body: "invalid product"}
	}
	return nil
}
