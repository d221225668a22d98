package inventory

import (
	"context"

	"finitefield.org/storefront/internal/domain"
)

// Service exposes the product operations of the inventory service.
type Service interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, draft domain.ProductDraft) (domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
}
