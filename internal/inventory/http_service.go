package inventory

import (
	"context"
	"net/http"
	"strings"

	"finitefield.org/storefront/internal/domain"
	"finitefield.org/storefront/internal/platform/restclient"
)

const productsEndpoint = "/products"

// HTTPService implements Service backed by the inventory REST API.
type HTTPService struct {
	client *restclient.Client
}

// NewHTTPService constructs a Service that talks to the inventory API at baseURL.
func NewHTTPService(baseURL string, opts ...restclient.Option) (*HTTPService, error) {
	client, err := restclient.New("inventory", baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &HTTPService{client: client}, nil
}

// ListProducts fetches the full catalog.
func (s *HTTPService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	const op = "inventory: list products"
	body, err := s.client.Do(ctx, op, http.MethodGet, productsEndpoint, nil)
	if err != nil {
		return nil, err
	}
	return restclient.DecodeList[domain.Product](op, body)
}

// CreateProduct submits a new product. When the service does not echo the stored record, the
// submitted draft is returned as the created product.
func (s *HTTPService) CreateProduct(ctx context.Context, draft domain.ProductDraft) (domain.Product, error) {
	const op = "inventory: create product"
	body, err := s.client.Do(ctx, op, http.MethodPost, productsEndpoint, draft)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProduct(op, body, draft.Product())
}

// UpdateProduct replaces the full product record identified by product.ID.
func (s *HTTPService) UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	const op = "inventory: update product"
	if strings.TrimSpace(product.ID) == "" {
		return domain.Product{}, domain.InvalidArgument("product id is required")
	}
	body, err := s.client.Do(ctx, op, http.MethodPut, productsEndpoint, product)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProduct(op, body, product)
}

func decodeProduct(op string, body []byte, sent domain.Product) (domain.Product, error) {
	var stored domain.Product
	ok, err := restclient.DecodeObject(op, body, &stored)
	if err != nil {
		return domain.Product{}, err
	}
	if !ok || strings.TrimSpace(stored.ID) == "" {
		return sent, nil
	}
	return stored, nil
}
