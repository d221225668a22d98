package inventory

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"finitefield.org/storefront/internal/domain"
)

func TestSeededStaticServiceLoadsFixture(t *testing.T) {
	t.Parallel()

	svc, err := NewSeededStaticService()
	require.NoError(t, err)

	products, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, products)

	var sawOutOfStock bool
	for _, p := range products {
		require.NotEmpty(t, p.ID)
		require.Positive(t, p.Price)
		require.Positive(t, p.WeightKg)
		if p.Stock == 0 {
			sawOutOfStock = true
		}
	}
	require.True(t, sawOutOfStock, "fixture should include an out-of-stock product")
}

func TestStaticServiceCreateAndUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewStaticService(nil)

	draft := domain.ProductDraft{ID: "P1", Name: "Kopi", Price: 50000, Stock: 5, WeightKg: 1.2}
	_, err := svc.CreateProduct(ctx, draft)
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, draft)
	var remote *domain.RemoteError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, http.StatusConflict, remote.Status)

	updated := draft.Product().WithStock(2)
	_, err = svc.UpdateProduct(ctx, updated)
	require.NoError(t, err)

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.Product{updated}, products)

	_, err = svc.UpdateProduct(ctx, domain.Product{ID: "missing", Name: "x", Price: 1, WeightKg: 1})
	require.True(t, errors.As(err, &remote))
	require.Equal(t, http.StatusNotFound, remote.Status)

	_, err = svc.UpdateProduct(ctx, updated.WithStock(-1))
	require.ErrorIs(t, err, domain.ErrRemote)
}

func TestParseFixtureRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := ParseFixture([]byte("products: [::"))
	require.Error(t, err)
}
