package catalog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finitefield.org/storefront/internal/domain"
)

func TestCatalogReplaceAndFind(t *testing.T) {
	t.Parallel()

	c := New()
	_, ok := c.FindByID("P1")
	require.False(t, ok)
	require.Empty(t, c.Products())

	products := []domain.Product{
		{ID: "P1", Name: "Kopi", Price: 50000, Stock: 5, WeightKg: 1.2},
		{ID: "P2", Name: "Teh", Price: 12000, Stock: 0, WeightKg: 0.3},
	}
	c.Replace(products)
	products[0].Name = "mutated"

	p, ok := c.FindByID("P1")
	require.True(t, ok)
	require.Equal(t, "Kopi", p.Name)
	require.Len(t, c.Products(), 2)

	c.Replace(nil)
	_, ok = c.FindByID("P1")
	require.False(t, ok)
}

func TestCatalogStockStatus(t *testing.T) {
	t.Parallel()

	c := New()
	require.Equal(t, domain.StockOutOfStock, c.StockStatus(domain.Product{Stock: 0}))
	require.Equal(t, domain.StockLow, c.StockStatus(domain.Product{Stock: 9}))
	require.Equal(t, domain.StockAvailable, c.StockStatus(domain.Product{Stock: 10}))
}

func TestCatalogDestinations(t *testing.T) {
	t.Parallel()

	c := New()
	require.False(t, c.HasDestination("Jakarta"))

	c.ReplaceDestinations([]domain.Destination{{Name: " Jakarta "}, {Name: ""}, {Name: "Bandung"}})
	require.Equal(t, []domain.Destination{{Name: "Jakarta"}, {Name: "Bandung"}}, c.Destinations())
	require.True(t, c.HasDestination("jakarta"))
	require.True(t, c.HasDestination("Bandung "))
	require.False(t, c.HasDestination("Surabaya"))
	require.False(t, c.HasDestination(""))

	name, ok := c.LookupDestination("  JAKARTA")
	require.True(t, ok)
	require.Equal(t, "Jakarta", name)
	_, ok = c.LookupDestination("Surabaya")
	require.False(t, ok)

	c.ReplaceDestinations([]domain.Destination{{Name: "Medan"}, {Name: "MEDAN"}})
	require.Equal(t, []domain.Destination{{Name: "Medan"}}, c.Destinations())
}

func TestCatalogReadersSeeWholeSnapshots(t *testing.T) {
	t.Parallel()

	c := New()
	build := func(n int) []domain.Product {
		out := make([]domain.Product, n)
		for i := range out {
			out[i] = domain.Product{ID: fmt.Sprintf("P%d", i), Stock: n}
		}
		return out
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 200; i++ {
			c.Replace(build(i%7 + 1))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			products := c.Products()
			for _, p := range products {
				// every product in one snapshot carries that snapshot's size as stock
				assert.Equal(t, len(products), p.Stock)
			}
		}
	}()
	wg.Wait()
}
