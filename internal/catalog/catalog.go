// Package catalog holds the client's last-loaded view of products and destinations.
package catalog

import (
	"strings"
	"sync/atomic"

	"finitefield.org/storefront/internal/domain"
)

type snapshot struct {
	products []domain.Product
	byID     map[string]int
}

type destinationSnapshot struct {
	list  []domain.Destination
	names map[string]string
}

// Catalog is safe for concurrent use. Each Replace swaps a whole snapshot, so readers
// observe either the previous or the new catalog.
type Catalog struct {
	products     atomic.Pointer[snapshot]
	destinations atomic.Pointer[destinationSnapshot]
}

// New returns an empty catalog.
func New() *Catalog {
	c := &Catalog{}
	c.products.Store(&snapshot{byID: map[string]int{}})
	c.destinations.Store(&destinationSnapshot{names: map[string]string{}})
	return c
}

// Replace installs a fresh product list. Later duplicates of an id shadow earlier ones in lookups.
func (c *Catalog) Replace(products []domain.Product) {
	next := &snapshot{
		products: make([]domain.Product, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	copy(next.products, products)
	for i, p := range next.products {
		next.byID[p.ID] = i
	}
	c.products.Store(next)
}

// Products returns a copy of the current product list.
func (c *Catalog) Products() []domain.Product {
	snap := c.products.Load()
	out := make([]domain.Product, len(snap.products))
	copy(out, snap.products)
	return out
}

// FindByID looks a product up in the current snapshot.
func (c *Catalog) FindByID(id string) (domain.Product, bool) {
	snap := c.products.Load()
	idx, ok := snap.byID[id]
	if !ok {
		return domain.Product{}, false
	}
	return snap.products[idx], true
}

// StockStatus classifies the product's stock level.
func (c *Catalog) StockStatus(product domain.Product) domain.StockStatus {
	return domain.StockStatusOf(product.Stock)
}

// ReplaceDestinations installs a fresh destination list. Blank names and repeats differing only
// in case are dropped.
func (c *Catalog) ReplaceDestinations(destinations []domain.Destination) {
	next := &destinationSnapshot{
		list:  make([]domain.Destination, 0, len(destinations)),
		names: make(map[string]string, len(destinations)),
	}
	for _, d := range destinations {
		name := domain.NormalizeDestination(d.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := next.names[key]; dup {
			continue
		}
		next.list = append(next.list, domain.Destination{Name: name})
		next.names[key] = name
	}
	c.destinations.Store(next)
}

// Destinations returns a copy of the current destination list.
func (c *Catalog) Destinations() []domain.Destination {
	snap := c.destinations.Load()
	out := make([]domain.Destination, len(snap.list))
	copy(out, snap.list)
	return out
}

// HasDestination reports whether name is a loaded destination, ignoring case and padding.
func (c *Catalog) HasDestination(name string) bool {
	_, ok := c.LookupDestination(name)
	return ok
}

// LookupDestination returns the loaded spelling of name, ignoring case and padding.
func (c *Catalog) LookupDestination(name string) (string, bool) {
	name = domain.NormalizeDestination(name)
	if name == "" {
		return "", false
	}
	canonical, ok := c.destinations.Load().names[strings.ToLower(name)]
	return canonical, ok
}
