package domain

import "strings"

// LowStockThreshold is the stock level below which a product is flagged as running low.
const LowStockThreshold = 10

// Product mirrors the inventory service's product record.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	WeightKg float64 `json:"weight_kg"`
}

// CanShip reports whether the shipping action should be offered for the product.
func (p Product) CanShip() bool {
	return p.Stock > 0
}

// WithStock returns a copy of the product carrying the provided stock level.
func (p Product) WithStock(stock int) Product {
	p.Stock = stock
	return p
}

// ProductDraft is a product payload submitted for creation. The identifier is
// generated client-side and has not been confirmed by the inventory service.
type ProductDraft struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	WeightKg float64 `json:"weight_kg"`
}

// Product converts the draft into a product record.
func (d ProductDraft) Product() Product {
	return Product{
		ID:       d.ID,
		Name:     d.Name,
		Category: d.Category,
		Price:    d.Price,
		Stock:    d.Stock,
		WeightKg: d.WeightKg,
	}
}

// Destination is a shipping destination served by the logistics service.
type Destination struct {
	Name string `json:"destination"`
}

// ShippingQuote is the logistics service's answer for a destination/weight pair.
// Missing fields decode to their zero values; callers apply display defaults.
type ShippingQuote struct {
	TotalCost float64 `json:"total_cost"`
	ETA       string  `json:"eta"`
}

// StockStatus classifies a product's stock level for display.
type StockStatus string

const (
	// StockOutOfStock indicates no units are available.
	StockOutOfStock StockStatus = "OUT_OF_STOCK"
	// StockLow indicates fewer than LowStockThreshold units remain.
	StockLow StockStatus = "LOW"
	// StockAvailable indicates healthy stock.
	StockAvailable StockStatus = "AVAILABLE"
)

// StockStatusOf classifies a stock level.
func StockStatusOf(stock int) StockStatus {
	switch {
	case stock <= 0:
		return StockOutOfStock
	case stock < LowStockThreshold:
		return StockLow
	default:
		return StockAvailable
	}
}

// NormalizeDestination trims whitespace from a destination name.
func NormalizeDestination(name string) string {
	return strings.TrimSpace(name)
}
