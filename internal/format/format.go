package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"finitefield.org/storefront/internal/domain"
)

const (
	currencyPrefix  = "Rp "
	defaultCategory = "Umum"
	missingETA      = "-"
)

var printer = message.NewPrinter(language.Indonesian)

// Currency formats a raw amount as whole Indonesian Rupiah.
// Example: Currency(150000) => "Rp 150.000"
func Currency(amount float64) string {
	return Rupiah(decimal.NewFromFloat(amount))
}

// Rupiah formats a decimal amount as whole Indonesian Rupiah, rounding half away from zero.
func Rupiah(amount decimal.Decimal) string {
	whole := amount.Round(0).IntPart()
	if whole < 0 {
		return "-" + currencyPrefix + printer.Sprintf("%d", -whole)
	}
	return currencyPrefix + printer.Sprintf("%d", whole)
}

// StockLabel returns the storefront stock text for a stock level.
func StockLabel(stock int) string {
	switch domain.StockStatusOf(stock) {
	case domain.StockOutOfStock:
		return "Habis"
	case domain.StockLow:
		return fmt.Sprintf("Stok Terbatas (%d)", stock)
	default:
		return fmt.Sprintf("Tersedia (%d)", stock)
	}
}

// StockBadgeClass returns the badge style class for a stock level.
func StockBadgeClass(stock int) string {
	switch domain.StockStatusOf(stock) {
	case domain.StockOutOfStock:
		return "out-stock"
	case domain.StockLow:
		return "low-stock"
	default:
		return "in-stock"
	}
}

// ShippingButtonLabel returns the label of the shipping action for a stock level.
func ShippingButtonLabel(stock int) string {
	if stock <= 0 {
		return "Stok Habis"
	}
	return "Cek Ongkir"
}

// Category falls back to the generic category name when none is set.
func Category(category string) string {
	if strings.TrimSpace(category) == "" {
		return defaultCategory
	}
	return category
}

// Weight renders a weight in kilograms using the shortest exact representation.
func Weight(kg float64) string {
	return strconv.FormatFloat(kg, 'f', -1, 64) + " kg"
}

// Quantity renders a piece count.
func Quantity(n int) string {
	return strconv.Itoa(n) + " pcs"
}

// ETA returns the delivery estimate or a dash when the logistics service omitted it.
func ETA(eta string) string {
	if strings.TrimSpace(eta) == "" {
		return missingETA
	}
	return eta
}
