package editor

import (
	"html"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"finitefield.org/storefront/internal/domain"
)

var textPolicy = bluemonday.StrictPolicy()

const maxCleanPasses = 4

// Form carries the editable product fields.
type Form struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	WeightKg float64 `json:"weight_kg"`
}

// FormFromProduct prefills a form from an existing product.
func FormFromProduct(p domain.Product) Form {
	return Form{
		Name:     p.Name,
		Category: p.Category,
		Price:    p.Price,
		Stock:    p.Stock,
		WeightKg: p.WeightKg,
	}
}

// ParseForm reads a form from submitted values. Numeric fields that do not parse are reported
// as a ValidationError.
func ParseForm(values url.Values) (Form, error) {
	var fields []domain.FieldError
	form := Form{
		Name:     values.Get("name"),
		Category: values.Get("category"),
	}

	if v, err := strconv.ParseFloat(strings.TrimSpace(values.Get("price")), 64); err != nil {
		fields = append(fields, domain.FieldError{Field: "price", Reason: "must be a number"})
	} else {
		form.Price = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(values.Get("stock"))); err != nil {
		fields = append(fields, domain.FieldError{Field: "stock", Reason: "must be a whole number"})
	} else {
		form.Stock = v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(values.Get("weight_kg")), 64); err != nil {
		fields = append(fields, domain.FieldError{Field: "weight_kg", Reason: "must be a number"})
	} else {
		form.WeightKg = v
	}

	if len(fields) > 0 {
		return form, &domain.ValidationError{Fields: fields}
	}
	return form, nil
}

// Normalize strips markup and surrounding whitespace from the text fields.
func (f Form) Normalize() Form {
	f.Name = cleanText(f.Name)
	f.Category = cleanText(f.Category)
	return f
}

// Validate reports every field that would be rejected by the inventory service.
func (f Form) Validate() error {
	var fields []domain.FieldError
	if f.Name == "" {
		fields = append(fields, domain.FieldError{Field: "name", Reason: "is required"})
	}
	if f.Category == "" {
		fields = append(fields, domain.FieldError{Field: "category", Reason: "is required"})
	}
	if !positive(f.Price) {
		fields = append(fields, domain.FieldError{Field: "price", Reason: "must be greater than zero"})
	}
	if f.Stock < 0 {
		fields = append(fields, domain.FieldError{Field: "stock", Reason: "must not be negative"})
	}
	if !positive(f.WeightKg) {
		fields = append(fields, domain.FieldError{Field: "weight_kg", Reason: "must be greater than zero"})
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func (f Form) product(id string) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     f.Name,
		Category: f.Category,
		Price:    f.Price,
		Stock:    f.Stock,
		WeightKg: f.WeightKg,
	}
}

// cleanText drops markup but keeps the literal text, so "Kopi & Teh" is stored as typed.
// Unescaping can expose entity-encoded tags, so the text is sanitized again until it is stable.
func cleanText(s string) string {
	for range maxCleanPasses {
		next := html.UnescapeString(textPolicy.Sanitize(s))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	return strings.TrimSpace(textPolicy.Sanitize(s))
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
