package logistics

import (
	"context"
	"math"
	"strings"

	"finitefield.org/storefront/internal/domain"
)

// Service exposes the tariff operations of the logistics service.
type Service interface {
	ListDestinations(ctx context.Context) ([]domain.Destination, error)
	Quote(ctx context.Context, destination string, weightKg float64) (domain.ShippingQuote, error)
}

func validateQuote(destination string, weightKg float64) error {
	if strings.TrimSpace(destination) == "" {
		return domain.InvalidArgument("destination is required")
	}
	if math.IsNaN(weightKg) || math.IsInf(weightKg, 0) || weightKg <= 0 {
		return domain.InvalidArgument("weight must be positive, got %v", weightKg)
	}
	return nil
}
