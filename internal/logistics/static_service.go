package logistics

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"finitefield.org/storefront/internal/domain"
)

//go:embed fixtures/tariffs.yaml
var seedTariffs []byte

// Tariff prices shipments to one destination: base cost plus a rate per started kilogram.
type Tariff struct {
	Destination string  `yaml:"destination"`
	RatePerKg   float64 `yaml:"rate_per_kg"`
	BaseCost    float64 `yaml:"base_cost"`
	ETA         string  `yaml:"eta"`
}

// StaticService quotes from an in-memory tariff table.
type StaticService struct {
	tariffs []Tariff
}

// NewStaticService constructs a StaticService over the provided tariffs.
func NewStaticService(tariffs []Tariff) *StaticService {
	out := make([]Tariff, len(tariffs))
	copy(out, tariffs)
	return &StaticService{tariffs: out}
}

// NewSeededStaticService constructs a StaticService populated with the embedded tariff table.
func NewSeededStaticService() (*StaticService, error) {
	var fixture struct {
		Tariffs []Tariff `yaml:"tariffs"`
	}
	if err := yaml.Unmarshal(seedTariffs, &fixture); err != nil {
		return nil, fmt.Errorf("logistics: parse fixture: %w", err)
	}
	return NewStaticService(fixture.Tariffs), nil
}

// ListDestinations returns the configured destinations in table order.
func (s *StaticService) ListDestinations(context.Context) ([]domain.Destination, error) {
	out := make([]domain.Destination, 0, len(s.tariffs))
	for _, t := range s.tariffs {
		out = append(out, domain.Destination{Name: t.Destination})
	}
	return out, nil
}

// Quote prices the shipment, answering 404 for destinations without a tariff.
func (s *StaticService) Quote(_ context.Context, destination string, weightKg float64) (domain.ShippingQuote, error) {
	destination = strings.TrimSpace(destination)
	if err := validateQuote(destination, weightKg); err != nil {
		return domain.ShippingQuote{}, err
	}
	for _, t := range s.tariffs {
		if !strings.EqualFold(t.Destination, destination) {
			continue
		}
		billable := decimal.NewFromFloat(weightKg).Ceil()
		cost := decimal.NewFromFloat(t.BaseCost).Add(decimal.NewFromFloat(t.RatePerKg).Mul(billable))
		return domain.ShippingQuote{TotalCost: cost.InexactFloat64(), ETA: t.ETA}, nil
	}
	return domain.ShippingQuote{}, &domain.RemoteError{
		Op:     "logistics: quote",
		Status: http.StatusNotFound,
		Body:   "destination not found",
	}
}
