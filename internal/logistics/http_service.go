package logistics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"finitefield.org/storefront/internal/domain"
	"finitefield.org/storefront/internal/platform/restclient"
)

const (
	tariffsEndpoint   = "/tariffs"
	calculateEndpoint = "/calculate"
)

// HTTPService implements Service backed by the logistics REST API.
type HTTPService struct {
	client *restclient.Client
}

// NewHTTPService constructs a Service that talks to the logistics API at baseURL.
func NewHTTPService(baseURL string, opts ...restclient.Option) (*HTTPService, error) {
	client, err := restclient.New("logistics", baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &HTTPService{client: client}, nil
}

// ListDestinations fetches the destinations with a configured tariff.
func (s *HTTPService) ListDestinations(ctx context.Context) ([]domain.Destination, error) {
	const op = "logistics: list destinations"
	body, err := s.client.Do(ctx, op, http.MethodGet, tariffsEndpoint, nil)
	if err != nil {
		return nil, err
	}
	return restclient.DecodeList[domain.Destination](op, body)
}

type quoteRequest struct {
	Destination string  `json:"destination"`
	WeightKg    float64 `json:"weight_kg"`
}

type quotePayload struct {
	TotalCost json.RawMessage `json:"total_cost"`
	ETA       json.RawMessage `json:"eta"`
}

// Quote asks the logistics service for the cost of shipping weightKg to destination.
// Arguments are validated before any request is sent.
func (s *HTTPService) Quote(ctx context.Context, destination string, weightKg float64) (domain.ShippingQuote, error) {
	const op = "logistics: quote"
	destination = strings.TrimSpace(destination)
	if err := validateQuote(destination, weightKg); err != nil {
		return domain.ShippingQuote{}, err
	}

	body, err := s.client.Do(ctx, op, http.MethodPost, calculateEndpoint, quoteRequest{
		Destination: destination,
		WeightKg:    weightKg,
	})
	if err != nil {
		return domain.ShippingQuote{}, err
	}

	var payload quotePayload
	ok, err := restclient.DecodeObject(op, body, &payload)
	if err != nil {
		return domain.ShippingQuote{}, err
	}
	if !ok {
		return domain.ShippingQuote{}, &domain.DecodeError{Op: op, Err: errors.New("empty response body")}
	}

	cost, err := parseCost(payload.TotalCost)
	if err != nil {
		return domain.ShippingQuote{}, &domain.DecodeError{Op: op, Err: err}
	}
	return domain.ShippingQuote{TotalCost: cost, ETA: parseETA(payload.ETA)}, nil
}

// parseCost accepts a JSON number or a numeric string. Missing or null values are zero.
func parseCost(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		if strings.TrimSpace(s) == "" {
			return 0, nil
		}
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}

// parseETA accepts a string or a number of days; anything else is treated as missing.
func parseETA(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
