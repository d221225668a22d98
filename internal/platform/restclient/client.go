package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"finitefield.org/storefront/internal/domain"
)

const (
	instrumentationName = "finitefield.org/storefront/internal/platform/restclient"
	requestIDHeader     = "X-Request-ID"
	maxErrorBody        = 256
	maxResponseBody     = 4 << 20
)

// HTTPClient matches the subset of http.Client used by Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client issues JSON requests against a single remote service and maps failures onto the
// domain error taxonomy. It never retries.
type Client struct {
	service  string
	base     *url.URL
	client   HTTPClient
	logger   *zap.Logger
	tracer   trace.Tracer
	requests metric.Int64Counter
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport. The caller owns its timeout.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithLogger attaches a logger used for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout installs an http.Client with the given timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.client = &http.Client{Timeout: timeout}
	}
}

// New constructs a Client for the named service rooted at baseURL.
func New(service, baseURL string, opts ...Option) (*Client, error) {
	service = strings.TrimSpace(service)
	if service == "" {
		return nil, errors.New("restclient: service name is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("restclient: %s base URL is required", service)
	}
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("restclient: parse %s base URL: %w", service, err)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	c := &Client{
		service: service,
		base:    parsed,
		client:  http.DefaultClient,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}

	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"storefront.remote.requests",
		metric.WithDescription("Outbound requests to remote services by outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("restclient: register counter: %w", err)
	}
	c.requests = counter
	return c, nil
}

// Service returns the name the client was constructed with.
func (c *Client) Service() string {
	return c.service
}

// Do sends the request and returns the response body of a 2xx reply. When payload is non-nil
// it is encoded as the JSON request body. op names the calling operation in errors.
func (c *Client) Do(ctx context.Context, op, method, endpoint string, payload any) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, c.service+" "+method+" "+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := c.newJSONRequest(ctx, method, endpoint, payload)
	if err != nil {
		span.SetStatus(codes.Error, "build request")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.full", req.URL.String()),
		attribute.String("storefront.remote.service", c.service),
	)

	logger := c.logger.With(
		zap.String("service", c.service),
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", req.URL.String()),
		zap.String("request_id", req.Header.Get(requestIDHeader)),
	)

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		c.record(ctx, method, "network_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		logger.Warn("remote request failed", zap.Duration("latency", latency), zap.Error(err))
		return nil, &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	logger = logger.With(zap.Int("status", resp.StatusCode), zap.Duration("latency", latency))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.record(ctx, method, "remote_error")
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		body := drainError(resp.Body)
		logger.Warn("remote request rejected", zap.String("body", body))
		return nil, &domain.RemoteError{Op: op, Status: resp.StatusCode, Body: body}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		c.record(ctx, method, "network_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		logger.Warn("remote response truncated", zap.Error(err))
		return nil, &domain.NetworkError{Op: op, Err: err}
	}
	if len(body) > maxResponseBody {
		c.record(ctx, method, "decode_error")
		span.SetStatus(codes.Error, "response too large")
		logger.Warn("remote response exceeds limit", zap.Int("limit", maxResponseBody))
		return nil, &domain.DecodeError{Op: op, Err: fmt.Errorf("response exceeds limit of %d bytes", maxResponseBody)}
	}

	c.record(ctx, method, "ok")
	span.SetStatus(codes.Ok, "")
	logger.Debug("remote request completed", zap.Int("bytes", len(body)))
	return body, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, endpoint string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(payload); err != nil {
			return nil, fmt.Errorf("restclient: encode %s payload: %w", c.service, err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(endpoint), body)
	if err != nil {
		return nil, fmt.Errorf("restclient: build %s request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(requestIDHeader, uuid.NewString())
	return req, nil
}

func (c *Client) resolve(endpoint string) string {
	if endpoint == "" {
		return c.base.String()
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	ref := &url.URL{Path: strings.TrimPrefix(endpoint, "/")}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) record(ctx context.Context, method, outcome string) {
	c.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", c.service),
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
}

func drainError(r io.Reader) string {
	if r == nil {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
