package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fulfillment/backend/internal/domain/carrier"
	"github.com/fulfillment/backend/internal/infrastructure/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 10 * 1024 * 1024

const tracerName = "github.com/fulfillment/backend/internal/infrastructure/upstream"

// ClientConfig holds settings for the carrier API client
type ClientConfig struct {
	// BaseURL is used for stores without their own API base URL
	BaseURL      string
	CarriersPath string
	Timeout      time.Duration
}

// CarrierAPIClient implements carrier.Fetcher against the third-party carrier listing API.
// It performs exactly one GET per call and never retries.
type CarrierAPIClient struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *zap.Logger
	tracer     trace.Tracer
}

// ClientOption configures a CarrierAPIClient
type ClientOption func(*CarrierAPIClient)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(a *CarrierAPIClient) {
		a.httpClient = c
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ClientOption {
	return func(a *CarrierAPIClient) {
		a.logger = l
	}
}

// NewCarrierAPIClient creates a client. A zero Timeout defaults to 30s.
func NewCarrierAPIClient(cfg ClientConfig, opts ...ClientOption) *CarrierAPIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CarriersPath == "" {
		cfg.CarriersPath = "/carriers"
	}

	c := &CarrierAPIClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchCarriers lists the carriers offered to store.
// Priorities on the returned candidates are their 1-based position in the response.
func (c *CarrierAPIClient) FetchCarriers(ctx context.Context, store carrier.Store) ([]carrier.Candidate, error) {
	if store.Credentials.IsEmpty() {
		return nil, fmt.Errorf("%w: store %s", carrier.ErrMissingCredentials, store.Key)
	}

	endpoint, err := c.endpoint(store)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "upstream.FetchCarriers", trace.WithAttributes(
		attribute.String("store.key", store.Key),
		attribute.String("http.url", endpoint),
	))
	defer span.End()

	body, err := c.doRequest(ctx, store, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	candidates, err := ParseCarriers(body)
	if err != nil {
		ue := &UpstreamError{Kind: KindInvalidResponse, StoreKey: store.Key, Err: err}
		span.SetStatus(codes.Error, ue.Error())
		return nil, ue
	}

	span.SetAttributes(attribute.Int("carriers.count", len(candidates)))
	logger.WithLogger(ctx, c.logger).Debug("Fetched carriers from upstream",
		zap.String("store_key", store.Key),
		zap.Int("count", len(candidates)),
	)
	return candidates, nil
}

func (c *CarrierAPIClient) endpoint(store carrier.Store) (string, error) {
	base := strings.TrimSpace(store.APIBaseURL)
	if base == "" {
		base = strings.TrimSpace(c.config.BaseURL)
	}
	if base == "" {
		return "", fmt.Errorf("%w: store %s", ErrBaseURLNotConfigured, store.Key)
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(c.config.CarriersPath, "/"), nil
}

func (c *CarrierAPIClient) doRequest(ctx context.Context, store carrier.Store, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	creds := store.Credentials
	if token := strings.TrimSpace(creds.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.SetBasicAuth(creds.APIKey, creds.APISecret)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		ue := transportError(store.Key, err)
		logger.WithLogger(ctx, c.logger).Warn("Carrier API request failed",
			zap.String("store_key", store.Key),
			zap.String("kind", string(ue.Kind)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, ue
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, transportError(store.Key, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ue := statusError(store.Key, resp.StatusCode)
		logger.WithLogger(ctx, c.logger).Warn("Carrier API returned error status",
			zap.String("store_key", store.Key),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(ue.Kind)),
		)
		return nil, ue
	}
	return body, nil
}

var _ carrier.Fetcher = (*CarrierAPIClient)(nil)
