package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pricescout/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Defaults applied when ClientConfig leaves a value unset
const (
	DefaultBaseURL           = "https://api.example.com/products"
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerSecond = 1.0
	DefaultBurst             = 5
	DefaultMaxAttempts       = 3
)

// maxBodySize caps how much of a provider response is read
const maxBodySize = 5 << 20

// ClientConfig holds configuration for the provider client
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxAttempts       int
}

// Client handles communication with the external product search API
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	maxAttempts int
	rateLimiter *rate.Limiter
	logger      *zap.Logger
	debug       bool
}

// NewClient creates a new provider client
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		maxAttempts: cfg.MaxAttempts,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:      logger.Named("provider"),
	}
}

// SetDebug enables logging of every request URL and raw response body
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// exponentialBackoff returns the wait before the next attempt: 500ms, 1s, 2s, ...
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// buildURL templates the search endpoint with the encoded product name
func (c *Client) buildURL(query string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid provider base URL %q: %w", c.baseURL, err)
	}

	params := u.Query()
	params.Set("search", query)
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	// spaces as %20; a literal "+" is already escaped to %2B by Encode
	u.RawQuery = strings.ReplaceAll(params.Encode(), "+", "%20")

	return u.String(), nil
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "PriceScout/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}

	return resp, nil
}

// retryable reports whether a status code is worth another attempt
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Search queries the provider for a product name. An empty result list is a
// valid response, not an error.
func (c *Client) Search(ctx context.Context, query string) (*domain.SearchResponse, error) {
	reqURL, err := c.buildURL(query)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("search requested", zap.String("query", query))
	if c.debug {
		c.logger.Debug("request url", zap.String("url", reqURL))
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, exponentialBackoff(attempt-1)); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			c.logger.Warn("rate limiter wait failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			c.logger.Warn("request failed", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: reading body: %v", domain.ErrProviderFailure, err)
			continue
		}

		if c.debug {
			c.logger.Debug("response body", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		}

		if resp.StatusCode != http.StatusOK {
			c.logger.Warn("provider returned non-200",
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode))
			lastErr = fmt.Errorf("%w: status %d", domain.ErrProviderFailure, resp.StatusCode)
			if retryable(resp.StatusCode) {
				continue
			}
			return nil, lastErr
		}

		var searchResp domain.SearchResponse
		if err := json.Unmarshal(body, &searchResp); err != nil {
			c.logger.Warn("response decode failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", domain.ErrProviderPayload, err)
		}

		if searchResp.Error != "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrProviderError, searchResp.Error)
		}

		c.logger.Info("search completed",
			zap.String("query", query),
			zap.Int("results", len(searchResp.OrganicResults)))
		return &searchResp, nil
	}

	c.logger.Error("all attempts failed", zap.String("query", query), zap.Error(lastErr))
	return nil, lastErr
}
