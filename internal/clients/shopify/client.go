package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"bulk-inventory-service/internal/clients"
)

const (
	DefaultAPIVersion = "2024-07"

	// lookupCandidates bounds how many search hits a SKU lookup inspects
	lookupCandidates = 10
	levelsPerItem    = 250
	defaultPageSize  = 50
	maxErrorBody     = 2048
)

// ErrInvalidShop is returned for a shop that is not a myshopify.com domain
var ErrInvalidShop = errors.New("invalid shop domain")

// shopDomainPattern is the only host shape requests are sent to
var shopDomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.myshopify\.com$`)

// Config tunes the transport of a Client
type Config struct {
	APIVersion        string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	PageSize          int
	Retry             *clients.RetryConfig
	BreakerThreshold  int
	BreakerReset      time.Duration
	// BaseURL replaces https://<shop> when set
	BaseURL string
}

// DefaultConfig returns the transport settings used in production
func DefaultConfig() Config {
	return Config{
		APIVersion:        DefaultAPIVersion,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
		Burst:             1,
		PageSize:          defaultPageSize,
		Retry:             clients.DefaultRetryConfig(),
		BreakerThreshold:  5,
		BreakerReset:      30 * time.Second,
	}
}

// Client talks to one shop through the Admin GraphQL API
type Client struct {
	httpClient  *http.Client
	endpoint    string
	shop        string
	accessToken string
	pageSize    int
	rateLimiter *rate.Limiter
	retrier     *clients.Retrier
	breaker     *clients.CircuitBreaker
	logger      *logrus.Entry
}

var _ clients.CommerceDirectory = (*Client)(nil)

// NewClient creates a client for shop using an Admin API access token
func NewClient(shop, accessToken string, cfg Config, logger *logrus.Logger) (*Client, error) {
	raw := shop
	shop = NormalizeShopDomain(shop)
	if shop == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidShop, raw)
	}
	if accessToken == "" {
		return nil, fmt.Errorf("missing access token for %s", shop)
	}

	defaults := DefaultConfig()
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaults.APIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.BreakerReset <= 0 {
		cfg.BreakerReset = defaults.BreakerReset
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://" + shop
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		endpoint:    fmt.Sprintf("%s/admin/api/%s/graphql.json", strings.TrimRight(baseURL, "/"), cfg.APIVersion),
		shop:        shop,
		accessToken: accessToken,
		pageSize:    cfg.PageSize,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		retrier:     clients.NewRetrier(cfg.Retry),
		breaker:     clients.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerReset),
		logger:      logger.WithFields(logrus.Fields{"component": "shopify_client", "shop": shop}),
	}, nil
}

// NormalizeShopDomain turns "my-store", "https://my-store.myshopify.com/" or
// "MY-STORE.myshopify.com" into "my-store.myshopify.com". Anything that does
// not end up as a myshopify.com host, such as a custom domain, an IP or a
// host with a port or path, yields "".
func NormalizeShopDomain(shop string) string {
	shop = strings.ToLower(strings.TrimSpace(shop))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	shop = strings.TrimRight(shop, "/")
	if shop == "" {
		return ""
	}
	if !strings.Contains(shop, ".") {
		shop += ".myshopify.com"
	}
	if !shopDomainPattern.MatchString(shop) {
		return ""
	}
	return shop
}

// Shop returns the normalized shop domain
func (c *Client) Shop() string {
	return c.shop
}

type graphqlRequestBody struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlResponseBody struct {
	Data   json.RawMessage       `json:"data"`
	Errors clients.GraphQLErrors `json:"errors"`
}

// graphqlRequest posts a query and decodes its data into out. Throttling and
// transient failures are retried; a run of failures opens the breaker.
func (c *Client) graphqlRequest(ctx context.Context, operation, query string, variables map[string]interface{}, out interface{}) error {
	if !c.breaker.Allow() {
		return clients.ErrCircuitOpen
	}

	payload, err := json.Marshal(graphqlRequestBody{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", operation, err)
	}

	var data json.RawMessage
	result := c.retrier.Do(ctx, operation, func(ctx context.Context) clients.Attempt {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return clients.Attempt{Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return clients.Attempt{Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Shopify-Access-Token", c.accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return clients.Attempt{Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return clients.Attempt{Err: fmt.Errorf("failed to read response: %w", err)}
		}

		if resp.StatusCode >= 400 {
			if len(body) > maxErrorBody {
				body = body[:maxErrorBody]
			}
			return clients.Attempt{
				StatusCode: resp.StatusCode,
				RetryAfter: clients.ParseRetryAfter(resp),
				Err:        &clients.APIError{StatusCode: resp.StatusCode, Body: string(body)},
			}
		}

		var envelope graphqlResponseBody
		if err := json.Unmarshal(body, &envelope); err != nil {
			return clients.Attempt{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse %s response: %w", operation, err)}
		}
		if len(envelope.Errors) > 0 {
			if envelope.Errors.Throttled() {
				return clients.Attempt{StatusCode: http.StatusTooManyRequests, Err: clients.ErrThrottled}
			}
			return clients.Attempt{StatusCode: resp.StatusCode, Err: envelope.Errors}
		}

		data = envelope.Data
		return clients.Attempt{StatusCode: resp.StatusCode}
	})

	if result.LastError != nil {
		if isPlatformFailure(result.LastError) {
			c.breaker.RecordFailure()
		}
		c.logger.WithError(result.LastError).WithFields(logrus.Fields{
			"operation": operation,
			"attempts":  result.Attempts,
		}).Warn("Shopify request failed")
		return result.LastError
	}
	c.breaker.RecordSuccess()

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", operation, err)
	}
	return nil
}

// isPlatformFailure separates outages from request-specific errors, which
// must not trip the breaker
func isPlatformFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var gqlErrs clients.GraphQLErrors
	if errors.As(err, &gqlErrs) {
		return false
	}
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}
