// Package shopify executes Admin GraphQL requests against a shop.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/harrylevesque/orderscan/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	defaultAPIVersion = "2025-10"
	defaultTimeout    = 30 * time.Second
	defaultRetryDelay = 500 * time.Millisecond
	maxResponseBytes  = 8 << 20
)

// Credentials identify the shop and the token a request runs as.
type Credentials struct {
	Shop        string
	AccessToken string
}

// ClientConfig configures a Client.
type ClientConfig struct {
	APIVersion string
	// BaseURL replaces https://{shop}; the shop is still sent in a header.
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	// RequestsPerSecond is the per-shop ceiling; zero disables the limiter.
	RequestsPerSecond float64
	Logger            *utils.Logger
	HTTPClient        *http.Client
}

// Client talks to the Admin GraphQL API.
type Client struct {
	httpClient *http.Client
	apiVersion string
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	rps        float64
	logger     *utils.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	delay := cfg.RetryDelay
	if delay == 0 {
		delay = defaultRetryDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Client{
		httpClient: httpClient,
		apiVersion: version,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: cfg.MaxRetries,
		retryDelay: delay,
		rps:        cfg.RequestsPerSecond,
		logger:     logger,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// APIVersion returns the Admin API version requests are made against.
func (c *Client) APIVersion() string { return c.apiVersion }

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors GraphQLErrors   `json:"errors"`
}

// Execute runs query with variables and decodes the "data" member into out.
// Throttling and 429 responses are retried with backoff; 5xx responses are
// retried for queries only.
func (c *Client) Execute(ctx context.Context, creds Credentials, query string, variables map[string]interface{}, out interface{}) error {
	if creds.Shop == "" || creds.AccessToken == "" {
		return errors.New("shopify: missing shop credentials")
	}
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	op := operationName(query)
	mutation := isMutation(query)
	start := time.Now()
	delay := c.retryDelay
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.FromContext(ctx).WithFields(logrus.Fields{
				"operation": op,
				"attempt":   attempt,
				"error":     lastErr,
			}).Warn("retrying shopify request")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * 1.5)
		}

		lastErr = c.do(ctx, creds, op, body, out)
		if lastErr == nil || !retryable(lastErr, mutation) {
			break
		}
	}

	status := "ok"
	if lastErr != nil {
		status = "error"
	}
	upstreamRequests.WithLabelValues(op, status).Inc()
	upstreamDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return lastErr
}

func (c *Client) do(ctx context.Context, creds Credentials, op string, body []byte, out interface{}) error {
	if err := c.limiter(creds.Shop).Wait(ctx); err != nil {
		return err
	}

	endpoint := c.shopURL(creds.Shop) + "/admin/api/" + c.apiVersion + "/graphql.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", creds.AccessToken)
	req.Header.Set(shopHeader, creds.Shop)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{Status: resp.StatusCode, Body: truncate(string(data), 512)}
	}

	if cost := gjson.GetBytes(data, "extensions.cost"); cost.Exists() {
		c.logger.FromContext(ctx).WithFields(logrus.Fields{
			"operation":  op,
			"shop":       creds.Shop,
			"requested":  cost.Get("requestedQueryCost").Int(),
			"actual":     cost.Get("actualQueryCost").Int(),
			"available":  cost.Get("throttleStatus.currentlyAvailable").Int(),
			"restore_ps": cost.Get("throttleStatus.restoreRate").Int(),
		}).Debug("shopify query cost")
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	// GraphQL can fail with HTTP 200.
	if len(envelope.Errors) > 0 {
		return envelope.Errors
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", op, err)
	}
	return nil
}

// shopHeader lets a proxy behind BaseURL route to the right shop.
const shopHeader = "X-Shopify-Shop-Domain"

func (c *Client) shopURL(shop string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "https://" + shop
}

func (c *Client) limiter(shop string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[shop]
	if !ok {
		if c.rps <= 0 {
			l = rate.NewLimiter(rate.Inf, 1)
		} else {
			burst := int(c.rps)
			if burst < 1 {
				burst = 1
			}
			l = rate.NewLimiter(rate.Limit(c.rps), burst)
		}
		c.limiters[shop] = l
	}
	return l
}

// operationName returns the name after "query"/"mutation", for logs and
// metric labels.
func operationName(query string) string {
	fields := strings.Fields(query)
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "query" || fields[i] == "mutation" {
			name := fields[i+1]
			if j := strings.IndexAny(name, "({"); j >= 0 {
				name = name[:j]
			}
			if name != "" {
				return name
			}
		}
	}
	return "anonymous"
}

func isMutation(query string) bool {
	return strings.HasPrefix(strings.TrimSpace(query), "mutation")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}

var (
	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orderscan",
			Subsystem: "shopify",
			Name:      "requests_total",
			Help:      "Admin GraphQL requests by operation and outcome.",
		},
		[]string{"operation", "status"},
	)
	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "orderscan",
			Subsystem: "shopify",
			Name:      "request_duration_seconds",
			Help:      "Admin GraphQL request duration including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"operation"},
	)
)

// Collectors returns the client's metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{upstreamRequests, upstreamDuration}
}
