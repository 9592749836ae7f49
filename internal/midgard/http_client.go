package midgard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout           = 30 * time.Second
	DefaultMaxRetries        = 10
	DefaultRetryDelay        = 2500 * time.Millisecond
	DefaultMaxDelay          = 240 * time.Second
	DefaultBackoffMult       = 2.0
	DefaultMaxJitter         = 5 * time.Second
	DefaultForbiddenCooldown = 30 * time.Second
	DefaultUserAgent         = "thorswap-lab/1.0 (+research; slow-crawl; respect-rate-limit)"
)

var (
	// ErrRequest is returned for non-retryable HTTP responses.
	ErrRequest = errors.New("midgard request failed")
	// ErrRetriesExhausted is returned when every retry failed.
	ErrRetriesExhausted = errors.New("max retries exceeded")
)

// HTTPClient implements Client over HTTP with retries, backoff with jitter,
// Retry-After support and base URL rotation on 403.
type HTTPClient struct {
	baseURLs          []string
	client            *http.Client
	maxRetries        int
	retryDelay        time.Duration
	maxDelay          time.Duration
	backoffMult       float64
	maxJitter         time.Duration
	forbiddenCooldown time.Duration
	userAgent         string
	logger            *zap.Logger

	mu      sync.Mutex
	urlIdx  int
	rng     *rand.Rand
	retries atomic.Int64
}

var _ Client = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithMaxJitter sets the upper bound of random delay added to each backoff.
func WithMaxJitter(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxJitter = d
	}
}

// WithForbiddenCooldown sets the minimum wait after HTTP 403.
func WithForbiddenCooldown(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.forbiddenCooldown = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *HTTPClient) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// WithJitterSeed makes jitter reproducible.
func WithJitterSeed(seed int64) ClientOption {
	return func(c *HTTPClient) {
		c.rng = rand.New(rand.NewSource(seed))
	}
}

// NewHTTPClient creates a Midgard client. Empty baseURLs uses DefaultBaseURLs.
func NewHTTPClient(baseURLs []string, opts ...ClientOption) *HTTPClient {
	urls := make([]string, 0, len(baseURLs))
	for _, u := range baseURLs {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		urls = append(urls, DefaultBaseURLs...)
	}

	c := &HTTPClient{
		baseURLs:          urls,
		client:            &http.Client{Timeout: DefaultTimeout},
		maxRetries:        DefaultMaxRetries,
		retryDelay:        DefaultRetryDelay,
		maxDelay:          DefaultMaxDelay,
		backoffMult:       DefaultBackoffMult,
		maxJitter:         DefaultMaxJitter,
		forbiddenCooldown: DefaultForbiddenCooldown,
		userAgent:         DefaultUserAgent,
		logger:            zap.NewNop(),
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the base URL the next request will use.
func (c *HTTPClient) BaseURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseURLs[c.urlIdx%len(c.baseURLs)]
}

func (c *HTTPClient) rotate() {
	if len(c.baseURLs) < 2 {
		return
	}
	c.mu.Lock()
	c.urlIdx++
	next := c.baseURLs[c.urlIdx%len(c.baseURLs)]
	c.mu.Unlock()
	observability.RecordBaseURLRotation()
	c.logger.Info("switching base url after 403", zap.String("base_url", next))
}

func (c *HTTPClient) jitter() time.Duration {
	if c.maxJitter <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.rng.Int63n(int64(c.maxJitter)))
}

// Actions fetches one page of /v2/actions.
func (c *HTTPClient) Actions(ctx context.Context, q ActionsQuery) (*ActionsPage, error) {
	params := url.Values{}
	if q.Type != "" {
		params.Set("type", q.Type)
	}
	if q.Asset != "" {
		params.Set("asset", q.Asset)
	}
	if q.TimestampSec > 0 {
		params.Set("timestamp", strconv.FormatInt(q.TimestampSec, 10))
	}
	params.Set("offset", strconv.Itoa(q.Offset))
	limit := q.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/v2/actions", params)
	if err != nil {
		return nil, err
	}

	var resp actionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	page := &ActionsPage{
		Raw:     resp.Actions,
		Actions: make([]domain.RawAction, len(resp.Actions)),
		Count:   resp.Count,
	}
	for i, raw := range resp.Actions {
		if err := json.Unmarshal(raw, &page.Actions[i]); err != nil {
			return nil, fmt.Errorf("unmarshal action %d: %w", i, err)
		}
	}
	return page, nil
}

// get performs a GET with retries and exponential backoff.
func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	var lastErr error
	var wait time.Duration

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		backoff := c.backoff(attempt)
		endpoint := c.BaseURL() + path + "?" + params.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		start := time.Now()
		resp, err := c.client.Do(req)
		observability.RecordMidgardLatency(path, time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			wait = c.capDelay(backoff + c.jitter())
			c.retrying("network", attempt, wait, lastErr)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			wait = c.capDelay(backoff + c.jitter())
			c.retrying("read", attempt, wait, lastErr)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}

		if !retryableStatus(resp.StatusCode) {
			return nil, fmt.Errorf("%w: status %d: %s", ErrRequest, resp.StatusCode, preview(respBody, 400))
		}

		lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, preview(respBody, 200))
		base := backoff
		if ra, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			base = ra
		} else if resp.StatusCode == http.StatusForbidden && base < c.forbiddenCooldown {
			base = c.forbiddenCooldown
		}
		wait = c.capDelay(base + c.jitter())
		c.retrying(strconv.Itoa(resp.StatusCode), attempt, wait, lastErr)
		if resp.StatusCode == http.StatusForbidden {
			c.rotate()
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

func (c *HTTPClient) backoff(attempt int) time.Duration {
	d := float64(c.retryDelay)
	for i := 0; i < attempt; i++ {
		d *= c.backoffMult
		if d > float64(c.maxDelay) {
			return c.maxDelay
		}
	}
	return time.Duration(d)
}

func (c *HTTPClient) capDelay(d time.Duration) time.Duration {
	if d > c.maxDelay {
		return c.maxDelay
	}
	return d
}

// Retries returns the number of retried requests since creation.
func (c *HTTPClient) Retries() int64 {
	return c.retries.Load()
}

func (c *HTTPClient) retrying(status string, attempt int, wait time.Duration, err error) {
	c.retries.Add(1)
	observability.RecordCrawlRetry(status)
	c.logger.Warn("midgard request failed, cooling down",
		zap.String("status", status),
		zap.Int("attempt", attempt+1),
		zap.Duration("cooldown", wait),
		zap.Error(err))
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusForbidden, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

func preview(b []byte, n int) string {
	if len(b) == 0 {
		return "(empty)"
	}
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
