package platform

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/narwhalmedia/simulcast/pkg/config"
	"github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

const (
	defaultRetryAttempts  = 5
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultHTTPTimeout    = 10 * time.Second
	maxErrorBody          = 512
)

// RetryPolicy bounds the exponential backoff applied to transient fetch failures.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy returns 5 attempts backing off from 1s up to 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  defaultRetryAttempts,
		BaseDelay: defaultRetryBaseDelay,
		MaxDelay:  defaultRetryMaxDelay,
	}
}

// RetryPolicyFromConfig reads the policy from the ingestion settings, falling back to
// the defaults for unset values.
func RetryPolicyFromConfig(cfg config.IngestionConfig) RetryPolicy {
	policy := DefaultRetryPolicy()
	if cfg.RetryAttempts > 0 {
		policy.Attempts = cfg.RetryAttempts
	}
	if cfg.RetryBaseDelay > 0 {
		policy.BaseDelay = cfg.RetryBaseDelay
	}
	if cfg.RetryMaxDelay > 0 {
		policy.MaxDelay = cfg.RetryMaxDelay
	}
	return policy
}

// backoff returns the delay before the attempt following attempt (1-based):
// base, base*2, base*4, ... capped at the max delay.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if delay > p.MaxDelay/2 {
			delay = p.MaxDelay
			break
		}
		delay *= 2
	}
	return p.cap(delay)
}

func (p RetryPolicy) cap(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// StatusError is a non-2xx feed response.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// FeedClient fetches JSON documents from one platform feed.
type FeedClient struct {
	platform   models.Platform
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      RetryPolicy
	sleep      func(ctx context.Context, d time.Duration) error
	logger     interfaces.Logger
}

// ClientOption customizes a FeedClient.
type ClientOption func(*FeedClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *FeedClient) {
		c.httpClient = client
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *FeedClient) {
		c.sleep = sleep
	}
}

// NewFeedClient creates a feed client for a platform.
func NewFeedClient(platform models.Platform, cfg config.PlatformConfig, retry RetryPolicy, logger interfaces.Logger, opts ...ClientOption) *FeedClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if retry.Attempts <= 0 {
		retry.Attempts = 1
	}
	c := &FeedClient{
		platform:   platform,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		sleep:      sleepContext,
		logger:     logger.WithFields(interfaces.String("platform", string(platform))),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON fetches path and decodes the body into out. Transient failures are retried
// with backoff; when retries are exhausted the last failure is returned as a
// transient error.
func (c *FeedClient) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= c.retry.Attempts; attempt++ {
		err := c.getOnce(ctx, path, query, out)
		if err == nil {
			return nil
		}

		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry {
			return err
		}
		lastErr = err
		if attempt == c.retry.Attempts {
			break
		}

		c.logger.Warn("Feed request failed, retrying",
			interfaces.String("path", path),
			interfaces.Int("attempt", attempt),
			interfaces.Int("max_attempts", c.retry.Attempts),
			interfaces.Duration("backoff", delay),
			interfaces.Error(err))
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return errors.Transient(fmt.Sprintf("%s %s failed after %d attempts", c.platform, path, c.retry.Attempts), lastErr)
}

func (c *FeedClient) getOnce(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *FeedClient) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if ctx.Err() != nil {
		return 0, false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *StatusError
	if stderrors.As(err, &statusErr) {
		if !statusErr.Temporary() {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return c.retry.cap(statusErr.RetryAfter), true
		}
		return c.retry.backoff(attempt), true
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return c.retry.backoff(attempt), true
	}

	// Connection resets and refusals surface as url.Error.
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		return c.retry.backoff(attempt), true
	}

	return 0, false
}

// parseRetryAfter accepts either delta seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
