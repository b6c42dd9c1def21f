package overfast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://overfast-api.tekrop.fr"

	// UserAgent identifies this tool to the upstream API
	UserAgent = "OW-Stat-Tracker/1.0"

	DefaultMaxRetries = 5
	InitialDelay      = 1 * time.Second
	MaxDelay          = 30 * time.Second
	RequestTimeout    = 20 * time.Second
)

// Sleeper blocks for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// RetryEvent describes a 429 response about to be waited out
type RetryEvent struct {
	URL        string        `json:"url"`
	Attempt    int           `json:"attempt"`
	MaxRetries int           `json:"maxRetries"`
	Wait       time.Duration `json:"wait"`
	FromHeader bool          `json:"fromHeader"`
}

// Client is a rate-limit-aware OverFast API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	sleep      Sleeper
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL sets a custom base URL (useful for testing)
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithMaxRetries sets the attempt budget (minimum 1)
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		c.maxRetries = n
	}
}

// WithSleeper replaces the backoff wait, mainly so tests don't sleep
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleep = s
	}
}

// NewClient creates a new OverFast client with the given options
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: RequestTimeout,
		},
		maxRetries: DefaultMaxRetries,
		sleep:      timerSleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BackoffDelay returns the computed wait before the n-th retry (1-based):
// min(InitialDelay * 2^(n-1), MaxDelay).
func BackoffDelay(n int) time.Duration {
	delay := InitialDelay
	for i := 1; i < n; i++ {
		delay = nextDelay(delay)
	}
	return delay
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > MaxDelay {
		return MaxDelay
	}
	return d
}

// Get issues a GET against baseURL+path and returns the raw JSON body.
// 429 responses are retried up to the attempt budget, waiting for the
// server's Retry-After seconds when valid and the exponential delay otherwise.
// Any other non-2xx status fails immediately.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	delay := InitialDelay
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.do(ctx, u)
		if err != nil {
			return nil, &RequestError{URL: u, Err: err}
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return readJSON(u, resp)
		}

		retryAfter := resp.Header.Get("Retry-After")
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		wait, fromHeader := delay, false
		if d, ok := parseRetryAfter(retryAfter); ok {
			wait, fromHeader = d, true
		}

		log.Printf("[overfast] 429 from %s (attempt %d/%d), waiting %s", u, attempt, c.maxRetries, wait)
		notifyRetry(ctx, RetryEvent{
			URL:        u,
			Attempt:    attempt,
			MaxRetries: c.maxRetries,
			Wait:       wait,
			FromHeader: fromHeader,
		})

		if err := c.sleep(ctx, wait); err != nil {
			return nil, &RequestError{URL: u, Err: err}
		}

		delay = nextDelay(delay)
	}

	return nil, &RateLimitError{URL: u, Attempts: c.maxRetries}
}

func (c *Client) do(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

func readJSON(u string, resp *http.Response) (json.RawMessage, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &RequestError{URL: u, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{URL: u, StatusCode: resp.StatusCode, Err: err}
	}
	if !json.Valid(body) {
		return nil, &RequestError{URL: u, StatusCode: resp.StatusCode, Err: ErrMalformedJSON}
	}

	return json.RawMessage(body), nil
}

// parseRetryAfter accepts only a non-negative integer number of seconds.
// HTTP-date values and anything else fall back to the computed delay.
func parseRetryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil || secs > math.MaxInt64/int64(time.Second) {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
