package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/vkuzmenko/dexleads/internal/model"
	"github.com/vkuzmenko/dexleads/internal/ratelimit"
	"github.com/vkuzmenko/dexleads/internal/util"
)

const maxResponseBytes = 4 << 20

// sleepFunc is the backoff sleep used between retries (injectable for tests).
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Client performs rate-limited, retried HTTP calls to the upstream services.
// Every call is tagged with a service name that selects its token bucket and
// circuit breaker.
type Client struct {
	httpClient *http.Client
	limits     *ratelimit.Group
	userAgent  string
	maxRetries int

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	health   map[string]*ServiceHealth
}

// ServiceHealth tallies the HTTP attempts made against one upstream service
// and how many of them failed.
type ServiceHealth struct {
	Attempts int64 `json:"attempts"`
	Errors   int64 `json:"errors"`
}

// NewClient creates a fetch client sharing the given limiter group.
func NewClient(cfg model.HTTPConfig, limits *ratelimit.Group) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		limits:     limits,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
		health:     make(map[string]*ServiceHealth),
	}
}

// recordAttempt counts one round trip against the service's health tally.
func (c *Client) recordAttempt(service string, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.health[service]
	if h == nil {
		h = &ServiceHealth{}
		c.health[service] = h
	}
	h.Attempts++
	if failed {
		h.Errors++
	}
}

// Health returns a copy of the per-service attempt and error tallies,
// suitable for a shutdown summary log.
func (c *Client) Health() map[string]ServiceHealth {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]ServiceHealth, len(c.health))
	for service, h := range c.health {
		out[service] = *h
	}
	return out
}

// breaker returns (creating if needed) the circuit breaker for a service.
func (c *Client) breaker(service string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[service]; ok {
		return cb
	}

	settings := gobreaker.Settings{Name: service}
	settings.Interval = 60 * time.Second
	settings.Timeout = 60 * time.Second
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 5
	}
	cb := gobreaker.NewCircuitBreaker(settings)
	c.breakers[service] = cb
	return cb
}

// Do executes the request under the service's rate limit, circuit breaker,
// and retry policy. On success the response body is fully read and returned;
// on failure the returned error is always a *Error.
func (c *Client) Do(ctx context.Context, service string, req *http.Request) ([]byte, error) {
	var lastErr *Error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepFunc(ctx, lastErr.backoff(attempt)); err != nil {
				return nil, classifyContext(service, err)
			}
			log.Debug().Str("service", service).Int("attempt", attempt+1).Msg("retrying fetch")
		}

		if err := c.limits.Wait(ctx, service); err != nil {
			return nil, classifyContext(service, err)
		}

		body, fetchErr := c.attempt(ctx, service, req)
		c.recordAttempt(service, fetchErr != nil)
		if fetchErr == nil {
			return body, nil
		}
		if fetchErr.Kind == KindClientError || fetchErr.Kind == KindCanceled {
			// Rejections and shutdown cancellation consume no retry budget.
			return nil, fetchErr
		}
		lastErr = fetchErr
	}

	return nil, lastErr
}

// attempt performs one HTTP round trip through the circuit breaker and
// classifies the outcome.
func (c *Client) attempt(ctx context.Context, service string, req *http.Request) ([]byte, *Error) {
	result, err := c.breaker(service).Execute(func() (interface{}, error) {
		r := req.Clone(ctx)
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", c.userAgent)
		}
		if r.Header.Get("Accept") == "" {
			r.Header.Set("Accept", "application/json")
		}
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, &Error{Service: service, Kind: KindNetwork, Err: err}
			}
			r.Body = body
		}

		resp, err := c.httpClient.Do(r)
		if err != nil {
			return nil, classifyTransport(service, err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, &Error{Service: service, Kind: KindNetwork, Err: fmt.Errorf("read body: %w", err)}
		}

		if fe := classifyStatus(service, resp); fe != nil {
			return nil, fe
		}
		return body, nil
	})
	if err != nil {
		var fe *Error
		if errors.As(err, &fe) {
			return nil, fe
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &Error{Service: service, Kind: KindServerError, Err: err}
		}
		return nil, &Error{Service: service, Kind: KindNetwork, Err: err}
	}
	return result.([]byte), nil
}

// GetJSON fetches a URL and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, service, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Service: service, Kind: KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	body, ferr := c.Do(ctx, service, req)
	if ferr != nil {
		return ferr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Service: service, Kind: KindServerError, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Get fetches a URL and returns the raw body.
func (c *Client) Get(ctx context.Context, service, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Service: service, Kind: KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	return c.Do(ctx, service, req)
}

// Head performs a HEAD request and returns the status code.
func (c *Client) Head(ctx context.Context, service, url string) (int, error) {
	if err := c.limits.Wait(ctx, service); err != nil {
		return 0, classifyContext(service, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, &Error{Service: service, Kind: KindNetwork, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.httpClient.Do(req)
	c.recordAttempt(service, err != nil)
	if err != nil {
		return 0, classifyTransport(service, err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// backoff computes the wait before the given (1-based) retry attempt. A 429
// with a Retry-After hint overrides the exponential schedule.
func (e *Error) backoff(attempt int) time.Duration {
	if e.Kind == KindRateLimited && e.retryAfter > 0 {
		return e.retryAfter
	}
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 10*time.Second {
		base = 10 * time.Second
	}
	// Jitter keeps concurrent candidates from retrying in lockstep.
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

// classifyStatus maps a non-2xx response to a fetch error.
func classifyStatus(service string, resp *http.Response) *Error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return &Error{
			Service:    service,
			Kind:       KindRateLimited,
			StatusCode: code,
			Err:        fmt.Errorf("rate limited by upstream"),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case code >= 500:
		return &Error{Service: service, Kind: KindServerError, StatusCode: code, Err: fmt.Errorf("upstream error")}
	default:
		return &Error{Service: service, Kind: KindClientError, StatusCode: code, Err: fmt.Errorf("rejected by upstream")}
	}
}

// classifyTransport maps a transport-level error to a fetch error. An orderly
// cancellation is kept apart from real deadline expiry so shutdown does not
// show up in logs as upstream timeouts.
func classifyTransport(service string, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return &Error{Service: service, Kind: KindCanceled, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Service: service, Kind: KindTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Service: service, Kind: KindTimeout, Err: err}
	}
	return &Error{Service: service, Kind: KindNetwork, Err: err}
}

// classifyContext wraps a context error raised while waiting on backoff or a
// limiter token.
func classifyContext(service string, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return &Error{Service: service, Kind: KindCanceled, Err: err}
	}
	return &Error{Service: service, Kind: KindTimeout, Err: err}
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
