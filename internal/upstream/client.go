// Package upstream wraps the HTTP client shared by every third-party API the
// toolbox talks to.
//
// A [Client] pairs a resty client (timeouts, retries of 5xx responses) with a
// gobreaker circuit breaker and records every call in [observe.Metrics].
// Non-2xx responses are turned into [*StatusError] values that unwrap to
// [ErrClientError] or [ErrServerError]. Client errors do not count against the
// breaker: a 404 from an address lookup says nothing about the health of the
// service.
//
// Breaker rejections are returned unwrapped, so callers can match them with
// errors.Is(err, gobreaker.ErrOpenState) and gobreaker.ErrTooManyRequests.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"resty.dev/v3"

	"github.com/MrWong99/toolbox/internal/observe"
)

var (
	// ErrClientError is wrapped by status errors for 4xx responses.
	ErrClientError = errors.New("upstream: client error")

	// ErrServerError is wrapped by status errors for 5xx responses.
	ErrServerError = errors.New("upstream: server error")
)

// StatusError describes a non-2xx response.
type StatusError struct {
	Upstream   string
	Endpoint   string
	StatusCode int

	// Body holds the raw response body, which usually carries the API's own
	// error envelope.
	Body []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: %s %s: unexpected status %d", e.Upstream, e.Endpoint, e.StatusCode)
}

// Unwrap returns [ErrClientError] for 4xx codes and [ErrServerError] otherwise.
func (e *StatusError) Unwrap() error {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return ErrClientError
	}
	return ErrServerError
}

// BreakerConfig tunes the circuit breaker of a [Client].
type BreakerConfig struct {
	// MaxRequests is the number of probe requests allowed while half-open.
	// Default: 1.
	MaxRequests uint32

	// Interval is the cyclic period after which failure counts are cleared
	// while closed. Zero never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open. Default: 30s.
	Timeout time.Duration

	// ConsecutiveFailures trips the breaker. Default: 5.
	ConsecutiveFailures uint32
}

// Config describes one upstream API.
type Config struct {
	// Name labels logs and metrics, e.g. "usps".
	Name string

	// BaseURL is prefixed to every relative request path.
	BaseURL string

	// UserAgent is sent with every request when non-empty.
	UserAgent string

	// Timeout bounds a single attempt. Default: 10s.
	Timeout time.Duration

	// RetryCount is the number of retries after a failed attempt.
	RetryCount int

	// RetryWait and RetryMaxWait bound the backoff between retries.
	RetryWait    time.Duration
	RetryMaxWait time.Duration

	Breaker BreakerConfig
}

// Client is an HTTP client for a single upstream API. Safe for concurrent use.
type Client struct {
	name    string
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	metrics *observe.Metrics
}

// New creates a [Client] from cfg. m may be nil, in which case no metrics
// are recorded.
func New(cfg Config, m *observe.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Breaker.ConsecutiveFailures == 0 {
		cfg.Breaker.ConsecutiveFailures = 5
	}
	if cfg.Breaker.Timeout <= 0 {
		cfg.Breaker.Timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryConditions(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= 500
		})
	if cfg.UserAgent != "" {
		httpClient.SetHeader("User-Agent", cfg.UserAgent)
	}

	name := cfg.Name
	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrClientError) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("upstream circuit breaker changed state",
				"upstream", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Client{
		name:    name,
		http:    httpClient,
		breaker: breaker,
		metrics: m,
	}
}

// Name returns the upstream label.
func (c *Client) Name() string { return c.name }

// Do runs send through the circuit breaker. send receives a fresh request
// bound to ctx and performs exactly one call on it (Get, Post, …). endpoint
// labels logs and metrics.
//
// A non-2xx response yields the response together with a [*StatusError].
func (c *Client) Do(ctx context.Context, endpoint string, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	start := time.Now()

	resp, err := c.breaker.Execute(func() (*resty.Response, error) {
		resp, err := send(c.http.R().WithContext(ctx))
		if err != nil {
			return resp, fmt.Errorf("upstream: %s %s: %w", c.name, endpoint, err)
		}
		if resp.IsError() {
			return resp, &StatusError{
				Upstream:   c.name,
				Endpoint:   endpoint,
				StatusCode: resp.StatusCode(),
				Body:       resp.Bytes(),
			}
		}
		return resp, nil
	})

	if c.metrics != nil {
		status := observe.StatusOK
		if err != nil {
			status = observe.StatusError
			c.metrics.RecordUpstreamError(ctx, c.name, errorKind(err))
		}
		c.metrics.RecordUpstreamRequest(ctx, c.name, endpoint, status, time.Since(start).Seconds())
	}
	return resp, err
}

// Check reports an error while the circuit breaker is open. It is meant for
// readiness probes and never performs a request.
func (c *Client) Check(_ context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("upstream: %s circuit breaker is open", c.name)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// errorKind classifies err for the upstream error counter.
func errorKind(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker"
	case errors.Is(err, ErrClientError):
		return "client"
	case errors.Is(err, ErrServerError):
		return "server"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport"
	}
}
