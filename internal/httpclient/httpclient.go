// Package httpclient is the shared HTTP layer of the collaborator clients.
// Requests are rate limited, retried with exponential backoff on 429 and 503,
// and guarded by a circuit breaker per collaborator.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/jon4hz/reqtag/internal/metrics"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// maxBodySize bounds the amount of response body read into memory.
const maxBodySize = 32 << 20

// maxErrorBodySize bounds the response body kept in a StatusError.
const maxErrorBodySize = 4 << 10

// ErrUnavailable is returned while the circuit breaker of a client is open.
var ErrUnavailable = errors.New("collaborator unavailable")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestFunc builds a fresh request for every attempt.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Client executes requests against one collaborator.
type Client struct {
	name           string
	httpClient     *http.Client
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker[*Response]
	maxRetries     uint64
	initialBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit limits the client to rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetry sets the retry budget for rate limited responses.
func WithRetry(maxRetries uint64, initialBackoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.initialBackoff = initialBackoff
	}
}

// New returns a client named name. The name labels logs and metrics.
func New(name string, opts ...Option) *Client {
	c := &Client{
		name:           name,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		maxRetries:     5,
		initialBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	c.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				log.Warn("Opening circuit breaker", "client", name, "failures", counts.TotalFailures, "requests", counts.Requests)
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("Circuit breaker state changed", "client", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		// client errors say nothing about the health of the collaborator
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500 && !retryable(se.StatusCode)
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return c
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Name returns the client name.
func (c *Client) Name() string {
	return c.name
}

// Do executes the request built by build and returns the read response.
func (c *Client) Do(ctx context.Context, build RequestFunc) (*Response, error) {
	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.retry(ctx, build)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
			return nil, fmt.Errorf("%s: %w: %w", c.name, ErrUnavailable, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
	return resp, nil
}

// DoJSON executes the request and decodes the JSON response body into out.
func (c *Client) DoJSON(ctx context.Context, build RequestFunc, out any) error {
	resp, err := c.Do(ctx, build)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("error decoding %s response: %w", c.name, err)
	}
	return nil
}

func (c *Client) retry(ctx context.Context, build RequestFunc) (*Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)

	return backoff.RetryNotifyWithData(func() (*Response, error) {
		return c.once(ctx, build)
	}, policy, func(err error, wait time.Duration) {
		metrics.ClientRetries.WithLabelValues(c.name).Inc()
		log.Debug("Retrying request", "client", c.name, "wait", wait, "error", err)
	})
}

func (c *Client) once(ctx context.Context, build RequestFunc) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
	}

	req, err := build(ctx)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("error creating request: %w", err))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ClientRequestDuration.WithLabelValues(c.name, "error").Observe(time.Since(start).Seconds())
		return nil, backoff.Permanent(fmt.Errorf("error performing request: %w", err))
	}
	defer resp.Body.Close() //nolint: errcheck
	metrics.ClientRequestDuration.WithLabelValues(c.name, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("error reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBodySize {
			body = body[:maxErrorBodySize]
		}
		se := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		if retryable(resp.StatusCode) {
			return nil, se
		}
		return nil, backoff.Permanent(se)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
