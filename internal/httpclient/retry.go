package httpclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultMaxTries bounds the attempts of a retrying client
	DefaultMaxTries = 3

	defaultInitialInterval = 2 * time.Second
)

// RetryOption configures a retrying client
type RetryOption func(*retryingClient)

// WithMaxTries sets the maximum number of attempts per request
func WithMaxTries(n uint) RetryOption {
	return func(c *retryingClient) {
		c.maxTries = n
	}
}

// WithInitialInterval sets the first backoff delay
func WithInitialInterval(d time.Duration) RetryOption {
	return func(c *retryingClient) {
		c.initialInterval = d
	}
}

// retryingClient retries transient failures of an inner client with
// exponential backoff. Client errors other than 408 and 429 are not retried.
type retryingClient struct {
	inner           Client
	maxTries        uint
	initialInterval time.Duration
}

// NewRetryingClient wraps inner with retries
func NewRetryingClient(inner Client, opts ...RetryOption) Client {
	c := &retryingClient{
		inner:           inner,
		maxTries:        DefaultMaxTries,
		initialInterval: defaultInitialInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *retryingClient) retryOptions() []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("HTTP request failed, retrying", "error", err, "retry_in", next)
		}),
	}
}

// Get performs a GET with retries
func (c *retryingClient) Get(ctx context.Context, url string) ([]byte, error) {
	return backoff.Retry(ctx, func() ([]byte, error) {
		body, err := c.inner.Get(ctx, url)
		return body, classify(err)
	}, c.retryOptions()...)
}

// Download performs a download with retries
func (c *retryingClient) Download(ctx context.Context, url, dst string) (int64, error) {
	return backoff.Retry(ctx, func() (int64, error) {
		n, err := c.inner.Download(ctx, url, dst)
		return n, classify(err)
	}, c.retryOptions()...)
}

// classify marks non-retryable errors as permanent
func classify(err error) error {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusRequestTimeout,
			httpErr.StatusCode == http.StatusTooManyRequests,
			httpErr.StatusCode >= http.StatusInternalServerError:
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	return err
}
