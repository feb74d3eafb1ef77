package clients

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig defines retry behavior for idempotent commerce API calls
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialBackoff  time.Duration // Initial backoff duration
	MaxBackoff      time.Duration // Maximum backoff duration
	BackoffFactor   float64       // Multiplier for exponential backoff
	Jitter          float64       // Random jitter factor (0-1)
	RetryableStatus []int         // HTTP status codes to retry
}

// DefaultRetryConfig returns the retry configuration used for reads and deletes
func DefaultRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryableStatus: []int{
			http.StatusTooManyRequests,    // 429
			http.StatusBadGateway,         // 502
			http.StatusServiceUnavailable, // 503
			http.StatusGatewayTimeout,     // 504
		},
	}
}

// Retrier retries HTTP calls with exponential backoff
type Retrier struct {
	config *RetryConfig
}

func NewRetrier(config *RetryConfig) *Retrier {
	if config == nil {
		config = DefaultRetryConfig(3)
	}
	return &Retrier{config: config}
}

// shouldRetry reports whether a status code (0 for transport errors) is worth another attempt
func (r *Retrier) shouldRetry(statusCode int) bool {
	if statusCode == 0 {
		return true
	}
	for _, code := range r.config.RetryableStatus {
		if statusCode == code {
			return true
		}
	}
	return false
}

func (r *Retrier) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}

	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffFactor, float64(attempt))
	if r.config.Jitter > 0 {
		backoff += backoff * r.config.Jitter * (rand.Float64()*2 - 1)
	}
	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// parseRetryAfter extracts the Retry-After duration from an HTTP response
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}
	return 0
}

// DoHTTP runs fn until it returns a non-retryable result or retries run out.
// Bodies of discarded responses are closed.
func (r *Retrier) DoHTTP(ctx context.Context, fn func(ctx context.Context) (*http.Response, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := fn(ctx)

		status := 0
		if err == nil {
			status = resp.StatusCode
			if status < 300 || !r.shouldRetry(status) {
				return resp, nil
			}
		}
		if attempt >= r.config.MaxRetries || (err != nil && ctx.Err() != nil) {
			return resp, err
		}

		wait := r.backoff(attempt, parseRetryAfter(resp))
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}
