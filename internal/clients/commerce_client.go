package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrNotFound matches an APIError with status 404
var ErrNotFound = errors.New("resource not found")

// APIError is a non-2xx answer from the commerce API
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed: %d - %s", e.Operation, e.StatusCode, e.Body)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

type tokenKey struct{}

// WithToken attaches the admin's bearer token to ctx; commerce calls made with
// ctx are sent on the admin's behalf.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// CommerceConfig configures the commerce API transport
type CommerceConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64 // requests per second, 0 disables limiting
	MaxRetries int
	StoreID    string
	Logger     *logrus.Entry
}

// CommerceClient is the shared transport for the commerce REST API
type CommerceClient struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	retrier     *Retrier
	storeID     string
	logger      *logrus.Entry
}

func NewCommerceClient(cfg CommerceConfig) *CommerceClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &CommerceClient{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(limit, 1),
		retrier:     NewRetrier(DefaultRetryConfig(cfg.MaxRetries)),
		storeID:     cfg.StoreID,
		logger:      logger.WithField("component", "commerce_client"),
	}
}

type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	retry       bool
}

// do sends req and returns the body of a 2xx response. Only requests marked
// retry go through the retrier; writes are sent exactly once.
func (c *CommerceClient) do(ctx context.Context, operation string, req request) ([]byte, error) {
	send := func(ctx context.Context) (*http.Response, error) {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		var body io.Reader
		if req.body != nil {
			body = bytes.NewReader(req.body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
		if err != nil {
			return nil, err
		}

		httpReq.Header.Set("Accept", "application/json")
		if req.contentType != "" {
			httpReq.Header.Set("Content-Type", req.contentType)
		}
		if token := TokenFromContext(ctx); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
		if c.storeID != "" {
			httpReq.Header.Set("X-Store-ID", c.storeID)
		}
		return c.httpClient.Do(httpReq)
	}

	var (
		resp *http.Response
		err  error
	)
	if req.retry {
		resp, err = c.retrier.DoHTTP(ctx, send)
	} else {
		resp, err = send(ctx)
	}
	if err != nil {
		c.logger.WithError(err).WithField("operation", operation).Warn("Commerce API request failed")
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", operation, err)
	}

	if resp.StatusCode >= 300 {
		c.logger.WithFields(logrus.Fields{
			"operation": operation,
			"status":    resp.StatusCode,
		}).Warn("Commerce API returned an error")
		return nil, &APIError{Operation: operation, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
