package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"catalog-admin-service/internal/models"
)

var ErrImageTooLarge = errors.New("image exceeds upload size limit")

// RemoteImageFetcher downloads images that are referenced by URL but have no
// persisted id, so they can be re-uploaded as files
type RemoteImageFetcher struct {
	httpClient *http.Client
	retrier    *Retrier
	maxBytes   int64
}

func NewRemoteImageFetcher(timeout time.Duration, maxBytes int64, maxRetries int) *RemoteImageFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteImageFetcher{
		httpClient: &http.Client{Timeout: timeout},
		retrier:    NewRetrier(DefaultRetryConfig(maxRetries)),
		maxBytes:   maxBytes,
	}
}

// FetchImage downloads rawURL into a file payload named after the URL path
func (f *RemoteImageFetcher) FetchImage(ctx context.Context, rawURL string) (*models.FileRef, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("unsupported image url %q", rawURL)
	}

	resp, err := f.retrier.DoHTTP(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		return f.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{Operation: "fetch image", StatusCode: resp.StatusCode, Body: string(body)}
	}

	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, ErrImageTooLarge
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	filename := path.Base(parsed.Path)
	if filename == "." || filename == "/" || filename == "" {
		filename = "image"
	}

	return &models.FileRef{Filename: filename, ContentType: contentType, Data: data}, nil
}
