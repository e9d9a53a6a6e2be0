package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPFetcher fetches URLs with a plain GET and no custom headers.
type HTTPFetcher struct {
	Client *http.Client
	// MaxBytes caps the body size; 0 means unlimited.
	MaxBytes int64
}

// NewHTTPFetcher returns a fetcher using client, or http.DefaultClient
// when client is nil.
func NewHTTPFetcher(client *http.Client, maxBytes int64) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{Client: client, MaxBytes: maxBytes}
}

// Fetch issues one GET request and reads the whole body.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	res, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	body := io.Reader(res.Body)
	if f.MaxBytes > 0 {
		body = io.LimitReader(res.Body, f.MaxBytes+1)
	}

	buf, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if f.MaxBytes > 0 && int64(len(buf)) > f.MaxBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", f.MaxBytes)
	}
	if res.ContentLength > 0 && int64(len(buf)) < res.ContentLength {
		return nil, fmt.Errorf("short body: got %d of %d bytes", len(buf), res.ContentLength)
	}
	return buf, nil
}
