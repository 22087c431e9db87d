package oembed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultFetchTimeout     = 5 * time.Second
	defaultMaxResponseBytes = 1 << 20
	defaultUserAgent        = "dboembed/1.0"
)

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher retrieves the raw provider document for a request URL.
type Fetcher interface {
	Fetch(ctx context.Context, requestURL string) ([]byte, error)
}

// HTTPFetcher fetches provider documents over HTTP with a bounded deadline and body size.
type HTTPFetcher struct {
	Client    Doer
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
}

// NewHTTPFetcher constructs a Fetcher with the provided timeout and body limit.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64, userAgent string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
		Timeout:   timeout,
		MaxBytes:  maxBytes,
	}
}

// Fetch issues a GET for requestURL. Every transport failure wraps
// ErrUnreachable: an invalid URL, a non-2xx status, an expired deadline or a
// body larger than MaxBytes.
func (f *HTTPFetcher) Fetch(ctx context.Context, requestURL string) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: fetcher not configured", ErrUnreachable)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	maxBytes := f.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnreachable, err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "text/xml, application/xml")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: endpoint returned status %d", ErrUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnreachable, err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrUnreachable, maxBytes)
	}

	return body, nil
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, requestURL string) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, requestURL string) ([]byte, error) {
	return f(ctx, requestURL)
}
