// Package fetch downloads web pages for ingestion.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodySize caps downloaded pages at 10 MB.
const maxBodySize = 10 << 20

// Fetcher downloads URLs with a bounded client.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher with a 30 second request timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch downloads the page at url and returns its body. Responses other than
// 2xx are errors, and bodies larger than maxBodySize are rejected.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "quaigle/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", url, maxBodySize)
	}
	return body, nil
}
