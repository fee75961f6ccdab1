// Package webclient is the pluggable page fetcher used by the demo
// analyzer: a plain net/http backend for fast fetches and a chromedp
// backend when a rendered DOM or a screenshot is needed.
package webclient

import (
	"context"
	"net/http"
	"time"
)

// Request describes one page fetch.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte

	// Screenshot asks the backend to capture a full-page PNG. Backends
	// without rendering support ignore it.
	Screenshot bool
}

// Response is the fetched page.
type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int

	// Screenshot is a PNG when requested and supported, nil otherwise.
	Screenshot []byte

	FetchedAt time.Time
}

// WebClient executes page fetches.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	Close() error
}
