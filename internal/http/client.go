package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36 tubealbum"

	// maxBodyBytes caps in-memory reads; playlist pages are a few MB at most.
	maxBodyBytes = 32 << 20
)

// StatusError is returned when the server answers with a non-200 status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Client wraps HTTP operations with tubealbum's request defaults.
//
// Requests carry a browser-like User-Agent and an English Accept-Language so
// that video hosts serve the same page layout the extractor parses.
//
//	client := NewClient()
//	html, err := client.GetString(ctx, "https://www.youtube.com/playlist?list=...")
type Client struct {
	httpClient *http.Client
	userAgent  string
	language   string
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient creates a Client with a 60 second timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
		language:   "en-US,en;q=0.9",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient exposes the configured *http.Client for libraries that accept one.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// ProgressWriter wraps a writer to track download progress.
//
//	pw := &ProgressWriter{Writer: file, Total: size, OnUpdate: func(written, total int64) {}}
//	io.Copy(pw, stream)
type ProgressWriter struct {
	Writer  io.Writer
	Total   int64
	Written int64

	// OnUpdate is called after each Write with (bytesWritten, totalExpected).
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// Get performs a GET request and returns the response body.
// Non-200 responses yield a *StatusError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", c.language)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", url, maxBodyBytes)
	}
	return body, nil
}

// GetString performs a GET request and returns the body as a string.
func (c *Client) GetString(ctx context.Context, url string) (string, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// DownloadBytes downloads a small file, such as cover art, into memory.
func (c *Client) DownloadBytes(ctx context.Context, url string) ([]byte, error) {
	return c.Get(ctx, url)
}
