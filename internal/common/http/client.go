// internal/common/http/client.go
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxBodyBytes caps how much of a response body Get buffers.
const DefaultMaxBodyBytes int64 = 5 << 20

// Client sends outbound requests with a fixed timeout and User-Agent.
type Client struct {
	httpClient   *http.Client
	userAgent    string
	maxBodyBytes int64
}

// NewClient returns a client whose Get reads at most maxBodyBytes of a body;
// zero or less means DefaultMaxBodyBytes.
func NewClient(timeout time.Duration, userAgent string, maxBodyBytes int64) *Client {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent:    userAgent,
		maxBodyBytes: maxBodyBytes,
	}
}

// StatusError is returned for responses with a status code of 400 or above.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req)
}

// Get fetches url and returns the body and Content-Type. Status codes of 400
// and above are reported as *StatusError. Bodies longer than the client's cap
// are truncated, not rejected.
func (c *Client) Get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
