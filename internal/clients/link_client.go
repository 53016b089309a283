package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LinkResult is the outcome of a single URL check.
type LinkResult struct {
	StatusCode int
	OK         bool
	Err        error
}

type LinkClient interface {
	Check(ctx context.Context, url string) LinkResult
}

type linkClient struct {
	httpClient *http.Client
	userAgent  string
}

func NewLinkClient(timeout time.Duration, userAgent string) LinkClient {
	return &linkClient{
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    20,
				IdleConnTimeout: 30 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after %d redirects", len(via))
				}
				return nil
			},
		},
	}
}

// Check sends a HEAD request and falls back to GET when the server does not support HEAD.
func (c *linkClient) Check(ctx context.Context, url string) LinkResult {
	status, err := c.do(ctx, http.MethodHead, url)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented || status == http.StatusForbidden) {
		status, err = c.do(ctx, http.MethodGet, url)
	}
	if err != nil {
		return LinkResult{Err: err}
	}
	return LinkResult{
		StatusCode: status,
		OK:         status >= 200 && status < 400,
	}
}

func (c *linkClient) do(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	// drain a little so the connection can be reused
	_, _ = io.CopyN(io.Discard, resp.Body, 4096)

	return resp.StatusCode, nil
}
