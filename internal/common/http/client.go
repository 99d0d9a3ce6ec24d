// internal/common/http/client.go

// Package http wraps the outbound HTTP client used by the external
// adapters (scoring oracle, platform submission API). Each adapter gets
// its own client with the timeout from its config section, independent
// of the run deadline the orchestrator imposes on top.
package http

import (
	"context"
	"net/http"
	"time"
)

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// DoWithContext binds the request to ctx so an adapter call dies with
// the run that issued it, not just with the client timeout.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}
