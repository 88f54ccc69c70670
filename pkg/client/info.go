package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/darmiel/lastword/internal/api"
)

func (c *Client) Info(ctx context.Context) (*api.AboutResponse, string, error) {
	var info api.AboutResponse
	correlation, err := c.get(ctx, c.url().
		setPath(api.AboutRoute).
		build(), &info)
	return &info, correlation, err
}

// Health returns the server's health report. A degraded server answers 503 with the same body,
// so that status is decoded instead of treated as an error.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url().
		setPath(api.HealthCheckRoute).
		build(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("connection failed: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	correlation := correlationFromResponse(resp)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, correlation, parseErrorResponse(resp)
	}
	var health api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, correlation, fmt.Errorf("decoding health: %w", err)
	}
	return &health, correlation, nil
}
