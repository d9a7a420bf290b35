package tokensdk

import (
	"context"
	"net/http"
)

// GetLiveness checks if the service is alive.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, PathLiveness)
}

// GetReadiness checks if the service is ready. A degraded service answers
// 503 and is reported as an *Error.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, PathReadiness)
}

func (c *Client) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(ctx, resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}
