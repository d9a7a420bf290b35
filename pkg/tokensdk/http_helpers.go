package tokensdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aussiebroadwan/tollgate/pkg/slogx"
)

// url resolves an endpoint and appends path to it.
func (c *Client) url(path string) (string, error) {
	base, err := c.Resolver.Resolve()
	if err != nil {
		return "", &Error{
			StatusCode: http.StatusServiceUnavailable,
			Code:       CodeUnavailable,
			Message:    "no token service endpoint available",
			Err:        err,
		}
	}
	return base.JoinPath(path).String(), nil
}

// doRequest performs an HTTP request against a resolved endpoint.
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	target, err := c.url(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if id, ok := slogx.RequestIDFromContext(ctx); ok {
		req.Header.Set(slogx.RequestIDHeader, id)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	return resp, nil
}

// postJSON marshals in and POSTs it to path.
func (c *Client) postJSON(ctx context.Context, path string, in any) (*http.Response, error) {
	buf, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(buf))
}

// decodeJSON decodes a JSON response into target, or returns the typed
// *Error the server sent. A body cut short is classified like a transport
// failure and an undecodable success body is CodeInternal.
func decodeJSON(ctx context.Context, resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, bodyBytes)
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return &Error{
			StatusCode: http.StatusBadGateway,
			Code:       CodeInternal,
			Message:    "undecodable token service response",
			Err:        err,
		}
	}
	return nil
}

// checkStatusNoContent returns a typed error if the response status is not 204 No Content.
func checkStatusNoContent(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return parseErrorResponse(resp, bodyBytes)
	}
	return nil
}
