package tokensdk

import (
	"context"
	"net/http"
)

// GenerateToken returns a token pair for req.Sub. A pair still cached for
// the subject is returned as-is.
func (c *Client) GenerateToken(ctx context.Context, req GenerateTokenRequest) (*TokenPair, error) {
	resp, err := c.postJSON(ctx, PathGenerate, req)
	if err != nil {
		return nil, err
	}

	var pair TokenPair
	if err := decodeJSON(ctx, resp, &pair, http.StatusOK); err != nil {
		return nil, err
	}
	return &pair, nil
}

// ParseToken describes value. An untrusted or expired token is not an
// error; inspect Checked and Expired.
func (c *Client) ParseToken(ctx context.Context, value string) (*ParseTokenResponse, error) {
	resp, err := c.postJSON(ctx, PathParse, ParseTokenRequest{Value: value})
	if err != nil {
		return nil, err
	}

	var parsed ParseTokenResponse
	if err := decodeJSON(ctx, resp, &parsed, http.StatusOK); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// RefreshToken exchanges a valid refresh token for a new pair.
func (c *Client) RefreshToken(ctx context.Context, value string) (*TokenPair, error) {
	resp, err := c.postJSON(ctx, PathRefresh, RefreshTokenRequest{Value: value})
	if err != nil {
		return nil, err
	}

	var pair TokenPair
	if err := decodeJSON(ctx, resp, &pair, http.StatusOK); err != nil {
		return nil, err
	}
	return &pair, nil
}

// ClearCache evicts the cached pair for sub. Already issued tokens remain
// valid until they expire.
func (c *Client) ClearCache(ctx context.Context, sub string) error {
	resp, err := c.postJSON(ctx, PathClear, ClearCacheRequest{Sub: sub})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
