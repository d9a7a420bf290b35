package token_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	gateway "github.com/aussiebroadwan/tollgate/internal/gateway/app"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
	"github.com/aussiebroadwan/tollgate/pkg/tokenx"
)

// TestTokenLifecycle drives generate, parse, refresh and clear against the
// containerised service backed by redis.
func TestTokenLifecycle(t *testing.T) {
	s := setupStack(t)
	client := s.Client(t)
	ctx := t.Context()

	health, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "ok", health.Checks.Cache)
	require.Equal(t, "ok", health.Checks.Registry)

	pair, err := client.GenerateToken(ctx, tokensdk.GenerateTokenRequest{
		Sub:     "alice",
		Aud:     audience,
		Payload: &tokensdk.Payload{Sub: "alice", Group: "admin"},
	})
	require.NoError(t, err)
	require.Equal(t, tokenx.Access, pair.Access.Kind)
	require.Equal(t, tokenx.Refresh, pair.Refresh.Kind)

	// the cached pair is served again while it is valid
	again, err := client.GenerateToken(ctx, tokensdk.GenerateTokenRequest{Sub: "alice", Aud: audience})
	require.NoError(t, err)
	require.Equal(t, pair.Access.Value, again.Access.Value)

	parsed, err := client.ParseToken(ctx, pair.Access.Value)
	require.NoError(t, err)
	require.True(t, parsed.Checked)
	require.False(t, parsed.Expired)
	require.Equal(t, "admin", parsed.Payload.Group)

	refreshed, err := client.RefreshToken(ctx, pair.Refresh.Value)
	require.NoError(t, err)
	require.Equal(t, tokenx.Access, refreshed.Access.Kind)

	_, err = client.RefreshToken(ctx, pair.Access.Value)
	require.Equal(t, tokensdk.CodeInvalidArgument, tokensdk.CodeOf(err))

	require.NoError(t, client.ClearCache(ctx, "alice"))
	time.Sleep(1100 * time.Millisecond)
	fresh, err := client.GenerateToken(ctx, tokensdk.GenerateTokenRequest{Sub: "alice", Aud: audience})
	require.NoError(t, err)
	require.NotEqual(t, refreshed.Access.Value, fresh.Access.Value)
}

// TestGatewayThroughContainer runs the gateway in-process against the
// containerised token service.
func TestGatewayThroughContainer(t *testing.T) {
	s := setupStack(t)
	client := s.Client(t)

	cfg := gateway.Config{
		AuthMethod:   gateway.MethodCookie,
		Realm:        "e2e",
		Cookie:       httpx.DefaultCookieConfig(),
		CookieSecret: "e2e-cookie-secret",
		RPCTimeout:   5 * time.Second,
		AdminGroups:  []string{"admin"},
	}
	h, err := gateway.Handler(cfg, client, nil, "e2e")
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	pair, err := client.GenerateToken(t.Context(), tokensdk.GenerateTokenRequest{
		Sub:     "carol",
		Aud:     audience,
		Payload: &tokensdk.Payload{Sub: "carol", Group: "admin"},
	})
	require.NoError(t, err)

	cookieAuth, err := httpx.NewCookieAuth(cfg.Cookie, []byte(cfg.CookieSecret))
	require.NoError(t, err)
	cookie, err := cookieAuth.NewCookie(pair)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/admin/whoami", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var id httpx.Identity
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&id))
	require.Equal(t, httpx.Identity{Sub: "carol", Group: "admin"}, id)
}
