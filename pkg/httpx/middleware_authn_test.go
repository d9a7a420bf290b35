package httpx_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
	"github.com/aussiebroadwan/tollgate/pkg/tokenx"
)

// fakeTokens answers ParseToken from a table and counts refreshes.
type fakeTokens struct {
	mu         sync.Mutex
	parsed     map[string]*tokensdk.ParseTokenResponse
	parseErr   error
	refresh    *tokensdk.TokenPair
	refreshErr error
	refreshed  []string
	block      bool
}

func (f *fakeTokens) ParseToken(ctx context.Context, value string) (*tokensdk.ParseTokenResponse, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	resp, ok := f.parsed[value]
	if !ok {
		return nil, tokensdk.NewError(tokensdk.CodeInvalidArgument, "malformed token")
	}
	return resp, nil
}

func (f *fakeTokens) RefreshToken(_ context.Context, value string) (*tokensdk.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, value)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refresh, nil
}

var alice = &tokensdk.Payload{Sub: "alice", Group: "admin", Extra: "x"}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{
		parsed: map[string]*tokensdk.ParseTokenResponse{
			"acc-ok":      {Checked: true, Kind: tokenx.Access, Payload: alice},
			"acc-expired": {Checked: true, Expired: true, Kind: tokenx.Access, Payload: alice},
			"acc-forged":  {Checked: false, Kind: tokenx.Access, Payload: alice},
			"ref-ok":      {Checked: true, Kind: tokenx.Refresh, Payload: alice},
			"ref-expired": {Checked: true, Expired: true, Kind: tokenx.Refresh, Payload: alice},
		},
		refresh: &tokensdk.TokenPair{
			Access:  tokensdk.Token{Value: "acc-new", Kind: tokenx.Access},
			Refresh: tokensdk.Token{Value: "ref-new", Kind: tokenx.Refresh},
		},
	}
}

// whoami echoes the identity injected by Authenticate.
var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IdentityFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, id)
})

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func cookieRequest(value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: httpx.DefaultCookieName, Value: value})
	return req
}

func bearerRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func decodeIdentity(t *testing.T, rec *httptest.ResponseRecorder) httpx.Identity {
	t.Helper()
	var id httpx.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &id))
	return id
}

func TestCookieAuth(t *testing.T) {
	cookieAuth, err := httpx.NewCookieAuth(httpx.DefaultCookieConfig(), nil)
	require.NoError(t, err)

	t.Run("valid access token", func(t *testing.T) {
		client := newFakeTokens()
		h := httpx.Authenticate(client, cookieAuth, httpx.AuthOptions{})(whoami)

		rec := serve(t, h, cookieRequest("acc-ok|ref-ok"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, httpx.Identity{Sub: "alice", Group: "admin", Extra: "x"}, decodeIdentity(t, rec))
		require.Empty(t, rec.Header().Values("Set-Cookie"))
		require.Empty(t, client.refreshed)
	})

	t.Run("expired access token is refreshed", func(t *testing.T) {
		client := newFakeTokens()
		h := httpx.Authenticate(client, cookieAuth, httpx.AuthOptions{})(whoami)

		rec := serve(t, h, cookieRequest("acc-expired|ref-ok"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, []string{"ref-ok"}, client.refreshed)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		c := cookies[0]
		require.Equal(t, "x-token", c.Name)
		require.Equal(t, "acc-new|ref-new", c.Value)
		require.Equal(t, "/", c.Path)
		require.Equal(t, int((48 * time.Hour).Seconds()), c.MaxAge)
		require.True(t, c.HttpOnly)
		require.True(t, c.Secure)
		require.Equal(t, http.SameSiteNoneMode, c.SameSite)
	})

	t.Run("rejections answer 401 with challenge", func(t *testing.T) {
		for name, req := range map[string]*http.Request{
			"no cookie":       httptest.NewRequest(http.MethodGet, "/whoami", nil),
			"single part":     cookieRequest("acc-ok"),
			"three parts":     cookieRequest("acc-ok|ref-ok|more"),
			"empty half":      cookieRequest("acc-ok|"),
			"unchecked":       cookieRequest("acc-forged|ref-ok"),
			"refresh as head": cookieRequest("ref-ok|ref-ok"),
			"malformed":       cookieRequest("junk|ref-ok"),
		} {
			t.Run(name, func(t *testing.T) {
				h := httpx.Authenticate(newFakeTokens(), cookieAuth, httpx.AuthOptions{Realm: "shop"})(whoami)

				rec := serve(t, h, req)
				require.Equal(t, http.StatusUnauthorized, rec.Code)
				require.Equal(t, "Cookie realm=shop,charset=UTF-8,cookie-name=x-token", rec.Header().Get("WWW-Authenticate"))
			})
		}
	})

	t.Run("refresh failure answers 401", func(t *testing.T) {
		client := newFakeTokens()
		client.refreshErr = tokensdk.NewError(tokensdk.CodeInvalidArgument, "token expired")
		h := httpx.Authenticate(client, cookieAuth, httpx.AuthOptions{})(whoami)

		rec := serve(t, h, cookieRequest("acc-expired|ref-expired"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("custom attributes", func(t *testing.T) {
		cfg := httpx.DefaultCookieConfig()
		cfg.Name = "session"
		cfg.Domain = "example.com"
		cfg.Path = "/app"
		cfg.SameSite = httpx.ParseSameSite("Strict")
		auth, err := httpx.NewCookieAuth(cfg, nil)
		require.NoError(t, err)

		h := httpx.Authenticate(newFakeTokens(), auth, httpx.AuthOptions{})(whoami)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: "acc-expired|ref-ok"})

		rec := serve(t, h, req)
		require.Equal(t, http.StatusOK, rec.Code)
		c := rec.Result().Cookies()[0]
		require.Equal(t, "session", c.Name)
		require.Equal(t, "example.com", c.Domain)
		require.Equal(t, "/app", c.Path)
		require.Equal(t, http.SameSiteStrictMode, c.SameSite)
	})
}

func TestSealedCookieAuth(t *testing.T) {
	auth, err := httpx.NewCookieAuth(httpx.DefaultCookieConfig(), []byte("cookie-secret"))
	require.NoError(t, err)
	require.NotNil(t, auth.Sealer)

	client := newFakeTokens()
	h := httpx.Authenticate(client, auth, httpx.AuthOptions{})(whoami)

	t.Run("plain value is rejected", func(t *testing.T) {
		rec := serve(t, h, cookieRequest("acc-ok|ref-ok"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("sealed value is accepted and refresh stays sealed", func(t *testing.T) {
		cookie, err := auth.NewCookie(&tokensdk.TokenPair{
			Access:  tokensdk.Token{Value: "acc-expired"},
			Refresh: tokensdk.Token{Value: "ref-ok"},
		})
		require.NoError(t, err)
		require.NotContains(t, cookie.Value, "acc-expired")

		rec := serve(t, h, cookieRequest(cookie.Value))
		require.Equal(t, http.StatusOK, rec.Code)

		rotated := rec.Result().Cookies()[0]
		require.NotContains(t, rotated.Value, "acc-new")

		plain, err := auth.Sealer.Open(rotated.Value, []byte(httpx.DefaultCookieName))
		require.NoError(t, err)
		require.Equal(t, "acc-new|ref-new", string(plain))
	})
}

func TestBearerAuth(t *testing.T) {
	t.Run("valid access token", func(t *testing.T) {
		client := newFakeTokens()
		h := httpx.Authenticate(client, httpx.BearerAuth{}, httpx.AuthOptions{})(whoami)

		rec := serve(t, h, bearerRequest("acc-ok"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "alice", decodeIdentity(t, rec).Sub)
		require.Empty(t, rec.Header().Get("set-authorization"))
	})

	t.Run("prefix is optional", func(t *testing.T) {
		h := httpx.Authenticate(newFakeTokens(), httpx.BearerAuth{}, httpx.AuthOptions{})(whoami)

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "acc-ok")
		require.Equal(t, http.StatusOK, serve(t, h, req).Code)
	})

	t.Run("refresh token rotates the pair", func(t *testing.T) {
		client := newFakeTokens()
		h := httpx.Authenticate(client, httpx.BearerAuth{}, httpx.AuthOptions{})(whoami)

		rec := serve(t, h, bearerRequest("ref-ok"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, []string{"ref-ok"}, client.refreshed)
		require.Equal(t, "access=acc-new,refresh=ref-new", rec.Header().Get("set-authorization"))
	})

	t.Run("custom header", func(t *testing.T) {
		client := newFakeTokens()
		h := httpx.Authenticate(client, httpx.BearerAuth{Header: "X-Api-Token"}, httpx.AuthOptions{})(whoami)

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-Api-Token", "ref-ok")

		rec := serve(t, h, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "access=acc-new,refresh=ref-new", rec.Header().Get("set-x-api-token"))
	})

	t.Run("rejections answer 401 with challenge", func(t *testing.T) {
		for name, token := range map[string]string{
			"missing":         "",
			"expired access":  "acc-expired",
			"expired refresh": "ref-expired",
			"unchecked":       "acc-forged",
			"malformed":       "junk",
		} {
			t.Run(name, func(t *testing.T) {
				client := newFakeTokens()
				h := httpx.Authenticate(client, httpx.BearerAuth{}, httpx.AuthOptions{})(whoami)

				req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
				if token != "" {
					req.Header.Set("Authorization", "Bearer "+token)
				}
				rec := serve(t, h, req)
				require.Equal(t, http.StatusUnauthorized, rec.Code)
				require.Equal(t, "Bearer realm=tollgate,charset=UTF-8", rec.Header().Get("WWW-Authenticate"))
				require.Empty(t, client.refreshed)
			})
		}
	})
}

func TestAuthenticateServiceErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		err    error
		status int
	}{
		{"internal", tokensdk.NewError(tokensdk.CodeInternal, "signing failed"), http.StatusBadGateway},
		{"unavailable", tokensdk.NewError(tokensdk.CodeUnavailable, "down"), http.StatusGatewayTimeout},
		{"deadline", tokensdk.NewError(tokensdk.CodeDeadlineExceeded, "slow"), http.StatusGatewayTimeout},
		{"invalid argument", tokensdk.NewError(tokensdk.CodeInvalidArgument, "bad"), http.StatusUnauthorized},
		{"unauthenticated", tokensdk.NewError(tokensdk.CodeUnauthenticated, "no"), http.StatusUnauthorized},
		{"throttled", tokensdk.NewError(tokensdk.CodeResourceExhausted, "slow down"), http.StatusServiceUnavailable},
		{"unknown code", tokensdk.NewError("data_loss", "?"), http.StatusBadGateway},
		{"untyped", errors.New("boom"), http.StatusBadGateway},
	} {
		t.Run(tc.name, func(t *testing.T) {
			client := newFakeTokens()
			client.parseErr = tc.err
			h := httpx.Authenticate(client, httpx.BearerAuth{}, httpx.AuthOptions{})(whoami)

			rec := serve(t, h, bearerRequest("acc-ok"))
			require.Equal(t, tc.status, rec.Code)
			if tc.status != http.StatusUnauthorized {
				require.Empty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}

	t.Run("refresh internal error answers 502", func(t *testing.T) {
		client := newFakeTokens()
		client.refreshErr = tokensdk.NewError(tokensdk.CodeInternal, "signing failed")
		h := httpx.Authenticate(client, httpx.BearerAuth{}, httpx.AuthOptions{})(whoami)

		rec := serve(t, h, bearerRequest("ref-ok"))
		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.Empty(t, rec.Header().Get("set-authorization"))
	})

	t.Run("refresh throttled answers 503 without challenge", func(t *testing.T) {
		client := newFakeTokens()
		client.refreshErr = tokensdk.NewError(tokensdk.CodeResourceExhausted, "too many requests")
		h := httpx.Authenticate(client, httpx.BearerAuth{}, httpx.AuthOptions{})(whoami)

		rec := serve(t, h, bearerRequest("ref-ok"))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Empty(t, rec.Header().Get("WWW-Authenticate"))
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
	})
}

// TestAuthenticateWithClient runs the middleware on a real tokensdk.Client
// against misbehaving token services.
func TestAuthenticateWithClient(t *testing.T) {
	refreshable := tokensdk.ParseTokenResponse{Checked: true, Kind: tokenx.Refresh, Payload: alice}

	for _, tc := range []struct {
		name    string
		handler http.HandlerFunc
		status  int
	}{
		{
			name: "body stalls past the deadline",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				w.(http.Flusher).Flush()
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			status: http.StatusGatewayTimeout,
		},
		{
			name: "success body is not json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("<html>hello</html>"))
			},
			status: http.StatusBadGateway,
		},
		{
			name: "refresh is rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == tokensdk.PathParse {
					httpx.WriteJSON(w, http.StatusOK, refreshable)
					return
				}
				httpx.WriteJSON(w, http.StatusTooManyRequests, tokensdk.ErrorResponse{
					Code:    httpx.CodeResourceExhausted,
					Message: "too many requests",
				})
			},
			status: http.StatusServiceUnavailable,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			t.Cleanup(srv.Close)

			client, err := tokensdk.NewClient(srv.URL)
			require.NoError(t, err)
			h := httpx.Authenticate(client, httpx.BearerAuth{}, httpx.AuthOptions{Timeout: 50 * time.Millisecond})(whoami)

			rec := serve(t, h, bearerRequest("ref-ok"))
			require.Equal(t, tc.status, rec.Code)
			require.Empty(t, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestAuthenticateCancelled(t *testing.T) {
	client := newFakeTokens()
	client.block = true
	h := httpx.Authenticate(client, httpx.BearerAuth{}, httpx.AuthOptions{})(whoami)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := serve(t, h, bearerRequest("acc-ok").WithContext(ctx))
	require.Equal(t, http.StatusOK, rec.Code, "recorder default, nothing written")
	require.False(t, rec.Flushed)
	require.Empty(t, rec.Body.String())
	require.Empty(t, rec.Header())
}

func TestAuthenticateTimeout(t *testing.T) {
	client := newFakeTokens()
	client.block = true
	h := httpx.Authenticate(timeoutClient{client}, httpx.BearerAuth{}, httpx.AuthOptions{Timeout: 10 * time.Millisecond})(whoami)

	rec := serve(t, h, bearerRequest("acc-ok"))
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

// timeoutClient reports its context expiry the way tokensdk does.
type timeoutClient struct{ *fakeTokens }

func (c timeoutClient) ParseToken(ctx context.Context, value string) (*tokensdk.ParseTokenResponse, error) {
	resp, err := c.fakeTokens.ParseToken(ctx, value)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, tokensdk.NewError(tokensdk.CodeDeadlineExceeded, err.Error())
	}
	return resp, err
}

func TestParseSameSite(t *testing.T) {
	require.Equal(t, http.SameSiteLaxMode, httpx.ParseSameSite("lax"))
	require.Equal(t, http.SameSiteStrictMode, httpx.ParseSameSite("STRICT"))
	require.Equal(t, http.SameSiteNoneMode, httpx.ParseSameSite("None"))
	require.Equal(t, http.SameSiteNoneMode, httpx.ParseSameSite("sideways"))
}

func TestRequireAnyGroup(t *testing.T) {
	guarded := httpx.Chain(whoami,
		httpx.Authenticate(newFakeTokens(), httpx.BearerAuth{}, httpx.AuthOptions{}),
		httpx.RequireAnyGroup("admin", "ops"),
	)

	rec := serve(t, guarded, bearerRequest("acc-ok"))
	require.Equal(t, http.StatusOK, rec.Code)

	other := newFakeTokens()
	other.parsed["acc-ok"].Payload = &tokensdk.Payload{Sub: "bob", Group: "guest"}
	guarded = httpx.Chain(whoami,
		httpx.Authenticate(other, httpx.BearerAuth{}, httpx.AuthOptions{}),
		httpx.RequireAnyGroup("admin"),
	)
	rec = serve(t, guarded, bearerRequest("acc-ok"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, httpx.RequireAnyGroup("admin")(whoami), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler, mark("outer"), mark("inner"))
	serve(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner"}, order)
}

func TestReadJSON(t *testing.T) {
	var dst struct {
		Sub string `json:"sub"`
	}

	for name, body := range map[string]string{
		"unknown field": `{"sub":"a","nope":1}`,
		"trailing":      `{"sub":"a"}{"sub":"b"}`,
		"not json":      `sub=a`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			require.Error(t, httpx.ReadJSON(httptest.NewRecorder(), req, &dst))
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sub":"alice"}`))
	require.NoError(t, httpx.ReadJSON(httptest.NewRecorder(), req, &dst))
	require.Equal(t, "alice", dst.Sub)
}
