package app

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
)

// TokenService is the token service as the gateway uses it.
// *tokensdk.Client implements it.
type TokenService interface {
	httpx.TokenClient
	GenerateToken(ctx context.Context, req tokensdk.GenerateTokenRequest) (*tokensdk.TokenPair, error)
}

// LoginSecretHeader carries the shared secret POST /login requires.
const LoginSecretHeader = "X-Login-Secret"

// LoginRequest names the subject to log in. The group is not the caller's
// to choose.
type LoginRequest struct {
	Sub   string `json:"sub"`
	Extra string `json:"extra,omitempty"`
}

// Handler builds the gateway's routes. ready reports whether a token
// service endpoint is known; nil means always ready.
func Handler(cfg Config, tokens TokenService, ready func() error, version string) (http.Handler, error) {
	var (
		method httpx.AuthorizationMethod
		cookie *httpx.CookieAuth
	)
	switch cfg.AuthMethod {
	case MethodBearer:
		method = httpx.BearerAuth{Header: cfg.AuthHeader}
	default:
		var secret []byte
		if cfg.CookieSecret != "" {
			secret = []byte(cfg.CookieSecret)
		}
		c, err := httpx.NewCookieAuth(cfg.Cookie, secret)
		if err != nil {
			return nil, err
		}
		method, cookie = c, &c
	}

	authn := httpx.Authenticate(tokens, method, httpx.AuthOptions{
		Realm:   cfg.Realm,
		Timeout: cfg.RPCTimeout,
	})
	perSubject := httpx.RateLimitBySubject(httpx.GatewayLimit)

	mux := http.NewServeMux()
	mux.Handle("GET /whoami", httpx.Chain(http.HandlerFunc(whoami), authn, perSubject))
	mux.Handle("GET /admin/whoami", httpx.Chain(http.HandlerFunc(whoami),
		authn,
		httpx.RequireAnyGroup(cfg.AdminGroups...),
		perSubject,
	))

	if cfg.LoginAudience != "" && cfg.LoginSecret != "" {
		if slices.Contains(cfg.AdminGroups, cfg.LoginGroup) {
			return nil, fmt.Errorf("login group %q is an admin group", cfg.LoginGroup)
		}
		mux.Handle("POST /login", httpx.Chain(
			login(tokens, cfg, cookie),
			httpx.RateLimitByIP(httpx.IssueLimit),
		))
	}

	start := time.Now()
	mux.HandleFunc("GET "+tokensdk.PathLiveness, func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, tokensdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(start).Round(time.Second).String(),
			Version: version,
		})
	})
	mux.HandleFunc("GET "+tokensdk.PathReadiness, func(w http.ResponseWriter, _ *http.Request) {
		status, code := "ok", http.StatusOK
		if ready != nil {
			if err := ready(); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		httpx.WriteJSON(w, code, tokensdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(start).Round(time.Second).String(),
			Version: version,
		})
	})

	return mux, nil
}

func whoami(w http.ResponseWriter, r *http.Request) {
	id, _ := httpx.IdentityFromContext(r.Context())
	httpx.WriteJSON(w, http.StatusOK, id)
}

// login issues a pair for the posted subject in cfg.LoginGroup. It is a
// development stand-in for a real identity provider and only trusts callers
// holding cfg.LoginSecret. With cookie auth the pair goes into the token
// cookie and the response is empty.
func login(tokens TokenService, cfg Config, cookie *httpx.CookieAuth) http.Handler {
	secret := []byte(cfg.LoginSecret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get(LoginSecretHeader)), secret) != 1 {
			slogx.FromContext(r.Context()).WarnContext(r.Context(), "login_rejected")
			httpx.WriteJSON(w, http.StatusUnauthorized, tokensdk.ErrorResponse{
				Code:    tokensdk.CodeUnauthenticated,
				Message: "login secret required",
			})
			return
		}

		var req LoginRequest
		if err := httpx.ReadJSON(w, r, &req); err != nil {
			httpx.WriteJSON(w, http.StatusBadRequest, tokensdk.ErrorResponse{
				Code:    tokensdk.CodeInvalidArgument,
				Message: err.Error(),
			})
			return
		}
		if req.Sub == "" {
			tokensdk.ErrMissingSub.WriteError(w)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), cfg.RPCTimeout)
		defer cancel()

		pair, err := tokens.GenerateToken(ctx, tokensdk.GenerateTokenRequest{
			Sub: req.Sub,
			Aud: cfg.LoginAudience,
			JTI: true,
			Payload: &tokensdk.Payload{
				Sub:   req.Sub,
				Group: cfg.LoginGroup,
				Extra: req.Extra,
			},
		})
		if err != nil {
			slogx.FromContext(r.Context()).WarnContext(r.Context(), "login_failed", "sub", req.Sub, "error", err)
			writeServiceError(w, err)
			return
		}

		if cookie == nil {
			httpx.WriteJSON(w, http.StatusOK, pair)
			return
		}

		c, err := cookie.NewCookie(pair)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		http.SetCookie(w, c)
		httpx.NoCache(w)
		w.WriteHeader(http.StatusNoContent)
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	code := tokensdk.CodeOf(err)
	if code == "" {
		code = tokensdk.CodeInternal
	}
	status := tokensdk.StatusForCode(code)
	switch code {
	case tokensdk.CodeInternal:
		status = http.StatusBadGateway
	case tokensdk.CodeUnavailable, tokensdk.CodeDeadlineExceeded:
		status = http.StatusGatewayTimeout
	}
	httpx.WriteJSON(w, status, tokensdk.ErrorResponse{Code: code, Message: err.Error()})
}
