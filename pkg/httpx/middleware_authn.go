package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/tollgate/pkg/cryptox"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
	"github.com/aussiebroadwan/tollgate/pkg/tokenx"
)

const (
	DefaultRealm       = "tollgate"
	DefaultCookieName  = "x-token"
	DefaultBearer      = "Authorization"
	DefaultAuthTimeout = 5 * time.Second

	// DefaultCookieMaxAge is how long the browser keeps the token cookie.
	DefaultCookieMaxAge = 2 * 24 * time.Hour

	// cookieSealInfo separates sealed cookie keys from any other use of
	// the same secret.
	cookieSealInfo = "tollgate cookie v1"
)

var (
	errMalformedCookie = errors.New("malformed token cookie")
	errMissingToken    = errors.New("missing token")
	errUnchecked       = errors.New("token signature not verified")
	errExpired         = errors.New("token expired")
	errWrongKind       = errors.New("unexpected token kind")
)

// TokenClient is the part of the token service Authenticate relies on.
// *tokensdk.Client satisfies it.
type TokenClient interface {
	ParseToken(ctx context.Context, value string) (*tokensdk.ParseTokenResponse, error)
	RefreshToken(ctx context.Context, value string) (*tokensdk.TokenPair, error)
}

// AuthorizationMethod selects where credentials are read from. It is
// implemented by CookieAuth and BearerAuth only.
type AuthorizationMethod interface {
	challenge(realm string) string
	authorize(ctx context.Context, c TokenClient, r *http.Request) (*authorized, error)
}

// CookieConfig holds the attributes of the token cookie.
type CookieConfig struct {
	Name     string
	Domain   string
	Path     string
	MaxAge   time.Duration
	SameSite http.SameSite
	HttpOnly bool
	Secure   bool
}

// DefaultCookieConfig returns an HttpOnly, Secure, SameSite=None cookie
// named x-token scoped to "/".
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:     DefaultCookieName,
		Path:     "/",
		MaxAge:   DefaultCookieMaxAge,
		SameSite: http.SameSiteNoneMode,
		HttpOnly: true,
		Secure:   true,
	}
}

// ParseSameSite maps "none", "lax" and "strict" (any case) to the
// http.SameSite mode. Anything else yields SameSite=None.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteNoneMode
	}
}

// CookieAuth reads "access|refresh" from a cookie. When Sealer is set the
// cookie value is sealed and opened with it.
type CookieAuth struct {
	Config CookieConfig
	Sealer *cryptox.Sealer
}

// NewCookieAuth builds a CookieAuth. An empty secret leaves the cookie
// unsealed.
func NewCookieAuth(cfg CookieConfig, secret []byte) (CookieAuth, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultCookieName
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultCookieMaxAge
	}
	auth := CookieAuth{Config: cfg}
	if len(secret) == 0 {
		return auth, nil
	}
	sealer, err := cryptox.NewSealer(secret, cookieSealInfo)
	if err != nil {
		return CookieAuth{}, fmt.Errorf("cookie sealer: %w", err)
	}
	auth.Sealer = sealer
	return auth, nil
}

// BearerAuth reads a token from a request header, "Authorization" unless
// Header says otherwise. A "Bearer " prefix is stripped when present.
type BearerAuth struct {
	Header string
}

// AuthOptions tunes Authenticate.
type AuthOptions struct {
	// Realm is reported in WWW-Authenticate challenges.
	Realm string

	// Timeout bounds the token service calls of a single request.
	Timeout time.Duration
}

// authorized is a request that passed authentication. header holds the
// rewrite that must reach the client along with the response.
type authorized struct {
	identity Identity
	header   http.Header
}

func (a *authorized) apply(w http.ResponseWriter) {
	for k, vs := range a.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
}

// Authenticate resolves the caller through the token service and injects
// the identity into the request context.
//
// Failures map onto status codes by the error code the token service
// reports. Only invalid_argument and unauthenticated (local rejections
// included) answer 401 with a WWW-Authenticate challenge. Unavailable and
// deadline_exceeded answer 504, resource_exhausted answers 503 and anything
// else, untyped errors included, answers 502. A request whose context was
// cancelled gets no response at all.
func Authenticate(client TokenClient, method AuthorizationMethod, opts AuthOptions) Middleware {
	if opts.Realm == "" {
		opts.Realm = DefaultRealm
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultAuthTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
			auth, err := method.authorize(callCtx, client, r)
			cancel()

			if err != nil {
				if ctx.Err() != nil {
					log.DebugContext(ctx, "auth_aborted", "reason", ctx.Err())
					return
				}
				writeAuthError(w, method.challenge(opts.Realm), err)
				log.InfoContext(ctx, "auth_rejected", "error", err)
				return
			}

			auth.apply(w)
			ctx = slogx.With(WithIdentity(ctx, auth.identity), "sub", auth.identity.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, challenge string, err error) {
	switch tokensdk.CodeOf(err) {
	case tokensdk.CodeInvalidArgument, tokensdk.CodeUnauthenticated:
		w.Header().Set("WWW-Authenticate", challenge)
		writeStatusError(w, http.StatusUnauthorized, tokensdk.CodeUnauthenticated, "authentication required")
	case tokensdk.CodeUnavailable, tokensdk.CodeDeadlineExceeded:
		writeStatusError(w, http.StatusGatewayTimeout, tokensdk.CodeUnavailable, "token service unreachable")
	case tokensdk.CodeResourceExhausted:
		w.Header().Set("Retry-After", "1")
		writeStatusError(w, http.StatusServiceUnavailable, tokensdk.CodeUnavailable, "token service busy")
	default:
		writeStatusError(w, http.StatusBadGateway, tokensdk.CodeInternal, "token service failed")
	}
}

func writeStatusError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, tokensdk.ErrorResponse{Code: code, Message: message})
}

// unauthenticated marks a local rejection so that it maps to 401.
func unauthenticated(err error) error {
	return &tokensdk.Error{
		StatusCode: http.StatusUnauthorized,
		Code:       tokensdk.CodeUnauthenticated,
		Message:    err.Error(),
		Err:        err,
	}
}

func identityOf(p *tokensdk.Payload) Identity {
	if p == nil {
		return Identity{}
	}
	return Identity{Sub: p.Sub, Group: p.Group, Extra: p.Extra}
}

// ============================================================================
// Cookie
// ============================================================================

func (c CookieAuth) challenge(realm string) string {
	return fmt.Sprintf("Cookie realm=%s,charset=UTF-8,cookie-name=%s", realm, c.cookieName())
}

func (c CookieAuth) cookieName() string {
	if c.Config.Name == "" {
		return DefaultCookieName
	}
	return c.Config.Name
}

func (c CookieAuth) authorize(ctx context.Context, client TokenClient, r *http.Request) (*authorized, error) {
	cookie, err := r.Cookie(c.cookieName())
	if err != nil {
		return nil, unauthenticated(errMissingToken)
	}

	access, refresh, err := c.decode(cookie.Value)
	if err != nil {
		return nil, unauthenticated(err)
	}

	parsed, err := client.ParseToken(ctx, access)
	if err != nil {
		return nil, err
	}
	if !parsed.Checked {
		return nil, unauthenticated(errUnchecked)
	}
	if parsed.Kind != tokenx.Access {
		return nil, unauthenticated(errWrongKind)
	}

	auth := &authorized{identity: identityOf(parsed.Payload), header: http.Header{}}
	if !parsed.Expired {
		return auth, nil
	}

	pair, err := client.RefreshToken(ctx, refresh)
	if err != nil {
		return nil, err
	}
	value, err := c.encode(pair.Access.Value, pair.Refresh.Value)
	if err != nil {
		return nil, err
	}
	auth.header.Add("Set-Cookie", c.newCookie(value).String())
	return auth, nil
}

func (c CookieAuth) decode(value string) (access, refresh string, err error) {
	if c.Sealer != nil {
		plain, err := c.Sealer.Open(value, []byte(c.cookieName()))
		if err != nil {
			return "", "", errMalformedCookie
		}
		value = string(plain)
	}

	parts := strings.Split(value, "|")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errMalformedCookie
	}
	return parts[0], parts[1], nil
}

func (c CookieAuth) encode(access, refresh string) (string, error) {
	value := access + "|" + refresh
	if c.Sealer == nil {
		return value, nil
	}
	sealed, err := c.Sealer.Seal([]byte(value), []byte(c.cookieName()))
	if err != nil {
		return "", &tokensdk.Error{
			StatusCode: http.StatusInternalServerError,
			Code:       tokensdk.CodeInternal,
			Message:    "seal cookie",
			Err:        err,
		}
	}
	return sealed, nil
}

// NewCookie returns the token cookie carrying pair, sealed when a Sealer is
// configured. Login handlers use it to hand a fresh pair to the browser.
func (c CookieAuth) NewCookie(pair *tokensdk.TokenPair) (*http.Cookie, error) {
	value, err := c.encode(pair.Access.Value, pair.Refresh.Value)
	if err != nil {
		return nil, err
	}
	return c.newCookie(value), nil
}

func (c CookieAuth) newCookie(value string) *http.Cookie {
	maxAge := c.Config.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultCookieMaxAge
	}
	path := c.Config.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     c.cookieName(),
		Value:    value,
		Domain:   c.Config.Domain,
		Path:     path,
		MaxAge:   int(maxAge / time.Second),
		SameSite: c.Config.SameSite,
		HttpOnly: c.Config.HttpOnly,
		Secure:   c.Config.Secure,
	}
}

// ============================================================================
// Bearer
// ============================================================================

func (BearerAuth) challenge(realm string) string {
	return fmt.Sprintf("Bearer realm=%s,charset=UTF-8", realm)
}

func (b BearerAuth) header() string {
	if b.Header == "" {
		return DefaultBearer
	}
	return b.Header
}

func (b BearerAuth) authorize(ctx context.Context, client TokenClient, r *http.Request) (*authorized, error) {
	raw := strings.TrimSpace(r.Header.Get(b.header()))
	token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if token == "" {
		return nil, unauthenticated(errMissingToken)
	}

	parsed, err := client.ParseToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if parsed.Expired {
		return nil, unauthenticated(errExpired)
	}
	if !parsed.Checked {
		return nil, unauthenticated(errUnchecked)
	}

	auth := &authorized{identity: identityOf(parsed.Payload), header: http.Header{}}
	if parsed.Kind != tokenx.Refresh {
		return auth, nil
	}

	pair, err := client.RefreshToken(ctx, token)
	if err != nil {
		return nil, err
	}
	auth.header.Set("set-"+strings.ToLower(b.header()),
		fmt.Sprintf("access=%s,refresh=%s", pair.Access.Value, pair.Refresh.Value))
	return auth, nil
}
