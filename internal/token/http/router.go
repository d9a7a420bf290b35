package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/aussiebroadwan/tollgate/api/token" // Swagger docs
	"github.com/aussiebroadwan/tollgate/internal/token/service"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
	"github.com/aussiebroadwan/tollgate/pkg/tokenx"
)

// TokenEngine is the engine surface served over RPC. *service.Engine
// implements it.
type TokenEngine interface {
	GenerateToken(ctx context.Context, sub, aud string, withJTI bool, detail *tokenx.Detail) (service.Pair, error)
	ParseToken(ctx context.Context, wire string) (service.ParseResult, error)
	RefreshToken(ctx context.Context, wire string) (service.Pair, error)
	ClearCache(ctx context.Context, sub string) error
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	engine       TokenEngine
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	// RegistryCheck reports the etcd registration state for /readyz. Nil
	// means registration is disabled.
	RegistryCheck func() error
}

func NewRouter(engine TokenEngine, buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		engine:       engine,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerToken()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Tollgate Token Service API
//	@version		0.1.0
//	@description	Issues, parses, refreshes and revokes HMAC-signed access/refresh token pairs.
//	@description
//	@description	Tokens are compact "header.claims.signature" strings signed with HS256, HS384 or HS512.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/tollgate
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:3000
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerToken() {
	// Signing endpoints share the issue budget per subject
	issue := httpx.RateLimitMiddleware(httpx.IssueLimit, subjectKey)

	r.Mux.Handle("POST "+tokensdk.PathGenerate,
		httpx.Chain(&GenerateHandler{Engine: r.engine}, issue),
	)
	r.Mux.Handle("POST "+tokensdk.PathRefresh,
		httpx.Chain(&RefreshHandler{Engine: r.engine}, issue),
	)

	// Gateways parse on every request they authenticate
	r.Mux.Handle("POST "+tokensdk.PathParse,
		httpx.Chain(&ParseHandler{Engine: r.engine},
			httpx.RateLimitMiddleware(httpx.VerifyLimit, subjectKey),
		),
	)

	r.Mux.Handle("POST "+tokensdk.PathClear,
		httpx.Chain(&ClearHandler{Engine: r.engine},
			httpx.RateLimitByIP(httpx.AdminLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET "+tokensdk.PathLiveness, LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET "+tokensdk.PathReadiness, ReadyzHandler(r.startTime, r.buildVersion, r.engine, r.RegistryCheck))
}
