package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aussiebroadwan/tollgate/internal/token/cache"
	"github.com/aussiebroadwan/tollgate/pkg/clock"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
	"github.com/aussiebroadwan/tollgate/pkg/tokenx"
)

const tracerName = "github.com/aussiebroadwan/tollgate/internal/token/service"

const (
	DefaultDomain       = "token"
	DefaultRefreshRatio = 3.0
)

// Config is the engine's static setup. It is copied at construction.
type Config struct {
	Key          []byte
	Method       string            // HS256 (default), HS384 or HS512
	Domain       string            // iss claim, default "token"
	RefreshRatio float64           // refresh lifetime multiplier, default 3.0
	Expires      map[string]uint64 // audience -> access lifetime in seconds
}

type Dependencies struct {
	Cache  cache.Cache
	Clock  clock.Clock  // defaults to the real clock
	Logger *slog.Logger // fallback when the request context carries none
}

// Pair is an access token and its refresh token, always minted together.
type Pair struct {
	Access  tokenx.Token
	Refresh tokenx.Token
}

// ParseResult describes a token without passing judgement on it. Callers
// decide what to trust from Checked and Expired.
type ParseResult struct {
	Checked bool
	Expired bool
	Kind    tokenx.Kind
	Detail  *tokenx.Detail
	Claims  tokenx.Claims
}

// Engine signs, parses, refreshes and revokes tokens. It is immutable after
// NewEngine and safe for concurrent use; the cache is the only shared
// mutable state.
type Engine struct {
	codec   *tokenx.Codec
	domain  string
	ratio   float64
	expires map[string]uint64

	cache  cache.Cache
	clock  clock.Clock
	logger *slog.Logger
	tracer trace.Tracer
}

func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if deps.Cache == nil {
		return nil, errors.New("service: engine requires a cache")
	}
	if cfg.Method == "" {
		cfg.Method = tokenx.DefaultAlgorithm
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if cfg.RefreshRatio <= 0 {
		cfg.RefreshRatio = DefaultRefreshRatio
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	codec, err := tokenx.NewCodec(cfg.Method, cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	return &Engine{
		codec:   codec,
		domain:  cfg.Domain,
		ratio:   cfg.RefreshRatio,
		expires: maps.Clone(cfg.Expires),
		cache:   deps.Cache,
		clock:   deps.Clock,
		logger:  deps.Logger,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// GenerateToken returns the pair for sub. A pair already cached under sub is
// returned as-is without re-validation, even when aud or detail differ from
// the cached one; entries expire a leeway before their tokens do.
func (e *Engine) GenerateToken(ctx context.Context, sub, aud string, withJTI bool, detail *tokenx.Detail) (pair Pair, err error) {
	ctx, span := e.tracer.Start(ctx, "token.Generate", trace.WithAttributes(
		attribute.String("token.sub", sub),
		attribute.String("token.aud", aud),
	))
	defer func() { finishSpan(span, err) }()

	if cached, ok := e.cachedPair(ctx, sub); ok {
		span.SetAttributes(attribute.Bool("token.cache_hit", true))
		return cached, nil
	}
	span.SetAttributes(attribute.Bool("token.cache_hit", false))

	return e.mint(ctx, sub, aud, withJTI, detail)
}

// ParseToken decodes wire and reports whether its signature checks out and
// whether it has expired. Only a malformed token is an error.
func (e *Engine) ParseToken(ctx context.Context, wire string) (res ParseResult, err error) {
	_, span := e.tracer.Start(ctx, "token.Parse")
	defer func() { finishSpan(span, err) }()

	claims, tok, err := tokenx.Parse(wire)
	if err != nil {
		return ParseResult{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	checked, err := e.codec.Verify(tok)
	if err != nil {
		return ParseResult{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	res = ParseResult{
		Checked: checked,
		Expired: claims.IsExpired(e.clock.Now()),
		Kind:    claims.Kind(),
		Detail:  claims.Detail(),
		Claims:  claims,
	}
	span.SetAttributes(
		attribute.Bool("token.checked", res.Checked),
		attribute.Bool("token.expired", res.Expired),
		attribute.String("token.kind", res.Kind.String()),
	)
	return res, nil
}

// RefreshToken exchanges a valid, unexpired refresh token for a new pair.
// The new pair always replaces whatever is cached for the subject.
func (e *Engine) RefreshToken(ctx context.Context, wire string) (pair Pair, err error) {
	ctx, span := e.tracer.Start(ctx, "token.Refresh")
	defer func() { finishSpan(span, err) }()

	claims, tok, err := tokenx.Parse(wire)
	if err != nil {
		return Pair{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Kind() != tokenx.Refresh {
		return Pair{}, ErrWrongKind
	}
	if claims.IsExpired(e.clock.Now()) {
		return Pair{}, ErrTokenExpired
	}

	ok, err := e.codec.Verify(tok)
	if err != nil {
		return Pair{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !ok {
		return Pair{}, ErrBadSignature
	}

	span.SetAttributes(attribute.String("token.sub", claims.Subject))
	return e.mint(ctx, claims.Subject, claims.Audience, false, claims.Detail())
}

// ClearCache evicts both cached tokens for sub. Tokens already handed out
// stay valid until they expire.
func (e *Engine) ClearCache(ctx context.Context, sub string) (err error) {
	ctx, span := e.tracer.Start(ctx, "token.ClearCache", trace.WithAttributes(
		attribute.String("token.sub", sub),
	))
	defer func() { finishSpan(span, err) }()

	for _, kind := range []tokenx.Kind{tokenx.Access, tokenx.Refresh} {
		if err := e.cache.Del(ctx, sub, kind); err != nil {
			return fmt.Errorf("service: clear %s: %w", kind, err)
		}
	}
	return nil
}

// Ping reports whether the cache backend is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	return e.cache.Ping(ctx)
}

// Audiences lists the configured audiences.
func (e *Engine) Audiences() []string {
	out := make([]string, 0, len(e.expires))
	for aud := range e.expires {
		out = append(out, aud)
	}
	return out
}

func (e *Engine) mint(ctx context.Context, sub, aud string, withJTI bool, detail *tokenx.Detail) (Pair, error) {
	base, ok := e.expires[aud]
	if !ok {
		return Pair{}, fmt.Errorf("%w: %q", ErrUnknownAudience, aud)
	}

	now := e.clock.Now()
	iat := now.Unix()

	access := tokenx.Claims{
		ExpiresAt: iat + int64(base),
		Audience:  aud,
		IssuedAt:  iat,
		Issuer:    e.domain,
		Subject:   sub,
		Payload:   &tokenx.Payload{Kind: tokenx.Access, Detail: detail},
	}
	refresh := access
	refresh.ExpiresAt = iat + int64(float64(base)*e.ratio)
	refresh.Payload = &tokenx.Payload{Kind: tokenx.Refresh, Detail: detail}

	if withJTI {
		access.ID = uuid.NewString()
		refresh.ID = uuid.NewString()
	}

	var pair Pair
	var err error
	if pair.Access, err = e.codec.Sign(access); err != nil {
		return Pair{}, fmt.Errorf("%w: %w", ErrSigning, err)
	}
	if pair.Refresh, err = e.codec.Sign(refresh); err != nil {
		return Pair{}, fmt.Errorf("%w: %w", ErrSigning, err)
	}

	e.store(ctx, sub, pair.Access, cache.TTL(now, access.ExpiresAt))
	e.store(ctx, sub, pair.Refresh, cache.TTL(now, refresh.ExpiresAt))
	return pair, nil
}

func (e *Engine) cachedPair(ctx context.Context, sub string) (Pair, bool) {
	access, ok := e.cached(ctx, sub, tokenx.Access)
	if !ok {
		return Pair{}, false
	}
	refresh, ok := e.cached(ctx, sub, tokenx.Refresh)
	if !ok {
		return Pair{}, false
	}
	return Pair{Access: access, Refresh: refresh}, true
}

func (e *Engine) cached(ctx context.Context, sub string, kind tokenx.Kind) (tokenx.Token, bool) {
	wire, ok, err := e.cache.Get(ctx, sub, kind)
	if err != nil {
		e.log(ctx).Warn("token cache read failed, re-signing",
			"sub", sub, "kind", kind.String(), "error", err)
		return tokenx.Token{}, false
	}
	if !ok {
		return tokenx.Token{}, false
	}

	tok, err := tokenx.FromWire(kind, wire)
	if err != nil {
		e.log(ctx).Warn("discarding malformed cache entry",
			"sub", sub, "kind", kind.String(), "error", err)
		return tokenx.Token{}, false
	}
	return tok, true
}

func (e *Engine) store(ctx context.Context, sub string, tok tokenx.Token, ttl time.Duration) {
	if err := e.cache.Set(ctx, sub, tok.Kind, tok.Wire(), ttl); err != nil {
		e.log(ctx).Warn("token cache write failed",
			"sub", sub, "kind", tok.Kind.String(), "error", err)
	}
}

func (e *Engine) log(ctx context.Context) *slog.Logger {
	if l := slogx.FromContext(ctx); l != slog.Default() {
		return l
	}
	return e.logger
}

// finishSpan records err on span, if any, and ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
