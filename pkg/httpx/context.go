package httpx

import "context"

type ctxKey string

const CtxKeyIdentity ctxKey = "identity"

// Identity is the caller established by Authenticate. It mirrors the
// payload carried inside the access token.
type Identity struct {
	Sub   string `json:"sub"`
	Group string `json:"group"`
	Extra string `json:"extra"`
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, CtxKeyIdentity, id)
}

// IdentityFromContext returns the identity injected by Authenticate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(CtxKeyIdentity).(Identity)
	return id, ok
}
