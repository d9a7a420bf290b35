package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tollgate/internal/token/service"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
)

// writeEngineError converts an engine failure into the RPC error body.
// Caller mistakes surface with their message; anything else is logged and
// reported as internal.
func writeEngineError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	switch {
	case service.IsInvalidArgument(err):
		log.InfoContext(ctx, op+"_rejected", "error", err)
		tokensdk.NewError(tokensdk.CodeInvalidArgument, err.Error()).WriteError(w)
	case errors.Is(err, context.DeadlineExceeded):
		log.WarnContext(ctx, op+"_timeout", "error", err)
		tokensdk.NewError(tokensdk.CodeDeadlineExceeded, "deadline exceeded").WriteError(w)
	default:
		log.ErrorContext(ctx, op+"_failed", "error", err)
		tokensdk.ErrInternal.WriteError(w)
	}
}

func toTokenPair(p service.Pair) tokensdk.TokenPair {
	return tokensdk.TokenPair{
		Access:  tokensdk.Token{Value: p.Access.Wire(), Kind: p.Access.Kind},
		Refresh: tokensdk.Token{Value: p.Refresh.Wire(), Kind: p.Refresh.Kind},
	}
}
