package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
)

// GenerateHandler serves POST /v1/token/generate. A pair already cached for
// the subject is returned unchanged.
type GenerateHandler struct {
	Engine TokenEngine
}

// ServeHTTP godoc
//
//	@Summary		Generate Token Pair
//	@Description	Returns an access/refresh pair for sub. When a pair is cached for sub it is returned as-is,
//	@Description	even if aud or payload differ from the cached one.
//	@Tags			Token
//	@Accept			json
//	@Produce		json
//	@Param			request	body		tokensdk.GenerateTokenRequest	true	"subject, audience, options"
//	@Success		200		{object}	tokensdk.TokenPair
//	@Failure		400		{object}	tokensdk.ErrorResponse	"invalid_argument"
//	@Failure		429		{object}	tokensdk.ErrorResponse	"resource_exhausted"
//	@Failure		500		{object}	tokensdk.ErrorResponse	"internal"
//	@Header			200		{string}	Cache-Control	"no-store"
//	@Router			/v1/token/generate [post].
func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req tokensdk.GenerateTokenRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		log.DebugContext(ctx, "generate_bad_body", "error", err)
		tokensdk.ErrInvalidBody.WriteError(w)
		return
	}
	if strings.TrimSpace(req.Sub) == "" {
		tokensdk.ErrMissingSub.WriteError(w)
		return
	}
	if strings.TrimSpace(req.Aud) == "" {
		tokensdk.ErrMissingAud.WriteError(w)
		return
	}

	pair, err := h.Engine.GenerateToken(ctx, req.Sub, req.Aud, req.JTI, req.Payload)
	if err != nil {
		writeEngineError(w, r, "generate", err)
		return
	}

	log.InfoContext(ctx, "token_generated", "sub", req.Sub, "aud", req.Aud)
	httpx.WriteJSON(w, http.StatusOK, toTokenPair(pair))
}
