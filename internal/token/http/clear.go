package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
)

// ClearHandler serves POST /v1/token/clear. Tokens already issued remain
// valid until they expire; only the cached pair goes away.
type ClearHandler struct {
	Engine TokenEngine
}

// ServeHTTP godoc
//
//	@Summary		Clear Cached Pair
//	@Description	Evicts the cached access and refresh tokens of a subject so that the next generate signs a new pair.
//	@Tags			Token
//	@Accept			json
//	@Param			request	body	tokensdk.ClearCacheRequest	true	"subject"
//	@Success		204		"Cache cleared"
//	@Failure		400		{object}	tokensdk.ErrorResponse	"invalid_argument"
//	@Failure		500		{object}	tokensdk.ErrorResponse	"internal"
//	@Router			/v1/token/clear [post].
func (h *ClearHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tokensdk.ClearCacheRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		tokensdk.ErrInvalidBody.WriteError(w)
		return
	}
	if strings.TrimSpace(req.Sub) == "" {
		tokensdk.ErrMissingSub.WriteError(w)
		return
	}

	if err := h.Engine.ClearCache(ctx, req.Sub); err != nil {
		writeEngineError(w, r, "clear", err)
		return
	}

	slogx.FromContext(ctx).InfoContext(ctx, "token_cache_cleared", "sub", req.Sub)
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
