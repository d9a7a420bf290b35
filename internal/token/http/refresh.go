package http

import (
	"net/http"

	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
)

// RefreshHandler serves POST /v1/token/refresh.
type RefreshHandler struct {
	Engine TokenEngine
}

// ServeHTTP godoc
//
//	@Summary		Refresh Token Pair
//	@Description	Exchanges a valid, unexpired refresh token for a new pair carrying the same subject,
//	@Description	audience and payload. The new pair replaces the cached one.
//	@Tags			Token
//	@Accept			json
//	@Produce		json
//	@Param			request	body		tokensdk.RefreshTokenRequest	true	"refresh token"
//	@Success		200		{object}	tokensdk.TokenPair
//	@Failure		400		{object}	tokensdk.ErrorResponse	"invalid_argument: wrong kind, expired, bad signature"
//	@Failure		429		{object}	tokensdk.ErrorResponse	"resource_exhausted"
//	@Failure		500		{object}	tokensdk.ErrorResponse	"internal"
//	@Header			200		{string}	Cache-Control	"no-store"
//	@Router			/v1/token/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tokensdk.RefreshTokenRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		tokensdk.ErrInvalidBody.WriteError(w)
		return
	}
	if req.Value == "" {
		tokensdk.ErrMissingVal.WriteError(w)
		return
	}

	pair, err := h.Engine.RefreshToken(ctx, req.Value)
	if err != nil {
		writeEngineError(w, r, "refresh", err)
		return
	}

	slogx.FromContext(ctx).InfoContext(ctx, "token_refreshed")
	httpx.WriteJSON(w, http.StatusOK, toTokenPair(pair))
}
