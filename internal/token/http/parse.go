package http

import (
	"net/http"

	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
)

// ParseHandler serves POST /v1/token/parse.
type ParseHandler struct {
	Engine TokenEngine
}

// ServeHTTP godoc
//
//	@Summary		Parse Token
//	@Description	Decodes a token and reports whether its signature verifies and whether it expired
//	@Description	(60 second leeway). Forged or expired tokens are not errors; only malformed ones are.
//	@Tags			Token
//	@Accept			json
//	@Produce		json
//	@Param			request	body		tokensdk.ParseTokenRequest	true	"wire token"
//	@Success		200		{object}	tokensdk.ParseTokenResponse
//	@Failure		400		{object}	tokensdk.ErrorResponse	"invalid_argument"
//	@Failure		429		{object}	tokensdk.ErrorResponse	"resource_exhausted"
//	@Router			/v1/token/parse [post].
func (h *ParseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req tokensdk.ParseTokenRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		tokensdk.ErrInvalidBody.WriteError(w)
		return
	}
	if req.Value == "" {
		tokensdk.ErrMissingVal.WriteError(w)
		return
	}

	res, err := h.Engine.ParseToken(r.Context(), req.Value)
	if err != nil {
		writeEngineError(w, r, "parse", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokensdk.ParseTokenResponse{
		Checked: res.Checked,
		Expired: res.Expired,
		Kind:    res.Kind,
		Payload: res.Detail,
	})
}
