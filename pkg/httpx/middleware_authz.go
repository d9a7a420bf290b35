package httpx

import (
	"net/http"
	"slices"

	"github.com/aussiebroadwan/tollgate/pkg/slogx"
	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
)

// RequireAnyGroup only lets through callers whose identity group is one of
// groups. It must run after Authenticate; a request without an identity is
// rejected with 401, a request with the wrong group with 403.
func RequireAnyGroup(groups ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeStatusError(w, http.StatusUnauthorized, tokensdk.CodeUnauthenticated, "authentication required")
				return
			}
			if !slices.Contains(groups, id.Group) {
				slogx.FromContext(r.Context()).InfoContext(r.Context(), "group_rejected",
					"sub", id.Sub, "group", id.Group)
				writeStatusError(w, http.StatusForbidden, "permission_denied", "insufficient group")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
