package http

import (
	"encoding/json"

	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/tokenx"
)

// subjectKey buckets RPC calls by the subject they act on instead of the
// calling service's address, since every gateway funnels its users through
// one address. Bodies without a usable subject fall back to the address.
var subjectKey = httpx.FirstKeyExtractor(
	httpx.BodyKeyExtractor(subjectOfBody),
	httpx.IPKeyExtractor,
)

// subjectOfBody reads "sub" from generate and clear bodies and the token
// subject from parse and refresh bodies. The token is not verified here;
// the key only picks a bucket.
func subjectOfBody(body []byte) string {
	var req struct {
		Sub   string `json:"sub"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return ""
	}
	if req.Sub != "" {
		return "sub:" + req.Sub
	}
	if req.Value == "" {
		return ""
	}
	claims, _, err := tokenx.Parse(req.Value)
	if err != nil || claims.Subject == "" {
		return ""
	}
	return "sub:" + claims.Subject
}
