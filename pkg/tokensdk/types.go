package tokensdk

import "github.com/aussiebroadwan/tollgate/pkg/tokenx"

// ============================================================================
// Routes
// ============================================================================

const (
	PathGenerate  = "/v1/token/generate"
	PathParse     = "/v1/token/parse"
	PathRefresh   = "/v1/token/refresh"
	PathClear     = "/v1/token/clear"
	PathLiveness  = "/livez"
	PathReadiness = "/readyz"
)

// ============================================================================
// Token Types
// ============================================================================

// Payload is the application identity carried inside every token.
type Payload = tokenx.Detail

// Token is a signed token in wire form together with its kind.
type Token struct {
	// Value is the compact "header.claims.signature" string
	Value string `json:"value"`

	// Kind is "access" or "refresh"
	Kind tokenx.Kind `json:"kind"`
}

// TokenPair is returned by generate and refresh. Both halves are always
// present.
type TokenPair struct {
	Access  Token `json:"access"`
	Refresh Token `json:"refresh"`
}

// GenerateTokenRequest asks the engine for a pair. When a pair is already
// cached for Sub it is returned unchanged.
type GenerateTokenRequest struct {
	Sub     string   `json:"sub"`
	Aud     string   `json:"aud"`
	JTI     bool     `json:"jti,omitempty"`
	Payload *Payload `json:"payload,omitempty"`
}

// ParseTokenRequest carries a single wire token.
type ParseTokenRequest struct {
	Value string `json:"value"`
}

// ParseTokenResponse describes a token. Checked is the signature verdict and
// Expired applies the 60 second leeway; kind and payload are reported either
// way so callers decide what to trust.
type ParseTokenResponse struct {
	Checked bool        `json:"checked"`
	Expired bool        `json:"expired"`
	Kind    tokenx.Kind `json:"kind"`
	Payload *Payload    `json:"payload,omitempty"`
}

// RefreshTokenRequest carries the refresh half of a pair.
type RefreshTokenRequest struct {
	Value string `json:"value"`
}

// ClearCacheRequest evicts the cached pair of a subject.
type ClearCacheRequest struct {
	Sub string `json:"sub"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains the status of individual dependencies (readyz only)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of the engine's dependencies.
type HealthChecks struct {
	// Cache indicates whether the token cache backend answers
	Cache string `json:"cache"`

	// Registry indicates whether the service is registered in etcd
	// ("disabled" when registration is turned off)
	Registry string `json:"registry"`
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
