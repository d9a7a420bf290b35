package tokenx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Leeway is the grace window applied to exp when deciding expiry. It soaks up
// clock skew between services and requests already in flight.
const Leeway = 60 * time.Second

// Claims is the signed body of a token. Only exp is mandatory; the remaining
// registered fields are dropped from the JSON when empty.
type Claims struct {
	ExpiresAt int64  `json:"exp"`
	Audience  string `json:"aud,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	Subject   string `json:"sub,omitempty"`
	ID        string `json:"jti,omitempty"`

	// Payload carries the token kind so a parsed token describes itself.
	Payload *Payload `json:"payload"`
}

// IsExpired reports whether exp < now - Leeway.
func (c Claims) IsExpired(now time.Time) bool {
	return c.ExpiresAt < now.Add(-Leeway).Unix()
}

// Kind returns the payload kind, Access when there is no payload.
func (c Claims) Kind() Kind {
	if c.Payload == nil {
		return Access
	}
	return c.Payload.Kind
}

// Detail returns the application payload or nil.
func (c Claims) Detail() *Detail {
	if c.Payload == nil {
		return nil
	}
	return c.Payload.Detail
}

// jwt.Claims implementation so the library can encode and decode us.

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return numericDate(c.ExpiresAt), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return numericDate(c.IssuedAt), nil
}

func (c Claims) GetNotBefore() (*jwt.NumericDate, error) {
	return numericDate(c.NotBefore), nil
}

func (c Claims) GetIssuer() (string, error)  { return c.Issuer, nil }
func (c Claims) GetSubject() (string, error) { return c.Subject, nil }

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}

func numericDate(unix int64) *jwt.NumericDate {
	if unix == 0 {
		return nil
	}
	return jwt.NewNumericDate(time.Unix(unix, 0))
}
