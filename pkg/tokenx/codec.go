package tokenx

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidFormat            = errors.New("tokenx: token must have exactly 3 dot separated segments")
	ErrInvalidClaims            = errors.New("tokenx: claim segment is not valid base64url json")
	ErrMissingPayload           = errors.New("tokenx: claims have no payload")
	ErrInvalidSignatureEncoding = errors.New("tokenx: signature segment is not valid base64url")
	ErrUnknownKind              = errors.New("tokenx: unknown token kind")
	ErrUnsupportedAlgorithm     = errors.New("tokenx: unsupported algorithm")
	ErrEmptyKey                 = errors.New("tokenx: empty signing key")
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = "HS256"

// Codec signs and verifies tokens with a single symmetric key.
type Codec struct {
	key    []byte
	method *jwt.SigningMethodHMAC
}

// NewCodec builds a Codec for one of HS256, HS384 or HS512.
func NewCodec(alg string, key []byte) (*Codec, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	if alg == "" {
		alg = DefaultAlgorithm
	}

	var method *jwt.SigningMethodHMAC
	switch strings.ToUpper(alg) {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}

	k := make([]byte, len(key))
	copy(k, key)
	return &Codec{key: k, method: method}, nil
}

// Alg returns the JOSE algorithm name.
func (c *Codec) Alg() string { return c.method.Alg() }

// Sign encodes header and claims, MACs "header.claims" and returns the
// token split into message and signature.
func (c *Codec) Sign(claims Claims) (Token, error) {
	message, err := jwt.NewWithClaims(c.method, claims).SigningString()
	if err != nil {
		return Token{}, fmt.Errorf("tokenx: encode claims: %w", err)
	}

	sig, err := c.method.Sign(message, c.key)
	if err != nil {
		return Token{}, fmt.Errorf("tokenx: sign: %w", err)
	}

	return Token{
		Kind:      claims.Kind(),
		Message:   message,
		Signature: base64.RawURLEncoding.EncodeToString(sig),
	}, nil
}

// Verify recomputes the MAC over t.Message. A mismatch is (false, nil);
// a signature that cannot be decoded is ErrInvalidSignatureEncoding.
func (c *Codec) Verify(t Token) (bool, error) {
	sig, err := base64.RawURLEncoding.Strict().DecodeString(t.Signature)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSignatureEncoding, err)
	}

	err = c.method.Verify(t.Message, sig, c.key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, jwt.ErrSignatureInvalid):
		return false, nil
	default:
		return false, fmt.Errorf("tokenx: verify: %w", err)
	}
}

// Parse decodes a wire token into its claims without checking the
// signature. Callers verify separately so "malformed" and "untrusted" stay
// distinguishable.
func Parse(wire string) (Claims, Token, error) {
	if strings.Count(wire, ".") != 2 {
		return Claims{}, Token{}, ErrInvalidFormat
	}

	var claims Claims
	_, parts, err := jwt.NewParser().ParseUnverified(wire, &claims)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return Claims{}, Token{}, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
		}
		// An unknown alg header still leaves a structurally valid token.
		if !errors.Is(err, jwt.ErrTokenUnverifiable) || len(parts) != 3 {
			return Claims{}, Token{}, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
		}
	}

	if claims.Payload == nil {
		return Claims{}, Token{}, ErrMissingPayload
	}

	return claims, Token{
		Kind:      claims.Payload.Kind,
		Message:   parts[0] + "." + parts[1],
		Signature: parts[2],
	}, nil
}
