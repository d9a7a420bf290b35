package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Secret size constants (in bytes before encoding).
const (
	// SecretSize128 provides 128 bits of entropy (22 chars base64url).
	SecretSize128 = 16
	// SecretSize256 provides 256 bits of entropy (43 chars base64url). This
	// is the default size of an HMAC signing key.
	SecretSize256 = 32
	// SecretSize512 provides 512 bits of entropy (86 chars base64url).
	SecretSize512 = 64
)

// GenerateSecret returns size cryptographically random bytes.
func GenerateSecret(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate random secret: %w", err)
	}
	return buf, nil
}

// GenerateToken is GenerateSecret rendered as base64url without padding,
// handy for secrets that travel through env vars or config files.
func GenerateToken(size int) (string, error) {
	buf, err := GenerateSecret(size)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Fingerprint returns a short, non-reversible identifier for secret material
// so logs can tell keys apart without leaking them. The first 8 bytes of the
// SHA-256 digest, base64url encoded (11 chars).
func Fingerprint(secret []byte) string {
	sum := sha256.Sum256(secret)
	return base64.RawURLEncoding.EncodeToString(sum[:8])
}
