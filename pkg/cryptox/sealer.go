package cryptox

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrEmptySecret = errors.New("cryptox: empty secret")
	ErrOpen        = errors.New("cryptox: ciphertext cannot be opened")
)

// Sealer encrypts small values (cookie jars) with XChaCha20-Poly1305 under a
// key derived from an operator secret. Construct one at startup and share it.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a 256-bit key from secret with HKDF-SHA256. The info
// string separates keys derived from the same secret for different uses.
func NewSealer(secret []byte, info string) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("cryptox: derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: init cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns base64url(nonce || ciphertext || tag). additional is bound to
// the ciphertext but not stored, e.g. the cookie name.
func (s *Sealer) Seal(plaintext, additional []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cryptox: nonce: %w", err)
	}

	out := s.aead.Seal(nonce, nonce, plaintext, additional)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Any tampering, wrong key or wrong additional data
// yields ErrOpen.
func (s *Sealer) Open(sealed string, additional []byte) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrOpen
	}

	ns := s.aead.NonceSize()
	if len(raw) < ns+s.aead.Overhead() {
		return nil, ErrOpen
	}

	plaintext, err := s.aead.Open(nil, raw[:ns], raw[ns:], additional)
	if err != nil {
		return nil, ErrOpen
	}
	return plaintext, nil
}
