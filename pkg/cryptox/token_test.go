package cryptox

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantLen int
	}{
		{"128-bit secret", SecretSize128, 22},
		{"256-bit secret", SecretSize256, 43},
		{"512-bit secret", SecretSize512, 86},
		{"custom size", 24, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.Len(t, token, tt.wantLen)

			raw, err := base64.RawURLEncoding.DecodeString(token)
			require.NoError(t, err)
			require.Len(t, raw, tt.size)

			token2, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, token, token2, "tokens should be unique")
		})
	}
}

func TestGenerateSecret_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		secret, err := GenerateSecret(size)
		require.Error(t, err)
		require.Nil(t, secret)

		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("key-a"))
	require.Equal(t, a, Fingerprint([]byte("key-a")), "fingerprint should be deterministic")
	require.NotEqual(t, a, Fingerprint([]byte("key-b")))
	require.Len(t, a, 11)
}
