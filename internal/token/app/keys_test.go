package app

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tollgate/pkg/slogx"
)

func TestLoadSigningKey(t *testing.T) {
	raw := []byte("0123456789abcdef0123456789abcdef")

	for name, enc := range map[string]*base64.Encoding{
		"std":     base64.StdEncoding,
		"raw std": base64.RawStdEncoding,
		"url":     base64.URLEncoding,
		"raw url": base64.RawURLEncoding,
	} {
		t.Run(name, func(t *testing.T) {
			key, err := LoadSigningKey(Config{OctKey: enc.EncodeToString(raw)}, slogx.Discard())
			require.NoError(t, err)
			require.Equal(t, raw, key)
		})
	}

	t.Run("generated", func(t *testing.T) {
		a, err := LoadSigningKey(Config{}, slogx.Discard())
		require.NoError(t, err)
		require.Len(t, a, 32)

		b, err := LoadSigningKey(Config{}, slogx.Discard())
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := LoadSigningKey(Config{OctKey: "!!not base64!!"}, slogx.Discard())
		require.ErrorContains(t, err, "TOKEN_OCT_KEY")
	})
}
