package app

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/tollgate/pkg/cryptox"
)

// LoadSigningKey decodes TOKEN_OCT_KEY, or generates a random 256-bit key
// when none is configured. A generated key is not persisted: tokens stop
// verifying once the process exits, and replicas do not share it.
func LoadSigningKey(cfg Config, logger *slog.Logger) ([]byte, error) {
	if cfg.OctKey == "" {
		key, err := cryptox.GenerateSecret(cryptox.SecretSize256)
		if err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		logger.Warn("no TOKEN_OCT_KEY configured, using an ephemeral signing key",
			"fingerprint", cryptox.Fingerprint(key),
		)
		return key, nil
	}

	key, err := decodeKey(cfg.OctKey)
	if err != nil {
		return nil, fmt.Errorf("TOKEN_OCT_KEY: %w", err)
	}
	if len(key) < 32 {
		logger.Warn("signing key is shorter than 256 bits", "bytes", len(key))
	}
	logger.Info("signing key loaded", "algorithm", cfg.Algorithm, "fingerprint", cryptox.Fingerprint(key))
	return key, nil
}

// decodeKey accepts standard or URL-safe base64, padded or not.
func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if key, err := enc.DecodeString(s); err == nil && len(key) > 0 {
			return key, nil
		}
	}
	return nil, fmt.Errorf("not valid base64")
}
