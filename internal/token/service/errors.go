package service

import (
	"errors"

	"github.com/aussiebroadwan/tollgate/pkg/tokenx"
)

// Caller errors. The RPC layer reports all of them as invalid_argument.
var (
	ErrUnknownAudience = errors.New("unknown audience")
	ErrInvalidToken    = errors.New("invalid token")
	ErrWrongKind       = errors.New("wrong token kind")
	ErrTokenExpired    = errors.New("token expired")
	ErrBadSignature    = errors.New("bad signature")
)

// ErrSigning means the engine could not produce a token. It indicates a
// broken key or algorithm setup rather than a bad request.
var ErrSigning = errors.New("sign token")

// IsInvalidArgument reports whether err was caused by the caller's input.
func IsInvalidArgument(err error) bool {
	for _, target := range []error{
		ErrUnknownAudience,
		ErrInvalidToken,
		ErrWrongKind,
		ErrTokenExpired,
		ErrBadSignature,
		tokenx.ErrInvalidSignatureEncoding,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
