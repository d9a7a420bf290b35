package tokenx

import (
	"fmt"
	"strings"
)

// Kind distinguishes the two halves of a token pair.
type Kind int

const (
	Access Kind = iota
	Refresh
)

func (k Kind) String() string {
	switch k {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts "access" / "refresh" in any case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "access":
		return Access, nil
	case "refresh":
		return Refresh, nil
	default:
		return Access, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	if k != Access && k != Refresh {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Detail is the application payload carried inside every token.
type Detail struct {
	Sub   string `json:"sub"`
	Group string `json:"group"`
	Extra string `json:"extra"`
}

// Payload is embedded in Claims. Detail is flattened next to kind on the
// wire: {"kind":"access","sub":"u1","group":"admin","extra":""}.
type Payload struct {
	Kind Kind `json:"kind"`
	*Detail
}

// Token is a signed token split into the signed message (header.claims) and
// the base64url signature. It is a plain value and owns nothing.
type Token struct {
	Kind      Kind
	Message   string
	Signature string
}

// Signed reports whether both raw parts are present.
func (t Token) Signed() bool {
	return t.Message != "" && t.Signature != ""
}

// Wire renders the transmitted form "message.signature".
func (t Token) Wire() string {
	return t.Message + "." + t.Signature
}

// FromWire splits a wire token on its last dot without decoding anything.
// Used to rebuild tokens from cache entries that were signed by us.
func FromWire(kind Kind, wire string) (Token, error) {
	i := strings.LastIndexByte(wire, '.')
	if i <= 0 || i == len(wire)-1 {
		return Token{}, ErrInvalidFormat
	}
	return Token{Kind: kind, Message: wire[:i], Signature: wire[i+1:]}, nil
}
