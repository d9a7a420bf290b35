package idx_test

import (
	"strings"
	"testing"

	"github.com/aussiebroadwan/tollgate/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := idx.New()
	require.NotEqual(t, idx.Zero, id)

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "not-a-ulid", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z", "req-123"} {
		_, err := idx.Parse(in)
		require.ErrorIs(t, err, idx.ErrInvalid, "input %q", in)
	}
}

func TestNewIsOrdered(t *testing.T) {
	prev := idx.New()
	for range 100 {
		next := idx.New()
		require.Negative(t, strings.Compare(prev.String(), next.String()))
		prev = next
	}
}

func TestInstance(t *testing.T) {
	a := idx.Instance()
	b := idx.Instance()

	require.Len(t, a, 26)
	require.Equal(t, strings.ToLower(a), a)
	require.NotEqual(t, a, b)

	// Lowercase suffixes still parse back to the canonical form.
	id, err := idx.Parse(a)
	require.NoError(t, err)
	require.Equal(t, strings.ToUpper(a), id.String())
}
