package token

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		tok, err := New()
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(tok), MinLength)
		require.False(t, seen[tok], "duplicate token")
		seen[tok] = true

		raw, err := base58.Decode(tok)
		require.NoError(t, err)
		require.Len(t, raw, entropyBytes)
	}
}
