package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInferKeyType(t *testing.T) {
	tests := []struct {
		raw      string
		expected KeyType
		ok       bool
	}{
		{"maple_pk_abc123", KeyTypePublic, true},
		{"maple_sk_abc123", KeyTypePrivate, true},
		{"maple_pk_", KeyTypePublic, true},
		{"maple_xx_abc123", 0, false},
		{"pk_abc123", 0, false},
		{"", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			keyType, ok := InferKeyType(tc.raw)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.Equal(t, tc.expected, keyType)
			}
		})
	}
}

func TestKeyTypeNames(t *testing.T) {
	require.Equal(t, "public", KeyTypePublic.String())
	require.Equal(t, "private", KeyTypePrivate.String())
	require.Equal(t, "public_key_hash", KeyTypePublic.hashColumn())
	require.Equal(t, "private_key_hash", KeyTypePrivate.hashColumn())
}

func TestHashKeyDeterministicAndKeyed(t *testing.T) {
	h1 := HashKey("maple_sk_abc", "secret-a")
	h2 := HashKey("maple_sk_abc", "secret-a")
	require.Equal(t, h1, h2)

	// A different process secret yields an unrelated hash.
	require.NotEqual(t, h1, HashKey("maple_sk_abc", "secret-b"))
	require.NotEqual(t, h1, HashKey("maple_sk_abd", "secret-a"))

	// base64url without padding, long enough to carve a key id from.
	require.NotContains(t, h1, "=")
	require.NotContains(t, h1, "+")
	require.NotContains(t, h1, "/")
	require.GreaterOrEqual(t, len(h1), keyIDLen)
}
