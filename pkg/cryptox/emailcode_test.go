package cryptox

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var testCodeKey = []byte("0123456789abcdef0123456789abcdef")

func TestGenerateEmailCode(t *testing.T) {
	seen := make(map[string]struct{})
	for range 500 {
		code, err := GenerateEmailCode()
		require.NoError(t, err)
		require.Len(t, code, EmailCodeLength)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, EmailCodeMin)
		require.LessOrEqual(t, n, EmailCodeMax)

		seen[code] = struct{}{}
	}
	require.Greater(t, len(seen), 450, "codes should be spread over the range")
}

func TestNewCodeHasher_ShortKey(t *testing.T) {
	_, err := NewCodeHasher([]byte("short"))
	require.ErrorIs(t, err, ErrShortKey)
}

func TestCodeHasher_RoundTrip(t *testing.T) {
	h, err := NewCodeHasher(testCodeKey)
	require.NoError(t, err)

	for range 50 {
		code, err := GenerateEmailCode()
		require.NoError(t, err)

		hash := h.Hash(code)
		require.Len(t, hash, 64, "hex sha256 digest")
		require.True(t, h.Verify(code, hash))
	}
}

func TestCodeHasher_SingleCharacterMutation(t *testing.T) {
	h, err := NewCodeHasher(testCodeKey)
	require.NoError(t, err)

	code := "482913"
	hash := h.Hash(code)

	for i := range code {
		for d := byte('0'); d <= '9'; d++ {
			if code[i] == d {
				continue
			}
			mutated := code[:i] + string(d) + code[i+1:]
			require.False(t, h.Verify(mutated, hash), "mutation %q must not verify", mutated)
		}
	}
}

func TestCodeHasher_KeyMatters(t *testing.T) {
	h1, err := NewCodeHasher(testCodeKey)
	require.NoError(t, err)
	h2, err := NewCodeHasher([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)

	require.NotEqual(t, h1.Hash("123456"), h2.Hash("123456"))
	require.False(t, h2.Verify("123456", h1.Hash("123456")))
}

func TestCodeHasher_GarbageHash(t *testing.T) {
	h, err := NewCodeHasher(testCodeKey)
	require.NoError(t, err)

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"not hex", "zzzz"},
		{"truncated", h.Hash("123456")[:10]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.False(t, h.Verify("123456", tt.hash))
		})
	}
}
