package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Random value sizes in bytes, before encoding.
const (
	TokenSize128 = 16 // dummy passwords for timing equalisation
	TokenSize256 = 32 // pepper, step-up signing key, email code key
)

// GenerateToken returns size random bytes encoded as unpadded base64url.
// Secrets written to key files use this encoding too.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustGenerateToken is GenerateToken for startup code, where a failing
// random source is fatal anyway.
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to generate token: %v", err))
	}
	return token
}
