package cryptox

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadOrGenerateSecret reads a base64url encoded secret from file, or
// generates one of size bytes and writes it there with 0600 permissions when
// the file does not exist yet. The same file must be kept across restarts or
// everything keyed with it (password hashes, pending codes, in-flight tokens)
// stops verifying.
func LoadOrGenerateSecret(file string, size int) ([]byte, error) {
	file = filepath.Clean(file)

	raw, err := os.ReadFile(file)
	switch {
	case err == nil:
		secret, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("cryptox: decode secret %s: %w", file, err)
		}
		if len(secret) < size {
			return nil, fmt.Errorf("cryptox: secret %s is %d bytes, need %d", file, len(secret), size)
		}
		return secret, nil

	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
			return nil, err
		}

		encoded, err := GenerateToken(size)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(file, []byte(encoded), 0600); err != nil {
			return nil, err
		}
		return base64.RawURLEncoding.DecodeString(encoded)

	default:
		return nil, err
	}
}
