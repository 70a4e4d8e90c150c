package cryptox

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
)

// Email codes are six digits drawn from [EmailCodeMin, EmailCodeMax]. A
// leading zero never occurs, so every code is exactly six characters without
// padding.
const (
	EmailCodeMin    = 100000
	EmailCodeMax    = 999999
	EmailCodeLength = 6

	// MinCodeKeySize is the smallest accepted HMAC key, in bytes.
	MinCodeKeySize = 32
)

var (
	// ErrGeneration is returned when the system random source fails.
	ErrGeneration = errors.New("cryptox: random source failure")

	// ErrShortKey is returned by NewCodeHasher for keys under MinCodeKeySize.
	ErrShortKey = errors.New("cryptox: code key too short")
)

// GenerateEmailCode returns a uniformly random six digit code.
func GenerateEmailCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(EmailCodeMax-EmailCodeMin+1))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return strconv.FormatInt(n.Int64()+EmailCodeMin, 10), nil
}

// CodeHasher computes keyed digests of one-time codes so they never sit in
// the database in plaintext.
type CodeHasher struct {
	key []byte
}

// NewCodeHasher builds a hasher around a deployment secret.
func NewCodeHasher(key []byte) (*CodeHasher, error) {
	if len(key) < MinCodeKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrShortKey, len(key), MinCodeKeySize)
	}
	return &CodeHasher{key: append([]byte(nil), key...)}, nil
}

// Hash returns the hex encoded HMAC-SHA256 of code.
func (h *CodeHasher) Hash(code string) string {
	return hex.EncodeToString(h.sum(code))
}

// Verify recomputes the digest of code and compares it to storedHash in
// constant time. A stored hash that is not valid hex never matches.
func (h *CodeHasher) Verify(code, storedHash string) bool {
	want, err := hex.DecodeString(storedHash)
	if err != nil {
		return false
	}
	return hmac.Equal(h.sum(code), want)
}

func (h *CodeHasher) sum(code string) []byte {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(code))
	return mac.Sum(nil)
}
