package jwtx

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Step-up token lifetimes.
const (
	EnrollmentTokenTTL = 10 * time.Minute
	LoginTokenTTL      = 5 * time.Minute

	// MinStepUpKeySize is the smallest accepted HS256 key, in bytes.
	MinStepUpKeySize = 32
)

// Purpose separates tokens minted for factor enrollment from tokens minted
// for the second leg of a login. A token is only accepted for its own purpose.
type Purpose string

const (
	PurposeEnroll Purpose = "enroll"
	PurposeLogin  Purpose = "login"
)

// StepUpClaims carry an in-progress authentication between requests without
// any server side session: who is authenticating, which factor they are
// completing and, during app enrollment, the secret awaiting confirmation.
type StepUpClaims struct {
	jwt.RegisteredClaims

	Purpose Purpose `json:"pur"`
	Factor  string  `json:"fac"`
	Email   string  `json:"email,omitempty"`

	// Unconfirmed TOTP secret, enrollment tokens only.
	TOTPSecret string `json:"totp,omitempty"`
}

// StepUpIssuer signs and verifies step-up tokens with a symmetric key.
type StepUpIssuer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewStepUpIssuer returns an issuer that signs with HS256 under key.
func NewStepUpIssuer(key []byte, issuer string) (*StepUpIssuer, error) {
	if len(key) < MinStepUpKeySize {
		return nil, fmt.Errorf("jwtx: step-up key is %d bytes, need %d", len(key), MinStepUpKeySize)
	}
	return &StepUpIssuer{
		key:    append([]byte(nil), key...),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of the issuer reading time from now.
func (s *StepUpIssuer) WithClock(now func() time.Time) *StepUpIssuer {
	cp := *s
	cp.now = now
	return &cp
}

// Issue signs claims with an absolute expiry ttl from now. Issuer, issued-at,
// expiry and token id are always set by the issuer.
func (s *StepUpIssuer) Issue(claims StepUpClaims, ttl time.Duration) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(ttl)

	claims.Issuer = s.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	claims.ID = NewJTI()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwtx: sign step-up token: %w", err)
	}

	// Expiry is carried with second precision.
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks the signature and expiry of token and returns its claims.
// A correctly signed token of ours past its expiry fails with ErrExpired;
// every other failure (tampering, wrong key, wrong issuer, garbage) is
// ErrInvalidToken, even when the token is also past its expiry.
func (s *StepUpIssuer) Verify(token string) (StepUpClaims, error) {
	return s.verify(token, "")
}

// VerifyPurpose is Verify plus a check that the token was minted for want.
// A token minted for another purpose is invalid whether or not it expired.
func (s *StepUpIssuer) VerifyPurpose(token string, want Purpose) (StepUpClaims, error) {
	return s.verify(token, want)
}

// verify validates claims itself so expiry is only reported once every other
// check has passed. An empty want accepts any purpose.
func (s *StepUpIssuer) verify(token string, want Purpose) (StepUpClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	var claims StepUpClaims
	if _, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}); err != nil {
		return StepUpClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	switch {
	case claims.Issuer != s.issuer:
		return StepUpClaims{}, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	case claims.Subject == "" || claims.ID == "" || claims.Purpose == "" || claims.ExpiresAt == nil:
		return StepUpClaims{}, fmt.Errorf("%w: missing required claims", ErrInvalidToken)
	case want != "" && claims.Purpose != want:
		return StepUpClaims{}, fmt.Errorf("%w: token minted for %q", ErrInvalidToken, claims.Purpose)
	}

	now := s.now()
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return StepUpClaims{}, fmt.Errorf("%w: token not valid yet", ErrInvalidToken)
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return StepUpClaims{}, ErrExpired
	}
	return claims, nil
}
