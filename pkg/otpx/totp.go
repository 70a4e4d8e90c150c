// Package otpx provisions and validates time-based one-time passwords for
// authenticator apps.
package otpx

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

// Fixed TOTP parameters. Authenticator apps assume these defaults, and the
// validation window is a policy constant rather than a setting.
const (
	Period     = 30
	Digits     = otp.DigitsSix
	Algorithm  = otp.AlgorithmSHA1
	SecretSize = 20 // 160 bits
	Skew       = 2  // accepted steps either side of the current one

	qrSize = 256
)

// ErrMissingLabel is returned when no account label is supplied.
var ErrMissingLabel = errors.New("otpx: missing account label")

// Enrollment is a freshly generated, not yet confirmed, TOTP secret.
type Enrollment struct {
	Secret string // base32, no padding
	URI    string // otpauth://totp/...
}

// Generator creates TOTP secrets for a single issuer name.
type Generator struct {
	Issuer string
}

// GenerateSecret returns a new random secret and its provisioning URI for
// label, usually the account email.
func (g *Generator) GenerateSecret(label string) (Enrollment, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Enrollment{}, ErrMissingLabel
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      g.Issuer,
		AccountName: label,
		Period:      Period,
		SecretSize:  SecretSize,
		Digits:      Digits,
		Algorithm:   Algorithm,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("otpx: generate secret: %w", err)
	}

	return Enrollment{
		Secret: key.Secret(),
		URI:    key.URL(),
	}, nil
}

// QRCode renders uri as a PNG and returns it as a data URI that can be
// dropped straight into an <img> tag.
func QRCode(uri string) (string, error) {
	png, err := qrcode.Encode(uri, qrcode.Medium, qrSize)
	if err != nil {
		return "", fmt.Errorf("otpx: render qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Validate reports whether code matches secret at the given instant, allowing
// Skew steps of drift either way. Malformed codes and secrets never match.
func Validate(code, secret string, at time.Time) bool {
	if len(code) != int(Digits) || secret == "" {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    Digits,
		Algorithm: Algorithm,
	})
	if err != nil {
		return false
	}
	return ok
}

// GenerateCode returns the code for secret at the given instant. Used by tests
// and by tooling that needs to drive an enrolled account.
func GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), totp.ValidateOpts{
		Period:    Period,
		Digits:    Digits,
		Algorithm: Algorithm,
	})
}
