package domain

import (
	"errors"
	"strings"
	"time"
)

// FactorType names a second authentication factor.
type FactorType string

const (
	FactorApp   FactorType = "app"   // TOTP authenticator app
	FactorEmail FactorType = "email" // one-time code sent by email
)

// ErrUnknownFactor is returned by ParseFactorType.
var ErrUnknownFactor = errors.New("unknown_factor_type")

// ParseFactorType accepts the wire names of the supported factors.
func ParseFactorType(s string) (FactorType, error) {
	switch FactorType(strings.ToLower(strings.TrimSpace(s))) {
	case FactorApp:
		return FactorApp, nil
	case FactorEmail:
		return FactorEmail, nil
	default:
		return "", ErrUnknownFactor
	}
}

func (f FactorType) String() string { return string(f) }

// FactorConfig is the per-user second factor state. A user without a stored
// row has the zero value.
type FactorConfig struct {
	UserID string

	AppEnabled bool
	TOTPSecret *string // base32, present only once app enrollment is confirmed

	EmailEnabled bool

	// Pending email code; both set or both nil.
	PendingCodeHash      *string
	PendingCodeExpiresAt *time.Time

	UpdatedAt time.Time
}

// Enabled reports whether factor f is switched on.
func (c FactorConfig) Enabled(f FactorType) bool {
	switch f {
	case FactorApp:
		return c.AppEnabled
	case FactorEmail:
		return c.EmailEnabled
	default:
		return false
	}
}

// Preferred returns the factor a login must complete, if any. The app factor
// wins when both are enabled.
func (c FactorConfig) Preferred() (FactorType, bool) {
	switch {
	case c.AppEnabled:
		return FactorApp, true
	case c.EmailEnabled:
		return FactorEmail, true
	default:
		return "", false
	}
}

// HasPendingCode reports whether an email code is waiting to be used.
func (c FactorConfig) HasPendingCode() bool {
	return c.PendingCodeHash != nil && c.PendingCodeExpiresAt != nil
}
