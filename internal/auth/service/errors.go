package service

import (
	"errors"

	"github.com/aussiebroadwan/acctly/internal/auth/guard"
)

var (
	ErrMissingEmail      = errors.New("missing_email")
	ErrMissingCode       = errors.New("missing_code")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrWeakPassword      = errors.New("weak_password")
	ErrUnknownFactorType = errors.New("unknown_factor_type")

	// Wording stays generic so responses never reveal whether an account
	// exists.
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidPassword    = errors.New("invalid_password")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrCodeExpired        = errors.New("code_expired")
	ErrUnknownAccount     = errors.New("unknown_account")

	ErrTokenExpired = errors.New("token_expired")
	ErrTokenInvalid = errors.New("token_invalid")

	ErrFactorAlreadyEnabled = errors.New("factor_already_enabled")
	ErrFactorNotEnabled     = errors.New("factor_not_enabled")
	ErrEmailTaken           = errors.New("email_taken")
	ErrEmailAlreadyVerified = errors.New("email_already_verified")

	ErrTooManyAttempts = errors.New("too_many_attempts")

	ErrDeliveryFailed = errors.New("delivery_failed")
)

// Kind classifies service errors for transport layers.
type Kind int

const (
	// KindDependency covers persistence, transport and anything unexpected.
	KindDependency Kind = iota
	KindValidation
	KindAuthentication
	KindTokenExpired
	KindTokenInvalid
	KindStateConflict
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindTokenExpired:
		return "token_expired"
	case KindTokenInvalid:
		return "token_invalid"
	case KindStateConflict:
		return "state_conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "dependency"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrMissingEmail, KindValidation},
	{ErrMissingCode, KindValidation},
	{ErrInvalidEmail, KindValidation},
	{ErrWeakPassword, KindValidation},
	{ErrUnknownFactorType, KindValidation},

	{ErrInvalidCredentials, KindAuthentication},
	{ErrInvalidPassword, KindAuthentication},
	{ErrInvalidCode, KindAuthentication},
	{ErrCodeExpired, KindAuthentication},
	{ErrUnknownAccount, KindAuthentication},

	{ErrTokenExpired, KindTokenExpired},
	{ErrTokenInvalid, KindTokenInvalid},

	{ErrFactorAlreadyEnabled, KindStateConflict},
	{ErrFactorNotEnabled, KindStateConflict},
	{ErrEmailTaken, KindStateConflict},
	{ErrEmailAlreadyVerified, KindStateConflict},

	{ErrTooManyAttempts, KindRateLimited},
	{guard.ErrTooManyAttempts, KindRateLimited},
}

// KindOf maps err onto the error taxonomy. Unrecognised errors are
// dependency failures.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindDependency
}
