package domain

import "time"

// EmailVerification is an outstanding code proving ownership of a user's
// address. At most one exists per user.
type EmailVerification struct {
	UserID    string
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether now is past the code expiry.
func (v EmailVerification) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
