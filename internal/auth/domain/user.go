package domain

import "time"

type User struct {
	ID              string
	Email           string     // unique, lower-cased
	PasswordHash    string     // argon2 encoded
	EmailVerifiedAt *time.Time // Timestamp when the address was verified (nullable)
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EmailVerified reports whether the account owns its address.
func (u User) EmailVerified() bool { return u.EmailVerifiedAt != nil }
