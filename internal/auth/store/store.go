package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/acctly/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and so a Tx-scoped Store cannot start a second transaction.
type Store interface {
	Users() Users
	Factors() Factors
	EmailVerifications() EmailVerifications

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up by address, case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// MarkEmailVerified sets email_verified_at.
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) error
}

// Factors persists second factor state. All writes create the row on demand.
type Factors interface {
	// GetFactors returns the user's factor config, or the zero config when
	// nothing was ever stored.
	GetFactors(ctx context.Context, userID string) (domain.FactorConfig, error)

	// EnableApp stores a confirmed TOTP secret and turns the app factor on.
	// An app factor that is already on keeps its secret.
	EnableApp(ctx context.Context, userID, secret string) error

	// DisableApp turns the app factor off and removes the secret.
	DisableApp(ctx context.Context, userID string) error

	// SetEmailEnabled switches the email factor. Disabling also clears any
	// pending code.
	SetEmailEnabled(ctx context.Context, userID string, enabled bool) error

	// SetPendingCode overwrites the pending email code hash and expiry.
	SetPendingCode(ctx context.Context, userID, codeHash string, expiresAt time.Time) error

	// ClearPendingCode removes the pending code only if it still has
	// codeHash. It reports whether a row changed, so of two concurrent
	// callers exactly one observes true.
	ClearPendingCode(ctx context.Context, userID, codeHash string) (bool, error)

	// ClearExpiredPendingCodes removes every pending code that expired
	// before now and returns how many were cleared.
	ClearExpiredPendingCodes(ctx context.Context, now time.Time) (int64, error)
}

type EmailVerifications interface {
	// PutEmailVerification stores v, replacing any outstanding code.
	PutEmailVerification(ctx context.Context, v domain.EmailVerification) error

	// GetEmailVerification returns the outstanding code for a user.
	GetEmailVerification(ctx context.Context, userID string) (domain.EmailVerification, error)

	// ConsumeEmailVerification deletes the row only if it still has
	// codeHash and reports whether it did.
	ConsumeEmailVerification(ctx context.Context, userID, codeHash string) (bool, error)

	// DeleteExpiredEmailVerifications is housekeeping.
	DeleteExpiredEmailVerifications(ctx context.Context, now time.Time) (int64, error)
}
