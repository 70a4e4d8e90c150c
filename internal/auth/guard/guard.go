// Package guard holds the optional cross-request protections around code
// verification: a failed-attempt limiter and a denylist of used step-up
// tokens. Both are backed by Redis when configured and are no-ops otherwise.
package guard

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTooManyAttempts is returned once a key has used up its attempts.
	ErrTooManyAttempts = errors.New("guard: too many attempts")

	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("guard: unavailable")
)

// Attempts counts failed code submissions per key.
type Attempts interface {
	// Check returns ErrTooManyAttempts when key is locked out.
	Check(ctx context.Context, key string) error

	// RecordFailure counts one failure. It returns ErrTooManyAttempts when
	// this failure used up the last attempt.
	RecordFailure(ctx context.Context, key string) error

	// Reset forgets all failures for key.
	Reset(ctx context.Context, key string) error
}

// Denylist remembers token ids that must not be accepted again.
type Denylist interface {
	// Revoke denies id until the given time, normally the token's own expiry.
	Revoke(ctx context.Context, id string, until time.Time) error

	// Revoked reports whether id is denied.
	Revoked(ctx context.Context, id string) (bool, error)
}

// Nop implements Attempts and Denylist without keeping any state.
type Nop struct{}

func (Nop) Check(context.Context, string) error             { return nil }
func (Nop) RecordFailure(context.Context, string) error     { return nil }
func (Nop) Reset(context.Context, string) error             { return nil }
func (Nop) Revoke(context.Context, string, time.Time) error { return nil }
func (Nop) Revoked(context.Context, string) (bool, error)   { return false, nil }

var (
	_ Attempts = Nop{}
	_ Denylist = Nop{}
)
