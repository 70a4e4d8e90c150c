package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/acctly/internal/auth/guard"
	"github.com/aussiebroadwan/acctly/pkg/cryptox"
	"github.com/aussiebroadwan/acctly/pkg/slogx"
	"github.com/golang-jwt/jwt/v5"
)

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func registeredSubject(userID string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: userID}
}

// checkPassword maps a password mismatch onto failErr. Any other
// verification error means the stored hash is unusable.
func checkPassword(h *cryptox.PasswordHasher, password, hash string, failErr error) error {
	err := h.VerifyPassword(password, hash)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cryptox.ErrPasswordMismatch):
		return failErr
	default:
		return fmt.Errorf("verify password: %w", err)
	}
}

// checkAttempts refuses further code submissions for a locked out key. A
// failing backend does not block logins; it is logged instead.
func checkAttempts(ctx context.Context, a guard.Attempts, key string) error {
	if a == nil {
		return nil
	}
	err := a.Check(ctx, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, guard.ErrTooManyAttempts):
		return ErrTooManyAttempts
	default:
		slogx.FromContext(ctx).Error("attempt guard unavailable", "error", err)
		return nil
	}
}

func recordFailure(ctx context.Context, a guard.Attempts, key string) {
	if a == nil {
		return
	}
	if err := a.RecordFailure(ctx, key); err != nil && !errors.Is(err, guard.ErrTooManyAttempts) {
		slogx.FromContext(ctx).Error("recording failed attempt", "error", err)
	}
}

func resetAttempts(ctx context.Context, a guard.Attempts, key string) {
	if a == nil {
		return
	}
	if err := a.Reset(ctx, key); err != nil {
		slogx.FromContext(ctx).Error("resetting attempts", "error", err)
	}
}
