package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/acctly/internal/auth/domain"
	"github.com/aussiebroadwan/acctly/internal/auth/guard"
	"github.com/aussiebroadwan/acctly/internal/auth/store"
	"github.com/aussiebroadwan/acctly/pkg/cryptox"
	"github.com/aussiebroadwan/acctly/pkg/mailx"
	"github.com/aussiebroadwan/acctly/pkg/slogx"
)

// DefaultVerificationCodeTTL is how long an address verification code
// stays valid.
const DefaultVerificationCodeTTL = 5 * time.Minute

// VerificationService proves that a user controls their account address.
type VerificationService struct {
	Store    store.Store
	Hasher   *cryptox.CodeHasher
	Mailer   mailx.Sender
	Attempts guard.Attempts
	TTL      time.Duration
	Clock    Clock
}

func (s *VerificationService) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultVerificationCodeTTL
	}
	return s.TTL
}

// Request sends a fresh verification code, replacing any earlier one.
func (s *VerificationService) Request(ctx context.Context, userID string) (time.Time, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("load user: %w", err)
	}
	if user.EmailVerified() {
		return time.Time{}, ErrEmailAlreadyVerified
	}

	code, err := cryptox.GenerateEmailCode()
	if err != nil {
		return time.Time{}, fmt.Errorf("generate verification code: %w", err)
	}
	now := s.Clock.now()
	v := domain.EmailVerification{
		UserID:    user.ID,
		CodeHash:  s.Hasher.Hash(code),
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	}
	if err := s.Store.EmailVerifications().PutEmailVerification(ctx, v); err != nil {
		return time.Time{}, fmt.Errorf("store verification code: %w", err)
	}

	err = deliverCode(ctx, s.Mailer, user.Email, mailx.PurposeVerifyAddress, code, s.ttl(),
		func(ctx context.Context) error {
			_, err := s.Store.EmailVerifications().ConsumeEmailVerification(ctx, user.ID, v.CodeHash)
			return err
		})
	if err != nil {
		return time.Time{}, err
	}
	return v.ExpiresAt, nil
}

// Confirm checks code and marks the address verified. Each code works once.
func (s *VerificationService) Confirm(ctx context.Context, userID, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrMissingCode
	}

	key := attemptKey("verify", userID)
	if err := checkAttempts(ctx, s.Attempts, key); err != nil {
		return err
	}

	v, err := s.Store.EmailVerifications().GetEmailVerification(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrInvalidCode
	case err != nil:
		return fmt.Errorf("load verification: %w", err)
	}

	now := s.Clock.now()
	if v.Expired(now) {
		if _, err := s.Store.EmailVerifications().ConsumeEmailVerification(ctx, userID, v.CodeHash); err != nil {
			return fmt.Errorf("clear expired verification: %w", err)
		}
		return ErrCodeExpired
	}
	if !s.Hasher.Verify(code, v.CodeHash) {
		recordFailure(ctx, s.Attempts, key)
		return ErrInvalidCode
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		consumed, err := tx.EmailVerifications().ConsumeEmailVerification(ctx, userID, v.CodeHash)
		if err != nil {
			return fmt.Errorf("consume verification: %w", err)
		}
		if !consumed {
			return ErrInvalidCode
		}
		if err := tx.Users().MarkEmailVerified(ctx, userID, now); err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	resetAttempts(ctx, s.Attempts, key)
	slogx.FromContext(ctx).Info("email address verified", "user_id", userID)
	return nil
}
