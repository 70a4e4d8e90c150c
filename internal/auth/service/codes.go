package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/acctly/internal/auth/domain"
	"github.com/aussiebroadwan/acctly/internal/auth/store"
	"github.com/aussiebroadwan/acctly/pkg/cryptox"
	"github.com/aussiebroadwan/acctly/pkg/mailx"
	"github.com/aussiebroadwan/acctly/pkg/slogx"
)

// DefaultEmailCodeTTL is how long a login email code stays valid.
const DefaultEmailCodeTTL = 10 * time.Minute

// compensateTimeout bounds the cleanup run after a failed delivery.
const compensateTimeout = 5 * time.Second

// EmailCodeIssuer owns the pending login code of the email factor: it
// generates, stores, delivers and consumes it.
type EmailCodeIssuer struct {
	Store  store.Store
	Hasher *cryptox.CodeHasher
	Mailer mailx.Sender
	TTL    time.Duration
	Clock  Clock
}

func (i *EmailCodeIssuer) ttl() time.Duration {
	if i.TTL <= 0 {
		return DefaultEmailCodeTTL
	}
	return i.TTL
}

// Issue replaces any pending code of user with a fresh one and emails it.
// If delivery fails the new code is withdrawn again and ErrDeliveryFailed
// is returned, so no valid code exists that the user never received.
func (i *EmailCodeIssuer) Issue(ctx context.Context, user domain.User) (time.Time, error) {
	code, err := cryptox.GenerateEmailCode()
	if err != nil {
		return time.Time{}, fmt.Errorf("generate email code: %w", err)
	}
	hash := i.Hasher.Hash(code)
	expiresAt := i.Clock.now().Add(i.ttl())

	if err := i.Store.Factors().SetPendingCode(ctx, user.ID, hash, expiresAt); err != nil {
		return time.Time{}, fmt.Errorf("store pending code: %w", err)
	}

	err = deliverCode(ctx, i.Mailer, user.Email, mailx.PurposeLogin, code, i.ttl(),
		func(ctx context.Context) error {
			_, err := i.Store.Factors().ClearPendingCode(ctx, user.ID, hash)
			return err
		})
	if err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

// Verify checks code against the pending code of userID and consumes it.
// An expired code is cleared as well. Only one of several concurrent
// callers presenting the right code succeeds.
func (i *EmailCodeIssuer) Verify(ctx context.Context, userID, code string) error {
	cfg, err := i.Store.Factors().GetFactors(ctx, userID)
	if err != nil {
		return fmt.Errorf("load factors: %w", err)
	}
	if !cfg.HasPendingCode() {
		return ErrInvalidCode
	}
	hash := *cfg.PendingCodeHash

	if i.Clock.now().After(*cfg.PendingCodeExpiresAt) {
		if _, err := i.Store.Factors().ClearPendingCode(ctx, userID, hash); err != nil {
			return fmt.Errorf("clear expired code: %w", err)
		}
		return ErrCodeExpired
	}

	if !i.Hasher.Verify(code, hash) {
		return ErrInvalidCode
	}

	cleared, err := i.Store.Factors().ClearPendingCode(ctx, userID, hash)
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if !cleared {
		// Someone else used or replaced it first.
		return ErrInvalidCode
	}
	return nil
}

// deliverCode renders and sends a code email. On failure it runs
// compensate, which must withdraw the code, and returns ErrDeliveryFailed.
func deliverCode(
	ctx context.Context,
	mailer mailx.Sender,
	to string,
	purpose mailx.CodePurpose,
	code string,
	ttl time.Duration,
	compensate func(context.Context) error,
) error {
	log := slogx.FromContext(ctx)

	msg, err := mailx.CodeMessage(to, purpose, code, ttl)
	if err == nil {
		err = mailer.Send(ctx, msg)
	}
	if err == nil {
		return nil
	}

	log.Error("code delivery failed", "to", slogx.MaskEmail(to), "error", err)

	// The request context may be what failed the send; cleanup must still run.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()
	if cerr := compensate(cctx); cerr != nil {
		log.Error("withdrawing undelivered code failed", "to", slogx.MaskEmail(to), "error", cerr)
		err = errors.Join(err, cerr)
	}
	return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
}
