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
	"github.com/aussiebroadwan/acctly/pkg/jwtx"
	"github.com/aussiebroadwan/acctly/pkg/otpx"
	"github.com/aussiebroadwan/acctly/pkg/slogx"
)

// AppEnrollment is what a client needs to add the account to an
// authenticator app and later confirm it.
type AppEnrollment struct {
	Secret    string // base32
	URI       string // otpauth://
	QRCode    string // data:image/png;base64,...
	Token     string // enrollment token, carries the unconfirmed secret
	ExpiresAt time.Time
}

// FactorStatus reports which second factors an account has switched on.
type FactorStatus struct {
	AppEnabled   bool
	EmailEnabled bool
}

// DisableInput is the proof required to switch a factor off.
type DisableInput struct {
	Email    string
	Password string
	Factor   string
	Code     string // current TOTP code, app factor only
}

// EnrollmentService turns second factors on and off.
//
// App enrollment is two steps. BeginApp persists nothing and hands the new
// secret to the client inside a signed enrollment token; ConfirmApp stores
// it once the client proves it can produce codes from it.
type EnrollmentService struct {
	Store     store.Store
	Passwords *cryptox.PasswordHasher
	TOTP      *otpx.Generator
	StepUp    *jwtx.StepUpIssuer
	Attempts  guard.Attempts
	Clock     Clock
}

// BeginApp starts app enrollment for the account registered under email.
func (s *EnrollmentService) BeginApp(ctx context.Context, email string) (AppEnrollment, error) {
	email = normaliseEmail(email)
	if email == "" {
		return AppEnrollment{}, ErrMissingEmail
	}

	user, err := s.lookupUser(ctx, email)
	if err != nil {
		return AppEnrollment{}, err
	}

	cfg, err := s.Store.Factors().GetFactors(ctx, user.ID)
	if err != nil {
		return AppEnrollment{}, fmt.Errorf("load factors: %w", err)
	}
	if cfg.AppEnabled {
		return AppEnrollment{}, ErrFactorAlreadyEnabled
	}

	enrollment, err := s.TOTP.GenerateSecret(user.Email)
	if err != nil {
		return AppEnrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}
	qr, err := otpx.QRCode(enrollment.URI)
	if err != nil {
		return AppEnrollment{}, fmt.Errorf("render qr code: %w", err)
	}

	token, expiresAt, err := s.StepUp.Issue(jwtx.StepUpClaims{
		RegisteredClaims: registeredSubject(user.ID),
		Purpose:          jwtx.PurposeEnroll,
		Factor:           domain.FactorApp.String(),
		Email:            user.Email,
		TOTPSecret:       enrollment.Secret,
	}, jwtx.EnrollmentTokenTTL)
	if err != nil {
		return AppEnrollment{}, fmt.Errorf("issue enrollment token: %w", err)
	}

	return AppEnrollment{
		Secret:    enrollment.Secret,
		URI:       enrollment.URI,
		QRCode:    qr,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// ConfirmApp completes app enrollment. A wrong code leaves the token usable
// until it expires. Replaying the token that enabled the factor is a no-op;
// any other enrollment token fails once the factor is on. The account is resolved from the token's own email claim
// and must be the account the token was issued to.
func (s *EnrollmentService) ConfirmApp(ctx context.Context, token, code string) error {
	log := slogx.FromContext(ctx)

	claims, err := s.StepUp.VerifyPurpose(token, jwtx.PurposeEnroll)
	if err != nil {
		return mapTokenError(err)
	}
	if claims.Factor != domain.FactorApp.String() || claims.TOTPSecret == "" || claims.Email == "" {
		return ErrTokenInvalid
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return ErrMissingCode
	}

	key := attemptKey("enroll", claims.Subject)
	if err := checkAttempts(ctx, s.Attempts, key); err != nil {
		return err
	}

	if !otpx.Validate(code, claims.TOTPSecret, s.Clock.now()) {
		recordFailure(ctx, s.Attempts, key)
		return ErrInvalidCode
	}

	user, err := s.lookupUser(ctx, claims.Email)
	if err != nil {
		return err
	}
	if user.ID != claims.Subject {
		log.Warn("enrollment token subject does not match account", "user_id", user.ID)
		return ErrTokenInvalid
	}

	// A token minted before the factor was enabled must not swap the secret.
	cfg, err := s.Store.Factors().GetFactors(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load factors: %w", err)
	}
	if cfg.AppEnabled {
		if cfg.TOTPSecret == nil || *cfg.TOTPSecret != claims.TOTPSecret {
			log.Warn("enrollment token does not match the enabled app factor", "user_id", user.ID)
			return ErrFactorAlreadyEnabled
		}
		resetAttempts(ctx, s.Attempts, key)
		return nil
	}

	if err := s.Store.Factors().EnableApp(ctx, user.ID, claims.TOTPSecret); err != nil {
		return fmt.Errorf("enable app factor: %w", err)
	}
	resetAttempts(ctx, s.Attempts, key)

	log.Info("app factor enabled", "user_id", user.ID)
	return nil
}

// EnableEmail switches on the email factor. It needs no confirmation code;
// every login proves ownership of the address again.
func (s *EnrollmentService) EnableEmail(ctx context.Context, email string) error {
	email = normaliseEmail(email)
	if email == "" {
		return ErrMissingEmail
	}

	user, err := s.lookupUser(ctx, email)
	if err != nil {
		return err
	}

	cfg, err := s.Store.Factors().GetFactors(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load factors: %w", err)
	}
	if cfg.EmailEnabled {
		return ErrFactorAlreadyEnabled
	}

	if err := s.Store.Factors().SetEmailEnabled(ctx, user.ID, true); err != nil {
		return fmt.Errorf("enable email factor: %w", err)
	}

	slogx.FromContext(ctx).Info("email factor enabled", "user_id", user.ID)
	return nil
}

// Disable switches a factor off after re-checking the password and, for the
// app factor, a current code from the enabled secret.
func (s *EnrollmentService) Disable(ctx context.Context, in DisableInput) error {
	email := normaliseEmail(in.Email)
	if email == "" {
		return ErrMissingEmail
	}
	factor, err := domain.ParseFactorType(in.Factor)
	if err != nil {
		return ErrUnknownFactorType
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.Passwords.BurnVerify(in.Password)
		return ErrInvalidPassword
	case err != nil:
		return fmt.Errorf("load user: %w", err)
	}

	if err := checkPassword(s.Passwords, in.Password, user.PasswordHash, ErrInvalidPassword); err != nil {
		return err
	}

	cfg, err := s.Store.Factors().GetFactors(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load factors: %w", err)
	}
	if !cfg.Enabled(factor) {
		return ErrFactorNotEnabled
	}

	switch factor {
	case domain.FactorApp:
		key := attemptKey("disable", user.ID)
		if err := checkAttempts(ctx, s.Attempts, key); err != nil {
			return err
		}
		code := strings.TrimSpace(in.Code)
		if code == "" || cfg.TOTPSecret == nil || !otpx.Validate(code, *cfg.TOTPSecret, s.Clock.now()) {
			recordFailure(ctx, s.Attempts, key)
			return ErrInvalidCode
		}
		if err := s.Store.Factors().DisableApp(ctx, user.ID); err != nil {
			return fmt.Errorf("disable app factor: %w", err)
		}
		resetAttempts(ctx, s.Attempts, key)

	case domain.FactorEmail:
		if err := s.Store.Factors().SetEmailEnabled(ctx, user.ID, false); err != nil {
			return fmt.Errorf("disable email factor: %w", err)
		}
	}

	slogx.FromContext(ctx).Info("factor disabled", "user_id", user.ID, "factor", factor)
	return nil
}

// Status returns the enabled factors of userID.
func (s *EnrollmentService) Status(ctx context.Context, userID string) (FactorStatus, error) {
	cfg, err := s.Store.Factors().GetFactors(ctx, userID)
	if err != nil {
		return FactorStatus{}, fmt.Errorf("load factors: %w", err)
	}
	return FactorStatus{AppEnabled: cfg.AppEnabled, EmailEnabled: cfg.EmailEnabled}, nil
}

func (s *EnrollmentService) lookupUser(ctx context.Context, email string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.User{}, ErrUnknownAccount
	case err != nil:
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
