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

// Challenge asks the client for a second factor before a session is issued.
type Challenge struct {
	Token     string
	Factor    domain.FactorType
	ExpiresAt time.Time
}

// LoginResult is exactly one of a finished session or a pending challenge.
type LoginResult struct {
	Session   *Session
	Challenge *Challenge
}

// LoginService runs password login with an optional second step.
//
// Between the two steps no state is held server side: the login token names
// the user and the factor being completed. Codes for the email factor are
// the one exception and live on the factor row.
type LoginService struct {
	Store     store.Store
	Passwords *cryptox.PasswordHasher
	StepUp    *jwtx.StepUpIssuer
	Codes     *EmailCodeIssuer
	Sessions  *SessionService
	Attempts  guard.Attempts
	Denylist  guard.Denylist
	Clock     Clock
}

// SubmitPrimary checks email and password. Accounts without a second factor
// get a session straight away; the rest get a challenge for their preferred
// factor, and for the email factor the code is sent before returning.
func (s *LoginService) SubmitPrimary(ctx context.Context, email, password string) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	email = normaliseEmail(email)
	if email == "" {
		return LoginResult{}, ErrMissingEmail
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.Passwords.BurnVerify(password)
		log.Info("login rejected", "email", slogx.MaskEmail(email))
		return LoginResult{}, ErrInvalidCredentials
	case err != nil:
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	if err := checkPassword(s.Passwords, password, user.PasswordHash, ErrInvalidCredentials); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Info("login rejected", "user_id", user.ID)
		}
		return LoginResult{}, err
	}

	cfg, err := s.Store.Factors().GetFactors(ctx, user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("load factors: %w", err)
	}

	factor, ok := cfg.Preferred()
	if !ok {
		sess, err := s.Sessions.Issue(user, sessionAMR(""))
		if err != nil {
			return LoginResult{}, err
		}
		log.Info("login succeeded", "user_id", user.ID)
		return LoginResult{Session: &sess}, nil
	}

	token, expiresAt, err := s.StepUp.Issue(jwtx.StepUpClaims{
		RegisteredClaims: registeredSubject(user.ID),
		Purpose:          jwtx.PurposeLogin,
		Factor:           factor.String(),
		Email:            user.Email,
	}, jwtx.LoginTokenTTL)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue login token: %w", err)
	}

	if factor == domain.FactorEmail {
		if _, err := s.Codes.Issue(ctx, user); err != nil {
			return LoginResult{}, err
		}
	}

	log.Info("second factor required", "user_id", user.ID, "factor", factor)
	return LoginResult{Challenge: &Challenge{
		Token:     token,
		Factor:    factor,
		ExpiresAt: expiresAt,
	}}, nil
}

// SubmitSecondFactor completes a login challenge with code.
func (s *LoginService) SubmitSecondFactor(ctx context.Context, token, code string) (Session, error) {
	log := slogx.FromContext(ctx)

	claims, err := s.verifyLoginToken(ctx, token)
	if err != nil {
		return Session{}, err
	}
	factor, err := domain.ParseFactorType(claims.Factor)
	if err != nil {
		return Session{}, ErrTokenInvalid
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return Session{}, ErrMissingCode
	}

	key := attemptKey("login", claims.Subject)
	if err := checkAttempts(ctx, s.Attempts, key); err != nil {
		return Session{}, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Session{}, ErrTokenInvalid
	case err != nil:
		return Session{}, fmt.Errorf("load user: %w", err)
	}

	switch factor {
	case domain.FactorApp:
		err = s.checkAppCode(ctx, user.ID, code)
	case domain.FactorEmail:
		err = s.Codes.Verify(ctx, user.ID, code)
	}
	if err != nil {
		if errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrCodeExpired) {
			recordFailure(ctx, s.Attempts, key)
			log.Info("second factor rejected", "user_id", user.ID, "factor", factor, "reason", err)
		}
		return Session{}, err
	}

	if s.Denylist != nil {
		if err := s.Denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			log.Error("revoking used login token", "user_id", user.ID, "error", err)
		}
	}
	resetAttempts(ctx, s.Attempts, key)

	sess, err := s.Sessions.Issue(user, sessionAMR(factor))
	if err != nil {
		return Session{}, err
	}
	log.Info("login succeeded", "user_id", user.ID, "factor", factor)
	return sess, nil
}

// ResendEmailCode replaces the pending code of an email challenge and sends
// it again. The challenge token itself keeps its original expiry.
func (s *LoginService) ResendEmailCode(ctx context.Context, token string) error {
	claims, err := s.verifyLoginToken(ctx, token)
	if err != nil {
		return err
	}
	if claims.Factor != domain.FactorEmail.String() {
		return ErrTokenInvalid
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrTokenInvalid
	case err != nil:
		return fmt.Errorf("load user: %w", err)
	}

	cfg, err := s.Store.Factors().GetFactors(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load factors: %w", err)
	}
	if !cfg.EmailEnabled {
		return ErrFactorNotEnabled
	}

	if _, err := s.Codes.Issue(ctx, user); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("email code resent", "user_id", user.ID)
	return nil
}

func (s *LoginService) verifyLoginToken(ctx context.Context, token string) (jwtx.StepUpClaims, error) {
	claims, err := s.StepUp.VerifyPurpose(token, jwtx.PurposeLogin)
	if err != nil {
		return jwtx.StepUpClaims{}, mapTokenError(err)
	}

	if s.Denylist != nil {
		revoked, err := s.Denylist.Revoked(ctx, claims.ID)
		switch {
		case err != nil:
			// Without the denylist a token is still bounded by its expiry.
			slogx.FromContext(ctx).Error("denylist unavailable", "error", err)
		case revoked:
			return jwtx.StepUpClaims{}, ErrTokenInvalid
		}
	}
	return claims, nil
}

func (s *LoginService) checkAppCode(ctx context.Context, userID, code string) error {
	cfg, err := s.Store.Factors().GetFactors(ctx, userID)
	if err != nil {
		return fmt.Errorf("load factors: %w", err)
	}
	if !cfg.AppEnabled || cfg.TOTPSecret == nil {
		return ErrInvalidCode
	}
	if !otpx.Validate(code, *cfg.TOTPSecret, s.Clock.now()) {
		return ErrInvalidCode
	}
	return nil
}
