package service

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/acctly/internal/auth/domain"
	"github.com/aussiebroadwan/acctly/pkg/jwtx"
	"github.com/aussiebroadwan/acctly/pkg/otpx"
	"github.com/stretchr/testify/require"
)

func TestEnrollApp(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	user := h.signup(t, "user@example.com")

	e, err := h.enroll.BeginApp(ctx, " User@Example.com ")
	require.NoError(t, err)
	require.NotEmpty(t, e.Secret)
	require.True(t, strings.HasPrefix(e.URI, "otpauth://totp/"))
	require.Contains(t, e.URI, "issuer=Acctly")
	require.True(t, strings.HasPrefix(e.QRCode, "data:image/png;base64,"))
	require.Equal(t, h.clock.Now().Add(jwtx.EnrollmentTokenTTL), e.ExpiresAt)

	// Nothing is stored before confirmation.
	cfg, err := h.store.Factors().GetFactors(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, cfg.AppEnabled)
	require.Nil(t, cfg.TOTPSecret)

	code, err := otpx.GenerateCode(e.Secret, h.clock.Now())
	require.NoError(t, err)
	require.NoError(t, h.enroll.ConfirmApp(ctx, e.Token, code))

	cfg, err = h.store.Factors().GetFactors(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, cfg.AppEnabled)
	require.NotNil(t, cfg.TOTPSecret)
	require.Equal(t, e.Secret, *cfg.TOTPSecret)

	t.Run("confirm replay is harmless", func(t *testing.T) {
		require.NoError(t, h.enroll.ConfirmApp(ctx, e.Token, code))
	})

	t.Run("begin again is a conflict", func(t *testing.T) {
		_, err := h.enroll.BeginApp(ctx, user.Email)
		require.ErrorIs(t, err, ErrFactorAlreadyEnabled)
		require.Equal(t, KindStateConflict, KindOf(err))
	})
}

func TestConfirmAppKeepsEnabledSecret(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	user := h.signup(t, "user@example.com")

	first, err := h.enroll.BeginApp(ctx, user.Email)
	require.NoError(t, err)
	second, err := h.enroll.BeginApp(ctx, user.Email)
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	code, err := otpx.GenerateCode(first.Secret, h.clock.Now())
	require.NoError(t, err)
	require.NoError(t, h.enroll.ConfirmApp(ctx, first.Token, code))

	tests := []struct {
		name    string
		token   string
		secret  string
		wantErr error
	}{
		{"replay of the enabling token", first.Token, first.Secret, nil},
		{"older pending enrollment", second.Token, second.Secret, ErrFactorAlreadyEnabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := otpx.GenerateCode(tt.secret, h.clock.Now())
			require.NoError(t, err)

			err = h.enroll.ConfirmApp(ctx, tt.token, code)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
				require.Equal(t, KindStateConflict, KindOf(err))
			}

			cfg, err := h.store.Factors().GetFactors(ctx, user.ID)
			require.NoError(t, err)
			require.True(t, cfg.AppEnabled)
			require.NotNil(t, cfg.TOTPSecret)
			require.Equal(t, first.Secret, *cfg.TOTPSecret)
		})
	}
}

func TestBeginAppErrors(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()

	_, err := h.enroll.BeginApp(ctx, "  ")
	require.ErrorIs(t, err, ErrMissingEmail)

	_, err = h.enroll.BeginApp(ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrUnknownAccount)
}

func TestConfirmAppWrongCodeKeepsToken(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	user := h.signup(t, "user@example.com")

	e, err := h.enroll.BeginApp(ctx, user.Email)
	require.NoError(t, err)

	require.ErrorIs(t, h.enroll.ConfirmApp(ctx, e.Token, h.wrongCode(t, e.Secret)), ErrInvalidCode)
	require.ErrorIs(t, h.enroll.ConfirmApp(ctx, e.Token, ""), ErrMissingCode)

	cfg, err := h.store.Factors().GetFactors(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, cfg.AppEnabled)

	code, err := otpx.GenerateCode(e.Secret, h.clock.Now())
	require.NoError(t, err)
	require.NoError(t, h.enroll.ConfirmApp(ctx, e.Token, code))
}

func TestConfirmAppExpiredToken(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	h.signup(t, "user@example.com")

	e, err := h.enroll.BeginApp(ctx, "user@example.com")
	require.NoError(t, err)

	h.clock.Advance(jwtx.EnrollmentTokenTTL + time.Second)
	code, err := otpx.GenerateCode(e.Secret, h.clock.Now())
	require.NoError(t, err)

	err = h.enroll.ConfirmApp(ctx, e.Token, code)
	require.ErrorIs(t, err, ErrTokenExpired)
	require.Equal(t, KindTokenExpired, KindOf(err))
}

func TestConfirmAppRejectsOtherTokens(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	user := h.signup(t, "user@example.com")
	other := h.signup(t, "other@example.com")

	secret := "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	code, err := otpx.GenerateCode(secret, h.clock.Now())
	require.NoError(t, err)

	issue := func(c jwtx.StepUpClaims) string {
		tok, _, err := h.stepUp.Issue(c, time.Minute)
		require.NoError(t, err)
		return tok
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"login token", issue(jwtx.StepUpClaims{
			RegisteredClaims: registeredSubject(user.ID),
			Purpose:          jwtx.PurposeLogin,
			Factor:           "app",
			Email:            user.Email,
			TOTPSecret:       secret,
		})},
		{"email factor", issue(jwtx.StepUpClaims{
			RegisteredClaims: registeredSubject(user.ID),
			Purpose:          jwtx.PurposeEnroll,
			Factor:           "email",
			Email:            user.Email,
			TOTPSecret:       secret,
		})},
		{"missing secret", issue(jwtx.StepUpClaims{
			RegisteredClaims: registeredSubject(user.ID),
			Purpose:          jwtx.PurposeEnroll,
			Factor:           "app",
			Email:            user.Email,
		})},
		{"subject of another account", issue(jwtx.StepUpClaims{
			RegisteredClaims: registeredSubject(other.ID),
			Purpose:          jwtx.PurposeEnroll,
			Factor:           "app",
			Email:            user.Email,
			TOTPSecret:       secret,
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.enroll.ConfirmApp(ctx, tt.token, code)
			require.ErrorIs(t, err, ErrTokenInvalid)
		})
	}

	for _, u := range []domain.User{user, other} {
		cfg, err := h.store.Factors().GetFactors(ctx, u.ID)
		require.NoError(t, err)
		require.False(t, cfg.AppEnabled)
	}
}

func TestEnableEmail(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	user := h.signup(t, "user@example.com")

	require.ErrorIs(t, h.enroll.EnableEmail(ctx, ""), ErrMissingEmail)
	require.ErrorIs(t, h.enroll.EnableEmail(ctx, "nobody@example.com"), ErrUnknownAccount)

	require.NoError(t, h.enroll.EnableEmail(ctx, user.Email))
	status, err := h.enroll.Status(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, FactorStatus{EmailEnabled: true}, status)

	require.ErrorIs(t, h.enroll.EnableEmail(ctx, user.Email), ErrFactorAlreadyEnabled)
}

func TestDisable(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	user := h.signup(t, "user@example.com")
	secret := h.enrollApp(t, user.Email)
	require.NoError(t, h.enroll.EnableEmail(ctx, user.Email))

	goodCode, err := otpx.GenerateCode(secret, h.clock.Now())
	require.NoError(t, err)

	tests := []struct {
		name string
		in   DisableInput
		want error
	}{
		{"missing email", DisableInput{Password: testPassword, Factor: "app"}, ErrMissingEmail},
		{"unknown factor", DisableInput{Email: user.Email, Password: testPassword, Factor: "sms"}, ErrUnknownFactorType},
		{"unknown email", DisableInput{Email: "nobody@example.com", Password: testPassword, Factor: "app"}, ErrInvalidPassword},
		{"wrong password", DisableInput{Email: user.Email, Password: "wrong!1", Factor: "app", Code: goodCode}, ErrInvalidPassword},
		{"wrong code", DisableInput{Email: user.Email, Password: testPassword, Factor: "app", Code: h.wrongCode(t, secret)}, ErrInvalidCode},
		{"missing code", DisableInput{Email: user.Email, Password: testPassword, Factor: "app"}, ErrInvalidCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, h.enroll.Disable(ctx, tt.in), tt.want)
		})
	}

	status, err := h.enroll.Status(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, FactorStatus{AppEnabled: true, EmailEnabled: true}, status)

	require.NoError(t, h.enroll.Disable(ctx, DisableInput{
		Email: user.Email, Password: testPassword, Factor: "app", Code: goodCode,
	}))
	cfg, err := h.store.Factors().GetFactors(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, cfg.AppEnabled)
	require.Nil(t, cfg.TOTPSecret)

	err = h.enroll.Disable(ctx, DisableInput{Email: user.Email, Password: testPassword, Factor: "app", Code: goodCode})
	require.ErrorIs(t, err, ErrFactorNotEnabled)

	require.NoError(t, h.enroll.Disable(ctx, DisableInput{Email: user.Email, Password: testPassword, Factor: "email"}))
	status, err = h.enroll.Status(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, FactorStatus{}, status)
}

func TestDisableEmailClearsPendingCode(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	user := h.signup(t, "user@example.com")
	require.NoError(t, h.enroll.EnableEmail(ctx, user.Email))

	_, err := h.login.SubmitPrimary(ctx, user.Email, testPassword)
	require.NoError(t, err)
	cfg, err := h.store.Factors().GetFactors(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, cfg.HasPendingCode())

	require.NoError(t, h.enroll.Disable(ctx, DisableInput{Email: user.Email, Password: testPassword, Factor: "email"}))
	cfg, err = h.store.Factors().GetFactors(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, cfg.HasPendingCode())
}

// app enrollment end to end.
func TestEnrollAppFactorEndToEnd(t *testing.T) {
	h := newHarness(t)
	user := h.signup(t, "user@example.com")

	secret := h.enrollApp(t, "user@example.com")

	cfg, err := h.store.Factors().GetFactors(t.Context(), user.ID)
	require.NoError(t, err)
	require.True(t, cfg.AppEnabled)
	require.NotNil(t, cfg.TOTPSecret)
	require.Equal(t, secret, *cfg.TOTPSecret)
}

// confirmation after the enrollment token lapsed.
func TestEnrollmentTokenExpiresBeforeConfirm(t *testing.T) {
	h := newHarness(t)
	user := h.signup(t, "user@example.com")

	e, err := h.enroll.BeginApp(t.Context(), user.Email)
	require.NoError(t, err)

	h.clock.Advance(10*time.Minute + time.Second)
	code, err := otpx.GenerateCode(e.Secret, h.clock.Now())
	require.NoError(t, err)
	require.ErrorIs(t, h.enroll.ConfirmApp(t.Context(), e.Token, code), ErrTokenExpired)
}

// wrong TOTP code leaves the app factor enabled.
func TestDisableAppWithWrongCode(t *testing.T) {
	h := newHarness(t)
	user := h.signup(t, "user@example.com")
	secret := h.enrollApp(t, user.Email)

	err := h.enroll.Disable(t.Context(), DisableInput{
		Email: user.Email, Password: testPassword, Factor: "app", Code: h.wrongCode(t, secret),
	})
	require.ErrorIs(t, err, ErrInvalidCode)

	status, err := h.enroll.Status(t.Context(), user.ID)
	require.NoError(t, err)
	require.True(t, status.AppEnabled)
}
