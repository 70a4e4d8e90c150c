package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/acctly/internal/auth/domain"
	"github.com/aussiebroadwan/acctly/internal/auth/guard"
	"github.com/aussiebroadwan/acctly/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/acctly/pkg/cryptox"
	"github.com/aussiebroadwan/acctly/pkg/jwtx"
	"github.com/aussiebroadwan/acctly/pkg/mailx"
	"github.com/aussiebroadwan/acctly/pkg/otpx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "acctly-test"
	testPassword = "s3cret!pw"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// recordingSender keeps every message it was asked to send and fails when
// err is set.
type recordingSender struct {
	mu   sync.Mutex
	sent []mailx.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mailx.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// lastCode returns the code from the most recent message to addr.
func (s *recordingSender) lastCode(t *testing.T, addr string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].To == addr {
			code := codePattern.FindString(s.sent[i].Text)
			require.NotEmpty(t, code, "no code in message %q", s.sent[i].Text)
			return code
		}
	}
	t.Fatalf("no message sent to %s", addr)
	return ""
}

var errSMTPDown = errors.New("dial tcp: connection refused")

type harness struct {
	store     *sqlite.Store
	clock     *fakeClock
	mail      *recordingSender
	passwords *cryptox.PasswordHasher
	hasher    *cryptox.CodeHasher
	stepUp    *jwtx.StepUpIssuer
	keys      *jwtx.KeySet

	users   *UserService
	enroll  *EnrollmentService
	login   *LoginService
	verify  *VerificationService
	cleaner *HousekeepingService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	clock := newFakeClock()
	mail := &recordingSender{}

	passwords, err := cryptox.NewPasswordHasher([]byte("test-pepper"))
	require.NoError(t, err)
	hasher, err := cryptox.NewCodeHasher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	stepUpIssuer, err := jwtx.NewStepUpIssuer([]byte("fedcba9876543210fedcba9876543210"), testIssuer)
	require.NoError(t, err)
	stepUp := stepUpIssuer.WithClock(clock.Now)

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("test", pemKey)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	codes := &EmailCodeIssuer{Store: st, Hasher: hasher, Mailer: mail, Clock: clock.Now}
	sessions := &SessionService{Signer: signer, Issuer: testIssuer, Clock: clock.Now}

	h := &harness{
		store:     st,
		clock:     clock,
		mail:      mail,
		passwords: passwords,
		hasher:    hasher,
		stepUp:    stepUp,
		keys:      keys,
		users:     &UserService{Store: st, Passwords: passwords, Clock: clock.Now},
		enroll: &EnrollmentService{
			Store:     st,
			Passwords: passwords,
			TOTP:      &otpx.Generator{Issuer: "Acctly"},
			StepUp:    stepUp,
			Attempts:  guard.Nop{},
			Clock:     clock.Now,
		},
		login: &LoginService{
			Store:     st,
			Passwords: passwords,
			StepUp:    stepUp,
			Codes:     codes,
			Sessions:  sessions,
			Attempts:  guard.Nop{},
			Denylist:  guard.Nop{},
			Clock:     clock.Now,
		},
		verify: &VerificationService{Store: st, Hasher: hasher, Mailer: mail, Attempts: guard.Nop{}, Clock: clock.Now},
	}
	h.cleaner = &HousekeepingService{Store: st, Logger: discardLogger(), Clock: clock.Now}
	return h
}

func (h *harness) useGuards(a guard.Attempts, d guard.Denylist) {
	h.enroll.Attempts = a
	h.login.Attempts = a
	h.login.Denylist = d
	h.verify.Attempts = a
}

func (h *harness) signup(t *testing.T, email string) domain.User {
	t.Helper()
	u, err := h.users.Signup(t.Context(), email, testPassword)
	require.NoError(t, err)
	return u
}

// enrollApp runs BeginApp and ConfirmApp and returns the confirmed secret.
func (h *harness) enrollApp(t *testing.T, email string) string {
	t.Helper()
	ctx := t.Context()

	e, err := h.enroll.BeginApp(ctx, email)
	require.NoError(t, err)
	code, err := otpx.GenerateCode(e.Secret, h.clock.Now())
	require.NoError(t, err)
	require.NoError(t, h.enroll.ConfirmApp(ctx, e.Token, code))
	return e.Secret
}

func (h *harness) verifySession(t *testing.T, token string) jwtx.SessionClaims {
	t.Helper()
	claims, err := jwtx.NewCommonEdDSA(h.keys, testIssuer).Verify(token)
	require.NoError(t, err)
	return claims
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// wrongCode returns a six digit code that is not accepted for secret at the
// current time.
func (h *harness) wrongCode(t *testing.T, secret string) string {
	t.Helper()
	for _, c := range []string{"000000", "111111", "222222", "333333", "444444", "555555"} {
		if !otpx.Validate(c, secret, h.clock.Now()) {
			return c
		}
	}
	t.Fatal("every candidate code is valid")
	return ""
}
