package authsdk

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeAuthServer mimics the login endpoints closely enough to drive a
// LoginFlow.
type fakeAuthServer struct {
	mu        sync.Mutex
	factor    string // "" means no second factor
	code      string
	expiresAt time.Time
	resends   int
	expired   bool
}

func (s *fakeAuthServer) handler() http.Handler {
	mux := http.NewServeMux()
	session := SessionResponse{
		AccessToken: "session-token",
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(time.Hour),
		ExpiresIn:   3600,
		UserID:      "user-1",
		Email:       "user@example.com",
		AMR:         []string{"pwd"},
	}

	mux.HandleFunc("POST /v1/login", func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "s3cret!pw" {
			NewError(http.StatusUnauthorized, ErrorCodeInvalidCredentials, "invalid email or password").WriteError(w)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.factor == "" {
			writeJSON(w, http.StatusOK, LoginResponse{Session: &session})
			return
		}
		exp := s.expiresAt
		writeJSON(w, http.StatusOK, LoginResponse{MFAToken: "mfa-token", FactorType: s.factor, ExpiresAt: &exp})
	})

	mux.HandleFunc("POST /v1/login/verify", func(w http.ResponseWriter, r *http.Request) {
		var req LoginVerifyRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case s.expired:
			ErrTokenExpired.WriteError(w)
		case req.MFAToken != "mfa-token":
			ErrTokenInvalid.WriteError(w)
		case req.Code != s.code:
			NewError(http.StatusUnauthorized, ErrorCodeInvalidCode, "the code is incorrect").WriteError(w)
		default:
			sess := session
			sess.AMR = []string{"pwd", s.factor, "mfa"}
			writeJSON(w, http.StatusOK, LoginVerifyResponse{Session: sess})
		}
	})

	mux.HandleFunc("POST /v1/login/resend", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.resends++
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestFlow(t *testing.T, srv *fakeAuthServer) (*LoginFlow, *testClock) {
	t.Helper()

	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	srv.mu.Lock()
	srv.expiresAt = clock.now.Add(5 * time.Minute)
	srv.mu.Unlock()
	return NewSDKClient(ts.URL).NewLoginFlow().WithClock(clock.Now), clock
}

func TestLoginFlowWithoutSecondFactor(t *testing.T) {
	t.Parallel()

	flow, _ := newTestFlow(t, &fakeAuthServer{})
	require.Equal(t, AwaitingPrimary, flow.State())

	state, err := flow.SubmitPrimary(t.Context(), "user@example.com", "s3cret!pw")
	require.NoError(t, err)
	require.Equal(t, Authenticated, state)
	require.NotNil(t, flow.Session())
	require.Equal(t, "session-token", flow.Session().AccessToken())
	require.Zero(t, flow.Remaining())
}

func TestLoginFlowWrongPassword(t *testing.T) {
	t.Parallel()

	flow, _ := newTestFlow(t, &fakeAuthServer{})
	state, err := flow.SubmitPrimary(t.Context(), "user@example.com", "nope")
	require.True(t, IsCode(err, ErrorCodeInvalidCredentials))
	require.Equal(t, AwaitingPrimary, state)
	require.Equal(t, AwaitingPrimary, flow.State())
}

func TestLoginFlowSecondFactor(t *testing.T) {
	t.Parallel()

	srv := &fakeAuthServer{factor: "email", code: "482913"}
	flow, clock := newTestFlow(t, srv)
	ctx := t.Context()

	_, err := flow.SubmitCode(ctx, "482913")
	require.ErrorIs(t, err, ErrWrongStep)

	state, err := flow.SubmitPrimary(ctx, "user@example.com", "s3cret!pw")
	require.NoError(t, err)
	require.Equal(t, AwaitingSecondFactor, state)
	require.Equal(t, "email", flow.Factor())
	require.Equal(t, 5*time.Minute, flow.Remaining())

	clock.Advance(time.Minute)
	require.Equal(t, 4*time.Minute, flow.Remaining())

	_, err = flow.SubmitCode(ctx, "000000")
	require.True(t, IsCode(err, ErrorCodeInvalidCode))
	require.Equal(t, AwaitingSecondFactor, flow.State())

	require.NoError(t, flow.Resend(ctx))
	require.Equal(t, 1, srv.resends)

	sess, err := flow.SubmitCode(ctx, "482913")
	require.NoError(t, err)
	require.Equal(t, Authenticated, flow.State())
	require.True(t, sess.HasAMR("mfa"))
	require.Equal(t, "user-1", sess.UserID())
	require.Zero(t, flow.Remaining())
}

func TestLoginFlowChallengeExpiresLocally(t *testing.T) {
	t.Parallel()

	flow, clock := newTestFlow(t, &fakeAuthServer{factor: "app", code: "123456"})
	_, err := flow.SubmitPrimary(t.Context(), "user@example.com", "s3cret!pw")
	require.NoError(t, err)

	require.ErrorIs(t, flow.Resend(t.Context()), ErrWrongStep)

	clock.Advance(5 * time.Minute)
	require.Zero(t, flow.Remaining())
	require.Equal(t, AwaitingPrimary, flow.State())

	_, err = flow.SubmitCode(t.Context(), "123456")
	require.ErrorIs(t, err, ErrWrongStep)
}

func TestLoginFlowServerReportsExpiry(t *testing.T) {
	t.Parallel()

	srv := &fakeAuthServer{factor: "app", code: "123456"}
	flow, _ := newTestFlow(t, srv)
	_, err := flow.SubmitPrimary(t.Context(), "user@example.com", "s3cret!pw")
	require.NoError(t, err)

	srv.mu.Lock()
	srv.expired = true
	srv.mu.Unlock()

	_, err = flow.SubmitCode(t.Context(), "123456")
	require.True(t, IsCode(err, ErrorCodeTokenExpired))
	require.Equal(t, AwaitingPrimary, flow.State())
}

func TestLoginStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "awaiting_primary", AwaitingPrimary.String())
	require.Equal(t, "awaiting_second_factor", AwaitingSecondFactor.String())
	require.Equal(t, "authenticated", Authenticated.String())
	require.Equal(t, "unknown", LoginState(42).String())
}
