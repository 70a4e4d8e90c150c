package authsdk

import (
	"context"
	"errors"
	"sync"
	"time"
)

// LoginState is where a LoginFlow stands.
type LoginState int

const (
	AwaitingPrimary LoginState = iota
	AwaitingSecondFactor
	Authenticated
)

func (s LoginState) String() string {
	switch s {
	case AwaitingPrimary:
		return "awaiting_primary"
	case AwaitingSecondFactor:
		return "awaiting_second_factor"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ErrWrongStep is returned when a LoginFlow method is called in a state
// that does not accept it.
var ErrWrongStep = errors.New("authsdk: login flow is not at that step")

// LoginFlow drives a login through its steps and keeps the challenge token
// between them. Once the challenge expires the flow falls back to
// AwaitingPrimary, locally and without asking the server.
type LoginFlow struct {
	client *SDKClient
	now    func() time.Time

	mu        sync.Mutex
	state     LoginState
	mfaToken  string
	factor    string
	expiresAt time.Time
	session   *Session
}

// NewLoginFlow starts a login at AwaitingPrimary.
func (c *SDKClient) NewLoginFlow() *LoginFlow {
	return &LoginFlow{client: c, now: time.Now}
}

// WithClock replaces the clock used for the challenge countdown.
func (f *LoginFlow) WithClock(now func() time.Time) *LoginFlow {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
	return f
}

// State returns the current step.
func (f *LoginFlow) State() LoginState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireLocked()
	return f.state
}

// Factor returns the factor of the pending challenge, "app" or "email".
func (f *LoginFlow) Factor() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireLocked()
	return f.factor
}

// Remaining is the time left to answer the pending challenge, or zero when
// there is none.
func (f *LoginFlow) Remaining() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireLocked()
	if f.state != AwaitingSecondFactor {
		return 0
	}
	return f.expiresAt.Sub(f.now())
}

// Session returns the session once Authenticated.
func (f *LoginFlow) Session() *Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

// Reset abandons any progress.
func (f *LoginFlow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

// SubmitPrimary sends email and password, restarting the flow if it was
// already under way. Email challenges have their code sent by the server
// before this returns.
func (f *LoginFlow) SubmitPrimary(ctx context.Context, email, password string) (LoginState, error) {
	f.Reset()

	resp, err := f.client.Login(ctx, email, password)
	if err != nil {
		return AwaitingPrimary, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if resp.Session != nil {
		f.session = f.client.NewSessionFromResponse(resp.Session)
		f.state = Authenticated
		return f.state, nil
	}
	if resp.MFAToken == "" || resp.ExpiresAt == nil {
		return AwaitingPrimary, ErrServerError
	}

	f.mfaToken = resp.MFAToken
	f.factor = resp.FactorType
	f.expiresAt = *resp.ExpiresAt
	f.state = AwaitingSecondFactor
	return f.state, nil
}

// SubmitCode answers the pending challenge. A wrong code keeps the
// challenge open; an expired or rejected token sends the flow back to
// AwaitingPrimary.
func (f *LoginFlow) SubmitCode(ctx context.Context, code string) (*Session, error) {
	token, err := f.pendingToken()
	if err != nil {
		return nil, err
	}

	resp, err := f.client.VerifyLogin(ctx, token, code)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		if IsCode(err, ErrorCodeTokenExpired) || IsCode(err, ErrorCodeTokenInvalid) {
			f.resetLocked()
		}
		return nil, err
	}

	f.session = f.client.NewSessionFromResponse(resp)
	f.state = Authenticated
	f.mfaToken = ""
	return f.session, nil
}

// Resend asks for a new email code. The challenge keeps its original expiry.
func (f *LoginFlow) Resend(ctx context.Context) error {
	f.mu.Lock()
	factor := f.factor
	f.mu.Unlock()
	if factor != "email" {
		return ErrWrongStep
	}

	token, err := f.pendingToken()
	if err != nil {
		return err
	}

	if err := f.client.ResendLoginCode(ctx, token); err != nil {
		if IsCode(err, ErrorCodeTokenExpired) || IsCode(err, ErrorCodeTokenInvalid) {
			f.Reset()
		}
		return err
	}
	return nil
}

func (f *LoginFlow) pendingToken() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wasPending := f.state == AwaitingSecondFactor
	f.expireLocked()
	switch {
	case f.state == AwaitingSecondFactor:
		return f.mfaToken, nil
	case wasPending:
		return "", ErrTokenExpired
	default:
		return "", ErrWrongStep
	}
}

func (f *LoginFlow) expireLocked() {
	if f.state == AwaitingSecondFactor && !f.now().Before(f.expiresAt) {
		f.resetLocked()
	}
}

func (f *LoginFlow) resetLocked() {
	f.state = AwaitingPrimary
	f.mfaToken = ""
	f.factor = ""
	f.expiresAt = time.Time{}
	f.session = nil
}
