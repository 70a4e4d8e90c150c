package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the Acctly authentication service.
// It provides access to unauthenticated operations and creates Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Signup creates an account.
func (c *SDKClient) Signup(ctx context.Context, email, password string) (*SignupResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/signup", SignupRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var out SignupResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login submits email and password. The response holds either a session or
// a second factor challenge; LoginFlow drives the whole exchange.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/login", LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyLogin completes a second factor challenge with code.
func (c *SDKClient) VerifyLogin(ctx context.Context, mfaToken, code string) (*SessionResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/login/verify", LoginVerifyRequest{MFAToken: mfaToken, Code: code})
	if err != nil {
		return nil, err
	}

	var out LoginVerifyResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.Session, nil
}

// ResendLoginCode asks for a fresh email code for a pending challenge.
func (c *SDKClient) ResendLoginCode(ctx context.Context, mfaToken string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/login/resend", LoginResendRequest{MFAToken: mfaToken})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// ConfirmAppEnrollment finishes app enrollment with a code from the app.
func (c *SDKClient) ConfirmAppEnrollment(ctx context.Context, enrollmentToken, code string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/mfa/app/confirm", AppConfirmRequest{
		EnrollmentToken: enrollmentToken,
		Code:            code,
	})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// NewSessionFromResponse wraps a session returned by the service.
func (c *SDKClient) NewSessionFromResponse(s *SessionResponse) *Session {
	return &Session{
		client:      c,
		accessToken: s.AccessToken,
		expiresAt:   s.ExpiresAt,
		userID:      s.UserID,
		email:       s.Email,
		amr:         append([]string(nil), s.AMR...),
	}
}
