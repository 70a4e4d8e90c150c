package authsdk

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Session is an authenticated login. Session tokens are not refreshed; once
// one expires every call fails with ErrTokenExpired and the user logs in
// again.
type Session struct {
	client *SDKClient

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
	userID      string
	email       string
	amr         []string
}

// AccessToken returns the bearer token.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// ExpiresAt returns when the session token expires.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// UserID returns the authenticated account id.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Email returns the authenticated account address.
func (s *Session) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// HasAMR reports whether the session was authenticated with method.
func (s *Session) HasAMR(method string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.amr, method)
}

// getValidToken returns the access token unless it already expired.
func (s *Session) getValidToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !time.Now().Before(s.expiresAt) {
		return "", ErrTokenExpired
	}
	return s.accessToken, nil
}

// BeginAppEnrollment starts authenticator app enrollment for this account.
func (s *Session) BeginAppEnrollment(ctx context.Context) (*AppEnrollResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/mfa/app/enroll", nil, nil)
	if err != nil {
		return nil, err
	}

	var out AppEnrollResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmAppEnrollment finishes app enrollment. It is the same call as
// SDKClient.ConfirmAppEnrollment; the enrollment token authenticates it.
func (s *Session) ConfirmAppEnrollment(ctx context.Context, enrollmentToken, code string) error {
	return s.client.ConfirmAppEnrollment(ctx, enrollmentToken, code)
}

// EnableEmailFactor switches on email codes as the second factor.
func (s *Session) EnableEmailFactor(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/mfa/email/enable", nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// DisableFactor switches a factor off.
func (s *Session) DisableFactor(ctx context.Context, req DisableFactorRequest) error {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/mfa/disable", req)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// GetFactorStatus reports which factors are enabled.
func (s *Session) GetFactorStatus(ctx context.Context) (*FactorStatusResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/mfa", nil, nil)
	if err != nil {
		return nil, err
	}

	var out FactorStatusResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestEmailVerification emails a code proving ownership of the address.
func (s *Session) RequestEmailVerification(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/email/verify", nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// ConfirmEmailVerification submits the emailed verification code.
func (s *Session) ConfirmEmailVerification(ctx context.Context, code string) error {
	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/email/confirm", EmailConfirmRequest{Code: code})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
