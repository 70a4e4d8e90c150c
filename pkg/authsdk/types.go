package authsdk

import (
	"time"

	"github.com/aussiebroadwan/acctly/pkg/jwtx"
)

// ============================================================================
// Internal Response Types (used for JSON unmarshaling)
// ============================================================================

// ErrorResponse is the wire form of an error. Client code should use the
// Error type from errors.go instead.
type ErrorResponse struct {
	// Error is the error code (e.g., "invalid_code", "token_expired")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Account Types
// ============================================================================

// SignupRequest creates an account. Address syntax and password strength
// are checked by the service.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,max=254" example:"user@example.com"`
	Password string `json:"password" validate:"required,max=128" example:"s3cret!pw"`
}

// SignupResponse describes the new account.
type SignupResponse struct {
	ID    string `json:"id" example:"01J9Z8Q6X4N2V7K3M5P0R1S2T3"`
	Email string `json:"email" example:"user@example.com"`
}

// EmailConfirmRequest completes address verification.
type EmailConfirmRequest struct {
	Code string `json:"code" validate:"max=16" example:"482913"`
}

// ============================================================================
// Login Types
// ============================================================================

// LoginRequest is the first step of a login.
type LoginRequest struct {
	Email    string `json:"email" validate:"max=254" example:"user@example.com"`
	Password string `json:"password" validate:"max=128" example:"s3cret!pw"`
}

// LoginResponse carries either a finished session or a second factor
// challenge, never both.
type LoginResponse struct {
	// Session is set when no second factor is required.
	Session *SessionResponse `json:"session,omitempty"`

	// MFAToken must be sent back with the second factor code.
	MFAToken string `json:"mfa_token,omitempty"`

	// FactorType is "app" or "email".
	FactorType string `json:"factor_type,omitempty" example:"email"`

	// ExpiresAt is when MFAToken stops being accepted.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// LoginVerifyRequest completes a second factor challenge.
type LoginVerifyRequest struct {
	MFAToken string `json:"mfa_token" validate:"required"`
	Code     string `json:"code" validate:"max=16" example:"482913"`
}

// LoginVerifyResponse wraps the session issued after the second factor.
type LoginVerifyResponse struct {
	Session SessionResponse `json:"session"`
}

// LoginResendRequest asks for a new email code for a pending challenge.
type LoginResendRequest struct {
	MFAToken string `json:"mfa_token" validate:"required"`
}

// SessionResponse is a signed session token.
type SessionResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type" example:"Bearer"`
	ExpiresAt   time.Time `json:"expires_at"`
	ExpiresIn   int       `json:"expires_in" example:"86400"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`

	// AMR lists the authentication methods used (e.g. ["pwd","otp","mfa"])
	AMR []string `json:"amr"`
}

// ============================================================================
// Factor Types
// ============================================================================

// AppEnrollResponse starts authenticator app enrollment.
type AppEnrollResponse struct {
	Secret          string    `json:"secret" example:"JBSWY3DPEHPK3PXP"`
	EnrollmentURI   string    `json:"enrollment_uri" example:"otpauth://totp/Acctly:user@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Acctly"`
	QRCode          string    `json:"qr_code" example:"data:image/png;base64,iVBORw0KGgo..."`
	EnrollmentToken string    `json:"enrollment_token"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// AppConfirmRequest proves the app produces codes for the new secret.
type AppConfirmRequest struct {
	EnrollmentToken string `json:"enrollment_token" validate:"required"`
	Code            string `json:"code" validate:"max=16" example:"482913"`
}

// DisableFactorRequest switches a factor off. Code is required for the app
// factor only.
type DisableFactorRequest struct {
	Password   string `json:"password" validate:"required,max=128"`
	FactorType string `json:"factor_type" validate:"required" example:"app"`
	Code       string `json:"code,omitempty" validate:"max=16"`
}

// FactorStatusResponse lists the enabled factors.
type FactorStatusResponse struct {
	AppEnabled   bool `json:"app_enabled"`
	EmailEnabled bool `json:"email_enabled"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`

	// Signer indicates the JWT signing capability status
	Signer string `json:"signer"`

	// Cache indicates the Redis status, when one is configured
	Cache string `json:"cache,omitempty"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the JSON Web Key Set.
// This is returned from the GET /.well-known/jwks.json endpoint and contains
// public keys used to verify session tokens.
type JWKSResponse jwtx.JWKS
