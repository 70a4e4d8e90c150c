package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/acctly/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeServerError    = "server_error"
	ErrorCodeDeliveryFailed = "delivery_failed"

	ErrorCodeMissingEmail      = "missing_email"
	ErrorCodeMissingCode       = "missing_code"
	ErrorCodeInvalidEmail      = "invalid_email"
	ErrorCodeWeakPassword      = "weak_password"
	ErrorCodeUnknownFactorType = "unknown_factor_type"

	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeInvalidPassword    = "invalid_password"
	ErrorCodeInvalidCode        = "invalid_code"
	ErrorCodeCodeExpired        = "code_expired"
	ErrorCodeUnknownAccount     = "unknown_account"

	ErrorCodeTokenExpired = "token_expired"
	ErrorCodeTokenInvalid = "token_invalid"

	ErrorCodeFactorAlreadyEnabled = "factor_already_enabled"
	ErrorCodeFactorNotEnabled     = "factor_not_enabled"
	ErrorCodeEmailTaken           = "email_taken"
	ErrorCodeEmailAlreadyVerified = "email_already_verified"

	ErrorCodeTooManyAttempts = "too_many_attempts"
)

// ============================================================================
// Error
// ============================================================================

// Error is the error body every endpoint returns. It is used by the server
// to write responses and by the client to report them.
type Error struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine readable error code (e.g. "invalid_code")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes e as a JSON error response.
func (e *Error) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

// NewError creates an Error with the given status code, error code, and description.
func NewError(statusCode int, code, description string) *Error {
	return &Error{
		StatusCode:  statusCode,
		Code:        code,
		Description: description,
	}
}

// IsCode reports whether err is an *Error carrying code.
func IsCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	// ErrInvalidRequest is returned when the request is malformed or fails validation.
	ErrInvalidRequest = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrServerError is returned when the service hit an unexpected condition.
	ErrServerError = &Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	// ErrDeliveryFailed is returned when a code email could not be handed to
	// the mail relay. No code was left behind; the request can be retried.
	ErrDeliveryFailed = &Error{
		StatusCode:  http.StatusBadGateway,
		Code:        ErrorCodeDeliveryFailed,
		Description: "the code email could not be sent, try again",
	}

	// ErrTokenInvalid is returned when a bearer or step-up token is missing or invalid.
	ErrTokenInvalid = &Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeTokenInvalid,
		Description: "the token is missing or invalid",
	}

	// ErrTokenExpired is returned when a bearer or step-up token has expired.
	ErrTokenExpired = &Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeTokenExpired,
		Description: "the token has expired",
	}
)

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse converts a non-2xx response into an *Error.
// Returns nil if the response indicates success.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &Error{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &Error{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
