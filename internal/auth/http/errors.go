package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/acctly/internal/auth/service"
	"github.com/aussiebroadwan/acctly/pkg/authsdk"
	"github.com/aussiebroadwan/acctly/pkg/httpx"
	"github.com/aussiebroadwan/acctly/pkg/slogx"
)

// Client facing wording per service error. The code is the sentinel's own
// text so the SDK constants and the service stay in step.
var descriptions = map[error]string{
	service.ErrMissingEmail:      "an email address is required",
	service.ErrMissingCode:       "a code is required",
	service.ErrInvalidEmail:      "the email address is not valid",
	service.ErrWeakPassword:      "password must be at least 6 characters and contain a digit and a special character",
	service.ErrUnknownFactorType: "factor_type must be app or email",

	service.ErrInvalidCredentials: "invalid email or password",
	service.ErrInvalidPassword:    "the password is incorrect",
	service.ErrInvalidCode:        "the code is incorrect",
	service.ErrCodeExpired:        "the code has expired, request a new one",
	service.ErrUnknownAccount:     "no account matches this request",

	service.ErrTokenExpired: "the token has expired, start again",
	service.ErrTokenInvalid: "the token is invalid",

	service.ErrFactorAlreadyEnabled: "the factor is already enabled",
	service.ErrFactorNotEnabled:     "the factor is not enabled",
	service.ErrEmailTaken:           "an account with this email already exists",
	service.ErrEmailAlreadyVerified: "the email address is already verified",

	service.ErrTooManyAttempts: "too many failed attempts, try again later",
}

var kindStatus = map[service.Kind]int{
	service.KindValidation:     http.StatusBadRequest,
	service.KindAuthentication: http.StatusUnauthorized,
	service.KindTokenExpired:   http.StatusUnauthorized,
	service.KindTokenInvalid:   http.StatusUnauthorized,
	service.KindStateConflict:  http.StatusConflict,
	service.KindRateLimited:    http.StatusTooManyRequests,
}

// writeServiceError maps err onto a status and error body. Dependency
// failures are logged here and never shown to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	kind := service.KindOf(err)
	if kind == service.KindDependency {
		if errors.Is(err, service.ErrDeliveryFailed) {
			log.Error("code delivery failed", "err", err)
			authsdk.ErrDeliveryFailed.WriteError(w)
			return
		}
		log.Error("request failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	for sentinel, desc := range descriptions {
		if errors.Is(err, sentinel) {
			authsdk.NewError(kindStatus[kind], sentinel.Error(), desc).WriteError(w)
			return
		}
	}

	// guard.ErrTooManyAttempts and other classified errors without wording.
	authsdk.NewError(kindStatus[kind], kind.String(), err.Error()).WriteError(w)
}

// writeDecodeError reports a body that failed to parse or validate.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *httpx.ValidationError
	if errors.As(err, &verr) {
		slogx.FromContext(r.Context()).Debug("rejected request body", "field", verr.Field, "err", verr.Message)
		authsdk.NewError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, verr.Message).WriteError(w)
		return
	}
	writeServiceError(w, r, err)
}
