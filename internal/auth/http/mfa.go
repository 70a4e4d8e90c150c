package http

import (
	"net/http"

	"github.com/aussiebroadwan/acctly/internal/auth/service"
	"github.com/aussiebroadwan/acctly/pkg/authsdk"
	"github.com/aussiebroadwan/acctly/pkg/httpx"
)

// MFAHandler handles second factor management. Apart from confirm, every
// endpoint acts on the account of the session bearer token.
type MFAHandler struct {
	Enrollment *service.EnrollmentService
}

// HandleEnroll handles POST /v1/mfa/app/enroll
//
//	@Summary		Begin authenticator app enrollment
//	@Description	Generates a TOTP secret and returns it with a QR code and an enrollment token.
//	@Description	Nothing is stored until POST /v1/mfa/app/confirm succeeds.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.AppEnrollResponse	"Secret, QR code and enrollment token"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing session token"
//	@Failure		409	{object}	authsdk.ErrorResponse		"factor_already_enabled"
//	@Router			/v1/mfa/app/enroll [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		authsdk.ErrTokenInvalid.WriteError(w)
		return
	}

	e, err := h.Enrollment.BeginApp(r.Context(), claims.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.AppEnrollResponse{
		Secret:          e.Secret,
		EnrollmentURI:   e.URI,
		QRCode:          e.QRCode,
		EnrollmentToken: e.Token,
		ExpiresAt:       e.ExpiresAt,
	})
}

// HandleConfirm handles POST /v1/mfa/app/confirm
//
//	@Summary		Confirm authenticator app enrollment
//	@Tags			MFA
//	@Accept			json
//	@Param			request	body	authsdk.AppConfirmRequest	true	"Enrollment token and current code"
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_code, token_expired or token_invalid"
//	@Failure		429	{object}	authsdk.ErrorResponse	"too_many_attempts"
//	@Router			/v1/mfa/app/confirm [post].
func (h *MFAHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req authsdk.AppConfirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	if err := h.Enrollment.ConfirmApp(r.Context(), req.EnrollmentToken, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteNoContent(w)
}

// HandleEnableEmail handles POST /v1/mfa/email/enable
//
//	@Summary		Enable email codes
//	@Tags			MFA
//	@Security		BearerAuth
//	@Success		204
//	@Failure		409	{object}	authsdk.ErrorResponse	"factor_already_enabled"
//	@Router			/v1/mfa/email/enable [post].
func (h *MFAHandler) HandleEnableEmail(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		authsdk.ErrTokenInvalid.WriteError(w)
		return
	}

	if err := h.Enrollment.EnableEmail(r.Context(), claims.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteNoContent(w)
}

// HandleDisable handles POST /v1/mfa/disable
//
//	@Summary		Disable a factor
//	@Description	Requires the account password, and for the app factor a current code.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.DisableFactorRequest	true	"Password, factor and code"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"unknown_factor_type"
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_password or invalid_code"
//	@Failure		409	{object}	authsdk.ErrorResponse	"factor_not_enabled"
//	@Router			/v1/mfa/disable [post].
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		authsdk.ErrTokenInvalid.WriteError(w)
		return
	}

	var req authsdk.DisableFactorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	err := h.Enrollment.Disable(r.Context(), service.DisableInput{
		Email:    claims.Email,
		Password: req.Password,
		Factor:   req.FactorType,
		Code:     req.Code,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteNoContent(w)
}

// HandleStatus handles GET /v1/mfa
//
//	@Summary		Get enabled factors
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.FactorStatusResponse
//	@Router			/v1/mfa [get].
func (h *MFAHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Enrollment.Status(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.FactorStatusResponse{
		AppEnabled:   status.AppEnabled,
		EmailEnabled: status.EmailEnabled,
	})
}
