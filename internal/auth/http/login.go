package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/acctly/internal/auth/service"
	"github.com/aussiebroadwan/acctly/pkg/authsdk"
	"github.com/aussiebroadwan/acctly/pkg/httpx"
)

// LoginHandler serves the login steps.
type LoginHandler struct {
	Login *service.LoginService
}

// HandleLogin handles POST /v1/login
//
//	@Summary		Submit email and password
//	@Description	Returns a session when the account has no second factor, otherwise an mfa_token
//	@Description	for POST /v1/login/verify. Email challenges have their code sent before the response.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"Session or second factor challenge"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_credentials"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limited"
//	@Failure		502		{object}	authsdk.ErrorResponse	"delivery_failed"
//	@Router			/v1/login [post].
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	res, err := h.Login.SubmitPrimary(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if res.Session != nil {
		sess := sessionResponse(*res.Session)
		httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{Session: &sess})
		return
	}

	exp := res.Challenge.ExpiresAt
	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		MFAToken:   res.Challenge.Token,
		FactorType: res.Challenge.Factor.String(),
		ExpiresAt:  &exp,
	})
}

// HandleVerify handles POST /v1/login/verify
//
//	@Summary		Submit the second factor code
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginVerifyRequest	true	"Challenge token and code"
//	@Success		200		{object}	authsdk.LoginVerifyResponse	"Session"
//	@Failure		400		{object}	authsdk.ErrorResponse		"missing_code"
//	@Failure		401		{object}	authsdk.ErrorResponse		"invalid_code, code_expired, token_expired or token_invalid"
//	@Failure		429		{object}	authsdk.ErrorResponse		"too_many_attempts"
//	@Router			/v1/login/verify [post].
func (h *LoginHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginVerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	sess, err := h.Login.SubmitSecondFactor(r.Context(), req.MFAToken, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginVerifyResponse{Session: sessionResponse(sess)})
}

// HandleResend handles POST /v1/login/resend
//
//	@Summary		Send a new email code
//	@Description	Replaces the pending code of an email challenge. The challenge keeps its expiry.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body	authsdk.LoginResendRequest	true	"Challenge token"
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse	"token_expired or token_invalid"
//	@Failure		502	{object}	authsdk.ErrorResponse	"delivery_failed"
//	@Router			/v1/login/resend [post].
func (h *LoginHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginResendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	if err := h.Login.ResendEmailCode(r.Context(), req.MFAToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteNoContent(w)
}

func sessionResponse(s service.Session) authsdk.SessionResponse {
	return authsdk.SessionResponse{
		AccessToken: s.Token,
		TokenType:   "Bearer",
		ExpiresAt:   s.ExpiresAt,
		ExpiresIn:   int(time.Until(s.ExpiresAt).Seconds()),
		UserID:      s.UserID,
		Email:       s.Email,
		AMR:         s.AMR,
	}
}
