package http

import (
	"net/http"

	"github.com/aussiebroadwan/acctly/internal/auth/service"
	"github.com/aussiebroadwan/acctly/pkg/authsdk"
	"github.com/aussiebroadwan/acctly/pkg/httpx"
)

// AccountHandler serves sign up and address verification.
type AccountHandler struct {
	Users        *service.UserService
	Verification *service.VerificationService
}

// HandleSignup handles POST /v1/signup
//
//	@Summary		Create an account
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SignupRequest	true	"Email and password"
//	@Success		201		{object}	authsdk.SignupResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_email or weak_password"
//	@Failure		409		{object}	authsdk.ErrorResponse	"email_taken"
//	@Router			/v1/signup [post].
func (h *AccountHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	user, err := h.Users.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.SignupResponse{ID: user.ID, Email: user.Email})
}

// HandleVerifyRequest handles POST /v1/email/verify
//
//	@Summary		Send an address verification code
//	@Tags			Account
//	@Security		BearerAuth
//	@Success		204
//	@Failure		409	{object}	authsdk.ErrorResponse	"email_already_verified"
//	@Failure		502	{object}	authsdk.ErrorResponse	"delivery_failed"
//	@Router			/v1/email/verify [post].
func (h *AccountHandler) HandleVerifyRequest(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Verification.Request(r.Context(), httpx.UserIDFromContext(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteNoContent(w)
}

// HandleVerifyConfirm handles POST /v1/email/confirm
//
//	@Summary		Confirm the account address
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.EmailConfirmRequest	true	"Emailed code"
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_code or code_expired"
//	@Router			/v1/email/confirm [post].
func (h *AccountHandler) HandleVerifyConfirm(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailConfirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	if err := h.Verification.Confirm(r.Context(), httpx.UserIDFromContext(r.Context()), req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteNoContent(w)
}
