package http

import (
	"net/http"

	"github.com/aussiebroadwan/clubhouse/internal/identity/service"
	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
	"github.com/aussiebroadwan/clubhouse/pkg/httpx"
)

type PasswordHandler struct {
	Accounts *service.AccountService
}

// HandleForgot starts a password reset.
//
//	@Summary		Request a password reset
//	@Description	Sends a reset link when the email belongs to an account. Always reports success.
//	@Tags			Passwords
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasswordResetRequest	true	"Account email"
//	@Success		200		{object}	authsdk.PasswordResetResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid email"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limited"
//	@Router			/v1/auth/password/forgot [post].
func (h *PasswordHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PasswordResetRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w)
		return
	}

	resp, err := h.Accounts.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleReset completes a password reset.
//
//	@Summary		Reset a password
//	@Description	Consumes a single-use reset token, sets the new password and signs the account out everywhere.
//	@Tags			Passwords
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ResetPasswordRequest	true	"Reset token and new password"
//	@Success		200		{object}	authsdk.StatusResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Token or password not valid"
//	@Failure		410		{object}	authsdk.ErrorResponse	"Token already used or expired"
//	@Router			/v1/auth/password/reset [post].
func (h *PasswordHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w)
		return
	}

	if err := h.Accounts.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "Password updated."})
}

// HandleChange changes the caller's password.
//
//	@Summary		Change password
//	@Description	Changes the signed-in user's password. Other sessions of the user are revoked.
//	@Tags			Passwords
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		200		{object}	authsdk.StatusResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"New password not valid"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Session invalid or current password wrong"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Not the caller's account"
//	@Security		BearerAuth
//	@Router			/v1/auth/password/change [post].
func (h *PasswordHandler) HandleChange(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w)
		return
	}
	caller, _ := httpx.PrincipalFromCtx(r.Context())

	err := h.Accounts.ChangePassword(r.Context(), caller, req.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "Password changed."})
}
