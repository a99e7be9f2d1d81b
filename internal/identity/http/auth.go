package http

import (
	"net/http"

	"github.com/aussiebroadwan/clubhouse/internal/identity/service"
	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
	"github.com/aussiebroadwan/clubhouse/pkg/httpx"
)

type AuthHandler struct {
	Accounts *service.AccountService
}

// HandleRegister creates a pending account.
//
//	@Summary		Register an account
//	@Description	Creates a pending member account and sends an email verification link.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest		true	"New account"
//	@Success		201		{object}	authsdk.RegisterResponse	"Account created"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Invalid email or password"
//	@Failure		409		{object}	authsdk.ErrorResponse		"Email already registered"
//	@Failure		429		{object}	authsdk.ErrorResponse		"Rate limited"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w)
		return
	}

	resp, err := h.Accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

// HandleLogin opens a session.
//
//	@Summary		Sign in
//	@Description	Checks the email and password and returns an opaque session token.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"Session opened"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Missing email or password"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid credentials or deactivated account"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limited"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w)
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	resp, err := h.Accounts.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleLogout revokes a session.
//
//	@Summary		Sign out
//	@Description	Revokes the session. The token may come from the Authorization header or the body. Unknown tokens are accepted.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LogoutRequest	false	"Session token"
//	@Success		200		{object}	authsdk.StatusResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"No token supplied"
//	@Security		BearerAuth
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LogoutRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			writeBadRequest(w)
			return
		}
	}
	if tok, ok := httpx.BearerToken(r); ok {
		req.SessionToken = tok
	}

	if err := h.Accounts.Logout(r.Context(), req.SessionToken); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "Signed out."})
}

// HandleValidateSession reports whether a session is live.
//
//	@Summary		Validate a session
//	@Description	Returns valid=false for unknown, revoked and expired tokens, and the current user record otherwise.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ValidateSessionRequest	true	"Session token"
//	@Success		200		{object}	authsdk.ValidateSessionResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid request"
//	@Router			/v1/auth/session [post].
func (h *AuthHandler) HandleValidateSession(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ValidateSessionRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w)
		return
	}

	resp, err := h.Accounts.ValidateSession(r.Context(), req.SessionToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleVerifyEmail consumes a verification token.
//
//	@Summary		Verify an email address
//	@Description	Consumes a single-use verification token and activates the account.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyEmailRequest	true	"Verification token"
//	@Success		200		{object}	authsdk.StatusResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Token is not valid"
//	@Failure		410		{object}	authsdk.ErrorResponse	"Token already used or expired"
//	@Router			/v1/auth/verify-email [post].
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyEmailRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w)
		return
	}

	if err := h.Accounts.VerifyEmail(r.Context(), req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "Email verified."})
}
