package http

import (
	"net/http"

	"github.com/aussiebroadwan/clubhouse/internal/identity/service"
	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
	"github.com/aussiebroadwan/clubhouse/pkg/httpx"
)

type UsersHandler struct {
	Accounts *service.AccountService
}

// HandleUpdateProfile edits the caller's own profile.
//
//	@Summary		Update own profile
//	@Description	Changes email, full name or phone. Any other field is rejected. A new email returns the account to pending until it is verified.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ProfileUpdate	true	"Fields to change"
//	@Success		200		{object}	authsdk.UserResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid or empty update"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Session invalid"
//	@Failure		409		{object}	authsdk.ErrorResponse	"Email already in use"
//	@Security		BearerAuth
//	@Router			/v1/users/me [patch].
func (h *UsersHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd authsdk.ProfileUpdate
	if err := httpx.DecodeJSON(w, r, &upd); err != nil {
		authsdk.NewError(authsdk.KindValidationFailure, "Only email, fullName and phone can be updated.").WriteError(w)
		return
	}
	caller, _ := httpx.PrincipalFromCtx(r.Context())

	u, err := h.Accounts.UpdateProfile(r.Context(), caller, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{Success: true, User: u})
}

// HandleList lists every account.
//
//	@Summary		List users
//	@Description	Returns every account. Requires an active admin or super_admin.
//	@Tags			Users
//	@Produce		json
//	@Success		200	{object}	authsdk.ListUsersResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Session invalid"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Not an admin"
//	@Security		BearerAuth
//	@Router			/v1/users [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, _ := httpx.PrincipalFromCtx(r.Context())

	users, err := h.Accounts.ListUsers(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.ListUsersResponse{Users: users})
}

// HandleSetRole changes a user's role.
//
//	@Summary		Set a user's role
//	@Description	Admins may change members and admins; only a super_admin may act on or grant super_admin. Nobody can change their own role.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Target user ID"
//	@Param			request	body		authsdk.SetUserRoleRequest	true	"New role"
//	@Success		200		{object}	authsdk.StatusResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Unknown role"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Not permitted"
//	@Failure		404		{object}	authsdk.ErrorResponse	"No such user"
//	@Security		BearerAuth
//	@Router			/v1/users/{id}/role [put].
func (h *UsersHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SetUserRoleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w)
		return
	}
	caller, target, ok := h.target(w, r, req.CallerID, req.TargetUserID)
	if !ok {
		return
	}

	if err := h.Accounts.SetUserRole(r.Context(), caller, target, req.NewRole); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "Role updated."})
}

// HandleSetStatus activates or deactivates a user.
//
//	@Summary		Set a user's status
//	@Description	Deactivating a user revokes all of their sessions.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Target user ID"
//	@Param			request	body		authsdk.SetUserStatusRequest	true	"New status"
//	@Success		200		{object}	authsdk.StatusResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Unknown status"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Not permitted"
//	@Failure		404		{object}	authsdk.ErrorResponse	"No such user"
//	@Security		BearerAuth
//	@Router			/v1/users/{id}/status [put].
func (h *UsersHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SetUserStatusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w)
		return
	}
	caller, target, ok := h.target(w, r, req.CallerID, req.TargetUserID)
	if !ok {
		return
	}

	if err := h.Accounts.SetUserStatus(r.Context(), caller, target, req.NewStatus); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "Status updated."})
}

// target resolves the caller and the path user, rejecting bodies that
// disagree with either.
func (h *UsersHandler) target(w http.ResponseWriter, r *http.Request, callerID, bodyTarget string) (httpx.Principal, string, bool) {
	caller, _ := httpx.PrincipalFromCtx(r.Context())
	if err := service.CheckCallerID(caller, callerID); err != nil {
		writeError(w, r, err)
		return httpx.Principal{}, "", false
	}

	id := r.PathValue("id")
	if bodyTarget != "" && bodyTarget != id {
		authsdk.NewError(authsdk.KindValidationFailure, "The target user does not match the URL.").WriteError(w)
		return httpx.Principal{}, "", false
	}
	return caller, id, true
}
