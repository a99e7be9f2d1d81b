package authsdk

import "context"

// Backend is the identity service contract. Implementations either talk to a
// remote identity server (Client) or call an in-process account service.
//
// Failures the backend understands are reported as *Error. Any other error is
// treated as a transport failure by the Gateway.
type Backend interface {
	Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error)
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	Logout(ctx context.Context, req LogoutRequest) error
	ValidateSession(ctx context.Context, req ValidateSessionRequest) (ValidateSessionResponse, error)
	VerifyEmail(ctx context.Context, req VerifyEmailRequest) error
	RequestPasswordReset(ctx context.Context, req PasswordResetRequest) (PasswordResetResponse, error)
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	ChangePassword(ctx context.Context, req ChangePasswordRequest) error
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) (User, error)
	SetUserRole(ctx context.Context, req SetUserRoleRequest) error
	SetUserStatus(ctx context.Context, req SetUserStatusRequest) error
	ListUsers(ctx context.Context, req ListUsersRequest) (ListUsersResponse, error)
}
