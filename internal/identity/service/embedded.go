package service

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
	"github.com/aussiebroadwan/clubhouse/pkg/httpx"
	"github.com/aussiebroadwan/clubhouse/pkg/slogx"
)

var _ authsdk.Backend = (*EmbeddedBackend)(nil)

// EmbeddedBackend serves the authsdk.Backend contract by calling an
// AccountService in-process. It is interchangeable with authsdk.Client and
// reports failures as *authsdk.Error the same way.
type EmbeddedBackend struct {
	Accounts *AccountService

	// Logger receives unexpected failures; nil uses the context logger.
	Logger *slog.Logger
}

func (b *EmbeddedBackend) fail(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	l := b.Logger
	if l == nil {
		l = slogx.FromContext(ctx)
	}
	return AsAuthError(l, err)
}

// caller resolves the bearer token the way the HTTP middleware does.
func (b *EmbeddedBackend) caller(ctx context.Context, token string) (httpx.Principal, error) {
	p, err := b.Accounts.Authenticate(ctx, token)
	if err != nil {
		return httpx.Principal{}, b.fail(ctx, err)
	}
	return p, nil
}

func (b *EmbeddedBackend) Register(ctx context.Context, req authsdk.RegisterRequest) (authsdk.RegisterResponse, error) {
	resp, err := b.Accounts.Register(ctx, req)
	return resp, b.fail(ctx, err)
}

func (b *EmbeddedBackend) Login(ctx context.Context, req authsdk.LoginRequest) (authsdk.LoginResponse, error) {
	if req.UserAgent == "" {
		req.UserAgent = "clubhouse-embedded"
	}
	resp, err := b.Accounts.Login(ctx, req)
	return resp, b.fail(ctx, err)
}

func (b *EmbeddedBackend) Logout(ctx context.Context, req authsdk.LogoutRequest) error {
	return b.fail(ctx, b.Accounts.Logout(ctx, req.SessionToken))
}

func (b *EmbeddedBackend) ValidateSession(ctx context.Context, req authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error) {
	resp, err := b.Accounts.ValidateSession(ctx, req.SessionToken)
	return resp, b.fail(ctx, err)
}

func (b *EmbeddedBackend) VerifyEmail(ctx context.Context, req authsdk.VerifyEmailRequest) error {
	return b.fail(ctx, b.Accounts.VerifyEmail(ctx, req.Token))
}

func (b *EmbeddedBackend) RequestPasswordReset(ctx context.Context, req authsdk.PasswordResetRequest) (authsdk.PasswordResetResponse, error) {
	resp, err := b.Accounts.RequestPasswordReset(ctx, req.Email)
	return resp, b.fail(ctx, err)
}

func (b *EmbeddedBackend) ResetPassword(ctx context.Context, req authsdk.ResetPasswordRequest) error {
	return b.fail(ctx, b.Accounts.ResetPassword(ctx, req.Token, req.NewPassword))
}

func (b *EmbeddedBackend) ChangePassword(ctx context.Context, req authsdk.ChangePasswordRequest) error {
	p, err := b.caller(ctx, req.SessionToken)
	if err != nil {
		return err
	}
	return b.fail(ctx, b.Accounts.ChangePassword(ctx, p, req.UserID, req.CurrentPassword, req.NewPassword))
}

func (b *EmbeddedBackend) UpdateProfile(ctx context.Context, req authsdk.UpdateProfileRequest) (authsdk.User, error) {
	p, err := b.caller(ctx, req.SessionToken)
	if err != nil {
		return authsdk.User{}, err
	}
	u, err := b.Accounts.UpdateProfile(ctx, p, req.Updates)
	return u, b.fail(ctx, err)
}

func (b *EmbeddedBackend) SetUserRole(ctx context.Context, req authsdk.SetUserRoleRequest) error {
	p, err := b.caller(ctx, req.SessionToken)
	if err != nil {
		return err
	}
	if err := CheckCallerID(p, req.CallerID); err != nil {
		return b.fail(ctx, err)
	}
	return b.fail(ctx, b.Accounts.SetUserRole(ctx, p, req.TargetUserID, req.NewRole))
}

func (b *EmbeddedBackend) SetUserStatus(ctx context.Context, req authsdk.SetUserStatusRequest) error {
	p, err := b.caller(ctx, req.SessionToken)
	if err != nil {
		return err
	}
	if err := CheckCallerID(p, req.CallerID); err != nil {
		return b.fail(ctx, err)
	}
	return b.fail(ctx, b.Accounts.SetUserStatus(ctx, p, req.TargetUserID, req.NewStatus))
}

func (b *EmbeddedBackend) ListUsers(ctx context.Context, req authsdk.ListUsersRequest) (authsdk.ListUsersResponse, error) {
	p, err := b.caller(ctx, req.SessionToken)
	if err != nil {
		return authsdk.ListUsersResponse{}, err
	}
	users, err := b.Accounts.ListUsers(ctx, p)
	if err != nil {
		return authsdk.ListUsersResponse{}, b.fail(ctx, err)
	}
	return authsdk.ListUsersResponse{Users: users}, nil
}

// CheckCallerID rejects requests whose claimed caller is not the session
// owner. An empty claim is accepted.
func CheckCallerID(p httpx.Principal, claimed string) error {
	if claimed != "" && claimed != p.UserID {
		return problem(ErrForbidden, "The caller does not match the session.")
	}
	return nil
}
