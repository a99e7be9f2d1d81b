package authsdk_test

import (
	"context"
	"sync"

	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
)

// fakeBackend is a scripted Backend. Unscripted calls fail with
// BackendUnavailable. Every call is counted by operation name.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	register        func(authsdk.RegisterRequest) (authsdk.RegisterResponse, error)
	login           func(authsdk.LoginRequest) (authsdk.LoginResponse, error)
	logout          func(authsdk.LogoutRequest) error
	validateSession func(authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error)
	verifyEmail     func(authsdk.VerifyEmailRequest) error
	requestReset    func(authsdk.PasswordResetRequest) (authsdk.PasswordResetResponse, error)
	resetPassword   func(authsdk.ResetPasswordRequest) error
	changePassword  func(authsdk.ChangePasswordRequest) error
	updateProfile   func(authsdk.UpdateProfileRequest) (authsdk.User, error)
	setUserRole     func(authsdk.SetUserRoleRequest) error
	setUserStatus   func(authsdk.SetUserStatusRequest) error
	listUsers       func(authsdk.ListUsersRequest) (authsdk.ListUsersResponse, error)
}

var _ authsdk.Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: make(map[string]int)}
}

func (f *fakeBackend) count(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeBackend) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeBackend) Register(_ context.Context, req authsdk.RegisterRequest) (authsdk.RegisterResponse, error) {
	f.count("register")
	if f.register == nil {
		return authsdk.RegisterResponse{}, authsdk.ErrBackendUnavailable
	}
	return f.register(req)
}

func (f *fakeBackend) Login(_ context.Context, req authsdk.LoginRequest) (authsdk.LoginResponse, error) {
	f.count("login")
	if f.login == nil {
		return authsdk.LoginResponse{}, authsdk.ErrBackendUnavailable
	}
	return f.login(req)
}

func (f *fakeBackend) Logout(_ context.Context, req authsdk.LogoutRequest) error {
	f.count("logout")
	if f.logout == nil {
		return authsdk.ErrBackendUnavailable
	}
	return f.logout(req)
}

func (f *fakeBackend) ValidateSession(_ context.Context, req authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error) {
	f.count("validateSession")
	if f.validateSession == nil {
		return authsdk.ValidateSessionResponse{}, authsdk.ErrBackendUnavailable
	}
	return f.validateSession(req)
}

func (f *fakeBackend) VerifyEmail(_ context.Context, req authsdk.VerifyEmailRequest) error {
	f.count("verifyEmail")
	if f.verifyEmail == nil {
		return authsdk.ErrBackendUnavailable
	}
	return f.verifyEmail(req)
}

func (f *fakeBackend) RequestPasswordReset(_ context.Context, req authsdk.PasswordResetRequest) (authsdk.PasswordResetResponse, error) {
	f.count("requestPasswordReset")
	if f.requestReset == nil {
		return authsdk.PasswordResetResponse{}, authsdk.ErrBackendUnavailable
	}
	return f.requestReset(req)
}

func (f *fakeBackend) ResetPassword(_ context.Context, req authsdk.ResetPasswordRequest) error {
	f.count("resetPassword")
	if f.resetPassword == nil {
		return authsdk.ErrBackendUnavailable
	}
	return f.resetPassword(req)
}

func (f *fakeBackend) ChangePassword(_ context.Context, req authsdk.ChangePasswordRequest) error {
	f.count("changePassword")
	if f.changePassword == nil {
		return authsdk.ErrBackendUnavailable
	}
	return f.changePassword(req)
}

func (f *fakeBackend) UpdateProfile(_ context.Context, req authsdk.UpdateProfileRequest) (authsdk.User, error) {
	f.count("updateProfile")
	if f.updateProfile == nil {
		return authsdk.User{}, authsdk.ErrBackendUnavailable
	}
	return f.updateProfile(req)
}

func (f *fakeBackend) SetUserRole(_ context.Context, req authsdk.SetUserRoleRequest) error {
	f.count("setUserRole")
	if f.setUserRole == nil {
		return authsdk.ErrBackendUnavailable
	}
	return f.setUserRole(req)
}

func (f *fakeBackend) SetUserStatus(_ context.Context, req authsdk.SetUserStatusRequest) error {
	f.count("setUserStatus")
	if f.setUserStatus == nil {
		return authsdk.ErrBackendUnavailable
	}
	return f.setUserStatus(req)
}

func (f *fakeBackend) ListUsers(_ context.Context, req authsdk.ListUsersRequest) (authsdk.ListUsersResponse, error) {
	f.count("listUsers")
	if f.listUsers == nil {
		return authsdk.ListUsersResponse{}, authsdk.ErrBackendUnavailable
	}
	return f.listUsers(req)
}
