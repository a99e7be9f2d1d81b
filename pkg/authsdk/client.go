package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var _ Backend = (*Client)(nil)

// Client is the HTTP implementation of Backend for the clubhouse identity
// service. It performs exactly one request per call; timeouts and retries are
// the Gateway's job.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// UserAgent is forwarded to the identity service and recorded against
	// sessions created by login.
	UserAgent string
}

// NewClient creates a new identity service client. The transport timeout is
// longer than the default gateway timeout so abandoned calls still terminate.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		UserAgent: "clubhouse-authsdk",
	}
}

// Register creates a new pending account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	var resp RegisterResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/register", "", req, &resp, http.StatusCreated)
	return resp, err
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	if req.UserAgent == "" {
		req.UserAgent = c.UserAgent
	}
	var resp LoginResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login", "", req, &resp, http.StatusOK)
	return resp, err
}

// Logout revokes the session token server-side.
func (c *Client) Logout(ctx context.Context, req LogoutRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/auth/logout", req.SessionToken, req, nil, http.StatusOK)
}

// ValidateSession asks the backend whether a token is still live and returns
// the current user record when it is.
func (c *Client) ValidateSession(ctx context.Context, req ValidateSessionRequest) (ValidateSessionResponse, error) {
	var resp ValidateSessionResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/session", "", req, &resp, http.StatusOK)
	return resp, err
}

// VerifyEmail consumes an email verification token.
func (c *Client) VerifyEmail(ctx context.Context, req VerifyEmailRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/auth/verify-email", "", req, nil, http.StatusOK)
}

// RequestPasswordReset starts the password reset flow for an email address.
func (c *Client) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) (PasswordResetResponse, error) {
	var resp PasswordResetResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/password/forgot", "", req, &resp, http.StatusOK)
	return resp, err
}

// ResetPassword consumes a reset token and sets a new password.
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/auth/password/reset", "", req, nil, http.StatusOK)
}

// ChangePassword changes the password of the authenticated user.
func (c *Client) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/auth/password/change", req.SessionToken, req, nil, http.StatusOK)
}

// UpdateProfile edits the authenticated user's own profile and returns the
// canonical record.
func (c *Client) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (User, error) {
	var resp UserResponse
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/users/me", req.SessionToken, req.Updates, &resp, http.StatusOK); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

// SetUserRole changes another user's role. Requires an admin session.
func (c *Client) SetUserRole(ctx context.Context, req SetUserRoleRequest) error {
	path := "/v1/users/" + url.PathEscape(req.TargetUserID) + "/role"
	return c.doJSON(ctx, http.MethodPut, path, req.SessionToken, req, nil, http.StatusOK)
}

// SetUserStatus changes another user's account status. Requires an admin session.
func (c *Client) SetUserStatus(ctx context.Context, req SetUserStatusRequest) error {
	path := "/v1/users/" + url.PathEscape(req.TargetUserID) + "/status"
	return c.doJSON(ctx, http.MethodPut, path, req.SessionToken, req, nil, http.StatusOK)
}

// ListUsers returns every user. Requires an admin session.
func (c *Client) ListUsers(ctx context.Context, req ListUsersRequest) (ListUsersResponse, error) {
	var resp ListUsersResponse
	err := c.doJSON(ctx, http.MethodGet, "/v1/users", req.SessionToken, nil, &resp, http.StatusOK)
	return resp, err
}
