package authsdk

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================================
// Roles and Statuses
// ============================================================================

// Role is a member's authorization tier. Roles form a total order:
// member < admin < super_admin.
type Role string

const (
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Rank returns the position of the role in the total order. Unknown roles
// rank below member so they never satisfy a role requirement.
func (r Role) Rank() int {
	switch r {
	case RoleMember:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r.Rank() > 0 }

// AtLeast reports whether r is ranked at or above min.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r.Rank() >= min.Rank()
}

func (r Role) String() string { return string(r) }

// ParseRole parses a role name, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Status is the account state of a user.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive:
		return true
	}
	return false
}

// ParseStatus parses a status name, case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// ============================================================================
// User and Session
// ============================================================================

// User is the identity record returned by the identity backend.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"fullName,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Role      Role       `json:"role"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

func (u User) validate() error {
	if u.ID == "" {
		return fmt.Errorf("user id is missing")
	}
	if u.Email == "" {
		return fmt.Errorf("user email is missing")
	}
	if !u.Role.Valid() {
		return fmt.Errorf("user role %q is not recognised", u.Role)
	}
	if !u.Status.Valid() {
		return fmt.Errorf("user status %q is not recognised", u.Status)
	}
	return nil
}

// Session is the local proof that a user is currently authenticated.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Valid reports whether the session holds a token and is unexpired at now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && !s.Expired(now)
}

// ProfileUpdate carries the self-editable profile fields. Nil fields are left
// unchanged. Role and status are deliberately absent.
type ProfileUpdate struct {
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"fullName,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Email == nil && p.FullName == nil && p.Phone == nil
}

// ============================================================================
// Wire Types
// ============================================================================

// ErrorResponse is the body of every failed identity backend call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusResponse is the body of calls that only report success.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	UserID  string `json:"userId"`

	// VerificationToken is only returned when the backend is configured to
	// hand tokens to the caller instead of delivering them out of band.
	VerificationToken string `json:"verificationToken,omitempty"`
}

func (r RegisterResponse) validate() error {
	if r.UserID == "" {
		return fmt.Errorf("register response is missing userId")
	}
	return nil
}

type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	UserAgent string `json:"userAgent,omitempty"`
}

type LoginResponse struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message,omitempty"`
	User         User      `json:"user"`
	SessionToken string    `json:"sessionToken"`
	IssuedAt     time.Time `json:"issuedAt,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (r LoginResponse) validate() error {
	if r.SessionToken == "" {
		return fmt.Errorf("login response is missing sessionToken")
	}
	if r.ExpiresAt.IsZero() {
		return fmt.Errorf("login response is missing expiresAt")
	}
	if !r.IssuedAt.IsZero() && !r.ExpiresAt.After(r.IssuedAt) {
		return fmt.Errorf("login response expiresAt is not after issuedAt")
	}
	return r.User.validate()
}

type LogoutRequest struct {
	SessionToken string `json:"sessionToken"`
}

type ValidateSessionRequest struct {
	SessionToken string `json:"sessionToken"`
}

type ValidateSessionResponse struct {
	Valid bool  `json:"valid"`
	User  *User `json:"user,omitempty"`
}

func (r ValidateSessionResponse) validate() error {
	if !r.Valid {
		return nil
	}
	if r.User == nil {
		return fmt.Errorf("valid session response is missing user")
	}
	return r.User.validate()
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetResponse acknowledges a reset request. ResetToken is only
// populated when the backend exposes tokens to callers (development).
type PasswordResetResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	ResetToken string `json:"resetToken,omitempty"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type ChangePasswordRequest struct {
	SessionToken    string `json:"-"`
	UserID          string `json:"userId"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UpdateProfileRequest struct {
	SessionToken string        `json:"-"`
	Updates      ProfileUpdate `json:"updates"`
}

type SetUserRoleRequest struct {
	SessionToken string `json:"-"`
	CallerID     string `json:"callerId"`
	TargetUserID string `json:"targetUserId"`
	NewRole      Role   `json:"newRole"`
}

type SetUserStatusRequest struct {
	SessionToken string `json:"-"`
	CallerID     string `json:"callerId"`
	TargetUserID string `json:"targetUserId"`
	NewStatus    Status `json:"newStatus"`
}

type ListUsersRequest struct {
	SessionToken string `json:"-"`
}

type ListUsersResponse struct {
	Users []User `json:"users"`
}

func (r ListUsersResponse) validate() error {
	for i, u := range r.Users {
		if err := u.validate(); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
	}
	return nil
}

// UserResponse wraps a single canonical user record.
type UserResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	User    User   `json:"user"`
}
