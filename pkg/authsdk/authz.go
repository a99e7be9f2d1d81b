package authsdk

import "time"

// The functions in this file only short-circuit actions that are obviously
// not allowed. The identity backend repeats every check and its answer wins;
// never rely on these for security.

// IsAuthenticated reports whether user is present and holds a session that
// is unexpired at now.
func IsAuthenticated(user *User, session *Session, now time.Time) bool {
	if user == nil || session == nil {
		return false
	}
	return session.Valid(now)
}

// IsAdmin reports whether user is an admin or super admin.
func IsAdmin(user *User) bool {
	return user != nil && user.Role.AtLeast(RoleAdmin)
}

// IsSuperAdmin reports whether user is a super admin.
func IsSuperAdmin(user *User) bool {
	return user != nil && user.Role == RoleSuperAdmin
}

// RequireRole fails with InsufficientPrivilege unless user is present,
// active, and ranked at or above min.
func RequireRole(user *User, min Role) Result[struct{}] {
	if user == nil {
		return Fail[struct{}](KindInsufficientPrivilege, "You must be signed in to do that.")
	}
	if user.Status != StatusActive {
		return Fail[struct{}](KindInsufficientPrivilege, "Your account is not active yet.")
	}
	if !user.Role.AtLeast(min) {
		return Fail[struct{}](KindInsufficientPrivilege, "")
	}
	return Ok(struct{}{})
}

// RequireAdmin is RequireRole(user, RoleAdmin).
func RequireAdmin(user *User) Result[struct{}] {
	return RequireRole(user, RoleAdmin)
}
