package service

import (
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountInactive    = errors.New("account_inactive")
	ErrDuplicateEmail     = errors.New("duplicate_email")
	ErrInvalidInput       = errors.New("invalid_input")
	ErrSessionInvalid     = errors.New("session_invalid")
	ErrSessionExpired     = errors.New("session_expired")
	ErrTokenInvalid       = errors.New("token_invalid")
	ErrTokenUsed          = errors.New("token_used")
	ErrForbidden          = errors.New("forbidden")
	ErrUserNotFound       = errors.New("user_not_found")
)

// Problem attaches a user-facing message to one of the sentinel errors.
type Problem struct {
	Err     error
	Message string
}

func (p *Problem) Error() string { return p.Err.Error() + ": " + p.Message }
func (p *Problem) Unwrap() error { return p.Err }

func problem(err error, msg string) error {
	return &Problem{Err: err, Message: msg}
}

var kindFor = []struct {
	err  error
	kind authsdk.ErrorKind
	msg  string
}{
	{ErrInvalidCredentials, authsdk.KindInvalidCredentials, ""},
	{ErrAccountInactive, authsdk.KindInvalidCredentials, "This account has been deactivated."},
	{ErrDuplicateEmail, authsdk.KindDuplicateRegistration, ""},
	{ErrInvalidInput, authsdk.KindValidationFailure, ""},
	{ErrSessionInvalid, authsdk.KindSessionInvalid, ""},
	{ErrSessionExpired, authsdk.KindSessionExpired, ""},
	{ErrTokenInvalid, authsdk.KindValidationFailure, "This link is not valid."},
	{ErrTokenUsed, authsdk.KindTokenAlreadyUsed, ""},
	{ErrForbidden, authsdk.KindInsufficientPrivilege, ""},
	{ErrUserNotFound, authsdk.KindNotFound, ""},
}

// AsAuthError maps a service error onto the wire taxonomy. Unrecognised
// errors are logged and reported as backend_unavailable without detail.
func AsAuthError(l *slog.Logger, err error) *authsdk.Error {
	if err == nil {
		return nil
	}

	var ae *authsdk.Error
	if errors.As(err, &ae) {
		return ae
	}

	msg := ""
	var p *Problem
	if errors.As(err, &p) {
		msg = p.Message
	}

	for _, m := range kindFor {
		if errors.Is(err, m.err) {
			if msg == "" {
				msg = m.msg
			}
			return authsdk.NewError(m.kind, msg)
		}
	}

	if l != nil {
		l.Error("unexpected identity service failure", "error", err)
	}
	return authsdk.NewError(authsdk.KindBackendUnavailable, "")
}
