package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/clubhouse/pkg/httpx"
)

// ============================================================================
// Error Kinds
// ============================================================================

// ErrorKind classifies every failure the identity core can report. Callers
// may branch on it, but every failure also carries a display-ready message.
type ErrorKind string

const (
	KindNetworkTimeout        ErrorKind = "network_timeout"
	KindBackendUnavailable    ErrorKind = "backend_unavailable"
	KindInvalidCredentials    ErrorKind = "invalid_credentials"
	KindDuplicateRegistration ErrorKind = "duplicate_registration"
	KindValidationFailure     ErrorKind = "validation_failure"
	KindSessionInvalid        ErrorKind = "session_invalid"
	KindSessionExpired        ErrorKind = "session_expired"
	KindTokenAlreadyUsed      ErrorKind = "token_already_used"
	KindInsufficientPrivilege ErrorKind = "insufficient_privilege"
	KindNotFound              ErrorKind = "not_found"
)

var defaultMessages = map[ErrorKind]string{
	KindNetworkTimeout:        "The identity service did not respond in time. Please try again.",
	KindBackendUnavailable:    "The identity service is unavailable. Please try again later.",
	KindInvalidCredentials:    "Invalid email or password.",
	KindDuplicateRegistration: "An account with this email already exists.",
	KindValidationFailure:     "The request was invalid.",
	KindSessionInvalid:        "Your session is no longer valid. Please sign in again.",
	KindSessionExpired:        "Your session has expired. Please sign in again.",
	KindTokenAlreadyUsed:      "This link has already been used or has expired.",
	KindInsufficientPrivilege: "You do not have permission to perform this action.",
	KindNotFound:              "The requested account was not found.",
}

var kindStatus = map[ErrorKind]int{
	KindNetworkTimeout:        http.StatusGatewayTimeout,
	KindBackendUnavailable:    http.StatusServiceUnavailable,
	KindInvalidCredentials:    http.StatusUnauthorized,
	KindDuplicateRegistration: http.StatusConflict,
	KindValidationFailure:     http.StatusBadRequest,
	KindSessionInvalid:        http.StatusUnauthorized,
	KindSessionExpired:        http.StatusUnauthorized,
	KindTokenAlreadyUsed:      http.StatusGone,
	KindInsufficientPrivilege: http.StatusForbidden,
	KindNotFound:              http.StatusNotFound,
}

// DefaultMessage returns the generic user-facing message for a kind.
func (k ErrorKind) DefaultMessage() string {
	if msg, ok := defaultMessages[k]; ok {
		return msg
	}
	return "Something went wrong."
}

// Known reports whether k is part of the taxonomy.
func (k ErrorKind) Known() bool {
	_, ok := defaultMessages[k]
	return ok
}

// HTTPStatus returns the status code the identity backend uses for a kind.
func (k ErrorKind) HTTPStatus() int {
	if code, ok := kindStatus[k]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// ============================================================================
// Error
// ============================================================================

// Error is the typed failure shared by the identity backend (to write
// responses) and the client core (to represent them).
type Error struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Kind classifies the failure
	Kind ErrorKind `json:"error"`

	// Message is a human-readable description suitable for display
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches errors of the same kind, so errors.Is(err, ErrSessionInvalid)
// works for any message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// WriteError writes this Error to an HTTP response writer.
func (e *Error) WriteError(w http.ResponseWriter) {
	status := e.StatusCode
	if status == 0 {
		status = e.Kind.HTTPStatus()
	}
	httpx.WriteJSON(w, status, ErrorResponse{
		Success: false,
		Error:   string(e.Kind),
		Message: e.Message,
	})
}

// NewError creates an Error of the given kind. An empty message falls back to
// the kind's default message.
func NewError(kind ErrorKind, message string) *Error {
	if message == "" {
		message = kind.DefaultMessage()
	}
	return &Error{
		StatusCode: kind.HTTPStatus(),
		Kind:       kind,
		Message:    message,
	}
}

// Errorf creates an Error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return NewError(kind, fmt.Sprintf(format, args...))
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	ErrNetworkTimeout        = NewError(KindNetworkTimeout, "")
	ErrBackendUnavailable    = NewError(KindBackendUnavailable, "")
	ErrInvalidCredentials    = NewError(KindInvalidCredentials, "")
	ErrDuplicateRegistration = NewError(KindDuplicateRegistration, "")
	ErrValidationFailure     = NewError(KindValidationFailure, "")
	ErrSessionInvalid        = NewError(KindSessionInvalid, "")
	ErrSessionExpired        = NewError(KindSessionExpired, "")
	ErrTokenAlreadyUsed      = NewError(KindTokenAlreadyUsed, "")
	ErrInsufficientPrivilege = NewError(KindInsufficientPrivilege, "")
	ErrNotFound              = NewError(KindNotFound, "")
)

// KindOf extracts the ErrorKind of err. Errors that are not *Error report
// KindBackendUnavailable.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackendUnavailable
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx identity backend response into an *Error.
// Unknown error codes are classified from the status code, keeping the
// server's message when it sent one.
func parseErrorResponse(resp *http.Response, body []byte) *Error {
	var errResp ErrorResponse
	_ = json.Unmarshal(body, &errResp)

	kind := ErrorKind(errResp.Error)
	if !kind.Known() {
		kind = kindFromStatus(resp.StatusCode)
	}

	return &Error{
		StatusCode: resp.StatusCode,
		Kind:       kind,
		Message:    messageOrDefault(errResp.Message, kind),
	}
}

func kindFromStatus(code int) ErrorKind {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidationFailure
	case http.StatusUnauthorized:
		return KindSessionInvalid
	case http.StatusForbidden:
		return KindInsufficientPrivilege
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindDuplicateRegistration
	case http.StatusGone:
		return KindTokenAlreadyUsed
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return KindNetworkTimeout
	default:
		return KindBackendUnavailable
	}
}

func messageOrDefault(msg string, kind ErrorKind) string {
	if msg == "" {
		return kind.DefaultMessage()
	}
	return msg
}
