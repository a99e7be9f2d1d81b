package authsdk

import "errors"

// Result is the uniform outcome of every AuthService operation. Exactly one of
// Payload (on success) or Kind/Message (on failure) is meaningful.
type Result[T any] struct {
	Success bool      `json:"success"`
	Payload T         `json:"payload,omitempty"`
	Kind    ErrorKind `json:"errorKind,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Ok wraps a successful payload.
func Ok[T any](payload T) Result[T] {
	return Result[T]{Success: true, Payload: payload}
}

// Fail builds a failed result. An empty message uses the kind's default.
func Fail[T any](kind ErrorKind, message string) Result[T] {
	return Result[T]{
		Success: false,
		Kind:    kind,
		Message: messageOrDefault(message, kind),
	}
}

// FailFrom converts any error into a failed result, keeping the kind and
// message of *Error values.
func FailFrom[T any](err error) Result[T] {
	var e *Error
	if errors.As(err, &e) {
		return Fail[T](e.Kind, e.Message)
	}
	return Fail[T](KindBackendUnavailable, "")
}

// Recast carries a failure over to a result of another payload type.
func Recast[U, T any](r Result[T]) Result[U] {
	return Result[U]{Success: r.Success, Kind: r.Kind, Message: r.Message}
}

// Err returns the failure as an *Error, or nil on success.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	return NewError(r.Kind, r.Message)
}

// Is reports whether the result failed with the given kind.
func (r Result[T]) Is(kind ErrorKind) bool {
	return !r.Success && r.Kind == kind
}
