package httpx

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrMissingToken is reported when a request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrForbidden is reported when the caller lacks a required role.
	ErrForbidden = errors.New("insufficient role")
)

// RequireAnyRole lets the request through only when the authenticated
// caller holds one of roles. Denials go to onError; a nil onError writes an
// RFC 6750 insufficient_scope challenge.
func RequireAnyRole(onError ErrorWriter, roles ...string) Middleware {
	want := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		want[r] = struct{}{}
	}
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			writeBearerRoleError(w, http.StatusForbidden, roles...)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := want[RoleFromCtx(r.Context())]; ok {
				next.ServeHTTP(w, r)
				return
			}
			onError(w, r, ErrForbidden)
		})
	}
}

func writeBearerRoleError(w http.ResponseWriter, code int, roles ...string) {
	w.Header().
		Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+strings.Join(roles, " ")+`"`)
	w.WriteHeader(code)
	_, _ = w.Write([]byte("insufficient_scope"))
}
