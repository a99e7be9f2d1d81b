package httpx

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/clubhouse/pkg/slogx"
)

// Principal is the authenticated caller behind a bearer session token.
type Principal struct {
	UserID    string
	SessionID string
	Role      string
	Status    string
}

// Authenticator resolves an opaque session token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

// ErrorWriter renders an authentication or authorization failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// AuthnMiddleware requires a valid bearer session token. Failures are passed
// to onError; a nil onError writes an RFC 6750 bearer challenge.
func AuthnMiddleware(a Authenticator, onError ErrorWriter) Middleware {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			writeBearerError(w, "invalid session token")
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				onError(w, r, ErrMissingToken)
				return
			}

			p, err := a.Authenticate(ctx, raw)
			if err != nil {
				log.Info("session authentication failed", "err", err)
				onError(w, r, err)
				return
			}

			// Inject into context for downstream handlers.
			ctx = contextWithAuth(ctx, p, raw)
			ctx = slogx.WithUserID(ctx, p.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func contextWithAuth(ctx context.Context, p Principal, token string) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, p.UserID)
	ctx = context.WithValue(ctx, CtxKeyRole, p.Role)
	ctx = context.WithValue(ctx, CtxKeyPrincipal, p)
	ctx = context.WithValue(ctx, CtxKeyToken, token)
	return ctx
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
