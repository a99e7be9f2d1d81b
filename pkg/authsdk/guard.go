package authsdk

import "net/http"

// Guard returns middleware for web front-ends that lets a request through
// only when the service holds an authenticated user of at least minRole.
//
// Guard reads the cached user; it decides what to render, not what is
// allowed. The identity backend enforces the real checks.
func Guard(svc *Service, minRole Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !svc.IsAuthenticated() {
				ErrSessionInvalid.WriteError(w)
				return
			}
			if res := RequireRole(svc.CurrentUser(), minRole); !res.Success {
				NewError(res.Kind, res.Message).WriteError(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
