package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/clubhouse/internal/identity/service"
	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
	"github.com/aussiebroadwan/clubhouse/pkg/httpx"
	"github.com/aussiebroadwan/clubhouse/pkg/slogx"
)

// writeError renders a service failure as an authsdk error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	service.AsAuthError(slogx.FromContext(r.Context()), err).WriteError(w)
}

// writeBadRequest reports an undecodable request body.
func writeBadRequest(w http.ResponseWriter) {
	authsdk.NewError(authsdk.KindValidationFailure, "Request body must be valid JSON.").WriteError(w)
}

// writeAuthnError is the ErrorWriter for the authn and role middleware.
func writeAuthnError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, httpx.ErrMissingToken):
		authsdk.NewError(authsdk.KindSessionInvalid, "A session token is required.").WriteError(w)
	case errors.Is(err, httpx.ErrForbidden):
		authsdk.ErrInsufficientPrivilege.WriteError(w)
	default:
		writeError(w, r, err)
	}
}
