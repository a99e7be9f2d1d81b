package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/clubhouse/pkg/httpx"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator map[string]httpx.Principal

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (httpx.Principal, error) {
	p, ok := s[token]
	if !ok {
		return httpx.Principal{}, errors.New("unknown token")
	}
	return p, nil
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler, mark("a"), mark("b"), mark("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestAuthnMiddleware(t *testing.T) {
	auth := stubAuthenticator{
		"good": {UserID: "u1", SessionID: "s1", Role: "admin", Status: "active"},
	}

	var seen httpx.Principal
	var seenToken string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = httpx.PrincipalFromCtx(r.Context())
		seenToken = httpx.TokenFromCtx(r.Context())
		require.Equal(t, "u1", httpx.UserIDFromCtx(r.Context()))
		require.Equal(t, "admin", httpx.RoleFromCtx(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
	h := httpx.AuthnMiddleware(auth, nil)(inner)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic Z29vZA==", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
			}
		})
	}

	require.Equal(t, "s1", seen.SessionID)
	require.Equal(t, "good", seenToken)

	t.Run("custom error writer", func(t *testing.T) {
		var got error
		h := httpx.AuthnMiddleware(auth, func(w http.ResponseWriter, _ *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusTeapot)
		})(inner)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
		require.ErrorIs(t, got, httpx.ErrMissingToken)
	})
}

func TestRequireAnyRole(t *testing.T) {
	auth := stubAuthenticator{
		"member": {UserID: "u1", Role: "member"},
		"admin":  {UserID: "u2", Role: "admin"},
	}
	h := httpx.Chain(okHandler,
		httpx.AuthnMiddleware(auth, nil),
		httpx.RequireAnyRole(nil, "admin", "super_admin"),
	)

	serve := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := serve("member")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "admin super_admin")

	require.Equal(t, http.StatusOK, serve("admin").Code)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}

	decode := func(body string) (payload, error) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		err := httpx.DecodeJSON(httptest.NewRecorder(), req, &p)
		return p, err
	}

	p, err := decode(`{"email":"a@x.com"}`)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", p.Email)

	_, err = decode(`{"email":"a@x.com","role":"admin"}`)
	require.Error(t, err, "unknown fields are rejected")

	_, err = decode(`{"email":"a@x.com"}{}`)
	require.Error(t, err)

	_, err = decode(`not json`)
	require.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteJSON(rec, http.StatusCreated, map[string]string{"ok": "yes"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
}
