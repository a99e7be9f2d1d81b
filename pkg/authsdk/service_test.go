package authsdk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "a@x.com"
	testPassword = "longpassword1"
)

func newTestService(t *testing.T, fb *fakeBackend, opts ...authsdk.Option) (*authsdk.Service, *authsdk.MemorySessionStore) {
	t.Helper()

	store := authsdk.NewMemorySessionStore()
	store.Clock = fixedClock(testNow)

	base := []authsdk.Option{
		authsdk.WithClock(fixedClock(testNow)),
		authsdk.WithGatewayTimeout(time.Second),
		authsdk.WithGatewayRetries(2, time.Millisecond),
	}
	svc, err := authsdk.NewService(fb, store, append(base, opts...)...)
	require.NoError(t, err)
	return svc, store
}

func loginAs(user authsdk.User, token string) func(authsdk.LoginRequest) (authsdk.LoginResponse, error) {
	return func(authsdk.LoginRequest) (authsdk.LoginResponse, error) {
		return authsdk.LoginResponse{
			Success:      true,
			User:         user,
			SessionToken: token,
			IssuedAt:     testNow,
			ExpiresAt:    testNow.Add(24 * time.Hour),
		}, nil
	}
}

func validAs(user authsdk.User) func(authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error) {
	return func(authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error) {
		return authsdk.ValidateSessionResponse{Valid: true, User: &user}, nil
	}
}

// signIn logs the service in as a user with the given role.
func signIn(t *testing.T, svc *authsdk.Service, fb *fakeBackend, role authsdk.Role) authsdk.User {
	t.Helper()
	user := testUser(role)
	fb.login = loginAs(user, "tok_"+string(role))
	res := svc.Login(context.Background(), testEmail, testPassword)
	require.True(t, res.Success, res.Message)
	return user
}

func TestNewService(t *testing.T) {
	_, err := authsdk.NewService(nil, authsdk.NewMemorySessionStore())
	require.Error(t, err)

	_, err = authsdk.NewService(newFakeBackend(), nil)
	require.Error(t, err)

	require.Panics(t, func() { authsdk.MustNewService(nil, nil) })
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("wrong password stores nothing", func(t *testing.T) {
		fb := newFakeBackend()
		fb.login = func(authsdk.LoginRequest) (authsdk.LoginResponse, error) {
			return authsdk.LoginResponse{}, authsdk.ErrInvalidCredentials
		}
		svc, store := newTestService(t, fb)

		res := svc.Login(context.Background(), testEmail, "wrong")
		require.False(t, res.Success)
		require.Equal(t, authsdk.KindInvalidCredentials, res.Kind)
		require.NotEmpty(t, res.Message)

		cached, err := store.Load(context.Background())
		require.NoError(t, err)
		require.Nil(t, cached)
		require.False(t, svc.IsAuthenticated())
		require.Equal(t, 1, fb.Calls("login"))
	})

	t.Run("success caches a session with the backend's role", func(t *testing.T) {
		fb := newFakeBackend()
		svc, store := newTestService(t, fb, authsdk.WithUserAgent("clubctl/test"))

		var gotUA string
		admin := testUser(authsdk.RoleAdmin)
		fb.login = func(req authsdk.LoginRequest) (authsdk.LoginResponse, error) {
			gotUA = req.UserAgent
			return loginAs(admin, "tok_admin")(req)
		}

		res := svc.Login(context.Background(), testEmail, testPassword)
		require.True(t, res.Success)
		require.Equal(t, "tok_admin", res.Payload.Token)
		require.True(t, res.Payload.ExpiresAt.After(testNow))
		require.Equal(t, authsdk.RoleAdmin, res.Payload.User.Role)
		require.Equal(t, "clubctl/test", gotUA)

		cached, err := store.Load(context.Background())
		require.NoError(t, err)
		require.Equal(t, "tok_admin", cached.Token)

		require.True(t, svc.IsAuthenticated())
		require.True(t, svc.IsAdmin())
		require.False(t, svc.IsSuperAdmin())
		require.Equal(t, authsdk.LifecycleState{State: authsdk.StateAuthenticated, Role: authsdk.RoleAdmin}, svc.State())
	})

	t.Run("failed login leaves an existing session alone", func(t *testing.T) {
		fb := newFakeBackend()
		svc, store := newTestService(t, fb)
		signIn(t, svc, fb, authsdk.RoleMember)

		fb.login = func(authsdk.LoginRequest) (authsdk.LoginResponse, error) {
			return authsdk.LoginResponse{}, authsdk.ErrInvalidCredentials
		}
		res := svc.Login(context.Background(), "someone-else@x.com", "nope")
		require.Equal(t, authsdk.KindInvalidCredentials, res.Kind)

		cached, err := store.Load(context.Background())
		require.NoError(t, err)
		require.Equal(t, "tok_member", cached.Token)
		require.True(t, svc.IsAuthenticated())
	})

	t.Run("is never retried", func(t *testing.T) {
		fb := newFakeBackend() // unscripted login fails with BackendUnavailable
		svc, _ := newTestService(t, fb, authsdk.WithGatewayRetries(5, time.Millisecond))

		res := svc.Login(context.Background(), testEmail, testPassword)
		require.Equal(t, authsdk.KindBackendUnavailable, res.Kind)
		require.Equal(t, 1, fb.Calls("login"))
	})

	t.Run("rejects an already expired session from the backend", func(t *testing.T) {
		fb := newFakeBackend()
		fb.login = func(authsdk.LoginRequest) (authsdk.LoginResponse, error) {
			return authsdk.LoginResponse{
				User:         testUser(authsdk.RoleMember),
				SessionToken: "stale",
				ExpiresAt:    testNow.Add(-time.Second),
			}, nil
		}
		svc, store := newTestService(t, fb)

		res := svc.Login(context.Background(), testEmail, testPassword)
		require.Equal(t, authsdk.KindValidationFailure, res.Kind)
		cached, _ := store.Load(context.Background())
		require.Nil(t, cached)
	})

	t.Run("validates input before calling out", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)

		require.Equal(t, authsdk.KindValidationFailure, svc.Login(context.Background(), "", testPassword).Kind)
		require.Equal(t, authsdk.KindValidationFailure, svc.Login(context.Background(), testEmail, "").Kind)
		require.Zero(t, fb.TotalCalls())
	})

	t.Run("malformed backend payloads are validation failures", func(t *testing.T) {
		owner := testUser(authsdk.RoleMember)
		owner.Role = "owner"
		anonymous := testUser(authsdk.RoleMember)
		anonymous.ID = ""

		payloads := map[string]authsdk.LoginResponse{
			"empty token": {
				Success:   true,
				User:      testUser(authsdk.RoleMember),
				ExpiresAt: testNow.Add(time.Hour),
			},
			"unknown role": {
				Success:      true,
				User:         owner,
				SessionToken: "tok_owner",
				ExpiresAt:    testNow.Add(time.Hour),
			},
			"user without id": {
				Success:      true,
				User:         anonymous,
				SessionToken: "tok_anon",
				ExpiresAt:    testNow.Add(time.Hour),
			},
		}
		for name, payload := range payloads {
			t.Run(name, func(t *testing.T) {
				fb := newFakeBackend()
				svc, store := newTestService(t, fb)
				signIn(t, svc, fb, authsdk.RoleMember)

				fb.login = func(authsdk.LoginRequest) (authsdk.LoginResponse, error) { return payload, nil }
				res := svc.Login(context.Background(), testEmail, testPassword)
				require.False(t, res.Success)
				require.Equal(t, authsdk.KindValidationFailure, res.Kind)

				cached, err := store.Load(context.Background())
				require.NoError(t, err)
				require.Equal(t, "tok_member", cached.Token, "previous session survives")
				require.Equal(t, "tok_member", svc.CurrentSession().Token)
			})
		}
	})
}

func TestRegisterAndVerify(t *testing.T) {
	t.Parallel()

	t.Run("register then verify", func(t *testing.T) {
		fb := newFakeBackend()
		var mu sync.Mutex
		consumed := map[string]bool{}

		fb.register = func(req authsdk.RegisterRequest) (authsdk.RegisterResponse, error) {
			require.Equal(t, "new@x.com", req.Email)
			return authsdk.RegisterResponse{Success: true, UserID: "u-new", VerificationToken: "vt-1"}, nil
		}
		fb.verifyEmail = func(req authsdk.VerifyEmailRequest) error {
			mu.Lock()
			defer mu.Unlock()
			if req.Token != "vt-1" || consumed[req.Token] {
				return authsdk.ErrTokenAlreadyUsed
			}
			consumed[req.Token] = true
			return nil
		}
		svc, store := newTestService(t, fb)

		reg := svc.Register(context.Background(), authsdk.RegisterRequest{Email: " new@x.com ", Password: testPassword})
		require.True(t, reg.Success, reg.Message)
		require.Equal(t, "u-new", reg.Payload.UserID)
		require.Equal(t, "vt-1", reg.Payload.VerificationToken)
		require.Equal(t, authsdk.StatePendingVerification, svc.State().State)

		cached, _ := store.Load(context.Background())
		require.Nil(t, cached, "registration must not create a session")

		ver := svc.VerifyEmail(context.Background(), reg.Payload.VerificationToken)
		require.True(t, ver.Success)
		require.Equal(t, authsdk.StateAnonymous, svc.State().State)

		again := svc.VerifyEmail(context.Background(), reg.Payload.VerificationToken)
		require.Equal(t, authsdk.KindTokenAlreadyUsed, again.Kind)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		fb := newFakeBackend()
		fb.register = func(authsdk.RegisterRequest) (authsdk.RegisterResponse, error) {
			return authsdk.RegisterResponse{}, authsdk.ErrDuplicateRegistration
		}
		svc, store := newTestService(t, fb)

		res := svc.Register(context.Background(), authsdk.RegisterRequest{Email: testEmail, Password: testPassword})
		require.Equal(t, authsdk.KindDuplicateRegistration, res.Kind)
		require.Equal(t, 1, fb.Calls("register"))
		require.Equal(t, authsdk.StateAnonymous, svc.State().State)

		cached, _ := store.Load(context.Background())
		require.Nil(t, cached)
	})

	t.Run("local validation", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)

		tests := []struct {
			name string
			req  authsdk.RegisterRequest
		}{
			{"missing email", authsdk.RegisterRequest{Password: testPassword}},
			{"malformed email", authsdk.RegisterRequest{Email: "not-an-email", Password: testPassword}},
			{"display name email", authsdk.RegisterRequest{Email: "Pat <pat@x.com>", Password: testPassword}},
			{"missing password", authsdk.RegisterRequest{Email: testEmail}},
			{"short password", authsdk.RegisterRequest{Email: testEmail, Password: "short"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res := svc.Register(context.Background(), tt.req)
				require.Equal(t, authsdk.KindValidationFailure, res.Kind)
				require.NotEmpty(t, res.Message)
			})
		}
		require.Zero(t, fb.TotalCalls())
	})

	t.Run("backend failures are not retried", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb, authsdk.WithGatewayRetries(4, time.Millisecond))

		res := svc.Register(context.Background(), authsdk.RegisterRequest{Email: testEmail, Password: testPassword})
		require.Equal(t, authsdk.KindBackendUnavailable, res.Kind)
		require.Equal(t, 1, fb.Calls("register"))
	})

	t.Run("blank verification token", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)
		require.Equal(t, authsdk.KindValidationFailure, svc.VerifyEmail(context.Background(), "  ").Kind)
		require.Zero(t, fb.TotalCalls())
	})
}

func TestValidateSession(t *testing.T) {
	t.Parallel()

	t.Run("expired cached session at startup", func(t *testing.T) {
		fb := newFakeBackend()
		svc, store := newTestService(t, fb)
		require.NoError(t, store.Save(context.Background(), testSession(-time.Hour)))

		res := svc.Restore(context.Background())
		require.Equal(t, authsdk.KindSessionInvalid, res.Kind)
		require.False(t, svc.IsAuthenticated())
		require.Zero(t, fb.Calls("validateSession"))

		cached, err := store.Load(context.Background())
		require.NoError(t, err)
		require.Nil(t, cached)
	})

	t.Run("no cached session", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)

		res := svc.ValidateSession(context.Background())
		require.Equal(t, authsdk.KindSessionInvalid, res.Kind)
		require.Zero(t, fb.TotalCalls())
	})

	t.Run("restores a session cached by another process", func(t *testing.T) {
		fb := newFakeBackend()
		svc, store := newTestService(t, fb)

		cachedSession := testSession(time.Hour)
		require.NoError(t, store.Save(context.Background(), cachedSession))

		promoted := cachedSession.User
		promoted.Role = authsdk.RoleAdmin
		fb.validateSession = func(req authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error) {
			require.Equal(t, cachedSession.Token, req.SessionToken)
			return authsdk.ValidateSessionResponse{Valid: true, User: &promoted}, nil
		}

		res := svc.Restore(context.Background())
		require.True(t, res.Success)
		require.Equal(t, authsdk.RoleAdmin, res.Payload.Role)
		require.True(t, svc.IsAdmin())
		require.Equal(t, cachedSession.Token, svc.CurrentSession().Token, "token is kept")

		stored, err := store.Load(context.Background())
		require.NoError(t, err)
		require.Equal(t, authsdk.RoleAdmin, stored.User.Role)
		require.Equal(t, authsdk.LifecycleState{State: authsdk.StateAuthenticated, Role: authsdk.RoleAdmin}, svc.State())
	})

	t.Run("remote rejection clears the session", func(t *testing.T) {
		rejections := map[string]func(authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error){
			"invalid response": func(authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error) {
				return authsdk.ValidateSessionResponse{Valid: false}, nil
			},
			"session expired error": func(authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error) {
				return authsdk.ValidateSessionResponse{}, authsdk.ErrSessionExpired
			},
			"session invalid error": func(authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error) {
				return authsdk.ValidateSessionResponse{}, authsdk.ErrSessionInvalid
			},
		}
		for name, reject := range rejections {
			t.Run(name, func(t *testing.T) {
				fb := newFakeBackend()
				svc, store := newTestService(t, fb)
				signIn(t, svc, fb, authsdk.RoleMember)
				fb.validateSession = reject

				res := svc.ValidateSession(context.Background())
				require.Equal(t, authsdk.KindSessionInvalid, res.Kind)
				require.False(t, svc.IsAuthenticated())
				require.Nil(t, svc.CurrentUser())
				require.Equal(t, authsdk.StateAnonymous, svc.State().State)

				cached, _ := store.Load(context.Background())
				require.Nil(t, cached)
			})
		}
	})

	t.Run("malformed backend payloads keep the session", func(t *testing.T) {
		owner := testUser(authsdk.RoleMember)
		owner.Role = "owner"

		payloads := map[string]authsdk.ValidateSessionResponse{
			"valid without user": {Valid: true},
			"unknown role":       {Valid: true, User: &owner},
		}
		for name, payload := range payloads {
			t.Run(name, func(t *testing.T) {
				fb := newFakeBackend()
				svc, store := newTestService(t, fb)
				signIn(t, svc, fb, authsdk.RoleMember)
				fb.validateSession = func(authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error) {
					return payload, nil
				}

				var res authsdk.Result[authsdk.User]
				require.NotPanics(t, func() { res = svc.ValidateSession(context.Background()) })
				require.False(t, res.Success)
				require.Equal(t, authsdk.KindValidationFailure, res.Kind)
				require.Equal(t, 1, fb.Calls("validateSession"))

				require.True(t, svc.IsAuthenticated())
				require.Equal(t, authsdk.RoleMember, svc.CurrentUser().Role)
				cached, _ := store.Load(context.Background())
				require.Equal(t, authsdk.RoleMember, cached.User.Role)
			})
		}
	})

	t.Run("logout during validation is not undone", func(t *testing.T) {
		fb := newFakeBackend()
		svc, store := newTestService(t, fb)
		signIn(t, svc, fb, authsdk.RoleAdmin)
		fb.logout = func(authsdk.LogoutRequest) error { return nil }

		started, release := blockValidation(fb, authsdk.RoleAdmin)
		done := make(chan authsdk.Result[authsdk.User], 1)
		go func() { done <- svc.ValidateSession(context.Background()) }()

		<-started
		require.True(t, svc.Logout(context.Background()).Success)
		close(release)

		res := <-done
		require.False(t, res.Success)
		require.Equal(t, authsdk.KindSessionInvalid, res.Kind)
		require.False(t, svc.IsAuthenticated())
		require.Nil(t, svc.CurrentUser())
		require.Equal(t, authsdk.StateAnonymous, svc.State().State)

		cached, err := store.Load(context.Background())
		require.NoError(t, err)
		require.Nil(t, cached)
	})

	t.Run("privileged call during logout is not undone", func(t *testing.T) {
		fb := newFakeBackend()
		svc, store := newTestService(t, fb)
		signIn(t, svc, fb, authsdk.RoleAdmin)
		fb.logout = func(authsdk.LogoutRequest) error { return nil }
		fb.listUsers = func(authsdk.ListUsersRequest) (authsdk.ListUsersResponse, error) {
			return authsdk.ListUsersResponse{}, nil
		}

		started, release := blockValidation(fb, authsdk.RoleAdmin)
		done := make(chan authsdk.Result[[]authsdk.User], 1)
		go func() { done <- svc.GetAllUsers(context.Background()) }()

		<-started
		require.True(t, svc.Logout(context.Background()).Success)
		close(release)

		res := <-done
		require.Equal(t, authsdk.KindSessionInvalid, res.Kind)
		require.Zero(t, fb.Calls("listUsers"))
		require.False(t, svc.IsAuthenticated())

		cached, _ := store.Load(context.Background())
		require.Nil(t, cached)
	})

	t.Run("stale validation does not touch a newer login", func(t *testing.T) {
		verdicts := map[string]func(authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error){
			"accepted": validAs(testUser(authsdk.RoleSuperAdmin)),
			"rejected": func(authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error) {
				return authsdk.ValidateSessionResponse{}, authsdk.ErrSessionInvalid
			},
		}
		for name, verdict := range verdicts {
			t.Run(name, func(t *testing.T) {
				fb := newFakeBackend()
				svc, store := newTestService(t, fb)
				signIn(t, svc, fb, authsdk.RoleMember)
				fb.logout = func(authsdk.LogoutRequest) error { return nil }

				started := make(chan struct{})
				release := make(chan struct{})
				fb.validateSession = func(req authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error) {
					close(started)
					<-release
					return verdict(req)
				}
				done := make(chan authsdk.Result[authsdk.User], 1)
				go func() { done <- svc.ValidateSession(context.Background()) }()

				<-started
				require.True(t, svc.Logout(context.Background()).Success)
				fb.login = loginAs(testUser(authsdk.RoleMember), "tok_second")
				require.True(t, svc.Login(context.Background(), testEmail, testPassword).Success)
				close(release)

				res := <-done
				require.Equal(t, authsdk.KindSessionInvalid, res.Kind)
				require.True(t, svc.IsAuthenticated())
				require.Equal(t, "tok_second", svc.CurrentSession().Token)
				require.Equal(t, authsdk.RoleMember, svc.CurrentUser().Role)

				cached, err := store.Load(context.Background())
				require.NoError(t, err)
				require.Equal(t, "tok_second", cached.Token)
				require.Equal(t, authsdk.RoleMember, cached.User.Role)
			})
		}
	})

	t.Run("transport failure keeps the session and retries", func(t *testing.T) {
		fb := newFakeBackend()
		svc, store := newTestService(t, fb)
		signIn(t, svc, fb, authsdk.RoleMember)
		// validateSession unscripted: BackendUnavailable

		res := svc.ValidateSession(context.Background())
		require.Equal(t, authsdk.KindBackendUnavailable, res.Kind)
		require.Equal(t, 2, fb.Calls("validateSession"))
		require.True(t, svc.IsAuthenticated())

		cached, _ := store.Load(context.Background())
		require.NotNil(t, cached)
	})

	t.Run("unresponsive backend times out", func(t *testing.T) {
		fb := newFakeBackend()
		var attempts []authsdk.Attempt
		var mu sync.Mutex
		svc, _ := newTestService(t, fb,
			authsdk.WithGatewayTimeout(20*time.Millisecond),
			authsdk.WithObserver(func(a authsdk.Attempt) {
				mu.Lock()
				defer mu.Unlock()
				attempts = append(attempts, a)
			}),
		)
		signIn(t, svc, fb, authsdk.RoleMember)

		block := make(chan struct{})
		t.Cleanup(func() { close(block) })
		fb.validateSession = func(authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error) {
			<-block
			return authsdk.ValidateSessionResponse{}, nil
		}

		res := svc.ValidateSession(context.Background())
		require.Equal(t, authsdk.KindNetworkTimeout, res.Kind)
		require.Equal(t, 2, fb.Calls("validateSession"))

		mu.Lock()
		defer mu.Unlock()
		var validateAttempts int
		for _, a := range attempts {
			if a.Op == authsdk.OpValidateSession {
				validateAttempts++
				require.Equal(t, authsdk.KindNetworkTimeout, authsdk.KindOf(a.Err))
			}
		}
		require.Equal(t, 2, validateAttempts)
	})
}

func TestConcurrentSessionChanges(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	svc, store := newTestService(t, fb)
	fb.login = loginAs(testUser(authsdk.RoleAdmin), "tok_admin")
	fb.logout = func(authsdk.LogoutRequest) error { return nil }
	fb.validateSession = validAs(testUser(authsdk.RoleAdmin))

	var wg sync.WaitGroup
	for i := range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			switch i % 3 {
			case 0:
				svc.Login(ctx, testEmail, testPassword)
			case 1:
				svc.ValidateSession(ctx)
			default:
				svc.Logout(ctx)
			}
			_ = svc.IsAdmin()
			_ = svc.IsSuperAdmin()
		}()
	}
	wg.Wait()

	cached, err := store.Load(context.Background())
	require.NoError(t, err)
	if current := svc.CurrentSession(); current == nil {
		require.Nil(t, cached, "store must not outlive memory")
	} else {
		require.NotNil(t, cached)
		require.Equal(t, current.Token, cached.Token)
	}

	require.True(t, svc.Logout(context.Background()).Success)
	require.False(t, svc.IsAuthenticated())
	cached, err = store.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, cached)
}

func TestAdminAccessors(t *testing.T) {
	t.Parallel()

	var elapsed atomic.Int64
	clock := func() time.Time { return testNow.Add(time.Duration(elapsed.Load())) }

	fb := newFakeBackend()
	svc, _ := newTestService(t, fb, authsdk.WithClock(clock))
	require.False(t, svc.IsAdmin())
	require.False(t, svc.IsSuperAdmin())

	signIn(t, svc, fb, authsdk.RoleSuperAdmin)
	require.True(t, svc.IsAdmin())
	require.True(t, svc.IsSuperAdmin())

	elapsed.Store(int64(25 * time.Hour))
	require.False(t, svc.IsAdmin(), "expired sessions grant nothing")
	require.False(t, svc.IsSuperAdmin())
}

// blockValidation scripts validateSession to report start and then wait for
// release before accepting the session as role.
func blockValidation(fb *fakeBackend, role authsdk.Role) (started, release chan struct{}) {
	started = make(chan struct{})
	release = make(chan struct{})
	valid := validAs(testUser(role))
	var once sync.Once
	fb.validateSession = func(req authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error) {
		once.Do(func() { close(started) })
		<-release
		return valid(req)
	}
	return started, release
}

func TestLogout(t *testing.T) {
	t.Parallel()

	outcomes := map[string]func(chan struct{}) func(authsdk.LogoutRequest) error{
		"backend succeeds": func(chan struct{}) func(authsdk.LogoutRequest) error {
			return func(authsdk.LogoutRequest) error { return nil }
		},
		"backend fails": func(chan struct{}) func(authsdk.LogoutRequest) error {
			return func(authsdk.LogoutRequest) error { return authsdk.ErrBackendUnavailable }
		},
		"backend times out": func(block chan struct{}) func(authsdk.LogoutRequest) error {
			return func(authsdk.LogoutRequest) error { <-block; return nil }
		},
	}

	for name, outcome := range outcomes {
		t.Run(name, func(t *testing.T) {
			fb := newFakeBackend()
			svc, store := newTestService(t, fb, authsdk.WithGatewayTimeout(20*time.Millisecond))
			signIn(t, svc, fb, authsdk.RoleAdmin)

			block := make(chan struct{})
			t.Cleanup(func() { close(block) })

			var gotToken string
			logout := outcome(block)
			fb.logout = func(req authsdk.LogoutRequest) error {
				gotToken = req.SessionToken
				return logout(req)
			}

			res := svc.Logout(context.Background())
			require.True(t, res.Success)
			require.Equal(t, 1, fb.Calls("logout"))

			cached, err := store.Load(context.Background())
			require.NoError(t, err)
			require.Nil(t, cached)
			require.False(t, svc.IsAuthenticated())
			require.False(t, svc.IsAdmin())
			require.Equal(t, authsdk.StateAnonymous, svc.State().State)

			if name != "backend times out" {
				require.Equal(t, "tok_admin", gotToken)
			}
		})
	}

	t.Run("without a session", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)

		res := svc.Logout(context.Background())
		require.True(t, res.Success)
		require.Zero(t, fb.TotalCalls())
	})
}

func TestPrivilegedOperations(t *testing.T) {
	t.Parallel()

	t.Run("member is rejected before any network call", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)
		signIn(t, svc, fb, authsdk.RoleMember)

		res := svc.SetUserRole(context.Background(), "target", authsdk.RoleAdmin)
		require.Equal(t, authsdk.KindInsufficientPrivilege, res.Kind)

		list := svc.GetAllUsers(context.Background())
		require.Equal(t, authsdk.KindInsufficientPrivilege, list.Kind)

		status := svc.SetUserStatus(context.Background(), "target", authsdk.StatusInactive)
		require.Equal(t, authsdk.KindInsufficientPrivilege, status.Kind)

		require.Zero(t, fb.Calls("validateSession"))
		require.Zero(t, fb.Calls("setUserRole"))
		require.Zero(t, fb.Calls("listUsers"))
		require.Zero(t, fb.Calls("setUserStatus"))
	})

	t.Run("signed out callers are rejected", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)

		res := svc.SetUserRole(context.Background(), "target", authsdk.RoleAdmin)
		require.Equal(t, authsdk.KindInsufficientPrivilege, res.Kind)
		require.Zero(t, fb.TotalCalls())
	})

	t.Run("admin sets a role after revalidating", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)
		admin := signIn(t, svc, fb, authsdk.RoleAdmin)
		fb.validateSession = validAs(admin)

		var got authsdk.SetUserRoleRequest
		fb.setUserRole = func(req authsdk.SetUserRoleRequest) error {
			got = req
			return nil
		}

		res := svc.SetUserRole(context.Background(), "target", authsdk.RoleAdmin)
		require.True(t, res.Success, res.Message)
		require.Equal(t, 1, fb.Calls("validateSession"))
		require.Equal(t, 1, fb.Calls("setUserRole"))
		require.Equal(t, admin.ID, got.CallerID)
		require.Equal(t, "target", got.TargetUserID)
		require.Equal(t, authsdk.RoleAdmin, got.NewRole)
		require.Equal(t, "tok_admin", got.SessionToken)
	})

	t.Run("backend denial wins over the local check", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)
		admin := signIn(t, svc, fb, authsdk.RoleAdmin)
		fb.validateSession = validAs(admin)
		fb.setUserRole = func(authsdk.SetUserRoleRequest) error {
			return authsdk.NewError(authsdk.KindInsufficientPrivilege, "Admins cannot grant super admin.")
		}

		res := svc.SetUserRole(context.Background(), "target", authsdk.RoleSuperAdmin)
		require.Equal(t, authsdk.KindInsufficientPrivilege, res.Kind)
		require.Equal(t, "Admins cannot grant super admin.", res.Message)
		require.Equal(t, 1, fb.Calls("setUserRole"))
	})

	t.Run("stale local role is caught by revalidation", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)
		admin := signIn(t, svc, fb, authsdk.RoleAdmin)

		demoted := admin
		demoted.Role = authsdk.RoleMember
		fb.validateSession = validAs(demoted)

		res := svc.SetUserRole(context.Background(), "target", authsdk.RoleAdmin)
		require.Equal(t, authsdk.KindInsufficientPrivilege, res.Kind)
		require.Zero(t, fb.Calls("setUserRole"))
		require.Equal(t, authsdk.RoleMember, svc.CurrentUser().Role)
		require.False(t, svc.IsAdmin())
	})

	t.Run("revoked session is cleared", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)
		signIn(t, svc, fb, authsdk.RoleSuperAdmin)
		fb.validateSession = func(authsdk.ValidateSessionRequest) (authsdk.ValidateSessionResponse, error) {
			return authsdk.ValidateSessionResponse{}, authsdk.ErrSessionInvalid
		}

		res := svc.GetAllUsers(context.Background())
		require.Equal(t, authsdk.KindSessionInvalid, res.Kind)
		require.False(t, svc.IsAuthenticated())
	})

	t.Run("lists users", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)
		admin := signIn(t, svc, fb, authsdk.RoleSuperAdmin)
		fb.validateSession = validAs(admin)

		member := testUser(authsdk.RoleMember)
		member.ID = "someone"
		fb.listUsers = func(req authsdk.ListUsersRequest) (authsdk.ListUsersResponse, error) {
			require.Equal(t, "tok_super_admin", req.SessionToken)
			return authsdk.ListUsersResponse{Users: []authsdk.User{admin, member}}, nil
		}

		res := svc.GetAllUsers(context.Background())
		require.True(t, res.Success)
		require.Len(t, res.Payload, 2)
	})

	t.Run("sets a status", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)
		admin := signIn(t, svc, fb, authsdk.RoleAdmin)
		fb.validateSession = validAs(admin)
		fb.setUserStatus = func(req authsdk.SetUserStatusRequest) error {
			require.Equal(t, authsdk.StatusInactive, req.NewStatus)
			return nil
		}

		res := svc.SetUserStatus(context.Background(), "target", authsdk.StatusInactive)
		require.True(t, res.Success)
	})

	t.Run("validates arguments first", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)
		signIn(t, svc, fb, authsdk.RoleAdmin)

		require.Equal(t, authsdk.KindValidationFailure, svc.SetUserRole(context.Background(), "", authsdk.RoleAdmin).Kind)
		require.Equal(t, authsdk.KindValidationFailure, svc.SetUserRole(context.Background(), "target", "root").Kind)
		require.Equal(t, authsdk.KindValidationFailure, svc.SetUserStatus(context.Background(), "target", "gone").Kind)
		require.Zero(t, fb.Calls("validateSession"))
	})
}

func TestProfileAndPasswords(t *testing.T) {
	t.Parallel()

	t.Run("update profile merges the canonical user", func(t *testing.T) {
		fb := newFakeBackend()
		svc, store := newTestService(t, fb)
		user := signIn(t, svc, fb, authsdk.RoleMember)

		fb.updateProfile = func(req authsdk.UpdateProfileRequest) (authsdk.User, error) {
			require.Equal(t, "tok_member", req.SessionToken)
			require.Equal(t, "Pat Q. Member", *req.Updates.FullName)
			updated := user
			updated.FullName = *req.Updates.FullName
			return updated, nil
		}

		name := "  Pat Q. Member "
		res := svc.UpdateProfile(context.Background(), authsdk.ProfileUpdate{FullName: &name})
		require.True(t, res.Success)
		require.Equal(t, "Pat Q. Member", svc.CurrentUser().FullName)

		cached, err := store.Load(context.Background())
		require.NoError(t, err)
		require.Equal(t, "Pat Q. Member", cached.User.FullName)
		require.Equal(t, "tok_member", cached.Token)
	})

	t.Run("update profile validation", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)
		signIn(t, svc, fb, authsdk.RoleMember)

		require.Equal(t, authsdk.KindValidationFailure, svc.UpdateProfile(context.Background(), authsdk.ProfileUpdate{}).Kind)
		bad := "nope"
		require.Equal(t, authsdk.KindValidationFailure, svc.UpdateProfile(context.Background(), authsdk.ProfileUpdate{Email: &bad}).Kind)
		require.Zero(t, fb.Calls("updateProfile"))
	})

	t.Run("update profile needs a session", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)
		phone := "0400 000 000"
		require.Equal(t, authsdk.KindSessionInvalid, svc.UpdateProfile(context.Background(), authsdk.ProfileUpdate{Phone: &phone}).Kind)
	})

	t.Run("change password", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)
		user := signIn(t, svc, fb, authsdk.RoleMember)

		var got authsdk.ChangePasswordRequest
		fb.changePassword = func(req authsdk.ChangePasswordRequest) error {
			got = req
			return nil
		}

		require.Equal(t, authsdk.KindValidationFailure, svc.ChangePassword(context.Background(), testPassword, testPassword).Kind)
		require.Equal(t, authsdk.KindValidationFailure, svc.ChangePassword(context.Background(), testPassword, "short").Kind)
		require.Equal(t, authsdk.KindValidationFailure, svc.ChangePassword(context.Background(), "", "anotherpassword").Kind)
		require.Zero(t, fb.Calls("changePassword"))

		res := svc.ChangePassword(context.Background(), testPassword, "anotherpassword")
		require.True(t, res.Success)
		require.Equal(t, user.ID, got.UserID)
		require.Equal(t, "anotherpassword", got.NewPassword)
	})

	t.Run("change password with a revoked session heals", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb)
		signIn(t, svc, fb, authsdk.RoleMember)
		fb.changePassword = func(authsdk.ChangePasswordRequest) error { return authsdk.ErrSessionExpired }

		res := svc.ChangePassword(context.Background(), testPassword, "anotherpassword")
		require.Equal(t, authsdk.KindSessionExpired, res.Kind)
		require.False(t, svc.IsAuthenticated())
		require.Equal(t, 1, fb.Calls("changePassword"))
	})

	t.Run("password reset flow", func(t *testing.T) {
		fb := newFakeBackend()
		fb.requestReset = func(req authsdk.PasswordResetRequest) (authsdk.PasswordResetResponse, error) {
			return authsdk.PasswordResetResponse{Success: true, ResetToken: "rt-1"}, nil
		}
		fb.resetPassword = func(req authsdk.ResetPasswordRequest) error {
			if req.Token != "rt-1" {
				return authsdk.ErrTokenAlreadyUsed
			}
			return nil
		}
		svc, _ := newTestService(t, fb)

		req := svc.RequestPasswordReset(context.Background(), testEmail)
		require.True(t, req.Success)
		require.Equal(t, "rt-1", req.Payload.ResetToken)

		require.Equal(t, authsdk.KindValidationFailure, svc.ResetPassword(context.Background(), "rt-1", "short").Kind)
		require.Equal(t, authsdk.KindValidationFailure, svc.ResetPassword(context.Background(), "", "anotherpassword").Kind)
		require.True(t, svc.ResetPassword(context.Background(), "rt-1", "anotherpassword").Success)
		require.Equal(t, authsdk.KindTokenAlreadyUsed, svc.ResetPassword(context.Background(), "rt-2", "anotherpassword").Kind)

		require.Equal(t, authsdk.KindValidationFailure, svc.RequestPasswordReset(context.Background(), "bad").Kind)
	})

	t.Run("custom minimum password length", func(t *testing.T) {
		fb := newFakeBackend()
		svc, _ := newTestService(t, fb, authsdk.WithMinPasswordLength(16))
		res := svc.Register(context.Background(), authsdk.RegisterRequest{Email: testEmail, Password: testPassword})
		require.Equal(t, authsdk.KindValidationFailure, res.Kind)
		require.Contains(t, res.Message, "16")
	})
}

func TestGuard(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	fb := newFakeBackend()
	svc, _ := newTestService(t, fb)
	adminOnly := authsdk.Guard(svc, authsdk.RoleAdmin)(ok)
	membersOnly := authsdk.Guard(svc, authsdk.RoleMember)(ok)

	serve := func(h http.Handler) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, serve(adminOnly))

	signIn(t, svc, fb, authsdk.RoleMember)
	require.Equal(t, http.StatusForbidden, serve(adminOnly))
	require.Equal(t, http.StatusNoContent, serve(membersOnly))

	signIn(t, svc, fb, authsdk.RoleAdmin)
	require.Equal(t, http.StatusNoContent, serve(adminOnly))
}
