package authsdk

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/clubhouse/pkg/slogx"
)

// DefaultMinPasswordLength is the shortest password accepted locally.
const DefaultMinPasswordLength = 8

// Registration is the payload of a successful Register.
type Registration struct {
	UserID string `json:"userId"`

	// VerificationToken is only set when the backend hands it to the caller.
	VerificationToken string `json:"verificationToken,omitempty"`
}

// Service is the client-side identity orchestrator. It owns the single
// session of the process: create one at startup and pass it to every
// consumer.
//
// Every operation returns a Result; expected failures never surface as
// errors or panics. Synchronous accessors (CurrentUser, IsAdmin, ...) read a
// cached copy of the user that may lag the backend; privileged operations
// re-validate the session before they run.
type Service struct {
	backend   Backend
	store     SessionStore
	gateway   *Gateway
	lifecycle *Lifecycle

	clock       func() time.Time
	minPassword int
	userAgent   string
	logger      *slog.Logger

	mu      sync.RWMutex
	session *Session

	// storeMu orders session writes so the store always ends up matching
	// memory. Held across a store call, never while holding mu.
	storeMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithGateway replaces the gateway used for backend calls.
func WithGateway(g *Gateway) Option {
	return func(s *Service) { s.gateway = g }
}

// WithGatewayTimeout sets the per-attempt timeout of backend calls.
func WithGatewayTimeout(d time.Duration) Option {
	return func(s *Service) { s.gateway.Timeout = d }
}

// WithGatewayRetries sets the attempt budget and base delay used for
// idempotent backend calls.
func WithGatewayRetries(maxAttempts int, delay time.Duration) Option {
	return func(s *Service) {
		s.gateway.MaxAttempts = maxAttempts
		s.gateway.RetryDelay = delay
	}
}

// WithObserver installs an observer on the gateway.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.gateway.Observer = o }
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithMinPasswordLength sets the local minimum password length.
func WithMinPasswordLength(n int) Option {
	return func(s *Service) { s.minPassword = n }
}

// WithUserAgent sets the user agent reported on login.
func WithUserAgent(ua string) Option {
	return func(s *Service) { s.userAgent = ua }
}

// WithLogger sets the logger used when the call context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService builds a Service over backend and store.
func NewService(backend Backend, store SessionStore, opts ...Option) (*Service, error) {
	if backend == nil {
		return nil, errors.New("authsdk: backend is required")
	}
	if store == nil {
		return nil, errors.New("authsdk: session store is required")
	}

	s := &Service{
		backend:     backend,
		store:       store,
		gateway:     NewGateway(),
		lifecycle:   NewLifecycle(),
		clock:       time.Now,
		minPassword: DefaultMinPasswordLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gateway == nil {
		return nil, errors.New("authsdk: gateway is required")
	}
	return s, nil
}

// MustNewService is NewService that panics on misconfiguration.
func MustNewService(backend Backend, store SessionStore, opts ...Option) *Service {
	s, err := NewService(backend, store, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// ============================================================================
// Account lifecycle
// ============================================================================

// Register creates a pending account. No session is created.
func (s *Service) Register(ctx context.Context, req RegisterRequest) Result[Registration] {
	ctx = s.withLogger(ctx)

	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validateEmail(req.Email); err != nil {
		return FailFrom[Registration](err)
	}
	if err := s.validateNewPassword(req.Password); err != nil {
		return FailFrom[Registration](err)
	}

	s.fire(ctx, EventRegisterStarted, "")
	res := Invoke(ctx, s.gateway, OpRegister, func(ctx context.Context) (RegisterResponse, error) {
		return s.backend.Register(ctx, req)
	})
	if !res.Success {
		s.fire(ctx, EventRegisterFailed, "")
		return Recast[Registration](res)
	}

	s.fire(ctx, EventRegisterSucceeded, "")
	return Ok(Registration{
		UserID:            res.Payload.UserID,
		VerificationToken: res.Payload.VerificationToken,
	})
}

// VerifyEmail consumes a verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) Result[struct{}] {
	ctx = s.withLogger(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return Fail[struct{}](KindValidationFailure, "A verification token is required.")
	}

	res := Invoke(ctx, s.gateway, OpVerifyEmail, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.VerifyEmail(ctx, VerifyEmailRequest{Token: token})
	})
	if res.Success {
		s.fire(ctx, EventEmailVerified, "")
	}
	return res
}

// Login authenticates with email and password and caches the new session.
// A failed login leaves any previously cached session untouched.
func (s *Service) Login(ctx context.Context, email, password string) Result[Session] {
	ctx = s.withLogger(ctx)

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Fail[Session](KindValidationFailure, "Email and password are required.")
	}

	started := s.clock()
	res := Invoke(ctx, s.gateway, OpLogin, func(ctx context.Context) (LoginResponse, error) {
		return s.backend.Login(ctx, LoginRequest{Email: email, Password: password, UserAgent: s.userAgent})
	})
	if !res.Success {
		return Recast[Session](res)
	}

	resp := res.Payload
	if !resp.ExpiresAt.After(started) {
		return Fail[Session](KindValidationFailure, "The identity service returned a session that has already expired.")
	}

	issued := resp.IssuedAt
	if issued.IsZero() {
		issued = started
	}
	sess := Session{
		Token:     resp.SessionToken,
		User:      resp.User,
		IssuedAt:  issued,
		ExpiresAt: resp.ExpiresAt,
	}

	s.setSession(ctx, &sess)
	s.fire(ctx, EventLoggedIn, sess.User.Role)
	slogx.FromContext(ctx).Info("signed in", "user_id", sess.User.ID, "role", sess.User.Role)
	return Ok(sess)
}

// Logout revokes the session on the backend and always clears the local
// session, whatever the backend says.
func (s *Service) Logout(ctx context.Context) Result[struct{}] {
	ctx = s.withLogger(ctx)
	log := slogx.FromContext(ctx)

	sess, _ := s.loadSession(ctx)
	if sess != nil {
		res := Invoke(ctx, s.gateway, OpLogout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.backend.Logout(ctx, LogoutRequest{SessionToken: sess.Token})
		})
		if !res.Success {
			log.Warn("remote logout failed, clearing local session anyway", "error_kind", res.Kind)
		}
	}

	if err := s.dropSession(ctx, EventLoggedOut); err != nil {
		return Fail[struct{}](KindBackendUnavailable, "Signed out, but the saved session could not be removed.")
	}
	return Ok(struct{}{})
}

// ValidateSession checks the cached session against the backend and
// refreshes the cached user. Any rejection clears the local session.
// Transport failures leave the session in place.
func (s *Service) ValidateSession(ctx context.Context) Result[User] {
	ctx = s.withLogger(ctx)

	sess, err := s.loadSession(ctx)
	if err != nil {
		return Fail[User](KindBackendUnavailable, "The saved session could not be read.")
	}
	if sess == nil {
		_ = s.dropSession(ctx, EventExpired)
		return Fail[User](KindSessionInvalid, "")
	}

	res := Invoke(ctx, s.gateway, OpValidateSession, func(ctx context.Context) (ValidateSessionResponse, error) {
		return s.backend.ValidateSession(ctx, ValidateSessionRequest{SessionToken: sess.Token})
	})
	if !res.Success {
		if isSessionKind(res.Kind) {
			s.expireSession(ctx, sess.Token)
			return Fail[User](KindSessionInvalid, "")
		}
		return Recast[User](res)
	}
	if !res.Payload.Valid || res.Payload.User == nil {
		s.expireSession(ctx, sess.Token)
		return Fail[User](KindSessionInvalid, "")
	}

	user := *res.Payload.User
	if !s.replaceUser(ctx, sess.Token, user) {
		slogx.FromContext(ctx).Info("session changed during validation, result discarded")
		return Fail[User](KindSessionInvalid, "")
	}
	s.fire(ctx, EventRefreshed, user.Role)
	return Ok(user)
}

// Restore revalidates a session cached by an earlier process. Call it once
// at startup.
func (s *Service) Restore(ctx context.Context) Result[User] {
	return s.ValidateSession(ctx)
}

// ============================================================================
// Credentials and profile
// ============================================================================

// ChangePassword changes the signed-in user's password.
func (s *Service) ChangePassword(ctx context.Context, current, next string) Result[struct{}] {
	ctx = s.withLogger(ctx)

	if current == "" {
		return Fail[struct{}](KindValidationFailure, "Your current password is required.")
	}
	if err := s.validateNewPassword(next); err != nil {
		return FailFrom[struct{}](err)
	}
	if current == next {
		return Fail[struct{}](KindValidationFailure, "The new password must differ from the current one.")
	}

	sess, fail := s.requireSession(ctx)
	if sess == nil {
		return Recast[struct{}](fail)
	}

	res := Invoke(ctx, s.gateway, OpChangePassword, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.ChangePassword(ctx, ChangePasswordRequest{
			SessionToken:    sess.Token,
			UserID:          sess.User.ID,
			CurrentPassword: current,
			NewPassword:     next,
		})
	})
	return healSession(ctx, s, sess.Token, res)
}

// RequestPasswordReset asks the backend to send a reset token. It succeeds
// whether or not the email is registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) Result[PasswordResetResponse] {
	ctx = s.withLogger(ctx)

	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return FailFrom[PasswordResetResponse](err)
	}

	return Invoke(ctx, s.gateway, OpRequestPasswordReset, func(ctx context.Context) (PasswordResetResponse, error) {
		return s.backend.RequestPasswordReset(ctx, PasswordResetRequest{Email: email})
	})
}

// ResetPassword consumes a reset token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, token, next string) Result[struct{}] {
	ctx = s.withLogger(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return Fail[struct{}](KindValidationFailure, "A reset token is required.")
	}
	if err := s.validateNewPassword(next); err != nil {
		return FailFrom[struct{}](err)
	}

	return Invoke(ctx, s.gateway, OpResetPassword, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: next})
	})
}

// UpdateProfile edits the signed-in user's own profile. Only the fields of
// ProfileUpdate can be sent; role and status are never part of it. The
// canonical user returned by the backend replaces the cached one.
func (s *Service) UpdateProfile(ctx context.Context, updates ProfileUpdate) Result[User] {
	ctx = s.withLogger(ctx)

	updates = normaliseProfile(updates)
	if updates.Empty() {
		return Fail[User](KindValidationFailure, "Nothing to update.")
	}
	if updates.Email != nil {
		if err := validateEmail(*updates.Email); err != nil {
			return FailFrom[User](err)
		}
	}

	sess, fail := s.requireSession(ctx)
	if sess == nil {
		return Recast[User](fail)
	}

	res := Invoke(ctx, s.gateway, OpUpdateProfile, func(ctx context.Context) (User, error) {
		return s.backend.UpdateProfile(ctx, UpdateProfileRequest{SessionToken: sess.Token, Updates: updates})
	})
	res = healSession(ctx, s, sess.Token, res)
	if !res.Success {
		return res
	}

	s.replaceUser(ctx, sess.Token, res.Payload)
	return res
}

// ============================================================================
// Privileged operations
// ============================================================================

// GetAllUsers lists every account. Requires an admin.
func (s *Service) GetAllUsers(ctx context.Context) Result[[]User] {
	ctx = s.withLogger(ctx)

	sess, fail := s.authorize(ctx, OpListUsers)
	if sess == nil {
		return Recast[[]User](fail)
	}

	res := Invoke(ctx, s.gateway, OpListUsers, func(ctx context.Context) (ListUsersResponse, error) {
		return s.backend.ListUsers(ctx, ListUsersRequest{SessionToken: sess.Token})
	})
	res = healSession(ctx, s, sess.Token, res)
	if !res.Success {
		return Recast[[]User](res)
	}
	users := res.Payload.Users
	if users == nil {
		users = []User{}
	}
	return Ok(users)
}

// SetUserRole changes another user's role. Requires an admin; the backend
// has the final say.
func (s *Service) SetUserRole(ctx context.Context, targetUserID string, role Role) Result[struct{}] {
	ctx = s.withLogger(ctx)

	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return Fail[struct{}](KindValidationFailure, "A target user is required.")
	}
	if !role.Valid() {
		return Fail[struct{}](KindValidationFailure, "Unknown role.")
	}

	sess, fail := s.authorize(ctx, OpSetUserRole)
	if sess == nil {
		return fail
	}

	res := Invoke(ctx, s.gateway, OpSetUserRole, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.SetUserRole(ctx, SetUserRoleRequest{
			SessionToken: sess.Token,
			CallerID:     sess.User.ID,
			TargetUserID: targetUserID,
			NewRole:      role,
		})
	})
	return healSession(ctx, s, sess.Token, res)
}

// SetUserStatus activates or deactivates another user. Requires an admin;
// the backend has the final say.
func (s *Service) SetUserStatus(ctx context.Context, targetUserID string, status Status) Result[struct{}] {
	ctx = s.withLogger(ctx)

	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return Fail[struct{}](KindValidationFailure, "A target user is required.")
	}
	if !status.Valid() {
		return Fail[struct{}](KindValidationFailure, "Unknown status.")
	}

	sess, fail := s.authorize(ctx, OpSetUserStatus)
	if sess == nil {
		return fail
	}

	res := Invoke(ctx, s.gateway, OpSetUserStatus, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.SetUserStatus(ctx, SetUserStatusRequest{
			SessionToken: sess.Token,
			CallerID:     sess.User.ID,
			TargetUserID: targetUserID,
			NewStatus:    status,
		})
	})
	return healSession(ctx, s, sess.Token, res)
}

// authorize gates a privileged call. The cached user is checked first so an
// obviously unauthorised caller never reaches the network; the session is
// then revalidated and the fresh role checked again.
func (s *Service) authorize(ctx context.Context, op Operation) (*Session, Result[struct{}]) {
	log := slogx.FromContext(ctx).With("op", op.Name)

	cached, err := s.loadSession(ctx)
	if err != nil {
		return nil, Fail[struct{}](KindBackendUnavailable, "The saved session could not be read.")
	}
	var user *User
	if cached != nil {
		user = &cached.User
	}
	if r := RequireAdmin(user); !r.Success {
		log.Warn("privileged call denied locally", "error_kind", r.Kind)
		return nil, r
	}

	fresh := s.ValidateSession(ctx)
	if !fresh.Success {
		return nil, Recast[struct{}](fresh)
	}
	if r := RequireAdmin(&fresh.Payload); !r.Success {
		log.Warn("privileged call denied after revalidation", "error_kind", r.Kind)
		return nil, r
	}

	sess := s.CurrentSession()
	if sess == nil {
		return nil, Fail[struct{}](KindSessionInvalid, "")
	}
	return sess, Ok(struct{}{})
}

// ============================================================================
// Synchronous accessors
// ============================================================================

// CurrentUser returns a copy of the cached user, or nil when signed out.
func (s *Service) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	u := s.session.User
	return &u
}

// CurrentSession returns a copy of the cached session, or nil.
func (s *Service) CurrentSession() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// IsAuthenticated reports whether a cached, unexpired session exists.
func (s *Service) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return false
	}
	return IsAuthenticated(&s.session.User, s.session, s.clock())
}

// IsAdmin reports whether the cached user is an admin or super admin.
func (s *Service) IsAdmin() bool {
	return IsAdmin(s.authenticatedUser())
}

// IsSuperAdmin reports whether the cached user is a super admin.
func (s *Service) IsSuperAdmin() bool {
	return IsSuperAdmin(s.authenticatedUser())
}

// authenticatedUser returns a copy of the user of a live session, taken
// under a single read lock.
func (s *Service) authenticatedUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil || !IsAuthenticated(&s.session.User, s.session, s.clock()) {
		return nil
	}
	u := s.session.User
	return &u
}

// State returns the lifecycle snapshot.
func (s *Service) State() LifecycleState {
	return s.lifecycle.Current()
}

// ============================================================================
// Session plumbing
// ============================================================================

// loadSession returns the in-memory session, falling back to the store.
// Expired sessions are cleared.
func (s *Service) loadSession(ctx context.Context) (*Session, error) {
	now := s.clock()

	s.mu.RLock()
	cached := s.session
	s.mu.RUnlock()

	if cached != nil {
		if cached.Valid(now) {
			cp := *cached
			return &cp, nil
		}
		s.expireSession(ctx, cached.Token)
		return nil, nil
	}

	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	stored, err := s.store.Load(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to load cached session", "error", err)
		return nil, err
	}
	if stored == nil || !stored.Valid(now) {
		if stored != nil {
			_ = s.store.Clear(ctx)
		}
		return nil, nil
	}

	s.mu.Lock()
	if s.session == nil {
		cp := *stored
		s.session = &cp
	}
	s.mu.Unlock()
	return stored, nil
}

// requireSession returns the active session or a SessionInvalid failure.
func (s *Service) requireSession(ctx context.Context) (*Session, Result[struct{}]) {
	sess, err := s.loadSession(ctx)
	if err != nil {
		return nil, Fail[struct{}](KindBackendUnavailable, "The saved session could not be read.")
	}
	if sess == nil {
		return nil, Fail[struct{}](KindSessionInvalid, "")
	}
	return sess, Ok(struct{}{})
}

func (s *Service) setSession(ctx context.Context, sess *Session) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.persist(ctx, *sess)
}

// replaceUser swaps the cached user, but only while token is still the
// active session. It reports whether the swap happened.
func (s *Service) replaceUser(ctx context.Context, token string, user User) bool {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	s.mu.Lock()
	if s.session == nil || s.session.Token != token {
		s.mu.Unlock()
		return false
	}
	refreshed := *s.session
	refreshed.User = user
	s.session = &refreshed
	s.mu.Unlock()

	s.persist(ctx, refreshed)
	return true
}

func (s *Service) persist(ctx context.Context, sess Session) {
	if err := s.store.Save(ctx, sess); err != nil {
		// The in-memory session still works for this process.
		slogx.FromContext(ctx).Error("failed to persist session", "error", err)
	}
}

// expireSession drops the session after the backend rejected token. A
// session installed since then is left alone.
func (s *Service) expireSession(ctx context.Context, token string) {
	_ = s.clearSession(ctx, EventExpired, token)
}

// dropSession forgets the session in memory and in the store.
func (s *Service) dropSession(ctx context.Context, ev Event) error {
	return s.clearSession(ctx, ev, "")
}

// clearSession empties memory and the store. A non-empty token restricts it
// to that session.
func (s *Service) clearSession(ctx context.Context, ev Event, token string) error {
	s.storeMu.Lock()
	s.mu.Lock()
	if token != "" && s.session != nil && s.session.Token != token {
		s.mu.Unlock()
		s.storeMu.Unlock()
		return nil
	}
	had := s.session != nil
	s.session = nil
	s.mu.Unlock()

	err := s.store.Clear(ctx)
	s.storeMu.Unlock()
	if err != nil {
		slogx.FromContext(ctx).Error("failed to clear cached session", "error", err)
	}
	if had {
		slogx.FromContext(ctx).Info("local session cleared", "reason", ev)
	}
	s.fire(ctx, ev, "")
	return err
}

// healSession clears the local session when the backend rejected token.
func healSession[T any](ctx context.Context, s *Service, token string, res Result[T]) Result[T] {
	if !res.Success && isSessionKind(res.Kind) {
		s.expireSession(ctx, token)
	}
	return res
}

func (s *Service) fire(ctx context.Context, ev Event, role Role) {
	if _, err := s.lifecycle.Fire(ev, role); err != nil {
		slogx.FromContext(ctx).Debug("lifecycle event ignored", "event", ev, "error", err)
	}
}

func (s *Service) withLogger(ctx context.Context) context.Context {
	return slogx.EnsureContext(ctx, s.logger)
}

// ============================================================================
// Local validation
// ============================================================================

func validateEmail(email string) error {
	if email == "" {
		return NewError(KindValidationFailure, "An email address is required.")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return NewError(KindValidationFailure, "The email address is not valid.")
	}
	return nil
}

func (s *Service) validateNewPassword(pw string) error {
	if pw == "" {
		return NewError(KindValidationFailure, "A password is required.")
	}
	if len([]rune(pw)) < s.minPassword {
		return Errorf(KindValidationFailure, "The password must be at least %d characters.", s.minPassword)
	}
	return nil
}

func normaliseProfile(p ProfileUpdate) ProfileUpdate {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	return ProfileUpdate{
		Email:    trim(p.Email),
		FullName: trim(p.FullName),
		Phone:    trim(p.Phone),
	}
}

func isSessionKind(k ErrorKind) bool {
	return k == KindSessionInvalid || k == KindSessionExpired
}
