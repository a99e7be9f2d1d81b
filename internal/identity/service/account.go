package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/clubhouse/internal/identity/domain"
	"github.com/aussiebroadwan/clubhouse/internal/identity/store"
	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
	"github.com/aussiebroadwan/clubhouse/pkg/cryptox"
	"github.com/aussiebroadwan/clubhouse/pkg/httpx"
	"github.com/aussiebroadwan/clubhouse/pkg/idx"
	"github.com/aussiebroadwan/clubhouse/pkg/jwtx"
	"github.com/aussiebroadwan/clubhouse/pkg/slogx"
)

const (
	DefaultSessionTTL        = 24 * time.Hour
	DefaultMinPasswordLength = 8

	// dummyPassword is hashed once and verified against for unknown emails
	// so login timing does not reveal which accounts exist.
	dummyPassword = "clubhouse-timing-equaliser"
)

// AccountService owns every account operation of the identity backend.
// Callers of the privileged operations pass the Principal resolved by
// Authenticate; its role and status are read from the store on every call.
type AccountService struct {
	Store    store.Store
	Hasher   *cryptox.PasswordHasher
	Signer   *jwtx.ActionSigner
	Notifier Notifier

	SessionTTL        time.Duration
	VerifyTTL         time.Duration
	ResetTTL          time.Duration
	MinPasswordLength int

	// ExposeTokens returns verification and reset tokens in responses.
	// Only for development and tests.
	ExposeTokens bool

	// Now defaults to time.Now.
	Now func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

var _ httpx.Authenticator = (*AccountService)(nil)

func (s *AccountService) now() time.Time {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	// The store keeps millisecond precision.
	return now.UTC().Truncate(time.Millisecond)
}

func (s *AccountService) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return DefaultSessionTTL
}

func (s *AccountService) verifyTTL() time.Duration {
	if s.VerifyTTL > 0 {
		return s.VerifyTTL
	}
	return jwtx.DefaultVerifyEmailTTL
}

func (s *AccountService) resetTTL() time.Duration {
	if s.ResetTTL > 0 {
		return s.ResetTTL
	}
	return jwtx.DefaultResetPasswordTTL
}

func (s *AccountService) notifier() Notifier {
	if s.Notifier != nil {
		return s.Notifier
	}
	return LogNotifier{}
}

// ============================================================================
// Registration and verification
// ============================================================================

// Register creates a pending member and issues an email verification token.
func (s *AccountService) Register(ctx context.Context, req authsdk.RegisterRequest) (authsdk.RegisterResponse, error) {
	l := slogx.FromContext(ctx)
	now := s.now()

	email, err := normaliseEmail(req.Email)
	if err != nil {
		return authsdk.RegisterResponse{}, err
	}
	if err := s.checkPassword(req.Password); err != nil {
		return authsdk.RegisterResponse{}, err
	}

	hash, err := s.Hasher.Hash(req.Password)
	if err != nil {
		return authsdk.RegisterResponse{}, fmt.Errorf("hash password: %w", err)
	}

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
		Role:         authsdk.RoleMember,
		Status:       authsdk.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var token string
	var expiresAt time.Time
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("create user: %w", err)
		}
		token, expiresAt, err = s.issueActionToken(ctx, tx, u, jwtx.PurposeVerifyEmail, s.verifyTTL())
		return err
	})
	if err != nil {
		return authsdk.RegisterResponse{}, err
	}

	l.Info("user registered", slog.String("user_id", u.ID))
	if err := s.notifier().SendVerification(ctx, u, token, expiresAt); err != nil {
		l.Error("failed to send verification", "user_id", u.ID, "error", err)
	}

	resp := authsdk.RegisterResponse{
		Success: true,
		Message: "Registration successful. Please check your email to verify your account.",
		UserID:  u.ID,
	}
	if s.ExposeTokens {
		resp.VerificationToken = token
	}
	return resp, nil
}

// VerifyEmail consumes a verification token and activates a pending account.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.verifyActionToken(token, jwtx.PurposeVerifyEmail)
	if err != nil {
		return err
	}
	now := s.now()

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, err := s.consumeActionToken(ctx, tx, claims, now)
		if err != nil {
			return err
		}
		if u.Status != authsdk.StatusPending {
			return nil
		}
		return tx.Users().SetStatus(ctx, u.ID, authsdk.StatusActive, now)
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("email verified", "user_id", claims.Subject)
	return nil
}

// ============================================================================
// Sessions
// ============================================================================

// Login checks credentials and opens a new session. Pending accounts may
// sign in; inactive accounts may not.
func (s *AccountService) Login(ctx context.Context, req authsdk.LoginRequest) (authsdk.LoginResponse, error) {
	l := slogx.FromContext(ctx)
	now := s.now()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return authsdk.LoginResponse{}, problem(ErrInvalidInput, "Email and password are required.")
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		_ = s.Hasher.Verify(req.Password, s.dummy())
		l.Info("login failed", "reason", "unknown_email")
		return authsdk.LoginResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return authsdk.LoginResponse{}, fmt.Errorf("load user: %w", err)
	}

	if err := s.Hasher.Verify(req.Password, u.PasswordHash); err != nil {
		l.Info("login failed", "reason", "bad_password", "user_id", u.ID)
		return authsdk.LoginResponse{}, ErrInvalidCredentials
	}
	if u.Status == authsdk.StatusInactive {
		l.Info("login failed", "reason", "inactive", "user_id", u.ID)
		return authsdk.LoginResponse{}, ErrAccountInactive
	}

	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return authsdk.LoginResponse{}, err
	}
	sess := domain.Session{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(raw),
		UserAgent: truncate(req.UserAgent, 256),
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL()),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().CreateSession(ctx, sess); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return tx.Users().TouchLastLogin(ctx, u.ID, now)
	})
	if err != nil {
		return authsdk.LoginResponse{}, err
	}
	u.LastLogin = &now

	l.Info("user logged in", "user_id", u.ID, "session_id", sess.ID)
	return authsdk.LoginResponse{
		Success:      true,
		Message:      "Login successful.",
		User:         u.Public(),
		SessionToken: raw,
		IssuedAt:     sess.CreatedAt,
		ExpiresAt:    sess.ExpiresAt,
	}, nil
}

// Logout revokes the session behind token. Unknown and already revoked
// tokens are not an error.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return problem(ErrInvalidInput, "A session token is required.")
	}

	sess, err := s.Store.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess.RevokedAt != nil {
		return nil
	}

	if err := s.Store.Sessions().RevokeSession(ctx, sess.ID, s.now()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	slogx.FromContext(ctx).Info("user logged out", "user_id", sess.UserID, "session_id", sess.ID)
	return nil
}

// resolve loads the live session and user behind token.
func (s *AccountService) resolve(ctx context.Context, token string) (domain.Session, domain.User, error) {
	if token == "" {
		return domain.Session{}, domain.User{}, ErrSessionInvalid
	}

	sess, err := s.Store.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, domain.User{}, ErrSessionInvalid
	}
	if err != nil {
		return domain.Session{}, domain.User{}, fmt.Errorf("load session: %w", err)
	}

	now := s.now()
	switch {
	case sess.RevokedAt != nil:
		return domain.Session{}, domain.User{}, ErrSessionInvalid
	case !sess.Active(now):
		return domain.Session{}, domain.User{}, ErrSessionExpired
	}

	u, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, domain.User{}, ErrSessionInvalid
	}
	if err != nil {
		return domain.Session{}, domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if u.Status == authsdk.StatusInactive {
		return domain.Session{}, domain.User{}, ErrSessionInvalid
	}
	return sess, u, nil
}

// ValidateSession reports whether token is live and returns the current
// user record. A dead token is a normal answer, not an error.
func (s *AccountService) ValidateSession(ctx context.Context, token string) (authsdk.ValidateSessionResponse, error) {
	_, u, err := s.resolve(ctx, token)
	switch {
	case errors.Is(err, ErrSessionInvalid), errors.Is(err, ErrSessionExpired):
		return authsdk.ValidateSessionResponse{Valid: false}, nil
	case err != nil:
		return authsdk.ValidateSessionResponse{}, err
	}

	pub := u.Public()
	return authsdk.ValidateSessionResponse{Valid: true, User: &pub}, nil
}

// Authenticate resolves a bearer session token for the HTTP middleware and
// the embedded backend.
func (s *AccountService) Authenticate(ctx context.Context, token string) (httpx.Principal, error) {
	sess, u, err := s.resolve(ctx, token)
	if err != nil {
		return httpx.Principal{}, err
	}
	return httpx.Principal{
		UserID:    u.ID,
		SessionID: sess.ID,
		Role:      string(u.Role),
		Status:    string(u.Status),
	}, nil
}

// ============================================================================
// Passwords
// ============================================================================

// RequestPasswordReset issues a reset token when email belongs to a usable
// account. It reports success either way so it cannot be used to probe for
// accounts.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) (authsdk.PasswordResetResponse, error) {
	l := slogx.FromContext(ctx)

	email, err := normaliseEmail(email)
	if err != nil {
		return authsdk.PasswordResetResponse{}, err
	}

	resp := authsdk.PasswordResetResponse{
		Success: true,
		Message: "If an account exists for this email, a reset link has been sent.",
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		l.Debug("password reset for unknown email")
		return resp, nil
	}
	if err != nil {
		return authsdk.PasswordResetResponse{}, fmt.Errorf("load user: %w", err)
	}
	if u.Status == authsdk.StatusInactive {
		l.Info("password reset for inactive account", "user_id", u.ID)
		return resp, nil
	}

	var token string
	var expiresAt time.Time
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		token, expiresAt, err = s.issueActionToken(ctx, tx, u, jwtx.PurposeResetPassword, s.resetTTL())
		return err
	})
	if err != nil {
		return authsdk.PasswordResetResponse{}, err
	}

	if err := s.notifier().SendPasswordReset(ctx, u, token, expiresAt); err != nil {
		l.Error("failed to send password reset", "user_id", u.ID, "error", err)
	}
	if s.ExposeTokens {
		resp.ResetToken = token
	}
	return resp, nil
}

// ResetPassword consumes a reset token, sets the new password and signs the
// account out everywhere.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.checkPassword(newPassword); err != nil {
		return err
	}
	claims, err := s.verifyActionToken(token, jwtx.PurposeResetPassword)
	if err != nil {
		return err
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := s.now()

	var revoked int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, err := s.consumeActionToken(ctx, tx, claims, now)
		if err != nil {
			return err
		}
		if err := tx.Users().UpdatePasswordHash(ctx, u.ID, hash, now); err != nil {
			return err
		}
		revoked, err = tx.Sessions().RevokeUserSessions(ctx, u.ID, "", now)
		return err
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password reset", "user_id", claims.Subject, "sessions_revoked", revoked)
	return nil
}

// ChangePassword changes the caller's password after checking the current
// one. Every other session of the caller is revoked.
func (s *AccountService) ChangePassword(ctx context.Context, caller httpx.Principal, userID, current, next string) error {
	if userID != "" && userID != caller.UserID {
		return problem(ErrForbidden, "You can only change your own password.")
	}
	if current == "" {
		return problem(ErrInvalidInput, "Your current password is required.")
	}
	if err := s.checkPassword(next); err != nil {
		return err
	}
	if current == next {
		return problem(ErrInvalidInput, "The new password must be different from the current one.")
	}

	u, err := s.Store.Users().GetUserByID(ctx, caller.UserID)
	if err != nil {
		return mapUserErr(err)
	}
	if err := s.Hasher.Verify(current, u.PasswordHash); err != nil {
		return problem(ErrInvalidCredentials, "The current password is incorrect.")
	}

	hash, err := s.Hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := s.now()

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, u.ID, hash, now); err != nil {
			return err
		}
		_, err := tx.Sessions().RevokeUserSessions(ctx, u.ID, caller.SessionID, now)
		return err
	})
}

// ============================================================================
// Profile and administration
// ============================================================================

// UpdateProfile edits the caller's own profile. Role and status are not
// editable here. A new email address must be verified again: an active
// account drops back to pending and a verification token goes to the new
// address.
func (s *AccountService) UpdateProfile(ctx context.Context, caller httpx.Principal, upd authsdk.ProfileUpdate) (authsdk.User, error) {
	if upd.Empty() {
		return authsdk.User{}, problem(ErrInvalidInput, "Nothing to update.")
	}

	u, err := s.Store.Users().GetUserByID(ctx, caller.UserID)
	if err != nil {
		return authsdk.User{}, mapUserErr(err)
	}

	emailChanged := false
	if upd.Email != nil {
		email, err := normaliseEmail(*upd.Email)
		if err != nil {
			return authsdk.User{}, err
		}
		emailChanged = email != u.Email
		u.Email = email
	}
	if upd.FullName != nil {
		u.FullName = strings.TrimSpace(*upd.FullName)
	}
	if upd.Phone != nil {
		u.Phone = strings.TrimSpace(*upd.Phone)
	}
	u.UpdatedAt = s.now()

	reverify := emailChanged && u.Status != authsdk.StatusInactive
	var token string
	var expiresAt time.Time
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdateProfile(ctx, u.ID, u.Email, u.FullName, u.Phone, u.UpdatedAt); err != nil {
			return err
		}
		if !reverify {
			return nil
		}
		if u.Status == authsdk.StatusActive {
			if err := tx.Users().SetStatus(ctx, u.ID, authsdk.StatusPending, u.UpdatedAt); err != nil {
				return err
			}
			u.Status = authsdk.StatusPending
		}
		token, expiresAt, err = s.issueActionToken(ctx, tx, u, jwtx.PurposeVerifyEmail, s.verifyTTL())
		return err
	})
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return authsdk.User{}, problem(ErrDuplicateEmail, "Another account already uses this email.")
	case err != nil:
		return authsdk.User{}, mapUserErr(err)
	}

	if reverify {
		l := slogx.FromContext(ctx)
		l.Info("email changed, verification required", "user_id", u.ID)
		if err := s.notifier().SendVerification(ctx, u, token, expiresAt); err != nil {
			l.Error("failed to send verification", "user_id", u.ID, "error", err)
		}
	}
	return u.Public(), nil
}

// ListUsers returns every account. Admins only.
func (s *AccountService) ListUsers(ctx context.Context, caller httpx.Principal) ([]authsdk.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	users, err := s.Store.Users().ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]authsdk.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// SetUserRole changes another user's role. The caller must be an admin,
// must outrank or equal the target and cannot grant a role above their own.
func (s *AccountService) SetUserRole(ctx context.Context, caller httpx.Principal, targetID string, role authsdk.Role) error {
	if !role.Valid() {
		return problem(ErrInvalidInput, fmt.Sprintf("Unknown role %q.", role))
	}
	target, err := s.checkAdminOver(ctx, caller, targetID)
	if err != nil {
		return err
	}
	if role.Rank() > authsdk.Role(caller.Role).Rank() {
		return problem(ErrForbidden, "You cannot grant a role above your own.")
	}
	if target.Role == role {
		return nil
	}

	if err := s.Store.Users().SetRole(ctx, target.ID, role, s.now()); err != nil {
		return mapUserErr(err)
	}
	slogx.FromContext(ctx).Info("user role changed",
		"actor_id", caller.UserID, "target_id", target.ID, "from", target.Role, "to", role)
	return nil
}

// SetUserStatus changes another user's account status. Deactivating a user
// revokes their sessions.
func (s *AccountService) SetUserStatus(ctx context.Context, caller httpx.Principal, targetID string, status authsdk.Status) error {
	if !status.Valid() {
		return problem(ErrInvalidInput, fmt.Sprintf("Unknown status %q.", status))
	}
	target, err := s.checkAdminOver(ctx, caller, targetID)
	if err != nil {
		return err
	}
	if target.Status == status {
		return nil
	}
	now := s.now()

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().SetStatus(ctx, target.ID, status, now); err != nil {
			return mapUserErr(err)
		}
		if status != authsdk.StatusInactive {
			return nil
		}
		_, err := tx.Sessions().RevokeUserSessions(ctx, target.ID, "", now)
		return err
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("user status changed",
		"actor_id", caller.UserID, "target_id", target.ID, "from", target.Status, "to", status)
	return nil
}

func requireAdmin(caller httpx.Principal) error {
	if authsdk.Status(caller.Status) != authsdk.StatusActive || !authsdk.Role(caller.Role).AtLeast(authsdk.RoleAdmin) {
		return ErrForbidden
	}
	return nil
}

// checkAdminOver loads targetID and checks caller may administer it.
func (s *AccountService) checkAdminOver(ctx context.Context, caller httpx.Principal, targetID string) (domain.User, error) {
	if err := requireAdmin(caller); err != nil {
		return domain.User{}, err
	}
	if targetID == "" {
		return domain.User{}, problem(ErrInvalidInput, "A target user is required.")
	}
	if targetID == caller.UserID {
		return domain.User{}, problem(ErrForbidden, "You cannot change your own role or status.")
	}

	target, err := s.Store.Users().GetUserByID(ctx, targetID)
	if err != nil {
		return domain.User{}, mapUserErr(err)
	}
	if target.Role.Rank() > authsdk.Role(caller.Role).Rank() {
		return domain.User{}, problem(ErrForbidden, "You cannot change a user ranked above you.")
	}
	return target, nil
}

// ============================================================================
// Helpers
// ============================================================================

func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Hasher.Hash(dummyPassword)
	})
	return s.dummyHash
}

func (s *AccountService) checkPassword(pw string) error {
	minLen := s.MinPasswordLength
	if minLen <= 0 {
		minLen = DefaultMinPasswordLength
	}
	if pw == "" {
		return problem(ErrInvalidInput, "A password is required.")
	}
	if len([]rune(pw)) < minLen {
		return problem(ErrInvalidInput, fmt.Sprintf("The password must be at least %d characters.", minLen))
	}
	return nil
}

// issueActionToken signs a token for u and records its jti in the ledger.
func (s *AccountService) issueActionToken(
	ctx context.Context,
	tx store.Tx,
	u domain.User,
	purpose jwtx.Purpose,
	ttl time.Duration,
) (string, time.Time, error) {
	token, claims, err := s.Signer.Issue(u.ID, u.Email, purpose, ttl)
	if err != nil {
		return "", time.Time{}, err
	}

	rec := domain.ActionToken{
		ID:        claims.ID,
		UserID:    u.ID,
		Purpose:   purpose,
		CreatedAt: claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := tx.ActionTokens().CreateActionToken(ctx, rec); err != nil {
		return "", time.Time{}, fmt.Errorf("record action token: %w", err)
	}
	return token, rec.ExpiresAt, nil
}

func (s *AccountService) verifyActionToken(token string, purpose jwtx.Purpose) (jwtx.ActionClaims, error) {
	if strings.TrimSpace(token) == "" {
		return jwtx.ActionClaims{}, problem(ErrInvalidInput, "A token is required.")
	}
	claims, err := s.Signer.Verify(token, purpose)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwtx.ErrExpired):
		return jwtx.ActionClaims{}, problem(ErrTokenUsed, "This link has expired.")
	default:
		return jwtx.ActionClaims{}, ErrTokenInvalid
	}
}

// consumeActionToken spends the token in the ledger and returns its owner.
// A token issued for an address the account no longer uses is rejected.
func (s *AccountService) consumeActionToken(ctx context.Context, tx store.Tx, claims jwtx.ActionClaims, now time.Time) (domain.User, error) {
	err := tx.ActionTokens().ConsumeActionToken(ctx, claims.ID, claims.Purpose, now)
	switch {
	case errors.Is(err, store.ErrTokenConsumed):
		return domain.User{}, ErrTokenUsed
	case errors.Is(err, store.ErrNotFound):
		return domain.User{}, ErrTokenInvalid
	case err != nil:
		return domain.User{}, err
	}

	u, err := tx.Users().GetUserByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrTokenInvalid
	}
	if err != nil {
		return domain.User{}, err
	}
	if claims.Email != "" && !strings.EqualFold(claims.Email, u.Email) {
		return domain.User{}, ErrTokenInvalid
	}
	return u, nil
}

func normaliseEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", problem(ErrInvalidInput, "An email address is required.")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", problem(ErrInvalidInput, "The email address is not valid.")
	}
	return email, nil
}

func mapUserErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
