package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/clubhouse/internal/identity/domain"
	"github.com/aussiebroadwan/clubhouse/internal/identity/store"
	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
	"github.com/aussiebroadwan/clubhouse/pkg/cryptox"
	"github.com/aussiebroadwan/clubhouse/pkg/idx"
	"github.com/aussiebroadwan/clubhouse/pkg/slogx"
)

var ErrBootstrapAlready = errors.New("system already bootstrapped")

// BootstrapService seeds the first super_admin of an empty installation.
type BootstrapService struct {
	Store    store.Store
	Hasher   *cryptox.PasswordHasher
	Email    string
	Password string
}

// IsBootstrapped reports whether any user exists.
func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	n, err := s.Store.Users().CountUsers(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// EnsureSuperAdmin creates the configured super_admin when the user table is
// empty. It returns the new user's id, or ErrBootstrapAlready.
func (s *BootstrapService) EnsureSuperAdmin(ctx context.Context) (string, error) {
	l := slogx.FromContext(ctx)

	email, err := normaliseEmail(s.Email)
	if err != nil {
		return "", fmt.Errorf("bootstrap email: %w", err)
	}
	if len(s.Password) < DefaultMinPasswordLength {
		return "", fmt.Errorf("bootstrap password must be at least %d characters", DefaultMinPasswordLength)
	}

	hash, err := s.Hasher.Hash(s.Password)
	if err != nil {
		return "", fmt.Errorf("hash bootstrap password: %w", err)
	}

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		FullName:     "Administrator",
		PasswordHash: hash,
		Role:         authsdk.RoleSuperAdmin,
		Status:       authsdk.StatusActive,
	}
	u.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	u.UpdatedAt = u.CreatedAt

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.Users().CountUsers(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrBootstrapAlready
		}
		return tx.Users().CreateUser(ctx, u)
	})
	if err != nil {
		return "", err
	}

	l.Info("bootstrapped super admin", "user_id", u.ID, "email", u.Email)
	return u.ID, nil
}
