package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/clubhouse/internal/identity/domain"
	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
	"github.com/aussiebroadwan/clubhouse/pkg/jwtx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrTokenConsumed = errors.New("store: token already consumed")
)

// Store is the root data access interface. Sub-repositories are reached
// through methods so a Tx-scoped Store cannot start a nested transaction by
// accident.
type Store interface {
	Users() Users
	Sessions() Sessions
	ActionTokens() ActionTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts u. A duplicate email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// ListUsers returns every user, oldest first.
	ListUsers(ctx context.Context) ([]domain.User, error)

	// UpdateProfile replaces the self-editable fields. A clash with another
	// user's email yields ErrAlreadyExists.
	UpdateProfile(ctx context.Context, id, email, fullName, phone string, now time.Time) error

	UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error
	SetRole(ctx context.Context, id string, role authsdk.Role, now time.Time) error
	SetStatus(ctx context.Context, id string, status authsdk.Status, now time.Time) error
	TouchLastLogin(ctx context.Context, id string, now time.Time) error

	CountUsers(ctx context.Context) (int64, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByTokenHash returns the session whatever its state; callers
	// check domain.Session.Active.
	GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error)

	RevokeSession(ctx context.Context, id string, now time.Time) error

	// RevokeUserSessions revokes every live session of userID except
	// exceptID (which may be empty) and returns how many were revoked.
	RevokeUserSessions(ctx context.Context, userID, exceptID string, now time.Time) (int64, error)

	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type ActionTokens interface {
	CreateActionToken(ctx context.Context, t domain.ActionToken) error

	// ConsumeActionToken marks the token used. It returns ErrNotFound for an
	// unknown id or purpose and ErrTokenConsumed if it was already used.
	ConsumeActionToken(ctx context.Context, id string, purpose jwtx.Purpose, now time.Time) error

	DeleteExpiredActionTokens(ctx context.Context, now time.Time) (int64, error)
}
