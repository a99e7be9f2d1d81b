package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/clubhouse/internal/identity/domain"
)

type sessionsRepo struct {
	q querier
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token_hash, user_agent, created_at, expires_at, revoked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.TokenHash, s.UserAgent,
		toMillis(s.CreatedAt), toMillis(s.ExpiresAt), toNullMillis(s.RevokedAt),
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error) {
	var (
		s                    domain.Session
		createdAt, expiresAt int64
		revokedAt            sql.NullInt64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, user_agent, created_at, expires_at, revoked_at
		 FROM sessions WHERE token_hash = ?`, hash,
	).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.UserAgent, &createdAt, &expiresAt, &revokedAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}

	s.CreatedAt = fromMillis(createdAt)
	s.ExpiresAt = fromMillis(expiresAt)
	s.RevokedAt = fromNullMillis(revokedAt)
	return s, nil
}

func (r *sessionsRepo) RevokeSession(ctx context.Context, id string, now time.Time) error {
	return requireRow(r.q.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?`, toMillis(now), id))
}

func (r *sessionsRepo) RevokeUserSessions(ctx context.Context, userID, exceptID string, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ?
		 WHERE user_id = ? AND id <> ? AND revoked_at IS NULL AND expires_at > ?`,
		toMillis(now), userID, exceptID, toMillis(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredSessions removes expired sessions and sessions revoked before now.
func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ? OR revoked_at <= ?`, toMillis(now), toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
