package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/clubhouse/internal/identity/domain"
	"github.com/aussiebroadwan/clubhouse/internal/identity/store"
	"github.com/aussiebroadwan/clubhouse/pkg/jwtx"
)

type actionTokensRepo struct {
	q querier
}

func (r *actionTokensRepo) CreateActionToken(ctx context.Context, t domain.ActionToken) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO action_tokens (id, user_id, purpose, created_at, expires_at, consumed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Purpose), toMillis(t.CreatedAt), toMillis(t.ExpiresAt), toNullMillis(t.ConsumedAt),
	)
	return mapConstraint(err)
}

func (r *actionTokensRepo) ConsumeActionToken(ctx context.Context, id string, purpose jwtx.Purpose, now time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE action_tokens SET consumed_at = ?
		 WHERE id = ? AND purpose = ? AND consumed_at IS NULL`,
		toMillis(now), id, string(purpose),
	)
	if err := requireRow(res, err); !errors.Is(err, store.ErrNotFound) {
		return err
	}

	// Nothing updated: tell an unknown token apart from a spent one.
	var consumed sql.NullInt64
	err = r.q.QueryRowContext(ctx,
		`SELECT consumed_at FROM action_tokens WHERE id = ? AND purpose = ?`, id, string(purpose),
	).Scan(&consumed)
	if err != nil {
		return mapNotFound(err)
	}
	return store.ErrTokenConsumed
}

func (r *actionTokensRepo) DeleteExpiredActionTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM action_tokens WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
