package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/clubhouse/internal/identity/domain"
	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, email, full_name, phone, password_hash, role, status, created_at, updated_at, last_login_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u                    domain.User
		role, status         string
		createdAt, updatedAt int64
		lastLogin            sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &u.PasswordHash,
		&role, &status, &createdAt, &updatedAt, &lastLogin); err != nil {
		return domain.User{}, err
	}
	u.Role = authsdk.Role(role)
	u.Status = authsdk.Status(status)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	u.LastLogin = fromNullMillis(lastLogin)
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), u.FullName, u.Phone, u.PasswordHash,
		string(u.Role), string(u.Status), toMillis(u.CreatedAt), toMillis(u.UpdatedAt), toNullMillis(u.LastLogin),
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	return u, mapNotFound(err)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	return u, mapNotFound(err)
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *usersRepo) UpdateProfile(ctx context.Context, id, email, fullName, phone string, now time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET email = ?, full_name = ?, phone = ?, updated_at = ? WHERE id = ?`,
		strings.ToLower(email), fullName, phone, toMillis(now), id,
	)
	return requireRow(res, mapConstraint(err))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	return requireRow(r.q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, toMillis(now), id))
}

func (r *usersRepo) SetRole(ctx context.Context, id string, role authsdk.Role, now time.Time) error {
	return requireRow(r.q.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, string(role), toMillis(now), id))
}

func (r *usersRepo) SetStatus(ctx context.Context, id string, status authsdk.Status, now time.Time) error {
	return requireRow(r.q.ExecContext(ctx,
		`UPDATE users SET status = ?, updated_at = ? WHERE id = ?`, string(status), toMillis(now), id))
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, id string, now time.Time) error {
	return requireRow(r.q.ExecContext(ctx,
		`UPDATE users SET last_login_at = ? WHERE id = ?`, toMillis(now), id))
}

func (r *usersRepo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
