package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/trek-bookings/internal/domain"
)

// EnsureUser provisions the user row from token claims once; later calls are no-ops.
func (r *Repository) EnsureUser(ctx context.Context, u domain.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, phone, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, u.ID, u.Name, u.Email, u.Phone, string(u.Role), u.CreatedAt)
	return errors.Wrap(err, "ensure user")
}

func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, phone, role, created_at FROM users ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query users")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.User, error) {
		var u domain.User
		err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.CreatedAt)
		return u, err
	})
}

func (r *Repository) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, errors.Wrap(err, "query user ids")
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
