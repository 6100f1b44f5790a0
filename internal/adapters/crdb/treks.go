package crdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/shopspring/decimal"
)

const trekColumns = `id, title, description, type, difficulty, duration, price::STRING, location,
	start_date, end_date, max_participants, current_participants, images, status, featured, created_at`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanTrek(row pgx.Row) (domain.Trek, error) {
	var (
		t     domain.Trek
		price string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Type, &t.Difficulty, &t.Duration, &price, &t.Location,
		&t.StartDate, &t.EndDate, &t.MaxParticipants, &t.CurrentParticipants, &t.Images, &t.Status, &t.Featured, &t.CreatedAt)
	if err != nil {
		return domain.Trek{}, err
	}
	if t.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Trek{}, errors.Wrap(err, "parse price")
	}
	if t.Images == nil {
		t.Images = []string{}
	}
	return t, nil
}

func getTrek(ctx context.Context, q querier, id uuid.UUID, lock bool) (domain.Trek, error) {
	sql := `SELECT ` + trekColumns + ` FROM treks WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	t, err := scanTrek(q.QueryRow(ctx, sql, id))
	if err != nil {
		return domain.Trek{}, notFound(err)
	}
	return t, nil
}

func (r *Repository) GetTrek(ctx context.Context, id uuid.UUID) (domain.Trek, error) {
	return getTrek(ctx, r.pool, id, false)
}

func (r *Repository) ListTreks(ctx context.Context, f domain.TrekFilter) ([]domain.Trek, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if f.Difficulty != "" {
		add("difficulty = $%d", string(f.Difficulty))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Featured != nil {
		add("featured = $%d", *f.Featured)
	}
	if f.StartsFrom != nil {
		add("start_date >= $%d", *f.StartsFrom)
	}

	sql := `SELECT ` + trekColumns + ` FROM treks`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY start_date ASC`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query treks")
	}
	defer rows.Close()

	treks := []domain.Trek{}
	for rows.Next() {
		t, err := scanTrek(rows)
		if err != nil {
			return nil, err
		}
		treks = append(treks, t)
	}
	return treks, rows.Err()
}

func (r *Repository) InsertTrek(ctx context.Context, t domain.Trek) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO treks (id, title, description, type, difficulty, duration, price, location,
			start_date, end_date, max_participants, current_participants, images, status, featured, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::DECIMAL, $8, $9, $10, $11, 0, $12, $13, $14, $15)
	`, t.ID, t.Title, t.Description, string(t.Type), string(t.Difficulty), t.Duration, t.Price.String(), t.Location,
		t.StartDate, t.EndDate, t.MaxParticipants, t.Images, string(t.Status), t.Featured, t.CreatedAt)
	return errors.Wrap(err, "insert trek")
}

// UpdateTrek locks the row, applies the patch and writes every column except
// current_participants.
func (r *Repository) UpdateTrek(ctx context.Context, id uuid.UUID, patch domain.TrekPatch) (domain.Trek, error) {
	var updated domain.Trek
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		current, err := getTrek(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if updated, err = patch.Apply(current); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE treks SET title = $2, description = $3, type = $4, difficulty = $5, duration = $6,
				price = $7::DECIMAL, location = $8, start_date = $9, end_date = $10, max_participants = $11,
				images = $12, status = $13, featured = $14
			WHERE id = $1
		`, id, updated.Title, updated.Description, string(updated.Type), string(updated.Difficulty), updated.Duration,
			updated.Price.String(), updated.Location, updated.StartDate, updated.EndDate, updated.MaxParticipants,
			updated.Images, string(updated.Status), updated.Featured)
		return errors.Wrap(err, "update trek")
	})
	if err != nil {
		return domain.Trek{}, err
	}
	return updated, nil
}

func (r *Repository) DeleteTrek(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM treks
		WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM bookings WHERE trek_id = $1)
	`, id)
	if err != nil {
		return errors.Wrap(err, "delete trek")
	}
	if result.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.GetTrek(ctx, id); err != nil {
		return err
	}
	return domain.ErrConflict
}

// StartTreks moves upcoming treks whose start date has passed to ongoing.
func (r *Repository) StartTreks(ctx context.Context, now time.Time) ([]domain.Trek, error) {
	return r.advance(ctx, `
		UPDATE treks SET status = 'ongoing'
		WHERE status = 'upcoming' AND start_date <= $1 AND end_date > $1
		RETURNING `+trekColumns, now)
}

// CompleteTreks moves upcoming or ongoing treks whose end date has passed to completed.
func (r *Repository) CompleteTreks(ctx context.Context, now time.Time) ([]domain.Trek, error) {
	return r.advance(ctx, `
		UPDATE treks SET status = 'completed'
		WHERE status IN ('upcoming', 'ongoing') AND end_date <= $1
		RETURNING `+trekColumns, now)
}

func (r *Repository) advance(ctx context.Context, sql string, now time.Time) ([]domain.Trek, error) {
	rows, err := r.pool.Query(ctx, sql, now)
	if err != nil {
		return nil, errors.Wrap(err, "advance trek status")
	}
	defer rows.Close()

	var treks []domain.Trek
	for rows.Next() {
		t, err := scanTrek(rows)
		if err != nil {
			return nil, err
		}
		treks = append(treks, t)
	}
	return treks, rows.Err()
}
