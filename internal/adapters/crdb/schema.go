package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name STRING NOT NULL DEFAULT '',
		email STRING NOT NULL DEFAULT '',
		phone STRING NOT NULL DEFAULT '',
		role STRING NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS treks (
		id UUID PRIMARY KEY,
		title STRING NOT NULL,
		description STRING NOT NULL,
		type STRING NOT NULL CHECK (type IN ('trek', 'tour')),
		difficulty STRING NOT NULL,
		duration STRING NOT NULL,
		price DECIMAL(12,2) NOT NULL CHECK (price > 0),
		location STRING NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ NOT NULL,
		max_participants INT NOT NULL CHECK (max_participants > 0),
		current_participants INT NOT NULL DEFAULT 0,
		images STRING[] NOT NULL DEFAULT ARRAY[]:::STRING[],
		status STRING NOT NULL CHECK (status IN ('upcoming', 'ongoing', 'completed', 'cancelled')),
		featured BOOL NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT participants_within_capacity
			CHECK (current_participants >= 0 AND current_participants <= max_participants),
		INDEX treks_start_date_idx (start_date)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		trek_id UUID NOT NULL,
		number_of_people INT NOT NULL CHECK (number_of_people > 0),
		total_amount DECIMAL(12,2) NOT NULL,
		status STRING NOT NULL CHECK (status IN ('pending', 'confirmed', 'cancelled', 'completed')),
		payment_status STRING NOT NULL CHECK (payment_status IN ('pending', 'paid', 'refunded', 'failed')),
		special_requests STRING NOT NULL DEFAULT '',
		emergency_name STRING NOT NULL,
		emergency_phone STRING NOT NULL,
		emergency_relation STRING NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		INDEX bookings_user_idx (user_id, created_at DESC),
		INDEX bookings_trek_idx (trek_id, status)
	)`,
}

// Migrate creates missing tables. Every statement is idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}

// Truncate removes all rows. Used by the seeder.
func (r *Repository) Truncate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `TRUNCATE bookings, treks, users`)
	return errors.Wrap(err, "truncate")
}
