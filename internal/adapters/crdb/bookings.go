package crdb

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/ledger"
	"github.com/shopspring/decimal"
)

const bookingColumns = `b.id, b.user_id, b.trek_id, b.number_of_people, b.total_amount::STRING, b.status,
	b.payment_status, b.special_requests, b.emergency_name, b.emergency_phone, b.emergency_relation, b.created_at`

// Bookings adapts the repository to the ledger's persistence ports.
type Bookings struct {
	repo *Repository
}

func NewBookings(repo *Repository) *Bookings {
	return &Bookings{repo: repo}
}

func (s *Bookings) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&bookingTx{tx: tx})
	})
}

func (s *Bookings) GetBookingView(ctx context.Context, id uuid.UUID, withUser bool) (domain.BookingView, error) {
	row := s.repo.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`,
			t.title, t.start_date, t.end_date, t.location, t.price::STRING, t.images,
			u.name, u.email, u.phone
		FROM bookings b
		LEFT JOIN treks t ON t.id = b.trek_id
		LEFT JOIN users u ON u.id = b.user_id
		WHERE b.id = $1
	`, id)
	v, err := scanView(row, withUser, true)
	if err != nil {
		return domain.BookingView{}, notFound(err)
	}
	return v, nil
}

func (s *Bookings) ListBookings(ctx context.Context, q domain.BookingQuery) ([]domain.BookingView, int, error) {
	var (
		where = ""
		args  []any
	)
	if q.UserID != nil {
		args = append(args, *q.UserID)
		where = ` WHERE b.user_id = $1`
	}

	var total int
	if err := s.repo.pool.QueryRow(ctx, `SELECT count(*) FROM bookings b`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count bookings")
	}

	sql := `
		SELECT ` + bookingColumns + `,
			t.title, t.start_date, t.end_date, t.location, t.price::STRING, t.images,
			u.name, u.email, u.phone
		FROM bookings b
		LEFT JOIN treks t ON t.id = b.trek_id
		LEFT JOIN users u ON u.id = b.user_id` + where + `
		ORDER BY b.created_at DESC, b.id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit, q.Offset)
		sql += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.repo.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "query bookings")
	}
	defer rows.Close()

	views := []domain.BookingView{}
	for rows.Next() {
		v, err := scanView(rows, q.WithUser, q.WithImages)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, v)
	}
	return views, total, rows.Err()
}

func (s *Bookings) ListBookingIDs(ctx context.Context, trekID uuid.UUID, status domain.BookingStatus) ([]uuid.UUID, error) {
	rows, err := s.repo.pool.Query(ctx, `
		SELECT id FROM bookings WHERE trek_id = $1 AND status = $2 ORDER BY created_at
	`, trekID, string(status))
	if err != nil {
		return nil, errors.Wrap(err, "query booking ids")
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func scanBooking(row pgx.Row, extra ...any) (domain.Booking, error) {
	var (
		b     domain.Booking
		total string
	)
	dest := append([]any{
		&b.ID, &b.UserID, &b.TrekID, &b.NumberOfPeople, &total, &b.Status, &b.PaymentStatus, &b.SpecialRequests,
		&b.EmergencyContact.Name, &b.EmergencyContact.Phone, &b.EmergencyContact.Relation, &b.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Booking{}, err
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return domain.Booking{}, errors.Wrap(err, "parse total amount")
	}
	b.TotalAmount = amount
	return b, nil
}

func scanView(row pgx.Row, withUser, withImages bool) (domain.BookingView, error) {
	var (
		title, location, price *string
		start, end             pgtype.Timestamptz
		images                 []string
		userName, email, phone *string
	)
	b, err := scanBooking(row, &title, &start, &end, &location, &price, &images, &userName, &email, &phone)
	if err != nil {
		return domain.BookingView{}, err
	}

	v := domain.BookingView{Booking: b, Trek: domain.TrekSummary{ID: b.TrekID}}
	if title != nil {
		v.Trek.Title = *title
		v.Trek.Location = deref(location)
		v.Trek.StartDate = start.Time
		v.Trek.EndDate = end.Time
		if price != nil {
			v.Trek.Price, _ = decimal.NewFromString(*price)
		}
		if withImages {
			v.Trek.Images = images
		}
	}
	if withUser && userName != nil {
		v.User = &domain.UserSummary{ID: b.UserID, Name: *userName, Email: deref(email), Phone: deref(phone)}
	}
	return v, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type bookingTx struct {
	tx pgx.Tx
}

// GetTrek locks the row so concurrent bookings of one trek queue behind each
// other instead of aborting.
func (t *bookingTx) GetTrek(ctx context.Context, id uuid.UUID) (domain.Trek, error) {
	return getTrek(ctx, t.tx, id, true)
}

func (t *bookingTx) IncrementParticipants(ctx context.Context, id uuid.UUID, n int) (domain.Trek, error) {
	updated, err := scanTrek(t.tx.QueryRow(ctx, `
		UPDATE treks SET current_participants = current_participants + $2
		WHERE id = $1 AND current_participants + $2 <= max_participants
		RETURNING `+trekColumns, id, n))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Trek{}, t.missOr(ctx, id, domain.ErrCapacityExceeded)
	}
	if err != nil {
		return domain.Trek{}, errors.Wrap(err, "increment participants")
	}
	return updated, nil
}

func (t *bookingTx) DecrementParticipants(ctx context.Context, id uuid.UUID, n int) (domain.Trek, error) {
	updated, err := scanTrek(t.tx.QueryRow(ctx, `
		UPDATE treks SET current_participants = current_participants - $2
		WHERE id = $1 AND current_participants >= $2
		RETURNING `+trekColumns, id, n))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Trek{}, t.missOr(ctx, id, domain.ErrInconsistentState)
	}
	if err != nil {
		return domain.Trek{}, errors.Wrap(err, "decrement participants")
	}
	return updated, nil
}

// missOr tells a missing trek apart from a refused conditional update.
func (t *bookingTx) missOr(ctx context.Context, id uuid.UUID, refused error) error {
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM treks WHERE id = $1)`, id).Scan(&exists); err != nil {
		return errors.Wrap(err, "check trek")
	}
	if !exists {
		return domain.ErrNotFound
	}
	return refused
}

func (t *bookingTx) InsertBooking(ctx context.Context, b domain.Booking) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings (id, user_id, trek_id, number_of_people, total_amount, status, payment_status,
			special_requests, emergency_name, emergency_phone, emergency_relation, created_at)
		VALUES ($1, $2, $3, $4, $5::DECIMAL, $6, $7, $8, $9, $10, $11, $12)
	`, b.ID, b.UserID, b.TrekID, b.NumberOfPeople, b.TotalAmount.String(), string(b.Status), string(b.PaymentStatus),
		b.SpecialRequests, b.EmergencyContact.Name, b.EmergencyContact.Phone, b.EmergencyContact.Relation, b.CreatedAt)
	return errors.Wrap(err, "insert booking")
}

func (t *bookingTx) LockBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Booking{}, notFound(err)
	}
	return b, nil
}

// UpdateBooking writes the mutable columns only; the amount is fixed at creation.
func (t *bookingTx) UpdateBooking(ctx context.Context, b domain.Booking) error {
	result, err := t.tx.Exec(ctx, `
		UPDATE bookings SET status = $2, payment_status = $3 WHERE id = $1
	`, b.ID, string(b.Status), string(b.PaymentStatus))
	if err != nil {
		return errors.Wrap(err, "update booking")
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
