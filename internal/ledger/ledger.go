// Package ledger implements the booking lifecycle: creation against trek
// capacity, status transitions, cancellation and queries.
package ledger

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/capacity"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tx is the transaction-scoped persistence used by mutating operations.
type Tx interface {
	capacity.Seats
	GetTrek(ctx context.Context, id uuid.UUID) (domain.Trek, error)
	InsertBooking(ctx context.Context, b domain.Booking) error
	// LockBooking reads the booking and holds it until the transaction ends.
	LockBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	UpdateBooking(ctx context.Context, b domain.Booking) error
}

type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	GetBookingView(ctx context.Context, id uuid.UUID, withUser bool) (domain.BookingView, error)
	ListBookings(ctx context.Context, q domain.BookingQuery) ([]domain.BookingView, int, error)
	ListBookingIDs(ctx context.Context, trekID uuid.UUID, status domain.BookingStatus) ([]uuid.UUID, error)
}

// Notifier is fire-and-forget: a failed publish never undoes a committed change.
type Notifier interface {
	Publish(ctx context.Context, event string, payload any) error
}

type Auditor interface {
	Record(ctx context.Context, action string, userID uuid.UUID, data map[string]interface{}) error
}

type TrekCache interface {
	InvalidateTrek(ctx context.Context, id uuid.UUID) error
}

type Ledger struct {
	store    Store
	seats    *capacity.Accountant
	notifier Notifier
	logger   observability.Logger
	audit    Auditor
	cache    TrekCache
	now      func() time.Time
	tracer   trace.Tracer
}

type Option func(*Ledger)

func WithAuditor(a Auditor) Option {
	return func(l *Ledger) { l.audit = a }
}

func WithTrekCache(c TrekCache) Option {
	return func(l *Ledger) { l.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(store Store, seats *capacity.Accountant, notifier Notifier, logger observability.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		seats:    seats,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		tracer:   otel.Tracer("ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create books req.NumberOfPeople seats on the trek. The booking insert and the
// seat reservation commit together or not at all.
func (l *Ledger) Create(ctx context.Context, req domain.BookingRequest) (domain.Booking, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.Create", trace.WithAttributes(
		attribute.String("trek.id", req.TrekID.String()),
		attribute.Int("booking.people", req.NumberOfPeople),
	))
	defer span.End()

	if req.UserID == uuid.Nil {
		return domain.Booking{}, domain.Invalid("user is required")
	}
	if err := req.Validate(); err != nil {
		return domain.Booking{}, err
	}

	var (
		booking domain.Booking
		trek    domain.Trek
	)
	err := l.store.WithTx(ctx, func(tx Tx) error {
		t, err := tx.GetTrek(ctx, req.TrekID)
		if err != nil {
			return err
		}
		if !t.Bookable() {
			return domain.ErrTrekNotBookable
		}

		booking = domain.NewBooking(req, t, l.now())
		if err := tx.InsertBooking(ctx, booking); err != nil {
			return err
		}
		trek, err = l.seats.Reserve(ctx, tx, t, booking.NumberOfPeople)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return domain.Booking{}, err
	}

	observability.SeatsReserved.Add(float64(booking.NumberOfPeople))
	l.committed(ctx, domain.EventNewBooking, "booking.created", booking, trek)
	return booking, nil
}

// Cancel moves the booking to cancelled and gives its seats back. Cancelling
// twice fails with domain.ErrAlreadyCancelled and releases nothing.
func (l *Ledger) Cancel(ctx context.Context, id uuid.UUID, caller domain.Caller) (domain.Booking, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.Cancel", trace.WithAttributes(attribute.String("booking.id", id.String())))
	defer span.End()

	var (
		booking domain.Booking
		trek    domain.Trek
	)
	err := l.store.WithTx(ctx, func(tx Tx) error {
		b, err := tx.LockBooking(ctx, id)
		if err != nil {
			return err
		}
		if !caller.IsAdmin() && !caller.Owns(b.UserID) {
			return domain.ErrForbidden
		}
		next, err := b.Transition(domain.BookingCancelled)
		if err != nil {
			return err
		}
		if trek, err = l.release(ctx, tx, b); err != nil {
			return err
		}
		booking = next
		return tx.UpdateBooking(ctx, next)
	})
	if err != nil {
		span.RecordError(err)
		return domain.Booking{}, err
	}

	observability.SeatsReleased.Add(float64(booking.NumberOfPeople))
	l.committed(ctx, domain.EventBookingCancelled, "booking.cancelled", booking, trek)
	return booking, nil
}

// UpdateStatus applies a status and/or payment patch. Admins may apply any
// patch; owners may only cancel.
func (l *Ledger) UpdateStatus(ctx context.Context, id uuid.UUID, caller domain.Caller, patch domain.BookingPatch) (domain.Booking, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.UpdateStatus", trace.WithAttributes(attribute.String("booking.id", id.String())))
	defer span.End()

	var (
		booking  domain.Booking
		trek     domain.Trek
		released bool
	)
	err := l.store.WithTx(ctx, func(tx Tx) error {
		b, err := tx.LockBooking(ctx, id)
		if err != nil {
			return err
		}
		if err := patch.Authorize(caller, b); err != nil {
			return err
		}
		if err := patch.Validate(); err != nil {
			return err
		}

		next := b
		if patch.Status != nil {
			if next, err = b.Transition(*patch.Status); err != nil {
				return err
			}
		}
		if next.Status == domain.BookingCancelled && b.Status != domain.BookingCancelled {
			if trek, err = l.release(ctx, tx, b); err != nil {
				return err
			}
			released = true
		} else if trek, err = tx.GetTrek(ctx, b.TrekID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if patch.PaymentStatus != nil {
			next.PaymentStatus = *patch.PaymentStatus
		}
		booking = next
		return tx.UpdateBooking(ctx, next)
	})
	if err != nil {
		span.RecordError(err)
		return domain.Booking{}, err
	}

	if released {
		observability.SeatsReleased.Add(float64(booking.NumberOfPeople))
	}
	l.committed(ctx, domain.EventBookingUpdated, "booking.updated", booking, trek)
	return booking, nil
}

// Get returns one booking to its owner or an admin.
func (l *Ledger) Get(ctx context.Context, id uuid.UUID, caller domain.Caller) (domain.BookingView, error) {
	view, err := l.store.GetBookingView(ctx, id, caller.IsAdmin())
	if err != nil {
		return domain.BookingView{}, err
	}
	if !caller.IsAdmin() && !caller.Owns(view.UserID) {
		return domain.BookingView{}, domain.ErrForbidden
	}
	return view, nil
}

// List returns bookings newest first: everything with user summaries for
// admins, the caller's own bookings (with trek images) otherwise. A zero
// page limit returns the whole set.
func (l *Ledger) List(ctx context.Context, caller domain.Caller, page domain.PageRequest) (domain.Page[domain.BookingView], error) {
	q := domain.BookingQuery{Limit: page.Limit, Offset: page.Offset()}
	if caller.IsAdmin() {
		q.WithUser = true
	} else {
		owner := caller.UserID
		q.UserID = &owner
		q.WithImages = true
	}

	views, total, err := l.store.ListBookings(ctx, q)
	if err != nil {
		return domain.Page[domain.BookingView]{}, err
	}
	if views == nil {
		views = []domain.BookingView{}
	}
	return domain.Page[domain.BookingView]{Items: views, Total: total, Page: max(page.Page, 1), Limit: page.Limit}, nil
}

// CompleteTrek moves the confirmed bookings of a finished trek to completed.
func (l *Ledger) CompleteTrek(ctx context.Context, trekID uuid.UUID) (int, error) {
	ids, err := l.store.ListBookingIDs(ctx, trekID, domain.BookingConfirmed)
	if err != nil {
		return 0, err
	}
	completed := domain.BookingCompleted
	n := 0
	for _, id := range ids {
		if _, err := l.UpdateStatus(ctx, id, domain.SystemCaller, domain.BookingPatch{Status: &completed}); err != nil {
			return n, errors.Wrapf(err, "complete booking %s", id)
		}
		n++
	}
	return n, nil
}

func (l *Ledger) release(ctx context.Context, tx Tx, b domain.Booking) (domain.Trek, error) {
	t, err := tx.GetTrek(ctx, b.TrekID)
	if errors.Is(err, domain.ErrNotFound) {
		l.logger.WithField("trek_id", b.TrekID).WithField("booking_id", b.ID).
			Warn("trek gone, no seats to release")
		return domain.Trek{ID: b.TrekID}, nil
	}
	if err != nil {
		return domain.Trek{}, err
	}
	return l.seats.Release(ctx, tx, t, b.NumberOfPeople)
}

// committed runs the post-commit side effects. None of them can fail the operation.
func (l *Ledger) committed(ctx context.Context, event, action string, b domain.Booking, t domain.Trek) {
	log := l.logger.WithFields(map[string]interface{}{
		"booking_id": b.ID,
		"trek_id":    b.TrekID,
		"event":      event,
	})

	if l.cache != nil {
		if err := l.cache.InvalidateTrek(ctx, b.TrekID); err != nil {
			log.WithError(err).Warn("failed to invalidate trek cache")
		}
	}

	if l.audit != nil {
		data := map[string]interface{}{
			"booking_id":           b.ID.String(),
			"trek_id":              b.TrekID.String(),
			"status":               string(b.Status),
			"payment_status":       string(b.PaymentStatus),
			"number_of_people":     b.NumberOfPeople,
			"total_amount":         b.TotalAmount.String(),
			"current_participants": t.CurrentParticipants,
		}
		if err := l.audit.Record(ctx, action, b.UserID, data); err != nil {
			log.WithError(err).Warn("failed to write audit record")
		}
	}

	msg := domain.BookingMessage{Booking: b, TrekTitle: t.Title}
	if !t.StartDate.IsZero() {
		msg.TrekStart = t.StartDate.Format(time.RFC3339)
	}
	if err := l.notifier.Publish(ctx, event, domain.BookingEvent{UserID: b.UserID, Booking: msg}); err != nil {
		observability.NotifierPublishFailures.WithLabelValues(event).Inc()
		log.WithError(err).Warn("failed to publish booking event")
	}
}
