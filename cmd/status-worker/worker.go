package main

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/observability"
)

const maxRetries = 3

// TrekClock moves treks along their calendar and returns the ones it changed.
type TrekClock interface {
	StartTreks(ctx context.Context, now time.Time) ([]domain.Trek, error)
	CompleteTreks(ctx context.Context, now time.Time) ([]domain.Trek, error)
}

type TrekPublisher interface {
	Publish(ctx context.Context, event string, t domain.Trek)
}

type BookingCompleter interface {
	CompleteTrek(ctx context.Context, trekID uuid.UUID) (int, error)
}

type StatusWorker struct {
	treks     TrekClock
	publisher TrekPublisher
	bookings  BookingCompleter
	logger    observability.Logger
	backoff   time.Duration
	now       func() time.Time
}

func NewStatusWorker(treks TrekClock, publisher TrekPublisher, bookings BookingCompleter, logger observability.Logger) *StatusWorker {
	return &StatusWorker{
		treks:     treks,
		publisher: publisher,
		bookings:  bookings,
		logger:    logger,
		backoff:   time.Second,
		now:       time.Now,
	}
}

func (w *StatusWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one pass: start due treks, complete finished ones and close out
// their confirmed bookings.
func (w *StatusWorker) Tick(ctx context.Context) {
	now := w.now()

	var started []domain.Trek
	err := w.withRetry(ctx, func() error {
		var err error
		started, err = w.treks.StartTreks(ctx, now)
		return err
	})
	if err != nil {
		w.logger.WithError(err).Error("failed to start treks after retries")
	}
	for _, t := range started {
		w.publisher.Publish(ctx, domain.EventTrekUpdated, t)
	}

	var completed []domain.Trek
	err = w.withRetry(ctx, func() error {
		var err error
		completed, err = w.treks.CompleteTreks(ctx, now)
		return err
	})
	if err != nil {
		w.logger.WithError(err).Error("failed to complete treks after retries")
	}
	for _, t := range completed {
		w.publisher.Publish(ctx, domain.EventTrekUpdated, t)
		w.completeBookings(ctx, t)
	}
}

func (w *StatusWorker) completeBookings(ctx context.Context, t domain.Trek) {
	log := w.logger.WithField("trek_id", t.ID)
	total := 0
	err := w.withRetry(ctx, func() error {
		n, err := w.bookings.CompleteTrek(ctx, t.ID)
		total += n
		return err
	})
	if err != nil {
		log.WithError(err).Error("failed to complete bookings after retries")
		return
	}
	log.WithField("bookings", total).Info("trek completed")
}

func (w *StatusWorker) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}
		backoff := w.backoff * time.Duration(1<<i)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return errors.Wrapf(err, "failed after %d retries", maxRetries)
}
