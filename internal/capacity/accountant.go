// Package capacity owns the participant counter of a trek. Every change to
// Trek.CurrentParticipants goes through Accountant.Reserve or Accountant.Release.
package capacity

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/observability"
)

// Seats is the transaction-scoped counter store. Both methods must be a single
// conditional update: increment only when the result stays within
// max_participants (else domain.ErrCapacityExceeded), decrement only when the
// counter holds at least n (else domain.ErrInconsistentState). A missing trek
// is domain.ErrNotFound.
type Seats interface {
	IncrementParticipants(ctx context.Context, trekID uuid.UUID, n int) (domain.Trek, error)
	DecrementParticipants(ctx context.Context, trekID uuid.UUID, n int) (domain.Trek, error)
}

type Accountant struct {
	logger observability.Logger
}

func NewAccountant(logger observability.Logger) *Accountant {
	return &Accountant{logger: logger}
}

// Reserve takes count seats on trek and returns the updated trek.
func (a *Accountant) Reserve(ctx context.Context, seats Seats, trek domain.Trek, count int) (domain.Trek, error) {
	if count <= 0 {
		return trek, domain.ErrInvalidQuantity
	}

	updated, err := seats.IncrementParticipants(ctx, trek.ID, count)
	if errors.Is(err, domain.ErrCapacityExceeded) {
		observability.CapacityRejections.Inc()
		a.logger.WithFields(map[string]interface{}{
			"trek_id":   trek.ID,
			"requested": count,
			"remaining": trek.Remaining(),
		}).Info("seat reservation refused")
		return trek, err
	}
	if err != nil {
		return trek, errors.Wrap(err, "reserve seats")
	}
	if !updated.WithinCapacity() {
		return trek, a.inconsistent(updated, count, "reserve")
	}
	return updated, nil
}

// Release gives back count seats. Driving the counter below zero is never
// clamped: it is reported as domain.ErrInconsistentState.
func (a *Accountant) Release(ctx context.Context, seats Seats, trek domain.Trek, count int) (domain.Trek, error) {
	if count <= 0 {
		return trek, domain.ErrInvalidQuantity
	}

	updated, err := seats.DecrementParticipants(ctx, trek.ID, count)
	if errors.Is(err, domain.ErrInconsistentState) {
		return trek, a.inconsistent(trek, count, "release")
	}
	if err != nil {
		return trek, errors.Wrap(err, "release seats")
	}
	if !updated.WithinCapacity() {
		return trek, a.inconsistent(updated, count, "release")
	}
	return updated, nil
}

func (a *Accountant) inconsistent(trek domain.Trek, count int, op string) error {
	observability.InconsistentReleases.Inc()
	a.logger.WithFields(map[string]interface{}{
		"trek_id":              trek.ID,
		"op":                   op,
		"requested":            count,
		"current_participants": trek.CurrentParticipants,
		"max_participants":     trek.MaxParticipants,
	}).Error("participant counter out of bounds")
	return errors.Wrapf(domain.ErrInconsistentState, "%s %d seats on trek %s", op, count, trek.ID)
}
