package capacity

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterSeats struct {
	mu    sync.Mutex
	treks map[uuid.UUID]domain.Trek
}

func newCounterSeats(treks ...domain.Trek) *counterSeats {
	s := &counterSeats{treks: map[uuid.UUID]domain.Trek{}}
	for _, t := range treks {
		s.treks[t.ID] = t
	}
	return s
}

func (s *counterSeats) IncrementParticipants(_ context.Context, id uuid.UUID, n int) (domain.Trek, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.treks[id]
	if !ok {
		return domain.Trek{}, domain.ErrNotFound
	}
	if !t.CanSeat(n) {
		return t, domain.ErrCapacityExceeded
	}
	t.CurrentParticipants += n
	s.treks[id] = t
	return t, nil
}

func (s *counterSeats) DecrementParticipants(_ context.Context, id uuid.UUID, n int) (domain.Trek, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.treks[id]
	if !ok {
		return domain.Trek{}, domain.ErrNotFound
	}
	if t.CurrentParticipants < n {
		return t, domain.ErrInconsistentState
	}
	t.CurrentParticipants -= n
	s.treks[id] = t
	return t, nil
}

func trek(max, current int) domain.Trek {
	return domain.Trek{ID: uuid.New(), MaxParticipants: max, CurrentParticipants: current, Status: domain.TrekUpcoming}
}

func TestAccountant_Reserve(t *testing.T) {
	ctx := context.Background()
	a := NewAccountant(observability.NewNopLogger())

	t.Run("fills the last seats", func(t *testing.T) {
		tr := trek(20, 18)
		seats := newCounterSeats(tr)

		updated, err := a.Reserve(ctx, seats, tr, 2)
		require.NoError(t, err)
		assert.Equal(t, 20, updated.CurrentParticipants)
	})

	t.Run("refuses overflow", func(t *testing.T) {
		tr := trek(20, 20)
		seats := newCounterSeats(tr)

		_, err := a.Reserve(ctx, seats, tr, 1)
		assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
		assert.Equal(t, 20, seats.treks[tr.ID].CurrentParticipants)
	})

	t.Run("refuses non-positive counts", func(t *testing.T) {
		tr := trek(20, 5)
		seats := newCounterSeats(tr)

		for _, n := range []int{0, -3} {
			_, err := a.Reserve(ctx, seats, tr, n)
			assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
		}
		assert.Equal(t, 5, seats.treks[tr.ID].CurrentParticipants)
	})

	t.Run("missing trek", func(t *testing.T) {
		_, err := a.Reserve(ctx, newCounterSeats(), trek(10, 0), 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestAccountant_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("decrements by count", func(t *testing.T) {
		a := NewAccountant(observability.NewNopLogger())
		tr := trek(20, 10)
		seats := newCounterSeats(tr)

		updated, err := a.Release(ctx, seats, tr, 3)
		require.NoError(t, err)
		assert.Equal(t, 7, updated.CurrentParticipants)
	})

	t.Run("underflow is reported and logged, never clamped", func(t *testing.T) {
		base, hook := test.NewNullLogger()
		a := NewAccountant(observability.FromLogrus(base))
		tr := trek(20, 2)
		seats := newCounterSeats(tr)

		_, err := a.Release(ctx, seats, tr, 3)
		assert.ErrorIs(t, err, domain.ErrInconsistentState)
		assert.Equal(t, 2, seats.treks[tr.ID].CurrentParticipants)

		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, logrus.ErrorLevel, entry.Level)
		assert.Equal(t, 3, entry.Data["requested"])
		assert.Equal(t, 2, entry.Data["current_participants"])
	})
}

func TestAccountant_ConcurrentReservationsNeverOverflow(t *testing.T) {
	ctx := context.Background()
	a := NewAccountant(observability.NewNopLogger())
	tr := trek(20, 0)
	seats := newCounterSeats(tr)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.Reserve(ctx, seats, tr, 3); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, succeeded)
	assert.Equal(t, 18, seats.treks[tr.ID].CurrentParticipants)
}
