// Package memory holds in-process adapters for the persistence and notifier
// ports. Statements are individually atomic and transactions are undone on
// error, which mirrors read-committed SQL closely enough for unit tests.
package memory

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/ledger"
)

type Store struct {
	mu       sync.Mutex
	treks    map[uuid.UUID]domain.Trek
	bookings map[uuid.UUID]domain.Booking
	users    map[uuid.UUID]domain.User
	seq      map[uuid.UUID]int
	next     int
	rowLocks map[uuid.UUID]*sync.Mutex

	// FailInsertBooking, when set, is returned by every booking insert.
	FailInsertBooking error
}

func NewStore() *Store {
	return &Store{
		treks:    map[uuid.UUID]domain.Trek{},
		bookings: map[uuid.UUID]domain.Booking{},
		users:    map[uuid.UUID]domain.User{},
		seq:      map[uuid.UUID]int{},
		rowLocks: map[uuid.UUID]*sync.Mutex{},
	}
}

// PutTrek stores t as is, participant counter included.
func (s *Store) PutTrek(t domain.Trek) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.treks[t.ID] = t
}

func (s *Store) PutBooking(b domain.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putBooking(b)
}

func (s *Store) putBooking(b domain.Booking) {
	if _, ok := s.seq[b.ID]; !ok {
		s.next++
		s.seq[b.ID] = s.next
	}
	s.bookings[b.ID] = b
}

func (s *Store) Trek(id uuid.UUID) domain.Trek {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.treks[id]
}

func (s *Store) Booking(id uuid.UUID) (domain.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	return b, ok
}

func (s *Store) BookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	t := &tx{store: s}
	err := fn(t)
	if err != nil {
		t.rollback()
	}
	t.unlock()
	return err
}

func (s *Store) GetBookingView(_ context.Context, id uuid.UUID, withUser bool) (domain.BookingView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.BookingView{}, domain.ErrNotFound
	}
	return s.view(b, withUser, true), nil
}

func (s *Store) ListBookings(_ context.Context, q domain.BookingQuery) ([]domain.BookingView, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.Booking
	for _, b := range s.bookings {
		if q.UserID != nil && b.UserID != *q.UserID {
			continue
		}
		matched = append(matched, b)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return s.seq[matched[i].ID] > s.seq[matched[j].ID]
	})

	total := len(matched)
	start := min(q.Offset, total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}

	views := make([]domain.BookingView, 0, end-start)
	for _, b := range matched[start:end] {
		views = append(views, s.view(b, q.WithUser, q.WithImages))
	}
	return views, total, nil
}

func (s *Store) ListBookingIDs(_ context.Context, trekID uuid.UUID, status domain.BookingStatus) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for _, b := range s.bookings {
		if b.TrekID == trekID && b.Status == status {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

func (s *Store) view(b domain.Booking, withUser, withImages bool) domain.BookingView {
	v := domain.BookingView{Booking: b, Trek: s.treks[b.TrekID].Summary(withImages)}
	if withUser {
		if u, ok := s.users[b.UserID]; ok {
			v.User = &domain.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
		}
	}
	return v
}

func (s *Store) rowLock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[id] = l
	}
	return l
}

type tx struct {
	store *Store
	undo  []func()
	held  []*sync.Mutex
}

func (t *tx) GetTrek(_ context.Context, id uuid.UUID) (domain.Trek, error) {
	t.store.mu.Lock()
	tr, ok := t.store.treks[id]
	t.store.mu.Unlock()
	// let concurrent transactions interleave between read and write
	runtime.Gosched()
	if !ok {
		return domain.Trek{}, domain.ErrNotFound
	}
	return tr, nil
}

func (t *tx) IncrementParticipants(_ context.Context, id uuid.UUID, n int) (domain.Trek, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.treks[id]
	if !ok {
		return domain.Trek{}, domain.ErrNotFound
	}
	if tr.CurrentParticipants+n > tr.MaxParticipants {
		return tr, domain.ErrCapacityExceeded
	}
	tr.CurrentParticipants += n
	s.treks[id] = tr
	t.undo = append(t.undo, func() { t.adjust(id, -n) })
	return tr, nil
}

func (t *tx) DecrementParticipants(_ context.Context, id uuid.UUID, n int) (domain.Trek, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.treks[id]
	if !ok {
		return domain.Trek{}, domain.ErrNotFound
	}
	if tr.CurrentParticipants < n {
		return tr, domain.ErrInconsistentState
	}
	tr.CurrentParticipants -= n
	s.treks[id] = tr
	t.undo = append(t.undo, func() { t.adjust(id, n) })
	return tr, nil
}

func (t *tx) adjust(id uuid.UUID, delta int) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	tr := s.treks[id]
	tr.CurrentParticipants += delta
	s.treks[id] = tr
}

func (t *tx) InsertBooking(_ context.Context, b domain.Booking) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInsertBooking != nil {
		return s.FailInsertBooking
	}
	if _, exists := s.bookings[b.ID]; exists {
		return domain.ErrConflict
	}
	s.putBooking(b)
	t.undo = append(t.undo, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.bookings, b.ID)
	})
	return nil
}

func (t *tx) LockBooking(_ context.Context, id uuid.UUID) (domain.Booking, error) {
	l := t.store.rowLock(id)
	l.Lock()
	t.held = append(t.held, l)

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	b, ok := t.store.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

func (t *tx) UpdateBooking(_ context.Context, b domain.Booking) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.bookings[b.ID]
	if !ok {
		return domain.ErrNotFound
	}
	s.bookings[b.ID] = b
	t.undo = append(t.undo, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.bookings[b.ID] = prev
	})
	return nil
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) unlock() {
	for _, l := range t.held {
		l.Unlock()
	}
	t.held = nil
}
