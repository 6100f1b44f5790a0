package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/domain"
)

func (s *Store) ListTreks(_ context.Context, f domain.TrekFilter) ([]domain.Trek, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Trek{}
	for _, t := range s.treks {
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.Difficulty != "" && t.Difficulty != f.Difficulty {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Featured != nil && t.Featured != *f.Featured {
			continue
		}
		if f.StartsFrom != nil && t.StartDate.Before(*f.StartsFrom) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (s *Store) GetTrek(_ context.Context, id uuid.UUID) (domain.Trek, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.treks[id]
	if !ok {
		return domain.Trek{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *Store) InsertTrek(_ context.Context, t domain.Trek) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.treks[t.ID]; exists {
		return domain.ErrConflict
	}
	s.treks[t.ID] = t
	return nil
}

func (s *Store) UpdateTrek(_ context.Context, id uuid.UUID, patch domain.TrekPatch) (domain.Trek, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.treks[id]
	if !ok {
		return domain.Trek{}, domain.ErrNotFound
	}
	updated, err := patch.Apply(t)
	if err != nil {
		return domain.Trek{}, err
	}
	s.treks[id] = updated
	return updated, nil
}

func (s *Store) DeleteTrek(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.treks[id]; !ok {
		return domain.ErrNotFound
	}
	for _, b := range s.bookings {
		if b.TrekID == id {
			return domain.ErrConflict
		}
	}
	delete(s.treks, id)
	return nil
}

func (s *Store) StartTreks(_ context.Context, now time.Time) ([]domain.Trek, error) {
	return s.advance(domain.TrekOngoing, func(t domain.Trek) bool {
		return t.Status == domain.TrekUpcoming && !t.StartDate.After(now) && t.EndDate.After(now)
	}), nil
}

func (s *Store) CompleteTreks(_ context.Context, now time.Time) ([]domain.Trek, error) {
	return s.advance(domain.TrekCompleted, func(t domain.Trek) bool {
		return (t.Status == domain.TrekUpcoming || t.Status == domain.TrekOngoing) && !t.EndDate.After(now)
	}), nil
}

func (s *Store) advance(to domain.TrekStatus, match func(domain.Trek) bool) []domain.Trek {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Trek
	for id, t := range s.treks {
		if match(t) {
			t.Status = to
			s.treks[id] = t
			out = append(out, t)
		}
	}
	return out
}

// Content keeps long-form trek content keyed by trek id.
type Content struct {
	mu   sync.Mutex
	docs map[uuid.UUID]domain.TrekContent
}

func NewContent() *Content {
	return &Content{docs: map[uuid.UUID]domain.TrekContent{}}
}

func (c *Content) GetContent(_ context.Context, id uuid.UUID) (domain.TrekContent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.docs[id], nil
}

func (c *Content) PutContent(_ context.Context, id uuid.UUID, content domain.TrekContent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[id] = content
	return nil
}

func (c *Content) DeleteContent(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, id)
	return nil
}
