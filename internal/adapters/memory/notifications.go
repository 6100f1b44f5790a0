package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/domain"
)

type Notifications struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.Notification
}

func NewNotifications() *Notifications {
	return &Notifications{rows: map[uuid.UUID]domain.Notification{}}
}

func (n *Notifications) Insert(_ context.Context, items ...domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, item := range items {
		n.rows[item.ID] = item
	}
	return nil
}

func (n *Notifications) ListForUser(_ context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := []domain.Notification{}
	for _, row := range n.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (n *Notifications) MarkRead(_ context.Context, userID, id uuid.UUID) (domain.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	row, ok := n.rows[id]
	if !ok || row.UserID != userID {
		return domain.Notification{}, domain.ErrNotFound
	}
	row.Read = true
	n.rows[id] = row
	return row, nil
}

func (n *Notifications) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var changed int64
	for id, row := range n.rows {
		if row.UserID == userID && !row.Read {
			row.Read = true
			n.rows[id] = row
			changed++
		}
	}
	return changed, nil
}

func (n *Notifications) Delete(_ context.Context, userID, id uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	row, ok := n.rows[id]
	if !ok || row.UserID != userID {
		return domain.ErrNotFound
	}
	delete(n.rows, id)
	return nil
}
