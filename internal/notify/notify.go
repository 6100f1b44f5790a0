// Package notify stores user notifications and announces each stored one on
// the event channel.
package notify

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"golang.org/x/sync/errgroup"
)

// ListLimit caps how many notifications a user sees.
const ListLimit = 50

type Store interface {
	Insert(ctx context.Context, items ...domain.Notification) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) (domain.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type Directory interface {
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

type Notifier interface {
	Publish(ctx context.Context, event string, payload any) error
}

type Service struct {
	store    Store
	users    Directory
	notifier Notifier
	logger   observability.Logger
	now      func() time.Time
}

func NewService(store Store, users Directory, notifier Notifier, logger observability.Logger) *Service {
	return &Service{store: store, users: users, notifier: notifier, logger: logger, now: time.Now}
}

func (s *Service) List(ctx context.Context, caller domain.Caller) ([]domain.Notification, error) {
	items, err := s.store.ListForUser(ctx, caller.UserID, ListLimit)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	return items, nil
}

// Create stores one notification for d.UserID, or one per user when it is nil.
func (s *Service) Create(ctx context.Context, caller domain.Caller, d domain.NotificationDraft) ([]domain.Notification, error) {
	if !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	var recipients []uuid.UUID
	if d.UserID != nil {
		recipients = []uuid.UUID{*d.UserID}
	} else {
		ids, err := s.users.ListUserIDs(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "list recipients")
		}
		recipients = ids
	}
	return s.deliver(ctx, recipients, d)
}

// Deliver stores a notification for one user on behalf of the system.
func (s *Service) Deliver(ctx context.Context, userID uuid.UUID, d domain.NotificationDraft) (domain.Notification, error) {
	if err := d.Validate(); err != nil {
		return domain.Notification{}, err
	}
	items, err := s.deliver(ctx, []uuid.UUID{userID}, d)
	if err != nil {
		return domain.Notification{}, err
	}
	return items[0], nil
}

func (s *Service) deliver(ctx context.Context, recipients []uuid.UUID, d domain.NotificationDraft) ([]domain.Notification, error) {
	now := s.now()
	items := make([]domain.Notification, 0, len(recipients))
	for _, id := range recipients {
		items = append(items, domain.NewNotification(id, d, now))
	}
	if len(items) == 0 {
		return items, nil
	}
	if err := s.store.Insert(ctx, items...); err != nil {
		return nil, errors.Wrap(err, "insert notifications")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, n := range items {
		g.Go(func() error {
			ev := domain.NotificationEvent{UserID: n.UserID, Notification: n}
			if err := s.notifier.Publish(gctx, domain.EventNotification, ev); err != nil {
				observability.NotifierPublishFailures.WithLabelValues(domain.EventNotification).Inc()
				s.logger.WithError(err).WithField("user_id", n.UserID).Warn("failed to publish notification")
			}
			return nil
		})
	}
	_ = g.Wait()
	return items, nil
}

func (s *Service) MarkRead(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Notification, error) {
	return s.store.MarkRead(ctx, caller.UserID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, caller domain.Caller) (int64, error) {
	return s.store.MarkAllRead(ctx, caller.UserID)
}

func (s *Service) Delete(ctx context.Context, caller domain.Caller, id uuid.UUID) error {
	return s.store.Delete(ctx, caller.UserID, id)
}
