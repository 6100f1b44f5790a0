// Package catalog serves and administers trek listings. Reads are cached by
// generation: every write and every seat change bumps the generation so stale
// entries are never served again.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"golang.org/x/sync/errgroup"
)

const generationKey = "catalog:gen"

type TrekStore interface {
	ListTreks(ctx context.Context, f domain.TrekFilter) ([]domain.Trek, error)
	GetTrek(ctx context.Context, id uuid.UUID) (domain.Trek, error)
	InsertTrek(ctx context.Context, t domain.Trek) error
	// UpdateTrek applies the patch under a row lock so the capacity check
	// sees the committed participant count.
	UpdateTrek(ctx context.Context, id uuid.UUID, patch domain.TrekPatch) (domain.Trek, error)
	// DeleteTrek fails with domain.ErrConflict while bookings reference the trek.
	DeleteTrek(ctx context.Context, id uuid.UUID) error
}

type ContentStore interface {
	GetContent(ctx context.Context, id uuid.UUID) (domain.TrekContent, error)
	PutContent(ctx context.Context, id uuid.UUID, c domain.TrekContent) error
	DeleteContent(ctx context.Context, id uuid.UUID) error
}

// Cache returns a nil value on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

type Notifier interface {
	Publish(ctx context.Context, event string, payload any) error
}

type Service struct {
	treks    TrekStore
	content  ContentStore
	cache    Cache
	ttl      time.Duration
	notifier Notifier
	logger   observability.Logger
	now      func() time.Time
}

func NewService(treks TrekStore, content ContentStore, cache Cache, ttl time.Duration, notifier Notifier, logger observability.Logger) *Service {
	return &Service{
		treks:    treks,
		content:  content,
		cache:    cache,
		ttl:      ttl,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) List(ctx context.Context, f domain.TrekFilter) ([]domain.Trek, error) {
	key := s.key(ctx, "list", filterKey(f))
	var treks []domain.Trek
	if s.cached(ctx, key, &treks) {
		return treks, nil
	}

	treks, err := s.treks.ListTreks(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list treks")
	}
	s.store(ctx, key, treks)
	return treks, nil
}

// Upcoming lists treks with status upcoming that have not started yet.
func (s *Service) Upcoming(ctx context.Context) ([]domain.Trek, error) {
	from := s.now().UTC().Truncate(time.Minute)
	return s.List(ctx, domain.TrekFilter{Status: domain.TrekUpcoming, StartsFrom: &from})
}

// Get returns the trek row merged with its long-form content.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.TrekDetail, error) {
	key := s.key(ctx, "trek", id.String())
	var detail domain.TrekDetail
	if s.cached(ctx, key, &detail) {
		return detail, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.treks.GetTrek(gctx, id)
		detail.Trek = t
		return err
	})
	g.Go(func() error {
		c, err := s.content.GetContent(gctx, id)
		if err != nil {
			return errors.Wrap(err, "get trek content")
		}
		detail.TrekContent = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.TrekDetail{}, err
	}

	s.store(ctx, key, detail)
	return detail, nil
}

func (s *Service) Create(ctx context.Context, caller domain.Caller, d domain.TrekDraft) (domain.TrekDetail, error) {
	if !caller.IsAdmin() {
		return domain.TrekDetail{}, domain.ErrForbidden
	}
	t, err := domain.NewTrek(d, s.now())
	if err != nil {
		return domain.TrekDetail{}, err
	}

	if err := s.treks.InsertTrek(ctx, t); err != nil {
		return domain.TrekDetail{}, errors.Wrap(err, "insert trek")
	}
	if err := s.content.PutContent(ctx, t.ID, d.Content); err != nil {
		s.logger.WithError(err).WithField("trek_id", t.ID).Error("failed to store trek content")
	}

	s.changed(ctx, domain.EventNewTrek, t)
	return domain.TrekDetail{Trek: t, TrekContent: d.Content}, nil
}

func (s *Service) Update(ctx context.Context, caller domain.Caller, id uuid.UUID, patch domain.TrekPatch) (domain.TrekDetail, error) {
	if !caller.IsAdmin() {
		return domain.TrekDetail{}, domain.ErrForbidden
	}
	t, err := s.treks.UpdateTrek(ctx, id, patch)
	if err != nil {
		return domain.TrekDetail{}, err
	}

	detail := domain.TrekDetail{Trek: t}
	if patch.Content != nil {
		if err := s.content.PutContent(ctx, id, *patch.Content); err != nil {
			return domain.TrekDetail{}, errors.Wrap(err, "put trek content")
		}
		detail.TrekContent = *patch.Content
	} else if detail.TrekContent, err = s.content.GetContent(ctx, id); err != nil {
		return domain.TrekDetail{}, errors.Wrap(err, "get trek content")
	}

	s.changed(ctx, domain.EventTrekUpdated, t)
	return detail, nil
}

func (s *Service) Delete(ctx context.Context, caller domain.Caller, id uuid.UUID) error {
	if !caller.IsAdmin() {
		return domain.ErrForbidden
	}
	if err := s.treks.DeleteTrek(ctx, id); err != nil {
		return err
	}
	if err := s.content.DeleteContent(ctx, id); err != nil {
		s.logger.WithError(err).WithField("trek_id", id).Warn("failed to delete trek content")
	}
	s.bump(ctx)
	return nil
}

// InvalidateTrek drops every cached read after a seat change on the trek.
func (s *Service) InvalidateTrek(ctx context.Context, id uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	_, err := s.cache.Incr(ctx, generationKey)
	return errors.Wrapf(err, "invalidate trek %s", id)
}

// Publish announces a trek change made outside the service, e.g. by the status worker.
func (s *Service) Publish(ctx context.Context, event string, t domain.Trek) {
	s.changed(ctx, event, t)
}

func (s *Service) changed(ctx context.Context, event string, t domain.Trek) {
	s.bump(ctx)
	if err := s.notifier.Publish(ctx, event, t); err != nil {
		observability.NotifierPublishFailures.WithLabelValues(event).Inc()
		s.logger.WithError(err).WithField("trek_id", t.ID).Warn("failed to publish trek event")
	}
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Incr(ctx, generationKey); err != nil {
		s.logger.WithError(err).Warn("failed to bump catalog generation")
	}
}

func (s *Service) key(ctx context.Context, kind, id string) string {
	if s.cache == nil {
		return ""
	}
	gen := "0"
	if v, err := s.cache.Get(ctx, generationKey); err == nil && v != nil {
		gen = string(v)
	}
	return fmt.Sprintf("catalog:%s:%s:%s", gen, kind, id)
}

func (s *Service) cached(ctx context.Context, key string, dst any) bool {
	if key == "" {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).Debug("catalog cache read failed")
		return false
	}
	if raw == nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (s *Service) store(ctx context.Context, key string, v any) {
	if key == "" {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.WithError(err).Debug("catalog cache write failed")
	}
}

func filterKey(f domain.TrekFilter) string {
	featured := "-"
	if f.Featured != nil {
		featured = strconv.FormatBool(*f.Featured)
	}
	from := "-"
	if f.StartsFrom != nil {
		from = strconv.FormatInt(f.StartsFrom.Unix(), 10)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s", f.Type, f.Difficulty, f.Status, featured, from)
}
