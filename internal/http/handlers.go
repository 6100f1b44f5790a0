package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/catalog"
	"github.com/robertarktes/trek-bookings/internal/domain"
	"github.com/robertarktes/trek-bookings/internal/ledger"
	"github.com/robertarktes/trek-bookings/internal/notify"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"golang.org/x/sync/errgroup"
)

const maxPageLimit = 100

type UserStore interface {
	EnsureUser(ctx context.Context, u domain.User) error
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type InquiryStore interface {
	Insert(ctx context.Context, inq domain.Inquiry) error
}

// Check is one readiness probe, e.g. a database ping.
type Check func(ctx context.Context) error

type Deps struct {
	Ledger        *ledger.Ledger
	Catalog       *catalog.Service
	Notifications *notify.Service
	Users         UserStore
	Inquiries     InquiryStore
	Checks        map[string]Check
	Logger        observability.Logger
}

type Handlers struct {
	ledger        *ledger.Ledger
	catalog       *catalog.Service
	notifications *notify.Service
	users         UserStore
	inquiries     InquiryStore
	checks        map[string]Check
	logger        observability.Logger
	validate      *validator.Validate
	now           func() time.Time
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		ledger:        d.Ledger,
		catalog:       d.Catalog,
		notifications: d.Notifications,
		users:         d.Users,
		inquiries:     d.Inquiries,
		checks:        d.Checks,
		logger:        d.Logger,
		validate:      newValidator(),
		now:           time.Now,
	}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz runs every dependency check concurrently.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for name, check := range h.checks {
		g.Go(func() error {
			if err := check(gctx); err != nil {
				loggerFrom(r.Context(), h.logger).WithError(err).WithField("dependency", name).Warn("readiness check failed")
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *Handlers) caller(r *http.Request) domain.Caller {
	id, _ := identityFrom(r.Context())
	return id.Caller
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// pageRequest reads ?page=&limit=. Without limit the whole set is returned.
func pageRequest(w http.ResponseWriter, r *http.Request) (domain.PageRequest, bool) {
	var p domain.PageRequest
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageLimit {
			fail(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxPageLimit))
			return p, false
		}
		p.Limit = n
	}
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fail(w, http.StatusBadRequest, "page must be a positive integer")
			return p, false
		}
		p.Page = n
	}
	return p, true
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	okList(w, users, len(users))
}
