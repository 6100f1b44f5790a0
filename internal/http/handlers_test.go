package http_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/trek-bookings/internal/adapters/memory"
	"github.com/robertarktes/trek-bookings/internal/auth"
	"github.com/robertarktes/trek-bookings/internal/capacity"
	"github.com/robertarktes/trek-bookings/internal/catalog"
	"github.com/robertarktes/trek-bookings/internal/domain"
	httphandler "github.com/robertarktes/trek-bookings/internal/http"
	"github.com/robertarktes/trek-bookings/internal/idempotency"
	"github.com/robertarktes/trek-bookings/internal/ledger"
	"github.com/robertarktes/trek-bookings/internal/notify"
	"github.com/robertarktes/trek-bookings/internal/observability"
	"github.com/robertarktes/trek-bookings/internal/rateLimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inquiries struct {
	mu    sync.Mutex
	items []domain.Inquiry
}

func (i *inquiries) Insert(_ context.Context, inq domain.Inquiry) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = append(i.items, inq)
	return nil
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Total   *int            `json:"total"`
	Message string          `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

type server struct {
	t         *testing.T
	handler   http.Handler
	store     *memory.Store
	notifier  *memory.Notifier
	inquiries *inquiries
	signer    *auth.Signer
	admin     domain.User
	alice     domain.User
	bob       domain.User
}

func newServer(t *testing.T, limits httphandler.RateLimits) *server {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	verifier, err := auth.NewVerifier(string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})))
	require.NoError(t, err)

	logger := observability.NewNopLogger()
	store := memory.NewStore()
	notifier := &memory.Notifier{}
	cache := memory.NewCache()
	treks := catalog.NewService(store, memory.NewContent(), cache, time.Minute, notifier, logger)
	bookings := ledger.New(store, capacity.NewAccountant(logger), notifier, logger, ledger.WithTrekCache(treks))
	inq := &inquiries{}

	h := httphandler.NewHandlers(httphandler.Deps{
		Ledger:        bookings,
		Catalog:       treks,
		Notifications: notify.NewService(memory.NewNotifications(), store, notifier, logger),
		Users:         store,
		Inquiries:     inq,
		Checks: map[string]httphandler.Check{
			"memory": func(context.Context) error { return nil },
		},
		Logger: logger,
	})
	idemp := idempotency.NewIdempotency(memory.NewIdempotency(), time.Hour, logger)
	router := httphandler.SetupRouter(h, logger, verifier, rateLimit.NewRateLimiter(cache), limits, idemp)

	s := &server{
		t:         t,
		handler:   router,
		store:     store,
		notifier:  notifier,
		inquiries: inq,
		signer:    auth.NewSigner(key, time.Hour),
		admin:     domain.User{ID: uuid.New(), Name: "Admin", Email: "admin@example.com", Role: domain.RoleAdmin},
		alice:     domain.User{ID: uuid.New(), Name: "Alice", Email: "alice@example.com", Role: domain.RoleUser},
		bob:       domain.User{ID: uuid.New(), Name: "Bob", Email: "bob@example.com", Role: domain.RoleUser},
	}
	require.NoError(t, store.EnsureUser(context.Background(), s.alice))
	require.NoError(t, store.EnsureUser(context.Background(), s.bob))
	return s
}

func generous() httphandler.RateLimits {
	return httphandler.RateLimits{PerUser: 1000, PerIP: 1000, Window: time.Minute}
}

type call struct {
	method string
	path   string
	body   any
	as     *domain.User
	header map[string]string
}

func (s *server) do(c call) (*httptest.ResponseRecorder, response) {
	s.t.Helper()
	var body bytes.Buffer
	if c.body != nil {
		require.NoError(s.t, json.NewEncoder(&body).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if c.as != nil {
		token, err := s.signer.Sign(*c.as)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var resp response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func (s *server) createTrek(max int) domain.Trek {
	s.t.Helper()
	start := time.Now().AddDate(0, 1, 0).UTC().Truncate(time.Second)
	rec, resp := s.do(call{method: http.MethodPost, path: "/v1/treks", as: &s.admin, body: map[string]any{
		"title":           "Manaslu Circuit",
		"description":     "Remote circuit around the eighth highest peak.",
		"duration":        "14 days",
		"price":           "1250.50",
		"location":        "Gorkha, Nepal",
		"startDate":       start,
		"endDate":         start.AddDate(0, 0, 14),
		"maxParticipants": max,
		"highlights":      []string{"Larkya La pass"},
	}})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var trek domain.Trek
	require.NoError(s.t, json.Unmarshal(resp.Data, &trek))
	return trek
}

func bookingBody(trekID uuid.UUID, people int) map[string]any {
	return map[string]any{
		"trek":           trekID.String(),
		"numberOfPeople": people,
		"emergencyContact": map[string]string{
			"name":     "Dawa",
			"phone":    "+977-98-0000000",
			"relation": "brother",
		},
	}
}

func (s *server) book(as *domain.User, trekID uuid.UUID, people int) (*httptest.ResponseRecorder, response) {
	return s.do(call{
		method: http.MethodPost,
		path:   "/v1/bookings",
		as:     as,
		body:   bookingBody(trekID, people),
		header: map[string]string{idempotency.Header: uuid.NewString()},
	})
}

func TestHealth(t *testing.T) {
	s := newServer(t, generous())

	rec, _ := s.do(call{method: http.MethodGet, path: "/v1/healthz"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(call{method: http.MethodGet, path: "/v1/readyz"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTreks_PublicReadAdminWrite(t *testing.T) {
	s := newServer(t, generous())
	trek := s.createTrek(12)

	rec, resp := s.do(call{method: http.MethodGet, path: "/v1/treks/" + trek.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	var detail domain.TrekDetail
	require.NoError(t, json.Unmarshal(resp.Data, &detail))
	assert.Equal(t, "Manaslu Circuit", detail.Title)
	assert.Equal(t, []string{"Larkya La pass"}, detail.Highlights)
	assert.Equal(t, "1250.5", detail.Price.String())

	rec, resp = s.do(call{method: http.MethodGet, path: "/v1/treks/upcoming"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, *resp.Count)

	rec, _ = s.do(call{method: http.MethodPost, path: "/v1/treks", as: &s.alice, body: map[string]any{"title": "x"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(call{method: http.MethodPost, path: "/v1/treks", body: map[string]any{"title": "x"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(call{method: http.MethodGet, path: "/v1/treks?featured=maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTreks_CreateValidation(t *testing.T) {
	s := newServer(t, generous())

	rec, resp := s.do(call{method: http.MethodPost, path: "/v1/treks", as: &s.admin, body: map[string]any{
		"title": "No dates", "type": "cruise",
	}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	fields := map[string]bool{}
	for _, e := range resp.Errors {
		fields[e.Field] = true
	}
	assert.True(t, fields["type"])
	assert.True(t, fields["description"])
}

func TestTreks_UpdateCannotShrinkBelowParticipants(t *testing.T) {
	s := newServer(t, generous())
	trek := s.createTrek(10)

	rec, _ := s.book(&s.alice, trek.ID, 6)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := s.do(call{method: http.MethodPut, path: "/v1/treks/" + trek.ID.String(), as: &s.admin, body: map[string]any{"maxParticipants": 5}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Message, "maxParticipants")

	rec, _ = s.do(call{method: http.MethodDelete, path: "/v1/treks/" + trek.ID.String(), as: &s.admin})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBookings_CreateReservesSeats(t *testing.T) {
	s := newServer(t, generous())
	trek := s.createTrek(10)

	rec, resp := s.book(&s.alice, trek.ID, 3)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b domain.Booking
	require.NoError(t, json.Unmarshal(resp.Data, &b))
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, "3751.5", b.TotalAmount.String())
	assert.Equal(t, s.alice.ID, b.UserID)

	rec, resp = s.do(call{method: http.MethodGet, path: "/v1/treks/" + trek.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	var detail domain.TrekDetail
	require.NoError(t, json.Unmarshal(resp.Data, &detail))
	assert.Equal(t, 3, detail.CurrentParticipants)
	assert.Contains(t, s.notifier.Names(), domain.EventNewBooking)
}

func TestBookings_CapacityAndValidation(t *testing.T) {
	s := newServer(t, generous())
	trek := s.createTrek(4)

	rec, _ := s.book(&s.alice, trek.ID, 5)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.book(&s.alice, trek.ID, 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.book(&s.alice, uuid.New(), 1)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp := s.do(call{
		method: http.MethodPost, path: "/v1/bookings", as: &s.alice,
		body:   map[string]any{"trek": "not-a-uuid", "numberOfPeople": 1},
		header: map[string]string{idempotency.Header: uuid.NewString()},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, "trek", resp.Errors[0].Field)

	rec, _ = s.do(call{method: http.MethodPost, path: "/v1/bookings", body: bookingBody(trek.ID, 1),
		header: map[string]string{idempotency.Header: uuid.NewString()}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	bad := httptest.NewRecorder()
	s.handler.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}

func TestBookings_IdempotentReplay(t *testing.T) {
	s := newServer(t, generous())
	trek := s.createTrek(10)
	key := map[string]string{idempotency.Header: "5a8c6a1e-retry-from-mobile"}

	first, _ := s.do(call{method: http.MethodPost, path: "/v1/bookings", as: &s.alice, body: bookingBody(trek.ID, 2), header: key})
	second, _ := s.do(call{method: http.MethodPost, path: "/v1/bookings", as: &s.alice, body: bookingBody(trek.ID, 2), header: key})

	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, s.store.BookingCount())
	assert.Equal(t, 2, s.store.Trek(trek.ID).CurrentParticipants)

	rec, _ := s.do(call{method: http.MethodPost, path: "/v1/bookings", as: &s.alice, body: bookingBody(trek.ID, 2)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookings_OwnershipAndCancel(t *testing.T) {
	s := newServer(t, generous())
	trek := s.createTrek(10)

	_, resp := s.book(&s.alice, trek.ID, 4)
	var b domain.Booking
	require.NoError(t, json.Unmarshal(resp.Data, &b))
	path := "/v1/bookings/" + b.ID.String()

	rec, _ := s.do(call{method: http.MethodGet, path: path, as: &s.bob})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(call{method: http.MethodGet, path: path, as: &s.admin})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(call{method: http.MethodDelete, path: path, as: &s.bob})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(call{method: http.MethodPut, path: path, as: &s.alice, body: map[string]string{"status": "confirmed"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = s.do(call{method: http.MethodDelete, path: path, as: &s.alice})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "booking cancelled", resp.Message)
	assert.Equal(t, 0, s.store.Trek(trek.ID).CurrentParticipants)

	rec, _ = s.do(call{method: http.MethodDelete, path: path, as: &s.alice})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 0, s.store.Trek(trek.ID).CurrentParticipants)

	rec, _ = s.do(call{method: http.MethodGet, path: "/v1/bookings/" + uuid.NewString(), as: &s.alice})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(call{method: http.MethodGet, path: "/v1/bookings/nope", as: &s.alice})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookings_AdminStatusUpdate(t *testing.T) {
	s := newServer(t, generous())
	trek := s.createTrek(10)
	_, resp := s.book(&s.alice, trek.ID, 2)
	var b domain.Booking
	require.NoError(t, json.Unmarshal(resp.Data, &b))
	path := "/v1/bookings/" + b.ID.String()

	rec, resp := s.do(call{method: http.MethodPut, path: path, as: &s.admin, body: map[string]string{"status": "confirmed", "paymentStatus": "paid"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &b))
	assert.Equal(t, domain.BookingConfirmed, b.Status)
	assert.Equal(t, domain.PaymentPaid, b.PaymentStatus)

	rec, _ = s.do(call{method: http.MethodPut, path: path, as: &s.admin, body: map[string]string{"status": "pending"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.do(call{method: http.MethodPut, path: path, as: &s.admin, body: map[string]string{"status": "lost"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookings_ListScopedToCaller(t *testing.T) {
	s := newServer(t, generous())
	trek := s.createTrek(20)
	for i := 0; i < 3; i++ {
		rec, _ := s.book(&s.alice, trek.ID, 1)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec, _ := s.book(&s.bob, trek.ID, 1)
	require.Equal(t, http.StatusCreated, rec.Code)

	_, resp := s.do(call{method: http.MethodGet, path: "/v1/bookings", as: &s.alice})
	assert.Equal(t, 3, *resp.Count)

	_, resp = s.do(call{method: http.MethodGet, path: "/v1/bookings?limit=2&page=2", as: &s.admin})
	assert.Equal(t, 2, *resp.Count)
	assert.Equal(t, 4, *resp.Total)

	rec, _ = s.do(call{method: http.MethodGet, path: "/v1/bookings?limit=500", as: &s.admin})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotifications(t *testing.T) {
	s := newServer(t, generous())

	rec, _ := s.do(call{method: http.MethodPost, path: "/v1/notifications", as: &s.alice, body: map[string]string{"title": "t", "message": "m"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := s.do(call{method: http.MethodPost, path: "/v1/notifications", as: &s.admin, body: map[string]string{
		"title": "Monsoon update", "message": "Trails reopen next week", "type": "announcement",
	}})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, *resp.Count)

	rec, resp = s.do(call{method: http.MethodPost, path: "/v1/notifications", as: &s.admin, body: map[string]string{
		"user": s.alice.ID.String(), "title": "Reminder", "message": "Pack layers", "type": "reminder",
	}})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, *resp.Count)

	_, resp = s.do(call{method: http.MethodGet, path: "/v1/notifications", as: &s.alice})
	require.Equal(t, 2, *resp.Count)
	var items []domain.Notification
	require.NoError(t, json.Unmarshal(resp.Data, &items))

	rec, _ = s.do(call{method: http.MethodPut, path: "/v1/notifications/" + items[0].ID.String() + "/read", as: &s.bob})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = s.do(call{method: http.MethodPut, path: "/v1/notifications/" + items[0].ID.String() + "/read", as: &s.alice})
	require.Equal(t, http.StatusOK, rec.Code)
	var n domain.Notification
	require.NoError(t, json.Unmarshal(resp.Data, &n))
	assert.True(t, n.Read)

	rec, _ = s.do(call{method: http.MethodPut, path: "/v1/notifications/read-all", as: &s.alice})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(call{method: http.MethodDelete, path: "/v1/notifications/" + items[1].ID.String(), as: &s.alice})
	assert.Equal(t, http.StatusOK, rec.Code)

	_, resp = s.do(call{method: http.MethodGet, path: "/v1/notifications", as: &s.alice})
	assert.Equal(t, 1, *resp.Count)
}

func TestContact(t *testing.T) {
	s := newServer(t, generous())

	rec, resp := s.do(call{method: http.MethodPost, path: "/v1/contact", body: map[string]string{"name": "Sam", "email": "nope", "message": "hi"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "email", resp.Errors[0].Field)
	assert.Equal(t, "invalid email format", resp.Errors[0].Message)

	rec, _ = s.do(call{method: http.MethodPost, path: "/v1/contact", body: map[string]string{"name": "Sam", "email": "Sam@Example.com", "message": "Do you run treks in winter?"}})
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, s.inquiries.items, 1)
	assert.Equal(t, "sam@example.com", s.inquiries.items[0].Email)
}

func TestUsers_AdminOnly(t *testing.T) {
	s := newServer(t, generous())

	rec, _ := s.do(call{method: http.MethodGet, path: "/v1/users", as: &s.alice})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := s.do(call{method: http.MethodGet, path: "/v1/users", as: &s.admin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, *resp.Count)
}

func TestRateLimit(t *testing.T) {
	s := newServer(t, httphandler.RateLimits{PerUser: 1000, PerIP: 2, Window: time.Minute})

	for i := 0; i < 2; i++ {
		rec, _ := s.do(call{method: http.MethodGet, path: "/v1/treks"})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, resp := s.do(call{method: http.MethodGet, path: "/v1/treks"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", resp.Message)

	rec, _ = s.do(call{method: http.MethodGet, path: "/v1/treks", as: &s.alice})
	assert.Equal(t, http.StatusOK, rec.Code)
}
