// Package idempotency replays the first successful response recorded under
// an Idempotency-Key instead of executing the request again.
package idempotency

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/robertarktes/trek-bookings/internal/observability"
)

const (
	Header    = "Idempotency-Key"
	MinKeyLen = 16
	lockTTL   = 30 * time.Second
)

type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Result      []byte `json:"result"`
}

type Store interface {
	Get(ctx context.Context, key string) (*Response, error)
	Set(ctx context.Context, key string, resp Response, ttl time.Duration) error
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Idempotency struct {
	store  Store
	ttl    time.Duration
	logger observability.Logger
}

func NewIdempotency(store Store, ttl time.Duration, logger observability.Logger) *Idempotency {
	return &Idempotency{store: store, ttl: ttl, logger: logger}
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	return i.store.Get(ctx, key)
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	return i.store.Set(ctx, key, resp, i.ttl)
}

// Middleware requires the header on every request it wraps. scope namespaces
// keys, typically by caller, so two users never share a replay.
func (i *Idempotency) Middleware(scope func(r *http.Request) string, reject func(w http.ResponseWriter, status int, msg string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(Header)
			if raw == "" {
				reject(w, http.StatusBadRequest, "missing Idempotency-Key")
				return
			}
			if len(raw) < MinKeyLen {
				reject(w, http.StatusBadRequest, "invalid Idempotency-Key")
				return
			}
			key := scope(r) + ":" + raw
			ctx := r.Context()
			log := i.logger.WithField("idempotency_key", raw)

			if i.replayed(w, r, key, log) {
				return
			}

			locked, err := i.store.Lock(ctx, key, lockTTL)
			if err != nil {
				log.WithError(err).Warn("idempotency lock failed")
			} else if !locked {
				reject(w, http.StatusConflict, "a request with this Idempotency-Key is in progress")
				return
			} else {
				defer func() {
					if err := i.store.Unlock(context.WithoutCancel(ctx), key); err != nil {
						log.WithError(err).Warn("idempotency unlock failed")
					}
				}()
				// A request holding the lock may have finished between the
				// lookup and the lock.
				if i.replayed(w, r, key, log) {
					return
				}
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status < 200 || rec.status >= 300 {
				return
			}
			resp := Response{Status: rec.status, ContentType: rec.Header().Get("Content-Type"), Result: rec.body.Bytes()}
			if err := i.Set(context.WithoutCancel(ctx), key, resp); err != nil {
				log.WithError(err).Warn("failed to store idempotent response")
			}
		})
	}
}

func (i *Idempotency) replayed(w http.ResponseWriter, r *http.Request, key string, log observability.Logger) bool {
	prev, err := i.store.Get(r.Context(), key)
	if err != nil {
		log.WithError(err).Warn("idempotency lookup failed")
		return false
	}
	if prev == nil {
		return false
	}
	observability.IdempotentReplays.Inc()
	replay(w, prev)
	return true
}

func replay(w http.ResponseWriter, resp *Response) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Result)
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
