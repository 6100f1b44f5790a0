package memory

import (
	"context"
	"sync"
	"time"

	"github.com/robertarktes/trek-bookings/internal/idempotency"
)

type Idempotency struct {
	mu     sync.Mutex
	stored map[string]idempotency.Response
	locks  map[string]bool
}

func NewIdempotency() *Idempotency {
	return &Idempotency{stored: map[string]idempotency.Response{}, locks: map[string]bool{}}
}

func (i *Idempotency) Get(_ context.Context, key string) (*idempotency.Response, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	resp, ok := i.stored[key]
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

func (i *Idempotency) Set(_ context.Context, key string, resp idempotency.Response, _ time.Duration) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stored[key] = resp
	return nil
}

func (i *Idempotency) Lock(_ context.Context, key string, _ time.Duration) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.locks[key] {
		return false, nil
	}
	i.locks[key] = true
	return true, nil
}

func (i *Idempotency) Unlock(_ context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.locks, key)
	return nil
}
