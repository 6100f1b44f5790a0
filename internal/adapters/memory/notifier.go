package memory

import (
	"context"
	"sync"
)

type Event struct {
	Name    string
	Payload any
}

// Notifier records published events. A non-nil Err is returned from Publish
// after the event is recorded.
type Notifier struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (n *Notifier) Publish(_ context.Context, event string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, Event{Name: event, Payload: payload})
	return n.Err
}

func (n *Notifier) Events() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

func (n *Notifier) Names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	names := make([]string, 0, len(n.events))
	for _, e := range n.events {
		names = append(names, e.Name)
	}
	return names
}
