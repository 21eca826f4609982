package pinstore

import (
	"context"
	"sync"

	"pinworld/internal/model"
)

// Subscription is one live view of the collection. Every value received from
// Snapshots is a complete, ordered snapshot; a slow reader only ever sees the
// newest one.
type Subscription struct {
	out    chan []model.Pin
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once

	mu      sync.Mutex
	loading bool
	err     error
}

// Snapshots is closed after the subscription is torn down.
func (s *Subscription) Snapshots() <-chan []model.Pin {
	return s.out
}

// Loading is true until the first snapshot either arrives or fails.
func (s *Subscription) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last *SubscriptionError, or nil once a later snapshot succeeds.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the subscription and waits for it to release its feed. Extra
// calls are no-ops.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.loading = false
	s.err = err
	s.mu.Unlock()
}

// publish replaces any unread snapshot. Only the run goroutine sends, so the
// buffered slot is free after the drain.
func (s *Subscription) publish(pins []model.Pin) {
	s.mu.Lock()
	s.loading = false
	s.err = nil
	s.mu.Unlock()

	select {
	case <-s.out:
	default:
	}
	s.out <- pins
}
