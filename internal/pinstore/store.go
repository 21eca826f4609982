// Package pinstore keeps a live, ordered mirror of the remote pin collection
// and writes to it. Writes never touch local state: their effect arrives
// through the next snapshot like any other client's change.
package pinstore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pinworld/internal/apperror"
	"pinworld/internal/feed"
	"pinworld/internal/model"
	"pinworld/internal/repository"
)

// Store is a process-scoped handle; construct one per collection and share it.
type Store struct {
	repo repository.PinRepository
	feed feed.ChangeFeed
	log  *zap.Logger
	now  func() time.Time
}

// New wires a store to its collection and change feed.
func New(repo repository.PinRepository, changes feed.ChangeFeed, log *zap.Logger) *Store {
	return &Store{
		repo: repo,
		feed: changes,
		log:  log.Named("pinstore"),
		now:  time.Now,
	}
}

// AddPin writes a new pin and returns its store-assigned id. Any id,
// createdAt or updatedAt in fields is discarded; createdAt is set to now.
func (s *Store) AddPin(ctx context.Context, fields model.Fields) (string, error) {
	data, err := fields.Clean()
	if err != nil {
		return "", &WriteError{Op: "add", Err: apperror.Validation("fields", err.Error())}
	}

	id, err := s.repo.Insert(ctx, data, model.Timestamp(s.now()))
	if err != nil {
		s.log.Error("pin_add_failed", zap.Error(err))
		return "", &WriteError{Op: "add", Err: err}
	}
	return id, nil
}

// UpdatePin merges fields into an existing pin and stamps updatedAt.
// createdAt is never changed. An empty id is logged and ignored.
func (s *Store) UpdatePin(ctx context.Context, id string, fields model.Fields) error {
	if id == "" {
		s.log.Warn("pin_update_skipped", zap.String("reason", "missing id"))
		return nil
	}
	data, err := fields.Clean()
	if err != nil {
		return &WriteError{Op: "update", ID: id, Err: apperror.Validation("fields", err.Error())}
	}

	if err := s.repo.Merge(ctx, id, data, model.Timestamp(s.now())); err != nil {
		s.log.Error("pin_update_failed", zap.String("pin_id", id), zap.Error(err))
		return &WriteError{Op: "update", ID: id, Err: err}
	}
	return nil
}

// DeletePin removes a pin. An empty id is logged and ignored.
func (s *Store) DeletePin(ctx context.Context, id string) error {
	if id == "" {
		s.log.Warn("pin_delete_skipped", zap.String("reason", "missing id"))
		return nil
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.log.Error("pin_delete_failed", zap.String("pin_id", id), zap.Error(err))
		return &WriteError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

// Subscribe starts a live view of the whole collection ordered by createdAt
// descending. The caller must Close the subscription exactly once when done;
// ending ctx has the same effect.
func (s *Store) Subscribe(ctx context.Context) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		out:     make(chan []model.Pin, 1),
		done:    make(chan struct{}),
		cancel:  cancel,
		loading: true,
	}
	// Watch before the first read. A feed that is not listening yet when the
	// read runs must send a resync once it is.
	events := s.feed.Watch(ctx)
	go s.run(ctx, sub, events)
	return sub
}

func (s *Store) run(ctx context.Context, sub *Subscription, events <-chan feed.Event) {
	defer close(sub.done)
	defer close(sub.out)

	s.refresh(ctx, sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Err != nil {
				s.log.Error("pin_subscription_error", zap.Error(ev.Err))
				sub.fail(&SubscriptionError{Err: ev.Err})
				continue
			}
			s.refresh(ctx, sub)
		}
	}
}

func (s *Store) refresh(ctx context.Context, sub *Subscription) {
	pins, err := s.repo.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("pin_snapshot_failed", zap.Error(err))
		sub.fail(&SubscriptionError{Err: err})
		return
	}
	for i := range pins {
		delete(pins[i].Fields, model.KeyID)
		delete(pins[i].Fields, model.KeyCreatedAt)
		delete(pins[i].Fields, model.KeyUpdatedAt)
	}
	sub.publish(pins)
}
