// Package memory is an in-process pin collection. It implements both the
// repository and the change feed, so every write fans out to all watchers
// the same way the Postgres trigger does.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"pinworld/internal/apperror"
	"pinworld/internal/feed"
	"pinworld/internal/model"
	"pinworld/internal/repository"
)

type record struct {
	seq       uint64
	fields    model.Fields
	createdAt string
	updatedAt string
}

// Collection is safe for concurrent use.
type Collection struct {
	mu       sync.Mutex
	seq      uint64
	records  map[string]*record
	watchers map[uint64]chan feed.Event
	nextW    uint64
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{
		records:  make(map[string]*record),
		watchers: make(map[uint64]chan feed.Event),
	}
}

var (
	_ repository.PinRepository = (*Collection)(nil)
	_ feed.ChangeFeed          = (*Collection)(nil)
)

func (c *Collection) Insert(ctx context.Context, fields model.Fields, createdAt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	c.seq++
	c.records[id] = &record{seq: c.seq, fields: copyFields(fields), createdAt: createdAt}
	c.notifyLocked(feed.OpInsert)
	return id, nil
}

func (c *Collection) Merge(ctx context.Context, id string, fields model.Fields, updatedAt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]
	if !ok {
		return apperror.NotFound("pin", id)
	}
	for k, v := range fields {
		rec.fields[k] = v
	}
	rec.updatedAt = updatedAt
	c.notifyLocked(feed.OpUpdate)
	return nil
}

func (c *Collection) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[id]; !ok {
		return nil
	}
	delete(c.records, id)
	c.notifyLocked(feed.OpDelete)
	return nil
}

// List orders by createdAt descending; equal timestamps keep insertion order.
func (c *Collection) List(ctx context.Context) ([]model.Pin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	type entry struct {
		id  string
		rec *record
	}
	entries := make([]entry, 0, len(c.records))
	for id, rec := range c.records {
		entries = append(entries, entry{id: id, rec: rec})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].rec, entries[j].rec
		if a.createdAt != b.createdAt {
			return a.createdAt > b.createdAt
		}
		return a.seq < b.seq
	})
	pins := make([]model.Pin, 0, len(entries))
	for _, e := range entries {
		pins = append(pins, model.Pin{
			ID:        e.id,
			Fields:    copyFields(e.rec.fields),
			CreatedAt: e.rec.createdAt,
			UpdatedAt: e.rec.updatedAt,
		})
	}
	c.mu.Unlock()
	return pins, nil
}

// Watch registers a watcher. Pending events coalesce: a watcher that has not
// drained its channel still holds one event, which is enough to trigger a re-read.
func (c *Collection) Watch(ctx context.Context) <-chan feed.Event {
	ch := make(chan feed.Event, 1)
	c.mu.Lock()
	id := c.nextW
	c.nextW++
	c.watchers[id] = ch
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.watchers, id)
		close(ch)
		c.mu.Unlock()
	}()
	return ch
}

func (c *Collection) notifyLocked(op string) {
	for _, ch := range c.watchers {
		select {
		case ch <- feed.Event{Op: op}:
		default:
		}
	}
}

func copyFields(f model.Fields) model.Fields {
	out := make(model.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
