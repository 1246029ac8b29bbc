// Package memory is an in-process Store for tests and offline demos.
// Snapshots are delivered synchronously before a write returns.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mamadbah2/argan/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store keeps every collection in memory.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// Collection returns the collection at path, creating it on first use.
func (s *Store) Collection(path string) repository.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[path]
	if !ok {
		c = &collection{
			docs: make(map[string][]byte),
			subs: make(map[int]repository.SnapshotFunc),
		}
		s.collections[path] = c
	}
	return c
}

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

type collection struct {
	mu     sync.RWMutex
	order  []string
	docs   map[string][]byte
	subs   map[int]repository.SnapshotFunc
	nextID int

	// set by FailNextWrite
	failNext error
}

func (c *collection) List(context.Context) ([]repository.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked(), nil
}

func (c *collection) Get(_ context.Context, id string) (repository.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.docs[id]
	if !ok {
		return repository.Document{}, repository.ErrNotFound
	}
	return repository.Document{ID: id, Data: clone(data)}, nil
}

func (c *collection) Upsert(_ context.Context, id string, data []byte) (string, error) {
	c.mu.Lock()
	if err := c.failNext; err != nil {
		c.failNext = nil
		c.mu.Unlock()
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = clone(data)
	c.mu.Unlock()

	c.notify()
	return id, nil
}

func (c *collection) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	if err := c.failNext; err != nil {
		c.failNext = nil
		c.mu.Unlock()
		return err
	}
	if _, ok := c.docs[id]; !ok {
		c.mu.Unlock()
		return repository.ErrNotFound
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	c.notify()
	return nil
}

func (c *collection) Subscribe(_ context.Context, fn repository.SnapshotFunc) (func(), error) {
	c.mu.Lock()
	key := c.nextID
	c.nextID++
	c.subs[key] = fn
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	fn(snapshot)

	return func() {
		c.mu.Lock()
		delete(c.subs, key)
		c.mu.Unlock()
	}, nil
}

func (c *collection) notify() {
	c.mu.RLock()
	snapshot := c.snapshotLocked()
	subs := make([]repository.SnapshotFunc, 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.RUnlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

func (c *collection) snapshotLocked() []repository.Document {
	docs := make([]repository.Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, repository.Document{ID: id, Data: clone(c.docs[id])})
	}
	return docs
}

// FailNextWrite makes the next Upsert or Delete on path return err.
func (s *Store) FailNextWrite(path string, err error) {
	c := s.Collection(path).(*collection)
	c.mu.Lock()
	c.failNext = err
	c.mu.Unlock()
}

func clone(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
