package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Collection is an in-memory, write-through copy of one store collection.
// Memory is authoritative: a failed write is logged and the key is retried
// on the next mutation or Flush.
type Collection[T any] struct {
	store Store
	name  string

	mu      sync.RWMutex
	docs    map[string][]byte
	pending map[string]bool // key -> deleted
}

func LoadCollection[T any](ctx context.Context, store Store, name string) (*Collection[T], error) {
	records, err := store.List(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	c := &Collection[T]{
		store:   store,
		name:    name,
		docs:    make(map[string][]byte, len(records)),
		pending: map[string]bool{},
	}
	for _, r := range records {
		var v T
		if err := json.Unmarshal(r.Doc, &v); err != nil {
			log.WithFields(log.Fields{"collection": name, "key": r.Key}).WithError(err).Warn("Skipping unreadable record")
			continue
		}
		c.docs[r.Key] = r.Doc
	}
	return c, nil
}

// Get returns a private copy of the value stored under key.
func (c *Collection[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	doc, ok := c.docs[key]
	c.mu.RUnlock()

	var v T
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(doc, &v); err != nil {
		return v, false
	}
	return v, true
}

// All returns copies of every value ordered by key.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	keys := make([]string, 0, len(c.docs))
	for k := range c.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	docs := make([][]byte, len(keys))
	for i, k := range keys {
		docs[i] = c.docs[k]
	}
	c.mu.RUnlock()

	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc, &v); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// Mutate applies fn to the value under key and persists the result. fn sees
// the zero value and exists=false when the key is absent. An error from fn
// aborts the mutation and is returned unchanged.
func (c *Collection[T]) Mutate(ctx context.Context, key string, fn func(v *T, exists bool) error) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var v T
	doc, exists := c.docs[key]
	if exists {
		if err := json.Unmarshal(doc, &v); err != nil {
			return v, fmt.Errorf("decode %s/%s: %w", c.name, key, err)
		}
	}

	if err := fn(&v, exists); err != nil {
		var zero T
		return zero, err
	}

	next, err := json.Marshal(v)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("encode %s/%s: %w", c.name, key, err)
	}
	c.docs[key] = next
	c.pending[key] = false
	c.flushLocked(ctx)

	return v, nil
}

// Remove deletes key. It reports ErrNotFound when the key is absent.
func (c *Collection[T]) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[key]; !ok {
		return ErrNotFound
	}
	delete(c.docs, key)
	c.pending[key] = true
	c.flushLocked(ctx)
	return nil
}

// Flush retries every write that failed earlier. It returns
// ErrPersistenceWrite when some keys are still unsaved.
func (c *Collection[T]) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flushLocked(ctx)
	if len(c.pending) > 0 {
		return fmt.Errorf("%s: %d unsaved records: %w", c.name, len(c.pending), ErrPersistenceWrite)
	}
	return nil
}

// Dirty reports how many keys are waiting for a successful write.
func (c *Collection[T]) Dirty() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

func (c *Collection[T]) flushLocked(ctx context.Context) {
	for key, deleted := range c.pending {
		var err error
		if deleted {
			err = c.store.Delete(ctx, c.name, key)
			if errors.Is(err, ErrNotFound) {
				err = nil
			}
		} else {
			err = c.store.Put(ctx, c.name, key, c.docs[key])
		}

		if err != nil {
			log.WithFields(log.Fields{
				"collection": c.name,
				"key":        key,
			}).WithError(fmt.Errorf("%w: %v", ErrPersistenceWrite, err)).Error("Failed to persist record, keeping in memory")
			continue
		}
		delete(c.pending, key)
	}
}
