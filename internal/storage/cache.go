package storage

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader produces the payload for a cache key, typically by reading a file.
type Loader[T any] func(key string) (T, error)

type entry[T any] struct {
	payload  T
	loadedAt time.Time
}

// Cache is a TTL read-through cache keyed by file path. An expired entry is
// indistinguishable from an absent one; stale payloads are never served.
// Loader errors propagate to the caller and are never cached.
type Cache[T any] struct {
	ttl    time.Duration
	loader Loader[T]
	clone  func(T) T
	now    func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]entry[T]
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithClone installs a copy function applied to every payload Read hands
// out. Cached state stays owned by the cache; callers mutate their copy.
// Required for reference payloads (maps, slices) shared across goroutines.
func WithClone[T any](clone func(T) T) Option[T] {
	return func(c *Cache[T]) {
		c.clone = clone
	}
}

func NewCache[T any](ttl time.Duration, loader Loader[T], opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		ttl:     ttl,
		loader:  loader,
		now:     time.Now,
		entries: make(map[string]entry[T]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache[T]) handOut(payload T) T {
	if c.clone == nil {
		return payload
	}
	return c.clone(payload)
}

// Read returns the cached payload for key if it is still live, loading it
// otherwise. Concurrent misses for the same key are collapsed into a single
// loader call; every waiter gets the shared result.
func (c *Cache[T]) Read(key string) (T, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.loadedAt) < c.ttl {
		payload := e.payload
		c.mu.Unlock()
		return c.handOut(payload), nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		payload, err := c.loader(key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = entry[T]{payload: payload, loadedAt: c.now()}
		c.mu.Unlock()
		return payload, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	// Every singleflight waiter gets its own copy of the shared result.
	return c.handOut(v.(T)), nil
}

// Invalidate removes the entry for key; the next Read reloads from disk.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.group.Forget(key)
}
