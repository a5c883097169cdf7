package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Load reads the JSON file at path into a fresh value of T. A missing file
// is not an error: it yields the zero value, so an empty store reads as an
// empty mapping. Anything else (permissions, malformed JSON) propagates.
func Load[T any](path string) (T, error) {
	var payload T

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return payload, nil
		}
		return payload, fmt.Errorf("read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("parse %s: %w", path, err)
	}
	return payload, nil
}

// Save writes payload to path atomically: the JSON is written to a temp
// file in the same directory and renamed over the target, so a reader never
// observes a partially written file. A sidecar lock file serializes writers
// across processes.
func Save[T any](path string, payload T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory %s: %w", dir, err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Store bundles a JSON file with a read-through cache over it. Every write
// goes through Save and invalidates the cache, so readers never see the
// pre-write payload past the invalidation.
type Store[T any] struct {
	path  string
	cache *Cache[T]
}

func NewStore[T any](path string, ttl time.Duration, opts ...Option[T]) *Store[T] {
	return &Store[T]{
		path:  path,
		cache: NewCache(ttl, Load[T], opts...),
	}
}

func (s *Store[T]) Path() string {
	return s.path
}

// Read returns the current payload, served from cache within the TTL.
func (s *Store[T]) Read() (T, error) {
	return s.cache.Read(s.path)
}

// Write persists payload and invalidates the cache.
func (s *Store[T]) Write(payload T) error {
	if err := Save(s.path, payload); err != nil {
		return err
	}
	s.cache.Invalidate(s.path)
	return nil
}

// Invalidate drops any cached payload; the next Read hits the disk. Needed
// by anyone who mutates the backing file without going through Write.
func (s *Store[T]) Invalidate() {
	s.cache.Invalidate(s.path)
}
