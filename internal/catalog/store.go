package catalog

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/okunev/bookshelf-bot/internal/storage"
	"github.com/okunev/bookshelf-bot/pkg/log"
)

var (
	// ErrNotFound means a title (or a token standing in for one) is not
	// in the catalog.
	ErrNotFound = errors.New("book not found")
	// ErrEmptyTitle rejects records without a natural key.
	ErrEmptyTitle = errors.New("book title is empty")
	// ErrExists rejects Add for a title that is already registered.
	ErrExists = errors.New("book already exists")
)

// Store is the catalog: a title-keyed mapping of Book records persisted as
// a single JSON file behind a read-through cache.
type Store struct {
	backing *storage.Store[map[string]Book]
}

func NewStore(path string, ttl time.Duration) *Store {
	return &Store{
		backing: storage.NewStore[map[string]Book](path, ttl, storage.WithClone(cloneBooks)),
	}
}

// cloneBooks deep-copies the catalog payload. The cached mapping is never
// handed out by reference: writers mutate a private copy, concurrent
// readers iterate theirs.
func cloneBooks(books map[string]Book) map[string]Book {
	if books == nil {
		return nil
	}
	out := make(map[string]Book, len(books))
	for title, book := range books {
		book.Genres = slices.Clone(book.Genres)
		book.Links = maps.Clone(book.Links)
		book.Files = maps.Clone(book.Files)
		out[title] = book
	}
	return out
}

// All returns every record keyed by title.
func (s *Store) All() (map[string]Book, error) {
	books, err := s.backing.Read()
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = make(map[string]Book)
	}
	return books, nil
}

// Titles returns every catalog title in sorted order. Sorting keeps
// token resolution deterministic even though map iteration is not.
func (s *Store) Titles() ([]string, error) {
	books, err := s.All()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(books))
	for title := range books {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return titles, nil
}

// Get returns the record for title, or ErrNotFound.
func (s *Store) Get(title string) (Book, error) {
	books, err := s.All()
	if err != nil {
		return Book{}, err
	}
	book, ok := books[title]
	if !ok {
		return Book{}, fmt.Errorf("%w: %s", ErrNotFound, title)
	}
	return book, nil
}

// Add registers a new record. The title must be non-empty and unused.
func (s *Store) Add(book Book) error {
	if book.Title == "" {
		return ErrEmptyTitle
	}
	books, err := s.All()
	if err != nil {
		return err
	}
	if _, ok := books[book.Title]; ok {
		return fmt.Errorf("%w: %s", ErrExists, book.Title)
	}
	if book.AddedAt.IsZero() {
		book.AddedAt = time.Now()
	}
	books[book.Title] = book
	return s.backing.Write(books)
}

// Put upserts a record under its title.
func (s *Store) Put(book Book) error {
	if book.Title == "" {
		return ErrEmptyTitle
	}
	books, err := s.All()
	if err != nil {
		return err
	}
	books[book.Title] = book
	return s.backing.Write(books)
}

// SetFile records the storage path for one format of an existing book.
func (s *Store) SetFile(title string, format Format, path string) error {
	books, err := s.All()
	if err != nil {
		return err
	}
	book, ok := books[title]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, title)
	}
	if book.Files == nil {
		book.Files = make(map[Format]string)
	}
	book.Files[format] = path
	books[title] = book
	return s.backing.Write(books)
}

// SetLink records a named external reference URL for an existing book.
func (s *Store) SetLink(title, name, url string) error {
	books, err := s.All()
	if err != nil {
		return err
	}
	book, ok := books[title]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, title)
	}
	if book.Links == nil {
		book.Links = make(map[string]string)
	}
	book.Links[name] = url
	books[title] = book
	return s.backing.Write(books)
}

// Delete removes a record and its format files from disk. Missing files
// are logged, not fatal.
func (s *Store) Delete(title string) error {
	books, err := s.All()
	if err != nil {
		return err
	}
	book, ok := books[title]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, title)
	}

	for format, path := range book.Files {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Error("Failed to remove %s file of %q: %v", format, title, err)
		}
	}

	delete(books, title)
	return s.backing.Write(books)
}

// Formats returns the available formats of a book.
func (s *Store) Formats(title string) ([]Format, error) {
	book, err := s.Get(title)
	if err != nil {
		return nil, err
	}
	return book.Formats(), nil
}

// ResolveToken maps a button-payload token back to its title by scanning
// the live catalog. Returns ErrNotFound when no title matches.
func (s *Store) ResolveToken(token string) (string, error) {
	titles, err := s.Titles()
	if err != nil {
		return "", err
	}
	title, ok := DecodeTitle(token, titles)
	if !ok {
		return "", fmt.Errorf("%w: token %s", ErrNotFound, token)
	}
	return title, nil
}

// Invalidate drops the cached catalog; the next read hits the disk.
func (s *Store) Invalidate() {
	s.backing.Invalidate()
}
