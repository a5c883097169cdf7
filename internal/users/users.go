// Package users keeps the reader roster: who registered, who is active,
// who is banned.
package users

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"time"

	"github.com/okunev/bookshelf-bot/internal/storage"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBanned   Status = "banned"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrExists   = errors.New("user already registered")
)

// User is one reader record, keyed in the store by the stringified
// transport user ID.
type User struct {
	Name         string    `json:"name"`
	Username     string    `json:"username,omitempty"`
	Status       Status    `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
	LastSeenAt   time.Time `json:"last_seen_at,omitempty"`
}

// Stats summarizes the roster for the admin panel.
type Stats struct {
	Total    int
	Active   int
	Inactive int
	Banned   int
}

type Store struct {
	backing *storage.Store[map[string]User]
}

func NewStore(path string, ttl time.Duration) *Store {
	return &Store{
		backing: storage.NewStore[map[string]User](path, ttl, storage.WithClone(cloneUsers)),
	}
}

// cloneUsers copies the roster so the cached mapping is never shared with
// callers. User records hold no nested references, a map copy is enough.
func cloneUsers(users map[string]User) map[string]User {
	return maps.Clone(users)
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *Store) all() (map[string]User, error) {
	users, err := s.backing.Read()
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = make(map[string]User)
	}
	return users, nil
}

// Get returns the record for id, or ErrNotFound.
func (s *Store) Get(id int64) (User, error) {
	users, err := s.all()
	if err != nil {
		return User{}, err
	}
	user, ok := users[key(id)]
	if !ok {
		return User{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return user, nil
}

// Register creates a new inactive record. Re-registration is rejected.
func (s *Store) Register(id int64, name, username string) error {
	users, err := s.all()
	if err != nil {
		return err
	}
	if _, ok := users[key(id)]; ok {
		return fmt.Errorf("%w: %d", ErrExists, id)
	}
	now := time.Now()
	users[key(id)] = User{
		Name:         name,
		Username:     username,
		Status:       StatusInactive,
		RegisteredAt: now,
		LastSeenAt:   now,
	}
	return s.backing.Write(users)
}

// SetStatus moves a user between active/inactive/banned.
func (s *Store) SetStatus(id int64, status Status) error {
	users, err := s.all()
	if err != nil {
		return err
	}
	user, ok := users[key(id)]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	user.Status = status
	users[key(id)] = user
	return s.backing.Write(users)
}

// Activate marks the user active, e.g. after the secret phrase checks out.
func (s *Store) Activate(id int64) error {
	return s.SetStatus(id, StatusActive)
}

// Ban blocks the user from the library.
func (s *Store) Ban(id int64) error {
	return s.SetStatus(id, StatusBanned)
}

// Unban returns a banned user to active.
func (s *Store) Unban(id int64) error {
	return s.SetStatus(id, StatusActive)
}

// Touch updates the last-seen timestamp; unknown users are ignored.
func (s *Store) Touch(id int64) error {
	users, err := s.all()
	if err != nil {
		return err
	}
	user, ok := users[key(id)]
	if !ok {
		return nil
	}
	user.LastSeenAt = time.Now()
	users[key(id)] = user
	return s.backing.Write(users)
}

// IsActive reports whether id belongs to a known, active user.
func (s *Store) IsActive(id int64) bool {
	user, err := s.Get(id)
	return err == nil && user.Status == StatusActive
}

// ActiveIDs returns the IDs of every active user, for mailings.
func (s *Store) ActiveIDs() ([]int64, error) {
	users, err := s.all()
	if err != nil {
		return nil, err
	}
	var ids []int64
	for k, user := range users {
		if user.Status != StatusActive {
			continue
		}
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Stats counts users per status.
func (s *Store) Stats() (Stats, error) {
	users, err := s.all()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Total: len(users)}
	for _, user := range users {
		switch user.Status {
		case StatusActive:
			stats.Active++
		case StatusBanned:
			stats.Banned++
		default:
			stats.Inactive++
		}
	}
	return stats, nil
}
